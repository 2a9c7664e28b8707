package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/tokenswap/internal/domain"
	"github.com/efreitasn/tokenswap/internal/service"
)

// AdminHandler handles operator endpoints under /admin.
type AdminHandler struct {
	svc *service.Exchange
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc *service.Exchange) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type creditRequest struct {
	Owner  string `json:"owner"`
	Token  string `json:"token"`
	Amount uint64 `json:"amount"`
}

type resolveRequest struct {
	Outcome string `json:"outcome"`
}

type reconciliationResponse struct {
	ID         string  `json:"id"`
	Direction  string  `json:"direction"`
	Owner      string  `json:"owner"`
	Token      string  `json:"token"`
	Amount     uint64  `json:"amount"`
	Cause      string  `json:"cause"`
	CreatedAt  string  `json:"created_at"`
	Outcome    *string `json:"outcome"`
	ResolvedAt *string `json:"resolved_at"`
}

// Credit handles POST /admin/credit.
func (h *AdminHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}

	err := h.svc.Credit(principal(r), domain.Principal(req.Owner), domain.Token(req.Token), req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteOK(w, http.StatusOK, balanceResponse{Owner: req.Owner, Token: req.Token, Amount: req.Amount})
}

// Clear handles POST /admin/clear.
func (h *AdminHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(principal(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteOK(w, http.StatusOK, nil)
}

// Reconciliations handles GET /admin/reconciliations.
func (h *AdminHandler) Reconciliations(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Reconciliations(principal(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]reconciliationResponse, len(entries))
	for i, e := range entries {
		out[i] = buildReconciliationResponse(e)
	}
	WriteOK(w, http.StatusOK, out)
}

// Resolve handles POST /admin/reconciliations/{reconciliation_id}.
func (h *AdminHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}

	id := chi.URLParam(r, "reconciliation_id")
	entry, err := h.svc.ResolveReconciliation(principal(r), id, domain.ReconciliationOutcome(req.Outcome))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteOK(w, http.StatusOK, buildReconciliationResponse(entry))
}

func buildReconciliationResponse(r domain.Reconciliation) reconciliationResponse {
	resp := reconciliationResponse{
		ID:        r.ID,
		Direction: string(r.Direction),
		Owner:     string(r.Owner),
		Token:     string(r.Token),
		Amount:    r.Amount,
		Cause:     r.Cause,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.Outcome != "" {
		s := string(r.Outcome)
		resp.Outcome = &s
	}
	if r.ResolvedAt != nil {
		s := r.ResolvedAt.UTC().Format(time.RFC3339)
		resp.ResolvedAt = &s
	}
	return resp
}
