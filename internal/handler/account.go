package handler

import (
	"encoding/hex"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/tokenswap/internal/domain"
	"github.com/efreitasn/tokenswap/internal/service"
)

// AccountHandler handles identity, funding and balance endpoints.
type AccountHandler struct {
	svc *service.Exchange
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc *service.Exchange) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// transferRequest is the JSON request body for POST /deposits and
// POST /withdrawals. Amount is optional for deposits.
type transferRequest struct {
	Token  string `json:"token"`
	Amount uint64 `json:"amount"`
}

type transferResponse struct {
	Token  string `json:"token"`
	Amount uint64 `json:"amount"`
}

type balanceResponse struct {
	Owner  string `json:"owner"`
	Token  string `json:"token"`
	Amount uint64 `json:"amount"`
}

type depositAddressResponse struct {
	Hex   string `json:"hex"`
	Bytes []int  `json:"bytes"`
}

// WhoAmI handles GET /whoami.
func (h *AccountHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	who, err := h.svc.WhoAmI(principal(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteOK(w, http.StatusOK, who)
}

// Deposit handles POST /deposits.
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	if req.Token == "" {
		WriteError(w, http.StatusBadRequest, "ValidationError", "token is required")
		return
	}

	amount, err := h.svc.Deposit(r.Context(), principal(r), domain.Token(req.Token), req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteOK(w, http.StatusOK, transferResponse{Token: req.Token, Amount: amount})
}

// Withdraw handles POST /withdrawals.
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	if req.Token == "" {
		WriteError(w, http.StatusBadRequest, "ValidationError", "token is required")
		return
	}

	amount, err := h.svc.Withdraw(r.Context(), principal(r), domain.Token(req.Token), req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteOK(w, http.StatusOK, transferResponse{Token: req.Token, Amount: amount})
}

// DepositAddress handles GET /deposit-address.
func (h *AccountHandler) DepositAddress(w http.ResponseWriter, r *http.Request) {
	addr, err := h.svc.DepositAddress(principal(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	raw := make([]int, len(addr))
	for i, b := range addr {
		raw[i] = int(b)
	}
	WriteOK(w, http.StatusOK, depositAddressResponse{Hex: hex.EncodeToString(addr), Bytes: raw})
}

// Balance handles GET /balances/{token}.
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	amount, err := h.svc.Balance(principal(r), domain.Token(token))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteOK(w, http.StatusOK, amount)
}

// Balances handles GET /balances.
func (h *AccountHandler) Balances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.svc.Balances(principal(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteOK(w, http.StatusOK, buildBalanceResponses(balances))
}

// AllBalances handles GET /balances/all.
func (h *AccountHandler) AllBalances(w http.ResponseWriter, r *http.Request) {
	WriteOK(w, http.StatusOK, buildBalanceResponses(h.svc.AllBalances()))
}

// Tokens handles GET /tokens.
func (h *AccountHandler) Tokens(w http.ResponseWriter, r *http.Request) {
	tokens := h.svc.Tokens()
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = string(t)
	}
	WriteOK(w, http.StatusOK, out)
}

// Symbol handles GET /tokens/{token}/symbol.
func (h *AccountHandler) Symbol(w http.ResponseWriter, r *http.Request) {
	symbol, err := h.svc.Symbol(domain.Token(chi.URLParam(r, "token")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteOK(w, http.StatusOK, symbol)
}

func buildBalanceResponses(balances []domain.Balance) []balanceResponse {
	out := make([]balanceResponse, len(balances))
	for i, b := range balances {
		out[i] = balanceResponse{Owner: string(b.Owner), Token: string(b.Token), Amount: b.Amount}
	}
	return out
}
