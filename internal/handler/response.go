package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/efreitasn/tokenswap/internal/domain"
)

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// okResponse is the success half of the response envelope.
type okResponse struct {
	OK any `json:"ok"`
}

// errorResponse is the failure half of the response envelope.
type errorResponse struct {
	Err     string `json:"err"`
	Message string `json:"message"`
}

// WriteOK writes {"ok": data}.
func WriteOK(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, okResponse{OK: data})
}

// WriteError writes {"err": variant, "message": message}.
func WriteError(w http.ResponseWriter, status int, variant, message string) {
	WriteJSON(w, status, errorResponse{
		Err:     variant,
		Message: message,
	})
}

// ParseJSON decodes the request body as JSON into v.
// It validates that the Content-Type header is application/json and
// returns an error for missing/incorrect content type or malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}

// writeServiceError maps a service error onto its variant and status.
// Transfer failures are checked first since they may wrap ledger errors.
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "ValidationError", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		WriteError(w, http.StatusUnauthorized, "Unauthenticated", "X-Principal header is required")
	case errors.Is(err, domain.ErrTransferFailure):
		WriteError(w, http.StatusBadGateway, "TransferFailure", err.Error())
	case errors.Is(err, domain.ErrInvalidOrder):
		WriteError(w, http.StatusBadRequest, "InvalidOrder", err.Error())
	case errors.Is(err, domain.ErrBalanceLow):
		WriteError(w, http.StatusConflict, "BalanceLow", "Insufficient balance")
	case errors.Is(err, domain.ErrBalanceOverflow):
		WriteError(w, http.StatusConflict, "BalanceOverflow", "Balance would overflow")
	case errors.Is(err, domain.ErrOrderBookFull):
		WriteError(w, http.StatusServiceUnavailable, "OrderBookFull", "Order book is full")
	case errors.Is(err, domain.ErrNotExistingOrder):
		WriteError(w, http.StatusNotFound, "NotExistingOrder", "Order does not exist or is closed")
	case errors.Is(err, domain.ErrNotAllowed):
		WriteError(w, http.StatusForbidden, "NotAllowed", "Operation not allowed")
	case errors.Is(err, domain.ErrTokenNotFound):
		WriteError(w, http.StatusNotFound, "TokenNotFound", "Token not found")
	case errors.Is(err, domain.ErrReconciliationNotFound):
		WriteError(w, http.StatusNotFound, "ReconciliationNotFound", "Reconciliation entry not found")
	default:
		WriteError(w, http.StatusInternalServerError, "InternalError", "An unexpected error occurred")
	}
}
