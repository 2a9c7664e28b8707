package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to response variants and HTTP status codes.
var (
	ErrBalanceLow             = errors.New("balance_low")
	ErrTransferFailure        = errors.New("transfer_failure")
	ErrInvalidOrder           = errors.New("invalid_order")
	ErrOrderBookFull          = errors.New("order_book_full")
	ErrNotExistingOrder       = errors.New("not_existing_order")
	ErrNotAllowed             = errors.New("not_allowed")
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrTokenNotFound          = errors.New("token_not_found")
	ErrReconciliationNotFound = errors.New("reconciliation_not_found")
	ErrBalanceOverflow        = errors.New("balance_overflow")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// OrderError is a rejected order placement. It matches ErrInvalidOrder
// under errors.Is and carries the concrete reason.
type OrderError struct {
	Reason string
}

func (e *OrderError) Error() string {
	return "invalid_order: " + e.Reason
}

func (e *OrderError) Unwrap() error {
	return ErrInvalidOrder
}
