package domain

import "time"

// Principal is the opaque identity of an account holder, supplied by the
// caller's authenticated identity.
type Principal string

// Token identifies a fungible asset backed by its own external ledger.
type Token string

// OrderID is a never-reused handle into the order book.
type OrderID uint64

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Order is a standing offer to trade FromAmount of From for ToAmount of To.
// The implied rate is ToAmount/FromAmount.
//
// While an order is open or partially filled, exactly Remaining units of
// From are held in escrow on its behalf. A cancelled order keeps the
// Remaining it released so that Remaining == 0 only for filled orders.
type Order struct {
	ID         OrderID
	Owner      Principal
	From       Token
	To         Token
	FromAmount uint64
	Remaining  uint64
	ToAmount   uint64
	Submitted  uint64 // logical timestamp, time-priority tie-break
	Status     OrderStatus
	CreatedAt  time.Time
	ClosedAt   *time.Time
	Trades     []*Trade
}

// IsTerminal reports whether the order is filled or cancelled.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusFilled || o.Status == OrderStatusCancelled
}

// Escrowed returns the amount of From currently held for this order.
func (o *Order) Escrowed() uint64 {
	if o.IsTerminal() {
		return 0
	}
	return o.Remaining
}

// Balance is the amount of a token held by an owner.
type Balance struct {
	Owner  Principal
	Token  Token
	Amount uint64
}
