// Package events publishes exchange domain events after the state change
// they describe has been committed.
package events

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/tokenswap/internal/domain"
)

// Event types.
const (
	TypeOrderPlaced         = "order.placed"
	TypeOrderCancelled      = "order.cancelled"
	TypeTradeExecuted       = "trade.executed"
	TypeTransferUnconfirmed = "transfer.unconfirmed"
)

// Event is one published fact. Key groups related events on a partition.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Key  string    `json:"key"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// OrderData is the payload of order events.
type OrderData struct {
	OrderID    uint64 `json:"order_id"`
	Owner      string `json:"owner"`
	From       string `json:"from"`
	FromAmount uint64 `json:"from_amount"`
	To         string `json:"to"`
	ToAmount   uint64 `json:"to_amount"`
	Remaining  uint64 `json:"remaining"`
	Status     string `json:"status"`
}

// TradeData is the payload of trade.executed.
type TradeData struct {
	TradeID    string `json:"trade_id"`
	TakerOrder uint64 `json:"taker_order"`
	MakerOrder uint64 `json:"maker_order"`
	Taker      string `json:"taker"`
	Maker      string `json:"maker"`
	TakerToken string `json:"taker_token"`
	MakerToken string `json:"maker_token"`
	TakerGave  uint64 `json:"taker_gave"`
	MakerGave  uint64 `json:"maker_gave"`
}

// TransferData is the payload of transfer.unconfirmed.
type TransferData struct {
	ReconciliationID string `json:"reconciliation_id"`
	Direction        string `json:"direction"`
	Owner            string `json:"owner"`
	Token            string `json:"token"`
	Amount           uint64 `json:"amount"`
}

func newEvent(typ, key string, at time.Time, data any) Event {
	return Event{
		ID:   uuid.New().String(),
		Type: typ,
		Key:  key,
		Time: at,
		Data: data,
	}
}

func orderData(o domain.Order) OrderData {
	return OrderData{
		OrderID:    uint64(o.ID),
		Owner:      string(o.Owner),
		From:       string(o.From),
		FromAmount: o.FromAmount,
		To:         string(o.To),
		ToAmount:   o.ToAmount,
		Remaining:  o.Remaining,
		Status:     string(o.Status),
	}
}

// OrderPlaced describes a newly placed order in its post-matching state.
func OrderPlaced(o domain.Order) Event {
	return newEvent(TypeOrderPlaced, orderKey(o.ID), o.CreatedAt, orderData(o))
}

// OrderCancelled describes a cancellation; Remaining is the amount released.
func OrderCancelled(o domain.Order) Event {
	at := time.Now()
	if o.ClosedAt != nil {
		at = *o.ClosedAt
	}
	return newEvent(TypeOrderCancelled, orderKey(o.ID), at, orderData(o))
}

// TradeExecuted describes one fill.
func TradeExecuted(t *domain.Trade) Event {
	return newEvent(TypeTradeExecuted, orderKey(t.MakerOrder), t.ExecutedAt, TradeData{
		TradeID:    t.TradeID,
		TakerOrder: uint64(t.TakerOrder),
		MakerOrder: uint64(t.MakerOrder),
		Taker:      string(t.Taker),
		Maker:      string(t.Maker),
		TakerToken: string(t.TakerToken),
		MakerToken: string(t.MakerToken),
		TakerGave:  t.TakerGave,
		MakerGave:  t.MakerGave,
	})
}

// TransferUnconfirmed describes a transfer whose outcome is unknown.
func TransferUnconfirmed(id, direction string, owner domain.Principal, token domain.Token, amount uint64, at time.Time) Event {
	return newEvent(TypeTransferUnconfirmed, string(owner), at, TransferData{
		ReconciliationID: id,
		Direction:        direction,
		Owner:            string(owner),
		Token:            string(token),
		Amount:           amount,
	})
}

func orderKey(id domain.OrderID) string {
	return "order-" + strconv.FormatUint(uint64(id), 10)
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Event) error { return nil }
func (NopPublisher) Close() error                           { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, events ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

// Close implements Publisher.
func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the type of every published event, in order.
func (r *Recorder) Types() []string {
	var out []string
	for _, e := range r.Events() {
		out = append(out, e.Type)
	}
	return out
}
