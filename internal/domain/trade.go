package domain

import "time"

// Trade is one settlement between an incoming (taker) order and a resting
// (maker) order. The taker gave TakerGave of TakerToken and received
// MakerGave of MakerToken; the maker the reverse.
type Trade struct {
	TradeID    string
	TakerOrder OrderID
	MakerOrder OrderID
	Taker      Principal
	Maker      Principal
	TakerToken Token
	MakerToken Token
	TakerGave  uint64
	MakerGave  uint64
	ExecutedAt time.Time
}
