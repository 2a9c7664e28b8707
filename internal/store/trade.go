package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/tokenswap/internal/domain"
)

// TradeStore is a thread-safe in-memory store for fills, indexed by the
// ids of both orders involved. Fills are append-only and chronological
// per order.
type TradeStore struct {
	mu      sync.RWMutex
	byOrder map[domain.OrderID][]*domain.Trade
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		byOrder: make(map[domain.OrderID][]*domain.Trade),
	}
}

// Append records a fill under both its taker and maker order.
func (s *TradeStore) Append(t *domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byOrder[t.TakerOrder] = append(s.byOrder[t.TakerOrder], t)
	s.byOrder[t.MakerOrder] = append(s.byOrder[t.MakerOrder], t)
}

// ByOrder returns the fills an order took part in, oldest first.
// Returns an empty slice if there are none.
func (s *TradeStore) ByOrder(id domain.OrderID) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.byOrder[id]
	result := make([]*domain.Trade, len(trades))
	copy(result, trades)
	return result
}

// DeleteByOrder forgets an order's view of its fills. A fill stays
// reachable from the counterparty until that order is purged as well.
func (s *TradeStore) DeleteByOrder(ids ...domain.OrderID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.byOrder, id)
	}
}

// All returns every distinct fill ordered by execution time, then id.
func (s *TradeStore) All() []*domain.Trade {
	s.mu.RLock()
	seen := make(map[string]struct{})
	var out []*domain.Trade
	for _, trades := range s.byOrder {
		for _, t := range trades {
			if _, ok := seen[t.TradeID]; ok {
				continue
			}
			seen[t.TradeID] = struct{}{}
			out = append(out, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExecutedAt.Equal(out[j].ExecutedAt) {
			return out[i].ExecutedAt.Before(out[j].ExecutedAt)
		}
		return out[i].TradeID < out[j].TradeID
	})
	return out
}

// Restore replaces the store's contents with the given fills. A fill is
// indexed only under orders still present in keep.
func (s *TradeStore) Restore(trades []*domain.Trade, keep func(domain.OrderID) bool) {
	byOrder := make(map[domain.OrderID][]*domain.Trade)
	for _, t := range trades {
		if keep(t.TakerOrder) {
			byOrder[t.TakerOrder] = append(byOrder[t.TakerOrder], t)
		}
		if keep(t.MakerOrder) {
			byOrder[t.MakerOrder] = append(byOrder[t.MakerOrder], t)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOrder = byOrder
}

// Reset drops every fill.
func (s *TradeStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOrder = make(map[domain.OrderID][]*domain.Trade)
}
