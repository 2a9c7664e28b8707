package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/tokenswap/internal/domain"
)

func newTestTrade(id string, taker, maker domain.OrderID, executedAt time.Time) *domain.Trade {
	return &domain.Trade{
		TradeID:    id,
		TakerOrder: taker,
		MakerOrder: maker,
		Taker:      "alice",
		Maker:      "bob",
		TakerToken: "X",
		MakerToken: "Y",
		TakerGave:  10,
		MakerGave:  20,
		ExecutedAt: executedAt,
	}
}

func TestTradeStore_Append_IndexesBothSides(t *testing.T) {
	s := NewTradeStore()
	now := time.Now()

	s.Append(newTestTrade("t1", 2, 1, now))
	s.Append(newTestTrade("t2", 3, 1, now.Add(time.Second)))

	maker := s.ByOrder(1)
	if len(maker) != 2 {
		t.Fatalf("expected 2 fills for maker, got %d", len(maker))
	}
	if maker[0].TradeID != "t1" || maker[1].TradeID != "t2" {
		t.Fatalf("fills out of order: %s, %s", maker[0].TradeID, maker[1].TradeID)
	}
	if got := s.ByOrder(2); len(got) != 1 || got[0].TradeID != "t1" {
		t.Fatalf("unexpected taker fills: %v", got)
	}
}

func TestTradeStore_ByOrder_Empty(t *testing.T) {
	s := NewTradeStore()

	trades := s.ByOrder(42)
	if trades == nil {
		t.Fatal("expected non-nil empty slice, got nil")
	}
	if len(trades) != 0 {
		t.Fatalf("expected 0 fills, got %d", len(trades))
	}
}

func TestTradeStore_ByOrder_ReturnsCopy(t *testing.T) {
	s := NewTradeStore()
	s.Append(newTestTrade("t1", 2, 1, time.Now()))

	trades := s.ByOrder(1)
	trades[0] = nil

	if original := s.ByOrder(1); original[0] == nil {
		t.Fatal("ByOrder should return a copy; internal state was mutated")
	}
}

func TestTradeStore_DeleteByOrder(t *testing.T) {
	s := NewTradeStore()
	s.Append(newTestTrade("t1", 2, 1, time.Now()))

	s.DeleteByOrder(1)
	if len(s.ByOrder(1)) != 0 {
		t.Fatal("expected fills of purged order to be gone")
	}
	if len(s.ByOrder(2)) != 1 {
		t.Fatal("counterparty should still see the fill")
	}
	if len(s.All()) != 1 {
		t.Fatalf("All() = %d fills, want 1", len(s.All()))
	}

	s.DeleteByOrder(2)
	if len(s.All()) != 0 {
		t.Fatalf("All() = %d fills, want 0", len(s.All()))
	}
}

func TestTradeStore_All_Deduplicated(t *testing.T) {
	s := NewTradeStore()
	now := time.Now()
	s.Append(newTestTrade("b", 2, 1, now.Add(time.Second)))
	s.Append(newTestTrade("a", 3, 1, now))

	all := s.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 distinct fills, got %d", len(all))
	}
	if all[0].TradeID != "a" {
		t.Errorf("expected oldest fill first, got %s", all[0].TradeID)
	}
}

func TestTradeStore_Restore(t *testing.T) {
	s := NewTradeStore()
	s.Append(newTestTrade("old", 9, 8, time.Now()))

	s.Restore([]*domain.Trade{newTestTrade("t1", 2, 1, time.Now())}, func(id domain.OrderID) bool {
		return id == 2
	})

	if len(s.ByOrder(9)) != 0 {
		t.Error("restore should replace previous contents")
	}
	if len(s.ByOrder(2)) != 1 {
		t.Error("expected fill indexed under kept order")
	}
	if len(s.ByOrder(1)) != 0 {
		t.Error("fill should not be indexed under a dropped order")
	}
}

func TestTradeStore_ConcurrentAccess(t *testing.T) {
	s := NewTradeStore()
	var wg sync.WaitGroup
	now := time.Now()

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Append(newTestTrade(fmt.Sprintf("trade-%d", i), domain.OrderID(i+2), 1, now))
		}(i)
		go func() {
			defer wg.Done()
			s.ByOrder(1)
		}()
	}
	wg.Wait()

	if got := len(s.ByOrder(1)); got != 100 {
		t.Fatalf("expected 100 fills, got %d", got)
	}
}
