package engine

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/efreitasn/tokenswap/internal/domain"
)

var baseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// newTestOrder creates an order struct (not yet placed).
func newTestOrder(owner domain.Principal, from domain.Token, fromAmount uint64, to domain.Token, toAmount uint64) *domain.Order {
	return &domain.Order{
		Owner:      owner,
		From:       from,
		FromAmount: fromAmount,
		To:         to,
		ToAmount:   toAmount,
	}
}

// newTestBook creates a book whose clock is fixed at baseTime.
func newTestBook(maxOpen int) *Book {
	b := NewBook(maxOpen)
	b.now = func() time.Time { return baseTime }
	return b
}

func TestPriorityLess_BetterRateFirst(t *testing.T) {
	// a gives 2 X per Y, b gives 1 X per Y.
	a := &domain.Order{ID: 2, Submitted: 2, FromAmount: 10, ToAmount: 5}
	b := &domain.Order{ID: 1, Submitted: 1, FromAmount: 10, ToAmount: 10}
	if !priorityLess(a, b) {
		t.Error("expected better rate to sort first despite later submission")
	}
	if priorityLess(b, a) {
		t.Error("expected worse rate to sort after")
	}
}

func TestPriorityLess_SubmittedBreaksTies(t *testing.T) {
	// Same rate expressed with different magnitudes.
	a := &domain.Order{ID: 1, Submitted: 1, FromAmount: 20, ToAmount: 10}
	b := &domain.Order{ID: 2, Submitted: 2, FromAmount: 10, ToAmount: 5}
	if !priorityLess(a, b) {
		t.Error("expected earlier submission to sort first at equal rate")
	}
	if priorityLess(b, a) {
		t.Error("expected later submission to sort after at equal rate")
	}
}

func TestPriorityLess_IDBreaksTies(t *testing.T) {
	a := &domain.Order{ID: 1, Submitted: 7, FromAmount: 10, ToAmount: 10}
	b := &domain.Order{ID: 2, Submitted: 7, FromAmount: 10, ToAmount: 10}
	if !priorityLess(a, b) || priorityLess(b, a) {
		t.Error("expected lower id to sort first when rate and submission tie")
	}
}

func TestBook_Insert_AssignsSequentialIDs(t *testing.T) {
	b := newTestBook(10)

	id1, err := b.Insert(newTestOrder("alice", "X", 10, "Y", 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, _ := b.Insert(newTestOrder("bob", "X", 10, "Y", 5))
	if id1 != 1 || id2 != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", id1, id2)
	}

	o, ok := b.Get(id1)
	if !ok {
		t.Fatal("expected order to be retrievable")
	}
	if o.Status != domain.OrderStatusOpen {
		t.Errorf("expected status open, got %s", o.Status)
	}
	if o.Remaining != 10 {
		t.Errorf("expected remaining 10, got %d", o.Remaining)
	}
	if o.Submitted != 1 {
		t.Errorf("expected submitted 1, got %d", o.Submitted)
	}
	if b.OpenCount() != 2 {
		t.Errorf("expected 2 open orders, got %d", b.OpenCount())
	}
}

func TestBook_Insert_Full(t *testing.T) {
	b := newTestBook(1)
	_, _ = b.Insert(newTestOrder("alice", "X", 10, "Y", 5))

	_, err := b.Insert(newTestOrder("bob", "X", 10, "Y", 5))
	if !errors.Is(err, domain.ErrOrderBookFull) {
		t.Fatalf("expected ErrOrderBookFull, got %v", err)
	}
	if b.NextID() != 1 {
		t.Errorf("rejected insert should not consume an id, next id = %d", b.NextID())
	}
}

func TestBook_Get_Missing(t *testing.T) {
	b := newTestBook(10)
	if _, ok := b.Get(99); ok {
		t.Fatal("expected missing order")
	}
}

func TestBook_Get_ReturnsCopy(t *testing.T) {
	b := newTestBook(10)
	id, _ := b.Insert(newTestOrder("alice", "X", 10, "Y", 5))

	o, _ := b.Get(id)
	o.Remaining = 0

	if again, _ := b.Get(id); again.Remaining != 10 {
		t.Fatal("Get should return a copy; internal state was mutated")
	}
}

func TestBook_Candidates_MirrorPairInPriorityOrder(t *testing.T) {
	b := newTestBook(10)
	// Resting Y→X orders at different rates.
	worse, _ := b.Insert(newTestOrder("bob", "Y", 10, "X", 10))
	better, _ := b.Insert(newTestOrder("carol", "Y", 20, "X", 10))
	sameAsWorse, _ := b.Insert(newTestOrder("dave", "Y", 5, "X", 5))
	// Same direction as the incoming order; never a candidate.
	_, _ = b.Insert(newTestOrder("erin", "X", 10, "Y", 10))

	cands := b.Candidates(*newTestOrder("alice", "X", 10, "Y", 10))
	var ids []domain.OrderID
	for _, c := range cands {
		ids = append(ids, c.ID)
	}
	want := []domain.OrderID{better, worse, sameAsWorse}
	if !slices.Equal(ids, want) {
		t.Fatalf("candidates = %v, want %v", ids, want)
	}
}

func TestBook_List_SnapshotAndOrder(t *testing.T) {
	b := newTestBook(10)
	_, _ = b.Insert(newTestOrder("alice", "X", 10, "Y", 5))
	_, _ = b.Insert(newTestOrder("bob", "Y", 10, "X", 5))
	_, _ = b.Insert(newTestOrder("alice", "Z", 3, "X", 1))

	seq := b.List()
	// Mutations after the snapshot is taken are not observed.
	_, _ = b.Insert(newTestOrder("carol", "X", 1, "Y", 1))

	var ids []domain.OrderID
	for o := range seq {
		ids = append(ids, o.ID)
	}
	if !slices.Equal(ids, []domain.OrderID{1, 2, 3}) {
		t.Fatalf("List() ids = %v, want [1 2 3]", ids)
	}

	var mine []domain.OrderID
	for o := range b.ListByOwner("alice") {
		mine = append(mine, o.ID)
	}
	if !slices.Equal(mine, []domain.OrderID{1, 3}) {
		t.Fatalf("ListByOwner ids = %v, want [1 3]", mine)
	}

	for range b.ListByOwner("nobody") {
		t.Fatal("expected no orders for unknown owner")
	}
}

func TestBook_List_EarlyBreak(t *testing.T) {
	b := newTestBook(10)
	for i := 0; i < 5; i++ {
		_, _ = b.Insert(newTestOrder("alice", "X", 10, "Y", 5))
	}

	n := 0
	for range b.List() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("expected iteration to stop at 2, got %d", n)
	}
}

func TestBook_Remove(t *testing.T) {
	b := newTestBook(10)
	id, _ := b.Insert(newTestOrder("alice", "X", 10, "Y", 5))

	if err := b.Remove(id); !errors.Is(err, domain.ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed removing a live order, got %v", err)
	}

	b.mu.Lock()
	b.closeLocked(b.orders[id], domain.OrderStatusCancelled)
	b.mu.Unlock()

	if err := b.Remove(id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Remove(id); !errors.Is(err, domain.ErrNotExistingOrder) {
		t.Fatalf("expected ErrNotExistingOrder, got %v", err)
	}
}

func TestBook_Purge(t *testing.T) {
	b := newTestBook(10)
	closed, _ := b.Insert(newTestOrder("alice", "X", 10, "Y", 5))
	live, _ := b.Insert(newTestOrder("bob", "X", 10, "Y", 5))

	b.mu.Lock()
	b.closeLocked(b.orders[closed], domain.OrderStatusCancelled)
	b.mu.Unlock()

	if purged := b.Purge(baseTime.Add(-time.Second)); len(purged) != 0 {
		t.Fatalf("nothing closed before cutoff, purged %v", purged)
	}

	purged := b.Purge(baseTime)
	if !slices.Equal(purged, []domain.OrderID{closed}) {
		t.Fatalf("purged = %v, want [%d]", purged, closed)
	}
	if _, ok := b.Get(closed); ok {
		t.Error("purged order should be gone")
	}
	if _, ok := b.Get(live); !ok {
		t.Error("live order should survive purge")
	}
	if b.OpenCount() != 1 {
		t.Errorf("expected 1 open order, got %d", b.OpenCount())
	}
}

func TestBook_ResetKeepsSequence(t *testing.T) {
	b := newTestBook(10)
	_, _ = b.Insert(newTestOrder("alice", "X", 10, "Y", 5))
	_, _ = b.Insert(newTestOrder("alice", "X", 10, "Y", 5))

	b.Reset()
	if b.OpenCount() != 0 {
		t.Fatalf("expected empty book, got %d open", b.OpenCount())
	}

	id, _ := b.Insert(newTestOrder("alice", "X", 10, "Y", 5))
	if id != 3 {
		t.Fatalf("ids must not be reused after reset, got %d", id)
	}
}

func TestBook_Restore(t *testing.T) {
	b := newTestBook(10)
	closedAt := baseTime
	b.Restore([]domain.Order{
		{ID: 4, Owner: "bob", From: "Y", To: "X", FromAmount: 10, Remaining: 6, ToAmount: 10, Submitted: 4, Status: domain.OrderStatusPartiallyFilled},
		{ID: 7, Owner: "carol", From: "Y", To: "X", FromAmount: 10, Remaining: 0, ToAmount: 10, Submitted: 7, Status: domain.OrderStatusFilled, ClosedAt: &closedAt},
	}, 2)

	if b.NextID() != 7 {
		t.Fatalf("next id should be raised to highest restored id, got %d", b.NextID())
	}
	if b.OpenCount() != 1 {
		t.Fatalf("expected 1 open order, got %d", b.OpenCount())
	}

	cands := b.Candidates(*newTestOrder("alice", "X", 10, "Y", 10))
	if len(cands) != 1 || cands[0].ID != 4 {
		t.Fatalf("expected only the live restored order as candidate, got %v", cands)
	}

	id, _ := b.Insert(newTestOrder("alice", "X", 1, "Y", 1))
	if id != 8 {
		t.Fatalf("expected id 8 after restore, got %d", id)
	}
}
