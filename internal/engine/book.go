package engine

import (
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/efreitasn/tokenswap/internal/domain"
	"github.com/google/btree"
)

// pair identifies one direction of a token pair: orders giving From for To.
type pair struct {
	From domain.Token
	To   domain.Token
}

// priorityLess orders resting orders of one pair for matching: best rate
// first (most From given per unit of To), then earliest Submitted, then
// lowest ID. The order is total and never changes while an order rests,
// since it depends only on immutable fields.
func priorityLess(a, b *domain.Order) bool {
	if betterRate(a, b) {
		return true
	}
	if betterRate(b, a) {
		return false
	}
	if a.Submitted != b.Submitted {
		return a.Submitted < b.Submitted
	}
	return a.ID < b.ID
}

// Book holds every retained order, indexed by id and by owner, with open
// orders additionally indexed per pair in B-trees for matching.
type Book struct {
	mu      sync.RWMutex
	maxOpen int
	nextID  uint64
	open    int
	orders  map[domain.OrderID]*domain.Order
	owners  map[domain.Principal]map[domain.OrderID]*domain.Order
	pairs   map[pair]*btree.BTreeG[*domain.Order]
	now     func() time.Time
}

// NewBook creates an empty book accepting at most maxOpen non-terminal orders.
func NewBook(maxOpen int) *Book {
	return &Book{
		maxOpen: maxOpen,
		orders:  make(map[domain.OrderID]*domain.Order),
		owners:  make(map[domain.Principal]map[domain.OrderID]*domain.Order),
		pairs:   make(map[pair]*btree.BTreeG[*domain.Order]),
		now:     time.Now,
	}
}

// Insert assigns the next id, marks the order open with its full amount
// remaining, and indexes it for matching and owner lookup.
// It returns ErrOrderBookFull once maxOpen orders are outstanding.
func (b *Book) Insert(o *domain.Order) (domain.OrderID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fullLocked() {
		return 0, domain.ErrOrderBookFull
	}
	b.insertLocked(o)
	b.restLocked(o)
	return o.ID, nil
}

// Get returns a copy of the order, or false if it was never placed or
// has been purged.
func (b *Book) Get(id domain.OrderID) (domain.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	o, ok := b.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// Remove purges a terminal order. Live orders leave the book only through
// cancellation or a full fill.
func (b *Book) Remove(id domain.OrderID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return domain.ErrNotExistingOrder
	}
	if !o.IsTerminal() {
		return domain.ErrNotAllowed
	}
	b.dropLocked(o)
	return nil
}

// List yields a point-in-time copy of every retained order in id order.
func (b *Book) List() iter.Seq[domain.Order] {
	b.mu.RLock()
	snap := make([]domain.Order, 0, len(b.orders))
	for _, o := range b.orders {
		snap = append(snap, *o)
	}
	b.mu.RUnlock()
	return yieldSorted(snap)
}

// ListByOwner yields a point-in-time copy of the owner's retained orders
// in id order.
func (b *Book) ListByOwner(owner domain.Principal) iter.Seq[domain.Order] {
	b.mu.RLock()
	own := b.owners[owner]
	snap := make([]domain.Order, 0, len(own))
	for _, o := range own {
		snap = append(snap, *o)
	}
	b.mu.RUnlock()
	return yieldSorted(snap)
}

func yieldSorted(snap []domain.Order) iter.Seq[domain.Order] {
	sort.Slice(snap, func(i, j int) bool { return snap[i].ID < snap[j].ID })
	return func(yield func(domain.Order) bool) {
		for _, o := range snap {
			if !yield(o) {
				return
			}
		}
	}
}

// Candidates returns the open orders on the mirror pair of o, i.e. its
// potential counterparties, in matching priority order.
func (b *Book) Candidates(o domain.Order) []domain.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []domain.Order
	b.walkCandidatesLocked(&o, func(c *domain.Order) bool {
		out = append(out, *c)
		return true
	})
	return out
}

// OpenCount returns the number of open or partially filled orders.
func (b *Book) OpenCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.open
}

// NextID returns the last id handed out. Ids are never reused.
func (b *Book) NextID() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextID
}

// Purge removes terminal orders that closed at or before cutoff and
// returns their ids.
func (b *Book) Purge(cutoff time.Time) []domain.OrderID {
	b.mu.Lock()
	defer b.mu.Unlock()

	var purged []domain.OrderID
	for id, o := range b.orders {
		if o.IsTerminal() && o.ClosedAt != nil && !o.ClosedAt.After(cutoff) {
			b.dropLocked(o)
			purged = append(purged, id)
		}
	}
	return purged
}

// Reset drops every order but keeps the id sequence.
func (b *Book) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

// Restore replaces the book's contents. nextID is raised to at least the
// highest restored id so ids stay unique.
func (b *Book) Restore(orders []domain.Order, nextID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetLocked()
	for i := range orders {
		o := orders[i]
		b.indexLocked(&o)
		if !o.IsTerminal() {
			b.open++
			b.restLocked(&o)
		}
		if uint64(o.ID) > nextID {
			nextID = uint64(o.ID)
		}
	}
	b.nextID = nextID
}

func (b *Book) resetLocked() {
	b.open = 0
	b.orders = make(map[domain.OrderID]*domain.Order)
	b.owners = make(map[domain.Principal]map[domain.OrderID]*domain.Order)
	b.pairs = make(map[pair]*btree.BTreeG[*domain.Order])
}

func (b *Book) fullLocked() bool {
	return b.open >= b.maxOpen
}

func (b *Book) insertLocked(o *domain.Order) {
	b.nextID++
	o.ID = domain.OrderID(b.nextID)
	o.Submitted = b.nextID
	o.Status = domain.OrderStatusOpen
	o.Remaining = o.FromAmount
	o.CreatedAt = b.now()
	o.ClosedAt = nil
	b.indexLocked(o)
	b.open++
}

func (b *Book) indexLocked(o *domain.Order) {
	b.orders[o.ID] = o
	own := b.owners[o.Owner]
	if own == nil {
		own = make(map[domain.OrderID]*domain.Order)
		b.owners[o.Owner] = own
	}
	own[o.ID] = o
}

// restLocked places a live order in its pair's priority tree.
func (b *Book) restLocked(o *domain.Order) {
	const degree = 32
	k := pair{From: o.From, To: o.To}
	tree, ok := b.pairs[k]
	if !ok {
		tree = btree.NewG[*domain.Order](degree, priorityLess)
		b.pairs[k] = tree
	}
	tree.ReplaceOrInsert(o)
}

func (b *Book) unrestLocked(o *domain.Order) {
	k := pair{From: o.From, To: o.To}
	tree, ok := b.pairs[k]
	if !ok {
		return
	}
	tree.Delete(o)
	if tree.Len() == 0 {
		delete(b.pairs, k)
	}
}

// dropLocked removes every index entry for o.
func (b *Book) dropLocked(o *domain.Order) {
	b.unrestLocked(o)
	delete(b.orders, o.ID)
	if own := b.owners[o.Owner]; own != nil {
		delete(own, o.ID)
		if len(own) == 0 {
			delete(b.owners, o.Owner)
		}
	}
}

// discardLocked undoes insertLocked for an order that never became
// visible. Its id stays consumed.
func (b *Book) discardLocked(o *domain.Order) {
	b.dropLocked(o)
	b.open--
}

// fillLocked reduces o's remaining by amount and closes it when it reaches zero.
func (b *Book) fillLocked(o *domain.Order, amount uint64) {
	if amount == 0 {
		return
	}
	o.Remaining -= amount
	if o.Remaining > 0 {
		o.Status = domain.OrderStatusPartiallyFilled
		return
	}
	b.closeLocked(o, domain.OrderStatusFilled)
}

func (b *Book) closeLocked(o *domain.Order, status domain.OrderStatus) {
	b.unrestLocked(o)
	now := b.now()
	o.Status = status
	o.ClosedAt = &now
	b.open--
}

// walkCandidatesLocked iterates the open orders on o's mirror pair in
// priority order until fn returns false.
func (b *Book) walkCandidatesLocked(o *domain.Order, fn func(*domain.Order) bool) {
	tree, ok := b.pairs[pair{From: o.To, To: o.From}]
	if !ok {
		return
	}
	tree.Ascend(fn)
}
