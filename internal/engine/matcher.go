package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/efreitasn/tokenswap/internal/domain"
	"github.com/efreitasn/tokenswap/internal/ledger"
	"github.com/efreitasn/tokenswap/internal/store"
)

// Matcher places and cancels orders, settling crossing orders against the
// ledger at the resting order's rate.
type Matcher struct {
	book   *Book
	ledger *ledger.Ledger
	trades *store.TradeStore
}

// NewMatcher creates a new Matcher with the given dependencies.
func NewMatcher(book *Book, l *ledger.Ledger, trades *store.TradeStore) *Matcher {
	return &Matcher{
		book:   book,
		ledger: l,
		trades: trades,
	}
}

// fill is one planned settlement against a resting order.
type fill struct {
	maker      *domain.Order
	makerGives uint64
	takerGives uint64
}

// Validate checks the shape of an order before any funds move.
func Validate(o domain.Order) error {
	switch {
	case o.Owner == "":
		return domain.ErrUnauthenticated
	case o.From == "" || o.To == "":
		return &domain.OrderError{Reason: "from and to tokens are required"}
	case o.From == o.To:
		return &domain.OrderError{Reason: "from and to must differ"}
	case o.FromAmount == 0:
		return &domain.OrderError{Reason: "from_amount must be > 0"}
	case o.ToAmount == 0:
		return &domain.OrderError{Reason: "to_amount must be > 0"}
	}
	return nil
}

// PlaceOrder escrows the order's FromAmount, matches it against the mirror
// pair in price/time priority, and rests any remainder on the book.
//
// The caller supplies Owner, From, FromAmount, To and ToAmount; the book
// assigns ID, Submitted and status. The call is all-or-nothing: if any
// settlement credit cannot be applied, the order is discarded, the escrow
// refunded, and no fill is recorded.
//
// The book's write lock is held for the entire matching pass.
func (m *Matcher) PlaceOrder(in domain.Order) (domain.Order, []*domain.Trade, error) {
	if err := Validate(in); err != nil {
		return domain.Order{}, nil, err
	}

	book := m.book
	book.mu.Lock()
	defer book.mu.Unlock()

	// Step 1: Capacity, before any funds move.
	if book.fullLocked() {
		return domain.Order{}, nil, domain.ErrOrderBookFull
	}

	// Step 2: Escrow.
	if err := m.ledger.Debit(in.Owner, in.From, in.FromAmount); err != nil {
		return domain.Order{}, nil, err
	}

	order := &in
	order.Trades = nil
	book.insertLocked(order)

	// Step 3: Plan fills without touching any order.
	remaining := order.Remaining
	var plan []fill
	book.walkCandidatesLocked(order, func(c *domain.Order) bool {
		if !crosses(order, c) {
			return false
		}
		makerGives, takerGives := fillAmounts(remaining, c)
		if makerGives == 0 {
			return false
		}
		plan = append(plan, fill{maker: c, makerGives: makerGives, takerGives: takerGives})
		remaining -= takerGives
		return remaining > 0
	})

	// Step 4: Apply every credit at once.
	credits := make([]domain.Balance, 0, 2*len(plan))
	for _, f := range plan {
		credits = append(credits,
			domain.Balance{Owner: order.Owner, Token: order.To, Amount: f.makerGives},
			domain.Balance{Owner: f.maker.Owner, Token: order.From, Amount: f.takerGives},
		)
	}
	if err := m.ledger.CreditAll(credits); err != nil {
		book.discardLocked(order)
		if rerr := m.ledger.Credit(order.Owner, order.From, order.FromAmount); rerr != nil {
			return domain.Order{}, nil, fmt.Errorf("settle order: %w (refund: %v)", err, rerr)
		}
		return domain.Order{}, nil, fmt.Errorf("settle order: %w", err)
	}

	// Step 5: Commit fills to both orders and record them.
	executedAt := book.now()
	trades := make([]*domain.Trade, 0, len(plan))
	for _, f := range plan {
		book.fillLocked(f.maker, f.makerGives)
		book.fillLocked(order, f.takerGives)

		t := &domain.Trade{
			TradeID:    uuid.New().String(),
			TakerOrder: order.ID,
			MakerOrder: f.maker.ID,
			Taker:      order.Owner,
			Maker:      f.maker.Owner,
			TakerToken: order.From,
			MakerToken: order.To,
			TakerGave:  f.takerGives,
			MakerGave:  f.makerGives,
			ExecutedAt: executedAt,
		}
		m.trades.Append(t)
		trades = append(trades, t)
	}

	// Step 6: Rest or complete.
	if order.Remaining > 0 {
		book.restLocked(order)
	}

	result := *order
	result.Trades = trades
	return result, trades, nil
}

// CancelOrder releases the escrow of a live order back to its owner and
// marks it cancelled. The returned order's Remaining is the amount released.
//
// Returns ErrNotExistingOrder if the order is unknown, purged or already
// terminal, and ErrNotAllowed if owner did not place it.
func (m *Matcher) CancelOrder(owner domain.Principal, id domain.OrderID) (domain.Order, error) {
	book := m.book
	book.mu.Lock()
	defer book.mu.Unlock()

	order, ok := book.orders[id]
	if !ok || order.IsTerminal() {
		return domain.Order{}, domain.ErrNotExistingOrder
	}
	if order.Owner != owner {
		return domain.Order{}, domain.ErrNotAllowed
	}

	if err := m.ledger.Credit(order.Owner, order.From, order.Remaining); err != nil {
		return domain.Order{}, fmt.Errorf("release escrow: %w", err)
	}
	book.closeLocked(order, domain.OrderStatusCancelled)

	return *order, nil
}
