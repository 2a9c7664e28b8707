// Package service exposes the exchange's public operations and coordinates
// the ledger, order book, matching engine and escrow gateway under one
// concurrency discipline.
package service

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/efreitasn/tokenswap/internal/domain"
	"github.com/efreitasn/tokenswap/internal/engine"
	"github.com/efreitasn/tokenswap/internal/escrow"
	"github.com/efreitasn/tokenswap/internal/events"
	"github.com/efreitasn/tokenswap/internal/ledger"
	"github.com/efreitasn/tokenswap/internal/store"
	"github.com/efreitasn/tokenswap/internal/transfer"
)

const publishTimeout = 5 * time.Second

// Deps are the components an Exchange coordinates.
type Deps struct {
	Ledger     *ledger.Ledger
	Book       *engine.Book
	Trades     *store.TradeStore
	Remote     transfer.Ledger
	Journal    *escrow.Journal
	Tokens     *domain.TokenRegistry
	Publisher  events.Publisher
	Logger     *slog.Logger
	ExchangeID domain.Principal
	Admin      domain.Principal
}

// Exchange is the service façade.
//
// Operations that do not wait on a remote ledger run entirely under mu:
// mutations take the write lock and queries the read lock, so no query
// observes a half-applied operation. Deposits and withdrawals hold the
// write lock only for their local ledger steps.
type Exchange struct {
	mu        sync.RWMutex
	ledger    *ledger.Ledger
	book      *engine.Book
	matcher   *engine.Matcher
	trades    *store.TradeStore
	gateway   *escrow.Gateway
	tokens    *domain.TokenRegistry
	publisher events.Publisher
	logger    *slog.Logger
	admin     domain.Principal
}

// NewExchange wires an Exchange from its components.
func NewExchange(d Deps) *Exchange {
	e := &Exchange{
		ledger:    d.Ledger,
		book:      d.Book,
		matcher:   engine.NewMatcher(d.Book, d.Ledger, d.Trades),
		trades:    d.Trades,
		tokens:    d.Tokens,
		publisher: d.Publisher,
		logger:    d.Logger,
		admin:     d.Admin,
	}
	e.gateway = escrow.NewGateway(d.Ledger, d.Remote, d.Journal, d.Publisher, &e.mu, d.Logger, d.ExchangeID)
	return e
}

// OrderRequest is the input to PlaceOrder.
type OrderRequest struct {
	From       domain.Token
	FromAmount uint64
	To         domain.Token
	ToAmount   uint64
}

// OrderFilter narrows ListOrders. Zero fields match everything.
type OrderFilter struct {
	Owner domain.Principal
	From  domain.Token
	To    domain.Token
}

func (f OrderFilter) match(o domain.Order) bool {
	return (f.From == "" || o.From == f.From) && (f.To == "" || o.To == f.To)
}

func requireCaller(caller domain.Principal) error {
	if caller == "" {
		return domain.ErrUnauthenticated
	}
	return nil
}

func (e *Exchange) requireToken(token domain.Token) error {
	_, err := e.tokens.Symbol(token)
	return err
}

// WhoAmI returns the caller's identity.
func (e *Exchange) WhoAmI(caller domain.Principal) (domain.Principal, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}
	return caller, nil
}

// Symbol returns the display symbol of a configured token.
func (e *Exchange) Symbol(token domain.Token) (string, error) {
	return e.tokens.Symbol(token)
}

// Tokens lists the configured tokens.
func (e *Exchange) Tokens() []domain.Token {
	return e.tokens.Tokens()
}

// Deposit pulls token from the caller's external account into custody and
// credits the confirmed amount. hint is the requested amount, 0 for
// whatever is available.
func (e *Exchange) Deposit(ctx context.Context, caller domain.Principal, token domain.Token, hint uint64) (uint64, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	if err := e.requireToken(token); err != nil {
		return 0, err
	}
	return e.gateway.Deposit(ctx, caller, token, hint)
}

// Withdraw sends amount of token from the caller's balance to their
// external account.
func (e *Exchange) Withdraw(ctx context.Context, caller domain.Principal, token domain.Token, amount uint64) (uint64, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	if err := e.requireToken(token); err != nil {
		return 0, err
	}
	return e.gateway.Withdraw(ctx, caller, token, amount)
}

// DepositAddress returns the account identifier the caller deposits into.
func (e *Exchange) DepositAddress(caller domain.Principal) ([]byte, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	return e.gateway.DepositAddress(caller)
}

// PlaceOrder escrows the offered amount, matches the order and returns its
// post-matching state, including the fills it took part in.
func (e *Exchange) PlaceOrder(caller domain.Principal, req OrderRequest) (domain.Order, error) {
	if err := requireCaller(caller); err != nil {
		return domain.Order{}, err
	}
	for _, tok := range []domain.Token{req.From, req.To} {
		if tok == "" {
			continue
		}
		if err := e.requireToken(tok); err != nil {
			return domain.Order{}, &domain.OrderError{Reason: "unknown token " + string(tok)}
		}
	}

	e.mu.Lock()
	order, trades, err := e.matcher.PlaceOrder(domain.Order{
		Owner:      caller,
		From:       req.From,
		FromAmount: req.FromAmount,
		To:         req.To,
		ToAmount:   req.ToAmount,
	})
	e.mu.Unlock()
	if err != nil {
		return domain.Order{}, err
	}

	evts := make([]events.Event, 0, 1+len(trades))
	evts = append(evts, events.OrderPlaced(order))
	for _, t := range trades {
		evts = append(evts, events.TradeExecuted(t))
	}
	e.publish(evts...)

	e.logger.Debug("order placed",
		"order_id", order.ID, "owner", order.Owner, "status", order.Status, "fills", len(trades))
	return order, nil
}

// CancelOrder cancels one of the caller's live orders and returns it with
// Remaining set to the amount released.
func (e *Exchange) CancelOrder(caller domain.Principal, id domain.OrderID) (domain.Order, error) {
	if err := requireCaller(caller); err != nil {
		return domain.Order{}, err
	}

	e.mu.Lock()
	order, err := e.matcher.CancelOrder(caller, id)
	e.mu.Unlock()
	if err != nil {
		return domain.Order{}, err
	}

	e.publish(events.OrderCancelled(order))
	return order, nil
}

// CheckOrder returns the order with its fills, or false if it does not
// exist or has been purged.
func (e *Exchange) CheckOrder(id domain.OrderID) (domain.Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	o, ok := e.book.Get(id)
	if !ok {
		return domain.Order{}, false
	}
	o.Trades = e.trades.ByOrder(id)
	return o, true
}

// ListOrders yields a point-in-time view of the retained orders matching
// filter, in id order.
func (e *Exchange) ListOrders(filter OrderFilter) iter.Seq[domain.Order] {
	e.mu.RLock()
	var all iter.Seq[domain.Order]
	if filter.Owner != "" {
		all = e.book.ListByOwner(filter.Owner)
	} else {
		all = e.book.List()
	}
	e.mu.RUnlock()

	return func(yield func(domain.Order) bool) {
		for o := range all {
			if filter.match(o) && !yield(o) {
				return
			}
		}
	}
}

// Balance returns the caller's free balance of token.
func (e *Exchange) Balance(caller domain.Principal, token domain.Token) (uint64, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.BalanceOf(caller, token), nil
}

// Balances returns the caller's non-zero balances.
func (e *Exchange) Balances(caller domain.Principal) ([]domain.Balance, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Balances(caller), nil
}

// AllBalances returns every non-zero balance on the exchange.
func (e *Exchange) AllBalances() []domain.Balance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.All()
}

// publish delivers events best-effort; failures are logged, never returned.
func (e *Exchange) publish(evts ...events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := e.publisher.Publish(ctx, evts...); err != nil {
		e.logger.Warn("event publish failed", "count", len(evts), "error", err)
	}
}
