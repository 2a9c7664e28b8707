// Package ledger holds per-(owner, token) balances, the source of truth
// for funds held by the exchange.
package ledger

import (
	"math"
	"sort"
	"sync"

	"github.com/efreitasn/tokenswap/internal/domain"
)

// account is one owner's balances. Its mutex serializes every
// check-then-act on the owner's keys.
type account struct {
	mu       sync.Mutex
	balances map[domain.Token]uint64
}

// Ledger is a thread-safe map of owner → token → amount. Mutations are
// linearizable per (owner, token): a debit's balance check and decrement
// happen under the same lock.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[domain.Principal]*account
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{
		accounts: make(map[domain.Principal]*account),
	}
}

func (l *Ledger) lookup(owner domain.Principal) (*account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.accounts[owner]
	return a, ok
}

// getOrCreate returns the owner's account, creating one if needed.
func (l *Ledger) getOrCreate(owner domain.Principal) *account {
	if a, ok := l.lookup(owner); ok {
		return a
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Double-check after acquiring write lock.
	if a, ok := l.accounts[owner]; ok {
		return a
	}
	a := &account{balances: make(map[domain.Token]uint64)}
	l.accounts[owner] = a
	return a
}

// Credit increases the owner's balance of token by amount.
func (l *Ledger) Credit(owner domain.Principal, token domain.Token, amount uint64) error {
	if amount == 0 {
		return &domain.ValidationError{Message: "amount must be > 0"}
	}
	a := l.getOrCreate(owner)
	a.mu.Lock()
	defer a.mu.Unlock()

	cur := a.balances[token]
	if cur > math.MaxUint64-amount {
		return domain.ErrBalanceOverflow
	}
	a.balances[token] = cur + amount
	return nil
}

// Debit decreases the owner's balance of token by amount, or returns
// ErrBalanceLow without mutating anything if the balance is short.
func (l *Ledger) Debit(owner domain.Principal, token domain.Token, amount uint64) error {
	if amount == 0 {
		return &domain.ValidationError{Message: "amount must be > 0"}
	}
	a, ok := l.lookup(owner)
	if !ok {
		return domain.ErrBalanceLow
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	cur := a.balances[token]
	if cur < amount {
		return domain.ErrBalanceLow
	}
	if cur == amount {
		delete(a.balances, token)
	} else {
		a.balances[token] = cur - amount
	}
	return nil
}

// CreditAll applies a batch of credits atomically: either every entry is
// applied or, on overflow, none is. All touched accounts are locked in
// principal order for the duration of the batch.
func (l *Ledger) CreditAll(entries []domain.Balance) error {
	if len(entries) == 0 {
		return nil
	}

	type key struct {
		owner domain.Principal
		token domain.Token
	}
	sums := make(map[key]uint64, len(entries))
	owners := make([]domain.Principal, 0, len(entries))
	for _, e := range entries {
		if e.Amount == 0 {
			continue
		}
		k := key{e.Owner, e.Token}
		if sums[k] > math.MaxUint64-e.Amount {
			return domain.ErrBalanceOverflow
		}
		if _, seen := sums[k]; !seen {
			owners = append(owners, e.Owner)
		}
		sums[k] += e.Amount
	}

	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	locked := make(map[domain.Principal]*account, len(owners))
	for _, o := range owners {
		if _, ok := locked[o]; ok {
			continue
		}
		a := l.getOrCreate(o)
		a.mu.Lock()
		defer a.mu.Unlock()
		locked[o] = a
	}

	for k, amt := range sums {
		if locked[k.owner].balances[k.token] > math.MaxUint64-amt {
			return domain.ErrBalanceOverflow
		}
	}
	for k, amt := range sums {
		locked[k.owner].balances[k.token] += amt
	}
	return nil
}

// BalanceOf returns the owner's balance of token, 0 if absent.
func (l *Ledger) BalanceOf(owner domain.Principal, token domain.Token) uint64 {
	a, ok := l.lookup(owner)
	if !ok {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balances[token]
}

// Balances returns the owner's non-zero balances ordered by token.
func (l *Ledger) Balances(owner domain.Principal) []domain.Balance {
	a, ok := l.lookup(owner)
	if !ok {
		return []domain.Balance{}
	}
	a.mu.Lock()
	out := make([]domain.Balance, 0, len(a.balances))
	for token, amt := range a.balances {
		out = append(out, domain.Balance{Owner: owner, Token: token, Amount: amt})
	}
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

// All returns every non-zero balance ordered by owner, then token.
func (l *Ledger) All() []domain.Balance {
	l.mu.RLock()
	owners := make([]domain.Principal, 0, len(l.accounts))
	for o := range l.accounts {
		owners = append(owners, o)
	}
	l.mu.RUnlock()

	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	out := make([]domain.Balance, 0, len(owners))
	for _, o := range owners {
		out = append(out, l.Balances(o)...)
	}
	return out
}

// Totals sums balances per token across all owners.
func (l *Ledger) Totals() map[domain.Token]uint64 {
	totals := make(map[domain.Token]uint64)
	for _, b := range l.All() {
		totals[b.Token] += b.Amount
	}
	return totals
}

// Reset drops every balance.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts = make(map[domain.Principal]*account)
}

// Restore replaces the ledger's contents with the given balances.
func (l *Ledger) Restore(balances []domain.Balance) {
	accounts := make(map[domain.Principal]*account)
	for _, b := range balances {
		if b.Amount == 0 {
			continue
		}
		a, ok := accounts[b.Owner]
		if !ok {
			a = &account{balances: make(map[domain.Token]uint64)}
			accounts[b.Owner] = a
		}
		a.balances[b.Token] = b.Amount
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts = accounts
}
