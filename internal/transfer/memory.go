package transfer

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/efreitasn/tokenswap/internal/domain"
)

// MemoryLedger is an in-process stand-in for the external token ledgers.
// Each token keeps balances for principals and one custody balance for
// the exchange. Completed memos are remembered so a repeated call is a no-op
// returning the original amount.
type MemoryLedger struct {
	mu       sync.Mutex
	accounts map[domain.Token]map[domain.Principal]uint64
	custody  map[domain.Token]uint64
	memos    map[string]uint64
	failures []error
}

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		accounts: make(map[domain.Token]map[domain.Principal]uint64),
		custody:  make(map[domain.Token]uint64),
		memos:    make(map[string]uint64),
	}
}

// Mint gives a principal tokens on the external ledger.
func (l *MemoryLedger) Mint(token domain.Token, to domain.Principal, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.account(token)[to] += amount
}

// BalanceOf returns the principal's balance on the external ledger.
func (l *MemoryLedger) BalanceOf(token domain.Token, owner domain.Principal) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[token][owner]
}

// Custody returns the amount of token held by the exchange.
func (l *MemoryLedger) Custody(token domain.Token) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.custody[token]
}

// FailNext makes the next calls fail with the given errors, in order,
// without moving funds. Typically ErrRejected or ErrUnconfirmed.
func (l *MemoryLedger) FailNext(errs ...error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, errs...)
}

func (l *MemoryLedger) account(token domain.Token) map[domain.Principal]uint64 {
	acc, ok := l.accounts[token]
	if !ok {
		acc = make(map[domain.Principal]uint64)
		l.accounts[token] = acc
	}
	return acc
}

// injected pops the next scripted failure, if any.
func (l *MemoryLedger) injected() error {
	if len(l.failures) == 0 {
		return nil
	}
	err := l.failures[0]
	l.failures = l.failures[1:]
	return err
}

// TransferIn implements Ledger.
func (l *MemoryLedger) TransferIn(ctx context.Context, token domain.Token, from domain.Principal, amount uint64, memo string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("transfer-in %s: %w: %v", token, ErrUnconfirmed, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.injected(); err != nil {
		return 0, fmt.Errorf("transfer-in %s: %w", token, err)
	}
	if done, ok := l.memos[memo]; ok {
		return done, nil
	}

	acc := l.account(token)
	have := acc[from]
	if amount == 0 {
		amount = have
	}
	if amount == 0 || have < amount {
		return 0, fmt.Errorf("transfer-in %s: %w: insufficient funds", token, ErrRejected)
	}
	if l.custody[token] > math.MaxUint64-amount {
		return 0, fmt.Errorf("transfer-in %s: %w: custody overflow", token, ErrRejected)
	}
	acc[from] = have - amount
	l.custody[token] += amount
	l.memos[memo] = amount
	return amount, nil
}

// TransferOut implements Ledger.
func (l *MemoryLedger) TransferOut(ctx context.Context, token domain.Token, to domain.Principal, amount uint64, memo string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("transfer-out %s: %w: %v", token, ErrUnconfirmed, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.injected(); err != nil {
		return 0, fmt.Errorf("transfer-out %s: %w", token, err)
	}
	if done, ok := l.memos[memo]; ok {
		return done, nil
	}

	if amount == 0 || l.custody[token] < amount {
		return 0, fmt.Errorf("transfer-out %s: %w: insufficient custody", token, ErrRejected)
	}
	acc := l.account(token)
	if acc[to] > math.MaxUint64-amount {
		return 0, fmt.Errorf("transfer-out %s: %w: balance overflow", token, ErrRejected)
	}
	l.custody[token] -= amount
	acc[to] += amount
	l.memos[memo] = amount
	return amount, nil
}
