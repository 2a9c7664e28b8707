// Package escrow moves funds between external token ledgers and the
// exchange ledger without ever letting the local ledger overstate what
// custody actually holds.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/tokenswap/internal/domain"
	"github.com/efreitasn/tokenswap/internal/events"
	"github.com/efreitasn/tokenswap/internal/ledger"
	"github.com/efreitasn/tokenswap/internal/transfer"
)

// publishTimeout bounds best-effort event delivery.
const publishTimeout = 5 * time.Second

// Gateway implements deposit and withdraw on top of a transfer.Ledger.
//
// Local ledger steps run under locker, which the caller shares with every
// other state-changing operation. The lock is released while a remote
// transfer is in flight so other operations can proceed.
type Gateway struct {
	ledger    *ledger.Ledger
	remote    transfer.Ledger
	journal   *Journal
	publisher events.Publisher
	locker    sync.Locker
	logger    *slog.Logger
	exchange  domain.Principal
	now       func() time.Time
}

// NewGateway creates a new Gateway with the given dependencies.
func NewGateway(
	l *ledger.Ledger,
	remote transfer.Ledger,
	journal *Journal,
	publisher events.Publisher,
	locker sync.Locker,
	logger *slog.Logger,
	exchange domain.Principal,
) *Gateway {
	return &Gateway{
		ledger:    l,
		remote:    remote,
		journal:   journal,
		publisher: publisher,
		locker:    locker,
		logger:    logger,
		exchange:  exchange,
		now:       time.Now,
	}
}

// Deposit pulls funds from the owner's external account into custody and
// credits the owner with the confirmed amount. hint is the requested
// amount; 0 lets the remote side move whatever is available.
//
// Nothing is credited unless the remote ledger confirms the transfer. A
// confirmation whose amount differs from a non-zero hint credits nothing
// and opens a reconciliation entry for the hinted amount.
func (g *Gateway) Deposit(ctx context.Context, owner domain.Principal, token domain.Token, hint uint64) (uint64, error) {
	memo := uuid.New().String()

	amount, err := g.remote.TransferIn(ctx, token, owner, hint, memo)
	if err != nil {
		if errors.Is(transfer.Classify(err), transfer.ErrUnconfirmed) {
			g.unconfirmed(memo, domain.DirectionDeposit, owner, token, hint, err)
		}
		return 0, fmt.Errorf("%w: %w", domain.ErrTransferFailure, err)
	}
	if hint != 0 && amount != hint {
		err := fmt.Errorf("%w: transfer-in confirmed %d of %d requested", transfer.ErrUnconfirmed, amount, hint)
		g.unconfirmed(memo, domain.DirectionDeposit, owner, token, hint, err)
		return 0, fmt.Errorf("%w: %w", domain.ErrTransferFailure, err)
	}
	if amount == 0 {
		return 0, nil
	}

	g.locker.Lock()
	err = g.ledger.Credit(owner, token, amount)
	g.locker.Unlock()
	if err != nil {
		// Custody holds the funds but the owner cannot be credited.
		g.unconfirmed(memo, domain.DirectionDeposit, owner, token, amount, err)
		return 0, fmt.Errorf("%w: %w", domain.ErrTransferFailure, err)
	}
	return amount, nil
}

// Withdraw debits the owner, then pushes the funds to the owner's
// external account.
//
// The debit commits before the remote call so concurrent operations see
// the reduced balance. A rejected transfer is compensated by re-crediting
// the full amount. An unconfirmed transfer keeps the funds held and opens
// a reconciliation entry instead.
//
// The remote side may confirm less than was asked. The part that never
// left custody is re-credited and the moved amount returned; a confirmed
// zero fails like a rejection. A confirmation for more than was debited
// is treated as unconfirmed.
func (g *Gateway) Withdraw(ctx context.Context, owner domain.Principal, token domain.Token, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, &domain.ValidationError{Message: "amount must be > 0"}
	}

	g.locker.Lock()
	err := g.ledger.Debit(owner, token, amount)
	g.locker.Unlock()
	if err != nil {
		return 0, err
	}

	memo := uuid.New().String()
	sent, err := g.remote.TransferOut(ctx, token, owner, amount, memo)
	switch {
	case err == nil && sent == amount:
		return sent, nil
	case err == nil && sent > amount:
		err = fmt.Errorf("%w: transfer-out confirmed %d of %d requested", transfer.ErrUnconfirmed, sent, amount)
		g.unconfirmed(memo, domain.DirectionWithdraw, owner, token, amount, err)
		return 0, fmt.Errorf("%w: %w", domain.ErrTransferFailure, err)
	case err == nil:
		if !g.refund(memo, owner, token, amount-sent) {
			return sent, fmt.Errorf("%w: refund of unsent %d failed", domain.ErrTransferFailure, amount-sent)
		}
		if sent == 0 {
			return 0, fmt.Errorf("%w: transfer-out confirmed nothing", domain.ErrTransferFailure)
		}
		return sent, nil
	case errors.Is(transfer.Classify(err), transfer.ErrUnconfirmed):
		g.unconfirmed(memo, domain.DirectionWithdraw, owner, token, amount, err)
		return 0, fmt.Errorf("%w: %w", domain.ErrTransferFailure, err)
	}

	g.refund(memo, owner, token, amount)
	return 0, fmt.Errorf("%w: %w", domain.ErrTransferFailure, err)
}

// refund re-credits funds a withdrawal debited but never moved. A failed
// credit leaves them held under a reconciliation entry.
func (g *Gateway) refund(memo string, owner domain.Principal, token domain.Token, amount uint64) bool {
	g.locker.Lock()
	err := g.ledger.Credit(owner, token, amount)
	g.locker.Unlock()
	if err == nil {
		return true
	}
	g.logger.Error("withdraw compensation failed",
		"owner", owner, "token", token, "amount", amount, "error", err)
	g.unconfirmed(memo, domain.DirectionWithdraw, owner, token, amount, err)
	return false
}

// DepositAddress returns the account identifier owner deposits into.
func (g *Gateway) DepositAddress(owner domain.Principal) ([]byte, error) {
	return domain.DepositAddress(g.exchange, owner)
}

// Reconciliations lists every journal entry, oldest first.
func (g *Gateway) Reconciliations() []domain.Reconciliation {
	return g.journal.List()
}

// Resolve records the operator's verdict on an unconfirmed transfer and
// applies its effect on the ledger:
//   - a reverted withdrawal re-credits the held amount;
//   - a confirmed deposit with a known amount credits it.
//
// Other combinations leave the ledger unchanged.
func (g *Gateway) Resolve(id string, outcome domain.ReconciliationOutcome) (domain.Reconciliation, error) {
	if outcome != domain.OutcomeConfirmed && outcome != domain.OutcomeReverted {
		return domain.Reconciliation{}, &domain.ValidationError{Message: "outcome must be confirmed or reverted"}
	}

	now := g.now()
	resolved := domain.Reconciliation{Outcome: outcome, ResolvedAt: &now}

	g.locker.Lock()
	defer g.locker.Unlock()

	return g.journal.settle(id, resolved, func(r domain.Reconciliation) error {
		credit := (r.Direction == domain.DirectionWithdraw && outcome == domain.OutcomeReverted) ||
			(r.Direction == domain.DirectionDeposit && outcome == domain.OutcomeConfirmed)
		if !credit || r.Amount == 0 {
			return nil
		}
		return g.ledger.Credit(r.Owner, r.Token, r.Amount)
	})
}

// unconfirmed journals a transfer whose outcome is unknown. It never
// fails the caller; a journal write error is logged alongside the entry.
func (g *Gateway) unconfirmed(id string, dir domain.TransferDirection, owner domain.Principal, token domain.Token, amount uint64, cause error) {
	r := domain.Reconciliation{
		ID:        id,
		Direction: dir,
		Owner:     owner,
		Token:     token,
		Amount:    amount,
		Cause:     cause.Error(),
		CreatedAt: g.now(),
	}
	attrs := []any{
		"reconciliation_id", r.ID,
		"direction", r.Direction,
		"owner", r.Owner,
		"token", r.Token,
		"amount", r.Amount,
		"error", cause,
	}
	if err := g.journal.Open(r); err != nil {
		g.logger.Error("reconciliation journal write failed", append(attrs, "journal_error", err)...)
	}
	g.logger.Error("transfer unconfirmed, manual reconciliation required", attrs...)

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	e := events.TransferUnconfirmed(r.ID, string(r.Direction), owner, token, amount, r.CreatedAt)
	if err := g.publisher.Publish(ctx, e); err != nil {
		g.logger.Warn("event publish failed", "type", e.Type, "error", err)
	}
}
