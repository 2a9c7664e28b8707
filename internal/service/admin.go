package service

import (
	"github.com/efreitasn/tokenswap/internal/domain"
)

func (e *Exchange) requireAdmin(caller domain.Principal) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if e.admin == "" || caller != e.admin {
		return domain.ErrNotAllowed
	}
	return nil
}

// Credit adds amount of token to owner's balance directly. Admin only.
func (e *Exchange) Credit(caller, owner domain.Principal, token domain.Token, amount uint64) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if owner == "" {
		return &domain.ValidationError{Message: "owner is required"}
	}
	if err := e.requireToken(token); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ledger.Credit(owner, token, amount); err != nil {
		return err
	}
	e.logger.Info("admin credit", "admin", caller, "owner", owner, "token", token, "amount", amount)
	return nil
}

// Clear wipes balances, orders and fills. Order ids keep increasing
// afterwards. Admin only.
func (e *Exchange) Clear(caller domain.Principal) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.ledger.Reset()
	e.book.Reset()
	e.trades.Reset()
	e.logger.Warn("exchange cleared", "admin", caller)
	return nil
}

// Reconciliations lists unconfirmed transfers, oldest first. Admin only.
func (e *Exchange) Reconciliations(caller domain.Principal) ([]domain.Reconciliation, error) {
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	return e.gateway.Reconciliations(), nil
}

// ResolveReconciliation records the verdict on an unconfirmed transfer.
// Admin only.
func (e *Exchange) ResolveReconciliation(caller domain.Principal, id string, outcome domain.ReconciliationOutcome) (domain.Reconciliation, error) {
	if err := e.requireAdmin(caller); err != nil {
		return domain.Reconciliation{}, err
	}
	r, err := e.gateway.Resolve(id, outcome)
	if err != nil {
		return domain.Reconciliation{}, err
	}
	e.logger.Info("reconciliation resolved",
		"reconciliation_id", r.ID, "outcome", r.Outcome, "owner", r.Owner, "token", r.Token, "amount", r.Amount)
	return r, nil
}
