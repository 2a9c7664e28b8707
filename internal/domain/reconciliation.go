package domain

import "time"

// TransferDirection tells whether funds were entering or leaving custody.
type TransferDirection string

const (
	DirectionDeposit  TransferDirection = "deposit"
	DirectionWithdraw TransferDirection = "withdraw"
)

// ReconciliationOutcome is the operator's verdict on an unconfirmed transfer.
type ReconciliationOutcome string

const (
	OutcomeConfirmed ReconciliationOutcome = "confirmed"
	OutcomeReverted  ReconciliationOutcome = "reverted"
)

// Reconciliation records an external transfer whose outcome could not be
// confirmed. For withdrawals Amount is still held out of the owner's
// balance until the entry is resolved. For deposits Amount may be 0 when
// no amount was requested.
type Reconciliation struct {
	ID         string
	Direction  TransferDirection
	Owner      Principal
	Token      Token
	Amount     uint64
	Cause      string
	CreatedAt  time.Time
	Outcome    ReconciliationOutcome // empty while open
	ResolvedAt *time.Time
}

// IsOpen reports whether the entry still awaits a verdict.
func (r *Reconciliation) IsOpen() bool {
	return r.Outcome == ""
}
