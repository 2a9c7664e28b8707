// Package transfer moves tokens between a principal's account on an
// external token ledger and the exchange's custody account.
package transfer

import (
	"context"
	"errors"

	"github.com/efreitasn/tokenswap/internal/domain"
)

// Outcomes other than success. A rejected transfer definitely did not
// happen; an unconfirmed one may or may not have.
var (
	ErrRejected    = errors.New("transfer rejected")
	ErrUnconfirmed = errors.New("transfer unconfirmed")
)

// Ledger is the transfer-in/transfer-out capability offered by external
// token ledgers. memo is an idempotency key the remote side may use to
// deduplicate retries. Both calls return the amount actually moved.
type Ledger interface {
	// TransferIn moves amount of token from the principal into custody.
	// An amount of 0 asks the remote side to move whatever the principal
	// has made available.
	TransferIn(ctx context.Context, token domain.Token, from domain.Principal, amount uint64, memo string) (uint64, error)
	// TransferOut moves amount of token out of custody to the principal.
	TransferOut(ctx context.Context, token domain.Token, to domain.Principal, amount uint64, memo string) (uint64, error)
}
