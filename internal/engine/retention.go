package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/efreitasn/tokenswap/internal/store"
)

// Janitor periodically purges filled and cancelled orders, with their
// fills, once they have been closed for longer than the retention period.
type Janitor struct {
	interval  time.Duration
	retention time.Duration
	book      *Book
	trades    *store.TradeStore
	logger    *slog.Logger
}

// NewJanitor creates a new Janitor with the given dependencies.
func NewJanitor(
	interval time.Duration,
	retention time.Duration,
	book *Book,
	trades *store.TradeStore,
	logger *slog.Logger,
) *Janitor {
	return &Janitor{
		interval:  interval,
		retention: retention,
		book:      book,
		trades:    trades,
		logger:    logger,
	}
}

// Start launches a background goroutine that ticks at the configured
// interval and purges expired orders. It stops when ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				j.tick(t)
			}
		}
	}()
}

// tick purges every terminal order closed at or before now-retention and
// returns how many were removed.
func (j *Janitor) tick(now time.Time) int {
	purged := j.book.Purge(now.Add(-j.retention))
	if len(purged) == 0 {
		return 0
	}
	j.trades.DeleteByOrder(purged...)
	j.logger.Debug("purged closed orders", "count", len(purged))
	return len(purged)
}
