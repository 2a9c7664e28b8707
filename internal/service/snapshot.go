package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/efreitasn/tokenswap/internal/domain"
	"github.com/efreitasn/tokenswap/internal/store"
)

// Snapshot captures balances, retained orders, fills and the id sequence
// at a single point in time.
func (e *Exchange) Snapshot() store.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := store.Snapshot{
		Balances: e.ledger.All(),
		Trades:   e.trades.All(),
		NextID:   e.book.NextID(),
		SavedAt:  time.Now(),
	}
	for o := range e.book.List() {
		snap.Orders = append(snap.Orders, o)
	}
	return snap
}

// Restore replaces the exchange state with snap.
func (e *Exchange) Restore(snap store.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ledger.Restore(snap.Balances)
	e.book.Restore(snap.Orders, snap.NextID)
	e.trades.Restore(snap.Trades, func(id domain.OrderID) bool {
		_, ok := e.book.Get(id)
		return ok
	})
}

// SnapshotStore persists snapshots.
type SnapshotStore interface {
	SaveSnapshot(snap store.Snapshot) error
}

// SnapshotJob periodically persists the exchange state.
type SnapshotJob struct {
	interval time.Duration
	exchange *Exchange
	store    SnapshotStore
	logger   *slog.Logger
}

// NewSnapshotJob creates a new SnapshotJob with the given dependencies.
func NewSnapshotJob(interval time.Duration, exchange *Exchange, store SnapshotStore, logger *slog.Logger) *SnapshotJob {
	return &SnapshotJob{
		interval: interval,
		exchange: exchange,
		store:    store,
		logger:   logger,
	}
}

// Start launches a background goroutine that saves a snapshot at the
// configured interval. It stops when ctx is cancelled; callers should
// Save once more on shutdown.
func (j *SnapshotJob) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := j.Save(); err != nil {
					j.logger.Error("snapshot failed", "error", err)
				}
			}
		}
	}()
}

// Save writes one snapshot.
func (j *SnapshotJob) Save() error {
	snap := j.exchange.Snapshot()
	if err := j.store.SaveSnapshot(snap); err != nil {
		return err
	}
	j.logger.Debug("snapshot saved",
		"balances", len(snap.Balances), "orders", len(snap.Orders), "trades", len(snap.Trades))
	return nil
}
