package escrow

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/efreitasn/tokenswap/internal/domain"
)

// JournalStore durably records reconciliation entries.
type JournalStore interface {
	SaveReconciliation(r domain.Reconciliation) error
}

// Journal tracks unconfirmed transfers awaiting an operator verdict.
// Every change is written through to the store, when one is set, before
// it becomes visible.
type Journal struct {
	mu      sync.RWMutex
	entries map[string]*domain.Reconciliation
	store   JournalStore
}

// NewJournal creates a journal seeded with previously persisted entries.
// store may be nil.
func NewJournal(store JournalStore, existing []domain.Reconciliation) *Journal {
	j := &Journal{
		entries: make(map[string]*domain.Reconciliation, len(existing)),
		store:   store,
	}
	for i := range existing {
		r := existing[i]
		j.entries[r.ID] = &r
	}
	return j
}

// Open records a new entry.
func (j *Journal) Open(r domain.Reconciliation) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.store != nil {
		if err := j.store.SaveReconciliation(r); err != nil {
			return fmt.Errorf("save reconciliation %s: %w", r.ID, err)
		}
	}
	j.entries[r.ID] = &r
	return nil
}

// Get returns a copy of the entry.
func (j *Journal) Get(id string) (domain.Reconciliation, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	r, ok := j.entries[id]
	if !ok {
		return domain.Reconciliation{}, domain.ErrReconciliationNotFound
	}
	return *r, nil
}

// List returns every entry, oldest first.
func (j *Journal) List() []domain.Reconciliation {
	j.mu.RLock()
	out := make([]domain.Reconciliation, 0, len(j.entries))
	for _, r := range j.entries {
		out = append(out, *r)
	}
	j.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out
}

// settle runs apply on an open entry and marks it resolved. If apply
// fails the entry stays open and the stored copy is rolled back; a failed
// rollback is reported with the apply error.
func (j *Journal) settle(id string, resolved domain.Reconciliation, apply func(domain.Reconciliation) error) (domain.Reconciliation, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	cur, ok := j.entries[id]
	if !ok {
		return domain.Reconciliation{}, domain.ErrReconciliationNotFound
	}
	if !cur.IsOpen() {
		return domain.Reconciliation{}, domain.ErrNotAllowed
	}

	next := *cur
	next.Outcome = resolved.Outcome
	next.ResolvedAt = resolved.ResolvedAt

	if j.store != nil {
		if err := j.store.SaveReconciliation(next); err != nil {
			return domain.Reconciliation{}, fmt.Errorf("save reconciliation %s: %w", id, err)
		}
	}
	if err := apply(*cur); err != nil {
		if j.store != nil {
			if rerr := j.store.SaveReconciliation(*cur); rerr != nil {
				err = errors.Join(err, fmt.Errorf("restore reconciliation %s: %w", id, rerr))
			}
		}
		return domain.Reconciliation{}, err
	}
	*cur = next
	return next, nil
}
