package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/efreitasn/tokenswap/internal/domain"
)

// Key layout. Each entity kind lives under its own prefix so a snapshot can
// replace one kind with a single range deletion.
var (
	prefixBalance = []byte("balance/")
	prefixOrder   = []byte("order/")
	prefixTrade   = []byte("trade/")
	prefixRecon   = []byte("recon/")
	keyNextID     = []byte("meta/next_id")
	keySavedAt    = []byte("meta/saved_at")
)

// Snapshot is the full exchange state at one point in time.
type Snapshot struct {
	Balances []domain.Balance
	Orders   []domain.Order
	Trades   []*domain.Trade
	NextID   uint64
	SavedAt  time.Time
}

// PebbleStore persists snapshots and the reconciliation journal in a
// Pebble database.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebble opens (creating if needed) the database in dir.
func OpenPebble(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(32 << 20),
		MemTableSize: 16 << 20,
		MaxOpenFiles: 500,
		BytesPerSync: 512 << 10,
	}
	defer opts.Cache.Unref()

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dir, err)
	}
	return &PebbleStore{db: db}, nil
}

// Close closes the database.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

type balanceRecord struct {
	Owner  string `json:"owner"`
	Token  string `json:"token"`
	Amount uint64 `json:"amount"`
}

type orderRecord struct {
	ID         uint64     `json:"id"`
	Owner      string     `json:"owner"`
	From       string     `json:"from"`
	To         string     `json:"to"`
	FromAmount uint64     `json:"from_amount"`
	Remaining  uint64     `json:"remaining"`
	ToAmount   uint64     `json:"to_amount"`
	Submitted  uint64     `json:"submitted"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

type tradeRecord struct {
	TradeID    string    `json:"trade_id"`
	TakerOrder uint64    `json:"taker_order"`
	MakerOrder uint64    `json:"maker_order"`
	Taker      string    `json:"taker"`
	Maker      string    `json:"maker"`
	TakerToken string    `json:"taker_token"`
	MakerToken string    `json:"maker_token"`
	TakerGave  uint64    `json:"taker_gave"`
	MakerGave  uint64    `json:"maker_gave"`
	ExecutedAt time.Time `json:"executed_at"`
}

type reconRecord struct {
	ID         string     `json:"id"`
	Direction  string     `json:"direction"`
	Owner      string     `json:"owner"`
	Token      string     `json:"token"`
	Amount     uint64     `json:"amount"`
	Cause      string     `json:"cause"`
	CreatedAt  time.Time  `json:"created_at"`
	Outcome    string     `json:"outcome,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// SaveSnapshot atomically replaces the stored balances, orders, fills and
// id sequence with snap.
func (s *PebbleStore) SaveSnapshot(snap Snapshot) error {
	b := s.db.NewBatch()
	defer b.Close()

	for _, p := range [][]byte{prefixBalance, prefixOrder, prefixTrade} {
		if err := b.DeleteRange(p, keyUpperBound(p), nil); err != nil {
			return fmt.Errorf("failed to clear %s: %w", p, err)
		}
	}

	for _, bal := range snap.Balances {
		rec := balanceRecord{Owner: string(bal.Owner), Token: string(bal.Token), Amount: bal.Amount}
		if err := setJSON(b, balanceKey(bal.Owner, bal.Token), rec); err != nil {
			return err
		}
	}
	for _, o := range snap.Orders {
		if err := setJSON(b, orderKey(o.ID), toOrderRecord(o)); err != nil {
			return err
		}
	}
	for _, t := range snap.Trades {
		if err := setJSON(b, tradeKey(t.TradeID), toTradeRecord(t)); err != nil {
			return err
		}
	}

	if err := b.Set(keyNextID, binary.BigEndian.AppendUint64(nil, snap.NextID), nil); err != nil {
		return fmt.Errorf("failed to save next id: %w", err)
	}
	savedAt, err := snap.SavedAt.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot time: %w", err)
	}
	if err := b.Set(keySavedAt, savedAt, nil); err != nil {
		return fmt.Errorf("failed to save snapshot time: %w", err)
	}

	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the last saved snapshot. ok is false if none exists.
func (s *PebbleStore) LoadSnapshot() (snap Snapshot, ok bool, err error) {
	next, closer, err := s.db.Get(keyNextID)
	if errors.Is(err, pebble.ErrNotFound) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to get next id: %w", err)
	}
	if len(next) != 8 {
		closer.Close()
		return Snapshot{}, false, fmt.Errorf("corrupt next id: %d bytes", len(next))
	}
	snap.NextID = binary.BigEndian.Uint64(next)
	closer.Close()

	if raw, closer, err := s.db.Get(keySavedAt); err == nil {
		_ = snap.SavedAt.UnmarshalBinary(raw)
		closer.Close()
	}

	err = scanJSON(s.db, prefixBalance, func(rec balanceRecord) {
		snap.Balances = append(snap.Balances, domain.Balance{
			Owner: domain.Principal(rec.Owner), Token: domain.Token(rec.Token), Amount: rec.Amount,
		})
	})
	if err != nil {
		return Snapshot{}, false, err
	}
	err = scanJSON(s.db, prefixOrder, func(rec orderRecord) {
		snap.Orders = append(snap.Orders, fromOrderRecord(rec))
	})
	if err != nil {
		return Snapshot{}, false, err
	}
	err = scanJSON(s.db, prefixTrade, func(rec tradeRecord) {
		snap.Trades = append(snap.Trades, fromTradeRecord(rec))
	})
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// SaveReconciliation writes one journal entry durably.
func (s *PebbleStore) SaveReconciliation(r domain.Reconciliation) error {
	rec := reconRecord{
		ID:         r.ID,
		Direction:  string(r.Direction),
		Owner:      string(r.Owner),
		Token:      string(r.Token),
		Amount:     r.Amount,
		Cause:      r.Cause,
		CreatedAt:  r.CreatedAt,
		Outcome:    string(r.Outcome),
		ResolvedAt: r.ResolvedAt,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal reconciliation: %w", err)
	}
	if err := s.db.Set(reconKey(r.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save reconciliation: %w", err)
	}
	return nil
}

// LoadReconciliations returns every stored journal entry.
func (s *PebbleStore) LoadReconciliations() ([]domain.Reconciliation, error) {
	var out []domain.Reconciliation
	err := scanJSON(s.db, prefixRecon, func(rec reconRecord) {
		out = append(out, domain.Reconciliation{
			ID:         rec.ID,
			Direction:  domain.TransferDirection(rec.Direction),
			Owner:      domain.Principal(rec.Owner),
			Token:      domain.Token(rec.Token),
			Amount:     rec.Amount,
			Cause:      rec.Cause,
			CreatedAt:  rec.CreatedAt,
			Outcome:    domain.ReconciliationOutcome(rec.Outcome),
			ResolvedAt: rec.ResolvedAt,
		})
	})
	return out, err
}

func setJSON(b *pebble.Batch, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := b.Set(key, data, nil); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// scanJSON decodes every value under prefix, in key order.
func scanJSON[T any](db *pebble.DB, prefix []byte, fn func(T)) error {
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to iterate %s: %w", prefix, err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var v T
		if err := json.Unmarshal(iter.Value(), &v); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", iter.Key(), err)
		}
		fn(v)
	}
	return iter.Error()
}

func balanceKey(owner domain.Principal, token domain.Token) []byte {
	k := append([]byte{}, prefixBalance...)
	k = append(k, owner...)
	k = append(k, 0)
	return append(k, token...)
}

// orderKey encodes ids big-endian so keys sort by id.
func orderKey(id domain.OrderID) []byte {
	k := append([]byte{}, prefixOrder...)
	return binary.BigEndian.AppendUint64(k, uint64(id))
}

func tradeKey(id string) []byte {
	return append(append([]byte{}, prefixTrade...), id...)
}

func reconKey(id string) []byte {
	return append(append([]byte{}, prefixRecon...), id...)
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix.
func keyUpperBound(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func toOrderRecord(o domain.Order) orderRecord {
	return orderRecord{
		ID:         uint64(o.ID),
		Owner:      string(o.Owner),
		From:       string(o.From),
		To:         string(o.To),
		FromAmount: o.FromAmount,
		Remaining:  o.Remaining,
		ToAmount:   o.ToAmount,
		Submitted:  o.Submitted,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt,
		ClosedAt:   o.ClosedAt,
	}
}

func fromOrderRecord(r orderRecord) domain.Order {
	return domain.Order{
		ID:         domain.OrderID(r.ID),
		Owner:      domain.Principal(r.Owner),
		From:       domain.Token(r.From),
		To:         domain.Token(r.To),
		FromAmount: r.FromAmount,
		Remaining:  r.Remaining,
		ToAmount:   r.ToAmount,
		Submitted:  r.Submitted,
		Status:     domain.OrderStatus(r.Status),
		CreatedAt:  r.CreatedAt,
		ClosedAt:   r.ClosedAt,
	}
}

func toTradeRecord(t *domain.Trade) tradeRecord {
	return tradeRecord{
		TradeID:    t.TradeID,
		TakerOrder: uint64(t.TakerOrder),
		MakerOrder: uint64(t.MakerOrder),
		Taker:      string(t.Taker),
		Maker:      string(t.Maker),
		TakerToken: string(t.TakerToken),
		MakerToken: string(t.MakerToken),
		TakerGave:  t.TakerGave,
		MakerGave:  t.MakerGave,
		ExecutedAt: t.ExecutedAt,
	}
}

func fromTradeRecord(r tradeRecord) *domain.Trade {
	return &domain.Trade{
		TradeID:    r.TradeID,
		TakerOrder: domain.OrderID(r.TakerOrder),
		MakerOrder: domain.OrderID(r.MakerOrder),
		Taker:      domain.Principal(r.Taker),
		Maker:      domain.Principal(r.Maker),
		TakerToken: domain.Token(r.TakerToken),
		MakerToken: domain.Token(r.MakerToken),
		TakerGave:  r.TakerGave,
		MakerGave:  r.MakerGave,
		ExecutedAt: r.ExecutedAt,
	}
}
