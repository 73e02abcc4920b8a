package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/TNT-747/investtrack/internal/domain"
)

// MemoryStore is an in-process Store with the same commit semantics as the SQL stores.
// Nothing in the service wires it; unit and property tests use it in place of a database.
type MemoryStore struct {
	mu           sync.RWMutex
	holdings     map[PositionKey]domain.Holding
	transactions []domain.Transaction
	references   map[string]int // userID + "\x00" + reference -> index into transactions
	nextHolding  int64
	now          func() time.Time
	failure      error
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory ledger
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		holdings:   make(map[PositionKey]domain.Holding),
		references: make(map[string]int),
		now:        time.Now,
	}
}

// SetClock overrides the commit timestamp source
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetFailure makes every later call fail with err wrapped as StoreUnavailable.
// A nil err restores normal operation.
func (m *MemoryStore) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

func (m *MemoryStore) check(ctx context.Context) error {
	m.mu.RLock()
	failure := m.failure
	m.mu.RUnlock()

	if failure != nil {
		return Unavailable(failure)
	}
	if err := ctx.Err(); err != nil {
		return Unavailable(err)
	}
	return nil
}

// GetHolding returns a copy of the stored holding
func (m *MemoryStore) GetHolding(ctx context.Context, userID, symbol string) (*domain.Holding, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.holdings[PositionKey{UserID: userID, Symbol: symbol}]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

// CommitTrade compares prev against the stored version and appends tx
func (m *MemoryStore) CommitTrade(ctx context.Context, prev *domain.Holding, next domain.Holding, tx domain.Transaction) (domain.Holding, domain.Transaction, error) {
	if err := m.check(ctx); err != nil {
		return domain.Holding{}, domain.Transaction{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := PositionKey{UserID: next.UserID, Symbol: next.AssetSymbol}
	current, exists := m.holdings[key]
	switch {
	case prev == nil && exists:
		return domain.Holding{}, domain.Transaction{}, ErrConflict
	case prev != nil && (!exists || current.Version != prev.Version):
		return domain.Holding{}, domain.Transaction{}, ErrConflict
	}

	refKey := tx.UserID + "\x00" + tx.Reference
	if _, dup := m.references[refKey]; dup {
		return domain.Holding{}, domain.Transaction{}, ErrDuplicateReference
	}

	now := time.UnixMilli(m.now().UTC().UnixMilli()).UTC()
	if exists {
		next.ID = current.ID
		next.Version = current.Version + 1
	} else {
		m.nextHolding++
		next.ID = m.nextHolding
		next.Version = 1
	}
	next.UpdatedAt = now
	m.holdings[key] = next

	tx.ID = int64(len(m.transactions) + 1)
	tx.HoldingID = next.ID
	if tx.Timestamp.IsZero() {
		tx.Timestamp = now
	}
	m.transactions = append(m.transactions, tx)
	m.references[refKey] = len(m.transactions) - 1

	return next, tx, nil
}

// ListHoldings returns all holdings of a user ordered by symbol
func (m *MemoryStore) ListHoldings(ctx context.Context, userID string) ([]domain.Holding, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Holding, 0)
	for key, h := range m.holdings {
		if key.UserID == userID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetSymbol < out[j].AssetSymbol })
	return out, nil
}

// ListTransactions returns a user's transactions since the given time, newest first
func (m *MemoryStore) ListTransactions(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Transaction, 0)
	for i := len(m.transactions) - 1; i >= 0; i-- {
		tx := m.transactions[i]
		if tx.UserID == userID && !tx.Timestamp.Before(since) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// ReplayLog returns one position's transactions oldest first
func (m *MemoryStore) ReplayLog(ctx context.Context, userID, symbol string) ([]domain.Transaction, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Transaction, 0)
	for _, tx := range m.transactions {
		if tx.UserID == userID && tx.AssetSymbol == symbol {
			out = append(out, tx)
		}
	}
	return out, nil
}

// ReadPosition reads the holding and its log under one lock
func (m *MemoryStore) ReadPosition(ctx context.Context, userID, symbol string) (*domain.Holding, []domain.Transaction, error) {
	if err := m.check(ctx); err != nil {
		return nil, nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var holding *domain.Holding
	if h, ok := m.holdings[PositionKey{UserID: userID, Symbol: symbol}]; ok {
		holding = &h
	}
	txs := make([]domain.Transaction, 0)
	for _, tx := range m.transactions {
		if tx.UserID == userID && tx.AssetSymbol == symbol {
			txs = append(txs, tx)
		}
	}
	return holding, txs, nil
}

// FindByReference returns the transaction with the given reference
func (m *MemoryStore) FindByReference(ctx context.Context, userID, reference string) (*domain.Transaction, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.references[userID+"\x00"+reference]
	if !ok {
		return nil, nil
	}
	tx := m.transactions[idx]
	return &tx, nil
}

// ListPositionKeys returns every position ordered by user and symbol
func (m *MemoryStore) ListPositionKeys(ctx context.Context) ([]PositionKey, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]PositionKey, 0, len(m.holdings))
	for key := range m.holdings {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].UserID != keys[j].UserID {
			return keys[i].UserID < keys[j].UserID
		}
		return keys[i].Symbol < keys[j].Symbol
	})
	return keys, nil
}

// PutHolding overwrites a holding without logging a transaction. Tests use it to
// simulate corruption the audit must detect.
func (m *MemoryStore) PutHolding(h domain.Holding) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := PositionKey{UserID: h.UserID, Symbol: h.AssetSymbol}
	if current, ok := m.holdings[key]; ok {
		h.ID = current.ID
	} else {
		m.nextHolding++
		h.ID = m.nextHolding
	}
	m.holdings[key] = h
}
