package trading

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/events"
	"github.com/TNT-747/investtrack/internal/modules/ledger"
	"github.com/TNT-747/investtrack/internal/pkg/retry"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeDirectory is an AssetDirectory with settable prices
type fakeDirectory struct {
	mu     sync.RWMutex
	assets map[string]domain.Asset
	err    error
}

func newFakeDirectory(prices map[string]string) *fakeDirectory {
	dir := &fakeDirectory{assets: make(map[string]domain.Asset)}
	for symbol, price := range prices {
		dir.assets[symbol] = domain.Asset{
			Symbol:       symbol,
			Name:         symbol,
			Type:         domain.AssetTypeStock,
			CurrentPrice: d(price),
		}
	}
	return dir
}

func (f *fakeDirectory) Lookup(_ context.Context, symbol string) (*domain.Asset, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.assets[symbol]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (f *fakeDirectory) setPrice(symbol, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.assets[symbol]
	a.CurrentPrice = d(price)
	f.assets[symbol] = a
}

// recordingEmitter captures emitted event data
type recordingEmitter struct {
	mu   sync.Mutex
	data []events.EventData
}

func (r *recordingEmitter) Emit(_ string, data events.EventData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, data)
}

func (r *recordingEmitter) ofType(t events.EventType) []events.EventData {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.EventData
	for _, e := range r.data {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// conflictingStore wraps a Store and fails the first n commits with ErrConflict
type conflictingStore struct {
	ledger.Store
	mu        sync.Mutex
	conflicts int
	commits   int
}

func (c *conflictingStore) CommitTrade(ctx context.Context, prev *domain.Holding, next domain.Holding, tx domain.Transaction) (domain.Holding, domain.Transaction, error) {
	c.mu.Lock()
	c.commits++
	if c.conflicts != 0 {
		if c.conflicts > 0 {
			c.conflicts--
		}
		c.mu.Unlock()
		return domain.Holding{}, domain.Transaction{}, ledger.ErrConflict
	}
	c.mu.Unlock()
	return c.Store.CommitTrade(ctx, prev, next, tx)
}

func fastRetry(maxRetries int) retry.Config {
	return retry.Config{MaxRetries: maxRetries, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Jitter: true}
}

func newTestExecutor(t *testing.T, store ledger.Store, dir AssetDirectory) (*Executor, *recordingEmitter) {
	t.Helper()
	emitter := &recordingEmitter{}
	return NewExecutor(dir, store, emitter, fastRetry(5), zerolog.Nop()), emitter
}

func buyReq(user, symbol, qty string) TradeRequest {
	return TradeRequest{UserID: user, Symbol: symbol, Side: domain.SideBuy, Quantity: d(qty)}
}

func sellReq(user, symbol, qty string) TradeRequest {
	return TradeRequest{UserID: user, Symbol: symbol, Side: domain.SideSell, Quantity: d(qty)}
}

func decimalFromUnits(units int64, scale int32) decimal.Decimal {
	return decimal.New(units, -scale)
}

func isKind(err error, kind domain.ErrorKind) bool {
	return domain.KindOf(err) == kind
}
