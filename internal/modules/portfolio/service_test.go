package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/modules/ledger"
	"github.com/TNT-747/investtrack/internal/modules/trading"
	"github.com/TNT-747/investtrack/internal/pkg/retry"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type mapDirectory struct {
	assets map[string]domain.Asset
	err    error
}

func (m *mapDirectory) Lookup(_ context.Context, symbol string) (*domain.Asset, error) {
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.assets[symbol]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *mapDirectory) set(symbol, price string, assetType domain.AssetType) {
	m.assets[symbol] = domain.Asset{Symbol: symbol, Name: symbol + " Inc", Type: assetType, CurrentPrice: d(price)}
}

type fixture struct {
	store    *ledger.MemoryStore
	dir      *mapDirectory
	executor *trading.Executor
	service  *PortfolioService
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: ledger.NewMemoryStore(),
		dir:   &mapDirectory{assets: map[string]domain.Asset{}},
		clock: time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC),
	}
	f.store.SetClock(func() time.Time { return f.clock })
	f.dir.set("AAPL", "100", domain.AssetTypeStock)
	f.dir.set("BTC", "50000", domain.AssetTypeCrypto)
	f.dir.set("GOLD", "2000", domain.AssetTypeCommodity)

	cfg := retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	f.executor = trading.NewExecutor(f.dir, f.store, nil, cfg, zerolog.Nop())
	f.service = NewPortfolioService(f.store, f.dir, trading.NewAuditor(f.store, zerolog.Nop()), 0, zerolog.Nop())
	f.service.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) trade(t *testing.T, user, symbol string, side domain.TradeSide, qty string) {
	t.Helper()
	_, err := f.executor.ExecuteTrade(context.Background(), trading.TradeRequest{
		UserID: user, Symbol: symbol, Side: side, Quantity: d(qty),
	})
	require.NoError(t, err)
}

func TestNewPortfolioService_DefaultHistory(t *testing.T) {
	s := NewPortfolioService(ledger.NewMemoryStore(), &mapDirectory{}, nil, -1, zerolog.Nop())
	assert.Equal(t, DefaultHistoryDays, s.HistoryDays())
}

func TestGetPortfolio_ActiveOnlySorted(t *testing.T) {
	f := newFixture(t)
	f.trade(t, "u1", "GOLD", domain.SideBuy, "1")
	f.trade(t, "u1", "BTC", domain.SideBuy, "0.5")
	f.trade(t, "u1", "AAPL", domain.SideBuy, "3")
	f.trade(t, "u1", "BTC", domain.SideSell, "0.5")
	f.trade(t, "u2", "AAPL", domain.SideBuy, "9")

	holdings, err := f.service.GetPortfolio(context.Background(), "u1")

	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "AAPL", holdings[0].AssetSymbol)
	assert.Equal(t, "GOLD", holdings[1].AssetSymbol)
}

func TestGetPortfolio_UnknownUserIsEmpty(t *testing.T) {
	f := newFixture(t)

	holdings, err := f.service.GetPortfolio(context.Background(), "nobody")

	require.NoError(t, err)
	assert.NotNil(t, holdings)
	assert.Empty(t, holdings)
}

func TestGetTransactions_Window(t *testing.T) {
	f := newFixture(t)
	start := f.clock

	f.clock = start.AddDate(0, 0, -40)
	f.trade(t, "u1", "AAPL", domain.SideBuy, "1")
	f.clock = start.AddDate(0, 0, -10)
	f.trade(t, "u1", "AAPL", domain.SideBuy, "2")
	f.clock = start.AddDate(0, 0, -1)
	f.trade(t, "u1", "AAPL", domain.SideSell, "1")
	f.clock = start

	txs, err := f.service.GetTransactions(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.SideSell, txs[0].Type, "newest first")
	assert.True(t, d("2").Equal(txs[1].Quantity))

	txs, err = f.service.GetTransactions(context.Background(), "u1", 60)
	require.NoError(t, err)
	assert.Len(t, txs, 3)

	txs, err = f.service.GetTransactions(context.Background(), "u1", 5)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestGetSummary(t *testing.T) {
	f := newFixture(t)
	f.trade(t, "u1", "AAPL", domain.SideBuy, "10") // cost 1000
	f.trade(t, "u1", "BTC", domain.SideBuy, "0.1") // cost 5000

	f.dir.set("AAPL", "150", domain.AssetTypeStock)
	f.dir.set("BTC", "40000", domain.AssetTypeCrypto)

	summary, err := f.service.GetSummary(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, summary.Positions, 2)

	aapl := summary.Positions[0]
	assert.Equal(t, "AAPL", aapl.Symbol)
	assert.True(t, aapl.Priced)
	assert.True(t, d("1500").Equal(aapl.MarketValue))
	assert.True(t, d("1000").Equal(aapl.CostBasis))
	assert.True(t, d("500").Equal(aapl.UnrealizedPnL))
	assert.True(t, d("50").Equal(aapl.UnrealizedPct))

	btc := summary.Positions[1]
	assert.True(t, d("4000").Equal(btc.MarketValue))
	assert.True(t, d("-1000").Equal(btc.UnrealizedPnL))
	assert.True(t, d("-20").Equal(btc.UnrealizedPct))

	assert.True(t, d("5500").Equal(summary.TotalMarketValue))
	assert.True(t, d("6000").Equal(summary.TotalCostBasis))
	assert.True(t, d("-500").Equal(summary.TotalUnrealizedPnL))
	assert.True(t, d("-8.33").Equal(summary.TotalUnrealizedPct))
	assert.True(t, d("27.27").Equal(aapl.Allocation))
	assert.True(t, d("4000").Equal(summary.ByType[domain.AssetTypeCrypto]))
}

func TestGetSummary_UnlistedAssetValuedAtCost(t *testing.T) {
	f := newFixture(t)
	f.trade(t, "u1", "GOLD", domain.SideBuy, "2")
	delete(f.dir.assets, "GOLD")

	summary, err := f.service.GetSummary(context.Background(), "u1")

	require.NoError(t, err)
	require.Len(t, summary.Positions, 1)
	assert.False(t, summary.Positions[0].Priced)
	assert.True(t, d("4000").Equal(summary.Positions[0].MarketValue))
	assert.True(t, summary.TotalUnrealizedPnL.IsZero())
}

func TestGetSummary_DirectoryUnavailable(t *testing.T) {
	f := newFixture(t)
	f.trade(t, "u1", "AAPL", domain.SideBuy, "1")
	f.dir.err = errors.New("database is locked")

	_, err := f.service.GetSummary(context.Background(), "u1")

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestGetSummary_Empty(t *testing.T) {
	f := newFixture(t)

	summary, err := f.service.GetSummary(context.Background(), "u1")

	require.NoError(t, err)
	assert.Empty(t, summary.Positions)
	assert.True(t, summary.TotalUnrealizedPct.IsZero())
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	f.trade(t, "u1", "AAPL", domain.SideBuy, "4")
	f.trade(t, "u1", "AAPL", domain.SideSell, "1")

	report, err := f.service.Verify(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 1, report.PositionsChecked)

	h, err := f.store.GetHolding(context.Background(), "u1", "AAPL")
	require.NoError(t, err)
	h.AverageBuyPrice = d("1")
	f.store.PutHolding(*h)

	report, err = f.service.Verify(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1/AAPL"}, report.Keys())
}
