package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TNT-747/investtrack/internal/database"
	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/modules/assets"
	"github.com/TNT-747/investtrack/internal/modules/ledger"
	"github.com/TNT-747/investtrack/internal/modules/portfolio"
	"github.com/TNT-747/investtrack/internal/modules/trading"
	"github.com/TNT-747/investtrack/internal/pkg/retry"
	testingpkg "github.com/TNT-747/investtrack/internal/testing"
)

type env struct {
	router   *chi.Mux
	store    *ledger.MemoryStore
	executor *trading.Executor
}

func setup(t *testing.T) *env {
	t.Helper()
	universe, cleanup := testingpkg.NewTestDB(t, database.NameUniverse)
	t.Cleanup(cleanup)
	testingpkg.SeedAssets(t, universe)

	assetService := assets.NewService(assets.NewAssetRepository(universe.Conn(), 0, zerolog.Nop()), nil, zerolog.Nop())
	store := ledger.NewMemoryStore()
	cfg := retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	executor := trading.NewExecutor(assetService, store, nil, cfg, zerolog.Nop())
	service := portfolio.NewPortfolioService(store, assetService, trading.NewAuditor(store, zerolog.Nop()), 30, zerolog.Nop())

	router := chi.NewRouter()
	NewHandler(service, zerolog.Nop()).RegisterRoutes(router)
	return &env{router: router, store: store, executor: executor}
}

func (e *env) trade(t *testing.T, user, symbol string, side domain.TradeSide, qty string) {
	t.Helper()
	_, err := e.executor.ExecuteTrade(context.Background(), trading.TradeRequest{
		UserID: user, Symbol: symbol, Side: side, Quantity: decimal.RequireFromString(qty),
	})
	require.NoError(t, err)
}

func (e *env) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleGetPortfolio(t *testing.T) {
	e := setup(t)
	e.trade(t, "u1", "MSFT", domain.SideBuy, "2")
	e.trade(t, "u1", "AAPL", domain.SideBuy, "1")
	e.trade(t, "u1", "AAPL", domain.SideSell, "1")

	rec := e.get("/api/wallets/user/u1")

	require.Equal(t, http.StatusOK, rec.Code)
	var wallets []domain.WalletView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wallets))
	require.Len(t, wallets, 1, "drained holdings are hidden")
	assert.Equal(t, "MSFT", wallets[0].AssetSymbol)
	assert.True(t, decimal.NewFromInt(400).Equal(wallets[0].AverageBuyPrice))
}

func TestHandleGetPortfolio_EmptyIsArray(t *testing.T) {
	e := setup(t)

	rec := e.get("/api/wallets/user/nobody")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandleGetTransactions(t *testing.T) {
	e := setup(t)
	e.trade(t, "u1", "ETH", domain.SideBuy, "1")
	e.trade(t, "u1", "ETH", domain.SideSell, "0.5")

	rec := e.get("/api/wallets/user/u1/transactions")
	require.Equal(t, http.StatusOK, rec.Code)
	var txs []domain.TransactionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	require.Len(t, txs, 2)
	assert.Equal(t, "ETH", txs[0].AssetSymbol)
	assert.NotZero(t, txs[0].WalletID)

	rec = e.get("/api/wallets/user/u1/transactions?days=7")
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, bad := range []string{"0", "-3", "week"} {
		rec = e.get("/api/wallets/user/u1/transactions?days=" + bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestHandleGetSummary(t *testing.T) {
	e := setup(t)
	e.trade(t, "u1", "AAPL", domain.SideBuy, "2")

	rec := e.get("/api/wallets/user/u1/summary")

	require.Equal(t, http.StatusOK, rec.Code)
	var summary portfolio.PortfolioSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Len(t, summary.Positions, 1)
	assert.True(t, decimal.NewFromInt(300).Equal(summary.TotalMarketValue))
	assert.True(t, summary.TotalUnrealizedPnL.IsZero())
}

func TestHandleVerify(t *testing.T) {
	e := setup(t)
	e.trade(t, "u1", "BTC", domain.SideBuy, "0.01")

	rec := e.get("/api/wallets/user/u1/verify")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Consistent       bool `json:"consistent"`
		PositionsChecked int  `json:"positionsChecked"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Consistent)
	assert.Equal(t, 1, body.PositionsChecked)
}

func TestHandlers_StoreUnavailable(t *testing.T) {
	e := setup(t)
	e.store.SetFailure(assert.AnError)

	for _, path := range []string{
		"/api/wallets/user/u1",
		"/api/wallets/user/u1/transactions",
		"/api/wallets/user/u1/summary",
		"/api/wallets/user/u1/verify",
	} {
		rec := e.get(path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}
