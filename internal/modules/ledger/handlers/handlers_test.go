package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/modules/ledger"
	"github.com/TNT-747/investtrack/internal/modules/trading"
	"github.com/TNT-747/investtrack/internal/pkg/retry"
)

type staticDirectory map[string]string

func (s staticDirectory) Lookup(_ context.Context, symbol string) (*domain.Asset, error) {
	price, ok := s[symbol]
	if !ok {
		return nil, nil
	}
	return &domain.Asset{Symbol: symbol, Name: symbol, Type: domain.AssetTypeStock, CurrentPrice: decimal.RequireFromString(price)}, nil
}

type envelope struct {
	Data     map[string]json.RawMessage `json:"data"`
	Metadata map[string]string          `json:"metadata"`
	Success  *bool                      `json:"success"`
	Message  string                     `json:"message"`
}

// setupLedger executes a few trades and returns the router plus the store behind it
func setupLedger(t *testing.T) (http.Handler, *ledger.MemoryStore) {
	t.Helper()

	store := ledger.NewMemoryStore()
	cfg := retry.Config{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	executor := trading.NewExecutor(staticDirectory{"AAPL": "150", "BTC": "60000"}, store, nil, cfg, zerolog.Nop())

	trades := []trading.TradeRequest{
		{UserID: "u1", Symbol: "AAPL", Side: domain.SideBuy, Quantity: decimal.NewFromInt(10)},
		{UserID: "u1", Symbol: "AAPL", Side: domain.SideSell, Quantity: decimal.NewFromInt(4)},
		{UserID: "u1", Symbol: "BTC", Side: domain.SideBuy, Quantity: decimal.RequireFromString("0.5")},
		{UserID: "u2", Symbol: "AAPL", Side: domain.SideBuy, Quantity: decimal.NewFromInt(1)},
	}
	for _, req := range trades {
		_, err := executor.ExecuteTrade(context.Background(), req)
		require.NoError(t, err)
	}

	router := chi.NewRouter()
	NewHandler(store, trading.NewAuditor(store, zerolog.Nop()), zerolog.Nop()).RegisterRoutes(router)
	return router, store
}

func do(t *testing.T, router http.Handler, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHandleGetPositions(t *testing.T) {
	router, _ := setupLedger(t)

	w, body := do(t, router, http.MethodGet, "/api/ledger/positions")
	require.Equal(t, http.StatusOK, w.Code)

	var positions []ledger.PositionKey
	require.NoError(t, json.Unmarshal(body.Data["positions"], &positions))
	assert.Equal(t, []ledger.PositionKey{
		{UserID: "u1", Symbol: "AAPL"},
		{UserID: "u1", Symbol: "BTC"},
		{UserID: "u2", Symbol: "AAPL"},
	}, positions)
	assert.NotEmpty(t, body.Metadata["timestamp"])
}

func TestHandleGetPositions_Limit(t *testing.T) {
	router, _ := setupLedger(t)

	_, body := do(t, router, http.MethodGet, "/api/ledger/positions?limit=2")

	var positions []ledger.PositionKey
	require.NoError(t, json.Unmarshal(body.Data["positions"], &positions))
	assert.Len(t, positions, 2)
	assert.JSONEq(t, "3", string(body.Data["total"]))
}

func TestHandleGetLog(t *testing.T) {
	router, _ := setupLedger(t)

	w, body := do(t, router, http.MethodGet, "/api/ledger/positions/u1/aapl/log")
	require.Equal(t, http.StatusOK, w.Code)

	var txs []domain.TransactionView
	require.NoError(t, json.Unmarshal(body.Data["transactions"], &txs))
	require.Len(t, txs, 2)
	assert.Equal(t, domain.SideBuy, txs[0].Type)
	assert.Equal(t, domain.SideSell, txs[1].Type)

	var summary LogSummary
	require.NoError(t, json.Unmarshal(body.Data["summary"], &summary))
	assert.Equal(t, 2, summary.TotalTransactions)
	assert.Equal(t, 1, summary.BuyCount)
	assert.Equal(t, 1, summary.SellCount)
	assert.True(t, summary.TotalBought.Equal(decimal.NewFromInt(1500)), summary.TotalBought.String())
	assert.True(t, summary.TotalSold.Equal(decimal.NewFromInt(600)), summary.TotalSold.String())
}

func TestHandleGetLog_SideFilter(t *testing.T) {
	router, _ := setupLedger(t)

	_, body := do(t, router, http.MethodGet, "/api/ledger/positions/u1/AAPL/log?side=SELL")

	var txs []domain.TransactionView
	require.NoError(t, json.Unmarshal(body.Data["transactions"], &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, domain.SideSell, txs[0].Type)
}

func TestHandleVerifyPosition(t *testing.T) {
	router, store := setupLedger(t)

	_, body := do(t, router, http.MethodGet, "/api/ledger/positions/u1/AAPL/verify")
	assert.JSONEq(t, "true", string(body.Data["consistent"]))

	holding, err := store.GetHolding(context.Background(), "u1", "AAPL")
	require.NoError(t, err)
	holding.Quantity = decimal.NewFromInt(9)
	store.PutHolding(*holding)

	_, body = do(t, router, http.MethodGet, "/api/ledger/positions/u1/AAPL/verify")
	assert.JSONEq(t, "false", string(body.Data["consistent"]))

	var disc trading.Discrepancy
	require.NoError(t, json.Unmarshal(body.Data["discrepancy"], &disc))
	assert.True(t, disc.ReplayedQuantity.Equal(decimal.NewFromInt(6)))
}

func TestHandleAudit(t *testing.T) {
	router, store := setupLedger(t)

	w, body := do(t, router, http.MethodPost, "/api/ledger/audit")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "true", string(body.Data["consistent"]))
	assert.JSONEq(t, "3", string(body.Data["positionsChecked"]))

	store.PutHolding(domain.Holding{
		UserID:          "u2",
		AssetSymbol:     "AAPL",
		Quantity:        decimal.NewFromInt(5),
		AverageBuyPrice: decimal.NewFromInt(150),
		Version:         1,
	})

	_, body = do(t, router, http.MethodPost, "/api/ledger/audit")
	assert.JSONEq(t, "false", string(body.Data["consistent"]))

	var discrepancies []trading.Discrepancy
	require.NoError(t, json.Unmarshal(body.Data["discrepancies"], &discrepancies))
	require.Len(t, discrepancies, 1)
	assert.Equal(t, "u2", discrepancies[0].UserID)
}

func TestHandlers_StoreUnavailable(t *testing.T) {
	router, store := setupLedger(t)
	store.SetFailure(errors.New("disk full"))

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/ledger/positions"},
		{http.MethodGet, "/api/ledger/positions/u1/AAPL/log"},
		{http.MethodGet, "/api/ledger/positions/u1/AAPL/verify"},
		{http.MethodPost, "/api/ledger/audit"},
	} {
		t.Run(tc.path, func(t *testing.T) {
			w, body := do(t, router, tc.method, tc.path)
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			require.NotNil(t, body.Success)
			assert.False(t, *body.Success)
			assert.Equal(t, "Ledger store unavailable", body.Message)
		})
	}
}
