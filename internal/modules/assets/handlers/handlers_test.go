package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TNT-747/investtrack/internal/database"
	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/modules/assets"
	testingpkg "github.com/TNT-747/investtrack/internal/testing"
)

func setupRouter(t *testing.T) (chi.Router, []domain.Asset) {
	db, cleanup := testingpkg.NewTestDB(t, database.NameUniverse)
	t.Cleanup(cleanup)
	seeded := testingpkg.SeedAssets(t, db)

	log := zerolog.Nop()
	service := assets.NewService(assets.NewAssetRepository(db.Conn(), 0, log), nil, log)

	router := chi.NewRouter()
	NewHandler(service, log).RegisterRoutes(router)
	return router, seeded
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Message
}

func TestHandleList(t *testing.T) {
	router, seeded := setupRouter(t)

	rec := do(router, http.MethodGet, "/api/assets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var list []domain.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, len(seeded))
	assert.Equal(t, "AAPL", list[0].Symbol)
}

func TestHandleGet(t *testing.T) {
	router, seeded := setupRouter(t)

	rec := do(router, http.MethodGet, fmt.Sprintf("/api/assets/%d", seeded[2].ID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var asset domain.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &asset))
	assert.Equal(t, "BTC", asset.Symbol)
	assert.True(t, decimal.NewFromInt(60000).Equal(asset.CurrentPrice))

	rec = do(router, http.MethodGet, "/api/assets/9999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Asset not found", decodeMessage(t, rec))

	rec = do(router, http.MethodGet, "/api/assets/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetBySymbol(t *testing.T) {
	router, _ := setupRouter(t)

	rec := do(router, http.MethodGet, "/api/assets/symbol/eth", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var asset domain.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &asset))
	assert.Equal(t, "ETH", asset.Symbol)

	rec = do(router, http.MethodGet, "/api/assets/symbol/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListByType(t *testing.T) {
	router, _ := setupRouter(t)

	rec := do(router, http.MethodGet, "/api/assets/type/crypto", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []domain.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	for _, a := range list {
		assert.Equal(t, domain.AssetTypeCrypto, a.Type)
	}

	rec = do(router, http.MethodGet, "/api/assets/type/bond", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreate(t *testing.T) {
	router, _ := setupRouter(t)

	rec := do(router, http.MethodPost, "/api/assets",
		`{"symbol":"nvda","name":"NVIDIA","type":"stock","currentPrice":"900.5"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "NVDA", created.Symbol)
	assert.Equal(t, domain.AssetTypeStock, created.Type)
	assert.NotZero(t, created.ID)

	rec = do(router, http.MethodPost, "/api/assets",
		`{"symbol":"AAPL","name":"Apple again","type":"STOCK","currentPrice":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(router, http.MethodPost, "/api/assets",
		`{"symbol":"X","name":"X","type":"STOCK","currentPrice":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/api/assets", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpdate(t *testing.T) {
	router, seeded := setupRouter(t)
	path := fmt.Sprintf("/api/assets/%d", seeded[0].ID)

	rec := do(router, http.MethodPut, path,
		`{"symbol":"IGNORED","name":"Apple","type":"STOCK","currentPrice":"155"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated domain.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "AAPL", updated.Symbol)
	assert.Equal(t, "Apple", updated.Name)
	assert.True(t, decimal.NewFromInt(155).Equal(updated.CurrentPrice))

	rec = do(router, http.MethodPut, "/api/assets/9999",
		`{"name":"Nothing","type":"STOCK","currentPrice":"1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUpdatePrice(t *testing.T) {
	router, seeded := setupRouter(t)
	path := fmt.Sprintf("/api/assets/%d/price", seeded[4].ID)

	rec := do(router, http.MethodPatch, path, `{"currentPrice":2350.25}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated domain.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.True(t, decimal.RequireFromString("2350.25").Equal(updated.CurrentPrice))

	rec = do(router, http.MethodPatch, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "currentPrice is required", decodeMessage(t, rec))

	rec = do(router, http.MethodPatch, path, `{"currentPrice":-5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDelete(t *testing.T) {
	router, seeded := setupRouter(t)
	path := fmt.Sprintf("/api/assets/%d", seeded[1].ID)

	rec := do(router, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(router, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterRoutes(t *testing.T) {
	// nil service: a matched route panics or fails, an unmatched one is 404/405
	handler := NewHandler(nil, zerolog.Nop())

	router := chi.NewRouter()
	require.NotPanics(t, func() {
		handler.RegisterRoutes(router)
	}, "RegisterRoutes should not panic")

	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/api/assets"},
		{"POST", "/api/assets"},
		{"GET", "/api/assets/symbol/AAPL"},
		{"GET", "/api/assets/type/STOCK"},
		{"GET", "/api/assets/1"},
		{"PUT", "/api/assets/1"},
		{"DELETE", "/api/assets/1"},
		{"PATCH", "/api/assets/1/price"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			func() {
				defer func() { _ = recover() }()
				router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			}()
			assert.NotEqual(t, http.StatusNotFound, rec.Code)
			assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}
