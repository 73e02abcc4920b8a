// Package handlers provides operator HTTP handlers for the ledger: position keys,
// per-position transaction logs and replay audits.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/modules/ledger"
	"github.com/TNT-747/investtrack/internal/modules/trading"
)

// Handler handles ledger HTTP requests
type Handler struct {
	store   ledger.Store
	auditor *trading.Auditor
	log     zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(
	store ledger.Store,
	auditor *trading.Auditor,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		store:   store,
		auditor: auditor,
		log:     log.With().Str("handler", "ledger").Logger(),
	}
}

// LogSummary aggregates one position's transaction log
type LogSummary struct {
	TotalTransactions int             `json:"totalTransactions"`
	BuyCount          int             `json:"buyCount"`
	SellCount         int             `json:"sellCount"`
	QuantityBought    decimal.Decimal `json:"quantityBought"`
	QuantitySold      decimal.Decimal `json:"quantitySold"`
	TotalBought       decimal.Decimal `json:"totalBought"`
	TotalSold         decimal.Decimal `json:"totalSold"`
}

// HandleGetPositions handles GET /api/ledger/positions
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListPositionKeys(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list positions")
		h.writeError(w, http.StatusServiceUnavailable, "Ledger store unavailable")
		return
	}

	limit := len(keys)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed < limit {
			limit = parsed
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"positions": keys[:limit],
			"count":     limit,
			"total":     len(keys),
		},
		"metadata": metadata(),
	})
}

// HandleGetLog handles GET /api/ledger/positions/{userId}/{symbol}/log
func (h *Handler) HandleGetLog(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	symbol := domain.NormalizeSymbol(chi.URLParam(r, "symbol"))

	txs, err := h.store.ReplayLog(r.Context(), userID, symbol)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Str("symbol", symbol).Msg("Failed to read transaction log")
		h.writeError(w, http.StatusServiceUnavailable, "Ledger store unavailable")
		return
	}

	side := r.URL.Query().Get("side")
	views := make([]domain.TransactionView, 0, len(txs))
	for _, tx := range txs {
		if side != "" && string(tx.Type) != side {
			continue
		}
		views = append(views, domain.NewTransactionView(tx))
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"userId":       userID,
			"assetSymbol":  symbol,
			"transactions": views,
			"count":        len(views),
			"summary":      summarize(txs),
		},
		"metadata": metadata(),
	})
}

// HandleVerifyPosition handles GET /api/ledger/positions/{userId}/{symbol}/verify
func (h *Handler) HandleVerifyPosition(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	symbol := domain.NormalizeSymbol(chi.URLParam(r, "symbol"))

	discrepancy, err := h.auditor.Verify(r.Context(), userID, symbol)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Str("symbol", symbol).Msg("Failed to verify position")
		h.writeError(w, http.StatusServiceUnavailable, "Ledger store unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"userId":      userID,
			"assetSymbol": symbol,
			"consistent":  discrepancy == nil,
			"discrepancy": discrepancy,
		},
		"metadata": metadata(),
	})
}

// HandleAudit handles POST /api/ledger/audit
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := h.auditor.VerifyAll(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Ledger audit failed")
		h.writeError(w, http.StatusServiceUnavailable, "Ledger store unavailable")
		return
	}

	if !report.Clean() {
		h.log.Warn().
			Strs("positions", report.Keys()).
			Msg("Ledger audit found discrepancies")
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"consistent":       report.Clean(),
			"positionsChecked": report.PositionsChecked,
			"discrepancies":    report.Discrepancies,
			"durationMs":       report.Duration.Milliseconds(),
		},
		"metadata": metadata(),
	})
}

func summarize(txs []domain.Transaction) LogSummary {
	summary := LogSummary{
		TotalTransactions: len(txs),
		QuantityBought:    decimal.Zero,
		QuantitySold:      decimal.Zero,
		TotalBought:       decimal.Zero,
		TotalSold:         decimal.Zero,
	}
	for _, tx := range txs {
		value := tx.Quantity.Mul(tx.Price)
		switch tx.Type {
		case domain.SideBuy:
			summary.BuyCount++
			summary.QuantityBought = summary.QuantityBought.Add(tx.Quantity)
			summary.TotalBought = summary.TotalBought.Add(value)
		case domain.SideSell:
			summary.SellCount++
			summary.QuantitySold = summary.QuantitySold.Add(tx.Quantity)
			summary.TotalSold = summary.TotalSold.Add(value)
		}
	}
	return summary
}

func metadata() map[string]interface{} {
	return map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}
