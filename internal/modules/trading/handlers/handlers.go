// Package handlers provides HTTP handlers for trade execution.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/modules/trading"
)

// RateLimiter decides whether a user may place another trade now
type RateLimiter interface {
	Allow(key string) bool
}

// Handler handles trade HTTP requests
type Handler struct {
	executor *trading.Executor
	limiter  RateLimiter
	log      zerolog.Logger
}

// NewHandler creates a new trade handler. limiter may be nil.
func NewHandler(executor *trading.Executor, limiter RateLimiter, log zerolog.Logger) *Handler {
	return &Handler{
		executor: executor,
		limiter:  limiter,
		log:      log.With().Str("handler", "trading").Logger(),
	}
}

// TradeRequest is the body of POST /api/wallets/trade
type TradeRequest struct {
	UserID      string          `json:"userId"`
	AssetSymbol string          `json:"assetSymbol"`
	Type        string          `json:"type"`
	RequestID   string          `json:"requestId,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
}

func (req TradeRequest) toTrade() trading.TradeRequest {
	return trading.TradeRequest{
		UserID:    req.UserID,
		Symbol:    req.AssetSymbol,
		Side:      domain.TradeSide(req.Type),
		Reference: req.RequestID,
		Quantity:  req.Quantity,
	}
}

// TradeResponse is returned for an executed (or replayed) trade
type TradeResponse struct {
	Success     bool                   `json:"success"`
	Message     string                 `json:"message"`
	Replayed    bool                   `json:"replayed,omitempty"`
	// Wallet is the current position; on a replay it may include later trades
	Wallet      domain.WalletView      `json:"wallet"`
	Transaction domain.TransactionView `json:"transaction"`
}

// HandleTrade handles POST /api/wallets/trade
func (h *Handler) HandleTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// key on the same normalized ID the executor trades under
	userID := strings.TrimSpace(req.UserID)
	if h.limiter != nil && userID != "" && !h.limiter.Allow(userID) {
		h.log.Warn().Str("user_id", userID).Msg("Trade rate limit exceeded")
		h.writeError(w, http.StatusTooManyRequests, "Too many trade requests, slow down")
		return
	}

	result, err := h.executor.ExecuteTrade(r.Context(), req.toTrade())
	if err != nil {
		h.handleTradeError(w, err)
		return
	}

	message := "Buy order executed successfully"
	if result.Transaction.Type == domain.SideSell {
		message = "Sell order executed successfully"
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	h.writeJSON(w, status, TradeResponse{
		Success:     true,
		Message:     message,
		Replayed:    result.Replayed,
		Wallet:      domain.NewWalletView(result.Holding),
		Transaction: domain.NewTransactionView(result.Transaction),
	})
}

// HandleValidate handles POST /api/wallets/trade/validate.
// It runs every validation layer and reports the resulting holding without committing.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	preview, err := h.executor.Preview(r.Context(), req.toTrade())
	if err != nil {
		h.handleTradeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"message":        "Trade is valid",
		"executionPrice": preview.ExecPrice,
		"estimatedValue": preview.Request.Quantity.Mul(preview.ExecPrice),
		"resultingWallet": map[string]interface{}{
			"assetSymbol":     preview.Resulting.AssetSymbol,
			"quantity":        preview.Resulting.Quantity,
			"averageBuyPrice": preview.Resulting.AverageBuyPrice,
		},
	})
}

// statusFor maps a trade error kind to its HTTP status
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidRequest, domain.KindInvalidQuantity, domain.KindInsufficientHoldings:
		return http.StatusBadRequest
	case domain.KindUnknownAsset:
		return http.StatusNotFound
	case domain.KindConcurrentUpdateConflict:
		return http.StatusConflict
	case domain.KindInvariantViolation:
		return http.StatusInternalServerError
	default:
		return http.StatusServiceUnavailable
	}
}

func (h *Handler) handleTradeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	message := err.Error()
	if kind == domain.KindInvariantViolation {
		// already logged by the executor with full detail
		message = "internal error"
	}
	h.writeError(w, status, message)
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
