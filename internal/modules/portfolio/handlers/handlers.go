// Package handlers provides HTTP handlers for portfolio and history queries.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/modules/portfolio"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.PortfolioService
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.PortfolioService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetPortfolio handles GET /api/wallets/user/{userId}
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	holdings, err := h.service.GetPortfolio(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err, "Failed to get portfolio")
		return
	}

	wallets := make([]domain.WalletView, 0, len(holdings))
	for _, holding := range holdings {
		wallets = append(wallets, domain.NewWalletView(holding))
	}
	h.writeJSON(w, http.StatusOK, wallets)
}

// HandleGetTransactions handles GET /api/wallets/user/{userId}/transactions?days=N
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	txs, err := h.service.GetTransactions(r.Context(), userID, days)
	if err != nil {
		h.handleServiceError(w, err, "Failed to get transactions")
		return
	}

	views := make([]domain.TransactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, domain.NewTransactionView(tx))
	}
	h.writeJSON(w, http.StatusOK, views)
}

// HandleGetSummary handles GET /api/wallets/user/{userId}/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.GetSummary(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err, "Failed to get portfolio summary")
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// HandleVerify handles GET /api/wallets/user/{userId}/verify
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	report, err := h.service.Verify(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err, "Failed to verify ledger")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":           userID,
		"consistent":       report.Clean(),
		"positionsChecked": report.PositionsChecked,
		"discrepancies":    report.Discrepancies,
	})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "User ID is required")
		return "", false
	}
	return userID, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error, fallback string) {
	h.log.Error().Err(err).Msg(fallback)
	if domain.KindOf(err) == domain.KindStoreUnavailable {
		h.writeError(w, http.StatusServiceUnavailable, "Ledger store is currently unavailable. Please try again later.")
		return
	}
	h.writeError(w, http.StatusInternalServerError, fallback)
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
