package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/wallets/user/{userId}", func(r chi.Router) {
		r.Get("/", h.HandleGetPortfolio)
		r.Get("/transactions", h.HandleGetTransactions)
		r.Get("/summary", h.HandleGetSummary)
		r.Get("/verify", h.HandleVerify) // replays the user's ledger
	})
}
