package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers trade routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/wallets/trade", func(r chi.Router) {
		r.Post("/", h.HandleTrade)
		r.Post("/validate", h.HandleValidate) // dry run, never commits
	})
}
