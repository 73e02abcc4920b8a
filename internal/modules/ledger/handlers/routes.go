package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/ledger", func(r chi.Router) {
		r.Get("/positions", h.HandleGetPositions)
		r.Route("/positions/{userId}/{symbol}", func(r chi.Router) {
			r.Get("/log", h.HandleGetLog)
			r.Get("/verify", h.HandleVerifyPosition)
		})

		r.Post("/audit", h.HandleAudit)
	})
}
