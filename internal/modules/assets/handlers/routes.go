package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the asset directory routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/assets", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/symbol/{symbol}", h.HandleGetBySymbol)
		r.Get("/type/{type}", h.HandleListByType)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Put("/", h.HandleUpdate)
			r.Delete("/", h.HandleDelete)
			r.Patch("/price", h.HandleUpdatePrice)
		})
	})
}
