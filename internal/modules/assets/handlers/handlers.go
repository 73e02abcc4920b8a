// Package handlers provides HTTP handlers for the asset directory.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/modules/assets"
)

// Handler handles asset HTTP requests
type Handler struct {
	service *assets.Service
	log     zerolog.Logger
}

// NewHandler creates a new asset handler
func NewHandler(service *assets.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "assets").Logger(),
	}
}

// AssetRequest is the body of POST and PUT requests
type AssetRequest struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
}

// PriceRequest is the body of PATCH /api/assets/{id}/price
type PriceRequest struct {
	CurrentPrice *decimal.Decimal `json:"currentPrice"`
}

// HandleList handles GET /api/assets
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "Failed to list assets")
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleGet handles GET /api/assets/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	asset, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "Failed to get asset")
		return
	}
	h.writeJSON(w, http.StatusOK, asset)
}

// HandleGetBySymbol handles GET /api/assets/symbol/{symbol}
func (h *Handler) HandleGetBySymbol(w http.ResponseWriter, r *http.Request) {
	asset, err := h.service.GetBySymbol(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.handleServiceError(w, err, "Failed to get asset")
		return
	}
	h.writeJSON(w, http.StatusOK, asset)
}

// HandleListByType handles GET /api/assets/type/{type}
func (h *Handler) HandleListByType(w http.ResponseWriter, r *http.Request) {
	assetType, err := domain.ParseAssetType(chi.URLParam(r, "type"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.service.ListByType(r.Context(), assetType)
	if err != nil {
		h.handleServiceError(w, err, "Failed to list assets")
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleCreate handles POST /api/assets
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req AssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), req.toAsset())
	if err != nil {
		h.handleServiceError(w, err, "Failed to create asset")
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// HandleUpdate handles PUT /api/assets/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req AssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	updated, err := h.service.Update(r.Context(), id, req.toAsset())
	if err != nil {
		h.handleServiceError(w, err, "Failed to update asset")
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// HandleUpdatePrice handles PATCH /api/assets/{id}/price
func (h *Handler) HandleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.CurrentPrice == nil {
		h.writeError(w, http.StatusBadRequest, "currentPrice is required")
		return
	}

	updated, err := h.service.UpdatePrice(r.Context(), id, *req.CurrentPrice)
	if err != nil {
		h.handleServiceError(w, err, "Failed to update price")
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// HandleDelete handles DELETE /api/assets/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, err, "Failed to delete asset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req AssetRequest) toAsset() domain.Asset {
	return domain.Asset{
		Symbol:       req.Symbol,
		Name:         req.Name,
		Type:         domain.AssetType(strings.ToUpper(strings.TrimSpace(req.Type))),
		CurrentPrice: req.CurrentPrice,
	}
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid asset id")
		return 0, false
	}
	return id, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, assets.ErrAssetNotFound):
		h.writeError(w, http.StatusNotFound, "Asset not found")
	case errors.Is(err, assets.ErrAssetExists):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, assets.ErrInvalidAsset):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg(fallback)
		h.writeError(w, http.StatusInternalServerError, fallback)
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
