// Package trading implements the trade engine: validation, weighted-average cost
// basis, atomic execution with conflict retry, and ledger replay/audit.
package trading

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/modules/ledger"
)

// AssetDirectory resolves symbols to listed assets.
// Lookup returns nil, nil for a symbol that is not listed.
type AssetDirectory interface {
	Lookup(ctx context.Context, symbol string) (*domain.Asset, error)
}

// TradeRequest is a request to buy or sell quantity units of Symbol at the current price
type TradeRequest struct {
	UserID    string
	Symbol    string
	Side      domain.TradeSide
	Reference string // idempotency key, generated when empty
	Quantity  decimal.Decimal
}

// ValidatedTrade is a request that passed every check against current state
type ValidatedTrade struct {
	Request TradeRequest
	Asset   domain.Asset
	// Holding is the stored holding the trade was validated against, nil before the first BUY
	Holding *domain.Holding
	// ExecPrice is the asset's current price at validation time
	ExecPrice decimal.Decimal
}

// Validator checks trade requests against the asset directory and the ledger
type Validator struct {
	assets AssetDirectory
	store  ledger.Store
	log    zerolog.Logger
}

// NewValidator creates a new trade validator
func NewValidator(assets AssetDirectory, store ledger.Store, log zerolog.Logger) *Validator {
	return &Validator{
		assets: assets,
		store:  store,
		log:    log.With().Str("service", "trade_validator").Logger(),
	}
}

// CheckRequest validates the shape of a request and returns it normalized.
// It performs no I/O.
func (v *Validator) CheckRequest(req TradeRequest) (TradeRequest, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.Symbol = domain.NormalizeSymbol(req.Symbol)
	req.Reference = strings.TrimSpace(req.Reference)

	if req.UserID == "" {
		return req, domain.NewTradeError(domain.KindInvalidRequest, "User ID is required")
	}
	if req.Symbol == "" {
		return req, domain.NewTradeError(domain.KindInvalidRequest, "Asset symbol is required")
	}
	side, err := domain.ParseTradeSide(string(req.Side))
	if err != nil {
		return req, domain.NewTradeError(domain.KindInvalidRequest, "Transaction type must be BUY or SELL")
	}
	req.Side = side

	if !req.Quantity.IsPositive() {
		return req, domain.NewTradeError(domain.KindInvalidQuantity, "Quantity must be positive")
	}
	if !req.Quantity.Equal(req.Quantity.Truncate(domain.QuantityScale)) {
		return req, domain.NewTradeError(domain.KindInvalidQuantity,
			"Quantity supports at most %d decimal places", domain.QuantityScale)
	}

	return req, nil
}

// Validate runs all validation layers against current state:
// request shape, asset lookup, then holdings for a SELL.
func (v *Validator) Validate(ctx context.Context, req TradeRequest) (ValidatedTrade, error) {
	req, err := v.CheckRequest(req)
	if err != nil {
		return ValidatedTrade{}, err
	}

	asset, err := v.lookupAsset(ctx, req.Symbol)
	if err != nil {
		return ValidatedTrade{}, err
	}

	holding, err := v.store.GetHolding(ctx, req.UserID, asset.Symbol)
	if err != nil {
		return ValidatedTrade{}, err
	}

	if req.Side == domain.SideSell {
		if err := checkSellable(holding, asset.Symbol, req.Quantity); err != nil {
			return ValidatedTrade{}, err
		}
	}

	return ValidatedTrade{
		Request:   req,
		Asset:     *asset,
		Holding:   holding,
		ExecPrice: asset.CurrentPrice,
	}, nil
}

func (v *Validator) lookupAsset(ctx context.Context, symbol string) (*domain.Asset, error) {
	asset, err := v.assets.Lookup(ctx, symbol)
	if err != nil {
		v.log.Error().Err(err).Str("symbol", symbol).Msg("Asset directory lookup failed")
		return nil, &domain.TradeError{
			Kind:    domain.KindStoreUnavailable,
			Message: "Asset directory is currently unavailable. Please try again later.",
			Err:     err,
		}
	}
	if asset == nil {
		return nil, domain.NewTradeError(domain.KindUnknownAsset, "Asset not found: %s", symbol)
	}
	if !asset.CurrentPrice.IsPositive() {
		// a listed asset without a usable price cannot be traded
		return nil, domain.NewTradeError(domain.KindInvariantViolation,
			"asset %s has non-positive price %s", asset.Symbol, asset.CurrentPrice)
	}
	return asset, nil
}

func checkSellable(holding *domain.Holding, symbol string, quantity decimal.Decimal) error {
	if holding == nil {
		return domain.NewTradeError(domain.KindInsufficientHoldings, "You don't own any %s", symbol)
	}
	if holding.Quantity.LessThan(quantity) {
		return domain.NewTradeError(domain.KindInsufficientHoldings,
			"Insufficient balance. You have %s but trying to sell %s", holding.Quantity, quantity)
	}
	return nil
}
