// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// QuantityScale is the maximum number of decimal places accepted for a trade quantity
	QuantityScale int32 = 8
	// AveragePriceScale is the precision the weighted average buy price is rounded to
	AveragePriceScale int32 = 8
	// MaxSymbolLength bounds asset symbols
	MaxSymbolLength = 10
)

// AssetType classifies an asset in the directory
type AssetType string

const (
	AssetTypeStock     AssetType = "STOCK"
	AssetTypeCrypto    AssetType = "CRYPTO"
	AssetTypeCommodity AssetType = "COMMODITY"
)

// ParseAssetType parses a case-insensitive asset type
func ParseAssetType(s string) (AssetType, error) {
	t := AssetType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case AssetTypeStock, AssetTypeCrypto, AssetTypeCommodity:
		return t, nil
	}
	return "", fmt.Errorf("unknown asset type %q", s)
}

// TradeSide is the direction of a trade
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// ParseTradeSide parses a case-insensitive trade side
func ParseTradeSide(s string) (TradeSide, error) {
	side := TradeSide(strings.ToUpper(strings.TrimSpace(s)))
	switch side {
	case SideBuy, SideSell:
		return side, nil
	}
	return "", fmt.Errorf("unknown trade side %q", s)
}

// NormalizeSymbol trims and upper-cases a symbol. Symbols are case-insensitive on input.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Asset is a tradable instrument with its current price
type Asset struct {
	UpdatedAt    time.Time       `json:"updatedAt"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Type         AssetType       `json:"type"`
	ID           int64           `json:"id"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
}

// Validate checks asset invariants. The symbol is expected to be normalized already.
func (a *Asset) Validate() error {
	switch {
	case a.Symbol == "":
		return fmt.Errorf("symbol is required")
	case len(a.Symbol) > MaxSymbolLength:
		return fmt.Errorf("symbol must be at most %d characters", MaxSymbolLength)
	case strings.TrimSpace(a.Name) == "":
		return fmt.Errorf("name is required")
	case !a.CurrentPrice.IsPositive():
		return fmt.Errorf("current price must be positive")
	}
	if _, err := ParseAssetType(string(a.Type)); err != nil {
		return err
	}
	return nil
}

// Holding is a user's position in one asset.
// Version is zero for a holding that has never been persisted.
type Holding struct {
	UpdatedAt       time.Time
	UserID          string
	AssetSymbol     string
	ID              int64
	Version         int64
	Quantity        decimal.Decimal
	AverageBuyPrice decimal.Decimal
}

// NewHolding returns the empty holding a first BUY starts from
func NewHolding(userID, symbol string) Holding {
	return Holding{
		UserID:          userID,
		AssetSymbol:     symbol,
		Quantity:        decimal.Zero,
		AverageBuyPrice: decimal.Zero,
	}
}

// IsActive reports whether the holding has a positive quantity
func (h Holding) IsActive() bool {
	return h.Quantity.IsPositive()
}

// CostBasis is quantity times average buy price
func (h Holding) CostBasis() decimal.Decimal {
	return h.Quantity.Mul(h.AverageBuyPrice)
}

// Check verifies the non-negativity invariants. A failure is a programming error,
// never a user error, and the holding must not be persisted.
func (h Holding) Check() error {
	if h.Quantity.IsNegative() {
		return &TradeError{Kind: KindInvariantViolation, Message: fmt.Sprintf(
			"holding %s/%s would have negative quantity %s", h.UserID, h.AssetSymbol, h.Quantity)}
	}
	if h.AverageBuyPrice.IsNegative() {
		return &TradeError{Kind: KindInvariantViolation, Message: fmt.Sprintf(
			"holding %s/%s would have negative average price %s", h.UserID, h.AssetSymbol, h.AverageBuyPrice)}
	}
	return nil
}

// Transaction is an immutable record of an executed trade
type Transaction struct {
	Timestamp   time.Time
	Reference   string
	UserID      string
	AssetSymbol string
	Type        TradeSide
	ID          int64
	HoldingID   int64
	Quantity    decimal.Decimal
	Price       decimal.Decimal
}

// Value is quantity times execution price
func (t Transaction) Value() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}
