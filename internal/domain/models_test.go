package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTradeSide(t *testing.T) {
	side, err := ParseTradeSide(" buy ")
	require.NoError(t, err)
	assert.Equal(t, SideBuy, side)

	side, err = ParseTradeSide("SELL")
	require.NoError(t, err)
	assert.Equal(t, SideSell, side)

	_, err = ParseTradeSide("SHORT")
	assert.Error(t, err)
}

func TestParseAssetType(t *testing.T) {
	for _, in := range []string{"stock", "Crypto", "COMMODITY"} {
		_, err := ParseAssetType(in)
		assert.NoError(t, err, in)
	}
	_, err := ParseAssetType("BOND")
	assert.Error(t, err)
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "AAPL", NormalizeSymbol("  aapl "))
	assert.Equal(t, "", NormalizeSymbol("   "))
}

func TestAssetValidate(t *testing.T) {
	valid := Asset{Symbol: "BTC", Name: "Bitcoin", Type: AssetTypeCrypto, CurrentPrice: decimal.NewFromInt(50000)}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(a *Asset)
	}{
		{"empty symbol", func(a *Asset) { a.Symbol = "" }},
		{"long symbol", func(a *Asset) { a.Symbol = "ABCDEFGHIJK" }},
		{"blank name", func(a *Asset) { a.Name = " " }},
		{"zero price", func(a *Asset) { a.CurrentPrice = decimal.Zero }},
		{"negative price", func(a *Asset) { a.CurrentPrice = decimal.NewFromInt(-1) }},
		{"bad type", func(a *Asset) { a.Type = "BOND" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			assert.Error(t, a.Validate())
		})
	}
}

func TestHoldingCheck(t *testing.T) {
	h := NewHolding("u1", "AAPL")
	assert.NoError(t, h.Check())
	assert.False(t, h.IsActive())

	h.Quantity = decimal.NewFromInt(-1)
	err := h.Check()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvariantViolation)

	h.Quantity = decimal.NewFromInt(2)
	h.AverageBuyPrice = decimal.NewFromInt(-5)
	assert.ErrorIs(t, h.Check(), ErrInvariantViolation)
}

func TestHoldingCostBasisAndTransactionValue(t *testing.T) {
	h := Holding{Quantity: decimal.RequireFromString("2.5"), AverageBuyPrice: decimal.NewFromInt(40)}
	assert.True(t, h.CostBasis().Equal(decimal.NewFromInt(100)))

	tx := Transaction{Quantity: decimal.RequireFromString("0.5"), Price: decimal.NewFromInt(30)}
	assert.True(t, tx.Value().Equal(decimal.NewFromInt(15)))
}

func TestTradeErrorMatching(t *testing.T) {
	err := fmt.Errorf("execute: %w", NewTradeError(KindInsufficientHoldings, "You don't own any %s", "AAPL"))

	assert.ErrorIs(t, err, ErrInsufficientHoldings)
	assert.NotErrorIs(t, err, ErrUnknownAsset)
	assert.Equal(t, KindInsufficientHoldings, KindOf(err))
	assert.Equal(t, "execute: You don't own any AAPL", err.Error())

	cause := errors.New("disk I/O error")
	su := StoreUnavailable(cause)
	assert.ErrorIs(t, su, ErrStoreUnavailable)
	assert.ErrorIs(t, su, cause)

	assert.Equal(t, KindStoreUnavailable, KindOf(errors.New("anything else")))
}
