package testing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TNT-747/investtrack/internal/database"
	"github.com/TNT-747/investtrack/internal/domain"
)

// NewAssetFixtures returns a small directory covering every asset type
func NewAssetFixtures() []domain.Asset {
	return []domain.Asset{
		{Symbol: "AAPL", Name: "Apple Inc.", Type: domain.AssetTypeStock, CurrentPrice: decimal.RequireFromString("150.00")},
		{Symbol: "MSFT", Name: "Microsoft Corporation", Type: domain.AssetTypeStock, CurrentPrice: decimal.RequireFromString("400.00")},
		{Symbol: "BTC", Name: "Bitcoin", Type: domain.AssetTypeCrypto, CurrentPrice: decimal.RequireFromString("60000.00")},
		{Symbol: "ETH", Name: "Ethereum", Type: domain.AssetTypeCrypto, CurrentPrice: decimal.RequireFromString("3000.00")},
		{Symbol: "GOLD", Name: "Gold", Type: domain.AssetTypeCommodity, CurrentPrice: decimal.RequireFromString("2300.00")},
	}
}

// SeedAssets inserts assets into a migrated universe database and returns them with ids
func SeedAssets(t *testing.T, db *database.DB, assets ...domain.Asset) []domain.Asset {
	t.Helper()

	if len(assets) == 0 {
		assets = NewAssetFixtures()
	}

	now := time.Now().UTC().UnixMilli()
	seeded := make([]domain.Asset, 0, len(assets))
	for _, a := range assets {
		result, err := db.Conn().Exec(`
			INSERT INTO assets (symbol, name, type, current_price, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, a.Symbol, a.Name, string(a.Type), a.CurrentPrice.String(), now, now)
		if err != nil {
			t.Fatalf("Failed to seed asset %s: %v", a.Symbol, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			t.Fatalf("Failed to read id of asset %s: %v", a.Symbol, err)
		}
		a.ID = id
		a.UpdatedAt = time.UnixMilli(now).UTC()
		seeded = append(seeded, a)
	}
	return seeded
}
