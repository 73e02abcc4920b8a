// Package assets implements the asset directory: tradable symbols and their current prices.
package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/TNT-747/investtrack/internal/domain"
)

var (
	// ErrAssetNotFound is returned when no asset matches the lookup
	ErrAssetNotFound = errors.New("asset not found")
	// ErrAssetExists is returned when creating a symbol that is already listed
	ErrAssetExists = errors.New("asset already exists")
	// ErrInvalidAsset wraps validation failures
	ErrInvalidAsset = errors.New("invalid asset")
)

// assetColumns must match scanAsset
const assetColumns = `id, symbol, name, type, current_price, updated_at`

// DefaultTimeout bounds a single repository call when no timeout is configured
const DefaultTimeout = 5 * time.Second

// AssetRepository handles asset persistence in universe.db
type AssetRepository struct {
	universeDB *sql.DB
	timeout    time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// NewAssetRepository creates a new asset repository. Every call is bounded by
// timeout, or DefaultTimeout when timeout is not positive.
func NewAssetRepository(universeDB *sql.DB, timeout time.Duration, log zerolog.Logger) *AssetRepository {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AssetRepository{
		universeDB: universeDB,
		timeout:    timeout,
		log:        log.With().Str("repo", "asset").Logger(),
		now:        time.Now,
	}
}

// List returns every asset ordered by symbol
func (r *AssetRepository) List(ctx context.Context) ([]domain.Asset, error) {
	return r.query(ctx, "SELECT "+assetColumns+" FROM assets ORDER BY symbol")
}

// ListByType returns assets of one type ordered by symbol
func (r *AssetRepository) ListByType(ctx context.Context, assetType domain.AssetType) ([]domain.Asset, error) {
	return r.query(ctx, "SELECT "+assetColumns+" FROM assets WHERE type = ? ORDER BY symbol", string(assetType))
}

// GetByID returns the asset with id, or ErrAssetNotFound
func (r *AssetRepository) GetByID(ctx context.Context, id int64) (*domain.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.universeDB.QueryRowContext(ctx, "SELECT "+assetColumns+" FROM assets WHERE id = ?", id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %d: %w", id, err)
	}
	return &asset, nil
}

// GetBySymbol returns the asset listed under symbol, or ErrAssetNotFound
func (r *AssetRepository) GetBySymbol(ctx context.Context, symbol string) (*domain.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.universeDB.QueryRowContext(ctx, "SELECT "+assetColumns+" FROM assets WHERE symbol = ?", domain.NormalizeSymbol(symbol))
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %s: %w", symbol, err)
	}
	return &asset, nil
}

// Create inserts a new asset and returns it with its assigned id
func (r *AssetRepository) Create(ctx context.Context, asset domain.Asset) (*domain.Asset, error) {
	asset.Symbol = domain.NormalizeSymbol(asset.Symbol)
	if err := asset.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := r.now().UTC()
	result, err := r.universeDB.ExecContext(ctx, `
		INSERT INTO assets (symbol, name, type, current_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, asset.Symbol, strings.TrimSpace(asset.Name), string(asset.Type), asset.CurrentPrice.String(), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrAssetExists, asset.Symbol)
		}
		return nil, fmt.Errorf("failed to create asset: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read asset id: %w", err)
	}
	asset.ID = id
	asset.UpdatedAt = time.UnixMilli(now.UnixMilli()).UTC()

	r.log.Info().Str("symbol", asset.Symbol).Int64("id", id).Msg("Asset created")
	return &asset, nil
}

// Update replaces name, type and price of an existing asset. The symbol is immutable.
func (r *AssetRepository) Update(ctx context.Context, id int64, asset domain.Asset) (*domain.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	asset.Symbol = existing.Symbol
	if err := asset.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}

	result, err := r.universeDB.ExecContext(ctx, `
		UPDATE assets SET name = ?, type = ?, current_price = ?, updated_at = ?
		WHERE id = ?
	`, strings.TrimSpace(asset.Name), string(asset.Type), asset.CurrentPrice.String(), r.now().UTC().UnixMilli(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update asset %d: %w", id, err)
	}
	if err := requireAffected(result); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// UpdatePrice sets the current price of an asset and returns the previous price
func (r *AssetRepository) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) (old decimal.Decimal, updated *domain.Asset, err error) {
	if !price.IsPositive() {
		return decimal.Zero, nil, fmt.Errorf("%w: current price must be positive", ErrInvalidAsset)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return decimal.Zero, nil, err
	}

	result, err := r.universeDB.ExecContext(ctx,
		"UPDATE assets SET current_price = ?, updated_at = ? WHERE id = ?",
		price.String(), r.now().UTC().UnixMilli(), id)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("failed to update price for asset %d: %w", id, err)
	}
	if err := requireAffected(result); err != nil {
		return decimal.Zero, nil, err
	}

	updated, err = r.GetByID(ctx, id)
	if err != nil {
		return decimal.Zero, nil, err
	}
	return current.CurrentPrice, updated, nil
}

// Delete removes an asset
func (r *AssetRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.universeDB.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete asset %d: %w", id, err)
	}
	return requireAffected(result)
}

func (r *AssetRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.universeDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	assets := make([]domain.Asset, 0)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	return assets, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(row rowScanner) (domain.Asset, error) {
	var (
		asset     domain.Asset
		assetType string
		price     string
		updatedAt int64
	)

	if err := row.Scan(&asset.ID, &asset.Symbol, &asset.Name, &assetType, &price, &updatedAt); err != nil {
		return domain.Asset{}, err
	}

	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("corrupt price %q for %s: %w", price, asset.Symbol, err)
	}
	asset.Type = domain.AssetType(assetType)
	asset.CurrentPrice = parsed
	asset.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	return asset, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrAssetNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
