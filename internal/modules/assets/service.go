package assets

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/events"
)

// Repository is the persistence port the service depends on
type Repository interface {
	List(ctx context.Context) ([]domain.Asset, error)
	ListByType(ctx context.Context, assetType domain.AssetType) ([]domain.Asset, error)
	GetByID(ctx context.Context, id int64) (*domain.Asset, error)
	GetBySymbol(ctx context.Context, symbol string) (*domain.Asset, error)
	Create(ctx context.Context, asset domain.Asset) (*domain.Asset, error)
	Update(ctx context.Context, id int64, asset domain.Asset) (*domain.Asset, error)
	UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) (decimal.Decimal, *domain.Asset, error)
	Delete(ctx context.Context, id int64) error
}

var _ Repository = (*AssetRepository)(nil)

// Service exposes the asset directory to handlers and the trade engine
type Service struct {
	repo    Repository
	emitter events.Emitter
	log     zerolog.Logger
}

// NewService creates a new asset service. emitter may be nil.
func NewService(repo Repository, emitter events.Emitter, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		emitter: emitter,
		log:     log.With().Str("service", "assets").Logger(),
	}
}

// Lookup resolves a symbol for the trade engine. Unknown symbols yield (nil, nil)
// so callers can tell "not listed" apart from an unreachable directory.
func (s *Service) Lookup(ctx context.Context, symbol string) (*domain.Asset, error) {
	asset, err := s.repo.GetBySymbol(ctx, symbol)
	if errors.Is(err, ErrAssetNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// List returns all listed assets
func (s *Service) List(ctx context.Context) ([]domain.Asset, error) {
	return s.repo.List(ctx)
}

// ListByType returns assets of one type
func (s *Service) ListByType(ctx context.Context, assetType domain.AssetType) ([]domain.Asset, error) {
	return s.repo.ListByType(ctx, assetType)
}

// Get returns one asset by id
func (s *Service) Get(ctx context.Context, id int64) (*domain.Asset, error) {
	return s.repo.GetByID(ctx, id)
}

// GetBySymbol returns one asset by symbol
func (s *Service) GetBySymbol(ctx context.Context, symbol string) (*domain.Asset, error) {
	return s.repo.GetBySymbol(ctx, symbol)
}

// Create lists a new asset
func (s *Service) Create(ctx context.Context, asset domain.Asset) (*domain.Asset, error) {
	created, err := s.repo.Create(ctx, asset)
	if err != nil {
		return nil, err
	}

	s.emit(&events.AssetData{
		Type:   events.AssetCreated,
		Symbol: created.Symbol,
		Name:   created.Name,
		Kind:   string(created.Type),
	})
	return created, nil
}

// Update changes name, type and price of a listed asset
func (s *Service) Update(ctx context.Context, id int64, asset domain.Asset) (*domain.Asset, error) {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, asset)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("symbol", updated.Symbol).Msg("Asset updated")
	if !before.CurrentPrice.Equal(updated.CurrentPrice) {
		s.emit(&events.AssetPriceUpdatedData{
			Symbol:   updated.Symbol,
			OldPrice: before.CurrentPrice.String(),
			NewPrice: updated.CurrentPrice.String(),
		})
	}
	return updated, nil
}

// UpdatePrice sets a new current price. Trades committed afterwards execute at this price.
func (s *Service) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) (*domain.Asset, error) {
	old, updated, err := s.repo.UpdatePrice(ctx, id, price)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("symbol", updated.Symbol).
		Str("old_price", old.String()).
		Str("new_price", updated.CurrentPrice.String()).
		Msg("Asset price updated")

	s.emit(&events.AssetPriceUpdatedData{
		Symbol:   updated.Symbol,
		OldPrice: old.String(),
		NewPrice: updated.CurrentPrice.String(),
	})
	return updated, nil
}

// Delete removes an asset from the directory. Existing holdings are unaffected.
func (s *Service) Delete(ctx context.Context, id int64) error {
	asset, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", asset.Symbol, err)
	}

	s.log.Info().Str("symbol", asset.Symbol).Msg("Asset deleted")
	s.emit(&events.AssetData{Type: events.AssetDeleted, Symbol: asset.Symbol})
	return nil
}

func (s *Service) emit(data events.EventData) {
	if s.emitter != nil {
		s.emitter.Emit("assets", data)
	}
}
