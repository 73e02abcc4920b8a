// Package di provides dependency injection for repositories.
package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/TNT-747/investtrack/internal/config"
	"github.com/TNT-747/investtrack/internal/modules/assets"
	"github.com/TNT-747/investtrack/internal/modules/ledger"
	"github.com/TNT-747/investtrack/internal/modules/ledger/postgres"
)

// InitializeRepositories creates the asset repository and the ledger store
func InitializeRepositories(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.AssetRepo = assets.NewAssetRepository(container.UniverseDB.Conn(), cfg.StoreTimeout, log)

	switch {
	case container.PgPool != nil:
		store, err := postgres.NewStore(container.PgPool, cfg.StoreTimeout, log)
		if err != nil {
			return fmt.Errorf("failed to create postgres ledger store: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		container.LedgerStore = store
	case container.LedgerDB != nil:
		container.LedgerStore = ledger.NewSQLiteStore(container.LedgerDB.Conn(), cfg.StoreTimeout, log)
	default:
		return fmt.Errorf("no ledger database initialized")
	}

	log.Debug().Msg("Repositories initialized")
	return nil
}
