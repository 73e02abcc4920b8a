// Package di provides dependency injection for database connections.
package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/TNT-747/investtrack/internal/config"
	"github.com/TNT-747/investtrack/internal/database"
	"github.com/TNT-747/investtrack/internal/modules/ledger/postgres"
)

// InitializeDatabases opens the databases and applies schemas
func InitializeDatabases(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. universe.db - Asset directory (symbols, names, current prices)
	universeDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(database.NameUniverse),
		Profile: database.ProfileStandard,
		Name:    database.NameUniverse,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize universe database: %w", err)
	}
	container.UniverseDB = universeDB

	// 2. Ledger - holdings and the append-only transaction log
	switch cfg.LedgerDriver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			universeDB.Close()
			return nil, fmt.Errorf("failed to connect ledger database: %w", err)
		}
		container.PgPool = pool
	default:
		ledgerDB, err := database.New(database.Config{
			Path:    cfg.DatabasePath(database.NameLedger),
			Profile: database.ProfileLedger, // Maximum safety for the audit trail
			Name:    database.NameLedger,
		})
		if err != nil {
			universeDB.Close()
			return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
		}
		container.LedgerDB = ledgerDB
	}

	for _, db := range container.SQLiteDatabases() {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().
		Str("ledger_driver", driverName(cfg)).
		Msg("Databases initialized and schemas applied")

	return container, nil
}

func driverName(cfg *config.Config) string {
	if cfg.LedgerDriver == "" {
		return config.DriverSQLite
	}
	return cfg.LedgerDriver
}
