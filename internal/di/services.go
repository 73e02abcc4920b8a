// Package di provides dependency injection for services.
package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/TNT-747/investtrack/internal/config"
	"github.com/TNT-747/investtrack/internal/events"
	"github.com/TNT-747/investtrack/internal/modules/assets"
	"github.com/TNT-747/investtrack/internal/modules/portfolio"
	"github.com/TNT-747/investtrack/internal/modules/trading"
	"github.com/TNT-747/investtrack/internal/pkg/retry"
	"github.com/TNT-747/investtrack/internal/reliability"
)

// InitializeServices creates all services in dependency order
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Event bus (in-process fan-out, consumed by the websocket stream)
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	// Asset directory
	container.AssetService = assets.NewService(container.AssetRepo, container.EventManager, log)

	// Trade engine
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.TradeMaxRetries
	container.TradeExecutor = trading.NewExecutor(
		container.AssetService,
		container.LedgerStore,
		container.EventManager,
		retryCfg,
		log,
	)
	container.Auditor = trading.NewAuditor(container.LedgerStore, log)

	// Portfolio queries
	container.PortfolioService = portfolio.NewPortfolioService(
		container.LedgerStore,
		container.AssetService,
		container.Auditor,
		cfg.HistoryDays,
		log,
	)

	// Backups. Without a bucket archives stay in the local backup directory.
	if cfg.Backup.Bucket != "" {
		store, err := reliability.NewS3Store(ctx, cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup object store: %w", err)
		}
		container.ObjectStore = store
	}
	container.BackupService = reliability.NewBackupService(
		container.SQLiteDatabases(),
		container.ObjectStore,
		filepath.Join(cfg.DataDir, "backups"),
		container.EventManager,
		log,
	)

	log.Debug().
		Int("trade_max_retries", retryCfg.MaxRetries).
		Int("history_days", container.PortfolioService.HistoryDays()).
		Bool("backup_upload", container.ObjectStore != nil).
		Msg("Services initialized")
	return nil
}
