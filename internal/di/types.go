/**
 * Package di provides dependency injection type definitions.
 *
 * Container holds every long-lived dependency of the service. It is built by
 * Wire() and handed to the HTTP server, the scheduler and the CLI.
 */
package di

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TNT-747/investtrack/internal/database"
	"github.com/TNT-747/investtrack/internal/events"
	"github.com/TNT-747/investtrack/internal/modules/assets"
	"github.com/TNT-747/investtrack/internal/modules/ledger"
	"github.com/TNT-747/investtrack/internal/modules/portfolio"
	"github.com/TNT-747/investtrack/internal/modules/trading"
	"github.com/TNT-747/investtrack/internal/reliability"
	"github.com/TNT-747/investtrack/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: universe.db (asset directory) and ledger.db (holdings + transaction log).
 *   With LEDGER_DRIVER=postgres the ledger lives in PostgreSQL and LedgerDB is nil.
 * - Repositories: asset repository and the ledger store
 * - Services: asset directory, trade executor, auditor, portfolio queries, backups
 */
type Container struct {
	// Databases
	UniverseDB *database.DB
	LedgerDB   *database.DB // nil with the postgres ledger driver
	PgPool     *pgxpool.Pool

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Repositories
	AssetRepo   *assets.AssetRepository
	LedgerStore ledger.Store

	// Services
	AssetService     *assets.Service
	TradeExecutor    *trading.Executor
	Auditor          *trading.Auditor
	PortfolioService *portfolio.PortfolioService
	ObjectStore      reliability.ObjectStore // nil when no backup bucket is configured
	BackupService    *reliability.BackupService

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs for manual triggering
type JobInstances struct {
	LedgerAudit         *scheduler.LedgerAuditJob
	CheckWALCheckpoints *scheduler.CheckWALCheckpointsJob
	DailyMaintenance    *reliability.DailyMaintenanceJob
	Backup              *scheduler.BackupJob // nil when BACKUP_SCHEDULE is empty
}

// SQLiteDatabases returns the open SQLite databases, skipping the ones not in use
func (c *Container) SQLiteDatabases() []*database.DB {
	dbs := make([]*database.DB, 0, 2)
	for _, db := range []*database.DB{c.UniverseDB, c.LedgerDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close stops the scheduler and releases every database handle
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.EventBus != nil {
		c.EventBus.Wait()
	}

	var firstErr error
	for _, db := range c.SQLiteDatabases() {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.PgPool != nil {
		c.PgPool.Close()
	}
	return firstErr
}
