// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/TNT-747/investtrack/internal/config"
	"github.com/TNT-747/investtrack/internal/reliability"
	"github.com/TNT-747/investtrack/internal/scheduler"
)

// MaintenanceSchedule runs the daily maintenance job at 03:00
const MaintenanceSchedule = "0 0 3 * * *"

// RegisterJobs creates the scheduler and registers every job.
// Returns JobInstances for manual triggering.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)
	instances := &JobInstances{}

	// Ledger audit: replay every position and report drift
	instances.LedgerAudit = scheduler.NewLedgerAuditJob(container.Auditor, container.EventManager, log)
	if cfg.AuditSchedule != "" {
		if err := sched.AddJob(cfg.AuditSchedule, instances.LedgerAudit); err != nil {
			return nil, err
		}
	}

	// WAL checkpoints on the SQLite databases
	instances.CheckWALCheckpoints = scheduler.NewCheckWALCheckpointsJob(container.SQLiteDatabases()...)
	instances.CheckWALCheckpoints.SetLogger(log)
	if cfg.WALCheckSchedule != "" {
		if err := sched.AddJob(cfg.WALCheckSchedule, instances.CheckWALCheckpoints); err != nil {
			return nil, err
		}
	}

	// Daily maintenance: integrity check, checkpoint, disk space
	instances.DailyMaintenance = reliability.NewDailyMaintenanceJob(container.SQLiteDatabases(), cfg.DataDir, log)
	if err := sched.AddJob(MaintenanceSchedule, instances.DailyMaintenance); err != nil {
		return nil, err
	}

	// Backups (optional)
	if cfg.Backup.Schedule != "" {
		instances.Backup = scheduler.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
		if err := sched.AddJob(cfg.Backup.Schedule, instances.Backup); err != nil {
			return nil, err
		}
		if !cfg.Backup.Enabled() {
			log.Warn().Msg("BACKUP_SCHEDULE set without BACKUP_BUCKET, backups are kept locally only")
		}
	}

	container.Scheduler = sched
	log.Info().Strs("jobs", sched.JobNames()).Msg("Jobs registered")

	return instances, nil
}
