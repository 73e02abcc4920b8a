package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TNT-747/investtrack/internal/database"
	"github.com/TNT-747/investtrack/internal/events"
)

// StatusMonitor periodically health checks the databases and emits an error event
// when one starts failing
type StatusMonitor struct {
	eventManager *events.Manager
	databases    []*database.DB
	limiter      *TradeLimiter
	limiterIdle  time.Duration
	log          zerolog.Logger

	mu       sync.Mutex
	healthy  map[string]bool
	stop     chan struct{}
	stopOnce sync.Once
}

// NewStatusMonitor creates a new status monitor. limiter may be nil.
func NewStatusMonitor(
	eventManager *events.Manager,
	databases []*database.DB,
	limiter *TradeLimiter,
	log zerolog.Logger,
) *StatusMonitor {
	return &StatusMonitor{
		eventManager: eventManager,
		databases:    databases,
		limiter:      limiter,
		limiterIdle:  10 * time.Minute,
		log:          log.With().Str("component", "status_monitor").Logger(),
		healthy:      make(map[string]bool),
		stop:         make(chan struct{}),
	}
}

// Start begins periodic status monitoring
func (m *StatusMonitor) Start(interval time.Duration) {
	go m.monitor(interval)
}

// Stop ends monitoring. Safe to call more than once.
func (m *StatusMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// monitor runs the periodic monitoring loop
func (m *StatusMonitor) monitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do initial check
	m.checkStatuses()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.checkStatuses()
		}
	}
}

// checkStatuses checks all monitored statuses and emits events on changes
func (m *StatusMonitor) checkStatuses() {
	m.checkDatabases()

	if m.limiter != nil {
		if removed := m.limiter.Prune(m.limiterIdle); removed > 0 {
			m.log.Debug().Int("removed", removed).Msg("Pruned idle trade rate limiters")
		}
	}
}

// checkDatabases reports health transitions, not every failing tick
func (m *StatusMonitor) checkDatabases() {
	for _, db := range m.databases {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.HealthCheck(ctx)
		cancel()

		m.mu.Lock()
		wasHealthy, seen := m.healthy[db.Name()]
		m.healthy[db.Name()] = err == nil
		m.mu.Unlock()

		switch {
		case err != nil && (wasHealthy || !seen):
			m.log.Error().Err(err).Str("database", db.Name()).Msg("Database became unhealthy")
			if m.eventManager != nil {
				m.eventManager.EmitError("status_monitor", err, map[string]interface{}{
					"database": db.Name(),
				})
			}
		case err == nil && seen && !wasHealthy:
			m.log.Info().Str("database", db.Name()).Msg("Database recovered")
		}
	}
}

// Healthy reports the last observed health of a database
func (m *StatusMonitor) Healthy(name string) (healthy, known bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	healthy, known = m.healthy[name]
	return healthy, known
}
