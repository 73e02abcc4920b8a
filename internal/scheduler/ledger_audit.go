package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/TNT-747/investtrack/internal/events"
	"github.com/TNT-747/investtrack/internal/modules/trading"
)

// LedgerAuditJob replays every position against its transaction log
type LedgerAuditJob struct {
	auditor *trading.Auditor
	emitter events.Emitter
	timeout time.Duration
	log     zerolog.Logger
}

// NewLedgerAuditJob creates a new ledger audit job. emitter may be nil.
func NewLedgerAuditJob(auditor *trading.Auditor, emitter events.Emitter, log zerolog.Logger) *LedgerAuditJob {
	return &LedgerAuditJob{
		auditor: auditor,
		emitter: emitter,
		timeout: 10 * time.Minute,
		log:     log.With().Str("job", "ledger_audit").Logger(),
	}
}

// Name returns the job name
func (j *LedgerAuditJob) Name() string {
	return "ledger_audit"
}

// Run verifies the whole ledger. Discrepancies are reported, not repaired.
func (j *LedgerAuditJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	report, err := j.auditor.VerifyAll(ctx)
	if err != nil {
		return fmt.Errorf("ledger audit failed: %w", err)
	}

	if !report.Clean() {
		j.log.Error().
			Int("discrepancies", len(report.Discrepancies)).
			Strs("positions", report.Keys()).
			Msg("Ledger audit found discrepancies")
	}

	if j.emitter != nil {
		j.emitter.Emit("scheduler", &events.LedgerAuditCompletedData{
			PositionsChecked: report.PositionsChecked,
			Discrepancies:    len(report.Discrepancies),
			Positions:        report.Keys(),
			DurationMs:       report.Duration.Milliseconds(),
		})
	}
	return nil
}
