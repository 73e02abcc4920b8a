package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/TNT-747/investtrack/internal/modules/ledger"
)

// Discrepancy is a position whose stored holding does not match its replayed log
type Discrepancy struct {
	UserID           string          `json:"userId"`
	Symbol           string          `json:"symbol"`
	StoredQuantity   decimal.Decimal `json:"storedQuantity"`
	StoredAverage    decimal.Decimal `json:"storedAverageBuyPrice"`
	ReplayedQuantity decimal.Decimal `json:"replayedQuantity"`
	ReplayedAverage  decimal.Decimal `json:"replayedAverageBuyPrice"`
	Transactions     int             `json:"transactions"`
	Reason           string          `json:"reason"`
}

// AuditReport summarises a full ledger verification
type AuditReport struct {
	Discrepancies    []Discrepancy `json:"discrepancies"`
	PositionsChecked int           `json:"positionsChecked"`
	Duration         time.Duration `json:"-"`
}

// Auditor checks the replay invariant: folding a position's transaction log through
// Apply reproduces the stored holding exactly.
type Auditor struct {
	store ledger.Store
	log   zerolog.Logger
}

// NewAuditor creates a ledger auditor
func NewAuditor(store ledger.Store, log zerolog.Logger) *Auditor {
	return &Auditor{
		store: store,
		log:   log.With().Str("service", "ledger_auditor").Logger(),
	}
}

// Verify replays one position. It returns nil when the holding matches its log.
// The holding and log come from one snapshot, so trades committing during the
// audit cannot show up as drift.
func (a *Auditor) Verify(ctx context.Context, userID, symbol string) (*Discrepancy, error) {
	stored, txs, err := a.store.ReadPosition(ctx, userID, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to read position %s/%s: %w", userID, symbol, err)
	}

	if stored == nil && len(txs) == 0 {
		return nil, nil
	}

	d := Discrepancy{UserID: userID, Symbol: symbol, Transactions: len(txs)}
	if stored != nil {
		d.StoredQuantity = stored.Quantity
		d.StoredAverage = stored.AverageBuyPrice
	}

	replayed, err := Replay(userID, symbol, txs)
	d.ReplayedQuantity = replayed.Quantity
	d.ReplayedAverage = replayed.AverageBuyPrice

	switch {
	case err != nil:
		d.Reason = err.Error()
	case stored == nil:
		d.Reason = "transactions exist without a holding"
	case !stored.Quantity.Equal(replayed.Quantity):
		d.Reason = "quantity differs from replayed log"
	case !stored.AverageBuyPrice.Equal(replayed.AverageBuyPrice):
		d.Reason = "average buy price differs from replayed log"
	default:
		return nil, nil
	}

	a.log.Error().
		Str("user_id", userID).
		Str("symbol", symbol).
		Str("stored_quantity", d.StoredQuantity.String()).
		Str("replayed_quantity", d.ReplayedQuantity.String()).
		Str("stored_average", d.StoredAverage.String()).
		Str("replayed_average", d.ReplayedAverage.String()).
		Str("reason", d.Reason).
		Msg("Ledger discrepancy")
	return &d, nil
}

// VerifyUser replays every position of one user
func (a *Auditor) VerifyUser(ctx context.Context, userID string) (*AuditReport, error) {
	holdings, err := a.store.ListHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	keys := make([]ledger.PositionKey, 0, len(holdings))
	for _, h := range holdings {
		keys = append(keys, ledger.PositionKey{UserID: h.UserID, Symbol: h.AssetSymbol})
	}
	return a.verifyKeys(ctx, keys)
}

// VerifyAll replays every position in the ledger
func (a *Auditor) VerifyAll(ctx context.Context) (*AuditReport, error) {
	keys, err := a.store.ListPositionKeys(ctx)
	if err != nil {
		return nil, err
	}

	report, err := a.verifyKeys(ctx, keys)
	if err != nil {
		return nil, err
	}

	a.log.Info().
		Int("positions_checked", report.PositionsChecked).
		Int("discrepancies", len(report.Discrepancies)).
		Dur("duration", report.Duration).
		Msg("Ledger audit completed")
	return report, nil
}

func (a *Auditor) verifyKeys(ctx context.Context, keys []ledger.PositionKey) (*AuditReport, error) {
	started := time.Now()
	report := &AuditReport{Discrepancies: make([]Discrepancy, 0)}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := a.Verify(ctx, key.UserID, key.Symbol)
		if err != nil {
			return nil, err
		}
		report.PositionsChecked++
		if d != nil {
			report.Discrepancies = append(report.Discrepancies, *d)
		}
	}

	report.Duration = time.Since(started)
	return report, nil
}

// Keys returns the user/symbol keys of the failing positions
func (r *AuditReport) Keys() []string {
	keys := make([]string, 0, len(r.Discrepancies))
	for _, d := range r.Discrepancies {
		keys = append(keys, ledger.PositionKey{UserID: d.UserID, Symbol: d.Symbol}.String())
	}
	return keys
}

// Clean reports whether no discrepancy was found
func (r *AuditReport) Clean() bool {
	return len(r.Discrepancies) == 0
}
