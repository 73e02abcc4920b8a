// Package ledger persists holdings and the append-only transaction log.
//
// A trade commits as one atomic unit: the holding is compare-and-swapped on its
// version and the transaction row is appended in the same database transaction.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/TNT-747/investtrack/internal/domain"
)

var (
	// ErrConflict reports that the holding changed since it was read
	ErrConflict = errors.New("ledger: holding was modified concurrently")
	// ErrDuplicateReference reports that the user already has a transaction with this reference
	ErrDuplicateReference = errors.New("ledger: duplicate trade reference")
)

// DefaultTimeout bounds a single store call when no timeout is configured
const DefaultTimeout = 5 * time.Second

// PositionKey identifies one holding
type PositionKey struct {
	UserID string `json:"userId"`
	Symbol string `json:"symbol"`
}

// String renders the key as user/symbol
func (k PositionKey) String() string {
	return k.UserID + "/" + k.Symbol
}

// Store is the ledger persistence port.
//
// Infrastructure failures are returned as domain.StoreUnavailable. ErrConflict and
// ErrDuplicateReference are returned as-is so callers can match them with errors.Is.
type Store interface {
	// GetHolding returns nil, nil when the user never held the symbol
	GetHolding(ctx context.Context, userID, symbol string) (*domain.Holding, error)
	// CommitTrade replaces prev with next and appends tx atomically. prev nil means the
	// holding does not exist yet. Returns the persisted holding and transaction.
	CommitTrade(ctx context.Context, prev *domain.Holding, next domain.Holding, tx domain.Transaction) (domain.Holding, domain.Transaction, error)
	// ListHoldings returns every holding of a user, including zero quantities, ordered by symbol
	ListHoldings(ctx context.Context, userID string) ([]domain.Holding, error)
	// ListTransactions returns transactions executed at or after since, newest first
	ListTransactions(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error)
	// ReplayLog returns every transaction of one position, oldest first
	ReplayLog(ctx context.Context, userID, symbol string) ([]domain.Transaction, error)
	// ReadPosition returns the holding and its transaction log from one snapshot, so no
	// commit can land between the two reads. The holding is nil when none exists.
	ReadPosition(ctx context.Context, userID, symbol string) (*domain.Holding, []domain.Transaction, error)
	// FindByReference returns nil, nil when no transaction carries the reference
	FindByReference(ctx context.Context, userID, reference string) (*domain.Transaction, error)
	// ListPositionKeys returns every position that has a holding row
	ListPositionKeys(ctx context.Context) ([]PositionKey, error)
}

// IsRetryable reports whether a failed commit should be retried from a fresh read
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// WithTimeout derives the per-call context used by store implementations
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// Unavailable maps an infrastructure failure to domain.StoreUnavailable, passing
// ledger sentinels and already classified errors through untouched.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrDuplicateReference) {
		return err
	}
	var te *domain.TradeError
	if errors.As(err, &te) {
		return err
	}
	return domain.StoreUnavailable(err)
}
