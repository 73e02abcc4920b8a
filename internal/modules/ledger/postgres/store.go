// Package postgres provides the ledger store on PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/modules/ledger"
)

//go:embed schema.sql
var schemaSQL string

const (
	holdingColumns     = `id, user_id, asset_symbol, quantity::text, average_buy_price::text, version, updated_at`
	transactionColumns = `id, reference, holding_id, user_id, asset_symbol, type, quantity::text, price::text, executed_at`

	uniqueViolation = "23505"
)

// Store is the ledger.Store backed by a pgx pool
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

var _ ledger.Store = (*Store)(nil)

// NewStore creates a PostgreSQL ledger store
func NewStore(pool *pgxpool.Pool, timeout time.Duration, log zerolog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	return &Store{
		pool:    pool,
		timeout: timeout,
		log:     log.With().Str("repo", "ledger_postgres").Logger(),
		now:     time.Now,
	}, nil
}

// Connect opens a pool for dsn and verifies it
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply ledger schema: %w", err)
	}
	return nil
}

// GetHolding returns nil, nil when the user never held the symbol
func (s *Store) GetHolding(ctx context.Context, userID, symbol string) (*domain.Holding, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := s.pool.QueryRow(ctx,
		"SELECT "+holdingColumns+" FROM holdings WHERE user_id = $1 AND asset_symbol = $2",
		userID, symbol)
	h, err := scanHolding(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ledger.Unavailable(fmt.Errorf("failed to get holding %s/%s: %w", userID, symbol, err))
	}
	return &h, nil
}

// CommitTrade compare-and-swaps the holding and appends the transaction in one transaction
func (s *Store) CommitTrade(ctx context.Context, prev *domain.Holding, next domain.Holding, tx domain.Transaction) (domain.Holding, domain.Transaction, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now().UTC().Truncate(time.Microsecond)
	if tx.Timestamp.IsZero() {
		tx.Timestamp = now
	}

	err := pgx.BeginFunc(ctx, s.pool, func(pgTx pgx.Tx) error {
		if prev == nil {
			err := pgTx.QueryRow(ctx, `
				INSERT INTO holdings (user_id, asset_symbol, quantity, average_buy_price, version, created_at, updated_at)
				VALUES ($1, $2, $3, $4, 1, $5, $5)
				RETURNING id
			`, next.UserID, next.AssetSymbol, next.Quantity.String(), next.AverageBuyPrice.String(), now).Scan(&next.ID)
			if err != nil {
				if isUniqueViolation(err, "holdings_user_symbol_key") {
					return ledger.ErrConflict
				}
				return fmt.Errorf("failed to insert holding: %w", err)
			}
			next.Version = 1
		} else {
			tag, err := pgTx.Exec(ctx, `
				UPDATE holdings
				SET quantity = $1, average_buy_price = $2, version = version + 1, updated_at = $3
				WHERE id = $4 AND version = $5
			`, next.Quantity.String(), next.AverageBuyPrice.String(), now, prev.ID, prev.Version)
			if err != nil {
				return fmt.Errorf("failed to update holding: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ledger.ErrConflict
			}
			next.ID = prev.ID
			next.Version = prev.Version + 1
		}

		err := pgTx.QueryRow(ctx, `
			INSERT INTO transactions (reference, holding_id, user_id, asset_symbol, type, quantity, price, executed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, tx.Reference, next.ID, tx.UserID, tx.AssetSymbol, string(tx.Type), tx.Quantity.String(), tx.Price.String(), tx.Timestamp).Scan(&tx.ID)
		if err != nil {
			if isUniqueViolation(err, "transactions_user_reference_key") {
				return ledger.ErrDuplicateReference
			}
			return fmt.Errorf("failed to append transaction: %w", err)
		}
		tx.HoldingID = next.ID
		return nil
	})
	if err != nil {
		if !errors.Is(err, ledger.ErrConflict) && !errors.Is(err, ledger.ErrDuplicateReference) {
			s.log.Error().Err(err).
				Str("user_id", next.UserID).
				Str("symbol", next.AssetSymbol).
				Msg("Failed to commit trade")
		}
		return domain.Holding{}, domain.Transaction{}, ledger.Unavailable(err)
	}

	next.UpdatedAt = now
	return next, tx, nil
}

// ListHoldings returns all holdings of a user ordered by symbol
func (s *Store) ListHoldings(ctx context.Context, userID string) ([]domain.Holding, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		"SELECT "+holdingColumns+" FROM holdings WHERE user_id = $1 ORDER BY asset_symbol", userID)
	if err != nil {
		return nil, ledger.Unavailable(fmt.Errorf("failed to query holdings: %w", err))
	}
	defer rows.Close()

	out := make([]domain.Holding, 0)
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, ledger.Unavailable(fmt.Errorf("failed to scan holding: %w", err))
		}
		out = append(out, h)
	}
	return out, ledger.Unavailable(rows.Err())
}

// ListTransactions returns transactions since the given time, newest first
func (s *Store) ListTransactions(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 AND executed_at >= $2
		ORDER BY executed_at DESC, id DESC
	`, userID, since.UTC())
}

// ReplayLog returns one position's transactions oldest first
func (s *Store) ReplayLog(ctx context.Context, userID, symbol string) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 AND asset_symbol = $2
		ORDER BY id ASC
	`, userID, symbol)
}

// ReadPosition reads the holding and its log in one repeatable-read transaction
func (s *Store) ReadPosition(ctx context.Context, userID, symbol string) (*domain.Holding, []domain.Transaction, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, nil, ledger.Unavailable(fmt.Errorf("failed to begin read: %w", err))
	}
	defer pgTx.Rollback(ctx)

	var holding *domain.Holding
	row := pgTx.QueryRow(ctx,
		"SELECT "+holdingColumns+" FROM holdings WHERE user_id = $1 AND asset_symbol = $2",
		userID, symbol)
	h, err := scanHolding(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, nil, ledger.Unavailable(fmt.Errorf("failed to get holding %s/%s: %w", userID, symbol, err))
	default:
		holding = &h
	}

	rows, err := pgTx.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 AND asset_symbol = $2
		ORDER BY id ASC
	`, userID, symbol)
	if err != nil {
		return nil, nil, ledger.Unavailable(fmt.Errorf("failed to query transactions: %w", err))
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, nil, ledger.Unavailable(fmt.Errorf("failed to scan transaction: %w", err))
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, ledger.Unavailable(fmt.Errorf("error iterating transactions: %w", err))
	}
	return holding, txs, nil
}

// FindByReference returns nil, nil when the reference is unknown
func (s *Store) FindByReference(ctx context.Context, userID, reference string) (*domain.Transaction, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := s.pool.QueryRow(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = $1 AND reference = $2",
		userID, reference)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ledger.Unavailable(fmt.Errorf("failed to find transaction %s: %w", reference, err))
	}
	return &tx, nil
}

// ListPositionKeys returns every (user, symbol) pair with a holding row
func (s *Store) ListPositionKeys(ctx context.Context) ([]ledger.PositionKey, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, "SELECT user_id, asset_symbol FROM holdings ORDER BY user_id, asset_symbol")
	if err != nil {
		return nil, ledger.Unavailable(fmt.Errorf("failed to query position keys: %w", err))
	}
	defer rows.Close()

	keys := make([]ledger.PositionKey, 0)
	for rows.Next() {
		var k ledger.PositionKey
		if err := rows.Scan(&k.UserID, &k.Symbol); err != nil {
			return nil, ledger.Unavailable(fmt.Errorf("failed to scan position key: %w", err))
		}
		keys = append(keys, k)
	}
	return keys, ledger.Unavailable(rows.Err())
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, ledger.Unavailable(fmt.Errorf("failed to query transactions: %w", err))
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, ledger.Unavailable(fmt.Errorf("failed to scan transaction: %w", err))
		}
		out = append(out, tx)
	}
	return out, ledger.Unavailable(rows.Err())
}

func scanHolding(row pgx.Row) (domain.Holding, error) {
	var (
		h                 domain.Holding
		quantity, average string
	)
	if err := row.Scan(&h.ID, &h.UserID, &h.AssetSymbol, &quantity, &average, &h.Version, &h.UpdatedAt); err != nil {
		return domain.Holding{}, err
	}

	var err error
	if h.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return domain.Holding{}, fmt.Errorf("corrupt quantity %q: %w", quantity, err)
	}
	if h.AverageBuyPrice, err = decimal.NewFromString(average); err != nil {
		return domain.Holding{}, fmt.Errorf("corrupt average price %q: %w", average, err)
	}
	h.UpdatedAt = h.UpdatedAt.UTC()
	return h, nil
}

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		tx              domain.Transaction
		side            string
		quantity, price string
	)
	if err := row.Scan(&tx.ID, &tx.Reference, &tx.HoldingID, &tx.UserID, &tx.AssetSymbol, &side, &quantity, &price, &tx.Timestamp); err != nil {
		return domain.Transaction{}, err
	}

	var err error
	if tx.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return domain.Transaction{}, fmt.Errorf("corrupt quantity %q: %w", quantity, err)
	}
	if tx.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Transaction{}, fmt.Errorf("corrupt price %q: %w", price, err)
	}
	tx.Type = domain.TradeSide(side)
	tx.Timestamp = tx.Timestamp.UTC()
	return tx, nil
}

// isUniqueViolation checks for SQLSTATE 23505 on the named constraint
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
	}
	return false
}
