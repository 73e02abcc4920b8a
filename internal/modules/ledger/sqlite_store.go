package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/TNT-747/investtrack/internal/database"
	"github.com/TNT-747/investtrack/internal/domain"
)

// Column lists must match scanHolding and scanTransaction
const (
	holdingColumns     = `id, user_id, asset_symbol, quantity, average_buy_price, version, updated_at`
	transactionColumns = `id, reference, holding_id, user_id, asset_symbol, type, quantity, price, executed_at`
)

// SQLiteStore is the Store backed by ledger.db
type SQLiteStore struct {
	ledgerDB *sql.DB
	timeout  time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a ledger store. ledgerDB should be opened with the ledger profile
// so writers take the lock at BEGIN and queue on busy_timeout.
func NewSQLiteStore(ledgerDB *sql.DB, timeout time.Duration, log zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		ledgerDB: ledgerDB,
		timeout:  timeout,
		log:      log.With().Str("repo", "ledger").Logger(),
		now:      time.Now,
	}
}

// GetHolding returns the holding for (userID, symbol), or nil when none exists
func (s *SQLiteStore) GetHolding(ctx context.Context, userID, symbol string) (*domain.Holding, error) {
	ctx, cancel := WithTimeout(ctx, s.timeout)
	defer cancel()

	row := s.ledgerDB.QueryRowContext(ctx,
		"SELECT "+holdingColumns+" FROM holdings WHERE user_id = ? AND asset_symbol = ?",
		userID, symbol)
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, Unavailable(fmt.Errorf("failed to get holding %s/%s: %w", userID, symbol, err))
	}
	return &h, nil
}

// CommitTrade applies a trade atomically
func (s *SQLiteStore) CommitTrade(ctx context.Context, prev *domain.Holding, next domain.Holding, tx domain.Transaction) (domain.Holding, domain.Transaction, error) {
	ctx, cancel := WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now().UTC()
	nowMs := now.UnixMilli()
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.UnixMilli(nowMs).UTC()
	}

	err := database.WithTransactionContext(ctx, s.ledgerDB, func(sqlTx *sql.Tx) error {
		if prev == nil {
			result, err := sqlTx.ExecContext(ctx, `
				INSERT INTO holdings (user_id, asset_symbol, quantity, average_buy_price, version, created_at, updated_at)
				VALUES (?, ?, ?, ?, 1, ?, ?)
			`, next.UserID, next.AssetSymbol, next.Quantity.String(), next.AverageBuyPrice.String(), nowMs, nowMs)
			if err != nil {
				if isUniqueViolation(err, "holdings") {
					// another request created the holding first
					return ErrConflict
				}
				return fmt.Errorf("failed to insert holding: %w", err)
			}
			id, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read holding id: %w", err)
			}
			next.ID = id
			next.Version = 1
		} else {
			result, err := sqlTx.ExecContext(ctx, `
				UPDATE holdings
				SET quantity = ?, average_buy_price = ?, version = version + 1, updated_at = ?
				WHERE id = ? AND version = ?
			`, next.Quantity.String(), next.AverageBuyPrice.String(), nowMs, prev.ID, prev.Version)
			if err != nil {
				return fmt.Errorf("failed to update holding: %w", err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read affected rows: %w", err)
			}
			if n == 0 {
				return ErrConflict
			}
			next.ID = prev.ID
			next.Version = prev.Version + 1
		}

		result, err := sqlTx.ExecContext(ctx, `
			INSERT INTO transactions (reference, holding_id, user_id, asset_symbol, type, quantity, price, executed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, tx.Reference, next.ID, tx.UserID, tx.AssetSymbol, string(tx.Type), tx.Quantity.String(), tx.Price.String(), tx.Timestamp.UnixMilli())
		if err != nil {
			if isUniqueViolation(err, "transactions") {
				return ErrDuplicateReference
			}
			return fmt.Errorf("failed to append transaction: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read transaction id: %w", err)
		}
		tx.ID = id
		tx.HoldingID = next.ID
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrDuplicateReference) {
			s.log.Error().Err(err).
				Str("user_id", next.UserID).
				Str("symbol", next.AssetSymbol).
				Msg("Failed to commit trade")
		}
		return domain.Holding{}, domain.Transaction{}, Unavailable(err)
	}

	next.UpdatedAt = time.UnixMilli(nowMs).UTC()
	return next, tx, nil
}

// ListHoldings returns all holdings of a user ordered by symbol
func (s *SQLiteStore) ListHoldings(ctx context.Context, userID string) ([]domain.Holding, error) {
	ctx, cancel := WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.ledgerDB.QueryContext(ctx,
		"SELECT "+holdingColumns+" FROM holdings WHERE user_id = ? ORDER BY asset_symbol", userID)
	if err != nil {
		return nil, Unavailable(fmt.Errorf("failed to query holdings: %w", err))
	}
	defer rows.Close()

	holdings := make([]domain.Holding, 0)
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, Unavailable(fmt.Errorf("failed to scan holding: %w", err))
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, Unavailable(fmt.Errorf("error iterating holdings: %w", err))
	}
	return holdings, nil
}

// ListTransactions returns a user's transactions since the given time, newest first
func (s *SQLiteStore) ListTransactions(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND executed_at >= ?
		ORDER BY executed_at DESC, id DESC
	`, userID, since.UTC().UnixMilli())
}

// ReplayLog returns the transactions of one position in commit order
func (s *SQLiteStore) ReplayLog(ctx context.Context, userID, symbol string) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND asset_symbol = ?
		ORDER BY id ASC
	`, userID, symbol)
}

// ReadPosition reads the holding and its log inside one transaction
func (s *SQLiteStore) ReadPosition(ctx context.Context, userID, symbol string) (*domain.Holding, []domain.Transaction, error) {
	ctx, cancel := WithTimeout(ctx, s.timeout)
	defer cancel()

	var holding *domain.Holding
	txs := make([]domain.Transaction, 0)
	err := database.WithTransactionContext(ctx, s.ledgerDB, func(sqlTx *sql.Tx) error {
		row := sqlTx.QueryRowContext(ctx,
			"SELECT "+holdingColumns+" FROM holdings WHERE user_id = ? AND asset_symbol = ?",
			userID, symbol)
		h, err := scanHolding(row)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to get holding %s/%s: %w", userID, symbol, err)
		default:
			holding = &h
		}

		rows, err := sqlTx.QueryContext(ctx, `
			SELECT `+transactionColumns+` FROM transactions
			WHERE user_id = ? AND asset_symbol = ?
			ORDER BY id ASC
		`, userID, symbol)
		if err != nil {
			return fmt.Errorf("failed to query transactions: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			tx, err := scanTransaction(rows)
			if err != nil {
				return fmt.Errorf("failed to scan transaction: %w", err)
			}
			txs = append(txs, tx)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, Unavailable(err)
	}
	return holding, txs, nil
}

// FindByReference looks up a transaction by its idempotency reference
func (s *SQLiteStore) FindByReference(ctx context.Context, userID, reference string) (*domain.Transaction, error) {
	ctx, cancel := WithTimeout(ctx, s.timeout)
	defer cancel()

	row := s.ledgerDB.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = ? AND reference = ?",
		userID, reference)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, Unavailable(fmt.Errorf("failed to find transaction %s: %w", reference, err))
	}
	return &tx, nil
}

// ListPositionKeys returns every (user, symbol) pair with a holding row
func (s *SQLiteStore) ListPositionKeys(ctx context.Context) ([]PositionKey, error) {
	ctx, cancel := WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.ledgerDB.QueryContext(ctx,
		"SELECT user_id, asset_symbol FROM holdings ORDER BY user_id, asset_symbol")
	if err != nil {
		return nil, Unavailable(fmt.Errorf("failed to query position keys: %w", err))
	}
	defer rows.Close()

	keys := make([]PositionKey, 0)
	for rows.Next() {
		var k PositionKey
		if err := rows.Scan(&k.UserID, &k.Symbol); err != nil {
			return nil, Unavailable(fmt.Errorf("failed to scan position key: %w", err))
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, Unavailable(fmt.Errorf("error iterating position keys: %w", err))
	}
	return keys, nil
}

func (s *SQLiteStore) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]domain.Transaction, error) {
	ctx, cancel := WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.ledgerDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Unavailable(fmt.Errorf("failed to query transactions: %w", err))
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, Unavailable(fmt.Errorf("failed to scan transaction: %w", err))
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, Unavailable(fmt.Errorf("error iterating transactions: %w", err))
	}
	return txs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(row rowScanner) (domain.Holding, error) {
	var (
		h         domain.Holding
		quantity  string
		average   string
		updatedAt int64
	)
	if err := row.Scan(&h.ID, &h.UserID, &h.AssetSymbol, &quantity, &average, &h.Version, &updatedAt); err != nil {
		return domain.Holding{}, err
	}

	var err error
	if h.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return domain.Holding{}, fmt.Errorf("corrupt quantity %q: %w", quantity, err)
	}
	if h.AverageBuyPrice, err = decimal.NewFromString(average); err != nil {
		return domain.Holding{}, fmt.Errorf("corrupt average price %q: %w", average, err)
	}
	h.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return h, nil
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		tx         domain.Transaction
		side       string
		quantity   string
		price      string
		executedAt int64
	)
	if err := row.Scan(&tx.ID, &tx.Reference, &tx.HoldingID, &tx.UserID, &tx.AssetSymbol, &side, &quantity, &price, &executedAt); err != nil {
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
	tx.Timestamp = time.UnixMilli(executedAt).UTC()
	return tx, nil
}

// isUniqueViolation matches SQLite's "UNIQUE constraint failed: <table>.<col>" message
func isUniqueViolation(err error, table string) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed: "+table+".")
}
