package trading

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/events"
	"github.com/TNT-747/investtrack/internal/modules/ledger"
	"github.com/TNT-747/investtrack/internal/pkg/retry"
)

const conflictMessage = "Trade could not be completed because the holding changed concurrently. Please try again."

// TradeResult is the outcome of a committed (or previously committed) trade
type TradeResult struct {
	// Holding is the position after the commit. For a replayed result it is the
	// position as it is now, which later trades may have moved on from.
	Holding     domain.Holding
	Transaction domain.Transaction
	Asset       domain.Asset
	// Attempts is the number of commit attempts, 0 for a replayed result
	Attempts int
	// Replayed is true when the reference had already been executed and nothing was written
	Replayed bool
}

// TradePreview is the dry-run outcome of a trade
type TradePreview struct {
	Request   TradeRequest
	Current   domain.Holding
	Resulting domain.Holding
	ExecPrice decimal.Decimal
}

// Executor runs trades through Received -> Validated -> Committed | Rejected
type Executor struct {
	validator    *Validator
	store        ledger.Store
	emitter      events.Emitter
	retry        retry.Config
	log          zerolog.Logger
	newReference func() string
}

// NewExecutor creates a trade executor. emitter may be nil.
func NewExecutor(
	assets AssetDirectory,
	store ledger.Store,
	emitter events.Emitter,
	retryCfg retry.Config,
	log zerolog.Logger,
) *Executor {
	return &Executor{
		validator:    NewValidator(assets, store, log),
		store:        store,
		emitter:      emitter,
		retry:        retryCfg,
		log:          log.With().Str("service", "trade_executor").Logger(),
		newReference: uuid.NewString,
	}
}

// Validator returns the validator used by the executor
func (e *Executor) Validator() *Validator {
	return e.validator
}

// ExecuteTrade validates and commits a trade atomically.
//
// Errors are *domain.TradeError values. A conflicting concurrent commit is retried
// from validation against fresh state up to the configured retry limit, after which
// the trade fails with KindConcurrentUpdateConflict. Re-submitting a request with the
// same Reference returns the original transaction without writing anything; reusing
// a Reference for a different side, symbol or quantity is an InvalidRequest.
func (e *Executor) ExecuteTrade(ctx context.Context, req TradeRequest) (*TradeResult, error) {
	req, err := e.validator.CheckRequest(req)
	if err != nil {
		return nil, e.reject(req, err)
	}

	if req.Reference == "" {
		req.Reference = e.newReference()
	} else {
		existing, err := e.store.FindByReference(ctx, req.UserID, req.Reference)
		if err != nil {
			return nil, e.reject(req, err)
		}
		if existing != nil {
			result, err := e.replayed(ctx, req, *existing)
			if err != nil {
				return nil, e.reject(req, err)
			}
			return result, nil
		}
	}

	started := time.Now()
	result, err := retry.Do(ctx, e.retry, ledger.IsRetryable,
		func(attempt int, err error, backoff time.Duration) {
			e.log.Debug().
				Str("user_id", req.UserID).
				Str("symbol", req.Symbol).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Holding changed concurrently, retrying trade")
		},
		func(attempt int) (*TradeResult, error) {
			return e.attempt(ctx, req, attempt)
		})
	if err != nil {
		switch {
		case errors.Is(err, retry.ErrExhausted):
			err = &domain.TradeError{Kind: domain.KindConcurrentUpdateConflict, Message: conflictMessage, Err: err}
		case errors.Is(err, ledger.ErrDuplicateReference):
			// a concurrent request with the same reference committed first
			existing, findErr := e.store.FindByReference(ctx, req.UserID, req.Reference)
			if findErr == nil && existing != nil {
				result, replayErr := e.replayed(ctx, req, *existing)
				if replayErr != nil {
					return nil, e.reject(req, replayErr)
				}
				return result, nil
			}
			err = ledger.Unavailable(errors.Join(err, findErr))
		default:
			err = ledger.Unavailable(err)
		}
		return nil, e.reject(req, err)
	}

	e.log.Info().
		Str("user_id", req.UserID).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Str("quantity", req.Quantity.String()).
		Str("price", result.Transaction.Price.String()).
		Int64("transaction_id", result.Transaction.ID).
		Int("attempts", result.Attempts).
		Dur("duration", time.Since(started)).
		Msg("Trade executed")

	e.emit(&events.TradeExecutedData{
		UserID:        req.UserID,
		Symbol:        req.Symbol,
		Side:          string(req.Side),
		Quantity:      req.Quantity.String(),
		Price:         result.Transaction.Price.String(),
		TransactionID: result.Transaction.ID,
		Reference:     req.Reference,
		Attempts:      result.Attempts,
	})
	e.emit(&events.HoldingChangedData{
		UserID:          result.Holding.UserID,
		Symbol:          result.Holding.AssetSymbol,
		Quantity:        result.Holding.Quantity.String(),
		AverageBuyPrice: result.Holding.AverageBuyPrice.String(),
		Version:         result.Holding.Version,
	})

	return result, nil
}

// attempt is one Validated -> Committed pass against fresh state
func (e *Executor) attempt(ctx context.Context, req TradeRequest, attempt int) (*TradeResult, error) {
	validated, err := e.validator.Validate(ctx, req)
	if err != nil {
		return nil, err
	}

	base := domain.NewHolding(req.UserID, validated.Asset.Symbol)
	if validated.Holding != nil {
		base = *validated.Holding
	}

	next, err := Apply(base, req.Side, req.Quantity, validated.ExecPrice)
	if err != nil {
		return nil, err
	}
	if err := next.Check(); err != nil {
		e.log.Error().
			Err(err).
			Bool("invariant_violation", true).
			Str("user_id", req.UserID).
			Str("symbol", validated.Asset.Symbol).
			Msg("Refusing to commit holding")
		return nil, err
	}

	holding, tx, err := e.store.CommitTrade(ctx, validated.Holding, next, domain.Transaction{
		Reference:   req.Reference,
		UserID:      req.UserID,
		AssetSymbol: validated.Asset.Symbol,
		Type:        req.Side,
		Quantity:    req.Quantity,
		Price:       validated.ExecPrice,
	})
	if err != nil {
		return nil, err
	}

	return &TradeResult{
		Holding:     holding,
		Transaction: tx,
		Asset:       validated.Asset,
		Attempts:    attempt + 1,
	}, nil
}

// Preview validates a trade and computes the resulting holding without committing
func (e *Executor) Preview(ctx context.Context, req TradeRequest) (*TradePreview, error) {
	validated, err := e.validator.Validate(ctx, req)
	if err != nil {
		return nil, ledger.Unavailable(err)
	}

	current := domain.NewHolding(validated.Request.UserID, validated.Asset.Symbol)
	if validated.Holding != nil {
		current = *validated.Holding
	}
	resulting, err := Apply(current, validated.Request.Side, validated.Request.Quantity, validated.ExecPrice)
	if err != nil {
		return nil, err
	}

	return &TradePreview{
		Request:   validated.Request,
		Current:   current,
		Resulting: resulting,
		ExecPrice: validated.ExecPrice,
	}, nil
}

// replayed returns the result for an already executed reference. The request must
// describe the same trade as the stored transaction.
func (e *Executor) replayed(ctx context.Context, req TradeRequest, tx domain.Transaction) (*TradeResult, error) {
	if req.Side != tx.Type || req.Symbol != tx.AssetSymbol || !req.Quantity.Equal(tx.Quantity) {
		return nil, domain.NewTradeError(domain.KindInvalidRequest,
			"Request ID %s was already used for a different trade (%s %s %s)",
			tx.Reference, tx.Type, tx.Quantity, tx.AssetSymbol)
	}

	holding, err := e.store.GetHolding(ctx, tx.UserID, tx.AssetSymbol)
	if err != nil {
		return nil, ledger.Unavailable(err)
	}
	if holding == nil {
		// a committed transaction always has its holding
		return nil, domain.NewTradeError(domain.KindInvariantViolation,
			"transaction %d has no holding for %s/%s", tx.ID, tx.UserID, tx.AssetSymbol)
	}

	e.log.Info().
		Str("user_id", tx.UserID).
		Str("reference", tx.Reference).
		Int64("transaction_id", tx.ID).
		Msg("Trade reference already executed, returning original result")

	return &TradeResult{
		Holding:     *holding,
		Transaction: tx,
		Replayed:    true,
	}, nil
}

func (e *Executor) reject(req TradeRequest, err error) error {
	kind := domain.KindOf(err)

	var event *zerolog.Event
	switch kind {
	case domain.KindStoreUnavailable:
		event = e.log.Error().Err(err)
		var te *domain.TradeError
		if errors.As(err, &te) && te.Err != nil {
			event = event.AnErr("cause", te.Err)
		}
	case domain.KindInvariantViolation:
		event = e.log.Error().Err(err).Bool("invariant_violation", true)
	default:
		event = e.log.Warn().Str("reason", err.Error())
	}
	event.
		Str("kind", string(kind)).
		Str("user_id", req.UserID).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Str("quantity", req.Quantity.String()).
		Msg("Trade rejected")

	e.emit(&events.TradeRejectedData{
		UserID:   req.UserID,
		Symbol:   req.Symbol,
		Side:     string(req.Side),
		Quantity: req.Quantity.String(),
		Kind:     string(kind),
		Reason:   err.Error(),
	})
	return err
}

func (e *Executor) emit(data events.EventData) {
	if e.emitter != nil {
		e.emitter.Emit("trading", data)
	}
}
