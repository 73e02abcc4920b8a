// Package portfolio answers read-side questions about a user's holdings:
// current positions, windowed trade history, valuation and ledger verification.
package portfolio

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/modules/ledger"
	"github.com/TNT-747/investtrack/internal/modules/trading"
)

// DefaultHistoryDays is the transaction window used when none is configured
const DefaultHistoryDays = 30

// percentScale is the precision of reported percentages
const percentScale int32 = 2

var hundred = decimal.NewFromInt(100)

// PositionSummary is one valued position
type PositionSummary struct {
	Symbol          string           `json:"assetSymbol"`
	Name            string           `json:"name,omitempty"`
	Type            domain.AssetType `json:"type,omitempty"`
	Quantity        decimal.Decimal  `json:"quantity"`
	AverageBuyPrice decimal.Decimal  `json:"averageBuyPrice"`
	CurrentPrice    decimal.Decimal  `json:"currentPrice"`
	MarketValue     decimal.Decimal  `json:"marketValue"`
	CostBasis       decimal.Decimal  `json:"costBasis"`
	UnrealizedPnL   decimal.Decimal  `json:"unrealizedPnl"`
	UnrealizedPct   decimal.Decimal  `json:"unrealizedPnlPercent"`
	Allocation      decimal.Decimal  `json:"allocationPercent"`
	// Priced is false when the asset is no longer listed; the position is then valued at cost
	Priced bool `json:"priced"`
}

// PortfolioSummary values every active position at current prices
type PortfolioSummary struct {
	UserID             string                               `json:"userId"`
	Positions          []PositionSummary                    `json:"positions"`
	TotalMarketValue   decimal.Decimal                      `json:"totalMarketValue"`
	TotalCostBasis     decimal.Decimal                      `json:"totalCostBasis"`
	TotalUnrealizedPnL decimal.Decimal                      `json:"totalUnrealizedPnl"`
	TotalUnrealizedPct decimal.Decimal                      `json:"totalUnrealizedPnlPercent"`
	ByType             map[domain.AssetType]decimal.Decimal `json:"marketValueByType"`
	AsOf               time.Time                            `json:"asOf"`
}

// PortfolioService serves portfolio and history queries from the ledger
type PortfolioService struct {
	store       ledger.Store
	assets      trading.AssetDirectory
	auditor     *trading.Auditor
	historyDays int
	now         func() time.Time
	log         zerolog.Logger
}

// NewPortfolioService creates a new portfolio service. historyDays <= 0 selects DefaultHistoryDays.
func NewPortfolioService(
	store ledger.Store,
	assets trading.AssetDirectory,
	auditor *trading.Auditor,
	historyDays int,
	log zerolog.Logger,
) *PortfolioService {
	if historyDays <= 0 {
		historyDays = DefaultHistoryDays
	}
	return &PortfolioService{
		store:       store,
		assets:      assets,
		auditor:     auditor,
		historyDays: historyDays,
		now:         time.Now,
		log:         log.With().Str("service", "portfolio").Logger(),
	}
}

// HistoryDays returns the default transaction window
func (s *PortfolioService) HistoryDays() int {
	return s.historyDays
}

// GetPortfolio returns the user's holdings with a positive quantity, ordered by symbol.
// Drained holdings are kept in the ledger but never shown.
func (s *PortfolioService) GetPortfolio(ctx context.Context, userID string) ([]domain.Holding, error) {
	holdings, err := s.store.ListHoldings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings for %s: %w", userID, err)
	}

	active := make([]domain.Holding, 0, len(holdings))
	for _, h := range holdings {
		if h.IsActive() {
			active = append(active, h)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].AssetSymbol < active[j].AssetSymbol })
	return active, nil
}

// GetTransactions returns the user's transactions from the last windowDays days, newest first.
// windowDays <= 0 selects the configured default.
func (s *PortfolioService) GetTransactions(ctx context.Context, userID string, windowDays int) ([]domain.Transaction, error) {
	if windowDays <= 0 {
		windowDays = s.historyDays
	}
	since := s.now().UTC().Add(-time.Duration(windowDays) * 24 * time.Hour)

	txs, err := s.store.ListTransactions(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for %s: %w", userID, err)
	}
	return txs, nil
}

// GetSummary values the user's active positions at current prices
func (s *PortfolioService) GetSummary(ctx context.Context, userID string) (*PortfolioSummary, error) {
	holdings, err := s.GetPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &PortfolioSummary{
		UserID:             userID,
		Positions:          make([]PositionSummary, 0, len(holdings)),
		TotalMarketValue:   decimal.Zero,
		TotalCostBasis:     decimal.Zero,
		TotalUnrealizedPnL: decimal.Zero,
		TotalUnrealizedPct: decimal.Zero,
		ByType:             make(map[domain.AssetType]decimal.Decimal),
		AsOf:               s.now().UTC(),
	}

	for _, h := range holdings {
		asset, err := s.assets.Lookup(ctx, h.AssetSymbol)
		if err != nil {
			return nil, domain.StoreUnavailable(fmt.Errorf("failed to price %s: %w", h.AssetSymbol, err))
		}

		pos := PositionSummary{
			Symbol:          h.AssetSymbol,
			Quantity:        h.Quantity,
			AverageBuyPrice: h.AverageBuyPrice,
			CostBasis:       h.CostBasis(),
			CurrentPrice:    h.AverageBuyPrice,
		}
		if asset != nil {
			pos.Name = asset.Name
			pos.Type = asset.Type
			pos.CurrentPrice = asset.CurrentPrice
			pos.Priced = true
		} else {
			s.log.Warn().
				Str("user_id", userID).
				Str("symbol", h.AssetSymbol).
				Msg("Holding references an unlisted asset, valuing at cost")
		}

		pos.MarketValue = h.Quantity.Mul(pos.CurrentPrice)
		pos.UnrealizedPnL = pos.MarketValue.Sub(pos.CostBasis)
		pos.UnrealizedPct = percentOf(pos.UnrealizedPnL, pos.CostBasis)

		summary.TotalMarketValue = summary.TotalMarketValue.Add(pos.MarketValue)
		summary.TotalCostBasis = summary.TotalCostBasis.Add(pos.CostBasis)
		if pos.Type != "" {
			summary.ByType[pos.Type] = summary.ByType[pos.Type].Add(pos.MarketValue)
		}
		summary.Positions = append(summary.Positions, pos)
	}

	summary.TotalUnrealizedPnL = summary.TotalMarketValue.Sub(summary.TotalCostBasis)
	summary.TotalUnrealizedPct = percentOf(summary.TotalUnrealizedPnL, summary.TotalCostBasis)
	for i := range summary.Positions {
		summary.Positions[i].Allocation = percentOf(summary.Positions[i].MarketValue, summary.TotalMarketValue)
	}

	return summary, nil
}

// Verify replays every position of the user against the transaction log
func (s *PortfolioService) Verify(ctx context.Context, userID string) (*trading.AuditReport, error) {
	return s.auditor.VerifyUser(ctx, userID)
}

// percentOf returns part/whole*100 rounded to percentScale places, zero for an empty whole
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, percentScale)
}
