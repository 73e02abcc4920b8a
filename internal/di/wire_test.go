package di

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/modules/ledger"
	"github.com/TNT-747/investtrack/internal/modules/trading"
)

func TestWire(t *testing.T) {
	cfg := testConfig(t, nil)

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, container)
	require.NotNil(t, jobs)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.EventManager)
	assert.NotNil(t, container.AssetService)
	assert.NotNil(t, container.TradeExecutor)
	assert.NotNil(t, container.Auditor)
	assert.NotNil(t, container.PortfolioService)
	assert.NotNil(t, container.BackupService)
	assert.Nil(t, container.ObjectStore)
	assert.IsType(t, &ledger.SQLiteStore{}, container.LedgerStore)

	assert.NotNil(t, jobs.LedgerAudit)
	assert.NotNil(t, jobs.CheckWALCheckpoints)
	assert.NotNil(t, jobs.DailyMaintenance)
	assert.Nil(t, jobs.Backup)
	assert.ElementsMatch(t,
		[]string{"ledger_audit", "check_wal_checkpoints", "daily_maintenance"},
		container.Scheduler.JobNames())
}

func TestWire_BackupJobRegistered(t *testing.T) {
	cfg := testConfig(t, map[string]string{"BACKUP_SCHEDULE": "@daily"})

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	require.NotNil(t, jobs.Backup)
	assert.Contains(t, container.Scheduler.JobNames(), "backup")
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t, map[string]string{"AUDIT_SCHEDULE": "not a schedule"})

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, container)
	assert.Nil(t, jobs)
}

func TestWire_TradeRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, nil)

	container, jobs, err := Wire(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	_, err = container.AssetService.Create(ctx, domain.Asset{
		Symbol:       "aapl",
		Name:         "Apple Inc.",
		Type:         domain.AssetTypeStock,
		CurrentPrice: decimal.NewFromInt(150),
	})
	require.NoError(t, err)

	result, err := container.TradeExecutor.ExecuteTrade(ctx, trading.TradeRequest{
		UserID:   "user-1",
		Symbol:   "AAPL",
		Side:     domain.SideBuy,
		Quantity: decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	assert.True(t, result.Holding.Quantity.Equal(decimal.NewFromInt(2)))

	holdings, err := container.PortfolioService.GetPortfolio(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "AAPL", holdings[0].AssetSymbol)

	// Jobs run against the wired databases
	assert.NoError(t, jobs.LedgerAudit.Run())
	assert.NoError(t, jobs.CheckWALCheckpoints.Run())
}
