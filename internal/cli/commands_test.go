package cli

import (
	"bytes"
	"context"
	"flag"
	"testing"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TNT-747/investtrack/internal/config"
)

type harness struct {
	t   *testing.T
	app *App
	out *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg, err := config.LoadFrom(map[string]string{"INVESTTRACK_DATA_DIR": t.TempDir()})
	require.NoError(t, err)

	out := &bytes.Buffer{}
	app := NewApp(cfg, zerolog.Nop())
	app.Out = out
	t.Cleanup(func() { _ = app.Close() })

	return &harness{t: t, app: app, out: out}
}

// run executes one command line and returns its exit status and stdout
func (h *harness) run(args ...string) (subcommands.ExitStatus, string) {
	h.t.Helper()
	h.out.Reset()

	fs := flag.NewFlagSet("ledgerctl", flag.ContinueOnError)
	commander := subcommands.NewCommander(fs, "ledgerctl")
	Register(commander, h.app)
	require.NoError(h.t, fs.Parse(args))

	status := commander.Execute(context.Background())
	return status, h.out.String()
}

func TestCommands_TradeLifecycle(t *testing.T) {
	h := newHarness(t)

	status, out := h.run("add-asset", "-symbol", "aapl", "-name", "Apple Inc.", "-type", "stock", "-price", "150")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Listed AAPL (STOCK) at $150.00")

	status, out = h.run("trade", "-user", "user-1", "-symbol", "AAPL", "-qty", "10")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Executed BUY 10 AAPL @ $150.00")

	status, out = h.run("price", "-symbol", "AAPL", "-price", "200")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "AAPL: $150.00 -> $200.00")

	status, out = h.run("trade", "-user", "user-1", "-symbol", "AAPL", "-qty", "4", "-side", "sell", "-ref", "sell-1")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Executed SELL 4 AAPL @ $200.00 (ref sell-1)")
	assert.Contains(t, out, "Holding: 6 AAPL, average $150.00")

	// Same reference returns the original trade
	status, out = h.run("trade", "-user", "user-1", "-symbol", "AAPL", "-qty", "4", "-side", "sell", "-ref", "sell-1")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Already executed SELL 4 AAPL")
	assert.Contains(t, out, "Holding: 6 AAPL")

	status, out = h.run("holdings", "-user", "user-1")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "$1,200.00")
	assert.Contains(t, out, "+$300.00")

	status, out = h.run("history", "-user", "user-1")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "BUY")
	assert.Contains(t, out, "SELL")
	assert.Contains(t, out, "sell-1")

	status, out = h.run("verify")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Checked 1 positions, 0 discrepancies")

	status, out = h.run("verify", "-user", "user-1", "-symbol", "aapl")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Checked 1 positions, 0 discrepancies")
}

func TestCommands_Assets(t *testing.T) {
	h := newHarness(t)

	h.run("add-asset", "-symbol", "BTC", "-name", "Bitcoin", "-type", "CRYPTO", "-price", "65000")
	h.run("add-asset", "-symbol", "MSFT", "-name", "Microsoft", "-type", "STOCK", "-price", "400")

	status, out := h.run("assets")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "BTC")
	assert.Contains(t, out, "$65,000.00")
	assert.Contains(t, out, "MSFT")

	status, out = h.run("assets", "-type", "crypto")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "BTC")
	assert.NotContains(t, out, "MSFT")

	status, _ = h.run("assets", "-type", "bond")
	assert.Equal(t, subcommands.ExitFailure, status)
}

func TestCommands_Failures(t *testing.T) {
	h := newHarness(t)

	status, _ := h.run("trade", "-user", "user-1", "-symbol", "NOPE", "-qty", "1")
	assert.Equal(t, subcommands.ExitFailure, status)

	status, _ = h.run("trade", "-user", "user-1", "-symbol", "AAPL", "-qty", "abc")
	assert.Equal(t, subcommands.ExitFailure, status)

	status, _ = h.run("price", "-symbol", "NOPE", "-price", "10")
	assert.Equal(t, subcommands.ExitFailure, status)

	status, _ = h.run("verify", "-symbol", "AAPL")
	assert.Equal(t, subcommands.ExitFailure, status)
}

func TestCommands_Backup(t *testing.T) {
	h := newHarness(t)

	status, out := h.run("backup")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Backup investtrack-backup-")
	assert.Contains(t, out, "2 databases")

	status, out = h.run("backup", "-list")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "No backup bucket configured")
}

func TestApp_CloseWithoutContainer(t *testing.T) {
	app := NewApp(&config.Config{}, zerolog.Nop())
	assert.NoError(t, app.Close())
}
