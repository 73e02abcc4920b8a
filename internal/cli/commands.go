package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/TNT-747/investtrack/internal/domain"
	"github.com/TNT-747/investtrack/internal/modules/trading"
	"github.com/TNT-747/investtrack/internal/reliability"
)

type assetsCmd struct {
	app       *App
	assetType string
}

func (*assetsCmd) Name() string     { return "assets" }
func (*assetsCmd) Synopsis() string { return "list the tradable assets and their current prices" }
func (*assetsCmd) Usage() string {
	return `ledgerctl assets [-type STOCK|CRYPTO|COMMODITY]
`
}

func (c *assetsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.assetType, "type", "", "Only list assets of this type.")
}

func (c *assetsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, err := c.app.Container(ctx)
	if err != nil {
		return c.app.fail(err)
	}

	var list []domain.Asset
	if c.assetType != "" {
		assetType, err := domain.ParseAssetType(c.assetType)
		if err != nil {
			return c.app.fail(err)
		}
		list, err = container.AssetService.ListByType(ctx, assetType)
		if err != nil {
			return c.app.fail(err)
		}
	} else {
		list, err = container.AssetService.List(ctx)
		if err != nil {
			return c.app.fail(err)
		}
	}

	w := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tNAME\tTYPE\tPRICE")
	for _, a := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Symbol, a.Name, a.Type, FormatMoney(a.CurrentPrice, c.app.Config.ReportingCurrency))
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type addAssetCmd struct {
	app       *App
	symbol    string
	name      string
	assetType string
	price     string
}

func (*addAssetCmd) Name() string     { return "add-asset" }
func (*addAssetCmd) Synopsis() string { return "list a new tradable asset" }
func (*addAssetCmd) Usage() string {
	return `ledgerctl add-asset -symbol <symbol> -name <name> -type <type> -price <price>
`
}

func (c *addAssetCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "symbol", "", "Asset symbol, case-insensitive.")
	f.StringVar(&c.name, "name", "", "Display name.")
	f.StringVar(&c.assetType, "type", "STOCK", "STOCK, CRYPTO or COMMODITY.")
	f.StringVar(&c.price, "price", "", "Current price, must be positive.")
}

func (c *addAssetCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	assetType, err := domain.ParseAssetType(c.assetType)
	if err != nil {
		return c.app.fail(err)
	}
	price, err := decimal.NewFromString(c.price)
	if err != nil {
		return c.app.fail(fmt.Errorf("invalid price %q: %w", c.price, err))
	}

	container, err := c.app.Container(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	asset, err := container.AssetService.Create(ctx, domain.Asset{
		Symbol:       c.symbol,
		Name:         c.name,
		Type:         assetType,
		CurrentPrice: price,
	})
	if err != nil {
		return c.app.fail(err)
	}

	fmt.Fprintf(c.app.Out, "Listed %s (%s) at %s\n", asset.Symbol, asset.Type, FormatMoney(asset.CurrentPrice, c.app.Config.ReportingCurrency))
	return subcommands.ExitSuccess
}

type priceCmd struct {
	app    *App
	symbol string
	price  string
}

func (*priceCmd) Name() string     { return "price" }
func (*priceCmd) Synopsis() string { return "set the current price of an asset" }
func (*priceCmd) Usage() string {
	return `ledgerctl price -symbol <symbol> -price <price>

  Future trades execute at the new price. Existing holdings keep their average buy price.
`
}

func (c *priceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "symbol", "", "Asset symbol.")
	f.StringVar(&c.price, "price", "", "New price, must be positive.")
}

func (c *priceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	price, err := decimal.NewFromString(c.price)
	if err != nil {
		return c.app.fail(fmt.Errorf("invalid price %q: %w", c.price, err))
	}

	container, err := c.app.Container(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	asset, err := container.AssetService.GetBySymbol(ctx, c.symbol)
	if err != nil {
		return c.app.fail(err)
	}
	updated, err := container.AssetService.UpdatePrice(ctx, asset.ID, price)
	if err != nil {
		return c.app.fail(err)
	}

	cur := c.app.Config.ReportingCurrency
	fmt.Fprintf(c.app.Out, "%s: %s -> %s\n", updated.Symbol, FormatMoney(asset.CurrentPrice, cur), FormatMoney(updated.CurrentPrice, cur))
	return subcommands.ExitSuccess
}

type tradeCmd struct {
	app       *App
	user      string
	symbol    string
	quantity  string
	side      string
	reference string
}

func (*tradeCmd) Name() string     { return "trade" }
func (*tradeCmd) Synopsis() string { return "execute a buy or sell at the asset's current price" }
func (*tradeCmd) Usage() string {
	return `ledgerctl trade -user <id> -symbol <symbol> -qty <quantity> [-side BUY|SELL] [-ref <reference>]

  Reusing a reference returns the original trade without executing it again.
`
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "User identifier.")
	f.StringVar(&c.symbol, "symbol", "", "Asset symbol.")
	f.StringVar(&c.quantity, "qty", "", "Quantity, up to 8 decimal places.")
	f.StringVar(&c.side, "side", "BUY", "BUY or SELL.")
	f.StringVar(&c.reference, "ref", "", "Idempotency reference, generated when empty.")
}

func (c *tradeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	side, err := domain.ParseTradeSide(c.side)
	if err != nil {
		return c.app.fail(err)
	}
	quantity, err := decimal.NewFromString(c.quantity)
	if err != nil {
		return c.app.fail(fmt.Errorf("invalid quantity %q: %w", c.quantity, err))
	}

	container, err := c.app.Container(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	result, err := container.TradeExecutor.ExecuteTrade(ctx, trading.TradeRequest{
		UserID:    c.user,
		Symbol:    c.symbol,
		Side:      side,
		Reference: c.reference,
		Quantity:  quantity,
	})
	if err != nil {
		return c.app.fail(err)
	}

	cur := c.app.Config.ReportingCurrency
	tx := result.Transaction
	status := "Executed"
	if result.Replayed {
		status = "Already executed"
	}
	fmt.Fprintf(c.app.Out, "%s %s %s %s @ %s (ref %s)\n", status, tx.Type, tx.Quantity, tx.AssetSymbol, FormatMoney(tx.Price, cur), tx.Reference)
	fmt.Fprintf(c.app.Out, "Holding: %s %s, average %s\n", result.Holding.Quantity, result.Holding.AssetSymbol, FormatMoney(result.Holding.AverageBuyPrice, cur))
	return subcommands.ExitSuccess
}

type holdingsCmd struct {
	app  *App
	user string
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "show a user's positions valued at current prices" }
func (*holdingsCmd) Usage() string {
	return `ledgerctl holdings -user <id>
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "User identifier.")
}

func (c *holdingsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, err := c.app.Container(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	summary, err := container.PortfolioService.GetSummary(ctx, c.user)
	if err != nil {
		return c.app.fail(err)
	}

	cur := c.app.Config.ReportingCurrency
	w := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "SYMBOL\tQUANTITY\tAVG PRICE\tPRICE\tVALUE\tP&L\tALLOC %\t")
	for _, p := range summary.Positions {
		price := FormatMoney(p.CurrentPrice, cur)
		if !p.Priced {
			price = "delisted"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			p.Symbol,
			p.Quantity,
			FormatMoney(p.AverageBuyPrice, cur),
			price,
			FormatMoney(p.MarketValue, cur),
			FormatSignedMoney(p.UnrealizedPnL, cur),
			p.Allocation.StringFixed(2),
		)
	}
	fmt.Fprintf(w, "TOTAL\t\t\t\t%s\t%s\t\t\n", FormatMoney(summary.TotalMarketValue, cur), FormatSignedMoney(summary.TotalUnrealizedPnL, cur))
	w.Flush()
	return subcommands.ExitSuccess
}

type historyCmd struct {
	app  *App
	user string
	days int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list a user's recent transactions, newest first" }
func (*historyCmd) Usage() string {
	return `ledgerctl history -user <id> [-days <n>]
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "User identifier.")
	f.IntVar(&c.days, "days", 0, "Window in days, defaults to HISTORY_DAYS.")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, err := c.app.Container(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	txs, err := container.PortfolioService.GetTransactions(ctx, c.user, c.days)
	if err != nil {
		return c.app.fail(err)
	}

	cur := c.app.Config.ReportingCurrency
	w := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSIDE\tSYMBOL\tQUANTITY\tPRICE\tVALUE\tREFERENCE")
	for _, tx := range txs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.Timestamp.UTC().Format(time.RFC3339),
			tx.Type,
			tx.AssetSymbol,
			tx.Quantity,
			FormatMoney(tx.Price, cur),
			FormatMoney(tx.Value(), cur),
			tx.Reference,
		)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type verifyCmd struct {
	app    *App
	user   string
	symbol string
}

func (*verifyCmd) Name() string { return "verify" }
func (*verifyCmd) Synopsis() string {
	return "replay the transaction log and compare it with stored holdings"
}
func (*verifyCmd) Usage() string {
	return `ledgerctl verify [-user <id> [-symbol <symbol>]]

  Without flags every position is checked. Exits non-zero when a discrepancy is found.
`
}

func (c *verifyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Only check this user.")
	f.StringVar(&c.symbol, "symbol", "", "Only check this position, requires -user.")
}

func (c *verifyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol != "" && c.user == "" {
		return c.app.fail(errors.New("-symbol requires -user"))
	}

	container, err := c.app.Container(ctx)
	if err != nil {
		return c.app.fail(err)
	}

	var report *trading.AuditReport
	switch {
	case c.symbol != "":
		d, err := container.Auditor.Verify(ctx, c.user, c.symbol)
		if err != nil {
			return c.app.fail(err)
		}
		report = &trading.AuditReport{PositionsChecked: 1}
		if d != nil {
			report.Discrepancies = append(report.Discrepancies, *d)
		}
	case c.user != "":
		report, err = container.Auditor.VerifyUser(ctx, c.user)
	default:
		report, err = container.Auditor.VerifyAll(ctx)
	}
	if err != nil {
		return c.app.fail(err)
	}

	for _, d := range report.Discrepancies {
		fmt.Fprintf(c.app.Out, "MISMATCH %s/%s: stored %s @ %s, replayed %s @ %s (%s)\n",
			d.UserID, d.Symbol,
			d.StoredQuantity, d.StoredAverage,
			d.ReplayedQuantity, d.ReplayedAverage,
			d.Reason,
		)
	}
	fmt.Fprintf(c.app.Out, "Checked %d positions, %d discrepancies\n", report.PositionsChecked, len(report.Discrepancies))
	if !report.Clean() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type backupCmd struct {
	app  *App
	list bool
}

func (*backupCmd) Name() string     { return "backup" }
func (*backupCmd) Synopsis() string { return "snapshot the databases, or list uploaded backups" }
func (*backupCmd) Usage() string {
	return `ledgerctl backup [-list]

  Uploads the archive when BACKUP_BUCKET is configured, otherwise keeps it under DATA_DIR/backups.
`
}

func (c *backupCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.list, "list", false, "List uploaded backups instead of creating one.")
}

func (c *backupCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, err := c.app.Container(ctx)
	if err != nil {
		return c.app.fail(err)
	}

	if c.list {
		backups, err := container.BackupService.ListBackups(ctx)
		if errors.Is(err, reliability.ErrNoObjectStore) {
			fmt.Fprintln(c.app.Out, "No backup bucket configured")
			return subcommands.ExitSuccess
		}
		if err != nil {
			return c.app.fail(err)
		}
		w := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FILENAME\tSIZE\tAGE (h)")
		for _, b := range backups {
			fmt.Fprintf(w, "%s\t%d\t%d\n", b.Filename, b.SizeBytes, b.AgeHours)
		}
		w.Flush()
		return subcommands.ExitSuccess
	}

	snap, err := container.BackupService.CreateAndUploadBackup(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Backup %s created (%d bytes, %d databases)\n", snap.Name, snap.SizeBytes, len(snap.Metadata.Databases))
	return subcommands.ExitSuccess
}
