// Package cli implements the ledgerctl operator commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"github.com/TNT-747/investtrack/internal/config"
	"github.com/TNT-747/investtrack/internal/di"
)

// App carries what every command needs. The container is wired on first use so
// that help and usage never touch the databases.
type App struct {
	Config *config.Config
	Log    zerolog.Logger
	Out    io.Writer

	container *di.Container
}

// NewApp creates an App writing to stdout
func NewApp(cfg *config.Config, log zerolog.Logger) *App {
	return &App{Config: cfg, Log: log, Out: os.Stdout}
}

// Container wires the dependency graph once
func (a *App) Container(ctx context.Context) (*di.Container, error) {
	if a.container != nil {
		return a.container, nil
	}
	container, _, err := di.Wire(ctx, a.Config, a.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to wire dependencies: %w", err)
	}
	a.container = container
	return container, nil
}

// Close releases the container if it was wired
func (a *App) Close() error {
	if a.container == nil {
		return nil
	}
	err := a.container.Close()
	a.container = nil
	return err
}

// Register adds every command to the commander
func Register(c *subcommands.Commander, app *App) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")

	c.Register(&assetsCmd{app: app}, "assets")
	c.Register(&addAssetCmd{app: app}, "assets")
	c.Register(&priceCmd{app: app}, "assets")

	c.Register(&tradeCmd{app: app}, "trading")

	c.Register(&holdingsCmd{app: app}, "portfolio")
	c.Register(&historyCmd{app: app}, "portfolio")

	c.Register(&verifyCmd{app: app}, "operations")
	c.Register(&backupCmd{app: app}, "operations")
}

// fail reports err on stderr and maps it to an exit status
func (a *App) fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}
