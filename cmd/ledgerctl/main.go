// Command ledgerctl operates an InvestTrack data directory from the shell:
// listing assets, executing trades, inspecting holdings, verifying the ledger
// and taking backups. It reads the same environment as the server.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/TNT-747/investtrack/internal/cli"
	"github.com/TNT-747/investtrack/internal/config"
	"github.com/TNT-747/investtrack/pkg/logger"
)

func main() {
	verbose := flag.Bool("v", false, "Log at debug level to stderr.")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true, Output: os.Stderr})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: true, Output: os.Stderr})

	app := cli.NewApp(cfg, log)
	cli.Register(commander, app)

	status := commander.Execute(context.Background())
	if err := app.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing resources")
	}
	os.Exit(int(status))
}
