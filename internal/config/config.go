// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Ledger store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds application configuration
type Config struct {
	DataDir   string `env:"INVESTTRACK_DATA_DIR" envDefault:"./data"` // Always absolute after Load
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"true"`
	DevMode   bool   `env:"DEV_MODE" envDefault:"false"`

	LedgerDriver string `env:"LEDGER_DRIVER" envDefault:"sqlite"`
	DatabaseURL  string `env:"DATABASE_URL"`

	HistoryDays     int           `env:"HISTORY_DAYS" envDefault:"30"`
	TradeMaxRetries int           `env:"TRADE_MAX_RETRIES" envDefault:"3"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	TradeRateLimit  float64       `env:"TRADE_RATE_LIMIT" envDefault:"5"`
	TradeRateBurst  int           `env:"TRADE_RATE_BURST" envDefault:"10"`

	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`

	AuditSchedule    string `env:"AUDIT_SCHEDULE" envDefault:"@every 1h"`
	WALCheckSchedule string `env:"WAL_CHECK_SCHEDULE" envDefault:"@every 30m"`

	Backup BackupConfig

	ReportingCurrency string `env:"REPORTING_CURRENCY" envDefault:"USD"`
}

// BackupConfig configures snapshot uploads to an S3 compatible bucket
type BackupConfig struct {
	Schedule        string `env:"BACKUP_SCHEDULE"` // Empty disables the backup job
	Bucket          string `env:"BACKUP_BUCKET"`
	Prefix          string `env:"BACKUP_PREFIX" envDefault:"investtrack/"`
	Endpoint        string `env:"BACKUP_ENDPOINT"` // Optional, e.g. an R2 account endpoint
	Region          string `env:"BACKUP_REGION" envDefault:"auto"`
	AccessKeyID     string `env:"BACKUP_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"BACKUP_SECRET_ACCESS_KEY"`
	RetentionDays   int    `env:"BACKUP_RETENTION_DAYS" envDefault:"7"`
}

// Enabled reports whether scheduled uploads are configured
func (b BackupConfig) Enabled() bool {
	return b.Schedule != "" && b.Bucket != ""
}

// Load reads configuration from the process environment, after merging a .env file if present.
func Load() (*Config, error) {
	// Missing .env is fine
	_ = godotenv.Load()

	return parse(env.Options{})
}

// LoadFrom parses configuration from an explicit environment map instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg.DataDir = absDataDir
	cfg.LedgerDriver = strings.ToLower(strings.TrimSpace(cfg.LedgerDriver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	switch c.LedgerDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when LEDGER_DRIVER=%s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown LEDGER_DRIVER %q", c.LedgerDriver)
	}

	if c.HistoryDays <= 0 {
		return fmt.Errorf("HISTORY_DAYS must be positive, got %d", c.HistoryDays)
	}
	if c.TradeMaxRetries < 0 {
		return fmt.Errorf("TRADE_MAX_RETRIES must not be negative, got %d", c.TradeMaxRetries)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}
	if c.TradeRateLimit <= 0 || c.TradeRateBurst <= 0 {
		return fmt.Errorf("TRADE_RATE_LIMIT and TRADE_RATE_BURST must be positive")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}

	return nil
}

// DatabasePath returns the absolute path of a named SQLite database in the data directory
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}
