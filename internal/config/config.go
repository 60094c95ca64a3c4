package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Reversal sources accepted by LEDGER_REVERSAL_SOURCE
const (
	ReversalSourceLedger   = "ledger"
	ReversalSourceCounters = "counters"
)

// Config holds all application configuration
type Config struct {
	// Environment name; "development" switches the logger to console output
	Env string `envconfig:"APP_ENV" default:"production"`

	// Users allowed to call /v1/admin endpoints
	AdminIDs []string `envconfig:"ADMIN_IDS"`

	Server     ServerConfig     `envconfig:"SERVER"`
	Database   DatabaseConfig   `envconfig:"DB"`
	Ledger     LedgerConfig     `envconfig:"LEDGER"`
	Moderation ModerationConfig `envconfig:"MODERATION"`
	Ranking    RankingConfig    `envconfig:"RANKING"`
	Reconcile  ReconcileConfig  `envconfig:"RECONCILE"`
	Log        LogConfig        `envconfig:"LOG"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `split_words:"true" default:"8080"`
	ReadTimeout     time.Duration `split_words:"true" default:"30s"`
	WriteTimeout    time.Duration `split_words:"true" default:"30s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	MaxUploadSize   int64         `split_words:"true" default:"10485760"` // account CSV imports, in bytes
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host           string        `split_words:"true" default:"localhost"`
	Port           string        `split_words:"true" default:"5432"`
	User           string        `split_words:"true" default:"postgres"`
	Password       string        `split_words:"true" default:"postgres"`
	Name           string        `split_words:"true" default:"points_ledger"`
	SSLMode        string        `split_words:"true" default:"disable"`
	MaxOpenConns   int           `split_words:"true" default:"25"`
	MaxIdleConns   int           `split_words:"true" default:"5"`
	MaxLifetime    time.Duration `split_words:"true" default:"5m"`
	MigrationsPath string        `split_words:"true" default:"./migrations"`
}

// LedgerConfig controls commit retries of ledger transactions
type LedgerConfig struct {
	MaxRetries     int           `split_words:"true" default:"5"`
	RetryInitial   time.Duration `split_words:"true" default:"10ms"`
	RetryMax       time.Duration `split_words:"true" default:"250ms"`
	TxTimeout      time.Duration `split_words:"true" default:"5s"`
	ReversalSource string        `split_words:"true" default:"ledger"`
}

// ModerationConfig holds the report gate settings
type ModerationConfig struct {
	ReportThreshold int  `split_words:"true" default:"20"`
	ReverseOnRemove bool `split_words:"true" default:"false"`
}

// RankingConfig holds leaderboard settings
type RankingConfig struct {
	CacheTTL     time.Duration `split_words:"true" default:"30s"` // 0 disables the cache
	DefaultLimit int           `split_words:"true" default:"10"`
	MaxLimit     int           `split_words:"true" default:"100"`
}

// ReconcileConfig holds the intent sweep settings
type ReconcileConfig struct {
	Enabled       bool          `split_words:"true" default:"true"`
	Schedule      string        `split_words:"true" default:"@every 1m"`
	AuditSchedule string        `split_words:"true" default:"0 3 * * *"`
	GracePeriod   time.Duration `split_words:"true" default:"2m"`
	BatchSize     int           `split_words:"true" default:"100"`
	Workers       int           `split_words:"true" default:"4"`
	MaxAttempts   int           `split_words:"true" default:"10"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `split_words:"true" default:"info"`
	Format string `split_words:"true" default:"json"` // "json" or "pretty"
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first; variables already set take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Ledger.MaxRetries < 0 {
		return fmt.Errorf("LEDGER_MAX_RETRIES must be >= 0")
	}
	if c.Ledger.TxTimeout <= 0 {
		return fmt.Errorf("LEDGER_TX_TIMEOUT must be > 0")
	}
	if c.Ledger.ReversalSource != ReversalSourceLedger && c.Ledger.ReversalSource != ReversalSourceCounters {
		return fmt.Errorf("LEDGER_REVERSAL_SOURCE must be %q or %q", ReversalSourceLedger, ReversalSourceCounters)
	}
	if c.Moderation.ReportThreshold <= 0 {
		return fmt.Errorf("MODERATION_REPORT_THRESHOLD must be > 0")
	}
	if c.Ranking.CacheTTL < 0 {
		return fmt.Errorf("RANKING_CACHE_TTL must be >= 0")
	}
	if c.Ranking.DefaultLimit <= 0 || c.Ranking.MaxLimit < c.Ranking.DefaultLimit {
		return fmt.Errorf("invalid RANKING_DEFAULT_LIMIT/RANKING_MAX_LIMIT")
	}
	if c.Reconcile.Workers <= 0 || c.Reconcile.BatchSize <= 0 {
		return fmt.Errorf("RECONCILE_WORKERS and RECONCILE_BATCH_SIZE must be > 0")
	}
	return nil
}

// IsAdmin reports whether the user may call admin endpoints
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Defaults returns a configuration populated with the default values,
// without reading the environment.
func Defaults() *Config {
	return &Config{
		Env:    "production",
		Server: ServerConfig{Port: "8080", ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second, ShutdownTimeout: 30 * time.Second, MaxUploadSize: 10 << 20},
		Database: DatabaseConfig{
			Host: "localhost", Port: "5432", User: "postgres", Password: "postgres", Name: "points_ledger",
			SSLMode: "disable", MaxOpenConns: 25, MaxIdleConns: 5, MaxLifetime: 5 * time.Minute, MigrationsPath: "./migrations",
		},
		Ledger: LedgerConfig{
			MaxRetries: 5, RetryInitial: 10 * time.Millisecond, RetryMax: 250 * time.Millisecond,
			TxTimeout: 5 * time.Second, ReversalSource: ReversalSourceLedger,
		},
		Moderation: ModerationConfig{ReportThreshold: 20},
		Ranking:    RankingConfig{CacheTTL: 30 * time.Second, DefaultLimit: 10, MaxLimit: 100},
		Reconcile: ReconcileConfig{
			Enabled: true, Schedule: "@every 1m", AuditSchedule: "0 3 * * *", GracePeriod: 2 * time.Minute,
			BatchSize: 100, Workers: 4, MaxAttempts: 10,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}
