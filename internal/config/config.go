package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/park285/cheese-wager/internal/archive"
	"github.com/park285/cheese-wager/internal/obslog"
)

type LogConfig struct {
	Level   string `env:"LEVEL"      envDefault:"info"`
	Format  string `env:"FORMAT"     envDefault:"json"` // text | json | console
	Console bool   `env:"TO_CONSOLE" envDefault:"true"`
	File    string `env:"FILE"`
	Caller  bool   `env:"CALLER"`
}

// Options converts to the logger options.
func (l LogConfig) Options() obslog.Options {
	return obslog.Options{Level: l.Level, Format: l.Format, Console: l.Console, File: l.File, Caller: l.Caller, Service: "wagerd"}
}

type AppConfig struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// Empty RedisURL keeps the ledger in memory.
	RedisURL string `env:"REDIS_URL"`
	// Empty DatabaseURL disables the finished-match archive.
	DatabaseURL    string `env:"DATABASE_URL"`
	ArchiveDialect string `env:"ARCHIVE_DIALECT" envDefault:"postgres"`

	GenesisFile     string `env:"GENESIS_FILE"`
	ContractAddress string `env:"CONTRACT_ADDRESS" envDefault:"wagercontract"`
	MessagesDir     string `env:"MESSAGES_DIR"`

	EventBuffer     int           `env:"EVENT_BUFFER"     envDefault:"64"`
	TxRateLimit     int           `env:"TX_RATE_LIMIT"    envDefault:"0"`
	TxRateWindow    time.Duration `env:"TX_RATE_WINDOW"   envDefault:"1m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Log LogConfig `envPrefix:"LOG_"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

// LoadFrom parses the given variables only. Used by tests and tools.
func LoadFrom(vars map[string]string) (*AppConfig, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*AppConfig, error) {
	var cfg AppConfig
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.ArchiveDialect = strings.ToLower(strings.TrimSpace(cfg.ArchiveDialect))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("LISTEN_ADDR is required")
	}
	if strings.TrimSpace(c.ContractAddress) == "" {
		return errors.New("CONTRACT_ADDRESS is required")
	}
	switch c.ArchiveDialect {
	case archive.DialectPostgres, archive.DialectSQLite:
	default:
		return fmt.Errorf("ARCHIVE_DIALECT must be %s or %s, got %q", archive.DialectPostgres, archive.DialectSQLite, c.ArchiveDialect)
	}
	if c.EventBuffer <= 0 {
		return fmt.Errorf("EVENT_BUFFER must be positive, got %d", c.EventBuffer)
	}
	if c.TxRateLimit < 0 {
		return fmt.Errorf("TX_RATE_LIMIT must not be negative, got %d", c.TxRateLimit)
	}
	return nil
}
