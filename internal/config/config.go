// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"

	"github.com/Sternrassler/results-ingest/pkg/logging"
	"github.com/Sternrassler/results-ingest/pkg/query"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds every setting of the results-ingest process.
type Config struct {
	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	// HTTP API
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Storage
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Redis backs the discovery cache and the run ledger; empty disables both.
	RedisURL  string        `env:"REDIS_URL"`
	LedgerTTL time.Duration `env:"RUN_LEDGER_TTL" envDefault:"0s"`

	// Upstream discovery
	DiscoveryURL      string        `env:"DISCOVERY_URL" envDefault:"https://www.fonbet.ru/urls.json"`
	DiscoveryKey      string        `env:"DISCOVERY_KEY" envDefault:"common"`
	EndpointScheme    string        `env:"ENDPOINT_SCHEME" envDefault:"http:"`
	DiscoveryCacheTTL time.Duration `env:"DISCOVERY_CACHE_TTL" envDefault:"10m"`

	// EndpointPoolMaxAge bounds how long a discovered pool serves runs; 0 keeps it.
	EndpointPoolMaxAge time.Duration `env:"ENDPOINT_POOL_MAX_AGE" envDefault:"1h"`

	// Fetching
	QueryTemplate  string        `env:"QUERY_TEMPLATE" envDefault:"/results/results.json.php?lineDate=%s"`
	MaxPerHost     int           `env:"MAX_PER_HOST" envDefault:"10"`
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"10"`
	BackoffUnit    time.Duration `env:"BACKOFF_UNIT" envDefault:"1s"` // 0 retries without waiting
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	UserAgent      string        `env:"USER_AGENT" envDefault:"results-ingest/1.0"`

	// Ingestion
	Timezone         string `env:"TIMEZONE" envDefault:"UTC"`
	VocabularyFile   string `env:"SUBEVENT_VOCABULARY_FILE"`
	IngestSchedule   string `env:"INGEST_SCHEDULE"`
	DefaultRangeDays int    `env:"DEFAULT_RANGE_DAYS" envDefault:"365"`

	location *time.Location
}

// Load builds a Config from the process environment and validates it.
func Load() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFrom builds a Config from the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the configuration and resolves the timezone.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=%s", DriverPostgres)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q (got %q)", DriverPostgres, DriverMemory, c.StoreDriver)
	}

	if c.DiscoveryURL == "" {
		return fmt.Errorf("DISCOVERY_URL must not be empty")
	}
	if c.DiscoveryKey == "" {
		return fmt.Errorf("DISCOVERY_KEY must not be empty")
	}
	if _, err := query.NewPartitioner(c.QueryTemplate); err != nil {
		return fmt.Errorf("QUERY_TEMPLATE: %w", err)
	}
	if c.MaxPerHost <= 0 {
		return fmt.Errorf("MAX_PER_HOST must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("MAX_ATTEMPTS must be positive")
	}
	if c.BackoffUnit < 0 {
		return fmt.Errorf("BACKOFF_UNIT cannot be negative")
	}
	if c.EndpointPoolMaxAge < 0 {
		return fmt.Errorf("ENDPOINT_POOL_MAX_AGE cannot be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("USER_AGENT must not be empty")
	}
	if c.DefaultRangeDays <= 0 {
		return fmt.Errorf("DEFAULT_RANGE_DAYS must be positive")
	}
	if c.IngestSchedule != "" {
		if _, err := cron.ParseStandard(c.IngestSchedule); err != nil {
			return fmt.Errorf("INGEST_SCHEDULE: %w", err)
		}
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	c.location = loc

	return nil
}

// Location returns the timezone calendar days are evaluated in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(strings.ToLower(c.LogLevel))
	cfg.Pretty = c.LogPretty
	return cfg
}

// DefaultRange returns the default ingestion range ending on the current day.
func (c *Config) DefaultRange(now time.Time) (from, to time.Time) {
	to = query.StartOfDay(now.In(c.Location()))
	from = to.AddDate(0, 0, -(c.DefaultRangeDays - 1))
	return from, to
}
