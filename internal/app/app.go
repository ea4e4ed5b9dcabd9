// Package app assembles the ingestion stack from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/results-ingest/internal/config"
	"github.com/Sternrassler/results-ingest/pkg/api"
	"github.com/Sternrassler/results-ingest/pkg/cache"
	"github.com/Sternrassler/results-ingest/pkg/client"
	"github.com/Sternrassler/results-ingest/pkg/endpoint"
	"github.com/Sternrassler/results-ingest/pkg/ingest"
	"github.com/Sternrassler/results-ingest/pkg/logging"
	"github.com/Sternrassler/results-ingest/pkg/normalize"
	"github.com/Sternrassler/results-ingest/pkg/query"
	"github.com/Sternrassler/results-ingest/pkg/ratelimit"
	"github.com/Sternrassler/results-ingest/pkg/runlog"
	"github.com/Sternrassler/results-ingest/pkg/store"
	"github.com/Sternrassler/results-ingest/pkg/store/memory"
	"github.com/Sternrassler/results-ingest/pkg/store/postgres"
)

// App holds every long-lived component of the process.
type App struct {
	Config       *config.Config
	Store        store.Store
	Redis        *redis.Client
	Ledger       *runlog.Ledger
	Endpoints    *endpoint.Provider
	Retrier      *client.Retrier
	Orchestrator *ingest.Orchestrator

	logger zerolog.Logger
}

// Build connects the backends and wires the ingestion pipeline.
// Endpoint discovery is deferred to the first run.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, logger: logging.NewLogger("app")}

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = st

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("REDIS_URL: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Ledger = runlog.NewLedger(a.Redis, cfg.LedgerTTL)
	}

	poolCfg := endpoint.DefaultConfig()
	poolCfg.DiscoveryURL = cfg.DiscoveryURL
	poolCfg.Key = cfg.DiscoveryKey
	poolCfg.Scheme = cfg.EndpointScheme
	poolCfg.UserAgent = cfg.UserAgent
	poolCfg.CacheTTL = cfg.DiscoveryCacheTTL
	if a.Redis != nil {
		poolCfg.Cache = cache.NewManager(a.Redis)
	}
	a.Endpoints, err = endpoint.NewProvider(poolCfg, cfg.EndpointPoolMaxAge)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetchCfg := client.DefaultConfig(cfg.UserAgent)
	fetchCfg.Timeout = cfg.RequestTimeout
	fetchCfg.MaxConnsPerHost = cfg.MaxPerHost
	fetchCfg.Gate = ratelimit.NewHostLimiter(cfg.MaxPerHost, logging.NewLogger("host-limiter"))
	fetcher, err := client.New(fetchCfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Retrier = client.NewRetrier(fetcher, a.Endpoints, client.RetryConfig{
		MaxAttempts: cfg.MaxAttempts,
		BackoffUnit: cfg.BackoffUnit,
	})

	vocab, err := normalize.LoadVocabulary(cfg.VocabularyFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	partitioner, err := query.NewPartitioner(cfg.QueryTemplate)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := ingest.Deps{
		Partitioner: partitioner,
		Pool:        a.Endpoints,
		Fetcher:     a.Retrier,
		Normalizer:  normalize.New(vocab),
		Writer:      store.NewPersister(a.Store),
		Store:       a.Store,
	}
	if a.Ledger != nil {
		deps.Ledger = a.Ledger
	}
	a.Orchestrator, err = ingest.New(deps)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.logger.Info().
		Str("store", cfg.StoreDriver).
		Bool("redis", a.Redis != nil).
		Int("vocabulary_version", vocab.Version).
		Int("markers", len(vocab.Markers)).
		Msg("Ingestion stack ready")

	return a, nil
}

// OpenStore opens the configured event store.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// Migrate creates the schema when the store needs one.
func Migrate(ctx context.Context, st store.Store) error {
	m, ok := st.(interface{ Migrate(context.Context) error })
	if !ok {
		return nil
	}
	return m.Migrate(ctx)
}

// Server builds the HTTP API on top of the stack.
func (a *App) Server(ctx context.Context) (*api.Server, error) {
	deps := api.Deps{
		Ingester: a.Orchestrator,
		Reader:   a.Store,
		Checks:   map[string]api.Pinger{"store": a.Store},
	}
	if a.Ledger != nil {
		deps.Ledger = a.Ledger
		deps.Checks["redis"] = a.Ledger
	}

	return api.NewServer(ctx, api.Config{
		Location:         a.Config.Location(),
		DefaultRangeDays: a.Config.DefaultRangeDays,
	}, deps)
}

// Close releases the backends.
func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
}
