package endpoint

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/results-ingest/pkg/logging"
)

// Provider keeps a current Pool for a long-running process. Renew swaps in a
// fresh pool when the current one failed discovery or is older than maxAge;
// every pool still discovers exactly once.
type Provider struct {
	config Config
	maxAge time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu      sync.Mutex
	current *Pool
	created time.Time
}

// NewProvider creates a provider. A zero maxAge keeps a healthy pool forever.
func NewProvider(cfg Config, maxAge time.Duration) (*Provider, error) {
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}
	return &Provider{
		config:  cfg,
		maxAge:  maxAge,
		now:     time.Now,
		logger:  logging.NewLogger("endpoint-provider"),
		current: pool,
		created: time.Now(),
	}, nil
}

// Renew replaces the current pool if it failed or expired. It does no I/O;
// discovery for the new pool happens on its Initialize.
func (p *Provider) Renew() {
	p.mu.Lock()
	defer p.mu.Unlock()

	reason := ""
	switch {
	case p.current.Err() != nil:
		reason = "discovery failed"
	case p.maxAge > 0 && p.current.Ready() && p.now().Sub(p.created) >= p.maxAge:
		reason = "pool expired"
	default:
		return
	}

	pool, err := NewPool(p.config)
	if err != nil {
		// Config was validated by NewProvider.
		p.logger.Error().Err(err).Msg("Failed to create endpoint pool")
		return
	}
	p.current = pool
	p.created = p.now()
	p.logger.Info().Str("reason", reason).Msg("Endpoint pool renewed")
}

// Pool returns the current pool.
func (p *Provider) Pool() *Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Initialize initializes the current pool.
func (p *Provider) Initialize(ctx context.Context) error {
	return p.Pool().Initialize(ctx)
}

// Next returns the next endpoint of the current pool.
func (p *Provider) Next(ctx context.Context) (Endpoint, error) {
	return p.Pool().Next(ctx)
}
