// Package endpoint discovers the interchangeable upstream base URLs and hands
// them out round-robin to concurrent fetchers.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/results-ingest/pkg/cache"
	"github.com/Sternrassler/results-ingest/pkg/logging"
)

// Endpoint is one upstream base URL, e.g. "http://line01.example.org".
type Endpoint string

// URL joins the endpoint with a query path.
func (e Endpoint) URL(path string) string {
	return string(e) + path
}

// Host returns the host[:port] part of the endpoint, used as the rate-limit key.
func (e Endpoint) Host() string {
	s := string(e)
	if i := strings.Index(s, "//"); i >= 0 {
		s = s[i+2:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return s
}

// DocumentCache stores the raw discovery document between runs.
// *cache.Manager satisfies it.
type DocumentCache interface {
	Get(ctx context.Context, key cache.CacheKey) (*cache.CacheEntry, error)
	Set(ctx context.Context, key cache.CacheKey, entry *cache.CacheEntry) error
	Delete(ctx context.Context, key cache.CacheKey) error
}

// Config holds the discovery configuration.
type Config struct {
	// DiscoveryURL is the well-known document listing upstream hosts.
	DiscoveryURL string

	// Key is the JSON field holding the list of host fragments.
	Key string

	// Scheme is prefixed to every host fragment (fragments look like "//host").
	Scheme string

	// UserAgent is sent with the discovery request.
	UserAgent string

	// HTTPClient performs the discovery request.
	HTTPClient *http.Client

	// Cache optionally keeps the discovery document between runs.
	Cache DocumentCache

	// CacheTTL applies when the discovery response has no usable Expires header.
	CacheTTL time.Duration
}

// DefaultConfig returns the discovery configuration for the public results upstream.
func DefaultConfig() Config {
	return Config{
		DiscoveryURL: "https://www.fonbet.ru/urls.json",
		Key:          "common",
		Scheme:       "http:",
		UserAgent:    "results-ingest/1.0",
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		CacheTTL:     10 * time.Minute,
	}
}

// Pool serves discovered endpoints in cyclic order.
//
// The pool is populated exactly once by Initialize. Next blocks until that
// has happened; if discovery failed, every pending and future Next returns
// the *DiscoveryError.
type Pool struct {
	config Config
	logger zerolog.Logger

	once      sync.Once
	ready     chan struct{}
	endpoints []Endpoint
	err       error

	cursor atomic.Uint64
}

// NewPool creates a pool that discovers its endpoints from cfg.DiscoveryURL.
func NewPool(cfg Config) (*Pool, error) {
	if cfg.DiscoveryURL == "" {
		return nil, fmt.Errorf("discovery url is required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("discovery key is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Pool{
		config: cfg,
		logger: logging.NewLogger("endpoint-pool"),
		ready:  make(chan struct{}),
	}, nil
}

// NewStaticPool creates an already-initialized pool over fixed endpoints.
func NewStaticPool(endpoints ...Endpoint) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("static pool needs at least one endpoint")
	}

	p := &Pool{
		logger: logging.NewLogger("endpoint-pool"),
		ready:  make(chan struct{}),
	}
	p.once.Do(func() {
		p.endpoints = append([]Endpoint(nil), endpoints...)
		close(p.ready)
	})
	discoveryTotal.WithLabelValues("static").Inc()
	endpointsDiscovered.Set(float64(len(endpoints)))

	return p, nil
}

// Initialize fetches the discovery document and populates the pool.
// Only the first call does any work; concurrent and later calls wait for
// it and return the same outcome.
func (p *Pool) Initialize(ctx context.Context) error {
	p.once.Do(func() {
		defer close(p.ready)

		start := time.Now()
		endpoints, source, err := p.discover(ctx)
		if err != nil {
			discoveryTotal.WithLabelValues("error").Inc()
			p.logger.Error().Err(err).Str("url", p.config.DiscoveryURL).Msg("Endpoint discovery failed")
			p.err = err
			return
		}

		discoveryTotal.WithLabelValues(source).Inc()
		endpointsDiscovered.Set(float64(len(endpoints)))
		p.endpoints = endpoints
		p.logger.Info().
			Int("endpoints", len(endpoints)).
			Str("source", source).
			Dur("duration", time.Since(start)).
			Msg("Endpoint pool ready")
	})

	<-p.ready
	return p.err
}

// Next returns the next endpoint in cyclic order, waiting for Initialize if needed.
func (p *Pool) Next(ctx context.Context) (Endpoint, error) {
	select {
	case <-p.ready:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if p.err != nil {
		return "", p.err
	}

	i := p.cursor.Add(1) - 1
	return p.endpoints[i%uint64(len(p.endpoints))], nil
}

// Ready reports whether Initialize has completed (successfully or not).
func (p *Pool) Ready() bool {
	select {
	case <-p.ready:
		return true
	default:
		return false
	}
}

// Err returns the discovery error once Initialize has completed, nil otherwise.
func (p *Pool) Err() error {
	if !p.Ready() {
		return nil
	}
	return p.err
}

// Endpoints returns a copy of the discovered endpoints (nil before Initialize completes).
func (p *Pool) Endpoints() []Endpoint {
	if !p.Ready() || p.err != nil {
		return nil
	}
	return append([]Endpoint(nil), p.endpoints...)
}

// discover returns the endpoint list and where it came from ("cache" or "network").
func (p *Pool) discover(ctx context.Context) ([]Endpoint, string, error) {
	key := cache.KeyFor(p.config.DiscoveryURL)

	if p.config.Cache != nil {
		entry, err := p.config.Cache.Get(ctx, key)
		switch {
		case err == nil:
			endpoints, perr := p.parse(entry.Data)
			if perr == nil {
				p.logger.Debug().Dur("age", entry.Age()).Msg("Discovery document served from cache")
				return endpoints, "cache", nil
			}
			p.logger.Warn().Err(perr).Msg("Cached discovery document unusable, refetching")
			if err := p.config.Cache.Delete(ctx, key); err != nil {
				p.logger.Warn().Err(err).Msg("Failed to drop cached discovery document")
			}
		case !errors.Is(err, cache.ErrCacheMiss):
			p.logger.Warn().Err(err).Msg("Discovery cache get error")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.DiscoveryURL, nil)
	if err != nil {
		return nil, "", &DiscoveryError{URL: p.config.DiscoveryURL, Reason: "create request", Err: err}
	}
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return nil, "", &DiscoveryError{URL: p.config.DiscoveryURL, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, "", &DiscoveryError{URL: p.config.DiscoveryURL, StatusCode: resp.StatusCode, Reason: "unexpected status"}
	}

	entry, err := cache.ResponseToEntry(resp, p.config.CacheTTL)
	if err != nil {
		return nil, "", &DiscoveryError{URL: p.config.DiscoveryURL, Reason: "read body", Err: err}
	}

	endpoints, err := p.parse(entry.Data)
	if err != nil {
		return nil, "", err
	}

	if p.config.Cache != nil {
		if err := p.config.Cache.Set(ctx, key, entry); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to cache discovery document")
		}
	}

	return endpoints, "network", nil
}

// parse extracts host fragments under the configured key and prefixes the scheme.
func (p *Pool) parse(body []byte) ([]Endpoint, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &DiscoveryError{URL: p.config.DiscoveryURL, Reason: "malformed document", Err: err}
	}

	raw, ok := doc[p.config.Key]
	if !ok {
		return nil, &DiscoveryError{URL: p.config.DiscoveryURL, Reason: fmt.Sprintf("key %q missing", p.config.Key)}
	}

	var fragments []string
	if err := json.Unmarshal(raw, &fragments); err != nil {
		return nil, &DiscoveryError{URL: p.config.DiscoveryURL, Reason: fmt.Sprintf("key %q is not a list of hosts", p.config.Key), Err: err}
	}

	endpoints := make([]Endpoint, 0, len(fragments))
	for _, fragment := range fragments {
		fragment = strings.TrimRight(strings.TrimSpace(fragment), "/")
		if fragment == "" {
			continue
		}
		if !strings.Contains(fragment, "://") {
			fragment = p.config.Scheme + fragment
		}
		endpoints = append(endpoints, Endpoint(fragment))
	}

	if len(endpoints) == 0 {
		return nil, &DiscoveryError{URL: p.config.DiscoveryURL, Reason: "no endpoints listed"}
	}

	return endpoints, nil
}
