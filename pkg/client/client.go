// Package client fetches per-day results documents from upstream endpoints
// and retries failed fetches across the endpoint pool.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/results-ingest/pkg/endpoint"
	"github.com/Sternrassler/results-ingest/pkg/logging"
	"github.com/Sternrassler/results-ingest/pkg/model"
	"github.com/Sternrassler/results-ingest/pkg/query"
)

// Fetcher performs exactly one fetch of a query against one endpoint.
type Fetcher interface {
	Fetch(ctx context.Context, ep endpoint.Endpoint, q query.Query) (*model.RawDocument, error)
}

// HostGate bounds concurrent requests per host. *ratelimit.HostLimiter satisfies it.
type HostGate interface {
	Acquire(ctx context.Context, host string) (func(), error)
}

// Config holds the fetcher configuration.
type Config struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds one request including the body read.
	Timeout time.Duration

	// MaxConnsPerHost caps transport connections per host (0 = unlimited).
	MaxConnsPerHost int

	// Gate optionally bounds in-flight requests per host across all fetchers.
	Gate HostGate
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:       userAgent,
		Timeout:         30 * time.Second,
		MaxConnsPerHost: 10,
	}
}

// HTTPFetcher fetches results documents over HTTP.
type HTTPFetcher struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new HTTPFetcher.
func New(cfg Config) (*HTTPFetcher, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}
	if cfg.MaxConnsPerHost < 0 {
		return nil, fmt.Errorf("max_conns_per_host must be >= 0 (got %d)", cfg.MaxConnsPerHost)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxConnsPerHost = cfg.MaxConnsPerHost
	transport.MaxIdleConnsPerHost = cfg.MaxConnsPerHost

	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config: cfg,
		logger: logging.NewLogger("results-fetcher"),
	}, nil
}

// Fetch performs one GET of ep+q and decodes the body.
// Every failure is a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, ep endpoint.Endpoint, q query.Query) (*model.RawDocument, error) {
	fail := func(kind ErrorKind, status int, err error) *FetchError {
		return &FetchError{Kind: kind, StatusCode: status, Endpoint: string(ep), Query: q.Path, Err: err}
	}

	if f.config.Gate != nil {
		release, err := f.config.Gate.Acquire(ctx, ep.Host())
		if err != nil {
			return nil, fail(KindTransport, 0, err)
		}
		defer release()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL(q.Path), nil)
	if err != nil {
		return nil, fail(KindTransport, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	f.logger.Debug().
		Str(logging.FieldEndpoint, string(ep)).
		Str(logging.FieldQuery, q.Path).
		Msg("Executing results request")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, fail(KindTransport, 0, err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fail(KindTransport, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(KindTransport, 0, fmt.Errorf("read body: %w", err))
	}

	if !utf8.Valid(body) {
		e := fail(KindDecode, 0, fmt.Errorf("body is not valid UTF-8"))
		e.Corrupt = true
		return nil, e
	}

	doc, err := model.DecodeDocument(body)
	if err != nil {
		return nil, fail(KindDecode, 0, err)
	}

	f.logger.Debug().
		Str(logging.FieldEndpoint, string(ep)).
		Str(logging.FieldQuery, q.Path).
		Int("events", len(doc.Events)).
		Int("sections", len(doc.Sections)).
		Msg("Results document decoded")

	return doc, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (f *HTTPFetcher) SetHTTPClient(client *http.Client) {
	f.httpClient = client
}
