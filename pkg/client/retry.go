package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/results-ingest/pkg/endpoint"
	"github.com/Sternrassler/results-ingest/pkg/logging"
	"github.com/Sternrassler/results-ingest/pkg/model"
	"github.com/Sternrassler/results-ingest/pkg/query"
)

// EndpointSource hands out the endpoint for the next attempt. *endpoint.Pool satisfies it.
type EndpointSource interface {
	Next(ctx context.Context) (endpoint.Endpoint, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// BackoffUnit is the linear backoff step: the wait after attempt i (0-based) is i × BackoffUnit.
	// Zero retries without waiting.
	BackoffUnit time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 10,
		BackoffUnit: 1 * time.Second,
	}
}

// Retrier fetches a query, rotating endpoints and backing off linearly between attempts.
type Retrier struct {
	fetcher   Fetcher
	endpoints EndpointSource
	config    RetryConfig
	sleep     SleepFunc
	logger    zerolog.Logger
}

// NewRetrier creates a retrier. A non-positive MaxAttempts or a negative
// BackoffUnit falls back to the default; a zero BackoffUnit is kept.
func NewRetrier(fetcher Fetcher, endpoints EndpointSource, cfg RetryConfig) *Retrier {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BackoffUnit < 0 {
		cfg.BackoffUnit = def.BackoffUnit
	}

	return &Retrier{
		fetcher:   fetcher,
		endpoints: endpoints,
		config:    cfg,
		sleep:     sleepContext,
		logger:    logging.NewLogger("retrier"),
	}
}

// SetSleep replaces the backoff sleep (for testing).
func (r *Retrier) SetSleep(fn SleepFunc) {
	r.sleep = fn
}

// Config returns the effective retry configuration.
func (r *Retrier) Config() RetryConfig {
	return r.config
}

// Run fetches q until it succeeds or fails permanently.
// Every returned error is a *PermanentFailure.
func (r *Retrier) Run(ctx context.Context, q query.Query) (*model.RawDocument, error) {
	var lastErr error

	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, r.fail(q, attempt, err)
		}

		ep, err := r.endpoints.Next(ctx)
		if err != nil {
			// Discovery failure or cancellation: no endpoint will ever come.
			return nil, r.fail(q, attempt, err)
		}

		doc, err := r.fetcher.Fetch(ctx, ep, q)
		if err == nil {
			if attempt > 0 {
				r.logger.Info().
					Str(logging.FieldQuery, q.Path).
					Int(logging.FieldAttempt, attempt+1).
					Str(logging.FieldEndpoint, string(ep)).
					Msg("Query succeeded after retry")
			}
			return doc, nil
		}

		lastErr = err
		class := classOf(err)

		if !shouldRetry(err) {
			return nil, r.fail(q, attempt+1, err)
		}

		// If this was the last attempt, don't wait
		if attempt+1 >= r.config.MaxAttempts {
			break
		}

		backoff := time.Duration(attempt) * r.config.BackoffUnit
		retriesTotal.WithLabelValues(string(class)).Inc()
		retryBackoffSeconds.Observe(backoff.Seconds())

		r.logger.Warn().
			Err(err).
			Str(logging.FieldQuery, q.Path).
			Str(logging.FieldDay, q.Date()).
			Str(logging.FieldEndpoint, string(ep)).
			Int(logging.FieldAttempt, attempt+1).
			Str(logging.FieldErrorClass, string(class)).
			Dur("backoff", backoff).
			Msg("Retrying query after backoff")

		if err := r.sleep(ctx, backoff); err != nil {
			return nil, r.fail(q, attempt+1, err)
		}
	}

	return nil, r.fail(q, r.config.MaxAttempts,
		fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, r.config.MaxAttempts, lastErr))
}

func (r *Retrier) fail(q query.Query, attempts int, err error) *PermanentFailure {
	pf := &PermanentFailure{Query: q, Attempts: attempts, Err: err}
	class := pf.Class()
	retryExhaustedTotal.WithLabelValues(string(class)).Inc()

	event := r.logger.Error()
	if errors.Is(err, context.Canceled) {
		event = r.logger.Warn()
	}
	event.
		Err(err).
		Str(logging.FieldQuery, q.Path).
		Str(logging.FieldDay, q.Date()).
		Int("attempts", attempts).
		Str(logging.FieldErrorClass, string(class)).
		Msg("Query failed permanently")

	return pf
}

// sleepContext waits with context cancellation support.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
