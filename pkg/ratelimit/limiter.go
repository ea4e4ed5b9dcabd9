// Package ratelimit gates concurrent upstream requests per host.
//
// The upstream tolerates only a bounded number of simultaneous connections
// per host. HostLimiter enforces that bound for every request the process
// makes, whichever fetcher issues it.
package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxPerHost is the default number of simultaneous requests per host.
const DefaultMaxPerHost = 10

// HostLimiter bounds in-flight requests per host.
type HostLimiter struct {
	limit  int64
	logger zerolog.Logger

	mu    sync.Mutex
	hosts map[string]*hostGate
}

type hostGate struct {
	sem      *semaphore.Weighted
	inflight int64 // guarded by HostLimiter.mu
}

// NewHostLimiter creates a limiter allowing maxPerHost concurrent requests per host.
// A non-positive value selects DefaultMaxPerHost.
func NewHostLimiter(maxPerHost int, logger zerolog.Logger) *HostLimiter {
	if maxPerHost <= 0 {
		maxPerHost = DefaultMaxPerHost
	}
	return &HostLimiter{
		limit:  int64(maxPerHost),
		logger: logger,
		hosts:  make(map[string]*hostGate),
	}
}

// Limit returns the per-host bound.
func (l *HostLimiter) Limit() int {
	return int(l.limit)
}

// Acquire blocks until a slot for host is free or ctx is done.
// The returned release func must be called exactly once when the request finishes.
func (l *HostLimiter) Acquire(ctx context.Context, host string) (func(), error) {
	gate := l.gate(host)

	if !gate.sem.TryAcquire(1) {
		hostWaitsTotal.Inc()
		l.logger.Debug().
			Str("host", host).
			Int64("limit", l.limit).
			Msg("Host at connection limit - waiting for a free slot")

		if err := gate.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("acquire slot for %s: %w", host, err)
		}
	}

	l.adjust(host, gate, 1)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.adjust(host, gate, -1)
			gate.sem.Release(1)
		})
	}, nil
}

// InFlight returns the number of requests currently holding a slot for host.
func (l *HostLimiter) InFlight(host string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gate, ok := l.hosts[host]; ok {
		return int(gate.inflight)
	}
	return 0
}

func (l *HostLimiter) gate(host string) *hostGate {
	l.mu.Lock()
	defer l.mu.Unlock()

	gate, ok := l.hosts[host]
	if !ok {
		gate = &hostGate{sem: semaphore.NewWeighted(l.limit)}
		l.hosts[host] = gate
	}
	return gate
}

func (l *HostLimiter) adjust(host string, gate *hostGate, delta int64) {
	l.mu.Lock()
	gate.inflight += delta
	n := gate.inflight
	l.mu.Unlock()

	hostInflight.WithLabelValues(host).Set(float64(n))
}
