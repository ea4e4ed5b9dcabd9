package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts documents served from Redis.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "results_ingest_cache_hits_total",
			Help: "Total number of upstream documents served from cache",
		},
	)

	// CacheMisses counts lookups that fell through to upstream.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "results_ingest_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "results_ingest_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
