package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for upstream fetches.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "results_ingest_requests_total",
		Help: "Total upstream results requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "results_ingest_request_duration_seconds",
		Help:    "Upstream results request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "results_ingest_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "results_ingest_retry_backoff_seconds",
		Help:    "Backoff slept before a retry",
		Buckets: []float64{0, 1, 2, 5, 10},
	})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "results_ingest_retry_exhausted_total",
		Help: "Total number of queries that failed permanently by error class",
	}, []string{"error_class"})
)
