// Package metrics exposes the Prometheus registry used by results-ingest.
// All metrics are defined in their respective packages (client, endpoint,
// ratelimit, normalize, store, ingest, cache) to maintain modularity and
// avoid circular dependencies.
//
// This package provides the scrape handler and a reference of all metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by results-ingest.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry scraped by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - results_ingest_requests_total{status} (Counter): Upstream requests by HTTP status or "network_error"
//   - results_ingest_request_duration_seconds (Histogram): Upstream request duration
//
// Retry Metrics (pkg/client):
//   - results_ingest_retries_total{error_class} (Counter): Retry attempts by error class
//   - results_ingest_retry_backoff_seconds (Histogram): Backoff slept before a retry
//   - results_ingest_retry_exhausted_total{error_class} (Counter): Queries that failed permanently
//
// Endpoint Metrics (pkg/endpoint):
//   - results_ingest_endpoints (Gauge): Endpoints in the most recently initialized pool
//   - results_ingest_discovery_total{result} (Counter): Discoveries by result (network, cache, static, error)
//
// Host Gate Metrics (pkg/ratelimit):
//   - results_ingest_host_inflight{host} (Gauge): Requests in flight per upstream host
//   - results_ingest_host_waits_total (Counter): Requests that waited for a free slot
//
// Pipeline Metrics (pkg/normalize, pkg/store, pkg/ingest):
//   - results_ingest_events_filtered_total (Counter): Sub-events dropped by the vocabulary filter
//   - results_ingest_normalization_errors_total (Counter): Documents rejected during enrichment
//   - results_ingest_events_persisted_total (Counter): Events written to the store
//   - results_ingest_persist_errors_total{kind} (Counter): Batches that failed to persist
//   - results_ingest_pipelines_total{result} (Counter): Per-day pipelines by result
//   - results_ingest_runs_total{result} (Counter): Runs by result (success, partial, error)
//   - results_ingest_run_duration_seconds (Histogram): Run duration
//
// Cache Metrics (pkg/cache):
//   - results_ingest_cache_hits_total (Counter): Discovery documents served from Redis
//   - results_ingest_cache_misses_total (Counter): Cache misses
//   - results_ingest_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Retry rate by class
//   sum by (error_class) (rate(results_ingest_retries_total[5m]))
//
//   # Share of failed days in the last run window
//   sum(rate(results_ingest_pipelines_total{result!="success"}[1h])) /
//   sum(rate(results_ingest_pipelines_total[1h]))
//
//   # P95 upstream latency
//   histogram_quantile(0.95, rate(results_ingest_request_duration_seconds_bucket[5m]))
//
//   # Hosts at their connection limit
//   results_ingest_host_inflight >= 10
