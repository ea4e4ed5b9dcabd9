package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for per-host gating.
var (
	hostInflight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "results_ingest_host_inflight",
		Help: "Requests currently in flight per upstream host",
	}, []string{"host"})

	hostWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "results_ingest_host_waits_total",
		Help: "Total number of requests that waited for a free per-host slot",
	})
)
