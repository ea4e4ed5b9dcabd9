package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelinesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "results_ingest_pipelines_total",
		Help: "Total per-day pipelines by result",
	}, []string{"result"}) // "success", "fetch_failed", "normalize_failed", "persist_failed"

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "results_ingest_runs_total",
		Help: "Total ingestion runs by result",
	}, []string{"result"}) // "success", "partial", "error"

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "results_ingest_run_duration_seconds",
		Help:    "Duration of complete ingestion runs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
)
