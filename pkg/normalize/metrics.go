package normalize

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsFilteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "results_ingest_events_filtered_total",
		Help: "Total number of sub-events dropped by the vocabulary filter",
	})

	normalizationErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "results_ingest_normalization_errors_total",
		Help: "Total number of documents rejected during enrichment",
	})
)
