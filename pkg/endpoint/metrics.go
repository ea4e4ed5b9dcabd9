package endpoint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	endpointsDiscovered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "results_ingest_endpoints",
		Help: "Number of upstream endpoints in the most recently initialized pool",
	})

	discoveryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "results_ingest_discovery_total",
		Help: "Endpoint discovery attempts by result",
	}, []string{"result"}) // "network", "cache", "static", "error"
)
