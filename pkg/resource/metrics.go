package resource

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// resolvesTotal tracks resolutions by kind and outcome ("success" or
	// the failure code).
	resolvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maas_bridge_resolves_total",
		Help: "Total resource resolutions by kind and outcome",
	}, []string{"kind", "outcome"})

	// resolveDuration tracks end-to-end resolution latency by kind.
	resolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maas_bridge_resolve_duration_seconds",
		Help:    "Resource resolution duration in seconds by kind",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"kind"})
)
