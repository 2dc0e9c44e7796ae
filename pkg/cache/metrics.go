package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hits tracks cache hits by resource kind, mirroring Misses so that
	// per-kind hit rates divide cleanly
	Hits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maas_bridge_cache_hits_total",
			Help: "Total number of resource cache hits",
		},
		[]string{"kind"},
	)

	// Misses tracks cache misses by resource kind
	Misses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maas_bridge_cache_misses_total",
			Help: "Total number of resource cache misses",
		},
		[]string{"kind"},
	)

	// Invalidations tracks removed entries by resource kind
	Invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maas_bridge_cache_invalidations_total",
			Help: "Total number of cache entries removed by invalidation",
		},
		[]string{"kind"},
	)

	// Errors tracks swallowed cache faults by operation
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maas_bridge_cache_errors_total",
			Help: "Total number of cache operation errors (non-fatal)",
		},
		[]string{"operation"}, // "get", "set", "delete", "scan"
	)
)
