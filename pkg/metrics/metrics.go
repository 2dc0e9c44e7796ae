// Package metrics provides the central Prometheus registry reference for
// the bridge. All metrics are defined in their respective packages (cache,
// maas, resource) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the bridge.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - maas_bridge_cache_hits_total{kind} (Counter): Cache hits by resource kind
//   - maas_bridge_cache_misses_total{kind} (Counter): Cache misses by resource kind
//   - maas_bridge_cache_invalidations_total{kind} (Counter): Entries removed by invalidation
//   - maas_bridge_cache_errors_total{operation} (Counter): Swallowed cache faults by operation
//
// Backend Metrics (pkg/maas):
//   - maas_bridge_backend_requests_total{status} (Counter): Backend requests by HTTP status
//   - maas_bridge_backend_request_duration_seconds (Histogram): Backend request duration
//   - maas_bridge_backend_retries_total (Counter): Backend retry attempts
//   - maas_bridge_backend_retry_exhausted_total (Counter): Requests that exhausted retries
//
// Resolution Metrics (pkg/resource):
//   - maas_bridge_resolves_total{kind, outcome} (Counter): Resolutions by kind and outcome
//   - maas_bridge_resolve_duration_seconds{kind} (Histogram): Resolution latency by kind
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate by Kind
//   sum by (kind) (rate(maas_bridge_cache_hits_total[5m])) /
//   (sum by (kind) (rate(maas_bridge_cache_hits_total[5m])) + sum by (kind) (rate(maas_bridge_cache_misses_total[5m])))
//
//   # Failure Rate by Code
//   sum by (outcome) (rate(maas_bridge_resolves_total{outcome!="success"}[5m]))
//
//   # P95 Resolution Latency
//   histogram_quantile(0.95, rate(maas_bridge_resolve_duration_seconds_bucket[5m]))
