// Package cache provides the shared TTL payload cache used by resource
// handlers, with scoped invalidation by resource kind and by resource id.
//
// Two backends implement the Store interface: MemoryStore for a single
// bridge process and RedisStore for deployments sharing a cache across
// processes. Both follow the same fault contract:
//
//   - Get never fails: a lookup fault is reported as a miss so the caller
//     falls back to the backend.
//   - Set is best-effort: a write fault is logged and dropped, never
//     surfaced to the request that produced the payload.
//
// The cache is a pure optimization layer. The MAAS backend remains the
// source of truth and every miss path is fully functional without it.
//
// # Keys
//
// Keys are deterministic strings derived from the resource kind, the
// canonical URI, the validated parameter set, and a fingerprint of the
// active cache options:
//
//	maas:machine:maas%3A//machine/abc123/details:id=abc123:opt=ttl=300
//
// Separator characters inside the uri, id, and param components are
// escaped. Detail handlers encode the resource id as a dedicated id=
// segment, which is what id-scoped invalidation matches on.
//
// # Expiry
//
// Entries expire lazily at read time once now - stored_at exceeds the TTL;
// there is no background sweep. TTLs default per resource kind (see
// DefaultConfig) and can be overridden per handler.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - maas_bridge_cache_hits_total{kind} - cache hits
//   - maas_bridge_cache_misses_total{kind} - cache misses
//   - maas_bridge_cache_invalidations_total{kind} - invalidated entries
//   - maas_bridge_cache_errors_total{operation} - swallowed cache faults
package cache
