// Package metrics provides the centralized Prometheus metrics registry for
// the tiered cache. All metrics are defined in their owning packages
// (cache) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the cache.
// All metrics are automatically registered via promauto in their owning
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - hub_cache_hits_total{tier} (Counter): Cache hits by tier (tier1, tier2, tier3)
//   - hub_cache_misses_total (Counter): Full cache misses across all tiers
//   - hub_cache_errors_total{operation} (Counter): Recovered tier errors by operation (get, set, delete, ping)
//   - hub_cache_evictions_total (Counter): Tier-1 entries evicted under memory pressure
//   - hub_cache_backfills_total{tier} (Counter): Faster-tier backfills from slower-tier hits
//   - hub_cache_memory_bytes (Gauge): Estimated tier-1 in-process memory
//   - hub_cache_tier2_ping_seconds (Histogram): Distributed cache health-check latency
//   - hub_cache_request_duration_seconds{operation} (Histogram): Gateway operation duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(hub_cache_hits_total[5m])) /
//   (sum(rate(hub_cache_hits_total[5m])) + sum(rate(hub_cache_misses_total[5m])))
//
//   # Tier-1 Share of Hits
//   rate(hub_cache_hits_total{tier="tier1"}[5m]) / sum(rate(hub_cache_hits_total[5m]))
//
//   # Tier-2 Error Rate
//   rate(hub_cache_errors_total[5m])
//
//   # P95 Lookup Latency
//   histogram_quantile(0.95, rate(hub_cache_request_duration_seconds_bucket{operation="get"}[5m]))
//
//   # Tier-1 Memory
//   hub_cache_memory_bytes
