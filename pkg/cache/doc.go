// Package cache implements a tiered response cache for parameterized read
// requests, with the following features:
//
// - Bounded in-process tier with per-entry TTL and LRU eviction (tier 1)
// - Redis-backed distributed tier with reconnect state machine (tier 2)
// - Caller-supplied read-through source over the system of record (tier 3)
// - Write-back-on-read: slower-tier hits backfill the faster tiers
// - Per-resource-class TTL and memory policies (pkg/policy)
// - Deterministic cache key generation
// - Hit/miss/error statistics with p95/p99 latency percentiles
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Create Redis client (optional; nil runs tier 1 only)
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create the gateway
//	gateway := cache.New(cache.DefaultConfig(redisClient))
//	defer gateway.Shutdown()
//
//	// Compose a key
//	key := cache.Key{
//		Class:       policy.ClassPortfolioPerformance,
//		PrincipalID: "user-42",
//		Range:       "1Y",
//	}
//
//	// Get from cache
//	res := gateway.Get(ctx, key)
//	if !res.Hit {
//		// Full miss - re-derive the value and store it
//		value := computeSnapshot()
//		gateway.Set(ctx, key, value)
//	}
//
// # Read-Through
//
//	res := gateway.GetWith(ctx, key, func(ctx context.Context) ([]byte, error) {
//		return computeSnapshotFromStore(ctx)
//	})
//	// res.Source reports which tier satisfied the request.
//
// # Degradation
//
// Tier-2 failures never propagate to callers. A failed operation is recorded
// as an error, the adapter backs off with exponential delays, and lookups
// cascade past the failed tier. After the reconnect attempt budget is
// exhausted the adapter disables itself; only the periodic health-check ping
// can re-enable it.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - hub_cache_hits_total{tier} - Cache hits by tier
//   - hub_cache_misses_total - Full cache misses
//   - hub_cache_errors_total{operation} - Recovered tier errors
//   - hub_cache_evictions_total - Tier-1 LRU evictions
//   - hub_cache_backfills_total{tier} - Write-back-on-read populations
//   - hub_cache_memory_bytes - Estimated tier-1 memory
//   - hub_cache_tier2_ping_seconds - Health-check latency
package cache
