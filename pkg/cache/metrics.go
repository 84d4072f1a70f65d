package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks hits by tier (tier1, tier2, tier3).
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_cache_hits_total",
			Help: "Total number of cache hits by tier",
		},
		[]string{"tier"},
	)

	// cacheMisses tracks full cache misses (all enabled tiers exhausted).
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_cache_misses_total",
			Help: "Total number of cache misses across all tiers",
		},
	)

	// cacheErrors tracks recovered tier failures by operation.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_cache_errors_total",
			Help: "Total number of recovered cache tier errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "ping"
	)

	// cacheEvictions tracks tier-1 LRU evictions under memory pressure.
	cacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_cache_evictions_total",
			Help: "Total number of tier-1 entries evicted under memory pressure",
		},
	)

	// cacheBackfills tracks write-back-on-read populations by target tier.
	cacheBackfills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_cache_backfills_total",
			Help: "Total number of faster-tier backfills from slower-tier hits",
		},
		[]string{"tier"},
	)

	// cacheMemoryBytes tracks estimated tier-1 memory.
	cacheMemoryBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_cache_memory_bytes",
			Help: "Estimated tier-1 in-process cache memory in bytes",
		},
	)

	// tier2PingSeconds tracks distributed cache health-check latency.
	tier2PingSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hub_cache_tier2_ping_seconds",
			Help:    "Distributed cache health-check ping latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// requestDuration tracks gateway operation latency.
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hub_cache_request_duration_seconds",
			Help:    "Cache gateway operation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"operation"}, // "get", "set"
	)
)
