package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/income-clarity/hubcache/pkg/policy"
)

// Default background task intervals.
const (
	DefaultSweepInterval     = 60 * time.Second
	DefaultHealthInterval    = 30 * time.Second
	DefaultMinHealthInterval = 5 * time.Second
)

// SourceFunc re-derives a value from the system of record on a full cache
// miss. It is supplied by the caller; the cache never queries the backing
// store directly.
type SourceFunc func(ctx context.Context) ([]byte, error)

// Result is the outcome of a Get. The gateway never returns an error to the
// caller: tier failures degrade to misses.
type Result struct {
	// Value is the cached payload. Nil on a miss.
	Value []byte

	// Source is the tier that satisfied the request. Empty on a miss.
	Source Tier

	// Elapsed is the wall time spent in the cascade.
	Elapsed time.Duration

	// Hit reports whether any tier satisfied the request.
	Hit bool
}

// Tier1Health describes the in-process store.
type Tier1Health struct {
	Entries      int     `json:"entries"`
	ValidEntries int     `json:"valid_entries"`
	MemoryMB     float64 `json:"memory_mb"`
}

// Tier2Health describes the distributed cache backend.
type Tier2Health struct {
	Connected bool    `json:"connected"`
	LatencyMs float64 `json:"latency_ms"`
}

// HealthReport aggregates tier health for administrative endpoints.
type HealthReport struct {
	Tier1     Tier1Health `json:"tier1"`
	Tier2     Tier2Health `json:"tier2"`
	CheckedAt time.Time   `json:"checked_at"`
}

// Config holds the gateway configuration.
type Config struct {
	// Redis is the distributed cache client. Nil disables tier 2 entirely.
	Redis *redis.Client

	// Registry maps resource classes to tier policies. Nil uses the
	// built-in default registry.
	Registry *policy.Registry

	// SweepInterval is the tier-1 expiry sweep period. Zero disables the
	// background sweep (tests trigger Sweep manually).
	SweepInterval time.Duration

	// HealthInterval is the tier-2 ping period. Zero disables the
	// background ping.
	HealthInterval time.Duration

	// MinHealthInterval rate-limits HealthCheck: calls within the window
	// return the last cached report instead of probing again.
	MinHealthInterval time.Duration

	// CommandTimeout bounds any single tier-2 network call.
	CommandTimeout time.Duration

	// EvictFraction is the share of tier-1 entries evicted (LRU order)
	// when a class memory budget is exceeded.
	EvictFraction float64

	// MaxSamples bounds the response-time sample window.
	MaxSamples int

	// Reconnect tunes the tier-2 reconnection state machine.
	Reconnect ReconnectConfig

	// Logger is the structured logger for cache internals.
	Logger zerolog.Logger

	// Clock supplies the current time. Defaults to time.Now; tests inject
	// a manual clock to drive expiry deterministically.
	Clock func() time.Time
}

// DefaultConfig returns a safe default configuration. redisClient may be nil
// to run tier 1 only.
func DefaultConfig(redisClient *redis.Client) Config {
	return Config{
		Redis:             redisClient,
		Registry:          policy.NewDefaultRegistry(),
		SweepInterval:     DefaultSweepInterval,
		HealthInterval:    DefaultHealthInterval,
		MinHealthInterval: DefaultMinHealthInterval,
		CommandTimeout:    DefaultCommandTimeout,
		EvictFraction:     DefaultEvictFraction,
		MaxSamples:        DefaultMaxSamples,
		Reconnect:         DefaultReconnectConfig(),
	}
}

// Gateway is the tiered cache's public surface. It composes the in-process
// store, the distributed cache adapter, the policy registry, and the
// statistics collector, and owns the background sweep and ping tasks.
//
// Construct with New and inject into callers; stop with Shutdown.
type Gateway struct {
	tier1    *memoryStore
	tier2    *RedisStore
	registry *policy.Registry
	stats    *statsCollector
	logger   zerolog.Logger
	clock    func() time.Time

	minHealthInterval time.Duration
	commandTimeout    time.Duration
	healthMu          sync.Mutex
	lastHealth        HealthReport
	lastHealthAt      time.Time

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a gateway and starts its background tasks.
func New(cfg Config) *Gateway {
	if cfg.Registry == nil {
		cfg.Registry = policy.NewDefaultRegistry()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Reconnect.MaxAttempts == 0 {
		cfg.Reconnect = DefaultReconnectConfig()
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}

	g := &Gateway{
		tier1:             newMemoryStore(cfg.EvictFraction, cfg.Clock),
		registry:          cfg.Registry,
		stats:             newStatsCollector(cfg.MaxSamples),
		logger:            cfg.Logger.With().Str("component", "cache-gateway").Logger(),
		clock:             cfg.Clock,
		minHealthInterval: cfg.MinHealthInterval,
		commandTimeout:    cfg.CommandTimeout,
		stop:              make(chan struct{}),
	}

	if cfg.Redis != nil {
		g.tier2 = NewRedisStore(cfg.Redis, cfg.Reconnect, cfg.CommandTimeout, g.logger)
	}

	if cfg.SweepInterval > 0 {
		g.wg.Add(1)
		go g.sweepLoop(cfg.SweepInterval)
	}
	if cfg.HealthInterval > 0 && g.tier2 != nil {
		g.wg.Add(1)
		go g.pingLoop(cfg.HealthInterval)
	}

	return g
}

// Shutdown stops the background tasks and waits for them to exit. Safe to
// call more than once.
func (g *Gateway) Shutdown() {
	g.stopOnce.Do(func() {
		close(g.stop)
	})
	g.wg.Wait()
}

// Get consults the tiers in order (in-process, then distributed) and returns
// the first hit. A tier-2 hit backfills tier 1 with that tier's own TTL.
// On a full miss the caller re-derives the value and calls Set, or uses
// GetWith to let the gateway invoke the source function itself.
func (g *Gateway) Get(ctx context.Context, key Key) Result {
	return g.lookup(ctx, key, nil)
}

// GetWith behaves like Get but invokes the read-through source function as
// tier 3 on a full cache miss, when the class policy enables tier 3. A
// tier-3 hit backfills tiers 1 and 2.
func (g *Gateway) GetWith(ctx context.Context, key Key, source SourceFunc) Result {
	return g.lookup(ctx, key, source)
}

func (g *Gateway) lookup(ctx context.Context, key Key, source SourceFunc) Result {
	start := g.clock()
	pol := g.policyFor(key.Class)
	cacheKey := key.String()

	res := g.cascade(ctx, cacheKey, pol, source)
	res.Elapsed = g.clock().Sub(start)

	g.stats.recordSample(res.Elapsed)
	requestDuration.WithLabelValues("get").Observe(res.Elapsed.Seconds())
	return res
}

func (g *Gateway) cascade(ctx context.Context, cacheKey string, pol policy.TierPolicy, source SourceFunc) Result {
	if pol.Tier1Enabled {
		if payload, ok := g.tier1.get(cacheKey); ok {
			g.stats.recordHit(Tier1)
			cacheHits.WithLabelValues(string(Tier1)).Inc()
			return Result{Value: payload, Source: Tier1, Hit: true}
		}
	}

	if pol.Tier2Enabled && g.tier2 != nil {
		payload, err := g.tier2.Get(ctx, cacheKey)
		if err == nil {
			payload, err = g.decodeTier2(payload, pol)
			if err != nil {
				g.recordFailure(newTierError(Tier2, FailureSerialization, err), "get")
			} else {
				g.stats.recordHit(Tier2)
				cacheHits.WithLabelValues(string(Tier2)).Inc()
				g.backfillTier1(cacheKey, payload, pol, Tier2)
				return Result{Value: payload, Source: Tier2, Hit: true}
			}
		} else if err != ErrCacheMiss && err != ErrNotConnected {
			g.recordFailure(newTierError(Tier2, FailureBackendUnavailable, err), "get")
		}
	}

	if pol.Tier3Enabled && source != nil {
		payload, err := source(ctx)
		if err != nil {
			g.recordFailure(newTierError(Tier3, FailureBackendUnavailable, err), "get")
		} else {
			g.stats.recordHit(Tier3)
			cacheHits.WithLabelValues(string(Tier3)).Inc()
			g.backfillTier1(cacheKey, payload, pol, Tier3)
			g.backfillTier2(ctx, cacheKey, payload, pol)
			return Result{Value: payload, Source: Tier3, Hit: true}
		}
	}

	g.stats.recordMiss()
	cacheMisses.Inc()
	return Result{}
}

// GetMulti looks up several keys of one resource class, batching the tier-2
// round trip for keys that miss tier 1. Results are positional; misses have
// Hit=false.
func (g *Gateway) GetMulti(ctx context.Context, keys []Key) []Result {
	start := g.clock()
	results := make([]Result, len(keys))
	if len(keys) == 0 {
		return results
	}

	pol := g.policyFor(keys[0].Class)
	cacheKeys := make([]string, len(keys))

	pending := make([]int, 0, len(keys))
	for i, key := range keys {
		cacheKeys[i] = key.String()
		if pol.Tier1Enabled {
			if payload, ok := g.tier1.get(cacheKeys[i]); ok {
				g.stats.recordHit(Tier1)
				cacheHits.WithLabelValues(string(Tier1)).Inc()
				results[i] = Result{Value: payload, Source: Tier1, Hit: true}
				continue
			}
		}
		pending = append(pending, i)
	}

	if len(pending) > 0 && pol.Tier2Enabled && g.tier2 != nil {
		lookup := make([]string, len(pending))
		for i, idx := range pending {
			lookup[i] = cacheKeys[idx]
		}

		payloads, err := g.tier2.MGet(ctx, lookup...)
		if err != nil && err != ErrNotConnected {
			g.recordFailure(newTierError(Tier2, FailureBackendUnavailable, err), "get")
		}
		if err == nil {
			remaining := pending[:0]
			for i, idx := range pending {
				if payloads[i] == nil {
					remaining = append(remaining, idx)
					continue
				}
				payload, derr := g.decodeTier2(payloads[i], pol)
				if derr != nil {
					g.recordFailure(newTierError(Tier2, FailureSerialization, derr), "get")
					remaining = append(remaining, idx)
					continue
				}
				g.stats.recordHit(Tier2)
				cacheHits.WithLabelValues(string(Tier2)).Inc()
				g.backfillTier1(cacheKeys[idx], payload, pol, Tier2)
				results[idx] = Result{Value: payload, Source: Tier2, Hit: true}
			}
			pending = remaining
		}
	}

	for range pending {
		g.stats.recordMiss()
		cacheMisses.Inc()
	}

	elapsed := g.clock().Sub(start)
	for i := range results {
		results[i].Elapsed = elapsed
	}
	g.stats.recordSample(elapsed)
	requestDuration.WithLabelValues("get").Observe(elapsed.Seconds())
	return results
}

// Set writes the value into every enabled tier up to and including tier 2,
// each with its own TTL. Tier 3 is the system of record and is never written
// here. A tier-2 failure is recorded but does not fail the call; the next
// Get simply cascades past the failed tier. Returns ErrNoWritableTier only
// when no enabled tier accepted the value.
func (g *Gateway) Set(ctx context.Context, key Key, value []byte) error {
	start := g.clock()
	defer func() {
		requestDuration.WithLabelValues("set").Observe(g.clock().Sub(start).Seconds())
	}()

	if value == nil {
		g.recordFailure(newTierError(Tier1, FailureSerialization, ErrNoWritableTier), "set")
		return ErrNoWritableTier
	}

	pol := g.policyFor(key.Class)
	cacheKey := key.String()
	wrote := false

	if pol.Tier1Enabled {
		evicted := g.tier1.set(cacheKey, value, pol.Tier1TTL, TierFresh, pol.Tier1MemoryBudget)
		if evicted > 0 {
			g.stats.recordEvictions(evicted)
			cacheEvictions.Add(float64(evicted))
			g.logger.Debug().
				Str("key", cacheKey).
				Int("evicted", evicted).
				Msg("Tier-1 memory budget exceeded, evicted LRU entries")
		}
		wrote = true
	}

	if pol.Tier2Enabled && g.tier2 != nil {
		err := g.tier2.Set(ctx, cacheKey, g.encodeTier2(value, pol, "set"), pol.Tier2TTL)
		switch {
		case err == nil:
			wrote = true
		case err != ErrNotConnected:
			g.recordFailure(newTierError(Tier2, FailureBackendUnavailable, err), "set")
		}
	}

	if !wrote {
		return ErrNoWritableTier
	}
	return nil
}

// Invalidate removes the key from all tiers. Tier-1 removal is synchronous:
// a subsequent Get for this key cannot return a stale tier-1 value. Tier-2
// removal is best-effort and may lag behind the call's return.
func (g *Gateway) Invalidate(ctx context.Context, key Key) {
	cacheKey := key.String()
	g.tier1.delete(cacheKey)

	if g.tier2 != nil {
		if err := g.tier2.Delete(ctx, cacheKey); err != nil && err != ErrNotConnected {
			g.recordFailure(newTierError(Tier2, FailureBackendUnavailable, err), "delete")
		}
	}
}

// InvalidatePattern removes every key containing the given substring from
// tier 1 and, best-effort, from tier 2.
func (g *Gateway) InvalidatePattern(ctx context.Context, pattern string) {
	removed := g.tier1.deletePattern(pattern)
	g.logger.Debug().
		Str("pattern", pattern).
		Int("removed", removed).
		Msg("Invalidated tier-1 entries by pattern")

	if g.tier2 == nil {
		return
	}
	keys, err := g.tier2.KeysByPattern(ctx, "*"+pattern+"*")
	if err != nil {
		if err != ErrNotConnected {
			g.recordFailure(newTierError(Tier2, FailureBackendUnavailable, err), "delete")
		}
		return
	}
	if err := g.tier2.Delete(ctx, keys...); err != nil && err != ErrNotConnected {
		g.recordFailure(newTierError(Tier2, FailureBackendUnavailable, err), "delete")
	}
}

// Stats returns a snapshot of the gateway's counters and latency percentiles.
func (g *Gateway) Stats() StatsSnapshot {
	return g.stats.snapshot()
}

// ResetStats zeroes the counters and drops the sample window.
func (g *Gateway) ResetStats() {
	g.stats.reset()
}

// HealthCheck reports aggregate tier health. Consecutive calls within
// MinHealthInterval return the last cached report instead of issuing a new
// network probe.
func (g *Gateway) HealthCheck(ctx context.Context) HealthReport {
	now := g.clock()

	g.healthMu.Lock()
	if !g.lastHealthAt.IsZero() && now.Sub(g.lastHealthAt) < g.minHealthInterval {
		cached := g.lastHealth
		g.healthMu.Unlock()
		return cached
	}
	g.healthMu.Unlock()

	entries, valid, memory := g.tier1.counts()
	report := HealthReport{
		Tier1: Tier1Health{
			Entries:      entries,
			ValidEntries: valid,
			MemoryMB:     float64(memory) / (1 << 20),
		},
		CheckedAt: now,
	}

	if g.tier2 != nil {
		latency, err := g.tier2.Ping(ctx)
		if err != nil {
			g.recordFailure(newTierError(Tier2, FailureBackendUnavailable, err), "ping")
		}
		report.Tier2 = Tier2Health{
			Connected: g.tier2.Connected(),
			LatencyMs: float64(latency.Microseconds()) / 1000,
		}
	}

	g.healthMu.Lock()
	g.lastHealth = report
	g.lastHealthAt = now
	g.healthMu.Unlock()
	return report
}

// Sweep removes TTL-expired tier-1 entries immediately, independent of the
// background interval. Returns the number of entries removed.
func (g *Gateway) Sweep() int {
	removed := g.tier1.sweep()
	g.stats.markCleanup(g.clock())
	if removed > 0 {
		g.logger.Debug().Int("removed", removed).Msg("Tier-1 sweep removed expired entries")
	}
	return removed
}

// PingTier2 probes the distributed cache immediately, independent of the
// background interval. This is the only path that can re-enable a Disabled
// adapter.
func (g *Gateway) PingTier2(ctx context.Context) (time.Duration, error) {
	if g.tier2 == nil {
		return 0, ErrNotConnected
	}
	return g.tier2.Ping(ctx)
}

// Tier2State exposes the adapter's connection state for observability.
func (g *Gateway) Tier2State() ConnState {
	if g.tier2 == nil {
		return ConnState{Status: StatusDisabled}
	}
	return g.tier2.State()
}

func (g *Gateway) policyFor(class string) policy.TierPolicy {
	pol, known := g.registry.Lookup(class)
	if !known {
		g.recordFailure(newTierError(Tier1, FailureConfigurationMissing, nil), "get")
		g.logger.Debug().
			Str("class", class).
			Msg("Unknown resource class, using default policy")
	}
	return pol
}

func (g *Gateway) backfillTier1(cacheKey string, payload []byte, pol policy.TierPolicy, origin Tier) {
	if !pol.Tier1Enabled {
		return
	}
	evicted := g.tier1.set(cacheKey, payload, pol.Tier1TTL, origin, pol.Tier1MemoryBudget)
	if evicted > 0 {
		g.stats.recordEvictions(evicted)
		cacheEvictions.Add(float64(evicted))
	}
	cacheBackfills.WithLabelValues(string(Tier1)).Inc()
}

func (g *Gateway) backfillTier2(ctx context.Context, cacheKey string, payload []byte, pol policy.TierPolicy) {
	if !pol.Tier2Enabled || g.tier2 == nil {
		return
	}
	err := g.tier2.Set(ctx, cacheKey, g.encodeTier2(payload, pol, "set"), pol.Tier2TTL)
	if err != nil {
		if err != ErrNotConnected {
			g.recordFailure(newTierError(Tier2, FailureBackendUnavailable, err), "set")
		}
		return
	}
	cacheBackfills.WithLabelValues(string(Tier2)).Inc()
}

// encodeTier2 frames the payload when the class policy marks it compressible.
// Falls back to a raw frame on a compression error so the write still lands.
func (g *Gateway) encodeTier2(payload []byte, pol policy.TierPolicy, operation string) []byte {
	if !pol.Compressible {
		return payload
	}
	encoded, err := encodeFramed(payload)
	if err != nil {
		g.recordFailure(newTierError(Tier2, FailureSerialization, err), operation)
		return append([]byte{frameRaw}, payload...)
	}
	return encoded
}

// decodeTier2 reverses encodeTier2. Non-compressible classes store payloads
// verbatim, so their bytes are never inspected.
func (g *Gateway) decodeTier2(payload []byte, pol policy.TierPolicy) ([]byte, error) {
	if !pol.Compressible {
		return payload, nil
	}
	return decodeFramed(payload)
}

// recordFailure feeds a categorized tier failure to the statistics collector,
// prometheus, and the log. Failures never propagate to callers.
func (g *Gateway) recordFailure(failure *TierError, operation string) {
	g.stats.recordFailure(failure)
	cacheErrors.WithLabelValues(operation).Inc()
	g.logger.Warn().
		Err(failure).
		Str("operation", operation).
		Str("tier", string(failure.Tier)).
		Str("kind", string(failure.Kind)).
		Msg("Cache tier failure, degrading to next tier")
}

func (g *Gateway) sweepLoop(interval time.Duration) {
	defer g.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.Sweep()
		case <-g.stop:
			return
		}
	}
}

func (g *Gateway) pingLoop(interval time.Duration) {
	defer g.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), g.commandTimeout)
			_, _ = g.tier2.Ping(ctx)
			cancel()
		case <-g.stop:
			return
		}
	}
}
