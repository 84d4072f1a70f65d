package cache

import (
	"context"
	"sync"
	"time"
)

// WarmConfig holds warm-up configuration.
type WarmConfig struct {
	// MaxConcurrency is the number of parallel loader invocations.
	MaxConcurrency int

	// Timeout bounds each individual load.
	Timeout time.Duration
}

// DefaultWarmConfig returns safe warm-up defaults.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		MaxConcurrency: 8,
		Timeout:        15 * time.Second,
	}
}

// WarmLoader derives the value for one key during warm-up.
type WarmLoader func(ctx context.Context, key Key) ([]byte, error)

// Warmer pre-populates the cache for a set of keys using a worker pool, so
// predictable traffic (market open, dashboard load) starts hot. Tier-1
// writes happen per entry; tier-2 writes are batched per resource class in
// a single multi-set round trip.
type Warmer struct {
	gateway *Gateway
	config  WarmConfig
}

// NewWarmer creates a warmer over the given gateway.
func NewWarmer(gateway *Gateway, config WarmConfig) *Warmer {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 8
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &Warmer{gateway: gateway, config: config}
}

type warmResult struct {
	key     Key
	payload []byte
	err     error
}

// Warm loads every key in parallel and stores the results. Individual load
// failures are logged and skipped; Warm returns the number of keys stored.
func (w *Warmer) Warm(ctx context.Context, keys []Key, loader WarmLoader) int {
	if len(keys) == 0 || loader == nil {
		return 0
	}
	start := time.Now()

	queue := make(chan Key, len(keys))
	results := make(chan warmResult, len(keys))
	for _, key := range keys {
		queue <- key
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < w.config.MaxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range queue {
				loadCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
				payload, err := loader(loadCtx, key)
				cancel()
				results <- warmResult{key: key, payload: payload, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	warmed := 0
	failed := 0
	batches := make(map[string]map[string][]byte) // class -> cacheKey -> payload

	for res := range results {
		if res.err != nil {
			failed++
			w.gateway.logger.Warn().
				Err(res.err).
				Str("key", res.key.String()).
				Msg("Warm-up load failed")
			continue
		}

		pol := w.gateway.policyFor(res.key.Class)
		cacheKey := res.key.String()

		if pol.Tier1Enabled {
			evicted := w.gateway.tier1.set(cacheKey, res.payload, pol.Tier1TTL, TierFresh, pol.Tier1MemoryBudget)
			w.gateway.stats.recordEvictions(evicted)
		}
		if pol.Tier2Enabled && w.gateway.tier2 != nil {
			if batches[res.key.Class] == nil {
				batches[res.key.Class] = make(map[string][]byte)
			}
			batches[res.key.Class][cacheKey] = w.gateway.encodeTier2(res.payload, pol, "set")
		}
		warmed++
	}

	for class, pairs := range batches {
		pol := w.gateway.policyFor(class)
		if err := w.gateway.tier2.MSet(ctx, pairs, pol.Tier2TTL); err != nil && err != ErrNotConnected {
			w.gateway.recordFailure(newTierError(Tier2, FailureBackendUnavailable, err), "set")
		}
	}

	w.gateway.logger.Info().
		Int("warmed", warmed).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Cache warm-up complete")
	return warmed
}
