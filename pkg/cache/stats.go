package cache

import (
	"sort"
	"sync"
	"time"
)

// DefaultMaxSamples bounds the response-time sample window.
const DefaultMaxSamples = 500

// StatsSnapshot is a point-in-time copy of the collector's counters and
// derived percentiles.
type StatsSnapshot struct {
	HitsTier1 uint64 `json:"hits_tier1"`
	HitsTier2 uint64 `json:"hits_tier2"`
	HitsTier3 uint64 `json:"hits_tier3"`
	Misses    uint64 `json:"misses"`
	Errors    uint64 `json:"errors"`
	Evictions uint64 `json:"evictions"`

	// HitRate is (sum of tier hits) / (sum of tier hits + misses).
	// Zero when no lookups have been recorded.
	HitRate float64 `json:"hit_rate"`

	// Samples is the number of response-time samples in the window.
	Samples int `json:"samples"`

	// P95 and P99 are response-time percentiles over the sample window.
	P95 time.Duration `json:"p95_ns"`
	P99 time.Duration `json:"p99_ns"`

	// LastCleanup is when the periodic tier-1 sweep last completed.
	LastCleanup time.Time `json:"last_cleanup"`
}

// statsCollector accumulates gateway counters and a bounded FIFO of
// response-time samples. Safe for concurrent use.
type statsCollector struct {
	mu sync.Mutex

	hitsTier1 uint64
	hitsTier2 uint64
	hitsTier3 uint64
	misses    uint64
	errors    uint64
	evictions uint64

	samples    []time.Duration
	maxSamples int
	next       int
	filled     bool

	lastCleanup time.Time
}

func newStatsCollector(maxSamples int) *statsCollector {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &statsCollector{
		samples:    make([]time.Duration, maxSamples),
		maxSamples: maxSamples,
	}
}

// recordHit counts a hit for the given tier.
func (s *statsCollector) recordHit(tier Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch tier {
	case Tier1:
		s.hitsTier1++
	case Tier2:
		s.hitsTier2++
	case Tier3:
		s.hitsTier3++
	}
}

// recordMiss counts a full miss.
func (s *statsCollector) recordMiss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
}

// recordFailure consumes a categorized tier failure. Capacity events are
// counted as evictions rather than errors: eviction is policy, not failure.
func (s *statsCollector) recordFailure(failure *TierError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if failure.Kind == FailureCapacityExceeded {
		return
	}
	s.errors++
}

// recordEvictions counts tier-1 entries removed under memory pressure.
func (s *statsCollector) recordEvictions(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.evictions += uint64(n)
	s.mu.Unlock()
}

// recordSample appends a response-time sample, dropping the oldest sample
// once the window is full.
func (s *statsCollector) recordSample(d time.Duration) {
	s.mu.Lock()
	s.samples[s.next] = d
	s.next++
	if s.next == s.maxSamples {
		s.next = 0
		s.filled = true
	}
	s.mu.Unlock()
}

// markCleanup records the completion time of a tier-1 sweep.
func (s *statsCollector) markCleanup(t time.Time) {
	s.mu.Lock()
	s.lastCleanup = t
	s.mu.Unlock()
}

// snapshot returns a consistent copy with derived rate and percentiles.
func (s *statsCollector) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.next
	if s.filled {
		count = s.maxSamples
	}
	window := make([]time.Duration, count)
	copy(window, s.samples[:count])
	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })

	snap := StatsSnapshot{
		HitsTier1:   s.hitsTier1,
		HitsTier2:   s.hitsTier2,
		HitsTier3:   s.hitsTier3,
		Misses:      s.misses,
		Errors:      s.errors,
		Evictions:   s.evictions,
		Samples:     count,
		P95:         percentile(window, 0.95),
		P99:         percentile(window, 0.99),
		LastCleanup: s.lastCleanup,
	}

	hits := snap.HitsTier1 + snap.HitsTier2 + snap.HitsTier3
	if total := hits + snap.Misses; total > 0 {
		snap.HitRate = float64(hits) / float64(total)
	}
	return snap
}

// reset zeroes all counters and drops the sample window.
func (s *statsCollector) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hitsTier1, s.hitsTier2, s.hitsTier3 = 0, 0, 0
	s.misses, s.errors, s.evictions = 0, 0, 0
	s.next = 0
	s.filled = false
}

// percentile returns the q-quantile of an ascending-sorted window using the
// nearest-rank method. Zero for an empty window.
func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(q*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
