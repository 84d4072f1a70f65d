// Package policy defines per-resource-class cache tier policies and the
// registry used to look them up. Policies are established at process start
// and are immutable afterwards.
package policy

import (
	"sort"
	"time"
)

// Well-known resource classes served by the cache.
const (
	// ClassPortfolioPerformance covers frequently-changing portfolio
	// performance snapshots (live market data).
	ClassPortfolioPerformance = "portfolio-performance"

	// ClassHoldingsSnapshot covers current holdings views.
	ClassHoldingsSnapshot = "holdings-snapshot"

	// ClassDividendSchedule covers slow-changing dividend calendars.
	ClassDividendSchedule = "dividend-schedule"

	// ClassTaxProjection covers on-demand tax projections. These requests
	// rarely repeat, so the system-of-record tier is disabled for them:
	// a relational read is cheap relative to cache overhead.
	ClassTaxProjection = "tax-projection"
)

// TierPolicy holds per-tier TTLs and resource limits for one resource class.
type TierPolicy struct {
	// Tier1TTL is the in-process store TTL (short, sub-minute to low minutes).
	Tier1TTL time.Duration

	// Tier2TTL is the distributed cache TTL (minutes to hours).
	Tier2TTL time.Duration

	// Tier3TTL is the advisory freshness window for values re-derived from
	// the system of record (hours). The cache never writes tier 3; this
	// value documents how stale a derived view may be.
	Tier3TTL time.Duration

	// Per-tier enable flags.
	Tier1Enabled bool
	Tier2Enabled bool
	Tier3Enabled bool

	// Tier1MemoryBudget is the in-process memory budget in bytes for
	// entries of this class. Exceeding it triggers LRU eviction.
	Tier1MemoryBudget int64

	// Compressible hints that payloads of this class compress well and
	// may be compressed by the distributed cache backend.
	Compressible bool
}

// Default returns the fallback policy used for unknown resource classes.
func Default() TierPolicy {
	return TierPolicy{
		Tier1TTL:          60 * time.Second,
		Tier2TTL:          5 * time.Minute,
		Tier3TTL:          15 * time.Minute,
		Tier1Enabled:      true,
		Tier2Enabled:      true,
		Tier3Enabled:      true,
		Tier1MemoryBudget: 16 << 20, // 16 MB
		Compressible:      false,
	}
}

// Registry maps resource classes to tier policies. Immutable after New.
type Registry struct {
	policies map[string]TierPolicy
	fallback TierPolicy
}

// NewRegistry creates a registry from the given policies. Lookups for
// classes not in the map return the fallback policy.
func NewRegistry(policies map[string]TierPolicy, fallback TierPolicy) *Registry {
	// Copy so the caller cannot mutate the registry afterwards.
	copied := make(map[string]TierPolicy, len(policies))
	for class, pol := range policies {
		copied[class] = pol
	}
	return &Registry{
		policies: copied,
		fallback: fallback,
	}
}

// NewDefaultRegistry returns a registry with the built-in policies for the
// portfolio/income resource classes.
func NewDefaultRegistry() *Registry {
	return NewRegistry(map[string]TierPolicy{
		ClassPortfolioPerformance: {
			Tier1TTL:          60 * time.Second,
			Tier2TTL:          5 * time.Minute,
			Tier3TTL:          15 * time.Minute,
			Tier1Enabled:      true,
			Tier2Enabled:      true,
			Tier3Enabled:      true,
			Tier1MemoryBudget: 32 << 20,
			Compressible:      true,
		},
		ClassHoldingsSnapshot: {
			Tier1TTL:          30 * time.Second,
			Tier2TTL:          2 * time.Minute,
			Tier3TTL:          10 * time.Minute,
			Tier1Enabled:      true,
			Tier2Enabled:      true,
			Tier3Enabled:      true,
			Tier1MemoryBudget: 32 << 20,
			Compressible:      true,
		},
		ClassDividendSchedule: {
			Tier1TTL:          10 * time.Minute,
			Tier2TTL:          1 * time.Hour,
			Tier3TTL:          6 * time.Hour,
			Tier1Enabled:      true,
			Tier2Enabled:      true,
			Tier3Enabled:      true,
			Tier1MemoryBudget: 16 << 20,
			Compressible:      false,
		},
		ClassTaxProjection: {
			Tier1TTL:          5 * time.Minute,
			Tier2TTL:          30 * time.Minute,
			Tier3TTL:          2 * time.Hour,
			Tier1Enabled:      true,
			Tier2Enabled:      true,
			Tier3Enabled:      false,
			Tier1MemoryBudget: 8 << 20,
			Compressible:      false,
		},
	}, Default())
}

// Lookup returns the policy for a resource class. The second return value
// reports whether the class was registered; if false, the fallback policy
// is returned and the caller may continue with it.
func (r *Registry) Lookup(class string) (TierPolicy, bool) {
	if pol, ok := r.policies[class]; ok {
		return pol, true
	}
	return r.fallback, false
}

// Fallback returns the default policy used for unregistered classes.
func (r *Registry) Fallback() TierPolicy {
	return r.fallback
}

// Classes returns the registered resource classes in sorted order.
func (r *Registry) Classes() []string {
	classes := make([]string, 0, len(r.policies))
	for class := range r.policies {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}
