package cache

import (
	"time"
)

// Tier identifies which storage layer satisfied or produced a value.
type Tier string

const (
	// Tier1 is the bounded in-process store.
	Tier1 Tier = "tier1"

	// Tier2 is the distributed cache backend.
	Tier2 Tier = "tier2"

	// Tier3 is the system of record, reached through a caller-supplied
	// read-through source function.
	Tier3 Tier = "tier3"

	// TierFresh marks an entry written directly by Set rather than
	// backfilled from a slower tier.
	TierFresh Tier = "fresh"
)

// entryOverhead approximates the fixed per-entry cost beyond the payload:
// map bucket, Entry struct, and key string header.
const entryOverhead = 112

// Entry is one cached value held by the in-process tier. The payload is
// opaque, already-serialized data; the cache never inspects it.
type Entry struct {
	// Payload is the serialized response data.
	Payload []byte `json:"payload"`

	// InsertedAt is when the entry was stored in this tier.
	InsertedAt time.Time `json:"inserted_at"`

	// TTL is the tier-specific time-to-live.
	TTL time.Duration `json:"ttl"`

	// Origin records which tier produced the value (fresh for direct writes,
	// tier2/tier3 for backfills).
	Origin Tier `json:"origin"`

	// Size is the estimated memory footprint in bytes, payload plus overhead.
	Size int64 `json:"size"`

	// AccessCount is the number of reads since insertion.
	AccessCount int64 `json:"access_count"`

	// LastAccess is the time of the most recent read (insertion time if
	// never read). Drives LRU eviction ordering.
	LastAccess time.Time `json:"last_access"`
}

// newEntry builds an Entry for the given payload and key.
func newEntry(key string, payload []byte, ttl time.Duration, origin Tier, now time.Time) *Entry {
	return &Entry{
		Payload:    payload,
		InsertedAt: now,
		TTL:        ttl,
		Origin:     origin,
		Size:       int64(len(payload)+len(key)) + entryOverhead,
		LastAccess: now,
	}
}

// IsExpired reports whether the entry has outlived its TTL at the given time.
func (e *Entry) IsExpired(now time.Time) bool {
	return now.Sub(e.InsertedAt) > e.TTL
}

// ExpiresAt returns the instant the entry becomes stale.
func (e *Entry) ExpiresAt() time.Time {
	return e.InsertedAt.Add(e.TTL)
}

// Remaining returns the time until expiry, or 0 if already expired.
func (e *Entry) Remaining(now time.Time) time.Duration {
	remaining := e.ExpiresAt().Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// touch records a read for LRU and access accounting. Callers must hold the
// store lock.
func (e *Entry) touch(now time.Time) {
	e.AccessCount++
	e.LastAccess = now
}
