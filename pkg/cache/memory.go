package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultEvictFraction is the share of entries removed (by LRU order)
	// when the tier-1 memory budget is exceeded.
	DefaultEvictFraction = 0.25

	// sweepBatchSize bounds how many keys a sweep examines per lock
	// acquisition, so reads are never stalled behind a full scan.
	sweepBatchSize = 256
)

// memoryStore is the bounded in-process tier-1 store. All mutation happens
// under a single mutex; lock hold times are kept short (no I/O, batched
// sweeps).
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
	memory  int64 // estimated aggregate entry size

	evictFraction float64
	now           func() time.Time
}

func newMemoryStore(evictFraction float64, now func() time.Time) *memoryStore {
	if evictFraction <= 0 || evictFraction >= 1 {
		evictFraction = DefaultEvictFraction
	}
	if now == nil {
		now = time.Now
	}
	return &memoryStore{
		entries:       make(map[string]*Entry),
		evictFraction: evictFraction,
		now:           now,
	}
}

// get returns the payload for a key, expiring lazily. A TTL-expired entry is
// removed and reported as absent.
func (m *memoryStore) get(key string) ([]byte, bool) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if entry.IsExpired(now) {
		m.removeLocked(key, entry)
		return nil, false
	}

	entry.touch(now)
	return entry.Payload, true
}

// set inserts or replaces an entry. If the estimated aggregate memory would
// exceed budget, the least-recently-accessed fraction of entries is evicted
// first. Returns the number of evicted entries.
func (m *memoryStore) set(key string, payload []byte, ttl time.Duration, origin Tier, budget int64) int {
	if ttl <= 0 {
		return 0
	}
	entry := newEntry(key, payload, ttl, origin, m.now())

	m.mu.Lock()
	defer m.mu.Unlock()

	// Remove the old entry before the budget check so it is neither counted
	// against the budget nor an eviction candidate for its own replacement.
	if old, ok := m.entries[key]; ok {
		m.removeLocked(key, old)
	}

	evicted := 0
	if budget > 0 && m.memory+entry.Size > budget {
		evicted = m.evictLRULocked()
	}

	m.entries[key] = entry
	m.memory += entry.Size
	cacheMemoryBytes.Set(float64(m.memory))
	return evicted
}

// delete removes a key. Idempotent.
func (m *memoryStore) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[key]; ok {
		m.removeLocked(key, entry)
	}
}

// deletePattern removes every key containing the given substring and returns
// the number removed.
func (m *memoryStore) deletePattern(pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, entry := range m.entries {
		if strings.Contains(key, pattern) {
			m.removeLocked(key, entry)
			removed++
		}
	}
	return removed
}

// sweep removes all TTL-expired entries and returns the number removed.
// The key set is snapshotted first and then processed in bounded batches,
// so the lock is never held for a full scan. Idempotent.
func (m *memoryStore) sweep() int {
	m.mu.Lock()
	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	m.mu.Unlock()

	removed := 0
	for start := 0; start < len(keys); start += sweepBatchSize {
		end := start + sweepBatchSize
		if end > len(keys) {
			end = len(keys)
		}

		now := m.now()
		m.mu.Lock()
		for _, key := range keys[start:end] {
			if entry, ok := m.entries[key]; ok && entry.IsExpired(now) {
				m.removeLocked(key, entry)
				removed++
			}
		}
		m.mu.Unlock()
	}
	return removed
}

// counts returns total entries, still-valid entries, and estimated memory.
func (m *memoryStore) counts() (entries, valid int, memory int64) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	entries = len(m.entries)
	for _, entry := range m.entries {
		if !entry.IsExpired(now) {
			valid++
		}
	}
	return entries, valid, m.memory
}

// evictLRULocked removes the least-recently-accessed fraction of entries.
// Caller must hold the lock.
func (m *memoryStore) evictLRULocked() int {
	if len(m.entries) == 0 {
		return 0
	}

	type victim struct {
		key        string
		lastAccess time.Time
	}
	candidates := make([]victim, 0, len(m.entries))
	for key, entry := range m.entries {
		candidates = append(candidates, victim{key: key, lastAccess: entry.LastAccess})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccess.Before(candidates[j].lastAccess)
	})

	count := int(float64(len(candidates))*m.evictFraction + 0.5)
	if count < 1 {
		count = 1
	}
	for _, v := range candidates[:count] {
		m.removeLocked(v.key, m.entries[v.key])
	}
	return count
}

// removeLocked deletes an entry and updates memory accounting. Caller must
// hold the lock.
func (m *memoryStore) removeLocked(key string, entry *Entry) {
	delete(m.entries, key)
	m.memory -= entry.Size
	cacheMemoryBytes.Set(float64(m.memory))
}
