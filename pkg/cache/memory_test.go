package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/income-clarity/hubcache/internal/testutil"
)

func testClock() *testutil.Clock {
	return testutil.NewClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
}

func TestMemoryStore_SetAndGet(t *testing.T) {
	clock := testClock()
	store := newMemoryStore(DefaultEvictFraction, clock.Now)

	store.set("k1", []byte("v1"), time.Minute, TierFresh, 0)

	payload, ok := store.get("k1")
	if !ok {
		t.Fatal("get(k1) = miss, want hit")
	}
	if string(payload) != "v1" {
		t.Errorf("payload = %q, want %q", payload, "v1")
	}

	if _, ok := store.get("absent"); ok {
		t.Error("get(absent) = hit, want miss")
	}
}

func TestMemoryStore_LazyExpiry(t *testing.T) {
	clock := testClock()
	store := newMemoryStore(DefaultEvictFraction, clock.Now)

	store.set("k1", []byte("v1"), time.Minute, TierFresh, 0)

	clock.Advance(90 * time.Second)
	if _, ok := store.get("k1"); ok {
		t.Fatal("get after TTL = hit, want miss")
	}

	// Lazy expiry removes the entry entirely.
	entries, _, _ := store.counts()
	if entries != 0 {
		t.Errorf("entries after lazy expiry = %d, want 0", entries)
	}
}

func TestMemoryStore_ZeroTTLNotStored(t *testing.T) {
	store := newMemoryStore(DefaultEvictFraction, testClock().Now)
	store.set("k1", []byte("v1"), 0, TierFresh, 0)
	if _, ok := store.get("k1"); ok {
		t.Error("zero-TTL entry was stored")
	}
}

func TestMemoryStore_SweepIdempotent(t *testing.T) {
	clock := testClock()
	store := newMemoryStore(DefaultEvictFraction, clock.Now)

	store.set("short", []byte("v"), 30*time.Second, TierFresh, 0)
	store.set("long", []byte("v"), time.Hour, TierFresh, 0)

	clock.Advance(time.Minute)

	if removed := store.sweep(); removed != 1 {
		t.Errorf("first sweep removed %d, want 1", removed)
	}
	// Sweeping twice has no additional effect.
	if removed := store.sweep(); removed != 0 {
		t.Errorf("second sweep removed %d, want 0", removed)
	}

	if _, ok := store.get("long"); !ok {
		t.Error("sweep removed a still-valid entry")
	}
}

func TestMemoryStore_SweepManyEntries(t *testing.T) {
	// More entries than one sweep batch, all expired.
	clock := testClock()
	store := newMemoryStore(DefaultEvictFraction, clock.Now)

	total := sweepBatchSize*2 + 17
	for i := 0; i < total; i++ {
		store.set(fmt.Sprintf("k%d", i), []byte("v"), time.Minute, TierFresh, 0)
	}
	clock.Advance(2 * time.Minute)

	if removed := store.sweep(); removed != total {
		t.Errorf("sweep removed %d, want %d", removed, total)
	}
	entries, _, memory := store.counts()
	if entries != 0 || memory != 0 {
		t.Errorf("after sweep: entries=%d memory=%d, want 0/0", entries, memory)
	}
}

func TestMemoryStore_LRUEviction(t *testing.T) {
	clock := testClock()
	store := newMemoryStore(0.25, clock.Now)

	// 20 entries of ~1KB each; budget fits roughly 16.
	payload := make([]byte, 1024)
	budget := int64(16 * (1024 + 16 + entryOverhead))

	for i := 0; i < 16; i++ {
		store.set(fmt.Sprintf("key-%02d", i), payload, time.Hour, TierFresh, budget)
		clock.Advance(time.Second)
	}

	// Touch the oldest entry so it becomes the most recently used.
	if _, ok := store.get("key-00"); !ok {
		t.Fatal("key-00 missing before eviction")
	}
	clock.Advance(time.Second)

	// This insert exceeds the budget and must evict the LRU quarter.
	store.set("key-16", payload, time.Hour, TierFresh, budget)

	// key-00 was accessed immediately before the trigger and must survive.
	if _, ok := store.get("key-00"); !ok {
		t.Error("recently-accessed entry was evicted")
	}
	// key-01 is the oldest unaccessed entry and must be gone.
	if _, ok := store.get("key-01"); ok {
		t.Error("least-recently-accessed entry survived eviction")
	}

	entries, _, _ := store.counts()
	// 16 entries, 25% evicted (4), plus the new insert.
	if want := 16 - 4 + 1; entries != want {
		t.Errorf("entries after eviction = %d, want %d", entries, want)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := newMemoryStore(DefaultEvictFraction, testClock().Now)
	store.set("k1", []byte("v1"), time.Minute, TierFresh, 0)

	store.delete("k1")
	if _, ok := store.get("k1"); ok {
		t.Error("get after delete = hit, want miss")
	}

	// Idempotent.
	store.delete("k1")
}

func TestMemoryStore_DeletePattern(t *testing.T) {
	store := newMemoryStore(DefaultEvictFraction, testClock().Now)
	store.set("hub:performance:user-42:1Y:all", []byte("a"), time.Minute, TierFresh, 0)
	store.set("hub:performance:user-42:3M:all", []byte("b"), time.Minute, TierFresh, 0)
	store.set("hub:performance:user-99:1Y:all", []byte("c"), time.Minute, TierFresh, 0)

	if removed := store.deletePattern("user-42"); removed != 2 {
		t.Errorf("deletePattern removed %d, want 2", removed)
	}
	if _, ok := store.get("hub:performance:user-99:1Y:all"); !ok {
		t.Error("unrelated key was removed")
	}
}

func TestMemoryStore_Counts(t *testing.T) {
	clock := testClock()
	store := newMemoryStore(DefaultEvictFraction, clock.Now)

	store.set("valid", []byte("v"), time.Hour, TierFresh, 0)
	store.set("stale", []byte("v"), time.Second, TierFresh, 0)
	clock.Advance(time.Minute)

	entries, valid, memory := store.counts()
	if entries != 2 {
		t.Errorf("entries = %d, want 2", entries)
	}
	if valid != 1 {
		t.Errorf("valid = %d, want 1", valid)
	}
	if memory <= 0 {
		t.Errorf("memory = %d, want > 0", memory)
	}
}

func TestMemoryStore_MemoryAccounting(t *testing.T) {
	store := newMemoryStore(DefaultEvictFraction, testClock().Now)

	store.set("k1", make([]byte, 100), time.Minute, TierFresh, 0)
	_, _, before := store.counts()

	// Replacing an entry must not double-count its size.
	store.set("k1", make([]byte, 100), time.Minute, TierFresh, 0)
	_, _, after := store.counts()
	if before != after {
		t.Errorf("memory after replace = %d, want %d", after, before)
	}

	store.delete("k1")
	_, _, empty := store.counts()
	if empty != 0 {
		t.Errorf("memory after delete = %d, want 0", empty)
	}
}

func TestMemoryStore_ReplaceWithEvictionAccounting(t *testing.T) {
	clock := testClock()
	store := newMemoryStore(0.25, clock.Now)

	payload := make([]byte, 1024)
	budget := int64(8 * (1024 + 6 + entryOverhead))

	for i := 0; i < 8; i++ {
		store.set(fmt.Sprintf("key-%02d", i), payload, time.Hour, TierFresh, budget)
		clock.Advance(time.Second)
	}

	// key-00 is the LRU entry. Replacing it with a budget-busting payload
	// triggers eviction during its own replacement; the replaced key must
	// not be an eviction candidate, and its old size must be subtracted
	// exactly once.
	evicted := store.set("key-00", make([]byte, 4096), time.Hour, TierFresh, budget)
	if evicted == 0 {
		t.Fatal("expected eviction during replacement")
	}
	if _, ok := store.get("key-00"); !ok {
		t.Error("replaced entry missing after its own insert")
	}

	// The memory counter must equal the sum of live entry sizes.
	store.mu.Lock()
	var actual int64
	for _, entry := range store.entries {
		actual += entry.Size
	}
	counter := store.memory
	store.mu.Unlock()

	if counter != actual {
		t.Errorf("memory counter = %d, want %d (sum of live entries)", counter, actual)
	}
}
