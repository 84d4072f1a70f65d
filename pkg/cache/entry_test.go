package cache

import (
	"testing"
	"time"
)

func TestEntry_IsExpired(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		age  time.Duration
		ttl  time.Duration
		want bool
	}{
		{
			name: "fresh entry",
			age:  10 * time.Second,
			ttl:  60 * time.Second,
			want: false,
		},
		{
			name: "expired entry",
			age:  90 * time.Second,
			ttl:  60 * time.Second,
			want: true,
		},
		{
			name: "exactly at ttl is still valid",
			age:  60 * time.Second,
			ttl:  60 * time.Second,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := newEntry("k", []byte("v"), tt.ttl, TierFresh, base)
			if got := entry.IsExpired(base.Add(tt.age)); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_Remaining(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entry := newEntry("k", []byte("v"), 60*time.Second, TierFresh, base)

	if got := entry.Remaining(base.Add(20 * time.Second)); got != 40*time.Second {
		t.Errorf("Remaining() = %v, want %v", got, 40*time.Second)
	}
	if got := entry.Remaining(base.Add(2 * time.Minute)); got != 0 {
		t.Errorf("Remaining() after expiry = %v, want 0", got)
	}
}

func TestEntry_SizeEstimate(t *testing.T) {
	base := time.Now()
	entry := newEntry("hub:c:p:1Y:all", make([]byte, 1024), time.Minute, TierFresh, base)

	want := int64(1024+len("hub:c:p:1Y:all")) + entryOverhead
	if entry.Size != want {
		t.Errorf("Size = %d, want %d", entry.Size, want)
	}
}

func TestEntry_Touch(t *testing.T) {
	base := time.Now()
	entry := newEntry("k", []byte("v"), time.Minute, TierFresh, base)

	later := base.Add(5 * time.Second)
	entry.touch(later)
	entry.touch(later.Add(time.Second))

	if entry.AccessCount != 2 {
		t.Errorf("AccessCount = %d, want 2", entry.AccessCount)
	}
	if !entry.LastAccess.Equal(later.Add(time.Second)) {
		t.Errorf("LastAccess = %v, want %v", entry.LastAccess, later.Add(time.Second))
	}
}
