package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/income-clarity/hubcache/internal/testutil"
)

func TestRedisStore_SetAndGet(t *testing.T) {
	client, _ := testutil.NewMiniRedis(t)
	store := NewRedisStore(client, testReconnectConfig(), DefaultCommandTimeout, zerolog.Nop())
	ctx := context.Background()

	if err := store.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	payload, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(payload) != "v1" {
		t.Errorf("payload = %q, want %q", payload, "v1")
	}
}

func TestRedisStore_GetMiss(t *testing.T) {
	client, _ := testutil.NewMiniRedis(t)
	store := NewRedisStore(client, testReconnectConfig(), DefaultCommandTimeout, zerolog.Nop())

	_, err := store.Get(context.Background(), "absent")
	if err != ErrCacheMiss {
		t.Errorf("Get(absent) error = %v, want ErrCacheMiss", err)
	}
	// A miss is not a failure; the adapter stays connected.
	if !store.Connected() {
		t.Error("adapter disconnected after a plain miss")
	}
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	client, server := testutil.NewMiniRedis(t)
	store := NewRedisStore(client, testReconnectConfig(), DefaultCommandTimeout, zerolog.Nop())
	ctx := context.Background()

	if err := store.Set(ctx, "k1", []byte("v1"), 5*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ttl, err := store.TTL(ctx, "k1")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > 5*time.Minute {
		t.Errorf("TTL = %v, want (0, 5m]", ttl)
	}

	server.FastForward(6 * time.Minute)

	if _, err := store.Get(ctx, "k1"); err != ErrCacheMiss {
		t.Errorf("Get after TTL = %v, want ErrCacheMiss", err)
	}
}

func TestRedisStore_DeleteAndExists(t *testing.T) {
	client, _ := testutil.NewMiniRedis(t)
	store := NewRedisStore(client, testReconnectConfig(), DefaultCommandTimeout, zerolog.Nop())
	ctx := context.Background()

	if err := store.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	exists, err := store.Exists(ctx, "k1")
	if err != nil || !exists {
		t.Fatalf("Exists = (%v, %v), want (true, nil)", exists, err)
	}

	if err := store.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err = store.Exists(ctx, "k1")
	if err != nil || exists {
		t.Errorf("Exists after delete = (%v, %v), want (false, nil)", exists, err)
	}
}

func TestRedisStore_KeysByPattern(t *testing.T) {
	client, _ := testutil.NewMiniRedis(t)
	store := NewRedisStore(client, testReconnectConfig(), DefaultCommandTimeout, zerolog.Nop())
	ctx := context.Background()

	seed := map[string]string{
		"hub:performance:user-42:1Y:all": "a",
		"hub:performance:user-42:3M:all": "b",
		"hub:schedule:user-99:1Y:all":    "c",
	}
	for key, value := range seed {
		if err := store.Set(ctx, key, []byte(value), time.Minute); err != nil {
			t.Fatalf("Set(%s) failed: %v", key, err)
		}
	}

	keys, err := store.KeysByPattern(ctx, "*user-42*")
	if err != nil {
		t.Fatalf("KeysByPattern failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("KeysByPattern returned %d keys, want 2: %v", len(keys), keys)
	}
}

func TestRedisStore_MGetMSet(t *testing.T) {
	client, _ := testutil.NewMiniRedis(t)
	store := NewRedisStore(client, testReconnectConfig(), DefaultCommandTimeout, zerolog.Nop())
	ctx := context.Background()

	pairs := map[string][]byte{
		"m1": []byte("v1"),
		"m2": []byte("v2"),
	}
	if err := store.MSet(ctx, pairs, time.Minute); err != nil {
		t.Fatalf("MSet failed: %v", err)
	}

	payloads, err := store.MGet(ctx, "m1", "absent", "m2")
	if err != nil {
		t.Fatalf("MGet failed: %v", err)
	}
	if string(payloads[0]) != "v1" || payloads[1] != nil || string(payloads[2]) != "v2" {
		t.Errorf("MGet = %q/%v/%q, want v1/nil/v2", payloads[0], payloads[1], payloads[2])
	}
}

func TestRedisStore_OutageTransitions(t *testing.T) {
	client, server := testutil.NewMiniRedis(t)
	cfg := ReconnectConfig{
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		MaxAttempts: 3,
	}
	store := NewRedisStore(client, cfg, 200*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	server.Close()

	// First failing operation moves the adapter to reconnecting.
	if _, err := store.Get(ctx, "k1"); err == nil {
		t.Fatal("Get against closed backend succeeded")
	}
	if store.State().Status != StatusReconnecting {
		t.Fatalf("Status = %v, want reconnecting", store.State().Status)
	}

	// Keep failing until the attempt budget is exhausted.
	for i := 0; i < cfg.MaxAttempts; i++ {
		time.Sleep(10 * time.Millisecond) // let the backoff window lapse
		_, _ = store.Get(ctx, "k1")
	}
	if store.State().Status != StatusDisabled {
		t.Fatalf("Status = %v, want disabled", store.State().Status)
	}

	// Disabled refuses operations without touching the network.
	if _, err := store.Get(ctx, "k1"); err != ErrNotConnected {
		t.Errorf("Get while disabled = %v, want ErrNotConnected", err)
	}
	if err := store.Set(ctx, "k1", []byte("v"), time.Minute); err != ErrNotConnected {
		t.Errorf("Set while disabled = %v, want ErrNotConnected", err)
	}

	// Only a successful ping re-enables the adapter.
	if err := server.Restart(); err != nil {
		t.Fatalf("miniredis restart failed: %v", err)
	}
	if _, err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping after restart failed: %v", err)
	}
	if !store.Connected() {
		t.Fatal("adapter not connected after successful ping")
	}

	if err := store.Set(ctx, "k2", []byte("v2"), time.Minute); err != nil {
		t.Errorf("Set after recovery failed: %v", err)
	}
}

func TestRedisStore_PingLatency(t *testing.T) {
	client, _ := testutil.NewMiniRedis(t)
	store := NewRedisStore(client, testReconnectConfig(), DefaultCommandTimeout, zerolog.Nop())

	latency, err := store.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if latency < 0 {
		t.Errorf("latency = %v, want >= 0", latency)
	}
}

func TestNewRedisStore_PanicOnNilClient(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil client")
		}
	}()
	NewRedisStore(nil, DefaultReconnectConfig(), 0, zerolog.Nop())
}
