package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// DefaultCommandTimeout bounds any single tier-2 network call.
	DefaultCommandTimeout = 2 * time.Second

	// DefaultSlowPingThreshold is the ping latency above which a warning
	// is logged.
	DefaultSlowPingThreshold = 250 * time.Millisecond

	// scanBatchSize is the COUNT hint for SCAN-based pattern operations.
	scanBatchSize = 100
)

// RedisStore is the tier-2 adapter over a distributed key-value backend.
// Every operation is guarded by the connection state machine: when the
// adapter is not connected (and the backoff window has not elapsed) the
// operation returns immediately without touching the network.
type RedisStore struct {
	client    *redis.Client
	reconnect ReconnectConfig
	timeout   time.Duration
	slowPing  time.Duration
	logger    zerolog.Logger
	now       func() time.Time

	mu    sync.Mutex
	state ConnState
}

// NewRedisStore creates a tier-2 adapter. The adapter starts in the
// Connected state and discovers backend health through its first operations
// and the periodic ping.
func NewRedisStore(client *redis.Client, reconnect ReconnectConfig, timeout time.Duration, logger zerolog.Logger) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &RedisStore{
		client:    client,
		reconnect: reconnect,
		timeout:   timeout,
		slowPing:  DefaultSlowPingThreshold,
		logger:    logger,
		now:       time.Now,
		state:     ConnState{Status: StatusConnected},
	}
}

// State returns the current connection state.
func (r *RedisStore) State() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Connected reports whether the adapter is in the Connected state.
func (r *RedisStore) Connected() bool {
	return r.State().Status == StatusConnected
}

// Get retrieves the raw payload for a key. Returns ErrCacheMiss when the key
// does not exist and ErrNotConnected when the adapter is offline.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !r.allow() {
		return nil, ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		r.recordSuccess()
		return nil, ErrCacheMiss
	}
	if err != nil {
		r.recordFailure(err)
		return nil, fmt.Errorf("redis get: %w", err)
	}
	r.recordSuccess()
	return data, nil
}

// Set stores a payload with the given TTL.
func (r *RedisStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if !r.allow() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		r.recordFailure(err)
		return fmt.Errorf("redis set: %w", err)
	}
	r.recordSuccess()
	return nil
}

// Delete removes the given keys. Idempotent.
func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if !r.allow() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.recordFailure(err)
		return fmt.Errorf("redis del: %w", err)
	}
	r.recordSuccess()
	return nil
}

// Exists reports whether a key is present.
func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	if !r.allow() {
		return false, ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		r.recordFailure(err)
		return false, fmt.Errorf("redis exists: %w", err)
	}
	r.recordSuccess()
	return n > 0, nil
}

// TTL returns the remaining time-to-live for a key. Returns ErrCacheMiss for
// absent keys.
func (r *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if !r.allow() {
		return 0, ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		r.recordFailure(err)
		return 0, fmt.Errorf("redis ttl: %w", err)
	}
	r.recordSuccess()
	if ttl < 0 {
		// -2 means the key does not exist, -1 means no expiry.
		return 0, ErrCacheMiss
	}
	return ttl, nil
}

// KeysByPattern returns all keys matching the given glob pattern, collected
// via SCAN so the backend is never blocked by a full keyspace walk.
func (r *RedisStore) KeysByPattern(ctx context.Context, pattern string) ([]string, error) {
	if !r.allow() {
		return nil, ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var keys []string
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			r.recordFailure(err)
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			break
		}
		cursor = next
	}
	r.recordSuccess()
	return keys, nil
}

// MGet retrieves payloads for multiple keys in one round trip. Missing keys
// yield nil slots in the result.
func (r *RedisStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if !r.allow() {
		return nil, ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		r.recordFailure(err)
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	r.recordSuccess()

	payloads := make([][]byte, len(values))
	for i, v := range values {
		if s, ok := v.(string); ok {
			payloads[i] = []byte(s)
		}
	}
	return payloads, nil
}

// MSet stores multiple payloads with a shared TTL using a pipeline, so the
// per-key expiry survives (plain MSET cannot carry TTLs).
func (r *RedisStore) MSet(ctx context.Context, pairs map[string][]byte, ttl time.Duration) error {
	if len(pairs) == 0 || ttl <= 0 {
		return nil
	}
	if !r.allow() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pipe := r.client.Pipeline()
	for key, payload := range pairs {
		pipe.Set(ctx, key, payload, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.recordFailure(err)
		return fmt.Errorf("redis pipeline set: %w", err)
	}
	r.recordSuccess()
	return nil
}

// Ping probes the backend and returns the round-trip latency. Unlike regular
// operations, Ping is never guarded: it is the recovery path that can bring
// a Disabled adapter back to Connected.
func (r *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := r.now()
	err := r.client.Ping(ctx).Err()
	latency := r.now().Sub(start)

	if err != nil {
		r.recordFailure(err)
		return latency, fmt.Errorf("redis ping: %w", err)
	}

	r.recordSuccess()
	tier2PingSeconds.Observe(latency.Seconds())
	if latency > r.slowPing {
		r.logger.Warn().
			Dur("latency", latency).
			Dur("threshold", r.slowPing).
			Msg("Distributed cache ping is slow")
	}
	return latency, nil
}

// allow reports whether a regular operation may attempt the network now.
func (r *RedisStore) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.AllowAttempt(r.now())
}

func (r *RedisStore) recordFailure(err error) {
	r.mu.Lock()
	prev := r.state
	r.state = r.state.AfterFailure(r.reconnect, r.now())
	next := r.state
	r.mu.Unlock()

	if next.Status == StatusDisabled && prev.Status != StatusDisabled {
		r.logger.Error().
			Err(err).
			Int("attempts", next.Attempt).
			Msg("Distributed cache disabled after repeated failures")
		return
	}
	r.logger.Warn().
		Err(err).
		Int("attempt", next.Attempt).
		Time("next_retry_at", next.NextRetryAt).
		Msg("Distributed cache operation failed, backing off")
}

func (r *RedisStore) recordSuccess() {
	r.mu.Lock()
	prev := r.state
	r.state = r.state.AfterSuccess()
	r.mu.Unlock()

	if prev.Status != StatusConnected {
		r.logger.Info().
			Str("previous", prev.Status.String()).
			Msg("Distributed cache connection restored")
	}
}
