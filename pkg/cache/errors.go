package cache

import (
	"errors"
	"fmt"
)

// Common errors returned by tier adapters. These never escape the Gateway's
// public surface; they feed the statistics collector and logs.
var (
	// ErrCacheMiss indicates the requested key was not found in a tier.
	ErrCacheMiss = errors.New("cache miss")

	// ErrNotConnected indicates the distributed cache adapter refused the
	// operation because its connection state is not Connected.
	ErrNotConnected = errors.New("backend not connected")

	// ErrNoWritableTier is returned by Set when no enabled tier accepted
	// the write.
	ErrNoWritableTier = errors.New("no writable tier accepted the value")
)

// FailureKind classifies internal tier failures for statistics and logging.
type FailureKind string

const (
	// FailureBackendUnavailable covers distributed cache network failures
	// and timeouts.
	FailureBackendUnavailable FailureKind = "backend_unavailable"

	// FailureSerialization covers payloads that could not be sized or stored.
	FailureSerialization FailureKind = "serialization"

	// FailureConfigurationMissing covers lookups for unregistered resource
	// classes. Recovered by substituting the default policy.
	FailureConfigurationMissing FailureKind = "configuration_missing"

	// FailureCapacityExceeded covers tier-1 memory pressure. Eviction
	// handles it; this kind only exists so the event is observable.
	FailureCapacityExceeded FailureKind = "capacity_exceeded"
)

// TierError carries a categorized tier failure. It is the typed result the
// statistics collector consumes, replacing silent log-and-continue handling.
type TierError struct {
	Tier Tier
	Kind FailureKind
	Err  error
}

// Error implements the error interface.
func (e *TierError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failure: %v", e.Tier, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s failure", e.Tier, e.Kind)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TierError) Unwrap() error {
	return e.Err
}

// newTierError wraps err as a categorized tier failure.
func newTierError(tier Tier, kind FailureKind, err error) *TierError {
	return &TierError{Tier: tier, Kind: kind, Err: err}
}
