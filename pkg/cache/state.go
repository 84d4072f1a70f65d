package cache

import (
	"time"
)

// ConnStatus is the distributed cache adapter's connection status.
type ConnStatus int

const (
	// StatusConnected means operations go to the network normally.
	StatusConnected ConnStatus = iota

	// StatusReconnecting means a previous operation failed and the adapter
	// is backing off before the next attempt.
	StatusReconnecting

	// StatusDisabled means the reconnect attempt budget is exhausted. Only
	// a successful health-check ping leaves this state.
	StatusDisabled
)

// String returns the string representation of the status.
func (s ConnStatus) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// ConnState is the full connection state of the distributed cache adapter.
// Transitions are pure functions so the state machine is testable without a
// network dependency.
type ConnState struct {
	// Status is the current connection status.
	Status ConnStatus

	// Attempt is the current reconnect attempt number (0 when connected).
	Attempt int

	// NextRetryAt is the earliest time a network attempt may be made while
	// reconnecting. Zero when connected or disabled.
	NextRetryAt time.Time
}

// ReconnectConfig tunes the reconnection state machine.
type ReconnectConfig struct {
	// BaseDelay is the backoff before the first retry. It doubles with
	// every failed attempt.
	BaseDelay time.Duration

	// MaxDelay caps the backoff.
	MaxDelay time.Duration

	// MaxAttempts is the number of failed attempts after which the adapter
	// gives up and disables itself.
	MaxAttempts int
}

// DefaultReconnectConfig returns the default reconnection tuning.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 5,
	}
}

// AfterFailure returns the state following a failed network operation.
// Reconnecting states accumulate attempts until MaxAttempts, after which
// the adapter is disabled.
func (s ConnState) AfterFailure(cfg ReconnectConfig, now time.Time) ConnState {
	attempt := s.Attempt + 1
	if attempt >= cfg.MaxAttempts {
		return ConnState{Status: StatusDisabled, Attempt: attempt}
	}
	return ConnState{
		Status:      StatusReconnecting,
		Attempt:     attempt,
		NextRetryAt: now.Add(backoffDelay(cfg, attempt)),
	}
}

// AfterSuccess returns the state following a successful network operation.
func (s ConnState) AfterSuccess() ConnState {
	return ConnState{Status: StatusConnected}
}

// AllowAttempt reports whether a regular operation may reach the network at
// the given time. Disabled always refuses; reconnecting refuses until the
// backoff window has elapsed.
func (s ConnState) AllowAttempt(now time.Time) bool {
	switch s.Status {
	case StatusConnected:
		return true
	case StatusReconnecting:
		return !now.Before(s.NextRetryAt)
	default:
		return false
	}
}

// backoffDelay computes the exponential backoff for a given attempt number
// (attempt >= 1). The base delay doubles per attempt and is capped.
func backoffDelay(cfg ReconnectConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	if delay > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return delay
}
