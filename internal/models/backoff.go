package models

import "time"

// BackoffKind selects the retry delay rule.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
)

// Default retry policy applied when an enqueue carries no backoff options.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 2 * time.Second
	DefaultBackoffCap  = 5 * time.Minute
)

// BackoffPolicy computes the delay before a failed job's next retry.
// Fixed yields Base on every retry; Exponential yields Base * 2^(n-1)
// capped at Cap.
type BackoffPolicy struct {
	Kind BackoffKind   `json:"kind"`
	Base time.Duration `json:"base"`
	Cap  time.Duration `json:"cap,omitempty"`
}

// DefaultBackoff is exponential with a 2s base, matching the dispatcher
// defaults for jobs enqueued without explicit options.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{Kind: BackoffExponential, Base: DefaultBackoffBase, Cap: DefaultBackoffCap}
}

// NextDelay returns the delay before retry number attempt (1-based).
// A pure function: the scheduler and its tests use it without a store.
func (p BackoffPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}

	var d time.Duration
	switch p.Kind {
	case BackoffFixed:
		d = base
	default:
		// Shift with overflow guard; 62 doublings already exceeds any cap.
		if attempt > 62 {
			attempt = 62
		}
		d = base << uint(attempt-1)
		if d < base {
			d = p.Cap
		}
	}

	if p.Cap > 0 && d > p.Cap {
		d = p.Cap
	}
	return d
}
