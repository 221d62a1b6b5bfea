package trawl

import (
	"context"
	"time"
)

// KV is the shared key-value store. Implementations must make every
// operation atomic in the store.
type KV interface {
	// Get retrieves a value. Returns ENOTFOUND if the key is absent or
	// expired.
	Get(ctx context.Context, key string) (string, error)

	// Set writes a value. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX writes a value only if the key is absent. Returns false if the
	// key already exists.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Del removes a key.
	Del(ctx context.Context, key string) error

	// IncrByFloat atomically adds delta to a numeric cell, creating it at
	// zero if absent, and returns the new value.
	IncrByFloat(ctx context.Context, key string, delta float64) (float64, error)
}

// Lease is a held distributed lock.
type Lease interface {
	// Extend pushes the lock expiry forward. Long jobs call this
	// periodically as a heartbeat.
	Extend(ctx context.Context, ttl time.Duration) error

	// Release frees the lock if this lease still holds it. The token is
	// compared atomically before deletion.
	Release(ctx context.Context) error
}

// Locker provides mutual exclusion for singleton batch jobs via a
// set-if-absent-with-expiry primitive on the shared store.
type Locker interface {
	// Acquire takes the named lock. Returns ECONFLICT immediately if it is
	// held elsewhere; the caller abandons the attempt and retries on its
	// next trigger.
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// AcquireResult is the outcome of a token-bucket acquisition attempt.
type AcquireResult struct {
	// OK is true when the requested tokens were consumed.
	OK bool

	// Wait is the hint to the next eligible moment when OK is false.
	Wait time.Duration

	// Tokens is the remaining token count after the attempt.
	Tokens float64
}

// RateLimiter is the per-domain token bucket. The refill-and-consume
// arithmetic executes as one atomic step in the shared store.
type RateLimiter interface {
	// TryAcquire consumes n tokens from the domain's bucket, refilling
	// first based on elapsed time.
	TryAcquire(ctx context.Context, domain string, n int) (AcquireResult, error)

	// Status reports the bucket without consuming.
	Status(ctx context.Context, domain string) (AcquireResult, error)

	// Reset refills the domain's bucket to capacity.
	Reset(ctx context.Context, domain string) error
}

// BreakerState is a circuit breaker state.
type BreakerState string

// Circuit breaker states.
const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// CircuitBreaker suspends fetches against a failing domain and probes for
// recovery.
type CircuitBreaker interface {
	// Allow reports whether a fetch against the domain is admitted.
	Allow(ctx context.Context, domain string) (bool, error)

	// RecordSuccess feeds a successful fetch outcome into the breaker.
	RecordSuccess(ctx context.Context, domain string) error

	// RecordFailure feeds a failed fetch outcome into the breaker.
	RecordFailure(ctx context.Context, domain string) error

	// State returns the domain's current breaker state.
	State(ctx context.Context, domain string) (BreakerState, error)

	// Reset returns the domain's breaker to CLOSED.
	Reset(ctx context.Context, domain string) error
}

// Cache is a TTL'd byte cache for query results and robots rulesets.
type Cache interface {
	// GetBytes retrieves a cached blob. Returns ENOTFOUND on miss.
	GetBytes(ctx context.Context, key string) ([]byte, error)

	// SetBytes stores a blob with the given ttl.
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
