package crawl

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fwojciec/trawl"
)

// Compile-time interface verification.
var _ trawl.CircuitBreaker = (*Breaker)(nil)

// breakerKeyPrefix namespaces per-domain breaker state in the shared
// store.
const breakerKeyPrefix = "circuit:"

// breakerLockTTL bounds the critical section of a state transition.
const breakerLockTTL = 2 * time.Second

// breakerState is the persisted per-domain record.
type breakerState struct {
	State     trawl.BreakerState `json:"state"`
	Failures  int                `json:"failures"`
	Successes int                `json:"successes"`
	OpenedAt  time.Time          `json:"openedAt"`
}

// Breaker implements trawl.CircuitBreaker over the shared store so all
// fetch workers see one breaker per domain. Consecutive failures trip the
// domain OPEN; after the cooldown a probe fetch is admitted HALF_OPEN and
// consecutive probe successes close it again.
type Breaker struct {
	kv     trawl.KV
	locker trawl.Locker

	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time
}

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithBreakerClock overrides the time source. Used by tests.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		b.now = now
	}
}

// NewBreaker creates a Breaker with the given thresholds.
func NewBreaker(kv trawl.KV, locker trawl.Locker, failures, successes int, cooldown time.Duration, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		kv:               kv,
		locker:           locker,
		failureThreshold: failures,
		successThreshold: successes,
		cooldown:         cooldown,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether a fetch against the domain is admitted. An OPEN
// breaker whose cooldown has elapsed transitions to HALF_OPEN and admits
// one probe.
func (b *Breaker) Allow(ctx context.Context, domain string) (bool, error) {
	var allowed bool
	err := b.mutate(ctx, domain, func(s *breakerState) {
		switch s.State {
		case trawl.BreakerOpen:
			if b.now().Sub(s.OpenedAt) >= b.cooldown {
				s.State = trawl.BreakerHalfOpen
				s.Successes = 0
				allowed = true
				return
			}
			allowed = false
		default:
			allowed = true
		}
	})
	return allowed, err
}

// RecordSuccess feeds a successful fetch outcome into the breaker.
func (b *Breaker) RecordSuccess(ctx context.Context, domain string) error {
	return b.mutate(ctx, domain, func(s *breakerState) {
		switch s.State {
		case trawl.BreakerHalfOpen:
			s.Successes++
			if s.Successes >= b.successThreshold {
				*s = breakerState{State: trawl.BreakerClosed}
			}
		default:
			s.Failures = 0
		}
	})
}

// RecordFailure feeds a failed fetch outcome into the breaker.
func (b *Breaker) RecordFailure(ctx context.Context, domain string) error {
	return b.mutate(ctx, domain, func(s *breakerState) {
		switch s.State {
		case trawl.BreakerHalfOpen:
			// A failed probe reopens immediately.
			*s = breakerState{State: trawl.BreakerOpen, OpenedAt: b.now()}
		default:
			s.Failures++
			if s.Failures >= b.failureThreshold {
				*s = breakerState{State: trawl.BreakerOpen, OpenedAt: b.now()}
			}
		}
	})
}

// State returns the domain's current breaker state.
func (b *Breaker) State(ctx context.Context, domain string) (trawl.BreakerState, error) {
	s, err := b.load(ctx, domain)
	if err != nil {
		return "", err
	}
	return s.State, nil
}

// Reset returns the domain's breaker to CLOSED.
func (b *Breaker) Reset(ctx context.Context, domain string) error {
	return b.kv.Del(ctx, breakerKeyPrefix+domain)
}

// mutate applies fn to the domain's state under a short lock. Lock
// contention retries briefly; a persistently held lock surfaces as
// ECONFLICT and the caller decides whether to skip the observation.
func (b *Breaker) mutate(ctx context.Context, domain string, fn func(*breakerState)) error {
	var lease trawl.Lease
	for attempt := 0; ; attempt++ {
		var err error
		lease, err = b.locker.Acquire(ctx, breakerKeyPrefix+domain, breakerLockTTL)
		if err == nil {
			break
		}
		if trawl.ErrorCode(err) != trawl.ECONFLICT || attempt >= 3 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	defer lease.Release(ctx)

	s, err := b.load(ctx, domain)
	if err != nil {
		return err
	}
	fn(s)
	return b.store(ctx, domain, s)
}

func (b *Breaker) load(ctx context.Context, domain string) (*breakerState, error) {
	raw, err := b.kv.Get(ctx, breakerKeyPrefix+domain)
	if trawl.ErrorCode(err) == trawl.ENOTFOUND {
		return &breakerState{State: trawl.BreakerClosed}, nil
	}
	if err != nil {
		return nil, err
	}

	var s breakerState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return &breakerState{State: trawl.BreakerClosed}, nil
	}
	return &s, nil
}

func (b *Breaker) store(ctx context.Context, domain string, s *breakerState) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return b.kv.Set(ctx, breakerKeyPrefix+domain, string(raw), 0)
}
