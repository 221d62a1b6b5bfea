package crawl

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/fwojciec/trawl"
)

// Denial reasons reported by the Governor.
const (
	DenyBlocked    = "blocked"
	DenyCircuit    = "circuit_open"
	DenyRateLimit  = "rate_limited"
	DenyCrawlDelay = "crawl_delay"
	DenySaturated  = "saturated"
)

// fetchWindowPrefix namespaces the per-domain crawl-delay windows in the
// shared store. While a window key lives, the domain's Crawl-delay has
// not yet elapsed since the last admitted fetch.
const fetchWindowPrefix = "fetch_window:"

// Decision is the outcome of a politeness check.
type Decision struct {
	Allowed bool

	// Wait hints when the domain becomes eligible again. Zero when
	// unknown.
	Wait time.Duration

	// Reason names the denying gate when Allowed is false.
	Reason string
}

// Governor gates fetches per domain: the administrative blocked flag, the
// shared circuit breaker, the robots.txt crawl-delay window, the shared
// token bucket, and the per-domain in-flight cap, checked in that order.
// The concurrency cap comes from the domain record when set and falls
// back to the configured default.
type Governor struct {
	domains trawl.DomainStore
	breaker trawl.CircuitBreaker
	limiter trawl.RateLimiter
	kv      trawl.KV

	inflight   *Inflight
	defaultCap int
	local      *rate.Limiter
}

// NewGovernor creates a Governor. defaultCap bounds concurrent fetches
// against a domain without a record of its own; localRate spreads
// dispatches over time regardless of domain.
func NewGovernor(domains trawl.DomainStore, breaker trawl.CircuitBreaker, limiter trawl.RateLimiter, kv trawl.KV, defaultCap int, localRate float64) *Governor {
	g := &Governor{
		domains:    domains,
		breaker:    breaker,
		limiter:    limiter,
		kv:         kv,
		inflight:   NewInflight(kv),
		defaultCap: defaultCap,
	}
	if localRate > 0 {
		g.local = rate.NewLimiter(rate.Limit(localRate), int(localRate)+1)
	}
	return g
}

// Admit checks every politeness gate for a fetch against the domain. On
// success the caller owns one of the domain's in-flight slots; the slot
// is freed with Release when the fetch finishes.
func (g *Governor) Admit(ctx context.Context, domain string) (Decision, error) {
	rec, err := g.domains.FindDomain(ctx, domain)
	if err != nil && trawl.ErrorCode(err) != trawl.ENOTFOUND {
		return Decision{}, err
	}
	if rec != nil && rec.Blocked {
		return Decision{Reason: DenyBlocked}, nil
	}

	allowed, err := g.breaker.Allow(ctx, domain)
	if err != nil {
		if trawl.ErrorCode(err) == trawl.ECONFLICT {
			// Breaker busy elsewhere; try again next tick.
			return Decision{Reason: DenyCircuit, Wait: time.Second}, nil
		}
		return Decision{}, err
	}
	if !allowed {
		return Decision{Reason: DenyCircuit}, nil
	}

	// Claim the crawl-delay window before the bucket so a delayed domain
	// never burns tokens it cannot use. A downstream denial hands the
	// window back.
	var delay time.Duration
	if rec != nil && rec.CrawlDelayMs > 0 {
		delay = time.Duration(rec.CrawlDelayMs) * time.Millisecond
		ok, err := g.kv.SetNX(ctx, fetchWindowPrefix+domain, "1", delay)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Decision{Reason: DenyCrawlDelay, Wait: delay}, nil
		}
	}

	res, err := g.limiter.TryAcquire(ctx, domain, 1)
	if err != nil {
		return Decision{}, err
	}
	if !res.OK {
		g.unclaimWindow(ctx, domain, delay)
		return Decision{Reason: DenyRateLimit, Wait: res.Wait}, nil
	}

	maxInflight := g.defaultCap
	if rec != nil && rec.MaxConcurrent > 0 {
		maxInflight = rec.MaxConcurrent
	}
	ok, err := g.inflight.Acquire(ctx, domain, maxInflight)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		g.unclaimWindow(ctx, domain, delay)
		return Decision{Reason: DenySaturated, Wait: time.Second}, nil
	}

	if g.local != nil {
		if err := g.local.Wait(ctx); err != nil {
			_ = g.inflight.Release(ctx, domain)
			return Decision{}, err
		}
	}

	return Decision{Allowed: true}, nil
}

// Release frees the in-flight slot taken by a successful Admit.
func (g *Governor) Release(ctx context.Context, domain string) error {
	return g.inflight.Release(ctx, domain)
}

// unclaimWindow returns a crawl-delay window claimed by an admission that
// a later gate denied. Best effort: a failed delete just delays the
// domain by one window.
func (g *Governor) unclaimWindow(ctx context.Context, domain string, delay time.Duration) {
	if delay <= 0 {
		return
	}
	_ = g.kv.Del(ctx, fetchWindowPrefix+domain)
}
