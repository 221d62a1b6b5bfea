package mock

import (
	"context"
	"time"

	"github.com/fwojciec/trawl"
)

var _ trawl.KV = (*KV)(nil)

// KV is a mock implementation of trawl.KV.
type KV struct {
	GetFn         func(ctx context.Context, key string) (string, error)
	SetFn         func(ctx context.Context, key, value string, ttl time.Duration) error
	SetNXFn       func(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	DelFn         func(ctx context.Context, key string) error
	IncrByFloatFn func(ctx context.Context, key string, delta float64) (float64, error)
}

func (kv *KV) Get(ctx context.Context, key string) (string, error) {
	return kv.GetFn(ctx, key)
}

func (kv *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return kv.SetFn(ctx, key, value, ttl)
}

func (kv *KV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return kv.SetNXFn(ctx, key, value, ttl)
}

func (kv *KV) Del(ctx context.Context, key string) error {
	return kv.DelFn(ctx, key)
}

func (kv *KV) IncrByFloat(ctx context.Context, key string, delta float64) (float64, error) {
	return kv.IncrByFloatFn(ctx, key, delta)
}

var _ trawl.Lease = (*Lease)(nil)

// Lease is a mock implementation of trawl.Lease.
type Lease struct {
	ExtendFn  func(ctx context.Context, ttl time.Duration) error
	ReleaseFn func(ctx context.Context) error
}

func (l *Lease) Extend(ctx context.Context, ttl time.Duration) error {
	return l.ExtendFn(ctx, ttl)
}

func (l *Lease) Release(ctx context.Context) error {
	return l.ReleaseFn(ctx)
}

var _ trawl.Locker = (*Locker)(nil)

// Locker is a mock implementation of trawl.Locker.
type Locker struct {
	AcquireFn func(ctx context.Context, name string, ttl time.Duration) (trawl.Lease, error)
}

func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (trawl.Lease, error) {
	return l.AcquireFn(ctx, name, ttl)
}

var _ trawl.RateLimiter = (*RateLimiter)(nil)

// RateLimiter is a mock implementation of trawl.RateLimiter.
type RateLimiter struct {
	TryAcquireFn func(ctx context.Context, domain string, n int) (trawl.AcquireResult, error)
	StatusFn     func(ctx context.Context, domain string) (trawl.AcquireResult, error)
	ResetFn      func(ctx context.Context, domain string) error
}

func (r *RateLimiter) TryAcquire(ctx context.Context, domain string, n int) (trawl.AcquireResult, error) {
	return r.TryAcquireFn(ctx, domain, n)
}

func (r *RateLimiter) Status(ctx context.Context, domain string) (trawl.AcquireResult, error) {
	return r.StatusFn(ctx, domain)
}

func (r *RateLimiter) Reset(ctx context.Context, domain string) error {
	return r.ResetFn(ctx, domain)
}

var _ trawl.CircuitBreaker = (*CircuitBreaker)(nil)

// CircuitBreaker is a mock implementation of trawl.CircuitBreaker.
type CircuitBreaker struct {
	AllowFn         func(ctx context.Context, domain string) (bool, error)
	RecordSuccessFn func(ctx context.Context, domain string) error
	RecordFailureFn func(ctx context.Context, domain string) error
	StateFn         func(ctx context.Context, domain string) (trawl.BreakerState, error)
	ResetFn         func(ctx context.Context, domain string) error
}

func (b *CircuitBreaker) Allow(ctx context.Context, domain string) (bool, error) {
	return b.AllowFn(ctx, domain)
}

func (b *CircuitBreaker) RecordSuccess(ctx context.Context, domain string) error {
	return b.RecordSuccessFn(ctx, domain)
}

func (b *CircuitBreaker) RecordFailure(ctx context.Context, domain string) error {
	return b.RecordFailureFn(ctx, domain)
}

func (b *CircuitBreaker) State(ctx context.Context, domain string) (trawl.BreakerState, error) {
	return b.StateFn(ctx, domain)
}

func (b *CircuitBreaker) Reset(ctx context.Context, domain string) error {
	return b.ResetFn(ctx, domain)
}

var _ trawl.Cache = (*Cache)(nil)

// Cache is a mock implementation of trawl.Cache.
type Cache struct {
	GetBytesFn func(ctx context.Context, key string) ([]byte, error)
	SetBytesFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, error) {
	return c.GetBytesFn(ctx, key)
}

func (c *Cache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.SetBytesFn(ctx, key, value, ttl)
}
