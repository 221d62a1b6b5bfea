package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fwojciec/trawl"
)

// Compile-time interface verification.
var _ trawl.RateLimiter = (*RateLimiter)(nil)

// bucketKey prefixes the per-domain token bucket hashes.
const bucketKey = "rate_limit:token_bucket:"

// tokenBucketScript refills the bucket from elapsed time and consumes the
// requested tokens in one atomic step. Returns {ok, wait_ms, tokens}.
//
// KEYS[1] bucket hash
// ARGV[1] capacity, ARGV[2] refill rate per second, ARGV[3] requested
// tokens, ARGV[4] now in milliseconds, ARGV[5] consume flag
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local requested = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local consume = tonumber(ARGV[5])

local bucket = redis.call('HMGET', KEYS[1], 'tokens', 'updated')
local tokens = tonumber(bucket[1])
local updated = tonumber(bucket[2])
if tokens == nil then
  tokens = capacity
  updated = now
end

local elapsed = math.max(0, now - updated) / 1000.0
tokens = math.min(capacity, tokens + elapsed * rate)

local ok = 0
local wait_ms = 0
if tokens >= requested then
  ok = 1
  if consume == 1 then
    tokens = tokens - requested
  end
else
  wait_ms = math.ceil((requested - tokens) / rate * 1000)
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'updated', now)
redis.call('PEXPIRE', KEYS[1], 3600000)

return {ok, wait_ms, tostring(tokens)}
`)

// RateLimiter implements trawl.RateLimiter as per-domain token buckets.
type RateLimiter struct {
	client *Client
	cap    float64
	rate   float64
	now    func() time.Time
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) {
		r.now = now
	}
}

// NewRateLimiter creates a RateLimiter with the given bucket capacity and
// per-second refill rate.
func NewRateLimiter(client *Client, capacity, refillRate float64, opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		client: client,
		cap:    capacity,
		rate:   refillRate,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TryAcquire consumes n tokens from the domain's bucket, refilling first
// based on elapsed time.
func (r *RateLimiter) TryAcquire(ctx context.Context, domain string, n int) (trawl.AcquireResult, error) {
	return r.run(ctx, domain, n, true)
}

// Status reports the bucket without consuming.
func (r *RateLimiter) Status(ctx context.Context, domain string) (trawl.AcquireResult, error) {
	return r.run(ctx, domain, 1, false)
}

// Reset refills the domain's bucket to capacity.
func (r *RateLimiter) Reset(ctx context.Context, domain string) error {
	return r.client.rdb.Del(ctx, bucketKey+domain).Err()
}

func (r *RateLimiter) run(ctx context.Context, domain string, n int, consume bool) (trawl.AcquireResult, error) {
	consumeFlag := 0
	if consume {
		consumeFlag = 1
	}

	raw, err := tokenBucketScript.Run(ctx, r.client.rdb,
		[]string{bucketKey + domain},
		r.cap, r.rate, n, r.now().UnixMilli(), consumeFlag).Result()
	if err != nil {
		return trawl.AcquireResult{}, err
	}

	reply, ok := raw.([]any)
	if !ok || len(reply) != 3 {
		return trawl.AcquireResult{}, trawl.Errorf(trawl.EINTERNAL, "unexpected token bucket reply")
	}

	okFlag, _ := reply[0].(int64)
	waitMs, _ := reply[1].(int64)
	tokens := 0.0
	if s, ok := reply[2].(string); ok {
		tokens, _ = strconv.ParseFloat(s, 64)
	}

	return trawl.AcquireResult{
		OK:     okFlag == 1,
		Wait:   time.Duration(waitMs) * time.Millisecond,
		Tokens: tokens,
	}, nil
}
