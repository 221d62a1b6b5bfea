package crawl

import (
	"context"
	"math/rand/v2"
	"time"
)

// DefaultStoreRetryDelays returns the backoff delays for transient store
// failures: 100ms, 400ms, 1.6s, each jittered by up to ±20%.
func DefaultStoreRetryDelays() []time.Duration {
	return []time.Duration{100 * time.Millisecond, 400 * time.Millisecond, 1600 * time.Millisecond}
}

// withRetry runs op with backoff on error. The last error is returned
// after the final attempt.
func withRetry(ctx context.Context, delays []time.Duration, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= len(delays); attempt++ {
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if attempt >= len(delays) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter(delays[attempt])):
		}
	}
	return lastErr
}

// jitter spreads a delay by ±20% so retrying workers do not thunder in
// step.
func jitter(d time.Duration) time.Duration {
	spread := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(d) * spread)
}
