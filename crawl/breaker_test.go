package crawl_test

import (
	"context"
	"testing"
	"time"

	"github.com/fwojciec/trawl"
	"github.com/fwojciec/trawl/crawl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T, now *time.Time) *crawl.Breaker {
	t.Helper()
	return crawl.NewBreaker(newMemKV(), newMemLocker(), 3, 2, time.Minute,
		crawl.WithBreakerClock(func() time.Time { return *now }))
}

func TestBreaker(t *testing.T) {
	t.Parallel()

	t.Run("starts closed and admits", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		b := newTestBreaker(t, &now)

		allowed, err := b.Allow(context.Background(), "example.com")
		require.NoError(t, err)
		assert.True(t, allowed)

		state, err := b.State(context.Background(), "example.com")
		require.NoError(t, err)
		assert.Equal(t, trawl.BreakerClosed, state)
	})

	t.Run("trips open after consecutive failures", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		b := newTestBreaker(t, &now)

		for i := 0; i < 3; i++ {
			require.NoError(t, b.RecordFailure(context.Background(), "example.com"))
		}

		state, err := b.State(context.Background(), "example.com")
		require.NoError(t, err)
		assert.Equal(t, trawl.BreakerOpen, state)

		allowed, err := b.Allow(context.Background(), "example.com")
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("a success resets the failure streak", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		b := newTestBreaker(t, &now)

		require.NoError(t, b.RecordFailure(context.Background(), "example.com"))
		require.NoError(t, b.RecordFailure(context.Background(), "example.com"))
		require.NoError(t, b.RecordSuccess(context.Background(), "example.com"))
		require.NoError(t, b.RecordFailure(context.Background(), "example.com"))
		require.NoError(t, b.RecordFailure(context.Background(), "example.com"))

		state, err := b.State(context.Background(), "example.com")
		require.NoError(t, err)
		assert.Equal(t, trawl.BreakerClosed, state)
	})

	t.Run("cooldown admits a half-open probe", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		b := newTestBreaker(t, &now)

		for i := 0; i < 3; i++ {
			require.NoError(t, b.RecordFailure(context.Background(), "example.com"))
		}
		now = now.Add(61 * time.Second)

		allowed, err := b.Allow(context.Background(), "example.com")
		require.NoError(t, err)
		assert.True(t, allowed)

		state, err := b.State(context.Background(), "example.com")
		require.NoError(t, err)
		assert.Equal(t, trawl.BreakerHalfOpen, state)
	})

	t.Run("probe successes close the breaker", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		b := newTestBreaker(t, &now)

		for i := 0; i < 3; i++ {
			require.NoError(t, b.RecordFailure(context.Background(), "example.com"))
		}
		now = now.Add(61 * time.Second)

		_, err := b.Allow(context.Background(), "example.com")
		require.NoError(t, err)
		require.NoError(t, b.RecordSuccess(context.Background(), "example.com"))
		require.NoError(t, b.RecordSuccess(context.Background(), "example.com"))

		state, err := b.State(context.Background(), "example.com")
		require.NoError(t, err)
		assert.Equal(t, trawl.BreakerClosed, state)
	})

	t.Run("a failed probe reopens immediately", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		b := newTestBreaker(t, &now)

		for i := 0; i < 3; i++ {
			require.NoError(t, b.RecordFailure(context.Background(), "example.com"))
		}
		now = now.Add(61 * time.Second)

		_, err := b.Allow(context.Background(), "example.com")
		require.NoError(t, err)
		require.NoError(t, b.RecordFailure(context.Background(), "example.com"))

		state, err := b.State(context.Background(), "example.com")
		require.NoError(t, err)
		assert.Equal(t, trawl.BreakerOpen, state)

		// The fresh OPEN period restarts the cooldown.
		allowed, err := b.Allow(context.Background(), "example.com")
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("reset returns the breaker to closed", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		b := newTestBreaker(t, &now)

		for i := 0; i < 3; i++ {
			require.NoError(t, b.RecordFailure(context.Background(), "example.com"))
		}
		require.NoError(t, b.Reset(context.Background(), "example.com"))

		state, err := b.State(context.Background(), "example.com")
		require.NoError(t, err)
		assert.Equal(t, trawl.BreakerClosed, state)
	})

	t.Run("domains are independent", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		b := newTestBreaker(t, &now)

		for i := 0; i < 3; i++ {
			require.NoError(t, b.RecordFailure(context.Background(), "bad.test"))
		}

		allowed, err := b.Allow(context.Background(), "good.test")
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}
