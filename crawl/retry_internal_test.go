package crawl

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("returns on first success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := withRetry(context.Background(), DefaultStoreRetryDelays(), func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries until success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		delays := []time.Duration{time.Millisecond, time.Millisecond}
		err := withRetry(context.Background(), delays, func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("surfaces the last error after exhaustion", func(t *testing.T) {
		t.Parallel()

		calls := 0
		delays := []time.Duration{time.Millisecond}
		err := withRetry(context.Background(), delays, func() error {
			calls++
			return errors.New("persistent")
		})
		assert.EqualError(t, err, "persistent")
		assert.Equal(t, 2, calls)
	})

	t.Run("honors context cancellation between attempts", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := withRetry(ctx, []time.Duration{time.Second}, func() error {
			calls++
			return errors.New("transient")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestJitter(t *testing.T) {
	t.Parallel()

	base := time.Second
	for i := 0; i < 100; i++ {
		d := jitter(base)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}

func TestMakeSnippet(t *testing.T) {
	t.Parallel()

	t.Run("short content passes through", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "hello world", makeSnippet("  hello world  "))
	})

	t.Run("long content cuts at a word boundary", func(t *testing.T) {
		t.Parallel()

		var long string
		for i := 0; i < 60; i++ {
			long += "words "
		}
		snippet := makeSnippet(long)
		assert.LessOrEqual(t, len(snippet), 203)
		assert.True(t, strings.HasSuffix(snippet, "..."))
		assert.True(t, strings.HasSuffix(strings.TrimSuffix(snippet, "..."), "words"))
	})
}
