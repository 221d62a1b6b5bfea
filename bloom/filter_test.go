package bloom_test

import (
	"fmt"
	"testing"

	"github.com/fwojciec/trawl/bloom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_AddAndTest(t *testing.T) {
	t.Parallel()

	f := bloom.NewFilter(1000, 0.01)

	assert.False(t, f.Test("https://example.com/a"))

	f.Add("https://example.com/a")
	assert.True(t, f.Test("https://example.com/a"), "added URL must always test positive")
}

func TestFilter_NoFalseNegatives(t *testing.T) {
	t.Parallel()

	f := bloom.NewFilter(10000, 0.01)

	for i := 0; i < 5000; i++ {
		f.Add(fmt.Sprintf("https://example.com/page/%d", i))
	}
	for i := 0; i < 5000; i++ {
		assert.True(t, f.Test(fmt.Sprintf("https://example.com/page/%d", i)))
	}
}

func TestFilter_SnapshotRestore(t *testing.T) {
	t.Parallel()

	f := bloom.NewFilter(1000, 0.01)
	for i := 0; i < 100; i++ {
		f.Add(fmt.Sprintf("https://example.com/%d", i))
	}

	blob, err := f.Snapshot()
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	restored := bloom.NewFilter(1000, 0.01)
	require.NoError(t, restored.Restore(blob))

	for i := 0; i < 100; i++ {
		assert.True(t, restored.Test(fmt.Sprintf("https://example.com/%d", i)))
	}
}

func TestFilter_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	f := bloom.NewFilter(10000, 0.01)

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 500; i++ {
				f.Add(fmt.Sprintf("https://example.com/%d/%d", g, i))
				f.Test(fmt.Sprintf("https://example.com/%d/%d", g, i))
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}

	assert.Positive(t, f.EstimatedCount())
}
