package pagerank_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/trawl"
	"github.com/fwojciec/trawl/mock"
	"github.com/fwojciec/trawl/pagerank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jobFixture struct {
	edges  *mock.EdgeStore
	ranks  *mock.RankStore
	index  *mock.Index
	kv     *mock.KV
	locker *mock.Locker

	mu     sync.Mutex
	values map[string]string
}

func newJobFixture() *jobFixture {
	f := &jobFixture{
		edges:  &mock.EdgeStore{},
		ranks:  &mock.RankStore{},
		index:  &mock.Index{},
		kv:     &mock.KV{},
		locker: &mock.Locker{},
		values: make(map[string]string),
	}

	f.kv.GetFn = func(_ context.Context, key string) (string, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		v, ok := f.values[key]
		if !ok {
			return "", trawl.Errorf(trawl.ENOTFOUND, "key %q not found", key)
		}
		return v, nil
	}
	f.kv.SetFn = func(_ context.Context, key, value string, _ time.Duration) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.values[key] = value
		return nil
	}
	f.kv.DelFn = func(_ context.Context, key string) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.values, key)
		return nil
	}
	f.locker.AcquireFn = func(context.Context, string, time.Duration) (trawl.Lease, error) {
		return &mock.Lease{
			ExtendFn:  func(context.Context, time.Duration) error { return nil },
			ReleaseFn: func(context.Context) error { return nil },
		}, nil
	}
	f.edges.WalkEdgesFn = func(_ context.Context, fn func(*trawl.Edge) error) error {
		for _, e := range []*trawl.Edge{
			{SourceURL: "https://a.test/", TargetURL: "https://b.test/"},
			{SourceURL: "https://b.test/", TargetURL: "https://a.test/"},
		} {
			if err := fn(e); err != nil {
				return err
			}
		}
		return nil
	}
	f.ranks.ReplaceAllFn = func(context.Context, []*trawl.RankRecord, time.Time) error { return nil }
	f.index.UpdateRankFn = func(context.Context, string, float64, int) error { return nil }
	return f
}

func (f *jobFixture) build() *pagerank.Job {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return pagerank.NewJob(f.edges, f.ranks, f.index, f.kv, f.locker, logger, trawl.DefaultConfig().PageRank)
}

func TestJob_Recompute(t *testing.T) {
	t.Parallel()

	t.Run("persists normalized scores and updates the index", func(t *testing.T) {
		t.Parallel()

		f := newJobFixture()

		var stored []*trawl.RankRecord
		f.ranks.ReplaceAllFn = func(_ context.Context, records []*trawl.RankRecord, _ time.Time) error {
			stored = records
			return nil
		}
		updated := make(map[string]float64)
		f.index.UpdateRankFn = func(_ context.Context, id string, rank float64, _ int) error {
			updated[id] = rank
			return nil
		}

		require.NoError(t, f.build().Recompute(context.Background()))

		require.Len(t, stored, 2)
		var total float64
		for _, rec := range stored {
			total += rec.Score
		}
		assert.InDelta(t, 1.0, total, 1e-6)
		assert.Contains(t, updated, trawl.HashURL("https://a.test/"))
		assert.Contains(t, updated, trawl.HashURL("https://b.test/"))
	})

	t.Run("skips persistence on an empty graph", func(t *testing.T) {
		t.Parallel()

		f := newJobFixture()
		f.edges.WalkEdgesFn = func(context.Context, func(*trawl.Edge) error) error { return nil }
		f.ranks.ReplaceAllFn = func(context.Context, []*trawl.RankRecord, time.Time) error {
			t.Fatal("empty graph must not replace the rank table")
			return nil
		}

		require.NoError(t, f.build().Recompute(context.Background()))
	})

	t.Run("tolerates documents missing from the index", func(t *testing.T) {
		t.Parallel()

		f := newJobFixture()
		f.index.UpdateRankFn = func(context.Context, string, float64, int) error {
			return trawl.Errorf(trawl.ENOTFOUND, "no document")
		}

		require.NoError(t, f.build().Recompute(context.Background()))
	})
}

func TestJob_Trigger(t *testing.T) {
	t.Parallel()

	t.Run("starts a run and returns its id", func(t *testing.T) {
		t.Parallel()

		f := newJobFixture()

		released := make(chan struct{})
		f.locker.AcquireFn = func(context.Context, string, time.Duration) (trawl.Lease, error) {
			return &mock.Lease{
				ExtendFn: func(context.Context, time.Duration) error { return nil },
				ReleaseFn: func(context.Context) error {
					close(released)
					return nil
				},
			}, nil
		}

		jobID, err := f.build().Trigger(context.Background())
		require.NoError(t, err)
		assert.NotEmpty(t, jobID)

		select {
		case <-released:
		case <-time.After(5 * time.Second):
			t.Fatal("run never released the lock")
		}
	})

	t.Run("returns the active run's id while one is running", func(t *testing.T) {
		t.Parallel()

		f := newJobFixture()
		f.values["pagerank:job"] = "job-active"
		f.locker.AcquireFn = func(context.Context, string, time.Duration) (trawl.Lease, error) {
			return nil, trawl.Errorf(trawl.ECONFLICT, "lock held")
		}

		jobID, err := f.build().Trigger(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "job-active", jobID)
	})

	t.Run("conflicts when the holder has not recorded its id yet", func(t *testing.T) {
		t.Parallel()

		f := newJobFixture()
		f.locker.AcquireFn = func(context.Context, string, time.Duration) (trawl.Lease, error) {
			return nil, trawl.Errorf(trawl.ECONFLICT, "lock held")
		}

		_, err := f.build().Trigger(context.Background())
		assert.Equal(t, trawl.ECONFLICT, trawl.ErrorCode(err))
	})
}
