package sqlite_test

import (
	"context"
	"testing"

	"github.com/fwojciec/trawl"
	"github.com/fwojciec/trawl/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeStore_CreateEdge(t *testing.T) {
	t.Parallel()

	t.Run("collapses duplicate pairs", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewEdgeStore(mustOpenDB(t))
		ctx := context.Background()

		e := &trawl.Edge{SourceURL: "https://a.test/", TargetURL: "https://b.test/", AnchorText: "first"}
		require.NoError(t, s.CreateEdge(ctx, e))
		require.NoError(t, s.CreateEdge(ctx, &trawl.Edge{SourceURL: "https://a.test/", TargetURL: "https://b.test/", AnchorText: "second"}))

		var seen []*trawl.Edge
		require.NoError(t, s.WalkEdges(ctx, func(e *trawl.Edge) error {
			seen = append(seen, e)
			return nil
		}))
		require.Len(t, seen, 1)
		assert.Equal(t, "first", seen[0].AnchorText)
	})

	t.Run("rejects empty endpoints", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewEdgeStore(mustOpenDB(t))

		err := s.CreateEdge(context.Background(), &trawl.Edge{SourceURL: "https://a.test/"})
		require.Error(t, err)
		assert.Equal(t, trawl.EINVALID, trawl.ErrorCode(err))
	})
}

func TestEdgeStore_CountInbound(t *testing.T) {
	t.Parallel()

	s := sqlite.NewEdgeStore(mustOpenDB(t))
	ctx := context.Background()

	require.NoError(t, s.CreateEdge(ctx, &trawl.Edge{SourceURL: "https://a.test/", TargetURL: "https://c.test/"}))
	require.NoError(t, s.CreateEdge(ctx, &trawl.Edge{SourceURL: "https://b.test/", TargetURL: "https://c.test/"}))
	require.NoError(t, s.CreateEdge(ctx, &trawl.Edge{SourceURL: "https://a.test/", TargetURL: "https://d.test/"}))

	n, err := s.CountInbound(ctx, "https://c.test/")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CountInbound(ctx, "https://unlinked.test/")
	require.NoError(t, err)
	assert.Zero(t, n)
}
