package pagerank_test

import (
	"math"
	"math/rand"
	"strconv"
	"testing"

	"github.com/fwojciec/trawl/pagerank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compute(links map[string][]string) map[string]pagerank.Result {
	return pagerank.Compute(links, 0.85, 1e-4, 100)
}

func totalScore(results map[string]pagerank.Result) float64 {
	var total float64
	for _, r := range results {
		total += r.Score
	}
	return total
}

// referenceRanks is an independent textbook power iteration, run to a
// much tighter tolerance than the production code.
func referenceRanks(links map[string][]string, damping float64) map[string]float64 {
	set := make(map[string]bool)
	for src, targets := range links {
		set[src] = true
		for _, tgt := range targets {
			set[tgt] = true
		}
	}
	n := float64(len(set))

	rank := make(map[string]float64, len(set))
	for node := range set {
		rank[node] = 1 / n
	}

	for iter := 0; iter < 1000; iter++ {
		next := make(map[string]float64, len(set))
		var dangling float64
		for node := range set {
			next[node] = (1 - damping) / n
			if len(links[node]) == 0 {
				dangling += rank[node]
			}
		}
		for node := range set {
			next[node] += damping * dangling / n
		}
		for src, targets := range links {
			share := rank[src] / float64(len(targets))
			for _, tgt := range targets {
				next[tgt] += damping * share
			}
		}

		var delta float64
		for node := range set {
			delta += math.Abs(next[node] - rank[node])
		}
		rank = next
		if delta < 1e-12 {
			break
		}
	}
	return rank
}

func TestCompute(t *testing.T) {
	t.Parallel()

	t.Run("empty graph yields no scores", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, compute(nil))
	})

	t.Run("scores sum to one", func(t *testing.T) {
		t.Parallel()

		results := compute(map[string][]string{
			"a": {"b", "c"},
			"b": {"c"},
			"c": {"a"},
			"d": {"c"},
		})
		assert.InDelta(t, 1.0, totalScore(results), 1e-6)
	})

	t.Run("a hub attracts the most mass", func(t *testing.T) {
		t.Parallel()

		// Everything points at c; c points back at a.
		results := compute(map[string][]string{
			"a": {"c"},
			"b": {"c"},
			"d": {"c"},
			"c": {"a"},
		})

		require.Len(t, results, 4)
		for _, other := range []string{"a", "b", "d"} {
			assert.Greater(t, results["c"].Score, results[other].Score, "c should outrank %s", other)
		}
		// a inherits c's endorsement and outranks the unreferenced b and d.
		assert.Greater(t, results["a"].Score, results["b"].Score)
	})

	t.Run("dangling nodes keep the sum intact", func(t *testing.T) {
		t.Parallel()

		// b has no outlinks at all.
		results := compute(map[string][]string{
			"a": {"b"},
		})
		require.Len(t, results, 2)
		assert.InDelta(t, 1.0, totalScore(results), 1e-6)
		assert.Greater(t, results["b"].Score, results["a"].Score)
	})

	t.Run("symmetric graphs score evenly", func(t *testing.T) {
		t.Parallel()

		results := compute(map[string][]string{
			"a": {"b"},
			"b": {"c"},
			"c": {"a"},
		})
		require.Len(t, results, 3)
		for _, r := range results {
			assert.InDelta(t, 1.0/3.0, r.Score, 1e-3)
		}
	})

	t.Run("self-links and duplicate edges are ignored", func(t *testing.T) {
		t.Parallel()

		withNoise := compute(map[string][]string{
			"a": {"a", "b", "b"},
			"b": {"a"},
		})
		clean := compute(map[string][]string{
			"a": {"b"},
			"b": {"a"},
		})

		require.Len(t, withNoise, 2)
		assert.InDelta(t, clean["a"].Score, withNoise["a"].Score, 1e-9)
		assert.Equal(t, 1, withNoise["b"].Inbound)
		assert.Equal(t, 1, withNoise["a"].Outbound)
	})

	t.Run("reports inbound and outbound counts", func(t *testing.T) {
		t.Parallel()

		results := compute(map[string][]string{
			"a": {"c"},
			"b": {"c"},
			"c": {"a", "b"},
		})
		assert.Equal(t, 2, results["c"].Inbound)
		assert.Equal(t, 2, results["c"].Outbound)
		assert.Equal(t, 1, results["a"].Inbound)
	})

	t.Run("matches a reference power iteration on a large graph", func(t *testing.T) {
		t.Parallel()

		// A ring through all thousand nodes keeps the graph strongly
		// connected; the extra random edges give it realistic structure.
		const n = 1000
		rng := rand.New(rand.NewSource(42))
		name := func(i int) string { return "n" + strconv.Itoa(i) }

		links := make(map[string][]string, n)
		for i := 0; i < n; i++ {
			targets := map[int]bool{(i + 1) % n: true}
			for j := 0; j < 3; j++ {
				if tgt := rng.Intn(n); tgt != i {
					targets[tgt] = true
				}
			}
			for tgt := range targets {
				links[name(i)] = append(links[name(i)], name(tgt))
			}
		}

		results := compute(links)
		want := referenceRanks(links, 0.85)

		require.Len(t, results, n)
		assert.InDelta(t, 1.0, totalScore(results), 1e-6)
		for node, r := range results {
			assert.Greater(t, r.Score, 0.0, "node %s", node)
			assert.Less(t, r.Score, 1.0, "node %s", node)
			assert.InDelta(t, want[node], r.Score, 1e-3, "node %s", node)
		}
	})

	t.Run("converges within the iteration budget", func(t *testing.T) {
		t.Parallel()

		// A large-ish chain still converges to a finite, normalized state.
		links := make(map[string][]string)
		prev := "n0"
		for i := 1; i < 200; i++ {
			cur := "n" + string(rune('0'+i%10)) + "x" + string(rune('a'+i%26))
			links[prev] = append(links[prev], cur)
			prev = cur
		}
		results := compute(links)
		assert.InDelta(t, 1.0, totalScore(results), 1e-6)
		for _, r := range results {
			assert.False(t, math.IsNaN(r.Score))
			assert.GreaterOrEqual(t, r.Score, 0.0)
		}
	})
}
