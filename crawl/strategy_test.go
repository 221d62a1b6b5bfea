package crawl_test

import (
	"context"
	"testing"

	"github.com/fwojciec/trawl"
	"github.com/fwojciec/trawl/crawl"
	"github.com/fwojciec/trawl/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noRanks() *mock.RankStore {
	return &mock.RankStore{
		FindRankFn: func(context.Context, string) (*trawl.RankRecord, error) {
			return nil, trawl.Errorf(trawl.ENOTFOUND, "not ranked")
		},
	}
}

func noDomains() *mock.DomainStore {
	return &mock.DomainStore{
		FindDomainFn: func(context.Context, string) (*trawl.DomainRecord, error) {
			return nil, trawl.Errorf(trawl.ENOTFOUND, "no record")
		},
	}
}

func newTestStrategy(kv trawl.KV, frontier trawl.Frontier, urls trawl.URLStore, ranks trawl.RankStore, domains trawl.DomainStore, cfg trawl.FrontierConfig) *crawl.Strategy {
	return crawl.NewStrategy(kv, newMemLocker(), frontier, urls, ranks, domains, cfg, 6)
}

func TestStrategy_Score(t *testing.T) {
	t.Parallel()

	t.Run("bfs prefers shallow urls", func(t *testing.T) {
		t.Parallel()

		s := newTestStrategy(newMemKV(), nil, nil, noRanks(), noDomains(), trawl.FrontierConfig{Strategy: trawl.StrategyBFS})

		shallow, admit, err := s.Score(context.Background(), &trawl.URLRecord{Depth: 1})
		require.NoError(t, err)
		assert.True(t, admit)

		deep, _, err := s.Score(context.Background(), &trawl.URLRecord{Depth: 5})
		require.NoError(t, err)
		assert.Greater(t, shallow, deep)
	})

	t.Run("best-first blends rank, reliability and depth", func(t *testing.T) {
		t.Parallel()

		ranks := &mock.RankStore{
			FindRankFn: func(_ context.Context, url string) (*trawl.RankRecord, error) {
				return &trawl.RankRecord{URL: url, Score: 0.5}, nil
			},
		}
		domains := &mock.DomainStore{
			FindDomainFn: func(_ context.Context, domain string) (*trawl.DomainRecord, error) {
				return &trawl.DomainRecord{Domain: domain, Attempts: 10, Successes: 8}, nil
			},
		}
		s := newTestStrategy(newMemKV(), nil, nil, ranks, domains, trawl.FrontierConfig{Strategy: trawl.StrategyBestFirst})

		score, admit, err := s.Score(context.Background(), &trawl.URLRecord{
			NormalizedURL: "https://example.com/",
			Domain:        "example.com",
			Depth:         0,
		})
		require.NoError(t, err)
		assert.True(t, admit)
		// 0.5*0.5 + 0.3*0.8 + 0.2*1, scaled to [0,100].
		assert.InDelta(t, 69.0, score, 0.001)
	})

	t.Run("best-first handles unranked urls on unseen domains", func(t *testing.T) {
		t.Parallel()

		s := newTestStrategy(newMemKV(), nil, nil, noRanks(), noDomains(), trawl.FrontierConfig{Strategy: trawl.StrategyBestFirst})

		score, admit, err := s.Score(context.Background(), &trawl.URLRecord{
			NormalizedURL: "https://new.test/",
			Domain:        "new.test",
			Depth:         1,
		})
		require.NoError(t, err)
		assert.True(t, admit)
		// Only the depth component remains: 0.2 * 5/6 * 100.
		assert.InDelta(t, 16.667, score, 0.001)
	})

	t.Run("opic scores by accumulated cash", func(t *testing.T) {
		t.Parallel()

		kv := newMemKV()
		s := newTestStrategy(kv, nil, nil, noRanks(), noDomains(), trawl.FrontierConfig{Strategy: trawl.StrategyOPIC})

		// A URL not yet credited scores at its admission cash.
		rec := &trawl.URLRecord{URLHash: "abc"}
		score, admit, err := s.Score(context.Background(), rec)
		require.NoError(t, err)
		assert.True(t, admit)
		assert.Equal(t, 1.0, score)

		// Credited and topped up by an inbound share.
		require.NoError(t, s.InitCash(context.Background(), "abc"))
		require.NoError(t, s.InitCash(context.Background(), "parent"))
		require.NoError(t, s.DistributeCash(context.Background(), "parent", []string{"abc"}))

		score, _, err = s.Score(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, 2.0, score)
	})

	t.Run("focused refuses urls outside the whitelist", func(t *testing.T) {
		t.Parallel()

		cfg := trawl.FrontierConfig{
			Strategy:        trawl.StrategyFocused,
			FocusedKeywords: []string{"news"},
			DomainWhitelist: []string{"good.com"},
		}
		s := newTestStrategy(newMemKV(), nil, nil, noRanks(), noDomains(), cfg)

		// A keyword hit on a foreign domain must not buy admission.
		score, admit, err := s.Score(context.Background(), &trawl.URLRecord{
			Domain:        "evil.com",
			NormalizedURL: "https://evil.com/news/story/",
		})
		require.NoError(t, err)
		assert.False(t, admit)
		assert.Zero(t, score)
	})

	t.Run("focused scores keyword coverage plus rank", func(t *testing.T) {
		t.Parallel()

		cfg := trawl.FrontierConfig{
			Strategy:        trawl.StrategyFocused,
			FocusedKeywords: []string{"golang", "compiler"},
			DomainWhitelist: []string{"go.dev"},
		}

		t.Run("unranked urls take the neutral rank half", func(t *testing.T) {
			t.Parallel()

			s := newTestStrategy(newMemKV(), nil, nil, noRanks(), noDomains(), cfg)
			score, admit, err := s.Score(context.Background(), &trawl.URLRecord{
				Domain:        "go.dev",
				NormalizedURL: "https://go.dev/blog/golang-turns-15/",
			})
			require.NoError(t, err)
			assert.True(t, admit)
			// 1 of 2 keywords (25) plus the neutral 25.
			assert.Equal(t, 50.0, score)
		})

		t.Run("ranked urls scale their rank half", func(t *testing.T) {
			t.Parallel()

			ranks := &mock.RankStore{
				FindRankFn: func(_ context.Context, url string) (*trawl.RankRecord, error) {
					return &trawl.RankRecord{URL: url, Score: 0.8}, nil
				},
			}
			s := newTestStrategy(newMemKV(), nil, nil, ranks, noDomains(), cfg)
			score, admit, err := s.Score(context.Background(), &trawl.URLRecord{
				Domain:        "go.dev",
				NormalizedURL: "https://go.dev/ref/spec-of-the-golang-compiler/",
			})
			require.NoError(t, err)
			assert.True(t, admit)
			// 2 of 2 keywords (50) plus 0.8*50.
			assert.Equal(t, 90.0, score)
		})
	})
}

func TestStrategy_DistributeCash(t *testing.T) {
	t.Parallel()

	kv := newMemKV()
	s := newTestStrategy(kv, nil, nil, noRanks(), noDomains(), trawl.FrontierConfig{Strategy: trawl.StrategyOPIC})

	require.NoError(t, s.InitCash(context.Background(), "parent"))
	require.NoError(t, s.InitCash(context.Background(), "a"))
	require.NoError(t, s.InitCash(context.Background(), "b"))
	require.NoError(t, s.DistributeCash(context.Background(), "parent", []string{"a", "b"}))

	a, _, err := s.Score(context.Background(), &trawl.URLRecord{URLHash: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1.5, a)

	// The parent's balance is spent, not forgotten: it scores zero instead
	// of reverting to the admission cash.
	parent, _, err := s.Score(context.Background(), &trawl.URLRecord{URLHash: "parent"})
	require.NoError(t, err)
	assert.Zero(t, parent)
}

func TestStrategy_Switch(t *testing.T) {
	t.Parallel()

	t.Run("rejects unknown names", func(t *testing.T) {
		t.Parallel()

		s := newTestStrategy(newMemKV(), nil, nil, noRanks(), noDomains(), trawl.FrontierConfig{Strategy: trawl.StrategyBFS})
		err := s.Switch(context.Background(), trawl.StrategyName("dfs"))
		assert.Equal(t, trawl.EINVALID, trawl.ErrorCode(err))
	})

	t.Run("activates and re-scores the frontier", func(t *testing.T) {
		t.Parallel()

		records := map[string]*trawl.URLRecord{
			"https://a.test/": {URLHash: trawl.HashURL("https://a.test/"), NormalizedURL: "https://a.test/", Domain: "a.test", Depth: 1},
			"https://b.test/": {URLHash: trawl.HashURL("https://b.test/"), NormalizedURL: "https://b.test/", Domain: "b.test", Depth: 1},
		}
		urls := &mock.URLStore{
			FindURLByHashFn: func(_ context.Context, urlHash string) (*trawl.URLRecord, error) {
				for _, rec := range records {
					if rec.URLHash == urlHash {
						return rec, nil
					}
				}
				return nil, trawl.Errorf(trawl.ENOTFOUND, "no record")
			},
		}
		scores := map[string]float64{"https://a.test/": 0.1, "https://b.test/": 0.6}
		ranks := &mock.RankStore{
			FindRankFn: func(_ context.Context, url string) (*trawl.RankRecord, error) {
				return &trawl.RankRecord{URL: url, Score: scores[url]}, nil
			},
		}

		rescored := make(map[string]float64)
		frontier := &mock.Frontier{
			WalkFn: func(ctx context.Context, fn func(trawl.FrontierEntry) error) error {
				for u := range records {
					if err := fn(trawl.FrontierEntry{URL: u, Score: 1}); err != nil {
						return err
					}
				}
				return nil
			},
			AddFn: func(_ context.Context, entry trawl.FrontierEntry) error {
				rescored[entry.URL] = entry.Score
				return nil
			},
		}

		kv := newMemKV()
		s := newTestStrategy(kv, frontier, urls, ranks, noDomains(), trawl.FrontierConfig{Strategy: trawl.StrategyBFS})

		require.NoError(t, s.Switch(context.Background(), trawl.StrategyBestFirst))

		current, err := s.Current(context.Background())
		require.NoError(t, err)
		assert.Equal(t, trawl.StrategyBestFirst, current)

		// 0.5*rank + 0.2*(5/6), scaled to [0,100].
		assert.InDelta(t, 21.667, rescored["https://a.test/"], 0.001)
		assert.InDelta(t, 46.667, rescored["https://b.test/"], 0.001)
	})

	t.Run("refused entries stay resident at zero", func(t *testing.T) {
		t.Parallel()

		rec := &trawl.URLRecord{
			URLHash:       trawl.HashURL("https://example.com/"),
			NormalizedURL: "https://example.com/",
			Domain:        "example.com",
		}
		urls := &mock.URLStore{
			FindURLByHashFn: func(context.Context, string) (*trawl.URLRecord, error) { return rec, nil },
		}

		var gotScore float64
		frontier := &mock.Frontier{
			WalkFn: func(ctx context.Context, fn func(trawl.FrontierEntry) error) error {
				return fn(trawl.FrontierEntry{URL: rec.NormalizedURL, Score: 4})
			},
			AddFn: func(_ context.Context, entry trawl.FrontierEntry) error {
				gotScore = entry.Score
				return nil
			},
		}

		cfg := trawl.FrontierConfig{
			Strategy:        trawl.StrategyBFS,
			DomainWhitelist: []string{"only.test"},
		}
		s := newTestStrategy(newMemKV(), frontier, urls, noRanks(), noDomains(), cfg)

		require.NoError(t, s.Switch(context.Background(), trawl.StrategyFocused))
		assert.Zero(t, gotScore)
	})
}

func TestStrategy_Current(t *testing.T) {
	t.Parallel()

	t.Run("defaults to the configured strategy", func(t *testing.T) {
		t.Parallel()

		s := newTestStrategy(newMemKV(), nil, nil, noRanks(), noDomains(), trawl.FrontierConfig{Strategy: trawl.StrategyBestFirst})
		current, err := s.Current(context.Background())
		require.NoError(t, err)
		assert.Equal(t, trawl.StrategyBestFirst, current)
	})
}
