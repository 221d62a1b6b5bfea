package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fwojciec/trawl"
	trawlhttp "github.com/fwojciec/trawl/http"
	"github.com/fwojciec/trawl/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seedsFn func(ctx context.Context, urls []string) (int, error)

func (f seedsFn) AdmitSeeds(ctx context.Context, urls []string) (int, error) { return f(ctx, urls) }

type switchFn func(ctx context.Context, name trawl.StrategyName) error

func (f switchFn) Switch(ctx context.Context, name trawl.StrategyName) error { return f(ctx, name) }

type triggerFn func(ctx context.Context) (string, error)

func (f triggerFn) Trigger(ctx context.Context) (string, error) { return f(ctx) }

func TestServer_Search(t *testing.T) {
	t.Parallel()

	t.Run("serves results", func(t *testing.T) {
		t.Parallel()

		s := trawlhttp.NewServer()
		s.Searcher = &mock.Searcher{
			SearchFn: func(_ context.Context, req *trawl.SearchRequest) (*trawl.SearchResponse, error) {
				assert.Equal(t, "golang", req.Query)
				return &trawl.SearchResponse{Query: "golang", TotalResults: 1, Results: []*trawl.SearchResult{
					{URL: "https://example.com/", Title: "Go", Score: 1.0},
				}}, nil
			},
		}

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=golang", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp trawl.SearchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, int64(1), resp.TotalResults)
	})

	t.Run("maps invalid queries to 400", func(t *testing.T) {
		t.Parallel()

		s := trawlhttp.NewServer()
		s.Searcher = &mock.Searcher{
			SearchFn: func(_ context.Context, req *trawl.SearchRequest) (*trawl.SearchResponse, error) {
				return nil, trawl.Errorf(trawl.EINVALID, "query required")
			},
		}

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps index unavailability to 503", func(t *testing.T) {
		t.Parallel()

		s := trawlhttp.NewServer()
		s.Searcher = &mock.Searcher{
			SearchFn: func(_ context.Context, _ *trawl.SearchRequest) (*trawl.SearchResponse, error) {
				return nil, trawl.Errorf(trawl.EUNAVAILABLE, "index offline")
			},
		}

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=x", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestServer_Suggestions(t *testing.T) {
	t.Parallel()

	s := trawlhttp.NewServer()
	s.Searcher = &mock.Searcher{
		SuggestFn: func(_ context.Context, prefix string, limit int) ([]string, error) {
			assert.Equal(t, "gor", prefix)
			assert.Equal(t, 5, limit)
			return []string{"Goroutines Explained"}, nil
		},
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search/suggestions?prefix=gor", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Goroutines Explained")
}

func TestServer_Seeds(t *testing.T) {
	t.Parallel()

	t.Run("accepts seeds with 202", func(t *testing.T) {
		t.Parallel()

		s := trawlhttp.NewServer()
		s.Seeds = seedsFn(func(_ context.Context, urls []string) (int, error) {
			assert.Len(t, urls, 2)
			return 2, nil
		})

		body := strings.NewReader(`{"urls":["https://a.test/","https://b.test/"]}`)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/crawl/seeds", body))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), `"accepted":2`)
	})

	t.Run("rejects empty bodies", func(t *testing.T) {
		t.Parallel()

		s := trawlhttp.NewServer()

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/crawl/seeds", strings.NewReader(`{}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_Strategy(t *testing.T) {
	t.Parallel()

	t.Run("switches to a valid strategy", func(t *testing.T) {
		t.Parallel()

		var got trawl.StrategyName
		s := trawlhttp.NewServer()
		s.Strategy = switchFn(func(_ context.Context, name trawl.StrategyName) error {
			got = name
			return nil
		})

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/frontier/strategy?strategy=opic", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, trawl.StrategyOPIC, got)
	})

	t.Run("rejects unknown strategies", func(t *testing.T) {
		t.Parallel()

		s := trawlhttp.NewServer()

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/frontier/strategy?strategy=dfs", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_PageRankUpdate(t *testing.T) {
	t.Parallel()

	s := trawlhttp.NewServer()
	s.Ranker = triggerFn(func(_ context.Context) (string, error) {
		return "job-123", nil
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/indexer/pagerank/update", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "job-123")
}

func TestServer_RateLimit(t *testing.T) {
	t.Parallel()

	t.Run("reports tokens and circuit state", func(t *testing.T) {
		t.Parallel()

		s := trawlhttp.NewServer()
		s.Limiter = &mock.RateLimiter{
			StatusFn: func(_ context.Context, domain string) (trawl.AcquireResult, error) {
				assert.Equal(t, "example.com", domain)
				return trawl.AcquireResult{OK: true, Tokens: 7.5}, nil
			},
		}
		s.Breaker = &mock.CircuitBreaker{
			StateFn: func(_ context.Context, domain string) (trawl.BreakerState, error) {
				return trawl.BreakerOpen, nil
			},
		}

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/rate-limit/example.com", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "7.5")
		assert.Contains(t, rec.Body.String(), string(trawl.BreakerOpen))
	})

	t.Run("reset clears bucket and breaker", func(t *testing.T) {
		t.Parallel()

		var bucketReset, breakerReset bool
		s := trawlhttp.NewServer()
		s.Limiter = &mock.RateLimiter{
			ResetFn: func(_ context.Context, domain string) error {
				bucketReset = true
				return nil
			},
		}
		s.Breaker = &mock.CircuitBreaker{
			ResetFn: func(_ context.Context, domain string) error {
				breakerReset = true
				return nil
			},
		}

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/rate-limit/example.com/reset", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, bucketReset)
		assert.True(t, breakerReset)
	})
}

func TestServer_CrawlerStats(t *testing.T) {
	t.Parallel()

	s := trawlhttp.NewServer()
	s.URLs = &mock.URLStore{
		CountByStatusFn: func(_ context.Context) (map[trawl.URLStatus]int64, error) {
			return map[trawl.URLStatus]int64{trawl.StatusCompleted: 10, trawl.StatusPending: 3}, nil
		},
	}
	s.Frontier = &mock.Frontier{
		LenFn: func(_ context.Context) (int64, error) { return 3, nil },
	}
	s.Index = &mock.Index{
		CountFn: func(_ context.Context) (int64, error) { return 10, nil },
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats/crawler", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"COMPLETED":10`)
	assert.Contains(t, rec.Body.String(), `"frontierSize":3`)
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	s := trawlhttp.NewServer()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
