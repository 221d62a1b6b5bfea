package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/fwojciec/trawl"
)

// Compile-time interface verification.
var _ trawl.Searcher = (*Service)(nil)

// cacheKeyPrefix namespaces cached result pages.
const cacheKeyPrefix = "search:"

// overfetchFactor widens the index window so domain diversification has
// spare results to promote.
const overfetchFactor = 3

// maxRelatedSearches bounds the related-searches list.
const maxRelatedSearches = 5

// Service implements trawl.Searcher over the inverted index with query
// analysis, rank-aware scoring, and a short result cache.
type Service struct {
	index  trawl.Index
	cache  trawl.Cache
	logger *slog.Logger

	cacheTTL time.Duration
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a query Service.
func NewService(index trawl.Index, cache trawl.Cache, logger *slog.Logger, cfg trawl.QueryConfig, opts ...Option) *Service {
	s := &Service{
		index:    index,
		cache:    cache,
		logger:   logger,
		cacheTTL: cfg.CacheTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs the full query pipeline and returns a ranked result page.
func (s *Service) Search(ctx context.Context, req *trawl.SearchRequest) (*trawl.SearchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	page, size, sortBy := pageDefaults(req)

	start := s.now()
	key := cacheKey(req.Query, page, size, sortBy)
	if resp, ok := s.cached(ctx, key); ok {
		return resp, nil
	}

	analysis := Analyze(req.Query)
	if len(analysis.Terms) == 0 {
		return nil, trawl.Errorf(trawl.EINVALID, "query has no searchable terms")
	}

	hits, total, err := s.index.Search(ctx, trawl.IndexQuery{
		Terms:       analysis.Terms,
		Synonyms:    analysis.Synonyms,
		MustDomains: domainFilter(analysis),
		Sort:        sortBy,
		From:        (page - 1) * size,
		Size:        size * overfetchFactor,
	})
	if err != nil {
		return nil, err
	}

	if sortBy == trawl.SortRelevance {
		rescore(hits)
	}
	hits = diversify(hits, total)
	if len(hits) > size {
		hits = hits[:size]
	}

	resp := &trawl.SearchResponse{
		Query:           req.Query,
		TotalResults:    total,
		Page:            page,
		Size:            size,
		Results:         buildResults(hits),
		CorrectedQuery:  analysis.Corrected,
		DidYouMean:      analysis.Corrected,
		RelatedSearches: relatedSearches(analysis),
		ExecutionTimeMs: s.now().Sub(start).Milliseconds(),
	}

	s.store(ctx, key, resp)
	return resp, nil
}

// Suggest returns up to limit distinct title completions for a prefix.
func (s *Service) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, trawl.Errorf(trawl.EINVALID, "prefix required")
	}
	return s.index.Suggest(ctx, prefix, limit)
}

func pageDefaults(req *trawl.SearchRequest) (page, size int, sortBy string) {
	page = req.Page
	if page < 1 {
		page = 1
	}
	size = req.Size
	if size < 1 {
		size = trawl.DefaultPageSize
	}
	if size > trawl.MaxPageSize {
		size = trawl.MaxPageSize
	}
	sortBy = req.Sort
	if sortBy == "" {
		sortBy = trawl.SortRelevance
	}
	return page, size, sortBy
}

// domainFilter collects the domains named by site: operators.
func domainFilter(a *Analysis) []string {
	var domains []string
	for _, e := range a.Entities {
		if e.Kind == "domain" {
			domains = append(domains, e.Text)
		}
	}
	return domains
}

func cacheKey(query string, page, size int, sortBy string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return fmt.Sprintf("%s%s|%d|%d|%s", cacheKeyPrefix, normalized, page, size, sortBy)
}

func (s *Service) cached(ctx context.Context, key string) (*trawl.SearchResponse, bool) {
	blob, err := s.cache.GetBytes(ctx, key)
	if err != nil {
		if trawl.ErrorCode(err) != trawl.ENOTFOUND {
			s.logger.Warn("result cache read failed", "error", err)
		}
		return nil, false
	}
	var resp trawl.SearchResponse
	if err := json.Unmarshal(blob, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

func (s *Service) store(ctx context.Context, key string, resp *trawl.SearchResponse) {
	blob, err := json.Marshal(resp)
	if err != nil {
		return
	}
	// A failed cache write degrades to uncached serving.
	if err := s.cache.SetBytes(ctx, key, blob, s.cacheTTL); err != nil {
		s.logger.Warn("result cache write failed", "error", err)
	}
}

// rescore folds link authority into the text score and re-sorts.
func rescore(hits []*trawl.IndexHit) {
	for _, h := range hits {
		h.TextScore *= math.Log1p(h.Document.PageRank + 1)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].TextScore > hits[j].TextScore
	})
}

// diversify caps any single domain inside the top ten results. Result
// sets smaller than ten are left alone; demoted hits slide below the
// fold rather than disappearing.
func diversify(hits []*trawl.IndexHit, total int64) []*trawl.IndexHit {
	if total < 10 || len(hits) < 10 {
		return hits
	}

	perDomain := make(map[string]int)
	top := make([]*trawl.IndexHit, 0, len(hits))
	var demoted []*trawl.IndexHit
	for _, h := range hits {
		if len(top) < 10 && perDomain[h.Document.Domain] >= trawl.MaxDomainPerTop10 {
			demoted = append(demoted, h)
			continue
		}
		if len(top) < 10 {
			perDomain[h.Document.Domain]++
		}
		top = append(top, h)
	}
	return append(top, demoted...)
}

func buildResults(hits []*trawl.IndexHit) []*trawl.SearchResult {
	results := make([]*trawl.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, &trawl.SearchResult{
			URL:         h.Document.URL,
			Title:       h.Document.Title,
			Snippet:     snippetOf(h),
			Score:       h.TextScore,
			LastCrawled: h.Document.LastCrawled,
		})
	}
	return results
}

// snippetOf prefers the highlighted fragments over the stored snippet.
func snippetOf(h *trawl.IndexHit) string {
	if frags := h.Fragments["content"]; len(frags) > 0 {
		return strings.Join(frags, " … ")
	}
	return h.Document.Snippet
}

// relatedSearches derives follow-up queries from the analysis: synonym
// substitutions first, then intent-flavored variants.
func relatedSearches(a *Analysis) []string {
	base := strings.Join(a.Terms, " ")
	var related []string
	seen := map[string]bool{base: true}

	add := func(q string) {
		if len(related) >= maxRelatedSearches || seen[q] {
			return
		}
		seen[q] = true
		related = append(related, q)
	}

	for _, term := range a.Terms {
		for _, syn := range synonyms[term] {
			add(strings.Replace(base, term, syn, 1))
		}
	}
	switch a.Intent {
	case trawl.IntentTutorial:
		add(base + " examples")
	case trawl.IntentTroubleshooting:
		add(base + " solution")
	case trawl.IntentQuestion, trawl.IntentGeneral:
		add(base + " tutorial")
	case trawl.IntentDocumentation:
		add(base + " examples")
	}
	return related
}
