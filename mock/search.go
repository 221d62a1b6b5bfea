package mock

import (
	"context"

	"github.com/fwojciec/trawl"
)

var _ trawl.Searcher = (*Searcher)(nil)

// Searcher is a mock implementation of trawl.Searcher.
type Searcher struct {
	SearchFn  func(ctx context.Context, req *trawl.SearchRequest) (*trawl.SearchResponse, error)
	SuggestFn func(ctx context.Context, prefix string, limit int) ([]string, error)
}

func (s *Searcher) Search(ctx context.Context, req *trawl.SearchRequest) (*trawl.SearchResponse, error) {
	return s.SearchFn(ctx, req)
}

func (s *Searcher) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	return s.SuggestFn(ctx, prefix, limit)
}
