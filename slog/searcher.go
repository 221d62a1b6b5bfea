package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/trawl"
)

// Ensure LoggingSearcher implements trawl.Searcher.
var _ trawl.Searcher = (*LoggingSearcher)(nil)

// LoggingSearcher wraps a Searcher with per-query logging.
type LoggingSearcher struct {
	next   trawl.Searcher
	logger *slog.Logger
}

// NewLoggingSearcher creates a new LoggingSearcher.
func NewLoggingSearcher(next trawl.Searcher, logger *slog.Logger) *LoggingSearcher {
	return &LoggingSearcher{next: next, logger: logger}
}

// Search delegates to the wrapped searcher and logs the outcome.
func (s *LoggingSearcher) Search(ctx context.Context, req *trawl.SearchRequest) (*trawl.SearchResponse, error) {
	begin := time.Now()
	resp, err := s.next.Search(ctx, req)
	if err != nil {
		s.logger.Error("search", "query", req.Query, "err", err, "duration", time.Since(begin))
		return nil, err
	}
	s.logger.Info("search", "query", req.Query, "total", resp.TotalResults, "corrected", resp.CorrectedQuery, "duration", time.Since(begin))
	return resp, nil
}

// Suggest delegates to the wrapped searcher.
func (s *LoggingSearcher) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	return s.next.Suggest(ctx, prefix, limit)
}
