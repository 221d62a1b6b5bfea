// Package slog provides logging decorators for pipeline services.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/trawl"
)

// Ensure LoggingFetcher implements trawl.Fetcher.
var _ trawl.Fetcher = (*LoggingFetcher)(nil)

// LoggingFetcher wraps a Fetcher with per-request logging.
type LoggingFetcher struct {
	next   trawl.Fetcher
	logger *slog.Logger
}

// NewLoggingFetcher creates a new LoggingFetcher.
func NewLoggingFetcher(next trawl.Fetcher, logger *slog.Logger) *LoggingFetcher {
	return &LoggingFetcher{next: next, logger: logger}
}

// Fetch delegates to the wrapped fetcher and logs the outcome.
func (f *LoggingFetcher) Fetch(ctx context.Context, url string) (*trawl.FetchResult, error) {
	begin := time.Now()
	res, err := f.next.Fetch(ctx, url)
	if err != nil {
		f.logger.Error("fetch", "url", url, "err", err, "duration", time.Since(begin))
		return nil, err
	}
	f.logger.Info("fetch", "url", url, "status", res.StatusCode, "bytes", len(res.Body), "duration", time.Since(begin))
	return res, nil
}
