package mock

import (
	"context"
	"time"

	"github.com/fwojciec/trawl"
)

var _ trawl.RobotsService = (*RobotsService)(nil)

// RobotsService is a mock implementation of trawl.RobotsService.
type RobotsService struct {
	IsAllowedFn  func(ctx context.Context, rawURL string) (bool, error)
	CrawlDelayFn func(ctx context.Context, domain string) (time.Duration, bool, error)
	SitemapsFn   func(ctx context.Context, domain string) ([]string, error)
}

func (s *RobotsService) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	return s.IsAllowedFn(ctx, rawURL)
}

func (s *RobotsService) CrawlDelay(ctx context.Context, domain string) (time.Duration, bool, error) {
	return s.CrawlDelayFn(ctx, domain)
}

func (s *RobotsService) Sitemaps(ctx context.Context, domain string) ([]string, error) {
	return s.SitemapsFn(ctx, domain)
}

var _ trawl.SitemapService = (*SitemapService)(nil)

// SitemapService is a mock implementation of trawl.SitemapService.
type SitemapService struct {
	DiscoverURLsFn func(ctx context.Context, domain string, sitemapURLs []string) ([]string, error)
}

func (s *SitemapService) DiscoverURLs(ctx context.Context, domain string, sitemapURLs []string) ([]string, error) {
	return s.DiscoverURLsFn(ctx, domain, sitemapURLs)
}
