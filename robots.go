package trawl

import (
	"context"
	"time"
)

// RobotsTTL is how long a fetched robots.txt ruleset stays cached.
const RobotsTTL = 24 * time.Hour

// RobotsService answers robots.txt questions for any URL, fetching and
// caching the ruleset per domain on first use. A missing robots.txt is
// negative-cached as allow-all.
type RobotsService interface {
	// IsAllowed reports whether the crawler may fetch the URL.
	IsAllowed(ctx context.Context, rawURL string) (bool, error)

	// CrawlDelay returns the Crawl-delay directive for the domain, if any.
	CrawlDelay(ctx context.Context, domain string) (time.Duration, bool, error)

	// Sitemaps returns the Sitemap directives recorded for the domain.
	Sitemaps(ctx context.Context, domain string) ([]string, error)
}

// SitemapService discovers URLs from a domain's sitemaps for the seed
// expansion flow. Sitemap indexes are resolved recursively.
type SitemapService interface {
	DiscoverURLs(ctx context.Context, domain string, sitemapURLs []string) ([]string, error)
}
