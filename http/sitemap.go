package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/fwojciec/trawl"
)

// Ensure SitemapService implements trawl.SitemapService.
var _ trawl.SitemapService = (*SitemapService)(nil)

// Sitemap processing limits. A hostile or broken sitemap index must not
// pull the seed expansion flow into an unbounded fetch.
const (
	sitemapFetchTimeout = 30 * time.Second
	maxSitemapBytes     = 50 << 20
	maxSitemapDocs      = 200
	maxSitemapURLs      = 50000
)

// SitemapService discovers URLs from a domain's sitemaps, resolving
// sitemap indexes recursively.
type SitemapService struct {
	client *http.Client
}

// NewSitemapService creates a SitemapService with the given HTTP client.
// If client is nil, a client with the sitemap fetch timeout is used.
func NewSitemapService(client *http.Client) *SitemapService {
	if client == nil {
		client = &http.Client{Timeout: sitemapFetchTimeout}
	}
	return &SitemapService{client: client}
}

// DiscoverURLs fetches the given sitemaps and returns the page URLs they
// list. With no explicit sitemap URLs it falls back to the conventional
// /sitemap.xml. Returns an empty slice (not nil) if nothing is found.
func (s *SitemapService) DiscoverURLs(ctx context.Context, domain string, sitemapURLs []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(sitemapURLs) == 0 {
		sitemapURLs = []string{"https://" + domain + "/sitemap.xml"}
	}

	seenSitemaps := make(map[string]bool)
	seenURLs := make(map[string]bool)
	var all []string

	for _, sitemapURL := range sitemapURLs {
		urls, err := s.processSitemap(ctx, sitemapURL, seenSitemaps)
		if err != nil {
			// A single broken sitemap must not sink the whole expansion.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		for _, u := range urls {
			if seenURLs[u] {
				continue
			}
			seenURLs[u] = true
			all = append(all, u)
			if len(all) >= maxSitemapURLs {
				return all, nil
			}
		}
	}

	if all == nil {
		all = []string{}
	}
	return all, nil
}

// processSitemap fetches and parses one sitemap document, handling both
// urlset and sitemapindex roots.
func (s *SitemapService) processSitemap(ctx context.Context, sitemapURL string, seen map[string]bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if seen[sitemapURL] || len(seen) >= maxSitemapDocs {
		return nil, nil
	}
	seen[sitemapURL] = true

	body, err := s.fetchURL(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(io.LimitReader(body, maxSitemapBytes)); err != nil {
		return nil, fmt.Errorf("parsing sitemap XML: %w", err)
	}

	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("empty sitemap XML")
	}

	if root.Tag == "sitemapindex" {
		return s.processSitemapIndex(ctx, root, seen)
	}
	return parseURLSet(root), nil
}

// processSitemapIndex resolves a <sitemapindex> element recursively.
func (s *SitemapService) processSitemapIndex(ctx context.Context, root *etree.Element, seen map[string]bool) ([]string, error) {
	var all []string
	for _, sitemap := range root.SelectElements("sitemap") {
		loc := sitemap.SelectElement("loc")
		if loc == nil {
			continue
		}
		sitemapURL := strings.TrimSpace(loc.Text())
		if sitemapURL == "" {
			continue
		}

		urls, err := s.processSitemap(ctx, sitemapURL, seen)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		all = append(all, urls...)
	}
	return all, nil
}

// parseURLSet extracts page URLs from a <urlset> element.
func parseURLSet(root *etree.Element) []string {
	var urls []string
	for _, urlEl := range root.SelectElements("url") {
		loc := urlEl.SelectElement("loc")
		if loc == nil {
			continue
		}
		if u := strings.TrimSpace(loc.Text()); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func (s *SitemapService) fetchURL(ctx context.Context, targetURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, targetURL)
	}
	return resp.Body, nil
}
