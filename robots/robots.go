// Package robots answers robots.txt questions for the fetch pipeline,
// fetching and caching rulesets per domain.
package robots

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/fwojciec/trawl"
)

// Compile-time interface verification.
var _ trawl.RobotsService = (*Service)(nil)

// Fetch timeouts for robots.txt itself. Tighter than page fetches since a
// slow robots endpoint must not stall the whole domain.
const (
	connectTimeout = 5 * time.Second
	readTimeout    = 10 * time.Second

	maxRobotsBytes = 512 << 10
)

// cachedRuleset is the serialized cache entry: the origin status code and
// the raw robots.txt body. Missing files cache as their 404 status, which
// parses to allow-all.
type cachedRuleset struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Service implements trawl.RobotsService backed by HTTP fetches and a
// shared TTL cache.
type Service struct {
	cache     trawl.Cache
	client    *http.Client
	userAgent string
	ttl       time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClient overrides the HTTP client. Used by tests.
func WithClient(client *http.Client) Option {
	return func(s *Service) {
		s.client = client
	}
}

// WithTTL overrides the ruleset cache TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// NewService creates a Service with the given cache and crawler user
// agent.
func NewService(cache trawl.Cache, userAgent string, opts ...Option) *Service {
	s := &Service{
		cache:     cache,
		userAgent: userAgent,
		ttl:       trawl.RobotsTTL,
		client: &http.Client{
			Timeout: readTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsAllowed reports whether the crawler may fetch the URL.
func (s *Service) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, trawl.Errorf(trawl.EINVALID, "invalid URL: %v", err)
	}

	data, err := s.ruleset(ctx, u.Scheme, u.Host)
	if err != nil {
		return false, err
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, s.userAgent), nil
}

// CrawlDelay returns the Crawl-delay directive for the domain, if any.
func (s *Service) CrawlDelay(ctx context.Context, domain string) (time.Duration, bool, error) {
	data, err := s.ruleset(ctx, "https", domain)
	if err != nil {
		return 0, false, err
	}

	group := data.FindGroup(s.userAgent)
	if group == nil || group.CrawlDelay <= 0 {
		return 0, false, nil
	}
	return group.CrawlDelay, true, nil
}

// Sitemaps returns the Sitemap directives recorded for the domain.
func (s *Service) Sitemaps(ctx context.Context, domain string) ([]string, error) {
	data, err := s.ruleset(ctx, "https", domain)
	if err != nil {
		return nil, err
	}
	return data.Sitemaps, nil
}

// ruleset returns the parsed robots.txt for a host, consulting the cache
// first.
func (s *Service) ruleset(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	if scheme == "" {
		scheme = "https"
	}
	key := "robots:" + host

	if blob, err := s.cache.GetBytes(ctx, key); err == nil {
		var entry cachedRuleset
		if err := json.Unmarshal(blob, &entry); err == nil {
			return robotstxt.FromStatusAndBytes(entry.Status, entry.Body)
		}
	} else if trawl.ErrorCode(err) != trawl.ENOTFOUND {
		return nil, err
	}

	entry, err := s.fetch(ctx, scheme+"://"+host+"/robots.txt")
	if err != nil {
		return nil, err
	}

	if blob, err := json.Marshal(entry); err == nil {
		// Cache write failures degrade to refetching next time.
		_ = s.cache.SetBytes(ctx, key, blob, s.ttl)
	}

	return robotstxt.FromStatusAndBytes(entry.Status, entry.Body)
}

func (s *Service) fetch(ctx context.Context, robotsURL string) (*cachedRuleset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, trawl.Errorf(trawl.EUNAVAILABLE, "robots fetch failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, trawl.Errorf(trawl.EUNAVAILABLE, "robots read failed: %v", err)
	}

	return &cachedRuleset{Status: resp.StatusCode, Body: body}, nil
}
