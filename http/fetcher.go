// Package http provides the page fetcher, sitemap discovery, and the API
// server.
package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/fwojciec/trawl"
)

// Ensure Fetcher implements trawl.Fetcher at compile time.
var _ trawl.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves pages over plain HTTP. JavaScript is never executed;
// the crawler indexes server-rendered content only.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	maxBody   int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for HTTP requests.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithClient overrides the HTTP client transport. Used by tests.
func WithClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// NewFetcher creates a Fetcher that identifies as the given user agent.
func NewFetcher(userAgent string, opts ...Option) *Fetcher {
	f := &Fetcher{
		userAgent: userAgent,
		timeout:   trawl.FetchTimeout,
		maxBody:   trawl.MaxFetchBodyBytes,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	f.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= trawl.MaxRedirects {
			return trawl.Errorf(trawl.EINVALID, "stopped after %d redirects", trawl.MaxRedirects)
		}
		return nil
	}

	return f
}

// Fetch performs a GET with redirect following and a body cap.
// Transport-level failures return an error; HTTP error statuses return a
// result with the status code set so the caller can classify them.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*trawl.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, trawl.Errorf(trawl.EINVALID, "invalid fetch URL: %v", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, trawl.Errorf(trawl.EUNAVAILABLE, "fetch failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, trawl.Errorf(trawl.EUNAVAILABLE, "body read failed: %v", err)
	}

	return &trawl.FetchResult{
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Duration:    time.Since(start),
	}, nil
}
