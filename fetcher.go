package trawl

import (
	"context"
	"time"
)

// Fetch limits.
const (
	FetchTimeout      = 15 * time.Second
	MaxFetchBodyBytes = 5 << 20
	MaxRedirects      = 5
)

// FetchResult is the outcome of one HTTP fetch.
type FetchResult struct {
	// FinalURL is the URL after redirects.
	FinalURL string

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// Body is the response body, capped at MaxFetchBodyBytes.
	Body []byte

	// ContentType is the Content-Type header of the final response.
	ContentType string

	// Duration is the wall time of the fetch.
	Duration time.Duration
}

// Fetcher retrieves pages over HTTP with the crawler user agent.
type Fetcher interface {
	// Fetch performs a GET with redirect following and a body cap.
	// Transport-level failures return an error; HTTP error statuses return
	// a result with the status code set.
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// ExtractedPage is the parse output for one fetched page.
type ExtractedPage struct {
	Title string

	// Text is the cleaned body text: scripts, styles, and chrome elements
	// stripped, whitespace collapsed, capped at MaxContentBytes.
	Text string

	// Links are outbound http(s) anchors resolved to absolute URLs, with
	// media extensions dropped.
	Links []DiscoveredURL
}

// Extractor parses HTML into title, cleaned text, and outbound links.
type Extractor interface {
	Extract(html string, baseURL string) (*ExtractedPage, error)
}

// Tokenizer splits text into stemmed, stop-word-free terms.
type Tokenizer interface {
	// Tokenize returns the term sequence of the input. Input is capped at
	// MaxTokenizeBytes; output at MaxTokens distinct terms.
	Tokenize(text string) []string

	// Terms returns the distinct terms of the input in first-seen order.
	// Indexed documents store this set rather than the full sequence.
	Terms(text string) []string
}
