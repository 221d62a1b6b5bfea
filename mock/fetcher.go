package mock

import (
	"context"

	"github.com/fwojciec/trawl"
)

var _ trawl.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of trawl.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) (*trawl.FetchResult, error)
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*trawl.FetchResult, error) {
	return f.FetchFn(ctx, url)
}

var _ trawl.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of trawl.Extractor.
type Extractor struct {
	ExtractFn func(html string, baseURL string) (*trawl.ExtractedPage, error)
}

func (e *Extractor) Extract(html string, baseURL string) (*trawl.ExtractedPage, error) {
	return e.ExtractFn(html, baseURL)
}

var _ trawl.Tokenizer = (*Tokenizer)(nil)

// Tokenizer is a mock implementation of trawl.Tokenizer.
type Tokenizer struct {
	TokenizeFn func(text string) []string
	TermsFn    func(text string) []string
}

func (t *Tokenizer) Tokenize(text string) []string {
	return t.TokenizeFn(text)
}

func (t *Tokenizer) Terms(text string) []string {
	return t.TermsFn(text)
}
