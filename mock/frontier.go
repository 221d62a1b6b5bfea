package mock

import (
	"context"

	"github.com/fwojciec/trawl"
)

var _ trawl.Frontier = (*Frontier)(nil)

// Frontier is a mock implementation of trawl.Frontier.
type Frontier struct {
	AddFn    func(ctx context.Context, entry trawl.FrontierEntry) error
	PopMaxFn func(ctx context.Context, n int) ([]trawl.FrontierEntry, error)
	LenFn    func(ctx context.Context) (int64, error)
	WalkFn   func(ctx context.Context, fn func(trawl.FrontierEntry) error) error
}

func (f *Frontier) Add(ctx context.Context, entry trawl.FrontierEntry) error {
	return f.AddFn(ctx, entry)
}

func (f *Frontier) PopMax(ctx context.Context, n int) ([]trawl.FrontierEntry, error) {
	return f.PopMaxFn(ctx, n)
}

func (f *Frontier) Len(ctx context.Context) (int64, error) {
	return f.LenFn(ctx)
}

func (f *Frontier) Walk(ctx context.Context, fn func(trawl.FrontierEntry) error) error {
	return f.WalkFn(ctx, fn)
}

var _ trawl.SeenFilter = (*SeenFilter)(nil)

// SeenFilter is a mock implementation of trawl.SeenFilter.
type SeenFilter struct {
	SeenFn func(ctx context.Context, normalizedURL string) (bool, error)
	AddFn  func(ctx context.Context, normalizedURL string) error
}

func (f *SeenFilter) Seen(ctx context.Context, normalizedURL string) (bool, error) {
	return f.SeenFn(ctx, normalizedURL)
}

func (f *SeenFilter) Add(ctx context.Context, normalizedURL string) error {
	return f.AddFn(ctx, normalizedURL)
}
