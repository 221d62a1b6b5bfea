package mock

import (
	"context"

	"github.com/fwojciec/trawl"
)

var _ trawl.Deduper = (*Deduper)(nil)

// Deduper is a mock implementation of trawl.Deduper.
type Deduper struct {
	FingerprintFn   func(text string) uint64
	FindDuplicateFn func(ctx context.Context, fp uint64, selfURL string) (*trawl.DuplicateMatch, error)
}

func (d *Deduper) Fingerprint(text string) uint64 {
	return d.FingerprintFn(text)
}

func (d *Deduper) FindDuplicate(ctx context.Context, fp uint64, selfURL string) (*trawl.DuplicateMatch, error) {
	return d.FindDuplicateFn(ctx, fp, selfURL)
}
