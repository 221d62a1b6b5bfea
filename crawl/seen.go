// Package crawl orchestrates the crawl pipeline: URL admission, frontier
// scheduling, politeness, fetching, link discovery, and indexing.
package crawl

import (
	"context"
	"time"

	"github.com/fwojciec/trawl"
	"github.com/fwojciec/trawl/bloom"
)

// Compile-time interface verification.
var _ trawl.SeenFilter = (*SeenFilter)(nil)

// Bloom layer sizing and persistence.
const (
	seenExpectedURLs      = 10_000_000
	seenFalsePositiveRate = 0.01

	bloomSnapshotKey  = "bloom:url-seen"
	bloomSnapshotLock = "bloom-snapshot"

	visitedKeyPrefix = "visited:"
)

// SeenFilter is the two-layer URL membership test: a process-local Bloom
// filter answers "definitely new" without a network hop, and the exact
// set in the shared store confirms positives.
type SeenFilter struct {
	bloom  *bloom.Filter
	kv     trawl.KV
	cache  trawl.Cache
	locker trawl.Locker
}

// NewSeenFilter creates a SeenFilter over the shared store.
func NewSeenFilter(kv trawl.KV, cache trawl.Cache, locker trawl.Locker) *SeenFilter {
	return &SeenFilter{
		bloom:  bloom.NewFilter(seenExpectedURLs, seenFalsePositiveRate),
		kv:     kv,
		cache:  cache,
		locker: locker,
	}
}

// Seen reports whether the URL has been admitted before. Fails closed:
// if the exact layer is unreachable the URL is reported as seen, since
// skipping a crawl is cheaper than duplicating one.
func (s *SeenFilter) Seen(ctx context.Context, normalizedURL string) (bool, error) {
	if !s.bloom.Test(normalizedURL) {
		return false, nil
	}

	// Bloom positive: confirm against the exact set.
	_, err := s.kv.Get(ctx, visitedKeyPrefix+trawl.HashURL(normalizedURL))
	if err == nil {
		return true, nil
	}
	if trawl.ErrorCode(err) == trawl.ENOTFOUND {
		return false, nil
	}
	return true, err
}

// Add records the URL in both layers.
func (s *SeenFilter) Add(ctx context.Context, normalizedURL string) error {
	if err := s.kv.Set(ctx, visitedKeyPrefix+trawl.HashURL(normalizedURL), "1", 0); err != nil {
		return err
	}
	s.bloom.Add(normalizedURL)
	return nil
}

// Restore loads the last persisted Bloom snapshot. A missing snapshot is
// a fresh start, not an error; the exact layer still protects against
// duplicates.
func (s *SeenFilter) Restore(ctx context.Context) error {
	blob, err := s.cache.GetBytes(ctx, bloomSnapshotKey)
	if trawl.ErrorCode(err) == trawl.ENOTFOUND {
		return nil
	}
	if err != nil {
		return err
	}
	return s.bloom.Restore(blob)
}

// Snapshot persists the Bloom bitset under a short lock so concurrent
// replicas do not interleave writes.
func (s *SeenFilter) Snapshot(ctx context.Context) error {
	lease, err := s.locker.Acquire(ctx, bloomSnapshotLock, 30*time.Second)
	if err != nil {
		if trawl.ErrorCode(err) == trawl.ECONFLICT {
			// Another replica is snapshotting.
			return nil
		}
		return err
	}
	defer lease.Release(ctx)

	blob, err := s.bloom.Snapshot()
	if err != nil {
		return err
	}
	return s.cache.SetBytes(ctx, bloomSnapshotKey, blob, 0)
}

// EstimatedCount reports the approximate number of admitted URLs.
func (s *SeenFilter) EstimatedCount() uint {
	return s.bloom.EstimatedCount()
}
