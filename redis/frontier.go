package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/fwojciec/trawl"
)

// Compile-time interface verification.
var _ trawl.Frontier = (*Frontier)(nil)

// frontierKey is the sorted set holding pending URLs scored by priority.
const frontierKey = "frontier:urls"

// Frontier implements trawl.Frontier as a Redis sorted set.
type Frontier struct {
	client *Client
}

// NewFrontier creates a Frontier on the client.
func NewFrontier(client *Client) *Frontier {
	return &Frontier{client: client}
}

// Add inserts or re-scores an entry.
func (f *Frontier) Add(ctx context.Context, entry trawl.FrontierEntry) error {
	if entry.URL == "" {
		return trawl.Errorf(trawl.EINVALID, "frontier entry URL required")
	}
	return f.client.rdb.ZAdd(ctx, frontierKey, redis.Z{
		Score:  entry.Score,
		Member: entry.URL,
	}).Err()
}

// PopMax removes and returns up to n highest-scoring entries. ZPOPMAX is
// atomic, so concurrent scheduler replicas never pop the same entry.
func (f *Frontier) PopMax(ctx context.Context, n int) ([]trawl.FrontierEntry, error) {
	popped, err := f.client.rdb.ZPopMax(ctx, frontierKey, int64(n)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]trawl.FrontierEntry, 0, len(popped))
	for _, z := range popped {
		url, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, trawl.FrontierEntry{URL: url, Score: z.Score})
	}
	return entries, nil
}

// Len returns the number of resident entries.
func (f *Frontier) Len(ctx context.Context) (int64, error) {
	return f.client.rdb.ZCard(ctx, frontierKey).Result()
}

// Walk calls fn for every resident entry via cursor iteration.
func (f *Frontier) Walk(ctx context.Context, fn func(trawl.FrontierEntry) error) error {
	var cursor uint64
	for {
		pairs, next, err := f.client.rdb.ZScan(ctx, frontierKey, cursor, "", 500).Result()
		if err != nil {
			return err
		}

		// ZSCAN yields alternating member and score strings.
		for i := 0; i+1 < len(pairs); i += 2 {
			score, err := strconv.ParseFloat(pairs[i+1], 64)
			if err != nil {
				return fmt.Errorf("failed to parse frontier score: %w", err)
			}
			if err := fn(trawl.FrontierEntry{URL: pairs[i], Score: score}); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
