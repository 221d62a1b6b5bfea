package trawl

import "context"

// FrontierEntry is a pending URL with its strategy-dependent score.
type FrontierEntry struct {
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// Frontier is the persistent priority queue of pending URLs. Backed by a
// sorted set with pop-max semantics; all operations are atomic in the
// store.
type Frontier interface {
	// Add inserts or re-scores an entry.
	Add(ctx context.Context, entry FrontierEntry) error

	// PopMax removes and returns up to n highest-scoring entries.
	PopMax(ctx context.Context, n int) ([]FrontierEntry, error)

	// Len returns the number of resident entries.
	Len(ctx context.Context) (int64, error)

	// Walk calls fn for every resident entry. Used for full re-scores on
	// strategy switches.
	Walk(ctx context.Context, fn func(FrontierEntry) error) error
}

// StrategyName selects a frontier scoring strategy.
type StrategyName string

// Available frontier scoring strategies.
const (
	StrategyBFS       StrategyName = "bfs"
	StrategyBestFirst StrategyName = "best-first"
	StrategyOPIC      StrategyName = "opic"
	StrategyFocused   StrategyName = "focused"
)

// Valid reports whether the name is a known strategy.
func (s StrategyName) Valid() bool {
	switch s {
	case StrategyBFS, StrategyBestFirst, StrategyOPIC, StrategyFocused:
		return true
	}
	return false
}

// SeenFilter is the two-layer URL membership test. The probabilistic layer
// answers "definitely new" cheaply; the exact layer confirms positives.
type SeenFilter interface {
	// Seen reports whether the URL has been admitted before. Fails closed:
	// if the exact layer is unreachable the URL is reported as seen, since
	// skipping a crawl is cheaper than duplicating one.
	Seen(ctx context.Context, normalizedURL string) (bool, error)

	// Add records the URL in both layers.
	Add(ctx context.Context, normalizedURL string) error
}
