package sqlite

import (
	"context"
	"time"

	"github.com/fwojciec/trawl"
)

// Compile-time interface verification.
var _ trawl.EdgeStore = (*EdgeStore)(nil)

// EdgeStore implements trawl.EdgeStore using SQLite.
type EdgeStore struct {
	db *DB
}

// NewEdgeStore creates a new EdgeStore.
func NewEdgeStore(db *DB) *EdgeStore {
	return &EdgeStore{db: db}
}

// CreateEdge inserts an edge. Duplicate (source, target) pairs collapse
// into the first insertion.
func (s *EdgeStore) CreateEdge(ctx context.Context, e *trawl.Edge) error {
	if e.SourceURL == "" || e.TargetURL == "" {
		return trawl.Errorf(trawl.EINVALID, "edge endpoints required")
	}
	firstSeen := e.FirstSeen
	if firstSeen.IsZero() {
		firstSeen = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO page_links (source_url, target_url, anchor_text, first_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source_url, target_url) DO NOTHING
	`, e.SourceURL, e.TargetURL, e.AnchorText, formatTime(firstSeen))
	return err
}

// WalkEdges calls fn for every stored edge.
func (s *EdgeStore) WalkEdges(ctx context.Context, fn func(*trawl.Edge) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_url, target_url, anchor_text, first_seen FROM page_links
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e trawl.Edge
		var firstSeen string
		if err := rows.Scan(&e.SourceURL, &e.TargetURL, &e.AnchorText, &firstSeen); err != nil {
			return err
		}
		if e.FirstSeen, err = parseRFC3339(firstSeen, "first_seen"); err != nil {
			return err
		}
		if err := fn(&e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountInbound returns the number of distinct sources linking to a URL.
func (s *EdgeStore) CountInbound(ctx context.Context, targetURL string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT source_url) FROM page_links WHERE target_url = ?
	`, targetURL).Scan(&n)
	return n, err
}
