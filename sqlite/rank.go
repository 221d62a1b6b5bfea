package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/fwojciec/trawl"
)

// Compile-time interface verification.
var _ trawl.RankStore = (*RankStore)(nil)

// RankStore implements trawl.RankStore using SQLite.
type RankStore struct {
	db *DB
}

// NewRankStore creates a new RankStore.
func NewRankStore(db *DB) *RankStore {
	return &RankStore{db: db}
}

// ReplaceAll atomically replaces the rank table with a fresh run. Readers
// see either the previous run or the new one, never a mix.
func (s *RankStore) ReplaceAll(ctx context.Context, records []*trawl.RankRecord, at time.Time) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM page_rank"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO page_rank (url, score, inbound, outbound, calculated_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	calculatedAt := formatTime(at)
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.URL, rec.Score, rec.Inbound, rec.Outbound, calculatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// FindRank retrieves the score for a URL. Returns ENOTFOUND if the URL was
// not part of the last run.
func (s *RankStore) FindRank(ctx context.Context, url string) (*trawl.RankRecord, error) {
	var rec trawl.RankRecord
	var calculatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT url, score, inbound, outbound, calculated_at
		FROM page_rank
		WHERE url = ?
	`, url).Scan(&rec.URL, &rec.Score, &rec.Inbound, &rec.Outbound, &calculatedAt)

	if err == sql.ErrNoRows {
		return nil, trawl.Errorf(trawl.ENOTFOUND, "no rank for url")
	}
	if err != nil {
		return nil, err
	}

	if rec.CalculatedAt, err = parseRFC3339(calculatedAt, "calculated_at"); err != nil {
		return nil, err
	}
	return &rec, nil
}
