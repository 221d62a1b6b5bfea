package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/fwojciec/trawl"
)

// Compile-time interface verification.
var _ trawl.URLStore = (*URLStore)(nil)

// URLStore implements trawl.URLStore using SQLite.
type URLStore struct {
	db *DB
}

// NewURLStore creates a new URLStore.
func NewURLStore(db *DB) *URLStore {
	return &URLStore{db: db}
}

// CreateURL inserts a record. Returns ECONFLICT if a record with the same
// hash already exists.
func (s *URLStore) CreateURL(ctx context.Context, rec *trawl.URLRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.Status == "" {
		rec.Status = trawl.StatusPending
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_urls (url_hash, raw_url, normalized_url, domain, depth, priority, status, retry_count, last_attempt, next_eligible, source_url, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url_hash) DO NOTHING
	`, rec.URLHash, rec.RawURL, rec.NormalizedURL, rec.Domain, rec.Depth, rec.Priority,
		string(rec.Status), rec.RetryCount, formatTime(rec.LastAttempt),
		formatTime(rec.NextEligible), rec.SourceURL, rec.Error)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return trawl.Errorf(trawl.ECONFLICT, "url already tracked")
	}
	return nil
}

// FindURLByHash retrieves a record. Returns ENOTFOUND if absent.
func (s *URLStore) FindURLByHash(ctx context.Context, urlHash string) (*trawl.URLRecord, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT url_hash, raw_url, normalized_url, domain, depth, priority, status, retry_count, last_attempt, next_eligible, source_url, error
		FROM crawl_urls
		WHERE url_hash = ?
	`, urlHash))
}

// UpdateStatusCAS transitions a record from one status to another. The
// transition and the field updates are applied in one transaction guarded
// by the status predicate, so concurrent claimants cannot both win.
func (s *URLStore) UpdateStatusCAS(ctx context.Context, urlHash string, from, to trawl.URLStatus, update func(*trawl.URLRecord)) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rec, err := s.scanOne(tx.QueryRowContext(ctx, `
		SELECT url_hash, raw_url, normalized_url, domain, depth, priority, status, retry_count, last_attempt, next_eligible, source_url, error
		FROM crawl_urls
		WHERE url_hash = ?
	`, urlHash))
	if err != nil {
		return err
	}
	if rec.Status != from {
		return trawl.Errorf(trawl.ECONFLICT, "url is %s, expected %s", rec.Status, from)
	}

	rec.Status = to
	if update != nil {
		update(rec)
	}
	rec.Status = to // the closure may not override the transition

	res, err := tx.ExecContext(ctx, `
		UPDATE crawl_urls
		SET status = ?, priority = ?, retry_count = ?, last_attempt = ?, next_eligible = ?, error = ?
		WHERE url_hash = ? AND status = ?
	`, string(rec.Status), rec.Priority, rec.RetryCount, formatTime(rec.LastAttempt),
		formatTime(rec.NextEligible), rec.Error, urlHash, string(from))
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return trawl.Errorf(trawl.ECONFLICT, "url left %s concurrently", from)
	}

	return tx.Commit()
}

// FindRetryable returns FAILED records with retry count below max whose
// last attempt is older than the cutoff.
func (s *URLStore) FindRetryable(ctx context.Context, cutoff time.Time, limit int) ([]*trawl.URLRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url_hash, raw_url, normalized_url, domain, depth, priority, status, retry_count, last_attempt, next_eligible, source_url, error
		FROM crawl_urls
		WHERE status = ? AND retry_count < ? AND last_attempt < ?
		ORDER BY last_attempt ASC
		LIMIT ?
	`, string(trawl.StatusFailed), trawl.MaxRetries, formatTime(cutoff), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanAll(rows)
}

// FindStaleInProgress returns IN_PROGRESS records whose last attempt is
// older than the cutoff.
func (s *URLStore) FindStaleInProgress(ctx context.Context, cutoff time.Time, limit int) ([]*trawl.URLRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url_hash, raw_url, normalized_url, domain, depth, priority, status, retry_count, last_attempt, next_eligible, source_url, error
		FROM crawl_urls
		WHERE status = ? AND last_attempt < ?
		ORDER BY last_attempt ASC
		LIMIT ?
	`, string(trawl.StatusInProgress), formatTime(cutoff), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanAll(rows)
}

// CountByStatus aggregates record counts by status.
func (s *URLStore) CountByStatus(ctx context.Context) (map[trawl.URLStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM crawl_urls GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[trawl.URLStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[trawl.URLStatus(status)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *URLStore) scanRecord(row rowScanner) (*trawl.URLRecord, error) {
	var rec trawl.URLRecord
	var status, lastAttempt, nextEligible string

	err := row.Scan(&rec.URLHash, &rec.RawURL, &rec.NormalizedURL, &rec.Domain,
		&rec.Depth, &rec.Priority, &status, &rec.RetryCount, &lastAttempt,
		&nextEligible, &rec.SourceURL, &rec.Error)
	if err != nil {
		return nil, err
	}

	rec.Status = trawl.URLStatus(status)
	if rec.LastAttempt, err = parseRFC3339(lastAttempt, "last_attempt"); err != nil {
		return nil, err
	}
	if rec.NextEligible, err = parseRFC3339(nextEligible, "next_eligible"); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *URLStore) scanOne(row *sql.Row) (*trawl.URLRecord, error) {
	rec, err := s.scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, trawl.Errorf(trawl.ENOTFOUND, "url not found")
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *URLStore) scanAll(rows *sql.Rows) ([]*trawl.URLRecord, error) {
	var recs []*trawl.URLRecord
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
