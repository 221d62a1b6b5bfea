package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/fwojciec/trawl"
)

// Compile-time interface verification.
var _ trawl.DomainStore = (*DomainStore)(nil)

// DomainStore implements trawl.DomainStore using SQLite.
type DomainStore struct {
	db *DB
}

// NewDomainStore creates a new DomainStore.
func NewDomainStore(db *DB) *DomainStore {
	return &DomainStore{db: db}
}

// EnsureDomain creates the record on first sighting and returns it.
func (s *DomainStore) EnsureDomain(ctx context.Context, domain string) (*trawl.DomainRecord, error) {
	if domain == "" {
		return nil, trawl.Errorf(trawl.EINVALID, "domain required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO domain_metadata (domain) VALUES (?)
		ON CONFLICT (domain) DO NOTHING
	`, domain)
	if err != nil {
		return nil, err
	}
	return s.FindDomain(ctx, domain)
}

// FindDomain retrieves a record. Returns ENOTFOUND if absent.
func (s *DomainStore) FindDomain(ctx context.Context, domain string) (*trawl.DomainRecord, error) {
	var rec trawl.DomainRecord
	var blocked int
	var lastCrawl string

	err := s.db.QueryRowContext(ctx, `
		SELECT domain, crawl_delay_ms, max_concurrent, blocked, attempts, successes, failures, last_crawl
		FROM domain_metadata
		WHERE domain = ?
	`, domain).Scan(&rec.Domain, &rec.CrawlDelayMs, &rec.MaxConcurrent, &blocked,
		&rec.Attempts, &rec.Successes, &rec.Failures, &lastCrawl)

	if err == sql.ErrNoRows {
		return nil, trawl.Errorf(trawl.ENOTFOUND, "domain not found")
	}
	if err != nil {
		return nil, err
	}

	rec.Blocked = blocked != 0
	if rec.LastCrawl, err = parseRFC3339(lastCrawl, "last_crawl"); err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordAttempt bumps the attempt counter and, on success, the success
// counter and last-crawl time; otherwise the failure counter.
func (s *DomainStore) RecordAttempt(ctx context.Context, domain string, success bool, at time.Time) error {
	if _, err := s.EnsureDomain(ctx, domain); err != nil {
		return err
	}

	if success {
		_, err := s.db.ExecContext(ctx, `
			UPDATE domain_metadata
			SET attempts = attempts + 1, successes = successes + 1, last_crawl = ?
			WHERE domain = ?
		`, formatTime(at), domain)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE domain_metadata
		SET attempts = attempts + 1, failures = failures + 1
		WHERE domain = ?
	`, domain)
	return err
}

// SetCrawlDelay records the domain's effective robots.txt Crawl-delay.
func (s *DomainStore) SetCrawlDelay(ctx context.Context, domain string, delay time.Duration) error {
	if _, err := s.EnsureDomain(ctx, domain); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE domain_metadata SET crawl_delay_ms = ? WHERE domain = ?
	`, delay.Milliseconds(), domain)
	return err
}

// SetBlocked flips the administrative blocked flag.
func (s *DomainStore) SetBlocked(ctx context.Context, domain string, blocked bool) error {
	if _, err := s.EnsureDomain(ctx, domain); err != nil {
		return err
	}
	b := 0
	if blocked {
		b = 1
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE domain_metadata SET blocked = ? WHERE domain = ?
	`, b, domain)
	return err
}
