package trawl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// URLStatus describes where a URL is in its crawl lifecycle. Transitions
// form a DAG with a retry edge: FAILED moves back to PENDING while the
// retry count is below the maximum.
type URLStatus string

// URL lifecycle states.
const (
	StatusPending    URLStatus = "PENDING"
	StatusInProgress URLStatus = "IN_PROGRESS"
	StatusCompleted  URLStatus = "COMPLETED"
	StatusFailed     URLStatus = "FAILED"
	StatusBlocked    URLStatus = "BLOCKED"
)

// MaxRetries is the number of times a FAILED URL is returned to PENDING
// before it becomes terminal.
const MaxRetries = 3

// HashURL returns the hex SHA-256 of a normalized URL. It keys URL records
// and index documents.
func HashURL(normalizedURL string) string {
	sum := sha256.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(sum[:])
}

// URLRecord tracks a single URL through the crawl. Exactly one record
// exists per URLHash.
type URLRecord struct {
	URLHash       string    `json:"urlHash"`
	RawURL        string    `json:"rawUrl"`
	NormalizedURL string    `json:"normalizedUrl"`
	Domain        string    `json:"domain"`
	Depth         int       `json:"depth"`
	Priority      float64   `json:"priority"`
	Status        URLStatus `json:"status"`
	RetryCount    int       `json:"retryCount"`
	LastAttempt   time.Time `json:"lastAttempt"`
	NextEligible  time.Time `json:"nextEligible"`
	SourceURL     string    `json:"sourceUrl"`
	Error         string    `json:"error"`
}

// Validate returns an error if the record contains invalid fields.
func (r *URLRecord) Validate() error {
	if r.URLHash == "" {
		return Errorf(EINVALID, "url hash required")
	}
	if r.NormalizedURL == "" {
		return Errorf(EINVALID, "normalized url required")
	}
	if r.Domain == "" {
		return Errorf(EINVALID, "domain required")
	}
	return nil
}

// URLStore persists URL records in the relational store.
//
// Status mutations use compare-and-set on the current status so that
// multiple scheduler and worker replicas never double-claim a URL.
type URLStore interface {
	// CreateURL inserts a record. Returns ECONFLICT if a record with the
	// same hash already exists.
	CreateURL(ctx context.Context, rec *URLRecord) error

	// FindURLByHash retrieves a record. Returns ENOTFOUND if absent.
	FindURLByHash(ctx context.Context, urlHash string) (*URLRecord, error)

	// UpdateStatusCAS transitions a record from one status to another.
	// Returns ECONFLICT if the record is no longer in the expected status.
	// The update closure mutates the remaining fields while the transition
	// is applied.
	UpdateStatusCAS(ctx context.Context, urlHash string, from, to URLStatus, update func(*URLRecord)) error

	// FindRetryable returns FAILED records with retry count below max whose
	// last attempt is older than the cutoff.
	FindRetryable(ctx context.Context, cutoff time.Time, limit int) ([]*URLRecord, error)

	// FindStaleInProgress returns IN_PROGRESS records whose last attempt is
	// older than the cutoff, for re-queueing after worker crashes.
	FindStaleInProgress(ctx context.Context, cutoff time.Time, limit int) ([]*URLRecord, error)

	// CountByStatus aggregates record counts by status.
	CountByStatus(ctx context.Context) (map[URLStatus]int64, error)
}

// Edge is one link in the crawl graph. Edges are immutable once inserted;
// multi-edges are collapsed by (source, target).
type Edge struct {
	SourceURL  string    `json:"sourceUrl"`
	TargetURL  string    `json:"targetUrl"`
	AnchorText string    `json:"anchorText"`
	FirstSeen  time.Time `json:"firstSeen"`
}

// EdgeStore persists the link graph.
type EdgeStore interface {
	// CreateEdge inserts an edge; duplicate (source, target) pairs are
	// silently collapsed into the first insertion.
	CreateEdge(ctx context.Context, e *Edge) error

	// WalkEdges calls fn for every stored edge. PageRank uses this to build
	// its in-memory graph; iteration order is unspecified.
	WalkEdges(ctx context.Context, fn func(*Edge) error) error

	// CountInbound returns the number of distinct sources linking to a URL.
	CountInbound(ctx context.Context, targetURL string) (int, error)
}

// DomainRecord holds per-domain politeness settings and aggregate counters.
// Created on first sighting, never destroyed.
type DomainRecord struct {
	Domain        string    `json:"domain"`
	CrawlDelayMs  int64     `json:"crawlDelayMs"`
	MaxConcurrent int       `json:"maxConcurrent"`
	Blocked       bool      `json:"blocked"`
	Attempts      int64     `json:"attempts"`
	Successes     int64     `json:"successes"`
	Failures      int64     `json:"failures"`
	LastCrawl     time.Time `json:"lastCrawl"`
}

// DomainStore persists domain metadata.
type DomainStore interface {
	// EnsureDomain creates the record on first sighting and returns it.
	EnsureDomain(ctx context.Context, domain string) (*DomainRecord, error)

	// FindDomain retrieves a record. Returns ENOTFOUND if absent.
	FindDomain(ctx context.Context, domain string) (*DomainRecord, error)

	// RecordAttempt bumps the attempt counter and, on success, the success
	// counter and last-crawl time; otherwise the failure counter.
	RecordAttempt(ctx context.Context, domain string, success bool, at time.Time) error

	// SetCrawlDelay records the domain's effective robots.txt Crawl-delay.
	SetCrawlDelay(ctx context.Context, domain string, delay time.Duration) error

	// SetBlocked flips the administrative blocked flag.
	SetBlocked(ctx context.Context, domain string, blocked bool) error
}
