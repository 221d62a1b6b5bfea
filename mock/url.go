package mock

import (
	"context"
	"time"

	"github.com/fwojciec/trawl"
)

var _ trawl.URLStore = (*URLStore)(nil)

// URLStore is a mock implementation of trawl.URLStore.
type URLStore struct {
	CreateURLFn           func(ctx context.Context, rec *trawl.URLRecord) error
	FindURLByHashFn       func(ctx context.Context, urlHash string) (*trawl.URLRecord, error)
	UpdateStatusCASFn     func(ctx context.Context, urlHash string, from, to trawl.URLStatus, update func(*trawl.URLRecord)) error
	FindRetryableFn       func(ctx context.Context, cutoff time.Time, limit int) ([]*trawl.URLRecord, error)
	FindStaleInProgressFn func(ctx context.Context, cutoff time.Time, limit int) ([]*trawl.URLRecord, error)
	CountByStatusFn       func(ctx context.Context) (map[trawl.URLStatus]int64, error)
}

func (s *URLStore) CreateURL(ctx context.Context, rec *trawl.URLRecord) error {
	return s.CreateURLFn(ctx, rec)
}

func (s *URLStore) FindURLByHash(ctx context.Context, urlHash string) (*trawl.URLRecord, error) {
	return s.FindURLByHashFn(ctx, urlHash)
}

func (s *URLStore) UpdateStatusCAS(ctx context.Context, urlHash string, from, to trawl.URLStatus, update func(*trawl.URLRecord)) error {
	return s.UpdateStatusCASFn(ctx, urlHash, from, to, update)
}

func (s *URLStore) FindRetryable(ctx context.Context, cutoff time.Time, limit int) ([]*trawl.URLRecord, error) {
	return s.FindRetryableFn(ctx, cutoff, limit)
}

func (s *URLStore) FindStaleInProgress(ctx context.Context, cutoff time.Time, limit int) ([]*trawl.URLRecord, error) {
	return s.FindStaleInProgressFn(ctx, cutoff, limit)
}

func (s *URLStore) CountByStatus(ctx context.Context) (map[trawl.URLStatus]int64, error) {
	return s.CountByStatusFn(ctx)
}

var _ trawl.EdgeStore = (*EdgeStore)(nil)

// EdgeStore is a mock implementation of trawl.EdgeStore.
type EdgeStore struct {
	CreateEdgeFn   func(ctx context.Context, e *trawl.Edge) error
	WalkEdgesFn    func(ctx context.Context, fn func(*trawl.Edge) error) error
	CountInboundFn func(ctx context.Context, targetURL string) (int, error)
}

func (s *EdgeStore) CreateEdge(ctx context.Context, e *trawl.Edge) error {
	return s.CreateEdgeFn(ctx, e)
}

func (s *EdgeStore) WalkEdges(ctx context.Context, fn func(*trawl.Edge) error) error {
	return s.WalkEdgesFn(ctx, fn)
}

func (s *EdgeStore) CountInbound(ctx context.Context, targetURL string) (int, error) {
	return s.CountInboundFn(ctx, targetURL)
}

var _ trawl.DomainStore = (*DomainStore)(nil)

// DomainStore is a mock implementation of trawl.DomainStore.
type DomainStore struct {
	EnsureDomainFn  func(ctx context.Context, domain string) (*trawl.DomainRecord, error)
	FindDomainFn    func(ctx context.Context, domain string) (*trawl.DomainRecord, error)
	RecordAttemptFn func(ctx context.Context, domain string, success bool, at time.Time) error
	SetCrawlDelayFn func(ctx context.Context, domain string, delay time.Duration) error
	SetBlockedFn    func(ctx context.Context, domain string, blocked bool) error
}

func (s *DomainStore) EnsureDomain(ctx context.Context, domain string) (*trawl.DomainRecord, error) {
	return s.EnsureDomainFn(ctx, domain)
}

func (s *DomainStore) FindDomain(ctx context.Context, domain string) (*trawl.DomainRecord, error) {
	return s.FindDomainFn(ctx, domain)
}

func (s *DomainStore) RecordAttempt(ctx context.Context, domain string, success bool, at time.Time) error {
	return s.RecordAttemptFn(ctx, domain, success, at)
}

func (s *DomainStore) SetCrawlDelay(ctx context.Context, domain string, delay time.Duration) error {
	return s.SetCrawlDelayFn(ctx, domain, delay)
}

func (s *DomainStore) SetBlocked(ctx context.Context, domain string, blocked bool) error {
	return s.SetBlockedFn(ctx, domain, blocked)
}
