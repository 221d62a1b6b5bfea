package mock

import (
	"context"
	"time"

	"github.com/fwojciec/trawl"
)

var _ trawl.Index = (*Index)(nil)

// Index is a mock implementation of trawl.Index.
type Index struct {
	PutDocumentFn      func(ctx context.Context, doc *trawl.Document) error
	FindDocumentByIDFn func(ctx context.Context, id string) (*trawl.Document, error)
	DeleteDocumentFn   func(ctx context.Context, id string) error
	SearchFn           func(ctx context.Context, q trawl.IndexQuery) ([]*trawl.IndexHit, int64, error)
	SuggestFn          func(ctx context.Context, prefix string, limit int) ([]string, error)
	UpdateRankFn       func(ctx context.Context, id string, rank float64, inbound int) error
	CountFn            func(ctx context.Context) (int64, error)
}

func (i *Index) PutDocument(ctx context.Context, doc *trawl.Document) error {
	return i.PutDocumentFn(ctx, doc)
}

func (i *Index) FindDocumentByID(ctx context.Context, id string) (*trawl.Document, error) {
	return i.FindDocumentByIDFn(ctx, id)
}

func (i *Index) DeleteDocument(ctx context.Context, id string) error {
	return i.DeleteDocumentFn(ctx, id)
}

func (i *Index) Search(ctx context.Context, q trawl.IndexQuery) ([]*trawl.IndexHit, int64, error) {
	return i.SearchFn(ctx, q)
}

func (i *Index) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	return i.SuggestFn(ctx, prefix, limit)
}

func (i *Index) UpdateRank(ctx context.Context, id string, rank float64, inbound int) error {
	return i.UpdateRankFn(ctx, id, rank, inbound)
}

func (i *Index) Count(ctx context.Context) (int64, error) {
	return i.CountFn(ctx)
}

var _ trawl.RankStore = (*RankStore)(nil)

// RankStore is a mock implementation of trawl.RankStore.
type RankStore struct {
	ReplaceAllFn func(ctx context.Context, records []*trawl.RankRecord, at time.Time) error
	FindRankFn   func(ctx context.Context, url string) (*trawl.RankRecord, error)
}

func (s *RankStore) ReplaceAll(ctx context.Context, records []*trawl.RankRecord, at time.Time) error {
	return s.ReplaceAllFn(ctx, records, at)
}

func (s *RankStore) FindRank(ctx context.Context, url string) (*trawl.RankRecord, error) {
	return s.FindRankFn(ctx, url)
}

var _ trawl.FingerprintStore = (*FingerprintStore)(nil)

// FingerprintStore is a mock implementation of trawl.FingerprintStore.
type FingerprintStore struct {
	PutFingerprintFn   func(ctx context.Context, docID string, url string, fp uint64) error
	WalkFingerprintsFn func(ctx context.Context, fn func(docID, url string, fp uint64) error) error
}

func (s *FingerprintStore) PutFingerprint(ctx context.Context, docID string, url string, fp uint64) error {
	return s.PutFingerprintFn(ctx, docID, url, fp)
}

func (s *FingerprintStore) WalkFingerprints(ctx context.Context, fn func(docID, url string, fp uint64) error) error {
	return s.WalkFingerprintsFn(ctx, fn)
}
