package crawl

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/fwojciec/trawl"
)

// consumerGroupIndex is the bus consumer group of the indexers.
const consumerGroupIndex = "index-workers"

// Indexer consumes index jobs: tokenize, fingerprint, dedup, store. A
// near-duplicate keeps whichever copy ranks higher, breaking ties in
// favor of the earlier crawl.
type Indexer struct {
	index        trawl.Index
	fingerprints trawl.FingerprintStore
	deduper      trawl.Deduper
	tokenizer    trawl.Tokenizer
	ranks        trawl.RankStore
	edges        trawl.EdgeStore
	bus          trawl.Bus
	logger       *slog.Logger

	now func() time.Time
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithIndexerClock overrides the time source. Used by tests.
func WithIndexerClock(now func() time.Time) IndexerOption {
	return func(ix *Indexer) {
		ix.now = now
	}
}

// NewIndexer creates an Indexer.
func NewIndexer(index trawl.Index, fingerprints trawl.FingerprintStore, deduper trawl.Deduper, tokenizer trawl.Tokenizer, ranks trawl.RankStore, edges trawl.EdgeStore, bus trawl.Bus, logger *slog.Logger, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		index:        index,
		fingerprints: fingerprints,
		deduper:      deduper,
		tokenizer:    tokenizer,
		ranks:        ranks,
		edges:        edges,
		bus:          bus,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Run consumes the index-requests topic until ctx is canceled.
func (ix *Indexer) Run(ctx context.Context, consumer string) error {
	return ix.bus.Consume(ctx, trawl.TopicIndexRequests, consumerGroupIndex, consumer, ix.Handle)
}

// Handle processes one index job. Returning nil acknowledges the message.
func (ix *Indexer) Handle(ctx context.Context, msg *trawl.Message) error {
	var job trawl.IndexJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		ix.logger.Error("dropping malformed index job", "error", err)
		return nil
	}

	docID := trawl.HashURL(job.URL)
	fp := ix.deduper.Fingerprint(job.Content)

	if fp != 0 {
		match, err := ix.deduper.FindDuplicate(ctx, fp, job.URL)
		if err != nil && trawl.ErrorCode(err) != trawl.ENOTFOUND {
			return err
		}
		if match != nil {
			keep, err := ix.resolveDuplicate(ctx, docID, job.URL, match)
			if err != nil {
				return err
			}
			if !keep {
				ix.logger.Info("dropped near-duplicate", "url", job.URL, "kept", match.URL, "distance", match.Distance)
				return nil
			}
		}
	}

	doc, err := ix.buildDocument(ctx, docID, &job, fp)
	if err != nil {
		return err
	}
	err = withRetry(ctx, DefaultStoreRetryDelays(), func() error {
		return ix.index.PutDocument(ctx, doc)
	})
	if err != nil {
		return err
	}
	if fp != 0 {
		if err := ix.fingerprints.PutFingerprint(ctx, docID, job.URL, fp); err != nil {
			return err
		}
	}

	ix.logger.Info("indexed", "url", job.URL, "tokens", len(doc.Tokens), "bytes", doc.ContentLength)
	return nil
}

// resolveDuplicate decides between a newcomer and its stored duplicate.
// Returns true when the newcomer should be indexed, in which case the
// stored copy has been removed.
func (ix *Indexer) resolveDuplicate(ctx context.Context, docID, url string, match *trawl.DuplicateMatch) (bool, error) {
	newRank := ix.rankOf(ctx, url)
	oldRank := ix.rankOf(ctx, match.URL)

	// The stored copy was crawled first, so ties keep it.
	if newRank <= oldRank {
		return false, nil
	}

	if err := ix.index.DeleteDocument(ctx, match.DocID); err != nil && trawl.ErrorCode(err) != trawl.ENOTFOUND {
		return false, err
	}
	ix.logger.Info("replaced lower-ranked duplicate", "kept", url, "dropped", match.URL)
	return true, nil
}

func (ix *Indexer) rankOf(ctx context.Context, url string) float64 {
	rec, err := ix.ranks.FindRank(ctx, url)
	if err != nil {
		return 0
	}
	return rec.Score
}

func (ix *Indexer) buildDocument(ctx context.Context, docID string, job *trawl.IndexJob, fp uint64) (*trawl.Document, error) {
	now := ix.now()

	// Re-crawls keep the rank fields from the previous indexing; a fresh
	// PageRank run overwrites them later.
	pageRank := 1.0
	inbound := 0
	if prev, err := ix.index.FindDocumentByID(ctx, docID); err == nil {
		pageRank = prev.PageRank
		inbound = prev.InboundLinkCount
	} else if trawl.ErrorCode(err) != trawl.ENOTFOUND {
		return nil, err
	}
	if n, err := ix.edges.CountInbound(ctx, job.URL); err == nil {
		inbound = n
	}

	doc := &trawl.Document{
		ID:               docID,
		URL:              job.URL,
		Title:            job.Title,
		Snippet:          makeSnippet(job.Content),
		Content:          job.Content,
		Tokens:           ix.tokenizer.Terms(job.Content),
		OutboundLinks:    job.OutboundLinks,
		Domain:           job.Domain,
		CrawlDepth:       job.Depth,
		LastCrawled:      job.CrawledAt,
		LastIndexed:      now,
		ContentLength:    len(job.Content),
		Fingerprint:      fp,
		PageRank:         pageRank,
		InboundLinkCount: inbound,
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// makeSnippet truncates content at a word boundary within the snippet
// budget and marks the cut with an ellipsis.
func makeSnippet(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= trawl.MaxSnippetChars {
		return content
	}

	cut := content[:trawl.MaxSnippetChars]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
