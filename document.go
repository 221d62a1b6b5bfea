package trawl

import (
	"context"
	"time"
)

// Document size bounds applied at index time.
const (
	MaxContentBytes  = 100 << 10 // cleaned body cap
	MaxTokenizeBytes = 50 << 10  // tokenizer input cap
	MaxTokens        = 10000     // distinct tokens per document
	MaxSnippetChars  = 200
)

// Document is an indexed page. Keyed by the SHA-256 of the canonical URL.
type Document struct {
	ID               string    `json:"id"`
	URL              string    `json:"url"`
	Title            string    `json:"title"`
	Snippet          string    `json:"snippet"`
	Content          string    `json:"content"`
	Tokens           []string  `json:"tokens"`
	OutboundLinks    []string  `json:"outboundLinks"`
	Domain           string    `json:"domain"`
	CrawlDepth       int       `json:"crawlDepth"`
	LastCrawled      time.Time `json:"lastCrawled"`
	LastIndexed      time.Time `json:"lastIndexed"`
	ContentLength    int       `json:"contentLength"`
	Fingerprint      uint64    `json:"fingerprint"`
	PageRank         float64   `json:"pageRank"`
	InboundLinkCount int       `json:"inboundLinkCount"`
}

// Validate returns an error if the document contains invalid fields.
func (d *Document) Validate() error {
	if d.ID == "" {
		return Errorf(EINVALID, "document ID required")
	}
	if d.URL == "" {
		return Errorf(EINVALID, "document URL required")
	}
	if len(d.Tokens) > MaxTokens {
		return Errorf(EINVALID, "token set exceeds %d terms", MaxTokens)
	}
	return nil
}

// IndexQuery is a composed ranked query against the inverted index.
type IndexQuery struct {
	// Terms of the corrected, normalized query. Matched against title,
	// tokens, and content with field boosts.
	Terms []string

	// Synonyms are secondary disjuncts matched at half the main weight.
	Synonyms []string

	// MustDomains, when non-empty, restricts hits to these domains.
	MustDomains []string

	// Sort is one of "relevance", "date", "pagerank".
	Sort string

	// From/Size paging window applied after scoring.
	From int
	Size int
}

// IndexHit is one scored hit from the inverted index.
type IndexHit struct {
	Document  *Document
	TextScore float64
	Fragments map[string][]string // field -> highlighted fragments
}

// Index is the inverted-index store.
type Index interface {
	// PutDocument creates or fully replaces a document. Writes are
	// idempotent on (URL, content).
	PutDocument(ctx context.Context, doc *Document) error

	// FindDocumentByID retrieves a stored document. Returns ENOTFOUND if
	// absent.
	FindDocumentByID(ctx context.Context, id string) (*Document, error)

	// DeleteDocument removes a document.
	DeleteDocument(ctx context.Context, id string) error

	// Search runs a ranked query and returns hits with text scores and
	// highlight fragments, plus the total match count.
	Search(ctx context.Context, q IndexQuery) ([]*IndexHit, int64, error)

	// Suggest returns up to limit distinct titles with the given prefix.
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)

	// UpdateRank rewrites the pageRank and inboundLinkCount fields of a
	// stored document, leaving everything else intact.
	UpdateRank(ctx context.Context, id string, rank float64, inbound int) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int64, error)
}

// RankRecord is the persisted output of a PageRank run for one URL.
// Scores lie in [0,1] and sum to 1 (±ε) after each full recomputation.
type RankRecord struct {
	URL          string    `json:"url"`
	Score        float64   `json:"score"`
	Inbound      int       `json:"inbound"`
	Outbound     int       `json:"outbound"`
	CalculatedAt time.Time `json:"calculatedAt"`
}

// RankStore persists PageRank scores. The PageRank job is the only writer.
type RankStore interface {
	// ReplaceAll atomically replaces the rank table with a fresh run.
	ReplaceAll(ctx context.Context, records []*RankRecord, at time.Time) error

	// FindRank retrieves the score for a URL. Returns ENOTFOUND if the URL
	// was not part of the last run.
	FindRank(ctx context.Context, url string) (*RankRecord, error)
}

// FingerprintStore keeps SimHash fingerprints for duplicate lookup.
// Entries expire after a configurable number of days.
type FingerprintStore interface {
	// PutFingerprint stores the fingerprint for a document.
	PutFingerprint(ctx context.Context, docID string, url string, fp uint64) error

	// WalkFingerprints calls fn for every live fingerprint.
	WalkFingerprints(ctx context.Context, fn func(docID, url string, fp uint64) error) error
}
