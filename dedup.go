package trawl

import "context"

// MinDedupContentChars is the content length below which deduplication is
// skipped; such documents fingerprint to zero.
const MinDedupContentChars = 100

// DuplicateMatch identifies the stored near-duplicate of a candidate
// document.
type DuplicateMatch struct {
	DocID    string
	URL      string
	Distance int
}

// Deduper detects near-duplicate content via SimHash fingerprints.
type Deduper interface {
	// Fingerprint computes the 64-bit SimHash of cleaned text. Content
	// shorter than MinDedupContentChars fingerprints to zero.
	Fingerprint(text string) uint64

	// FindDuplicate scans stored fingerprints for one within the Hamming
	// threshold, excluding selfURL. Returns ENOTFOUND when no near
	// duplicate exists.
	FindDuplicate(ctx context.Context, fp uint64, selfURL string) (*DuplicateMatch, error)
}
