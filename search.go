package trawl

import (
	"context"
	"time"
)

// Query limits.
const (
	MaxQueryLength    = 500
	DefaultPageSize   = 10
	MaxPageSize       = 50
	MaxDomainPerTop10 = 3
)

// Sort orders for search results.
const (
	SortRelevance = "relevance"
	SortDate      = "date"
	SortPageRank  = "pagerank"
)

// SearchRequest is a parsed query-service request.
type SearchRequest struct {
	Query string `json:"query"`
	Page  int    `json:"page"`
	Size  int    `json:"size"`
	Sort  string `json:"sort"`
}

// Validate returns an error if the request contains invalid fields.
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return Errorf(EINVALID, "query required")
	}
	if len(r.Query) > MaxQueryLength {
		return Errorf(EINVALID, "query exceeds %d characters", MaxQueryLength)
	}
	switch r.Sort {
	case "", SortRelevance, SortDate, SortPageRank:
	default:
		return Errorf(EINVALID, "unknown sort %q", r.Sort)
	}
	return nil
}

// SearchResult is one ranked answer.
type SearchResult struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet"`
	Score       float64   `json:"score"`
	LastCrawled time.Time `json:"lastCrawled"`
}

// SearchResponse is the full query-service answer.
type SearchResponse struct {
	Query           string          `json:"query"`
	TotalResults    int64           `json:"totalResults"`
	Page            int             `json:"page"`
	Size            int             `json:"size"`
	Results         []*SearchResult `json:"results"`
	CorrectedQuery  string          `json:"correctedQuery,omitempty"`
	DidYouMean      string          `json:"didYouMean,omitempty"`
	RelatedSearches []string        `json:"relatedSearches"`
	ExecutionTimeMs int64           `json:"executionTimeMs"`
}

// QueryIntent classifies what the user is after.
type QueryIntent string

// Query intents.
const (
	IntentQuestion        QueryIntent = "question"
	IntentTutorial        QueryIntent = "tutorial"
	IntentDocumentation   QueryIntent = "documentation"
	IntentTroubleshooting QueryIntent = "troubleshooting"
	IntentGeneral         QueryIntent = "general"
)

// Searcher serves ranked answers.
type Searcher interface {
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)

	// Suggest returns up to limit distinct title-prefix completions.
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)
}
