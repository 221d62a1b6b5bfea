// Package bleve provides the inverted index: document storage, ranked
// search with field boosts, highlighting, and title suggestions.
package bleve

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/fwojciec/trawl"
)

// Compile-time interface verification.
var _ trawl.Index = (*Index)(nil)

// Field boosts for ranked queries. Title matches dominate, exact token
// matches sit between title and body text.
const (
	titleBoost   = 3.0
	tokensBoost  = 2.0
	contentBoost = 1.0

	// Synonym disjuncts score at half the main weight.
	synonymFactor = 0.5
)

// Index implements trawl.Index using a bleve inverted index.
type Index struct {
	idx  bleve.Index
	path string
}

// NewIndex creates an Index instance backed by the given path.
func NewIndex(path string) *Index {
	return &Index{path: path}
}

// Open opens the index, creating it with the web-page mapping on first
// use.
func (i *Index) Open() error {
	idx, err := bleve.Open(i.path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(i.path, buildMapping())
	}
	if err != nil {
		return err
	}
	i.idx = idx
	return nil
}

// NewMemOnlyIndex creates an in-memory Index for tests.
func NewMemOnlyIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, err
	}
	return &Index{idx: idx}, nil
}

// Close closes the index.
func (i *Index) Close() error {
	if i.idx != nil {
		return i.idx.Close()
	}
	return nil
}

// indexDoc is the flattened shape handed to bleve. Raw carries the full
// document JSON as a stored field so hits can be rehydrated.
type indexDoc struct {
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Tokens        []string  `json:"tokens"`
	Domain        string    `json:"domain"`
	OutboundLinks []string  `json:"outboundLinks"`
	PageRank      float64   `json:"pageRank"`
	LastCrawled   time.Time `json:"lastCrawled"`
	Raw           string    `json:"raw"`
}

func buildMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName
	text.Store = true
	text.IncludeTermVectors = true

	kw := bleve.NewKeywordFieldMapping()
	kw.Analyzer = keyword.Name

	numeric := bleve.NewNumericFieldMapping()
	date := bleve.NewDateTimeFieldMapping()

	raw := bleve.NewTextFieldMapping()
	raw.Index = false
	raw.Store = true
	raw.IncludeInAll = false

	page := bleve.NewDocumentMapping()
	page.AddFieldMappingsAt("title", text)
	page.AddFieldMappingsAt("content", text)
	page.AddFieldMappingsAt("tokens", kw)
	page.AddFieldMappingsAt("domain", kw)
	page.AddFieldMappingsAt("outboundLinks", kw)
	page.AddFieldMappingsAt("pageRank", numeric)
	page.AddFieldMappingsAt("lastCrawled", date)
	page.AddFieldMappingsAt("raw", raw)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = page
	return m
}

// PutDocument creates or fully replaces a document.
func (i *Index) PutDocument(ctx context.Context, doc *trawl.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	return i.idx.Index(doc.ID, indexDoc{
		Title:         doc.Title,
		Content:       doc.Content,
		Tokens:        doc.Tokens,
		Domain:        doc.Domain,
		OutboundLinks: doc.OutboundLinks,
		PageRank:      doc.PageRank,
		LastCrawled:   doc.LastCrawled,
		Raw:           string(raw),
	})
}

// FindDocumentByID retrieves a stored document. Returns ENOTFOUND if
// absent.
func (i *Index) FindDocumentByID(ctx context.Context, id string) (*trawl.Document, error) {
	req := bleve.NewSearchRequest(query.NewDocIDQuery([]string{id}))
	req.Fields = []string{"raw"}

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(res.Hits) == 0 {
		return nil, trawl.Errorf(trawl.ENOTFOUND, "document not found")
	}
	return decodeRaw(res.Hits[0].Fields)
}

// DeleteDocument removes a document.
func (i *Index) DeleteDocument(ctx context.Context, id string) error {
	return i.idx.Delete(id)
}

// Search runs a ranked query and returns hits with text scores and
// highlight fragments, plus the total match count.
func (i *Index) Search(ctx context.Context, q trawl.IndexQuery) ([]*trawl.IndexHit, int64, error) {
	if len(q.Terms) == 0 {
		return nil, 0, trawl.Errorf(trawl.EINVALID, "query terms required")
	}

	size := q.Size
	if size <= 0 {
		size = trawl.DefaultPageSize
	}

	req := bleve.NewSearchRequestOptions(buildQuery(q), size, q.From, false)
	req.Fields = []string{"raw"}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("content")

	switch q.Sort {
	case trawl.SortDate:
		req.SortBy([]string{"-lastCrawled", "-_score"})
	case trawl.SortPageRank:
		req.SortBy([]string{"-pageRank", "-_score"})
	default:
		req.SortBy([]string{"-_score"})
	}

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	hits := make([]*trawl.IndexHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		doc, err := decodeRaw(h.Fields)
		if err != nil {
			return nil, 0, err
		}
		hits = append(hits, &trawl.IndexHit{
			Document:  doc,
			TextScore: h.Score,
			Fragments: h.Fragments,
		})
	}
	return hits, int64(res.Total), nil
}

// buildQuery composes the ranked disjunction: every term matches title,
// tokens, or content with field boosts; synonyms join at half weight;
// domain restrictions become a conjunct.
func buildQuery(q trawl.IndexQuery) query.Query {
	var disjuncts []query.Query
	for _, term := range q.Terms {
		disjuncts = append(disjuncts, termDisjunct(term, 1.0))
	}
	for _, syn := range q.Synonyms {
		disjuncts = append(disjuncts, termDisjunct(syn, synonymFactor))
	}
	text := bleve.NewDisjunctionQuery(disjuncts...)

	if len(q.MustDomains) == 0 {
		return text
	}

	var domains []query.Query
	for _, d := range q.MustDomains {
		tq := bleve.NewTermQuery(d)
		tq.SetField("domain")
		domains = append(domains, tq)
	}
	return bleve.NewConjunctionQuery(text, bleve.NewDisjunctionQuery(domains...))
}

func termDisjunct(term string, factor float64) query.Query {
	title := bleve.NewMatchQuery(term)
	title.SetField("title")
	title.SetBoost(titleBoost * factor)

	tokens := bleve.NewTermQuery(term)
	tokens.SetField("tokens")
	tokens.SetBoost(tokensBoost * factor)

	content := bleve.NewMatchQuery(term)
	content.SetField("content")
	content.SetBoost(contentBoost * factor)

	return bleve.NewDisjunctionQuery(title, tokens, content)
}

// Suggest returns up to limit distinct titles with the given prefix.
func (i *Index) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	if prefix == "" || limit <= 0 {
		return nil, nil
	}

	pq := bleve.NewPrefixQuery(strings.ToLower(prefix))
	pq.SetField("title")

	// Over-fetch so deduplication by title still fills the limit.
	req := bleve.NewSearchRequestOptions(pq, limit*3, 0, false)
	req.Fields = []string{"raw"}

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var titles []string
	for _, h := range res.Hits {
		doc, err := decodeRaw(h.Fields)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(doc.Title)
		if doc.Title == "" || seen[key] {
			continue
		}
		seen[key] = true
		titles = append(titles, doc.Title)
		if len(titles) >= limit {
			break
		}
	}
	return titles, nil
}

// UpdateRank rewrites the pageRank and inboundLinkCount fields of a
// stored document.
func (i *Index) UpdateRank(ctx context.Context, id string, rank float64, inbound int) error {
	doc, err := i.FindDocumentByID(ctx, id)
	if err != nil {
		return err
	}
	doc.PageRank = rank
	doc.InboundLinkCount = inbound
	return i.PutDocument(ctx, doc)
}

// Count returns the number of stored documents.
func (i *Index) Count(ctx context.Context) (int64, error) {
	n, err := i.idx.DocCount()
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

func decodeRaw(fields map[string]any) (*trawl.Document, error) {
	raw, ok := fields["raw"].(string)
	if !ok {
		return nil, trawl.Errorf(trawl.EINTERNAL, "stored document missing raw field")
	}
	var doc trawl.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
