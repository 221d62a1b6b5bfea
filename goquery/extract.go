// Package goquery provides HTML parsing for the fetch pipeline: title,
// cleaned body text, and outbound link extraction.
package goquery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fwojciec/trawl"
)

// Compile-time interface verification.
var _ trawl.Extractor = (*Extractor)(nil)

// strippedSelectors are removed from the document before text collection.
// Navigation chrome and executable content carry no indexable signal.
const strippedSelectors = "script, style, nav, footer, header, noscript, iframe"

// mediaExtensions are link targets the crawler never fetches.
var mediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".svg": true, ".ico": true, ".pdf": true, ".zip": true, ".tar": true,
	".gz": true, ".rar": true, ".exe": true, ".dmg": true, ".mp3": true,
	".mp4": true, ".avi": true, ".mov": true, ".wmv": true, ".flv": true,
	".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true,
	".pptx": true, ".css": true, ".js": true,
}

// Extractor parses fetched HTML into an ExtractedPage.
type Extractor struct {
	maxTextBytes int
}

// NewExtractor creates an Extractor with the document-model text cap.
func NewExtractor() *Extractor {
	return &Extractor{maxTextBytes: trawl.MaxContentBytes}
}

// Extract parses HTML into title, cleaned text, and outbound links.
// Malformed HTML that yields no text is not an error here; the caller
// decides how to treat an empty body.
func (e *Extractor) Extract(html string, baseURL string) (*trawl.ExtractedPage, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, trawl.Errorf(trawl.EINVALID, "invalid base URL: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, trawl.Errorf(trawl.EINVALID, "failed to parse HTML: %v", err)
	}

	page := &trawl.ExtractedPage{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	// Collect links before stripping: nav and footer anchors are still
	// crawlable even though their text is not indexed.
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		resolved := resolveLink(base, href)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		page.Links = append(page.Links, trawl.DiscoveredURL{
			URL:    resolved,
			Anchor: strings.TrimSpace(sel.Text()),
		})
	})

	doc.Find(strippedSelectors).Remove()
	page.Text = truncateBytes(collapseWhitespace(doc.Find("body").Text()), e.maxTextBytes)

	return page, nil
}

// resolveLink resolves an href against the base URL and applies the
// scheme and media-extension filters. Returns "" for links the crawler
// must not follow.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "data:") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""

	path := strings.ToLower(resolved.Path)
	if idx := strings.LastIndexByte(path, '.'); idx >= 0 {
		if mediaExtensions[path[idx:]] {
			return ""
		}
	}
	return resolved.String()
}

// collapseWhitespace folds all runs of whitespace into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateBytes cuts at a byte limit on a word boundary where possible.
func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}
