// Package trawl provides a distributed web crawler and full-text search
// engine. Seed URLs are expanded by recursively fetching pages, extracting
// outbound links, indexing textual content, and ranking pages by link-graph
// importance; a query-time service serves ranked results.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., redis/, sqlite/, bleve/).
package trawl
