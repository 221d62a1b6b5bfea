// Package search implements the query service: query analysis, ranked
// retrieval, and result shaping.
package search

import (
	"regexp"
	"strings"

	"github.com/fwojciec/trawl"
)

// maxEditDistance is the furthest a misspelling may sit from a
// dictionary word to be corrected.
const maxEditDistance = 2

// dictionary is the curated vocabulary for spell correction. Skewed
// toward the technical queries the engine actually serves.
var dictionary = []string{
	"algorithm", "api", "application", "architecture", "array",
	"authentication", "benchmark", "channel", "client", "compiler",
	"concurrency", "configuration", "container", "database", "debugging",
	"deployment", "documentation", "encoding", "error", "example",
	"framework", "function", "garbage", "generics", "goroutine", "guide",
	"handler", "howto", "install", "interface", "java", "javascript",
	"kubernetes", "language", "library", "memory", "microservices",
	"migration", "module", "network", "optimization", "package",
	"parallel", "performance", "pointer", "programming", "protocol",
	"python", "reference", "runtime", "security", "server", "service",
	"synchronization", "testing", "tutorial", "version", "websocket",
}

// synonyms maps a query term to its secondary search terms.
var synonyms = map[string][]string{
	"concurrency": {"multithreading", "parallel"},
	"golang":      {"go"},
	"guide":       {"tutorial"},
	"java":        {"jvm", "jdk"},
	"javascript":  {"js", "ecmascript"},
	"kubernetes":  {"k8s"},
	"tutorial":    {"guide", "howto"},
}

// languages are recognized as language entities during analysis.
var languages = map[string]bool{
	"c": true, "cpp": true, "go": true, "golang": true, "java": true,
	"javascript": true, "kotlin": true, "php": true, "python": true,
	"ruby": true, "rust": true, "swift": true, "typescript": true,
}

var (
	yearPattern    = regexp.MustCompile(`^(19|20)\d{2}$`)
	versionPattern = regexp.MustCompile(`^v?\d+\.\d+(\.\d+)?$`)
)

// Entity is a recognized token with a semantic class.
type Entity struct {
	Text string
	Kind string // "language", "year", "version", "domain"
}

// Analysis is the full understanding of a raw query.
type Analysis struct {
	// Terms are the corrected, lowercased query terms.
	Terms []string

	// Corrected is the corrected query string, empty when nothing changed.
	Corrected string

	// Synonyms are the secondary terms implied by the corrected terms.
	Synonyms []string

	Entities []Entity
	Intent   trawl.QueryIntent
}

// Analyze normalizes, spell-corrects, and classifies a raw query.
func Analyze(query string) *Analysis {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	words := strings.Fields(normalized)

	a := &Analysis{}

	changed := false
	for _, w := range words {
		// site: operators restrict retrieval instead of matching text.
		if domain, ok := strings.CutPrefix(w, "site:"); ok {
			if domain = strings.Trim(domain, "?!.,;:\"'"); domain != "" {
				a.Entities = append(a.Entities, Entity{Text: domain, Kind: "domain"})
			}
			continue
		}

		term := strings.Trim(w, "?!.,;:\"'")
		if term == "" {
			continue
		}
		if corrected, ok := correct(term); ok {
			term = corrected
			changed = true
		}
		a.Terms = append(a.Terms, term)

		if syns, ok := synonyms[term]; ok {
			a.Synonyms = append(a.Synonyms, syns...)
		}
		if e, ok := classifyEntity(term); ok {
			a.Entities = append(a.Entities, e)
		}
	}
	if changed {
		a.Corrected = strings.Join(a.Terms, " ")
	}
	// Intent reads the corrected terms so misspelled markers still count.
	a.Intent = classifyIntent(normalized, a.Terms)
	return a
}

// correct returns the closest dictionary word within the edit budget.
// Exact dictionary hits and short tokens pass through untouched.
func correct(term string) (string, bool) {
	if len(term) < 4 {
		return term, false
	}
	for _, w := range dictionary {
		if w == term {
			return term, false
		}
	}

	best := ""
	bestDist := maxEditDistance + 1
	for _, w := range dictionary {
		diff := len(w) - len(term)
		if diff > maxEditDistance || diff < -maxEditDistance {
			continue
		}
		if d := editDistance(term, w); d < bestDist {
			best, bestDist = w, d
		}
	}
	if bestDist <= maxEditDistance {
		return best, true
	}
	return term, false
}

// editDistance is the Levenshtein distance between two strings.
func editDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func classifyEntity(term string) (Entity, bool) {
	switch {
	case languages[term]:
		return Entity{Text: term, Kind: "language"}, true
	case yearPattern.MatchString(term):
		return Entity{Text: term, Kind: "year"}, true
	case versionPattern.MatchString(term):
		return Entity{Text: term, Kind: "version"}, true
	}
	return Entity{}, false
}

var questionWords = map[string]bool{
	"how": true, "what": true, "when": true, "where": true,
	"which": true, "who": true, "why": true,
}

func classifyIntent(normalized string, words []string) trawl.QueryIntent {
	if len(words) == 0 {
		return trawl.IntentGeneral
	}
	if strings.HasSuffix(normalized, "?") || questionWords[words[0]] {
		return trawl.IntentQuestion
	}
	for _, w := range words {
		switch strings.Trim(w, "?!.,;:") {
		case "tutorial", "learn", "learning", "howto":
			return trawl.IntentTutorial
		case "documentation", "docs", "reference", "spec":
			return trawl.IntentDocumentation
		case "error", "fix", "broken", "fails", "failing", "debug", "crash", "panic":
			return trawl.IntentTroubleshooting
		}
	}
	return trawl.IntentGeneral
}
