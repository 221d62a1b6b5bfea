// Package snowball provides the English tokenizer used by indexing and
// deduplication: lowercasing, stop-word removal, and Snowball stemming.
package snowball

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"

	"github.com/fwojciec/trawl"
)

// Compile-time interface verification.
var _ trawl.Tokenizer = (*Tokenizer)(nil)

// Tokenizer splits text into stemmed, stop-word-free terms.
type Tokenizer struct {
	maxInputBytes int
	maxTokens     int
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithLimits overrides the input and output caps. Zero keeps the default.
func WithLimits(maxInputBytes, maxTokens int) Option {
	return func(t *Tokenizer) {
		if maxInputBytes > 0 {
			t.maxInputBytes = maxInputBytes
		}
		if maxTokens > 0 {
			t.maxTokens = maxTokens
		}
	}
}

// NewTokenizer creates a Tokenizer with the document-model caps.
func NewTokenizer(opts ...Option) *Tokenizer {
	t := &Tokenizer{
		maxInputBytes: trawl.MaxTokenizeBytes,
		maxTokens:     trawl.MaxTokens,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tokenize returns the stemmed term sequence of the input. The input is
// capped at the tokenizer's byte limit and the output at its token limit.
// Terms shorter than two characters and English stop words are dropped.
func (t *Tokenizer) Tokenize(text string) []string {
	if len(text) > t.maxInputBytes {
		text = truncateUTF8(text, t.maxInputBytes)
	}

	var tokens []string
	for _, word := range splitWords(text) {
		if len(tokens) >= t.maxTokens {
			break
		}
		word = strings.ToLower(word)
		if len(word) < 2 || stopWords[word] {
			continue
		}
		tokens = append(tokens, english.Stem(word, false))
	}
	return tokens
}

// Terms returns the distinct stemmed terms of the input, in first-seen
// order. This is the document token set.
func (t *Tokenizer) Terms(text string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range t.Tokenize(text) {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
	}
	return terms
}

// splitWords breaks text at any non-letter, non-digit rune.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// truncateUTF8 cuts at a byte limit without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}

// stopWords is the standard English stop-word list applied before
// stemming.
var stopWords = map[string]bool{
	"a": true, "about": true, "above": true, "after": true, "again": true,
	"against": true, "all": true, "am": true, "an": true, "and": true,
	"any": true, "are": true, "as": true, "at": true, "be": true,
	"because": true, "been": true, "before": true, "being": true,
	"below": true, "between": true, "both": true, "but": true, "by": true,
	"can": true, "could": true, "did": true, "do": true, "does": true,
	"doing": true, "down": true, "during": true, "each": true, "few": true,
	"for": true, "from": true, "further": true, "had": true, "has": true,
	"have": true, "having": true, "he": true, "her": true, "here": true,
	"hers": true, "herself": true, "him": true, "himself": true,
	"his": true, "how": true, "i": true, "if": true, "in": true,
	"into": true, "is": true, "it": true, "its": true, "itself": true,
	"just": true, "me": true, "more": true, "most": true, "my": true,
	"myself": true, "no": true, "nor": true, "not": true, "now": true,
	"of": true, "off": true, "on": true, "once": true, "only": true,
	"or": true, "other": true, "our": true, "ours": true,
	"ourselves": true, "out": true, "over": true, "own": true,
	"same": true, "she": true, "should": true, "so": true, "some": true,
	"such": true, "than": true, "that": true, "the": true, "their": true,
	"theirs": true, "them": true, "themselves": true, "then": true,
	"there": true, "these": true, "they": true, "this": true,
	"those": true, "through": true, "to": true, "too": true, "under": true,
	"until": true, "up": true, "very": true, "was": true, "we": true,
	"were": true, "what": true, "when": true, "where": true,
	"which": true, "while": true, "who": true, "whom": true, "why": true,
	"will": true, "with": true, "would": true, "you": true, "your": true,
	"yours": true, "yourself": true, "yourselves": true,
}
