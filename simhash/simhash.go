// Package simhash implements near-duplicate detection with 64-bit SimHash
// fingerprints and Hamming-distance lookup.
package simhash

import (
	"context"
	"math/bits"

	"github.com/cespare/xxhash/v2"

	"github.com/fwojciec/trawl"
)

// Term length bounds for fingerprinting. Very short terms carry little
// signal; very long ones are usually identifiers or junk.
const (
	minTermLen = 3
	maxTermLen = 20
)

// Compile-time interface verification.
var _ trawl.Deduper = (*Deduper)(nil)

// Deduper computes fingerprints and finds stored near-duplicates.
type Deduper struct {
	Tokenizer    trawl.Tokenizer
	Fingerprints trawl.FingerprintStore
	MaxHamming   int
}

// NewDeduper creates a Deduper with the given collaborators and the
// default Hamming threshold of 3.
func NewDeduper(tokenizer trawl.Tokenizer, store trawl.FingerprintStore) *Deduper {
	return &Deduper{
		Tokenizer:    tokenizer,
		Fingerprints: store,
		MaxHamming:   3,
	}
}

// Fingerprint computes the 64-bit SimHash of cleaned text. Content shorter
// than trawl.MinDedupContentChars fingerprints to zero, which downstream
// treats as "skip dedup".
func (d *Deduper) Fingerprint(text string) uint64 {
	if len(text) < trawl.MinDedupContentChars {
		return 0
	}

	freq := make(map[string]int)
	for _, term := range d.Tokenizer.Tokenize(text) {
		if len(term) < minTermLen || len(term) > maxTermLen {
			continue
		}
		freq[term]++
	}
	if len(freq) == 0 {
		return 0
	}

	var acc [64]int64
	for term, n := range freq {
		h := xxhash.Sum64String(term)
		for i := 0; i < 64; i++ {
			if h&(1<<uint(i)) != 0 {
				acc[i] += int64(n)
			} else {
				acc[i] -= int64(n)
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if acc[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Hamming returns the number of differing bits between two fingerprints.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// FindDuplicate scans stored fingerprints for one within the Hamming
// threshold, excluding selfURL. Returns ENOTFOUND when no near duplicate
// exists. A zero fingerprint never matches.
func (d *Deduper) FindDuplicate(ctx context.Context, fp uint64, selfURL string) (*trawl.DuplicateMatch, error) {
	if fp == 0 {
		return nil, trawl.Errorf(trawl.ENOTFOUND, "no duplicate")
	}

	var best *trawl.DuplicateMatch
	err := d.Fingerprints.WalkFingerprints(ctx, func(docID, url string, stored uint64) error {
		if url == selfURL || stored == 0 {
			return nil
		}
		dist := Hamming(fp, stored)
		if dist > d.MaxHamming {
			return nil
		}
		if best == nil || dist < best.Distance {
			best = &trawl.DuplicateMatch{DocID: docID, URL: url, Distance: dist}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, trawl.Errorf(trawl.ENOTFOUND, "no duplicate within distance %d", d.MaxHamming)
	}
	return best, nil
}

// Group is one set of mutually near-duplicate documents found by a sweep.
type Group struct {
	URLs []string
}

// Sweep scans the whole fingerprint index and clusters documents whose
// fingerprints are within the Hamming threshold. Used by the batch dedup
// job.
func (d *Deduper) Sweep(ctx context.Context) ([]Group, error) {
	type entry struct {
		url string
		fp  uint64
	}
	var entries []entry
	err := d.Fingerprints.WalkFingerprints(ctx, func(_, url string, fp uint64) error {
		if fp != 0 {
			entries = append(entries, entry{url: url, fp: fp})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Union-find over pairwise near matches.
	parent := make([]int, len(entries))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			if Hamming(entries[i].fp, entries[j].fp) <= d.MaxHamming {
				parent[find(i)] = find(j)
			}
		}
	}

	clusters := make(map[int][]string)
	for i, e := range entries {
		root := find(i)
		clusters[root] = append(clusters[root], e.url)
	}

	var groups []Group
	for _, urls := range clusters {
		if len(urls) > 1 {
			groups = append(groups, Group{URLs: urls})
		}
	}
	return groups, nil
}
