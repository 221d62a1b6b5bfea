// Package bloom provides the probabilistic layer of URL deduplication.
package bloom

import (
	"bytes"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Filter wraps a Bloom filter for URL deduplication. It is the only
// process-wide mutable structure in the system: reads are cheap and
// concurrent, writes take the writer lock.
type Filter struct {
	mu sync.RWMutex
	f  *bloom.BloomFilter
}

// NewFilter creates a new Bloom filter sized for n expected items
// with the given false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	return &Filter{
		f: bloom.NewWithEstimates(n, fpRate),
	}
}

// Add adds a URL to the filter.
func (f *Filter) Add(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.f.AddString(url)
}

// Test returns true if the URL might be in the filter.
// False positives are possible; false negatives are not.
func (f *Filter) Test(url string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.f.TestString(url)
}

// EstimatedCount returns the approximate number of items in the filter.
func (f *Filter) EstimatedCount() uint {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return uint(f.f.ApproximatedSize())
}

// Snapshot serializes the bitset for persistence. The snapshot is taken
// under the read lock, so a concurrent Add either makes it into this
// snapshot or lands in the next one.
func (f *Filter) Snapshot() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var buf bytes.Buffer
	if _, err := f.f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Restore replaces the filter contents from a snapshot blob.
func (f *Filter) Restore(blob []byte) error {
	restored := &bloom.BloomFilter{}
	if _, err := restored.ReadFrom(bytes.NewReader(blob)); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.f = restored
	return nil
}
