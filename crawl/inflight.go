package crawl

import (
	"context"

	"github.com/fwojciec/trawl"
)

// inflightKeyPrefix namespaces the per-domain in-flight fetch counters in
// the shared store.
const inflightKeyPrefix = "inflight:"

// Inflight counts dispatched-but-unfinished fetches per domain in the
// shared store, so the concurrency cap holds across scheduler and worker
// replicas. A slot is taken at dispatch and freed when the fetch worker
// finishes the job, whatever the outcome.
type Inflight struct {
	kv trawl.KV
}

// NewInflight creates an Inflight counter over the shared store.
func NewInflight(kv trawl.KV) *Inflight {
	return &Inflight{kv: kv}
}

// Acquire takes an in-flight slot for the domain. Returns false without
// holding a slot when the domain already has max fetches in flight.
func (f *Inflight) Acquire(ctx context.Context, domain string, max int) (bool, error) {
	n, err := f.kv.IncrByFloat(ctx, inflightKeyPrefix+domain, 1)
	if err != nil {
		return false, err
	}
	if int(n) > max {
		if _, err := f.kv.IncrByFloat(ctx, inflightKeyPrefix+domain, -1); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Release frees one of the domain's in-flight slots. A counter driven
// below zero by an unpaired release is clamped so the domain is not
// granted phantom capacity.
func (f *Inflight) Release(ctx context.Context, domain string) error {
	n, err := f.kv.IncrByFloat(ctx, inflightKeyPrefix+domain, -1)
	if err != nil {
		return err
	}
	if n < 0 {
		return f.kv.Set(ctx, inflightKeyPrefix+domain, "0", 0)
	}
	return nil
}
