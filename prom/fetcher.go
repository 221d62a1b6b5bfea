// Package prom instruments pipeline services with Prometheus metrics.
package prom

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fwojciec/trawl"
)

// Ensure Fetcher implements trawl.Fetcher.
var _ trawl.Fetcher = (*Fetcher)(nil)

// Fetcher wraps a Fetcher with fetch counters and a latency histogram.
type Fetcher struct {
	next trawl.Fetcher

	fetches  *prometheus.CounterVec
	bytes    prometheus.Counter
	empty    prometheus.Counter
	duration prometheus.Histogram
}

// NewFetcher creates an instrumented Fetcher and registers its
// collectors.
func NewFetcher(next trawl.Fetcher, reg prometheus.Registerer) *Fetcher {
	f := &Fetcher{
		next: next,
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trawl_fetches_total",
			Help: "Fetch attempts by outcome class.",
		}, []string{"outcome"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trawl_fetched_bytes_total",
			Help: "Total response bytes fetched.",
		}),
		empty: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trawl_fetches_empty_total",
			Help: "Successful fetches that returned no body.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trawl_fetch_duration_seconds",
			Help:    "Wall time of fetches.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(f.fetches, f.bytes, f.empty, f.duration)
	return f
}

// Fetch delegates to the wrapped fetcher and records the outcome.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*trawl.FetchResult, error) {
	res, err := f.next.Fetch(ctx, url)
	if err != nil {
		f.fetches.WithLabelValues("error").Inc()
		return nil, err
	}

	f.fetches.WithLabelValues(outcomeClass(res.StatusCode)).Inc()
	f.bytes.Add(float64(len(res.Body)))
	if res.StatusCode < 300 && len(res.Body) == 0 {
		f.empty.Inc()
	}
	f.duration.Observe(res.Duration.Seconds())
	return res, nil
}

func outcomeClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
