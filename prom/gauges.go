package prom

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fwojciec/trawl"
)

// RegisterPipelineGauges exposes the frontier depth and the index size
// as gauges evaluated at scrape time. A store error during a scrape
// reports -1 rather than failing the whole metrics page.
func RegisterPipelineGauges(reg prometheus.Registerer, frontier trawl.Frontier, index trawl.Index) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "trawl_frontier_size",
		Help: "URLs resident in the frontier.",
	}, func() float64 {
		n, err := frontier.Len(context.Background())
		if err != nil {
			return -1
		}
		return float64(n)
	}))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "trawl_indexed_documents",
		Help: "Documents resident in the search index.",
	}, func() float64 {
		n, err := index.Count(context.Background())
		if err != nil {
			return -1
		}
		return float64(n)
	}))
}
