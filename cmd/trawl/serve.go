package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fwojciec/trawl/crawl"
	trawlhttp "github.com/fwojciec/trawl/http"
	"github.com/fwojciec/trawl/pagerank"
	"github.com/fwojciec/trawl/prom"
	"github.com/fwojciec/trawl/redis"
	"github.com/fwojciec/trawl/search"
	trawlslog "github.com/fwojciec/trawl/slog"
	"github.com/fwojciec/trawl/sqlite"
)

// ServeCmd runs the HTTP server with the public search API and the
// administrative API.
type ServeCmd struct {
	Addr string `help:"Listen address. Overrides the configured address."`
}

func (c *ServeCmd) Run(app *App) error {
	client, err := app.Redis()
	if err != nil {
		return err
	}
	db, err := app.DB()
	if err != nil {
		return err
	}
	idx, err := app.Index()
	if err != nil {
		return err
	}
	bus, err := app.Bus()
	if err != nil {
		return err
	}

	urls := sqlite.NewURLStore(db)
	edges := sqlite.NewEdgeStore(db)
	domains := sqlite.NewDomainStore(db)
	ranks := sqlite.NewRankStore(db)

	kv := redis.NewKV(client)
	cache := redis.NewCache(client)
	locker := redis.NewLocker(client)
	frontier := redis.NewFrontier(client)
	limiter := redis.NewRateLimiter(client, app.Config.Crawler.BucketCapacity, app.Config.Crawler.BucketRefillRate)

	strategy := app.Strategy(client, db, urls)
	seen, err := app.SeenFilter(client)
	if err != nil {
		return err
	}

	searcher := trawlslog.NewLoggingSearcher(
		search.NewService(idx, cache, app.Logger, app.Config.Query),
		app.Logger,
	)
	seeds := crawl.NewDiscoverer(urls, edges, domains, frontier, seen, strategy, bus, app.Logger, app.Config.Crawler)
	ranker := pagerank.NewJob(edges, ranks, idx, kv, locker, app.Logger, app.Config.PageRank)

	prom.RegisterPipelineGauges(prometheus.DefaultRegisterer, frontier, idx)

	srv := trawlhttp.NewServer()
	srv.Addr = app.Config.Server.Addr
	if c.Addr != "" {
		srv.Addr = c.Addr
	}
	srv.Logger = app.Logger
	srv.Searcher = searcher
	srv.URLs = urls
	srv.Frontier = frontier
	srv.Index = idx
	srv.Limiter = limiter
	srv.Breaker = app.Breaker(client)
	srv.Domains = domains
	srv.Seeds = seeds
	srv.Strategy = strategy
	srv.Ranker = ranker

	if err := srv.Open(); err != nil {
		return err
	}
	app.Logger.Info("server listening", "url", srv.URL())

	<-app.Ctx.Done()
	return srv.Close()
}
