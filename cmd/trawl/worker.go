package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fwojciec/trawl/crawl"
	"github.com/fwojciec/trawl/goquery"
	"github.com/fwojciec/trawl/redis"
	"github.com/fwojciec/trawl/robots"
	"github.com/fwojciec/trawl/simhash"
	"github.com/fwojciec/trawl/snowball"
	"github.com/fwojciec/trawl/sqlite"
)

// snapshotInterval is how often discovery workers persist the Bloom
// layer of the seen filter.
const snapshotInterval = 5 * time.Minute

// WorkerCmd runs a pool of pipeline consumers of a single role.
type WorkerCmd struct {
	Role  string `arg:"" enum:"fetch,discover,index" help:"Worker role: fetch, discover or index."`
	Count int    `short:"n" default:"0" help:"Consumers to run in this process. Zero uses the configured minimum."`
}

func (c *WorkerCmd) Run(app *App) error {
	count := c.Count
	if count <= 0 {
		count = app.Config.Crawler.MinWorkers
	}

	run, err := c.build(app)
	if err != nil {
		return err
	}

	app.Logger.Info("workers starting", "role", c.Role, "count", count)

	g, ctx := errgroup.WithContext(app.Ctx)
	for i := 0; i < count; i++ {
		name := consumerName()
		g.Go(func() error { return run(ctx, name) })
	}
	return g.Wait()
}

// build wires the role's consumer and returns its run loop.
func (c *WorkerCmd) build(app *App) (func(ctx context.Context, consumer string) error, error) {
	client, err := app.Redis()
	if err != nil {
		return nil, err
	}
	db, err := app.DB()
	if err != nil {
		return nil, err
	}
	bus, err := app.Bus()
	if err != nil {
		return nil, err
	}

	urls := sqlite.NewURLStore(db)
	edges := sqlite.NewEdgeStore(db)
	domains := sqlite.NewDomainStore(db)

	switch c.Role {
	case "fetch":
		robotsSvc := robots.NewService(redis.NewCache(client), app.Config.Crawler.UserAgent)
		w := crawl.NewWorker(urls, domains, bus, robotsSvc, app.Fetcher(), goquery.NewExtractor(), app.Breaker(client), crawl.NewInflight(redis.NewKV(client)), app.Logger)
		return w.Run, nil

	case "discover":
		frontier := redis.NewFrontier(client)
		seen, err := app.SeenFilter(client)
		if err != nil {
			return nil, err
		}
		d := crawl.NewDiscoverer(urls, edges, domains, frontier, seen, app.Strategy(client, db, urls), bus, app.Logger, app.Config.Crawler)
		var snapshotOnce sync.Once
		return func(ctx context.Context, consumer string) error {
			// One snapshot loop per process regardless of consumer count.
			snapshotOnce.Do(func() { go c.snapshotLoop(ctx, app, seen) })
			return d.Run(ctx, consumer)
		}, nil

	case "index":
		idx, err := app.Index()
		if err != nil {
			return nil, err
		}
		fingerprints := redis.NewFingerprintStore(client, app.FingerprintTTL())
		tokenizer := snowball.NewTokenizer()
		deduper := simhash.NewDeduper(tokenizer, fingerprints)
		ranks := sqlite.NewRankStore(db)
		ix := crawl.NewIndexer(idx, fingerprints, deduper, tokenizer, ranks, edges, bus, app.Logger)
		return ix.Run, nil
	}

	return nil, fmt.Errorf("unknown worker role %q", c.Role)
}

// snapshotLoop persists the Bloom layer on an interval and once more on
// shutdown, so a restarted worker resumes with a warm filter.
func (c *WorkerCmd) snapshotLoop(ctx context.Context, app *App, seen *crawl.SeenFilter) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			snapCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := seen.Snapshot(snapCtx); err != nil {
				app.Logger.Error("final seen filter snapshot failed", "error", err)
			}
			return
		case <-ticker.C:
			if err := seen.Snapshot(ctx); err != nil {
				app.Logger.Error("seen filter snapshot failed", "error", err)
			}
		}
	}
}
