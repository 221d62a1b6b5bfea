package main

import (
	"github.com/fwojciec/trawl/crawl"
	"github.com/fwojciec/trawl/redis"
	"github.com/fwojciec/trawl/sqlite"
)

// SchedulerCmd runs the frontier scheduler loop: popping the frontier,
// claiming URLs, and dispatching fetch jobs to the bus.
type SchedulerCmd struct {
	Spread float64 `default:"0" help:"Process-local dispatch rate in URLs per second. Zero disables spreading."`
}

func (c *SchedulerCmd) Run(app *App) error {
	client, err := app.Redis()
	if err != nil {
		return err
	}
	db, err := app.DB()
	if err != nil {
		return err
	}
	bus, err := app.Bus()
	if err != nil {
		return err
	}

	urls := sqlite.NewURLStore(db)
	domains := sqlite.NewDomainStore(db)
	frontier := redis.NewFrontier(client)
	limiter := redis.NewRateLimiter(client, app.Config.Crawler.BucketCapacity, app.Config.Crawler.BucketRefillRate)

	governor := crawl.NewGovernor(domains, app.Breaker(client), limiter, redis.NewKV(client), app.Config.Crawler.MaxConcurrent, c.Spread)
	strategy := app.Strategy(client, db, urls)

	sched := crawl.NewScheduler(urls, frontier, bus, governor, strategy, app.Logger, app.Config.Crawler)

	app.Logger.Info("scheduler starting",
		"tick", app.Config.Crawler.SchedulerTick,
		"batch", app.Config.Crawler.SchedulerBatch,
	)
	return sched.Run(app.Ctx)
}
