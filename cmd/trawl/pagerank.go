package main

import (
	"github.com/fwojciec/trawl/pagerank"
	"github.com/fwojciec/trawl/redis"
	"github.com/fwojciec/trawl/sqlite"
)

// PageRankCmd recomputes PageRank over the crawled link graph and pushes
// the new scores into the search index.
type PageRankCmd struct {
	Daemon bool `help:"Keep running, recomputing on the configured interval."`
}

func (c *PageRankCmd) Run(app *App) error {
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

	job := pagerank.NewJob(
		sqlite.NewEdgeStore(db),
		sqlite.NewRankStore(db),
		idx,
		redis.NewKV(client),
		redis.NewLocker(client),
		app.Logger,
		app.Config.PageRank,
	)

	if c.Daemon {
		return job.Run(app.Ctx)
	}
	return job.Recompute(app.Ctx)
}
