package main

import (
	"fmt"

	"github.com/fwojciec/trawl"
	"github.com/fwojciec/trawl/redis"
	"github.com/fwojciec/trawl/sqlite"
)

// StatsCmd prints a snapshot of the crawl and the index.
type StatsCmd struct{}

func (c *StatsCmd) Run(app *App) error {
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

	counts, err := sqlite.NewURLStore(db).CountByStatus(app.Ctx)
	if err != nil {
		return err
	}
	frontierLen, err := redis.NewFrontier(client).Len(app.Ctx)
	if err != nil {
		return err
	}
	indexed, err := idx.Count(app.Ctx)
	if err != nil {
		return err
	}

	statuses := []trawl.URLStatus{
		trawl.StatusPending,
		trawl.StatusInProgress,
		trawl.StatusCompleted,
		trawl.StatusFailed,
		trawl.StatusBlocked,
	}
	var total int64
	for _, status := range statuses {
		fmt.Fprintf(app.Stdout, "%-12s %d\n", status, counts[status])
		total += counts[status]
	}
	fmt.Fprintf(app.Stdout, "%-12s %d\n", "total", total)
	fmt.Fprintf(app.Stdout, "%-12s %d\n", "frontier", frontierLen)
	fmt.Fprintf(app.Stdout, "%-12s %d\n", "indexed", indexed)
	return nil
}
