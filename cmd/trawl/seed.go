package main

import (
	"fmt"

	"github.com/fwojciec/trawl"
	"github.com/fwojciec/trawl/crawl"
	trawlhttp "github.com/fwojciec/trawl/http"
	"github.com/fwojciec/trawl/redis"
	"github.com/fwojciec/trawl/robots"
	"github.com/fwojciec/trawl/sqlite"
)

// maxSitemapSeeds caps how many URLs sitemap expansion may add on top
// of the operator's explicit seeds.
const maxSitemapSeeds = 5000

// SeedCmd admits URLs into the frontier at depth zero.
type SeedCmd struct {
	Sitemaps bool     `help:"Expand each seed domain's sitemaps into additional seeds."`
	URLs     []string `arg:"" name:"url" help:"Seed URLs to admit."`
}

func (c *SeedCmd) Run(app *App) error {
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
	seen, err := app.SeenFilter(client)
	if err != nil {
		return err
	}
	disc := crawl.NewDiscoverer(
		urls,
		sqlite.NewEdgeStore(db),
		sqlite.NewDomainStore(db),
		redis.NewFrontier(client),
		seen,
		app.Strategy(client, db, urls),
		bus,
		app.Logger,
		app.Config.Crawler,
	)

	seeds := c.URLs
	if c.Sitemaps {
		seeds = append(seeds, c.expandSitemaps(app, client)...)
	}

	admitted, err := disc.AdmitSeeds(app.Ctx, seeds)
	if err != nil {
		return err
	}
	if err := seen.Snapshot(app.Ctx); err != nil {
		app.Logger.Error("seen filter snapshot failed", "error", err)
	}

	fmt.Fprintf(app.Stdout, "admitted %d of %d URLs\n", admitted, len(seeds))
	return nil
}

// expandSitemaps collects sitemap URLs for each distinct seed domain.
// Expansion failures are logged and skipped so one unreachable domain
// does not block the rest of the seed list.
func (c *SeedCmd) expandSitemaps(app *App, client *redis.Client) []string {
	robotsSvc := robots.NewService(redis.NewCache(client), app.Config.Crawler.UserAgent)
	sitemaps := trawlhttp.NewSitemapService(nil)

	domains := make(map[string]bool)
	var expanded []string
	for _, rawURL := range c.URLs {
		domain, err := trawl.RegistrableDomain(rawURL)
		if err != nil || domains[domain] {
			continue
		}
		domains[domain] = true

		maps, err := robotsSvc.Sitemaps(app.Ctx, domain)
		if err != nil || len(maps) == 0 {
			continue
		}
		found, err := sitemaps.DiscoverURLs(app.Ctx, domain, maps)
		if err != nil {
			app.Logger.Warn("sitemap expansion failed", "domain", domain, "error", err)
			continue
		}
		for _, u := range found {
			if len(expanded) >= maxSitemapSeeds {
				return expanded
			}
			expanded = append(expanded, u)
		}
	}
	return expanded
}
