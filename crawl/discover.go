package crawl

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/fwojciec/trawl"
)

// consumerGroupDiscover is the bus consumer group of the discoverers.
const consumerGroupDiscover = "discover-workers"

// seedPriority is the heuristic priority granted to operator seeds.
const seedPriority = 10

// Discoverer consumes link discoveries and admits new URLs into the
// crawl. Admission runs the full gauntlet: normalization, depth limit,
// the seen filter, the active strategy, and the per-page cap. Edges are
// recorded for every valid link, admitted or not, so the link graph sees
// the full structure.
type Discoverer struct {
	urls     trawl.URLStore
	edges    trawl.EdgeStore
	domains  trawl.DomainStore
	frontier trawl.Frontier
	seen     trawl.SeenFilter
	strategy *Strategy
	bus      trawl.Bus
	logger   *slog.Logger

	maxDepth     int
	discoveryCap int
	now          func() time.Time
}

// DiscovererOption configures a Discoverer.
type DiscovererOption func(*Discoverer)

// WithDiscovererClock overrides the time source. Used by tests.
func WithDiscovererClock(now func() time.Time) DiscovererOption {
	return func(d *Discoverer) {
		d.now = now
	}
}

// NewDiscoverer creates a Discoverer from the crawler configuration.
func NewDiscoverer(urls trawl.URLStore, edges trawl.EdgeStore, domains trawl.DomainStore, frontier trawl.Frontier, seen trawl.SeenFilter, strategy *Strategy, bus trawl.Bus, logger *slog.Logger, cfg trawl.CrawlerConfig, opts ...DiscovererOption) *Discoverer {
	d := &Discoverer{
		urls:         urls,
		edges:        edges,
		domains:      domains,
		frontier:     frontier,
		seen:         seen,
		strategy:     strategy,
		bus:          bus,
		logger:       logger,
		maxDepth:     cfg.MaxDepth,
		discoveryCap: cfg.DiscoveryCap,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run consumes the link-discoveries topic until ctx is canceled.
func (d *Discoverer) Run(ctx context.Context, consumer string) error {
	return d.bus.Consume(ctx, trawl.TopicLinkDiscoveries, consumerGroupDiscover, consumer, d.Handle)
}

// Handle processes one link-discovery message.
func (d *Discoverer) Handle(ctx context.Context, msg *trawl.Message) error {
	var disc trawl.LinkDiscovery
	if err := json.Unmarshal(msg.Payload, &disc); err != nil {
		d.logger.Error("dropping malformed link discovery", "error", err)
		return nil
	}

	depth := disc.SourceDepth + 1
	now := d.now()
	admitted := 0
	targetHashes := make([]string, 0, len(disc.URLs))

	for _, link := range disc.URLs {
		normalized, err := trawl.NormalizeURL(link.URL)
		if err != nil {
			continue
		}
		if normalized == disc.SourceURL {
			continue
		}

		if err := d.edges.CreateEdge(ctx, &trawl.Edge{
			SourceURL:  disc.SourceURL,
			TargetURL:  normalized,
			AnchorText: link.Anchor,
			FirstSeen:  now,
		}); err != nil {
			return err
		}
		targetHashes = append(targetHashes, trawl.HashURL(normalized))

		if depth > d.maxDepth || admitted >= d.discoveryCap {
			continue
		}

		ok, err := d.admit(ctx, link, normalized, disc.SourceURL, depth, now)
		if err != nil {
			return err
		}
		if ok {
			admitted++
		}
	}

	if err := d.strategy.DistributeCash(ctx, trawl.HashURL(disc.SourceURL), targetHashes); err != nil {
		d.logger.Warn("opic cash distribution failed", "source", disc.SourceURL, "error", err)
	}

	d.logger.Debug("processed discovery", "source", disc.SourceURL, "links", len(disc.URLs), "admitted", admitted)
	return nil
}

// admit pushes one normalized URL through the seen filter, the strategy,
// and the stores. Returns true when the URL entered the frontier.
func (d *Discoverer) admit(ctx context.Context, link trawl.DiscoveredURL, normalized, sourceURL string, depth int, now time.Time) (bool, error) {
	seen, err := d.seen.Seen(ctx, normalized)
	if err != nil {
		return false, err
	}
	if seen {
		return false, nil
	}

	domain, err := trawl.RegistrableDomain(normalized)
	if err != nil {
		return false, nil
	}

	rec := &trawl.URLRecord{
		URLHash:       trawl.HashURL(normalized),
		RawURL:        link.URL,
		NormalizedURL: normalized,
		Domain:        domain,
		Depth:         depth,
		Priority:      discoveryPriority(normalized, domain, depth),
		Status:        trawl.StatusPending,
		SourceURL:     sourceURL,
	}

	score, ok, err := d.strategy.Score(ctx, rec)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if _, err := d.domains.EnsureDomain(ctx, domain); err != nil {
		return false, err
	}
	if err := d.urls.CreateURL(ctx, rec); err != nil {
		if trawl.ErrorCode(err) == trawl.ECONFLICT {
			// Bloom false negative or a racing discoverer; the record exists.
			return false, d.seen.Add(ctx, normalized)
		}
		return false, err
	}
	if err := d.strategy.InitCash(ctx, rec.URLHash); err != nil {
		return false, err
	}
	if err := d.frontier.Add(ctx, trawl.FrontierEntry{URL: normalized, Score: score}); err != nil {
		return false, err
	}
	return true, d.seen.Add(ctx, normalized)
}

// AdmitSeeds enters operator-provided URLs at depth zero with top
// priority. Invalid and already-seen URLs are skipped; the count of
// actually admitted seeds is returned.
func (d *Discoverer) AdmitSeeds(ctx context.Context, urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, trawl.Errorf(trawl.EINVALID, "at least one seed url required")
	}

	now := d.now()
	admitted := 0
	for _, raw := range urls {
		normalized, err := trawl.NormalizeURL(raw)
		if err != nil {
			continue
		}
		seen, err := d.seen.Seen(ctx, normalized)
		if err != nil {
			return admitted, err
		}
		if seen {
			continue
		}

		domain, err := trawl.RegistrableDomain(normalized)
		if err != nil {
			continue
		}
		rec := &trawl.URLRecord{
			URLHash:       trawl.HashURL(normalized),
			RawURL:        raw,
			NormalizedURL: normalized,
			Domain:        domain,
			Depth:         0,
			Priority:      seedPriority,
			Status:        trawl.StatusPending,
		}

		if _, err := d.domains.EnsureDomain(ctx, domain); err != nil {
			return admitted, err
		}
		if err := d.urls.CreateURL(ctx, rec); err != nil {
			if trawl.ErrorCode(err) == trawl.ECONFLICT {
				continue
			}
			return admitted, err
		}
		if err := d.strategy.InitCash(ctx, rec.URLHash); err != nil {
			return admitted, err
		}

		score, ok, err := d.strategy.Score(ctx, rec)
		if err != nil {
			return admitted, err
		}
		if !ok {
			// Focused crawls still admit operator seeds.
			score = seedPriority
		}
		if err := d.frontier.Add(ctx, trawl.FrontierEntry{URL: normalized, Score: score}); err != nil {
			return admitted, err
		}
		if err := d.seen.Add(ctx, normalized); err != nil {
			return admitted, err
		}
		admitted++
		d.logger.Info("admitted seed", "url", normalized, "at", now)
	}
	return admitted, nil
}

// discoveryPriority is the best-first heuristic: a base of five, bumped
// for authoritative TLDs and newsy paths, reduced by depth, floored at
// one.
func discoveryPriority(normalized, domain string, depth int) float64 {
	p := 5.0
	if strings.HasSuffix(domain, ".edu") || strings.HasSuffix(domain, ".gov") {
		p += 2
	}
	if strings.Contains(normalized, "/news/") || strings.Contains(normalized, "/article/") {
		p++
	}
	p -= float64(depth)
	if p < 1 {
		p = 1
	}
	return p
}
