package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fwojciec/trawl"
	"github.com/fwojciec/trawl/bleve"
	"github.com/fwojciec/trawl/crawl"
	trawlhttp "github.com/fwojciec/trawl/http"
	"github.com/fwojciec/trawl/prom"
	"github.com/fwojciec/trawl/redis"
	trawlslog "github.com/fwojciec/trawl/slog"
	"github.com/fwojciec/trawl/sqlite"
)

// App holds the configuration and the shared infrastructure clients.
// Commands open only the clients they need; Close releases them in
// reverse order of opening.
type App struct {
	Ctx    context.Context
	Config trawl.Config
	Logger *slog.Logger
	Stdout io.Writer

	redisClient *redis.Client
	busClient   *redis.Client
	db          *sqlite.DB
	index       *bleve.Index

	closers []func() error
}

func newApp(ctx context.Context, configPath string, stdout, stderr io.Writer) (*App, error) {
	cfg, err := trawl.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return &App{
		Ctx:    ctx,
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(stderr, nil)),
		Stdout: stdout,
	}, nil
}

// Close releases every opened client.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Redis returns the shared coordination Redis client, opening it on
// first use.
func (a *App) Redis() (*redis.Client, error) {
	if a.redisClient != nil {
		return a.redisClient, nil
	}
	client := redis.NewClient(a.Config.RedisAddr)
	if err := client.Open(); err != nil {
		return nil, fmt.Errorf("redis at %s: %w", a.Config.RedisAddr, err)
	}
	a.redisClient = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

// BusRedis returns the Redis client backing the message bus. When the
// bus shares the coordination instance's address the same client is
// reused.
func (a *App) BusRedis() (*redis.Client, error) {
	if a.Config.BusRedisAddr == a.Config.RedisAddr {
		return a.Redis()
	}
	if a.busClient != nil {
		return a.busClient, nil
	}
	client := redis.NewClient(a.Config.BusRedisAddr)
	if err := client.Open(); err != nil {
		return nil, fmt.Errorf("bus redis at %s: %w", a.Config.BusRedisAddr, err)
	}
	a.busClient = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

// DB returns the shared SQLite database, opening it on first use.
func (a *App) DB() (*sqlite.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db := sqlite.NewDB(a.Config.DatabasePath)
	if err := db.Open(); err != nil {
		return nil, fmt.Errorf("database at %s: %w", a.Config.DatabasePath, err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	return db, nil
}

// Index returns the search index, opening it on first use.
func (a *App) Index() (*bleve.Index, error) {
	if a.index != nil {
		return a.index, nil
	}
	idx := bleve.NewIndex(a.Config.IndexPath)
	if err := idx.Open(); err != nil {
		return nil, fmt.Errorf("index at %s: %w", a.Config.IndexPath, err)
	}
	a.index = idx
	a.closers = append(a.closers, idx.Close)
	return idx, nil
}

// Bus returns the instrumented message bus.
func (a *App) Bus() (trawl.Bus, error) {
	client, err := a.BusRedis()
	if err != nil {
		return nil, err
	}
	return prom.NewBus(redis.NewBus(client, a.Config.BusConfig.Partitions), prometheus.DefaultRegisterer), nil
}

// Breaker builds the shared circuit breaker over the coordination store.
func (a *App) Breaker(client *redis.Client) trawl.CircuitBreaker {
	cc := a.Config.Crawler
	return crawl.NewBreaker(redis.NewKV(client), redis.NewLocker(client), cc.BreakerFailures, cc.BreakerSuccesses, cc.BreakerCooldown)
}

// Strategy builds the frontier scoring strategy manager.
func (a *App) Strategy(client *redis.Client, db *sqlite.DB, urls trawl.URLStore) *crawl.Strategy {
	return crawl.NewStrategy(redis.NewKV(client), redis.NewLocker(client), redis.NewFrontier(client), urls,
		sqlite.NewRankStore(db), sqlite.NewDomainStore(db), a.Config.Frontier, a.Config.Crawler.MaxDepth)
}

// SeenFilter builds the two-layer URL membership filter and restores its
// Bloom layer from the latest snapshot.
func (a *App) SeenFilter(client *redis.Client) (*crawl.SeenFilter, error) {
	seen := crawl.NewSeenFilter(redis.NewKV(client), redis.NewCache(client), redis.NewLocker(client))
	if err := seen.Restore(a.Ctx); err != nil {
		return nil, fmt.Errorf("restore seen filter: %w", err)
	}
	return seen, nil
}

// Fetcher builds the production fetcher with logging and metrics.
func (a *App) Fetcher() trawl.Fetcher {
	f := trawlhttp.NewFetcher(a.Config.Crawler.UserAgent)
	return trawlslog.NewLoggingFetcher(prom.NewFetcher(f, prometheus.DefaultRegisterer), a.Logger)
}

// FingerprintTTL converts the configured retention days to a duration.
func (a *App) FingerprintTTL() time.Duration {
	return time.Duration(a.Config.Dedup.ExpireAfterDy) * 24 * time.Hour
}

// consumerName identifies this process's bus consumers across restarts.
func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "trawl"
	}
	return host + "-" + uuid.NewString()[:8]
}
