package trawl

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tunables. Endpoint URLs come from the environment and
// override the file; everything else is read from a YAML configuration
// file with sensible defaults.
type Config struct {
	// Endpoints. Overridden by REDIS_ADDR, BUS_REDIS_ADDR, DATABASE_PATH,
	// INDEX_PATH.
	RedisAddr    string `yaml:"redis_addr"`
	BusRedisAddr string `yaml:"bus_redis_addr"`
	DatabasePath string `yaml:"database_path"`
	IndexPath    string `yaml:"index_path"`

	Crawler   CrawlerConfig   `yaml:"crawler"`
	Frontier  FrontierConfig  `yaml:"frontier"`
	Dedup     DedupConfig     `yaml:"dedup"`
	PageRank  PageRankConfig  `yaml:"pagerank"`
	Query     QueryConfig     `yaml:"query"`
	Server    ServerConfig    `yaml:"server"`
	BusConfig BusTopologyConf `yaml:"bus"`
}

// CrawlerConfig tunes the fetch pipeline and politeness defaults.
type CrawlerConfig struct {
	UserAgent        string        `yaml:"user_agent"`
	MaxDepth         int           `yaml:"max_depth"`
	SchedulerTick    time.Duration `yaml:"scheduler_tick"`
	SchedulerBatch   int           `yaml:"scheduler_batch"`
	MinWorkers       int           `yaml:"min_workers"`
	MaxWorkers       int           `yaml:"max_workers"`
	BucketCapacity   float64       `yaml:"bucket_capacity"`
	BucketRefillRate float64       `yaml:"bucket_refill_rate"`
	MaxConcurrent    int           `yaml:"max_concurrent_per_domain"`
	BreakerFailures  int           `yaml:"breaker_failures"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
	BreakerSuccesses int           `yaml:"breaker_successes"`
	StaleAfter       time.Duration `yaml:"stale_in_progress_after"`
	DiscoveryCap     int           `yaml:"discovery_cap_per_page"`
}

// FrontierConfig selects and tunes the scoring strategy.
type FrontierConfig struct {
	Strategy        StrategyName `yaml:"strategy"`
	FocusedKeywords []string     `yaml:"focused_keywords"`
	DomainWhitelist []string     `yaml:"domain_whitelist"`
}

// DedupConfig tunes the SimHash deduplicator.
type DedupConfig struct {
	// Merge keeps the higher-ranked copy and merges link attribution
	// instead of rejecting the newcomer outright.
	Merge         bool `yaml:"merge"`
	MaxHamming    int  `yaml:"max_hamming"`
	ExpireAfterDy int  `yaml:"expire_after_days"`
}

// PageRankConfig tunes the batch ranking job.
type PageRankConfig struct {
	Damping       float64       `yaml:"damping"`
	Tolerance     float64       `yaml:"tolerance"`
	MaxIterations int           `yaml:"max_iterations"`
	Interval      time.Duration `yaml:"interval"`
}

// QueryConfig tunes the query service.
type QueryConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ServerConfig tunes the HTTP API server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// BusTopologyConf tunes the message bus layout.
type BusTopologyConf struct {
	Partitions int `yaml:"partitions"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		RedisAddr:    "localhost:6379",
		BusRedisAddr: "localhost:6379",
		DatabasePath: "trawl.db",
		IndexPath:    "web-pages.bleve",
		Crawler: CrawlerConfig{
			UserAgent:        "trawlbot/1.0 (+https://github.com/fwojciec/trawl)",
			MaxDepth:         6,
			SchedulerTick:    10 * time.Second,
			SchedulerBatch:   100,
			MinWorkers:       20,
			MaxWorkers:       100,
			BucketCapacity:   10,
			BucketRefillRate: 1,
			MaxConcurrent:    5,
			BreakerFailures:  5,
			BreakerCooldown:  60 * time.Second,
			BreakerSuccesses: 3,
			StaleAfter:       30 * time.Minute,
			DiscoveryCap:     50,
		},
		Frontier: FrontierConfig{
			Strategy: StrategyBFS,
		},
		Dedup: DedupConfig{
			MaxHamming:    3,
			ExpireAfterDy: 30,
		},
		PageRank: PageRankConfig{
			Damping:       0.85,
			Tolerance:     1e-4,
			MaxIterations: 100,
			Interval:      7 * 24 * time.Hour,
		},
		Query: QueryConfig{
			CacheTTL: 30 * time.Minute,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		BusConfig: BusTopologyConf{
			Partitions: 16,
		},
	}
}

// LoadConfig reads the YAML file at path, applies defaults for missing
// fields, and lets environment variables override the endpoints. An empty
// path skips the file entirely.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, Errorf(EINVALID, "read config %q: %v", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, Errorf(EINVALID, "parse config %q: %v", path, err)
		}
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("BUS_REDIS_ADDR"); v != "" {
		cfg.BusRedisAddr = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("INDEX_PATH"); v != "" {
		cfg.IndexPath = v
	}

	if !cfg.Frontier.Strategy.Valid() {
		return cfg, Errorf(EINVALID, "unknown frontier strategy %q", cfg.Frontier.Strategy)
	}
	return cfg, nil
}
