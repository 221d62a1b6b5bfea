package pagerank

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fwojciec/trawl"
)

// Job coordination keys.
const (
	jobLockName = "pagerank-run"
	jobIDKey    = "pagerank:job"

	jobLockTTL        = 5 * time.Minute
	heartbeatInterval = time.Minute
)

// Job is the singleton PageRank batch run. At most one run executes
// across all replicas; triggering while a run is active returns the
// active run's ID instead of starting another.
type Job struct {
	edges  trawl.EdgeStore
	ranks  trawl.RankStore
	index  trawl.Index
	kv     trawl.KV
	locker trawl.Locker
	logger *slog.Logger

	damping       float64
	tolerance     float64
	maxIterations int
	interval      time.Duration
	now           func() time.Time
}

// JobOption configures a Job.
type JobOption func(*Job)

// WithJobClock overrides the time source. Used by tests.
func WithJobClock(now func() time.Time) JobOption {
	return func(j *Job) {
		j.now = now
	}
}

// NewJob creates a PageRank Job from the ranking configuration.
func NewJob(edges trawl.EdgeStore, ranks trawl.RankStore, index trawl.Index, kv trawl.KV, locker trawl.Locker, logger *slog.Logger, cfg trawl.PageRankConfig, opts ...JobOption) *Job {
	j := &Job{
		edges:         edges,
		ranks:         ranks,
		index:         index,
		kv:            kv,
		locker:        locker,
		logger:        logger,
		damping:       cfg.Damping,
		tolerance:     cfg.Tolerance,
		maxIterations: cfg.MaxIterations,
		interval:      cfg.Interval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run triggers a recomputation on the configured interval until ctx is
// canceled.
func (j *Job) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := j.Trigger(ctx); err != nil {
				j.logger.Error("scheduled pagerank trigger failed", "error", err)
			}
		}
	}
}

// Trigger starts a recomputation and returns its job ID. If a run is
// already active anywhere, its ID is returned instead.
func (j *Job) Trigger(ctx context.Context) (string, error) {
	lease, err := j.locker.Acquire(ctx, jobLockName, jobLockTTL)
	if err != nil {
		if trawl.ErrorCode(err) == trawl.ECONFLICT {
			return j.activeJobID(ctx)
		}
		return "", err
	}

	jobID := uuid.New().String()
	if err := j.kv.Set(ctx, jobIDKey, jobID, 0); err != nil {
		lease.Release(ctx)
		return "", err
	}

	// The run outlives the triggering request.
	go j.execute(context.WithoutCancel(ctx), lease, jobID)
	return jobID, nil
}

func (j *Job) activeJobID(ctx context.Context) (string, error) {
	id, err := j.kv.Get(ctx, jobIDKey)
	if err != nil {
		if trawl.ErrorCode(err) == trawl.ENOTFOUND {
			// The lock holder has not recorded its ID yet.
			return "", trawl.Errorf(trawl.ECONFLICT, "pagerank run starting elsewhere")
		}
		return "", err
	}
	return id, nil
}

func (j *Job) execute(ctx context.Context, lease trawl.Lease, jobID string) {
	defer func() {
		if err := j.kv.Del(ctx, jobIDKey); err != nil {
			j.logger.Error("pagerank job id cleanup failed", "jobId", jobID, "error", err)
		}
		if err := lease.Release(ctx); err != nil {
			j.logger.Error("pagerank lock release failed", "jobId", jobID, "error", err)
		}
	}()

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go j.heartbeat(hbCtx, lease, jobID)

	start := j.now()
	if err := j.Recompute(ctx); err != nil {
		j.logger.Error("pagerank run failed", "jobId", jobID, "error", err)
		return
	}
	j.logger.Info("pagerank run complete", "jobId", jobID, "duration", j.now().Sub(start))
}

func (j *Job) heartbeat(ctx context.Context, lease trawl.Lease, jobID string) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lease.Extend(ctx, jobLockTTL); err != nil {
				j.logger.Error("pagerank heartbeat failed", "jobId", jobID, "error", err)
				return
			}
		}
	}
}

// Recompute walks the link graph, runs the power iteration, and persists
// the fresh scores to the rank table and the index.
func (j *Job) Recompute(ctx context.Context) error {
	links := make(map[string][]string)
	err := j.edges.WalkEdges(ctx, func(e *trawl.Edge) error {
		links[e.SourceURL] = append(links[e.SourceURL], e.TargetURL)
		return nil
	})
	if err != nil {
		return err
	}

	results := Compute(links, j.damping, j.tolerance, j.maxIterations)
	if len(results) == 0 {
		j.logger.Info("pagerank skipped, empty link graph")
		return nil
	}

	at := j.now()
	records := make([]*trawl.RankRecord, 0, len(results))
	for url, res := range results {
		records = append(records, &trawl.RankRecord{
			URL:          url,
			Score:        res.Score,
			Inbound:      res.Inbound,
			Outbound:     res.Outbound,
			CalculatedAt: at,
		})
	}
	if err := j.ranks.ReplaceAll(ctx, records, at); err != nil {
		return err
	}

	// Index updates are best-effort per document; a URL that was crawled
	// but never indexed has no document to update.
	updated := 0
	for url, res := range results {
		err := j.index.UpdateRank(ctx, trawl.HashURL(url), res.Score, res.Inbound)
		if err != nil {
			if trawl.ErrorCode(err) == trawl.ENOTFOUND {
				continue
			}
			return err
		}
		updated++
	}

	j.logger.Info("pagerank scores persisted", "urls", len(records), "indexed", updated)
	return nil
}
