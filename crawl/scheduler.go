package crawl

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fwojciec/trawl"
)

// reaperBatch bounds how many failed or stale records one tick requeues.
const reaperBatch = 100

// Scheduler drains the frontier into the fetch pipeline. Each tick pops a
// batch of top-scored URLs, runs every politeness gate, claims each URL
// with a status compare-and-set, and publishes a fetch job keyed by
// domain. URLs a gate refuses go back into the frontier at a reduced
// score so they retry later without blocking the batch.
//
// The scheduler also reaps: FAILED records below the retry limit return
// to PENDING with decayed priority, and IN_PROGRESS records whose worker
// died return to PENDING untouched.
type Scheduler struct {
	urls     trawl.URLStore
	frontier trawl.Frontier
	bus      trawl.Bus
	governor *Governor
	strategy *Strategy
	logger   *slog.Logger

	tick       time.Duration
	batch      int
	staleAfter time.Duration
	now        func() time.Time
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock overrides the time source. Used by tests.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// NewScheduler creates a Scheduler from the crawler configuration.
func NewScheduler(urls trawl.URLStore, frontier trawl.Frontier, bus trawl.Bus, governor *Governor, strategy *Strategy, logger *slog.Logger, cfg trawl.CrawlerConfig, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		urls:       urls,
		frontier:   frontier,
		bus:        bus,
		governor:   governor,
		strategy:   strategy,
		logger:     logger,
		tick:       cfg.SchedulerTick,
		batch:      cfg.SchedulerBatch,
		staleAfter: cfg.StaleAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until ctx is canceled. Tick errors are logged, not fatal; the
// next tick starts from a clean slate.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		}
	}
}

// Tick runs one scheduling pass: reap, then dispatch.
func (s *Scheduler) Tick(ctx context.Context) error {
	if err := s.reapFailed(ctx); err != nil {
		s.logger.Error("failed-url reaper errored", "error", err)
	}
	if err := s.reapStale(ctx); err != nil {
		s.logger.Error("stale-url reaper errored", "error", err)
	}
	return s.dispatch(ctx)
}

func (s *Scheduler) dispatch(ctx context.Context) error {
	entries, err := s.frontier.PopMax(ctx, s.batch)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := s.dispatchOne(ctx, entry); err != nil {
			s.logger.Error("dispatch failed", "url", entry.URL, "error", err)
			// Popped but not dispatched; put it back so it is not lost.
			if addErr := s.frontier.Add(ctx, entry); addErr != nil {
				s.logger.Error("frontier re-add failed", "url", entry.URL, "error", addErr)
			}
		}
	}
	return nil
}

func (s *Scheduler) dispatchOne(ctx context.Context, entry trawl.FrontierEntry) error {
	rec, err := s.urls.FindURLByHash(ctx, trawl.HashURL(entry.URL))
	if err != nil {
		if trawl.ErrorCode(err) == trawl.ENOTFOUND {
			// Frontier entry without a record; drop it.
			return nil
		}
		return err
	}
	if rec.Status != trawl.StatusPending {
		// Claimed or finished elsewhere since the entry was scored.
		return nil
	}

	now := s.now()
	if rec.NextEligible.After(now) {
		return s.postpone(ctx, entry, rec.NextEligible.Sub(now))
	}

	decision, err := s.governor.Admit(ctx, rec.Domain)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		if decision.Reason == DenyBlocked {
			// Administratively blocked domains leave the frontier for good.
			return s.urls.UpdateStatusCAS(ctx, rec.URLHash, trawl.StatusPending, trawl.StatusBlocked, func(r *trawl.URLRecord) {
				r.Error = "domain blocked"
			})
		}
		return s.postpone(ctx, entry, decision.Wait)
	}
	job := trawl.FetchJob{
		URL:       rec.NormalizedURL,
		Domain:    rec.Domain,
		Depth:     rec.Depth,
		Priority:  rec.Priority,
		Timestamp: now,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		s.release(ctx, rec.Domain)
		return err
	}

	err = s.urls.UpdateStatusCAS(ctx, rec.URLHash, trawl.StatusPending, trawl.StatusInProgress, func(r *trawl.URLRecord) {
		r.LastAttempt = now
	})
	if err != nil {
		// The in-flight slot belongs to the fetch worker from here on;
		// a failed claim hands it back.
		s.release(ctx, rec.Domain)
		if trawl.ErrorCode(err) == trawl.ECONFLICT {
			// Another scheduler replica won the claim.
			return nil
		}
		return err
	}
	if err := s.bus.Publish(ctx, trawl.TopicCrawlRequests, rec.Domain, payload); err != nil {
		// The claim stands but the job never left; return the record to
		// PENDING and free the slot so the next tick retries.
		s.release(ctx, rec.Domain)
		if casErr := s.urls.UpdateStatusCAS(ctx, rec.URLHash, trawl.StatusInProgress, trawl.StatusPending, func(*trawl.URLRecord) {}); casErr != nil {
			s.logger.Error("unclaim after publish failure errored", "url", rec.NormalizedURL, "error", casErr)
		}
		return err
	}

	s.logger.Debug("dispatched", "url", rec.NormalizedURL, "domain", rec.Domain, "score", entry.Score)
	return nil
}

// postpone re-adds a refused entry at half its score and stamps the record
// with the earliest eligible moment so the next pop skips it cheaply.
func (s *Scheduler) postpone(ctx context.Context, entry trawl.FrontierEntry, wait time.Duration) error {
	if wait <= 0 {
		wait = s.tick
	}
	eligible := s.now().Add(wait)

	err := s.urls.UpdateStatusCAS(ctx, trawl.HashURL(entry.URL), trawl.StatusPending, trawl.StatusPending, func(r *trawl.URLRecord) {
		r.NextEligible = eligible
	})
	if err != nil && trawl.ErrorCode(err) != trawl.ECONFLICT {
		return err
	}
	return s.frontier.Add(ctx, trawl.FrontierEntry{URL: entry.URL, Score: entry.Score / 2})
}

// reapFailed returns retryable FAILED records to PENDING with decayed
// priority and re-enqueues them.
func (s *Scheduler) reapFailed(ctx context.Context) error {
	cutoff := s.now().Add(-s.backoffFloor())
	recs, err := s.urls.FindRetryable(ctx, cutoff, reaperBatch)
	if err != nil {
		return err
	}

	for _, rec := range recs {
		err := s.urls.UpdateStatusCAS(ctx, rec.URLHash, trawl.StatusFailed, trawl.StatusPending, func(r *trawl.URLRecord) {
			r.Priority = decayPriority(r.Priority)
			r.Error = ""
		})
		if err != nil {
			if trawl.ErrorCode(err) == trawl.ECONFLICT {
				continue
			}
			return err
		}
		if err := s.requeue(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// reapStale returns IN_PROGRESS records abandoned by a dead worker to
// PENDING without touching their retry budget.
func (s *Scheduler) reapStale(ctx context.Context) error {
	cutoff := s.now().Add(-s.staleAfter)
	recs, err := s.urls.FindStaleInProgress(ctx, cutoff, reaperBatch)
	if err != nil {
		return err
	}

	for _, rec := range recs {
		err := s.urls.UpdateStatusCAS(ctx, rec.URLHash, trawl.StatusInProgress, trawl.StatusPending, func(*trawl.URLRecord) {})
		if err != nil {
			if trawl.ErrorCode(err) == trawl.ECONFLICT {
				continue
			}
			return err
		}
		// The dead worker never released its in-flight slot.
		s.release(ctx, rec.Domain)
		s.logger.Warn("requeued stale url", "url", rec.NormalizedURL, "lastAttempt", rec.LastAttempt)
		if err := s.requeue(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// release frees a domain's in-flight slot, logging instead of failing
// the tick when the shared store is unreachable.
func (s *Scheduler) release(ctx context.Context, domain string) {
	if err := s.governor.Release(ctx, domain); err != nil {
		s.logger.Error("in-flight release failed", "domain", domain, "error", err)
	}
}

func (s *Scheduler) requeue(ctx context.Context, rec *trawl.URLRecord) error {
	score, admit, err := s.strategy.Score(ctx, rec)
	if err != nil {
		return err
	}
	if !admit {
		return nil
	}
	return s.frontier.Add(ctx, trawl.FrontierEntry{URL: rec.NormalizedURL, Score: score})
}

// backoffFloor is the minimum age a FAILED record must reach before the
// reaper considers it. One tick keeps hot failures from spinning.
func (s *Scheduler) backoffFloor() time.Duration {
	return s.tick
}

// decayPriority steps a retried URL's priority down, never below one.
func decayPriority(p float64) float64 {
	if p <= 1 {
		return 1
	}
	return p - 1
}
