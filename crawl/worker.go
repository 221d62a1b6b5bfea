package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fwojciec/trawl"
)

// consumerGroupFetch is the bus consumer group of the fetch workers.
const consumerGroupFetch = "fetch-workers"

// Worker consumes fetch jobs, performs the polite fetch, and feeds the
// extraction output to the indexing and discovery topics. A job is
// acknowledged only after the URL record reflects the outcome, so a
// worker crash replays the job instead of losing it. The domain's
// in-flight slot, taken at dispatch, is freed here once the fetch
// concludes.
type Worker struct {
	urls     trawl.URLStore
	domains  trawl.DomainStore
	bus      trawl.Bus
	robots   trawl.RobotsService
	fetcher  trawl.Fetcher
	extract  trawl.Extractor
	breaker  trawl.CircuitBreaker
	inflight *Inflight
	logger   *slog.Logger

	now func() time.Time
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerClock overrides the time source. Used by tests.
func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(w *Worker) {
		w.now = now
	}
}

// NewWorker creates a fetch Worker.
func NewWorker(urls trawl.URLStore, domains trawl.DomainStore, bus trawl.Bus, robots trawl.RobotsService, fetcher trawl.Fetcher, extract trawl.Extractor, breaker trawl.CircuitBreaker, inflight *Inflight, logger *slog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		urls:     urls,
		domains:  domains,
		bus:      bus,
		robots:   robots,
		fetcher:  fetcher,
		extract:  extract,
		breaker:  breaker,
		inflight: inflight,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes the crawl-requests topic until ctx is canceled. consumer
// names this worker within the group for pending-entry recovery.
func (w *Worker) Run(ctx context.Context, consumer string) error {
	return w.bus.Consume(ctx, trawl.TopicCrawlRequests, consumerGroupFetch, consumer, w.Handle)
}

// Handle processes one fetch job. Returning nil acknowledges the message.
func (w *Worker) Handle(ctx context.Context, msg *trawl.Message) error {
	var job trawl.FetchJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		// Malformed payloads can never succeed; ack and move on. The
		// message key carries the domain, so the dispatch slot can still
		// be freed.
		w.logger.Error("dropping malformed fetch job", "error", err)
		if msg.Key != "" {
			w.release(ctx, msg.Key)
		}
		return nil
	}
	defer w.release(ctx, job.Domain)

	urlHash := trawl.HashURL(job.URL)

	allowed, err := w.robots.IsAllowed(ctx, job.URL)
	if err != nil {
		w.logger.Warn("robots check failed, treating as disallowed", "url", job.URL, "error", err)
		allowed = false
	}
	if !allowed {
		return w.finalizeBlocked(ctx, urlHash)
	}
	w.recordCrawlDelay(ctx, job.Domain)

	res, err := w.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		return w.finalizeFailure(ctx, &job, urlHash, true, fmt.Sprintf("fetch: %v", err))
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return w.finalizeSuccess(ctx, &job, urlHash, res)
	case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500:
		return w.finalizeFailure(ctx, &job, urlHash, true, fmt.Sprintf("http %d", res.StatusCode))
	default:
		// Remaining 4xx statuses never recover on retry.
		return w.finalizeFailure(ctx, &job, urlHash, false, fmt.Sprintf("http %d", res.StatusCode))
	}
}

// release frees the domain's in-flight slot taken at dispatch. Logged
// rather than returned: failing here must not trigger a redelivery of an
// already-finalized job.
func (w *Worker) release(ctx context.Context, domain string) {
	if err := w.inflight.Release(ctx, domain); err != nil {
		w.logger.Warn("in-flight release failed", "domain", domain, "error", err)
	}
}

// recordCrawlDelay persists the domain's robots.txt Crawl-delay so the
// dispatch gates pace subsequent fetches with it.
func (w *Worker) recordCrawlDelay(ctx context.Context, domain string) {
	delay, ok, err := w.robots.CrawlDelay(ctx, domain)
	if err != nil {
		w.logger.Warn("crawl delay lookup failed", "domain", domain, "error", err)
		return
	}
	if !ok {
		return
	}
	if err := w.domains.SetCrawlDelay(ctx, domain, delay); err != nil {
		w.logger.Warn("crawl delay record failed", "domain", domain, "error", err)
	}
}

func (w *Worker) finalizeBlocked(ctx context.Context, urlHash string) error {
	err := w.urls.UpdateStatusCAS(ctx, urlHash, trawl.StatusInProgress, trawl.StatusBlocked, func(r *trawl.URLRecord) {
		r.Error = "robots.txt disallows"
	})
	if err != nil && trawl.ErrorCode(err) != trawl.ECONFLICT {
		return err
	}
	return nil
}

func (w *Worker) finalizeSuccess(ctx context.Context, job *trawl.FetchJob, urlHash string, res *trawl.FetchResult) error {
	now := w.now()

	if err := w.breaker.RecordSuccess(ctx, job.Domain); err != nil {
		w.logger.Warn("breaker success record failed", "domain", job.Domain, "error", err)
	}
	if err := w.domains.RecordAttempt(ctx, job.Domain, true, now); err != nil {
		w.logger.Warn("domain attempt record failed", "domain", job.Domain, "error", err)
	}

	if len(res.Body) > 0 && isHTML(res.ContentType) {
		page, err := w.extract.Extract(string(res.Body), res.FinalURL)
		if err != nil {
			w.logger.Warn("extraction failed, completing without content", "url", job.URL, "error", err)
		} else if err := w.publishExtraction(ctx, job, res, page, now); err != nil {
			return err
		}
	}

	err := w.urls.UpdateStatusCAS(ctx, urlHash, trawl.StatusInProgress, trawl.StatusCompleted, func(r *trawl.URLRecord) {
		r.LastAttempt = now
		r.Error = ""
	})
	if err != nil && trawl.ErrorCode(err) != trawl.ECONFLICT {
		return err
	}

	w.logger.Info("fetched", "url", job.URL, "status", res.StatusCode, "bytes", len(res.Body), "duration", res.Duration)
	return nil
}

// publishExtraction emits the index job and, when the page has links, the
// link-discovery message. Both precede the status finalization so a crash
// here replays the whole job rather than losing the content.
func (w *Worker) publishExtraction(ctx context.Context, job *trawl.FetchJob, res *trawl.FetchResult, page *trawl.ExtractedPage, now time.Time) error {
	links := make([]string, 0, len(page.Links))
	for _, l := range page.Links {
		links = append(links, l.URL)
	}

	idx := trawl.IndexJob{
		URL:           res.FinalURL,
		Title:         page.Title,
		Content:       page.Text,
		OutboundLinks: links,
		Domain:        job.Domain,
		Depth:         job.Depth,
		CrawledAt:     now,
	}
	payload, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	if err := w.bus.Publish(ctx, trawl.TopicIndexRequests, res.FinalURL, payload); err != nil {
		return err
	}

	if len(page.Links) == 0 {
		return nil
	}
	disc := trawl.LinkDiscovery{
		URLs:         page.Links,
		SourceURL:    res.FinalURL,
		SourceDomain: job.Domain,
		SourceDepth:  job.Depth,
	}
	payload, err = json.Marshal(disc)
	if err != nil {
		return err
	}
	return w.bus.Publish(ctx, trawl.TopicLinkDiscoveries, job.Domain, payload)
}

func (w *Worker) finalizeFailure(ctx context.Context, job *trawl.FetchJob, urlHash string, retryable bool, cause string) error {
	now := w.now()

	if err := w.breaker.RecordFailure(ctx, job.Domain); err != nil {
		w.logger.Warn("breaker failure record failed", "domain", job.Domain, "error", err)
	}
	if err := w.domains.RecordAttempt(ctx, job.Domain, false, now); err != nil {
		w.logger.Warn("domain attempt record failed", "domain", job.Domain, "error", err)
	}

	err := w.urls.UpdateStatusCAS(ctx, urlHash, trawl.StatusInProgress, trawl.StatusFailed, func(r *trawl.URLRecord) {
		r.LastAttempt = now
		r.Error = cause
		if retryable {
			r.RetryCount++
			r.NextEligible = now.Add(retryBackoff(r.RetryCount))
		} else {
			// Terminal failures exhaust the retry budget immediately.
			r.RetryCount = trawl.MaxRetries
		}
	})
	if err != nil && trawl.ErrorCode(err) != trawl.ECONFLICT {
		return err
	}

	terminal := !retryable
	if retryable {
		rec, findErr := w.urls.FindURLByHash(ctx, urlHash)
		if findErr == nil && rec.RetryCount >= trawl.MaxRetries {
			terminal = true
		}
	}
	if terminal {
		if err := w.deadLetter(ctx, job, cause, now); err != nil {
			return err
		}
	}

	w.logger.Warn("fetch failed", "url", job.URL, "cause", cause, "retryable", retryable)
	return nil
}

// deadLetter records a terminally failed fetch on the DLQ topic for
// offline inspection.
func (w *Worker) deadLetter(ctx context.Context, job *trawl.FetchJob, cause string, now time.Time) error {
	dl := trawl.DeadLetter{
		URL:       job.URL,
		Domain:    job.Domain,
		Error:     cause,
		Timestamp: now,
	}
	payload, err := json.Marshal(dl)
	if err != nil {
		return err
	}
	return w.bus.Publish(ctx, trawl.TopicCrawlDLQ, job.Domain, payload)
}

// retryBackoff returns the wait before a FAILED URL becomes eligible
// again: 1m, 4m, 16m by retry count.
func retryBackoff(retry int) time.Duration {
	d := time.Minute
	for i := 1; i < retry; i++ {
		d *= 4
	}
	return d
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
