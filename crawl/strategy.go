package crawl

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/trawl"
)

// Strategy state keys in the shared store.
const (
	strategyKey  = "frontier:strategy"
	strategyLock = "frontier:strategy-switch"

	opicCashPrefix = "opic:cash:"
	opicInitCash   = 1.0
)

// Scorer assigns a frontier score to a URL record. Higher scores pop
// first. A false admit refuses the URL outright instead of enqueueing it
// at any score.
type Scorer interface {
	Name() trawl.StrategyName
	Score(ctx context.Context, rec *trawl.URLRecord) (score float64, admit bool, err error)
}

// bfsScorer pops shallowest-first. Depth is bounded by the crawl depth
// limit so the score stays positive.
type bfsScorer struct {
	maxDepth int
}

func (s *bfsScorer) Name() trawl.StrategyName { return trawl.StrategyBFS }

func (s *bfsScorer) Score(_ context.Context, rec *trawl.URLRecord) (float64, bool, error) {
	return float64(s.maxDepth-rec.Depth) + 1, true, nil
}

// bestFirstScorer blends link authority, domain reliability, and depth
// into a [0,100] score: half the weight on the URL's PageRank from the
// last ranking run, 0.3 on the domain's fetch success ratio, and 0.2 on
// remaining depth. Unranked URLs and unseen domains contribute zero.
type bestFirstScorer struct {
	ranks    trawl.RankStore
	domains  trawl.DomainStore
	maxDepth int
}

func (s *bestFirstScorer) Name() trawl.StrategyName { return trawl.StrategyBestFirst }

func (s *bestFirstScorer) Score(ctx context.Context, rec *trawl.URLRecord) (float64, bool, error) {
	pr, _, err := lastRank(ctx, s.ranks, rec.NormalizedURL)
	if err != nil {
		return 0, false, err
	}

	authority := 0.0
	if d, err := s.domains.FindDomain(ctx, rec.Domain); err == nil {
		if d.Attempts > 0 {
			authority = float64(d.Successes) / float64(d.Attempts)
		}
	} else if trawl.ErrorCode(err) != trawl.ENOTFOUND {
		return 0, false, err
	}

	depthFactor := 0.0
	if s.maxDepth > 0 && rec.Depth < s.maxDepth {
		depthFactor = float64(s.maxDepth-rec.Depth) / float64(s.maxDepth)
	}

	return (0.5*pr + 0.3*authority + 0.2*depthFactor) * 100, true, nil
}

// opicScorer pops by accumulated OPIC cash. Every URL enters the crawl
// holding one unit of cash; fetched pages hand their balance to their
// outbound links in equal shares.
type opicScorer struct {
	kv trawl.KV
}

func (s *opicScorer) Name() trawl.StrategyName { return trawl.StrategyOPIC }

func (s *opicScorer) Score(ctx context.Context, rec *trawl.URLRecord) (float64, bool, error) {
	raw, err := s.kv.Get(ctx, opicCashPrefix+rec.URLHash)
	if trawl.ErrorCode(err) == trawl.ENOTFOUND {
		// Not yet credited: score at the cash the URL receives on
		// admission.
		return opicInitCash, true, nil
	}
	if err != nil {
		return 0, false, err
	}
	cash, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return opicInitCash, true, nil
	}
	return cash, true, nil
}

// focusedScorer confines the crawl to the whitelisted domains; anything
// outside the whitelist is refused, not merely deprioritized. Admitted
// URLs score up to 50 points for keyword coverage plus a PageRank half,
// with 25 as the neutral value for unranked URLs.
type focusedScorer struct {
	keywords  []string
	whitelist map[string]bool
	ranks     trawl.RankStore
}

func (s *focusedScorer) Name() trawl.StrategyName { return trawl.StrategyFocused }

func (s *focusedScorer) Score(ctx context.Context, rec *trawl.URLRecord) (float64, bool, error) {
	if !s.whitelist[rec.Domain] {
		return 0, false, nil
	}

	kwScore := 0.0
	if len(s.keywords) > 0 {
		matches := 0
		lower := strings.ToLower(rec.NormalizedURL)
		for _, kw := range s.keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		kwScore = float64(matches) / float64(len(s.keywords)) * 50
	}

	pr, known, err := lastRank(ctx, s.ranks, rec.NormalizedURL)
	if err != nil {
		return 0, false, err
	}
	prScore := 25.0
	if known {
		prScore = pr * 50
	}

	return kwScore + prScore, true, nil
}

// lastRank looks up a URL's score from the last PageRank run. Absence is
// not an error; known reports whether the URL was ranked.
func lastRank(ctx context.Context, ranks trawl.RankStore, url string) (score float64, known bool, err error) {
	rr, err := ranks.FindRank(ctx, url)
	if err != nil {
		if trawl.ErrorCode(err) == trawl.ENOTFOUND {
			return 0, false, nil
		}
		return 0, false, err
	}
	return rr.Score, true, nil
}

// Strategy manages the active frontier scoring strategy. The active name
// lives in the shared store so every scheduler replica scores the same
// way; a switch re-scores the resident frontier under a lock.
type Strategy struct {
	kv       trawl.KV
	locker   trawl.Locker
	frontier trawl.Frontier
	urls     trawl.URLStore

	scorers map[trawl.StrategyName]Scorer
	initial trawl.StrategyName
}

// NewStrategy creates a Strategy manager. The frontier configuration
// supplies the startup default and the focused strategy's keyword and
// whitelist sets; the rank and domain stores feed the best-first and
// focused formulas.
func NewStrategy(kv trawl.KV, locker trawl.Locker, frontier trawl.Frontier, urls trawl.URLStore, ranks trawl.RankStore, domains trawl.DomainStore, cfg trawl.FrontierConfig, maxDepth int) *Strategy {
	whitelist := make(map[string]bool, len(cfg.DomainWhitelist))
	for _, d := range cfg.DomainWhitelist {
		whitelist[strings.ToLower(d)] = true
	}
	keywords := make([]string, 0, len(cfg.FocusedKeywords))
	for _, kw := range cfg.FocusedKeywords {
		keywords = append(keywords, strings.ToLower(kw))
	}

	scorers := map[trawl.StrategyName]Scorer{
		trawl.StrategyBFS:       &bfsScorer{maxDepth: maxDepth},
		trawl.StrategyBestFirst: &bestFirstScorer{ranks: ranks, domains: domains, maxDepth: maxDepth},
		trawl.StrategyOPIC:      &opicScorer{kv: kv},
		trawl.StrategyFocused:   &focusedScorer{keywords: keywords, whitelist: whitelist, ranks: ranks},
	}

	return &Strategy{
		kv:       kv,
		locker:   locker,
		frontier: frontier,
		urls:     urls,
		scorers:  scorers,
		initial:  cfg.Strategy,
	}
}

// Current returns the active strategy name from the shared store, falling
// back to the configured default when none has been set.
func (s *Strategy) Current(ctx context.Context) (trawl.StrategyName, error) {
	raw, err := s.kv.Get(ctx, strategyKey)
	if trawl.ErrorCode(err) == trawl.ENOTFOUND {
		return s.initial, nil
	}
	if err != nil {
		return "", err
	}
	name := trawl.StrategyName(raw)
	if !name.Valid() {
		return s.initial, nil
	}
	return name, nil
}

// Score scores a record under the active strategy.
func (s *Strategy) Score(ctx context.Context, rec *trawl.URLRecord) (float64, bool, error) {
	name, err := s.Current(ctx)
	if err != nil {
		return 0, false, err
	}
	return s.scorers[name].Score(ctx, rec)
}

// Switch activates a strategy and re-scores every resident frontier entry
// under a lock so concurrent switches cannot interleave. Entries refused
// by the new strategy stay resident at score zero rather than being
// dropped; a later switch can resurrect them.
func (s *Strategy) Switch(ctx context.Context, name trawl.StrategyName) error {
	if !name.Valid() {
		return trawl.Errorf(trawl.EINVALID, "unknown frontier strategy %q", name)
	}

	lease, err := s.locker.Acquire(ctx, strategyLock, time.Minute)
	if err != nil {
		if trawl.ErrorCode(err) == trawl.ECONFLICT {
			return trawl.Errorf(trawl.ECONFLICT, "strategy switch already in progress")
		}
		return err
	}
	defer lease.Release(ctx)

	if err := s.kv.Set(ctx, strategyKey, string(name), 0); err != nil {
		return err
	}

	scorer := s.scorers[name]
	return s.frontier.Walk(ctx, func(entry trawl.FrontierEntry) error {
		rec, err := s.urls.FindURLByHash(ctx, trawl.HashURL(entry.URL))
		if err != nil {
			if trawl.ErrorCode(err) == trawl.ENOTFOUND {
				return nil
			}
			return err
		}
		score, admit, err := scorer.Score(ctx, rec)
		if err != nil {
			return err
		}
		if !admit {
			score = 0
		}
		return s.frontier.Add(ctx, trawl.FrontierEntry{URL: entry.URL, Score: score})
	})
}

// InitCash credits a newly admitted URL with its initial OPIC cash.
// Called exactly once per URL, when its record is first created, so
// shares already received from fetched pages are preserved on top.
func (s *Strategy) InitCash(ctx context.Context, urlHash string) error {
	_, err := s.kv.IncrByFloat(ctx, opicCashPrefix+urlHash, opicInitCash)
	return err
}

// DistributeCash hands a fetched page's OPIC cash to its outbound links
// in equal shares and zeroes the page's own balance. A page with no cash
// or no links distributes nothing.
func (s *Strategy) DistributeCash(ctx context.Context, sourceHash string, targetHashes []string) error {
	if len(targetHashes) == 0 {
		return nil
	}
	raw, err := s.kv.Get(ctx, opicCashPrefix+sourceHash)
	if trawl.ErrorCode(err) == trawl.ENOTFOUND {
		return nil
	}
	if err != nil {
		return err
	}
	cash, err := strconv.ParseFloat(raw, 64)
	if err != nil || cash <= 0 {
		return nil
	}

	share := cash / float64(len(targetHashes))
	for _, h := range targetHashes {
		if _, err := s.kv.IncrByFloat(ctx, opicCashPrefix+h, share); err != nil {
			return err
		}
	}
	// The spent balance is written as zero rather than deleted, keeping
	// it distinct from a URL that was never credited.
	return s.kv.Set(ctx, opicCashPrefix+sourceHash, "0", 0)
}
