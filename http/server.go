package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fwojciec/trawl"
)

// SeedAdmitter admits seed URLs into the frontier at depth 0.
type SeedAdmitter interface {
	AdmitSeeds(ctx context.Context, urls []string) (int, error)
}

// StrategySwitcher swaps the frontier scoring strategy under lock.
type StrategySwitcher interface {
	Switch(ctx context.Context, name trawl.StrategyName) error
}

// RankTrigger starts an asynchronous PageRank run. While a run is active
// the trigger is idempotent and returns the running job's id.
type RankTrigger interface {
	Trigger(ctx context.Context) (jobID string, err error)
}

// Server serves the public search API and the administrative API.
type Server struct {
	ln     net.Listener
	server *http.Server

	Addr   string
	Logger *slog.Logger

	Searcher trawl.Searcher
	URLs     trawl.URLStore
	Frontier trawl.Frontier
	Index    trawl.Index
	Limiter  trawl.RateLimiter
	Breaker  trawl.CircuitBreaker
	Domains  trawl.DomainStore

	Seeds    SeedAdmitter
	Strategy StrategySwitcher
	Ranker   RankTrigger
}

// NewServer creates a Server with its routes registered.
func NewServer() *Server {
	s := &Server{
		server: &http.Server{
			ReadHeaderTimeout: 5 * time.Second,
		},
		Logger: slog.Default(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/search/suggestions", s.handleSuggestions)

	mux.HandleFunc("POST /api/v1/admin/crawl/seeds", s.handleSeeds)
	mux.HandleFunc("GET /api/v1/admin/stats/crawler", s.handleCrawlerStats)
	mux.HandleFunc("POST /api/v1/admin/indexer/pagerank/update", s.handlePageRankUpdate)
	mux.HandleFunc("POST /api/v1/admin/frontier/strategy", s.handleStrategy)
	mux.HandleFunc("GET /api/v1/admin/rate-limit/{domain}", s.handleRateLimitStatus)
	mux.HandleFunc("POST /api/v1/admin/rate-limit/{domain}/reset", s.handleRateLimitReset)
	mux.HandleFunc("POST /api/v1/admin/domains/{domain}/block", s.handleDomainBlock)

	s.server.Handler = mux
	return s
}

// Open begins listening on the configured address.
func (s *Server) Open() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.Logger.Error("http server terminated", "error", err)
		}
	}()
	return nil
}

// Close gracefully shuts the server down.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// URL returns the base URL the server listens on. Only valid after Open.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

// Handler exposes the route table. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := &trawl.SearchRequest{
		Query: q.Get("q"),
		Sort:  q.Get("sort"),
	}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.Size, _ = strconv.Atoi(q.Get("size"))

	resp, err := s.Searcher.Search(r.Context(), req)
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, resp)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")

	suggestions, err := s.Searcher.Suggest(r.Context(), prefix, 5)
	if err != nil {
		s.error(w, r, err)
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	s.respond(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) handleSeeds(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URLs []string `json:"urls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.error(w, r, trawl.Errorf(trawl.EINVALID, "invalid JSON body: %v", err))
		return
	}
	if len(body.URLs) == 0 {
		s.error(w, r, trawl.Errorf(trawl.EINVALID, "urls required"))
		return
	}

	admitted, err := s.Seeds.AdmitSeeds(r.Context(), body.URLs)
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusAccepted, map[string]any{"accepted": admitted})
}

func (s *Server) handleCrawlerStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.URLs.CountByStatus(r.Context())
	if err != nil {
		s.error(w, r, err)
		return
	}

	stats := map[string]any{"byStatus": counts}
	if s.Frontier != nil {
		if n, err := s.Frontier.Len(r.Context()); err == nil {
			stats["frontierSize"] = n
		}
	}
	if s.Index != nil {
		if n, err := s.Index.Count(r.Context()); err == nil {
			stats["indexedDocuments"] = n
		}
	}
	s.respond(w, http.StatusOK, stats)
}

func (s *Server) handlePageRankUpdate(w http.ResponseWriter, r *http.Request) {
	jobID, err := s.Ranker.Trigger(r.Context())
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

func (s *Server) handleStrategy(w http.ResponseWriter, r *http.Request) {
	name := trawl.StrategyName(r.URL.Query().Get("strategy"))
	if !name.Valid() {
		s.error(w, r, trawl.Errorf(trawl.EINVALID, "unknown strategy %q", name))
		return
	}

	if err := s.Strategy.Switch(r.Context(), name); err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"strategy": string(name)})
}

func (s *Server) handleRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")

	res, err := s.Limiter.Status(r.Context(), domain)
	if err != nil {
		s.error(w, r, err)
		return
	}
	state, err := s.Breaker.State(r.Context(), domain)
	if err != nil {
		s.error(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]any{
		"domain":       domain,
		"tokens":       res.Tokens,
		"waitMs":       res.Wait.Milliseconds(),
		"circuitState": state,
	})
}

func (s *Server) handleRateLimitReset(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")

	if err := s.Limiter.Reset(r.Context(), domain); err != nil {
		s.error(w, r, err)
		return
	}
	if err := s.Breaker.Reset(r.Context(), domain); err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"domain": domain, "status": "reset"})
}

func (s *Server) handleDomainBlock(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")
	blocked := r.URL.Query().Get("blocked") != "false"

	if err := s.Domains.SetBlocked(r.Context(), domain, blocked); err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"domain": domain, "blocked": blocked})
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) error(w http.ResponseWriter, r *http.Request, err error) {
	code := trawl.ErrorCode(err)
	status := statusFromCode(code)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.respond(w, status, map[string]string{
		"code":  code,
		"error": trawl.ErrorMessage(err),
	})
}

func statusFromCode(code string) int {
	switch code {
	case trawl.EINVALID:
		return http.StatusBadRequest
	case trawl.ENOTFOUND:
		return http.StatusNotFound
	case trawl.ECONFLICT:
		return http.StatusConflict
	case trawl.ERATELIMIT:
		return http.StatusTooManyRequests
	case trawl.EUNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
