// Package handler exposes search, document browsing, refresh requests and
// cache administration over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

type SearchExecutor interface {
	Parse(raw string) (*parser.Query, error)
	ExecuteQuery(ctx context.Context, q *parser.Query, limit int) (*executor.SearchResult, error)
	Limit(requested int) int
	SnapshotVersion() uint64
}

type DocumentStore interface {
	ListDocuments(ctx context.Context) ([]store.DocumentSummary, error)
	GetDocument(ctx context.Context, id int64) (*corpus.Document, error)
}

// Deps collects the handler's collaborators. Cache, Collector, Refresh,
// Metrics and Checker are optional.
type Deps struct {
	Executor  SearchExecutor
	Documents DocumentStore
	Cache     *cache.QueryCache
	Collector *analytics.Collector
	Refresh   kafka.Publisher
	Metrics   *metrics.Metrics
	Checker   *health.Checker
}

type Handler struct {
	executor  SearchExecutor
	documents DocumentStore
	cache     *cache.QueryCache
	collector *analytics.Collector
	refresh   kafka.Publisher
	metrics   *metrics.Metrics
	checker   *health.Checker
	logger    *slog.Logger
}

func New(deps Deps) *Handler {
	checker := deps.Checker
	if checker == nil {
		checker = health.NewChecker()
	}
	return &Handler{
		executor:  deps.Executor,
		documents: deps.Documents,
		cache:     deps.Cache,
		collector: deps.Collector,
		refresh:   deps.Refresh,
		metrics:   deps.Metrics,
		checker:   checker,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents", h.ListDocuments)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)
	mux.HandleFunc("POST /api/v1/documents/refresh", h.RequestRefresh)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", h.checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", h.checker.ReadyHandler())
}

// Search serves GET /api/v1/search?q=&limit=. A query without searchable
// terms, including a missing q, is answered with an empty result list.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	raw := r.URL.Query().Get("q")
	requested := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		requested = parsed
	}

	q, err := h.executor.Parse(raw)
	if err != nil {
		var mqe *parser.MalformedQueryError
		if !errors.As(err, &mqe) {
			h.writeError(w, err)
			return
		}
		result := &executor.SearchResult{
			Query:           raw,
			Lexemes:         []string{},
			Results:         []executor.Hit{},
			SnapshotVersion: h.executor.SnapshotVersion(),
		}
		h.observe(ctx, result, false, start)
		h.writeJSON(w, http.StatusOK, result)
		return
	}

	limit := h.executor.Limit(requested)
	version := h.executor.SnapshotVersion()
	compute := func() (*executor.SearchResult, error) {
		return h.executor.ExecuteQuery(ctx, q, limit)
	}
	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil && version > 0 {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, q, limit, version, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		log.Error("search failed", "query", raw, "error", err)
		h.metrics.ObserveSearch(metrics.ResultError, cacheStatus(h.cache, cacheHit), 0, time.Since(start))
		h.writeError(w, err)
		return
	}

	if h.cache != nil {
		result = withQuery(result, q)
	}

	h.observe(ctx, result, cacheHit, start)
	log.Info("search completed",
		"query", raw,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) observe(ctx context.Context, result *executor.SearchResult, cacheHit bool, start time.Time) {
	elapsed := time.Since(start)
	eventType := analytics.ClassifyEvent(result.Lexemes, result.TotalHits)
	resultType := metrics.ResultHit
	switch eventType {
	case analytics.EventMalformed:
		resultType = metrics.ResultMalformed
	case analytics.EventZeroResult:
		resultType = metrics.ResultZero
	}
	h.metrics.ObserveSearch(resultType, cacheStatus(h.cache, cacheHit), result.TotalHits, elapsed)
	h.collector.Track(analytics.SearchEvent{
		Type:            eventType,
		Query:           result.Query,
		Lexemes:         result.Lexemes,
		TotalHits:       result.TotalHits,
		Returned:        len(result.Results),
		LatencyMs:       elapsed.Milliseconds(),
		CacheHit:        cacheHit,
		SnapshotVersion: result.SnapshotVersion,
		Timestamp:       time.Now().UTC(),
		RequestID:       logger.RequestID(ctx),
	})
}

// withQuery copies a cached or coalesced result and stamps it with this
// caller's query. Results are shared between queries that differ only in
// lexeme order.
func withQuery(result *executor.SearchResult, q *parser.Query) *executor.SearchResult {
	own := *result
	own.Query = q.Raw
	own.Lexemes = q.Lexemes
	return &own
}

func cacheStatus(c *cache.QueryCache, hit bool) string {
	switch {
	case c == nil:
		return "disabled"
	case hit:
		return "hit"
	default:
		return "miss"
	}
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.documents.ListDocuments(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
	})
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid document id %q", r.PathValue("id")))
		return
	}
	doc, err := h.documents.GetDocument(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// RequestRefresh asks the indexer for a rebuild and returns 202 with the
// request id; completion is announced on the index-complete topic.
func (h *Handler) RequestRefresh(w http.ResponseWriter, r *http.Request) {
	if h.refresh == nil {
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "refresh requests are disabled"))
		return
	}
	req := ingestion.RefreshRequest{
		RequestID:   logger.RequestID(r.Context()),
		RequestedAt: time.Now().UTC(),
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if err := h.refresh.Publish(r.Context(), kafka.Event{Key: req.RequestID, Value: req}); err != nil {
		logger.FromContext(r.Context()).Error("failed to publish refresh request", "error", err)
		h.writeError(w, fmt.Errorf("publishing refresh request: %w", err))
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "accepted",
		"request_id": req.RequestID,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to its status code. Messages of unexpected errors are
// not exposed.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := "internal error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	} else if status != http.StatusInternalServerError {
		message = err.Error()
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
