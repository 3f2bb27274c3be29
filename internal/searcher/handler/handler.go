package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/searcher/cache"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/searcher/executor"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/searcher/parser"
	apperrors "github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/errors"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/logger"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/metrics"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/middleware"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/tracing"
)

// Loader produces a fresh index, typically by reading the snapshot file.
type Loader func() (*index.Index, error)

type Options struct {
	DefaultLimit int
	MaxResults   int
	Timeout      time.Duration
	TraceSpans   bool
}

type Handler struct {
	executor *executor.Executor
	cache    *cache.QueryCache
	loader   Loader
	opts     Options
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates the search API handler. queryCache, loader and m may be nil.
func New(exec *executor.Executor, queryCache *cache.QueryCache, loader Loader, m *metrics.Metrics, opts Options) *Handler {
	return &Handler{
		executor: exec,
		cache:    queryCache,
		loader:   loader,
		opts:     opts,
		metrics:  m,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.opts.DefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if h.opts.MaxResults > 0 && (limit <= 0 || limit > h.opts.MaxResults) {
		limit = h.opts.MaxResults
	}

	if h.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.Timeout)
		defer cancel()
	}
	var root *tracing.Span
	if h.opts.TraceSpans {
		ctx, root = tracing.StartSpan(ctx, "search", middleware.GetRequestID(ctx))
		defer func() {
			root.End()
			root.Log()
		}()
	}

	_, parseSpan := tracing.StartChildSpan(ctx, "parse")
	plan := parser.Parse(query)
	parseSpan.SetAttr("tokens", len(plan.Tokens))
	parseSpan.End()

	var (
		result   *executor.SearchResult
		err      error
		cacheHit bool
	)
	cacheStatus := "disabled"
	if h.cache != nil {
		version := h.executor.Index().Version()
		result, cacheHit, err = h.cache.GetOrCompute(ctx, plan, version, limit, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, plan, limit)
		})
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = h.executor.Execute(ctx, plan, limit)
	}

	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed")
		return
	}

	latency := time.Since(start)
	if h.metrics != nil {
		h.metrics.QueryLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	}
	if root != nil {
		root.SetAttr("total_hits", result.TotalHits)
		root.SetAttr("cache", cacheStatus)
	}
	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Documents),
		"cache", cacheStatus,
		"latency_ms", latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.executor.Index().Stats())
}

// Reload replaces the served index with a freshly loaded one and drops every
// cached result. On failure the current index keeps serving.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	if h.loader == nil {
		h.writeError(w, http.StatusServiceUnavailable, "reloading is not configured")
		return
	}
	idx, err := h.loader()
	if err != nil {
		log.Error("index reload failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), fmt.Sprintf("reload failed: %v", err))
		return
	}
	previous := h.executor.Swap(idx)
	if h.cache != nil {
		if _, err := h.cache.Invalidate(r.Context()); err != nil {
			log.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	stats := idx.Stats()
	log.Info("index reloaded",
		"documents", stats.Documents,
		"terms", stats.Terms,
		"previous_documents", previous.DocCount(),
	)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": "reloaded",
		"index":  stats,
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
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
