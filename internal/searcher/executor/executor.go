// Package executor evaluates parsed queries against the in-memory index.
package executor

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/searcher/parser"
	apperrors "github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/errors"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/metrics"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/tracing"
)

// DocumentView is the response form of a matched document.
type DocumentView struct {
	ID           uint32 `json:"id"`
	URL          string `json:"url"`
	Connectivity int    `json:"connectivity"`
}

type SearchResult struct {
	Query      string         `json:"query"`
	Postfix    string         `json:"postfix"`
	Epoch      string         `json:"epoch"`
	Generation uint64         `json:"generation"`
	TotalHits  int            `json:"total_hits"`
	Documents  []DocumentView `json:"documents"`
}

// Executor answers queries against the current index. The index can be
// replaced at any time with Swap; a query in flight keeps the index it
// started with.
type Executor struct {
	current atomic.Pointer[index.Index]
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Executor serving idx. m may be nil.
func New(idx *index.Index, m *metrics.Metrics) *Executor {
	e := &Executor{
		metrics: m,
		logger:  slog.Default().With("component", "query-executor"),
	}
	e.current.Store(idx)
	return e
}

// Swap installs idx as the index for subsequent queries and returns the
// previous one.
func (e *Executor) Swap(idx *index.Index) *index.Index {
	return e.current.Swap(idx)
}

func (e *Executor) Index() *index.Index {
	return e.current.Load()
}

// Query parses raw and returns the IDs of every matching document. A query
// that matches nothing, including a malformed one, yields an empty set.
func (e *Executor) Query(ctx context.Context, raw string) *roaring.Bitmap {
	plan := parser.Parse(raw)
	set, _ := e.evaluate(ctx, e.Index(), plan)
	return set
}

// Execute evaluates plan and resolves up to limit matching documents in
// ascending ID order. A limit of zero or less returns every match.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		e.observe("error", 0)
		return nil, apperrors.Newf(apperrors.ErrTimeout, http.StatusServiceUnavailable, "query %q: %v", plan.Raw, err)
	}
	start := time.Now()
	idx := e.Index()
	set, generation := e.evaluate(ctx, idx, plan)

	_, span := tracing.StartChildSpan(ctx, "resolve")
	ids := set.ToArray()
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	docs := make([]DocumentView, 0, len(ids))
	for _, id := range ids {
		doc := idx.Document(id)
		docs = append(docs, DocumentView{
			ID:           doc.ID,
			URL:          doc.URL,
			Connectivity: doc.Connectivity(),
		})
	}
	span.SetAttr("documents", len(docs))
	span.End()

	total := int(set.GetCardinality())
	resultType := "hit"
	if total == 0 {
		resultType = "zero_result"
	}
	e.observe(resultType, total)
	e.logger.Info("query executed",
		"query", plan.Raw,
		"postfix", plan.Canonical(),
		"total_hits", total,
		"returned", len(docs),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return &SearchResult{
		Query:      plan.Raw,
		Postfix:    plan.Canonical(),
		Epoch:      idx.Epoch(),
		Generation: generation,
		TotalHits:  total,
		Documents:  docs,
	}, nil
}

func (e *Executor) evaluate(ctx context.Context, idx *index.Index, plan *parser.QueryPlan) (*roaring.Bitmap, uint64) {
	_, span := tracing.StartChildSpan(ctx, "evaluate")
	defer span.End()

	var (
		set        *roaring.Bitmap
		generation uint64
	)
	idx.View(func(s index.Searcher) {
		set = Evaluate(s, plan.Postfix)
		generation = s.Generation()
	})
	span.SetAttr("operators", len(plan.Postfix))
	span.SetAttr("matches", set.GetCardinality())
	return set, generation
}

func (e *Executor) observe(resultType string, total int) {
	if e.metrics == nil {
		return
	}
	e.metrics.QueriesTotal.WithLabelValues(resultType).Inc()
	if resultType != "error" {
		e.metrics.QueryResultsCount.Observe(float64(total))
	}
}
