// Package indexer owns the live index of the indexer service: it accepts
// documents from the page-event consumer and periodically writes the index
// to its snapshot file, which the search service reloads.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/segment"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/config"
	apperrors "github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/errors"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/metrics"
)

type Engine struct {
	idx     *index.Index
	cfg     config.IndexerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger

	flushMu sync.Mutex
	flushed uint64
}

// NewEngine opens the snapshot at cfg.SnapshotPath, or starts from an empty
// index when the file does not exist yet. A snapshot that exists but cannot
// be read is an error. m may be nil.
func NewEngine(cfg config.IndexerConfig, m *metrics.Metrics) (*Engine, error) {
	e := &Engine{
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
	idx, header, err := segment.Load(cfg.SnapshotPath)
	switch {
	case err == nil:
		e.idx = idx
		e.flushed = idx.Generation()
		e.logger.Info("loaded index snapshot",
			"path", cfg.SnapshotPath,
			"documents", header.DocCount,
			"terms", header.TermCount,
			"created_at", header.CreatedAt,
		)
	case errors.Is(err, fs.ErrNotExist):
		e.idx = index.New()
		e.logger.Info("no snapshot found, starting empty", "path", cfg.SnapshotPath)
	default:
		return nil, fmt.Errorf("loading snapshot %s: %w", cfg.SnapshotPath, err)
	}
	e.observeSize()
	return e, nil
}

// Index returns the live index.
func (e *Engine) Index() *index.Index {
	return e.idx
}

// AddDocument indexes one page. Duplicates are rejected with
// ErrDocumentExists and counted.
func (e *Engine) AddDocument(doc *index.Document, words []string) error {
	err := e.idx.AddDocument(doc, words)
	if e.metrics != nil {
		switch {
		case err == nil && doc.ID != 0:
			e.metrics.DocsIndexedTotal.Inc()
		case apperrors.Is(err, apperrors.ErrDocumentExists):
			e.metrics.DuplicateDocsTotal.Inc()
		}
	}
	if err != nil {
		return err
	}
	e.observeSize()
	e.logger.Debug("document indexed", "doc_id", doc.ID, "url", doc.URL, "words", len(words))
	return nil
}

// Flush writes the snapshot if anything was added since the last flush.
func (e *Engine) Flush() error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	if e.idx.Generation() == e.flushed {
		return nil
	}
	header, err := segment.Save(e.cfg.SnapshotPath, e.idx)
	if err != nil {
		e.observeFlush("error")
		return fmt.Errorf("flushing index: %w", err)
	}
	e.flushed = header.Generation
	e.observeFlush("success")
	e.logger.Info("index snapshot flushed",
		"path", e.cfg.SnapshotPath,
		"documents", header.DocCount,
		"terms", header.TermCount,
		"generation", header.Generation,
		"bytes", header.PayloadSize,
	)
	return nil
}

// StartFlushLoop flushes every FlushInterval until ctx is cancelled, then
// performs a final flush.
func (e *Engine) StartFlushLoop(ctx context.Context) {
	interval := e.cfg.FlushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if err := e.Flush(); err != nil {
					e.logger.Error("periodic flush failed", "error", err)
				}
			}
		}
	}()
}

// Close flushes any unsaved documents.
func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		return fmt.Errorf("final flush on close: %w", err)
	}
	return nil
}

// Ping reports whether the snapshot directory is usable; it backs the
// readiness probe.
func (e *Engine) Ping(context.Context) error {
	if _, err := os.Stat(e.cfg.SnapshotPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (e *Engine) observeSize() {
	if e.metrics == nil {
		return
	}
	stats := e.idx.Stats()
	e.metrics.IndexDocuments.Set(float64(stats.Documents))
	e.metrics.IndexTerms.Set(float64(stats.Terms))
}

func (e *Engine) observeFlush(status string) {
	if e.metrics != nil {
		e.metrics.IndexFlushesTotal.WithLabelValues(status).Inc()
	}
}
