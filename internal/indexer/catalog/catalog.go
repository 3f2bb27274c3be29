// Package catalog keeps a PostgreSQL table of every document the indexer
// has accepted, so operators can inspect the corpus without loading the
// index.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/resilience"
)

const defaultTimeout = 3 * time.Second

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		url          TEXT PRIMARY KEY,
		id           BIGINT NOT NULL,
		connectivity INTEGER NOT NULL DEFAULT 1,
		word_count   INTEGER NOT NULL,
		indexed_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS documents_id_idx ON documents (id)`,
}

const upsertDocument = `
INSERT INTO documents (id, url, connectivity, word_count, indexed_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (url) DO UPDATE SET
	id           = EXCLUDED.id,
	connectivity = EXCLUDED.connectivity,
	word_count   = EXCLUDED.word_count,
	indexed_at   = EXCLUDED.indexed_at`

// Execer is satisfied by *sql.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Catalog struct {
	db      Execer
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

func New(db Execer) *Catalog {
	return &Catalog{
		db:      db,
		timeout: defaultTimeout,
		now:     time.Now,
		logger:  slog.Default().With("component", "catalog"),
	}
}

// EnsureSchema creates the documents table and its indexes if missing.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying catalog schema: %w", err)
		}
	}
	c.logger.Info("catalog schema ready")
	return nil
}

// Record upserts one indexed document. A slow database fails the call after
// the catalog timeout instead of stalling the consumer.
func (c *Catalog) Record(ctx context.Context, doc *index.Document, wordCount int) error {
	err := resilience.WithTimeout(ctx, c.timeout, "catalog record", func(ctx context.Context) error {
		_, err := c.db.ExecContext(ctx, upsertDocument,
			int64(doc.ID), doc.URL, doc.Connectivity(), wordCount, c.now().UTC())
		return err
	})
	if err != nil {
		return fmt.Errorf("recording document %d in catalog: %w", doc.ID, err)
	}
	return nil
}
