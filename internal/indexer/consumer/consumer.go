// Package consumer reads page events from Kafka and feeds them to the
// indexer engine, recording each accepted page in the document catalog.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/ingestion"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/ingestion/validator"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/config"
	apperrors "github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/errors"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/kafka"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/metrics"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/resilience"
)

// Indexer accepts documents; *indexer.Engine implements it.
type Indexer interface {
	AddDocument(doc *index.Document, words []string) error
}

// Recorder stores catalog rows; *catalog.Catalog implements it.
type Recorder interface {
	Record(ctx context.Context, doc *index.Document, wordCount int) error
}

// IndexConsumer feeds page events from Kafka into the index.
type IndexConsumer struct {
	consumer *kafka.Consumer[ingestion.PageEvent]
	logger   *slog.Logger
}

// New creates an IndexConsumer on the page-events topic. catalog and m may be
// nil.
func New(cfg config.KafkaConfig, engine Indexer, catalog Recorder, m *metrics.Metrics) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafka.NewConsumer(cfg, cfg.Topics.PageEvents, HandleMessage(engine, catalog), m),
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start consumes until ctx is cancelled or an event cannot be indexed after
// retrying.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Run(ctx)
}

// HandleMessage returns a handler that indexes every page event. Invalid
// events are rejected and duplicates are skipped, so neither is
// redelivered. A catalog failure is logged but does not hold back the
// message, since the index is the source of truth. catalog may be nil.
func HandleMessage(engine Indexer, catalog Recorder) kafka.Handler[ingestion.PageEvent] {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, msg kafka.Message[ingestion.PageEvent]) error {
		event := msg.Value
		if err := validator.ValidatePageEvent(&event); err != nil {
			return resilience.Permanent(fmt.Errorf("invalid page event %q: %w", event.URL, err))
		}

		doc := index.RestoreDocument(event.URL, event.Connectivity)
		if err := engine.AddDocument(doc, event.Words); err != nil {
			if apperrors.Is(err, apperrors.ErrDocumentExists) {
				logger.Info("skipping duplicate page", "url", event.URL)
				return nil
			}
			return fmt.Errorf("indexing %s: %w", event.URL, err)
		}

		if catalog != nil {
			if err := catalog.Record(ctx, doc, len(event.Words)); err != nil {
				logger.Error("failed to record document in catalog",
					"doc_id", doc.ID,
					"url", doc.URL,
					"error", err,
				)
			}
		}

		logger.Info("document indexed",
			"doc_id", doc.ID,
			"url", doc.URL,
			"connectivity", doc.Connectivity(),
			"words", len(event.Words),
			"offset", msg.Offset,
		)
		return nil
	}
}
