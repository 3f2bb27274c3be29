// Package publisher turns crawled pages into PageEvents on Kafka for the
// indexer service. During a crawl it buffers pages and publishes them once
// the crawl finishes, so every event carries the page's final connectivity.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/ingestion"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/ingestion/validator"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/kafka"
)

const batchSize = 500

// EventWriter is the part of kafka.Producer the publisher needs.
type EventWriter interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type pendingPage struct {
	doc       *index.Document
	words     []string
	crawledAt time.Time
}

// Publisher buffers crawled pages and writes them as PageEvents.
type Publisher struct {
	writer  EventWriter
	pending []pendingPage
	now     func() time.Time
	logger  *slog.Logger
}

func New(writer EventWriter) *Publisher {
	return &Publisher{
		writer: writer,
		now:    time.Now,
		logger: slog.Default().With("component", "publisher"),
	}
}

// Accept queues a crawled page. The document's connectivity is read when
// Finish runs.
func (p *Publisher) Accept(_ context.Context, doc *index.Document, words []string) error {
	if len(words) == 0 {
		return nil
	}
	p.pending = append(p.pending, pendingPage{doc: doc, words: words, crawledAt: p.now()})
	return nil
}

// Finish publishes every queued page in the order it was accepted.
func (p *Publisher) Finish(ctx context.Context) error {
	total := len(p.pending)
	for start := 0; start < len(p.pending); start += batchSize {
		end := min(start+batchSize, len(p.pending))
		events := make([]kafka.Event, 0, end-start)
		for _, page := range p.pending[start:end] {
			events = append(events, kafka.Event{
				Key: page.doc.URL,
				Value: ingestion.PageEvent{
					URL:          page.doc.URL,
					Connectivity: page.doc.Connectivity(),
					Words:        page.words,
					CrawledAt:    page.crawledAt,
				},
			})
		}
		if err := p.writer.PublishBatch(ctx, events); err != nil {
			p.pending = p.pending[start:]
			return fmt.Errorf("publishing pages %d-%d of %d: %w", start+1, end, total, err)
		}
	}
	p.pending = nil
	p.logger.Info("page events published", "count", total)
	return nil
}

// Submit validates a single event and publishes it straight away.
func (p *Publisher) Submit(ctx context.Context, ev *ingestion.PageEvent) (*ingestion.SubmitResponse, error) {
	if err := validator.ValidatePageEvent(ev); err != nil {
		return nil, err
	}
	if ev.CrawledAt.IsZero() {
		ev.CrawledAt = p.now()
	}
	if ev.Connectivity == 0 {
		ev.Connectivity = 1
	}
	if err := p.writer.PublishBatch(ctx, []kafka.Event{{Key: ev.URL, Value: *ev}}); err != nil {
		return nil, fmt.Errorf("publishing page event: %w", err)
	}
	p.logger.Debug("page event submitted", "url", ev.URL, "words", len(ev.Words))
	return &ingestion.SubmitResponse{URL: ev.URL, Status: "accepted", Words: len(ev.Words)}, nil
}
