// Package crawler walks a web of HTML pages breadth first from a set of seed
// URLs. Every page's words go to a Sink, and every link to a page that was
// already discovered raises that page's connectivity.
package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	apperrors "github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/errors"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/metrics"
)

// Sink receives crawled pages in discovery order.
type Sink interface {
	Accept(ctx context.Context, doc *index.Document, words []string) error
	Finish(ctx context.Context) error
}

// IndexSink adds every page straight to an in-memory index.
type IndexSink struct {
	idx *index.Index
}

func NewIndexSink(idx *index.Index) *IndexSink {
	return &IndexSink{idx: idx}
}

func (s *IndexSink) Accept(_ context.Context, doc *index.Document, words []string) error {
	return s.idx.AddDocument(doc, words)
}

func (s *IndexSink) Finish(context.Context) error { return nil }

// Options bound a crawl. MaxPages of zero means no limit.
type Options struct {
	MaxPages    int
	Concurrency int
}

// Stats summarises a finished crawl.
type Stats struct {
	Fetched  int           `json:"fetched"`
	Indexed  int           `json:"indexed"`
	Empty    int           `json:"empty"`
	Failed   int           `json:"failed"`
	Links    int           `json:"links"`
	Pending  int           `json:"pending"`
	Duration time.Duration `json:"duration"`
}

type Crawler struct {
	fetcher Fetcher
	sink    Sink
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger

	known map[string]*index.Document
	queue []*url.URL
}

// New creates a crawler. m may be nil.
func New(f Fetcher, s Sink, opts Options, m *metrics.Metrics) *Crawler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Crawler{
		fetcher: f,
		sink:    s,
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "crawler"),
		known:   make(map[string]*index.Document),
	}
}

type fetchResult struct {
	body []byte
	err  error
}

// Run crawls from seeds until the queue is empty, MaxPages pages have been
// fetched, or ctx is cancelled. Pages are fetched Concurrency at a time but
// handed to the sink in queue order, so document IDs do not depend on
// network timing. Malformed seeds and pages that fail to fetch are logged
// and skipped.
func (c *Crawler) Run(ctx context.Context, seeds []string) (Stats, error) {
	start := time.Now()
	var stats Stats

	for _, raw := range seeds {
		u, ok := parseSeed(raw)
		if !ok {
			c.logger.Error("malformed seed URL", "url", raw)
			continue
		}
		c.discover(u)
	}

	for len(c.queue) > 0 {
		if c.opts.MaxPages > 0 && stats.Fetched >= c.opts.MaxPages {
			break
		}
		if err := ctx.Err(); err != nil {
			stats.Pending = len(c.queue)
			return stats, fmt.Errorf("crawl interrupted: %w", err)
		}

		n := min(c.opts.Concurrency, len(c.queue))
		if c.opts.MaxPages > 0 {
			n = min(n, c.opts.MaxPages-stats.Fetched)
		}
		batch := c.queue[:n]
		c.queue = c.queue[n:]

		results := c.fetchAll(ctx, batch)
		for i, u := range batch {
			stats.Fetched++
			if err := c.process(ctx, u, results[i], &stats); err != nil {
				stats.Pending = len(c.queue)
				return stats, err
			}
		}
		if c.metrics != nil {
			c.metrics.CrawlQueueDepth.Set(float64(len(c.queue)))
		}
	}

	if err := c.sink.Finish(ctx); err != nil {
		return stats, fmt.Errorf("finishing crawl: %w", err)
	}
	stats.Pending = len(c.queue)
	stats.Duration = time.Since(start)
	c.logger.Info("crawl finished",
		"fetched", stats.Fetched,
		"indexed", stats.Indexed,
		"failed", stats.Failed,
		"links", stats.Links,
		"pending", stats.Pending,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return stats, nil
}

// Document returns the document discovered for a URL, if any.
func (c *Crawler) Document(rawURL string) (*index.Document, bool) {
	doc, ok := c.known[rawURL]
	return doc, ok
}

func (c *Crawler) fetchAll(ctx context.Context, batch []*url.URL) []fetchResult {
	results := make([]fetchResult, len(batch))
	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)
	for i, u := range batch {
		g.Go(func() error {
			body, err := c.fetcher.Fetch(ctx, u)
			results[i] = fetchResult{body: body, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Crawler) process(ctx context.Context, u *url.URL, res fetchResult, stats *Stats) error {
	log := c.logger.With("url", u.String())
	if res.err != nil {
		stats.Failed++
		log.Warn("skipping page", "error", res.err)
		return nil
	}
	page, err := Extract(bytes.NewReader(res.body))
	if err != nil {
		stats.Failed++
		log.Warn("skipping unparsable page", "error", err)
		return nil
	}

	for _, href := range page.Links {
		target, ok := ResolveLink(u, href)
		if !ok {
			continue
		}
		stats.Links++
		if doc, seen := c.known[target.String()]; seen {
			doc.IncrementConnectivity()
			continue
		}
		if Followable(target) {
			c.discover(target)
		}
	}

	doc := c.known[u.String()]
	if len(page.Words) == 0 {
		stats.Empty++
		log.Debug("page has no words")
		return nil
	}
	if err := c.sink.Accept(ctx, doc, page.Words); err != nil {
		if apperrors.Is(err, apperrors.ErrDocumentExists) {
			log.Warn("page already indexed", "error", err)
			return nil
		}
		return fmt.Errorf("storing %s: %w", u, err)
	}
	stats.Indexed++
	log.Debug("page crawled", "words", len(page.Words), "links", len(page.Links))
	return nil
}

func (c *Crawler) discover(u *url.URL) {
	key := u.String()
	if _, ok := c.known[key]; ok {
		return
	}
	c.known[key] = index.NewDocument(key)
	c.queue = append(c.queue, u)
}
