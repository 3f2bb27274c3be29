// Command crawler crawls the web from the given seed URLs. By default it
// builds the index in memory and saves it as a snapshot; with -publish it
// sends every page to Kafka for the indexer service instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/crawler"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/segment"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/ingestion/publisher"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/config"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/kafka"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/logger"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	out := flag.String("out", "", "snapshot path (default: indexer.snapshotPath)")
	publish := flag.Bool("publish", false, "publish page events to kafka instead of writing a snapshot")
	maxPages := flag.Int("max-pages", -1, "stop after this many pages (0 = unlimited)")
	flag.Parse()

	seeds := flag.Args()
	if len(seeds) == 0 {
		fmt.Fprintln(os.Stderr, "error: no URLs specified")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *out != "" {
		cfg.Indexer.SnapshotPath = *out
	}
	if *maxPages >= 0 {
		cfg.Crawler.MaxPages = *maxPages
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting crawler",
		"seeds", len(seeds),
		"max_pages", cfg.Crawler.MaxPages,
		"concurrency", cfg.Crawler.Concurrency,
		"publish", *publish,
	)

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, "crawler")
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sink crawler.Sink
		idx  *index.Index
	)
	if *publish {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PageEvents)
		defer producer.Close()
		sink = publisher.New(producer)
	} else {
		idx = index.New()
		sink = crawler.NewIndexSink(idx)
	}

	c := crawler.New(crawler.NewHTTPFetcher(cfg.Crawler, m), sink, crawler.Options{
		MaxPages:    cfg.Crawler.MaxPages,
		Concurrency: cfg.Crawler.Concurrency,
	}, m)
	stats, err := c.Run(ctx, seeds)
	if err != nil {
		slog.Error("index generation failed", "error", err, "fetched", stats.Fetched)
		os.Exit(1)
	}

	if idx == nil {
		slog.Info("crawl published", "pages", stats.Indexed, "topic", cfg.Kafka.Topics.PageEvents)
		return
	}
	header, err := segment.Save(cfg.Indexer.SnapshotPath, idx)
	if err != nil {
		slog.Error("failed to save index", "path", cfg.Indexer.SnapshotPath, "error", err)
		os.Exit(1)
	}
	slog.Info("index saved",
		"path", cfg.Indexer.SnapshotPath,
		"documents", header.DocCount,
		"terms", header.TermCount,
		"bytes", header.PayloadSize,
	)
}
