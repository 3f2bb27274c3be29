package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/catalog"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/consumer"
	ingesthandler "github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/ingestion/handler"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/ingestion/publisher"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/config"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/health"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/kafka"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/logger"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/metrics"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/middleware"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service",
		"snapshot", cfg.Indexer.SnapshotPath,
		"flush_interval", cfg.Indexer.FlushInterval,
	)

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "indexer")
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(ctx)
		}()
	}

	engine, err := indexer.NewEngine(cfg.Indexer, m)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()
	checker.Register("index", health.PingCheck(engine.Ping, true))

	var recorder consumer.Recorder
	if cfg.Postgres.Host != "" {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, document catalog disabled", "error", err)
		} else {
			defer pg.Close()
			cat := catalog.New(pg.DB)
			if err := cat.EnsureSchema(context.Background()); err != nil {
				slog.Error("failed to prepare catalog schema", "error", err)
				os.Exit(1)
			}
			recorder = cat
			checker.Register("postgres", health.PingCheck(pg.Ping, false))
			slog.Info("document catalog enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine.StartFlushLoop(ctx)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PageEvents)
	defer producer.Close()
	pages := ingesthandler.New(publisher.New(producer))

	mux := http.NewServeMux()
	pages.Register(mux)
	checker.Mount(mux)

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		slog.Info("indexer http listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	indexConsumer := consumer.New(cfg.Kafka, engine, recorder, m)

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.PageEvents,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := indexConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("flushing index before shutdown")
	if err := engine.Close(); err != nil {
		slog.Error("final flush failed", "error", err)
	}

	slog.Info("indexer service stopped")
}
