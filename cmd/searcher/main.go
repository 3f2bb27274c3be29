package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/segment"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/searcher/cache"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/searcher/executor"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/searcher/handler"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/config"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/health"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/logger"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/metrics"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/middleware"
	pkgredis "github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/redis"
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
	slog.Info("starting search service", "port", cfg.Server.Port, "snapshot", cfg.Indexer.SnapshotPath)

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "searcher")
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(ctx)
		}()
	}

	loader := func() (*index.Index, error) {
		idx, _, err := segment.Load(cfg.Indexer.SnapshotPath)
		return idx, err
	}
	idx, err := loader()
	switch {
	case err == nil:
		slog.Info("index loaded", "documents", idx.DocCount(), "terms", idx.TermCount())
	case errors.Is(err, fs.ErrNotExist):
		slog.Warn("no snapshot found, serving an empty index until reload", "path", cfg.Indexer.SnapshotPath)
		idx = index.New()
	default:
		slog.Error("failed to load index", "error", err)
		os.Exit(1)
	}
	exec := executor.New(idx, m)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		stats := exec.Index().Stats()
		if stats.Documents == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "index is empty"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", stats.Documents)}
	})

	var queryCache *cache.QueryCache
	if cfg.Redis.Addr != "" {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.PingCheck(redisClient.Ping, false))
			slog.Info("search cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	h := handler.New(exec, queryCache, loader, m, handler.Options{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		Timeout:      cfg.Search.Timeout,
		TraceSpans:   cfg.Tracing.Enabled,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	checker.Mount(mux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Search.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Search.RateLimit, cfg.Search.RateWindow)
		limiter.StartPruning(ctx)
		chain = middleware.RateLimit(limiter, m)(chain)
		slog.Info("rate limiting enabled", "limit", cfg.Search.RateLimit, "window", cfg.Search.RateWindow)
	}
	if len(cfg.Search.CORSOrigins) > 0 {
		chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Search.CORSOrigins))(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
