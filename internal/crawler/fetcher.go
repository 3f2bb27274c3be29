package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/config"
	apperrors "github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/errors"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/metrics"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/resilience"
)

const maxBodyBytes = 16 << 20

// Fetcher retrieves the raw body of a document.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) ([]byte, error)
}

// HTTPFetcher fetches http and https URLs with retry and a circuit breaker
// per host, and reads file URLs from the local filesystem.
type HTTPFetcher struct {
	client     *http.Client
	userAgent  string
	retry      resilience.RetryConfig
	breakerCfg resilience.CircuitBreakerConfig
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

// NewHTTPFetcher builds a fetcher from the crawler config. m may be nil.
func NewHTTPFetcher(cfg config.CrawlerConfig, m *metrics.Metrics) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		userAgent: cfg.UserAgent,
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.RetryAttempts,
			InitialDelay: cfg.RetryBaseDelay,
		},
		breakerCfg: resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.BreakerFailures,
			ResetTimeout:     cfg.BreakerReset,
		},
		metrics:  m,
		logger:   slog.Default().With("component", "fetcher"),
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
	if m != nil {
		f.breakerCfg.OnStateChange = func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	switch u.Scheme {
	case "file":
		body, err = readFile(u)
	case "http", "https":
		body, err = f.fetchHTTP(ctx, u)
	default:
		err = apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unsupported scheme %q", u.Scheme)
	}
	f.observe(err)
	return body, err
}

func (f *HTTPFetcher) observe(err error) {
	if f.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.ErrDocumentNotFound):
		status = "not_found"
	default:
		status = "error"
	}
	f.metrics.PagesFetchedTotal.WithLabelValues(status).Inc()
}

func readFile(u *url.URL) ([]byte, error) {
	body, err := os.ReadFile(u.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "%s", u)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", u.Path, err)
	}
	return body, nil
}

func (f *HTTPFetcher) fetchHTTP(ctx context.Context, u *url.URL) ([]byte, error) {
	var body []byte
	err := f.breaker(u.Host).Execute(func() error {
		return resilience.Retry(ctx, "fetch "+u.Host, f.retry, func() error {
			b, err := f.get(ctx, u)
			if err != nil {
				return err
			}
			body = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *HTTPFetcher) get(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("building request: %w", err))
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, resilience.Permanent(apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "%s", u))
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("fetching %s: status %d", u, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, resilience.Permanent(fmt.Errorf("fetching %s: status %d", u, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", u, err)
	}
	return body, nil
}

func (f *HTTPFetcher) breaker(host string) *resilience.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	cb, ok := f.breakers[host]
	if !ok {
		cb = resilience.NewCircuitBreaker(host, f.breakerCfg)
		f.breakers[host] = cb
	}
	return cb
}
