package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/config"
	apperrors "github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/errors"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/metrics"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/resilience"
)

var site = map[string]string{
	"/index.html": `<html><head><title>Home</title><style>h1{}</style><script>var hidden = 1;</script></head>
<body><p>Welcome home</p>
<a href="a.html">A</a> <a href="b.html#top">B</a> <a href="missing.html">M</a>
<a href="doc.pdf">pdf</a> <a href="mailto:x@example.com">mail</a></body></html>`,
	"/a.html": `<p>alpha page</p><a href="b.html">B</a><a href="/index.html">home</a>`,
	"/b.html": `<p>beta page</p><a href="a.html">A</a><a href="b.html">self</a>`,
}

func testFetcherConfig() config.CrawlerConfig {
	return config.CrawlerConfig{
		UserAgent:       "test-agent",
		RequestTimeout:  time.Second,
		RetryAttempts:   3,
		RetryBaseDelay:  time.Millisecond,
		BreakerFailures: 5,
		BreakerReset:    time.Minute,
	}
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := site[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawlCountsConnectivity(t *testing.T) {
	srv := newSite(t)
	idx := index.New()
	c := New(NewHTTPFetcher(testFetcherConfig(), nil), NewIndexSink(idx), Options{Concurrency: 4}, nil)

	stats, err := c.Run(context.Background(), []string{srv.URL + "/index.html"})
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Fetched)
	assert.Equal(t, 3, stats.Indexed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 8, stats.Links)
	assert.Equal(t, 0, stats.Pending)

	for path, want := range map[string]struct {
		id           uint32
		connectivity int
	}{
		"/index.html": {1, 2},
		"/a.html":     {2, 2},
		"/b.html":     {3, 3},
	} {
		doc, ok := idx.Lookup(srv.URL + path)
		require.True(t, ok, path)
		assert.Equal(t, want.id, doc.ID, path)
		assert.Equal(t, want.connectivity, doc.Connectivity(), path)
	}

	missing, ok := c.Document(srv.URL + "/missing.html")
	require.True(t, ok)
	assert.Zero(t, missing.ID)
	_, ok = c.Document(srv.URL + "/doc.pdf")
	assert.False(t, ok)

	assert.Equal(t, []uint32{1}, idx.SearchWord("welcome").ToArray())
	assert.Equal(t, []uint32{2, 3}, idx.SearchWord("page").ToArray())
	assert.True(t, idx.SearchWord("hidden").IsEmpty())
	assert.True(t, idx.SearchWord("h1").IsEmpty())
}

func TestCrawlIsDeterministicAcrossConcurrency(t *testing.T) {
	srv := newSite(t)
	snapshots := make([][]index.DocumentRecord, 0, 2)
	for _, workers := range []int{1, 8} {
		idx := index.New()
		c := New(NewHTTPFetcher(testFetcherConfig(), nil), NewIndexSink(idx), Options{Concurrency: workers}, nil)
		_, err := c.Run(context.Background(), []string{srv.URL + "/index.html"})
		require.NoError(t, err)
		snapshots = append(snapshots, idx.Snapshot())
	}
	assert.Equal(t, snapshots[0], snapshots[1])
}

func TestCrawlStopsAtMaxPages(t *testing.T) {
	srv := newSite(t)
	idx := index.New()
	c := New(NewHTTPFetcher(testFetcherConfig(), nil), NewIndexSink(idx), Options{MaxPages: 2, Concurrency: 4}, nil)

	stats, err := c.Run(context.Background(), []string{srv.URL + "/index.html"})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 2, idx.DocCount())
}

func TestCrawlIgnoresMalformedSeeds(t *testing.T) {
	srv := newSite(t)
	idx := index.New()
	c := New(NewHTTPFetcher(testFetcherConfig(), nil), NewIndexSink(idx), Options{MaxPages: 1}, nil)

	stats, err := c.Run(context.Background(), []string{"::bad", "relative.html", "ftp://host/x.html", srv.URL + "/a.html"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Fetched)
	doc, ok := idx.Lookup(srv.URL + "/a.html")
	require.True(t, ok)
	assert.Equal(t, uint32(1), doc.ID)
}

func TestCrawlNoSeeds(t *testing.T) {
	c := New(NewHTTPFetcher(testFetcherConfig(), nil), NewIndexSink(index.New()), Options{}, nil)
	stats, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Fetched)
}

func TestCrawlFileURLs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(`<p>local root</p><a href="sub/page.htm">p</a><a href="gone.html">g</a>`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "page.htm"), []byte(`<p>nested page</p><a href="../index.html">up</a>`), 0o644))

	idx := index.New()
	c := New(NewHTTPFetcher(testFetcherConfig(), nil), NewIndexSink(idx), Options{}, nil)
	stats, err := c.Run(context.Background(), []string{"file://" + filepath.Join(dir, "index.html")})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Fetched)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, idx.DocCount())
	root, ok := idx.Lookup("file://" + filepath.Join(dir, "index.html"))
	require.True(t, ok)
	assert.Equal(t, 2, root.Connectivity())
	assert.Equal(t, []uint32{2}, idx.SearchWord("nested").ToArray())
}

func TestCrawlCancelled(t *testing.T) {
	srv := newSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(NewHTTPFetcher(testFetcherConfig(), nil), NewIndexSink(index.New()), Options{}, nil)

	stats, err := c.Run(ctx, []string{srv.URL + "/index.html"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stats.Pending)
}

type failingSink struct{}

func (failingSink) Accept(context.Context, *index.Document, []string) error {
	return errors.New("disk full")
}
func (failingSink) Finish(context.Context) error { return nil }

func TestCrawlSinkFailureStops(t *testing.T) {
	srv := newSite(t)
	c := New(NewHTTPFetcher(testFetcherConfig(), nil), failingSink{}, Options{}, nil)
	_, err := c.Run(context.Background(), []string{srv.URL + "/index.html"})
	assert.ErrorContains(t, err, "disk full")
}

func TestFetcherNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(testFetcherConfig(), nil)
	_, err := f.Fetch(context.Background(), mustParse(t, srv.URL+"/x.html"))
	assert.True(t, apperrors.Is(err, apperrors.ErrDocumentNotFound))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetcherRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("<p>finally</p>"))
	}))
	defer srv.Close()

	m := metrics.New(prometheus.NewRegistry())
	f := NewHTTPFetcher(testFetcherConfig(), m)
	body, err := f.Fetch(context.Background(), mustParse(t, srv.URL+"/x.html"))
	require.NoError(t, err)
	assert.Equal(t, "<p>finally</p>", string(body))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1, counterValue(t, m.PagesFetchedTotal.WithLabelValues("ok")))
}

func TestFetcherBreakerOpensPerHost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testFetcherConfig()
	cfg.RetryAttempts = 1
	cfg.BreakerFailures = 2
	m := metrics.New(prometheus.NewRegistry())
	f := NewHTTPFetcher(cfg, m)
	u := mustParse(t, srv.URL+"/x.html")

	for range 2 {
		_, err := f.Fetch(context.Background(), u)
		require.Error(t, err)
	}
	_, err := f.Fetch(context.Background(), u)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 3, counterValue(t, m.PagesFetchedTotal.WithLabelValues("error")))
}

func TestFetcherRejectsUnknownScheme(t *testing.T) {
	f := NewHTTPFetcher(testFetcherConfig(), nil)
	_, err := f.Fetch(context.Background(), mustParse(t, "gopher://host/x.html"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func counterValue(t *testing.T, c prometheus.Counter) int {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	return int(pb.GetCounter().GetValue())
}
