package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/config"
	apperrors "github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/errors"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/metrics"
)

func newEngine(t *testing.T, path string) (*Engine, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	e, err := NewEngine(config.IndexerConfig{SnapshotPath: path}, m)
	require.NoError(t, err)
	return e, m
}

func value(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var pb dto.Metric
	require.NoError(t, (<-ch).Write(&pb))
	if pb.Counter != nil {
		return pb.GetCounter().GetValue()
	}
	return pb.GetGauge().GetValue()
}

func TestEngineStartsEmptyWithoutSnapshot(t *testing.T) {
	e, _ := newEngine(t, filepath.Join(t.TempDir(), "data", "index.db"))
	assert.Zero(t, e.Index().DocCount())
	require.NoError(t, e.Flush())
}

func TestEngineFlushAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	e, m := newEngine(t, path)

	require.NoError(t, e.AddDocument(index.NewDocument("http://x/a.html"), []string{"alpha", "beta"}))
	require.NoError(t, e.AddDocument(index.RestoreDocument("http://x/b.html", 3), []string{"beta"}))
	assert.Equal(t, float64(2), value(t, m.DocsIndexedTotal))
	assert.Equal(t, float64(2), value(t, m.IndexTerms))

	require.NoError(t, e.Flush())
	require.NoError(t, e.Flush())
	assert.Equal(t, float64(1), value(t, m.IndexFlushesTotal.WithLabelValues("success")))

	reopened, _ := newEngine(t, path)
	assert.Equal(t, 2, reopened.Index().DocCount())
	doc, ok := reopened.Index().Lookup("http://x/b.html")
	require.True(t, ok)
	assert.Equal(t, 3, doc.Connectivity())
	assert.Equal(t, []uint32{1, 2}, reopened.Index().SearchWord("beta").ToArray())
	require.NoError(t, reopened.Close())
}

func TestEngineCountsDuplicates(t *testing.T) {
	e, m := newEngine(t, filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, e.AddDocument(index.NewDocument("http://x/a.html"), []string{"a"}))

	err := e.AddDocument(index.NewDocument("http://x/a.html"), []string{"a"})
	assert.True(t, apperrors.Is(err, apperrors.ErrDocumentExists))
	assert.Equal(t, float64(1), value(t, m.DuplicateDocsTotal))
	assert.Equal(t, float64(1), value(t, m.DocsIndexedTotal))
}

func TestEngineEmptyDocumentIsNotCounted(t *testing.T) {
	e, m := newEngine(t, filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, e.AddDocument(index.NewDocument("http://x/empty.html"), nil))
	assert.Zero(t, value(t, m.DocsIndexedTotal))
}

func TestEngineRejectsCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a snapshot, but long enough to pass the size check........................................."), 0o644))

	_, err := NewEngine(config.IndexerConfig{SnapshotPath: path}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCorruptSnapshot))
}
