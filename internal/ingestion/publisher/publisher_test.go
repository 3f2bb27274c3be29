package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/ingestion"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/ingestion/validator"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/kafka"
)

type recordingWriter struct {
	batches [][]kafka.Event
	err     error
}

func (w *recordingWriter) PublishBatch(_ context.Context, events []kafka.Event) error {
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, events)
	return nil
}

func TestFinishPublishesFinalConnectivity(t *testing.T) {
	w := &recordingWriter{}
	p := New(w)
	ctx := context.Background()

	a := index.NewDocument("http://example.com/a.html")
	b := index.NewDocument("http://example.com/b.html")
	require.NoError(t, p.Accept(ctx, a, []string{"alpha"}))
	require.NoError(t, p.Accept(ctx, b, []string{"beta"}))
	require.NoError(t, p.Accept(ctx, index.NewDocument("http://example.com/empty.html"), nil))
	b.IncrementConnectivity()
	b.IncrementConnectivity()

	require.NoError(t, p.Finish(ctx))
	require.Len(t, w.batches, 1)
	events := w.batches[0]
	require.Len(t, events, 2)
	assert.Equal(t, "http://example.com/a.html", events[0].Key)
	second := events[1].Value.(ingestion.PageEvent)
	assert.Equal(t, 3, second.Connectivity)
	assert.Equal(t, []string{"beta"}, second.Words)
	assert.False(t, second.CrawledAt.IsZero())
}

func TestFinishBatches(t *testing.T) {
	w := &recordingWriter{}
	p := New(w)
	for i := range batchSize + 1 {
		doc := index.NewDocument("http://example.com/" + string(rune('a'+i%26)) + ".html")
		require.NoError(t, p.Accept(context.Background(), doc, []string{"w"}))
	}
	require.NoError(t, p.Finish(context.Background()))
	require.Len(t, w.batches, 2)
	assert.Len(t, w.batches[0], batchSize)
	assert.Len(t, w.batches[1], 1)
}

func TestFinishKeepsPagesOnFailure(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := New(w)
	require.NoError(t, p.Accept(context.Background(), index.NewDocument("http://x/a.html"), []string{"a"}))

	err := p.Finish(context.Background())
	assert.ErrorContains(t, err, "broker down")

	w.err = nil
	require.NoError(t, p.Finish(context.Background()))
	assert.Len(t, w.batches, 1)
}

func TestSubmit(t *testing.T) {
	w := &recordingWriter{}
	p := New(w)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	resp, err := p.Submit(context.Background(), &ingestion.PageEvent{URL: "http://x/a.html", Words: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, 2, resp.Words)

	ev := w.batches[0][0].Value.(ingestion.PageEvent)
	assert.Equal(t, 1, ev.Connectivity)
	assert.Equal(t, fixed, ev.CrawledAt)
}

func TestSubmitRejectsInvalid(t *testing.T) {
	w := &recordingWriter{}
	_, err := New(w).Submit(context.Background(), &ingestion.PageEvent{URL: "nope"})
	var verr *validator.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Empty(t, w.batches)
}
