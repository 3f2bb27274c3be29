package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/ingestion"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/kafka"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/resilience"
)

type recorded struct {
	id    uint32
	url   string
	words int
}

type fakeCatalog struct {
	rows []recorded
	err  error
}

func (f *fakeCatalog) Record(_ context.Context, doc *index.Document, wordCount int) error {
	f.rows = append(f.rows, recorded{id: doc.ID, url: doc.URL, words: wordCount})
	return f.err
}

type failingIndexer struct{}

func (failingIndexer) AddDocument(*index.Document, []string) error {
	return errors.New("out of memory")
}

func message(ev ingestion.PageEvent) kafka.Message[ingestion.PageEvent] {
	return kafka.Message[ingestion.PageEvent]{Key: ev.URL, Value: ev}
}

func TestHandleMessageIndexesAndRecords(t *testing.T) {
	idx := index.New()
	cat := &fakeCatalog{}
	handle := HandleMessage(idx, cat)

	err := handle(context.Background(), message(ingestion.PageEvent{
		URL: "http://x/a.html", Connectivity: 5, Words: []string{"hello", "world"},
	}))
	require.NoError(t, err)

	doc, ok := idx.Lookup("http://x/a.html")
	require.True(t, ok)
	assert.Equal(t, uint32(1), doc.ID)
	assert.Equal(t, 5, doc.Connectivity())
	assert.Equal(t, []recorded{{id: 1, url: "http://x/a.html", words: 2}}, cat.rows)
}

func TestHandleMessageSkipsDuplicates(t *testing.T) {
	idx := index.New()
	cat := &fakeCatalog{}
	handle := HandleMessage(idx, cat)
	msg := message(ingestion.PageEvent{URL: "http://x/a.html", Words: []string{"a"}})

	require.NoError(t, handle(context.Background(), msg))
	require.NoError(t, handle(context.Background(), msg))
	assert.Equal(t, 1, idx.DocCount())
	assert.Len(t, cat.rows, 1)
}

func TestHandleMessageRejectsInvalidEvents(t *testing.T) {
	idx := index.New()
	handle := HandleMessage(idx, nil)

	tests := []struct {
		name  string
		event ingestion.PageEvent
	}{
		{"relative url", ingestion.PageEvent{URL: "relative.html", Words: []string{"a"}}},
		{"unnormalised word", ingestion.PageEvent{URL: "http://x/a.html", Words: []string{"Not-Normalised"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handle(context.Background(), message(tt.event))
			require.Error(t, err)
			assert.True(t, resilience.IsPermanent(err))
		})
	}
	assert.Zero(t, idx.DocCount())
}

func TestHandleMessageCatalogFailureIsNotFatal(t *testing.T) {
	idx := index.New()
	handle := HandleMessage(idx, &fakeCatalog{err: errors.New("db down")})
	require.NoError(t, handle(context.Background(), message(ingestion.PageEvent{URL: "http://x/a.html", Words: []string{"a"}})))
	assert.Equal(t, 1, idx.DocCount())
}

func TestHandleMessageIndexFailureIsRetryable(t *testing.T) {
	handle := HandleMessage(failingIndexer{}, nil)
	err := handle(context.Background(), message(ingestion.PageEvent{URL: "http://x/a.html", Words: []string{"a"}}))
	assert.ErrorContains(t, err, "out of memory")
	assert.False(t, resilience.IsPermanent(err))
}
