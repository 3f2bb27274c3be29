package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/segment"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/tokenizer"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/searcher/parser"
	apperrors "github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/errors"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/metrics"
)

var corpus = []string{
	"the quick brown fox jumps over the lazy dog",
	"a brown dog chased the quick cat",
	"foxes are brown and quick",
	"lazy afternoons with a lazy dog",
	"the fox brown is not a phrase here",
}

func buildIndex(t *testing.T, pages ...string) *index.Index {
	t.Helper()
	ix := index.New()
	for i, text := range pages {
		doc := index.NewDocument(fmt.Sprintf("http://example.com/%d.html", i+1))
		require.NoError(t, ix.AddDocument(doc, tokenizer.Tokenize(text)))
	}
	return ix
}

// naive resolves every operand up front and applies operators literally.
func naive(ix *index.Index, postfix []parser.Token) *roaring.Bitmap {
	stack := make([]*roaring.Bitmap, 0)
	for _, tok := range postfix {
		if tok.IsOperand() {
			stack = append(stack, ix.Search(tok.Operand()))
			continue
		}
		if len(stack) < 2 {
			continue
		}
		a, b := stack[len(stack)-2], stack[len(stack)-1]
		stack = stack[:len(stack)-2]
		if tok.Kind == parser.KindAnd {
			stack = append(stack, roaring.And(a, b))
		} else {
			stack = append(stack, roaring.Or(a, b))
		}
	}
	if len(stack) == 0 {
		return roaring.New()
	}
	result := stack[0]
	for _, s := range stack[1:] {
		result = roaring.And(result, s)
	}
	return result
}

func query(ix *index.Index, q string) []uint32 {
	return New(ix, nil).Query(context.Background(), q).ToArray()
}

func TestAndOrOnTwoDocuments(t *testing.T) {
	ix := buildIndex(t, "apple banana", "banana cherry")

	assert.Empty(t, query(ix, "apple & cherry"))
	assert.Equal(t, []uint32{1, 2}, query(ix, "apple | cherry"))
	assert.Equal(t, []uint32{1, 2}, query(ix, "banana"))
	assert.Equal(t, []uint32{2}, query(ix, "banana & !apple"))
	assert.Equal(t, []uint32{2}, query(ix, "!apple"))
	assert.Empty(t, query(ix, "durian"))
}

func TestImplicitAnd(t *testing.T) {
	ix := buildIndex(t, corpus...)
	assert.Equal(t, query(ix, "quick & brown"), query(ix, "quick brown"))
	assert.Equal(t, query(ix, `lazy & "brown fox"`), query(ix, `lazy "brown fox"`))
}

func TestAndBindsTighterThanOr(t *testing.T) {
	ix := buildIndex(t, corpus...)
	assert.Equal(t, query(ix, "cat | (lazy & afternoons)"), query(ix, "cat | lazy afternoons"))
	assert.Equal(t, []uint32{2, 4}, query(ix, "cat | lazy afternoons"))
	assert.Equal(t, []uint32{1, 2}, query(ix, "(cat | lazy) quick"))
}

func TestIdempotence(t *testing.T) {
	ix := buildIndex(t, corpus...)
	for _, q := range []string{"fox", "brown", `"lazy dog"`, "!quick"} {
		assert.Equal(t, query(ix, q), query(ix, q+" & "+q), q)
		assert.Equal(t, query(ix, q), query(ix, q+" | "+q), q)
	}
	assert.Equal(t, query(ix, "quick brown | fox"), query(ix, "quick brown | fox"))
}

func TestNegatedPhraseIsComplement(t *testing.T) {
	ix := buildIndex(t, corpus...)
	phrase := query(ix, `"brown fox"`)
	negated := query(ix, `!"brown fox"`)

	assert.Equal(t, []uint32{1}, phrase)
	assert.Equal(t, []uint32{2, 3, 4, 5}, negated)
	assert.Equal(t, ix.Universe().ToArray(), roaring.BitmapOf(append(phrase, negated...)...).ToArray())
}

func TestPhraseOrPhraseIsUnion(t *testing.T) {
	ix := buildIndex(t, corpus...)
	assert.Equal(t, []uint32{1, 4}, query(ix, `"brown fox" | "lazy afternoons"`))
}

func TestEvaluateMatchesNaiveResolution(t *testing.T) {
	ix := buildIndex(t, corpus...)
	queries := []string{
		"fox",
		"!fox",
		"brown fox",
		"brown | fox",
		"!brown & !fox",
		"!brown | !fox",
		"!lazy | quick",
		"quick | !lazy",
		"!lazy & quick",
		"quick & !lazy",
		`"brown fox" & quick`,
		`quick & "brown fox"`,
		`"brown fox" | "lazy dog"`,
		`!"brown fox" & !"lazy dog"`,
		`!"brown fox" | !"lazy dog"`,
		`!"quick brown" | dog`,
		`(quick | lazy) & !(dog)`,
		`(quick | lazy) "lazy dog"`,
		`"lazy dog" (quick | lazy)`,
		"(brown | cat) (dog | foxes) !afternoons",
		"a | b c | !the",
		"& quick",
		"quick |",
		"((quick",
		"quick))) dog",
		"",
		"missing | !missing",
		`"" | dog`,
	}
	for _, q := range queries {
		plan := parser.Parse(q)
		var got *roaring.Bitmap
		ix.View(func(s index.Searcher) {
			got = Evaluate(s, plan.Postfix)
		})
		want := naive(ix, plan.Postfix)
		assert.Equal(t, want.ToArray(), got.ToArray(), "query %q (postfix %s)", q, plan.Canonical())
	}
}

func TestEvaluateLeftoverOperandsAreIntersected(t *testing.T) {
	ix := buildIndex(t, corpus...)
	postfix := []parser.Token{
		{Kind: parser.KindWord, Words: []string{"brown"}},
		{Kind: parser.KindWord, Words: []string{"quick"}},
		{Kind: parser.KindWord, Words: []string{"dog"}, Negated: true},
	}
	var got *roaring.Bitmap
	ix.View(func(s index.Searcher) {
		got = Evaluate(s, postfix)
	})
	assert.Equal(t, []uint32{3}, got.ToArray())
}

func TestQueryRoundTripsThroughSnapshot(t *testing.T) {
	ix := buildIndex(t, corpus...)
	path := filepath.Join(t.TempDir(), "index.db")
	_, err := segment.Save(path, ix)
	require.NoError(t, err)
	loaded, _, err := segment.Load(path)
	require.NoError(t, err)

	for _, q := range []string{"quick brown", `!"brown fox"`, "lazy | cat", "!the & !a"} {
		assert.Equal(t, query(ix, q), query(loaded, q), q)
	}
}

func TestExecuteResolvesDocuments(t *testing.T) {
	ix := buildIndex(t, corpus...)
	ix.Document(2).IncrementConnectivity()
	exec := New(ix, nil)

	result, err := exec.Execute(context.Background(), parser.Parse("Brown"), 0)
	require.NoError(t, err)
	assert.Equal(t, "Brown", result.Query)
	assert.Equal(t, "brown", result.Postfix)
	assert.Equal(t, 4, result.TotalHits)
	assert.Equal(t, uint64(5), result.Generation)
	assert.Equal(t, ix.Epoch(), result.Epoch)
	require.Len(t, result.Documents, 4)
	assert.Equal(t, DocumentView{ID: 2, URL: "http://example.com/2.html", Connectivity: 2}, result.Documents[1])
	for i := 1; i < len(result.Documents); i++ {
		assert.Less(t, result.Documents[i-1].ID, result.Documents[i].ID)
	}
}

func TestExecuteLimit(t *testing.T) {
	exec := New(buildIndex(t, corpus...), nil)

	result, err := exec.Execute(context.Background(), parser.Parse("brown"), 2)
	require.NoError(t, err)
	assert.Equal(t, 4, result.TotalHits)
	require.Len(t, result.Documents, 2)
	assert.Equal(t, uint32(1), result.Documents[0].ID)
	assert.Equal(t, uint32(2), result.Documents[1].ID)
}

func TestExecuteCancelledContext(t *testing.T) {
	exec := New(buildIndex(t, corpus...), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Execute(ctx, parser.Parse("brown"), 0)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}

func TestSwapReplacesIndex(t *testing.T) {
	first := buildIndex(t, "alpha")
	second := buildIndex(t, "beta", "alpha beta")
	exec := New(first, nil)

	assert.Equal(t, []uint32{1}, exec.Query(context.Background(), "alpha").ToArray())
	old := exec.Swap(second)
	assert.Same(t, first, old)
	assert.Same(t, second, exec.Index())
	assert.Equal(t, []uint32{2}, exec.Query(context.Background(), "alpha").ToArray())
}

func TestExecuteRecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	exec := New(buildIndex(t, corpus...), m)

	_, err := exec.Execute(context.Background(), parser.Parse("fox"), 0)
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), parser.Parse("zebra"), 0)
	require.NoError(t, err)

	assert.Equal(t, 1.0, counterValue(t, m.QueriesTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, counterValue(t, m.QueriesTotal.WithLabelValues("zero_result")))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}
