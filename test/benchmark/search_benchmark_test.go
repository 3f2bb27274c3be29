package benchmark

import (
	"context"
	"testing"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/searcher/executor"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/searcher/parser"
)

var benchQueries = []struct {
	name  string
	query string
}{
	{"word", "crawler"},
	{"implicit_and", "crawler index"},
	{"or", "crawler | snapshot | cache"},
	{"negation", "crawler !cache"},
	{"phrase", `"crawler index"`},
	{"negated_phrase", `brown & !"quick lazy"`},
	{"grouped", `(crawler | cache) & (index | !token) & "web page"`},
}

// BenchmarkQueryParse measures tokenizing and postfix conversion.
func BenchmarkQueryParse(b *testing.B) {
	for _, q := range benchQueries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				plan := parser.Parse(q.query)
				_ = plan
			}
		})
	}
}

// BenchmarkEvaluate measures postfix evaluation over 10 000 documents.
func BenchmarkEvaluate(b *testing.B) {
	ix := corpus(b, 10000)
	for _, q := range benchQueries {
		plan := parser.Parse(q.query)
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				ix.View(func(s index.Searcher) {
					_ = executor.Evaluate(s, plan.Postfix)
				})
			}
		})
	}
}

// BenchmarkExecute measures the full pipeline including result resolution.
func BenchmarkExecute(b *testing.B) {
	exec := executor.New(corpus(b, 10000), nil)
	ctx := context.Background()
	plan := parser.Parse(`(crawler | cache) & !token`)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := exec.Execute(ctx, plan, 50); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkExecuteParallel measures concurrent queries against one index.
func BenchmarkExecuteParallel(b *testing.B) {
	exec := executor.New(corpus(b, 10000), nil)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		i := 0
		for pb.Next() {
			q := benchQueries[i%len(benchQueries)]
			if _, err := exec.Execute(ctx, parser.Parse(q.query), 50); err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
}
