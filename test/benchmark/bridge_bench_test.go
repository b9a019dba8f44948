package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/aibridge/internal/embedding"
	"github.com/hyperjump/aibridge/internal/table"
	"github.com/hyperjump/aibridge/internal/tokenizer"
	"github.com/hyperjump/aibridge/internal/vectorsearch"
)

func BenchmarkTruncate(b *testing.B) {
	cols := []table.TypedColumn{{Name: "id", TypeName: "INT"}, {Name: "name", TypeName: "STRING"}}
	data := make([][]*string, 2000)
	for i := range data {
		id, name := fmt.Sprint(i), fmt.Sprintf("customer number %d", i)
		data[i] = []*string{&id, &name}
	}
	tbl, err := table.FromStatement(cols, data)
	if err != nil {
		b.Fatal(err)
	}
	tr := table.NewTruncator(tokenizer.WordCounter{}, 500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tr.Truncate(tbl, table.Markdown)
	}
}

func BenchmarkMemoryIndexQuery(b *testing.B) {
	const dims = 384
	idx, err := vectorsearch.NewMemoryIndex("main.bench.docs", "id", "embedding", dims, nil)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	rows := make([]map[string]any, 1000)
	for i := range rows {
		vec := make([]float32, dims)
		vec[0] = float32(i) / 1000
		vec[1] = 1
		rows[i] = map[string]any{"id": fmt.Sprint(i), "embedding": vec}
	}
	if _, err := idx.Upsert(ctx, rows); err != nil {
		b.Fatal(err)
	}
	query := make([]float32, dims)
	query[0] = 1.0
	req := vectorsearch.QueryRequest{Columns: []string{"id"}, QueryVector: query, NumResults: 10}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Query(ctx, req)
	}
}

func BenchmarkMaximalMarginalRelevance(b *testing.B) {
	e := embedding.NewHashEmbedder(384)
	ctx := context.Background()
	query, _ := e.Embed(ctx, "benchmark query")
	candidates := make([][]float32, 50)
	for i := range candidates {
		candidates[i], _ = e.Embed(ctx, fmt.Sprintf("candidate %d", i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = vectorsearch.MaximalMarginalRelevance(query, candidates, 0.5, 10)
	}
}

func BenchmarkHashEmbedder_Embed(b *testing.B) {
	e := embedding.NewHashEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}
