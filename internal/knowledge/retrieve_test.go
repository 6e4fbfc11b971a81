package knowledge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/recallkit/recallkit/internal/markdown"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRetriever(t *testing.T, embedder Embedder, index VectorIndex) *Retriever {
	t.Helper()
	ret, err := NewRetriever(embedder, index, testLogger())
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	return ret
}

// seedIndex ingests testDoc through the real pipeline so retrieval tests
// exercise the same records production would store.
func seedIndex(t *testing.T, index VectorIndex, source map[string]string) {
	t.Helper()
	ing := newTestIngestor(t, &mockEmbedder{}, index)
	report, err := ing.Ingest(context.Background(), testDoc, source)
	if err != nil {
		t.Fatalf("seeding index: %v", err)
	}
	if rerr := report.Err(); rerr != nil {
		t.Fatalf("seeding index: %v", rerr)
	}
}

func TestSearch_ReturnsCodeWithProse(t *testing.T) {
	index := &mockIndex{}
	seedIndex(t, index, map[string]string{"topic": "ddd"})

	ret := newTestRetriever(t, &mockEmbedder{}, index)
	results, err := ret.Search(context.Background(), "aggregate boundary", WithTopK(3))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	top := results[0]
	if top.SectionTitle != "Aggregate Design" {
		t.Errorf("top result section = %q, want %q", top.SectionTitle, "Aggregate Design")
	}
	if len(top.CodeBlocks) != 1 {
		t.Fatalf("top result carries %d code blocks, want 1", len(top.CodeBlocks))
	}
	block := top.CodeBlocks[0]
	if block.Language != "java" {
		t.Errorf("block language = %q, want %q", block.Language, "java")
	}
	if !strings.Contains(block.Content, "public class Order") {
		t.Errorf("block content lost: %q", block.Content)
	}
	if !strings.Contains(top.Text, markdown.Placeholder(0)) {
		t.Errorf("prose lost its placeholder: %q", top.Text)
	}
}

func TestSearch_RankingIndependentOfInsertionOrder(t *testing.T) {
	// Ingestion persists chunks from a concurrent worker pool, so the order
	// entries land in the index varies run to run. Ranking must come from
	// similarity alone, never from insertion order.
	for i := 0; i < 10; i++ {
		index := &mockIndex{}
		seedIndex(t, index, nil)

		ret := newTestRetriever(t, &mockEmbedder{}, index)
		results, err := ret.Search(context.Background(), "aggregate boundary", WithTopK(2))
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("got %d results, want 2", len(results))
		}
		if results[0].SectionTitle != "Aggregate Design" {
			t.Fatalf("run %d: top result section = %q, want %q",
				i, results[0].SectionTitle, "Aggregate Design")
		}
		if len(results[0].CodeBlocks) != 1 {
			t.Fatalf("run %d: top result carries %d code blocks, want 1",
				i, len(results[0].CodeBlocks))
		}
	}
}

func TestSearch_SimilarityDescending(t *testing.T) {
	index := &mockIndex{}
	seedIndex(t, index, nil)

	ret := newTestRetriever(t, &mockEmbedder{}, index)
	results, err := ret.Search(context.Background(), "aggregate boundary")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Similarity < results[i].Similarity {
			t.Errorf("results out of order: [%d]=%f < [%d]=%f",
				i-1, results[i-1].Similarity, i, results[i].Similarity)
		}
	}
}

func TestSearch_FilterRestrictsResults(t *testing.T) {
	index := &mockIndex{}
	seedIndex(t, index, map[string]string{"topic": "ddd"})
	seedIndex(t, index, map[string]string{"topic": "testing"})

	ret := newTestRetriever(t, &mockEmbedder{}, index)
	results, err := ret.Search(context.Background(), "aggregate boundary",
		WithTopK(10),
		WithFilter("topic", "ddd"))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 from the ddd corpus", len(results))
	}
	for _, res := range results {
		if res.Metadata["topic"] != "ddd" {
			t.Errorf("filter leaked result with topic %q", res.Metadata["topic"])
		}
	}
}

func TestSearch_CorruptCodeBlocksDegrades(t *testing.T) {
	index := &mockIndex{}
	if _, err := index.Upsert(context.Background(), IndexEntry{
		ID:        "corrupt",
		Embedding: []float32{1, 0.1},
		Text:      "Aggregate prose with " + markdown.Placeholder(0),
		Metadata: map[string]string{
			MetaCodeBlocks:   "{not json",
			MetaSectionTitle: "Broken",
		},
	}); err != nil {
		t.Fatalf("seeding corrupt entry: %v", err)
	}

	ret := newTestRetriever(t, &mockEmbedder{}, index)
	results, err := ret.Search(context.Background(), "aggregate")
	if err != nil {
		t.Fatalf("Search() error = %v, corruption must not abort the query", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if got := results[0].CodeBlocks; len(got) != 0 {
		t.Errorf("CodeBlocks = %v, want empty list for corrupt metadata", got)
	}
	if results[0].SectionTitle != "Broken" {
		t.Errorf("intact metadata fields must survive degradation, got %q", results[0].SectionTitle)
	}
}

func TestSearch_MissingCodeBlocksMetadata(t *testing.T) {
	index := &mockIndex{}
	if _, err := index.Upsert(context.Background(), IndexEntry{
		ID:        "legacy",
		Embedding: []float32{1, 0.1},
		Text:      "plain aggregate prose",
		Metadata:  map[string]string{"topic": "ddd"},
	}); err != nil {
		t.Fatalf("seeding legacy entry: %v", err)
	}

	ret := newTestRetriever(t, &mockEmbedder{}, index)
	results, err := ret.Search(context.Background(), "aggregate")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results[0].CodeBlocks == nil || len(results[0].CodeBlocks) != 0 {
		t.Errorf("CodeBlocks = %v, want non-nil empty list", results[0].CodeBlocks)
	}
}

func TestSearch_StructuralKeysNotInMetadata(t *testing.T) {
	index := &mockIndex{}
	seedIndex(t, index, map[string]string{"topic": "ddd"})

	ret := newTestRetriever(t, &mockEmbedder{}, index)
	results, err := ret.Search(context.Background(), "aggregate")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, res := range results {
		for key := range reservedMetaKeys {
			if _, ok := res.Metadata[key]; ok {
				t.Errorf("structural key %q surfaced in Result.Metadata", key)
			}
		}
		if res.Metadata["topic"] != "ddd" {
			t.Errorf("caller tag missing: %v", res.Metadata)
		}
	}
}

func TestSearch_EmbedderFailure(t *testing.T) {
	wantErr := errors.New("quota exhausted")
	ret := newTestRetriever(t, &mockEmbedder{embedErr: wantErr}, &mockIndex{})

	if _, err := ret.Search(context.Background(), "anything"); !errors.Is(err, wantErr) {
		t.Fatalf("Search() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestSearch_IndexFailure(t *testing.T) {
	wantErr := errors.New("connection refused")
	ret := newTestRetriever(t, &mockEmbedder{}, &mockIndex{queryErr: wantErr})

	if _, err := ret.Search(context.Background(), "anything"); !errors.Is(err, wantErr) {
		t.Fatalf("Search() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestResult_Render(t *testing.T) {
	index := &mockIndex{}
	seedIndex(t, index, nil)

	ret := newTestRetriever(t, &mockEmbedder{}, index)
	results, err := ret.Search(context.Background(), "aggregate boundary")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	rendered := results[0].Render()
	if strings.Contains(rendered, "[CODE_BLOCK_") {
		t.Errorf("rendered text still carries a placeholder:\n%s", rendered)
	}
	if !strings.Contains(rendered, "```java") {
		t.Errorf("rendered text lost its fence:\n%s", rendered)
	}
	if !strings.Contains(rendered, "public class Order") {
		t.Errorf("rendered text lost the code:\n%s", rendered)
	}
}
