package knowledge

// retrieve.go implements the retrieval coordinator: query embedding,
// nearest-neighbour search, and reunification of prose with code blocks.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/recallkit/recallkit/internal/markdown"
)

// Retriever performs semantic search over the knowledge base.
//
// Retriever is read-only and safe for concurrent use. Model-version
// consistency between ingestion and query embeddings is the caller's
// responsibility; a mismatch degrades relevance but does not error.
type Retriever struct {
	embedder Embedder
	index    VectorIndex
	logger   *slog.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(embedder Embedder, index VectorIndex, logger *slog.Logger) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, index: index, logger: logger}, nil
}

// Search embeds the query, runs a nearest-neighbour search, and returns
// results with their code blocks deserialized from metadata, most relevant
// first (stable tie-break on index order).
//
// A result whose code_blocks metadata is missing or corrupt is returned
// with an empty code list rather than aborting the query: partial
// degradation over hard failure.
//
// Example:
//
//	results, err := retriever.Search(ctx, "aggregate boundary",
//	    knowledge.WithTopK(3),
//	    knowledge.WithFilter("topic", "ddd"))
func (r *Retriever) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	searchCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := r.embedder.Embed(searchCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := r.index.Query(searchCtx, embedding, cfg.topK, cfg.filter)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, r.hitToResult(hit))
	}

	// The index already orders by similarity; re-sorting stably here keeps
	// the contract independent of the backend and preserves insertion order
	// on ties.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	return results, nil
}

// hitToResult deserializes a hit's structural metadata into a Result.
func (r *Retriever) hitToResult(hit Hit) Result {
	result := Result{
		ID:         hit.ID,
		Text:       hit.Text,
		Similarity: hit.Similarity,
		CodeBlocks: []markdown.CodeBlock{},
		Metadata:   make(map[string]string, len(hit.Metadata)),
	}

	for key, value := range hit.Metadata {
		switch key {
		case MetaCodeBlocks:
			var blocks []markdown.CodeBlock
			if err := json.Unmarshal([]byte(value), &blocks); err != nil {
				// Degrade this result to an empty code list; never abort.
				r.logger.Warn("corrupt code_blocks metadata",
					"id", hit.ID, "error", err)
				continue
			}
			// Metadata is order-preserving, but re-sorting by position costs
			// nothing and guards against hand-edited rows.
			sort.SliceStable(blocks, func(i, j int) bool {
				return blocks[i].Position < blocks[j].Position
			})
			result.CodeBlocks = blocks
		case MetaSectionTitle:
			result.SectionTitle = value
		case MetaChunkIndex:
			if idx, err := strconv.Atoi(value); err == nil {
				result.ChunkIndex = idx
			}
		case MetaCodeBlockCount, MetaIsComplete:
			// Structural bookkeeping, not surfaced on Result.
		default:
			result.Metadata[key] = value
		}
	}

	return result
}

// Render returns the result's prose with each code block substituted back
// at its placeholder as a fenced region, fit for display to an agent or
// human.
func (res *Result) Render() string {
	if len(res.CodeBlocks) == 0 {
		return res.Text
	}
	return markdown.ReinsertFenced(res.Text, res.CodeBlocks)
}
