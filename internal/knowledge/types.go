package knowledge

import (
	"context"
	"time"

	"github.com/recallkit/recallkit/internal/markdown"
)

// Embedder produces a fixed-dimension vector for a piece of text.
// Implementations must be deterministic for identical input under a fixed
// model identifier; dimensionality is fixed per model and opaque here.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IndexEntry is the record persisted to the vector index: the embedded
// prose, the prose itself, and a flat metadata map carrying the serialized
// code blocks plus caller-supplied tags.
type IndexEntry struct {
	ID        string // empty = index assigns one
	Embedding []float32
	Text      string
	Metadata  map[string]string
}

// Hit is a raw nearest-neighbour match returned by a VectorIndex.
type Hit struct {
	ID         string
	Text       string
	Metadata   map[string]string
	Similarity float32 // cosine similarity, higher = closer
}

// VectorIndex is the storage collaborator consumed by both coordinators.
// Following Go practice the interface is defined here, by the consumer;
// Store satisfies it with PostgreSQL + pgvector.
type VectorIndex interface {
	// Upsert persists an entry and returns its stable unique id.
	Upsert(ctx context.Context, entry IndexEntry) (string, error)

	// Query returns the topK nearest entries to the embedding, optionally
	// restricted to entries whose metadata contains every filter pair.
	// Results arrive ordered by similarity, ties broken by id.
	Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]Hit, error)
}

// Result is a retrieved chunk with its code blocks reunited.
type Result struct {
	ID           string
	Text         string
	Similarity   float32
	CodeBlocks   []markdown.CodeBlock
	SectionTitle string
	ChunkIndex   int
	Metadata     map[string]string // caller tags, structural fields stripped
}

// Reserved metadata keys written by the Ingestor. Caller-supplied source
// metadata must not use these names.
const (
	MetaCodeBlocks     = "code_blocks"
	MetaCodeBlockCount = "code_block_count"
	MetaSectionTitle   = "section_title"
	MetaChunkIndex     = "chunk_index"
	MetaIsComplete     = "is_complete"
)

// reservedMetaKeys is the lookup form of the structural field names.
var reservedMetaKeys = map[string]struct{}{
	MetaCodeBlocks:     {},
	MetaCodeBlockCount: {},
	MetaSectionTitle:   {},
	MetaChunkIndex:     {},
	MetaIsComplete:     {},
}

// SearchOption configures Retriever.Search using the functional options
// pattern (as in context.WithTimeout, grpc.Dial).
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int
	filter  map[string]string
	timeout time.Duration
}

// Search defaults.
const (
	DefaultTopK          = 5
	DefaultSearchTimeout = 10 * time.Second
)

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithFilter restricts results to entries whose metadata contains the given
// pair. Multiple calls combine with AND logic.
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithSearchTimeout overrides the per-search deadline applied to the
// embedding call and the index query. Default is 10 seconds.
func WithSearchTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    DefaultTopK,
		timeout: DefaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
