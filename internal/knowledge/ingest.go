package knowledge

// ingest.go implements the ingestion coordinator: document -> chunking
// pipeline -> per-chunk embedding and persistence.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/recallkit/recallkit/internal/markdown"
)

// ErrReservedMetadataKey indicates caller-supplied source metadata uses a
// structural field name reserved by the ingestor.
var ErrReservedMetadataKey = errors.New("source metadata uses a reserved key")

// Ingestion defaults.
const (
	// DefaultIngestConcurrency bounds parallel embed/persist workers per
	// document. The embedding call dominates latency, so a small pool keeps
	// throughput up without hammering the API.
	DefaultIngestConcurrency = 4

	// DefaultEmbedRate caps embedding calls per second across one Ingestor.
	DefaultEmbedRate = 10
)

// ChunkFailure reports one chunk that could not be embedded or persisted.
type ChunkFailure struct {
	ChunkIndex int
	Err        error
}

func (f ChunkFailure) Error() string {
	return fmt.Sprintf("chunk %d: %v", f.ChunkIndex, f.Err)
}

func (f ChunkFailure) Unwrap() error { return f.Err }

// Report is the structured outcome of one ingestion call: the ids that were
// stored plus per-chunk failures. A failed chunk never aborts its siblings.
type Report struct {
	IDs      []string
	Failures []ChunkFailure
}

// Err summarizes the failures, or returns nil when every chunk succeeded.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return fmt.Errorf("%d of %d chunks failed: %w", len(r.Failures), len(r.IDs)+len(r.Failures), errors.Join(errs...))
}

// IngestOption configures an Ingestor.
type IngestOption func(*Ingestor)

// WithMaxChunkChars overrides the prose budget per chunk.
func WithMaxChunkChars(n int) IngestOption {
	return func(ing *Ingestor) {
		if n > 0 {
			ing.maxChunkChars = n
		}
	}
}

// WithConcurrency bounds the number of chunks embedded and persisted in
// parallel for one document.
func WithConcurrency(n int) IngestOption {
	return func(ing *Ingestor) {
		if n > 0 {
			ing.concurrency = n
		}
	}
}

// WithEmbedRate caps embedding calls per second. Zero or negative disables
// the limiter.
func WithEmbedRate(perSecond float64) IngestOption {
	return func(ing *Ingestor) {
		if perSecond > 0 {
			ing.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			ing.limiter = nil
		}
	}
}

// Ingestor coordinates document ingestion into the vector index.
//
// Ingestor is safe for concurrent use; independent documents may be
// ingested in parallel with no coordination.
type Ingestor struct {
	embedder      Embedder
	index         VectorIndex
	logger        *slog.Logger
	maxChunkChars int
	concurrency   int
	limiter       *rate.Limiter
}

// NewIngestor creates an Ingestor.
func NewIngestor(embedder Embedder, index VectorIndex, logger *slog.Logger, opts ...IngestOption) (*Ingestor, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ing := &Ingestor{
		embedder:      embedder,
		index:         index,
		logger:        logger,
		maxChunkChars: markdown.DefaultMaxChunkChars,
		concurrency:   DefaultIngestConcurrency,
		limiter:       rate.NewLimiter(rate.Limit(DefaultEmbedRate), 1),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing, nil
}

// Ingest chunks the document, embeds each chunk's prose, and persists the
// resulting records, merging source metadata (topic, category, priority,
// originating file, ...) into every chunk's metadata map.
//
// The returned Report lists the stored ids in chunk order plus any per-chunk
// failures. A non-nil error is returned only for hard failures: reserved
// metadata keys in source, or a chunking invariant violation. Both indicate
// caller bugs, not data problems.
//
// Cancellation is cooperative at chunk granularity: an in-flight chunk may
// finish, but no further chunks start once ctx is done.
func (ing *Ingestor) Ingest(ctx context.Context, document string, source map[string]string) (*Report, error) {
	for key := range source {
		if _, reserved := reservedMetaKeys[key]; reserved {
			return nil, fmt.Errorf("%w: %q", ErrReservedMetadataKey, key)
		}
	}

	chunks, err := markdown.Process(document, ing.maxChunkChars)
	if err != nil {
		// Invariant violation: log with enough context to diagnose the
		// pipeline bug, then abort this document.
		ing.logger.Error("chunking pipeline invariant violated",
			"source", source, "error", err)
		return nil, fmt.Errorf("chunking document: %w", err)
	}

	ids := make([]string, len(chunks))
	errs := make([]error, len(chunks))

	g := new(errgroup.Group)
	g.SetLimit(ing.concurrency)

	for i, chunk := range chunks {
		// No further chunks are started after cancellation.
		if ctxErr := ctx.Err(); ctxErr != nil {
			errs[i] = ctxErr
			continue
		}

		g.Go(func() error {
			errs[i] = ing.ingestChunk(ctx, chunk, source, &ids[i])
			return nil
		})
	}
	// Workers record failures instead of returning them, so Wait's error is
	// always nil; chunks stay independent.
	_ = g.Wait()

	report := &Report{}
	for i := range chunks {
		switch {
		case errs[i] != nil:
			report.Failures = append(report.Failures, ChunkFailure{ChunkIndex: i, Err: errs[i]})
		default:
			report.IDs = append(report.IDs, ids[i])
		}
	}

	ing.logger.Info("ingested document",
		"chunks", len(chunks),
		"stored", len(report.IDs),
		"failed", len(report.Failures))
	return report, nil
}

// ingestChunk embeds one chunk's prose and persists the record.
func (ing *Ingestor) ingestChunk(ctx context.Context, chunk markdown.Chunk, source map[string]string, id *string) error {
	if ing.limiter != nil {
		if err := ing.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for embed slot: %w", err)
		}
	}

	// Only the prose (placeholders included) is embedded; code content never
	// reaches the embedding service.
	embedding, err := ing.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}

	metadata, err := chunkMetadata(chunk, source)
	if err != nil {
		return err
	}

	storedID, err := ing.index.Upsert(ctx, IndexEntry{
		ID:        uuid.NewString(),
		Embedding: embedding,
		Text:      chunk.Text,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("persisting: %w", err)
	}

	*id = storedID
	return nil
}

// chunkMetadata builds the metadata map for a chunk: structural fields plus
// the caller's source tags.
func chunkMetadata(chunk markdown.Chunk, source map[string]string) (map[string]string, error) {
	metadata := make(map[string]string, len(source)+len(reservedMetaKeys))
	for k, v := range source {
		metadata[k] = v
	}

	codeJSON, err := json.Marshal(chunk.CodeBlocks)
	if err != nil {
		return nil, fmt.Errorf("serializing code blocks: %w", err)
	}
	metadata[MetaCodeBlocks] = string(codeJSON)
	metadata[MetaCodeBlockCount] = strconv.Itoa(len(chunk.CodeBlocks))
	metadata[MetaSectionTitle] = chunk.SectionTitle
	metadata[MetaChunkIndex] = strconv.Itoa(chunk.ChunkIndex)
	metadata[MetaIsComplete] = strconv.FormatBool(chunk.IsComplete)

	return metadata, nil
}
