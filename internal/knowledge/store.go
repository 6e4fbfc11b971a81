package knowledge

// store.go implements VectorIndex on PostgreSQL + pgvector.
//
// All SQL is parameterized; metadata filters are built with json.Marshal and
// the JSONB @> containment operator, never by string interpolation.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const upsertChunkSQL = `INSERT INTO chunks (id, content, embedding, metadata)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE
	SET content = EXCLUDED.content,
	    embedding = EXCLUDED.embedding,
	    metadata = EXCLUDED.metadata`

// Similarity is cosine: pgvector's <=> operator yields cosine distance.
// The secondary ORDER BY id makes tie-breaks stable across runs.
const queryChunksSQL = `SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
	FROM chunks
	ORDER BY embedding <=> $1, id
	LIMIT $2`

const queryChunksFilteredSQL = `SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
	FROM chunks
	WHERE metadata @> $3
	ORDER BY embedding <=> $1, id
	LIMIT $2`

// Store persists chunk records in PostgreSQL with pgvector similarity
// search. It satisfies VectorIndex.
//
// Store is safe for concurrent use by multiple goroutines; independent
// upserts never block each other.
type Store struct {
	db     querier
	logger *slog.Logger
}

// NewStore creates a Store on the given connection pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: pool, logger: logger}, nil
}

// Upsert persists an entry, assigning a fresh id when the entry carries
// none, and returns the id. Re-upserting an existing id overwrites the row,
// which makes re-ingestion by stable id safe to retry.
func (s *Store) Upsert(ctx context.Context, entry IndexEntry) (string, error) {
	if entry.Text == "" {
		return "", fmt.Errorf("entry text is required")
	}
	if len(entry.Embedding) == 0 {
		return "", fmt.Errorf("entry embedding is required")
	}

	id := entry.ID
	if id == "" {
		id = uuid.NewString()
	}

	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return "", fmt.Errorf("marshaling metadata: %w", err)
	}

	vec := pgvector.NewVector(entry.Embedding)
	if _, err := s.db.Exec(ctx, upsertChunkSQL, id, entry.Text, vec, metadataJSON); err != nil {
		return "", fmt.Errorf("upserting chunk %q: %w", id, err)
	}

	s.logger.Debug("upserted chunk", "id", id, "content_length", len(entry.Text))
	return id, nil
}

// Query returns the topK nearest chunks to the embedding, most similar
// first. A non-empty filter restricts results to rows whose metadata
// contains every key/value pair.
func (s *Store) Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]Hit, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is required")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec := pgvector.NewVector(embedding)

	var rows pgx.Rows
	var err error
	if len(filter) > 0 {
		filterJSON, marshalErr := json.Marshal(filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		rows, err = s.db.Query(ctx, queryChunksFilteredSQL, vec, topK, filterJSON)
	} else {
		rows, err = s.db.Query(ctx, queryChunksSQL, vec, topK)
	}
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			hit          Hit
			metadataJSON []byte
			similarity   float64
		)
		if err := rows.Scan(&hit.ID, &hit.Text, &metadataJSON, &similarity); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		hit.Similarity = float32(similarity)

		if err := json.Unmarshal(metadataJSON, &hit.Metadata); err != nil {
			s.logger.Warn("failed to parse chunk metadata", "id", hit.ID, "error", err)
			hit.Metadata = make(map[string]string)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunk rows: %w", err)
	}

	return hits, nil
}

// Count returns the number of stored chunks matching the filter; a nil or
// empty filter counts everything.
func (s *Store) Count(ctx context.Context, filter map[string]string) (int, error) {
	var count int64
	var err error

	if len(filter) > 0 {
		filterJSON, marshalErr := json.Marshal(filter)
		if marshalErr != nil {
			return 0, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		err = s.db.QueryRow(ctx, `SELECT count(*) FROM chunks WHERE metadata @> $1`, filterJSON).Scan(&count)
	} else {
		err = s.db.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}

	// Overflow protection for 32-bit platforms.
	if count > math.MaxInt {
		return 0, fmt.Errorf("chunk count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}

// DeleteBySource removes every chunk carrying the given source tag. Callers
// use this for overwrite-by-source-key re-ingestion.
func (s *Store) DeleteBySource(ctx context.Context, key, value string) (int64, error) {
	if key == "" || value == "" {
		return 0, fmt.Errorf("source key and value are required")
	}
	filterJSON, err := json.Marshal(map[string]string{key: value})
	if err != nil {
		return 0, fmt.Errorf("marshaling filter: %w", err)
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM chunks WHERE metadata @> $1`, filterJSON)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks by source: %w", err)
	}
	return tag.RowsAffected(), nil
}
