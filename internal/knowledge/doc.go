// Package knowledge implements the knowledge base: ingestion of technical
// documents into a vector index and semantic retrieval with code
// reunification.
//
// # Overview
//
// The package has two coordinators and two external collaborators:
//
//   - Ingestor: drives the chunking pipeline (internal/markdown), embeds
//     chunk prose, and persists chunk records to the vector index
//   - Retriever: embeds a query, runs a nearest-neighbour search, and
//     reunites each result's prose with its stored code blocks
//   - Embedder: produces fixed-dimension vectors for text (consumed as a
//     black box; production implementation backed by the Gemini API)
//   - VectorIndex: stores and queries embeddings with attached metadata
//     (production implementation on PostgreSQL + pgvector, see Store)
//
// Data flow at ingestion time:
//
//	Document text
//	     |
//	     v
//	markdown.Process (extract -> chunk -> assemble)
//	     |
//	     v
//	Embedding of chunk prose only (placeholders included, code excluded)
//	     |
//	     v
//	VectorIndex upsert (prose + code blocks serialized in metadata)
//
// Code blocks never reach the embedding service: they ride in the metadata
// map under the reserved code_blocks key and are deserialized again at query
// time, so search quality reflects the prose while results still carry the
// complete code.
//
// # Failure semantics
//
// Ingestion is partial-success, not transactional: each chunk embeds and
// persists independently, a failed chunk is reported in the returned Report
// without aborting its siblings, and cancellation takes effect at chunk
// granularity. The one hard failure is a chunking invariant violation
// (markdown.ErrUnresolvedPlaceholder and friends), which indicates pipeline
// misuse and aborts the document.
//
// At query time a result whose code_blocks metadata is missing or corrupt
// degrades to an empty code list instead of failing the whole search.
//
// # Concurrency
//
// Both coordinators and the Store are safe for concurrent use. Ingest runs
// chunks through a bounded worker group; retrieval is read-only and has no
// ordering dependency on concurrent ingestions (visibility of freshly
// ingested chunks follows the index's own consistency model).
package knowledge
