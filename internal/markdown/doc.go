// Package markdown prepares free-form technical documents for semantic
// indexing by separating prose from embedded code.
//
// The package implements a three-stage, purely functional pipeline:
//
//	Document text
//	     |
//	     v
//	Extract          - lift fenced code blocks out of the text stream,
//	     |             leaving [CODE_BLOCK_n] placeholders behind
//	     v
//	ChunkText        - split the placeholder-laden text into size-bounded,
//	     |             heading-aligned chunks
//	     v
//	Assemble         - reattach each code block to the chunk holding its
//	                   placeholder, producing persistable Chunk records
//
// Only the prose (with placeholders) is ever embedded; code blocks travel
// in chunk metadata and are reunited with the text at query time. This keeps
// code syntax from diluting semantic embeddings while guaranteeing that no
// code content is lost.
//
// # Invariants
//
// The pipeline maintains three properties that callers may rely on:
//
//   - Round-trip: reinserting every CodeBlock at its placeholder reproduces
//     the original document text (modulo the stripped fence delimiters).
//   - Conservation: the union of CodeBlocks across all chunks of a document
//     equals the extracted code list exactly. No block is duplicated or
//     dropped; Assemble fails loudly if the invariant cannot hold.
//   - No leakage: chunk text never contains raw code or fence markers.
//
// All three stages are deterministic, allocate no shared state, and are safe
// to run concurrently for independent documents.
package markdown
