package markdown

// assemble.go reattaches extracted code blocks to the chunks that contain
// their placeholders, producing the final persistable records.

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolvedPlaceholder indicates a chunk references a code block
	// position that was never extracted. This is pipeline misuse (stages run
	// out of order or on mismatched inputs), not a data problem, and aborts
	// assembly for the whole document.
	ErrUnresolvedPlaceholder = errors.New("placeholder references unknown code block")

	// ErrOrphanedCodeBlock indicates an extracted code block whose
	// placeholder appears in no chunk, meaning the chunker lost text.
	ErrOrphanedCodeBlock = errors.New("code block not attached to any chunk")
)

// Chunk is the final persistable unit: a bounded slice of prose with the
// code blocks whose placeholders it contains. ChunkIndex is the zero-based
// position within the document's chunk sequence, assigned after splitting.
//
// Chunks are immutable once assembled; embedding and persistence attach
// external identifiers but never mutate Text or CodeBlocks.
type Chunk struct {
	Text         string
	CodeBlocks   []CodeBlock
	SectionTitle string
	IsComplete   bool
	ChunkIndex   int
}

// Assemble resolves every placeholder in the given text chunks to its
// CodeBlock and produces the final ordered chunk records.
//
// Each code block attaches to exactly one chunk. A placeholder that resolves
// to no known block, a block claimed by two chunks, or a block left
// unattached all violate the extraction/chunking contract and fail loudly
// rather than silently dropping code.
func Assemble(textChunks []TextChunk, blocks []CodeBlock) ([]Chunk, error) {
	byPos := make(map[int]CodeBlock, len(blocks))
	for _, b := range blocks {
		byPos[b.Position] = b
	}

	attached := make(map[int]int, len(blocks)) // position -> chunk index

	chunks := make([]Chunk, 0, len(textChunks))
	for i, tc := range textChunks {
		var chunkBlocks []CodeBlock
		for _, pos := range placeholderPositions(tc.Text) {
			block, ok := byPos[pos]
			if !ok {
				return nil, fmt.Errorf("chunk %d: %w: position %d", i, ErrUnresolvedPlaceholder, pos)
			}
			if prev, dup := attached[pos]; dup {
				return nil, fmt.Errorf("chunk %d: code block %d already attached to chunk %d", i, pos, prev)
			}
			attached[pos] = i
			chunkBlocks = append(chunkBlocks, block)
		}
		chunks = append(chunks, Chunk{
			Text:         tc.Text,
			CodeBlocks:   chunkBlocks,
			SectionTitle: tc.SectionTitle,
			IsComplete:   tc.IsComplete,
			ChunkIndex:   i,
		})
	}

	if len(attached) != len(blocks) {
		for _, b := range blocks {
			if _, ok := attached[b.Position]; !ok {
				return nil, fmt.Errorf("%w: position %d", ErrOrphanedCodeBlock, b.Position)
			}
		}
	}

	return chunks, nil
}

// Process runs the full pipeline on a document: extract code blocks, chunk
// the remaining prose, and reattach blocks to their chunks.
func Process(document string, maxChars int) ([]Chunk, error) {
	text, blocks := Extract(document)
	return Assemble(ChunkText(text, maxChars), blocks)
}
