package markdown

// chunk.go implements section-aware splitting of placeholder-laden text.
//
// Chunk boundaries preferentially align with heading structure. Size limits
// apply to prose only: code content has already been replaced by
// placeholders, so a chunk carrying large code blocks still fits its budget.

import (
	"strings"
)

// DefaultMaxChunkChars is the default prose budget per chunk.
// Mirrors the ingestion default of the knowledge store; tuned for embedding
// models with a ~2048 token window.
const DefaultMaxChunkChars = 4000

// TextChunk is an intermediate chunk of document text produced by ChunkText,
// before code blocks are reattached.
//
// SectionTitle is the nearest enclosing heading at the point the chunk
// begins; empty for content preceding the first heading. IsComplete is true
// when the chunk ends at a natural boundary (heading or end of document)
// rather than a forced size cut.
type TextChunk struct {
	Text         string
	SectionTitle string
	IsComplete   bool
}

// section is a heading-delimited region of the document.
type section struct {
	title string
	text  string // includes the heading line itself
}

// parseHeading reports whether line is a heading: one or more '#' markers
// followed by at least one space.
func parseHeading(line string) (title string, ok bool) {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n > 6 || n >= len(line) || (line[n] != ' ' && line[n] != '\t') {
		return "", false
	}
	return strings.TrimSpace(line[n:]), true
}

// splitSections cuts text at heading lines. Content before the first heading
// becomes an untitled leading section. A document with no headings at all
// yields a single untitled section.
func splitSections(text string) []section {
	lines := strings.Split(text, "\n")
	var sections []section
	var current []string
	title := ""
	started := false

	flush := func() {
		if started || len(current) > 0 {
			sections = append(sections, section{title: title, text: strings.Join(current, "\n")})
		}
	}

	for _, line := range lines {
		if t, ok := parseHeading(line); ok {
			flush()
			title = t
			current = current[:0:0]
			started = true
		}
		current = append(current, line)
	}
	flush()

	if len(sections) == 0 {
		return []section{{title: "", text: text}}
	}
	return sections
}

// splitParagraphs cuts text at blank-line boundaries, keeping the split
// lossless: rejoining the pieces with "\n\n" reproduces the input.
func splitParagraphs(text string) []string {
	return strings.Split(text, "\n\n")
}

// containsSplitPlaceholder reports whether s ends inside a placeholder token,
// i.e. has an opening "[CODE_BLOCK_" with no closing bracket after it.
func containsSplitPlaceholder(s string) bool {
	idx := strings.LastIndex(s, "[CODE_BLOCK_")
	if idx < 0 {
		return false
	}
	return !strings.Contains(s[idx:], "]")
}

// ChunkText splits placeholder-laden document text into ordered chunks of at
// most maxChars characters, aligned to heading boundaries.
//
// Each heading starts a new section tagged with its title. A section whose
// text exceeds maxChars is force-split at paragraph boundaries; every chunk
// of a force-split section carries IsComplete=false. A single paragraph
// larger than maxChars is emitted whole, the one case where a chunk may
// exceed the budget, because cutting inside a paragraph (or a placeholder
// token) would destroy context.
//
// The output is deterministic: identical input and maxChars always produce
// the identical chunk sequence. Concatenating all chunk texts in order
// reproduces the document modulo whitespace trimmed at split points.
func ChunkText(text string, maxChars int) []TextChunk {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}

	var chunks []TextChunk
	for _, sec := range splitSections(text) {
		trimmed := strings.TrimSpace(sec.text)
		if trimmed == "" {
			continue
		}
		if len(trimmed) <= maxChars {
			chunks = append(chunks, TextChunk{
				Text:         trimmed,
				SectionTitle: sec.title,
				IsComplete:   true,
			})
			continue
		}
		chunks = append(chunks, splitSection(sec, maxChars)...)
	}
	return chunks
}

// splitSection force-splits an oversized section at paragraph boundaries.
func splitSection(sec section, maxChars int) []TextChunk {
	paragraphs := splitParagraphs(strings.TrimSpace(sec.text))

	var chunks []TextChunk
	var pending []string
	size := 0

	flush := func() {
		if len(pending) == 0 {
			return
		}
		chunks = append(chunks, TextChunk{
			Text:         strings.TrimSpace(strings.Join(pending, "\n\n")),
			SectionTitle: sec.title,
			IsComplete:   false,
		})
		pending = pending[:0:0]
		size = 0
	}

	for _, para := range paragraphs {
		// +2 accounts for the rejoining blank line.
		added := len(para)
		if size > 0 {
			added += 2
		}
		if size+added > maxChars && len(pending) > 0 {
			// A forced cut must never land inside a placeholder token.
			// Paragraph boundaries cannot bisect one, but guard against a
			// degenerate paragraph that itself ends mid-token.
			if !containsSplitPlaceholder(strings.Join(pending, "\n\n")) {
				flush()
			}
		}
		pending = append(pending, para)
		size += added
	}
	flush()

	return chunks
}
