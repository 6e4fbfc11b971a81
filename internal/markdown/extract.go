package markdown

// extract.go implements fenced code block extraction.
//
// Fence detection is a small line-oriented state machine (prose / in-fence)
// rather than one monolithic regular expression. This keeps indented fences
// (code nested under list items) and unterminated fences well-defined, and
// avoids pathological backtracking on adversarial input.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CodeBlock is a fenced code region lifted out of a document.
// Position is the zero-based ordinal among all blocks in the original
// document, assigned in document order. It is stable across chunking:
// chunk boundaries are not known at extraction time, so blocks are numbered
// globally first and attached to chunks later.
type CodeBlock struct {
	Language string `json:"language"`
	Content  string `json:"content"`
	Position int    `json:"position"`
}

// placeholderPattern matches the inline token left behind by Extract.
// The bracketed form cannot occur inside a fence (fences are removed) and is
// unlikely in prose, making the substitution reversible in practice.
var placeholderPattern = regexp.MustCompile(`\[CODE_BLOCK_(\d+)\]`)

// Placeholder returns the inline token that stands in for the code block at
// the given position.
func Placeholder(position int) string {
	return fmt.Sprintf("[CODE_BLOCK_%d]", position)
}

// minFenceLen is the minimum number of backticks opening a fence.
const minFenceLen = 3

// parseFenceOpen reports whether line opens a fenced code block.
// Leading indentation is tolerated so fences nested under list items are
// recognized. The language tag is the run of word characters immediately
// after the backticks; a bare fence yields an empty tag.
func parseFenceOpen(line string) (indent, lang string, fenceLen int, ok bool) {
	rest := strings.TrimLeft(line, " \t")
	indent = line[:len(line)-len(rest)]

	for fenceLen < len(rest) && rest[fenceLen] == '`' {
		fenceLen++
	}
	if fenceLen < minFenceLen {
		return "", "", 0, false
	}

	info := rest[fenceLen:]
	end := 0
	for end < len(info) && isWordChar(info[end]) {
		end++
	}
	return indent, info[:end], fenceLen, true
}

// isFenceClose reports whether line terminates a fence opened with fenceLen
// backticks: optional indentation, at least fenceLen backticks, then only
// trailing whitespace.
func isFenceClose(line string, fenceLen int) bool {
	rest := strings.TrimLeft(line, " \t")
	n := 0
	for n < len(rest) && rest[n] == '`' {
		n++
	}
	if n < fenceLen {
		return false
	}
	return strings.TrimRight(rest[n:], " \t") == ""
}

func isWordChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// Extract lifts every well-formed fenced code block out of content,
// replacing each with a placeholder token that encodes the block's position.
//
// The returned text contains no code content. An opening fence with no
// matching close before end of document is not a code block: the region is
// kept as plain text, so malformed input degrades gracefully instead of
// silently dropping trailing content.
//
// Extract is a pure function. Running it on text that contains no fences
// returns the text unchanged and a nil block list, making it idempotent.
func Extract(content string) (string, []CodeBlock) {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	var blocks []CodeBlock

	for i := 0; i < len(lines); {
		_, lang, fenceLen, ok := parseFenceOpen(lines[i])
		if !ok {
			out = append(out, lines[i])
			i++
			continue
		}

		// Look ahead for the closing fence.
		close := -1
		for j := i + 1; j < len(lines); j++ {
			if isFenceClose(lines[j], fenceLen) {
				close = j
				break
			}
		}
		if close < 0 {
			// Unterminated fence: treat the opener as prose and move on.
			out = append(out, lines[i])
			i++
			continue
		}

		code := strings.Join(lines[i+1:close], "\n")
		blocks = append(blocks, CodeBlock{
			Language: lang,
			Content:  strings.TrimRight(code, " \t\n"),
			Position: len(blocks),
		})
		// The placeholder line carries no indentation: code content keeps its
		// own leading whitespace, so Reinsert reproduces the original bytes.
		out = append(out, Placeholder(len(blocks)-1))
		i = close + 1
	}

	return strings.Join(out, "\n"), blocks
}

// Fence renders the block back as a fenced code region.
func (b CodeBlock) Fence() string {
	return "```" + b.Language + "\n" + b.Content + "\n```"
}

// Reinsert substitutes each block's raw content back at its placeholder,
// reversing Extract modulo the stripped fence delimiters. Placeholders with
// no matching block are left untouched.
func Reinsert(text string, blocks []CodeBlock) string {
	return reinsert(text, blocks, func(b CodeBlock) string { return b.Content })
}

// ReinsertFenced substitutes each block back as a complete fenced region
// with its language tag, producing display-ready markdown.
func ReinsertFenced(text string, blocks []CodeBlock) string {
	return reinsert(text, blocks, CodeBlock.Fence)
}

func reinsert(text string, blocks []CodeBlock, render func(CodeBlock) string) string {
	byPos := make(map[int]CodeBlock, len(blocks))
	for _, b := range blocks {
		byPos[b.Position] = b
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		pos, err := strconv.Atoi(placeholderPattern.FindStringSubmatch(token)[1])
		if err != nil {
			return token
		}
		block, ok := byPos[pos]
		if !ok {
			return token
		}
		return render(block)
	})
}

// placeholderPositions returns the positions encoded by every placeholder
// token in text, in order of appearance.
func placeholderPositions(text string) []int {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	positions := make([]int, 0, len(matches))
	for _, m := range matches {
		pos, err := strconv.Atoi(m[1])
		if err != nil {
			// \d+ guarantees digits; overflow is the only failure mode.
			continue
		}
		positions = append(positions, pos)
	}
	return positions
}
