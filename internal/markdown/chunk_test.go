package markdown

import (
	"strings"
	"testing"
)

func TestChunkText_SmallSectionSingleChunk(t *testing.T) {
	t.Parallel()

	text := "## Aggregates\n\nAn aggregate guards its invariants.\n\n[CODE_BLOCK_0]\n\nKeep them small."
	chunks := ChunkText(text, 1000)

	if len(chunks) != 1 {
		t.Fatalf("ChunkText() = %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.SectionTitle != "Aggregates" {
		t.Errorf("SectionTitle = %q, want %q", c.SectionTitle, "Aggregates")
	}
	if !c.IsComplete {
		t.Error("IsComplete = false, want true")
	}
	if c.Text != text {
		t.Errorf("Text = %q, want input unchanged", c.Text)
	}
}

func TestChunkText_ContentBeforeFirstHeading(t *testing.T) {
	t.Parallel()

	text := "Preamble without a heading.\n\n## First\n\nSection content."
	chunks := ChunkText(text, 1000)

	if len(chunks) != 2 {
		t.Fatalf("ChunkText() = %d chunks, want 2", len(chunks))
	}
	if chunks[0].SectionTitle != "" {
		t.Errorf("chunks[0].SectionTitle = %q, want empty", chunks[0].SectionTitle)
	}
	if chunks[0].Text != "Preamble without a heading." {
		t.Errorf("chunks[0].Text = %q", chunks[0].Text)
	}
	if chunks[1].SectionTitle != "First" {
		t.Errorf("chunks[1].SectionTitle = %q, want %q", chunks[1].SectionTitle, "First")
	}
}

func TestChunkText_SplitsAtEveryHeadingLevel(t *testing.T) {
	t.Parallel()

	text := "# Top\n\nalpha\n\n## Nested\n\nbeta\n\n### Deep\n\ngamma"
	chunks := ChunkText(text, 1000)

	if len(chunks) != 3 {
		t.Fatalf("ChunkText() = %d chunks, want 3", len(chunks))
	}
	wantTitles := []string{"Top", "Nested", "Deep"}
	for i, c := range chunks {
		if c.SectionTitle != wantTitles[i] {
			t.Errorf("chunks[%d].SectionTitle = %q, want %q", i, c.SectionTitle, wantTitles[i])
		}
		if !c.IsComplete {
			t.Errorf("chunks[%d].IsComplete = false, want true", i)
		}
	}
}

func TestChunkText_ForcedSplitAtParagraphBoundary(t *testing.T) {
	t.Parallel()

	para := strings.Repeat("x", 400)
	text := "## Big\n\n" + para + "\n\n" + para + "\n\n" + para
	chunks := ChunkText(text, 500)

	if len(chunks) < 2 {
		t.Fatalf("ChunkText() = %d chunks, want at least 2", len(chunks))
	}
	for i, c := range chunks {
		if c.SectionTitle != "Big" {
			t.Errorf("chunks[%d].SectionTitle = %q, want %q", i, c.SectionTitle, "Big")
		}
		if c.IsComplete {
			t.Errorf("chunks[%d].IsComplete = true, want false for forced split", i)
		}
		if len(c.Text) > 500 {
			t.Errorf("chunks[%d] length %d exceeds budget 500", i, len(c.Text))
		}
	}

	// Concatenation must reproduce the section modulo trimmed split points.
	var parts []string
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	if got := strings.Join(parts, "\n\n"); got != text {
		t.Errorf("concatenated chunks = %q, want %q", got, text)
	}
}

func TestChunkText_HeadingEmittedOnce(t *testing.T) {
	t.Parallel()

	para := strings.Repeat("y", 300)
	text := "## Title\n\n" + para + "\n\n" + para
	chunks := ChunkText(text, 350)

	if len(chunks) < 2 {
		t.Fatalf("ChunkText() = %d chunks, want at least 2", len(chunks))
	}
	count := 0
	for _, c := range chunks {
		count += strings.Count(c.Text, "## Title")
	}
	if count != 1 {
		t.Errorf("heading appears %d times across chunks, want exactly 1", count)
	}
}

func TestChunkText_OversizedParagraphMayExceedBudget(t *testing.T) {
	t.Parallel()

	// A single paragraph above the limit is the documented degenerate case:
	// it is emitted whole rather than cut mid-sentence.
	giant := strings.Repeat("z", 900)
	text := "## S\n\nsmall\n\n" + giant + "\n\nsmall again"
	chunks := ChunkText(text, 300)

	exceeded := false
	for _, c := range chunks {
		if strings.Contains(c.Text, giant) {
			exceeded = true
			if len(c.Text) < 900 {
				t.Errorf("giant paragraph was cut: len = %d", len(c.Text))
			}
		}
	}
	if !exceeded {
		t.Error("giant paragraph missing from every chunk")
	}
}

func TestChunkText_NoHeadingsDegenerate(t *testing.T) {
	t.Parallel()

	para := strings.Repeat("w", 200)
	text := para + "\n\n" + para + "\n\n" + para
	chunks := ChunkText(text, 250)

	if len(chunks) != 3 {
		t.Fatalf("ChunkText() = %d chunks, want 3", len(chunks))
	}
	for i, c := range chunks {
		if c.SectionTitle != "" {
			t.Errorf("chunks[%d].SectionTitle = %q, want empty", i, c.SectionTitle)
		}
		if c.IsComplete {
			t.Errorf("chunks[%d].IsComplete = true, want false", i)
		}
	}
}

func TestChunkText_Idempotent(t *testing.T) {
	t.Parallel()

	// Re-chunking an already-chunked text (no headings, within budget) must
	// return it unchanged as a single chunk.
	text := "Some prose that fits.\n\n[CODE_BLOCK_3]\n\nMore prose."
	chunks := ChunkText(text, 4000)

	if len(chunks) != 1 {
		t.Fatalf("ChunkText() = %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("Text = %q, want unchanged input", chunks[0].Text)
	}
	if !chunks[0].IsComplete {
		t.Error("IsComplete = false, want true")
	}
}

func TestChunkText_Deterministic(t *testing.T) {
	t.Parallel()

	para := strings.Repeat("d", 180)
	text := "## A\n\n" + para + "\n\n" + para + "\n\n## B\n\n" + para
	first := ChunkText(text, 200)
	for run := 0; run < 5; run++ {
		again := ChunkText(text, 200)
		if len(again) != len(first) {
			t.Fatalf("run %d: %d chunks, want %d", run, len(again), len(first))
		}
		for i := range first {
			if again[i] != first[i] {
				t.Errorf("run %d: chunks[%d] differs", run, i)
			}
		}
	}
}

func TestChunkText_PlaceholderNeverSplit(t *testing.T) {
	t.Parallel()

	// Placeholders sit on paragraph boundaries after extraction, but even a
	// pathological layout must never bisect a token.
	var sb strings.Builder
	sb.WriteString("## P\n\n")
	for i := 0; i < 40; i++ {
		sb.WriteString(strings.Repeat("t", 60))
		sb.WriteString("\n\n")
		sb.WriteString(Placeholder(i))
		sb.WriteString("\n\n")
	}
	chunks := ChunkText(sb.String(), 150)

	for i, c := range chunks {
		if containsSplitPlaceholder(c.Text) {
			t.Errorf("chunks[%d] ends inside a placeholder token: %q", i, c.Text)
		}
		if strings.Count(c.Text, "[CODE_BLOCK_") != strings.Count(c.Text, "]") {
			t.Errorf("chunks[%d] has unbalanced placeholder tokens", i)
		}
	}
}

func TestParseHeading(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line      string
		wantTitle string
		wantOK    bool
	}{
		{"# Title", "Title", true},
		{"###### Deep", "Deep", true},
		{"## Spaced out  ", "Spaced out", true},
		{"#NoSpace", "", false},
		{"####### TooDeep", "", false},
		{"plain text", "", false},
		{"", "", false},
		{"#", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()
			title, ok := parseHeading(tt.line)
			if ok != tt.wantOK || title != tt.wantTitle {
				t.Errorf("parseHeading(%q) = (%q, %v), want (%q, %v)",
					tt.line, title, ok, tt.wantTitle, tt.wantOK)
			}
		})
	}
}
