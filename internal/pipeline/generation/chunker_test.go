package generation

import (
	"strings"
	"testing"

	"github.com/courseforge/quizgen/internal/core/domain"
)

func TestBuildChunks_PacksParagraphs(t *testing.T) {
	frag := domain.Fragment{
		Title:   "Lecture 1",
		Content: "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph here.",
	}

	chunks := BuildChunks("101", []domain.Fragment{frag}, 200)
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk for small content, got %d", len(chunks))
	}
	c := chunks[0]
	if c.SourceID != "101" || c.Index != 0 || c.Title != "Lecture 1" {
		t.Errorf("chunk identity wrong: %+v", c)
	}
	if !strings.Contains(c.Text, "Second paragraph") {
		t.Errorf("chunk lost a paragraph: %q", c.Text)
	}
}

func TestBuildChunks_SplitsAtBound(t *testing.T) {
	paras := make([]string, 10)
	for i := range paras {
		paras[i] = strings.Repeat("abc ", 25) // ~100 chars each
	}
	frag := domain.Fragment{Content: strings.Join(paras, "\n\n")}

	chunks := BuildChunks("101", []domain.Fragment{frag}, 250)
	if len(chunks) < 4 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > 250 {
			t.Errorf("chunk %d exceeds bound: %d chars", c.Index, len(c.Text))
		}
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk index %d out of order (got %d)", i, c.Index)
		}
	}
}

func TestBuildChunks_HardSplitsOversizedParagraph(t *testing.T) {
	// One paragraph with no blank lines, larger than the bound.
	frag := domain.Fragment{Content: strings.Repeat("sentence goes on. ", 100)}

	chunks := BuildChunks("101", []domain.Fragment{frag}, 300)
	if len(chunks) < 2 {
		t.Fatalf("oversized paragraph should be hard-split, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > 300 {
			t.Errorf("chunk exceeds bound after hard split: %d chars", len(c.Text))
		}
	}
}

func TestBuildChunks_EmptyContent(t *testing.T) {
	chunks := BuildChunks("101", []domain.Fragment{{Content: "  \n\n  "}}, 100)
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for blank content, got %d", len(chunks))
	}
}

func TestSplitOversized_PrefersSentenceBoundary(t *testing.T) {
	para := strings.Repeat("x", 80) + ". " + strings.Repeat("y", 80)
	pieces := splitOversized(para, 100)
	if len(pieces) != 2 {
		t.Fatalf("expected 2 pieces, got %d", len(pieces))
	}
	if !strings.HasSuffix(pieces[0], ".") {
		t.Errorf("first piece should end at the sentence boundary: %q", pieces[0])
	}
}
