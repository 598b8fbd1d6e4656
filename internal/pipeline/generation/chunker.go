package generation

import (
	"strings"

	"github.com/courseforge/quizgen/internal/core/domain"
)

// Chunk is a bounded slice of merged fragment content sized for one
// generation call.
type Chunk struct {
	SourceID string
	Index    int
	Title    string
	Text     string
}

// BuildChunks splits a source's fragments into chunks bounded by maxChars.
// Splitting happens at paragraph boundaries; a single paragraph larger than
// the bound is hard-split.
func BuildChunks(sourceID string, fragments []domain.Fragment, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = 4000
	}

	var chunks []Chunk
	var sb strings.Builder
	title := ""

	flush := func() {
		text := strings.TrimSpace(sb.String())
		sb.Reset()
		if text == "" {
			return
		}
		chunks = append(chunks, Chunk{
			SourceID: sourceID,
			Index:    len(chunks),
			Title:    title,
			Text:     text,
		})
	}

	for _, frag := range fragments {
		title = frag.Title
		for _, para := range splitParagraphs(frag.Content) {
			for _, piece := range splitOversized(para, maxChars) {
				if sb.Len() > 0 && sb.Len()+len(piece)+2 > maxChars {
					flush()
				}
				if sb.Len() > 0 {
					sb.WriteString("\n\n")
				}
				sb.WriteString(piece)
			}
		}
		flush()
	}

	return chunks
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitOversized hard-splits a paragraph that alone exceeds the chunk bound,
// preferring sentence ends and word boundaries over mid-word cuts.
func splitOversized(para string, maxChars int) []string {
	if len(para) <= maxChars {
		return []string{para}
	}

	var out []string
	for len(para) > maxChars {
		cut := maxChars
		if idx := strings.LastIndexAny(para[:maxChars], ".!?"); idx > maxChars/2 {
			cut = idx + 1
		} else if idx := strings.LastIndex(para[:maxChars], " "); idx > maxChars/2 {
			cut = idx
		}
		out = append(out, strings.TrimSpace(para[:cut]))
		para = strings.TrimSpace(para[cut:])
	}
	if para != "" {
		out = append(out, para)
	}
	return out
}
