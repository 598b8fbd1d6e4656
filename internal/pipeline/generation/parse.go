package generation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Candidate is one question as returned by the generator, before it gains a
// database identity.
type Candidate struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// ParseCandidates decodes the generator's raw output and structurally
// validates every question: required fields present and the correct-answer
// index resolving to an existing option. One bad question invalidates the
// whole result; the caller logs it and moves to the next chunk.
func ParseCandidates(raw string) ([]Candidate, error) {
	raw = stripCodeFence(raw)
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty generator output")
	}

	var wrapper struct {
		Questions []Candidate `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapper); err != nil {
		// Some models return a bare array instead of the wrapper object.
		var list []Candidate
		if err2 := json.Unmarshal([]byte(raw), &list); err2 != nil {
			return nil, fmt.Errorf("unparsable generator output: %w", err)
		}
		wrapper.Questions = list
	}
	if len(wrapper.Questions) == 0 {
		return nil, fmt.Errorf("generator output contains no questions")
	}

	for i, c := range wrapper.Questions {
		if strings.TrimSpace(c.Text) == "" {
			return nil, fmt.Errorf("question %d: missing text", i)
		}
		if len(c.Options) < 2 {
			return nil, fmt.Errorf("question %d: %d options, need at least 2", i, len(c.Options))
		}
		if c.CorrectAnswer < 0 || c.CorrectAnswer >= len(c.Options) {
			return nil, fmt.Errorf("question %d: correct answer %d does not resolve to an option", i, c.CorrectAnswer)
		}
	}

	return wrapper.Questions, nil
}

func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}
