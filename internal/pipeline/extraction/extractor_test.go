package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/courseforge/quizgen/internal/core/domain"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func mixedQuiz() *domain.Quiz {
	return &domain.Quiz{
		ID:        "quiz-1",
		CourseRef: "course-9",
		Sources: map[string]domain.Source{
			"101": {Name: "Manual notes", SourceType: domain.SourceTypeManual, Content: words(150)},
			"202": {Name: "Module 202", SourceType: domain.SourceTypeExternal},
		},
	}
}

func TestExtract_MergesManualAndExternal(t *testing.T) {
	var gotCourse string
	var gotIDs []int
	fetch := func(ctx context.Context, token, courseRef string, moduleIDs []int) (map[string][]domain.Fragment, error) {
		gotCourse = courseRef
		gotIDs = moduleIDs
		return map[string][]domain.Fragment{
			"202": {{Title: "Page", Content: words(300), WordCount: 300, SourceType: "external"}},
		}, nil
	}

	o := NewOrchestrator(DefaultConfig(), fetch, nil, nil)
	res, err := o.Extract(context.Background(), mixedQuiz(), "tok")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if gotCourse != "course-9" || len(gotIDs) != 1 || gotIDs[0] != 202 {
		t.Errorf("retrieval called with course=%s ids=%v", gotCourse, gotIDs)
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", res.Outcome)
	}
	if len(res.Content) != 2 {
		t.Fatalf("merged content keys = %v, want 2 entries", len(res.Content))
	}
	if _, ok := res.Content["101"]; !ok {
		t.Error("manual source missing from merged content")
	}
	if _, ok := res.Content["202"]; !ok {
		t.Error("external source missing from merged content")
	}
	if res.Summary == nil || res.Summary.TotalWordCount != 450 {
		t.Errorf("summary = %+v, want total word count 450", res.Summary)
	}
	if res.Summary.ModulesProcessed != 2 {
		t.Errorf("modules processed = %d, want 2", res.Summary.ModulesProcessed)
	}
}

func TestExtract_NoUsableContent(t *testing.T) {
	fetch := func(ctx context.Context, token, courseRef string, moduleIDs []int) (map[string][]domain.Fragment, error) {
		return map[string][]domain.Fragment{"202": {}}, nil
	}

	quiz := &domain.Quiz{
		ID: "quiz-2",
		Sources: map[string]domain.Source{
			"202": {SourceType: domain.SourceTypeExternal},
		},
	}

	o := NewOrchestrator(DefaultConfig(), fetch, nil, nil)
	res, err := o.Extract(context.Background(), quiz, "tok")
	if err != nil {
		t.Fatalf("no content is a normal outcome, got error %v", err)
	}
	if res.Outcome != OutcomeNoContent {
		t.Errorf("outcome = %s, want no_content", res.Outcome)
	}
}

func TestExtract_RetrievalFailureKeepsOriginalSources(t *testing.T) {
	fetch := func(ctx context.Context, token, courseRef string, moduleIDs []int) (map[string][]domain.Fragment, error) {
		return nil, errors.New("canvas unreachable")
	}

	quiz := mixedQuiz()
	o := NewOrchestrator(DefaultConfig(), fetch, nil, nil)
	res, err := o.Extract(context.Background(), quiz, "tok")
	if err == nil {
		t.Fatal("expected retrieval error")
	}
	if res.Outcome != OutcomeFailed {
		t.Errorf("outcome = %s, want failed", res.Outcome)
	}
	// On failure the original mapping comes back unmodified; no partial
	// cleaning may be persisted.
	if res.Cleaned["101"].Content == "" {
		t.Error("failed run must return the original sources, not the cleaned ones")
	}
}

func TestExtract_ManualOnlySkipsRetrieval(t *testing.T) {
	fetch := func(ctx context.Context, token, courseRef string, moduleIDs []int) (map[string][]domain.Fragment, error) {
		t.Fatal("retrieval must not be called without external sources")
		return nil, nil
	}

	quiz := &domain.Quiz{
		ID: "quiz-3",
		Sources: map[string]domain.Source{
			"man": {SourceType: domain.SourceTypeManual, Content: words(20)},
		},
	}

	o := NewOrchestrator(DefaultConfig(), fetch, nil, nil)
	res, err := o.Extract(context.Background(), quiz, "tok")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Errorf("outcome = %s, want completed", res.Outcome)
	}
}

func TestSummarize(t *testing.T) {
	content := map[string][]domain.Fragment{
		"101": {{WordCount: 100}, {WordCount: 50}},
		"202": {{WordCount: 300}},
		"303": {},
	}

	s := Summarize(content)
	if s.ModulesProcessed != 2 {
		t.Errorf("modules = %d, want 2 (empty module excluded)", s.ModulesProcessed)
	}
	if s.TotalPages != 3 {
		t.Errorf("pages = %d, want 3", s.TotalPages)
	}
	if s.TotalWordCount != 450 {
		t.Errorf("words = %d, want 450", s.TotalWordCount)
	}
}
