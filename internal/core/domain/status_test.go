package domain

import (
	"strings"
	"testing"
)

var allStatuses = []Status{
	StatusCreated,
	StatusExtractingContent,
	StatusGeneratingQuestions,
	StatusReadyForReview,
	StatusReadyForReviewPartial,
	StatusExportingToCanvas,
	StatusPublished,
	StatusFailed,
}

func TestCanTransition_Table(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusCreated, StatusExtractingContent, true},
		{StatusCreated, StatusGeneratingQuestions, false},
		{StatusCreated, StatusPublished, false},
		{StatusExtractingContent, StatusGeneratingQuestions, true},
		{StatusExtractingContent, StatusReadyForReview, false},
		{StatusGeneratingQuestions, StatusReadyForReview, true},
		{StatusGeneratingQuestions, StatusReadyForReviewPartial, true},
		{StatusReadyForReview, StatusExportingToCanvas, true},
		{StatusReadyForReviewPartial, StatusGeneratingQuestions, true},
		{StatusReadyForReviewPartial, StatusExportingToCanvas, true},
		{StatusExportingToCanvas, StatusPublished, true},
		{StatusFailed, StatusCreated, true},
		{StatusFailed, StatusExtractingContent, true},
		{StatusFailed, StatusGeneratingQuestions, true},
		{StatusFailed, StatusExportingToCanvas, true},
		{StatusFailed, StatusReadyForReview, false},
		{StatusFailed, StatusPublished, false},
	}

	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCanTransition_PublishedIsTerminal(t *testing.T) {
	for _, to := range allStatuses {
		if CanTransition(StatusPublished, to) {
			t.Errorf("published must be terminal, but transition to %s is allowed", to)
		}
	}
}

func TestCanTransition_FailedReachableFromEveryNonTerminal(t *testing.T) {
	for _, from := range allStatuses {
		if from == StatusPublished || from == StatusFailed {
			continue
		}
		if !CanTransition(from, StatusFailed) {
			t.Errorf("failed must be reachable from %s", from)
		}
	}
}

func TestValidateTransition_ErrorNamesBothStatuses(t *testing.T) {
	err := ValidateTransition(StatusCreated, StatusPublished)
	if err == nil {
		t.Fatal("expected error for created -> published")
	}
	if !strings.Contains(err.Error(), string(StatusCreated)) || !strings.Contains(err.Error(), string(StatusPublished)) {
		t.Errorf("error should name both statuses, got %q", err)
	}

	if err := ValidateTransition(StatusCreated, StatusExtractingContent); err != nil {
		t.Errorf("expected legal transition, got %v", err)
	}
}

func TestStage_Mappings(t *testing.T) {
	cases := []struct {
		stage    Stage
		inflight Status
		reason   FailureReason
	}{
		{StageExtraction, StatusExtractingContent, FailureContentExtraction},
		{StageGeneration, StatusGeneratingQuestions, FailureQuestionGeneration},
		{StageExport, StatusExportingToCanvas, FailureCanvasExport},
	}
	for _, c := range cases {
		if got := c.stage.InFlightStatus(); got != c.inflight {
			t.Errorf("%s.InFlightStatus() = %s, want %s", c.stage, got, c.inflight)
		}
		if got := c.stage.FailureReason(); got != c.reason {
			t.Errorf("%s.FailureReason() = %s, want %s", c.stage, got, c.reason)
		}
	}
}

func TestFailureReason_RetryTargets(t *testing.T) {
	cases := []struct {
		reason    FailureReason
		target    Status
		retryable bool
	}{
		{FailureContentExtraction, StatusExtractingContent, true},
		{FailureQuestionGeneration, StatusGeneratingQuestions, true},
		{FailureCanvasExport, StatusExportingToCanvas, true},
		{FailureNoContent, StatusCreated, false},
	}
	for _, c := range cases {
		if got := c.reason.RetryTarget(); got != c.target {
			t.Errorf("%s.RetryTarget() = %s, want %s", c.reason, got, c.target)
		}
		if got := c.reason.Retryable(); got != c.retryable {
			t.Errorf("%s.Retryable() = %v, want %v", c.reason, got, c.retryable)
		}
	}
}

func TestQuiz_ReadyForGeneration_RequiresContent(t *testing.T) {
	q := &Quiz{Status: StatusExtractingContent}
	if q.ReadyForGeneration() {
		t.Error("generation must not be ready without extracted content")
	}

	q.ExtractedContent = map[string][]Fragment{
		"101": {{Content: "some text", WordCount: 2}},
	}
	if !q.ReadyForGeneration() {
		t.Error("generation should be ready once content exists")
	}

	q.Status = StatusCreated
	if q.ReadyForGeneration() {
		t.Error("generation must not be ready from created")
	}
}

func TestQuiz_ReadyForExport(t *testing.T) {
	q := &Quiz{Status: StatusReadyForReview}
	if !q.ReadyForExport() {
		t.Error("ready_for_review should be exportable")
	}

	q.Status = StatusReadyForReviewPartial
	if !q.ReadyForExport() {
		t.Error("ready_for_review_partial should be exportable")
	}

	q.Status = StatusFailed
	if q.ReadyForExport() {
		t.Error("failed without reason must not be exportable")
	}

	exportReason := FailureCanvasExport
	q.FailureReason = &exportReason
	if !q.ReadyForExport() {
		t.Error("failed export should be re-exportable")
	}

	genReason := FailureQuestionGeneration
	q.FailureReason = &genReason
	if q.ReadyForExport() {
		t.Error("generation failure must not be exportable")
	}
}

func TestQuiz_Processing(t *testing.T) {
	inflight := map[Status]bool{
		StatusExtractingContent:   true,
		StatusGeneratingQuestions: true,
		StatusExportingToCanvas:   true,
	}
	for _, s := range allStatuses {
		q := &Quiz{Status: s}
		if got := q.Processing(); got != inflight[s] {
			t.Errorf("Processing() for %s = %v, want %v", s, got, inflight[s])
		}
	}
}

func TestQuiz_TargetCount(t *testing.T) {
	q := &Quiz{Sources: map[string]Source{
		"101": {Batches: []QuestionBatch{{Count: 5}, {Count: 3}}},
		"man": {Batches: []QuestionBatch{{Count: 2}}},
	}}
	if got := q.TargetCount(); got != 10 {
		t.Errorf("TargetCount() = %d, want 10", got)
	}
}
