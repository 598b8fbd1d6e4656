package domain

import "fmt"

// Status is the lifecycle state of a quiz.
type Status string

const (
	StatusCreated               Status = "created"
	StatusExtractingContent     Status = "extracting_content"
	StatusGeneratingQuestions   Status = "generating_questions"
	StatusReadyForReview        Status = "ready_for_review"
	StatusReadyForReviewPartial Status = "ready_for_review_partial"
	StatusExportingToCanvas     Status = "exporting_to_canvas"
	StatusPublished             Status = "published"
	StatusFailed                Status = "failed"
)

// Stage is a unit of pipeline work with its own in-flight status.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageGeneration Stage = "generation"
	StageExport     Stage = "export"
)

// FailureReason identifies which stage failed when status is failed.
type FailureReason string

const (
	FailureContentExtraction  FailureReason = "content_extraction_error"
	FailureNoContent          FailureReason = "no_content"
	FailureQuestionGeneration FailureReason = "question_generation_error"
	FailureCanvasExport       FailureReason = "canvas_export_error"
)

// transitions is the legal status transition table. Any pair absent from it
// is rejected outright, never coerced.
var transitions = map[Status][]Status{
	StatusCreated:               {StatusExtractingContent, StatusFailed},
	StatusExtractingContent:     {StatusGeneratingQuestions, StatusFailed},
	StatusGeneratingQuestions:   {StatusReadyForReview, StatusReadyForReviewPartial, StatusFailed},
	StatusReadyForReview:        {StatusExportingToCanvas, StatusFailed},
	StatusReadyForReviewPartial: {StatusGeneratingQuestions, StatusExportingToCanvas, StatusFailed},
	StatusExportingToCanvas:     {StatusPublished, StatusFailed},
	StatusFailed:                {StatusCreated, StatusExtractingContent, StatusGeneratingQuestions, StatusExportingToCanvas},
	StatusPublished:             {}, // terminal
}

// CanTransition reports whether from -> to appears in the transition table.
func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a descriptive error for an illegal transition.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	return nil
}

// InFlightStatus returns the status a quiz holds while the stage is running.
func (s Stage) InFlightStatus() Status {
	switch s {
	case StageExtraction:
		return StatusExtractingContent
	case StageGeneration:
		return StatusGeneratingQuestions
	case StageExport:
		return StatusExportingToCanvas
	}
	return ""
}

// FailureReasonFor maps a stage to the failure_reason recorded when it fails.
func (s Stage) FailureReason() FailureReason {
	switch s {
	case StageExtraction:
		return FailureContentExtraction
	case StageGeneration:
		return FailureQuestionGeneration
	case StageExport:
		return FailureCanvasExport
	}
	return ""
}

// RetryTarget returns the status a failed quiz should re-enter for a retry.
func (r FailureReason) RetryTarget() Status {
	switch r {
	case FailureContentExtraction:
		return StatusExtractingContent
	case FailureQuestionGeneration:
		return StatusGeneratingQuestions
	case FailureCanvasExport:
		return StatusExportingToCanvas
	case FailureNoContent:
		return StatusCreated
	}
	return StatusCreated
}

// Retryable reports whether the failure can be retried automatically.
// no_content needs the user to reconfigure sources first.
func (r FailureReason) Retryable() bool {
	return r == FailureContentExtraction || r == FailureQuestionGeneration || r == FailureCanvasExport
}

// ReadyForExtraction gates extraction claims.
func (q *Quiz) ReadyForExtraction() bool {
	return q.Status == StatusCreated || q.Status == StatusFailed
}

// ReadyForGeneration gates generation claims. Extraction must have produced
// content before generation can start.
func (q *Quiz) ReadyForGeneration() bool {
	switch q.Status {
	case StatusExtractingContent, StatusFailed, StatusReadyForReviewPartial:
		return len(q.ExtractedContent) > 0
	}
	return false
}

// ReadyForExport gates export claims. A failed quiz is exportable only when
// the failure happened in the export stage itself.
func (q *Quiz) ReadyForExport() bool {
	switch q.Status {
	case StatusReadyForReview, StatusReadyForReviewPartial:
		return true
	case StatusFailed:
		return q.FailureReason != nil && *q.FailureReason == FailureCanvasExport
	}
	return false
}

// ReadyFor dispatches to the stage's readiness predicate.
func (q *Quiz) ReadyFor(stage Stage) bool {
	switch stage {
	case StageExtraction:
		return q.ReadyForExtraction()
	case StageGeneration:
		return q.ReadyForGeneration()
	case StageExport:
		return q.ReadyForExport()
	}
	return false
}

// Processing reports whether a stage is currently in flight.
func (q *Quiz) Processing() bool {
	switch q.Status {
	case StatusExtractingContent, StatusGeneratingQuestions, StatusExportingToCanvas:
		return true
	}
	return false
}

// Complete reports whether the quiz reached a reviewed or published state.
func (q *Quiz) Complete() bool {
	return q.Status == StatusReadyForReview || q.Status == StatusPublished
}
