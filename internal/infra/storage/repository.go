package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/courseforge/quizgen/internal/core/domain"
)

var (
	// ErrQuizNotFound is returned when a quiz doesn't exist or the caller
	// doesn't own it. The two cases are deliberately indistinguishable so
	// non-owners can't probe for existence.
	ErrQuizNotFound = errors.New("quiz not found")

	// ErrAlreadyInFlight signals that the requested stage is already being
	// processed for this quiz. Not an error condition for callers: the
	// duplicate trigger simply exits with no side effects.
	ErrAlreadyInFlight = errors.New("stage already in flight")
)

// NotReadyError is returned when a quiz fails a stage's readiness predicate
// for any reason other than the same stage being in flight.
type NotReadyError struct {
	QuizID string
	Stage  domain.Stage
	Status domain.Status
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("quiz %s not ready for %s stage (status %s)", e.QuizID, e.Stage, e.Status)
}

// QuizStore handles quiz persistence, including the stage reservation that
// makes duplicate concurrent triggers idempotent.
type QuizStore interface {
	// Create inserts a new quiz in created status.
	Create(ctx context.Context, quiz *domain.Quiz) error

	// Get retrieves a quiz by id without an ownership check.
	Get(ctx context.Context, quizID string) (*domain.Quiz, error)

	// ReserveStage atomically checks ownership and the stage's readiness
	// predicate, advances status to the stage's in-flight value, clears
	// failure_reason and returns a snapshot of the locked row. Returns
	// ErrAlreadyInFlight when the same stage is running, ErrQuizNotFound on
	// missing quiz or ownership mismatch, and *NotReadyError otherwise.
	ReserveStage(ctx context.Context, quizID, ownerID string, stage domain.Stage) (*domain.Quiz, error)

	// CommitStatus advances status (validated against the transition table)
	// and sets or clears failure_reason.
	CommitStatus(ctx context.Context, quizID string, status domain.Status, reason *domain.FailureReason) error

	// MarkFailed sets status=failed with a stage-specific reason in a short
	// independent transaction, leaving all other fields untouched.
	MarkFailed(ctx context.Context, quizID string, reason domain.FailureReason) error

	// CommitExtractedContent persists the merged content map, its summary and
	// the cleaned source list in one transaction.
	CommitExtractedContent(ctx context.Context, quizID string, content map[string][]domain.Fragment, summary *domain.ContentSummary, cleaned map[string]domain.Source) error

	// CommitGenerationResult records final status and progress counters after
	// a generation run.
	CommitGenerationResult(ctx context.Context, quizID string, status domain.Status, saved int) error

	// CommitExport records the external quiz reference and publishes.
	CommitExport(ctx context.Context, quizID, exportRef string) error

	// ListRetryable returns failed quizzes whose failure_reason allows an
	// automatic retry and whose retry count is below max.
	ListRetryable(ctx context.Context, maxRetries, limit int) ([]*domain.Quiz, error)

	// IncrementRetry bumps a quiz's retry counter.
	IncrementRetry(ctx context.Context, quizID string) error

	// SoftDelete flags a quiz deleted for its owner. Content is retained.
	SoftDelete(ctx context.Context, quizID, ownerID string) error

	// AnonymizeOwner clears the owner reference on all quizzes of a deleted
	// user, returning the number of rows touched. Nothing else is changed.
	AnonymizeOwner(ctx context.Context, ownerID string) (int, error)
}

// QuestionStore handles generated question persistence.
type QuestionStore interface {
	// SaveBatch persists accepted questions in one transaction. Questions
	// failing model validation are skipped and counted, not fatal. Returns
	// the number actually saved.
	SaveBatch(ctx context.Context, questions []*domain.Question) (int, error)

	// GetByQuiz returns all questions for a quiz in creation order.
	GetByQuiz(ctx context.Context, quizID string) ([]*domain.Question, error)
}
