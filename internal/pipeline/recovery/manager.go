package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/courseforge/quizgen/internal/core/domain"
	"github.com/courseforge/quizgen/internal/infra/storage"
)

// ReasonError overrides the stage-default failure reason, e.g. an extraction
// run that found no usable content records no_content instead of a generic
// extraction error.
type ReasonError struct {
	Reason domain.FailureReason
	Err    error
}

func (e *ReasonError) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *ReasonError) Unwrap() error { return e.Err }

// Manager records stage failures and performs explicit rollbacks. It writes
// in its own short transaction, independent of whatever transaction the
// failing stage already rolled back.
type Manager struct {
	quizzes storage.QuizStore
	log     *slog.Logger
}

// NewManager creates a failure manager.
func NewManager(quizzes storage.QuizStore, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{quizzes: quizzes, log: log}
}

// HandleFailure sets status=failed with a stage-specific reason, leaving all
// other fields untouched. It never raises: nothing upstream in a background
// context is positioned to catch it, so a failed write is only logged.
func (m *Manager) HandleFailure(ctx context.Context, quizID string, stage domain.Stage, cause error, correlationID string) {
	reason := stage.FailureReason()
	var re *ReasonError
	if errors.As(cause, &re) {
		reason = re.Reason
	}

	// Detach from the (possibly cancelled or timed-out) stage context.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := m.quizzes.MarkFailed(writeCtx, quizID, reason); err != nil {
		m.log.Error("Failed to record quiz failure",
			"quiz", quizID, "stage", stage, "reason", reason,
			"cause", cause, "error", err, "correlation_id", correlationID)
		return
	}

	m.log.Warn("Quiz stage failed",
		"quiz", quizID, "stage", stage, "reason", reason,
		"error", cause, "correlation_id", correlationID)
}

// RollbackTo restores a prior retryable status instead of failed, e.g. when
// handing control back to a manual-retry surface after an auto-triggered
// follow-on stage. The transition is validated against the status table.
func (m *Manager) RollbackTo(ctx context.Context, quizID string, target domain.Status, cause error, reason, correlationID string) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := m.quizzes.CommitStatus(writeCtx, quizID, target, nil); err != nil {
		return fmt.Errorf("rollback of quiz %s to %s failed: %w", quizID, target, err)
	}

	m.log.Info("Quiz rolled back",
		"quiz", quizID, "target", target, "reason", reason,
		"error", cause, "correlation_id", correlationID)
	return nil
}
