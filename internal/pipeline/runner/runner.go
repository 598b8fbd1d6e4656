package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/courseforge/quizgen/internal/core/domain"
	"github.com/courseforge/quizgen/internal/infra/storage"
	"github.com/courseforge/quizgen/internal/pipeline/metrics"
	"github.com/courseforge/quizgen/internal/pipeline/recovery"
)

// TimeoutError is the typed timeout raised when a stage exceeds its budget.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	QuizID  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s (quiz %s)", e.Op, e.Timeout, e.QuizID)
}

// StageFunc is the body of one stage run, invoked with the claimed quiz
// snapshot and a correlation id for log threading.
type StageFunc func(ctx context.Context, quiz *domain.Quiz, correlationID string) error

// Runner uniformly applies reservation, timeout, correlation-id tagging and
// failure routing around each stage invocation.
type Runner struct {
	quizzes      storage.QuizStore
	failures     *recovery.Manager
	stageTimeout time.Duration
	log          *slog.Logger
}

// NewRunner creates a background stage runner.
func NewRunner(quizzes storage.QuizStore, failures *recovery.Manager, stageTimeout time.Duration, log *slog.Logger) *Runner {
	if stageTimeout <= 0 {
		stageTimeout = 10 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{quizzes: quizzes, failures: failures, stageTimeout: stageTimeout, log: log}
}

// Run reserves the stage and executes fn under a timeout. Duplicate triggers
// observe the in-flight status and exit with no side effects. Only
// reservation and not-found errors surface to the caller; everything inside
// the stage becomes a status write plus a correlated log entry; the wrapper
// never re-raises past itself.
func (r *Runner) Run(ctx context.Context, stage domain.Stage, quizID, ownerID string, fn StageFunc) error {
	correlationID := uuid.New().String()
	log := r.log.With("quiz", quizID, "stage", stage, "correlation_id", correlationID)

	quiz, err := r.quizzes.ReserveStage(ctx, quizID, ownerID, stage)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyInFlight) {
			metrics.StageSkips.WithLabelValues(string(stage)).Inc()
			log.Debug("Stage already in flight, skipping duplicate trigger")
			return nil
		}
		// Not found / not ready: user-actionable, surfaced synchronously.
		return err
	}

	log.Info("Stage claimed")
	start := time.Now()

	stageCtx, cancel := context.WithTimeout(ctx, r.stageTimeout)
	defer cancel()

	err = r.runStage(stageCtx, quiz, correlationID, fn)
	if errors.Is(err, context.DeadlineExceeded) && stageCtx.Err() == context.DeadlineExceeded {
		err = &TimeoutError{Op: string(stage), Timeout: r.stageTimeout, QuizID: quizID}
	}

	duration := time.Since(start)
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(duration.Seconds())

	if err != nil {
		metrics.StageRuns.WithLabelValues(string(stage), "failed").Inc()
		r.failures.HandleFailure(ctx, quizID, stage, err, correlationID)
		return nil
	}

	metrics.StageRuns.WithLabelValues(string(stage), "completed").Inc()
	log.Info("Stage completed", "duration", duration)
	return nil
}

// runStage isolates the stage body so a panic inside a background task turns
// into a recorded failure instead of taking the worker down.
func (r *Runner) runStage(ctx context.Context, quiz *domain.Quiz, correlationID string, fn StageFunc) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("stage panicked: %v", rec)
		}
	}()
	return fn(ctx, quiz, correlationID)
}
