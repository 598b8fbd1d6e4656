package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/courseforge/quizgen/internal/core/domain"
	"github.com/courseforge/quizgen/internal/infra/storage"
	"github.com/courseforge/quizgen/internal/pipeline/recovery"
)

// stubQuizStore serves reservations and records failure writes.
type stubQuizStore struct {
	reserveQuiz *domain.Quiz
	reserveErr  error

	failed []domain.FailureReason
}

func (s *stubQuizStore) ReserveStage(ctx context.Context, quizID, ownerID string, stage domain.Stage) (*domain.Quiz, error) {
	return s.reserveQuiz, s.reserveErr
}

func (s *stubQuizStore) MarkFailed(ctx context.Context, quizID string, reason domain.FailureReason) error {
	s.failed = append(s.failed, reason)
	return nil
}

func (s *stubQuizStore) Create(ctx context.Context, quiz *domain.Quiz) error { panic("unexpected") }
func (s *stubQuizStore) Get(ctx context.Context, quizID string) (*domain.Quiz, error) {
	panic("unexpected")
}
func (s *stubQuizStore) CommitStatus(ctx context.Context, quizID string, status domain.Status, reason *domain.FailureReason) error {
	panic("unexpected")
}
func (s *stubQuizStore) CommitExtractedContent(ctx context.Context, quizID string, content map[string][]domain.Fragment, summary *domain.ContentSummary, cleaned map[string]domain.Source) error {
	panic("unexpected")
}
func (s *stubQuizStore) CommitGenerationResult(ctx context.Context, quizID string, status domain.Status, saved int) error {
	panic("unexpected")
}
func (s *stubQuizStore) CommitExport(ctx context.Context, quizID, exportRef string) error {
	panic("unexpected")
}
func (s *stubQuizStore) ListRetryable(ctx context.Context, maxRetries, limit int) ([]*domain.Quiz, error) {
	panic("unexpected")
}
func (s *stubQuizStore) IncrementRetry(ctx context.Context, quizID string) error {
	panic("unexpected")
}
func (s *stubQuizStore) SoftDelete(ctx context.Context, quizID, ownerID string) error {
	panic("unexpected")
}
func (s *stubQuizStore) AnonymizeOwner(ctx context.Context, ownerID string) (int, error) {
	panic("unexpected")
}

func newTestRunner(store *stubQuizStore, timeout time.Duration) *Runner {
	return NewRunner(store, recovery.NewManager(store, nil), timeout, nil)
}

func TestRun_SkipsDuplicateTrigger(t *testing.T) {
	store := &stubQuizStore{reserveErr: storage.ErrAlreadyInFlight}
	r := newTestRunner(store, time.Minute)

	called := false
	err := r.Run(context.Background(), domain.StageExtraction, "quiz-1", "owner-1",
		func(ctx context.Context, quiz *domain.Quiz, correlationID string) error {
			called = true
			return nil
		})
	if err != nil {
		t.Fatalf("duplicate trigger must be a silent no-op, got %v", err)
	}
	if called {
		t.Error("stage body must not run without a claim")
	}
	if len(store.failed) != 0 {
		t.Error("duplicate trigger must not record a failure")
	}
}

func TestRun_SurfacesReservationErrors(t *testing.T) {
	store := &stubQuizStore{reserveErr: storage.ErrQuizNotFound}
	r := newTestRunner(store, time.Minute)

	err := r.Run(context.Background(), domain.StageExtraction, "quiz-1", "owner-1",
		func(ctx context.Context, quiz *domain.Quiz, correlationID string) error { return nil })
	if !errors.Is(err, storage.ErrQuizNotFound) {
		t.Errorf("got %v, want ErrQuizNotFound surfaced to the caller", err)
	}
}

func TestRun_StageErrorRecordedNotRaised(t *testing.T) {
	store := &stubQuizStore{reserveQuiz: &domain.Quiz{ID: "quiz-1"}}
	r := newTestRunner(store, time.Minute)

	err := r.Run(context.Background(), domain.StageGeneration, "quiz-1", "owner-1",
		func(ctx context.Context, quiz *domain.Quiz, correlationID string) error {
			return errors.New("model exploded")
		})
	if err != nil {
		t.Fatalf("stage errors must not re-raise, got %v", err)
	}
	if len(store.failed) != 1 || store.failed[0] != domain.FailureQuestionGeneration {
		t.Errorf("recorded failures = %v, want [question_generation_error]", store.failed)
	}
}

func TestRun_TimeoutBecomesRecordedFailure(t *testing.T) {
	store := &stubQuizStore{reserveQuiz: &domain.Quiz{ID: "quiz-1"}}
	r := newTestRunner(store, 20*time.Millisecond)

	err := r.Run(context.Background(), domain.StageExtraction, "quiz-1", "owner-1",
		func(ctx context.Context, quiz *domain.Quiz, correlationID string) error {
			<-ctx.Done()
			return ctx.Err()
		})
	if err != nil {
		t.Fatalf("timeout must not re-raise, got %v", err)
	}
	if len(store.failed) != 1 || store.failed[0] != domain.FailureContentExtraction {
		t.Errorf("recorded failures = %v, want [content_extraction_error]", store.failed)
	}
}

func TestRun_PanicBecomesRecordedFailure(t *testing.T) {
	store := &stubQuizStore{reserveQuiz: &domain.Quiz{ID: "quiz-1"}}
	r := newTestRunner(store, time.Minute)

	err := r.Run(context.Background(), domain.StageExport, "quiz-1", "owner-1",
		func(ctx context.Context, quiz *domain.Quiz, correlationID string) error {
			panic("nil map write")
		})
	if err != nil {
		t.Fatalf("panic must not escape the runner, got %v", err)
	}
	if len(store.failed) != 1 || store.failed[0] != domain.FailureCanvasExport {
		t.Errorf("recorded failures = %v, want [canvas_export_error]", store.failed)
	}
}

func TestRun_SuccessLeavesNoFailure(t *testing.T) {
	store := &stubQuizStore{reserveQuiz: &domain.Quiz{ID: "quiz-1"}}
	r := newTestRunner(store, time.Minute)

	var gotQuiz *domain.Quiz
	var gotCorr string
	err := r.Run(context.Background(), domain.StageExtraction, "quiz-1", "owner-1",
		func(ctx context.Context, quiz *domain.Quiz, correlationID string) error {
			gotQuiz = quiz
			gotCorr = correlationID
			return nil
		})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if gotQuiz == nil || gotQuiz.ID != "quiz-1" {
		t.Error("stage body should receive the claimed quiz snapshot")
	}
	if gotCorr == "" {
		t.Error("stage body should receive a correlation id")
	}
	if len(store.failed) != 0 {
		t.Errorf("no failure expected, got %v", store.failed)
	}
}

func TestTimeoutError_Message(t *testing.T) {
	err := &TimeoutError{Op: "extraction", Timeout: 10 * time.Minute, QuizID: "quiz-1"}
	want := "extraction timed out after 10m0s (quiz quiz-1)"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}
