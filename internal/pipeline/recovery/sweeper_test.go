package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/courseforge/quizgen/internal/core/domain"
)

func failedQuiz(id string, owner *string, reason domain.FailureReason) *domain.Quiz {
	r := reason
	return &domain.Quiz{
		ID:            id,
		OwnerID:       owner,
		Status:        domain.StatusFailed,
		FailureReason: &r,
	}
}

type enqueued struct {
	quizID string
	stage  domain.Stage
}

func TestSweepOnce_ReenqueuesByFailureReason(t *testing.T) {
	owner := "owner-1"
	store := &fakeQuizStore{retryable: []*domain.Quiz{
		failedQuiz("q-extract", &owner, domain.FailureContentExtraction),
		failedQuiz("q-generate", &owner, domain.FailureQuestionGeneration),
		failedQuiz("q-export", &owner, domain.FailureCanvasExport),
	}}

	var got []enqueued
	s := NewSweeper(SweeperConfig{}, store, func(ctx context.Context, quizID, ownerID string, stage domain.Stage) error {
		got = append(got, enqueued{quizID, stage})
		return nil
	}, nil)

	s.sweepOnce(context.Background())

	want := []enqueued{
		{"q-extract", domain.StageExtraction},
		{"q-generate", domain.StageGeneration},
		{"q-export", domain.StageExport},
	}
	if len(got) != len(want) {
		t.Fatalf("enqueued %d jobs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("job %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if len(store.incremented) != 3 {
		t.Errorf("retry counter bumped %d times, want 3", len(store.incremented))
	}
}

func TestSweepOnce_SkipsAnonymizedQuizzes(t *testing.T) {
	store := &fakeQuizStore{retryable: []*domain.Quiz{
		failedQuiz("q-orphan", nil, domain.FailureContentExtraction),
	}}

	called := false
	s := NewSweeper(SweeperConfig{}, store, func(ctx context.Context, quizID, ownerID string, stage domain.Stage) error {
		called = true
		return nil
	}, nil)

	s.sweepOnce(context.Background())
	if called {
		t.Error("anonymized quiz must never be re-enqueued")
	}
	if len(store.incremented) != 0 {
		t.Error("anonymized quiz must not consume retry attempts")
	}
}

func TestSweepOnce_EnqueueFailureDoesNotAbortSweep(t *testing.T) {
	owner := "owner-1"
	store := &fakeQuizStore{retryable: []*domain.Quiz{
		failedQuiz("q-1", &owner, domain.FailureContentExtraction),
		failedQuiz("q-2", &owner, domain.FailureCanvasExport),
	}}

	var got []string
	s := NewSweeper(SweeperConfig{}, store, func(ctx context.Context, quizID, ownerID string, stage domain.Stage) error {
		got = append(got, quizID)
		if quizID == "q-1" {
			return errors.New("queue full")
		}
		return nil
	}, nil)

	s.sweepOnce(context.Background())
	if len(got) != 2 {
		t.Errorf("sweep stopped early: enqueued %v", got)
	}
}

func TestSweepOnce_ListFailureIsLoggedOnly(t *testing.T) {
	store := &fakeQuizStore{retryableErr: errors.New("db down")}
	s := NewSweeper(SweeperConfig{}, store, func(ctx context.Context, quizID, ownerID string, stage domain.Stage) error {
		t.Fatal("nothing should be enqueued when listing fails")
		return nil
	}, nil)

	s.sweepOnce(context.Background())
}

func TestStageForReason(t *testing.T) {
	if got := StageForReason(domain.FailureNoContent); got != "" {
		t.Errorf("no_content maps to %q, want no stage (user action required)", got)
	}
	if got := StageForReason(domain.FailureQuestionGeneration); got != domain.StageGeneration {
		t.Errorf("question_generation_error maps to %q, want generation", got)
	}
}
