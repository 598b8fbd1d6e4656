package recovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/courseforge/quizgen/internal/core/domain"
	"github.com/courseforge/quizgen/internal/infra/storage"
)

// EnqueueFunc re-triggers a stage for a quiz.
type EnqueueFunc func(ctx context.Context, quizID, ownerID string, stage domain.Stage) error

// SweeperConfig holds retry sweeper settings.
type SweeperConfig struct {
	Interval   time.Duration `yaml:"interval"`
	MaxRetries int           `yaml:"max_retries"`
	BatchSize  int           `yaml:"batch_size"`
}

// DefaultSweeperConfig provides sensible sweep defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:   5 * time.Minute,
		MaxRetries: 3,
		BatchSize:  20,
	}
}

// Sweeper periodically re-enqueues failed quizzes whose failure_reason allows
// an automatic retry. Reasons needing user action (no_content) are left for
// the manual-retry surface.
type Sweeper struct {
	cfg     SweeperConfig
	quizzes storage.QuizStore
	enqueue EnqueueFunc
	log     *slog.Logger
}

// NewSweeper creates a retry sweeper.
func NewSweeper(cfg SweeperConfig, quizzes storage.QuizStore, enqueue EnqueueFunc, log *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweeperConfig().Interval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultSweeperConfig().MaxRetries
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSweeperConfig().BatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{cfg: cfg, quizzes: quizzes, enqueue: enqueue, log: log}
}

// Run loops until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	quizzes, err := s.quizzes.ListRetryable(ctx, s.cfg.MaxRetries, s.cfg.BatchSize)
	if err != nil {
		s.log.Error("Retry sweep failed to list quizzes", "error", err)
		return
	}

	for _, quiz := range quizzes {
		if quiz.OwnerID == nil || quiz.FailureReason == nil {
			continue // anonymized quizzes are never retried
		}
		stage := StageForReason(*quiz.FailureReason)
		if stage == "" {
			continue
		}

		if err := s.quizzes.IncrementRetry(ctx, quiz.ID); err != nil {
			s.log.Error("Failed to increment retry count", "quiz", quiz.ID, "error", err)
			continue
		}
		if err := s.enqueue(ctx, quiz.ID, *quiz.OwnerID, stage); err != nil {
			s.log.Error("Failed to re-enqueue quiz", "quiz", quiz.ID, "stage", stage, "error", err)
			continue
		}
		s.log.Info("Re-enqueued failed quiz for retry",
			"quiz", quiz.ID, "stage", stage, "attempt", quiz.RetryCount+1)
	}
}

// StageForReason maps a failure reason to the stage that should be retried.
func StageForReason(reason domain.FailureReason) domain.Stage {
	switch reason {
	case domain.FailureContentExtraction:
		return domain.StageExtraction
	case domain.FailureQuestionGeneration:
		return domain.StageGeneration
	case domain.FailureCanvasExport:
		return domain.StageExport
	}
	return ""
}
