package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/courseforge/quizgen/internal/core/domain"
	redisclient "github.com/courseforge/quizgen/internal/infra/redis"
	"github.com/courseforge/quizgen/internal/infra/storage"
	"github.com/courseforge/quizgen/internal/pipeline/extraction"
	"github.com/courseforge/quizgen/internal/pipeline/generation"
	"github.com/courseforge/quizgen/internal/pipeline/recovery"
	"github.com/courseforge/quizgen/internal/pipeline/runner"
)

// triggerLockTTL dedupes rapid duplicate triggers ahead of the DB claim.
const triggerLockTTL = 30 * time.Second

// TokenProvider supplies a Canvas API token for a quiz owner. OAuth and
// token refresh live outside this core.
type TokenProvider interface {
	TokenFor(ctx context.Context, ownerID string) (string, error)
}

// StaticTokenProvider returns one configured service token for every owner.
type StaticTokenProvider struct {
	Token string
}

func (p *StaticTokenProvider) TokenFor(ctx context.Context, ownerID string) (string, error) {
	if p.Token == "" {
		return "", fmt.Errorf("no canvas token configured")
	}
	return p.Token, nil
}

// Exporter pushes a reviewed quiz to the external system.
type Exporter interface {
	ExportQuiz(ctx context.Context, token string, quiz *domain.Quiz, questions []*domain.Question) (string, error)
}

// Queue is the stage trigger transport.
type Queue interface {
	Enqueue(ctx context.Context, job redisclient.Job) error
	AcquireTriggerLock(ctx context.Context, quizID string, stage domain.Stage, ttl time.Duration) (bool, error)
}

// Service glues the pipeline stages together: it turns triggers into queued
// jobs and queued jobs into reserved, wrapped stage runs.
type Service struct {
	quizzes   storage.QuizStore
	questions storage.QuestionStore
	extractor *extraction.Orchestrator
	workflow  *generation.Workflow
	exporter  Exporter
	runner    *runner.Runner
	failures  *recovery.Manager
	queue     Queue
	tokens    TokenProvider
	log       *slog.Logger
}

// NewService creates the pipeline service.
func NewService(
	quizzes storage.QuizStore,
	questions storage.QuestionStore,
	extractor *extraction.Orchestrator,
	workflow *generation.Workflow,
	exporter Exporter,
	run *runner.Runner,
	failures *recovery.Manager,
	queue Queue,
	tokens TokenProvider,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		quizzes:   quizzes,
		questions: questions,
		extractor: extractor,
		workflow:  workflow,
		exporter:  exporter,
		runner:    run,
		failures:  failures,
		queue:     queue,
		tokens:    tokens,
		log:       log,
	}
}

// Trigger enqueues a stage run for a quiz. Without a queue (database-less dev
// mode) the stage is dispatched inline on a fresh goroutine.
func (s *Service) Trigger(ctx context.Context, quizID, ownerID string, stage domain.Stage) error {
	job := redisclient.Job{
		QuizID:        quizID,
		OwnerID:       ownerID,
		Stage:         stage,
		CorrelationID: uuid.New().String(),
	}

	if s.queue == nil {
		go func() {
			if err := s.Dispatch(context.WithoutCancel(ctx), job); err != nil {
				s.log.Info("Inline stage dispatch rejected", "quiz", quizID, "stage", stage, "error", err)
			}
		}()
		return nil
	}

	ok, err := s.queue.AcquireTriggerLock(ctx, quizID, stage, triggerLockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire trigger lock: %w", err)
	}
	if !ok {
		s.log.Debug("Duplicate trigger suppressed", "quiz", quizID, "stage", stage)
		return nil
	}
	return s.queue.Enqueue(ctx, job)
}

// Dispatch executes one queued stage job through the background wrapper.
// Only reservation and not-found errors come back; stage failures are
// recorded on the quiz row by the wrapper.
func (s *Service) Dispatch(ctx context.Context, job redisclient.Job) error {
	switch job.Stage {
	case domain.StageExtraction:
		return s.runner.Run(ctx, job.Stage, job.QuizID, job.OwnerID, s.runExtraction)
	case domain.StageGeneration:
		return s.runner.Run(ctx, job.Stage, job.QuizID, job.OwnerID, s.runGeneration)
	case domain.StageExport:
		return s.runner.Run(ctx, job.Stage, job.QuizID, job.OwnerID, s.runExport)
	default:
		return fmt.Errorf("unknown stage %q", job.Stage)
	}
}

func (s *Service) runExtraction(ctx context.Context, quiz *domain.Quiz, correlationID string) error {
	token, err := s.tokens.TokenFor(ctx, *quiz.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to obtain canvas token: %w", err)
	}

	result, err := s.extractor.Extract(ctx, quiz, token)
	if err != nil {
		return err
	}

	switch result.Outcome {
	case extraction.OutcomeNoContent:
		return &recovery.ReasonError{
			Reason: domain.FailureNoContent,
			Err:    fmt.Errorf("no usable content in configured sources"),
		}
	case extraction.OutcomeCompleted:
		if err := s.quizzes.CommitExtractedContent(ctx, quiz.ID, result.Content, result.Summary, result.Cleaned); err != nil {
			return err
		}
		// Follow on with generation. The quiz stays in extracting_content
		// until the generation claim advances it; a lost trigger is
		// recoverable from the manual-retry surface.
		if err := s.Trigger(ctx, quiz.ID, *quiz.OwnerID, domain.StageGeneration); err != nil {
			s.log.Error("Failed to auto-trigger generation",
				"quiz", quiz.ID, "correlation_id", correlationID, "error", err)
		}
		return nil
	default:
		return fmt.Errorf("extraction did not complete")
	}
}

func (s *Service) runGeneration(ctx context.Context, quiz *domain.Quiz, correlationID string) error {
	outcome, err := s.workflow.Run(ctx, quiz)
	if err != nil {
		return err
	}
	if outcome.Status == domain.StatusFailed {
		if outcome.Fatal != nil {
			return fmt.Errorf("generation produced no questions: %w", outcome.Fatal)
		}
		return fmt.Errorf("generation produced no questions over %d invalid results", outcome.Invalid)
	}
	return s.quizzes.CommitGenerationResult(ctx, quiz.ID, outcome.Status, outcome.Saved)
}

func (s *Service) runExport(ctx context.Context, quiz *domain.Quiz, correlationID string) error {
	token, err := s.tokens.TokenFor(ctx, *quiz.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to obtain canvas token: %w", err)
	}

	questions, err := s.questions.GetByQuiz(ctx, quiz.ID)
	if err != nil {
		return err
	}

	ref, err := s.exporter.ExportQuiz(ctx, token, quiz, questions)
	if err != nil {
		return err
	}
	return s.quizzes.CommitExport(ctx, quiz.ID, ref)
}

// Rollback restores a quiz to a prior retryable status, validated against
// the transition table. Exposed for the manual-retry surface and admin use.
func (s *Service) Rollback(ctx context.Context, quizID string, target domain.Status, reason string) error {
	return s.failures.RollbackTo(ctx, quizID, target, nil, reason, uuid.New().String())
}
