package control

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/courseforge/quizgen/internal/core/domain"
	redisclient "github.com/courseforge/quizgen/internal/infra/redis"
	"github.com/courseforge/quizgen/internal/infra/storage"
)

// StageWorker consumes one stage's trigger queue and dispatches jobs through
// the service. Several workers may share a stage; the DB reservation keeps
// duplicate claims harmless.
type StageWorker struct {
	stage domain.Stage
	queue *redisclient.Client
	svc   *Service
	log   *slog.Logger
}

// NewStageWorker creates a worker for one stage queue.
func NewStageWorker(stage domain.Stage, queue *redisclient.Client, svc *Service, log *slog.Logger) *StageWorker {
	if log == nil {
		log = slog.Default()
	}
	return &StageWorker{stage: stage, queue: queue, svc: svc, log: log}
}

// Run loops until the context is cancelled.
func (w *StageWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		job, found, err := w.queue.Dequeue(ctx, w.stage, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Error("Failed to dequeue stage job", "stage", w.stage, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if !found {
			continue
		}

		if err := w.svc.Dispatch(ctx, job); err != nil {
			// Reservation-class rejections are expected under races and
			// stale retriggers; they carry no side effects.
			var notReady *storage.NotReadyError
			switch {
			case errors.As(err, &notReady):
				w.log.Info("Stage job not ready", "stage", w.stage, "quiz", job.QuizID, "error", err)
			case errors.Is(err, storage.ErrQuizNotFound):
				w.log.Info("Stage job for unknown quiz", "stage", w.stage, "quiz", job.QuizID)
			default:
				w.log.Error("Stage job dispatch failed", "stage", w.stage, "quiz", job.QuizID, "error", err)
			}
		}
	}
}
