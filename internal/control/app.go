package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/courseforge/quizgen/internal/core/config"
	"github.com/courseforge/quizgen/internal/core/domain"
	"github.com/courseforge/quizgen/internal/infra/canvas"
	"github.com/courseforge/quizgen/internal/infra/llm"
	redisclient "github.com/courseforge/quizgen/internal/infra/redis"
	"github.com/courseforge/quizgen/internal/infra/storage"
	"github.com/courseforge/quizgen/internal/infra/storage/memory"
	"github.com/courseforge/quizgen/internal/infra/storage/postgres"
	"github.com/courseforge/quizgen/internal/pipeline/extraction"
	"github.com/courseforge/quizgen/internal/pipeline/generation"
	"github.com/courseforge/quizgen/internal/pipeline/health"
	"github.com/courseforge/quizgen/internal/pipeline/recovery"
	"github.com/courseforge/quizgen/internal/pipeline/runner"
)

// App is the main application struct that manages the pipeline lifecycle.
type App struct {
	cfg          *config.AppConfig
	svc          *Service
	workers      []*StageWorker
	sweeper      *recovery.Sweeper
	healthServer *health.Server
	healthMon    *health.Monitor
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// NewApp creates a new App instance with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	log := slog.Default()

	// 1. Storage
	var quizzes storage.QuizStore
	var questions storage.QuestionStore
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		quizzes = postgres.NewQuizRepo(db)
		questions = postgres.NewQuestionRepo(db)
		log.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		quizzes = memory.NewQuizRepo(store)
		questions = memory.NewQuestionRepo(store)
		log.Info("Using memory storage")
	}

	// 2. Redis stage queue (optional; dev mode dispatches inline)
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		log.Info("Stage trigger queue enabled")
	}

	// 3. External collaborators
	canvasClient := canvas.NewClient(cfg.Canvas)
	generator, err := llm.NewOpenAIGenerator(cfg.OpenAI)
	if err != nil {
		return nil, fmt.Errorf("failed to init generator: %w", err)
	}

	// 4. Pipeline components
	failures := recovery.NewManager(quizzes, log)
	run := runner.NewRunner(quizzes, failures, cfg.Pipeline.StageTimeout, log)
	extractor := extraction.NewOrchestrator(cfg.Extraction, canvasClient.FetchModuleContent, extraction.Summarize, log)
	workflow := generation.NewWorkflow(cfg.Generation, generator, questions, log)

	var queue Queue
	if redisClient != nil {
		queue = redisClient
	}
	tokens := &StaticTokenProvider{Token: cfg.Canvas.Token}

	svc := NewService(quizzes, questions, extractor, workflow, canvasClient, run, failures, queue, tokens, log)

	// 5. Workers and sweeper
	var workers []*StageWorker
	if redisClient != nil {
		for _, stage := range []domain.Stage{domain.StageExtraction, domain.StageGeneration, domain.StageExport} {
			for i := 0; i < cfg.Pipeline.WorkersPerStage; i++ {
				workers = append(workers, NewStageWorker(stage, redisClient, svc, log))
			}
		}
	}

	sweeper := recovery.NewSweeper(cfg.Sweeper, quizzes,
		func(ctx context.Context, quizID, ownerID string, stage domain.Stage) error {
			return svc.Trigger(ctx, quizID, ownerID, stage)
		}, log)

	// 6. Health
	var dbPinger, queuePinger health.Pinger
	var depth health.DepthReader
	if db != nil {
		dbPinger = db
	}
	if redisClient != nil {
		queuePinger = redisClient
		depth = redisClient
	}
	healthMon := health.NewMonitor(dbPinger, queuePinger, depth)
	healthServer := health.NewServer(healthMon, cfg.Server.Port)

	return &App{
		cfg:          cfg,
		svc:          svc,
		workers:      workers,
		sweeper:      sweeper,
		healthServer: healthServer,
		healthMon:    healthMon,
		db:           db,
		redisClient:  redisClient,
		log:          log,
	}, nil
}

// Service exposes the pipeline service, e.g. for the HTTP surface living
// outside this core.
func (a *App) Service() *Service {
	return a.svc
}

// Start starts the app and all its components.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.healthServer.Start(); err != nil {
			a.log.Error("Health server failed", "error", err)
		}
	}()
	go a.healthMon.Start(ctx)

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	for i, w := range a.workers {
		a.log.Info("Starting stage worker", "stage", w.stage, "n", i)
		go func(w *StageWorker) {
			if err := w.Run(ctx); err != nil {
				a.log.Error("Stage worker failed", "stage", w.stage, "error", err)
			}
		}(w)
	}

	go func() {
		if err := a.sweeper.Run(ctx); err != nil {
			a.log.Error("Retry sweeper failed", "error", err)
		}
	}()

	return nil
}

// Stop stops the app.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping quizgen...")

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}

	return a.healthServer.Stop(ctx)
}
