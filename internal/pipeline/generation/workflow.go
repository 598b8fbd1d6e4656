package generation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/courseforge/quizgen/internal/core/domain"
	"github.com/courseforge/quizgen/internal/infra/storage"
	"github.com/courseforge/quizgen/internal/pipeline/metrics"
)

// Generator is the external generation capability. It returns raw text that
// the workflow parses and validates; it may fail with the typed provider
// errors in errors.go.
type Generator interface {
	Generate(ctx context.Context, chunk Chunk, questionType, difficulty string, count int) (string, error)
}

// Config holds question generation settings.
type Config struct {
	// MaxChunkChars bounds the content passed to one generation call.
	MaxChunkChars int `yaml:"max_chunk_chars"`
	// QuestionsPerCall caps how many questions one call may request.
	QuestionsPerCall int `yaml:"questions_per_call"`
}

// DefaultConfig provides sensible generation defaults.
func DefaultConfig() Config {
	return Config{MaxChunkChars: 4000, QuestionsPerCall: 5}
}

// Outcome is the result of one generation run.
type Outcome struct {
	Status  domain.Status
	Saved   int
	Invalid int
	Fatal   error
}

// Workflow runs the generation state loop: prepare -> (decide -> generate)* ->
// save. The cursor over chunks only moves forward, so the loop terminates
// within chunk-count+1 decide checks per batch even if every call fails.
type Workflow struct {
	cfg       Config
	generator Generator
	questions storage.QuestionStore
	log       *slog.Logger
}

// NewWorkflow creates a question generation workflow.
func NewWorkflow(cfg Config, generator Generator, questions storage.QuestionStore, log *slog.Logger) *Workflow {
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = DefaultConfig().MaxChunkChars
	}
	if cfg.QuestionsPerCall <= 0 {
		cfg.QuestionsPerCall = DefaultConfig().QuestionsPerCall
	}
	if log == nil {
		log = slog.Default()
	}
	return &Workflow{cfg: cfg, generator: generator, questions: questions, log: log}
}

// Run executes one generation run over the quiz's extracted content and
// persists accepted questions in a single batch.
func (w *Workflow) Run(ctx context.Context, quiz *domain.Quiz) (Outcome, error) {
	if len(quiz.ExtractedContent) == 0 {
		return Outcome{Status: domain.StatusFailed}, fmt.Errorf("quiz %s has no extracted content", quiz.ID)
	}

	// Prepare: chunk each source's fragments; deterministic source order.
	sourceIDs := make([]string, 0, len(quiz.Sources))
	for id := range quiz.Sources {
		sourceIDs = append(sourceIDs, id)
	}
	sort.Strings(sourceIDs)

	var (
		accepted []*domain.Question
		invalid  int
		fatal    error
		allMet   = true
	)

	for _, sourceID := range sourceIDs {
		src := quiz.Sources[sourceID]
		if len(src.Batches) == 0 {
			continue
		}
		chunks := BuildChunks(sourceID, quiz.ExtractedContent[sourceID], w.cfg.MaxChunkChars)

		for _, batch := range src.Batches {
			if fatal != nil {
				allMet = false
				break
			}
			got, met, batchFatal, batchInvalid := w.runBatch(ctx, quiz, sourceID, batch, chunks)
			accepted = append(accepted, got...)
			invalid += batchInvalid
			if batchFatal != nil {
				fatal = batchFatal
			}
			if !met {
				allMet = false
			}
		}
	}

	// Save: one batch transaction; per-question validation failures are
	// counted by the store, never abort the batch.
	saved, err := w.questions.SaveBatch(ctx, accepted)
	if err != nil {
		return Outcome{Status: domain.StatusFailed, Invalid: invalid, Fatal: fatal},
			fmt.Errorf("failed to save generated questions: %w", err)
	}

	status := domain.StatusFailed
	switch {
	case saved > 0 && allMet && saved == len(accepted):
		status = domain.StatusReadyForReview
	case saved > 0:
		status = domain.StatusReadyForReviewPartial
	}

	w.log.Info("Generation run finished",
		"quiz", quiz.ID,
		"saved", saved,
		"invalid_results", invalid,
		"status", status)

	return Outcome{Status: status, Saved: saved, Invalid: invalid, Fatal: fatal}, nil
}

// runBatch loops decide -> generate for one requested batch. Every generate
// advances the cursor, including structurally invalid results; the same chunk
// is never retried verbatim.
func (w *Workflow) runBatch(ctx context.Context, quiz *domain.Quiz, sourceID string, batch domain.QuestionBatch, chunks []Chunk) (accepted []*domain.Question, met bool, fatal error, invalid int) {
	cursor := 0

	for {
		// Decide: stop and hand over to save when a fatal error was
		// recorded, the target is reached, or the chunks are exhausted.
		if fatal != nil || len(accepted) >= batch.Count || cursor >= len(chunks) {
			return accepted, len(accepted) >= batch.Count, fatal, invalid
		}

		chunk := chunks[cursor]
		need := batch.Count - len(accepted)
		if need > w.cfg.QuestionsPerCall {
			need = w.cfg.QuestionsPerCall
		}

		start := time.Now()
		raw, err := w.generator.Generate(ctx, chunk, batch.QuestionType, batch.Difficulty, need)
		metrics.GeneratorLatency.Observe(time.Since(start).Seconds())

		if err != nil {
			if IsFatal(err) {
				metrics.GeneratorCalls.WithLabelValues("fatal").Inc()
				w.log.Error("Fatal generator error, stopping run",
					"quiz", quiz.ID, "source", sourceID, "chunk", chunk.Index, "error", err)
				fatal = err
				continue
			}
			metrics.GeneratorCalls.WithLabelValues("error").Inc()
			w.log.Warn("Generator call failed, advancing to next chunk",
				"quiz", quiz.ID, "source", sourceID, "chunk", chunk.Index, "error", err)
			invalid++
			cursor++
			continue
		}

		candidates, perr := ParseCandidates(raw)
		if perr != nil {
			metrics.GeneratorCalls.WithLabelValues("invalid").Inc()
			metrics.QuestionsRejected.WithLabelValues("structural_validation").Inc()
			w.log.Warn("Structurally invalid generator result, advancing to next chunk",
				"quiz", quiz.ID, "source", sourceID, "chunk", chunk.Index, "error", perr)
			invalid++
			cursor++
			continue
		}

		metrics.GeneratorCalls.WithLabelValues("ok").Inc()
		for _, c := range candidates {
			if len(accepted) >= batch.Count {
				break
			}
			accepted = append(accepted, &domain.Question{
				ID:            uuid.New().String(),
				QuizID:        quiz.ID,
				SourceID:      sourceID,
				Text:          c.Text,
				Options:       c.Options,
				CorrectAnswer: c.CorrectAnswer,
				Explanation:   c.Explanation,
				QuestionType:  batch.QuestionType,
				Difficulty:    batch.Difficulty,
			})
		}
		cursor++
	}
}
