package extraction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/courseforge/quizgen/internal/core/domain"
)

// Final statuses of an extraction run. no_content is a normal outcome, not an
// error: the quiz simply has nothing usable to generate from.
const (
	OutcomeCompleted = "completed"
	OutcomeNoContent = "no_content"
	OutcomeFailed    = "failed"
)

// ExtractorFunc retrieves content fragments for external module ids. The sole
// network-bound call of the extraction stage.
type ExtractorFunc func(ctx context.Context, authToken, courseRef string, moduleIDs []int) (map[string][]domain.Fragment, error)

// SummarizerFunc computes aggregate counts over a merged content map.
type SummarizerFunc func(content map[string][]domain.Fragment) domain.ContentSummary

// Result is the outcome of one extraction run. On OutcomeFailed, Cleaned is
// the original unmodified mapping so no partial cleaning is ever persisted.
type Result struct {
	Outcome string
	Content map[string][]domain.Fragment
	Summary *domain.ContentSummary
	Cleaned map[string]domain.Source
}

// Orchestrator drives retrieval for external sources, merges manual sources
// and reports the outcome. The caller persists the result and advances status.
type Orchestrator struct {
	cfg        Config
	extractor  ExtractorFunc
	summarizer SummarizerFunc
	log        *slog.Logger
}

// NewOrchestrator creates a content extraction orchestrator.
func NewOrchestrator(cfg Config, extractor ExtractorFunc, summarizer SummarizerFunc, log *slog.Logger) *Orchestrator {
	if summarizer == nil {
		summarizer = Summarize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{cfg: cfg, extractor: extractor, summarizer: summarizer, log: log}
}

// Extract runs one extraction pass over the quiz's configured sources.
// A retrieval failure returns the error alongside an OutcomeFailed result;
// the caller routes it to the failure manager.
func (o *Orchestrator) Extract(ctx context.Context, quiz *domain.Quiz, authToken string) (Result, error) {
	cat := Categorize(quiz.Sources, o.cfg, o.log)

	merged := make(map[string][]domain.Fragment)
	for id, frags := range cat.ManualFragments {
		merged[id] = frags
	}

	if len(cat.ExternalIDs) > 0 {
		external, err := o.extractor(ctx, authToken, quiz.CourseRef, cat.ExternalIDs)
		if err != nil {
			return Result{Outcome: OutcomeFailed, Cleaned: quiz.Sources},
				fmt.Errorf("content retrieval failed for quiz %s: %w", quiz.ID, err)
		}
		for id, frags := range external {
			if len(frags) == 0 {
				continue
			}
			merged[id] = append(merged[id], frags...)
		}
	}

	usable := 0
	for _, frags := range merged {
		for _, f := range frags {
			usable += f.WordCount
		}
	}
	if usable == 0 {
		o.log.Info("Extraction found no usable content", "quiz", quiz.ID)
		return Result{Outcome: OutcomeNoContent, Cleaned: cat.Cleaned}, nil
	}

	summary := o.summarizer(merged)
	o.log.Info("Extraction completed",
		"quiz", quiz.ID,
		"modules", summary.ModulesProcessed,
		"words", summary.TotalWordCount)

	return Result{
		Outcome: OutcomeCompleted,
		Content: merged,
		Summary: &summary,
		Cleaned: cat.Cleaned,
	}, nil
}

// Summarize is the default summarizer: one module per source id, one page per
// fragment, word counts summed.
func Summarize(content map[string][]domain.Fragment) domain.ContentSummary {
	s := domain.ContentSummary{}
	for _, frags := range content {
		if len(frags) == 0 {
			continue
		}
		s.ModulesProcessed++
		s.TotalPages += len(frags)
		for _, f := range frags {
			s.TotalWordCount += f.WordCount
		}
	}
	return s
}
