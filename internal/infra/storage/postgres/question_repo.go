package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/courseforge/quizgen/internal/core/domain"
	"github.com/courseforge/quizgen/internal/pipeline/metrics"
)

// QuestionRepo implements storage.QuestionStore using PostgreSQL.
type QuestionRepo struct {
	db    *DB
	retry RetryConfig
	log   *slog.Logger
}

// NewQuestionRepo creates a new PostgreSQL question repository.
func NewQuestionRepo(db *DB) *QuestionRepo {
	return &QuestionRepo{db: db, retry: DefaultRetryConfig, log: slog.Default()}
}

// SaveBatch persists accepted questions in one transaction. Questions that
// fail model validation at save time are counted and skipped; they do not
// abort the batch.
func (r *QuestionRepo) SaveBatch(ctx context.Context, questions []*domain.Question) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}

	metrics.DBBatchSize.WithLabelValues("save_questions").Observe(float64(len(questions)))

	saved := 0
	err := withTxRetry(ctx, r.retry, "save_questions", func() error {
		saved = 0
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		now := time.Now()
		for _, q := range questions {
			if err := q.Validate(); err != nil {
				r.log.Warn("Skipping invalid question in batch",
					"quiz", q.QuizID, "question", q.ID, "error", err)
				metrics.QuestionsRejected.WithLabelValues("model_validation").Inc()
				continue
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO questions (id, quiz_id, source_id, text, options,
					correct_answer, explanation, question_type, difficulty, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				q.ID, q.QuizID, q.SourceID, q.Text, pq.Array(q.Options),
				q.CorrectAnswer, q.Explanation, q.QuestionType, q.Difficulty, now)
			if err != nil {
				return fmt.Errorf("failed to insert question %s: %w", q.ID, err)
			}
			saved++
		}

		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return saved, nil
}

// GetByQuiz returns all questions for a quiz in creation order.
func (r *QuestionRepo) GetByQuiz(ctx context.Context, quizID string) ([]*domain.Question, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT id, quiz_id, source_id, text, options, correct_answer,
			explanation, question_type, difficulty, created_at
		FROM questions WHERE quiz_id = $1 ORDER BY created_at ASC, id ASC`,
		quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	var questions []*domain.Question
	for rows.Next() {
		q := &domain.Question{}
		err := rows.Scan(&q.ID, &q.QuizID, &q.SourceID, &q.Text, pq.Array(&q.Options),
			&q.CorrectAnswer, &q.Explanation, &q.QuestionType, &q.Difficulty, &q.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
