package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/courseforge/quizgen/internal/core/domain"
	"github.com/courseforge/quizgen/internal/infra/storage"
)

// QuizRepo implements storage.QuizStore using PostgreSQL. Stage reservation
// relies on SELECT ... FOR UPDATE so that concurrent triggers race on the row
// lock and exactly one of them claims the stage.
type QuizRepo struct {
	db    *DB
	retry RetryConfig
}

// NewQuizRepo creates a new PostgreSQL quiz repository.
func NewQuizRepo(db *DB) *QuizRepo {
	return &QuizRepo{db: db, retry: DefaultRetryConfig}
}

const quizColumns = `id, owner_id, course_ref, title, sources, status, failure_reason,
	extracted_content, content_summary, questions_wanted, questions_saved, retry_count,
	export_ref, deleted, deleted_at, created_at, updated_at, last_status_update`

type quizRow struct {
	ID               string         `db:"id"`
	OwnerID          sql.NullString `db:"owner_id"`
	CourseRef        string         `db:"course_ref"`
	Title            string         `db:"title"`
	Sources          []byte         `db:"sources"`
	Status           string         `db:"status"`
	FailureReason    sql.NullString `db:"failure_reason"`
	ExtractedContent []byte         `db:"extracted_content"`
	ContentSummary   []byte         `db:"content_summary"`
	QuestionsWanted  int            `db:"questions_wanted"`
	QuestionsSaved   int            `db:"questions_saved"`
	RetryCount       int            `db:"retry_count"`
	ExportRef        sql.NullString `db:"export_ref"`
	Deleted          bool           `db:"deleted"`
	DeletedAt        sql.NullTime   `db:"deleted_at"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	LastStatusUpdate time.Time      `db:"last_status_update"`
}

func (r *quizRow) toDomain() (*domain.Quiz, error) {
	q := &domain.Quiz{
		ID:               r.ID,
		CourseRef:        r.CourseRef,
		Title:            r.Title,
		Status:           domain.Status(r.Status),
		QuestionsWanted:  r.QuestionsWanted,
		QuestionsSaved:   r.QuestionsSaved,
		RetryCount:       r.RetryCount,
		Deleted:          r.Deleted,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		LastStatusUpdate: r.LastStatusUpdate,
	}
	if r.OwnerID.Valid {
		q.OwnerID = &r.OwnerID.String
	}
	if r.FailureReason.Valid {
		reason := domain.FailureReason(r.FailureReason.String)
		q.FailureReason = &reason
	}
	if r.ExportRef.Valid {
		q.ExportRef = &r.ExportRef.String
	}
	if r.DeletedAt.Valid {
		q.DeletedAt = &r.DeletedAt.Time
	}
	if len(r.Sources) > 0 {
		if err := json.Unmarshal(r.Sources, &q.Sources); err != nil {
			return nil, fmt.Errorf("failed to decode sources: %w", err)
		}
	}
	if len(r.ExtractedContent) > 0 {
		if err := json.Unmarshal(r.ExtractedContent, &q.ExtractedContent); err != nil {
			return nil, fmt.Errorf("failed to decode extracted content: %w", err)
		}
	}
	if len(r.ContentSummary) > 0 {
		if err := json.Unmarshal(r.ContentSummary, &q.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode content summary: %w", err)
		}
	}
	return q, nil
}

// Create inserts a new quiz row.
func (r *QuizRepo) Create(ctx context.Context, quiz *domain.Quiz) error {
	sources, err := json.Marshal(quiz.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO quizzes (id, owner_id, course_ref, title, sources, status,
			questions_wanted, created_at, updated_at, last_status_update)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now(), now())`,
		quiz.ID, quiz.OwnerID, quiz.CourseRef, quiz.Title, sources,
		string(domain.StatusCreated), quiz.TargetCount())
	if err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}
	return nil
}

// Get retrieves a quiz by id.
func (r *QuizRepo) Get(ctx context.Context, quizID string) (*domain.Quiz, error) {
	var row quizRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, quizID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	return row.toDomain()
}

// ReserveStage claims a stage for exactly one concurrent runner. It runs at
// REPEATABLE READ, locks the row, verifies ownership and readiness, advances
// status to the stage's in-flight value and clears failure_reason. An
// ownership mismatch fails identically to a missing quiz.
func (r *QuizRepo) ReserveStage(ctx context.Context, quizID, ownerID string, stage domain.Stage) (*domain.Quiz, error) {
	var claimed *domain.Quiz

	err := withTxRetry(ctx, r.retry, "reserve_stage", func() error {
		tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		var row quizRow
		err = tx.GetContext(ctx, &row,
			`SELECT `+quizColumns+` FROM quizzes WHERE id = $1 AND deleted = false FOR UPDATE`,
			quizID)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrQuizNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock quiz: %w", err)
		}

		quiz, err := row.toDomain()
		if err != nil {
			return err
		}
		if quiz.OwnerID == nil || *quiz.OwnerID != ownerID {
			return storage.ErrQuizNotFound
		}
		if quiz.Status == stage.InFlightStatus() {
			return storage.ErrAlreadyInFlight
		}
		if !quiz.ReadyFor(stage) {
			return &storage.NotReadyError{QuizID: quizID, Stage: stage, Status: quiz.Status}
		}

		inFlight := stage.InFlightStatus()
		if err := domain.ValidateTransition(quiz.Status, inFlight); err != nil {
			return &storage.NotReadyError{QuizID: quizID, Stage: stage, Status: quiz.Status}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE quizzes SET status = $2, failure_reason = NULL,
				updated_at = now(), last_status_update = now()
			WHERE id = $1`,
			quizID, string(inFlight))
		if err != nil {
			return fmt.Errorf("failed to advance status: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit reservation: %w", err)
		}

		quiz.Status = inFlight
		quiz.FailureReason = nil
		claimed = quiz
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// CommitStatus advances a quiz's status, validated against the transition table.
func (r *QuizRepo) CommitStatus(ctx context.Context, quizID string, status domain.Status, reason *domain.FailureReason) error {
	return withTxRetry(ctx, r.retry, "commit_status", func() error {
		tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		var current string
		err = tx.GetContext(ctx, &current,
			`SELECT status FROM quizzes WHERE id = $1 FOR UPDATE`, quizID)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrQuizNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock quiz: %w", err)
		}
		if err := domain.ValidateTransition(domain.Status(current), status); err != nil {
			return err
		}

		var reasonVal any
		if reason != nil {
			reasonVal = string(*reason)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE quizzes SET status = $2, failure_reason = $3,
				updated_at = now(), last_status_update = now()
			WHERE id = $1`,
			quizID, string(status), reasonVal)
		if err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		return tx.Commit()
	})
}

// MarkFailed sets status=failed with the given reason, leaving all other
// fields untouched. Published quizzes are terminal and never marked failed.
func (r *QuizRepo) MarkFailed(ctx context.Context, quizID string, reason domain.FailureReason) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quizzes SET status = $2, failure_reason = $3,
			updated_at = now(), last_status_update = now()
		WHERE id = $1 AND status <> $4 AND deleted = false`,
		quizID, string(domain.StatusFailed), string(reason), string(domain.StatusPublished))
	if err != nil {
		return fmt.Errorf("failed to mark quiz failed: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return storage.ErrQuizNotFound
	}
	return nil
}

// CommitExtractedContent persists the merged fragment map, summary and
// cleaned sources in one transaction.
func (r *QuizRepo) CommitExtractedContent(ctx context.Context, quizID string, content map[string][]domain.Fragment, summary *domain.ContentSummary, cleaned map[string]domain.Source) error {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to encode extracted content: %w", err)
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode content summary: %w", err)
	}
	cleanedJSON, err := json.Marshal(cleaned)
	if err != nil {
		return fmt.Errorf("failed to encode cleaned sources: %w", err)
	}

	return withTxRetry(ctx, r.retry, "commit_extracted_content", func() error {
		res, err := r.db.ExecContext(ctx, `
			UPDATE quizzes SET extracted_content = $2, content_summary = $3,
				sources = $4, updated_at = now()
			WHERE id = $1`,
			quizID, contentJSON, summaryJSON, cleanedJSON)
		if err != nil {
			return fmt.Errorf("failed to commit extracted content: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return storage.ErrQuizNotFound
		}
		return nil
	})
}

// CommitGenerationResult records the final status and saved-question count of
// a generation run.
func (r *QuizRepo) CommitGenerationResult(ctx context.Context, quizID string, status domain.Status, saved int) error {
	return withTxRetry(ctx, r.retry, "commit_generation_result", func() error {
		tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		var current string
		err = tx.GetContext(ctx, &current,
			`SELECT status FROM quizzes WHERE id = $1 FOR UPDATE`, quizID)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrQuizNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock quiz: %w", err)
		}
		if err := domain.ValidateTransition(domain.Status(current), status); err != nil {
			return err
		}

		var reasonVal any
		if status == domain.StatusFailed {
			reasonVal = string(domain.FailureQuestionGeneration)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE quizzes SET status = $2, failure_reason = $3, questions_saved = $4,
				updated_at = now(), last_status_update = now()
			WHERE id = $1`,
			quizID, string(status), reasonVal, saved)
		if err != nil {
			return fmt.Errorf("failed to commit generation result: %w", err)
		}
		return tx.Commit()
	})
}

// CommitExport records the external quiz reference and publishes the quiz.
func (r *QuizRepo) CommitExport(ctx context.Context, quizID, exportRef string) error {
	return withTxRetry(ctx, r.retry, "commit_export", func() error {
		tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		var current string
		err = tx.GetContext(ctx, &current,
			`SELECT status FROM quizzes WHERE id = $1 FOR UPDATE`, quizID)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrQuizNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock quiz: %w", err)
		}
		if err := domain.ValidateTransition(domain.Status(current), domain.StatusPublished); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE quizzes SET status = $2, export_ref = $3, failure_reason = NULL,
				updated_at = now(), last_status_update = now()
			WHERE id = $1`,
			quizID, string(domain.StatusPublished), exportRef)
		if err != nil {
			return fmt.Errorf("failed to commit export: %w", err)
		}
		return tx.Commit()
	})
}

// ListRetryable returns failed quizzes eligible for automatic retry.
func (r *QuizRepo) ListRetryable(ctx context.Context, maxRetries, limit int) ([]*domain.Quiz, error) {
	var rows []quizRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+quizColumns+` FROM quizzes
		WHERE status = $1
		  AND failure_reason IN ($2, $3, $4)
		  AND retry_count < $5
		  AND deleted = false
		ORDER BY updated_at ASC
		LIMIT $6`,
		string(domain.StatusFailed),
		string(domain.FailureContentExtraction),
		string(domain.FailureQuestionGeneration),
		string(domain.FailureCanvasExport),
		maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable quizzes: %w", err)
	}

	quizzes := make([]*domain.Quiz, 0, len(rows))
	for i := range rows {
		q, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, nil
}

// IncrementRetry bumps a quiz's retry counter.
func (r *QuizRepo) IncrementRetry(ctx context.Context, quizID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE quizzes SET retry_count = retry_count + 1, updated_at = now() WHERE id = $1`,
		quizID)
	if err != nil {
		return fmt.Errorf("failed to increment retry count: %w", err)
	}
	return nil
}

// SoftDelete flags a quiz deleted for its owner. Content and questions are
// retained for research.
func (r *QuizRepo) SoftDelete(ctx context.Context, quizID, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quizzes SET deleted = true, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND deleted = false`,
		quizID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to soft-delete quiz: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return storage.ErrQuizNotFound
	}
	return nil
}

// AnonymizeOwner clears the owner reference on all quizzes of a deleted user.
// Content fields are left unchanged.
func (r *QuizRepo) AnonymizeOwner(ctx context.Context, ownerID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quizzes SET owner_id = NULL, deleted = true, deleted_at = now(), updated_at = now()
		WHERE owner_id = $1`,
		ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to anonymize owner: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}
