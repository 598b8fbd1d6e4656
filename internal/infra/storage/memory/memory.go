package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/courseforge/quizgen/internal/core/domain"
	"github.com/courseforge/quizgen/internal/infra/storage"
)

// MemoryStorage is an in-memory backend used by tests and database-less dev
// mode. Reservation atomicity comes from the storage mutex: the check and the
// status advance happen under one lock, mirroring the row-locked claim of the
// postgres backend.
type MemoryStorage struct {
	quizzes   map[string]*domain.Quiz
	questions map[string][]*domain.Question
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		quizzes:   make(map[string]*domain.Quiz),
		questions: make(map[string][]*domain.Question),
	}
}

// -----------------------------------------------------------------------------
// Quiz Store
// -----------------------------------------------------------------------------

type QuizRepo struct {
	store *MemoryStorage
}

func NewQuizRepo(store *MemoryStorage) *QuizRepo {
	return &QuizRepo{store: store}
}

func copyQuiz(q *domain.Quiz) *domain.Quiz {
	cp := *q
	return &cp
}

func (r *QuizRepo) Create(ctx context.Context, quiz *domain.Quiz) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := copyQuiz(quiz)
	if cp.Status == "" {
		cp.Status = domain.StatusCreated
	}
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	cp.LastStatusUpdate = now
	cp.QuestionsWanted = quiz.TargetCount()
	r.store.quizzes[quiz.ID] = cp
	return nil
}

func (r *QuizRepo) Get(ctx context.Context, quizID string) (*domain.Quiz, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	q, ok := r.store.quizzes[quizID]
	if !ok {
		return nil, storage.ErrQuizNotFound
	}
	return copyQuiz(q), nil
}

func (r *QuizRepo) ReserveStage(ctx context.Context, quizID, ownerID string, stage domain.Stage) (*domain.Quiz, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	q, ok := r.store.quizzes[quizID]
	if !ok || q.Deleted {
		return nil, storage.ErrQuizNotFound
	}
	if q.OwnerID == nil || *q.OwnerID != ownerID {
		return nil, storage.ErrQuizNotFound
	}
	if q.Status == stage.InFlightStatus() {
		return nil, storage.ErrAlreadyInFlight
	}
	if !q.ReadyFor(stage) {
		return nil, &storage.NotReadyError{QuizID: quizID, Stage: stage, Status: q.Status}
	}

	q.Status = stage.InFlightStatus()
	q.FailureReason = nil
	q.UpdatedAt = time.Now()
	q.LastStatusUpdate = q.UpdatedAt
	return copyQuiz(q), nil
}

func (r *QuizRepo) CommitStatus(ctx context.Context, quizID string, status domain.Status, reason *domain.FailureReason) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	q, ok := r.store.quizzes[quizID]
	if !ok {
		return storage.ErrQuizNotFound
	}
	if err := domain.ValidateTransition(q.Status, status); err != nil {
		return err
	}
	q.Status = status
	q.FailureReason = reason
	q.UpdatedAt = time.Now()
	q.LastStatusUpdate = q.UpdatedAt
	return nil
}

func (r *QuizRepo) MarkFailed(ctx context.Context, quizID string, reason domain.FailureReason) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	q, ok := r.store.quizzes[quizID]
	if !ok || q.Deleted || q.Status == domain.StatusPublished {
		return storage.ErrQuizNotFound
	}
	q.Status = domain.StatusFailed
	q.FailureReason = &reason
	q.UpdatedAt = time.Now()
	q.LastStatusUpdate = q.UpdatedAt
	return nil
}

func (r *QuizRepo) CommitExtractedContent(ctx context.Context, quizID string, content map[string][]domain.Fragment, summary *domain.ContentSummary, cleaned map[string]domain.Source) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	q, ok := r.store.quizzes[quizID]
	if !ok {
		return storage.ErrQuizNotFound
	}
	q.ExtractedContent = content
	q.Summary = summary
	q.Sources = cleaned
	q.UpdatedAt = time.Now()
	return nil
}

func (r *QuizRepo) CommitGenerationResult(ctx context.Context, quizID string, status domain.Status, saved int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	q, ok := r.store.quizzes[quizID]
	if !ok {
		return storage.ErrQuizNotFound
	}
	if err := domain.ValidateTransition(q.Status, status); err != nil {
		return err
	}
	q.Status = status
	if status == domain.StatusFailed {
		reason := domain.FailureQuestionGeneration
		q.FailureReason = &reason
	} else {
		q.FailureReason = nil
	}
	q.QuestionsSaved = saved
	q.UpdatedAt = time.Now()
	q.LastStatusUpdate = q.UpdatedAt
	return nil
}

func (r *QuizRepo) CommitExport(ctx context.Context, quizID, exportRef string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	q, ok := r.store.quizzes[quizID]
	if !ok {
		return storage.ErrQuizNotFound
	}
	if err := domain.ValidateTransition(q.Status, domain.StatusPublished); err != nil {
		return err
	}
	q.Status = domain.StatusPublished
	q.ExportRef = &exportRef
	q.FailureReason = nil
	q.UpdatedAt = time.Now()
	q.LastStatusUpdate = q.UpdatedAt
	return nil
}

func (r *QuizRepo) ListRetryable(ctx context.Context, maxRetries, limit int) ([]*domain.Quiz, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Quiz
	for _, q := range r.store.quizzes {
		if q.Deleted || q.Status != domain.StatusFailed {
			continue
		}
		if q.FailureReason == nil || !q.FailureReason.Retryable() {
			continue
		}
		if q.RetryCount >= maxRetries {
			continue
		}
		out = append(out, copyQuiz(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *QuizRepo) IncrementRetry(ctx context.Context, quizID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	q, ok := r.store.quizzes[quizID]
	if !ok {
		return storage.ErrQuizNotFound
	}
	q.RetryCount++
	q.UpdatedAt = time.Now()
	return nil
}

func (r *QuizRepo) SoftDelete(ctx context.Context, quizID, ownerID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	q, ok := r.store.quizzes[quizID]
	if !ok || q.Deleted || q.OwnerID == nil || *q.OwnerID != ownerID {
		return storage.ErrQuizNotFound
	}
	now := time.Now()
	q.Deleted = true
	q.DeletedAt = &now
	q.UpdatedAt = now
	return nil
}

func (r *QuizRepo) AnonymizeOwner(ctx context.Context, ownerID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	count := 0
	now := time.Now()
	for _, q := range r.store.quizzes {
		if q.OwnerID != nil && *q.OwnerID == ownerID {
			q.OwnerID = nil
			q.Deleted = true
			q.DeletedAt = &now
			q.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

// -----------------------------------------------------------------------------
// Question Store
// -----------------------------------------------------------------------------

type QuestionRepo struct {
	store *MemoryStorage
}

func NewQuestionRepo(store *MemoryStorage) *QuestionRepo {
	return &QuestionRepo{store: store}
}

func (r *QuestionRepo) SaveBatch(ctx context.Context, questions []*domain.Question) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	saved := 0
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			continue
		}
		cp := *q
		r.store.questions[q.QuizID] = append(r.store.questions[q.QuizID], &cp)
		saved++
	}
	return saved, nil
}

func (r *QuestionRepo) GetByQuiz(ctx context.Context, quizID string) ([]*domain.Question, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	qs := r.store.questions[quizID]
	out := make([]*domain.Question, len(qs))
	for i, q := range qs {
		cp := *q
		out[i] = &cp
	}
	return out, nil
}
