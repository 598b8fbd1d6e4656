package domain

import "time"

// SourceType distinguishes how a configured source supplies its content.
type SourceType string

const (
	SourceTypeExternal SourceType = "external"
	SourceTypeManual   SourceType = "manual"
)

// QuestionBatch is one requested batch of questions for a quiz.
type QuestionBatch struct {
	QuestionType string `json:"question_type"`
	Count        int    `json:"count"`
	Difficulty   string `json:"difficulty"`
}

// Source is one configured content source of a quiz. External sources carry a
// numeric identifier in their key and are fetched from the LMS; manual sources
// carry literal content inline.
type Source struct {
	Name       string          `json:"name"`
	SourceType SourceType      `json:"source_type"`
	Content    string          `json:"content,omitempty"` // manual sources only
	Batches    []QuestionBatch `json:"batches,omitempty"`
	// Transient processing metadata, stripped before the cleaned source
	// list is persisted back.
	Meta map[string]string `json:"meta,omitempty"`
}

// Fragment is a unit of extracted content from an external or manual source.
type Fragment struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	WordCount  int    `json:"word_count"`
	SourceType string `json:"source_type"`
}

// ContentSummary holds aggregate counts over an extracted content map.
type ContentSummary struct {
	ModulesProcessed int `json:"modules_processed"`
	TotalPages       int `json:"total_pages"`
	TotalWordCount   int `json:"total_word_count"`
}

// Quiz is the persisted pipeline record. Mutated only by stage claims, stage
// completion/failure writers, rollback operations and owner anonymization;
// never hard-deleted.
type Quiz struct {
	ID               string                `db:"id"`
	OwnerID          *string               `db:"owner_id"` // nil once anonymized
	CourseRef        string                `db:"course_ref"`
	Title            string                `db:"title"`
	Sources          map[string]Source     `db:"-"`
	Status           Status                `db:"status"`
	FailureReason    *FailureReason        `db:"failure_reason"`
	ExtractedContent map[string][]Fragment `db:"-"` // non-nil only once extraction completed
	Summary          *ContentSummary       `db:"-"`
	QuestionsWanted  int                   `db:"questions_wanted"`
	QuestionsSaved   int                   `db:"questions_saved"`
	RetryCount       int                   `db:"retry_count"`
	ExportRef        *string               `db:"export_ref"`
	Deleted          bool                  `db:"deleted"`
	DeletedAt        *time.Time            `db:"deleted_at"`
	CreatedAt        time.Time             `db:"created_at"`
	UpdatedAt        time.Time             `db:"updated_at"`
	LastStatusUpdate time.Time             `db:"last_status_update"`
}

// TargetCount sums the requested counts across all batches of all sources.
func (q *Quiz) TargetCount() int {
	total := 0
	for _, src := range q.Sources {
		for _, b := range src.Batches {
			total += b.Count
		}
	}
	return total
}
