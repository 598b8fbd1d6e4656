package domain

import (
	"fmt"
	"time"
)

// Question is one generated multiple-choice question awaiting review.
type Question struct {
	ID            string    `db:"id"            json:"id"`
	QuizID        string    `db:"quiz_id"       json:"quiz_id"`
	SourceID      string    `db:"source_id"     json:"source_id"`
	Text          string    `db:"text"          json:"text"`
	Options       []string  `db:"-"             json:"options"`
	CorrectAnswer int       `db:"correct_answer" json:"correct_answer"` // 0-based index
	Explanation   string    `db:"explanation"   json:"explanation"`
	QuestionType  string    `db:"question_type" json:"question_type"`
	Difficulty    string    `db:"difficulty"    json:"difficulty"`
	CreatedAt     time.Time `db:"created_at"    json:"created_at"`
}

// Validate checks the structural invariants a question must satisfy before it
// is persisted: all required fields present and the correct-answer reference
// resolving to an existing option.
func (q *Question) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("question text is empty")
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("question has %d options, need at least 2", len(q.Options))
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		return fmt.Errorf("correct answer index %d out of range [0,%d)", q.CorrectAnswer, len(q.Options))
	}
	for i, opt := range q.Options {
		if opt == "" {
			return fmt.Errorf("option %d is empty", i)
		}
	}
	return nil
}
