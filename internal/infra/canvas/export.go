package canvas

import (
	"context"
	"fmt"

	"github.com/courseforge/quizgen/internal/core/domain"
)

type quizShell struct {
	ID int `json:"id"`
}

type newQuizRequest struct {
	Quiz struct {
		Title       string `json:"title"`
		QuizType    string `json:"quiz_type"`
		Published   bool   `json:"published"`
		Description string `json:"description"`
	} `json:"quiz"`
}

type newQuestionRequest struct {
	Question struct {
		Name         string         `json:"question_name"`
		Text         string         `json:"question_text"`
		Type         string         `json:"question_type"`
		PointsWorth  float64        `json:"points_possible"`
		Answers      []answerOption `json:"answers"`
		NeutralsText string         `json:"correct_comments,omitempty"`
	} `json:"question"`
}

type answerOption struct {
	Text   string `json:"answer_text"`
	Weight int    `json:"answer_weight"`
}

// ExportQuiz creates a quiz shell in the Canvas course, pushes every question
// into it and returns the external quiz id.
func (c *Client) ExportQuiz(ctx context.Context, token string, quiz *domain.Quiz, questions []*domain.Question) (string, error) {
	if len(questions) == 0 {
		return "", fmt.Errorf("quiz %s has no questions to export", quiz.ID)
	}

	var req newQuizRequest
	req.Quiz.Title = quiz.Title
	req.Quiz.QuizType = "assignment"
	req.Quiz.Description = fmt.Sprintf("Generated quiz with %d questions.", len(questions))

	var shell quizShell
	path := fmt.Sprintf("/api/v1/courses/%s/quizzes", escape(quiz.CourseRef))
	if err := c.do(ctx, "create_quiz", "POST", path, token, &req, &shell); err != nil {
		return "", fmt.Errorf("create canvas quiz: %w", err)
	}

	qPath := fmt.Sprintf("/api/v1/courses/%s/quizzes/%d/questions", escape(quiz.CourseRef), shell.ID)
	for i, q := range questions {
		var qReq newQuestionRequest
		qReq.Question.Name = fmt.Sprintf("Question %d", i+1)
		qReq.Question.Text = q.Text
		qReq.Question.Type = "multiple_choice_question"
		qReq.Question.PointsWorth = 1
		qReq.Question.NeutralsText = q.Explanation
		for j, opt := range q.Options {
			weight := 0
			if j == q.CorrectAnswer {
				weight = 100
			}
			qReq.Question.Answers = append(qReq.Question.Answers, answerOption{Text: opt, Weight: weight})
		}

		if err := c.do(ctx, "create_question", "POST", qPath, token, &qReq, nil); err != nil {
			return "", fmt.Errorf("push question %d/%d: %w", i+1, len(questions), err)
		}
	}

	return fmt.Sprintf("%d", shell.ID), nil
}
