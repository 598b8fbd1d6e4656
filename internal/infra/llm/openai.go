package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/courseforge/quizgen/internal/pipeline/generation"
)

// Config holds OpenAI generator settings.
type Config struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// OpenAIGenerator implements generation.Generator against the OpenAI chat
// completion API. It returns the model's raw text output; parsing and
// structural validation happen in the workflow.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a question generator backed by OpenAI.
func NewOpenAIGenerator(cfg Config) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is not set")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIGenerator{
		client: openai.NewClient(cfg.APIKey),
		model:  model,
	}, nil
}

const systemPrompt = "You are an expert quiz question generator. " +
	"Generate high-quality multiple choice questions with exactly 4 options each. " +
	"Respond with a single JSON object of the form " +
	`{"questions":[{"text":...,"options":[...],"correct_answer":<0-based index>,"explanation":...}]}` +
	" and nothing else."

// Generate asks the model for count questions over the given chunk.
func (g *OpenAIGenerator) Generate(ctx context.Context, chunk generation.Chunk, questionType, difficulty string, count int) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(chunk, questionType, difficulty, count)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices from model")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildPrompt(chunk generation.Chunk, questionType, difficulty string, count int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Generate %d %s questions from the following course material", count, questionType)
	if chunk.Title != "" {
		fmt.Fprintf(&sb, " (from %q)", chunk.Title)
	}
	sb.WriteString(":\n\n")
	sb.WriteString(chunk.Text)
	sb.WriteString("\n\n")

	if difficulty != "" {
		fmt.Fprintf(&sb, "Difficulty level: %s\n", difficulty)
	}
	sb.WriteString("Requirements:\n")
	sb.WriteString("- Each question must have exactly 4 multiple choice options\n")
	sb.WriteString("- Incorrect options should be plausible but clearly wrong\n")
	sb.WriteString("- Questions must be answerable from the material alone\n")
	sb.WriteString("- Provide a brief explanation for why the correct answer is right\n")

	return sb.String()
}

// classify maps provider failures onto the workflow's typed errors so the
// run can stop immediately on guaranteed-failing conditions.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", generation.ErrProviderAuth, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", generation.ErrProviderQuota, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", generation.ErrModelNotFound, err)
		}
	}
	return err
}
