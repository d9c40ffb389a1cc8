// Package oracle implements the quality-gate judge on top of the OpenAI
// chat completion API with a forced function call.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"quizbot/internal/quiz"
	logx "quizbot/pkg/logx"
)

const reviewTool = "review_questions"

// Config selects the model and credentials.
type Config struct {
	APIKey string
	Model  string // default openai.GPT4o
}

// Judge reviews candidate batches with one chat completion per batch.
type Judge struct {
	client *openai.Client
	model  string
	log    logx.Logger
}

func New(cfg Config, log logx.Logger) (*Judge, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("oracle api_key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Judge{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.Model,
		log:    log.With(logx.String("comp", "oracle")),
	}, nil
}

// Review sends the whole batch in one request and parses the forced tool
// call into per-question verdicts.
func (j *Judge) Review(ctx context.Context, batch []quiz.Candidate) ([]quiz.QualityVerdict, error) {
	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert quiz question reviewer. Evaluate each question for clarity, fairness, and exactly one defensible correct answer.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(batch),
			},
		},
		Tools: []openai.Tool{
			{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        reviewTool,
					Description: "Report a verdict for every reviewed question",
					Parameters: map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"verdicts": map[string]interface{}{
								"type": "array",
								"items": map[string]interface{}{
									"type": "object",
									"properties": map[string]interface{}{
										"id": map[string]interface{}{
											"type":        "string",
											"description": "Question identifier, unchanged",
										},
										"approved": map[string]interface{}{
											"type":        "boolean",
											"description": "Whether the question may be delivered",
										},
										"reason": map[string]interface{}{
											"type":        "string",
											"description": "Short reason, required when approved is false",
										},
									},
									"required": []string{"id", "approved"},
								},
							},
						},
						"required": []string{"verdicts"},
					},
				},
			},
		},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: reviewTool},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("oracle request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("oracle returned no choices")
	}
	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return nil, fmt.Errorf("oracle returned no tool call")
	}
	call := calls[0]
	if call.Function.Name != reviewTool {
		return nil, fmt.Errorf("unexpected tool call %q", call.Function.Name)
	}

	var args struct {
		Verdicts []quiz.QualityVerdict `json:"verdicts"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return nil, fmt.Errorf("parse tool arguments: %w", err)
	}

	j.log.Debug("oracle review",
		logx.Int("batch", len(batch)),
		logx.Int("verdicts", len(args.Verdicts)))
	return args.Verdicts, nil
}

func buildPrompt(batch []quiz.Candidate) string {
	var sb strings.Builder
	sb.WriteString("Review the following quiz questions. For each one, report a verdict via the review_questions tool.\n\n")
	sb.WriteString("Reject a question when:\n")
	sb.WriteString("- the correct answer leaks into the question text\n")
	sb.WriteString("- the wording is ambiguous or more than one option is defensible\n")
	sb.WriteString("- the options are malformed (duplicates, empty, fewer than two)\n\n")
	sb.WriteString("Approve otherwise. A plain but correct question is fine.\n\n")

	for i, c := range batch {
		sb.WriteString(fmt.Sprintf("Question %d (id: %s)\n", i+1, c.ID))
		sb.WriteString(c.Text)
		sb.WriteString("\nOptions:\n")
		for j, o := range c.Options {
			sb.WriteString(fmt.Sprintf("%d. %s\n", j+1, o))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
