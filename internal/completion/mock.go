package completion

import (
	"context"
	"strings"
)

// MockClient answers deterministically without network access. Err, when set,
// is returned instead of an answer.
type MockClient struct {
	Model  string
	Answer string
	Err    error

	Requests []Request
}

func (m *MockClient) Complete(_ context.Context, req Request) (Response, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return Response{}, m.Err
	}

	answer := strings.TrimSpace(m.Answer)
	if answer == "" {
		question := strings.TrimSpace(req.UserPrompt)
		if question == "" {
			question = "No question provided."
		}
		answer = "Mock response: " + question
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = strings.TrimSpace(m.Model)
	}
	if model == "" {
		model = "kimi-k2-turbo-preview"
	}
	return Response{
		Answer: answer,
		Model:  model,
		Usage: Usage{
			PromptTokens:     120,
			CompletionTokens: 80,
			TotalTokens:      200,
		},
	}, nil
}
