package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"m10support/backend/internal/config"
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
}

type Response struct {
	Answer string
	Model  string
	Usage  Usage
}

// Client produces a single completion. Implementations make one attempt and
// never retry.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// UpstreamError reports a non-2xx answer from the completion service.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion upstream error (%d): %s", e.StatusCode, e.Body)
}

var (
	ErrNotConfigured = errors.New("completion api key is not configured")
	ErrEmptyAnswer   = errors.New("completion answer is empty")
)

type HTTPClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

func NewHTTPClient(cfg config.Config) *HTTPClient {
	timeoutSeconds := cfg.CompletionTimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	return &HTTPClient{
		apiKey:      strings.TrimSpace(cfg.CompletionAPIKey),
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.CompletionBaseURL), "/"),
		model:       strings.TrimSpace(cfg.CompletionModel),
		temperature: cfg.CompletionTemperature,
		maxTokens:   cfg.CompletionMaxTokens,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

func (c *HTTPClient) Model() string {
	return c.model
}

type chatCompletionRequest struct {
	Model       string  `json:"model"`
	Messages    []Turn  `json:"messages"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

func (c *HTTPClient) Complete(ctx context.Context, req Request) (Response, error) {
	if c.apiKey == "" {
		return Response{}, ErrNotConfigured
	}
	if c.baseURL == "" {
		return Response{}, errors.New("completion base url is not configured")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}

	messages := make([]Turn, 0, 2)
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		messages = append(messages, Turn{Role: "system", Content: system})
	}
	if prompt := strings.TrimSpace(req.UserPrompt); prompt != "" {
		messages = append(messages, Turn{Role: "user", Content: prompt})
	}
	if len(messages) == 0 {
		return Response{}, errors.New("completion request input is empty")
	}

	bodyRaw, err := json.Marshal(chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return Response{}, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyRaw))
	if err != nil {
		return Response{}, err
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return Response{}, err
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return Response{}, err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return Response{}, &UpstreamError{
			StatusCode: response.StatusCode,
			Body:       truncateForLog(string(responseBody), 512),
		}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, ErrEmptyAnswer
	}
	answer := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if answer == "" {
		return Response{}, ErrEmptyAnswer
	}

	modelName := strings.TrimSpace(parsed.Model)
	if modelName == "" {
		modelName = model
	}
	return Response{
		Answer: answer,
		Model:  modelName,
		Usage:  parsed.Usage,
	}, nil
}

func truncateForLog(value string, limit int) string {
	trimmed := strings.TrimSpace(value)
	if limit <= 0 || len(trimmed) <= limit {
		return trimmed
	}
	return trimmed[:limit] + "...(truncated)"
}
