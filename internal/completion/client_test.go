package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"m10support/backend/internal/config"
)

func newTestClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		apiKey:      "test",
		baseURL:     baseURL,
		model:       "kimi-k2-turbo-preview",
		temperature: 0.7,
		maxTokens:   500,
		httpClient: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

func TestHTTPClientSendsChatCompletionPayload(t *testing.T) {
	t.Parallel()

	var payload map[string]any
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		authHeader = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode request payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model":"kimi-k2-turbo-preview",
			"choices":[{"message":{"role":"assistant","content":"  Salam!  "}}],
			"usage":{"prompt_tokens":30,"completion_tokens":12,"total_tokens":42}
		}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Complete(context.Background(), Request{
		SystemPrompt: "You are a support assistant.",
		UserPrompt:   "Salam",
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if resp.Answer != "Salam!" {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
	if resp.Usage.TotalTokens != 42 {
		t.Fatalf("expected total tokens 42, got %d", resp.Usage.TotalTokens)
	}
	if authHeader != "Bearer test" {
		t.Fatalf("unexpected auth header: %q", authHeader)
	}
	if payload["model"] != "kimi-k2-turbo-preview" {
		t.Fatalf("unexpected model: %v", payload["model"])
	}
	if extractNumber(payload["max_tokens"]) != 500 {
		t.Fatalf("expected max_tokens=500, got %v", payload["max_tokens"])
	}
	if extractNumber(payload["temperature"]) != 0.7 {
		t.Fatalf("expected temperature=0.7, got %v", payload["temperature"])
	}
	messages, ok := payload["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %v", payload["messages"])
	}
	first, _ := messages[0].(map[string]any)
	if first["role"] != "system" {
		t.Fatalf("expected system message first, got %v", first)
	}
}

func TestHTTPClientDoesNotRetryOnServerError(t *testing.T) {
	t.Parallel()

	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"temporary upstream issue"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), Request{UserPrompt: "hello"})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if upstream.StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected status: %d", upstream.StatusCode)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", got)
	}
}

func TestHTTPClientRejectsEmptyChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), Request{UserPrompt: "hello"})
	if !errors.Is(err, ErrEmptyAnswer) {
		t.Fatalf("expected ErrEmptyAnswer, got %v", err)
	}
}

func TestHTTPClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	client := NewHTTPClient(config.Config{CompletionBaseURL: "http://127.0.0.1:1"})
	_, err := client.Complete(context.Background(), Request{UserPrompt: "hello"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestMockClientEchoesPrompt(t *testing.T) {
	t.Parallel()

	mock := &MockClient{}
	resp, err := mock.Complete(context.Background(), Request{UserPrompt: "balans"})
	if err != nil {
		t.Fatalf("mock complete failed: %v", err)
	}
	if resp.Answer != "Mock response: balans" {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
	if len(mock.Requests) != 1 {
		t.Fatalf("expected request to be recorded, got %d", len(mock.Requests))
	}
}

func extractNumber(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
