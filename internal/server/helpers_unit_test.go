package server

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"m10support/backend/internal/chat"
	"m10support/backend/internal/config"
)

func TestParseClientTimestamp(t *testing.T) {
	got, err := parseClientTimestamp("2026-03-01T13:30:00+04:00")
	if err != nil {
		t.Fatalf("expected offset timestamp to parse: %v", err)
	}
	if got.Format(time.RFC3339) != "2026-03-01T09:30:00Z" {
		t.Fatalf("expected UTC conversion, got %s", got.Format(time.RFC3339))
	}

	got, err = parseClientTimestamp("2026-03-01T09:30:00.123456")
	if err != nil {
		t.Fatalf("expected zone-less timestamp to parse: %v", err)
	}
	if got.Location() != time.UTC || got.Nanosecond() != 123456000 {
		t.Fatalf("unexpected zone-less parse: %s", got.Format(time.RFC3339Nano))
	}

	got, err = parseClientTimestamp("  ")
	if err != nil || !got.IsZero() {
		t.Fatalf("expected blank timestamp to yield zero time, got %v %v", got, err)
	}

	if _, err := parseClientTimestamp("01/03/2026"); err == nil {
		t.Fatalf("expected unsupported layout to fail")
	}
}

func TestSendMessageResponseOmitsEmptyMetadata(t *testing.T) {
	resp := newSendMessageResponse(chat.Reply{
		SessionID: "s1",
		MessageID: "m1",
		Answer:    "Salam",
		Language:  "az",
		Metadata:  chat.Metadata{Confidence: 0.7},
	})
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, `"sources":[]`) {
		t.Fatalf("expected empty sources array, got %s", body)
	}
	if !strings.Contains(body, `"metadata":{"confidence":0.7}`) {
		t.Fatalf("expected only confidence in metadata, got %s", body)
	}
}

func TestHistoryResponseUsesSenderRole(t *testing.T) {
	resp := newHistoryResponse([]chat.Message{
		{ID: "1", Text: "salam", Role: chat.RoleUser},
		{ID: "2", Text: "cavab", Role: chat.RoleAssistant, Sources: []chat.Source{{Title: "m10", URL: "https://m10.az"}}},
	})
	if len(resp.Messages) != 2 {
		t.Fatalf("expected two messages, got %d", len(resp.Messages))
	}
	if resp.Messages[0].Sender != "user" || resp.Messages[1].Sender != "assistant" {
		t.Fatalf("unexpected senders: %+v", resp.Messages)
	}
	if len(resp.Messages[1].Sources) != 1 {
		t.Fatalf("expected assistant sources to survive, got %+v", resp.Messages[1])
	}

	raw, _ := json.Marshal(newHistoryResponse(nil))
	if string(raw) != `{"messages":[]}` {
		t.Fatalf("expected empty messages array, got %s", raw)
	}
}

func TestCORSConfigWildcard(t *testing.T) {
	app := New(config.Config{CORSAllowOrigins: []string{"*"}}, nil, nil, nil)
	cfg := app.corsConfig()
	if !cfg.AllowAllOrigins || cfg.AllowCredentials {
		t.Fatalf("expected wildcard to allow all origins without credentials: %+v", cfg)
	}

	app = New(config.Config{CORSAllowOrigins: []string{"https://m10.az"}}, nil, nil, nil)
	cfg = app.corsConfig()
	if cfg.AllowAllOrigins || len(cfg.AllowOrigins) != 1 || !cfg.AllowCredentials {
		t.Fatalf("expected explicit origin list: %+v", cfg)
	}
}
