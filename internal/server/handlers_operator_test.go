package server

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"m10support/backend/internal/chat"
	"m10support/backend/internal/telegram"
)

func TestHandoffScenarioOverHTTP(t *testing.T) {
	env := newTestEnv(t, handoffConfig())
	sessionID := env.createSession(t)

	first := env.sendMessage(t, sessionID, "Kartım bloklanıb")
	if first["answer"] != chat.HandoffPlaceholder {
		t.Fatalf("expected placeholder, got %v", first["answer"])
	}
	if metadata, _ := first["metadata"].(map[string]any); metadata["confidence"] != 0.5 {
		t.Fatalf("expected low confidence, got %v", first["metadata"])
	}

	select {
	case sent := <-env.bot.sent:
		if sent.ChatID != "777" || !strings.Contains(sent.Text, "Session: <code>"+sessionID+"</code>") {
			t.Fatalf("unexpected notification: %+v", sent)
		}
		if !strings.Contains(sent.Text, "📱 iPhone 15 Pro - iOS 17.2") {
			t.Fatalf("expected device line in notification: %q", sent.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected operator notification")
	}

	rec := performRequest(t, env.router, http.MethodPost, "/webhook/operator", "", map[string]any{
		"session_id": sessionID,
		"text":       "Kartınızı yenidən aktivləşdirdik.",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("operator reply failed: %d %s", rec.Code, rec.Body.String())
	}

	second := env.sendMessage(t, sessionID, "Təşəkkürlər")
	if second["answer"] != "Kartınızı yenidən aktivləşdirdik." {
		t.Fatalf("expected operator reply, got %v", second["answer"])
	}
	if metadata, _ := second["metadata"].(map[string]any); metadata["confidence"] != 0.95 {
		t.Fatalf("expected high confidence, got %v", second["metadata"])
	}

	third := env.sendMessage(t, sessionID, "Daha bir sual")
	if third["answer"] != chat.HandoffPlaceholder {
		t.Fatalf("expected placeholder after consumption, got %v", third["answer"])
	}
	env.waitDispatched(t)
}

func TestOperatorReplyUnknownSession(t *testing.T) {
	env := newTestEnv(t, handoffConfig())
	rec := performRequest(t, env.router, http.MethodPost, "/webhook/operator", "", map[string]any{
		"session_id": testID(),
		"text":       "salam",
	}, nil)
	if rec.Code != http.StatusNotFound || responseDetail(t, rec) != "Session not found" {
		t.Fatalf("expected 404, got %d %s", rec.Code, rec.Body.String())
	}

	rec = performRequest(t, env.router, http.MethodPost, "/webhook/operator", "", map[string]any{"session_id": testID()}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing text, got %d", rec.Code)
	}
}

func TestOperatorReplyRequiresTokenWhenConfigured(t *testing.T) {
	cfg := handoffConfig()
	cfg.OperatorJWTSecret = "operator-secret-1234567890"
	cfg.OperatorJWTIssuer = "m10-ops"
	env := newTestEnv(t, cfg)
	sessionID := env.createSession(t)
	body := map[string]any{"session_id": sessionID, "text": "Cavab"}

	rec := performRequest(t, env.router, http.MethodPost, "/webhook/operator", "", body, nil)
	if rec.Code != http.StatusUnauthorized || responseDetail(t, rec) != "Bearer token required" {
		t.Fatalf("expected 401 without token, got %d %s", rec.Code, rec.Body.String())
	}

	wrongSecret := signOperatorToken(t, "another-secret-1234567890", "op-1", map[string]any{"iss": "m10-ops"})
	rec = performRequest(t, env.router, http.MethodPost, "/webhook/operator", wrongSecret, body, nil)
	if rec.Code != http.StatusUnauthorized || responseDetail(t, rec) != "Invalid bearer token" {
		t.Fatalf("expected 401 for wrong secret, got %d %s", rec.Code, rec.Body.String())
	}

	wrongIssuer := signOperatorToken(t, cfg.OperatorJWTSecret, "op-1", map[string]any{"iss": "someone-else"})
	rec = performRequest(t, env.router, http.MethodPost, "/webhook/operator", wrongIssuer, body, nil)
	if rec.Code != http.StatusUnauthorized || responseDetail(t, rec) != "Invalid token issuer" {
		t.Fatalf("expected 401 for wrong issuer, got %d %s", rec.Code, rec.Body.String())
	}

	expired := signOperatorToken(t, cfg.OperatorJWTSecret, "op-1", map[string]any{
		"iss": "m10-ops",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	rec = performRequest(t, env.router, http.MethodPost, "/webhook/operator", expired, body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}

	valid := signOperatorToken(t, cfg.OperatorJWTSecret, "op-1", map[string]any{"iss": "m10-ops"})
	rec = performRequest(t, env.router, http.MethodPost, "/webhook/operator", valid, body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestLegacyTelegramWebhook(t *testing.T) {
	env := newTestEnv(t, handoffConfig())
	sessionID := env.createSession(t)

	target := "/webhook/telegram/" + sessionID + "?response_text=" + url.QueryEscape("Balansınız yeniləndi")
	rec := performRequest(t, env.router, http.MethodPost, target, "", nil, nil)
	if rec.Code != http.StatusOK || decodeJSONMap(t, rec)["status"] != "ok" {
		t.Fatalf("expected ok, got %d %s", rec.Code, rec.Body.String())
	}

	reply := env.sendMessage(t, sessionID, "?")
	if reply["answer"] != "Balansınız yeniləndi" {
		t.Fatalf("expected legacy reply to surface, got %v", reply["answer"])
	}

	rec = performRequest(t, env.router, http.MethodPost, "/webhook/telegram/"+testID()+"?response_text=x", "", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rec.Code)
	}
	rec = performRequest(t, env.router, http.MethodPost, "/webhook/telegram/"+sessionID, "", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without response_text, got %d", rec.Code)
	}
	env.waitDispatched(t)
}

func TestTelegramUpdateWebhook(t *testing.T) {
	cfg := handoffConfig()
	cfg.TelegramWebhookSecret = "hook-secret"
	env := newTestEnv(t, cfg)
	sessionID := env.createSession(t)

	update := telegram.Update{
		UpdateID: 100,
		Message: &telegram.Message{
			MessageID: 5,
			Chat:      &telegram.Chat{ID: 777, Type: "private"},
			From:      &telegram.User{ID: 9, FirstName: "Leyla"},
			Text:      "Sorğunuz həll olundu.",
			ReplyTo: &telegram.Message{
				MessageID: 4,
				Text:      "💬 Yeni mesaj iOS tətbiqdən:\nSession: " + sessionID + "\n\nsalam\n\n➖➖➖",
			},
		},
	}

	rec := performRequest(t, env.router, http.MethodPost, "/webhook/telegram", "", update, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret header, got %d", rec.Code)
	}

	rec = performRequest(t, env.router, http.MethodPost, "/webhook/telegram", "", update, map[string]string{
		"X-Telegram-Bot-Api-Secret-Token": "hook-secret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}

	select {
	case ack := <-env.bot.sent:
		if !strings.HasPrefix(ack.Text, "✅ Cavabınız qeydə alındı!") || ack.ReplyToMessageID != 5 {
			t.Fatalf("unexpected acknowledgement: %+v", ack)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected acknowledgement to operator")
	}

	reply := env.sendMessage(t, sessionID, "Yoxladım")
	if reply["answer"] != "Sorğunuz həll olundu." {
		t.Fatalf("expected telegram reply to surface, got %v", reply["answer"])
	}
	env.waitDispatched(t)
}

func TestTelegramConfigEndpoint(t *testing.T) {
	env := newTestEnv(t, handoffConfig())
	rec := performRequest(t, env.router, http.MethodGet, "/config/telegram", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	body := decodeJSONMap(t, rec)
	if body["bot_username"] != "m10_support_bot" || body["telegram_link"] != "https://t.me/m10_support_bot" || body["admin_chat_id_set"] != true {
		t.Fatalf("unexpected telegram config: %v", body)
	}
}
