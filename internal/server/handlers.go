package server

import (
	"time"

	"m10support/backend/internal/chat"
)

type createSessionRequest struct {
	Platform string `json:"platform"`
}

type deviceInfoPayload struct {
	Model      string `json:"model"`
	OSVersion  string `json:"os_version"`
	AppVersion string `json:"app_version"`
}

type sendMessageRequest struct {
	SessionID  string             `json:"session_id"`
	Message    string             `json:"message"`
	Timestamp  string             `json:"timestamp"`
	Platform   string             `json:"platform"`
	DeviceInfo *deviceInfoPayload `json:"device_info"`
}

type messageMetadata struct {
	TokensUsed *int     `json:"tokens_used,omitempty"`
	Model      *string  `json:"model,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type sendMessageResponse struct {
	SessionID string          `json:"session_id"`
	MessageID string          `json:"message_id"`
	Answer    string          `json:"answer"`
	Language  string          `json:"language"`
	Sources   []chat.Source   `json:"sources"`
	Timestamp time.Time       `json:"timestamp"`
	Metadata  messageMetadata `json:"metadata"`
}

type historyMessage struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Sender    string        `json:"sender"`
	Timestamp time.Time     `json:"timestamp"`
	Sources   []chat.Source `json:"sources,omitempty"`
}

type historyResponse struct {
	Messages []historyMessage `json:"messages"`
}

type operatorReplyRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

func (p *deviceInfoPayload) toDevice() *chat.DeviceInfo {
	if p == nil {
		return nil
	}
	return &chat.DeviceInfo{
		Model:      p.Model,
		OSVersion:  p.OSVersion,
		AppVersion: p.AppVersion,
	}
}

func newSendMessageResponse(reply chat.Reply) sendMessageResponse {
	metadata := messageMetadata{}
	if reply.Metadata.TokensUsed > 0 {
		tokens := reply.Metadata.TokensUsed
		metadata.TokensUsed = &tokens
	}
	if reply.Metadata.Model != "" {
		model := reply.Metadata.Model
		metadata.Model = &model
	}
	if reply.Metadata.Confidence > 0 {
		confidence := reply.Metadata.Confidence
		metadata.Confidence = &confidence
	}

	sources := reply.Sources
	if sources == nil {
		sources = []chat.Source{}
	}
	return sendMessageResponse{
		SessionID: reply.SessionID,
		MessageID: reply.MessageID,
		Answer:    reply.Answer,
		Language:  reply.Language,
		Sources:   sources,
		Timestamp: reply.Timestamp,
		Metadata:  metadata,
	}
}

func newHistoryResponse(messages []chat.Message) historyResponse {
	items := make([]historyMessage, 0, len(messages))
	for _, msg := range messages {
		items = append(items, historyMessage{
			ID:        msg.ID,
			Text:      msg.Text,
			Sender:    string(msg.Role),
			Timestamp: msg.Timestamp,
			Sources:   msg.Sources,
		})
	}
	return historyResponse{Messages: items}
}
