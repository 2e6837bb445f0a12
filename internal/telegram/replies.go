package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"m10support/backend/internal/chat"
)

const (
	ackReplyStored      = "✅ Cavabınız qeydə alındı!\nSession: <code>%s</code>"
	ackReplyRequired    = "⚠️ Cavab vermək üçün iOS tətbiqdən gələn mesaja reply edin."
	ackNotReplyable     = "❌ Bu mesaja cavab verilə bilməz."
	ackSessionNotFound  = "❌ Sessiya tapılmadı."
	ackIngestionFailure = "❌ Xəta baş verdi."
)

// ReplySink receives operator replies harvested from the bot.
type ReplySink interface {
	EnqueueOperatorReply(ctx context.Context, sessionID, text string) error
}

// Ingestor turns operator messages into pending replies. Operators answer by
// replying to a forwarded notification.
type Ingestor struct {
	client      *Client
	sink        ReplySink
	adminChatID string
	logger      *zap.Logger
}

func NewIngestor(client *Client, sink ReplySink, adminChatID string, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		client:      client,
		sink:        sink,
		adminChatID: strings.TrimSpace(adminChatID),
		logger:      logger,
	}
}

// HandleUpdate processes one update. Updates that are not operator replies
// are ignored; only sink failures other than a missing session are returned.
func (i *Ingestor) HandleUpdate(ctx context.Context, update Update) error {
	msg := update.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	if msg.From != nil && msg.From.IsBot {
		return nil
	}
	if !i.fromAdminChat(msg.Chat) {
		i.logger.Debug("ignoring telegram message from foreign chat", zap.Int64("chat_id", msg.Chat.ID))
		return nil
	}
	if strings.HasPrefix(strings.TrimSpace(msg.Text), "/") {
		return nil
	}

	if msg.ReplyTo == nil {
		i.acknowledge(ctx, msg, ackReplyRequired)
		return nil
	}
	sessionID, ok := ExtractSessionID(msg.ReplyTo.Text)
	if !ok {
		i.acknowledge(ctx, msg, ackNotReplyable)
		return nil
	}

	err := i.sink.EnqueueOperatorReply(ctx, sessionID, strings.TrimSpace(msg.Text))
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		i.acknowledge(ctx, msg, ackSessionNotFound)
		return nil
	case err != nil:
		i.acknowledge(ctx, msg, ackIngestionFailure)
		return fmt.Errorf("enqueue operator reply: %w", err)
	}

	i.logger.Info("operator reply harvested",
		zap.String("session_id", sessionID),
		zap.Int64("update_id", update.UpdateID),
	)
	i.acknowledge(ctx, msg, fmt.Sprintf(ackReplyStored, html.EscapeString(sessionID)))
	return nil
}

func (i *Ingestor) fromAdminChat(c *Chat) bool {
	if i.adminChatID == "" {
		return true
	}
	adminID, err := strconv.ParseInt(i.adminChatID, 10, 64)
	if err != nil {
		return true
	}
	return c.ID == adminID
}

func (i *Ingestor) acknowledge(ctx context.Context, msg *Message, text string) {
	if i.client == nil {
		return
	}
	_, err := i.client.SendMessage(ctx, SendMessageRequest{
		ChatID:           strconv.FormatInt(msg.Chat.ID, 10),
		Text:             text,
		ParseMode:        "HTML",
		ReplyToMessageID: msg.MessageID,
	})
	if err != nil {
		i.logger.Warn("telegram acknowledgement failed", zap.Error(err))
	}
}
