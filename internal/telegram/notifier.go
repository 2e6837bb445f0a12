package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"m10support/backend/internal/chat"
)

const sessionMarker = "Session:"

// Notifier forwards user messages to the operator chat.
type Notifier struct {
	client   *Client
	chatID   string
	location *time.Location
}

func NewNotifier(client *Client, chatID string, location *time.Location) *Notifier {
	if location == nil {
		location = time.Local
	}
	return &Notifier{
		client:   client,
		chatID:   strings.TrimSpace(chatID),
		location: location,
	}
}

func (n *Notifier) Notify(ctx context.Context, notification chat.Notification) error {
	if n.client == nil {
		return errors.New("telegram bot token is not configured")
	}
	if n.chatID == "" {
		return errors.New("telegram admin chat id is not configured")
	}
	_, err := n.client.SendMessage(ctx, SendMessageRequest{
		ChatID:                n.chatID,
		Text:                  FormatNotification(notification, n.location),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	return err
}

// FormatNotification renders the HTML operator notification. The
// "Session: <id>" line sits in the header block, above any user-supplied
// text, and is what ExtractSessionID reads back from replies.
func FormatNotification(n chat.Notification, location *time.Location) string {
	if location == nil {
		location = time.Local
	}
	sentAt := n.Timestamp
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	var b strings.Builder
	b.WriteString("💬 <b>Yeni mesaj iOS tətbiqdən:</b>\n")
	fmt.Fprintf(&b, "%s <code>%s</code>\n\n", sessionMarker, html.EscapeString(n.SessionID))
	b.WriteString(html.EscapeString(n.Text))
	b.WriteString("\n\n➖➖➖➖➖➖➖➖➖")
	if n.Device != nil {
		fmt.Fprintf(&b, "\n📱 %s - iOS %s",
			html.EscapeString(orDefault(n.Device.Model, "Unknown")),
			html.EscapeString(orDefault(n.Device.OSVersion, "?")),
		)
	}
	fmt.Fprintf(&b, "\n🕐 %s", sentAt.In(location).Format("15:04:05"))
	return b.String()
}

// ExtractSessionID reads the session id from the header block of a forwarded
// notification. Only lines before the first blank line are considered, so a
// "Session:" line typed by the user is never matched.
func ExtractSessionID(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			return "", false
		}
		if !strings.HasPrefix(line, sessionMarker) {
			continue
		}
		id := strings.TrimSpace(strings.TrimPrefix(line, sessionMarker))
		id = strings.TrimSuffix(strings.TrimPrefix(id, "<code>"), "</code>")
		id = strings.TrimSpace(id)
		if id == "" {
			return "", false
		}
		return id, true
	}
	return "", false
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
