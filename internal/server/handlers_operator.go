package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"m10support/backend/internal/telegram"
)

func (a *App) operatorReply(c *gin.Context) {
	var payload operatorReplyRequest
	if !mustJSON(c, &payload) {
		return
	}
	sessionID := strings.TrimSpace(payload.SessionID)
	text := strings.TrimSpace(payload.Text)
	if sessionID == "" || text == "" {
		writeError(c, http.StatusBadRequest, "session_id and text are required")
		return
	}
	a.enqueueOperatorReply(c, sessionID, text)
}

// legacyTelegramReply accepts the bridge form
// POST /webhook/telegram/:session_id?response_text=...
func (a *App) legacyTelegramReply(c *gin.Context) {
	text := strings.TrimSpace(c.Query("response_text"))
	if text == "" {
		writeError(c, http.StatusBadRequest, "response_text is required")
		return
	}
	a.enqueueOperatorReply(c, strings.TrimSpace(c.Param("session_id")), text)
}

func (a *App) enqueueOperatorReply(c *gin.Context, sessionID, text string) {
	if err := a.relay.EnqueueOperatorReply(c.Request.Context(), sessionID, text); err != nil {
		a.writeRelayError(c, err)
		return
	}
	a.logger.Info("operator reply accepted",
		zap.String("session_id", sessionID),
		zap.String("operator", c.GetString(operatorContextKey)),
	)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *App) telegramUpdate(c *gin.Context) {
	if secret := strings.TrimSpace(a.cfg.TelegramWebhookSecret); secret != "" {
		got := c.GetHeader("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			writeError(c, http.StatusUnauthorized, "Invalid webhook secret")
			return
		}
	}
	if a.ingestor == nil {
		writeError(c, http.StatusServiceUnavailable, "Telegram is not configured")
		return
	}

	var update telegram.Update
	if !mustJSON(c, &update) {
		return
	}
	if err := a.ingestor.HandleUpdate(c.Request.Context(), update); err != nil {
		a.logger.Warn("telegram update dropped", zap.Int64("update_id", update.UpdateID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *App) telegramConfig(c *gin.Context) {
	if a.bot == nil {
		writeError(c, http.StatusServiceUnavailable, "Could not get bot info")
		return
	}
	me, err := a.bot.GetMe(c.Request.Context())
	if err != nil {
		a.logger.Warn("telegram getMe failed", zap.Error(err))
		writeError(c, http.StatusServiceUnavailable, "Could not get bot info")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bot_username":      me.Username,
		"bot_name":          me.FirstName,
		"admin_chat_id_set": strings.TrimSpace(a.cfg.TelegramAdminChatID) != "",
		"telegram_link":     "https://t.me/" + me.Username,
	})
}
