package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"m10support/backend/internal/chat"
)

func (a *App) createSession(c *gin.Context) {
	var payload createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			writeError(c, http.StatusBadRequest, "Invalid request payload")
			return
		}
	}

	sessionID, err := a.relay.CreateSession(c.Request.Context(), payload.Platform)
	if err != nil {
		a.writeRelayError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
}

func (a *App) sendMessage(c *gin.Context) {
	var payload sendMessageRequest
	if !mustJSON(c, &payload) {
		return
	}
	sessionID := strings.TrimSpace(payload.SessionID)
	message := strings.TrimSpace(payload.Message)
	if sessionID == "" || message == "" {
		writeError(c, http.StatusBadRequest, "session_id and message are required")
		return
	}
	sentAt, err := parseClientTimestamp(payload.Timestamp)
	if err != nil {
		writeError(c, http.StatusBadRequest, "Invalid timestamp")
		return
	}

	reply, err := a.relay.SendMessage(c.Request.Context(), chat.SendRequest{
		SessionID: sessionID,
		Text:      message,
		Timestamp: sentAt,
		Platform:  payload.Platform,
		Device:    payload.DeviceInfo.toDevice(),
	})
	if err != nil {
		a.writeRelayError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSendMessageResponse(reply))
}

func (a *App) getHistory(c *gin.Context) {
	limit := chat.DefaultHistoryLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	messages, err := a.relay.History(c.Request.Context(), c.Param("session_id"), limit)
	if err != nil {
		a.writeRelayError(c, err)
		return
	}
	c.JSON(http.StatusOK, newHistoryResponse(messages))
}
