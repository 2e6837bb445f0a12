package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"m10support/backend/internal/chat"
	"m10support/backend/internal/config"
	"m10support/backend/internal/telegram"
)

const operatorContextKey = "operatorSubject"

type App struct {
	cfg      config.Config
	relay    *chat.Service
	bot      *telegram.Client
	ingestor *telegram.Ingestor
	logger   *zap.Logger
}

// New wires the HTTP surface. bot may be nil when Telegram is not configured.
func New(cfg config.Config, relay *chat.Service, bot *telegram.Client, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, relay: relay, bot: bot, logger: logger}
	if bot != nil {
		app.ingestor = telegram.NewIngestor(bot, relay, cfg.TelegramAdminChatID, logger)
	}
	return app
}

// Ingestor exposes the Telegram reply ingestor for the long-poll loop.
func (a *App) Ingestor() *telegram.Ingestor {
	return a.ingestor
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(a.logger), gin.CustomRecovery(a.recoverPanic))
	router.Use(cors.New(a.corsConfig()))

	router.GET("/", a.health)
	router.GET("/health", a.health)

	api := router.Group(a.cfg.APIPrefix)
	api.POST("/session", a.createSession)
	api.POST("/message", a.sendMessage)
	api.GET("/history/:session_id", a.getHistory)

	if a.cfg.ResponseMode == config.ModeHandoff {
		operator := router.Group("/webhook")
		operator.POST("/operator", a.operatorAuthMiddleware(), a.operatorReply)
		operator.POST("/telegram/:session_id", a.operatorAuthMiddleware(), a.legacyTelegramReply)
		operator.POST("/telegram", a.telegramUpdate)
		router.GET("/config/telegram", a.telegramConfig)
	}

	return router
}

func (a *App) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Telegram-Bot-Api-Secret-Token"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range a.cfg.CORSAllowOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = a.cfg.CORSAllowOrigins
	cfg.AllowCredentials = true
	return cfg
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":              "ok",
		"service":             a.cfg.AppName,
		"version":             a.cfg.AppVersion,
		"mode":                a.cfg.ResponseMode,
		"telegram_configured": a.cfg.TelegramConfigured(),
	})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

func (a *App) recoverPanic(c *gin.Context, recovered any) {
	a.logger.Error("panic while handling request",
		zap.String("path", c.FullPath()),
		zap.Any("panic", recovered),
		zap.Stack("stack"),
	)
	writeError(c, http.StatusInternalServerError, fmt.Sprint(recovered))
}

// operatorAuthMiddleware requires an HS256 bearer token when
// OPERATOR_JWT_SECRET is set and passes requests through otherwise.
func (a *App) operatorAuthMiddleware() gin.HandlerFunc {
	secret := strings.TrimSpace(a.cfg.OperatorJWTSecret)
	issuer := strings.TrimSpace(a.cfg.OperatorJWTIssuer)
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Invalid token payload")
			return
		}
		if issuer != "" {
			tokenIssuer, _ := claims["iss"].(string)
			if tokenIssuer != issuer {
				writeError(c, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
		}
		sub, _ := claims["sub"].(string)
		c.Set(operatorContextKey, strings.TrimSpace(sub))
		c.Next()
	}
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// writeRelayError maps relay errors onto HTTP statuses.
func (a *App) writeRelayError(c *gin.Context, err error) {
	var storageErr *chat.StorageError
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		writeError(c, http.StatusNotFound, "Session not found")
	case errors.As(err, &storageErr):
		a.logger.Error("storage failure", zap.String("op", storageErr.Op), zap.Error(storageErr.Err))
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, err.Error())
	default:
		a.logger.Error("relay failure", zap.Error(err))
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, err.Error())
	}
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

var clientTimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseClientTimestamp accepts RFC 3339 and zone-less ISO timestamps, which
// are read as UTC.
func parseClientTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}
	for _, layout := range clientTimestampLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", value)
}
