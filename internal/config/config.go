package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	ModeAI      = "ai"
	ModeKeyword = "keyword"
	ModeHandoff = "handoff"

	LanguageFixed  = "fixed"
	LanguageDetect = "detect"
)

type Config struct {
	AppEnv           string
	AppName          string
	AppVersion       string
	APIPrefix        string
	AppPort          string
	StoreDriver      string
	DatabaseURL      string
	SQLitePath       string
	CORSAllowOrigins []string
	ResponseMode     string
	LanguageMode     string
	DefaultLanguage  string

	CompletionAPIKey         string
	CompletionBaseURL        string
	CompletionModel          string
	CompletionTemperature    float64
	CompletionMaxTokens      int
	CompletionTimeoutSeconds int
	KeywordTablePath         string

	TelegramBotToken      string
	TelegramAPIBaseURL    string
	TelegramAdminChatID   string
	TelegramWebhookSecret string
	TelegramPollEnabled   bool

	OperatorJWTSecret string
	OperatorJWTIssuer string

	ConfluenceBaseURL  string
	ConfluenceEmail    string
	ConfluenceAPIToken string
	ConfluenceSpaceKey string

	LogLevel string
	LogFile  string
}

func Load() Config {
	_ = godotenv.Load(".env")

	return Config{
		AppEnv:           getEnv("APP_ENV", "local"),
		AppName:          getEnv("APP_NAME", "M10 Support API"),
		AppVersion:       getEnv("APP_VERSION", "1.0.0"),
		APIPrefix:        getEnv("API_PREFIX", "/api/v1/chat/ios"),
		AppPort:          getEnv("APP_PORT", "8000"),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SQLitePath:       getEnv("SQLITE_PATH", "m10_support.db"),
		CORSAllowOrigins: getEnvCSV("CORS_ALLOW_ORIGINS", []string{"*"}),
		ResponseMode:     strings.ToLower(getEnv("RESPONSE_MODE", ModeAI)),
		LanguageMode:     strings.ToLower(getEnv("LANGUAGE_MODE", LanguageFixed)),
		DefaultLanguage:  getEnv("DEFAULT_LANGUAGE", "az"),

		CompletionAPIKey:         getEnv("COMPLETION_API_KEY", getEnv("KIMI_API_KEY", "")),
		CompletionBaseURL:        getEnv("COMPLETION_BASE_URL", "https://api.moonshot.cn/v1"),
		CompletionModel:          getEnv("COMPLETION_MODEL", "kimi-k2-turbo-preview"),
		CompletionTemperature:    getEnvFloat("COMPLETION_TEMPERATURE", 0.7),
		CompletionMaxTokens:      getEnvInt("COMPLETION_MAX_TOKENS", 500),
		CompletionTimeoutSeconds: getEnvInt("COMPLETION_TIMEOUT_SECONDS", 30),
		KeywordTablePath:         getEnv("KEYWORD_TABLE_PATH", ""),

		TelegramBotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAPIBaseURL:    getEnv("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),
		TelegramAdminChatID:   getEnv("TELEGRAM_ADMIN_CHAT_ID", getEnv("ADMIN_CHAT_ID", "")),
		TelegramWebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		TelegramPollEnabled:   getEnvBool("TELEGRAM_POLL_ENABLED", false),

		OperatorJWTSecret: getEnv("OPERATOR_JWT_SECRET", ""),
		OperatorJWTIssuer: getEnv("OPERATOR_JWT_ISSUER", ""),

		ConfluenceBaseURL:  getEnv("CONFLUENCE_BASE_URL", ""),
		ConfluenceEmail:    getEnv("CONFLUENCE_EMAIL", ""),
		ConfluenceAPIToken: getEnv("CONFLUENCE_API_TOKEN", ""),
		ConfluenceSpaceKey: getEnv("CONFLUENCE_SPACE_KEY", "M10SUPPORT"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of memory, postgres, sqlite; got %q", c.StoreDriver)
	}
	if c.StoreDriver == StoreSQLite && strings.TrimSpace(c.SQLitePath) == "" {
		return errors.New("SQLITE_PATH is required when STORE_DRIVER=sqlite")
	}

	switch c.ResponseMode {
	case ModeAI, ModeKeyword, ModeHandoff:
	default:
		return fmt.Errorf("RESPONSE_MODE must be one of ai, keyword, handoff; got %q", c.ResponseMode)
	}
	switch c.LanguageMode {
	case LanguageFixed, LanguageDetect:
	default:
		return fmt.Errorf("LANGUAGE_MODE must be fixed or detect; got %q", c.LanguageMode)
	}
	if strings.TrimSpace(c.DefaultLanguage) == "" {
		return errors.New("DEFAULT_LANGUAGE is required")
	}

	if c.CompletionTemperature < 0 || c.CompletionTemperature > 2 {
		return errors.New("COMPLETION_TEMPERATURE must be between 0 and 2")
	}
	if c.CompletionMaxTokens <= 0 {
		return errors.New("COMPLETION_MAX_TOKENS must be positive")
	}
	if c.CompletionTimeoutSeconds <= 0 {
		return errors.New("COMPLETION_TIMEOUT_SECONDS must be positive")
	}

	if c.TelegramPollEnabled && strings.TrimSpace(c.TelegramBotToken) == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required when TELEGRAM_POLL_ENABLED=true")
	}
	if secret := strings.TrimSpace(c.OperatorJWTSecret); secret != "" && len(secret) < 16 {
		return errors.New("OPERATOR_JWT_SECRET is too short; use at least 16 characters")
	}
	return nil
}

// TelegramConfigured reports whether operator notifications can be delivered.
func (c Config) TelegramConfigured() bool {
	return strings.TrimSpace(c.TelegramBotToken) != "" && strings.TrimSpace(c.TelegramAdminChatID) != ""
}

func (c Config) ConfluenceConfigured() bool {
	return strings.TrimSpace(c.ConfluenceBaseURL) != "" && strings.TrimSpace(c.ConfluenceAPIToken) != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvCSV(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, item := range parts {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}
