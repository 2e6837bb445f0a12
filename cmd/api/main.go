package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"m10support/backend/internal/chat"
	"m10support/backend/internal/completion"
	"m10support/backend/internal/config"
	"m10support/backend/internal/db"
	"m10support/backend/internal/knowledge"
	"m10support/backend/internal/logging"
	"m10support/backend/internal/server"
	"m10support/backend/internal/store"
	"m10support/backend/internal/telegram"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	backend, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store init failed", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	keywords := chat.DefaultKeywordTable()
	if path := strings.TrimSpace(cfg.KeywordTablePath); path != "" {
		keywords, err = chat.LoadKeywordTable(path)
		if err != nil {
			logger.Fatal("keyword table load failed", zap.String("path", path), zap.Error(err))
		}
	}

	dispatcher := chat.NewDispatcher(15*time.Second, logger)
	var bot *telegram.Client
	if cfg.TelegramConfigured() {
		bot = telegram.NewClient(&http.Client{Timeout: 60 * time.Second}, cfg.TelegramAPIBaseURL, cfg.TelegramBotToken)
	}

	var responder chat.Responder
	switch cfg.ResponseMode {
	case config.ModeKeyword:
		responder = chat.NewKeywordResponder(keywords)
	case config.ModeHandoff:
		notifier := telegram.NewNotifier(bot, cfg.TelegramAdminChatID, time.Local)
		responder = chat.NewHandoffResponder(backend, notifier, dispatcher)
	default:
		var searcher chat.KnowledgeSearcher
		if cfg.ConfluenceConfigured() {
			searcher = knowledge.NewConfluence(cfg)
		}
		responder = chat.NewAIResponder(completion.NewHTTPClient(cfg), cfg.CompletionModel, keywords, searcher, logger)
	}

	relay := chat.NewService(backend, responder, chat.LanguagePolicy{
		Detect:   cfg.LanguageMode == config.LanguageDetect,
		Fallback: cfg.DefaultLanguage,
	}, logger)

	app := server.New(cfg, relay, bot, logger)
	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	pollCtx, stopPolling := context.WithCancel(context.Background())
	defer stopPolling()
	if cfg.ResponseMode == config.ModeHandoff && cfg.TelegramPollEnabled && app.Ingestor() != nil {
		poller := telegram.NewPoller(bot, app.Ingestor(), logger)
		go func() {
			_ = poller.Run(pollCtx)
		}()
	}

	go func() {
		logger.Info("m10 support api listening",
			zap.String("addr", "http://localhost:"+cfg.AppPort),
			zap.String("mode", cfg.ResponseMode),
			zap.String("store", cfg.StoreDriver),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	stopPolling()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("operator notifications still in flight", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.Config) (chat.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := store.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := store.ValidatePostgresSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store.NewPostgres(pool), pool.Close, nil
	case config.StoreSQLite:
		sqlite, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return sqlite, func() { _ = sqlite.Close() }, nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}
