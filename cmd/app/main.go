package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"linebridge/internal/config"
	"linebridge/internal/httpserver"
	"linebridge/internal/line"
	"linebridge/internal/llm"
	"linebridge/internal/translate"
	"linebridge/internal/transport"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	httpClient := transport.NewHTTPClient(cfg.RequestTimeout)
	llmClient := llm.NewOpenAIClient(cfg.OpenAI, httpClient, logger)
	translator := llm.NewChatTranslator(llmClient, cfg.OpenAI.Timeout)

	var store translate.Store
	switch strings.ToLower(cfg.Store.Type) {
	case "memory":
		store = translate.NewMemoryStore()
	default:
		fileStore, err := translate.NewFileStore(cfg.Store.Path, cfg.Store.FlushDebounce, logger)
		if err != nil {
			log.Fatalf("failed to init file store: %v", err)
		}
		store = fileStore
	}

	classifier, err := translate.NewClassifier(translate.ClassifierConfig{})
	if err != nil {
		log.Fatalf("failed to init classifier: %v", err)
	}

	service := translate.NewService(store, translator, classifier, translate.Config{
		ContextDepth:      cfg.Translate.ContextDepth,
		CacheCapacity:     cfg.Translate.CacheCapacity,
		ConsistencyWindow: cfg.Translate.ConsistencyWindow,
		RefreshLastOnHit:  cfg.Translate.RefreshLastOnHit,
	}, logger)

	botClient := line.NewClient(cfg.Line, httpClient)
	webhookHandler := line.NewWebhookHandler(line.WebhookDeps{
		Translator:    service,
		Bot:           botClient,
		Logger:        logger,
		ChannelSecret: cfg.Line.ChannelSecret,
		EventMaxAge:   cfg.Line.EventMaxAge,
	})

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Logger:         logger,
		WebhookHandler: webhookHandler,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
	if err := store.Close(); err != nil {
		logger.Error("store close error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	slogLevel := slog.LevelInfo
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}
