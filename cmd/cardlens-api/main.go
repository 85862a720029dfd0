package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardlens/cardlens/internal/api"
	"github.com/cardlens/cardlens/internal/chat"
	"github.com/cardlens/cardlens/internal/config"
	"github.com/cardlens/cardlens/internal/narrative"
	"github.com/cardlens/cardlens/internal/nl2sql"
	"github.com/cardlens/cardlens/internal/observability"
	"github.com/cardlens/cardlens/internal/query"
	"github.com/cardlens/cardlens/internal/schema"
	"github.com/cardlens/cardlens/internal/store"
)

func main() {
	cfg, err := config.LoadFromEnv("cardlens-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	db, err := store.Open(context.Background(), cfg.Store)
	if err != nil {
		logger.Error("failed to open warehouse store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	descriptor := schema.Default()

	var translator nl2sql.Translator
	if cfg.AI.TranslateEnabled {
		translator, err = nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.TranslatorModel,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.TranslateTimeout,
		})
		if err != nil {
			logger.Error("failed to initialize query translator", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var narrator narrative.Narrator
	if cfg.AI.APIKey != "" {
		narrator, err = narrative.NewOpenAINarrator(narrative.OpenAIConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.NarratorModel,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.NarrateTimeout,
		})
		if err != nil {
			logger.Error("failed to initialize narrator", slog.Any("error", err))
			os.Exit(1)
		}
	}

	executor := query.NewExecutor(db, cfg.Answer.RowLimit)
	answers := &chat.Service{
		Synthesizer: nl2sql.NewSynthesizer(nl2sql.NewRules(nil), translator, descriptor.PromptContext(), logger),
		Executor:    executor,
		Narrator:    narrator,
		Logger:      logger,
	}

	deps := api.Dependencies{
		Logger:    logger,
		Chat:      answers,
		Executor:  executor,
		Schema:    descriptor,
		Readiness: api.CheckStore(db),
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("store", cfg.Store.Kind),
			slog.Bool("translator", translator != nil),
			slog.Bool("narrator", narrator != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
