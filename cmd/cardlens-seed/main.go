package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cardlens/cardlens/internal/config"
	"github.com/cardlens/cardlens/internal/demo"
	"github.com/cardlens/cardlens/internal/migrations"
	"github.com/cardlens/cardlens/internal/observability"
	"github.com/cardlens/cardlens/internal/schema"
	"github.com/cardlens/cardlens/internal/store"
)

func main() {
	users := flag.Int("users", 10000, "number of demo users to generate")
	seed := flag.Int64("seed", 42, "random seed for the generated population")
	truncate := flag.Bool("truncate", false, "empty the users and purchases tables first")
	batch := flag.Int("batch", 0, "insert batch size; 0 uses the default")
	flag.Parse()

	cfg, err := config.LoadFromEnv("cardlens-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		logger.Error("failed to open warehouse store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	applied, err := migrations.NewRunner().Up(ctx, db, 0)
	if err != nil {
		logger.Error("failed to migrate warehouse", slog.Any("error", err))
		os.Exit(1)
	}
	if applied > 0 {
		logger.Info("applied migrations", slog.Int("count", applied))
	}

	dataset := demo.NewGenerator(*seed, len(schema.Categories())).Generate(*users)
	logger.Info("generated demo population",
		slog.Int("users", len(dataset.Users)),
		slog.Int("purchases", len(dataset.Purchases)),
		slog.Int64("seed", *seed),
	)

	seeder, err := demo.NewSeeder(db, logger, *batch)
	if err != nil {
		logger.Error("failed to initialize seeder", slog.Any("error", err))
		os.Exit(1)
	}
	if err := seeder.Seed(ctx, dataset, *truncate); err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
}
