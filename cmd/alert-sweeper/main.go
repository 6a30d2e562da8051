package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/boddenberg/fincore/internal/app"
	"github.com/boddenberg/fincore/internal/config"
	"github.com/boddenberg/fincore/internal/infra/observability"
	"github.com/boddenberg/fincore/internal/service"

	"go.uber.org/zap"
)

func main() {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	logger := observability.NewLogger(cfg.LogLevel, "alert-sweeper")
	defer logger.Sync()

	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "fincore-alert-sweeper")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	metrics := observability.NewMetrics()

	store, closeStore, err := app.OpenStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open ledger store", zap.Error(err))
	}
	defer closeStore()

	publisher, closePublisher, err := app.OpenPublisher(cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect event publisher", zap.Error(err))
	}
	defer closePublisher()

	budgets := service.NewBudgetService(
		store, store, publisher, publisher,
		nil, // uncached: every sweep reads the ledger
		service.Options{
			StoreTimeout:   cfg.StoreTimeout,
			MaxConcurrency: cfg.MaxConcurrency,
		},
		metrics, logger,
	)
	sweeper := service.NewAlertSweeper(budgets, store, cfg.MaxConcurrency, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("alert sweeper starting", zap.Duration("interval", cfg.AlertSweepInterval))
	sweeper.Run(ctx, cfg.AlertSweepInterval)
	logger.Info("alert sweeper stopped")
}
