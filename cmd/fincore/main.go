package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/fincore/internal/app"
	"github.com/boddenberg/fincore/internal/config"
	"github.com/boddenberg/fincore/internal/handler"
	"github.com/boddenberg/fincore/internal/infra/cache"
	"github.com/boddenberg/fincore/internal/infra/observability"
	"github.com/boddenberg/fincore/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, "fincore")
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("database_path", cfg.DatabasePath),
		zap.Duration("store_timeout", cfg.StoreTimeout),
		zap.Duration("cache_timeout", cfg.CacheTimeout),
		zap.Duration("budget_cache_ttl", cfg.BudgetCacheTTL),
		zap.Duration("report_cache_ttl", cfg.ReportCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "fincore")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	store, closeStore, err := app.OpenStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open ledger store", zap.Error(err))
	}
	defer closeStore()

	// --- Events ---
	publisher, closePublisher, err := app.OpenPublisher(cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect event publisher", zap.Error(err))
	}
	defer closePublisher()

	// --- Cache ---
	cacheStore := cache.New(cfg.CacheMaxEntries, time.Minute)
	defer cacheStore.Close()
	derived := service.NewDerivedCache(cacheStore, cfg.CacheTimeout, metrics, logger)

	// --- Services ---
	opts := service.Options{
		StoreTimeout:   cfg.StoreTimeout,
		BudgetCacheTTL: cfg.BudgetCacheTTL,
		ReportCacheTTL: cfg.ReportCacheTTL,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	budgets := service.NewBudgetService(store, store, publisher, publisher, derived, opts, metrics, logger)
	services := handler.Services{
		Budgets:      budgets,
		Categories:   service.NewCategoryService(store, publisher, derived, opts, metrics, logger),
		Transactions: service.NewTransactionService(store, publisher, derived, opts, metrics, logger),
		Reports:      service.NewReportService(store, store, budgets, publisher, derived, opts, metrics, logger),
		Runway:       service.NewRunwayService(metrics, logger),
	}
	if p, ok := store.(handler.Pinger); ok {
		services.Store = p
	}

	// --- Router ---
	router := handler.NewRouter(services, []byte(cfg.JWTSecret), metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
