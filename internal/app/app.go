// Package app wires the infrastructure adapters selected by configuration.
// Both binaries share it so the API and the alert sweeper always read the
// same ledger and publish to the same sink.
package app

import (
	"github.com/boddenberg/fincore/internal/config"
	"github.com/boddenberg/fincore/internal/infra/events"
	"github.com/boddenberg/fincore/internal/infra/memory"
	"github.com/boddenberg/fincore/internal/infra/resilience"
	"github.com/boddenberg/fincore/internal/infra/sqlite"
	"github.com/boddenberg/fincore/internal/port"

	"go.uber.org/zap"
)

// Store is everything the engine reads and writes.
type Store interface {
	port.Ledger
	port.ReportStore
	port.MemberDirectory
}

// Publisher carries domain events and alert notifications.
type Publisher interface {
	port.EventSink
	port.Notifier
}

// ResilienceConfig extracts the retry/bulkhead settings.
func ResilienceConfig(cfg *config.Config) resilience.Config {
	return resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
}

// OpenStore opens the SQLite ledger at cfg.DatabasePath, or an in-memory
// ledger when the path is empty. The returned func releases the store.
func OpenStore(cfg *config.Config, logger *zap.Logger) (Store, func() error, error) {
	if cfg.DatabasePath == "" {
		logger.Warn("DATABASE_PATH empty, using in-memory ledger; data is lost on restart")
		return memory.NewLedger(), func() error { return nil }, nil
	}

	store, err := sqlite.Open(cfg.DatabasePath, ResilienceConfig(cfg), logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using SQLite ledger", zap.String("path", cfg.DatabasePath))
	return store, store.Close, nil
}

// OpenPublisher dials the AMQP broker when AMQP_URL is set and otherwise
// logs events and notifications.
func OpenPublisher(cfg *config.Config, logger *zap.Logger) (Publisher, func() error, error) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP_URL empty, events and notifications are logged only")
		return events.NewLogSink(logger), func() error { return nil }, nil
	}

	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("publishing events to AMQP", zap.String("exchange", cfg.AMQPExchange))
	return pub, pub.Close, nil
}
