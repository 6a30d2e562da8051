// Package service implements the engine operations: budget metrics and
// alerts, report generation, runway simulation and the write commands that
// keep the derived-value cache coherent.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/infra/observability"
	"github.com/boddenberg/fincore/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/engine")

// Options tunes timeouts, TTLs and fan-out of the engine services.
type Options struct {
	StoreTimeout   time.Duration
	BudgetCacheTTL time.Duration
	ReportCacheTTL time.Duration
	MaxConcurrency int

	Now   func() time.Time
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 2 * time.Second
	}
	if o.BudgetCacheTTL <= 0 {
		o.BudgetCacheTTL = 30 * time.Minute
	}
	if o.ReportCacheTTL <= 0 {
		o.ReportCacheTTL = time.Hour
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 8
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// callStore bounds a store call by timeout and reports an expired deadline
// as a retryable ErrTimeout.
func callStore[T any](ctx context.Context, timeout time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		var zero T
		return zero, &domain.ErrTimeout{Operation: op}
	}
	return v, err
}

// execStore is callStore for calls without a result.
func execStore(ctx context.Context, timeout time.Duration, op string, fn func(context.Context) error) error {
	_, err := callStore(ctx, timeout, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// track records duration and outcome of a public operation.
func track(m *observability.Metrics, op string, start time.Time, err error) {
	m.RecordRequestDuration(op, time.Since(start))
	if err != nil {
		m.IncrRequest("error")
		return
	}
	m.IncrRequest("success")
}

// storeFailed counts store failures that are not business-rule violations.
func storeFailed(m *observability.Metrics, logger *zap.Logger, op, kind string, err error) {
	if domain.IsBusinessError(err) {
		return
	}
	m.IncrLedgerError(kind)
	logger.Error("ledger call failed", zap.String("operation", op), zap.Error(err))
}

// emitter publishes domain events without failing the caller.
type emitter struct {
	sink    port.EventSink
	now     func() time.Time
	metrics *observability.Metrics
	logger  *zap.Logger
}

func (e emitter) emit(ctx context.Context, name, orgID string, payload any) {
	if e.sink == nil {
		return
	}
	ev := domain.Event{Name: name, OrganizationID: orgID, Payload: payload, OccurredAt: e.now()}
	if err := e.sink.Emit(ctx, ev); err != nil {
		e.metrics.IncrDropped("event")
		e.logger.Warn("event emit failed",
			zap.String("event", name),
			zap.String("org_id", orgID),
			zap.Error(err),
		)
	}
}
