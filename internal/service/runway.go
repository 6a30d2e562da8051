package service

import (
	"context"
	"time"

	"github.com/boddenberg/fincore/internal/analytics"
	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/infra/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RunwayService exposes the runway simulator.
type RunwayService struct {
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRunwayService creates the runway service.
func NewRunwayService(metrics *observability.Metrics, logger *zap.Logger) *RunwayService {
	return &RunwayService{metrics: metrics, logger: logger}
}

// SimulateRunway projects burn rate and runway from the given inputs.
func (s *RunwayService) SimulateRunway(ctx context.Context, in domain.RunwayInputs) (_ *domain.RunwayResult, err error) {
	_, span := tracer.Start(ctx, "RunwayService.SimulateRunway")
	defer span.End()

	start := time.Now()
	defer func() { track(s.metrics, "runway.simulate", start, err) }()

	if in.CurrentCash.IsNegative() {
		return nil, &domain.ErrValidation{Field: "currentCash", Message: "must not be negative"}
	}

	res := analytics.Simulate(in)
	span.SetAttributes(
		attribute.String("runway.risk", string(res.RiskLevel)),
		attribute.Bool("runway.unbounded", res.Unbounded),
	)
	s.logger.Debug("runway simulated",
		zap.String("burn_rate", res.NewBurnRate.String()),
		zap.Float64("runway_months", res.NewRunwayMonths),
		zap.String("risk", string(res.RiskLevel)),
	)
	return &res, nil
}
