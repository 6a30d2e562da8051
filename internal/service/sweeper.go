package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/fincore/internal/infra/resilience"
	"github.com/boddenberg/fincore/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SweepResult summarizes one alert sweep over every organization.
type SweepResult struct {
	Organizations int
	Alerts        int
	Failed        []string
}

// AlertSweeper periodically evaluates budget alerts for all organizations.
type AlertSweeper struct {
	budgets  *BudgetService
	orgs     port.MemberDirectory
	bulkhead *resilience.Bulkhead
	logger   *zap.Logger
}

// NewAlertSweeper creates a sweeper that checks at most maxConcurrency
// organizations at a time.
func NewAlertSweeper(budgets *BudgetService, orgs port.MemberDirectory, maxConcurrency int, logger *zap.Logger) *AlertSweeper {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &AlertSweeper{
		budgets:  budgets,
		orgs:     orgs,
		bulkhead: resilience.NewBulkhead(maxConcurrency),
		logger:   logger,
	}
}

// Sweep runs CheckBudgetAlerts once per organization. A failing
// organization is recorded in the result and does not stop the others.
func (s *AlertSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	ctx, span := tracer.Start(ctx, "AlertSweeper.Sweep")
	defer span.End()

	orgs, err := s.orgs.ListOrganizations(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list organizations: %w", err)
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		res = SweepResult{Organizations: len(orgs)}
	)
	for _, org := range orgs {
		if err := s.bulkhead.Acquire(ctx); err != nil {
			wg.Wait()
			return res, err
		}
		wg.Add(1)
		go func(orgID string) {
			defer wg.Done()
			defer s.bulkhead.Release()

			alerts, err := s.budgets.CheckBudgetAlerts(ctx, orgID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, orgID)
				s.logger.Error("alert sweep failed for organization",
					zap.String("org_id", orgID),
					zap.Error(err),
				)
				return
			}
			res.Alerts += len(alerts)
		}(org.ID)
	}
	wg.Wait()

	span.SetAttributes(
		attribute.Int("sweep.organizations", res.Organizations),
		attribute.Int("sweep.alerts", res.Alerts),
		attribute.Int("sweep.failed", len(res.Failed)),
	)
	return res, nil
}

// Run sweeps immediately and then on every interval tick until ctx is done.
func (s *AlertSweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		res, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Error("alert sweep failed", zap.Error(err))
		} else {
			s.logger.Info("alert sweep completed",
				zap.Int("organizations", res.Organizations),
				zap.Int("alerts", res.Alerts),
				zap.Int("failed", len(res.Failed)),
				zap.Duration("duration", time.Since(start)),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
