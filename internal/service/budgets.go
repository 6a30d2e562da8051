package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/fincore/internal/analytics"
	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/infra/observability"
	"github.com/boddenberg/fincore/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxTrendPoints caps the budget trend series.
const MaxTrendPoints = 12

// BudgetService computes budget metrics, trends and alerts, and executes
// budget write commands.
type BudgetService struct {
	ledger   port.Ledger
	members  port.MemberDirectory
	notifier port.Notifier
	cache    *DerivedCache
	events   emitter
	opts     Options
	metrics  *observability.Metrics
	logger   *zap.Logger

	// serializes check-then-save of budget names
	writeMu sync.Mutex
}

// NewBudgetService creates the budget service with all dependencies injected.
func NewBudgetService(
	ledger port.Ledger,
	members port.MemberDirectory,
	notifier port.Notifier,
	sink port.EventSink,
	cache *DerivedCache,
	opts Options,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *BudgetService {
	opts = opts.withDefaults()
	return &BudgetService{
		ledger:   ledger,
		members:  members,
		notifier: notifier,
		cache:    cache,
		events:   emitter{sink: sink, now: opts.Now, metrics: metrics, logger: logger},
		opts:     opts,
		metrics:  metrics,
		logger:   logger,
	}
}

// GetBudgets returns every active budget of the organization with its
// current metrics, newest first.
func (s *BudgetService) GetBudgets(ctx context.Context, orgID string) (out []domain.BudgetWithMetrics, err error) {
	ctx, span := tracer.Start(ctx, "BudgetService.GetBudgets")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID))

	start := time.Now()
	defer func() { track(s.metrics, "budgets.list", start, err) }()

	key := CacheKey(orgID, ScopeBudget, "list")
	if s.cache.load(ctx, observability.CacheBudgets, key, &out) {
		return out, nil
	}

	budgets, err := callStore(ctx, s.opts.StoreTimeout, "ListActiveBudgets", func(ctx context.Context) ([]domain.Budget, error) {
		return s.ledger.ListActiveBudgets(ctx, orgID)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "ListActiveBudgets", "read", err)
		return nil, err
	}

	out, err = s.withMetrics(ctx, orgID, budgets)
	if err != nil {
		return nil, err
	}
	s.cache.save(ctx, observability.CacheBudgets, key, out, s.opts.BudgetCacheTTL)
	return out, nil
}

// GetBudget returns one budget with its current metrics.
func (s *BudgetService) GetBudget(ctx context.Context, orgID, id string) (_ *domain.BudgetWithMetrics, err error) {
	ctx, span := tracer.Start(ctx, "BudgetService.GetBudget")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID), attribute.String("budget.id", id))

	start := time.Now()
	defer func() { track(s.metrics, "budgets.get", start, err) }()

	b, err := s.loadBudget(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	m, err := s.ComputeSpend(ctx, orgID, *b)
	if err != nil {
		return nil, err
	}
	return &domain.BudgetWithMetrics{Budget: *b, SpendMetrics: m}, nil
}

// GetBudgetTrends returns up to MaxTrendPoints budget periods, most recent
// period first, optionally restricted to one category.
func (s *BudgetService) GetBudgetTrends(ctx context.Context, orgID, categoryID string) (out []domain.TrendPoint, err error) {
	ctx, span := tracer.Start(ctx, "BudgetService.GetBudgetTrends")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID), attribute.String("category.id", categoryID))

	start := time.Now()
	defer func() { track(s.metrics, "budgets.trends", start, err) }()

	key := CacheKey(orgID, ScopeBudget, "trends", FilterHash(struct {
		CategoryID string `json:"categoryId"`
	}{categoryID}))
	if s.cache.load(ctx, observability.CacheTrends, key, &out) {
		return out, nil
	}

	budgets, err := callStore(ctx, s.opts.StoreTimeout, "ListActiveBudgets", func(ctx context.Context) ([]domain.Budget, error) {
		return s.ledger.ListActiveBudgets(ctx, orgID)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "ListActiveBudgets", "read", err)
		return nil, err
	}

	selected := make([]domain.Budget, 0, len(budgets))
	for _, b := range budgets {
		if categoryID == "" || b.CategoryID == categoryID {
			selected = append(selected, b)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].PeriodStart.After(selected[j].PeriodStart)
	})
	if len(selected) > MaxTrendPoints {
		selected = selected[:MaxTrendPoints]
	}

	withMetrics, err := s.withMetrics(ctx, orgID, selected)
	if err != nil {
		return nil, err
	}
	out = make([]domain.TrendPoint, 0, len(withMetrics))
	for _, b := range withMetrics {
		out = append(out, domain.TrendPoint{
			BudgetID:       b.ID,
			Name:           b.Name,
			PeriodStart:    b.PeriodStart,
			PeriodEnd:      b.PeriodEnd,
			Allocated:      b.Amount,
			Spent:          b.Spent,
			PercentageUsed: b.PercentageUsed,
			Remaining:      b.Remaining,
		})
	}
	s.cache.save(ctx, observability.CacheTrends, key, out, s.opts.BudgetCacheTTL)
	return out, nil
}

// spendKey identifies a spend computation by every budget field it reads.
type spendKey struct {
	Amount      string    `json:"amount"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
	CategoryID  string    `json:"categoryId"`
}

// ComputeSpend returns spent, remaining and percentage used for one budget
// over its own period.
func (s *BudgetService) ComputeSpend(ctx context.Context, orgID string, b domain.Budget) (m domain.SpendMetrics, err error) {
	ctx, span := tracer.Start(ctx, "BudgetService.ComputeSpend")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID), attribute.String("budget.id", b.ID))

	key := CacheKey(orgID, ScopeBudget, "spend", b.ID, FilterHash(spendKey{
		Amount:      b.Amount.String(),
		PeriodStart: b.PeriodStart.UTC(),
		PeriodEnd:   b.PeriodEnd.UTC(),
		CategoryID:  b.CategoryID,
	}))
	if s.cache.load(ctx, observability.CacheSpend, key, &m) {
		return m, nil
	}

	txs, err := callStore(ctx, s.opts.StoreTimeout, "ListTransactions", func(ctx context.Context) ([]domain.Transaction, error) {
		return s.ledger.ListTransactions(ctx, orgID, analytics.SpendFilter(b))
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "ListTransactions", "read", err)
		return domain.SpendMetrics{}, err
	}

	m = analytics.ComputeSpend(b, txs)
	s.cache.save(ctx, observability.CacheSpend, key, m, s.opts.BudgetCacheTTL)
	return m, nil
}

// CheckBudgetAlerts returns one alert per active budget whose percentage
// used reached its alert threshold, emits a budget.alert event for each and
// asks the notifier to deliver it to the organization's finance members.
// Event and notification failures are logged and do not fail the call.
func (s *BudgetService) CheckBudgetAlerts(ctx context.Context, orgID string) (alerts []domain.Alert, err error) {
	ctx, span := tracer.Start(ctx, "BudgetService.CheckBudgetAlerts")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID))

	start := time.Now()
	defer func() { track(s.metrics, "budgets.alerts", start, err) }()

	budgets, err := s.GetBudgets(ctx, orgID)
	if err != nil {
		return nil, err
	}

	alerts = []domain.Alert{}
	for _, b := range budgets {
		if b.PercentageUsed.GreaterThanOrEqual(b.AlertThreshold) {
			alerts = append(alerts, domain.Alert{
				BudgetID:       b.ID,
				BudgetName:     b.Name,
				PercentageUsed: b.PercentageUsed,
				Threshold:      b.AlertThreshold,
				Spent:          b.Spent,
				BudgetAmount:   b.Amount,
				Currency:       b.Currency,
			})
		}
	}
	span.SetAttributes(attribute.Int("alerts.count", len(alerts)))
	if len(alerts) == 0 {
		return alerts, nil
	}

	recipients := s.financeRecipients(ctx, orgID)
	for _, a := range alerts {
		s.events.emit(ctx, domain.EventBudgetAlert, orgID, a)
		if len(recipients) == 0 || s.notifier == nil {
			continue
		}
		if err := s.notifier.Notify(ctx, recipients, a); err != nil {
			s.metrics.IncrDropped("notification")
			s.logger.Warn("budget alert notification failed",
				zap.String("org_id", orgID),
				zap.String("budget_id", a.BudgetID),
				zap.Error(err),
			)
		}
	}
	s.metrics.AddAlerts(len(alerts))
	s.logger.Info("budget alerts detected",
		zap.String("org_id", orgID),
		zap.Int("alerts", len(alerts)),
		zap.Int("recipients", len(recipients)),
	)
	return alerts, nil
}

func (s *BudgetService) financeRecipients(ctx context.Context, orgID string) []domain.Member {
	if s.members == nil {
		return nil
	}
	members, err := callStore(ctx, s.opts.StoreTimeout, "ListMembers", func(ctx context.Context) ([]domain.Member, error) {
		return s.members.ListMembers(ctx, orgID)
	})
	if err != nil {
		s.logger.Warn("could not resolve alert recipients", zap.String("org_id", orgID), zap.Error(err))
		return nil
	}
	var out []domain.Member
	for _, m := range members {
		if m.IsFinanceCapable() {
			out = append(out, m)
		}
	}
	return out
}

// withMetrics computes spend for every budget concurrently, preserving order.
func (s *BudgetService) withMetrics(ctx context.Context, orgID string, budgets []domain.Budget) ([]domain.BudgetWithMetrics, error) {
	out := make([]domain.BudgetWithMetrics, len(budgets))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrency)
	for i, b := range budgets {
		g.Go(func() error {
			m, err := s.ComputeSpend(gCtx, orgID, b)
			if err != nil {
				return err
			}
			out[i] = domain.BudgetWithMetrics{Budget: b, SpendMetrics: m}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BudgetService) loadBudget(ctx context.Context, orgID, id string) (*domain.Budget, error) {
	b, err := callStore(ctx, s.opts.StoreTimeout, "GetBudget", func(ctx context.Context) (*domain.Budget, error) {
		return s.ledger.GetBudget(ctx, orgID, id)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "GetBudget", "read", err)
		return nil, err
	}
	return b, nil
}
