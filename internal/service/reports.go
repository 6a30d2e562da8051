package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/boddenberg/fincore/internal/analytics"
	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/infra/observability"
	"github.com/boddenberg/fincore/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TopExpensesLimit is the number of expenses listed in expense analytics.
const TopExpensesLimit = 10

// SpendComputer computes the metrics of one budget over its own period.
type SpendComputer interface {
	ComputeSpend(ctx context.Context, orgID string, b domain.Budget) (domain.SpendMetrics, error)
}

// ReportService generates, persists and lists reports.
type ReportService struct {
	ledger  port.LedgerReader
	reports port.ReportStore
	spend   SpendComputer
	cache   *DerivedCache
	events  emitter
	opts    Options
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewReportService creates the report service.
func NewReportService(
	ledger port.LedgerReader,
	reports port.ReportStore,
	spend SpendComputer,
	sink port.EventSink,
	cache *DerivedCache,
	opts Options,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ReportService {
	opts = opts.withDefaults()
	return &ReportService{
		ledger:  ledger,
		reports: reports,
		spend:   spend,
		cache:   cache,
		events:  emitter{sink: sink, now: opts.Now, metrics: metrics, logger: logger},
		opts:    opts,
		metrics: metrics,
		logger:  logger,
	}
}

// GenerateReport computes a report payload, consulting the cache first,
// and persists a new immutable report record generated by principal.
func (s *ReportService) GenerateReport(ctx context.Context, orgID, principal string, reportType domain.ReportType, filters domain.ReportFilters) (_ *domain.Report, err error) {
	ctx, span := tracer.Start(ctx, "ReportService.GenerateReport")
	defer span.End()
	span.SetAttributes(
		attribute.String("org.id", orgID),
		attribute.String("report.type", string(reportType)),
	)

	start := time.Now()
	defer func() { track(s.metrics, "reports.generate", start, err) }()

	if !reportType.Valid() {
		return nil, &domain.ErrValidation{Field: "type", Message: "unknown report type " + string(reportType)}
	}
	filters, err = normalizeFilters(filters)
	if err != nil {
		return nil, err
	}

	var payload json.RawMessage
	key := CacheKey(orgID, ScopeReport, string(reportType), FilterHash(filters))
	if !s.cache.load(ctx, observability.CacheReports, key, &payload) {
		payload, err = s.compute(ctx, orgID, reportType, filters)
		if err != nil {
			return nil, err
		}
		s.cache.save(ctx, observability.CacheReports, key, payload, s.opts.ReportCacheTTL)
	}

	r := &domain.Report{
		ID:             s.opts.NewID(),
		OrganizationID: orgID,
		Name:           reportName(reportType, filters),
		Description:    fmt.Sprintf("%s report generated for the selected period", reportType.Title()),
		Type:           reportType,
		Filters:        filters,
		Payload:        payload,
		GeneratedBy:    principal,
		GeneratedAt:    s.opts.Now(),
	}
	if err := execStore(ctx, s.opts.StoreTimeout, "CreateReport", func(ctx context.Context) error {
		return s.reports.CreateReport(ctx, r)
	}); err != nil {
		storeFailed(s.metrics, s.logger, "CreateReport", "write", err)
		return nil, err
	}

	s.metrics.IncrReport(reportType)
	s.events.emit(ctx, domain.EventReportGenerated, orgID, map[string]any{
		"organizationId": orgID,
		"reportId":       r.ID,
		"type":           r.Type,
		"name":           r.Name,
	})
	s.logger.Info("report generated",
		zap.String("org_id", orgID),
		zap.String("report_id", r.ID),
		zap.String("type", string(reportType)),
	)
	return r, nil
}

// ListReports returns the organization's reports newest first. An empty
// reportType lists every type.
func (s *ReportService) ListReports(ctx context.Context, orgID string, reportType domain.ReportType) ([]domain.Report, error) {
	ctx, span := tracer.Start(ctx, "ReportService.ListReports")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID))

	if reportType != "" && !reportType.Valid() {
		return nil, &domain.ErrValidation{Field: "type", Message: "unknown report type " + string(reportType)}
	}
	out, err := callStore(ctx, s.opts.StoreTimeout, "ListReports", func(ctx context.Context) ([]domain.Report, error) {
		return s.reports.ListReports(ctx, orgID, reportType)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "ListReports", "read", err)
		return nil, err
	}
	return out, nil
}

// GetReport returns one report of the organization.
func (s *ReportService) GetReport(ctx context.Context, orgID, id string) (*domain.Report, error) {
	ctx, span := tracer.Start(ctx, "ReportService.GetReport")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID), attribute.String("report.id", id))

	r, err := callStore(ctx, s.opts.StoreTimeout, "GetReport", func(ctx context.Context) (*domain.Report, error) {
		return s.reports.GetReport(ctx, orgID, id)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "GetReport", "read", err)
		return nil, err
	}
	return r, nil
}

func (s *ReportService) compute(ctx context.Context, orgID string, t domain.ReportType, f domain.ReportFilters) (json.RawMessage, error) {
	var (
		payload any
		err     error
	)
	switch t {
	case domain.ReportProfitLoss:
		payload, err = s.profitLoss(ctx, orgID, f)
	case domain.ReportCashFlow:
		payload, err = s.cashFlow(ctx, orgID, f)
	case domain.ReportExpenseAnalytics:
		payload, err = s.expenseAnalytics(ctx, orgID, f)
	case domain.ReportBudgetVsActual:
		payload, err = s.budgetVsActual(ctx, orgID, f)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(payload)
}

func (s *ReportService) profitLoss(ctx context.Context, orgID string, f domain.ReportFilters) (*domain.ProfitLossPayload, error) {
	txs, err := s.transactions(ctx, orgID, f, domain.FlowIncome, domain.FlowExpense)
	if err != nil {
		return nil, err
	}
	names, err := s.categoryNames(ctx, orgID)
	if err != nil {
		return nil, err
	}

	incomeTxs, expenseTxs := analytics.SplitByFlow(txs)
	income, expenses := analytics.Totals(txs)
	net := income.Sub(expenses)

	return &domain.ProfitLossPayload{
		Period: domain.Period{StartDate: f.StartDate, EndDate: f.EndDate},
		Summary: domain.ProfitLossSummary{
			TotalIncome:   income,
			TotalExpenses: expenses,
			NetProfit:     net,
			ProfitMargin:  analytics.Percentage(net, income),
		},
		Income: domain.FlowSide{
			Total:      income,
			ByCategory: analytics.Breakdown(analytics.GroupByCategory(incomeTxs), names),
		},
		Expenses: domain.FlowSide{
			Total:      expenses,
			ByCategory: analytics.Breakdown(analytics.GroupByCategory(expenseTxs), names),
		},
	}, nil
}

func (s *ReportService) cashFlow(ctx context.Context, orgID string, f domain.ReportFilters) (*domain.CashFlowPayload, error) {
	txs, err := s.transactions(ctx, orgID, f, domain.FlowIncome, domain.FlowExpense)
	if err != nil {
		return nil, err
	}
	income, expenses := analytics.Totals(txs)
	return &domain.CashFlowPayload{
		Period: domain.Period{StartDate: f.StartDate, EndDate: f.EndDate},
		Summary: domain.CashFlowSummary{
			TotalIncome:   income,
			TotalExpenses: expenses,
			NetCashFlow:   income.Sub(expenses),
		},
		MonthlyFlow: analytics.GroupByMonth(txs),
	}, nil
}

func (s *ReportService) expenseAnalytics(ctx context.Context, orgID string, f domain.ReportFilters) (*domain.ExpenseAnalyticsPayload, error) {
	txs, err := s.transactions(ctx, orgID, f, domain.FlowExpense)
	if err != nil {
		return nil, err
	}
	names, err := s.categoryNames(ctx, orgID)
	if err != nil {
		return nil, err
	}

	total := analytics.SumExpenses(txs)
	months := analytics.GroupByMonth(txs)
	return &domain.ExpenseAnalyticsPayload{
		Period: domain.Period{StartDate: f.StartDate, EndDate: f.EndDate},
		Summary: domain.ExpenseSummary{
			TotalExpenses:    total,
			TransactionCount: len(txs),
			AverageExpense:   analytics.Average(total, len(txs)),
		},
		ByCategory:       analytics.Breakdown(analytics.GroupByCategory(txs), names),
		MonthlyBreakdown: months,
		TopExpenses:      analytics.TopExpenses(txs, TopExpensesLimit),
		Trends:           analytics.DetectTrend(months),
	}, nil
}

// budgetVsActual compares every active budget overlapping the report range
// against its EXPENSE spending. Budgets scoped to an INCOME category are left out.
func (s *ReportService) budgetVsActual(ctx context.Context, orgID string, f domain.ReportFilters) (*domain.BudgetVsActualPayload, error) {
	budgets, err := callStore(ctx, s.opts.StoreTimeout, "ListActiveBudgets", func(ctx context.Context) ([]domain.Budget, error) {
		return s.ledger.ListActiveBudgets(ctx, orgID)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "ListActiveBudgets", "read", err)
		return nil, err
	}
	cats, err := s.categories(ctx, orgID)
	if err != nil {
		return nil, err
	}
	incomeCats := map[string]bool{}
	for _, c := range cats {
		if c.Type == domain.FlowIncome {
			incomeCats[c.ID] = true
		}
	}

	included := make([]domain.Budget, 0, len(budgets))
	for _, b := range budgets {
		if !b.Overlaps(f.StartDate, f.EndDate) || incomeCats[b.CategoryID] {
			continue
		}
		if len(f.BudgetIDs) > 0 && !slices.Contains(f.BudgetIDs, b.ID) {
			continue
		}
		included = append(included, b)
	}

	rows := make([]domain.BudgetVariance, len(included))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrency)
	for i, b := range included {
		g.Go(func() error {
			m, err := s.spend.ComputeSpend(gCtx, orgID, b)
			if err != nil {
				return err
			}
			variance := b.Amount.Sub(m.Spent)
			rows[i] = domain.BudgetVariance{
				BudgetID:           b.ID,
				BudgetName:         b.Name,
				CategoryID:         b.CategoryID,
				BudgetAmount:       b.Amount,
				ActualAmount:       m.Spent,
				Variance:           variance,
				VariancePercentage: analytics.Percentage(variance, b.Amount),
				PercentageUsed:     m.PercentageUsed,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := domain.BudgetVsActualSummary{
		TotalBudgeted: decimal.Zero,
		TotalActual:   decimal.Zero,
		TotalVariance: decimal.Zero,
	}
	for _, r := range rows {
		summary.TotalBudgeted = summary.TotalBudgeted.Add(r.BudgetAmount)
		summary.TotalActual = summary.TotalActual.Add(r.ActualAmount)
		summary.TotalVariance = summary.TotalVariance.Add(r.Variance)
	}
	return &domain.BudgetVsActualPayload{
		Period:         domain.Period{StartDate: f.StartDate, EndDate: f.EndDate},
		Summary:        summary,
		BudgetVsActual: rows,
	}, nil
}

func (s *ReportService) transactions(ctx context.Context, orgID string, f domain.ReportFilters, types ...domain.FlowType) ([]domain.Transaction, error) {
	from, to := f.StartDate, f.EndDate
	filter := domain.TransactionFilter{
		From:        &from,
		To:          &to,
		CategoryIDs: f.CategoryIDs,
		Types:       types,
	}
	txs, err := callStore(ctx, s.opts.StoreTimeout, "ListTransactions", func(ctx context.Context) ([]domain.Transaction, error) {
		return s.ledger.ListTransactions(ctx, orgID, filter)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "ListTransactions", "read", err)
		return nil, err
	}
	return txs, nil
}

func (s *ReportService) categories(ctx context.Context, orgID string) ([]domain.Category, error) {
	cats, err := callStore(ctx, s.opts.StoreTimeout, "ListCategories", func(ctx context.Context) ([]domain.Category, error) {
		return s.ledger.ListCategories(ctx, orgID)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "ListCategories", "read", err)
		return nil, err
	}
	return cats, nil
}

func (s *ReportService) categoryNames(ctx context.Context, orgID string) (map[string]string, error) {
	cats, err := s.categories(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return categoryNames(cats), nil
}

// normalizeFilters validates the date range and puts the filters in the
// canonical form used for cache keys: UTC dates, sorted and deduplicated ids.
func normalizeFilters(f domain.ReportFilters) (domain.ReportFilters, error) {
	if f.StartDate.IsZero() || f.EndDate.IsZero() {
		return f, &domain.ErrValidation{Field: "period", Message: "startDate and endDate are required"}
	}
	if f.StartDate.After(f.EndDate) {
		return f, &domain.ErrValidation{Field: "period", Message: "startDate must not be after endDate"}
	}
	f.StartDate = f.StartDate.UTC()
	f.EndDate = f.EndDate.UTC()
	f.CategoryIDs = sortedUnique(f.CategoryIDs)
	f.BudgetIDs = sortedUnique(f.BudgetIDs)
	return f, nil
}

func sortedUnique(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func reportName(t domain.ReportType, f domain.ReportFilters) string {
	return fmt.Sprintf("%s Report (%s - %s)", t.Title(), f.StartDate.Format(time.DateOnly), f.EndDate.Format(time.DateOnly))
}
