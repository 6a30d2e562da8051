package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/infra/cache"
	"github.com/boddenberg/fincore/internal/infra/memory"
	"github.com/boddenberg/fincore/internal/infra/observability"
	"github.com/boddenberg/fincore/internal/port"
	"github.com/boddenberg/fincore/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func addMembers(e *env) {
	e.ledger.AddMember(domain.Member{UserID: "u-owner", OrganizationID: orgA, Email: "owner@acme.test", Role: domain.RoleOwner, IsActive: true})
	e.ledger.AddMember(domain.Member{UserID: "u-fin", OrganizationID: orgA, Email: "fin@acme.test", Role: domain.RoleFinanceManager, IsActive: true})
	e.ledger.AddMember(domain.Member{UserID: "u-viewer", OrganizationID: orgA, Email: "viewer@acme.test", Role: "Viewer", IsActive: true})
	e.ledger.AddMember(domain.Member{UserID: "u-gone", OrganizationID: orgA, Email: "gone@acme.test", Role: domain.RoleOwner, IsActive: false})
}

func TestCheckBudgetAlerts_ThresholdReached(t *testing.T) {
	e := newEnv(t)
	addMembers(e)
	b := e.budget(t, orgA, "Marketing", "1000", march, marchEnd, "")
	e.expense(t, orgA, "500", day(2024, time.March, 3), "")
	e.expense(t, orgA, "350", day(2024, time.March, 20), "")

	alerts, err := e.budgets.CheckBudgetAlerts(context.Background(), orgA)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, b.ID, a.BudgetID)
	assertDec(t, "85", a.PercentageUsed)
	assertDec(t, "80", a.Threshold)
	assertDec(t, "850", a.Spent)
	assertDec(t, "1000", a.BudgetAmount)

	require.Len(t, e.notifier.calls, 1)
	var emails []string
	for _, m := range e.notifier.calls[0].recipients {
		emails = append(emails, m.Email)
	}
	assert.ElementsMatch(t, []string{"owner@acme.test", "fin@acme.test"}, emails)
	assert.Equal(t, 1, e.sink.count(domain.EventBudgetAlert))
}

func TestCheckBudgetAlerts_BelowThreshold(t *testing.T) {
	e := newEnv(t)
	addMembers(e)
	e.budget(t, orgA, "Marketing", "1000", march, marchEnd, "")
	e.expense(t, orgA, "750", day(2024, time.March, 3), "")

	alerts, err := e.budgets.CheckBudgetAlerts(context.Background(), orgA)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Empty(t, e.notifier.calls)
	assert.Zero(t, e.sink.count(domain.EventBudgetAlert))
}

func TestCheckBudgetAlerts_ExactThresholdAlerts(t *testing.T) {
	e := newEnv(t)
	e.budget(t, orgA, "Travel", "1000", march, marchEnd, "")
	e.expense(t, orgA, "800", day(2024, time.March, 3), "")

	alerts, err := e.budgets.CheckBudgetAlerts(context.Background(), orgA)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assertDec(t, "80", alerts[0].PercentageUsed)
}

func TestCheckBudgetAlerts_IdempotentWithoutChanges(t *testing.T) {
	e := newEnv(t)
	addMembers(e)
	e.budget(t, orgA, "Marketing", "1000", march, marchEnd, "")
	e.budget(t, orgA, "Payroll", "200", march, marchEnd, "")
	e.expense(t, orgA, "190", day(2024, time.March, 3), "")

	first, err := e.budgets.CheckBudgetAlerts(context.Background(), orgA)
	require.NoError(t, err)
	second, err := e.budgets.CheckBudgetAlerts(context.Background(), orgA)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))
	// Not deduplicated across runs.
	assert.Len(t, e.notifier.calls, 2*len(first))
}

func TestCheckBudgetAlerts_NotifierFailureDoesNotFail(t *testing.T) {
	e := newEnv(t)
	addMembers(e)
	e.notifier.err = errors.New("smtp down")
	e.budget(t, orgA, "Marketing", "100", march, marchEnd, "")
	e.expense(t, orgA, "100", day(2024, time.March, 3), "")

	alerts, err := e.budgets.CheckBudgetAlerts(context.Background(), orgA)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestGetBudgets_SpendInvariantAndScoping(t *testing.T) {
	e := newEnv(t)
	rent := e.category(t, orgA, "Rent", domain.FlowExpense)
	sales := e.category(t, orgA, "Sales", domain.FlowIncome)

	e.budget(t, orgA, "All spend", "1000", march, marchEnd, "")
	e.budget(t, orgA, "Rent", "600", march, marchEnd, rent.ID)

	e.expense(t, orgA, "450.50", day(2024, time.March, 1), rent.ID)
	e.expense(t, orgA, "100", day(2024, time.March, 15), "")
	e.expense(t, orgA, "999", day(2024, time.April, 2), rent.ID) // outside period
	e.income(t, orgA, "5000", day(2024, time.March, 10), sales.ID)
	e.record(t, orgA, domain.FlowTransfer, "300", day(2024, time.March, 11), "")
	e.expense(t, orgB, "700", day(2024, time.March, 12), "") // other tenant

	budgets, err := e.budgets.GetBudgets(context.Background(), orgA)
	require.NoError(t, err)
	require.Len(t, budgets, 2)

	spent := map[string]string{}
	for _, b := range budgets {
		assert.True(t, b.Spent.Add(b.Remaining).Equal(b.Amount), "spent + remaining must equal amount for %s", b.Name)
		assert.False(t, b.PercentageUsed.IsNegative())
		spent[b.Name] = b.Spent.String()
	}
	assert.Equal(t, "550.5", spent["All spend"])
	assert.Equal(t, "450.5", spent["Rent"])
}

func TestGetBudgets_OverspentBudget(t *testing.T) {
	e := newEnv(t)
	e.budget(t, orgA, "Small", "100", march, marchEnd, "")
	e.expense(t, orgA, "150", day(2024, time.March, 2), "")

	budgets, err := e.budgets.GetBudgets(context.Background(), orgA)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assertDec(t, "-50", budgets[0].Remaining)
	assertDec(t, "150", budgets[0].PercentageUsed)
}

func TestGetBudgets_ServedFromCacheUntilWrite(t *testing.T) {
	e := newEnv(t)
	e.budget(t, orgA, "Ops", "1000", march, marchEnd, "")
	e.expense(t, orgA, "100", day(2024, time.March, 2), "")
	ctx := context.Background()

	first, err := e.budgets.GetBudgets(ctx, orgA)
	require.NoError(t, err)
	second, err := e.budgets.GetBudgets(ctx, orgA)
	require.NoError(t, err)
	assert.Equal(t, 1.0, e.metrics.CacheHits(observability.CacheBudgets))
	require.Len(t, second, 1)
	assert.True(t, first[0].Spent.Equal(second[0].Spent))

	e.expense(t, orgA, "50", day(2024, time.March, 3), "")

	third, err := e.budgets.GetBudgets(ctx, orgA)
	require.NoError(t, err)
	require.Len(t, third, 1)
	assertDec(t, "150", third[0].Spent)
}

func TestGetBudgets_CacheOutageFallsBackToStore(t *testing.T) {
	e := newEnvWith(t, memory.NewLedger(), brokenCache{})
	e.budget(t, orgA, "Ops", "1000", march, marchEnd, "")
	e.expense(t, orgA, "250", day(2024, time.March, 2), "")

	budgets, err := e.budgets.GetBudgets(context.Background(), orgA)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assertDec(t, "250", budgets[0].Spent)
	assertDec(t, "25", budgets[0].PercentageUsed)
	assert.Positive(t, e.metrics.CacheErrors(observability.CacheBudgets))
}

func TestGetBudget_TenantIsolation(t *testing.T) {
	e := newEnv(t)
	b := e.budget(t, orgA, "Ops", "1000", march, marchEnd, "")

	_, err := e.budgets.GetBudget(context.Background(), orgB, b.ID)
	var notFound *domain.ErrNotFound
	require.ErrorAs(t, err, &notFound)

	got, err := e.budgets.GetBudget(context.Background(), orgA, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ops", got.Name)
	assertDec(t, "0", got.PercentageUsed)
}

func TestGetBudgetTrends_MostRecentFirst(t *testing.T) {
	e := newEnv(t)
	rent := e.category(t, orgA, "Rent", domain.FlowExpense)
	for m := time.January; m <= time.March; m++ {
		from := time.Date(2024, m, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0).Add(-time.Second)
		e.budget(t, orgA, "Rent "+m.String(), "1000", from, to, rent.ID)
		e.expense(t, orgA, "250", from.Add(48*time.Hour), rent.ID)
	}
	e.budget(t, orgA, "Unscoped", "10", march, marchEnd, "")

	points, err := e.budgets.GetBudgetTrends(context.Background(), orgA, rent.ID)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "Rent March", points[0].Name)
	assert.Equal(t, "Rent January", points[2].Name)
	for _, p := range points {
		assertDec(t, "250", p.Spent)
		assertDec(t, "25", p.PercentageUsed)
	}

	all, err := e.budgets.GetBudgetTrends(context.Background(), orgA, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

// interleavingLedger runs inject right before the first transaction query,
// simulating a write that lands in the middle of a computation.
type interleavingLedger struct {
	port.Ledger
	once   sync.Once
	inject func()
}

func (l *interleavingLedger) ListTransactions(ctx context.Context, orgID string, f domain.TransactionFilter) ([]domain.Transaction, error) {
	if l.inject != nil {
		l.once.Do(l.inject)
	}
	return l.Ledger.ListTransactions(ctx, orgID, f)
}

// Reads within one computation are not snapshot-consistent: a transaction
// written after the budget list was read is still counted.
func TestGetBudgets_ObservesWriteLandingMidComputation(t *testing.T) {
	base := memory.NewLedger()
	wrapper := &interleavingLedger{}
	c := cache.New(100, 0)
	t.Cleanup(c.Close)
	e := newEnvWith(t, base, c, func(l port.Ledger) port.Ledger {
		wrapper.Ledger = l
		return wrapper
	})

	e.budget(t, orgA, "Ops", "1000", march, marchEnd, "")
	e.expense(t, orgA, "500", day(2024, time.March, 2), "")

	var injectErr error
	wrapper.inject = func() {
		injectErr = base.SaveTransaction(context.Background(), &domain.Transaction{
			ID:             "late",
			OrganizationID: orgA,
			Amount:         dec("100"),
			Currency:       domain.DefaultCurrency,
			Type:           domain.FlowExpense,
			Status:         domain.StatusCompleted,
			Date:           day(2024, time.March, 5),
			IsActive:       true,
		})
	}

	budgets, err := e.budgets.GetBudgets(context.Background(), orgA)
	require.NoError(t, err)
	require.NoError(t, injectErr)
	require.Len(t, budgets, 1)
	assertDec(t, "600", budgets[0].Spent)
}

// stalledLedger never answers budget queries before the deadline.
type stalledLedger struct{ port.Ledger }

func (stalledLedger) ListActiveBudgets(ctx context.Context, _ string) ([]domain.Budget, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestGetBudgets_StoreTimeoutIsTransient(t *testing.T) {
	svc := service.NewBudgetService(
		stalledLedger{memory.NewLedger()}, nil, nil, nil, nil,
		service.Options{StoreTimeout: 20 * time.Millisecond},
		observability.NewMetrics(), zap.NewNop(),
	)

	_, err := svc.GetBudgets(context.Background(), orgA)
	var timeout *domain.ErrTimeout
	require.ErrorAs(t, err, &timeout)
	assert.True(t, domain.IsTransient(err))
}

func TestGetBudgets_StallingCacheIsBoundedByCacheTimeout(t *testing.T) {
	e := newEnvWith(t, memory.NewLedger(), stallingCache{})
	e.budget(t, orgA, "Ops", "1000", march, marchEnd, "")
	e.expense(t, orgA, "250", day(2024, time.March, 2), "")

	start := time.Now()
	budgets, err := e.budgets.GetBudgets(context.Background(), orgA)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assertDec(t, "250", budgets[0].Spent)
	// One lookup, one spend lookup and two writes, each cut at 100ms.
	assert.Less(t, elapsed, time.Second)
	assert.Positive(t, e.metrics.CacheErrors(observability.CacheBudgets))
}

func TestGetBudgets_CorruptEntryIsDroppedAndRebuilt(t *testing.T) {
	base := cache.New(100, 0)
	t.Cleanup(base.Close)
	store := &deleteRecordingCache{CacheStore: base}
	e := newEnvWith(t, memory.NewLedger(), store)
	e.budget(t, orgA, "Ops", "1000", march, marchEnd, "")
	ctx := context.Background()

	key := service.CacheKey(orgA, service.ScopeBudget, "list")
	require.NoError(t, base.Set(ctx, key, []byte("{not json"), time.Minute))

	budgets, err := e.budgets.GetBudgets(ctx, orgA)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Contains(t, store.deleted, key)
	assert.Positive(t, e.metrics.CacheErrors(observability.CacheBudgets))

	raw, ok, err := base.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, json.Valid(raw))
}
