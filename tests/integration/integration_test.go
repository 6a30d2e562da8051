package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/handler"
	"github.com/boddenberg/fincore/internal/infra/cache"
	"github.com/boddenberg/fincore/internal/infra/events"
	"github.com/boddenberg/fincore/internal/infra/observability"
	"github.com/boddenberg/fincore/internal/infra/resilience"
	"github.com/boddenberg/fincore/internal/infra/sqlite"
	"github.com/boddenberg/fincore/internal/service"

	"go.uber.org/zap"
)

var secret = []byte("integration-secret")

type recordingNotifier struct {
	mu         sync.Mutex
	recipients [][]domain.Member
}

func (n *recordingNotifier) Notify(_ context.Context, recipients []domain.Member, _ domain.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recipients = append(n.recipients, recipients)
	return nil
}

type stack struct {
	router   http.Handler
	store    *sqlite.Store
	notifier *recordingNotifier
}

// newStack wires the engine over a real SQLite file, the way cmd/fincore does.
func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "fincore.db"),
		resilience.Config{MaxRetries: 1, InitialBackoff: 5 * time.Millisecond}, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	for _, org := range []domain.Organization{{ID: "org-a", Name: "Acme"}, {ID: "org-b", Name: "Globex"}} {
		if err := store.UpsertOrganization(ctx, org); err != nil {
			t.Fatalf("seed organization: %v", err)
		}
	}
	if err := store.UpsertMember(ctx, domain.Member{
		UserID: "u-1", OrganizationID: "org-a", Email: "cfo@acme.test",
		Role: domain.RoleFinanceManager, IsActive: true,
	}); err != nil {
		t.Fatalf("seed member: %v", err)
	}

	c := cache.New(1000, 0)
	t.Cleanup(c.Close)
	derived := service.NewDerivedCache(c, time.Second, metrics, logger)
	sink := events.NewLogSink(logger)
	notifier := &recordingNotifier{}
	opts := service.Options{StoreTimeout: 5 * time.Second}

	budgets := service.NewBudgetService(store, store, notifier, sink, derived, opts, metrics, logger)
	router := handler.NewRouter(handler.Services{
		Budgets:      budgets,
		Categories:   service.NewCategoryService(store, sink, derived, opts, metrics, logger),
		Transactions: service.NewTransactionService(store, sink, derived, opts, metrics, logger),
		Reports:      service.NewReportService(store, store, budgets, sink, derived, opts, metrics, logger),
		Runway:       service.NewRunwayService(metrics, logger),
		Store:        store,
	}, secret, metrics, logger)

	return &stack{router: router, store: store, notifier: notifier}
}

func (s *stack) call(t *testing.T, orgID, method, path string, body any, want int, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	tok, err := handler.SignToken(secret, orgID, "u-1", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != want {
		t.Fatalf("%s %s: expected %d, got %d. Body: %s", method, path, want, rec.Code, rec.Body.String())
	}
	if out != nil {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

// TestIntegration_BudgetLifecycle drives budgets, alerts and reports through
// the HTTP API against SQLite.
func TestIntegration_BudgetLifecycle(t *testing.T) {
	s := newStack(t)

	var marketing domain.Category
	s.call(t, "org-a", http.MethodPost, "/v1/categories",
		map[string]any{"name": "Marketing", "type": "EXPENSE"}, http.StatusCreated, &marketing)

	var budget domain.Budget
	s.call(t, "org-a", http.MethodPost, "/v1/budgets", map[string]any{
		"name":        "Q1 Marketing",
		"amount":      "1000",
		"type":        "QUARTERLY",
		"periodStart": "2024-01-01T00:00:00Z",
		"periodEnd":   "2024-03-31T23:59:59Z",
		"categoryId":  marketing.ID,
	}, http.StatusCreated, &budget)

	var ads, offsite domain.Transaction
	s.call(t, "org-a", http.MethodPost, "/v1/transactions", map[string]any{
		"amount": "500", "type": "EXPENSE", "date": "2024-02-10T09:00:00Z",
		"description": "Ads", "categoryId": marketing.ID,
	}, http.StatusCreated, &ads)
	s.call(t, "org-a", http.MethodPost, "/v1/transactions", map[string]any{
		"amount": "350", "type": "EXPENSE", "date": "2024-03-02T09:00:00Z",
		"description": "Events", "categoryId": marketing.ID,
	}, http.StatusCreated, &offsite)
	s.call(t, "org-a", http.MethodPost, "/v1/transactions", map[string]any{
		"amount": "4000", "type": "INCOME", "date": "2024-03-05T09:00:00Z",
		"description": "Invoice 42",
	}, http.StatusCreated, nil)

	var withMetrics domain.BudgetWithMetrics
	s.call(t, "org-a", http.MethodGet, "/v1/budgets/"+budget.ID, nil, http.StatusOK, &withMetrics)
	if got := withMetrics.PercentageUsed.String(); got != "85" {
		t.Errorf("expected 85%% used, got %s", got)
	}
	if !withMetrics.Spent.Add(withMetrics.Remaining).Equal(withMetrics.Amount) {
		t.Errorf("spent %s + remaining %s != amount %s", withMetrics.Spent, withMetrics.Remaining, withMetrics.Amount)
	}

	var alerts domain.ListResponse[domain.Alert]
	s.call(t, "org-a", http.MethodPost, "/v1/budgets/alerts/check", nil, http.StatusOK, &alerts)
	if alerts.Total != 1 || alerts.Data[0].BudgetID != budget.ID {
		t.Fatalf("expected one alert for %s, got %+v", budget.ID, alerts.Data)
	}
	if len(s.notifier.recipients) != 1 || s.notifier.recipients[0][0].Email != "cfo@acme.test" {
		t.Errorf("expected the finance manager to be notified, got %+v", s.notifier.recipients)
	}

	var pl domain.Report
	s.call(t, "org-a", http.MethodPost, "/v1/reports/profit-loss",
		map[string]any{"startDate": "2024-01-01", "endDate": "2024-03-31"}, http.StatusCreated, &pl)
	var payload struct {
		Summary struct {
			TotalIncome   string `json:"totalIncome"`
			TotalExpenses string `json:"totalExpenses"`
			NetProfit     string `json:"netProfit"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(pl.Payload, &payload); err != nil {
		t.Fatalf("decode report data: %v", err)
	}
	if payload.Summary.NetProfit != "3150" {
		t.Errorf("expected net profit 3150, got %+v", payload.Summary)
	}

	// Soft-deleting a transaction must show up in derived values immediately.
	s.call(t, "org-a", http.MethodDelete, "/v1/transactions/"+offsite.ID, nil, http.StatusOK, nil)
	s.call(t, "org-a", http.MethodGet, "/v1/budgets/"+budget.ID, nil, http.StatusOK, &withMetrics)
	if got := withMetrics.PercentageUsed.String(); got != "50" {
		t.Errorf("expected 50%% used after delete, got %s", got)
	}

	var reports domain.ListResponse[domain.Report]
	s.call(t, "org-a", http.MethodGet, "/v1/reports", nil, http.StatusOK, &reports)
	if reports.Total != 1 {
		t.Errorf("expected 1 stored report, got %d", reports.Total)
	}

	// Deleting the category is blocked while it still has dependents.
	s.call(t, "org-a", http.MethodDelete, "/v1/categories/"+marketing.ID, nil, http.StatusConflict, nil)
}

// TestIntegration_TenantIsolation checks that another organization sees
// none of org-a's data through any endpoint.
func TestIntegration_TenantIsolation(t *testing.T) {
	s := newStack(t)

	var budget domain.Budget
	s.call(t, "org-a", http.MethodPost, "/v1/budgets", map[string]any{
		"name": "Payroll", "amount": "5000", "type": "MONTHLY",
		"periodStart": "2024-03-01T00:00:00Z", "periodEnd": "2024-03-31T23:59:59Z",
	}, http.StatusCreated, &budget)
	s.call(t, "org-a", http.MethodPost, "/v1/transactions", map[string]any{
		"amount": "4900", "type": "EXPENSE", "date": "2024-03-15T00:00:00Z",
	}, http.StatusCreated, nil)

	s.call(t, "org-b", http.MethodGet, "/v1/budgets/"+budget.ID, nil, http.StatusNotFound, nil)
	s.call(t, "org-b", http.MethodDelete, "/v1/budgets/"+budget.ID, nil, http.StatusNotFound, nil)

	var list domain.ListResponse[domain.BudgetWithMetrics]
	s.call(t, "org-b", http.MethodGet, "/v1/budgets", nil, http.StatusOK, &list)
	if list.Total != 0 {
		t.Errorf("expected org-b to see no budgets, got %d", list.Total)
	}

	var alerts domain.ListResponse[domain.Alert]
	s.call(t, "org-b", http.MethodPost, "/v1/budgets/alerts/check", nil, http.StatusOK, &alerts)
	if alerts.Total != 0 {
		t.Errorf("expected no alerts for org-b, got %d", alerts.Total)
	}

	// The same name is free in another organization.
	s.call(t, "org-b", http.MethodPost, "/v1/budgets", map[string]any{
		"name": "Payroll", "amount": "100", "type": "MONTHLY",
		"periodStart": "2024-03-01T00:00:00Z", "periodEnd": "2024-03-31T23:59:59Z",
	}, http.StatusCreated, nil)
}

// TestIntegration_HealthChecksStore verifies /healthz pings the ledger.
func TestIntegration_HealthChecksStore(t *testing.T) {
	s := newStack(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	s.store.Close()
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after store closed, got %d", rec.Code)
	}
}

// TestIntegration_SweeperSeesTenantsCreatedThroughAPI covers tenants that
// only exist as budget owners: nothing ever writes their organization row.
func TestIntegration_SweeperSeesTenantsCreatedThroughAPI(t *testing.T) {
	s := newStack(t)

	s.call(t, "org-x", http.MethodPost, "/v1/budgets", map[string]any{
		"name":        "Ops",
		"amount":      "1000",
		"type":        "MONTHLY",
		"periodStart": "2024-03-01T00:00:00Z",
		"periodEnd":   "2024-03-31T23:59:59Z",
	}, http.StatusCreated, nil)
	s.call(t, "org-x", http.MethodPost, "/v1/transactions", map[string]any{
		"amount": "900", "type": "EXPENSE", "date": "2024-03-10T10:00:00Z", "description": "Rent",
	}, http.StatusCreated, nil)

	logger := zap.NewNop()
	sink := events.NewLogSink(logger)
	budgets := service.NewBudgetService(s.store, s.store, s.notifier, sink, nil,
		service.Options{StoreTimeout: 5 * time.Second}, observability.NewMetrics(), logger)
	res, err := service.NewAlertSweeper(budgets, s.store, 2, logger).Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(res.Failed) != 0 {
		t.Fatalf("expected no failed organizations, got %v", res.Failed)
	}
	if res.Organizations != 3 {
		t.Errorf("expected org-a, org-b and org-x to be swept, got %d organizations", res.Organizations)
	}
	if res.Alerts != 1 {
		t.Errorf("expected 1 alert for org-x, got %d", res.Alerts)
	}
}
