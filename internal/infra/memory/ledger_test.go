package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/infra/memory"
	"github.com/shopspring/decimal"
)

func seed(t *testing.T) *memory.Ledger {
	t.Helper()
	l := memory.NewLedger()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	txs := []domain.Transaction{
		{ID: "t1", OrganizationID: "org-1", Amount: decimal.NewFromInt(10), Type: domain.FlowExpense, Date: base, Description: "AWS invoice", IsActive: true, CategoryID: "c1"},
		{ID: "t2", OrganizationID: "org-1", Amount: decimal.NewFromInt(20), Type: domain.FlowExpense, Date: base.AddDate(0, 0, 1), Notes: "team lunch", IsActive: true},
		{ID: "t3", OrganizationID: "org-1", Amount: decimal.NewFromInt(30), Type: domain.FlowExpense, Date: base, IsActive: false, CategoryID: "c1"},
		{ID: "t4", OrganizationID: "org-2", Amount: decimal.NewFromInt(40), Type: domain.FlowExpense, Date: base, IsActive: true},
	}
	for i := range txs {
		if err := l.SaveTransaction(ctx, &txs[i]); err != nil {
			t.Fatal(err)
		}
	}
	return l
}

func TestListTransactions_TenantAndActiveFilter(t *testing.T) {
	l := seed(t)

	got, err := l.ListTransactions(context.Background(), "org-1", domain.TransactionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 active org-1 transactions, got %d", len(got))
	}
	if got[0].ID != "t2" {
		t.Errorf("expected newest first, got %s", got[0].ID)
	}
}

func TestListTransactions_Search(t *testing.T) {
	l := seed(t)

	got, _ := l.ListTransactions(context.Background(), "org-1", domain.TransactionFilter{Search: "LUNCH"})
	if len(got) != 1 || got[0].ID != "t2" {
		t.Errorf("expected t2 via notes search, got %+v", got)
	}
}

func TestGetTransaction_CrossTenantIsNotFound(t *testing.T) {
	l := seed(t)

	_, err := l.GetTransaction(context.Background(), "org-1", "t4")
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCountCategoryDependents(t *testing.T) {
	l := seed(t)
	ctx := context.Background()
	_ = l.SaveCategory(ctx, &domain.Category{ID: "c2", OrganizationID: "org-1", Name: "Cloud", ParentID: "c1", IsActive: true})
	_ = l.SaveBudget(ctx, &domain.Budget{ID: "b1", OrganizationID: "org-1", CategoryID: "c1", IsActive: true})

	d, err := l.CountCategoryDependents(ctx, "org-1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Transactions != 1 || d.Budgets != 1 || d.Children != 1 {
		t.Errorf("unexpected dependents: %+v", d)
	}
}

func TestReports_NewestFirstAndScoped(t *testing.T) {
	l := memory.NewLedger()
	ctx := context.Background()
	now := time.Now()

	_ = l.CreateReport(ctx, &domain.Report{ID: "r1", OrganizationID: "org-1", Type: domain.ReportCashFlow, GeneratedAt: now})
	_ = l.CreateReport(ctx, &domain.Report{ID: "r2", OrganizationID: "org-1", Type: domain.ReportProfitLoss, GeneratedAt: now.Add(time.Second)})
	_ = l.CreateReport(ctx, &domain.Report{ID: "r3", OrganizationID: "org-2", Type: domain.ReportCashFlow, GeneratedAt: now})

	all, _ := l.ListReports(ctx, "org-1", "")
	if len(all) != 2 || all[0].ID != "r2" {
		t.Errorf("unexpected listing: %+v", all)
	}
	cash, _ := l.ListReports(ctx, "org-1", domain.ReportCashFlow)
	if len(cash) != 1 || cash[0].ID != "r1" {
		t.Errorf("unexpected typed listing: %+v", cash)
	}
	if _, err := l.GetReport(ctx, "org-1", "r3"); err == nil {
		t.Error("expected cross-tenant report lookup to fail")
	}
	if err := l.CreateReport(ctx, &domain.Report{ID: "r1", OrganizationID: "org-1"}); err == nil {
		t.Error("reports are append-only; duplicate id must fail")
	}
}

func TestSave_CrossTenantOverwriteIsNotFound(t *testing.T) {
	l := seed(t)
	ctx := context.Background()

	hijack := domain.Transaction{ID: "t1", OrganizationID: "org-2", Amount: decimal.NewFromInt(1), Type: domain.FlowExpense, IsActive: true}
	var nf *domain.ErrNotFound
	if err := l.SaveTransaction(ctx, &hijack); !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, err := l.GetTransaction(ctx, "org-1", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("org-1 transaction was overwritten: %s", got.Amount)
	}

	b := domain.Budget{ID: "b1", OrganizationID: "org-1", Name: "Ops", IsActive: true}
	if err := l.SaveBudget(ctx, &b); err != nil {
		t.Fatal(err)
	}
	b.OrganizationID = "org-2"
	if err := l.SaveBudget(ctx, &b); !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound for budget, got %v", err)
	}

	c := domain.Category{ID: "c9", OrganizationID: "org-1", Name: "Travel", Type: domain.FlowExpense, IsActive: true}
	if err := l.SaveCategory(ctx, &c); err != nil {
		t.Fatal(err)
	}
	c.OrganizationID = "org-2"
	if err := l.SaveCategory(ctx, &c); !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound for category, got %v", err)
	}
}

func TestListOrganizations_IncludesBudgetOwners(t *testing.T) {
	l := memory.NewLedger()
	ctx := context.Background()
	l.AddOrganization(domain.Organization{ID: "org-1", Name: "Acme"})

	for _, b := range []domain.Budget{
		{ID: "b1", OrganizationID: "org-api", Name: "Ops", IsActive: true},
		{ID: "b2", OrganizationID: "org-gone", Name: "Old", IsActive: false},
	} {
		if err := l.SaveBudget(ctx, &b); err != nil {
			t.Fatal(err)
		}
	}

	orgs, err := l.ListOrganizations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, o := range orgs {
		ids = append(ids, o.ID)
	}
	if len(ids) != 2 || ids[0] != "org-1" || ids[1] != "org-api" {
		t.Errorf("expected [org-1 org-api], got %v", ids)
	}
}
