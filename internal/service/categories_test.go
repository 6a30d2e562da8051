package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/infra/observability"
	"github.com/boddenberg/fincore/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCategory_NameUniquePerFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.category(t, orgA, "Consulting", domain.FlowExpense)

	_, err := e.categories.CreateCategory(ctx, orgA, service.CategoryInput{Name: "Consulting", Type: domain.FlowExpense})
	var c *domain.ErrConflict
	require.ErrorAs(t, err, &c)

	// Same name on the income side is a different category.
	e.category(t, orgA, "Consulting", domain.FlowIncome)
	// And another tenant is independent.
	e.category(t, orgB, "Consulting", domain.FlowExpense)
}

func TestCreateCategory_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.categories.CreateCategory(ctx, orgA, service.CategoryInput{Name: "Moves", Type: domain.FlowTransfer})
	var v *domain.ErrValidation
	require.ErrorAs(t, err, &v)

	_, err = e.categories.CreateCategory(ctx, orgA, service.CategoryInput{Name: "  ", Type: domain.FlowExpense})
	require.ErrorAs(t, err, &v)

	_, err = e.categories.CreateCategory(ctx, orgA, service.CategoryInput{Name: "Child", Type: domain.FlowExpense, ParentID: "nope"})
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
}

func TestUpdateCategory_RejectsAncestorCycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	root := e.category(t, orgA, "Operations", domain.FlowExpense)

	child, err := e.categories.CreateCategory(ctx, orgA, service.CategoryInput{Name: "Office", Type: domain.FlowExpense, ParentID: root.ID})
	require.NoError(t, err)
	grandchild, err := e.categories.CreateCategory(ctx, orgA, service.CategoryInput{Name: "Supplies", Type: domain.FlowExpense, ParentID: child.ID})
	require.NoError(t, err)

	var c *domain.ErrConflict

	self := root.ID
	_, err = e.categories.UpdateCategory(ctx, orgA, root.ID, service.CategoryPatch{ParentID: &self})
	require.ErrorAs(t, err, &c)

	deep := grandchild.ID
	_, err = e.categories.UpdateCategory(ctx, orgA, root.ID, service.CategoryPatch{ParentID: &deep})
	require.ErrorAs(t, err, &c)

	// Re-parenting onto an unrelated branch is fine.
	other := e.category(t, orgA, "Facilities", domain.FlowExpense)
	target := other.ID
	moved, err := e.categories.UpdateCategory(ctx, orgA, grandchild.ID, service.CategoryPatch{ParentID: &target})
	require.NoError(t, err)
	assert.Equal(t, other.ID, moved.ParentID)
}

func TestDeleteCategory_BlockedByDependents(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	withTx := e.category(t, orgA, "Rent", domain.FlowExpense)
	e.expense(t, orgA, "10", day(2024, time.March, 1), withTx.ID)

	withBudget := e.category(t, orgA, "Travel", domain.FlowExpense)
	e.budget(t, orgA, "Travel", "100", march, marchEnd, withBudget.ID)

	parent := e.category(t, orgA, "Operations", domain.FlowExpense)
	_, err := e.categories.CreateCategory(ctx, orgA, service.CategoryInput{Name: "Office", Type: domain.FlowExpense, ParentID: parent.ID})
	require.NoError(t, err)

	for _, id := range []string{withTx.ID, withBudget.ID, parent.ID} {
		var c *domain.ErrConflict
		require.ErrorAs(t, e.categories.DeleteCategory(ctx, orgA, id), &c)
	}

	leaf := e.category(t, orgA, "Unused", domain.FlowExpense)
	require.NoError(t, e.categories.DeleteCategory(ctx, orgA, leaf.ID))

	cats, err := e.categories.ListCategories(ctx, orgA)
	require.NoError(t, err)
	for _, c := range cats {
		assert.NotEqual(t, leaf.ID, c.ID)
	}
	assert.Equal(t, 1, e.sink.count(domain.EventCategoryDeleted))
}

func TestGetCategoryStats(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	payroll := e.category(t, orgA, "Payroll", domain.FlowExpense)
	e.expense(t, orgA, "300", day(2024, time.March, 3), payroll.ID)
	e.expense(t, orgA, "200", day(2024, time.April, 5), payroll.ID)
	e.expense(t, orgA, "100", day(2024, time.March, 4), "")
	e.budget(t, orgA, "Payroll March", "1000", march, marchEnd, payroll.ID)
	e.budget(t, orgA, "Ops", "500", march, marchEnd, "")

	stats, err := e.categories.GetCategoryStats(ctx, orgA, payroll.ID)
	require.NoError(t, err)
	assert.Equal(t, "Payroll", stats.Category.Name)
	assertDec(t, "500", stats.Transactions.Total)
	assert.Equal(t, 2, stats.Transactions.Count)
	assertDec(t, "250", stats.Transactions.Average)
	assertDec(t, "1000", stats.Budgets.Total)
	assert.Equal(t, 1, stats.Budgets.Count)
	require.Len(t, stats.MonthlyTrend, 2)
	assert.Equal(t, "2024-04", stats.MonthlyTrend[0].Month)
	assertDec(t, "200", stats.MonthlyTrend[0].Total)
	assert.Equal(t, "2024-03", stats.MonthlyTrend[1].Month)

	var nf *domain.ErrNotFound
	_, err = e.categories.GetCategoryStats(ctx, orgB, payroll.ID)
	require.ErrorAs(t, err, &nf)
}

func TestGetCategoryStats_CachedUntilBudgetWrite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	payroll := e.category(t, orgA, "Payroll", domain.FlowExpense)
	e.budget(t, orgA, "Payroll March", "1000", march, marchEnd, payroll.ID)

	_, err := e.categories.GetCategoryStats(ctx, orgA, payroll.ID)
	require.NoError(t, err)
	_, err = e.categories.GetCategoryStats(ctx, orgA, payroll.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, e.metrics.CacheHits(observability.CacheCategoryStats))

	e.budget(t, orgA, "Payroll April", "800", day(2024, time.April, 1), aprilEnd, payroll.ID)
	stats, err := e.categories.GetCategoryStats(ctx, orgA, payroll.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Budgets.Count)
	assertDec(t, "1800", stats.Budgets.Total)

	e.expense(t, orgA, "75", day(2024, time.April, 2), payroll.ID)
	stats, err = e.categories.GetCategoryStats(ctx, orgA, payroll.ID)
	require.NoError(t, err)
	assertDec(t, "75", stats.Transactions.Total)
}
