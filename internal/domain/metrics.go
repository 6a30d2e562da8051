package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpendMetrics are the derived values of a budget snapshot.
// Spent + Remaining always equals the budget amount.
type SpendMetrics struct {
	Spent          decimal.Decimal `json:"spent"`
	Remaining      decimal.Decimal `json:"remaining"`
	PercentageUsed decimal.Decimal `json:"percentageUsed"`
}

// BudgetWithMetrics is a budget together with its current derived metrics.
type BudgetWithMetrics struct {
	Budget
	SpendMetrics
}

// TrendPoint is one budget period in a budget trend series.
type TrendPoint struct {
	BudgetID       string          `json:"budgetId"`
	Name           string          `json:"name"`
	PeriodStart    time.Time       `json:"periodStart"`
	PeriodEnd      time.Time       `json:"periodEnd"`
	Allocated      decimal.Decimal `json:"allocated"`
	Spent          decimal.Decimal `json:"spent"`
	PercentageUsed decimal.Decimal `json:"percentageUsed"`
	Remaining      decimal.Decimal `json:"remaining"`
}

// Alert is emitted once per breaching budget per evaluation run.
type Alert struct {
	BudgetID       string          `json:"budgetId"`
	BudgetName     string          `json:"budgetName"`
	PercentageUsed decimal.Decimal `json:"percentageUsed"`
	Threshold      decimal.Decimal `json:"alertThreshold"`
	Spent          decimal.Decimal `json:"spent"`
	BudgetAmount   decimal.Decimal `json:"budgetAmount"`
	Currency       string          `json:"currency"`
}

// FlowStats is the total, count and average amount of one flow type.
type FlowStats struct {
	Total   decimal.Decimal `json:"total"`
	Count   int             `json:"count"`
	Average decimal.Decimal `json:"average"`
}

// TransactionSummary aggregates the active transactions of an organization,
// optionally bounded by date.
type TransactionSummary struct {
	From       *time.Time          `json:"from,omitempty"`
	To         *time.Time          `json:"to,omitempty"`
	Income     FlowStats           `json:"income"`
	Expenses   FlowStats           `json:"expenses"`
	Transfers  FlowStats           `json:"transfers"`
	NetProfit  decimal.Decimal     `json:"netProfit"`
	ByCategory []CategoryBreakdown `json:"byCategory"`
}

// MonthlyTotal is the summed amount of one calendar month.
type MonthlyTotal struct {
	Month string          `json:"month"` // YYYY-MM
	Total decimal.Decimal `json:"total"`
}

// BudgetStats sums the active budgets scoped to a category.
type BudgetStats struct {
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// CategoryStats describes how one category is used.
type CategoryStats struct {
	Category     Category       `json:"category"`
	Transactions FlowStats      `json:"transactions"`
	Budgets      BudgetStats    `json:"budgets"`
	MonthlyTrend []MonthlyTotal `json:"monthlyTrend"`
}
