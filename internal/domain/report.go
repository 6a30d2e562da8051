package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ReportType tags the shape of a report payload.
type ReportType string

const (
	ReportProfitLoss       ReportType = "PROFIT_LOSS"
	ReportCashFlow         ReportType = "CASH_FLOW"
	ReportExpenseAnalytics ReportType = "EXPENSE_ANALYTICS"
	ReportBudgetVsActual   ReportType = "BUDGET_VS_ACTUAL"
)

// Valid reports whether t is a known report type.
func (t ReportType) Valid() bool {
	switch t {
	case ReportProfitLoss, ReportCashFlow, ReportExpenseAnalytics, ReportBudgetVsActual:
		return true
	}
	return false
}

// Title is the human-readable report title.
func (t ReportType) Title() string {
	switch t {
	case ReportProfitLoss:
		return "Profit & Loss"
	case ReportCashFlow:
		return "Cash Flow"
	case ReportExpenseAnalytics:
		return "Expense Analytics"
	case ReportBudgetVsActual:
		return "Budget vs Actual"
	}
	return string(t)
}

// ReportFilters are the parameters of a report request.
type ReportFilters struct {
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	CategoryIDs []string  `json:"categoryIds,omitempty"`
	BudgetIDs   []string  `json:"budgetIds,omitempty"`
}

// Report is an immutable record of one report computation.
type Report struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Type           ReportType      `json:"type"`
	Filters        ReportFilters   `json:"filters"`
	Payload        json.RawMessage `json:"data"`
	GeneratedBy    string          `json:"generatedBy"`
	GeneratedAt    time.Time       `json:"generatedAt"`
}

// ============================================================
// Report payloads
// ============================================================

// Period is the [StartDate, EndDate] window a report covers.
type Period struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// CategoryBreakdown is one bucket of a per-category grouping.
type CategoryBreakdown struct {
	CategoryID    string          `json:"categoryId,omitempty"`
	Name          string          `json:"name"`
	Uncategorized bool            `json:"uncategorized,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Count         int             `json:"count"`
}

// MonthlyFlow is one calendar month of income and expenses.
type MonthlyFlow struct {
	Month          string          `json:"month"` // YYYY-MM
	Income         decimal.Decimal `json:"income"`
	Expenses       decimal.Decimal `json:"expenses"`
	NetFlow        decimal.Decimal `json:"netFlow"`
	RunningBalance decimal.Decimal `json:"runningBalance"`
	Count          int             `json:"count"`
}

// TrendDirection classifies period-over-period expense movement.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// Trend is the result of comparing the two most recent months.
type Trend struct {
	Direction TrendDirection  `json:"trend"`
	Change    decimal.Decimal `json:"change"`
}

// ProfitLossSummary holds the headline P&L figures.
type ProfitLossSummary struct {
	TotalIncome   decimal.Decimal `json:"totalIncome"`
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	NetProfit     decimal.Decimal `json:"netProfit"`
	ProfitMargin  decimal.Decimal `json:"profitMargin"`
}

// FlowSide is one side (income or expenses) of a P&L.
type FlowSide struct {
	Total      decimal.Decimal     `json:"total"`
	ByCategory []CategoryBreakdown `json:"byCategory"`
}

// ProfitLossPayload is the data of a PROFIT_LOSS report.
type ProfitLossPayload struct {
	Period   Period            `json:"period"`
	Summary  ProfitLossSummary `json:"summary"`
	Income   FlowSide          `json:"income"`
	Expenses FlowSide          `json:"expenses"`
}

// CashFlowSummary holds the period totals of a cash flow report.
type CashFlowSummary struct {
	TotalIncome   decimal.Decimal `json:"totalIncome"`
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	NetCashFlow   decimal.Decimal `json:"netCashFlow"`
}

// CashFlowPayload is the data of a CASH_FLOW report.
type CashFlowPayload struct {
	Period      Period          `json:"period"`
	Summary     CashFlowSummary `json:"summary"`
	MonthlyFlow []MonthlyFlow   `json:"monthlyFlow"`
}

// ExpenseSummary holds the headline expense analytics figures.
type ExpenseSummary struct {
	TotalExpenses    decimal.Decimal `json:"totalExpenses"`
	TransactionCount int             `json:"transactionCount"`
	AverageExpense   decimal.Decimal `json:"averageExpense"`
}

// ExpenseLine is a single expense listed in a report.
type ExpenseLine struct {
	TransactionID string          `json:"transactionId"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	CategoryID    string          `json:"categoryId,omitempty"`
}

// ExpenseAnalyticsPayload is the data of an EXPENSE_ANALYTICS report.
type ExpenseAnalyticsPayload struct {
	Period           Period              `json:"period"`
	Summary          ExpenseSummary      `json:"summary"`
	ByCategory       []CategoryBreakdown `json:"byCategory"`
	MonthlyBreakdown []MonthlyFlow       `json:"monthlyBreakdown"`
	TopExpenses      []ExpenseLine       `json:"topExpenses"`
	Trends           Trend               `json:"trends"`
}

// BudgetVariance compares one budget against its actual spending.
type BudgetVariance struct {
	BudgetID           string          `json:"budgetId"`
	BudgetName         string          `json:"budgetName"`
	CategoryID         string          `json:"categoryId,omitempty"`
	BudgetAmount       decimal.Decimal `json:"budgetAmount"`
	ActualAmount       decimal.Decimal `json:"actualAmount"`
	Variance           decimal.Decimal `json:"variance"`
	VariancePercentage decimal.Decimal `json:"variancePercentage"`
	PercentageUsed     decimal.Decimal `json:"percentageUsed"`
}

// BudgetVsActualSummary sums every included budget.
type BudgetVsActualSummary struct {
	TotalBudgeted decimal.Decimal `json:"totalBudgeted"`
	TotalActual   decimal.Decimal `json:"totalActual"`
	TotalVariance decimal.Decimal `json:"totalVariance"`
}

// BudgetVsActualPayload is the data of a BUDGET_VS_ACTUAL report.
type BudgetVsActualPayload struct {
	Period         Period                `json:"period"`
	Summary        BudgetVsActualSummary `json:"summary"`
	BudgetVsActual []BudgetVariance      `json:"budgetVsActual"`
}
