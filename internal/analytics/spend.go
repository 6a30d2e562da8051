// Package analytics holds the pure computations of the engine: spend
// metrics, category and monthly grouping, trend detection and runway
// simulation. Nothing here performs I/O; callers supply transactions
// already filtered by organization and active flag.
package analytics

import (
	"github.com/boddenberg/fincore/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Percentage returns 100 × part / whole rounded half-up to two places.
// A zero whole yields zero.
func Percentage(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, 2)
}

// SumExpenses adds the amounts of EXPENSE transactions.
func SumExpenses(txs []domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Type == domain.FlowExpense {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// SpendFilter is the ledger query that selects the transactions a budget
// consumes: its period, and its category when the budget is scoped.
func SpendFilter(b domain.Budget) domain.TransactionFilter {
	from, to := b.PeriodStart, b.PeriodEnd
	f := domain.TransactionFilter{
		From:  &from,
		To:    &to,
		Types: []domain.FlowType{domain.FlowExpense},
	}
	if b.CategoryID != "" {
		f.CategoryIDs = []string{b.CategoryID}
	}
	return f
}

// ComputeSpend derives spent, remaining and percentageUsed for a budget.
// Transactions outside the budget's spend filter are ignored, so the
// result does not depend on how tightly the caller pre-filtered.
func ComputeSpend(b domain.Budget, txs []domain.Transaction) domain.SpendMetrics {
	filter := SpendFilter(b)
	spent := decimal.Zero
	for _, tx := range txs {
		if filter.Matches(tx) {
			spent = spent.Add(tx.Amount)
		}
	}
	return Metrics(b.Amount, spent)
}

// Metrics builds the derived values from an amount and what was spent.
func Metrics(amount, spent decimal.Decimal) domain.SpendMetrics {
	pct := Percentage(spent, amount)
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	return domain.SpendMetrics{
		Spent:          spent,
		Remaining:      amount.Sub(spent),
		PercentageUsed: pct,
	}
}
