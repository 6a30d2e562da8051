package analytics

import (
	"sort"
	"time"

	"github.com/boddenberg/fincore/internal/domain"
	"github.com/shopspring/decimal"
)

// UncategorizedName labels the bucket of transactions without a category.
const UncategorizedName = "Uncategorized"

// CategoryKey identifies a category bucket. Transactions without a
// category share UncategorizedKey; no category ID can collide with it.
type CategoryKey struct {
	ID            string
	Uncategorized bool
}

// UncategorizedKey is the bucket for transactions without a category.
var UncategorizedKey = CategoryKey{Uncategorized: true}

// KeyOf returns the bucket a transaction belongs to.
func KeyOf(tx domain.Transaction) CategoryKey {
	if tx.CategoryID == "" {
		return UncategorizedKey
	}
	return CategoryKey{ID: tx.CategoryID}
}

// GroupTotal is the sum and count of one bucket.
type GroupTotal struct {
	Total decimal.Decimal
	Count int
}

// GroupByCategory sums amounts per category. Callers interpret the sign
// per report type, so the input is normally pre-filtered to one flow type.
func GroupByCategory(txs []domain.Transaction) map[CategoryKey]GroupTotal {
	groups := make(map[CategoryKey]GroupTotal)
	for _, tx := range txs {
		k := KeyOf(tx)
		g := groups[k]
		g.Total = g.Total.Add(tx.Amount)
		g.Count++
		groups[k] = g
	}
	return groups
}

// Breakdown flattens a grouping into a deterministic list ordered by
// total descending, then by category ID. names resolves category labels.
func Breakdown(groups map[CategoryKey]GroupTotal, names map[string]string) []domain.CategoryBreakdown {
	out := make([]domain.CategoryBreakdown, 0, len(groups))
	for k, g := range groups {
		item := domain.CategoryBreakdown{
			CategoryID:    k.ID,
			Uncategorized: k.Uncategorized,
			Total:         g.Total,
			Count:         g.Count,
		}
		if k.Uncategorized {
			item.Name = UncategorizedName
		} else if n, ok := names[k.ID]; ok {
			item.Name = n
		} else {
			item.Name = k.ID
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		if out[i].Uncategorized != out[j].Uncategorized {
			return !out[i].Uncategorized
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

// MonthKey is the calendar month of t in UTC, formatted YYYY-MM.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// GroupByMonth buckets INCOME and EXPENSE transactions by calendar month,
// ascending. Transfers move money inside the organization and are left
// out. The running balance is seeded at zero for the first month.
func GroupByMonth(txs []domain.Transaction) []domain.MonthlyFlow {
	byMonth := make(map[string]*domain.MonthlyFlow)
	for _, tx := range txs {
		if tx.Type != domain.FlowIncome && tx.Type != domain.FlowExpense {
			continue
		}
		key := MonthKey(tx.Date)
		m, ok := byMonth[key]
		if !ok {
			m = &domain.MonthlyFlow{Month: key}
			byMonth[key] = m
		}
		if tx.Type == domain.FlowIncome {
			m.Income = m.Income.Add(tx.Amount)
		} else {
			m.Expenses = m.Expenses.Add(tx.Amount)
		}
		m.Count++
	}

	keys := make([]string, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.MonthlyFlow, 0, len(keys))
	balance := decimal.Zero
	for _, k := range keys {
		m := *byMonth[k]
		m.NetFlow = m.Income.Sub(m.Expenses)
		balance = balance.Add(m.NetFlow)
		m.RunningBalance = balance
		out = append(out, m)
	}
	return out
}

// Trend classification bounds, in percent.
var (
	TrendIncreaseAbove = decimal.NewFromInt(10)
	TrendDecreaseBelow = decimal.NewFromInt(-10)
)

// DetectTrend compares the expense totals of the two most recent months.
// It is a two-point heuristic: fewer than two months, or a zero previous
// month, is reported as stable with no change.
func DetectTrend(months []domain.MonthlyFlow) domain.Trend {
	stable := domain.Trend{Direction: domain.TrendStable, Change: decimal.Zero}
	if len(months) < 2 {
		return stable
	}
	recent := months[len(months)-1].Expenses
	previous := months[len(months)-2].Expenses
	if previous.IsZero() {
		return stable
	}

	change := recent.Sub(previous).Mul(hundred).Div(previous)
	t := domain.Trend{Direction: domain.TrendStable, Change: change.Round(2)}
	switch {
	case change.GreaterThan(TrendIncreaseAbove):
		t.Direction = domain.TrendIncreasing
	case change.LessThan(TrendDecreaseBelow):
		t.Direction = domain.TrendDecreasing
	}
	return t
}

// TopExpenses returns up to limit EXPENSE transactions by amount
// descending, ties broken by transaction ID ascending.
func TopExpenses(txs []domain.Transaction, limit int) []domain.ExpenseLine {
	expenses := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Type == domain.FlowExpense {
			expenses = append(expenses, tx)
		}
	}
	sort.Slice(expenses, func(i, j int) bool {
		if c := expenses[i].Amount.Cmp(expenses[j].Amount); c != 0 {
			return c > 0
		}
		return expenses[i].ID < expenses[j].ID
	})
	if len(expenses) > limit {
		expenses = expenses[:limit]
	}

	out := make([]domain.ExpenseLine, 0, len(expenses))
	for _, tx := range expenses {
		out = append(out, domain.ExpenseLine{
			TransactionID: tx.ID,
			Date:          tx.Date,
			Description:   tx.Description,
			Amount:        tx.Amount,
			Currency:      tx.Currency,
			CategoryID:    tx.CategoryID,
		})
	}
	return out
}

// Totals sums INCOME and EXPENSE amounts separately.
func Totals(txs []domain.Transaction) (income, expenses decimal.Decimal) {
	income, expenses = decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case domain.FlowIncome:
			income = income.Add(tx.Amount)
		case domain.FlowExpense:
			expenses = expenses.Add(tx.Amount)
		}
	}
	return income, expenses
}

// SplitByFlow partitions transactions into income and expense slices.
func SplitByFlow(txs []domain.Transaction) (income, expenses []domain.Transaction) {
	for _, tx := range txs {
		switch tx.Type {
		case domain.FlowIncome:
			income = append(income, tx)
		case domain.FlowExpense:
			expenses = append(expenses, tx)
		}
	}
	return income, expenses
}

// Average returns total / count rounded to two places, or zero when count is zero.
func Average(total decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.DivRound(decimal.NewFromInt(int64(count)), 2)
}

// Stats sums txs regardless of flow type.
func Stats(txs []domain.Transaction) domain.FlowStats {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return domain.FlowStats{Total: total, Count: len(txs), Average: Average(total, len(txs))}
}

// StatsByFlow computes FlowStats per flow type. Every valid flow type is
// present in the result, zero-valued when it has no transactions.
func StatsByFlow(txs []domain.Transaction) map[domain.FlowType]domain.FlowStats {
	byFlow := map[domain.FlowType][]domain.Transaction{}
	for _, tx := range txs {
		byFlow[tx.Type] = append(byFlow[tx.Type], tx)
	}
	out := make(map[domain.FlowType]domain.FlowStats, 3)
	for _, ft := range []domain.FlowType{domain.FlowIncome, domain.FlowExpense, domain.FlowTransfer} {
		out[ft] = Stats(byFlow[ft])
	}
	return out
}

// MonthlyTotals sums amounts per calendar month, newest month first, and
// keeps at most limit months. A limit of zero or less keeps all of them.
func MonthlyTotals(txs []domain.Transaction, limit int) []domain.MonthlyTotal {
	byMonth := map[string]decimal.Decimal{}
	for _, tx := range txs {
		k := MonthKey(tx.Date)
		byMonth[k] = byMonth[k].Add(tx.Amount)
	}
	out := make([]domain.MonthlyTotal, 0, len(byMonth))
	for k, total := range byMonth {
		out = append(out, domain.MonthlyTotal{Month: k, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
