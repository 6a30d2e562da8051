// Package domain defines the core financial entities of the engine.
// Every entity is scoped by an organization (tenant); no value computed
// here may mix records from different organizations.
package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Enumerations
// ============================================================

// FlowType is the direction of money for a category or transaction.
type FlowType string

const (
	FlowIncome   FlowType = "INCOME"
	FlowExpense  FlowType = "EXPENSE"
	FlowTransfer FlowType = "TRANSFER"
)

// Valid reports whether f is a known flow type.
func (f FlowType) Valid() bool {
	switch f {
	case FlowIncome, FlowExpense, FlowTransfer:
		return true
	}
	return false
}

// TransactionStatus is the settlement state of a transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusCancelled TransactionStatus = "CANCELLED"
	StatusRefunded  TransactionStatus = "REFUNDED"
)

// PeriodType is the cadence of a budget.
type PeriodType string

const (
	PeriodMonthly   PeriodType = "MONTHLY"
	PeriodQuarterly PeriodType = "QUARTERLY"
	PeriodYearly    PeriodType = "YEARLY"
	PeriodCustom    PeriodType = "CUSTOM"
)

// Valid reports whether p is a known period type.
func (p PeriodType) Valid() bool {
	switch p {
	case PeriodMonthly, PeriodQuarterly, PeriodYearly, PeriodCustom:
		return true
	}
	return false
}

// Defaults applied when a budget is created without them.
const (
	DefaultCurrency = "USD"
)

// DefaultAlertThreshold is the percentage of consumption that triggers an alert.
var DefaultAlertThreshold = decimal.NewFromInt(80)

// ============================================================
// Entities
// ============================================================

// Organization is the tenant boundary.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Member is a user belonging to an organization with a role.
type Member struct {
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId"`
	Email          string `json:"email"`
	Name           string `json:"name,omitempty"`
	Role           string `json:"role"`
	IsActive       bool   `json:"isActive"`
}

// Roles that receive budget alerts.
const (
	RoleOwner          = "Owner"
	RoleFinanceManager = "Finance Manager"
)

// IsFinanceCapable reports whether the member should receive budget alerts.
func (m Member) IsFinanceCapable() bool {
	return m.IsActive && (m.Role == RoleOwner || m.Role == RoleFinanceManager)
}

// Category is a hierarchical label for transactions.
type Category struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Type           FlowType  `json:"type"`
	ParentID       string    `json:"parentId,omitempty"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Transaction is a single financial record. Amount is always non-negative
// and expressed in Currency; the sign is carried by Type.
type Transaction struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organizationId"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	Type           FlowType          `json:"type"`
	Status         TransactionStatus `json:"status"`
	Date           time.Time         `json:"date"`
	Description    string            `json:"description"`
	Notes          string            `json:"notes,omitempty"`
	Reference      string            `json:"reference,omitempty"`
	CategoryID     string            `json:"categoryId,omitempty"`
	IsActive       bool              `json:"isActive"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// Budget is a capped spending allowance over [PeriodStart, PeriodEnd].
type Budget struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	PeriodType     PeriodType      `json:"type"`
	PeriodStart    time.Time       `json:"periodStart"`
	PeriodEnd      time.Time       `json:"periodEnd"`
	AlertThreshold decimal.Decimal `json:"alertThreshold"`
	CategoryID     string          `json:"categoryId,omitempty"`
	IsActive       bool            `json:"isActive"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Overlaps reports whether the budget period intersects [from, to].
func (b Budget) Overlaps(from, to time.Time) bool {
	return !b.PeriodStart.After(to) && !b.PeriodEnd.Before(from)
}

// ============================================================
// Query filters
// ============================================================

// TransactionFilter narrows a ledger query. The organization and the
// active flag are not part of the filter: the ledger accessor applies
// them to every query unconditionally.
type TransactionFilter struct {
	From        *time.Time        `json:"from,omitempty"` // inclusive
	To          *time.Time        `json:"to,omitempty"`   // inclusive
	CategoryIDs []string          `json:"categoryIds,omitempty"`
	Types       []FlowType        `json:"types,omitempty"`
	Status      TransactionStatus `json:"status,omitempty"`
	AmountMin   *decimal.Decimal  `json:"amountMin,omitempty"`
	AmountMax   *decimal.Decimal  `json:"amountMax,omitempty"`
	Search      string            `json:"search,omitempty"`
}

// Matches reports whether tx satisfies every populated field of the filter.
func (f TransactionFilter) Matches(tx Transaction) bool {
	if f.From != nil && tx.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && tx.Date.After(*f.To) {
		return false
	}
	if len(f.CategoryIDs) > 0 && !slices.Contains(f.CategoryIDs, tx.CategoryID) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, tx.Type) {
		return false
	}
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if f.AmountMin != nil && tx.Amount.LessThan(*f.AmountMin) {
		return false
	}
	if f.AmountMax != nil && tx.Amount.GreaterThan(*f.AmountMax) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(tx.Description), q) &&
			!strings.Contains(strings.ToLower(tx.Notes), q) &&
			!strings.Contains(strings.ToLower(tx.Reference), q) {
			return false
		}
	}
	return true
}

// CategoryDependents counts the active records that still reference a category.
type CategoryDependents struct {
	Transactions int `json:"transactions"`
	Budgets      int `json:"budgets"`
	Children     int `json:"children"`
}

// Any reports whether anything still references the category.
func (d CategoryDependents) Any() bool {
	return d.Transactions > 0 || d.Budgets > 0 || d.Children > 0
}
