// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the engine
// services from concrete stores, caches and message brokers.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/fincore/internal/domain"
)

// LedgerReader is the read-only query interface over the ledger.
// Every method filters by organization and by the active flag; records of
// another organization resolve as domain.ErrNotFound.
type LedgerReader interface {
	ListTransactions(ctx context.Context, orgID string, filter domain.TransactionFilter) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, orgID, id string) (*domain.Transaction, error)
	GetBudget(ctx context.Context, orgID, id string) (*domain.Budget, error)
	ListActiveBudgets(ctx context.Context, orgID string) ([]domain.Budget, error)
	GetCategory(ctx context.Context, orgID, id string) (*domain.Category, error)
	ListCategories(ctx context.Context, orgID string) ([]domain.Category, error)
}

// LedgerWriter persists budget, category and transaction changes.
// Save* performs an upsert by ID; soft deletes are saves with IsActive false.
type LedgerWriter interface {
	SaveBudget(ctx context.Context, b *domain.Budget) error
	SaveCategory(ctx context.Context, c *domain.Category) error
	SaveTransaction(ctx context.Context, tx *domain.Transaction) error
	CountCategoryDependents(ctx context.Context, orgID, categoryID string) (domain.CategoryDependents, error)
}

// Ledger is the full store used by the command services.
type Ledger interface {
	LedgerReader
	LedgerWriter
}

// ReportStore keeps the append-only audit trail of generated reports.
type ReportStore interface {
	CreateReport(ctx context.Context, r *domain.Report) error
	// ListReports returns the organization's reports newest first; an empty
	// reportType lists every type.
	ListReports(ctx context.Context, orgID string, reportType domain.ReportType) ([]domain.Report, error)
	GetReport(ctx context.Context, orgID, id string) (*domain.Report, error)
}

// MemberDirectory resolves organizations and their members.
type MemberDirectory interface {
	ListMembers(ctx context.Context, orgID string) ([]domain.Member, error)
	ListOrganizations(ctx context.Context) ([]domain.Organization, error)
}

// CacheStore is a byte-oriented key/value store with per-key TTL.
// A miss is reported as (nil, false, nil).
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// EventSink receives fire-and-forget domain events.
type EventSink interface {
	Emit(ctx context.Context, event domain.Event) error
}

// Notifier delivers a budget alert to a list of recipients.
type Notifier interface {
	Notify(ctx context.Context, recipients []domain.Member, alert domain.Alert) error
}
