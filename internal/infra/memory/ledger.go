// Package memory provides an in-process ledger used for local development
// and tests. It implements every store port of the engine and applies the
// same organization and active-flag rules as the SQLite store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/boddenberg/fincore/internal/domain"
)

// Ledger is a thread-safe in-memory store.
type Ledger struct {
	mu           sync.RWMutex
	orgs         map[string]domain.Organization
	members      map[string][]domain.Member
	categories   map[string]domain.Category
	transactions map[string]domain.Transaction
	budgets      map[string]domain.Budget
	reports      map[string]domain.Report
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		orgs:         make(map[string]domain.Organization),
		members:      make(map[string][]domain.Member),
		categories:   make(map[string]domain.Category),
		transactions: make(map[string]domain.Transaction),
		budgets:      make(map[string]domain.Budget),
		reports:      make(map[string]domain.Report),
	}
}

// AddOrganization registers a tenant.
func (l *Ledger) AddOrganization(org domain.Organization) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orgs[org.ID] = org
}

// AddMember attaches a member to an organization.
func (l *Ledger) AddMember(m domain.Member) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.members[m.OrganizationID] = append(l.members[m.OrganizationID], m)
}

// ============================================================
// LedgerReader
// ============================================================

func (l *Ledger) ListTransactions(ctx context.Context, orgID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Transaction, 0)
	for _, tx := range l.transactions {
		if tx.OrganizationID == orgID && tx.IsActive && filter.Matches(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (l *Ledger) GetTransaction(ctx context.Context, orgID, id string) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	tx, ok := l.transactions[id]
	if !ok || tx.OrganizationID != orgID || !tx.IsActive {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return &tx, nil
}

func (l *Ledger) GetBudget(ctx context.Context, orgID, id string) (*domain.Budget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, ok := l.budgets[id]
	if !ok || b.OrganizationID != orgID || !b.IsActive {
		return nil, &domain.ErrNotFound{Resource: "budget", ID: id}
	}
	return &b, nil
}

func (l *Ledger) ListActiveBudgets(ctx context.Context, orgID string) ([]domain.Budget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Budget, 0)
	for _, b := range l.budgets {
		if b.OrganizationID == orgID && b.IsActive {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (l *Ledger) GetCategory(ctx context.Context, orgID, id string) (*domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.categories[id]
	if !ok || c.OrganizationID != orgID || !c.IsActive {
		return nil, &domain.ErrNotFound{Resource: "category", ID: id}
	}
	return &c, nil
}

func (l *Ledger) ListCategories(ctx context.Context, orgID string) ([]domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Category, 0)
	for _, c := range l.categories {
		if c.OrganizationID == orgID && c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ============================================================
// LedgerWriter
// ============================================================

func (l *Ledger) SaveBudget(ctx context.Context, b *domain.Budget) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.budgets[b.ID]; ok && cur.OrganizationID != b.OrganizationID {
		return &domain.ErrNotFound{Resource: "budget", ID: b.ID}
	}
	l.budgets[b.ID] = *b
	return nil
}

func (l *Ledger) SaveCategory(ctx context.Context, c *domain.Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.categories[c.ID]; ok && cur.OrganizationID != c.OrganizationID {
		return &domain.ErrNotFound{Resource: "category", ID: c.ID}
	}
	l.categories[c.ID] = *c
	return nil
}

func (l *Ledger) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.transactions[tx.ID]; ok && cur.OrganizationID != tx.OrganizationID {
		return &domain.ErrNotFound{Resource: "transaction", ID: tx.ID}
	}
	l.transactions[tx.ID] = *tx
	return nil
}

func (l *Ledger) CountCategoryDependents(ctx context.Context, orgID, categoryID string) (domain.CategoryDependents, error) {
	var d domain.CategoryDependents
	if err := ctx.Err(); err != nil {
		return d, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, tx := range l.transactions {
		if tx.OrganizationID == orgID && tx.IsActive && tx.CategoryID == categoryID {
			d.Transactions++
		}
	}
	for _, b := range l.budgets {
		if b.OrganizationID == orgID && b.IsActive && b.CategoryID == categoryID {
			d.Budgets++
		}
	}
	for _, c := range l.categories {
		if c.OrganizationID == orgID && c.IsActive && c.ParentID == categoryID {
			d.Children++
		}
	}
	return d, nil
}

// ============================================================
// ReportStore
// ============================================================

func (l *Ledger) CreateReport(ctx context.Context, r *domain.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.reports[r.ID]; exists {
		return &domain.ErrConflict{Message: "report already exists: " + r.ID}
	}
	l.reports[r.ID] = *r
	return nil
}

func (l *Ledger) ListReports(ctx context.Context, orgID string, reportType domain.ReportType) ([]domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Report, 0)
	for _, r := range l.reports {
		if r.OrganizationID != orgID || (reportType != "" && r.Type != reportType) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].GeneratedAt.After(out[j].GeneratedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (l *Ledger) GetReport(ctx context.Context, orgID, id string) (*domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.reports[id]
	if !ok || r.OrganizationID != orgID {
		return nil, &domain.ErrNotFound{Resource: "report", ID: id}
	}
	return &r, nil
}

// ============================================================
// MemberDirectory
// ============================================================

func (l *Ledger) ListMembers(ctx context.Context, orgID string) ([]domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Member, len(l.members[orgID]))
	copy(out, l.members[orgID])
	return out, nil
}

func (l *Ledger) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]domain.Organization, len(l.orgs))
	for id, o := range l.orgs {
		seen[id] = o
	}
	// Organizations created through the API exist only as budget owners.
	for _, b := range l.budgets {
		if _, ok := seen[b.OrganizationID]; !ok && b.IsActive {
			seen[b.OrganizationID] = domain.Organization{ID: b.OrganizationID}
		}
	}

	out := make([]domain.Organization, 0, len(seen))
	for _, o := range seen {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
