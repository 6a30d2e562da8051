package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/fincore/internal/analytics"
	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/infra/observability"
	"github.com/boddenberg/fincore/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CategoryInput carries the fields of a new category.
type CategoryInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        domain.FlowType `json:"type"`
	ParentID    string          `json:"parentId,omitempty"`
}

// CategoryPatch carries the fields to change on a category; nil fields are
// left untouched. An empty ParentID makes the category a root.
type CategoryPatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Type        *domain.FlowType `json:"type,omitempty"`
	ParentID    *string          `json:"parentId,omitempty"`
}

// CategoryService guards the category tree.
type CategoryService struct {
	ledger  port.Ledger
	cache   *DerivedCache
	events  emitter
	opts    Options
	metrics *observability.Metrics
	logger  *zap.Logger

	writeMu sync.Mutex
}

// NewCategoryService creates the category service.
func NewCategoryService(
	ledger port.Ledger,
	sink port.EventSink,
	cache *DerivedCache,
	opts Options,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *CategoryService {
	opts = opts.withDefaults()
	return &CategoryService{
		ledger:  ledger,
		cache:   cache,
		events:  emitter{sink: sink, now: opts.Now, metrics: metrics, logger: logger},
		opts:    opts,
		metrics: metrics,
		logger:  logger,
	}
}

// ListCategories returns the organization's active categories.
func (s *CategoryService) ListCategories(ctx context.Context, orgID string) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "CategoryService.ListCategories")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID))

	cats, err := callStore(ctx, s.opts.StoreTimeout, "ListCategories", func(ctx context.Context) ([]domain.Category, error) {
		return s.ledger.ListCategories(ctx, orgID)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "ListCategories", "read", err)
		return nil, err
	}
	return cats, nil
}

// CreateCategory validates and persists a new category.
func (s *CategoryService) CreateCategory(ctx context.Context, orgID string, in CategoryInput) (_ *domain.Category, err error) {
	ctx, span := tracer.Start(ctx, "CategoryService.CreateCategory")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID))

	start := time.Now()
	defer func() { track(s.metrics, "categories.create", start, err) }()

	now := s.opts.Now()
	c := &domain.Category{
		ID:             s.opts.NewID(),
		OrganizationID: orgID,
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		Type:           in.Type,
		ParentID:       in.ParentID,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.validateCategory(ctx, c); err != nil {
		return nil, err
	}
	if err := s.saveCategory(ctx, c); err != nil {
		return nil, err
	}
	s.events.emit(ctx, domain.EventCategoryCreated, orgID, map[string]any{
		"organizationId": orgID,
		"categoryId":     c.ID,
		"name":           c.Name,
		"type":           c.Type,
	})
	return c, nil
}

// UpdateCategory applies a patch and re-validates the category.
func (s *CategoryService) UpdateCategory(ctx context.Context, orgID, id string, patch CategoryPatch) (_ *domain.Category, err error) {
	ctx, span := tracer.Start(ctx, "CategoryService.UpdateCategory")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID), attribute.String("category.id", id))

	start := time.Now()
	defer func() { track(s.metrics, "categories.update", start, err) }()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	c, err := s.getCategory(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		c.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.Type != nil {
		c.Type = *patch.Type
	}
	if patch.ParentID != nil {
		c.ParentID = *patch.ParentID
	}
	c.UpdatedAt = s.opts.Now()

	if err := s.validateCategory(ctx, c); err != nil {
		return nil, err
	}
	if err := s.saveCategory(ctx, c); err != nil {
		return nil, err
	}
	s.events.emit(ctx, domain.EventCategoryUpdated, orgID, map[string]any{
		"organizationId": orgID,
		"categoryId":     c.ID,
		"name":           c.Name,
	})
	return c, nil
}

// DeleteCategory soft-deletes a category that nothing references.
func (s *CategoryService) DeleteCategory(ctx context.Context, orgID, id string) (err error) {
	ctx, span := tracer.Start(ctx, "CategoryService.DeleteCategory")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID), attribute.String("category.id", id))

	start := time.Now()
	defer func() { track(s.metrics, "categories.delete", start, err) }()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	c, err := s.getCategory(ctx, orgID, id)
	if err != nil {
		return err
	}
	deps, err := callStore(ctx, s.opts.StoreTimeout, "CountCategoryDependents", func(ctx context.Context) (domain.CategoryDependents, error) {
		return s.ledger.CountCategoryDependents(ctx, orgID, id)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "CountCategoryDependents", "read", err)
		return err
	}
	if deps.Any() {
		return &domain.ErrConflict{Message: fmt.Sprintf(
			"category '%s' is still in use: %d transactions, %d budgets, %d subcategories",
			c.Name, deps.Transactions, deps.Budgets, deps.Children,
		)}
	}

	c.IsActive = false
	c.UpdatedAt = s.opts.Now()
	if err := s.saveCategory(ctx, c); err != nil {
		return err
	}
	s.events.emit(ctx, domain.EventCategoryDeleted, orgID, map[string]any{
		"organizationId": orgID,
		"categoryId":     c.ID,
		"name":           c.Name,
	})
	return nil
}

// CategoryTrendMonths is how many months GetCategoryStats reports.
const CategoryTrendMonths = 12

// GetCategoryStats summarizes the active transactions and budgets that
// reference a category, with a monthly series of its most recent months.
func (s *CategoryService) GetCategoryStats(ctx context.Context, orgID, categoryID string) (_ *domain.CategoryStats, err error) {
	ctx, span := tracer.Start(ctx, "CategoryService.GetCategoryStats")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID), attribute.String("category.id", categoryID))

	start := time.Now()
	defer func() { track(s.metrics, "categories.stats", start, err) }()

	key := CacheKey(orgID, ScopeCategory, "stats", categoryID)
	var cached domain.CategoryStats
	if s.cache.load(ctx, observability.CacheCategoryStats, key, &cached) {
		return &cached, nil
	}

	c, err := s.getCategory(ctx, orgID, categoryID)
	if err != nil {
		return nil, err
	}

	var (
		txs     []domain.Transaction
		budgets []domain.Budget
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = callStore(gctx, s.opts.StoreTimeout, "ListTransactions", func(ctx context.Context) ([]domain.Transaction, error) {
			return s.ledger.ListTransactions(ctx, orgID, domain.TransactionFilter{CategoryIDs: []string{categoryID}})
		})
		if err != nil {
			storeFailed(s.metrics, s.logger, "ListTransactions", "read", err)
		}
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = callStore(gctx, s.opts.StoreTimeout, "ListActiveBudgets", func(ctx context.Context) ([]domain.Budget, error) {
			return s.ledger.ListActiveBudgets(ctx, orgID)
		})
		if err != nil {
			storeFailed(s.metrics, s.logger, "ListActiveBudgets", "read", err)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &domain.CategoryStats{
		Category:     *c,
		Transactions: analytics.Stats(txs),
		Budgets:      domain.BudgetStats{Total: decimal.Zero},
		MonthlyTrend: analytics.MonthlyTotals(txs, CategoryTrendMonths),
	}
	for _, b := range budgets {
		if b.CategoryID == categoryID {
			stats.Budgets.Total = stats.Budgets.Total.Add(b.Amount)
			stats.Budgets.Count++
		}
	}
	s.cache.save(ctx, observability.CacheCategoryStats, key, stats, s.opts.BudgetCacheTTL)
	return stats, nil
}

func (s *CategoryService) validateCategory(ctx context.Context, c *domain.Category) error {
	if c.Name == "" {
		return &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	if c.Type != domain.FlowIncome && c.Type != domain.FlowExpense {
		return &domain.ErrValidation{Field: "type", Message: "must be INCOME or EXPENSE"}
	}

	cats, err := callStore(ctx, s.opts.StoreTimeout, "ListCategories", func(ctx context.Context) ([]domain.Category, error) {
		return s.ledger.ListCategories(ctx, c.OrganizationID)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "ListCategories", "read", err)
		return err
	}
	for _, other := range cats {
		if other.ID != c.ID && other.Type == c.Type && other.Name == c.Name {
			return &domain.ErrConflict{Message: fmt.Sprintf("%s category '%s' already exists", c.Type, c.Name)}
		}
	}

	if c.ParentID == "" {
		return nil
	}
	if c.ParentID == c.ID {
		return &domain.ErrConflict{Message: "category cannot be its own parent"}
	}
	parent, err := s.getCategory(ctx, c.OrganizationID, c.ParentID)
	if err != nil {
		return err
	}
	return checkAncestry(c.ID, parent, cats)
}

// checkAncestry walks the parent chain starting at parent and fails when it
// reaches id. A pre-existing loop in the chain also fails.
func checkAncestry(id string, parent *domain.Category, cats []domain.Category) error {
	byID := make(map[string]domain.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}
	seen := map[string]bool{}
	cur := parent.ID
	next := parent.ParentID
	for {
		if cur == id {
			return &domain.ErrConflict{Message: "category cannot be its own ancestor"}
		}
		if seen[cur] {
			return &domain.ErrConflict{Message: "category tree contains a cycle at " + cur}
		}
		seen[cur] = true
		if next == "" {
			return nil
		}
		p, ok := byID[next]
		if !ok {
			return nil
		}
		cur, next = p.ID, p.ParentID
	}
}

func (s *CategoryService) getCategory(ctx context.Context, orgID, id string) (*domain.Category, error) {
	c, err := callStore(ctx, s.opts.StoreTimeout, "GetCategory", func(ctx context.Context) (*domain.Category, error) {
		return s.ledger.GetCategory(ctx, orgID, id)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "GetCategory", "read", err)
		return nil, err
	}
	return c, nil
}

// saveCategory persists c and drops every scope that shows category names.
func (s *CategoryService) saveCategory(ctx context.Context, c *domain.Category) error {
	if err := execStore(ctx, s.opts.StoreTimeout, "SaveCategory", func(ctx context.Context) error {
		return s.ledger.SaveCategory(ctx, c)
	}); err != nil {
		storeFailed(s.metrics, s.logger, "SaveCategory", "write", err)
		return err
	}
	s.cache.Invalidate(ctx, c.OrganizationID, ScopeCategory, ScopeTransaction, ScopeReport)
	return nil
}
