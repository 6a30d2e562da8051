package service

import (
	"context"
	"strings"
	"time"

	"github.com/boddenberg/fincore/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BudgetInput carries the fields of a new budget. Currency and
// AlertThreshold fall back to the defaults when empty.
type BudgetInput struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	PeriodType     domain.PeriodType `json:"type"`
	PeriodStart    time.Time         `json:"periodStart"`
	PeriodEnd      time.Time         `json:"periodEnd"`
	AlertThreshold *decimal.Decimal  `json:"alertThreshold,omitempty"`
	CategoryID     string            `json:"categoryId,omitempty"`
}

// BudgetPatch carries the fields to change on an existing budget; nil
// fields are left untouched. An empty CategoryID clears the scope.
type BudgetPatch struct {
	Name           *string            `json:"name,omitempty"`
	Description    *string            `json:"description,omitempty"`
	Amount         *decimal.Decimal   `json:"amount,omitempty"`
	Currency       *string            `json:"currency,omitempty"`
	PeriodType     *domain.PeriodType `json:"type,omitempty"`
	PeriodStart    *time.Time         `json:"periodStart,omitempty"`
	PeriodEnd      *time.Time         `json:"periodEnd,omitempty"`
	AlertThreshold *decimal.Decimal   `json:"alertThreshold,omitempty"`
	CategoryID     *string            `json:"categoryId,omitempty"`
}

// CreateBudget validates and persists a new budget.
func (s *BudgetService) CreateBudget(ctx context.Context, orgID string, in BudgetInput) (_ *domain.Budget, err error) {
	ctx, span := tracer.Start(ctx, "BudgetService.CreateBudget")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID))

	start := time.Now()
	defer func() { track(s.metrics, "budgets.create", start, err) }()

	now := s.opts.Now()
	b := &domain.Budget{
		ID:             s.opts.NewID(),
		OrganizationID: orgID,
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		Amount:         in.Amount,
		Currency:       in.Currency,
		PeriodType:     in.PeriodType,
		PeriodStart:    in.PeriodStart.UTC(),
		PeriodEnd:      in.PeriodEnd.UTC(),
		AlertThreshold: domain.DefaultAlertThreshold,
		CategoryID:     in.CategoryID,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if b.Currency == "" {
		b.Currency = domain.DefaultCurrency
	}
	if b.PeriodType == "" {
		b.PeriodType = domain.PeriodCustom
	}
	if in.AlertThreshold != nil {
		b.AlertThreshold = *in.AlertThreshold
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.validateBudget(ctx, b); err != nil {
		return nil, err
	}
	if err := s.saveBudget(ctx, b); err != nil {
		return nil, err
	}

	s.events.emit(ctx, domain.EventBudgetCreated, orgID, map[string]any{
		"organizationId": orgID,
		"budgetId":       b.ID,
		"name":           b.Name,
		"amount":         b.Amount,
		"periodStart":    b.PeriodStart,
		"periodEnd":      b.PeriodEnd,
	})
	s.logger.Info("budget created", zap.String("org_id", orgID), zap.String("budget_id", b.ID))
	return b, nil
}

// UpdateBudget applies a patch to an existing budget and re-validates it.
func (s *BudgetService) UpdateBudget(ctx context.Context, orgID, id string, patch BudgetPatch) (_ *domain.Budget, err error) {
	ctx, span := tracer.Start(ctx, "BudgetService.UpdateBudget")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID), attribute.String("budget.id", id))

	start := time.Now()
	defer func() { track(s.metrics, "budgets.update", start, err) }()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	b, err := s.loadBudget(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		b.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		b.Description = *patch.Description
	}
	if patch.Amount != nil {
		b.Amount = *patch.Amount
	}
	if patch.Currency != nil {
		b.Currency = *patch.Currency
	}
	if patch.PeriodType != nil {
		b.PeriodType = *patch.PeriodType
	}
	if patch.PeriodStart != nil {
		b.PeriodStart = patch.PeriodStart.UTC()
	}
	if patch.PeriodEnd != nil {
		b.PeriodEnd = patch.PeriodEnd.UTC()
	}
	if patch.AlertThreshold != nil {
		b.AlertThreshold = *patch.AlertThreshold
	}
	if patch.CategoryID != nil {
		b.CategoryID = *patch.CategoryID
	}
	b.UpdatedAt = s.opts.Now()

	if err := s.validateBudget(ctx, b); err != nil {
		return nil, err
	}
	if err := s.saveBudget(ctx, b); err != nil {
		return nil, err
	}

	s.events.emit(ctx, domain.EventBudgetUpdated, orgID, map[string]any{
		"organizationId": orgID,
		"budgetId":       b.ID,
		"name":           b.Name,
		"amount":         b.Amount,
	})
	return b, nil
}

// DeleteBudget soft-deletes a budget.
func (s *BudgetService) DeleteBudget(ctx context.Context, orgID, id string) (err error) {
	ctx, span := tracer.Start(ctx, "BudgetService.DeleteBudget")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID), attribute.String("budget.id", id))

	start := time.Now()
	defer func() { track(s.metrics, "budgets.delete", start, err) }()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	b, err := s.loadBudget(ctx, orgID, id)
	if err != nil {
		return err
	}
	b.IsActive = false
	b.UpdatedAt = s.opts.Now()
	if err := s.saveBudget(ctx, b); err != nil {
		return err
	}

	s.events.emit(ctx, domain.EventBudgetDeleted, orgID, map[string]any{
		"organizationId": orgID,
		"budgetId":       b.ID,
		"name":           b.Name,
	})
	return nil
}

func (s *BudgetService) validateBudget(ctx context.Context, b *domain.Budget) error {
	if b.Name == "" {
		return &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	if !b.Amount.IsPositive() {
		return &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if !b.PeriodType.Valid() {
		return &domain.ErrValidation{Field: "type", Message: "unknown period type " + string(b.PeriodType)}
	}
	if !b.AlertThreshold.IsPositive() {
		return &domain.ErrValidation{Field: "alertThreshold", Message: "must be positive"}
	}
	if b.PeriodStart.IsZero() || b.PeriodEnd.IsZero() {
		return &domain.ErrValidation{Field: "period", Message: "periodStart and periodEnd are required"}
	}
	if !b.PeriodStart.Before(b.PeriodEnd) {
		return &domain.ErrConflict{Message: "budget periodStart must be before periodEnd"}
	}

	if b.CategoryID != "" {
		if _, err := callStore(ctx, s.opts.StoreTimeout, "GetCategory", func(ctx context.Context) (*domain.Category, error) {
			return s.ledger.GetCategory(ctx, b.OrganizationID, b.CategoryID)
		}); err != nil {
			storeFailed(s.metrics, s.logger, "GetCategory", "read", err)
			return err
		}
	}

	budgets, err := callStore(ctx, s.opts.StoreTimeout, "ListActiveBudgets", func(ctx context.Context) ([]domain.Budget, error) {
		return s.ledger.ListActiveBudgets(ctx, b.OrganizationID)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "ListActiveBudgets", "read", err)
		return err
	}
	for _, other := range budgets {
		if other.ID != b.ID && other.Name == b.Name {
			return &domain.ErrConflict{Message: "budget with name '" + b.Name + "' already exists"}
		}
	}
	return nil
}

// saveBudget persists b and drops the budget, category and report scopes.
func (s *BudgetService) saveBudget(ctx context.Context, b *domain.Budget) error {
	if err := execStore(ctx, s.opts.StoreTimeout, "SaveBudget", func(ctx context.Context) error {
		return s.ledger.SaveBudget(ctx, b)
	}); err != nil {
		storeFailed(s.metrics, s.logger, "SaveBudget", "write", err)
		return err
	}
	s.cache.Invalidate(ctx, b.OrganizationID, ScopeBudget, ScopeCategory, ScopeReport)
	return nil
}
