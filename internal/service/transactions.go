package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/fincore/internal/analytics"
	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/infra/observability"
	"github.com/boddenberg/fincore/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TransactionInput carries the fields of a new transaction.
type TransactionInput struct {
	Amount      decimal.Decimal          `json:"amount"`
	Currency    string                   `json:"currency"`
	Type        domain.FlowType          `json:"type"`
	Status      domain.TransactionStatus `json:"status"`
	Date        time.Time                `json:"date"`
	Description string                   `json:"description"`
	Notes       string                   `json:"notes,omitempty"`
	Reference   string                   `json:"reference,omitempty"`
	CategoryID  string                   `json:"categoryId,omitempty"`
}

// TransactionPatch carries the fields to change on a transaction.
type TransactionPatch struct {
	Amount      *decimal.Decimal          `json:"amount,omitempty"`
	Currency    *string                   `json:"currency,omitempty"`
	Type        *domain.FlowType          `json:"type,omitempty"`
	Status      *domain.TransactionStatus `json:"status,omitempty"`
	Date        *time.Time                `json:"date,omitempty"`
	Description *string                   `json:"description,omitempty"`
	Notes       *string                   `json:"notes,omitempty"`
	Reference   *string                   `json:"reference,omitempty"`
	CategoryID  *string                   `json:"categoryId,omitempty"`
}

// TransactionService records ledger entries. Every write drops all derived
// values of the organization.
type TransactionService struct {
	ledger  port.Ledger
	cache   *DerivedCache
	events  emitter
	opts    Options
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewTransactionService creates the transaction service.
func NewTransactionService(
	ledger port.Ledger,
	sink port.EventSink,
	cache *DerivedCache,
	opts Options,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *TransactionService {
	opts = opts.withDefaults()
	return &TransactionService{
		ledger:  ledger,
		cache:   cache,
		events:  emitter{sink: sink, now: opts.Now, metrics: metrics, logger: logger},
		opts:    opts,
		metrics: metrics,
		logger:  logger,
	}
}

// ListTransactions returns the organization's active transactions matching filter.
func (s *TransactionService) ListTransactions(ctx context.Context, orgID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "TransactionService.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID))

	txs, err := callStore(ctx, s.opts.StoreTimeout, "ListTransactions", func(ctx context.Context) ([]domain.Transaction, error) {
		return s.ledger.ListTransactions(ctx, orgID, filter)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "ListTransactions", "read", err)
		return nil, err
	}
	return txs, nil
}

// GetTransactionSummary aggregates the organization's active transactions
// between from and to (both optional, inclusive): per-flow totals, counts
// and averages, net profit and a per-category breakdown.
func (s *TransactionService) GetTransactionSummary(ctx context.Context, orgID string, from, to *time.Time) (_ *domain.TransactionSummary, err error) {
	ctx, span := tracer.Start(ctx, "TransactionService.GetTransactionSummary")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID))

	start := time.Now()
	defer func() { track(s.metrics, "transactions.summary", start, err) }()

	filter := domain.TransactionFilter{From: utcPtr(from), To: utcPtr(to)}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, &domain.ErrValidation{Field: "from", Message: "must not be after to"}
	}

	key := CacheKey(orgID, ScopeTransaction, "summary", FilterHash(filter))
	var cached domain.TransactionSummary
	if s.cache.load(ctx, observability.CacheSummaries, key, &cached) {
		return &cached, nil
	}

	txs, err := callStore(ctx, s.opts.StoreTimeout, "ListTransactions", func(ctx context.Context) ([]domain.Transaction, error) {
		return s.ledger.ListTransactions(ctx, orgID, filter)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "ListTransactions", "read", err)
		return nil, err
	}
	cats, err := callStore(ctx, s.opts.StoreTimeout, "ListCategories", func(ctx context.Context) ([]domain.Category, error) {
		return s.ledger.ListCategories(ctx, orgID)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "ListCategories", "read", err)
		return nil, err
	}

	byFlow := analytics.StatsByFlow(txs)
	summary := &domain.TransactionSummary{
		From:       filter.From,
		To:         filter.To,
		Income:     byFlow[domain.FlowIncome],
		Expenses:   byFlow[domain.FlowExpense],
		Transfers:  byFlow[domain.FlowTransfer],
		NetProfit:  byFlow[domain.FlowIncome].Total.Sub(byFlow[domain.FlowExpense].Total),
		ByCategory: analytics.Breakdown(analytics.GroupByCategory(txs), categoryNames(cats)),
	}
	s.cache.save(ctx, observability.CacheSummaries, key, summary, s.opts.BudgetCacheTTL)
	return summary, nil
}

// RecordTransaction validates and persists a new transaction.
func (s *TransactionService) RecordTransaction(ctx context.Context, orgID string, in TransactionInput) (_ *domain.Transaction, err error) {
	ctx, span := tracer.Start(ctx, "TransactionService.RecordTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID))

	start := time.Now()
	defer func() { track(s.metrics, "transactions.create", start, err) }()

	tx := &domain.Transaction{
		ID:             s.opts.NewID(),
		OrganizationID: orgID,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Type:           in.Type,
		Status:         in.Status,
		Date:           in.Date.UTC(),
		Description:    in.Description,
		Notes:          in.Notes,
		Reference:      in.Reference,
		CategoryID:     in.CategoryID,
		IsActive:       true,
		CreatedAt:      s.opts.Now(),
	}
	if tx.Currency == "" {
		tx.Currency = domain.DefaultCurrency
	}
	if tx.Status == "" {
		tx.Status = domain.StatusCompleted
	}

	if err := s.validateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	if err := s.saveTransaction(ctx, tx); err != nil {
		return nil, err
	}
	s.events.emit(ctx, domain.EventTransactionCreated, orgID, map[string]any{
		"organizationId": orgID,
		"transactionId":  tx.ID,
		"amount":         tx.Amount,
		"type":           tx.Type,
	})
	return tx, nil
}

// MaxBulkTransactions caps the size of one bulk request.
const MaxBulkTransactions = 500

// BulkItemResult is the outcome of one item of a bulk request. Index is
// the item's position in the request.
type BulkItemResult struct {
	Index       int                 `json:"index"`
	Success     bool                `json:"success"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// BulkResult reports every item of a bulk request.
type BulkResult struct {
	Results    []BulkItemResult `json:"results"`
	Errors     []BulkItemResult `json:"errors"`
	Total      int              `json:"total"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
}

// RecordTransactions records each input independently; a failing item
// does not stop the rest. Only infrastructure failures and an oversized
// batch fail the call itself.
func (s *TransactionService) RecordTransactions(ctx context.Context, orgID string, inputs []TransactionInput) (*BulkResult, error) {
	ctx, span := tracer.Start(ctx, "TransactionService.RecordTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID), attribute.Int("bulk.size", len(inputs)))

	if len(inputs) == 0 {
		return nil, &domain.ErrValidation{Field: "transactions", Message: "must not be empty"}
	}
	if len(inputs) > MaxBulkTransactions {
		return nil, &domain.ErrValidation{Field: "transactions", Message: fmt.Sprintf("at most %d per request", MaxBulkTransactions)}
	}

	res := &BulkResult{Results: []BulkItemResult{}, Errors: []BulkItemResult{}, Total: len(inputs)}
	for i, in := range inputs {
		tx, err := s.RecordTransaction(ctx, orgID, in)
		switch {
		case err == nil:
			res.Results = append(res.Results, BulkItemResult{Index: i, Success: true, Transaction: tx})
		case domain.IsBusinessError(err):
			res.Errors = append(res.Errors, BulkItemResult{Index: i, Error: err.Error()})
		default:
			return nil, err
		}
	}
	res.Successful, res.Failed = len(res.Results), len(res.Errors)

	s.logger.Info("bulk transactions recorded",
		zap.String("org_id", orgID),
		zap.Int("successful", res.Successful),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// UpdateTransaction applies a patch and re-validates the transaction.
func (s *TransactionService) UpdateTransaction(ctx context.Context, orgID, id string, patch TransactionPatch) (_ *domain.Transaction, err error) {
	ctx, span := tracer.Start(ctx, "TransactionService.UpdateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID), attribute.String("transaction.id", id))

	start := time.Now()
	defer func() { track(s.metrics, "transactions.update", start, err) }()

	tx, err := s.getTransaction(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if patch.Amount != nil {
		tx.Amount = *patch.Amount
	}
	if patch.Currency != nil {
		tx.Currency = *patch.Currency
	}
	if patch.Type != nil {
		tx.Type = *patch.Type
	}
	if patch.Status != nil {
		tx.Status = *patch.Status
	}
	if patch.Date != nil {
		tx.Date = patch.Date.UTC()
	}
	if patch.Description != nil {
		tx.Description = *patch.Description
	}
	if patch.Notes != nil {
		tx.Notes = *patch.Notes
	}
	if patch.Reference != nil {
		tx.Reference = *patch.Reference
	}
	if patch.CategoryID != nil {
		tx.CategoryID = *patch.CategoryID
	}

	if err := s.validateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	if err := s.saveTransaction(ctx, tx); err != nil {
		return nil, err
	}
	s.events.emit(ctx, domain.EventTransactionUpdated, orgID, map[string]any{
		"organizationId": orgID,
		"transactionId":  tx.ID,
		"amount":         tx.Amount,
	})
	return tx, nil
}

// DeleteTransaction soft-deletes a transaction.
func (s *TransactionService) DeleteTransaction(ctx context.Context, orgID, id string) (err error) {
	ctx, span := tracer.Start(ctx, "TransactionService.DeleteTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID), attribute.String("transaction.id", id))

	start := time.Now()
	defer func() { track(s.metrics, "transactions.delete", start, err) }()

	tx, err := s.getTransaction(ctx, orgID, id)
	if err != nil {
		return err
	}
	tx.IsActive = false
	if err := s.saveTransaction(ctx, tx); err != nil {
		return err
	}
	s.events.emit(ctx, domain.EventTransactionDeleted, orgID, map[string]any{
		"organizationId": orgID,
		"transactionId":  tx.ID,
	})
	return nil
}

func (s *TransactionService) validateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.Amount.IsNegative() {
		return &domain.ErrValidation{Field: "amount", Message: "must not be negative"}
	}
	if !tx.Type.Valid() {
		return &domain.ErrValidation{Field: "type", Message: "unknown flow type " + string(tx.Type)}
	}
	if tx.Date.IsZero() {
		return &domain.ErrValidation{Field: "date", Message: "is required"}
	}
	if tx.CategoryID == "" {
		return nil
	}
	_, err := callStore(ctx, s.opts.StoreTimeout, "GetCategory", func(ctx context.Context) (*domain.Category, error) {
		return s.ledger.GetCategory(ctx, tx.OrganizationID, tx.CategoryID)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "GetCategory", "read", err)
	}
	return err
}

func (s *TransactionService) getTransaction(ctx context.Context, orgID, id string) (*domain.Transaction, error) {
	tx, err := callStore(ctx, s.opts.StoreTimeout, "GetTransaction", func(ctx context.Context) (*domain.Transaction, error) {
		return s.ledger.GetTransaction(ctx, orgID, id)
	})
	if err != nil {
		storeFailed(s.metrics, s.logger, "GetTransaction", "read", err)
		return nil, err
	}
	return tx, nil
}

// saveTransaction persists tx and drops every derived-value scope.
func (s *TransactionService) saveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if err := execStore(ctx, s.opts.StoreTimeout, "SaveTransaction", func(ctx context.Context) error {
		return s.ledger.SaveTransaction(ctx, tx)
	}); err != nil {
		storeFailed(s.metrics, s.logger, "SaveTransaction", "write", err)
		return err
	}
	s.cache.Invalidate(ctx, tx.OrganizationID, AllScopes...)
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func categoryNames(cats []domain.Category) map[string]string {
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names
}
