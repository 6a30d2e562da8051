package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/infra/cache"
	"github.com/boddenberg/fincore/internal/infra/memory"
	"github.com/boddenberg/fincore/internal/infra/observability"
	"github.com/boddenberg/fincore/internal/port"
	"github.com/boddenberg/fincore/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	orgA = "org-a"
	orgB = "org-b"
)

// --- Fakes ---

type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingSink) Emit(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Name)
	}
	return out
}

func (r *recordingSink) count(name string) int {
	n := 0
	for _, got := range r.names() {
		if got == name {
			n++
		}
	}
	return n
}

type notifyCall struct {
	recipients []domain.Member
	alert      domain.Alert
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, recipients []domain.Member, alert domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, notifyCall{recipients: recipients, alert: alert})
	return r.err
}

// brokenCache fails every operation, like an unreachable cache server.
type brokenCache struct{}

var errCacheDown = errors.New("cache unreachable")

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errCacheDown
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errCacheDown
}
func (brokenCache) Delete(context.Context, string) error       { return errCacheDown }
func (brokenCache) DeletePrefix(context.Context, string) error { return errCacheDown }

// stallingCache accepts connections but never answers, so every call lasts
// until the caller's deadline.
type stallingCache struct{}

func (stallingCache) Get(ctx context.Context, _ string) ([]byte, bool, error) {
	<-ctx.Done()
	return nil, false, ctx.Err()
}
func (stallingCache) Set(ctx context.Context, _ string, _ []byte, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}
func (stallingCache) Delete(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}
func (stallingCache) DeletePrefix(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

// deleteRecordingCache records the keys removed one at a time.
type deleteRecordingCache struct {
	port.CacheStore
	mu      sync.Mutex
	deleted []string
}

func (c *deleteRecordingCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	c.deleted = append(c.deleted, key)
	c.mu.Unlock()
	return c.CacheStore.Delete(ctx, key)
}

// --- Environment ---

type env struct {
	ledger   *memory.Ledger
	sink     *recordingSink
	notifier *recordingNotifier
	metrics  *observability.Metrics

	budgets      *service.BudgetService
	categories   *service.CategoryService
	transactions *service.TransactionService
	reports      *service.ReportService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	c := cache.New(1000, 0)
	t.Cleanup(c.Close)
	return newEnvWith(t, memory.NewLedger(), c)
}

// newEnvWith builds the services over base and store. Each wrap decorates
// the ledger seen by the services; members and reports always come from base.
func newEnvWith(t *testing.T, base *memory.Ledger, store port.CacheStore, wrap ...func(port.Ledger) port.Ledger) *env {
	t.Helper()
	base.AddOrganization(domain.Organization{ID: orgA, Name: "Acme"})
	base.AddOrganization(domain.Organization{ID: orgB, Name: "Globex"})

	var ledger port.Ledger = base
	for _, w := range wrap {
		ledger = w(ledger)
	}

	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	sink := &recordingSink{}
	notifier := &recordingNotifier{}
	dc := service.NewDerivedCache(store, 100*time.Millisecond, metrics, logger)
	opts := service.Options{MaxConcurrency: 4}

	budgets := service.NewBudgetService(ledger, base, notifier, sink, dc, opts, metrics, logger)
	return &env{
		ledger:       base,
		sink:         sink,
		notifier:     notifier,
		metrics:      metrics,
		budgets:      budgets,
		categories:   service.NewCategoryService(ledger, sink, dc, opts, metrics, logger),
		transactions: service.NewTransactionService(ledger, sink, dc, opts, metrics, logger),
		reports:      service.NewReportService(ledger, base, budgets, sink, dc, opts, metrics, logger),
	}
}

func (e *env) category(t *testing.T, orgID, name string, flow domain.FlowType) *domain.Category {
	t.Helper()
	c, err := e.categories.CreateCategory(context.Background(), orgID, service.CategoryInput{Name: name, Type: flow})
	require.NoError(t, err)
	return c
}

func (e *env) expense(t *testing.T, orgID, amount string, date time.Time, categoryID string) *domain.Transaction {
	t.Helper()
	return e.record(t, orgID, domain.FlowExpense, amount, date, categoryID)
}

func (e *env) income(t *testing.T, orgID, amount string, date time.Time, categoryID string) *domain.Transaction {
	t.Helper()
	return e.record(t, orgID, domain.FlowIncome, amount, date, categoryID)
}

func (e *env) record(t *testing.T, orgID string, flow domain.FlowType, amount string, date time.Time, categoryID string) *domain.Transaction {
	t.Helper()
	tx, err := e.transactions.RecordTransaction(context.Background(), orgID, service.TransactionInput{
		Amount:      dec(amount),
		Type:        flow,
		Date:        date,
		Description: string(flow) + " " + amount,
		CategoryID:  categoryID,
	})
	require.NoError(t, err)
	return tx
}

func (e *env) budget(t *testing.T, orgID, name, amount string, from, to time.Time, categoryID string) *domain.Budget {
	t.Helper()
	b, err := e.budgets.CreateBudget(context.Background(), orgID, service.BudgetInput{
		Name:        name,
		Amount:      dec(amount),
		PeriodType:  domain.PeriodMonthly,
		PeriodStart: from,
		PeriodEnd:   to,
		CategoryID:  categoryID,
	})
	require.NoError(t, err)
	return b
}

// --- Helpers ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

var (
	march     = day(2024, time.March, 1)
	marchEnd  = time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC)
	aprilEnd  = time.Date(2024, time.April, 30, 23, 59, 59, 0, time.UTC)
	yearStart = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd   = time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC)
)
