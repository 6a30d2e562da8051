// Package sqlite is the durable ledger store of the engine, backed by
// modernc.org/sqlite. Every read filters by organization and by the active
// flag, so the rest of the engine never sees another tenant's rows or
// soft-deleted records.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("infra/sqlite")

const serviceName = "ledger-sqlite"

// timeLayout is fixed width so lexical order equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements the ledger, report and member ports over SQLite.
type Store struct {
	db     *sql.DB
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
	logger *zap.Logger
}

// DSN builds a connection string for path with foreign keys and a busy timeout.
func DSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Open creates the database directory if needed, runs migrations and
// returns a ready store.
func Open(path string, cfg resilience.Config, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := DSN(path)

	if err := RunMigrations(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{
		db:  db,
		cfg: cfg,
		cb: resilience.NewCircuitBreaker(serviceName, func(err error) bool {
			return err == nil || domain.IsBusinessError(err)
		}),
		logger: logger,
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable; used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// run executes fn under the circuit breaker with retries. Business errors
// are returned as-is and never retried; infrastructure errors are mapped to
// the transient error types.
func (s *Store) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, s.cfg, func() error {
			err := fn(ctx)
			if err != nil && (domain.IsBusinessError(err) || ctx.Err() != nil) {
				return resilience.Permanent(err)
			}
			return err
		})
	})
	if err == nil || domain.IsBusinessError(err) {
		return err
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		s.logger.Warn("sqlite: circuit open", zap.String("operation", op))
		return &domain.ErrCircuitOpen{Service: serviceName}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &domain.ErrTimeout{Operation: op}
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	}
	s.logger.Error("sqlite: operation failed", zap.String("operation", op), zap.Error(err))
	return &domain.ErrExternalService{Service: serviceName, Err: err}
}

// ============================================================
// Encoding helpers
// ============================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ownedUpsert turns an upsert that touched no row into ErrNotFound. The
// upserts only update rows of the same organization, so zero affected rows
// means the ID belongs to another tenant.
func ownedUpsert(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// ============================================================
// Organizations & members (MemberDirectory)
// ============================================================

// UpsertOrganization creates or renames an organization.
func (s *Store) UpsertOrganization(ctx context.Context, org domain.Organization) error {
	return s.run(ctx, "UpsertOrganization", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO organizations (id, name) VALUES (?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
			org.ID, org.Name)
		return err
	})
}

// UpsertMember adds or updates a member of an organization.
func (s *Store) UpsertMember(ctx context.Context, m domain.Member) error {
	return s.run(ctx, "UpsertMember", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO members (user_id, organization_id, email, name, role, is_active)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, organization_id) DO UPDATE SET
			   email = excluded.email, name = excluded.name,
			   role = excluded.role, is_active = excluded.is_active`,
			m.UserID, m.OrganizationID, m.Email, m.Name, m.Role, boolInt(m.IsActive))
		return err
	})
}

func (s *Store) ListMembers(ctx context.Context, orgID string) ([]domain.Member, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListMembers")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID))

	var out []domain.Member
	err := s.run(ctx, "ListMembers", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT user_id, organization_id, email, name, role, is_active
			 FROM members WHERE organization_id = ? ORDER BY user_id`, orgID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var m domain.Member
			var active int
			if err := rows.Scan(&m.UserID, &m.OrganizationID, &m.Email, &m.Name, &m.Role, &active); err != nil {
				return err
			}
			m.IsActive = active == 1
			out = append(out, m)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListOrganizations")
	defer span.End()

	var out []domain.Organization
	err := s.run(ctx, "ListOrganizations", func(ctx context.Context) error {
		// Tenants created through the API have budgets but no organizations row.
		rows, err := s.db.QueryContext(ctx,
			`SELECT ids.id, COALESCE(o.name, '')
			 FROM (SELECT id FROM organizations
			       UNION
			       SELECT organization_id FROM budgets WHERE is_active = 1) AS ids
			 LEFT JOIN organizations o ON o.id = ids.id
			 ORDER BY ids.id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var o domain.Organization
			if err := rows.Scan(&o.ID, &o.Name); err != nil {
				return err
			}
			out = append(out, o)
		}
		return rows.Err()
	})
	return out, err
}

// ============================================================
// Transactions
// ============================================================

const transactionColumns = `id, organization_id, amount, currency, type, status, date,
	description, notes, reference, category_id, is_active, created_at`

func scanTransaction(sc scanner) (domain.Transaction, error) {
	var (
		tx                 domain.Transaction
		date, created      string
		category           sql.NullString
		active             int
		flowType, txStatus string
	)
	err := sc.Scan(&tx.ID, &tx.OrganizationID, &tx.Amount, &tx.Currency, &flowType, &txStatus, &date,
		&tx.Description, &tx.Notes, &tx.Reference, &category, &active, &created)
	if err != nil {
		return tx, err
	}
	tx.Type = domain.FlowType(flowType)
	tx.Status = domain.TransactionStatus(txStatus)
	tx.CategoryID = category.String
	tx.IsActive = active == 1
	if tx.Date, err = parseTime(date); err != nil {
		return tx, err
	}
	if tx.CreatedAt, err = parseTime(created); err != nil {
		return tx, err
	}
	return tx, nil
}

// ListTransactions pushes the indexed predicates (organization, active,
// date range, categories, flow types, status) into SQL and applies the
// remaining ones with TransactionFilter.Matches.
func (s *Store) ListTransactions(ctx context.Context, orgID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID))

	var (
		where = []string{"organization_id = ?", "is_active = 1"}
		args  = []any{orgID}
	)
	if filter.From != nil {
		where = append(where, "date >= ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "date <= ?")
		args = append(args, formatTime(*filter.To))
	}
	if len(filter.CategoryIDs) > 0 {
		where = append(where, "category_id IN ("+placeholders(len(filter.CategoryIDs))+")")
		for _, id := range filter.CategoryIDs {
			args = append(args, id)
		}
	}
	if len(filter.Types) > 0 {
		where = append(where, "type IN ("+placeholders(len(filter.Types))+")")
		for _, t := range filter.Types {
			args = append(args, string(t))
		}
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := "SELECT " + transactionColumns + " FROM transactions WHERE " +
		strings.Join(where, " AND ") + " ORDER BY date DESC, id ASC"

	var out []domain.Transaction
	err := s.run(ctx, "ListTransactions", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]domain.Transaction, 0)
		for rows.Next() {
			tx, err := scanTransaction(rows)
			if err != nil {
				return err
			}
			if filter.Matches(tx) {
				out = append(out, tx)
			}
		}
		return rows.Err()
	})
	span.SetAttributes(attribute.Int("rows", len(out)))
	return out, err
}

func (s *Store) GetTransaction(ctx context.Context, orgID, id string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetTransaction")
	defer span.End()

	var tx domain.Transaction
	err := s.run(ctx, "GetTransaction", func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx,
			"SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND organization_id = ? AND is_active = 1",
			id, orgID)
		var err error
		tx, err = scanTransaction(row)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ErrNotFound{Resource: "transaction", ID: id}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "SQLite.SaveTransaction")
	defer span.End()

	return s.run(ctx, "SaveTransaction", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO transactions (`+transactionColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   amount = excluded.amount, currency = excluded.currency, type = excluded.type,
			   status = excluded.status, date = excluded.date, description = excluded.description,
			   notes = excluded.notes, reference = excluded.reference,
			   category_id = excluded.category_id, is_active = excluded.is_active
			 WHERE transactions.organization_id = excluded.organization_id`,
			tx.ID, tx.OrganizationID, tx.Amount, tx.Currency, string(tx.Type), string(tx.Status),
			formatTime(tx.Date), tx.Description, tx.Notes, tx.Reference, nullString(tx.CategoryID),
			boolInt(tx.IsActive), formatTime(tx.CreatedAt))
		if err != nil {
			return err
		}
		return ownedUpsert(res, "transaction", tx.ID)
	})
}

// ============================================================
// Budgets
// ============================================================

const budgetColumns = `id, organization_id, name, description, amount, currency, period_type,
	period_start, period_end, alert_threshold, category_id, is_active, created_at, updated_at`

func scanBudget(sc scanner) (domain.Budget, error) {
	var (
		b                            domain.Budget
		periodType                   string
		start, end, created, updated string
		category                     sql.NullString
		active                       int
	)
	err := sc.Scan(&b.ID, &b.OrganizationID, &b.Name, &b.Description, &b.Amount, &b.Currency, &periodType,
		&start, &end, &b.AlertThreshold, &category, &active, &created, &updated)
	if err != nil {
		return b, err
	}
	b.PeriodType = domain.PeriodType(periodType)
	b.CategoryID = category.String
	b.IsActive = active == 1
	for _, f := range []struct {
		dst *time.Time
		src string
	}{{&b.PeriodStart, start}, {&b.PeriodEnd, end}, {&b.CreatedAt, created}, {&b.UpdatedAt, updated}} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return b, err
		}
	}
	return b, nil
}

func (s *Store) GetBudget(ctx context.Context, orgID, id string) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetBudget")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID), attribute.String("budget.id", id))

	var b domain.Budget
	err := s.run(ctx, "GetBudget", func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx,
			"SELECT "+budgetColumns+" FROM budgets WHERE id = ? AND organization_id = ? AND is_active = 1",
			id, orgID)
		var err error
		b, err = scanBudget(row)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ErrNotFound{Resource: "budget", ID: id}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) ListActiveBudgets(ctx context.Context, orgID string) ([]domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListActiveBudgets")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", orgID))

	var out []domain.Budget
	err := s.run(ctx, "ListActiveBudgets", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			"SELECT "+budgetColumns+" FROM budgets WHERE organization_id = ? AND is_active = 1 ORDER BY created_at DESC, id ASC",
			orgID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]domain.Budget, 0)
		for rows.Next() {
			b, err := scanBudget(rows)
			if err != nil {
				return err
			}
			out = append(out, b)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) SaveBudget(ctx context.Context, b *domain.Budget) error {
	ctx, span := tracer.Start(ctx, "SQLite.SaveBudget")
	defer span.End()

	return s.run(ctx, "SaveBudget", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO budgets (`+budgetColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   name = excluded.name, description = excluded.description, amount = excluded.amount,
			   currency = excluded.currency, period_type = excluded.period_type,
			   period_start = excluded.period_start, period_end = excluded.period_end,
			   alert_threshold = excluded.alert_threshold, category_id = excluded.category_id,
			   is_active = excluded.is_active, updated_at = excluded.updated_at
			 WHERE budgets.organization_id = excluded.organization_id`,
			b.ID, b.OrganizationID, b.Name, b.Description, b.Amount, b.Currency, string(b.PeriodType),
			formatTime(b.PeriodStart), formatTime(b.PeriodEnd), b.AlertThreshold, nullString(b.CategoryID),
			boolInt(b.IsActive), formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
		if err != nil {
			return err
		}
		return ownedUpsert(res, "budget", b.ID)
	})
}

// ============================================================
// Categories
// ============================================================

const categoryColumns = `id, organization_id, name, description, type, parent_id, is_active, created_at, updated_at`

func scanCategory(sc scanner) (domain.Category, error) {
	var (
		c                domain.Category
		flowType         string
		parent           sql.NullString
		active           int
		created, updated string
	)
	err := sc.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Description, &flowType, &parent, &active, &created, &updated)
	if err != nil {
		return c, err
	}
	c.Type = domain.FlowType(flowType)
	c.ParentID = parent.String
	c.IsActive = active == 1
	if c.CreatedAt, err = parseTime(created); err != nil {
		return c, err
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return c, err
	}
	return c, nil
}

func (s *Store) GetCategory(ctx context.Context, orgID, id string) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetCategory")
	defer span.End()

	var c domain.Category
	err := s.run(ctx, "GetCategory", func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx,
			"SELECT "+categoryColumns+" FROM categories WHERE id = ? AND organization_id = ? AND is_active = 1",
			id, orgID)
		var err error
		c, err = scanCategory(row)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ErrNotFound{Resource: "category", ID: id}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCategories(ctx context.Context, orgID string) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListCategories")
	defer span.End()

	var out []domain.Category
	err := s.run(ctx, "ListCategories", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			"SELECT "+categoryColumns+" FROM categories WHERE organization_id = ? AND is_active = 1 ORDER BY name, id",
			orgID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]domain.Category, 0)
		for rows.Next() {
			c, err := scanCategory(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) SaveCategory(ctx context.Context, c *domain.Category) error {
	ctx, span := tracer.Start(ctx, "SQLite.SaveCategory")
	defer span.End()

	return s.run(ctx, "SaveCategory", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO categories (`+categoryColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   name = excluded.name, description = excluded.description, type = excluded.type,
			   parent_id = excluded.parent_id, is_active = excluded.is_active, updated_at = excluded.updated_at
			 WHERE categories.organization_id = excluded.organization_id`,
			c.ID, c.OrganizationID, c.Name, c.Description, string(c.Type), nullString(c.ParentID),
			boolInt(c.IsActive), formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
		if err != nil {
			return err
		}
		return ownedUpsert(res, "category", c.ID)
	})
}

func (s *Store) CountCategoryDependents(ctx context.Context, orgID, categoryID string) (domain.CategoryDependents, error) {
	ctx, span := tracer.Start(ctx, "SQLite.CountCategoryDependents")
	defer span.End()

	var d domain.CategoryDependents
	err := s.run(ctx, "CountCategoryDependents", func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx,
			`SELECT
			   (SELECT COUNT(*) FROM transactions WHERE organization_id = ?1 AND category_id = ?2 AND is_active = 1),
			   (SELECT COUNT(*) FROM budgets WHERE organization_id = ?1 AND category_id = ?2 AND is_active = 1),
			   (SELECT COUNT(*) FROM categories WHERE organization_id = ?1 AND parent_id = ?2 AND is_active = 1)`,
			orgID, categoryID).Scan(&d.Transactions, &d.Budgets, &d.Children)
	})
	return d, err
}

// ============================================================
// Reports (ReportStore)
// ============================================================

const reportColumns = `id, organization_id, name, description, type, filters, payload, generated_by, generated_at`

func scanReport(sc scanner) (domain.Report, error) {
	var (
		r                domain.Report
		reportType       string
		filters, payload string
		generatedAt      string
	)
	err := sc.Scan(&r.ID, &r.OrganizationID, &r.Name, &r.Description, &reportType, &filters, &payload, &r.GeneratedBy, &generatedAt)
	if err != nil {
		return r, err
	}
	r.Type = domain.ReportType(reportType)
	r.Payload = json.RawMessage(payload)
	if err := json.Unmarshal([]byte(filters), &r.Filters); err != nil {
		return r, fmt.Errorf("decode report filters: %w", err)
	}
	if r.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return r, err
	}
	return r, nil
}

func (s *Store) CreateReport(ctx context.Context, r *domain.Report) error {
	ctx, span := tracer.Start(ctx, "SQLite.CreateReport")
	defer span.End()
	span.SetAttributes(attribute.String("org.id", r.OrganizationID), attribute.String("report.type", string(r.Type)))

	filters, err := json.Marshal(r.Filters)
	if err != nil {
		return fmt.Errorf("encode report filters: %w", err)
	}
	return s.run(ctx, "CreateReport", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO reports (`+reportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.OrganizationID, r.Name, r.Description, string(r.Type), string(filters),
			string(r.Payload), r.GeneratedBy, formatTime(r.GeneratedAt))
		return err
	})
}

func (s *Store) ListReports(ctx context.Context, orgID string, reportType domain.ReportType) ([]domain.Report, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListReports")
	defer span.End()

	query := "SELECT " + reportColumns + " FROM reports WHERE organization_id = ?"
	args := []any{orgID}
	if reportType != "" {
		query += " AND type = ?"
		args = append(args, string(reportType))
	}
	query += " ORDER BY generated_at DESC, id DESC"

	var out []domain.Report
	err := s.run(ctx, "ListReports", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]domain.Report, 0)
		for rows.Next() {
			r, err := scanReport(rows)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) GetReport(ctx context.Context, orgID, id string) (*domain.Report, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetReport")
	defer span.End()

	var r domain.Report
	err := s.run(ctx, "GetReport", func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx,
			"SELECT "+reportColumns+" FROM reports WHERE id = ? AND organization_id = ?", id, orgID)
		var err error
		r, err = scanReport(row)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ErrNotFound{Resource: "report", ID: id}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
