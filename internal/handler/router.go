package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/infra/observability"
	"github.com/boddenberg/fincore/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the engine operations exposed over HTTP.
type Services struct {
	Budgets      *service.BudgetService
	Categories   *service.CategoryService
	Transactions *service.TransactionService
	Reports      *service.ReportService
	Runway       *service.RunwayService

	// Store is checked by /healthz; nil reports only the API itself.
	Store Pinger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, jwtSecret []byte, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Store, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 (bearer-protected, scoped to the token's organization) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(jwtSecret, logger))

		// Budgets
		r.Get("/budgets", listBudgetsHandler(svc.Budgets, logger))
		r.Post("/budgets", createBudgetHandler(svc.Budgets, logger))
		r.Get("/budgets/trends", budgetTrendsHandler(svc.Budgets, logger))
		r.Post("/budgets/alerts/check", checkAlertsHandler(svc.Budgets, logger))
		r.Get("/budgets/{budgetId}", getBudgetHandler(svc.Budgets, logger))
		r.Put("/budgets/{budgetId}", updateBudgetHandler(svc.Budgets, logger))
		r.Delete("/budgets/{budgetId}", deleteBudgetHandler(svc.Budgets, logger))

		// Categories
		r.Get("/categories", listCategoriesHandler(svc.Categories, logger))
		r.Post("/categories", createCategoryHandler(svc.Categories, logger))
		r.Get("/categories/{categoryId}/stats", categoryStatsHandler(svc.Categories, logger))
		r.Put("/categories/{categoryId}", updateCategoryHandler(svc.Categories, logger))
		r.Delete("/categories/{categoryId}", deleteCategoryHandler(svc.Categories, logger))

		// Transactions
		r.Get("/transactions", listTransactionsHandler(svc.Transactions, logger))
		r.Post("/transactions", createTransactionHandler(svc.Transactions, logger))
		r.Get("/transactions/summary", transactionSummaryHandler(svc.Transactions, logger))
		r.Post("/transactions/bulk", bulkCreateTransactionsHandler(svc.Transactions, logger))
		r.Put("/transactions/{transactionId}", updateTransactionHandler(svc.Transactions, logger))
		r.Delete("/transactions/{transactionId}", deleteTransactionHandler(svc.Transactions, logger))

		// Reports
		r.Get("/reports", listReportsHandler(svc.Reports, logger))
		r.Post("/reports/{reportType}", generateReportHandler(svc.Reports, logger))
		r.Get("/reports/{reportId}", getReportHandler(svc.Reports, logger))

		// Runway
		r.Post("/runway/simulate", simulateRunwayHandler(svc.Runway, logger))

		// Metrics
		r.Get("/metrics/engine", engineMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(store Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "fincore-api", Status: "healthy", LastChecked: now},
		}

		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			start := time.Now()
			err := store.Ping(ctx)
			cancel()
			status := "healthy"
			if err != nil {
				status = "unhealthy"
				logger.Warn("health: ledger ping failed", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: "ledger", Status: status,
				LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overall, code := "healthy", http.StatusOK
		for _, s := range services {
			if s.Status == "unhealthy" {
				overall, code = "unhealthy", http.StatusServiceUnavailable
				break
			}
		}

		writeJSON(w, code, domain.HealthStatus{
			Status:   overall,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func engineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetEngineSnapshot())
	}
}
