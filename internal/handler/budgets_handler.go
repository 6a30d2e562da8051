package handler

import (
	"net/http"

	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Budgets
// ============================================================

func listBudgetsHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budgets")
		defer span.End()

		p := PrincipalFromContext(ctx)
		budgets, err := svc.GetBudgets(ctx, p.OrganizationID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.BudgetWithMetrics]{Data: budgets, Total: len(budgets)})
	}
}

func getBudgetHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budgets/{budgetId}")
		defer span.End()

		budgetID := chi.URLParam(r, "budgetId")
		span.SetAttributes(attribute.String("budget.id", budgetID))

		b, err := svc.GetBudget(ctx, PrincipalFromContext(ctx).OrganizationID, budgetID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func budgetTrendsHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budgets/trends")
		defer span.End()

		points, err := svc.GetBudgetTrends(ctx, PrincipalFromContext(ctx).OrganizationID, r.URL.Query().Get("categoryId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.TrendPoint]{Data: points, Total: len(points)})
	}
}

func checkAlertsHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/budgets/alerts/check")
		defer span.End()

		alerts, err := svc.CheckBudgetAlerts(ctx, PrincipalFromContext(ctx).OrganizationID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Alert]{Data: alerts, Total: len(alerts)})
	}
}

func createBudgetHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/budgets")
		defer span.End()

		var in service.BudgetInput
		if !decodeBody(w, r, &in) {
			return
		}
		b, err := svc.CreateBudget(ctx, PrincipalFromContext(ctx).OrganizationID, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, b)
	}
}

func updateBudgetHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/budgets/{budgetId}")
		defer span.End()

		var patch service.BudgetPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		b, err := svc.UpdateBudget(ctx, PrincipalFromContext(ctx).OrganizationID, chi.URLParam(r, "budgetId"), patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func deleteBudgetHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/budgets/{budgetId}")
		defer span.End()

		budgetID := chi.URLParam(r, "budgetId")
		if err := svc.DeleteBudget(ctx, PrincipalFromContext(ctx).OrganizationID, budgetID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "budget deleted", ID: budgetID})
	}
}
