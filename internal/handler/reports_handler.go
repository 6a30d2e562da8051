package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Reports
// ============================================================

type generateReportRequest struct {
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	CategoryIDs []string `json:"categoryIds,omitempty"`
	BudgetIDs   []string `json:"budgetIds,omitempty"`
}

func (req generateReportRequest) filters() (domain.ReportFilters, error) {
	start, err := parseDate("startDate", req.StartDate, false)
	if err != nil {
		return domain.ReportFilters{}, err
	}
	end, err := parseDate("endDate", req.EndDate, true)
	if err != nil {
		return domain.ReportFilters{}, err
	}
	return domain.ReportFilters{
		StartDate:   start,
		EndDate:     end,
		CategoryIDs: req.CategoryIDs,
		BudgetIDs:   req.BudgetIDs,
	}, nil
}

// reportTypeParam accepts PROFIT_LOSS as well as profit-loss.
func reportTypeParam(v string) domain.ReportType {
	return domain.ReportType(strings.ToUpper(strings.ReplaceAll(v, "-", "_")))
}

func generateReportHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reports/{reportType}")
		defer span.End()

		reportType := reportTypeParam(chi.URLParam(r, "reportType"))
		span.SetAttributes(attribute.String("report.type", string(reportType)))

		var req generateReportRequest
		if !decodeBody(w, r, &req) {
			return
		}
		filters, err := req.filters()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		p := PrincipalFromContext(ctx)
		report, err := svc.GenerateReport(ctx, p.OrganizationID, p.UserID, reportType, filters)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, report)
	}
}

func listReportsHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports")
		defer span.End()

		var reportType domain.ReportType
		if v := r.URL.Query().Get("type"); v != "" {
			reportType = reportTypeParam(v)
		}
		reports, err := svc.ListReports(ctx, PrincipalFromContext(ctx).OrganizationID, reportType)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Report]{Data: reports, Total: len(reports)})
	}
}

func getReportHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/{reportId}")
		defer span.End()

		report, err := svc.GetReport(ctx, PrincipalFromContext(ctx).OrganizationID, chi.URLParam(r, "reportId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// ============================================================
// Runway
// ============================================================

func simulateRunwayHandler(svc *service.RunwayService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/runway/simulate")
		defer span.End()

		var in domain.RunwayInputs
		if !decodeBody(w, r, &in) {
			return
		}
		res, err := svc.SimulateRunway(ctx, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
