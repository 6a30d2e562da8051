package handler

import (
	"net/http"

	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Categories
// ============================================================

func listCategoriesHandler(svc *service.CategoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/categories")
		defer span.End()

		cats, err := svc.ListCategories(ctx, PrincipalFromContext(ctx).OrganizationID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Category]{Data: cats, Total: len(cats)})
	}
}

func createCategoryHandler(svc *service.CategoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/categories")
		defer span.End()

		var in service.CategoryInput
		if !decodeBody(w, r, &in) {
			return
		}
		c, err := svc.CreateCategory(ctx, PrincipalFromContext(ctx).OrganizationID, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func updateCategoryHandler(svc *service.CategoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/categories/{categoryId}")
		defer span.End()

		var patch service.CategoryPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		c, err := svc.UpdateCategory(ctx, PrincipalFromContext(ctx).OrganizationID, chi.URLParam(r, "categoryId"), patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func categoryStatsHandler(svc *service.CategoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/categories/{categoryId}/stats")
		defer span.End()

		stats, err := svc.GetCategoryStats(ctx, PrincipalFromContext(ctx).OrganizationID, chi.URLParam(r, "categoryId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func deleteCategoryHandler(svc *service.CategoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/categories/{categoryId}")
		defer span.End()

		id := chi.URLParam(r, "categoryId")
		if err := svc.DeleteCategory(ctx, PrincipalFromContext(ctx).OrganizationID, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "category deleted", ID: id})
	}
}

// ============================================================
// Transactions
// ============================================================

// transactionFilter reads ?from&to&categoryId&type&status&minAmount&maxAmount&search.
func transactionFilter(r *http.Request) (domain.TransactionFilter, error) {
	q := r.URL.Query()
	var f domain.TransactionFilter
	var err error

	if f.From, err = optionalDate("from", q.Get("from"), false); err != nil {
		return f, err
	}
	if f.To, err = optionalDate("to", q.Get("to"), true); err != nil {
		return f, err
	}
	if f.AmountMin, err = optionalDecimal("minAmount", q.Get("minAmount")); err != nil {
		return f, err
	}
	if f.AmountMax, err = optionalDecimal("maxAmount", q.Get("maxAmount")); err != nil {
		return f, err
	}
	f.CategoryIDs = splitList(q.Get("categoryId"))
	for _, t := range splitList(q.Get("type")) {
		ft := domain.FlowType(t)
		if !ft.Valid() {
			return f, &domain.ErrValidation{Field: "type", Message: "unknown flow type " + t}
		}
		f.Types = append(f.Types, ft)
	}
	f.Status = domain.TransactionStatus(q.Get("status"))
	f.Search = q.Get("search")
	return f, nil
}

func listTransactionsHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		filter, err := transactionFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		txs, err := svc.ListTransactions(ctx, PrincipalFromContext(ctx).OrganizationID, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Transaction]{Data: txs, Total: len(txs)})
	}
}

func createTransactionHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var in service.TransactionInput
		if !decodeBody(w, r, &in) {
			return
		}
		tx, err := svc.RecordTransaction(ctx, PrincipalFromContext(ctx).OrganizationID, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

func transactionSummaryHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions/summary")
		defer span.End()

		q := r.URL.Query()
		from, err := optionalDate("from", q.Get("from"), false)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		to, err := optionalDate("to", q.Get("to"), true)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		summary, err := svc.GetTransactionSummary(ctx, PrincipalFromContext(ctx).OrganizationID, from, to)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

type bulkTransactionsRequest struct {
	Transactions []service.TransactionInput `json:"transactions"`
}

// bulkCreateTransactionsHandler answers 201 when every item was recorded
// and 207 when some were rejected.
func bulkCreateTransactionsHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/bulk")
		defer span.End()

		var req bulkTransactionsRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := svc.RecordTransactions(ctx, PrincipalFromContext(ctx).OrganizationID, req.Transactions)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		status := http.StatusCreated
		if res.Failed > 0 {
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, res)
	}
}

func updateTransactionHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/transactions/{transactionId}")
		defer span.End()

		var patch service.TransactionPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		tx, err := svc.UpdateTransaction(ctx, PrincipalFromContext(ctx).OrganizationID, chi.URLParam(r, "transactionId"), patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

func deleteTransactionHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/transactions/{transactionId}")
		defer span.End()

		id := chi.URLParam(r, "transactionId")
		if err := svc.DeleteTransaction(ctx, PrincipalFromContext(ctx).OrganizationID, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "transaction deleted", ID: id})
	}
}
