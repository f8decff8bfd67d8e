// Package handlers holds the HTTP endpoints of the expense API.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-classifier/internal/api/middleware"
	"github.com/dvloznov/expense-classifier/internal/detect"
	"github.com/dvloznov/expense-classifier/internal/gcs"
	"github.com/dvloznov/expense-classifier/internal/infra/bigquery"
	"github.com/dvloznov/expense-classifier/internal/ingest"
	"github.com/dvloznov/expense-classifier/internal/jobs"
	"github.com/dvloznov/expense-classifier/internal/pipeline"
)

// maxUploadBytes caps statement uploads at 10 MiB.
const maxUploadBytes = 10 << 20

// ExpensesHandler handles expense-related endpoints.
type ExpensesHandler struct {
	importer  *pipeline.Importer
	repo      pipeline.ExpenseRepository
	storage   gcs.StorageService
	publisher jobs.Publisher
	bucket    string
	log       zerolog.Logger
}

// NewExpensesHandler creates a new expenses handler. storage and
// publisher may be nil when GCS imports are disabled.
func NewExpensesHandler(importer *pipeline.Importer, repo pipeline.ExpenseRepository, storage gcs.StorageService, publisher jobs.Publisher, bucket string, log zerolog.Logger) *ExpensesHandler {
	return &ExpensesHandler{
		importer:  importer,
		repo:      repo,
		storage:   storage,
		publisher: publisher,
		bucket:    bucket,
		log:       log,
	}
}

// Import handles POST /api/expenses/import. The statement comes as the
// "file" field of a multipart form and is imported synchronously.
func (h *ExpensesHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read file")
		return
	}
	if len(data) > maxUploadBytes {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	result, err := h.importer.ImportFile(ctx, data, header.Filename)
	if err != nil {
		h.writeImportError(w, header.Filename, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"filename":    result.Filename,
		"total_rows":  result.TotalRows,
		"imported":    result.Imported,
		"skipped":     result.Skipped,
		"by_provider": result.ByProvider,
		"expenses":    toResponses(result.Expenses),
	})
}

// ImportGCS handles POST /api/expenses/import-gcs. The statement is
// uploaded to GCS and imported asynchronously by the job worker.
func (h *ExpensesHandler) ImportGCS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.storage == nil || h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Async imports are not configured")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	objectName := fmt.Sprintf("imports/%s/%s", time.Now().Format("2006/01/02"), uuid.New().String()+"-"+header.Filename)
	gcsURI, err := h.storage.Upload(ctx, h.bucket, objectName, file)
	if err != nil {
		h.log.Error().Err(err).Str("filename", header.Filename).Msg("Failed to upload statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	job := &jobs.ImportStatementJob{
		GCSURI:         gcsURI,
		SourceFilename: header.Filename,
	}
	if err := h.publisher.PublishImportStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Str("gcs_uri", gcsURI).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": gcsURI,
		"status":  string(job.Status),
	})
}

// List handles GET /api/expenses with skip, limit, category, from and to
// query parameters.
func (h *ExpensesHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := filterFromQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	expenses, err := h.repo.ListExpenses(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list expenses")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list expenses")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"expenses": toResponses(expenses),
		"count":    len(expenses),
	})
}

// Get handles GET /api/expenses/:id.
func (h *ExpensesHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	exp, err := h.repo.GetExpense(r.Context(), id)
	if err != nil {
		if errors.Is(err, bigquery.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Expense not found")
			return
		}
		h.log.Error().Err(err).Str("expense_id", id).Msg("Failed to get expense")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get expense")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toResponse(*exp))
}

// Update handles PUT /api/expenses/:id. A manual category change is also
// recorded as a correction so future imports learn from it.
func (h *ExpensesHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Category    string `json:"category"`
		Subcategory string `json:"subcategory"`
	}
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Category == "" || req.Subcategory == "" {
		middleware.WriteError(w, http.StatusBadRequest, "category and subcategory are required")
		return
	}

	if err := h.importer.Reclassify(r.Context(), id, req.Category, req.Subcategory); err != nil {
		if errors.Is(err, bigquery.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Expense not found")
			return
		}
		h.log.Error().Err(err).Str("expense_id", id).Msg("Failed to update expense")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update expense")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"expense_id":  id,
		"category":    req.Category,
		"subcategory": req.Subcategory,
	})
}

// Delete handles DELETE /api/expenses/:id.
func (h *ExpensesHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.repo.DeleteExpense(r.Context(), id); err != nil {
		if errors.Is(err, bigquery.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Expense not found")
			return
		}
		h.log.Error().Err(err).Str("expense_id", id).Msg("Failed to delete expense")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete expense")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// KPIs handles GET /api/expenses/kpis: spending over an optional date
// range as positive magnitudes, broken down by category and by month.
func (h *ExpensesHandler) KPIs(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRangeFromQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.repo.KPIs(r.Context(), from, to)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute KPIs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute KPIs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total":       report.Total,
		"by_category": report.ByCategory,
		"by_month":    report.ByMonth,
		"count":       report.Count,
	})
}

// writeImportError maps pipeline failures to HTTP statuses: unsupported
// and unparseable files, and undetectable columns, are client errors.
func (h *ExpensesHandler) writeImportError(w http.ResponseWriter, filename string, err error) {
	var cde *pipeline.ColumnDetectionError
	var pe *ingest.ParseError

	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		middleware.WriteError(w, http.StatusUnsupportedMediaType, "Only CSV and Excel files are supported")
	case errors.As(err, &cde):
		middleware.WriteError(w, http.StatusUnprocessableEntity, cde.Error())
	case errors.As(err, &pe):
		middleware.WriteError(w, http.StatusBadRequest, pe.Error())
	default:
		h.log.Error().Err(err).Str("filename", filename).Msg("Import failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Import failed")
	}
}

// expenseResponse is the JSON shape of one expense.
type expenseResponse struct {
	ID          string  `json:"expense_id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Provider    string  `json:"provider,omitempty"`
	IsCorrected bool    `json:"is_corrected"`
	SourceFile  string  `json:"source_file,omitempty"`
}

func toResponse(e pipeline.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Date:        e.Date.Format(time.DateOnly),
		Description: e.Description,
		Amount:      e.Amount,
		Category:    e.Category,
		Subcategory: e.Subcategory,
		Provider:    e.Provider,
		IsCorrected: e.IsCorrected,
		SourceFile:  e.SourceFile,
	}
}

func toResponses(expenses []pipeline.Expense) []expenseResponse {
	out := make([]expenseResponse, len(expenses))
	for i, e := range expenses {
		out[i] = toResponse(e)
	}
	return out
}

func filterFromQuery(r *http.Request) (pipeline.ExpenseFilter, error) {
	q := r.URL.Query()
	filter := pipeline.ExpenseFilter{Category: q.Get("category")}

	var err error
	if filter.From, filter.To, err = dateRangeFromQuery(r); err != nil {
		return filter, err
	}

	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("invalid skip parameter")
		}
		filter.Skip = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("invalid limit parameter")
		}
		filter.Limit = n
	}
	return filter, nil
}

func dateRangeFromQuery(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		if from, err = detect.ParseDate(v); err != nil {
			return from, to, fmt.Errorf("invalid from date")
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = detect.ParseDate(v); err != nil {
			return from, to, fmt.Errorf("invalid to date")
		}
	}
	return from, to, nil
}
