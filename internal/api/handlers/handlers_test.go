package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/expense-classifier/internal/classify"
	"github.com/dvloznov/expense-classifier/internal/corrections"
	"github.com/dvloznov/expense-classifier/internal/infra/memory"
	"github.com/dvloznov/expense-classifier/internal/logger"
	"github.com/dvloznov/expense-classifier/internal/pipeline"
)

func newTestHandler(t *testing.T) (*ExpensesHandler, *memory.Repository, *corrections.MemoryStore) {
	t.Helper()

	repo := memory.NewRepository()
	store := corrections.NewMemoryStore()
	importer := &pipeline.Importer{
		Classifier:  classify.New(classify.DefaultTaxonomy()),
		Corrections: store,
		Expenses:    repo,
	}
	log := logger.NewWithWriter(io.Discard)
	return NewExpensesHandler(importer, repo, nil, nil, "", log), repo, store
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestImport(t *testing.T) {
	h, repo, _ := newTestHandler(t)

	body, contentType := multipartBody(t, "extracto.csv",
		"Fecha,Concepto,Importe\n01/02/2024,COMPRA MERCADONA,-23.45\n")
	req := httptest.NewRequest(http.MethodPost, "/api/expenses/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Import(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Imported int               `json:"imported"`
		Skipped  int               `json:"skipped"`
		Expenses []expenseResponse `json:"expenses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Imported != 1 || resp.Skipped != 0 {
		t.Errorf("response = %+v, want 1 imported", resp)
	}
	if len(resp.Expenses) != 1 || resp.Expenses[0].Category != "Alimentación" {
		t.Errorf("expenses = %+v, want the imported record returned", resp.Expenses)
	}

	stored, err := repo.ListExpenses(context.Background(), pipeline.ExpenseFilter{})
	if err != nil {
		t.Fatalf("ListExpenses() error = %v", err)
	}
	if len(stored) != 1 || stored[0].Category != "Alimentación" {
		t.Errorf("stored = %+v, want one Alimentación expense", stored)
	}
}

func TestImport_UnsupportedFormat(t *testing.T) {
	h, _, _ := newTestHandler(t)

	body, contentType := multipartBody(t, "extracto.pdf", "%PDF-1.4")
	req := httptest.NewRequest(http.MethodPost, "/api/expenses/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Import(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestImport_UndetectableColumns(t *testing.T) {
	h, _, _ := newTestHandler(t)

	body, contentType := multipartBody(t, "vacio.csv", "Fecha,Concepto,Importe\n")
	req := httptest.NewRequest(http.MethodPost, "/api/expenses/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Import(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "amount") {
		t.Errorf("body = %s, want it to name the missing amount column", rec.Body.String())
	}
}

func TestImport_MissingFile(t *testing.T) {
	h, _, _ := newTestHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/expenses/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	h.Import(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func seedExpenses(t *testing.T, repo *memory.Repository) {
	t.Helper()

	date := func(s string) time.Time {
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			t.Fatalf("parse date: %v", err)
		}
		return d
	}

	err := repo.InsertExpenses(context.Background(), []pipeline.Expense{
		{ID: "e1", Date: date("2024-02-01"), Description: "COMPRA MERCADONA", Amount: -23.45, Category: "Alimentación", Subcategory: "Supermercado"},
		{ID: "e2", Date: date("2024-02-02"), Description: "RECIBO IBERDROLA", Amount: -55.20, Category: "Hogar", Subcategory: "Luz"},
		{ID: "e3", Date: date("2024-02-03"), Description: "NOMINA", Amount: 1500, Category: "Ingresos", Subcategory: "Nómina"},
	})
	if err != nil {
		t.Fatalf("InsertExpenses() error = %v", err)
	}
}

func TestList_WithFilters(t *testing.T) {
	h, repo, _ := newTestHandler(t)
	seedExpenses(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/expenses?category=Hogar", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Count    int               `json:"count"`
		Expenses []expenseResponse `json:"expenses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || resp.Expenses[0].ID != "e2" {
		t.Errorf("response = %+v, want only e2", resp)
	}
}

func TestList_InvalidSkip(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/expenses?skip=abc", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpdate_RecordsCorrection(t *testing.T) {
	h, repo, store := newTestHandler(t)
	seedExpenses(t, repo)

	body := strings.NewReader(`{"category": "Compras", "subcategory": "Electrónica"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/expenses/e1", body)
	rec := httptest.NewRecorder()

	h.Update(rec, req, "e1")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	exp, err := repo.GetExpense(context.Background(), "e1")
	if err != nil {
		t.Fatalf("GetExpense() error = %v", err)
	}
	if exp.Category != "Compras" || !exp.IsCorrected {
		t.Errorf("expense = %+v, want corrected Compras", exp)
	}

	entries, err := store.TopByUsage(context.Background(), 10)
	if err != nil {
		t.Fatalf("TopByUsage() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Pattern != "compra mercadona" {
		t.Errorf("entries = %+v, want the correction recorded", entries)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)

	body := strings.NewReader(`{"category": "Compras", "subcategory": "Ropa"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/expenses/nope", body)
	rec := httptest.NewRecorder()

	h.Update(rec, req, "nope")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDelete(t *testing.T) {
	h, repo, _ := newTestHandler(t)
	seedExpenses(t, repo)

	req := httptest.NewRequest(http.MethodDelete, "/api/expenses/e1", nil)
	rec := httptest.NewRecorder()

	h.Delete(rec, req, "e1")

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if _, err := repo.GetExpense(context.Background(), "e1"); err == nil {
		t.Error("expense still present after delete")
	}
}

func TestKPIs(t *testing.T) {
	h, repo, _ := newTestHandler(t)
	seedExpenses(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/expenses/kpis", nil)
	rec := httptest.NewRecorder()

	h.KPIs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Total      float64            `json:"total"`
		ByCategory map[string]float64 `json:"by_category"`
		ByMonth    map[string]float64 `json:"by_month"`
		Count      int                `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 78.65 || resp.Count != 2 {
		t.Errorf("total = %v, count = %d, want 78.65 over 2 expenses", resp.Total, resp.Count)
	}
	if resp.ByCategory["Alimentación"] != 23.45 || resp.ByCategory["Hogar"] != 55.20 {
		t.Errorf("by_category = %v, want positive magnitudes per category", resp.ByCategory)
	}
	if resp.ByMonth["2024-02"] != 78.65 {
		t.Errorf("by_month = %v, want 78.65 under 2024-02", resp.ByMonth)
	}
	// Income never counts toward spending KPIs.
	if _, ok := resp.ByCategory["Ingresos"]; ok {
		t.Errorf("by_category = %v, want no Ingresos entry", resp.ByCategory)
	}
}
