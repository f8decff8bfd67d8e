// Package bigquery persists expenses and corrections in BigQuery.
package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/expense-classifier/internal/pipeline"
)

const (
	expensesTable    = "expenses"
	correctionsTable = "category_corrections"

	dateFormat = "2006-01-02"
)

// ExpenseRow is the BigQuery shape of one expense.
type ExpenseRow struct {
	ExpenseID   string              `bigquery:"expense_id"`  // REQUIRED
	ExpenseDate civil.Date          `bigquery:"expense_date"`
	Description string              `bigquery:"description"`
	Amount      float64             `bigquery:"amount"`
	Category    string              `bigquery:"category"`
	Subcategory string              `bigquery:"subcategory"`
	Provider    bigquery.NullString `bigquery:"provider"` // NULLABLE
	IsCorrected bool                `bigquery:"is_corrected"`
	SourceFile  bigquery.NullString `bigquery:"source_file"` // NULLABLE
	CreatedTS   time.Time           `bigquery:"created_ts"`
}

// RowFromExpense converts a pipeline expense to its storage shape.
func RowFromExpense(e pipeline.Expense) *ExpenseRow {
	return &ExpenseRow{
		ExpenseID:   e.ID,
		ExpenseDate: civil.DateOf(e.Date),
		Description: e.Description,
		Amount:      e.Amount,
		Category:    e.Category,
		Subcategory: e.Subcategory,
		Provider:    bigquery.NullString{StringVal: e.Provider, Valid: e.Provider != ""},
		IsCorrected: e.IsCorrected,
		SourceFile:  bigquery.NullString{StringVal: e.SourceFile, Valid: e.SourceFile != ""},
		CreatedTS:   e.CreatedAt,
	}
}

// ToExpense converts a storage row back to the pipeline shape.
func (r *ExpenseRow) ToExpense() pipeline.Expense {
	return pipeline.Expense{
		ID:          r.ExpenseID,
		Date:        r.ExpenseDate.In(time.UTC),
		Description: r.Description,
		Amount:      r.Amount,
		Category:    r.Category,
		Subcategory: r.Subcategory,
		Provider:    r.Provider.StringVal,
		IsCorrected: r.IsCorrected,
		SourceFile:  r.SourceFile.StringVal,
		CreatedAt:   r.CreatedTS,
	}
}

// CorrectionRow is the BigQuery shape of one remembered correction.
type CorrectionRow struct {
	Pattern     string    `bigquery:"pattern"` // REQUIRED, primary lookup key
	Category    string    `bigquery:"category"`
	Subcategory string    `bigquery:"subcategory"`
	UsageCount  int64     `bigquery:"usage_count"`
	CreatedTS   time.Time `bigquery:"created_ts"`
}
