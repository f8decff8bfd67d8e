// Package pipeline orchestrates a full statement import: parse the file,
// detect columns, normalize rows, classify each expense and persist the
// results.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/expense-classifier/internal/detect"
)

// Expense is one classified bank movement.
type Expense struct {
	ID          string
	Date        time.Time
	Description string
	Amount      float64
	Category    string
	Subcategory string
	Provider    string
	IsCorrected bool
	SourceFile  string
	CreatedAt   time.Time
}

// ImportResult carries the accepted expenses of one import run together
// with its counts.
type ImportResult struct {
	Filename    string
	TotalRows   int
	Imported    int
	Skipped     int
	ByProvider  map[string]int
	Expenses    []Expense
	ElapsedTime time.Duration
}

// ColumnDetectionError reports which semantic columns could not be found
// in the uploaded file.
type ColumnDetectionError struct {
	Filename string
	Missing  []detect.Role
}

func (e *ColumnDetectionError) Error() string {
	names := make([]string, len(e.Missing))
	for i, r := range e.Missing {
		names[i] = string(r)
	}
	return fmt.Sprintf("could not detect columns in %q: missing %s",
		e.Filename, strings.Join(names, ", "))
}

// ExpenseRepository persists expenses and answers queries over them.
type ExpenseRepository interface {
	InsertExpenses(ctx context.Context, expenses []Expense) error
	ListExpenses(ctx context.Context, filter ExpenseFilter) ([]Expense, error)
	GetExpense(ctx context.Context, id string) (*Expense, error)
	UpdateExpenseCategory(ctx context.Context, id, category, subcategory string) error
	DeleteExpense(ctx context.Context, id string) error
	KPIs(ctx context.Context, from, to time.Time) (*KPIReport, error)
}

// KPIReport aggregates spending (negative amounts only, as positive
// magnitudes rounded to cents) over an optional date range.
type KPIReport struct {
	Total      float64
	ByCategory map[string]float64
	ByMonth    map[string]float64
	Count      int
}

// ExpenseFilter narrows ListExpenses. Zero values mean no constraint;
// Limit 0 applies the repository default.
type ExpenseFilter struct {
	Category string
	From     time.Time
	To       time.Time
	Skip     int
	Limit    int
}
