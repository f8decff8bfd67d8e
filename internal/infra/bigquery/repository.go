package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/expense-classifier/internal/corrections"
	"github.com/dvloznov/expense-classifier/internal/pipeline"
)

// Repository implements pipeline.ExpenseRepository and corrections.Store
// over a shared BigQuery client.
type Repository struct {
	client  *bigquery.Client
	dataset string
}

// NewRepository creates a Repository with its own client.
func NewRepository(ctx context.Context, projectID, dataset string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, dataset: dataset}, nil
}

// Close closes the underlying client.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Repository) InsertExpenses(ctx context.Context, expenses []pipeline.Expense) error {
	rows := make([]*ExpenseRow, len(expenses))
	for i, e := range expenses {
		rows[i] = RowFromExpense(e)
	}
	return InsertExpensesWithClient(ctx, r.client, r.dataset, rows)
}

func (r *Repository) ListExpenses(ctx context.Context, filter pipeline.ExpenseFilter) ([]pipeline.Expense, error) {
	rows, err := ListExpensesWithClient(ctx, r.client, r.dataset, filter)
	if err != nil {
		return nil, err
	}
	out := make([]pipeline.Expense, len(rows))
	for i, row := range rows {
		out[i] = row.ToExpense()
	}
	return out, nil
}

func (r *Repository) GetExpense(ctx context.Context, id string) (*pipeline.Expense, error) {
	row, err := GetExpenseWithClient(ctx, r.client, r.dataset, id)
	if err != nil {
		return nil, err
	}
	e := row.ToExpense()
	return &e, nil
}

func (r *Repository) UpdateExpenseCategory(ctx context.Context, id, category, subcategory string) error {
	return UpdateExpenseCategoryWithClient(ctx, r.client, r.dataset, id, category, subcategory)
}

func (r *Repository) DeleteExpense(ctx context.Context, id string) error {
	return DeleteExpenseWithClient(ctx, r.client, r.dataset, id)
}

func (r *Repository) KPIs(ctx context.Context, from, to time.Time) (*pipeline.KPIReport, error) {
	return KPIsWithClient(ctx, r.client, r.dataset, from, to)
}

// Record implements corrections.Store. The entry is read back after the
// MERGE so the caller sees the stored usage count.
func (r *Repository) Record(ctx context.Context, description, category, subcategory string) (corrections.Entry, error) {
	pattern := corrections.PatternFor(description)
	if pattern == "" {
		return corrections.Entry{}, nil
	}
	if err := RecordCorrectionWithClient(ctx, r.client, r.dataset, pattern, category, subcategory); err != nil {
		return corrections.Entry{}, err
	}
	row, err := GetCorrectionWithClient(ctx, r.client, r.dataset, pattern)
	if err != nil {
		return corrections.Entry{}, err
	}
	return corrections.Entry{
		Pattern:     row.Pattern,
		Category:    row.Category,
		Subcategory: row.Subcategory,
		UsageCount:  row.UsageCount,
		CreatedAt:   row.CreatedTS,
	}, nil
}

// TopByUsage implements corrections.Store.
func (r *Repository) TopByUsage(ctx context.Context, limit int) ([]corrections.Entry, error) {
	rows, err := TopCorrectionsWithClient(ctx, r.client, r.dataset, limit)
	if err != nil {
		return nil, err
	}
	out := make([]corrections.Entry, len(rows))
	for i, row := range rows {
		out[i] = corrections.Entry{
			Pattern:     row.Pattern,
			Category:    row.Category,
			Subcategory: row.Subcategory,
			UsageCount:  row.UsageCount,
			CreatedAt:   row.CreatedTS,
		}
	}
	return out, nil
}

var (
	_ pipeline.ExpenseRepository = (*Repository)(nil)
	_ corrections.Store          = (*Repository)(nil)
)
