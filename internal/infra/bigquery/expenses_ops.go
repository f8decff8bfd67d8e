package bigquery

import (
	"context"
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/expense-classifier/internal/pipeline"
)

// defaultListLimit applies when a filter does not set one.
const defaultListLimit = 100

// ErrNotFound is returned when an expense id matches no row.
var ErrNotFound = fmt.Errorf("expense not found")

// InsertExpensesWithClient streams a batch of expense rows into
// <dataset>.expenses using the provided client.
func InsertExpensesWithClient(ctx context.Context, client *bigquery.Client, dataset string, rows []*ExpenseRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(dataset).Table(expensesTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertExpenses: inserting rows: %w", err)
	}
	return nil
}

// ListExpensesWithClient queries expenses matching the filter, newest
// first, using the provided client.
func ListExpensesWithClient(ctx context.Context, client *bigquery.Client, dataset string, filter pipeline.ExpenseFilter) ([]*ExpenseRow, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := fmt.Sprintf(`
		SELECT
			expense_id,
			expense_date,
			description,
			amount,
			category,
			subcategory,
			provider,
			is_corrected,
			source_file,
			created_ts
		FROM %s.%s
		WHERE (@category = '' OR category = @category)
		  AND (@from_date = '' OR expense_date >= DATE(@from_date))
		  AND (@to_date = '' OR expense_date <= DATE(@to_date))
		ORDER BY expense_date DESC, created_ts DESC
		LIMIT @row_limit OFFSET @row_offset
	`, dataset, expensesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "category", Value: filter.Category},
		{Name: "from_date", Value: formatDate(filter.From)},
		{Name: "to_date", Value: formatDate(filter.To)},
		{Name: "row_limit", Value: int64(limit)},
		{Name: "row_offset", Value: int64(filter.Skip)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListExpenses: query read: %w", err)
	}

	var rows []*ExpenseRow
	for {
		var r ExpenseRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListExpenses: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// GetExpenseWithClient fetches one expense by id.
func GetExpenseWithClient(ctx context.Context, client *bigquery.Client, dataset, id string) (*ExpenseRow, error) {
	query := fmt.Sprintf(`
		SELECT
			expense_id,
			expense_date,
			description,
			amount,
			category,
			subcategory,
			provider,
			is_corrected,
			source_file,
			created_ts
		FROM %s.%s
		WHERE expense_id = @expense_id
		LIMIT 1
	`, dataset, expensesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "expense_id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetExpense: query read: %w", err)
	}

	var r ExpenseRow
	if err := it.Next(&r); err == iterator.Done {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("GetExpense: iter next: %w", err)
	}
	return &r, nil
}

// UpdateExpenseCategoryWithClient overwrites an expense's labels and marks
// it user-corrected.
func UpdateExpenseCategoryWithClient(ctx context.Context, client *bigquery.Client, dataset, id, category, subcategory string) error {
	query := fmt.Sprintf(`
		UPDATE %s.%s
		SET category = @category,
		    subcategory = @subcategory,
		    is_corrected = TRUE
		WHERE expense_id = @expense_id
	`, dataset, expensesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "category", Value: category},
		{Name: "subcategory", Value: subcategory},
		{Name: "expense_id", Value: id},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("UpdateExpenseCategory: run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("UpdateExpenseCategory: wait: %w", err)
	}
	if status.Err() != nil {
		return fmt.Errorf("UpdateExpenseCategory: job: %w", status.Err())
	}
	return nil
}

// DeleteExpenseWithClient removes one expense by id.
func DeleteExpenseWithClient(ctx context.Context, client *bigquery.Client, dataset, id string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE expense_id = @expense_id
	`, dataset, expensesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "expense_id", Value: id},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("DeleteExpense: run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("DeleteExpense: wait: %w", err)
	}
	if status.Err() != nil {
		return fmt.Errorf("DeleteExpense: job: %w", status.Err())
	}
	return nil
}

// KPIsWithClient aggregates spending over a date range: overall total and
// row count, plus per-category and per-month breakdowns. Only negative
// amounts count; totals come back as positive magnitudes rounded to
// cents.
func KPIsWithClient(ctx context.Context, client *bigquery.Client, dataset string, from, to time.Time) (*pipeline.KPIReport, error) {
	query := fmt.Sprintf(`
		SELECT
			category,
			FORMAT_DATE('%%Y-%%m', expense_date) AS month,
			ROUND(SUM(ABS(amount)), 2) AS total,
			COUNT(*) AS row_count
		FROM %s.%s
		WHERE amount < 0
		  AND (@from_date = '' OR expense_date >= DATE(@from_date))
		  AND (@to_date = '' OR expense_date <= DATE(@to_date))
		GROUP BY category, month
	`, dataset, expensesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "from_date", Value: formatDate(from)},
		{Name: "to_date", Value: formatDate(to)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("KPIs: query read: %w", err)
	}

	report := &pipeline.KPIReport{
		ByCategory: make(map[string]float64),
		ByMonth:    make(map[string]float64),
	}
	for {
		var r struct {
			Category string  `bigquery:"category"`
			Month    string  `bigquery:"month"`
			Total    float64 `bigquery:"total"`
			RowCount int64   `bigquery:"row_count"`
		}
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("KPIs: iter next: %w", err)
		}
		report.ByCategory[r.Category] += r.Total
		report.ByMonth[r.Month] += r.Total
		report.Total += r.Total
		report.Count += int(r.RowCount)
	}
	report.Total = roundCents(report.Total)
	for k, v := range report.ByCategory {
		report.ByCategory[k] = roundCents(v)
	}
	for k, v := range report.ByMonth {
		report.ByMonth[k] = roundCents(v)
	}
	return report, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateFormat)
}
