package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// RecordCorrectionWithClient upserts one correction atomically. A MERGE
// keeps the insert-or-increment race-free: a repeated pattern overwrites
// the labels and bumps usage_count, a new one inserts with count 1.
func RecordCorrectionWithClient(ctx context.Context, client *bigquery.Client, dataset, pattern, category, subcategory string) error {
	query := fmt.Sprintf(`
		MERGE %s.%s t
		USING (SELECT @pattern AS pattern) s
		ON t.pattern = s.pattern
		WHEN MATCHED THEN
		  UPDATE SET category = @category,
		             subcategory = @subcategory,
		             usage_count = t.usage_count + 1
		WHEN NOT MATCHED THEN
		  INSERT (pattern, category, subcategory, usage_count, created_ts)
		  VALUES (@pattern, @category, @subcategory, 1, CURRENT_TIMESTAMP())
	`, dataset, correctionsTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "pattern", Value: pattern},
		{Name: "category", Value: category},
		{Name: "subcategory", Value: subcategory},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("RecordCorrection: run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("RecordCorrection: wait: %w", err)
	}
	if status.Err() != nil {
		return fmt.Errorf("RecordCorrection: job: %w", status.Err())
	}
	return nil
}

// GetCorrectionWithClient reads one correction by its pattern.
func GetCorrectionWithClient(ctx context.Context, client *bigquery.Client, dataset, pattern string) (*CorrectionRow, error) {
	query := fmt.Sprintf(`
		SELECT pattern, category, subcategory, usage_count, created_ts
		FROM %s.%s
		WHERE pattern = @pattern
		LIMIT 1
	`, dataset, correctionsTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "pattern", Value: pattern},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetCorrection: query read: %w", err)
	}

	var r CorrectionRow
	if err := it.Next(&r); err != nil {
		if err == iterator.Done {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GetCorrection: iter next: %w", err)
	}
	return &r, nil
}

// TopCorrectionsWithClient returns up to limit corrections by usage,
// oldest first among ties.
func TopCorrectionsWithClient(ctx context.Context, client *bigquery.Client, dataset string, limit int) ([]*CorrectionRow, error) {
	query := fmt.Sprintf(`
		SELECT pattern, category, subcategory, usage_count, created_ts
		FROM %s.%s
		ORDER BY usage_count DESC, created_ts ASC
		LIMIT @row_limit
	`, dataset, correctionsTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "row_limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("TopCorrections: query read: %w", err)
	}

	var rows []*CorrectionRow
	for {
		var r CorrectionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("TopCorrections: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
