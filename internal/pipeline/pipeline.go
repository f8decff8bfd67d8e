package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/expense-classifier/internal/classify"
	"github.com/dvloznov/expense-classifier/internal/corrections"
	"github.com/dvloznov/expense-classifier/internal/detect"
	"github.com/dvloznov/expense-classifier/internal/ingest"
	"github.com/dvloznov/expense-classifier/internal/logger"
)

// correctionsLimit caps how many remembered corrections are fed into each
// classification prompt.
const correctionsLimit = 50

// Importer wires the import steps together. All fields are required.
type Importer struct {
	Classifier  *classify.Classifier
	Corrections corrections.Store
	Expenses    ExpenseRepository
}

// ImportFile runs the whole import for one uploaded file.
//
// Steps: parse the raw bytes, detect the semantic columns, normalize the
// rows, classify each one and persist the batch. Rows that fail
// validation are skipped silently; the result reports how many. The only
// hard failures are an unparseable file, undetectable columns and a
// persistence error.
func (imp *Importer) ImportFile(ctx context.Context, data []byte, filename string) (*ImportResult, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	table, err := ingest.Parse(data, filename)
	if err != nil {
		return nil, fmt.Errorf("ImportFile: %w", err)
	}

	mapping := detect.Detect(table)
	if missing := mapping.Missing(); len(missing) > 0 {
		return nil, &ColumnDetectionError{Filename: filename, Missing: missing}
	}

	log.Info().
		Str("filename", filename).
		Int("rows", len(table.Rows)).
		Str("date_column", mapping[detect.RoleDate].Name).
		Str("description_column", mapping[detect.RoleDescription].Name).
		Str("amount_column", mapping[detect.RoleAmount].Name).
		Msg("columns detected, starting import")

	known, err := imp.Corrections.TopByUsage(ctx, correctionsLimit)
	if err != nil {
		return nil, fmt.Errorf("ImportFile: load corrections: %w", err)
	}
	promptCorrections := make([]classify.Correction, len(known))
	for i, e := range known {
		promptCorrections[i] = classify.Correction{
			Pattern:     e.Pattern,
			Category:    e.Category,
			Subcategory: e.Subcategory,
			UsageCount:  e.UsageCount,
		}
	}

	result := &ImportResult{
		Filename:   filename,
		TotalRows:  len(table.Rows),
		ByProvider: make(map[string]int),
	}

	var expenses []Expense
	for row := range NormalizeRows(table, mapping) {
		cl := imp.Classifier.Classify(ctx, row.Description, row.Amount, promptCorrections)

		provider := cl.Provider
		if cl.Provenance == classify.ProvenanceFallback {
			provider = string(classify.ProvenanceFallback)
		}
		result.ByProvider[provider]++

		expenses = append(expenses, Expense{
			ID:          uuid.NewString(),
			Date:        row.Date,
			Description: row.Description,
			Amount:      row.Amount,
			Category:    cl.Category,
			Subcategory: cl.Subcategory,
			Provider:    provider,
			SourceFile:  filename,
			CreatedAt:   time.Now().UTC(),
		})
	}

	result.Expenses = expenses
	result.Imported = len(expenses)
	result.Skipped = result.TotalRows - result.Imported

	if len(expenses) > 0 {
		if err := imp.Expenses.InsertExpenses(ctx, expenses); err != nil {
			return nil, fmt.Errorf("ImportFile: persist expenses: %w", err)
		}
	}

	result.ElapsedTime = time.Since(start)
	log.Info().
		Str("filename", filename).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Dur("elapsed", result.ElapsedTime).
		Msg("import finished")

	return result, nil
}

// Reclassify applies a manual category change to one stored expense and
// records it as a correction so future imports learn from it.
func (imp *Importer) Reclassify(ctx context.Context, id, category, subcategory string) error {
	exp, err := imp.Expenses.GetExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("Reclassify: %w", err)
	}

	if err := imp.Expenses.UpdateExpenseCategory(ctx, id, category, subcategory); err != nil {
		return fmt.Errorf("Reclassify: %w", err)
	}

	if _, err := imp.Corrections.Record(ctx, exp.Description, category, subcategory); err != nil {
		return fmt.Errorf("Reclassify: record correction: %w", err)
	}
	return nil
}
