package pipeline

import (
	"iter"
	"strings"
	"time"

	"github.com/dvloznov/expense-classifier/internal/detect"
	"github.com/dvloznov/expense-classifier/internal/ingest"
)

// NormalizedRow is one statement row that passed validation.
type NormalizedRow struct {
	Date        time.Time
	Description string
	Amount      float64
}

// NormalizeRows yields valid rows lazily in file order. A row is dropped,
// without error, when its date does not parse, its description is blank
// or the literal "nan", or its amount does not parse. Callers that need
// the drop count compare yielded rows against len(t.Rows).
func NormalizeRows(t *ingest.Table, mapping detect.Mapping) iter.Seq[NormalizedRow] {
	dateIdx := mapping[detect.RoleDate].Index
	descIdx := mapping[detect.RoleDescription].Index
	amountIdx := mapping[detect.RoleAmount].Index

	return func(yield func(NormalizedRow) bool) {
		for i := range t.Rows {
			date, err := detect.ParseDate(t.Cell(i, dateIdx))
			if err != nil {
				continue
			}

			desc := strings.TrimSpace(t.Cell(i, descIdx))
			if desc == "" || strings.EqualFold(desc, "nan") {
				continue
			}

			amount, err := detect.ParseAmount(t.Cell(i, amountIdx))
			if err != nil {
				continue
			}

			if !yield(NormalizedRow{Date: date, Description: desc, Amount: amount}) {
				return
			}
		}
	}
}
