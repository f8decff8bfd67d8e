package detect

import (
	"testing"

	"github.com/dvloznov/expense-classifier/internal/ingest"
)

func TestDetect_SpanishHeaders(t *testing.T) {
	table := &ingest.Table{
		Columns: []string{"Fecha", "Concepto", "Importe"},
		Rows: [][]string{
			{"01/02/2024", "MERCADONA COMPRA", "-23.45"},
		},
	}

	mapping := Detect(table)

	if got := mapping[RoleDate]; got.Name != "Fecha" || got.Index != 0 {
		t.Errorf("date = %+v, want Fecha@0", got)
	}
	if got := mapping[RoleDescription]; got.Name != "Concepto" || got.Index != 1 {
		t.Errorf("description = %+v, want Concepto@1", got)
	}
	if got := mapping[RoleAmount]; got.Name != "Importe" || got.Index != 2 {
		t.Errorf("amount = %+v, want Importe@2", got)
	}
	if missing := mapping.Missing(); len(missing) != 0 {
		t.Errorf("Missing() = %v, want none", missing)
	}
}

func TestDetect_EnglishAndPunctuatedHeaders(t *testing.T) {
	table := &ingest.Table{
		Columns: []string{"F. Valor", "Description", "Amount (EUR)"},
	}

	mapping := Detect(table)

	if got := mapping[RoleDate].Index; got != 0 {
		t.Errorf("date index = %d, want 0", got)
	}
	if got := mapping[RoleDescription].Index; got != 1 {
		t.Errorf("description index = %d, want 1", got)
	}
	if got := mapping[RoleAmount].Index; got != 2 {
		t.Errorf("amount index = %d, want 2", got)
	}
}

func TestDetect_ColumnClaimedOnce(t *testing.T) {
	// "Fecha valor" matches both date and, with "valor", amount patterns.
	// Date claims it first; amount must take the remaining column.
	table := &ingest.Table{
		Columns: []string{"Fecha valor", "Concepto", "Cantidad"},
	}

	mapping := Detect(table)

	if got := mapping[RoleDate].Index; got != 0 {
		t.Errorf("date index = %d, want 0", got)
	}
	if got := mapping[RoleAmount].Index; got != 2 {
		t.Errorf("amount index = %d, want 2", got)
	}
}

func TestDetect_PatternPriorityOverColumnOrder(t *testing.T) {
	// "importe" outranks "saldo" in the amount pattern list, so the
	// Importe column must win even though Saldo appears first.
	table := &ingest.Table{
		Columns: []string{"Fecha", "Concepto", "Saldo", "Importe"},
		Rows: [][]string{
			{"01/02/2024", "MERCADONA COMPRA", "1200.00", "-23.45"},
		},
	}

	mapping := Detect(table)

	if got := mapping[RoleAmount]; got.Name != "Importe" || got.Index != 3 {
		t.Errorf("amount = %+v, want Importe@3", got)
	}
}

func TestDetect_NumericLookingDescriptions(t *testing.T) {
	// Long reference codes parse as numbers but are still descriptions
	// once date and amount are taken: mean length decides alone.
	table := &ingest.Table{
		Columns: []string{"Fecha", "Importe", "col_x"},
	}
	for i := 0; i < 20; i++ {
		table.Rows = append(table.Rows, []string{
			"15/03/2024", "-42.10", "000012345678901",
		})
	}

	mapping := Detect(table)

	if got := mapping[RoleDescription]; got.Name != "col_x" || got.Index != 2 {
		t.Errorf("description = %+v, want col_x@2", got)
	}
}

func TestDetect_ContentSniffing(t *testing.T) {
	table := &ingest.Table{
		Columns: []string{"col_a", "col_b", "col_c"},
	}
	for i := 0; i < 20; i++ {
		table.Rows = append(table.Rows, []string{
			"15/03/2024", "PAGO CON TARJETA EN SUPERMERCADO", "-42.10",
		})
	}

	mapping := Detect(table)

	if got := mapping[RoleDate].Index; got != 0 {
		t.Errorf("date index = %d, want 0", got)
	}
	if got := mapping[RoleDescription].Index; got != 1 {
		t.Errorf("description index = %d, want 1", got)
	}
	if got := mapping[RoleAmount].Index; got != 2 {
		t.Errorf("amount index = %d, want 2", got)
	}
}

func TestDetect_SniffThresholdStrict(t *testing.T) {
	makeTable := func(dates, junk int) *ingest.Table {
		table := &ingest.Table{Columns: []string{"col_a"}}
		for i := 0; i < dates; i++ {
			table.Rows = append(table.Rows, []string{"15/03/2024"})
		}
		for i := 0; i < junk; i++ {
			table.Rows = append(table.Rows, []string{"???"})
		}
		return table
	}

	tests := []struct {
		name     string
		dates    int
		junk     int
		wantDate bool
	}{
		{"85 percent accepted", 85, 15, true},
		{"exactly 80 percent rejected", 80, 20, false},
		{"75 percent rejected", 75, 25, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapping := Detect(makeTable(tt.dates, tt.junk))
			_, ok := mapping[RoleDate]
			if ok != tt.wantDate {
				t.Errorf("date detected = %v, want %v", ok, tt.wantDate)
			}
		})
	}
}

func TestDetect_DescriptionNeedsLength(t *testing.T) {
	// Textual but short cells must not pass as descriptions.
	table := &ingest.Table{Columns: []string{"col_a"}}
	for i := 0; i < 20; i++ {
		table.Rows = append(table.Rows, []string{"abc"})
	}

	mapping := Detect(table)
	if ref, ok := mapping[RoleDescription]; ok {
		t.Errorf("description = %+v, want undetected for short text", ref)
	}
}

func TestDetect_HeaderOnlyTable(t *testing.T) {
	table := &ingest.Table{Columns: []string{"Fecha", "Concepto"}}

	mapping := Detect(table)

	missing := mapping.Missing()
	if len(missing) != 1 || missing[0] != RoleAmount {
		t.Errorf("Missing() = %v, want [amount]", missing)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	table := &ingest.Table{
		Columns: []string{"Fecha", "Concepto", "Importe", "Saldo"},
		Rows:    [][]string{{"01/02/2024", "COMPRA", "-1.00", "99.00"}},
	}

	first := Detect(table)
	for i := 0; i < 5; i++ {
		again := Detect(table)
		for role, ref := range first {
			if again[role] != ref {
				t.Fatalf("run %d: %s = %+v, want %+v", i, role, again[role], ref)
			}
		}
	}
}
