package ingest

import (
	"errors"
	"strings"
	"testing"
)

func TestParse_CommaCSV(t *testing.T) {
	data := []byte("Fecha,Concepto,Importe\n01/02/2024,MERCADONA COMPRA,-23.45\n02/02/2024,NOMINA EMPRESA,1500.00\n")

	table, err := Parse(data, "extracto.csv")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	wantCols := []string{"Fecha", "Concepto", "Importe"}
	if len(table.Columns) != len(wantCols) {
		t.Fatalf("columns = %v, want %v", table.Columns, wantCols)
	}
	for i, c := range wantCols {
		if table.Columns[i] != c {
			t.Errorf("column %d = %q, want %q", i, table.Columns[i], c)
		}
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(table.Rows))
	}
	if got := table.Cell(0, 1); got != "MERCADONA COMPRA" {
		t.Errorf("Cell(0,1) = %q, want %q", got, "MERCADONA COMPRA")
	}
}

func TestParse_SemicolonDelimiter(t *testing.T) {
	data := []byte("Fecha;Concepto;Importe\n01/02/2024;RECIBO IBERDROLA;-55,20\n")

	table, err := Parse(data, "movimientos.csv")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(table.Columns) != 3 {
		t.Fatalf("columns = %v, want 3 columns", table.Columns)
	}
	if got := table.Cell(0, 2); got != "-55,20" {
		t.Errorf("Cell(0,2) = %q, want %q", got, "-55,20")
	}
}

func TestParse_TabAndPipeDelimiters(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"tab", "Fecha\tConcepto\tImporte\n01/02/2024\tTAXI\t-12.00\n"},
		{"pipe", "Fecha|Concepto|Importe\n01/02/2024|TAXI|-12.00\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Parse([]byte(tt.data), "f.csv")
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(table.Columns) != 3 {
				t.Errorf("columns = %v, want 3 columns", table.Columns)
			}
			if got := table.Cell(0, 1); got != "TAXI" {
				t.Errorf("Cell(0,1) = %q, want %q", got, "TAXI")
			}
		})
	}
}

func TestParse_Latin1Fallback(t *testing.T) {
	// "Alimentación" with the ó encoded as Latin-1 0xF3, invalid UTF-8.
	data := []byte("Fecha,Concepto,Importe\n01/02/2024,Alimentaci\xf3n,-10.00\n")

	table, err := Parse(data, "extracto.csv")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := table.Cell(0, 1); got != "Alimentación" {
		t.Errorf("Cell(0,1) = %q, want %q", got, "Alimentación")
	}
}

func TestParse_HeaderOnly(t *testing.T) {
	table, err := Parse([]byte("Fecha,Concepto,Importe\n"), "vacio.csv")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(table.Columns) != 3 {
		t.Errorf("columns = %v, want 3 columns", table.Columns)
	}
	if len(table.Rows) != 0 {
		t.Errorf("rows = %d, want 0", len(table.Rows))
	}
}

func TestParse_ShortAndBlankRows(t *testing.T) {
	data := []byte("Fecha,Concepto,Importe\n01/02/2024,COMPRA\n\n,,\n02/02/2024,CENA,-30.00\n")

	table, err := Parse(data, "extracto.csv")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 (blank rows dropped)", len(table.Rows))
	}
	if got := table.Cell(0, 2); got != "" {
		t.Errorf("Cell(0,2) = %q, want empty for short row", got)
	}
}

func TestParse_UnsupportedExtension(t *testing.T) {
	_, err := Parse([]byte("%PDF-1.4"), "extracto.pdf")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Parse() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestParse_ExtensionCaseInsensitive(t *testing.T) {
	table, err := Parse([]byte("Fecha,Concepto,Importe\n01/02/2024,BAR,-5.00\n"), "EXTRACTO.CSV")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(table.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(table.Rows))
	}
}

func TestParse_CorruptExcel(t *testing.T) {
	_, err := Parse([]byte("not a zip archive"), "extracto.xlsx")
	if err == nil {
		t.Fatal("Parse() error = nil, want *ParseError")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Parse() error = %T, want *ParseError", err)
	}
	if pe.Filename != "extracto.xlsx" {
		t.Errorf("ParseError.Filename = %q, want %q", pe.Filename, "extracto.xlsx")
	}
}

func TestReadAll(t *testing.T) {
	r := strings.NewReader("Fecha,Concepto,Importe\n01/02/2024,METRO,-1.50\n")

	table, err := ReadAll(r, "extracto.csv")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(table.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(table.Rows))
	}
}

func TestCell_OutOfRange(t *testing.T) {
	table := &Table{Columns: []string{"a"}, Rows: [][]string{{"x"}}}
	if got := table.Cell(5, 0); got != "" {
		t.Errorf("Cell(5,0) = %q, want empty", got)
	}
	if got := table.Cell(0, 5); got != "" {
		t.Errorf("Cell(0,5) = %q, want empty", got)
	}
}
