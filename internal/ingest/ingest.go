// Package ingest turns raw bank-statement exports (CSV or single-sheet
// Excel files) into an ordered tabular structure with no knowledge of
// what the columns mean.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnsupportedFormat is returned when the filename extension is neither
// csv nor xlsx/xls.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ParseError indicates the file could not be parsed under any strategy.
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not parse file %q: %v", e.Filename, e.Err)
	}
	return fmt.Sprintf("could not parse file %q", e.Filename)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Table is the ordered tabular structure produced by Parse. Column names
// preserve file order and are not necessarily unique; rows are positional
// and padded to the column count, so a missing cell is the empty string.
// A Table is not modified after Parse returns it.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Cell returns the raw value of column col in row. Out-of-range access
// returns the empty string, same as a missing cell.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// csvEncodings is the ordered list of text encodings attempted for the
// delimited-text path. A nil charmap means the bytes are used as-is after
// UTF-8 validation. Decoders carry state, so each Parse call builds its
// own.
var csvEncodings = []struct {
	name    string
	charmap *charmap.Charmap
}{
	{"utf-8", nil},
	{"latin-1", charmap.ISO8859_1},
	{"cp1252", charmap.Windows1252},
}

// candidate delimiters for sniffing, checked against the header line.
var delimiters = []rune{',', ';', '\t', '|'}

// Parse converts raw file bytes into a Table, dispatching on the filename
// extension. It returns ErrUnsupportedFormat for unrecognized extensions
// and a *ParseError when no parsing strategy succeeds.
func Parse(data []byte, filename string) (*Table, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	switch ext {
	case "csv":
		return parseCSV(data, filename)
	case "xlsx", "xls":
		return parseExcel(data, filename)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// parseCSV tries each encoding in order; the first one that decodes and
// yields a table with at least one column wins.
func parseCSV(data []byte, filename string) (*Table, error) {
	var lastErr error

	for _, enc := range csvEncodings {
		text, err := decode(data, enc.charmap)
		if err != nil {
			lastErr = err
			continue
		}

		table, err := readDelimited(text)
		if err != nil {
			lastErr = err
			continue
		}
		if len(table.Columns) == 0 {
			lastErr = fmt.Errorf("empty table with encoding %s", enc.name)
			continue
		}
		return table, nil
	}

	return nil, &ParseError{Filename: filename, Err: lastErr}
}

func decode(data []byte, cm *charmap.Charmap) (string, error) {
	if cm == nil {
		if !utf8.Valid(data) {
			return "", errors.New("invalid UTF-8")
		}
		return string(data), nil
	}
	out, err := cm.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return string(out), nil
}

// readDelimited parses text with an inferred delimiter. The first record
// becomes the column names; remaining records become rows, padded or
// truncated to the column count. Fully blank lines are dropped.
func readDelimited(text string) (*Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	columns := make([]string, len(records[0]))
	for i, h := range records[0] {
		columns[i] = strings.TrimSpace(h)
	}

	table := &Table{Columns: columns}
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make([]string, len(columns))
		copy(row, rec)
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// sniffDelimiter picks the candidate separator occurring most often in the
// first non-empty line, defaulting to comma.
func sniffDelimiter(text string) rune {
	line := text
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		line = text[:idx]
	}

	best := ','
	bestCount := 0
	for _, d := range delimiters {
		if n := strings.Count(line, string(d)); n > bestCount {
			best = d
			bestCount = n
		}
	}
	return best
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parseExcel reads the first sheet only. Any parser error, or a sheet with
// no cells, is a ParseError carrying the underlying cause.
func parseExcel(data []byte, filename string) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Filename: filename, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Filename: filename, Err: errors.New("workbook has no sheets")}
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Filename: filename, Err: err}
	}
	if len(records) == 0 {
		return nil, &ParseError{Filename: filename, Err: errors.New("empty sheet")}
	}

	columns := make([]string, len(records[0]))
	for i, h := range records[0] {
		columns[i] = strings.TrimSpace(h)
	}

	table := &Table{Columns: columns}
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make([]string, len(columns))
		copy(row, rec)
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// ReadAll fully reads r and parses the result; convenience for callers
// holding an io.Reader such as a multipart file.
func ReadAll(r io.Reader, filename string) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ReadAll: reading input: %w", err)
	}
	return Parse(data, filename)
}
