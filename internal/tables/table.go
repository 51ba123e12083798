// Package tables reads the tabular inputs of a reserve-selection run from
// CSV, XLSX and shapefile sources.
package tables

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Table is a header-indexed set of string rows.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
	colIdx map[string]int
}

func newTable(name string, records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, eris.Errorf("tables: %s: missing header row", name)
	}
	t := &Table{Name: name, colIdx: make(map[string]int)}
	for i, h := range records[0] {
		h = strings.TrimSpace(h)
		t.Header = append(t.Header, h)
		if h != "" {
			t.colIdx[strings.ToLower(h)] = i
		}
	}
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Col returns the index of a column, matched case-insensitively.
func (t *Table) Col(name string) (int, bool) {
	i, ok := t.colIdx[strings.ToLower(name)]
	return i, ok
}

// HasCol reports whether the table has the named column.
func (t *Table) HasCol(name string) bool {
	_, ok := t.Col(name)
	return ok
}

func (t *Table) requireCols(names ...string) error {
	var missing []string
	for _, n := range names {
		if !t.HasCol(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return newFormatError(t.Name, 0, "missing column(s) %s", strings.Join(missing, ", "))
	}
	return nil
}

// Cell returns the trimmed value of column name in row, or "" when absent.
func (t *Table) Cell(row []string, name string) string {
	i, ok := t.Col(name)
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Read reads a CSV, TSV/DAT or XLSX file chosen by extension.
func Read(path string) (*Table, error) {
	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "tables: open %s", path)
		}
		defer func() { _ = f.Close() }()
		return ParseCSV(f, name)
	}
}

// ParseCSV parses delimited text. A leading byte-order mark is removed and
// the delimiter is a tab when the header line contains one, a comma otherwise.
func ParseCSV(r io.Reader, name string) (*Table, error) {
	data, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return nil, eris.Wrapf(err, "tables: read %s", name)
	}

	text := string(data)
	header, _, _ := strings.Cut(text, "\n")

	reader := csv.NewReader(strings.NewReader(text))
	if strings.Contains(header, "\t") {
		reader.Comma = '\t'
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "tables: parse %s", name)
	}
	return newTable(name, records)
}

// ReadXLSX reads the first sheet of an XLSX workbook.
func ReadXLSX(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tables: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("tables: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	records := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	return newTable(filepath.Base(path), records)
}
