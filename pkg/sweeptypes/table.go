// This file contains the Table type: the tabular result of one measurement,
// with a datetime index column and CSV persistence.
package sweeptypes

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// timeColumn is the header of the index column in CSV form.
const timeColumn = "time"

// Row is one observation: a timestamp plus one cell per table column.
type Row struct {
	Time  time.Time
	Cells []string
}

// Table is an ordered set of timestamped rows with named columns. It is the
// in-memory shape of one measurement's result.
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// AddRow appends one observation. The number of cells must match the number
// of columns.
func (t *Table) AddRow(ts time.Time, cells ...string) error {
	if len(cells) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(cells), len(t.Columns))
	}
	t.Rows = append(t.Rows, Row{Time: ts, Cells: cells})
	return nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// ColumnNames returns a copy of the column names.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	copy(names, t.Columns)
	return names
}

// Label appends a column that marks every row whose timestamp falls inside
// [start, end] with the given label; rows outside the interval get an empty
// cell.
func (t *Table) Label(start, end time.Time, column, label string) {
	t.Columns = append(t.Columns, column)
	for i := range t.Rows {
		cell := ""
		ts := t.Rows[i].Time
		if !ts.Before(start) && !ts.After(end) {
			cell = label
		}
		t.Rows[i].Cells = append(t.Rows[i].Cells, cell)
	}
}

// WriteCSV writes the table with an RFC 3339 datetime index column.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{timeColumn}, t.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range t.Rows {
		record := append([]string{row.Time.Format(time.RFC3339)}, row.Cells...)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSVTable reads a table previously written by WriteCSV.
func ReadCSVTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV data has no header row")
	}
	header := records[0]
	if len(header) < 1 || header[0] != timeColumn {
		return nil, fmt.Errorf("CSV data lacks %q index column", timeColumn)
	}
	table := NewTable(header[1:]...)
	for i, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("CSV row %d has %d fields, expected %d", i+1, len(record), len(header))
		}
		ts, err := time.Parse(time.RFC3339, record[0])
		if err != nil {
			return nil, fmt.Errorf("CSV row %d has invalid timestamp: %w", i+1, err)
		}
		if err := table.AddRow(ts, record[1:]...); err != nil {
			return nil, err
		}
	}
	return table, nil
}
