// Package models defines the data shared by every stage of a reconciliation
// run: raw tables as loaded from seller reports, per-order aggregates, the
// reconciled ledger and its summary.
//
// All monetary and quantity values use shopspring/decimal so that the derived
// identities (expected = sales - returns, difference = received - expected)
// hold exactly.
package models

import (
	"strings"
)

// Row maps a column name to a scalar cell value. Values are strings, numbers
// (float64, int, int64, decimal.Decimal) or nil for an empty cell.
type Row map[string]any

// Table is a raw, row-oriented report as produced by a loader. Lines holds
// the source line (or sheet row) of each data row; zero means unknown.
type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
	Lines   []int    `json:"lines,omitempty"`
}

// NewTable creates an empty table with the given header.
func NewTable(name string, columns ...string) *Table {
	return &Table{
		Name:    name,
		Columns: append([]string(nil), columns...),
		Rows:    make([]Row, 0),
	}
}

// Append adds a row given positionally in header order. Missing trailing
// values are stored as nil; extra values are ignored.
func (t *Table) Append(values ...any) *Table {
	return t.AppendAt(0, values...)
}

// AppendAt is Append for a row read from the given source line.
func (t *Table) AppendAt(line int, values ...any) *Table {
	row := make(Row, len(t.Columns))
	for i, column := range t.Columns {
		if i < len(values) {
			row[column] = values[i]
		} else {
			row[column] = nil
		}
	}
	t.Rows = append(t.Rows, row)
	t.Lines = append(t.Lines, line)
	return t
}

// Line returns the source line of data row i. Rows without a recorded line
// are numbered as if the header were line 1 and nothing was skipped.
func (t *Table) Line(i int) int {
	if i < len(t.Lines) && t.Lines[i] > 0 {
		return t.Lines[i]
	}
	return i + 2
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ResolveColumn finds the header matching name. An exact match on the
// trimmed header wins; otherwise the first case-insensitive match is used.
func (t *Table) ResolveColumn(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	want := strings.TrimSpace(name)
	for _, column := range t.Columns {
		if strings.TrimSpace(column) == want {
			return column, true
		}
	}
	for _, column := range t.Columns {
		if strings.EqualFold(strings.TrimSpace(column), want) {
			return column, true
		}
	}
	return "", false
}
