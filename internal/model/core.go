package model

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the layout of configured dates (YYYY-MM-DD)
const DateLayout = "2006-01-02"

// PartitionLayout is the date suffix of a day-partitioned table (YYYYMMDD)
const PartitionLayout = "20060102"

// ErrColumnMismatch is returned when tables with different columns are combined
var ErrColumnMismatch = errors.New("column mismatch")

// Row is a single result row, values in table column order
type Row []interface{}

// Table is an in-memory tabular dataset with a fixed column order
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewTable creates an empty table with the given columns
func NewTable(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Append adds a row; the row must have one value per column
func (t *Table) Append(values ...interface{}) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.Columns))
	}
	t.Rows = append(t.Rows, Row(values))
	return nil
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of a column, or -1
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Concat unions tables into one. Every table must carry the same columns in
// the same order; rows are kept as-is.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return &Table{}, nil
	}

	total := 0
	for _, t := range tables {
		total += t.Len()
	}

	out := NewTable(tables[0].Columns...)
	out.Rows = make([]Row, 0, total)
	for i, t := range tables {
		if !sameColumns(out.Columns, t.Columns) {
			return nil, fmt.Errorf("table %d has columns %v, want %v: %w", i, t.Columns, out.Columns, ErrColumnMismatch)
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DateRange is an inclusive range of calendar days
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParseDateRange parses two YYYY-MM-DD dates into a range
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("end date %s is before start date %s", end, start)
	}
	return DateRange{Start: s, End: e}, nil
}

// Days returns every day in the range, oldest first
func (r DateRange) Days() []time.Time {
	var days []time.Time
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Len returns the inclusive number of days
func (r DateRange) Len() int {
	return len(r.Days())
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}
