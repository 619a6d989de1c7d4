package model

import (
	"strconv"
	"time"
)

// NotSetKey groups rows whose dimension value is NULL
const NotSetKey = "(not set)"

// Number is a summed metric. It stays integral until a fractional value is added.
type Number struct {
	Int     int64
	Float   float64
	IsFloat bool
}

// Add returns n + v
func (n Number) Add(v Number) Number {
	switch {
	case !n.IsFloat && !v.IsFloat:
		return Number{Int: n.Int + v.Int}
	default:
		return Number{Float: n.Value() + v.Value(), IsFloat: true}
	}
}

// Value returns the number as float64
func (n Number) Value() float64 {
	if n.IsFloat {
		return n.Float
	}
	return float64(n.Int)
}

func (n Number) String() string {
	if n.IsFloat {
		return strconv.FormatFloat(n.Float, 'f', -1, 64)
	}
	return strconv.FormatInt(n.Int, 10)
}

// SummaryRow is one group of a summary table
type SummaryRow struct {
	Key   string `json:"key"`
	Total Number `json:"total"`
}

// Summary is a two-column (dimension, total) group-by-sum result
type Summary struct {
	Title     string       `json:"title"`
	Dimension string       `json:"dimension"`
	Metric    string       `json:"metric"`
	Rows      []SummaryRow `json:"rows"`
}

// Header returns the column names in table order
func (s Summary) Header() []string {
	return []string{s.Dimension, s.Metric}
}

// Size returns the worksheet grid for the summary: one row per group and one
// column per header field. A tab needs at least one row, so an empty summary
// still gets one. Writing the header extends the grid by a row.
func (s Summary) Size() (rows, cols int) {
	return max(len(s.Rows), 1), len(s.Header())
}

// Total sums every group
func (s Summary) Total() Number {
	var total Number
	for _, r := range s.Rows {
		total = total.Add(r.Total)
	}
	return total
}

// ExportResult represents the result of publishing one summary
type ExportResult struct {
	Type        string    `json:"type"` // "sheet", "csv"
	Path        string    `json:"path"` // worksheet title or file path
	RecordCount int       `json:"record_count"`
	Created     bool      `json:"created,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
