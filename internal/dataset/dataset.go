package dataset

import (
	"encoding/json"
)

// Record maps a column name to its raw field value.
type Record map[string]string

// Dataset is an ordered sequence of records sharing one column set.
type Dataset struct {
	// Columns keeps the source header order.
	Columns []string
	Rows    []Record
}

// New builds a dataset and fills any column missing from a row with "".
// Nil rows become empty records.
func New(columns []string, rows []Record) *Dataset {
	cols := make([]string, len(columns))
	copy(cols, columns)
	for i, r := range rows {
		if r == nil {
			r = make(Record, len(cols))
			rows[i] = r
		}
		for _, c := range cols {
			if _, ok := r[c]; !ok {
				r[c] = ""
			}
		}
	}
	return &Dataset{Columns: cols, Rows: rows}
}

// Len returns the row count; a nil dataset has zero rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Head returns the first n rows (fewer if the dataset is shorter).
func (d *Dataset) Head(n int) []Record {
	if d == nil || n <= 0 {
		return nil
	}
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	return d.Rows[:n]
}

// Slice returns rows[start:end] clamped to the dataset bounds.
func (d *Dataset) Slice(start, end int) []Record {
	if d == nil {
		return nil
	}
	if start < 0 {
		start = 0
	}
	if end > len(d.Rows) {
		end = len(d.Rows)
	}
	if start >= end {
		return nil
	}
	return d.Rows[start:end]
}

// SerializeRows renders rows as compact JSON. Keys are emitted in sorted order,
// so the output is stable for a given input.
func SerializeRows(rows []Record) string {
	if rows == nil {
		rows = []Record{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return ""
	}
	return string(b)
}

// PrettyRows renders rows as indented JSON for prompts.
func PrettyRows(rows []Record) string {
	if rows == nil {
		rows = []Record{}
	}
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}
