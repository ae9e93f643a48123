package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/tabletalk-cli/internal/dataset"
)

// Type is the inferred kind of a column.
type Type string

const (
	Number  Type = "number"
	Boolean Type = "boolean"
	Date    Type = "date"
	String  Type = "string"
)

// DefaultSampleSize is the number of leading rows inspected per column.
const DefaultSampleSize = 20

// threshold is the fraction of non-empty samples a type test must exceed.
const threshold = 0.8

// Schema is a read-only snapshot of column names and inferred types.
type Schema struct {
	Columns []string
	Types   map[string]Type
}

// TypeOf returns the inferred type of a column, or String if unknown.
func (s Schema) TypeOf(col string) Type {
	if t, ok := s.Types[col]; ok {
		return t
	}
	return String
}

// String renders "column: type" pairs joined by commas, in column order.
func (s Schema) String() string {
	parts := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		parts = append(parts, fmt.Sprintf("%s: %s", c, s.TypeOf(c)))
	}
	return strings.Join(parts, ", ")
}

// Infer derives a column type map from the first sampleSize rows.
// sampleSize <= 0 uses DefaultSampleSize.
func Infer(ds *dataset.Dataset, sampleSize int) Schema {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	out := Schema{Types: map[string]Type{}}
	if ds == nil {
		return out
	}
	out.Columns = make([]string, len(ds.Columns))
	copy(out.Columns, ds.Columns)
	sample := ds.Head(sampleSize)
	for _, col := range out.Columns {
		out.Types[col] = inferColumn(sample, col)
	}
	return out
}

func inferColumn(rows []dataset.Record, col string) Type {
	var nonEmpty, nums, bools, dates int
	for _, r := range rows {
		v := strings.TrimSpace(r[col])
		if v == "" {
			continue
		}
		nonEmpty++
		if IsNumeric(v) {
			nums++
		}
		if IsBoolean(v) {
			bools++
		}
		if IsDate(v) {
			dates++
		}
	}
	if nonEmpty == 0 {
		return String
	}
	total := float64(nonEmpty)
	switch {
	case float64(nums)/total > threshold:
		return Number
	case float64(bools)/total > threshold:
		return Boolean
	case float64(dates)/total > threshold:
		return Date
	default:
		return String
	}
}

// IsNumeric reports whether s is a finite numeric literal.
func IsNumeric(s string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IsBoolean reports whether s is "true" or "false", ignoring case.
func IsBoolean(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "true" || v == "false"
}

var dateLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "01/02/2006", "02/01/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006", "1/2/2006 15:04",
	"1/2/2006 15:04:05", "Jan 2, 2006", "January 2, 2006", "2 Jan 2006",
}

// IsDate reports whether s parses as a calendar date in a common layout.
func IsDate(s string) bool {
	_, ok := ParseDate(s)
	return ok
}

// ParseDate parses s with the first matching layout.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
