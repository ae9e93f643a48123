// Package analysis computes descriptive statistics over a loaded dataset.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/tabletalk-cli/internal/dataset"
	"github.com/KaramelBytes/tabletalk-cli/internal/schema"
)

// Options controls Describe.
type Options struct {
	// TopValues caps the most frequent values listed for non-numeric columns.
	TopValues int
	// OutlierThreshold is the robust |z| cutoff (MAD based); 0 disables outlier counts.
	OutlierThreshold float64
	// GroupBy computes per-group numeric summaries keyed by this column.
	GroupBy string
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
}

// DefaultOptions returns reasonable defaults for dataset description.
func DefaultOptions() Options {
	return Options{TopValues: 5, OutlierThreshold: 3.5}
}

const (
	minOutlierSamples = 8
	minCorrSamples    = 3
	maxCorrPairs      = 10
)

// Report summarizes a dataset column by column.
type Report struct {
	Rows     int
	Cols     []ColumnSummary
	GroupBy  string
	Groups   []GroupResult
	Corr     []PairCorr
	Warnings []string
}

// ColumnSummary captures the inferred type and statistics of one column.
type ColumnSummary struct {
	Name     string
	Type     schema.Type
	NonEmpty int
	Missing  int
	Unique   int
	// Numeric stats over values that parse as numbers.
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	Std    float64
	Median float64
	// Outliers (robust Z via MAD)
	OutliersCount   int
	OutliersMaxAbsZ float64
	// Date range
	Earliest time.Time
	Latest   time.Time
	// Most frequent values for boolean, date and string columns.
	TopValues []CategoryCount
}

type CategoryCount struct {
	Value string
	Count int
}

// GroupResult aggregates numeric columns for one group key.
type GroupResult struct {
	Key     string
	Size    int
	Metrics map[string]NumSummary
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// PairCorr is a Pearson correlation between two numeric columns.
type PairCorr struct {
	A, B string
	R    float64
	N    int
}

// Describe summarizes ds using the column types in sc.
func Describe(ds *dataset.Dataset, sc schema.Schema, opt Options) *Report {
	rep := &Report{Rows: ds.Len()}
	if ds == nil {
		return rep
	}
	var numeric []string
	for _, col := range ds.Columns {
		s := describeColumn(ds.Rows, col, sc.TypeOf(col), opt)
		if s.Type == schema.Number && s.Count > 0 {
			numeric = append(numeric, col)
		}
		rep.Cols = append(rep.Cols, s)
	}
	if opt.GroupBy != "" {
		if !hasColumn(ds, opt.GroupBy) {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("group-by column %q not found", opt.GroupBy))
		} else {
			rep.GroupBy = opt.GroupBy
			rep.Groups = groupBy(ds.Rows, opt.GroupBy, numeric)
		}
	}
	if opt.Correlations {
		rep.Corr = correlations(ds.Rows, numeric)
	}
	return rep
}

func describeColumn(rows []dataset.Record, col string, typ schema.Type, opt Options) ColumnSummary {
	s := ColumnSummary{Name: col, Type: typ}
	counts := map[string]int{}
	var (
		vals []float64
		m2   float64
	)
	for _, r := range rows {
		v := strings.TrimSpace(r[col])
		if v == "" {
			s.Missing++
			continue
		}
		s.NonEmpty++
		counts[v]++
		switch typ {
		case schema.Number:
			f, ok := parseNumber(v)
			if !ok {
				continue
			}
			// Welford
			s.Count++
			if s.Count == 1 {
				s.Min, s.Max = f, f
			}
			s.Min = math.Min(s.Min, f)
			s.Max = math.Max(s.Max, f)
			d := f - s.Mean
			s.Mean += d / float64(s.Count)
			m2 += d * (f - s.Mean)
			vals = append(vals, f)
		case schema.Date:
			t, ok := schema.ParseDate(v)
			if !ok {
				continue
			}
			if s.Earliest.IsZero() || t.Before(s.Earliest) {
				s.Earliest = t
			}
			if t.After(s.Latest) {
				s.Latest = t
			}
		}
	}
	s.Unique = len(counts)
	if typ == schema.Number {
		if s.Count > 1 {
			s.Std = math.Sqrt(m2 / float64(s.Count-1))
		}
		median, mad := medianMAD(vals)
		s.Median = median
		if opt.OutlierThreshold > 0 && len(vals) >= minOutlierSamples && mad > 0 {
			for _, v := range vals {
				az := math.Abs(0.6745 * (v - median) / mad)
				if az > opt.OutlierThreshold {
					s.OutliersCount++
				}
				if az > s.OutliersMaxAbsZ {
					s.OutliersMaxAbsZ = az
				}
			}
		}
		return s
	}
	s.TopValues = topValues(counts, opt.TopValues)
	return s
}

func parseNumber(v string) (float64, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func topValues(counts map[string]int, limit int) []CategoryCount {
	if limit <= 0 {
		return nil
	}
	tops := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > limit {
		tops = tops[:limit]
	}
	return tops
}

func groupBy(rows []dataset.Record, key string, numeric []string) []GroupResult {
	idx := map[string]int{}
	var out []GroupResult
	for _, r := range rows {
		k := strings.TrimSpace(r[key])
		if k == "" {
			k = "(empty)"
		}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, GroupResult{Key: k, Metrics: map[string]NumSummary{}})
		}
		g := &out[i]
		g.Size++
		for _, col := range numeric {
			if col == key {
				continue
			}
			f, ok := parseNumber(strings.TrimSpace(r[col]))
			if !ok {
				continue
			}
			m := g.Metrics[col]
			if m.Count == 0 {
				m.Min, m.Max = f, f
			}
			m.Min = math.Min(m.Min, f)
			m.Max = math.Max(m.Max, f)
			m.Mean += (f - m.Mean) / float64(m.Count+1)
			m.Count++
			g.Metrics[col] = m
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Size == out[j].Size {
			return out[i].Key < out[j].Key
		}
		return out[i].Size > out[j].Size
	})
	return out
}

func correlations(rows []dataset.Record, numeric []string) []PairCorr {
	var pairs []PairCorr
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			a, b := numeric[i], numeric[j]
			var n, sx, sy, sxx, syy, sxy float64
			for _, r := range rows {
				x, ok1 := parseNumber(strings.TrimSpace(r[a]))
				y, ok2 := parseNumber(strings.TrimSpace(r[b]))
				if !ok1 || !ok2 {
					continue
				}
				n++
				sx += x
				sy += y
				sxx += x * x
				syy += y * y
				sxy += x * y
			}
			if n < minCorrSamples {
				continue
			}
			denom := math.Sqrt((n*sxx - sx*sx) * (n*syy - sy*sy))
			if denom == 0 {
				continue
			}
			pairs = append(pairs, PairCorr{A: a, B: b, R: (n*sxy - sx*sy) / denom, N: int(n)})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return math.Abs(pairs[i].R) > math.Abs(pairs[j].R) })
	if len(pairs) > maxCorrPairs {
		pairs = pairs[:maxCorrPairs]
	}
	return pairs
}

func hasColumn(ds *dataset.Dataset, name string) bool {
	for _, c := range ds.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Markdown renders a compact report for the terminal or a prompt.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	fmt.Fprintf(&b, "Rows: %d\n", r.Rows)
	fmt.Fprintf(&b, "Columns: %d\n\n", len(r.Cols))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		missPct := 0.0
		if total := c.NonEmpty + c.Missing; total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		fmt.Fprintf(&b, "- %s: %s (non-empty %d, missing %.1f%%, unique %d)", safeName(c.Name), c.Type, c.NonEmpty, missPct, c.Unique)
		switch {
		case c.Type == schema.Number && c.Count > 0:
			fmt.Fprintf(&b, "; min %.4g, max %.4g, mean %.4g, median %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Median, c.Std)
			if c.OutliersCount > 0 {
				fmt.Fprintf(&b, "; outliers: %d (max |z|≈%.2f)", c.OutliersCount, c.OutliersMaxAbsZ)
			}
		case c.Type == schema.Date && !c.Latest.IsZero():
			fmt.Fprintf(&b, "; range %s to %s", c.Earliest.Format("2006-01-02"), c.Latest.Format("2006-01-02"))
		}
		if len(c.TopValues) > 0 {
			b.WriteString("; top: ")
			for i, kv := range c.TopValues {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%s(%d)", safeVal(kv.Value), kv.Count)
			}
		}
		b.WriteString("\n")
	}
	if len(r.Groups) > 0 {
		fmt.Fprintf(&b, "\n[GROUP-BY %s]\n", safeName(r.GroupBy))
		for _, g := range r.Groups {
			fmt.Fprintf(&b, "- %s (n=%d)\n", safeVal(g.Key), g.Size)
			keys := make([]string, 0, len(g.Metrics))
			for k := range g.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				m := g.Metrics[k]
				fmt.Fprintf(&b, "  • %s: mean %.4g (min %.4g, max %.4g)\n", k, m.Mean, m.Min, m.Max)
			}
		}
	}
	if len(r.Corr) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, p := range r.Corr {
			fmt.Fprintf(&b, "- %s ~ %s: r=%.3f (n=%d)\n", p.A, p.B, p.R, p.N)
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[WARNINGS]\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

func safeName(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
