package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/KaramelBytes/tabletalk-cli/internal/dataset"
	"github.com/KaramelBytes/tabletalk-cli/internal/schema"
)

var (
	groups     = []string{"A", "A", "A", "B", "B", "B", "A", "B", "A", "B"}
	scores     = []float64{10, 11, 9.5, 10.5, 9.8, 10.2, 8.8, 9.7, 50, 10.1}
	temps      = []float64{21, 21.5, 20.5, 24, 23.5, 23, 20, 24.5, 35, 22.5}
	categories = []string{"alpha", "alpha", "beta", "alpha", "beta", "alpha", "gamma", "beta", "alpha", "gamma"}
)

func fixture() *dataset.Dataset {
	rows := make([]dataset.Record, len(scores))
	for i := range rows {
		rows[i] = dataset.Record{
			"group":    groups[i],
			"score":    fmt.Sprint(scores[i]),
			"temp":     fmt.Sprint(temps[i]),
			"category": categories[i],
			"when":     fmt.Sprintf("2024-03-%02d", i+1),
			"note":     "",
		}
	}
	rows[3]["note"] = "late"
	return dataset.New([]string{"group", "score", "temp", "category", "when", "note"}, rows)
}

func describeFixture(opt Options) *Report {
	ds := fixture()
	return Describe(ds, schema.Infer(ds, 0), opt)
}

func TestDescribeColumns(t *testing.T) {
	rep := describeFixture(DefaultOptions())
	if rep.Rows != 10 || len(rep.Cols) != 6 {
		t.Fatalf("unexpected shape rows=%d cols=%d", rep.Rows, len(rep.Cols))
	}

	score := columnByName(t, rep, "score")
	if score.Type != schema.Number {
		t.Fatalf("score type = %s", score.Type)
	}
	checkStats(t, score, scores)
	wantCount, wantMax := robustOutlierStats(scores, 3.5)
	if score.OutliersCount != wantCount || wantCount == 0 {
		t.Fatalf("outliers = %d, want %d (>0)", score.OutliersCount, wantCount)
	}
	if !almostEqual(score.OutliersMaxAbsZ, wantMax, 1e-6) {
		t.Fatalf("max |z| = %f, want %f", score.OutliersMaxAbsZ, wantMax)
	}
	if score.TopValues != nil {
		t.Fatalf("numeric columns list no top values")
	}

	cat := columnByName(t, rep, "category")
	if cat.Type != schema.String || cat.Unique != 3 {
		t.Fatalf("category: %+v", cat)
	}
	if cat.TopValues[0] != (CategoryCount{Value: "alpha", Count: 5}) || cat.TopValues[1] != (CategoryCount{Value: "beta", Count: 3}) {
		t.Fatalf("unexpected top values %+v", cat.TopValues)
	}

	when := columnByName(t, rep, "when")
	if when.Type != schema.Date || when.Earliest.Day() != 1 || when.Latest.Day() != 10 {
		t.Fatalf("date range: %+v", when)
	}

	note := columnByName(t, rep, "note")
	if note.NonEmpty != 1 || note.Missing != 9 {
		t.Fatalf("note counts: %+v", note)
	}
}

func TestDescribeGroupByAndCorrelations(t *testing.T) {
	opt := DefaultOptions()
	opt.GroupBy = "group"
	opt.Correlations = true
	rep := describeFixture(opt)

	if len(rep.Groups) != 2 || rep.Groups[0].Key != "A" || rep.Groups[0].Size != 5 {
		t.Fatalf("unexpected groups %+v", rep.Groups)
	}
	var aIdx, bIdx []int
	for i, g := range groups {
		if g == "A" {
			aIdx = append(aIdx, i)
		} else {
			bIdx = append(bIdx, i)
		}
	}
	checkNumSummary(t, rep.Groups[0].Metrics["score"], subset(scores, aIdx))
	checkNumSummary(t, rep.Groups[1].Metrics["temp"], subset(temps, bIdx))

	if len(rep.Corr) != 1 {
		t.Fatalf("expected one numeric pair, got %+v", rep.Corr)
	}
	p := rep.Corr[0]
	if p.A != "score" || p.B != "temp" || p.N != 10 || !almostEqual(p.R, correlation(scores, temps), 1e-9) {
		t.Fatalf("unexpected correlation %+v", p)
	}
}

func TestDescribeUnknownGroupWarns(t *testing.T) {
	opt := DefaultOptions()
	opt.GroupBy = "nope"
	rep := describeFixture(opt)
	if len(rep.Groups) != 0 || len(rep.Warnings) != 1 {
		t.Fatalf("expected warning only, got groups=%v warnings=%v", rep.Groups, rep.Warnings)
	}
}

func TestDescribeEmptyDataset(t *testing.T) {
	rep := Describe(&dataset.Dataset{}, schema.Schema{}, DefaultOptions())
	if rep.Rows != 0 || len(rep.Cols) != 0 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if !strings.Contains(rep.Markdown(), "Rows: 0") {
		t.Fatalf("markdown should still render")
	}
	if Describe(nil, schema.Schema{}, Options{}).Rows != 0 {
		t.Fatalf("nil dataset should describe as empty")
	}
}

func TestMarkdown(t *testing.T) {
	opt := DefaultOptions()
	opt.GroupBy = "group"
	opt.Correlations = true
	md := describeFixture(opt).Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]", "Rows: 10", "Columns: 6",
		"- score: number", "outliers: 1",
		"- category: string", "top: alpha(5), beta(3), gamma(2)",
		"range 2024-03-01 to 2024-03-10",
		"[GROUP-BY group]", "- A (n=5)",
		"[CORRELATIONS]", "score ~ temp",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func columnByName(t *testing.T, rep *Report, name string) ColumnSummary {
	t.Helper()
	for _, c := range rep.Cols {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("column %q not found", name)
	return ColumnSummary{}
}

func checkStats(t *testing.T, col ColumnSummary, vals []float64) {
	t.Helper()
	if col.Count != len(vals) {
		t.Fatalf("count = %d, want %d", col.Count, len(vals))
	}
	if !almostEqual(col.Min, minFloat(vals), 1e-6) {
		t.Fatalf("min = %f, want %f", col.Min, minFloat(vals))
	}
	if !almostEqual(col.Max, maxFloat(vals), 1e-6) {
		t.Fatalf("max = %f, want %f", col.Max, maxFloat(vals))
	}
	if !almostEqual(col.Mean, mean(vals), 1e-6) {
		t.Fatalf("mean = %f, want %f", col.Mean, mean(vals))
	}
	if !almostEqual(col.Std, sampleStd(vals), 1e-6) {
		t.Fatalf("std = %f, want %f", col.Std, sampleStd(vals))
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	if !almostEqual(col.Median, quantileValue(sorted, 0.5), 1e-9) {
		t.Fatalf("median = %f", col.Median)
	}
}

func checkNumSummary(t *testing.T, s NumSummary, vals []float64) {
	t.Helper()
	if s.Count != len(vals) {
		t.Fatalf("summary count = %d, want %d", s.Count, len(vals))
	}
	if !almostEqual(s.Min, minFloat(vals), 1e-6) {
		t.Fatalf("summary min = %f, want %f", s.Min, minFloat(vals))
	}
	if !almostEqual(s.Max, maxFloat(vals), 1e-6) {
		t.Fatalf("summary max = %f, want %f", s.Max, maxFloat(vals))
	}
	if !almostEqual(s.Mean, mean(vals), 1e-6) {
		t.Fatalf("summary mean = %f, want %f", s.Mean, mean(vals))
	}
}

func robustOutlierStats(vals []float64, threshold float64) (count int, maxAbs float64) {
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	med := quantileValue(cp, 0.5)
	devs := make([]float64, len(cp))
	for i, v := range cp {
		devs[i] = math.Abs(v - med)
	}
	sort.Float64s(devs)
	mad := quantileValue(devs, 0.5)
	if mad == 0 {
		return 0, 0
	}
	for _, v := range cp {
		az := math.Abs(0.6745 * (v - med) / mad)
		if az > threshold {
			count++
		}
		if az > maxAbs {
			maxAbs = az
		}
	}
	return
}

func quantileValue(sortedVals []float64, q float64) float64 {
	if len(sortedVals) == 0 {
		return 0
	}
	pos := q * float64(len(sortedVals)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sortedVals[lo]
	}
	w := pos - float64(lo)
	return sortedVals[lo]*(1-w) + sortedVals[hi]*w
}

func subset(vals []float64, idxs []int) []float64 {
	out := make([]float64, len(idxs))
	for i, idx := range idxs {
		out[i] = vals[idx]
	}
	return out
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func sampleStd(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	m := mean(vals)
	var sum float64
	for _, v := range vals {
		diff := v - m
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(vals)-1))
}

func minFloat(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxFloat(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func correlation(a, b []float64) float64 {
	ma := mean(a)
	mb := mean(b)
	var num, da2, db2 float64
	for i := range a {
		da := a[i] - ma
		db := b[i] - mb
		num += da * db
		da2 += da * da
		db2 += db * db
	}
	if da2 == 0 || db2 == 0 {
		return 0
	}
	return num / math.Sqrt(da2*db2)
}

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}
