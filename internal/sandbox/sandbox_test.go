package sandbox

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/tabletalk-cli/internal/dataset"
)

func ages(n int) *dataset.Dataset {
	rows := make([]dataset.Record, n)
	for i := range rows {
		age := ""
		if i%10 != 0 {
			age = fmt.Sprint(i % 40)
		}
		rows[i] = dataset.Record{"name": fmt.Sprintf("p%d", i), "age": age}
	}
	return dataset.New([]string{"name", "age"}, rows)
}

func TestRunResults(t *testing.T) {
	ds := ages(4)
	cases := []struct {
		name string
		code string
		want string
	}{
		{"number", "function analyzeData(data) { return 42; }", "42"},
		{"float", "function analyzeData(data) { return 1.5; }", "1.5"},
		{"string", "function analyzeData(data) { return 'hello'; }", "hello"},
		{"boolean", "function analyzeData(data) { return data.length > 2; }", "true"},
		{"null", "function analyzeData(data) { return null; }", "null"},
		{"row count", "function analyzeData(data) { return data.length; }", "4"},
		{"object", "function analyzeData(data) { return {total: data.length, first: data[0].name}; }", "{\n  \"total\": 4,\n  \"first\": \"p0\"\n}"},
		{"array", "function analyzeData(data) { return [1, 2]; }", "[\n  1,\n  2\n]"},
		{"arrow", "const analyzeData = (rows) => { return rows[1].age; }", "1"},
		{"member named like denied word", "function analyzeData(data) { const row = {process: {x: 1}}; return row.process.x; }", "1"},
	}
	for _, c := range cases {
		got := Executor{}.Run(context.Background(), c.code, ds)
		if got != c.want {
			t.Errorf("%s: got %q want %q", c.name, got, c.want)
		}
	}
}

func TestRunAverageAgeOverFullDataset(t *testing.T) {
	ds := ages(100)
	code := `function analyzeData(data) {
  const vals = data.map(r => r.age).filter(v => v !== '').map(Number);
  return vals.reduce((a, b) => a + b, 0) / vals.length;
}`
	var sum, n float64
	for _, r := range ds.Rows {
		if r["age"] == "" {
			continue
		}
		var v float64
		fmt.Sscan(r["age"], &v)
		sum += v
		n++
	}
	want := fmt.Sprint(sum / n)
	if got := (Executor{}).Run(context.Background(), code, ds); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestRunDiagnostics(t *testing.T) {
	ds := ages(2)
	cases := []struct {
		name   string
		code   string
		prefix string
		detail string
	}{
		{"syntax error", "function analyzeData(data) { return ; ) }", "Error executing generated code: ", ""},
		{"thrown error", "function analyzeData(data) { throw new Error('boom'); }", "Error executing generated code: ", "boom"},
		{"type error", "function analyzeData(data) { return data[10].age; }", "Error executing generated code: ", "TypeError"},
		{"no return", "function analyzeData(data) { data.length; }", "The generated function did not return a value.", ""},
		{"missing function", "function other(data) { return 1; }", "Error executing generated code: ", "analyzeData is not defined"},
		{"denied require", "function analyzeData(data) { return require('fs'); }", "Error executing generated code: ", "require is not allowed"},
		{"denied fetch", "function analyzeData(data) { return fetch('http://x'); }", "Error executing generated code: ", "fetch is not allowed"},
		{"denied process", "function analyzeData(data) { return process.env.HOME; }", "Error executing generated code: ", "process is not allowed"},
		{"removed Function", "function analyzeData(data) { return Reflect.construct(this.Function, []); }", "Error executing generated code: ", ""},
		{"constructor route", "function analyzeData(data) { return (function(){}).constructor('return 7')(); }", "Error executing generated code: ", "TypeError"},
		{"arrow constructor route", "function analyzeData(data) { return (() => 1).constructor('return 7')(); }", "Error executing generated code: ", "TypeError"},
		{"generator constructor route", "function analyzeData(data) { return (function*(){}).constructor('yield 7')().next().value; }", "Error executing generated code: ", ""},
	}
	for _, c := range cases {
		got := Executor{}.Run(context.Background(), c.code, ds)
		if !strings.HasPrefix(got, c.prefix) {
			t.Errorf("%s: unexpected prefix: %q", c.name, got)
			continue
		}
		if c.detail != "" && !strings.Contains(got, c.detail) {
			t.Errorf("%s: missing %q in %q", c.name, c.detail, got)
		}
		if !strings.HasSuffix(got, "\n\nGenerated code:\n"+c.code) {
			t.Errorf("%s: diagnostic must end with the generated code: %q", c.name, got)
		}
	}
}

func TestRunTimeout(t *testing.T) {
	start := time.Now()
	got := Executor{Timeout: 100 * time.Millisecond}.Run(context.Background(), "function analyzeData(data) { while (true) {} }", ages(1))
	if !strings.Contains(got, "timed out") {
		t.Fatalf("expected timeout diagnostic, got %q", got)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("timeout not enforced promptly")
	}
}

func TestRunContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	got := Executor{Timeout: time.Minute}.Run(ctx, "function analyzeData(data) { for (;;) {} }", ages(1))
	if !strings.HasPrefix(got, "Error executing generated code: ") {
		t.Fatalf("expected error diagnostic, got %q", got)
	}
}

func TestRunRecursionCapped(t *testing.T) {
	code := "function analyzeData(data) { function f(n) { return f(n + 1) + 1; } return f(0); }"
	got := Executor{MaxCallStack: 64}.Run(context.Background(), code, ages(1))
	if !strings.HasPrefix(got, "Error executing generated code: ") {
		t.Fatalf("expected stack overflow diagnostic, got %q", got)
	}
}

func TestRunNilDataset(t *testing.T) {
	got := Executor{}.Run(context.Background(), "function analyzeData(data) { return data.length; }", nil)
	if got != "0" {
		t.Fatalf("got %q", got)
	}
}

func TestRewrite(t *testing.T) {
	code, hits := Rewrite("const x = require('child_process'); setTimeout(f, 1); row.fetch(1)")
	if !strings.Contains(code, `__denied("require")(`) || !strings.Contains(code, `__denied("setTimeout")(`) {
		t.Fatalf("unexpected rewrite: %s", code)
	}
	if strings.Contains(code, `__denied("fetch")`) {
		t.Fatalf("member call must not be rewritten: %s", code)
	}
	if !strings.Contains(code, "'child_process'") {
		t.Fatalf("string argument must be kept: %s", code)
	}
	if len(hits) != 2 || hits[0] != "require" || hits[1] != "setTimeout" {
		t.Fatalf("expected require and setTimeout hits, got %v", hits)
	}
}

func TestRewriteLeavesLiteralsAlone(t *testing.T) {
	srcs := []string{
		`return data.filter(r => r.name === "eval").length;`,
		"const label = `setTimeout(${n})`; // eval(x) here\nreturn label;",
		"/* fetch(url) */ return /eval\\(/.test(s);",
		`const eval_count = 1; const kind = 'globalThis.x';`,
	}
	for _, src := range srcs {
		code, hits := Rewrite(src)
		if code != src || len(hits) != 0 {
			t.Errorf("Rewrite(%q) = %q, %v; want unchanged", src, code, hits)
		}
	}

	code, hits := Rewrite(`const s = "eval"; return eval("1") + globalThis.x;`)
	if !strings.HasPrefix(code, `const s = "eval"; return __denied("eval")("1")`) || !strings.Contains(code, `__denied("globalThis").x`) {
		t.Fatalf("unexpected rewrite: %s", code)
	}
	if len(hits) != 2 {
		t.Fatalf("expected eval and globalThis hits, got %v", hits)
	}
}

func TestRunDeniedWordsAsData(t *testing.T) {
	ds := dataset.New([]string{"name"}, []dataset.Record{{"name": "eval"}, {"name": "fs"}, {"name": "eval"}, {"name": "Ann"}})
	cases := []struct {
		code string
		want string
	}{
		{`function analyzeData(data) { return data.filter(r => r.name === "eval").length; }`, "2"},
		{`function analyzeData(data) { return data.filter(r => r.name === 'fs').length; }`, "1"},
		{"function analyzeData(data) { return data.filter(r => /^(eval|fs)$/.test(r.name)).length; }", "3"},
	}
	for _, c := range cases {
		if got := (Executor{}).Run(context.Background(), c.code, ds); got != c.want {
			t.Errorf("Run(%q) = %q, want %q", c.code, got, c.want)
		}
	}
}
