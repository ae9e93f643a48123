package schema

import (
	"fmt"
	"testing"

	"github.com/KaramelBytes/tabletalk-cli/internal/dataset"
)

func column(vals ...string) *dataset.Dataset {
	rows := make([]dataset.Record, len(vals))
	for i, v := range vals {
		rows[i] = dataset.Record{"c": v}
	}
	return dataset.New([]string{"c"}, rows)
}

func TestInferColumnTypes(t *testing.T) {
	cases := []struct {
		name string
		ds   *dataset.Dataset
		want Type
	}{
		{"all numeric", column("1", "2.5", "-3", "4e2"), Number},
		{"mostly numeric", column("1", "2", "3", "4", "5", "6", "7", "8", "9", "n/a"), Number},
		{"half numeric", column("1", "x", "2", "y"), String},
		{"exactly eighty percent", column("1", "2", "3", "4", "x"), String},
		{"booleans", column("true", "FALSE", "True", "false"), Boolean},
		{"dates", column("2024-01-02", "2024/03/04", "12/31/2023", "Jan 5, 2024"), Date},
		{"strings", column("alpha", "beta"), String},
		{"empty values skipped", column("", "10", " ", "20"), Number},
		{"all empty", column("", ""), String},
		{"nan is not numeric", column("NaN", "Inf", "1"), String},
	}
	for _, c := range cases {
		s := Infer(c.ds, 0)
		if got := s.TypeOf("c"); got != c.want {
			t.Errorf("%s: got %s want %s", c.name, got, c.want)
		}
	}
}

func TestInferPriorityNumberBeforeDate(t *testing.T) {
	// Bare years could be read as numbers; the number test wins.
	if got := Infer(column("2020", "2021", "2022"), 0).TypeOf("c"); got != Number {
		t.Fatalf("expected number, got %s", got)
	}
}

func TestInferRespectsSampleSize(t *testing.T) {
	vals := make([]string, 0, 40)
	for i := 0; i < 20; i++ {
		vals = append(vals, fmt.Sprint(i))
	}
	for i := 0; i < 20; i++ {
		vals = append(vals, "text")
	}
	ds := column(vals...)
	if got := Infer(ds, 20).TypeOf("c"); got != Number {
		t.Fatalf("first 20 rows are numeric, got %s", got)
	}
	if got := Infer(ds, 40).TypeOf("c"); got != String {
		t.Fatalf("with all rows sampled expected string, got %s", got)
	}
}

func TestInferEmptyDataset(t *testing.T) {
	s := Infer(&dataset.Dataset{}, 20)
	if len(s.Columns) != 0 || s.String() != "" {
		t.Fatalf("expected empty schema, got %+v", s)
	}
	s = Infer(nil, 20)
	if len(s.Columns) != 0 {
		t.Fatalf("expected empty schema for nil dataset")
	}
	s = Infer(dataset.New([]string{"a", "b"}, nil), 20)
	if s.String() != "a: string, b: string" {
		t.Fatalf("unexpected schema string: %q", s.String())
	}
}

func TestSchemaStringOrder(t *testing.T) {
	ds := dataset.New([]string{"name", "age"}, []dataset.Record{{"name": "Ann", "age": "31"}})
	if got := Infer(ds, 20).String(); got != "name: string, age: number" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}
