package retrieval

import (
	"reflect"
	"testing"

	"github.com/KaramelBytes/tabletalk-cli/internal/dataset"
)

func chunkOf(id string, vals ...string) Chunk {
	rows := make([]dataset.Record, len(vals))
	for i, v := range vals {
		rows[i] = dataset.Record{"v": v}
	}
	return Chunk{ID: id, Rows: rows}
}

func TestKeywords(t *testing.T) {
	got := Keywords("What is the Average AGE of people, average age?")
	want := []string{"what", "average", "people,", "age?"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if kws := Keywords("is it ok"); len(kws) != 0 {
		t.Fatalf("expected no keywords, got %v", kws)
	}
}

func TestRankOrdersByDistinctMatches(t *testing.T) {
	chunks := []Chunk{
		chunkOf("chunk-0", "Oslo", "Bergen"),
		chunkOf("chunk-1", "Paris", "London"),
		chunkOf("chunk-2", "London", "Madrid"),
		chunkOf("chunk-3", "london"),
	}
	got := Rank("london madrid london", chunks)
	if len(got) != 3 {
		t.Fatalf("expected 3 ranked chunks, got %d", len(got))
	}
	if got[0].ID != "chunk-2" || got[0].Score != 2 {
		t.Fatalf("expected chunk-2 first with score 2, got %s/%d", got[0].ID, got[0].Score)
	}
	// ties keep chunk order
	if got[1].ID != "chunk-1" || got[2].ID != "chunk-3" {
		t.Fatalf("unexpected tie order: %s, %s", got[1].ID, got[2].ID)
	}
}

func TestRankShortTokensOnly(t *testing.T) {
	chunks := []Chunk{chunkOf("chunk-0", "the cat")}
	if got := Rank("the cat", chunks); len(got) != 0 {
		t.Fatalf("expected empty ranking, got %v", got)
	}
}

func TestRankDropsZeroScores(t *testing.T) {
	chunks := []Chunk{chunkOf("chunk-0", "alpha"), chunkOf("chunk-1", "beta")}
	got := Rank("gamma delta", chunks)
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
	got = Rank("beta", chunks)
	if len(got) != 1 || got[0].ID != "chunk-1" {
		t.Fatalf("expected only chunk-1, got %v", got)
	}
}

func TestRankMatchesColumnNames(t *testing.T) {
	// Serialized rows carry keys, so column names are matchable.
	c := Chunk{ID: "chunk-0", Rows: []dataset.Record{{"salary": "10"}}}
	if got := Rank("total salary", []Chunk{c}); len(got) != 1 || got[0].Score != 1 {
		t.Fatalf("expected column name match, got %v", got)
	}
}
