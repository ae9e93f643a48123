package retrieval

import (
	"fmt"
	"strings"
	"testing"

	"github.com/KaramelBytes/tabletalk-cli/internal/dataset"
)

func makeDataset(n int, width int) *dataset.Dataset {
	rows := make([]dataset.Record, n)
	for i := range rows {
		rows[i] = dataset.Record{"id": fmt.Sprint(i), "note": strings.Repeat("x", width)}
	}
	return dataset.New([]string{"id", "note"}, rows)
}

func assertPartition(t *testing.T, chunks []Chunk, n int) {
	t.Helper()
	next := 0
	for i, c := range chunks {
		if c.ID != fmt.Sprintf("chunk-%d", i) {
			t.Fatalf("chunk %d has id %q", i, c.ID)
		}
		if c.Start != next {
			t.Fatalf("chunk %d starts at %d, want %d", i, c.Start, next)
		}
		if c.End < c.Start || len(c.Rows) != c.End-c.Start+1 {
			t.Fatalf("chunk %d bounds [%d,%d] disagree with %d rows", i, c.Start, c.End, len(c.Rows))
		}
		next = c.End + 1
	}
	if next != n {
		t.Fatalf("chunks cover %d rows, want %d", next, n)
	}
}

func TestChunkDatasetPartitions(t *testing.T) {
	cases := []struct {
		name  string
		rows  int
		width int
		want  int
	}{
		{"small rows clamp to three", 100, 5, 3},
		{"six rows", 6, 5, 3},
		{"four rows absorb a window", 4, 5, 2},
		{"single row", 1, 5, 1},
		{"wide rows", 200, 400, 0},
	}
	for _, c := range cases {
		ds := makeDataset(c.rows, c.width)
		chunks := ChunkDataset(ds)
		assertPartition(t, chunks, c.rows)
		if c.want > 0 && len(chunks) != c.want {
			t.Errorf("%s: got %d chunks, want %d", c.name, len(chunks), c.want)
		}
		if len(chunks) > MaxChunks {
			t.Errorf("%s: %d chunks exceeds max", c.name, len(chunks))
		}
	}
}

func TestChunkDatasetWideRowsSplitByBudget(t *testing.T) {
	// ~100 tokens per row => 20 rows per chunk => 10 chunks for 200 rows.
	ds := makeDataset(200, 400)
	p := Plan(ds)
	if p.RowsPerChunk < 15 || p.RowsPerChunk > 20 {
		t.Fatalf("unexpected rows per chunk %d (avg %.1f)", p.RowsPerChunk, p.AvgTokensPerRow)
	}
	chunks := ChunkDataset(ds)
	if len(chunks) < 10 || len(chunks) > 14 {
		t.Fatalf("expected about 10 chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.Tokens > TargetChunkTokens+200 {
			t.Fatalf("chunk %s estimated at %d tokens", c.ID, c.Tokens)
		}
	}
}

func TestChunkDatasetCapsAtFifty(t *testing.T) {
	ds := makeDataset(2000, 400)
	chunks := ChunkDataset(ds)
	if len(chunks) != MaxChunks {
		t.Fatalf("expected %d chunks, got %d", MaxChunks, len(chunks))
	}
	assertPartition(t, chunks, 2000)
}

func TestChunkDatasetEmpty(t *testing.T) {
	if got := ChunkDataset(&dataset.Dataset{}); len(got) != 0 {
		t.Fatalf("expected no chunks, got %d", len(got))
	}
	if got := ChunkDataset(nil); len(got) != 0 {
		t.Fatalf("expected no chunks for nil dataset")
	}
	if p := Plan(nil); p.ChunkCount != 0 {
		t.Fatalf("expected empty plan")
	}
}

func TestPlanFloorsAverage(t *testing.T) {
	// Column-less rows serialize to "[{},{},{}]", under one token per row.
	ds := dataset.New(nil, []dataset.Record{{}, {}, {}})
	p := Plan(ds)
	if p.AvgTokensPerRow < 1 {
		t.Fatalf("average must be floored at 1, got %f", p.AvgTokensPerRow)
	}
	if p.RowsPerChunk != TargetChunkTokens {
		t.Fatalf("rows per chunk = %d", p.RowsPerChunk)
	}
}
