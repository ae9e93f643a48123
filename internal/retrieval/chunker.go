package retrieval

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/tabletalk-cli/internal/dataset"
	"github.com/KaramelBytes/tabletalk-cli/internal/utils"
)

const (
	// TargetChunkTokens is the token budget a single chunk aims for.
	TargetChunkTokens = 2000
	MinChunks         = 3
	MaxChunks         = 50
	// sampleRows bounds how many leading rows feed the per-row estimate.
	sampleRows = 50
)

// Chunk is a contiguous window of dataset rows. End is inclusive.
type Chunk struct {
	ID     string
	Start  int
	End    int
	Rows   []dataset.Record
	Tokens int

	text string
}

// Text returns the serialized rows of the chunk.
func (c Chunk) Text() string {
	if c.text == "" {
		return dataset.SerializeRows(c.Rows)
	}
	return c.text
}

// ChunkPlan describes how a dataset will be partitioned.
type ChunkPlan struct {
	TotalRows       int
	AvgTokensPerRow float64
	RowsPerChunk    int
	ChunkCount      int
	ChunkSize       int
}

// Plan computes the chunk sizing for ds without materializing chunks.
func Plan(ds *dataset.Dataset) ChunkPlan {
	n := ds.Len()
	if n == 0 {
		return ChunkPlan{}
	}
	sample := ds.Head(sampleRows)
	avg := float64(utils.EstimateTokens(dataset.SerializeRows(sample))) / float64(len(sample))
	if avg < 1 {
		avg = 1
	}
	rowsPerChunk := int(math.Floor(TargetChunkTokens / avg))
	if rowsPerChunk < 1 {
		rowsPerChunk = 1
	}
	desired := ceilDiv(n, rowsPerChunk)
	if desired < MinChunks {
		desired = MinChunks
	}
	if desired > MaxChunks {
		desired = MaxChunks
	}
	size := ceilDiv(n, desired)
	if size < 1 {
		size = 1
	}
	return ChunkPlan{
		TotalRows:       n,
		AvgTokensPerRow: avg,
		RowsPerChunk:    rowsPerChunk,
		ChunkCount:      ceilDiv(n, size),
		ChunkSize:       size,
	}
}

// ChunkDataset partitions ds into consecutive windows sized by Plan.
// The final chunk may be shorter; an empty dataset yields no chunks.
func ChunkDataset(ds *dataset.Dataset) []Chunk {
	p := Plan(ds)
	if p.ChunkCount == 0 {
		return nil
	}
	chunks := make([]Chunk, 0, p.ChunkCount)
	for start := 0; start < p.TotalRows; start += p.ChunkSize {
		rows := ds.Slice(start, start+p.ChunkSize)
		text := dataset.SerializeRows(rows)
		chunks = append(chunks, Chunk{
			ID:     fmt.Sprintf("chunk-%d", len(chunks)),
			Start:  start,
			End:    start + len(rows) - 1,
			Rows:   rows,
			Tokens: utils.EstimateTokens(text),
			text:   text,
		})
	}
	return chunks
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
