package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/tabletalk-cli/internal/ai"
	"github.com/KaramelBytes/tabletalk-cli/internal/dataset"
	"github.com/KaramelBytes/tabletalk-cli/internal/retrieval"
	"github.com/KaramelBytes/tabletalk-cli/internal/schema"
	"github.com/KaramelBytes/tabletalk-cli/internal/utils"
)

const (
	// FunctionName is the entry point generated code must define.
	FunctionName = "analyzeData"
	// ParamName is the sole parameter of FunctionName; it receives the rows.
	ParamName = "data"

	DefaultFallbackRows     = 10
	DefaultSampleRows       = 3
	DefaultMaxContextTokens = 6000

	// CodeUserMessage follows the code-generation system prompt.
	CodeUserMessage = "Write the function."
)

// Builder assembles prompts. The zero value uses the defaults above.
type Builder struct {
	FallbackRows     int
	SampleRows       int
	MaxContextTokens int
}

func (b Builder) fallbackRows() int {
	if b.FallbackRows > 0 {
		return b.FallbackRows
	}
	return DefaultFallbackRows
}

func (b Builder) sampleRows() int {
	if b.SampleRows > 0 {
		return b.SampleRows
	}
	return DefaultSampleRows
}

func (b Builder) maxContextTokens() int {
	if b.MaxContextTokens > 0 {
		return b.MaxContextTokens
	}
	return DefaultMaxContextTokens
}

// ContextRows returns the rows the direct prompt embeds: rows of the ranked
// chunks in chunk order, or the leading rows when nothing ranked. The second
// result is the number of rows dropped by the token budget.
func (b Builder) ContextRows(ds *dataset.Dataset, ranked []retrieval.Scored) ([]dataset.Record, int) {
	var rows []dataset.Record
	if len(ranked) == 0 {
		rows = ds.Head(b.fallbackRows())
	} else {
		ordered := make([]retrieval.Chunk, len(ranked))
		for i, s := range ranked {
			ordered[i] = s.Chunk
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })
		for _, c := range ordered {
			rows = append(rows, c.Rows...)
		}
	}
	budget := b.maxContextTokens()
	used := 0
	for i, r := range rows {
		used += utils.EstimateTokens(dataset.SerializeRows([]dataset.Record{r}))
		if used > budget && i > 0 {
			return rows[:i], len(rows) - i
		}
	}
	return rows, 0
}

// BuildDirect renders the system prompt for direct completion.
func (b Builder) BuildDirect(ds *dataset.Dataset, ranked []retrieval.Scored) string {
	rows, dropped := b.ContextRows(ds, ranked)
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant. The user has uploaded a CSV file")
	fmt.Fprintf(&sb, " with %d rows and the columns: %s.\n", ds.Len(), strings.Join(columnsOf(ds), ", "))
	if len(ranked) == 0 {
		fmt.Fprintf(&sb, "Here are the first %d rows: ", len(rows))
	} else {
		fmt.Fprintf(&sb, "Here are %d rows relevant to the question: ", len(rows))
	}
	sb.WriteString(dataset.SerializeRows(rows))
	sb.WriteString(".\n")
	if dropped > 0 {
		fmt.Fprintf(&sb, "(%d further rows omitted to fit the context budget.)\n", dropped)
	}
	sb.WriteString("Answer questions about this data.")
	return sb.String()
}

// DirectMessages orders the system prompt, prior turns and the new question.
func DirectMessages(system string, history []ai.Message, question string) []ai.Message {
	msgs := make([]ai.Message, 0, len(history)+2)
	msgs = append(msgs, ai.Message{Role: "system", Content: system})
	msgs = append(msgs, history...)
	msgs = append(msgs, ai.Message{Role: "user", Content: question})
	return msgs
}

// BuildCode renders the code-generation system prompt.
func (b Builder) BuildCode(s schema.Schema, ds *dataset.Dataset, question string) string {
	var sb strings.Builder
	sb.WriteString("You are a data analyst writing JavaScript to answer a question about a tabular dataset.\n")
	fmt.Fprintf(&sb, "The dataset has %d rows. Columns and inferred types: %s\n", ds.Len(), s.String())
	sb.WriteString("Every value is a raw string exactly as read from the file; convert numbers, booleans and dates yourself and skip empty strings.\n\n")
	fmt.Fprintf(&sb, "Sample rows:\n%s\n\n", b.sampleText(ds))
	fmt.Fprintf(&sb, "Question: %s\n\n", question)
	sb.WriteString("Rules:\n")
	fmt.Fprintf(&sb, "- Output exactly one function named %s that takes a single parameter named %s (the array of row objects).\n", FunctionName, ParamName)
	sb.WriteString("- The function must compute the answer from the data and end with an explicit return statement.\n")
	sb.WriteString("- Output only the function source: no explanations, no markdown, no code fences.\n")
	sb.WriteString("- Do not use require, import, fetch, timers, eval or any I/O.\n")
	sb.WriteString("- If the columns cannot answer the question, return a string explaining why.\n")
	return sb.String()
}

// sampleText renders the sample rows, cut to the context budget when the rows
// are unusually wide.
func (b Builder) sampleText(ds *dataset.Dataset) string {
	text := dataset.PrettyRows(ds.Head(b.sampleRows()))
	if cut := utils.TruncateToTokenLimit(text, b.maxContextTokens()); len(cut) < len(text) {
		return cut + "\n... (sample truncated)"
	}
	return text
}

// CodeMessages wraps the code-generation system prompt into a request.
func CodeMessages(system string) []ai.Message {
	return []ai.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: CodeUserMessage},
	}
}

func columnsOf(ds *dataset.Dataset) []string {
	if ds == nil {
		return nil
	}
	return ds.Columns
}
