package retrieval

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxRanked is the number of chunks Rank returns at most.
const MaxRanked = 3

// Scored is a chunk with its keyword match count.
type Scored struct {
	Chunk
	Score int
}

// Keywords lowercases the question, splits it on whitespace and keeps the
// distinct tokens longer than three characters, in first-seen order.
func Keywords(question string) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range strings.Fields(strings.ToLower(question)) {
		if utf8.RuneCountInString(f) <= 3 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Rank scores each chunk by how many keywords occur in its serialized rows and
// returns the best MaxRanked chunks with a positive score, highest first.
// Ties keep chunk order.
func Rank(question string, chunks []Chunk) []Scored {
	kws := Keywords(question)
	if len(kws) == 0 {
		return nil
	}
	scored := make([]Scored, 0, len(chunks))
	for _, c := range chunks {
		text := strings.ToLower(c.Text())
		s := 0
		for _, k := range kws {
			if strings.Contains(text, k) {
				s++
			}
		}
		if s > 0 {
			scored = append(scored, Scored{Chunk: c, Score: s})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > MaxRanked {
		scored = scored[:MaxRanked]
	}
	return scored
}
