package utils_test

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/tabletalk-cli/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		min  int
	}{
		{"empty", "", 0},
		{"simple", "hello world", 2},
		{"long", strings.Repeat("a", 4000), 900}, // heuristic ~ 1 tok ≈ 4 chars
	}
	for _, c := range cases {
		if got := utils.CountTokens(c.in); got < c.min {
			t.Errorf("%s: got %d < min %d", c.name, got, c.min)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 0},
		{"abcd", 1},
		{strings.Repeat("x", 4001), 1000},
	}
	for _, c := range cases {
		if got := utils.EstimateTokens(c.in); got != c.want {
			t.Errorf("EstimateTokens(len=%d) = %d, want %d", len(c.in), got, c.want)
		}
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	text := strings.Repeat("abcd ", 1000) // ~5000 chars
	trunc := utils.TruncateToTokenLimit(text, 300)
	n := utils.CountTokens(trunc)
	if n > 300 {
		t.Fatalf("tokens=%d exceeds limit", n)
	}
	if len(trunc) == 0 {
		t.Fatalf("expected non-empty truncation")
	}
}

func TestTokenBreakdown(t *testing.T) {
	got := utils.TokenBreakdown(map[string]string{
		"01 system": strings.Repeat("a", 40),
		"02 user":   "hi",
		"03 empty":  "",
	})
	if got["01 system"] != 10 || got["02 user"] != 1 || got["03 empty"] != 0 || len(got) != 3 {
		t.Fatalf("unexpected breakdown: %v", got)
	}
}
