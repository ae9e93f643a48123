package utils

// Token estimation heuristics. Nothing here matches a real tokenizer; the
// numbers only need to be stable and roughly proportional.

// CountTokens estimates the number of tokens in text at ~4 characters per
// token. Non-empty text counts as at least one token.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// EstimateTokens is the byte-length heuristic used for chunk sizing:
// len(s)/4 with integer division, so short strings estimate to zero.
func EstimateTokens(s string) int {
	return len(s) / 4
}

// TruncateToTokenLimit naively truncates text to roughly fit within a token limit.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	return string(runes[:charLimit])
}

// TokenBreakdown returns a simple breakdown map of labeled sections to token counts.
func TokenBreakdown(sections map[string]string) map[string]int {
	out := make(map[string]int, len(sections))
	for k, v := range sections {
		out[k] = CountTokens(v)
	}
	return out
}
