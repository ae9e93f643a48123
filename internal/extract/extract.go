// Package extract recovers an analyzeData function from free-form model output.
package extract

import (
	"regexp"
	"strings"

	"github.com/KaramelBytes/tabletalk-cli/internal/jslex"
	"github.com/KaramelBytes/tabletalk-cli/internal/prompt"
)

// Rule names the heuristic that produced a Result.
type Rule string

const (
	RuleFunction Rule = "function"
	RuleAssigned Rule = "assigned"
	RuleBlock    Rule = "block"
	RuleBody     Rule = "body"
	RuleEmpty    Rule = "empty"
)

// Result is the extracted code and the rule that matched.
type Result struct {
	Code string
	Rule Rule
}

var (
	fenceOpen = regexp.MustCompile("```[A-Za-z0-9_+.-]*[ \t]*\r?\n")
	funcDecl  = regexp.MustCompile(`function\s+` + prompt.FunctionName + `\s*\(\s*[A-Za-z_$][\w$]*\s*\)\s*\{`)
	assigned  = regexp.MustCompile(`(?:const|let|var)\s+` + prompt.FunctionName +
		`\s*=\s*(?:function\s*[\w$]*\s*\(\s*[A-Za-z_$][\w$]*\s*\)|\(\s*[A-Za-z_$][\w$]*\s*\)\s*=>|[A-Za-z_$][\w$]*\s*=>)\s*\{`)
)

// Code returns the extracted function source.
func Code(raw string) string {
	return Analyze(raw).Code
}

// Analyze applies the extraction rules in order; the first match wins.
func Analyze(raw string) Result {
	cleaned := StripFences(raw)
	if loc := funcDecl.FindStringIndex(cleaned); loc != nil {
		if end := matchBrace(cleaned, loc[1]-1); end >= 0 {
			return Result{Code: cleaned[loc[0] : end+1], Rule: RuleFunction}
		}
	}
	if loc := assigned.FindStringIndex(cleaned); loc != nil {
		if end := matchBrace(cleaned, loc[1]-1); end >= 0 {
			return Result{Code: cleaned[loc[0] : end+1], Rule: RuleAssigned}
		}
	}
	if open := strings.IndexByte(cleaned, '{'); open >= 0 {
		if end := matchBrace(cleaned, open); end >= 0 {
			return Result{Code: "function " + prompt.FunctionName + "(" + prompt.ParamName + ") " + cleaned[open:end+1], Rule: RuleBlock}
		}
	}
	if strings.TrimSpace(cleaned) != "" {
		return Result{Code: "function " + prompt.FunctionName + "(" + prompt.ParamName + ") {\n" + cleaned + "\n}", Rule: RuleBody}
	}
	return Result{Code: cleaned, Rule: RuleEmpty}
}

// StripFences removes markdown code fence markers and trims the result.
func StripFences(raw string) string {
	s := fenceOpen.ReplaceAllString(raw, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// matchBrace returns the index of the brace closing the one at open, or -1.
// String, regular expression and comment literals are skipped.
func matchBrace(s string, open int) int {
	if open < 0 || open >= len(s) || s[open] != '{' {
		return -1
	}
	depth := 0
	for i := open; i < len(s); i++ {
		if j := jslex.Skip(s, i); j > i {
			i = j - 1
			continue
		}
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
