// Package jslex recognizes JavaScript literals and comments so textual passes
// over generated code can step over them.
package jslex

import "strings"

// Skip returns the index just past the string, template, comment or regular
// expression literal starting at s[i], or i when none starts there.
// Unterminated quotes and line comments stop at the line break; unterminated
// templates and block comments run to len(s).
func Skip(s string, i int) int {
	if i < 0 || i >= len(s) {
		return i
	}
	switch s[i] {
	case '"', '\'', '`':
		return skipQuoted(s, i)
	case '/':
		if i+1 < len(s) && s[i+1] == '/' {
			if nl := strings.IndexByte(s[i:], '\n'); nl >= 0 {
				return i + nl
			}
			return len(s)
		}
		if i+1 < len(s) && s[i+1] == '*' {
			if end := strings.Index(s[i+2:], "*/"); end >= 0 {
				return i + 2 + end + 2
			}
			return len(s)
		}
		if regexAllowed(s, i) {
			return skipRegex(s, i)
		}
	}
	return i
}

func skipQuoted(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j + 1
		case '\n':
			if q != '`' {
				return j
			}
		}
	}
	return len(s)
}

// skipRegex returns the index past /body/flags, or i when the slash does not
// open a literal on this line.
func skipRegex(s string, i int) int {
	inClass := false
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '\n':
			return i
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '/':
			if inClass {
				continue
			}
			if j == i+1 {
				return i
			}
			j++
			for j < len(s) && isIdent(s[j]) {
				j++
			}
			return j
		}
	}
	return i
}

var regexKeywords = map[string]bool{
	"return": true, "typeof": true, "case": true, "do": true, "else": true,
	"in": true, "of": true, "void": true, "yield": true, "await": true,
	"delete": true, "instanceof": true, "new": true, "throw": true,
}

// regexAllowed reports whether a slash at s[i] sits where an expression may
// start, which is the only place a regular expression literal can appear.
func regexAllowed(s string, i int) bool {
	j := i - 1
	for j >= 0 && (s[j] == ' ' || s[j] == '\t' || s[j] == '\r' || s[j] == '\n') {
		j--
	}
	if j < 0 {
		return true
	}
	c := s[j]
	if strings.IndexByte("(,=:[!&|?{};+-*%<>~^", c) >= 0 {
		return true
	}
	if !isIdent(c) {
		return false
	}
	k := j
	for k >= 0 && isIdent(s[k]) {
		k--
	}
	return regexKeywords[s[k+1:j+1]]
}

func isIdent(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
