package sandbox

import (
	"regexp"
	"strings"

	"github.com/KaramelBytes/tabletalk-cli/internal/jslex"
)

type deniedPattern struct {
	name string
	re   *regexp.Regexp
	repl string
}

// Patterns capture one leading character so that member accesses such as
// row.process are left alone.
const lead = `(^|[^\w$.])`

var denyList = []deniedPattern{
	deny("require", lead+`require\s*\(`, `(`),
	deny("import", lead+`import\s*\(`, `(`),
	deny("process", lead+`process\s*\.`, `.`),
	deny("child_process", lead+`child_process\s*\.`, `.`),
	deny("Function", lead+`(?:new\s+)?Function\s*\(`, `(`),
	deny("eval", lead+`eval\s*\(`, `(`),
	deny("fs", lead+`fs\s*\.`, `.`),
	deny("globalThis", lead+`globalThis\s*([.\[])`, ``),
	deny("Deno", lead+`Deno\s*\.`, `.`),
	deny("XMLHttpRequest", lead+`(?:new\s+)?XMLHttpRequest\s*\(`, `(`),
	deny("fetch", lead+`fetch\s*\(`, `(`),
	deny("setTimeout", lead+`setTimeout\s*\(`, `(`),
	deny("setInterval", lead+`setInterval\s*\(`, `(`),
}

func deny(name, pattern, tail string) deniedPattern {
	if tail == "" {
		tail = "${2}"
	}
	return deniedPattern{
		name: name,
		re:   regexp.MustCompile(pattern),
		repl: `${1}` + deniedFunc + `("` + name + `")` + tail,
	}
}

// Rewrite replaces call and member-access sites of denied capabilities with
// calls to a guard that throws "<name> is not allowed". String, regular
// expression and comment literals are left untouched. The second result lists
// the names that were rewritten. Matching is textual and best effort.
func Rewrite(code string) (string, []string) {
	hit := make(map[string]bool)
	var sb strings.Builder
	start := 0
	for i := 0; i < len(code); i++ {
		j := jslex.Skip(code, i)
		if j == i {
			continue
		}
		sb.WriteString(rewriteSegment(code[start:i], hit))
		sb.WriteString(code[i:j])
		start = j
		i = j - 1
	}
	sb.WriteString(rewriteSegment(code[start:], hit))

	var hits []string
	for _, d := range denyList {
		if hit[d.name] {
			hits = append(hits, d.name)
		}
	}
	return sb.String(), hits
}

func rewriteSegment(seg string, hit map[string]bool) string {
	for _, d := range denyList {
		if !d.re.MatchString(seg) {
			continue
		}
		hit[d.name] = true
		seg = d.re.ReplaceAllString(seg, d.repl)
	}
	return seg
}
