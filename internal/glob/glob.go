// Package glob implements shell-style wildcard matching for repository paths.
//
// Matching is deliberately NOT path-aware: `*` matches any run of characters
// including `/` and leading dots, exactly like shell fnmatch without
// FNM_PATHNAME. Allow-lists and protected-path lists throughout the system
// rely on these semantics; a pattern like `**/*lock*` therefore matches
// `src/clock.ts` because "clock" contains "lock". Callers that want to scope
// a pattern to one directory must write `dir/**` rather than `dir/*`.
package glob

import (
	"regexp"
	"strings"
	"sync"
)

// compiled caches translated patterns. Patterns come from small, static
// config lists, so the cache is never evicted.
var (
	cacheMu  sync.Mutex
	compiled = map[string]*regexp.Regexp{}
)

// Match reports whether path matches the shell-style pattern.
// Supported metacharacters: `*` (any run, crossing `/`), `?` (any single
// character), and `[...]` / `[!...]` character classes. Matching is
// case-sensitive. A malformed class is treated as a literal `[`.
func Match(pattern, path string) bool {
	re := translate(pattern)
	return re.MatchString(path)
}

// MatchAny reports whether path matches at least one of the patterns.
// An empty pattern list never matches.
func MatchAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if Match(p, path) {
			return true
		}
	}
	return false
}

// translate converts a shell pattern into an anchored regular expression.
func translate(pattern string) *regexp.Regexp {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if re, ok := compiled[pattern]; ok {
		return re
	}

	var sb strings.Builder
	sb.WriteString(`\A(?s:`)

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '*':
			sb.WriteString(`.*`)
		case '?':
			sb.WriteString(`.`)
		case '[':
			j := i + 1
			if j < len(runes) && (runes[j] == '!' || runes[j] == '^') {
				j++
			}
			if j < len(runes) && runes[j] == ']' {
				j++
			}
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j >= len(runes) {
				// Unterminated class: literal bracket.
				sb.WriteString(`\[`)
				continue
			}
			body := string(runes[i+1 : j])
			i = j
			if strings.HasPrefix(body, "!") {
				body = "^" + body[1:]
			}
			sb.WriteString("[")
			sb.WriteString(escapeClass(body))
			sb.WriteString("]")
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString(`)\z`)

	re := regexp.MustCompile(sb.String())
	compiled[pattern] = re
	return re
}

// escapeClass escapes characters that are special inside a regexp character
// class while preserving ranges and a leading negation.
func escapeClass(body string) string {
	var sb strings.Builder
	for i, c := range body {
		switch c {
		case '\\':
			sb.WriteString(`\\`)
		case '^':
			if i == 0 {
				sb.WriteRune(c)
			} else {
				sb.WriteString(`\^`)
			}
		case ']':
			sb.WriteString(`\]`)
		default:
			sb.WriteRune(c)
		}
	}
	return sb.String()
}
