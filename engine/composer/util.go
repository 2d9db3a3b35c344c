package composer

import (
	"os"
	"regexp"
	"strings"
)

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// stripJSON5Comments implements the tolerant JSON5 preprocessor named in
// SPEC_FULL.md §4.1: strip // and /* */ comments and trailing commas, then
// decode the result as YAML (a superset of JSON). No third-party JSON5
// parser exists anywhere in the example pack this module was grounded on
// (see DESIGN.md), so this is a deliberate, documented stdlib fallback.
func stripJSON5Comments(src []byte) []byte {
	s := string(src)
	s = blockCommentRe.ReplaceAllString(s, "")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	s = strings.Join(lines, "\n")
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	return []byte(s)
}

var (
	blockCommentRe  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
)

// stripLineComment removes a trailing // comment from a single line,
// respecting double-quoted strings so a "//" inside a value survives.
func stripLineComment(line string) string {
	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '/' && i+1 < len(line) && line[i+1] == '/':
			return line[:i]
		}
	}
	return line
}
