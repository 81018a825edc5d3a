// Package texts contains small string helpers for SQL fixtures and nested
// diagnostic output.
package texts

import (
	"strings"
	"unicode"
)

// GapWidth is the number of spaces for each nesting level of a diagnostic
// rendering.
const GapWidth = 4

// Gap returns the indentation for the nested diagnostic level. Negative levels
// are treated as 0.
func Gap(level int) string {
	if level <= 0 {
		return ""
	}
	return strings.Repeat(" ", level*GapWidth)
}

// Dedent removes leading whitespace indentation from each line in the text.
//
// A leading or trailing line with only whitespace is discarded. The smallest
// indentation among lines with at least 1 non-space character is removed from
// every line, trailing whitespace is trimmed, and whitespace-only lines become
// empty lines.
func Dedent(text string) string {
	lines := strings.Split(text, "\n")
	if isBlank(lines[0]) {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 && isBlank(lines[n-1]) {
		lines = lines[:n-1]
	}
	if len(lines) == 0 {
		return ""
	}

	indent := -1
	for _, line := range lines {
		if isBlank(line) {
			continue
		}
		n := len(line) - len(strings.TrimLeftFunc(line, unicode.IsSpace))
		if indent == -1 || n < indent {
			indent = n
		}
	}

	sb := &strings.Builder{}
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if isBlank(line) {
			continue
		}
		sb.WriteString(strings.TrimRightFunc(line[indent:], unicode.IsSpace))
	}
	return sb.String()
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
