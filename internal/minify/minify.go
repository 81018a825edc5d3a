// Package minify flattens SQL into a single line for use as prepared query
// text. It removes comments, collapses whitespace outside of string constants,
// and rewrites multi-line string constants into single-line escape strings.
package minify

import (
	"fmt"
	"github.com/jschaf/pgquery/internal/scanner"
	"github.com/jschaf/pgquery/internal/texts"
	"github.com/jschaf/pgquery/internal/token"
	gotok "go/token"
	"strconv"
	"strings"
)

// Error is a failure to parse SQL while minifying it. Pos identifies the
// offending location in the file.
type Error struct {
	File string
	Pos  gotok.Position
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse sql %s: %s", e.Pos, e.Msg)
}

// Inspect renders the error as a nested diagnostic at the given level.
func (e *Error) Inspect(level int) string {
	gap0, gap1 := texts.Gap(level), texts.Gap(level+1)
	lines := []string{
		"SQLParseError {",
		gap1 + "error: " + strconv.Quote(e.Msg),
		gap1 + "file: " + strconv.Quote(e.File),
		gap1 + "position: " + fmt.Sprintf("{line: %d, col: %d}", e.Pos.Line, e.Pos.Column),
		gap0 + "}",
	}
	return strings.Join(lines, "\n")
}

// Minify returns sql as a single line with comments removed. file is only
// used for error positions.
func Minify(sql, file string) (string, error) {
	src := []byte(sql)
	fset := gotok.NewFileSet()
	f := fset.AddFile(file, -1, len(src))

	var firstErr *Error
	eh := func(pos gotok.Position, msg string) {
		if firstErr == nil {
			firstErr = &Error{File: file, Pos: pos, Msg: msg}
		}
	}
	var s scanner.Scanner
	s.Init(f, src, eh)

	m := &minifier{src: src}
	for {
		pos, tok, lit := s.Scan()
		if firstErr != nil {
			return "", firstErr
		}
		if tok == token.EOF {
			break
		}
		offs := f.Offset(pos)
		if offs > m.end {
			m.gap = true
		}
		if tok.IsComment() {
			m.gap = true
			m.end = offs + len(lit)
			continue
		}
		switch tok {
		case token.QueryFragment:
			m.writeFragment(lit)
		case token.Semicolon:
			m.gap = false // never space before a semicolon
			m.write(";")
			lit = ";"
		case token.QuotedIdent:
			if strings.ContainsRune(lit, '\n') {
				return "", &Error{
					File: file,
					Pos:  f.Position(pos),
					Msg:  "multi-line quoted identifiers are not supported: " + firstLine(lit),
				}
			}
			m.write(lit)
		case token.String:
			m.writeString(offs, lit)
		default:
			return "", &Error{File: file, Pos: f.Position(pos), Msg: "unexpected " + tok.String() + ": " + lit}
		}
		m.end = offs + len(lit)
	}
	return m.sb.String(), nil
}

type minifier struct {
	src []byte
	sb  strings.Builder
	end int  // offset after the last consumed token
	gap bool // whitespace or a comment separates the next token from the last
}

// write appends text, separated by a single space if the source had a gap.
func (m *minifier) write(text string) {
	if m.gap && m.sb.Len() > 0 {
		m.sb.WriteByte(' ')
	}
	m.gap = false
	m.sb.WriteString(text)
}

func (m *minifier) writeFragment(frag string) {
	fields := strings.Fields(frag)
	if len(fields) == 0 {
		m.gap = true
		return
	}
	m.write(strings.Join(fields, " "))
	last := frag[len(frag)-1]
	m.gap = last == ' ' || last == '\t' || last == '\n' || last == '\r' || last == '\f'
}

// writeString writes a string constant. Dollar-quoted and single-line strings
// are copied verbatim. Multi-line single-quoted strings become escape strings
// with each line trimmed and joined by \n.
func (m *minifier) writeString(offs int, lit string) {
	if lit[0] != '\'' || !strings.ContainsRune(lit, '\n') {
		m.write(lit)
		return
	}
	escaped := isEscapeString(m.src, offs)
	body := lit[1 : len(lit)-1]
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if !escaped {
			line = strings.ReplaceAll(line, `\`, `\\`)
		}
		lines[i] = line
	}
	joined := "'" + strings.Join(lines, `\n`) + "'"
	if escaped {
		// The E prefix was already written as part of the preceding fragment.
		m.gap = false
		m.sb.WriteString(joined)
		return
	}
	m.write("E" + joined)
}

// isEscapeString reports whether the quote at offs is preceded by an E prefix
// that is not the tail of an identifier.
func isEscapeString(src []byte, offs int) bool {
	if offs < 1 || (src[offs-1] != 'e' && src[offs-1] != 'E') {
		return false
	}
	if offs < 2 {
		return true
	}
	b := src[offs-2]
	isIdent := b == '_' || b == '$' || '0' <= b && b <= '9' || 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
	return !isIdent
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
