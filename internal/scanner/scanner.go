// Package scanner splits Postgres SQL into comments, string constants, quoted
// identifiers, semicolons, and the query fragments between them. It knows
// just enough of the lexical grammar to find where comments and constants
// start and end.
//
// https://www.postgresql.org/docs/13/sql-syntax-lexical.html
package scanner

import (
	"bytes"
	"fmt"
	"github.com/jschaf/pgquery/internal/token"
	gotok "go/token"
	"unicode"
	"unicode/utf8"
)

const (
	eof = -1
	bom = 0xFEFF // byte order mark, only permitted as very first character
)

// ErrorHandler is called with the position of the offending token and an
// error message for each syntax error.
type ErrorHandler func(pos gotok.Position, msg string)

// Scanner tokenizes SQL source. The zero value is not usable; call Init
// first. A Scanner may be reused by calling Init again.
type Scanner struct {
	file *gotok.File
	src  []byte
	err  ErrorHandler

	ch   rune // current character; eof at the end of src
	offs int  // offset of ch
	next int  // offset after ch
	prev rune // character before ch

	// ErrorCount is the number of errors reported since Init.
	ErrorCount int
}

// Init resets s to scan src from the beginning. Line information is added to
// file as lines are scanned. Init panics if the file size doesn't match src.
func (s *Scanner) Init(file *gotok.File, src []byte, err ErrorHandler) {
	if file.Size() != len(src) {
		panic(fmt.Sprintf("file size (%d) does not match src len (%d)", file.Size(), len(src)))
	}
	*s = Scanner{file: file, src: src, err: err, ch: ' '}
	s.read()
	if s.ch == bom {
		s.read()
	}
}

// read advances to the next character.
func (s *Scanner) read() {
	if s.ch == '\n' {
		s.file.AddLine(s.next)
	}
	s.prev = s.ch
	if s.next >= len(s.src) {
		s.offs = len(s.src)
		s.ch = eof
		return
	}
	s.offs = s.next
	r, w := rune(s.src[s.next]), 1
	switch {
	case r == 0:
		s.report(s.offs, "illegal character NUL")
	case r >= utf8.RuneSelf:
		r, w = utf8.DecodeRune(s.src[s.next:])
		if r == utf8.RuneError && w == 1 {
			s.report(s.offs, "illegal UTF-8 encoding")
		} else if r == bom && s.offs > 0 {
			s.report(s.offs, "illegal byte order mark")
		}
	}
	s.next += w
	s.ch = r
}

// lookahead returns the byte after the current character, or 0 at the end.
func (s *Scanner) lookahead() byte {
	if s.next < len(s.src) {
		return s.src[s.next]
	}
	return 0
}

// skipTo reads until offs or the end of src.
func (s *Scanner) skipTo(offs int) {
	for s.ch != eof && s.offs < offs {
		s.read()
	}
}

func (s *Scanner) report(offs int, format string, args ...interface{}) {
	if s.err != nil {
		s.err(s.file.Position(s.file.Pos(offs)), fmt.Sprintf(format, args...))
	}
	s.ErrorCount++
}

func isSpace(ch rune) bool   { return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' }
func isDecimal(ch rune) bool { return '0' <= ch && ch <= '9' }

func isLetter(ch rune) bool {
	lower := ('a' - 'A') | ch
	return 'a' <= lower && lower <= 'z' || ch == '_' || ch >= utf8.RuneSelf && unicode.IsLetter(ch)
}

// isIdentPart reports whether ch may continue an unquoted identifier. Postgres
// allows dollar signs after the first character.
func isIdentPart(ch rune) bool {
	return isLetter(ch) || isDecimal(ch) || ch == '$'
}

// Scan returns the next token, its position, and its source text. The end of
// src is token.EOF. Whitespace between tokens is skipped but whitespace
// inside a query fragment is kept.
//
// For token.Illegal, lit is the offending text and the error handler has been
// called. Semicolon and EOF have an empty lit.
func (s *Scanner) Scan() (pos gotok.Pos, tok token.Token, lit string) {
	for isSpace(s.ch) {
		s.read()
	}
	start := s.offs
	pos = s.file.Pos(start)
	switch {
	case s.ch == eof:
		return pos, token.EOF, ""
	case s.ch == ';':
		s.read()
		return pos, token.Semicolon, ""
	case s.ch == '-' && s.lookahead() == '-':
		tok = s.lineComment()
	case s.ch == '/' && s.lookahead() == '*':
		tok = s.blockComment()
	case s.ch == '\'':
		tok = s.quoted(token.String, "single-quote string literal", s.escapeStringAt(start))
	case s.ch == '"':
		tok = s.quoted(token.QuotedIdent, "double-quote identifier", false)
	case s.ch == '$' && !isDecimal(rune(s.lookahead())):
		tok = s.dollarQuoted()
	default:
		tok = s.fragment()
	}
	return pos, tok, string(s.src[start:s.offs])
}

func (s *Scanner) lineComment() token.Token {
	for s.ch != '\n' && s.ch != eof {
		s.read()
	}
	return token.LineComment
}

// blockComment scans a block comment. Block comments nest.
func (s *Scanner) blockComment() token.Token {
	start := s.offs
	s.read() // '/'
	s.read() // '*'
	for depth := 1; depth > 0; {
		switch {
		case s.ch == eof:
			s.report(start, "unterminated block comment")
			return token.Illegal
		case s.ch == '*' && s.lookahead() == '/':
			depth--
		case s.ch == '/' && s.lookahead() == '*':
			depth++
		default:
			s.read()
			continue
		}
		s.read()
		s.read()
	}
	return token.BlockComment
}

// escapeStringAt reports whether the single quote at offs opens an escape
// string constant like E'it\'s'. The E must not end a longer identifier.
func (s *Scanner) escapeStringAt(offs int) bool {
	if offs < 1 || s.src[offs-1]|('a'-'A') != 'e' {
		return false
	}
	return offs < 2 || !isIdentPart(rune(s.src[offs-2]))
}

// quoted scans text delimited by the current character. A doubled delimiter
// is a literal delimiter. If backslash is set, a backslash escapes the next
// character.
func (s *Scanner) quoted(tok token.Token, desc string, backslash bool) token.Token {
	start, quote := s.offs, s.ch
	s.read()
	for s.ch != eof {
		switch {
		case backslash && s.ch == '\\':
			s.read()
			if s.ch != eof {
				s.read()
			}
		case s.ch == quote && rune(s.lookahead()) == quote:
			s.read()
			s.read()
		case s.ch == quote:
			s.read()
			return tok
		default:
			s.read()
		}
	}
	s.report(start, "unterminated %s: %s", desc, s.src[start:s.offs])
	return token.Illegal
}

// dollarQuoted scans a dollar-quoted string like $$a$$ or $tag$a$tag$.
func (s *Scanner) dollarQuoted() token.Token {
	start := s.offs
	s.read() // opening '$' of the tag
	for s.ch != '$' {
		if s.ch == eof {
			s.report(start, "unterminated dollar-quoted string: %s", s.src[start:s.offs])
			return token.Illegal
		}
		if !isLetter(s.ch) && !isDecimal(s.ch) {
			s.report(start, "invalid dollar quoted tag: %s", s.src[start:s.offs])
			return token.Illegal
		}
		s.read()
	}
	s.read() // closing '$' of the tag
	tag := s.src[start:s.offs]
	idx := bytes.Index(s.src[s.offs:], tag)
	if idx < 0 {
		s.report(start, "no closing delimiter found for dollar quoted string: %s", tag)
		s.skipTo(len(s.src))
		return token.Illegal
	}
	s.skipTo(s.offs + idx + len(tag))
	return token.String
}

// fragment scans query text up to the start of the next non-fragment token.
// The first character is always consumed.
func (s *Scanner) fragment() token.Token {
	s.read()
	for !s.atTokenStart() {
		s.read()
	}
	return token.QueryFragment
}

// atTokenStart reports whether the current character ends a query fragment.
// A dollar sign inside an identifier, like foo$bar, or starting a positional
// parameter, like $1, belongs to the fragment.
func (s *Scanner) atTokenStart() bool {
	switch s.ch {
	case eof, ';', '\'', '"':
		return true
	case '-':
		return s.lookahead() == '-'
	case '/':
		return s.lookahead() == '*'
	case '$':
		return !isIdentPart(s.prev) && !isDecimal(rune(s.lookahead()))
	}
	return false
}
