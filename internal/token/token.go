// Package token defines the lexical tokens produced by the SQL scanner.
package token

import "strconv"

// Token is a lexical token of SQL. The set is only as fine as needed to strip
// comments and whitespace without changing what a query means.
type Token int

const (
	Illegal       Token = iota
	EOF                 // end of input
	LineComment         // -- foo
	BlockComment        // /* foo /* nested */ */
	String              // 'foo', E'foo\n', $$bar$$, $a$baz$a$
	QuotedIdent         // "foo_bar""baz"
	QueryFragment       // everything else, including positional params like $1
	Semicolon           // ;
)

var names = [...]string{
	Illegal:       "Illegal",
	EOF:           "EOF",
	LineComment:   "LineComment",
	BlockComment:  "BlockComment",
	String:        "String",
	QuotedIdent:   "QuotedIdent",
	QueryFragment: "QueryFragment",
	Semicolon:     "Semicolon",
}

func (t Token) String() string {
	if 0 <= t && int(t) < len(names) {
		return names[t]
	}
	return "Token(" + strconv.Itoa(int(t)) + ")"
}

// IsComment reports whether t is a line or block comment.
func (t Token) IsComment() bool {
	return t == LineComment || t == BlockComment
}
