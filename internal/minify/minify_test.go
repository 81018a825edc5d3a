package minify

import (
	"errors"
	"testing"

	"github.com/jschaf/pgquery/internal/texts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinify(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"empty", "", ""},
		{"only comment", "-- nothing here", ""},
		{"simple", "SELECT 1", "SELECT 1"},
		{"surrounding whitespace", "\n\n  SELECT 1  \n\t", "SELECT 1"},
		{
			"multi-line with comments",
			texts.Dedent(`
				-- find a user
				SELECT *
				  FROM users   -- table
				 WHERE id = $1; -- trailing
			`),
			"SELECT * FROM users WHERE id = $1;",
		},
		{"inline block comment", "SELECT /* inline */ 1", "SELECT 1"},
		{"block comment separates tokens", "SELECT a/*x*/b", "SELECT a b"},
		{"nested block comment", "SELECT /* a /* b */ c */ 1", "SELECT 1"},
		{"space before semicolon", "SELECT 1 ;", "SELECT 1;"},
		{"string and ident kept", "SELECT 'a  b', \"Col  X\"\nFROM t", `SELECT 'a  b', "Col  X" FROM t`},
		{"multi-line string", "SELECT 'line one\n    line two'", `SELECT E'line one\nline two'`},
		{"multi-line string escapes backslash", "SELECT 'C:\\dir\n x'", `SELECT E'C:\\dir\nx'`},
		{"multi-line escape string", "SELECT E'a\\tb\n  c'", `SELECT E'a\tb\nc'`},
		{"dollar quoted kept verbatim", "SELECT $$a\n  b$$", "SELECT $$a\n  b$$"},
		{"positional params", "SELECT $1::int,\n  $2::text", "SELECT $1::int, $2::text"},
		{"dollar identifiers", "SELECT 1 AS foo$bar", "SELECT 1 AS foo$bar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Minify(tt.sql, "query.sql")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMinify_Error(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantMsg string
		line    int
		col     int
	}{
		{"unterminated string", "SELECT 'abc", "unterminated single-quote string literal: 'abc", 1, 8},
		{"unterminated ident", "SELECT\n  \"abc", `unterminated double-quote identifier: "abc`, 2, 3},
		{"unterminated comment", "SELECT 1 /* foo", "unterminated block comment", 1, 10},
		{"multi-line ident", "SELECT \"a\nb\"", `multi-line quoted identifiers are not supported: "a`, 1, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Minify(tt.sql, "query.sql")
			require.Error(t, err)
			var parseErr *Error
			require.True(t, errors.As(err, &parseErr), "want *minify.Error; got %T", err)
			assert.Equal(t, tt.wantMsg, parseErr.Msg)
			assert.Equal(t, "query.sql", parseErr.File)
			assert.Equal(t, tt.line, parseErr.Pos.Line, "line")
			assert.Equal(t, tt.col, parseErr.Pos.Column, "column")
		})
	}
}

func TestError_Inspect(t *testing.T) {
	_, err := Minify("SELECT 'abc", "query.sql")
	require.Error(t, err)
	assert.Equal(t, "parse sql query.sql:1:8: unterminated single-quote string literal: 'abc", err.Error())

	var parseErr *Error
	require.True(t, errors.As(err, &parseErr))
	want := "SQLParseError {\n" +
		"        error: \"unterminated single-quote string literal: 'abc\"\n" +
		"        file: \"query.sql\"\n" +
		"        position: {line: 1, col: 8}\n" +
		"    }"
	assert.Equal(t, want, parseErr.Inspect(1))
}
