package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToken_String(t *testing.T) {
	assert.Equal(t, "QueryFragment", QueryFragment.String())
	assert.Equal(t, "Semicolon", Semicolon.String())
	assert.Equal(t, "Token(42)", Token(42).String())
}

func TestToken_IsComment(t *testing.T) {
	for _, tok := range []Token{Illegal, EOF, String, QuotedIdent, QueryFragment, Semicolon} {
		assert.False(t, tok.IsComment(), tok.String())
	}
	assert.True(t, LineComment.IsComment())
	assert.True(t, BlockComment.IsComment())
}
