package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLex_Keywords(t *testing.T) {
	tokens, err := Lex("struct fun int bool true false null new delete read print println return if else while")
	require.NoError(t, err)

	want := []TokenType{
		STRUCT, FUN, INT, BOOL, TRUE, FALSE, NULL, NEW, DELETE, READ, PRINT, PRINTLN, RETURN, IF, ELSE, WHILE, EOF,
	}
	require.Len(t, tokens, len(want))
	for i, tt := range want {
		assert.Equal(t, tt, tokens[i].Type, "token %d", i)
	}
}

func TestLex_Operators(t *testing.T) {
	tokens, err := Lex("= == != < <= > >= && || ! + - * /")
	require.NoError(t, err)

	want := []TokenType{
		ASSIGN, EQUALS, NOT_EQ, LESS, LESS_EQ, GREATER, GREATER_EQ, AND_AND, OR_OR, NOT, PLUS, MINUS, STAR, SLASH, EOF,
	}
	require.Len(t, tokens, len(want))
	for i, tt := range want {
		assert.Equal(t, tt, tokens[i].Type, "token %d", i)
	}
}

func TestLex_IdentifiersAndIntegers(t *testing.T) {
	tokens, err := Lex("foo_bar 123 baz99")
	require.NoError(t, err)
	require.Len(t, tokens, 4)
	assert.Equal(t, IDENT, tokens[0].Type)
	assert.Equal(t, "foo_bar", tokens[0].Value)
	assert.Equal(t, INTEGER, tokens[1].Type)
	assert.Equal(t, "123", tokens[1].Value)
	assert.Equal(t, IDENT, tokens[2].Type)
	assert.Equal(t, "baz99", tokens[2].Value)
}

func TestLex_CommentsAreSkipped(t *testing.T) {
	tokens, err := Lex("int x; // a comment\n/* block\ncomment */ int y;")
	require.NoError(t, err)

	var kinds []TokenType
	for _, tok := range tokens {
		kinds = append(kinds, tok.Type)
	}
	assert.Equal(t, []TokenType{INT, IDENT, SEMICOLON, INT, IDENT, SEMICOLON, EOF}, kinds)
}

func TestLex_TracksLineNumbers(t *testing.T) {
	tokens, err := Lex("int x;\nint y;\n")
	require.NoError(t, err)
	require.True(t, len(tokens) >= 6)
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 2, tokens[3].Line)
}

func TestLex_UnexpectedCharacter(t *testing.T) {
	_, err := Lex("int x & 1;")
	assert.Error(t, err)
}
