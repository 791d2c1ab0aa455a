package puffing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_HelloWorld(t *testing.T) {
	tokens, err := Tokenize(`print("Hello, Puffing!");`)
	require.NoError(t, err)

	wantTypes := []TokenType{IDENT, LPAREN, STRING, RPAREN, SEMICOLON, EOF}
	require.Len(t, tokens, len(wantTypes))
	for i, tt := range wantTypes {
		assert.Equal(t, tt, tokens[i].Type, "token %d", i)
	}
	assert.Equal(t, "print", tokens[0].Value)
	assert.Equal(t, "Hello, Puffing!", tokens[2].Value)
	assert.Nil(t, tokens[5].Value)
}

func TestTokenize_Positions(t *testing.T) {
	tokens, err := Tokenize("let x = 1;\n  x = x + 2.5;")
	require.NoError(t, err)

	// second line starts with "x" at column 3
	assert.Equal(t, 2, tokens[5].Line)
	assert.Equal(t, 3, tokens[5].Column)
	assert.Equal(t, 2.5, tokens[9].Value)
}

func TestTokenize_Operators(t *testing.T) {
	tokens, err := Tokenize("== != <= >= < > && || ! = + - * / %")
	require.NoError(t, err)

	want := []TokenType{EQ, NEQ, LTE, GTE, LT, GT, AND, OR, NOT, ASSIGN, PLUS, MINUS, STAR, SLASH, PERCENT, EOF}
	got := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		got[i] = tok.Type
	}
	assert.Equal(t, want, got)
}

func TestTokenize_KeywordsAndComments(t *testing.T) {
	tokens, err := Tokenize("// a comment\nfn while for if else let return break continue true false null letter")
	require.NoError(t, err)

	want := []TokenType{FN, WHILE, FOR, IF, ELSE, LET, RETURN, BREAK, CONTINUE, TRUE, FALSE, NULL, IDENT, EOF}
	got := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		got[i] = tok.Type
	}
	assert.Equal(t, want, got)
}

func TestTokenize_StringEscapes(t *testing.T) {
	tokens, err := Tokenize(`"tab\there \"quoted\" back\\slash\n"`)
	require.NoError(t, err)
	assert.Equal(t, "tab\there \"quoted\" back\\slash\n", tokens[0].Value)
}

func TestTokenize_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
		line    int
		column  int
	}{
		{
			name:    "unterminated string",
			src:     `print("Hello);`,
			wantMsg: "unterminated string literal",
			line:    1,
			column:  7,
		},
		{
			name:    "string broken by newline",
			src:     "let s = \"abc\n\";",
			wantMsg: "unterminated string literal",
			line:    1,
			column:  9,
		},
		{
			name:    "unknown character",
			src:     "let x = 1 @ 2;",
			wantMsg: "unexpected character '@'",
			line:    1,
			column:  11,
		},
		{
			name:    "single ampersand",
			src:     "true & false",
			wantMsg: "unexpected character '&' (did you mean '&&'?)",
			line:    1,
			column:  6,
		},
		{
			name:    "bad escape",
			src:     `"\q"`,
			wantMsg: `invalid escape sequence '\q'`,
			line:    1,
			column:  2,
		},
		{
			name:    "identifier glued to number",
			src:     "12abc",
			wantMsg: "invalid number literal '12a'",
			line:    1,
			column:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.src)
			assert.Nil(t, tokens)

			var perr *Error
			require.True(t, errors.As(err, &perr), "want *Error, got %T", err)
			assert.Equal(t, LexerError, perr.Kind)
			assert.Equal(t, tt.wantMsg, perr.Message)
			assert.Equal(t, tt.line, perr.Line)
			assert.Equal(t, tt.column, perr.Column)
		})
	}
}

func TestTokenTypeString(t *testing.T) {
	assert.Equal(t, "IDENTIFIER", IDENT.String())
	assert.Equal(t, "SEMICOLON", SEMICOLON.String())
	assert.Equal(t, "TokenType(999)", TokenType(999).String())
}
