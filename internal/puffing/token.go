// Package puffing implements the Puffing scripting language: a lexer that turns
// source text into tokens, a recursive-descent parser that builds an AST, and a
// tree-walking interpreter that executes it.
//
// The interpreter never touches the process's real stdout. Program output goes
// to the io.Writer handed to NewInterpreter, so every run owns its own output
// destination and concurrent runs cannot see each other's writes.
//
// PIPELINE:
//
//	tokens, err := puffing.Tokenize(source)     // lexical analysis
//	prog, err := puffing.Parse(tokens)          // syntax analysis
//	err = puffing.NewInterpreter(w, inputs).Run(ctx, prog)
//
// Every fault in the user's program is reported as a *Error carrying one of a
// closed set of Kinds (LexerError, SyntaxError, NameError, ...).
package puffing

import "fmt"

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	EOF TokenType = iota

	// Literals and names
	NUMBER
	STRING
	IDENT

	// Keywords
	LET
	FN
	RETURN
	IF
	ELSE
	WHILE
	FOR
	BREAK
	CONTINUE
	TRUE
	FALSE
	NULL

	// Operators
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	ASSIGN
	EQ
	NEQ
	LT
	LTE
	GT
	GTE
	AND
	OR
	NOT

	// Delimiters
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	LBRACKET
	RBRACKET
	COMMA
	SEMICOLON
)

var tokenNames = map[TokenType]string{
	EOF:       "EOF",
	NUMBER:    "NUMBER",
	STRING:    "STRING",
	IDENT:     "IDENTIFIER",
	LET:       "LET",
	FN:        "FN",
	RETURN:    "RETURN",
	IF:        "IF",
	ELSE:      "ELSE",
	WHILE:     "WHILE",
	FOR:       "FOR",
	BREAK:     "BREAK",
	CONTINUE:  "CONTINUE",
	TRUE:      "TRUE",
	FALSE:     "FALSE",
	NULL:      "NULL",
	PLUS:      "PLUS",
	MINUS:     "MINUS",
	STAR:      "STAR",
	SLASH:     "SLASH",
	PERCENT:   "PERCENT",
	ASSIGN:    "ASSIGN",
	EQ:        "EQ",
	NEQ:       "NEQ",
	LT:        "LT",
	LTE:       "LTE",
	GT:        "GT",
	GTE:       "GTE",
	AND:       "AND",
	OR:        "OR",
	NOT:       "NOT",
	LPAREN:    "LPAREN",
	RPAREN:    "RPAREN",
	LBRACE:    "LBRACE",
	RBRACE:    "RBRACE",
	LBRACKET:  "LBRACKET",
	RBRACKET:  "RBRACKET",
	COMMA:     "COMMA",
	SEMICOLON: "SEMICOLON",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

var keywords = map[string]TokenType{
	"let":      LET,
	"fn":       FN,
	"return":   RETURN,
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"for":      FOR,
	"break":    BREAK,
	"continue": CONTINUE,
	"true":     TRUE,
	"false":    FALSE,
	"null":     NULL,
}

// Token is a single lexical unit.
//
// Value holds the decoded literal: float64 for NUMBER, the unescaped text for
// STRING, the name for IDENT, the lexeme for keywords and punctuation, and nil
// for EOF.
type Token struct {
	Type   TokenType
	Lexeme string
	Value  any
	Line   int
	Column int
}

// describe renders the token for use in syntax error messages.
func (t Token) describe() string {
	switch t.Type {
	case EOF:
		return "end of input"
	case STRING:
		return fmt.Sprintf("string %q", t.Value)
	case NUMBER:
		return fmt.Sprintf("number %s", t.Lexeme)
	case IDENT:
		return fmt.Sprintf("identifier '%s'", t.Lexeme)
	default:
		return fmt.Sprintf("'%s'", t.Lexeme)
	}
}
