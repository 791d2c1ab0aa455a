package puffing

import (
	"strconv"
	"strings"
	"unicode"
)

// Lexer converts Puffing source text into a token stream.
type Lexer struct {
	src    []rune
	pos    int
	line   int
	column int
}

// NewLexer creates a Lexer positioned at the start of src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1, column: 1}
}

// Tokenize is shorthand for NewLexer(src).Tokenize().
func Tokenize(src string) ([]Token, error) {
	return NewLexer(src).Tokenize()
}

// Tokenize scans the whole input. The returned slice always ends with an EOF
// token. The first lexical problem aborts scanning with a LexerError.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(offset int) rune {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *Lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return r
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.src)
}

func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEnd() {
		r := l.peek()
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '/' && l.peekAt(1) == '/':
			for !l.atEnd() && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) next() (Token, error) {
	l.skipWhitespaceAndComments()

	start := Position{Line: l.line, Column: l.column}
	if l.atEnd() {
		return Token{Type: EOF, Line: start.Line, Column: start.Column}, nil
	}

	r := l.peek()
	switch {
	case unicode.IsDigit(r):
		return l.numberLit(start)
	case r == '"':
		return l.stringLit(start)
	case r == '_' || unicode.IsLetter(r):
		return l.identifier(start), nil
	}

	l.advance()
	simple := func(t TokenType, lexeme string) (Token, error) {
		return Token{Type: t, Lexeme: lexeme, Value: lexeme, Line: start.Line, Column: start.Column}, nil
	}
	// two-character operators first
	twoChar := func(second rune, long TokenType, longLexeme string, short TokenType, shortLexeme string) (Token, error) {
		if l.peek() == second {
			l.advance()
			return simple(long, longLexeme)
		}
		return simple(short, shortLexeme)
	}

	switch r {
	case '+':
		return simple(PLUS, "+")
	case '-':
		return simple(MINUS, "-")
	case '*':
		return simple(STAR, "*")
	case '/':
		return simple(SLASH, "/")
	case '%':
		return simple(PERCENT, "%")
	case '(':
		return simple(LPAREN, "(")
	case ')':
		return simple(RPAREN, ")")
	case '{':
		return simple(LBRACE, "{")
	case '}':
		return simple(RBRACE, "}")
	case '[':
		return simple(LBRACKET, "[")
	case ']':
		return simple(RBRACKET, "]")
	case ',':
		return simple(COMMA, ",")
	case ';':
		return simple(SEMICOLON, ";")
	case '=':
		return twoChar('=', EQ, "==", ASSIGN, "=")
	case '!':
		return twoChar('=', NEQ, "!=", NOT, "!")
	case '<':
		return twoChar('=', LTE, "<=", LT, "<")
	case '>':
		return twoChar('=', GTE, ">=", GT, ">")
	case '&':
		if l.peek() == '&' {
			l.advance()
			return simple(AND, "&&")
		}
		return Token{}, newError(LexerError, start, "unexpected character '&' (did you mean '&&'?)")
	case '|':
		if l.peek() == '|' {
			l.advance()
			return simple(OR, "||")
		}
		return Token{}, newError(LexerError, start, "unexpected character '|' (did you mean '||'?)")
	}

	return Token{}, newError(LexerError, start, "unexpected character %q", r)
}

func (l *Lexer) numberLit(start Position) (Token, error) {
	begin := l.pos
	for unicode.IsDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && unicode.IsDigit(l.peekAt(1)) {
		l.advance()
		for unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}
	lexeme := string(l.src[begin:l.pos])
	if r := l.peek(); r == '_' || unicode.IsLetter(r) {
		return Token{}, newError(LexerError, start, "invalid number literal '%s%c'", lexeme, r)
	}

	v, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		return Token{}, newError(LexerError, start, "invalid number literal '%s'", lexeme)
	}
	return Token{Type: NUMBER, Lexeme: lexeme, Value: v, Line: start.Line, Column: start.Column}, nil
}

func (l *Lexer) stringLit(start Position) (Token, error) {
	begin := l.pos
	l.advance() // opening quote

	var b strings.Builder
	for {
		if l.atEnd() || l.peek() == '\n' {
			return Token{}, newError(LexerError, start, "unterminated string literal")
		}
		r := l.advance()
		if r == '"' {
			break
		}
		if r != '\\' {
			b.WriteRune(r)
			continue
		}

		if l.atEnd() {
			return Token{}, newError(LexerError, start, "unterminated string literal")
		}
		escPos := Position{Line: l.line, Column: l.column - 1}
		switch esc := l.advance(); esc {
		case 'n':
			b.WriteRune('\n')
		case 't':
			b.WriteRune('\t')
		case 'r':
			b.WriteRune('\r')
		case '"':
			b.WriteRune('"')
		case '\\':
			b.WriteRune('\\')
		case '0':
			b.WriteRune(0)
		default:
			return Token{}, newError(LexerError, escPos, "invalid escape sequence '\\%c'", esc)
		}
	}

	return Token{
		Type:   STRING,
		Lexeme: string(l.src[begin:l.pos]),
		Value:  b.String(),
		Line:   start.Line,
		Column: start.Column,
	}, nil
}

func (l *Lexer) identifier(start Position) Token {
	begin := l.pos
	for r := l.peek(); r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r); r = l.peek() {
		l.advance()
	}
	lexeme := string(l.src[begin:l.pos])

	if kw, ok := keywords[lexeme]; ok {
		return Token{Type: kw, Lexeme: lexeme, Value: lexeme, Line: start.Line, Column: start.Column}
	}
	return Token{Type: IDENT, Lexeme: lexeme, Value: lexeme, Line: start.Line, Column: start.Column}
}
