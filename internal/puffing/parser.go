package puffing

// Parser builds a Program from a token stream using recursive descent.
//
// GRAMMAR (informal):
//
//	program    = { stmt } EOF
//	stmt       = let | fn | if | while | for | break | continue | return | block | simple ";"
//	simple     = expr [ "=" expr ]
//	expr       = or
//	or         = and { "||" and }
//	and        = equality { "&&" equality }
//	equality   = comparison { ("==" | "!=") comparison }
//	comparison = term { ("<" | "<=" | ">" | ">=") term }
//	term       = factor { ("+" | "-") factor }
//	factor     = unary { ("*" | "/" | "%") unary }
//	unary      = ("!" | "-") unary | postfix
//	postfix    = primary { "(" args ")" | "[" expr "]" }
//	primary    = NUMBER | STRING | true | false | null | IDENT | "(" expr ")" | "[" args "]" | fn-literal
type Parser struct {
	tokens    []Token
	pos       int
	loopDepth int
	fnDepth   int
}

// NewParser creates a Parser over tokens. A missing trailing EOF is tolerated.
func NewParser(tokens []Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != EOF {
		line, col := 1, 1
		if n := len(tokens); n > 0 {
			line, col = tokens[n-1].Line, tokens[n-1].Column+len([]rune(tokens[n-1].Lexeme))
		}
		tokens = append(tokens[:len(tokens):len(tokens)], Token{Type: EOF, Line: line, Column: col})
	}
	return &Parser{tokens: tokens}
}

// Parse is shorthand for NewParser(tokens).Parse().
func Parse(tokens []Token) (*Program, error) {
	return NewParser(tokens).Parse()
}

// Parse consumes the whole token stream. The first syntax problem aborts
// parsing with a SyntaxError.
func (p *Parser) Parse() (*Program, error) {
	prog := &Program{}
	for !p.check(EOF) {
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	return prog, nil
}

// === token helpers ===

func (p *Parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *Parser) check(t TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) match(types ...TokenType) (Token, bool) {
	for _, t := range types {
		if p.check(t) {
			return p.advance(), true
		}
	}
	return Token{}, false
}

func (p *Parser) expect(t TokenType, what string) (Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	tok := p.peek()
	return Token{}, newError(SyntaxError, posOf(tok), "expected %s, found %s", what, tok.describe())
}

func (p *Parser) errorAt(tok Token, format string, args ...any) *Error {
	return newError(SyntaxError, posOf(tok), format, args...)
}

// === statements ===

func (p *Parser) statement() (Stmt, error) {
	tok := p.peek()
	switch tok.Type {
	case LET:
		stmt, err := p.letStmt()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON, "';' after variable declaration"); err != nil {
			return nil, err
		}
		return stmt, nil
	case FN:
		// "fn name(" is a declaration; "fn(" starts an expression statement.
		if p.pos+1 < len(p.tokens) && p.tokens[p.pos+1].Type == IDENT {
			return p.funcStmt()
		}
	case IF:
		return p.ifStmt()
	case WHILE:
		return p.whileStmt()
	case FOR:
		return p.forStmt()
	case BREAK, CONTINUE:
		return p.jumpStmt()
	case RETURN:
		return p.returnStmt()
	case LBRACE:
		return p.block()
	}

	stmt, err := p.simpleStmt()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON, "';' after statement"); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) letStmt() (Stmt, error) {
	letTok := p.advance()
	name, err := p.expect(IDENT, "variable name after 'let'")
	if err != nil {
		return nil, err
	}
	stmt := &LetStmt{Position: posOf(letTok), Name: name.Lexeme}
	if _, ok := p.match(ASSIGN); ok {
		if stmt.Value, err = p.expression(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// simpleStmt parses an expression statement or an assignment, without the
// trailing semicolon.
func (p *Parser) simpleStmt() (Stmt, error) {
	start := p.peek()
	x, err := p.expression()
	if err != nil {
		return nil, err
	}

	if eq, ok := p.match(ASSIGN); ok {
		switch x.(type) {
		case *Ident, *IndexExpr:
		default:
			return nil, p.errorAt(eq, "invalid assignment target")
		}
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Position: posOf(start), Target: x, Value: value}, nil
	}

	return &ExprStmt{Position: posOf(start), X: x}, nil
}

func (p *Parser) block() (*BlockStmt, error) {
	open, err := p.expect(LBRACE, "'{'")
	if err != nil {
		return nil, err
	}
	blk := &BlockStmt{Position: posOf(open)}
	for !p.check(RBRACE) {
		if p.check(EOF) {
			return nil, p.errorAt(p.peek(), "expected '}' to close block opened at line %d, found end of input", open.Line)
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		blk.Stmts = append(blk.Stmts, stmt)
	}
	p.advance()
	return blk, nil
}

func (p *Parser) funcStmt() (Stmt, error) {
	fnTok := p.advance()
	name := p.advance() // IDENT, checked by the caller
	params, body, err := p.funcRest()
	if err != nil {
		return nil, err
	}
	return &FuncStmt{Position: posOf(fnTok), Name: name.Lexeme, Params: params, Body: body}, nil
}

// funcRest parses "(params) { body }".
func (p *Parser) funcRest() ([]string, *BlockStmt, error) {
	if _, err := p.expect(LPAREN, "'(' after function name"); err != nil {
		return nil, nil, err
	}

	var params []string
	seen := make(map[string]bool)
	if !p.check(RPAREN) {
		for {
			name, err := p.expect(IDENT, "parameter name")
			if err != nil {
				return nil, nil, err
			}
			if seen[name.Lexeme] {
				return nil, nil, p.errorAt(name, "duplicate parameter '%s'", name.Lexeme)
			}
			seen[name.Lexeme] = true
			params = append(params, name.Lexeme)
			if _, ok := p.match(COMMA); !ok {
				break
			}
		}
	}
	if _, err := p.expect(RPAREN, "')' after parameters"); err != nil {
		return nil, nil, err
	}

	// loops do not extend into function bodies
	outerLoops := p.loopDepth
	p.loopDepth = 0
	p.fnDepth++
	body, err := p.block()
	p.fnDepth--
	p.loopDepth = outerLoops
	if err != nil {
		return nil, nil, err
	}
	return params, body, nil
}

func (p *Parser) ifStmt() (Stmt, error) {
	ifTok := p.advance()
	cond, err := p.condition("if")
	if err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{Position: posOf(ifTok), Cond: cond, Then: then}

	if _, ok := p.match(ELSE); ok {
		if p.check(IF) {
			stmt.Else, err = p.ifStmt()
		} else {
			stmt.Else, err = p.block()
		}
		if err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *Parser) condition(keyword string) (Expr, error) {
	if _, err := p.expect(LPAREN, "'(' after '"+keyword+"'"); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN, "')' after condition"); err != nil {
		return nil, err
	}
	return cond, nil
}

func (p *Parser) loopBody() (*BlockStmt, error) {
	p.loopDepth++
	defer func() { p.loopDepth-- }()
	return p.block()
}

func (p *Parser) whileStmt() (Stmt, error) {
	whileTok := p.advance()
	cond, err := p.condition("while")
	if err != nil {
		return nil, err
	}
	body, err := p.loopBody()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Position: posOf(whileTok), Cond: cond, Body: body}, nil
}

func (p *Parser) forStmt() (Stmt, error) {
	forTok := p.advance()
	if _, err := p.expect(LPAREN, "'(' after 'for'"); err != nil {
		return nil, err
	}
	stmt := &ForStmt{Position: posOf(forTok)}

	var err error
	switch {
	case p.check(SEMICOLON):
	case p.check(LET):
		stmt.Init, err = p.letStmt()
	default:
		stmt.Init, err = p.simpleStmt()
	}
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON, "';' after loop initializer"); err != nil {
		return nil, err
	}

	if !p.check(SEMICOLON) {
		if stmt.Cond, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(SEMICOLON, "';' after loop condition"); err != nil {
		return nil, err
	}

	if !p.check(RPAREN) {
		if stmt.Post, err = p.simpleStmt(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(RPAREN, "')' after for clauses"); err != nil {
		return nil, err
	}

	if stmt.Body, err = p.loopBody(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) jumpStmt() (Stmt, error) {
	tok := p.advance()
	if p.loopDepth == 0 {
		return nil, p.errorAt(tok, "'%s' outside loop", tok.Lexeme)
	}
	if _, err := p.expect(SEMICOLON, "';' after '"+tok.Lexeme+"'"); err != nil {
		return nil, err
	}
	if tok.Type == BREAK {
		return &BreakStmt{Position: posOf(tok)}, nil
	}
	return &ContinueStmt{Position: posOf(tok)}, nil
}

func (p *Parser) returnStmt() (Stmt, error) {
	tok := p.advance()
	if p.fnDepth == 0 {
		return nil, p.errorAt(tok, "'return' outside function")
	}
	stmt := &ReturnStmt{Position: posOf(tok)}
	if !p.check(SEMICOLON) {
		var err error
		if stmt.Value, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(SEMICOLON, "';' after return value"); err != nil {
		return nil, err
	}
	return stmt, nil
}

// === expressions ===

func (p *Parser) expression() (Expr, error) {
	return p.binary(0)
}

// precedence levels, loosest first
var binaryLevels = [][]TokenType{
	{OR},
	{AND},
	{EQ, NEQ},
	{LT, LTE, GT, GTE},
	{PLUS, MINUS},
	{STAR, SLASH, PERCENT},
}

func (p *Parser) binary(level int) (Expr, error) {
	if level == len(binaryLevels) {
		return p.unary()
	}
	left, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.match(binaryLevels[level]...)
		if !ok {
			return left, nil
		}
		right, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Position: posOf(op), Op: op.Type, Left: left, Right: right}
	}
}

func (p *Parser) unary() (Expr, error) {
	if op, ok := p.match(NOT, MINUS); ok {
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Position: posOf(op), Op: op.Type, X: x}, nil
	}
	return p.postfix()
}

func (p *Parser) postfix() (Expr, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.check(LPAREN):
			open := p.advance()
			args, err := p.exprList(RPAREN, "')' after arguments")
			if err != nil {
				return nil, err
			}
			x = &CallExpr{Position: posOf(open), Callee: x, Args: args}
		case p.check(LBRACKET):
			open := p.advance()
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET, "']' after index"); err != nil {
				return nil, err
			}
			x = &IndexExpr{Position: posOf(open), X: x, Index: idx}
		default:
			return x, nil
		}
	}
}

// exprList parses a comma-separated list up to and including the closing token.
func (p *Parser) exprList(closing TokenType, what string) ([]Expr, error) {
	var list []Expr
	if !p.check(closing) {
		for {
			x, err := p.expression()
			if err != nil {
				return nil, err
			}
			list = append(list, x)
			if _, ok := p.match(COMMA); !ok {
				break
			}
		}
	}
	if _, err := p.expect(closing, what); err != nil {
		return nil, err
	}
	return list, nil
}

func (p *Parser) primary() (Expr, error) {
	tok := p.peek()
	pos := posOf(tok)

	switch tok.Type {
	case NUMBER:
		p.advance()
		v, _ := tok.Value.(float64)
		return &NumberLit{Position: pos, Value: v}, nil
	case STRING:
		p.advance()
		v, _ := tok.Value.(string)
		return &StringLit{Position: pos, Value: v}, nil
	case TRUE, FALSE:
		p.advance()
		return &BoolLit{Position: pos, Value: tok.Type == TRUE}, nil
	case NULL:
		p.advance()
		return &NullLit{Position: pos}, nil
	case IDENT:
		p.advance()
		return &Ident{Position: pos, Name: tok.Lexeme}, nil
	case LPAREN:
		p.advance()
		x, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN, "')' after expression"); err != nil {
			return nil, err
		}
		return x, nil
	case LBRACKET:
		p.advance()
		elems, err := p.exprList(RBRACKET, "']' after list elements")
		if err != nil {
			return nil, err
		}
		return &ListLit{Position: pos, Elems: elems}, nil
	case FN:
		p.advance()
		params, body, err := p.funcRest()
		if err != nil {
			return nil, err
		}
		return &FuncLit{Position: pos, Params: params, Body: body}, nil
	}

	return nil, p.errorAt(tok, "unexpected %s", tok.describe())
}
