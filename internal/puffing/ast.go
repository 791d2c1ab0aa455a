package puffing

// Position is a 1-based source location.
type Position struct {
	Line   int
	Column int
}

// Pos returns the position itself; embedding Position gives every node a Pos method.
func (p Position) Pos() Position { return p }

func posOf(t Token) Position {
	return Position{Line: t.Line, Column: t.Column}
}

// Node is any element of the syntax tree.
type Node interface {
	Pos() Position
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Program is the root of a parsed source file.
type Program struct {
	Stmts []Stmt
}

// Statements

type (
	LetStmt struct {
		Position
		Name  string
		Value Expr
	}

	AssignStmt struct {
		Position
		Target Expr // *Ident or *IndexExpr
		Value  Expr
	}

	ExprStmt struct {
		Position
		X Expr
	}

	BlockStmt struct {
		Position
		Stmts []Stmt
	}

	IfStmt struct {
		Position
		Cond Expr
		Then *BlockStmt
		Else Stmt // nil, *BlockStmt or *IfStmt
	}

	WhileStmt struct {
		Position
		Cond Expr
		Body *BlockStmt
	}

	ForStmt struct {
		Position
		Init Stmt // may be nil
		Cond Expr // may be nil, meaning true
		Post Stmt // may be nil
		Body *BlockStmt
	}

	BreakStmt struct {
		Position
	}

	ContinueStmt struct {
		Position
	}

	ReturnStmt struct {
		Position
		Value Expr // may be nil
	}

	FuncStmt struct {
		Position
		Name   string
		Params []string
		Body   *BlockStmt
	}
)

func (*LetStmt) stmtNode()      {}
func (*AssignStmt) stmtNode()   {}
func (*ExprStmt) stmtNode()     {}
func (*BlockStmt) stmtNode()    {}
func (*IfStmt) stmtNode()       {}
func (*WhileStmt) stmtNode()    {}
func (*ForStmt) stmtNode()      {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*ReturnStmt) stmtNode()   {}
func (*FuncStmt) stmtNode()     {}

// Expressions

type (
	NumberLit struct {
		Position
		Value float64
	}

	StringLit struct {
		Position
		Value string
	}

	BoolLit struct {
		Position
		Value bool
	}

	NullLit struct {
		Position
	}

	Ident struct {
		Position
		Name string
	}

	ListLit struct {
		Position
		Elems []Expr
	}

	FuncLit struct {
		Position
		Params []string
		Body   *BlockStmt
	}

	UnaryExpr struct {
		Position
		Op TokenType
		X  Expr
	}

	BinaryExpr struct {
		Position
		Op    TokenType
		Left  Expr
		Right Expr
	}

	CallExpr struct {
		Position
		Callee Expr
		Args   []Expr
	}

	IndexExpr struct {
		Position
		X     Expr
		Index Expr
	}
)

func (*NumberLit) exprNode()  {}
func (*StringLit) exprNode()  {}
func (*BoolLit) exprNode()    {}
func (*NullLit) exprNode()    {}
func (*Ident) exprNode()      {}
func (*ListLit) exprNode()    {}
func (*FuncLit) exprNode()    {}
func (*UnaryExpr) exprNode()  {}
func (*BinaryExpr) exprNode() {}
func (*CallExpr) exprNode()   {}
func (*IndexExpr) exprNode()  {}
