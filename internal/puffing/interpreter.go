package puffing

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
)

// Resource guards. They keep a single program from exhausting the host's
// stack or memory before its deadline arrives.
const (
	DefaultMaxDepth = 500
	MaxStringLength = 1 << 20
	MaxListLength   = 1 << 20
)

// Env is a lexical scope.
type Env struct {
	vars   map[string]Value
	parent *Env
}

// NewEnv creates a scope nested in parent (nil for the global scope).
func NewEnv(parent *Env) *Env {
	return &Env{vars: make(map[string]Value), parent: parent}
}

// Get looks name up through the scope chain.
func (e *Env) Get(name string) (Value, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Define binds name in this scope, replacing any existing binding.
func (e *Env) Define(name string, v Value) {
	e.vars[name] = v
}

// Assign updates the nearest existing binding of name.
func (e *Env) Assign(name string, v Value) bool {
	for s := e; s != nil; s = s.parent {
		if _, ok := s.vars[name]; ok {
			s.vars[name] = v
			return true
		}
	}
	return false
}

type control int

const (
	ctrlNone control = iota
	ctrlBreak
	ctrlContinue
	ctrlReturn
)

// Interpreter executes a Program.
//
// OUTPUT:
// All program output goes to the writer given to NewInterpreter. A write error
// (for example a closed or full sink) is returned from Run unchanged, not as
// a *Error, so callers can tell it apart from faults in the program.
//
// CANCELLATION:
// Run checks ctx before every statement, loop iteration and function call. Once
// ctx is done Run returns promptly with an error wrapping ctx.Err().
type Interpreter struct {
	out      io.Writer
	inputs   []Value
	nextIn   int
	globals  *Env
	frames   []Frame
	retVal   Value
	ctx      context.Context
	MaxDepth int
}

// NewInterpreter creates an interpreter that prints to out and serves input()
// calls from inputs, in order.
func NewInterpreter(out io.Writer, inputs []any) *Interpreter {
	in := &Interpreter{
		out:      out,
		globals:  NewEnv(nil),
		MaxDepth: DefaultMaxDepth,
	}
	for _, v := range inputs {
		in.inputs = append(in.inputs, FromHost(v))
	}
	for _, b := range builtins() {
		in.globals.Define(b.Name, b)
	}
	return in
}

// Run executes prog's top-level statements in order.
func (in *Interpreter) Run(ctx context.Context, prog *Program) error {
	in.ctx = ctx
	in.frames = []Frame{{Function: "<main>"}}
	defer func() { in.ctx = nil }()

	for _, stmt := range prog.Stmts {
		if _, err := in.exec(stmt, in.globals); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) checkCtx() error {
	if err := in.ctx.Err(); err != nil {
		return fmt.Errorf("puffing: execution interrupted: %w", err)
	}
	return nil
}

// fail builds a runtime *Error carrying a snapshot of the call stack.
func (in *Interpreter) fail(kind Kind, pos Position, format string, args ...any) *Error {
	err := newError(kind, pos, format, args...)
	err.Frames = make([]Frame, len(in.frames))
	copy(err.Frames, in.frames)
	if n := len(err.Frames); n > 0 && pos.Line > 0 {
		err.Frames[n-1].Line = pos.Line
	}
	return err
}

// format renders values for output or concatenation, failing with a
// RuntimeError once the result would pass MaxStringLength.
func (in *Interpreter) format(pos Position, sep string, vals ...Value) (string, error) {
	f := newFormatter(MaxStringLength)
	for i, v := range vals {
		if i > 0 {
			if err := f.write(sep); err != nil {
				return "", in.fail(RuntimeError, pos, "string too long (limit %d bytes)", MaxStringLength)
			}
		}
		if err := f.value(v, false); err != nil {
			return "", in.fail(RuntimeError, pos, "string too long (limit %d bytes)", MaxStringLength)
		}
	}
	return f.String(), nil
}

func (in *Interpreter) write(s string) error {
	_, err := io.WriteString(in.out, s)
	return err
}

// === statements ===

func (in *Interpreter) execBlock(stmts []Stmt, env *Env) (control, error) {
	for _, stmt := range stmts {
		ctrl, err := in.exec(stmt, env)
		if err != nil || ctrl != ctrlNone {
			return ctrl, err
		}
	}
	return ctrlNone, nil
}

func (in *Interpreter) exec(stmt Stmt, env *Env) (control, error) {
	if err := in.checkCtx(); err != nil {
		return ctrlNone, err
	}
	in.frames[len(in.frames)-1].Line = stmt.Pos().Line

	switch s := stmt.(type) {
	case *LetStmt:
		var v Value
		if s.Value != nil {
			var err error
			if v, err = in.eval(s.Value, env); err != nil {
				return ctrlNone, err
			}
		}
		env.Define(s.Name, v)
		return ctrlNone, nil

	case *AssignStmt:
		return ctrlNone, in.assign(s, env)

	case *ExprStmt:
		_, err := in.eval(s.X, env)
		return ctrlNone, err

	case *BlockStmt:
		return in.execBlock(s.Stmts, NewEnv(env))

	case *IfStmt:
		cond, err := in.eval(s.Cond, env)
		if err != nil {
			return ctrlNone, err
		}
		if truthy(cond) {
			return in.execBlock(s.Then.Stmts, NewEnv(env))
		}
		if s.Else != nil {
			return in.exec(s.Else, env)
		}
		return ctrlNone, nil

	case *WhileStmt:
		for {
			if err := in.checkCtx(); err != nil {
				return ctrlNone, err
			}
			cond, err := in.eval(s.Cond, env)
			if err != nil {
				return ctrlNone, err
			}
			if !truthy(cond) {
				return ctrlNone, nil
			}
			ctrl, err := in.execBlock(s.Body.Stmts, NewEnv(env))
			if err != nil {
				return ctrlNone, err
			}
			switch ctrl {
			case ctrlBreak:
				return ctrlNone, nil
			case ctrlReturn:
				return ctrlReturn, nil
			}
		}

	case *ForStmt:
		return in.execFor(s, env)

	case *BreakStmt:
		return ctrlBreak, nil

	case *ContinueStmt:
		return ctrlContinue, nil

	case *ReturnStmt:
		in.retVal = nil
		if s.Value != nil {
			v, err := in.eval(s.Value, env)
			if err != nil {
				return ctrlNone, err
			}
			in.retVal = v
		}
		return ctrlReturn, nil

	case *FuncStmt:
		env.Define(s.Name, &Function{Name: s.Name, Params: s.Params, Body: s.Body, Closure: env})
		return ctrlNone, nil
	}

	return ctrlNone, in.fail(RuntimeError, stmt.Pos(), "unsupported statement %T", stmt)
}

func (in *Interpreter) execFor(s *ForStmt, env *Env) (control, error) {
	loopEnv := NewEnv(env)
	if s.Init != nil {
		if _, err := in.exec(s.Init, loopEnv); err != nil {
			return ctrlNone, err
		}
	}
	for {
		if err := in.checkCtx(); err != nil {
			return ctrlNone, err
		}
		if s.Cond != nil {
			cond, err := in.eval(s.Cond, loopEnv)
			if err != nil {
				return ctrlNone, err
			}
			if !truthy(cond) {
				return ctrlNone, nil
			}
		}
		ctrl, err := in.execBlock(s.Body.Stmts, NewEnv(loopEnv))
		if err != nil {
			return ctrlNone, err
		}
		switch ctrl {
		case ctrlBreak:
			return ctrlNone, nil
		case ctrlReturn:
			return ctrlReturn, nil
		}
		if s.Post != nil {
			if _, err := in.exec(s.Post, loopEnv); err != nil {
				return ctrlNone, err
			}
		}
	}
}

func (in *Interpreter) assign(s *AssignStmt, env *Env) error {
	v, err := in.eval(s.Value, env)
	if err != nil {
		return err
	}

	switch t := s.Target.(type) {
	case *Ident:
		if !env.Assign(t.Name, v) {
			return in.fail(NameError, t.Pos(), "undefined variable '%s'", t.Name)
		}
		return nil
	case *IndexExpr:
		container, err := in.eval(t.X, env)
		if err != nil {
			return err
		}
		list, ok := container.(*List)
		if !ok {
			return in.fail(TypeError, t.Pos(), "'%s' does not support item assignment", typeName(container))
		}
		idx, err := in.index(t, env, len(list.Elems))
		if err != nil {
			return err
		}
		list.Elems[idx] = v
		return nil
	}
	return in.fail(RuntimeError, s.Pos(), "invalid assignment target")
}

// === expressions ===

func (in *Interpreter) eval(x Expr, env *Env) (Value, error) {
	switch e := x.(type) {
	case *NumberLit:
		return e.Value, nil
	case *StringLit:
		return e.Value, nil
	case *BoolLit:
		return e.Value, nil
	case *NullLit:
		return nil, nil

	case *Ident:
		v, ok := env.Get(e.Name)
		if !ok {
			return nil, in.fail(NameError, e.Pos(), "undefined variable '%s'", e.Name)
		}
		return v, nil

	case *ListLit:
		elems := make([]Value, 0, len(e.Elems))
		for _, ex := range e.Elems {
			v, err := in.eval(ex, env)
			if err != nil {
				return nil, err
			}
			elems = append(elems, v)
		}
		return &List{Elems: elems}, nil

	case *FuncLit:
		return &Function{Params: e.Params, Body: e.Body, Closure: env}, nil

	case *UnaryExpr:
		v, err := in.eval(e.X, env)
		if err != nil {
			return nil, err
		}
		if e.Op == NOT {
			return !truthy(v), nil
		}
		n, ok := v.(float64)
		if !ok {
			return nil, in.fail(TypeError, e.Pos(), "bad operand type for unary -: '%s'", typeName(v))
		}
		return -n, nil

	case *BinaryExpr:
		return in.evalBinary(e, env)

	case *CallExpr:
		return in.evalCall(e, env)

	case *IndexExpr:
		container, err := in.eval(e.X, env)
		if err != nil {
			return nil, err
		}
		switch c := container.(type) {
		case *List:
			idx, err := in.index(e, env, len(c.Elems))
			if err != nil {
				return nil, err
			}
			return c.Elems[idx], nil
		case string:
			runes := []rune(c)
			idx, err := in.index(e, env, len(runes))
			if err != nil {
				return nil, err
			}
			return string(runes[idx]), nil
		}
		return nil, in.fail(TypeError, e.Pos(), "'%s' is not indexable", typeName(container))
	}

	return nil, in.fail(RuntimeError, x.Pos(), "unsupported expression %T", x)
}

// index evaluates e.Index and checks it against a container of length n.
// Negative indexes count from the end.
func (in *Interpreter) index(e *IndexExpr, env *Env, n int) (int, error) {
	v, err := in.eval(e.Index, env)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, in.fail(TypeError, e.Pos(), "index must be an integer, got %s", typeName(v))
	}
	i := int(f)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, in.fail(IndexError, e.Pos(), "index %s out of range for length %d", formatNumber(f), n)
	}
	return i, nil
}

func (in *Interpreter) evalBinary(e *BinaryExpr, env *Env) (Value, error) {
	left, err := in.eval(e.Left, env)
	if err != nil {
		return nil, err
	}

	// short-circuit operators
	switch e.Op {
	case AND:
		if !truthy(left) {
			return false, nil
		}
		right, err := in.eval(e.Right, env)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	case OR:
		if truthy(left) {
			return true, nil
		}
		right, err := in.eval(e.Right, env)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}

	right, err := in.eval(e.Right, env)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case EQ:
		return equal(left, right), nil
	case NEQ:
		return !equal(left, right), nil
	case PLUS:
		return in.add(e, left, right)
	}

	ln, lok := left.(float64)
	rn, rok := right.(float64)
	if lok && rok {
		switch e.Op {
		case MINUS:
			return ln - rn, nil
		case STAR:
			return ln * rn, nil
		case SLASH:
			if rn == 0 {
				return nil, in.fail(ZeroDivisionError, e.Pos(), "division by zero")
			}
			return ln / rn, nil
		case PERCENT:
			if rn == 0 {
				return nil, in.fail(ZeroDivisionError, e.Pos(), "modulo by zero")
			}
			return math.Mod(ln, rn), nil
		case LT:
			return ln < rn, nil
		case LTE:
			return ln <= rn, nil
		case GT:
			return ln > rn, nil
		case GTE:
			return ln >= rn, nil
		}
	}

	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		switch e.Op {
		case LT:
			return ls < rs, nil
		case LTE:
			return ls <= rs, nil
		case GT:
			return ls > rs, nil
		case GTE:
			return ls >= rs, nil
		}
	}

	if e.Op == STAR {
		if s, n, ok := stringTimesNumber(left, right); ok {
			return in.repeat(e, s, n)
		}
	}

	return nil, in.fail(TypeError, e.Pos(), "unsupported operand types for %s: '%s' and '%s'",
		opSymbol(e.Op), typeName(left), typeName(right))
}

func (in *Interpreter) add(e *BinaryExpr, left, right Value) (Value, error) {
	switch l := left.(type) {
	case float64:
		if r, ok := right.(float64); ok {
			return l + r, nil
		}
	case *List:
		if r, ok := right.(*List); ok {
			if len(l.Elems)+len(r.Elems) > MaxListLength {
				return nil, in.fail(RuntimeError, e.Pos(), "list too long (limit %d elements)", MaxListLength)
			}
			elems := make([]Value, 0, len(l.Elems)+len(r.Elems))
			elems = append(elems, l.Elems...)
			return &List{Elems: append(elems, r.Elems...)}, nil
		}
	}

	// string concatenation formats the other operand
	_, lstr := left.(string)
	_, rstr := right.(string)
	if lstr || rstr {
		return in.format(e.Pos(), "", left, right)
	}

	return nil, in.fail(TypeError, e.Pos(), "unsupported operand types for +: '%s' and '%s'",
		typeName(left), typeName(right))
}

func stringTimesNumber(a, b Value) (string, float64, bool) {
	if s, ok := a.(string); ok {
		if n, ok := b.(float64); ok {
			return s, n, true
		}
	}
	if s, ok := b.(string); ok {
		if n, ok := a.(float64); ok {
			return s, n, true
		}
	}
	return "", 0, false
}

func (in *Interpreter) repeat(e *BinaryExpr, s string, n float64) (Value, error) {
	if n != math.Trunc(n) {
		return nil, in.fail(TypeError, e.Pos(), "can't multiply string by non-integer %s", formatNumber(n))
	}
	if n <= 0 || s == "" {
		return "", nil
	}
	if float64(len(s))*n > MaxStringLength {
		return nil, in.fail(RuntimeError, e.Pos(), "string too long (limit %d bytes)", MaxStringLength)
	}
	return strings.Repeat(s, int(n)), nil
}

func opSymbol(t TokenType) string {
	switch t {
	case MINUS:
		return "-"
	case STAR:
		return "*"
	case SLASH:
		return "/"
	case PERCENT:
		return "%"
	case LT:
		return "<"
	case LTE:
		return "<="
	case GT:
		return ">"
	case GTE:
		return ">="
	}
	return t.String()
}

func (in *Interpreter) evalCall(e *CallExpr, env *Env) (Value, error) {
	callee, err := in.eval(e.Callee, env)
	if err != nil {
		return nil, err
	}
	args := make([]Value, 0, len(e.Args))
	for _, a := range e.Args {
		v, err := in.eval(a, env)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return in.call(e.Pos(), callee, args)
}

func (in *Interpreter) call(pos Position, callee Value, args []Value) (Value, error) {
	if err := in.checkCtx(); err != nil {
		return nil, err
	}

	switch fn := callee.(type) {
	case *Builtin:
		if fn.Arity >= 0 && len(args) != fn.Arity {
			return nil, in.fail(TypeError, pos, "%s() takes %d argument(s), got %d", fn.Name, fn.Arity, len(args))
		}
		return fn.Fn(in, pos, args)

	case *Function:
		name := fn.Name
		if name == "" {
			name = "<anonymous>"
		}
		if len(args) != len(fn.Params) {
			return nil, in.fail(TypeError, pos, "%s() takes %d argument(s), got %d", name, len(fn.Params), len(args))
		}
		if len(in.frames) > in.MaxDepth {
			return nil, in.fail(RecursionError, pos, "maximum recursion depth exceeded")
		}

		scope := NewEnv(fn.Closure)
		for i, p := range fn.Params {
			scope.Define(p, args[i])
		}

		in.frames = append(in.frames, Frame{Function: name, Line: fn.Body.Line})
		in.retVal = nil
		ctrl, err := in.execBlock(fn.Body.Stmts, scope)
		in.frames = in.frames[:len(in.frames)-1]
		if err != nil {
			return nil, err
		}
		var result Value
		if ctrl == ctrlReturn {
			result = in.retVal
		}
		in.retVal = nil
		return result, nil
	}

	return nil, in.fail(TypeError, pos, "'%s' is not callable", typeName(callee))
}
