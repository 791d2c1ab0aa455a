package puffing

import (
	"fmt"
	"strings"
)

// Kind names a class of language-level error. The set is closed.
type Kind string

const (
	LexerError        Kind = "LexerError"
	SyntaxError       Kind = "SyntaxError"
	NameError         Kind = "NameError"
	TypeError         Kind = "TypeError"
	ZeroDivisionError Kind = "ZeroDivisionError"
	IndexError        Kind = "IndexError"
	InputError        Kind = "InputError"
	RecursionError    Kind = "RecursionError"
	RuntimeError      Kind = "RuntimeError"
)

// Frame is one entry of a Puffing call stack.
type Frame struct {
	Function string
	Line     int
}

// Error is a fault in the user's program.
//
// Frames is a snapshot of the call stack at the point the error was raised,
// outermost call first. Lexer and parser errors have no frames.
type Error struct {
	Kind    Kind
	Message string
	Line    int
	Column  int
	Frames  []Frame
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at line %d, column %d: %s", e.Kind, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ErrorKind reports the error's kind as a plain string.
func (e *Error) ErrorKind() string {
	return string(e.Kind)
}

// Trace renders a traceback in the familiar "most recent call last" layout.
func (e *Error) Trace() string {
	var b strings.Builder
	b.WriteString("Traceback (most recent call last):\n")
	for _, f := range e.Frames {
		fmt.Fprintf(&b, "  line %d, in %s\n", f.Line, f.Function)
	}
	b.WriteString(e.Error())
	return b.String()
}

func newError(kind Kind, pos Position, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Line:    pos.Line,
		Column:  pos.Column,
	}
}
