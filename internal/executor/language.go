package executor

import (
	"context"
	"errors"
	"io"
)

// Language is the lexer/parser/interpreter pipeline a harness drives. The
// harness treats it as a black box: it only sequences the three steps and
// classifies what comes back.
type Language interface {
	Tokenize(source string) (Tokens, error)
	Parse(tokens Tokens) (Program, error)
}

// Tokens is a tokenized source file.
type Tokens interface {
	// Wire returns the tokens in source order, in serializable form.
	Wire() []Token
}

// Program is a parsed source file ready to run.
type Program interface {
	// Run executes the program, writing its output to out. It must return
	// promptly once ctx is done.
	Run(ctx context.Context, out io.Writer, inputs []any) error
}

// LanguageError is implemented by errors that report a fault in the user's
// program, as opposed to a fault in the harness.
type LanguageError interface {
	error
	ErrorKind() string
}

// Tracer is optionally implemented by errors that can render a traceback.
type Tracer interface {
	Trace() string
}

// AsLanguageError finds the first LanguageError in err's chain.
func AsLanguageError(err error) (LanguageError, bool) {
	var le LanguageError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
