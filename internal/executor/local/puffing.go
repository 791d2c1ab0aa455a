package local

import (
	"context"
	"fmt"
	"io"

	"github.com/sakif/puffing-runner/internal/executor"
	"github.com/sakif/puffing-runner/internal/puffing"
)

// Puffing adapts the puffing package to the executor.Language contract.
type Puffing struct {
	// MaxDepth overrides the interpreter's call depth limit when > 0.
	MaxDepth int
}

var _ executor.Language = Puffing{}

type puffingTokens []puffing.Token

func (ts puffingTokens) Wire() []executor.Token {
	wire := make([]executor.Token, len(ts))
	for i, t := range ts {
		wire[i] = executor.Token{Type: t.Type.String(), Value: t.Value}
	}
	return wire
}

type puffingProgram struct {
	prog     *puffing.Program
	maxDepth int
}

func (p puffingProgram) Run(ctx context.Context, out io.Writer, inputs []any) error {
	in := puffing.NewInterpreter(out, inputs)
	if p.maxDepth > 0 {
		in.MaxDepth = p.maxDepth
	}
	return in.Run(ctx, p.prog)
}

// Tokenize runs the Puffing lexer.
func (Puffing) Tokenize(source string) (executor.Tokens, error) {
	tokens, err := puffing.Tokenize(source)
	if err != nil {
		return nil, err
	}
	return puffingTokens(tokens), nil
}

// Parse runs the Puffing parser over tokens produced by Tokenize.
func (l Puffing) Parse(tokens executor.Tokens) (executor.Program, error) {
	ts, ok := tokens.(puffingTokens)
	if !ok {
		return nil, fmt.Errorf("local: tokens of type %T were not produced by the Puffing lexer", tokens)
	}
	prog, err := puffing.Parse(ts)
	if err != nil {
		return nil, err
	}
	return puffingProgram{prog: prog, maxDepth: l.MaxDepth}, nil
}
