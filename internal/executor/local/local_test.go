package local_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/puffing-runner/internal/apperror"
	"github.com/sakif/puffing-runner/internal/executor"
	"github.com/sakif/puffing-runner/internal/executor/local"
)

func newTestExecutor(t *testing.T) *local.Executor {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return local.New(local.DefaultConfig(), logger)
}

func execute(t *testing.T, exec *local.Executor, code string, timeout int, inputs ...any) *executor.ExecutionResult {
	t.Helper()
	res, err := exec.Execute(context.Background(), executor.ExecutionRequest{
		Code:        code,
		Timeout:     timeout,
		InputValues: inputs,
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestExecute_HelloPuffing(t *testing.T) {
	exec := newTestExecutor(t)

	res := execute(t, exec, `print("Hello, Puffing!");`, 5)

	assert.True(t, res.Success)
	assert.Equal(t, "Hello, Puffing!\n", res.Output)
	assert.Empty(t, res.Error)
	assert.Empty(t, res.ErrorType)
	assert.Empty(t, res.Traceback)
	assert.Greater(t, res.ExecutionTime, 0.0)
}

func TestExecute_NoOutputUsesPlaceholder(t *testing.T) {
	exec := newTestExecutor(t)

	res := execute(t, exec, `let x = 1 + 1;`, 5)

	assert.True(t, res.Success)
	assert.Equal(t, executor.SuccessPlaceholder, res.Output)
}

func TestExecute_InputValues(t *testing.T) {
	exec := newTestExecutor(t)

	res := execute(t, exec, `print("hi " + input());`, 5, "bob")

	assert.True(t, res.Success)
	assert.Equal(t, "hi bob\n", res.Output)
}

func TestExecute_InfiniteLoopTimesOut(t *testing.T) {
	exec := newTestExecutor(t)

	start := time.Now()
	res := execute(t, exec, `while (true) { }`, 1)
	elapsed := time.Since(start)

	assert.False(t, res.Success)
	assert.Equal(t, executor.KindTimeout, res.ErrorType)
	assert.Equal(t, "Execution timed out after 1 seconds", res.Error)
	assert.Empty(t, res.Traceback)
	assert.Empty(t, res.Output)
	assert.GreaterOrEqual(t, elapsed, time.Second)
	assert.Less(t, elapsed, 2*time.Second)
	assert.GreaterOrEqual(t, res.ExecutionTime, 1.0)
}

func TestExecute_LanguageErrors(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		wantType  string
		wantError string
	}{
		{
			name:      "lexical",
			code:      `print("oops);`,
			wantType:  "LexerError",
			wantError: "LexerError at line 1, column 7: unterminated string literal",
		},
		{
			name:      "syntax",
			code:      `print(1)`,
			wantType:  "SyntaxError",
			wantError: "SyntaxError at line 1, column 9: expected ';' after statement, found end of input",
		},
		{
			name:      "undefined reference",
			code:      `print(ghost);`,
			wantType:  "NameError",
			wantError: "NameError at line 1, column 7: undefined variable 'ghost'",
		},
		{
			name:      "type error",
			code:      `let x = [1] - 1;`,
			wantType:  "TypeError",
			wantError: "TypeError at line 1, column 13: unsupported operand types for -: 'list' and 'number'",
		},
	}

	exec := newTestExecutor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execute(t, exec, tt.code, 5)

			assert.False(t, res.Success)
			assert.Empty(t, res.Output)
			assert.Equal(t, tt.wantType, res.ErrorType)
			assert.Equal(t, tt.wantError, res.Error)
			assert.NotEmpty(t, res.Traceback)
		})
	}
}

func TestExecute_RuntimeErrorTraceback(t *testing.T) {
	exec := newTestExecutor(t)

	res := execute(t, exec, "fn f() {\n  return 1 / 0;\n}\nf();", 5)

	assert.Equal(t, "ZeroDivisionError", res.ErrorType)
	assert.Contains(t, res.Traceback, "Traceback (most recent call last):")
	assert.Contains(t, res.Traceback, "line 2, in f")
}

func TestExecute_OutputLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := local.New(local.Config{MaxOutputBytes: 64}, logger)

	res := execute(t, exec, `while (true) { print("spam spam spam"); }`, 5)

	assert.False(t, res.Success)
	assert.Equal(t, executor.KindOutputLimit, res.ErrorType)
	assert.Contains(t, res.Error, "64 bytes")
}

func TestExecute_RejectsNonPositiveTimeout(t *testing.T) {
	exec := newTestExecutor(t)

	for _, timeout := range []int{0, -3} {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{Code: `print(1);`, Timeout: timeout})
		assert.Nil(t, res)
		assert.ErrorIs(t, err, apperror.ErrValidation)
	}
}

func TestExecute_CallerCancellation(t *testing.T) {
	exec := newTestExecutor(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res, err := exec.Execute(ctx, executor.ExecutionRequest{Code: `while (true) { }`, Timeout: 10})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, executor.KindCancelled, res.ErrorType)
}

func TestExecute_ConcurrentRunsDoNotShareOutput(t *testing.T) {
	exec := newTestExecutor(t)

	const n = 25
	results := make([]*executor.ExecutionResult, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code := fmt.Sprintf(`for (let k = 0; k < 50; k = k + 1) { print("marker-%d"); }`, i)
			res, err := exec.Execute(context.Background(), executor.ExecutionRequest{Code: code, Timeout: 10})
			if err == nil {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		require.NotNil(t, res, "run %d", i)
		require.True(t, res.Success, "run %d: %s", i, res.Error)

		marker := fmt.Sprintf("marker-%d\n", i)
		assert.Equal(t, strings.Repeat(marker, 50), res.Output, "run %d saw foreign output", i)
	}
}

func TestValidate(t *testing.T) {
	exec := newTestExecutor(t)

	t.Run("valid source returns ordered tokens", func(t *testing.T) {
		res, err := exec.Validate(context.Background(), `print("Hello, Puffing!");`)
		require.NoError(t, err)

		assert.True(t, res.Valid)
		assert.Empty(t, res.Error)
		require.Len(t, res.Tokens, 6)
		assert.Equal(t, executor.Token{Type: "IDENTIFIER", Value: "print"}, res.Tokens[0])
		assert.Equal(t, executor.Token{Type: "STRING", Value: "Hello, Puffing!"}, res.Tokens[2])
		assert.Equal(t, executor.Token{Type: "EOF", Value: nil}, res.Tokens[5])
	})

	t.Run("unterminated string is a lexical error", func(t *testing.T) {
		res, err := exec.Validate(context.Background(), `print("Hello, Puffing!);`)
		require.NoError(t, err)

		assert.False(t, res.Valid)
		assert.Equal(t, "LexerError at line 1, column 7: unterminated string literal", res.Error)
		assert.Nil(t, res.Tokens)
	})

	t.Run("syntax error", func(t *testing.T) {
		res, err := exec.Validate(context.Background(), `let = 1;`)
		require.NoError(t, err)

		assert.False(t, res.Valid)
		assert.Contains(t, res.Error, "SyntaxError")
		assert.Nil(t, res.Tokens)
	})

	t.Run("does not run the program", func(t *testing.T) {
		res, err := exec.Validate(context.Background(), `while (true) { print(1 / 0); }`)
		require.NoError(t, err)
		assert.True(t, res.Valid)
	})

	t.Run("idempotent", func(t *testing.T) {
		for _, code := range []string{`print(1);`, `print(`} {
			first, err := exec.Validate(context.Background(), code)
			require.NoError(t, err)
			second, err := exec.Validate(context.Background(), code)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		}
	})
}

// === fake language pipeline ===

type fakeTokens struct{}

func (fakeTokens) Wire() []executor.Token {
	return []executor.Token{{Type: "FAKE", Value: "x"}}
}

type fakeProgram struct {
	run func(ctx context.Context, out io.Writer) error
}

func (p fakeProgram) Run(ctx context.Context, out io.Writer, _ []any) error {
	return p.run(ctx, out)
}

type fakeLanguage struct {
	tokenize func() error
	parse    func() error
	run      func(ctx context.Context, out io.Writer) error
}

func (f fakeLanguage) Tokenize(string) (executor.Tokens, error) {
	if f.tokenize != nil {
		if err := f.tokenize(); err != nil {
			return nil, err
		}
	}
	return fakeTokens{}, nil
}

func (f fakeLanguage) Parse(executor.Tokens) (executor.Program, error) {
	if f.parse != nil {
		if err := f.parse(); err != nil {
			return nil, err
		}
	}
	return fakeProgram{run: f.run}, nil
}

func newFakeExecutor(lang fakeLanguage) *local.Executor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return local.NewWithLanguage(lang, local.DefaultConfig(), logger)
}

func TestExecute_PanicBecomesUnexpectedError(t *testing.T) {
	exec := newFakeExecutor(fakeLanguage{
		run: func(context.Context, io.Writer) error {
			var m map[string]int
			m["boom"] = 1 // nil map write panics
			return nil
		},
	})

	res := execute(t, exec, "anything", 5)

	assert.False(t, res.Success)
	assert.Equal(t, executor.KindUnexpected, res.ErrorType)
	assert.True(t, strings.HasPrefix(res.Error, "Unexpected error: panic:"), res.Error)
	assert.Contains(t, res.Traceback, "goroutine")
}

func TestExecute_NonLanguageErrorIsUnexpected(t *testing.T) {
	exec := newFakeExecutor(fakeLanguage{
		parse: func() error { return errors.New("parser table corrupted") },
	})

	res := execute(t, exec, "anything", 5)

	assert.Equal(t, executor.KindUnexpected, res.ErrorType)
	assert.Equal(t, "Unexpected error: parser table corrupted", res.Error)
}

func TestExecute_AbandonsWorkThatIgnoresCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	exec := newFakeExecutor(fakeLanguage{
		run: func(_ context.Context, out io.Writer) error {
			<-release // never checks ctx
			_, err := out.Write([]byte("too late"))
			return err
		},
	})

	start := time.Now()
	res := execute(t, exec, "anything", 1)

	assert.Equal(t, executor.KindTimeout, res.ErrorType)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecute_ErrorAfterDeadlineIsReportedAsTimeout(t *testing.T) {
	exec := newFakeExecutor(fakeLanguage{
		run: func(ctx context.Context, _ io.Writer) error {
			<-ctx.Done()
			return errors.New("secondary failure while shutting down")
		},
	})

	res := execute(t, exec, "anything", 1)

	assert.Equal(t, executor.KindTimeout, res.ErrorType)
}

func TestValidate_UnexpectedFailures(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		exec := newFakeExecutor(fakeLanguage{
			tokenize: func() error { return errors.New("lexer exploded") },
		})
		res, err := exec.Validate(context.Background(), "x")
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, "Unexpected error: lexer exploded", res.Error)
	})

	t.Run("panic", func(t *testing.T) {
		exec := newFakeExecutor(fakeLanguage{
			parse: func() error { panic("bad state") },
		})
		res, err := exec.Validate(context.Background(), "x")
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, "Unexpected error: bad state", res.Error)
		assert.Nil(t, res.Tokens)
	})
}

func TestExecute_CallerDeadlineIsNotReportedAsTimeout(t *testing.T) {
	exec := newTestExecutor(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := exec.Execute(ctx, executor.ExecutionRequest{Code: `while (true) { }`, Timeout: 5})
	require.NoError(t, err)
	assert.Equal(t, executor.KindCancelled, res.ErrorType)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecute_SelfContainingListDoesNotCrash(t *testing.T) {
	exec := newTestExecutor(t)

	res := execute(t, exec, "let a = [1]; push(a, a); print(a == a); print(a); print(str(a));", 2)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "true\n[1, [...]]\n[1, [...]]\n", res.Output)
}

func TestExecute_HugeFormattedValueIsBounded(t *testing.T) {
	exec := newTestExecutor(t)

	start := time.Now()
	res := execute(t, exec, "let a = []; for (let i = 0; i < 40; i = i + 1) { a = [a, a]; } let s = str(a);", 5)
	assert.False(t, res.Success)
	assert.Equal(t, "RuntimeError", res.ErrorType)
	assert.Contains(t, res.Error, "string too long")
	assert.Less(t, time.Since(start), 5*time.Second)
}
