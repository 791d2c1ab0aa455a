// Package executor defines the execution harness contract: the request and
// result records exchanged with callers, the Output Sink every run writes
// into, and the closed set of failure kinds a run can end with.
//
// Two implementations live in subpackages:
//   - local:  runs the pipeline on a goroutine inside this process
//   - docker: runs it inside a pre-warmed container that can be killed
package executor

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Request bounds enforced by the service layer. The harness itself only
// rejects non-positive timeouts.
const (
	DefaultTimeout = 5
	MinTimeout     = 1
	MaxTimeout     = 30
)

// SuccessPlaceholder replaces empty output so callers can tell "ran with no
// output" apart from a malformed response.
const SuccessPlaceholder = "Program executed successfully!"

// Failure kinds produced by the harness itself. Language-level failures use
// the interpreter's own kind names (SyntaxError, NameError, ...).
const (
	KindTimeout     = "TimeoutError"
	KindOutputLimit = "OutputLimitError"
	KindCancelled   = "CancelledError"
	KindUnexpected  = "UnexpectedError"
)

// ExecutionRequest is one program run. The JSON shape matches the Puffing IDE.
type ExecutionRequest struct {
	Code        string `json:"code"`
	Timeout     int    `json:"timeout"` // seconds
	InputValues []any  `json:"input_values,omitempty"`
}

// ExecutionResult reports the outcome of exactly one run.
//
// On success only Output is set; on failure Error and ErrorType are set and
// Traceback may be. ExecutionTime is always set.
type ExecutionResult struct {
	Success       bool    `json:"success"`
	Output        string  `json:"output,omitempty"`
	Error         string  `json:"error,omitempty"`
	ErrorType     string  `json:"error_type,omitempty"`
	Traceback     string  `json:"traceback,omitempty"`
	ExecutionTime float64 `json:"execution_time"` // seconds, 4 decimal places
}

// Token is the wire form of a lexical token.
type Token struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// ValidationResult reports whether source is lexically and syntactically valid.
type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Error  string  `json:"error,omitempty"`
	Tokens []Token `json:"tokens,omitempty"`
}

// Executor runs programs in an isolated environment.
//
// Execute returns an error only when the request cannot be served at all
// (for example a non-positive timeout, or an unavailable backend). Every
// served request yields a result, whatever the program did.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
	Validate(ctx context.Context, code string) (*ValidationResult, error)
}

// Seconds converts an elapsed duration to seconds rounded to 4 decimal
// places. A positive duration never rounds down to zero.
func Seconds(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	s := math.Round(d.Seconds()*1e4) / 1e4
	if s == 0 {
		return 0.0001
	}
	return s
}

// TimedOut is the result of a run that hit its deadline.
func TimedOut(timeout int) *ExecutionResult {
	return &ExecutionResult{
		Error:     fmt.Sprintf("Execution timed out after %d seconds", timeout),
		ErrorType: KindTimeout,
	}
}

// Cancelled is the result of a run whose caller went away.
func Cancelled() *ExecutionResult {
	return &ExecutionResult{
		Error:     "Execution cancelled",
		ErrorType: KindCancelled,
	}
}

// OutputLimitExceeded is the result of a run that wrote past its sink limit.
func OutputLimitExceeded(err error) *ExecutionResult {
	return &ExecutionResult{
		Error:     fmt.Sprintf("Output limit exceeded: %v", err),
		ErrorType: KindOutputLimit,
	}
}

// Unexpected wraps a failure that is not the program's fault.
func Unexpected(err error, trace string) *ExecutionResult {
	return &ExecutionResult{
		Error:     "Unexpected error: " + err.Error(),
		ErrorType: KindUnexpected,
		Traceback: trace,
	}
}
