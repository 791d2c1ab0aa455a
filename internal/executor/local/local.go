// Package local implements the execution harness in-process.
//
// HOW A RUN IS ISOLATED:
// Each call gets its own Output Sink, its own deadline context and its own
// goroutine for the tokenize → parse → run pipeline. The caller races that
// goroutine against the deadline:
//
//	select {
//	case err := <-done:         // pipeline finished (or failed)
//	case <-runCtx.Done():       // deadline: cancel, close the sink, move on
//	}
//
// On expiry the context is cancelled (the interpreter checks it on every
// statement, loop iteration and call) and the sink is closed, so the
// abandoned goroutine can neither append output nor keep running for long.
// Panics inside the pipeline are recovered on its own goroutine and reported
// as UnexpectedError, never propagated.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/puffing-runner/internal/apperror"
	"github.com/sakif/puffing-runner/internal/executor"
)

// Config holds the in-process harness limits.
type Config struct {
	// MaxOutputBytes caps captured program output. <= 0 means unlimited.
	MaxOutputBytes int
	// MaxDepth caps the interpreter's call depth. <= 0 keeps the interpreter default.
	MaxDepth int
}

// DefaultConfig provides sensible defaults for a shared service.
func DefaultConfig() Config {
	return Config{
		MaxOutputBytes: 1 << 20, // 1 MiB
	}
}

// Executor runs programs on goroutines inside this process.
type Executor struct {
	lang   executor.Language
	config Config
	logger *slog.Logger
}

var _ executor.Executor = (*Executor)(nil)

// New creates an Executor for the Puffing language.
func New(cfg Config, logger *slog.Logger) *Executor {
	return NewWithLanguage(Puffing{MaxDepth: cfg.MaxDepth}, cfg, logger)
}

// NewWithLanguage creates an Executor driving an arbitrary language pipeline.
func NewWithLanguage(lang executor.Language, cfg Config, logger *slog.Logger) *Executor {
	return &Executor{
		lang:   lang,
		config: cfg,
		logger: logger,
	}
}

// panicError carries a panic recovered from the pipeline goroutine.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

func (p *panicError) Trace() string { return string(p.stack) }

// Execute runs req.Code with a hard wall-clock budget of req.Timeout seconds.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	if req.Timeout <= 0 {
		return nil, apperror.ValidationFailed("timeout",
			fmt.Sprintf("timeout must be a positive number of seconds, got %d", req.Timeout))
	}

	log := e.logger.With(slog.String("run_id", uuid.NewString()))
	log.Debug("execution started",
		slog.Int("code_length", len(req.Code)),
		slog.Int("timeout", req.Timeout),
		slog.Int("inputs", len(req.InputValues)),
	)

	start := time.Now()
	sink := executor.NewSink(e.config.MaxOutputBytes)

	deadline := start.Add(time.Duration(req.Timeout) * time.Second)
	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	done := make(chan error, 1) // buffered: an abandoned pipeline must not block on send
	go func() {
		done <- e.pipeline(runCtx, req, sink)
	}()

	var err error
	select {
	case err = <-done:
	case <-runCtx.Done():
		// a pipeline that finished at the same instant still wins
		select {
		case err = <-done:
		default:
			err = runCtx.Err()
		}
	}
	// only our own deadline is a timeout; an earlier one inherited from ctx
	// means the caller gave up
	deadlineHit := errors.Is(runCtx.Err(), context.DeadlineExceeded) && !time.Now().Before(deadline)
	callerGone := !deadlineHit && ctx.Err() != nil

	cancel()
	sink.Close()
	output := sink.String()
	elapsed := time.Since(start)

	res := classify(req, output, err, deadlineHit, callerGone)
	res.ExecutionTime = executor.Seconds(elapsed)

	if res.Success {
		log.Debug("execution succeeded",
			slog.Duration("duration", elapsed),
			slog.Int("output_bytes", len(output)),
		)
	} else {
		log.Debug("execution failed",
			slog.Duration("duration", elapsed),
			slog.String("error_type", res.ErrorType),
			slog.String("error", res.Error),
		)
	}

	return res, nil
}

// pipeline runs tokenize → parse → run, converting panics into errors.
func (e *Executor) pipeline(ctx context.Context, req executor.ExecutionRequest, out io.Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()

	tokens, err := e.lang.Tokenize(req.Code)
	if err != nil {
		return err
	}
	prog, err := e.lang.Parse(tokens)
	if err != nil {
		return err
	}
	return prog.Run(ctx, out, req.InputValues)
}

// classify maps a pipeline outcome onto the result record. Every error falls
// into exactly one branch; the default branch is UnexpectedError.
func classify(req executor.ExecutionRequest, output string, err error, deadlineHit, callerGone bool) *executor.ExecutionResult {
	if err == nil {
		if output == "" {
			output = executor.SuccessPlaceholder
		}
		return &executor.ExecutionResult{Success: true, Output: output}
	}

	// a failure after the deadline fired is a timeout, whatever the abandoned work reported
	if deadlineHit {
		return executor.TimedOut(req.Timeout)
	}

	switch {
	case callerGone, errors.Is(err, context.Canceled):
		return executor.Cancelled()
	case errors.Is(err, executor.ErrOutputLimit):
		return executor.OutputLimitExceeded(err)
	}

	if le, ok := executor.AsLanguageError(err); ok {
		return &executor.ExecutionResult{
			Error:     le.Error(),
			ErrorType: le.ErrorKind(),
			Traceback: traceOf(le),
		}
	}

	return executor.Unexpected(err, traceOf(err))
}

func traceOf(err error) string {
	var t executor.Tracer
	if errors.As(err, &t) {
		return t.Trace()
	}
	return err.Error()
}

// Validate tokenizes and parses code without running it. It has no timer, no
// sink and no side effects.
func (e *Executor) Validate(ctx context.Context, code string) (res *executor.ValidationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during validation", slog.Any("panic", r))
			res = &executor.ValidationResult{Error: fmt.Sprintf("Unexpected error: %v", r)}
			err = nil
		}
	}()

	tokens, perr := e.lang.Tokenize(code)
	if perr == nil {
		_, perr = e.lang.Parse(tokens)
	}
	if perr != nil {
		if le, ok := executor.AsLanguageError(perr); ok {
			return &executor.ValidationResult{Error: le.Error()}, nil
		}
		return &executor.ValidationResult{Error: "Unexpected error: " + perr.Error()}, nil
	}

	return &executor.ValidationResult{Valid: true, Tokens: tokens.Wire()}, nil
}
