package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/puffing-runner/internal/apperror"
	"github.com/sakif/puffing-runner/internal/executor"
	"github.com/sakif/puffing-runner/internal/metrics"
	"github.com/sakif/puffing-runner/internal/model"
	"github.com/sakif/puffing-runner/internal/repository"
)

const emptyCodeMessage = "Code cannot be empty"

// ExecutionService fronts the configured executor: it validates requests,
// records metrics and keeps the run history of saved programs.
type ExecutionService struct {
	exec     executor.Executor
	backend  string
	programs repository.ProgramRepository
	runs     repository.RunRepository
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewExecutionService(
	exec executor.Executor,
	backend string,
	programs repository.ProgramRepository,
	runs repository.RunRepository,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ExecutionService {
	return &ExecutionService{
		exec:     exec,
		backend:  backend,
		programs: programs,
		runs:     runs,
		metrics:  m,
		logger:   logger,
	}
}

// ValidateRequest applies the request rules: non-blank code within the size
// cap and a timeout inside [MinTimeout, MaxTimeout].
func ValidateRequest(req executor.ExecutionRequest) error {
	if strings.TrimSpace(req.Code) == "" {
		return apperror.ValidationFailed("code", emptyCodeMessage)
	}
	if err := validateCode(req.Code); err != nil {
		return err
	}
	if req.Timeout < executor.MinTimeout || req.Timeout > executor.MaxTimeout {
		return apperror.ValidationFailed("timeout",
			fmt.Sprintf("timeout must be between %d and %d seconds", executor.MinTimeout, executor.MaxTimeout))
	}
	return nil
}

// Execute runs ad-hoc code. Program failures come back inside the result;
// the error return is reserved for requests that could not be served.
func (s *ExecutionService) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	done := s.metrics.ExecutionStarted()
	res, err := s.exec.Execute(ctx, req)
	done()
	if err != nil {
		s.logger.Error("executor failed",
			slog.String("backend", s.backend),
			slog.String("error", err.Error()),
		)
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("executing code: %w", err)
	}

	s.metrics.ObserveExecution(s.backend, res.Success, res.ErrorType, res.ExecutionTime)
	s.logger.Info("code executed",
		slog.Bool("success", res.Success),
		slog.String("error_type", res.ErrorType),
		slog.Float64("execution_time", res.ExecutionTime),
	)
	return res, nil
}

// Validate checks syntax without running anything. Blank code is reported
// as invalid rather than rejected.
func (s *ExecutionService) Validate(ctx context.Context, code string) (*executor.ValidationResult, error) {
	if strings.TrimSpace(code) == "" {
		s.metrics.ObserveValidation(false)
		return &executor.ValidationResult{Valid: false, Error: emptyCodeMessage}, nil
	}
	if err := validateCode(code); err != nil {
		return nil, err
	}

	res, err := s.exec.Validate(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("validating code: %w", err)
	}
	s.metrics.ObserveValidation(res.Valid)
	return res, nil
}

// RunProgram executes a saved program and appends the outcome to its history.
// Persisting the run is best-effort: a storage failure is logged and the
// result is still returned.
func (s *ExecutionService) RunProgram(ctx context.Context, clientID, programID string, timeout int, inputs []any) (*executor.ExecutionResult, error) {
	program, err := s.programs.GetByID(ctx, programID)
	if err != nil {
		return nil, err
	}

	res, err := s.Execute(ctx, executor.ExecutionRequest{
		Code:        program.Code,
		Timeout:     timeout,
		InputValues: inputs,
	})
	if err != nil {
		return nil, err
	}

	run := &model.Run{
		ProgramID:     program.ID,
		ClientID:      clientID,
		Success:       res.Success,
		Output:        res.Output,
		Error:         res.Error,
		ErrorType:     res.ErrorType,
		ExecutionTime: res.ExecutionTime,
	}
	// the caller may have gone away; the history entry should still land
	if err := s.runs.Create(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Error("failed to record run",
			slog.String("program_id", program.ID),
			slog.String("error", err.Error()),
		)
	}
	return res, nil
}

// ListRuns returns the run history of a program, newest first.
func (s *ExecutionService) ListRuns(ctx context.Context, programID string, limit, offset int) ([]model.Run, error) {
	if _, err := s.programs.GetByID(ctx, programID); err != nil {
		return nil, err
	}
	runs, err := s.runs.ListByProgram(ctx, programID, ClampPage(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}
