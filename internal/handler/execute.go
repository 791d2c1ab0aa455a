package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/puffing-runner/internal/executor"
)

// Executions is the part of the execution service the HTTP layer needs.
type Executions interface {
	Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error)
	Validate(ctx context.Context, code string) (*executor.ValidationResult, error)
}

type ExecuteHandler struct {
	svc    Executions
	logger *slog.Logger
}

func NewExecuteHandler(svc Executions, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		svc:    svc,
		logger: logger,
	}
}

// executeRequest distinguishes an absent timeout (use the default) from an
// explicit out-of-range one (reject).
type executeRequest struct {
	Code        string `json:"code"`
	Timeout     *int   `json:"timeout"`
	InputValues []any  `json:"input_values"`
}

func (req executeRequest) toExecution() executor.ExecutionRequest {
	timeout := executor.DefaultTimeout
	if req.Timeout != nil {
		timeout = *req.Timeout
	}
	return executor.ExecutionRequest{
		Code:        req.Code,
		Timeout:     timeout,
		InputValues: req.InputValues,
	}
}

// HandleExecute serves POST /execute.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.logger.Info("executing code", slog.Int("code_length", len(req.Code)))

	result, err := h.svc.Execute(r.Context(), req.toExecution())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type validateRequest struct {
	Code string `json:"code"`
}

// HandleValidate serves POST /validate.
func (h *ExecuteHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Validate(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
