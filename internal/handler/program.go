package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/puffing-runner/internal/auth"
	"github.com/sakif/puffing-runner/internal/executor"
	"github.com/sakif/puffing-runner/internal/model"
)

// Programs is the program CRUD surface of the service layer.
type Programs interface {
	Create(ctx context.Context, ownerID, name, code, description string) (*model.Program, error)
	GetByID(ctx context.Context, id string) (*model.Program, error)
	List(ctx context.Context, limit, offset int) ([]model.Program, error)
	Update(ctx context.Context, clientID, id, name, code, description string) (*model.Program, error)
	Delete(ctx context.Context, clientID, id string) error
}

// ProgramRuns executes saved programs and reads their history.
type ProgramRuns interface {
	RunProgram(ctx context.Context, clientID, programID string, timeout int, inputs []any) (*executor.ExecutionResult, error)
	ListRuns(ctx context.Context, programID string, limit, offset int) ([]model.Run, error)
}

type ProgramHandler struct {
	programs Programs
	runs     ProgramRuns
	logger   *slog.Logger
}

func NewProgramHandler(programs Programs, runs ProgramRuns, logger *slog.Logger) *ProgramHandler {
	return &ProgramHandler{
		programs: programs,
		runs:     runs,
		logger:   logger,
	}
}

type programRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

type runRequest struct {
	Timeout     *int  `json:"timeout"`
	InputValues []any `json:"input_values"`
}

// HandleList serves GET /api/programs.
func (h *ProgramHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	programs, err := h.programs.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, programs)
}

// HandleCreate serves POST /api/programs. Requires a bearer token.
func (h *ProgramHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req programRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	clientID, _ := auth.ClientIDFromContext(r.Context())

	program, err := h.programs.Create(r.Context(), clientID, req.Name, req.Code, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, program)
}

// HandleGet serves GET /api/programs/{id}.
func (h *ProgramHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	program, err := h.programs.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, program)
}

// HandleUpdate serves PUT /api/programs/{id}. Owner only.
func (h *ProgramHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req programRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	clientID, _ := auth.ClientIDFromContext(r.Context())

	program, err := h.programs.Update(r.Context(), clientID, chi.URLParam(r, "id"), req.Name, req.Code, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, program)
}

// HandleDelete serves DELETE /api/programs/{id}. Owner only.
func (h *ProgramHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	clientID, _ := auth.ClientIDFromContext(r.Context())
	if err := h.programs.Delete(r.Context(), clientID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRun serves POST /api/programs/{id}/run. An empty body runs with defaults.
func (h *ProgramHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	timeout := executor.DefaultTimeout
	if req.Timeout != nil {
		timeout = *req.Timeout
	}
	clientID, _ := auth.ClientIDFromContext(r.Context())

	result, err := h.runs.RunProgram(r.Context(), clientID, chi.URLParam(r, "id"), timeout, req.InputValues)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleRuns serves GET /api/programs/{id}/runs.
func (h *ProgramHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	runs, err := h.runs.ListRuns(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
