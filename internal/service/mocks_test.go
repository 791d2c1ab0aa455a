package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/sakif/puffing-runner/internal/apperror"
	"github.com/sakif/puffing-runner/internal/executor"
	"github.com/sakif/puffing-runner/internal/model"
	"github.com/sakif/puffing-runner/internal/repository"
)

// In-memory fakes for the repository and executor contracts. They copy on
// the way in and out so tests cannot alias stored state.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockProgramRepo struct {
	mu       sync.Mutex
	programs map[string]*model.Program
	nextID   int
}

func newMockProgramRepo() *mockProgramRepo {
	return &mockProgramRepo{programs: make(map[string]*model.Program)}
}

func (m *mockProgramRepo) Create(_ context.Context, p *model.Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = fmt.Sprintf("prog-%d", m.nextID)
	stored := *p
	m.programs[p.ID] = &stored
	return nil
}

func (m *mockProgramRepo) GetByID(_ context.Context, id string) (*model.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.programs[id]
	if !ok {
		return nil, apperror.NotFound("program", id)
	}
	out := *p
	return &out, nil
}

func (m *mockProgramRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Program, 0, len(m.programs))
	for _, p := range m.programs {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if opts.Offset >= len(out) {
		return []model.Program{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *mockProgramRepo) Update(_ context.Context, p *model.Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.programs[p.ID]; !ok {
		return apperror.NotFound("program", p.ID)
	}
	stored := *p
	m.programs[p.ID] = &stored
	return nil
}

func (m *mockProgramRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.programs[id]; !ok {
		return apperror.NotFound("program", id)
	}
	delete(m.programs, id)
	return nil
}

// spyListRepo records the options List receives.
type spyListRepo struct {
	*mockProgramRepo
	got repository.ListOptions
}

func (s *spyListRepo) List(ctx context.Context, opts repository.ListOptions) ([]model.Program, error) {
	s.got = opts
	return s.mockProgramRepo.List(ctx, opts)
}

type mockRunRepo struct {
	mu   sync.Mutex
	runs []model.Run
	err  error // returned by Create when set
}

func (m *mockRunRepo) Create(_ context.Context, run *model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	run.ID = fmt.Sprintf("run-%d", len(m.runs)+1)
	m.runs = append(m.runs, *run)
	return nil
}

func (m *mockRunRepo) ListByProgram(_ context.Context, programID string, _ repository.ListOptions) ([]model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Run
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].ProgramID == programID {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}

type mockClientRepo struct {
	mu      sync.Mutex
	clients map[string]*model.Client
	getErr  error
}

func newMockClientRepo() *mockClientRepo {
	return &mockClientRepo{clients: make(map[string]*model.Client)}
}

func (m *mockClientRepo) Create(_ context.Context, c *model.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[c.ID]; ok {
		return apperror.Conflict("client", c.ID)
	}
	stored := *c
	m.clients[c.ID] = &stored
	return nil
}

func (m *mockClientRepo) GetByID(_ context.Context, id string) (*model.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.clients[id]
	if !ok {
		return nil, apperror.NotFound("client", id)
	}
	out := *c
	return &out, nil
}

// fakeExecutor returns canned results and records what it was asked.
type fakeExecutor struct {
	mu        sync.Mutex
	result    *executor.ExecutionResult
	validate  *executor.ValidationResult
	err       error
	requests  []executor.ExecutionRequest
	validated []string
}

var _ executor.Executor = (*fakeExecutor)(nil)

func (f *fakeExecutor) Execute(_ context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		res := *f.result
		return &res, nil
	}
	return &executor.ExecutionResult{Success: true, Output: "ok\n", ExecutionTime: 0.001}, nil
}

func (f *fakeExecutor) Validate(_ context.Context, code string) (*executor.ValidationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated = append(f.validated, code)
	if f.err != nil {
		return nil, f.err
	}
	if f.validate != nil {
		return f.validate, nil
	}
	return &executor.ValidationResult{Valid: true}, nil
}

var errBackendDown = errors.New("backend down")
