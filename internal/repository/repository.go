// Package repository declares the storage contracts the service layer
// depends on. Implementations live in subpackages (sqlite).
package repository

import (
	"context"

	"github.com/sakif/puffing-runner/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type ProgramRepository interface {
	Create(ctx context.Context, program *model.Program) error
	GetByID(ctx context.Context, id string) (*model.Program, error)
	List(ctx context.Context, opts ListOptions) ([]model.Program, error)
	Update(ctx context.Context, program *model.Program) error
	Delete(ctx context.Context, id string) error
}

type RunRepository interface {
	Create(ctx context.Context, run *model.Run) error
	ListByProgram(ctx context.Context, programID string, opts ListOptions) ([]model.Run, error)
}

type ClientRepository interface {
	Create(ctx context.Context, client *model.Client) error
	GetByID(ctx context.Context, id string) (*model.Client, error)
}
