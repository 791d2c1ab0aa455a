// Package service holds the business rules between handlers and storage:
// request validation, ownership checks, execution bookkeeping. It returns
// apperror values and never touches HTTP.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/puffing-runner/internal/apperror"
	"github.com/sakif/puffing-runner/internal/model"
	"github.com/sakif/puffing-runner/internal/repository"
)

const (
	MaxProgramNameLength = 100
	MaxCodeLength        = 100000
	DefaultListLimit     = 20
	MaxListLimit         = 100
)

type ProgramService struct {
	repo   repository.ProgramRepository
	logger *slog.Logger
}

func NewProgramService(repo repository.ProgramRepository, logger *slog.Logger) *ProgramService {
	return &ProgramService{
		repo:   repo,
		logger: logger,
	}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.ValidationFailed("name", "program name is required")
	}
	if len(name) > MaxProgramNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("program name must be %d characters or less", MaxProgramNameLength))
	}
	return name, nil
}

func validateCode(code string) error {
	if len(code) > MaxCodeLength {
		return apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}
	return nil
}

// ClampPage applies the listing defaults shared by every paginated endpoint.
func ClampPage(limit, offset int) repository.ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.ListOptions{Limit: limit, Offset: offset}
}

// Create saves a program owned by ownerID.
func (s *ProgramService) Create(ctx context.Context, ownerID, name, code, description string) (*model.Program, error) {
	if ownerID == "" {
		return nil, apperror.Unauthorized("authentication required to save programs")
	}
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if err := validateCode(code); err != nil {
		return nil, err
	}

	program := &model.Program{
		Name:        name,
		Code:        code,
		Description: strings.TrimSpace(description),
		OwnerID:     ownerID,
	}

	if err := s.repo.Create(ctx, program); err != nil {
		s.logger.Error("failed to create program",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating program: %w", err)
	}

	s.logger.Info("program created",
		slog.String("id", program.ID),
		slog.String("owner_id", ownerID),
	)
	return program, nil
}

func (s *ProgramService) GetByID(ctx context.Context, id string) (*model.Program, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "program ID is required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *ProgramService) List(ctx context.Context, limit, offset int) ([]model.Program, error) {
	programs, err := s.repo.List(ctx, ClampPage(limit, offset))
	if err != nil {
		s.logger.Error("failed to list programs", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	return programs, nil
}

// owned loads a program and checks that clientID may modify it. Programs
// without an owner are read-only.
func (s *ProgramService) owned(ctx context.Context, clientID, id string) (*model.Program, error) {
	program, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if clientID == "" {
		return nil, apperror.Unauthorized("authentication required to modify programs")
	}
	if program.OwnerID != clientID {
		return nil, apperror.Forbidden("only the owner may modify this program")
	}
	return program, nil
}

// Update replaces code and description. An empty name keeps the current one.
func (s *ProgramService) Update(ctx context.Context, clientID, id, name, code, description string) (*model.Program, error) {
	program, err := s.owned(ctx, clientID, id)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(name) != "" {
		if program.Name, err = validateName(name); err != nil {
			return nil, err
		}
	}
	if err := validateCode(code); err != nil {
		return nil, err
	}
	program.Code = code
	program.Description = strings.TrimSpace(description)

	if err := s.repo.Update(ctx, program); err != nil {
		s.logger.Error("failed to update program",
			slog.String("id", program.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating program: %w", err)
	}

	s.logger.Info("program updated", slog.String("id", program.ID))
	return program, nil
}

func (s *ProgramService) Delete(ctx context.Context, clientID, id string) error {
	program, err := s.owned(ctx, clientID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, program.ID); err != nil {
		return err
	}

	s.logger.Info("program deleted", slog.String("id", program.ID))
	return nil
}
