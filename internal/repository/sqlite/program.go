package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/puffing-runner/internal/apperror"
	"github.com/sakif/puffing-runner/internal/model"
	"github.com/sakif/puffing-runner/internal/repository"
)

// ProgramDB stores saved programs.
type ProgramDB struct {
	conn *sql.DB
}

var _ repository.ProgramRepository = (*ProgramDB)(nil)

const programColumns = `id, name, code, description, owner_id, created_at, updated_at`

// nullable maps "" to SQL NULL so unowned rows satisfy the clients foreign key.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgram(row rowScanner) (*model.Program, error) {
	var (
		p     model.Program
		owner sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Code, &p.Description, &owner, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.OwnerID = owner.String
	return &p, nil
}

// Create assigns an xid and timestamps, then inserts the program.
func (r *ProgramDB) Create(ctx context.Context, program *model.Program) error {
	program.ID = xid.New().String()
	now := time.Now().UTC()
	program.CreatedAt = now
	program.UpdatedAt = now

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO programs (`+programColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		program.ID,
		program.Name,
		program.Code,
		program.Description,
		nullable(program.OwnerID),
		program.CreatedAt,
		program.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating program: %w", err)
	}
	return nil
}

func (r *ProgramDB) GetByID(ctx context.Context, id string) (*model.Program, error) {
	p, err := scanProgram(r.conn.QueryRowContext(ctx,
		`SELECT `+programColumns+` FROM programs WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("program", id)
		}
		return nil, fmt.Errorf("sqlite: getting program %s: %w", id, err)
	}
	return p, nil
}

// List returns programs newest first.
func (r *ProgramDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Program, error) {
	limit, offset := clampPage(opts)

	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+programColumns+`
		 FROM programs
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing programs: %w", err)
	}
	defer rows.Close()

	programs := make([]model.Program, 0, limit)
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning program row: %w", err)
		}
		programs = append(programs, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating programs: %w", err)
	}
	return programs, nil
}

// Update rewrites name, code and description. id, owner and created_at are immutable.
func (r *ProgramDB) Update(ctx context.Context, program *model.Program) error {
	program.UpdatedAt = time.Now().UTC()

	result, err := r.conn.ExecContext(ctx,
		`UPDATE programs
		 SET name = ?, code = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		program.Name,
		program.Code,
		program.Description,
		program.UpdatedAt,
		program.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating program %s: %w", program.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("program", program.ID)
	}
	return nil
}

// Delete removes the program and, by cascade, its run history.
func (r *ProgramDB) Delete(ctx context.Context, id string) error {
	result, err := r.conn.ExecContext(ctx, `DELETE FROM programs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting program %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("program", id)
	}
	return nil
}
