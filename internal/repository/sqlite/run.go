package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/puffing-runner/internal/model"
	"github.com/sakif/puffing-runner/internal/repository"
)

// RunDB stores execution history for saved programs.
type RunDB struct {
	conn *sql.DB
}

var _ repository.RunRepository = (*RunDB)(nil)

func (r *RunDB) Create(ctx context.Context, run *model.Run) error {
	run.ID = xid.New().String()
	run.CreatedAt = time.Now().UTC()

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO runs (id, program_id, client_id, success, output, error, error_type, execution_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.ProgramID,
		run.ClientID,
		run.Success,
		run.Output,
		run.Error,
		run.ErrorType,
		run.ExecutionTime,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating run for program %s: %w", run.ProgramID, err)
	}
	return nil
}

// ListByProgram returns a program's runs, most recent first.
func (r *RunDB) ListByProgram(ctx context.Context, programID string, opts repository.ListOptions) ([]model.Run, error) {
	limit, offset := clampPage(opts)

	rows, err := r.conn.QueryContext(ctx,
		`SELECT id, program_id, client_id, success, output, error, error_type, execution_time, created_at
		 FROM runs
		 WHERE program_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		programID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing runs for program %s: %w", programID, err)
	}
	defer rows.Close()

	runs := make([]model.Run, 0, limit)
	for rows.Next() {
		var run model.Run
		if err := rows.Scan(
			&run.ID, &run.ProgramID, &run.ClientID, &run.Success,
			&run.Output, &run.Error, &run.ErrorType, &run.ExecutionTime, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating runs: %w", err)
	}
	return runs, nil
}
