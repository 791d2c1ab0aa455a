package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/puffing-runner/internal/apperror"
	"github.com/sakif/puffing-runner/internal/model"
	"github.com/sakif/puffing-runner/internal/repository"
)

// ClientDB stores API clients.
type ClientDB struct {
	conn *sql.DB
}

var _ repository.ClientRepository = (*ClientDB)(nil)

// Create inserts a client. An ID is generated unless the caller already set one.
func (r *ClientDB) Create(ctx context.Context, client *model.Client) error {
	if client.ID == "" {
		client.ID = xid.New().String()
	}
	client.CreatedAt = time.Now().UTC()

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO clients (id, name, secret_hash, created_at) VALUES (?, ?, ?, ?)`,
		client.ID,
		client.Name,
		client.SecretHash,
		client.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("client", client.ID)
		}
		return fmt.Errorf("sqlite: creating client: %w", err)
	}
	return nil
}

func (r *ClientDB) GetByID(ctx context.Context, id string) (*model.Client, error) {
	var c model.Client
	err := r.conn.QueryRowContext(ctx,
		`SELECT id, name, secret_hash, created_at FROM clients WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.SecretHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("client", id)
		}
		return nil, fmt.Errorf("sqlite: getting client %s: %w", id, err)
	}
	return &c, nil
}
