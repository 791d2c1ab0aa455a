// Package sqlite implements the repository interfaces on SQLite.
//
// modernc.org/sqlite is a pure Go port, so the binary needs no C toolchain
// and ":memory:" databases work anywhere tests run.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/puffing-runner/internal/repository"

	// registers the "sqlite" driver with database/sql
	_ "modernc.org/sqlite"
)

// DB wraps the connection pool. Each table gets its own repository view
// (Programs, Runs, Clients) sharing the pool.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath (a file path or ":memory:") and runs
// migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database lives and dies with its connection; a second
	// pooled connection would see an empty schema.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a run record is being written.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) Programs() *ProgramDB { return &ProgramDB{conn: db.conn} }
func (db *DB) Runs() *RunDB         { return &RunDB{conn: db.conn} }
func (db *DB) Clients() *ClientDB   { return &ClientDB{conn: db.conn} }

// migrate creates tables idempotently. Statements only ever get appended.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS clients (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			secret_hash TEXT NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating clients table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS programs (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			code        TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_programs_created_at ON programs(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating programs table: %w", err)
	}

	// owner_id arrived after programs; older databases get it added in place
	if err := db.addColumnIfNotExists("programs", "owner_id",
		"TEXT REFERENCES clients(id) ON DELETE SET NULL"); err != nil {
		return fmt.Errorf("adding owner_id to programs: %w", err)
	}
	if _, err := db.conn.Exec(
		`CREATE INDEX IF NOT EXISTS idx_programs_owner_id ON programs(owner_id);`,
	); err != nil {
		return fmt.Errorf("creating programs owner_id index: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			program_id     TEXT NOT NULL REFERENCES programs(id) ON DELETE CASCADE,
			client_id      TEXT NOT NULL DEFAULT '',
			success        INTEGER NOT NULL,
			output         TEXT NOT NULL DEFAULT '',
			error          TEXT NOT NULL DEFAULT '',
			error_type     TEXT NOT NULL DEFAULT '',
			execution_time REAL NOT NULL DEFAULT 0,
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_runs_program_id ON runs(program_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating runs table: %w", err)
	}

	return nil
}

// addColumnIfNotExists makes ALTER TABLE ADD COLUMN safe to re-run.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// clampPage applies the listing defaults: 20 rows, at most 100.
func clampPage(opts repository.ListOptions) (limit, offset int) {
	limit, offset = opts.Limit, opts.Offset
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
