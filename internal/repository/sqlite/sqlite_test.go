package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/puffing-runner/internal/apperror"
	"github.com/sakif/puffing-runner/internal/model"
	"github.com/sakif/puffing-runner/internal/repository"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestClient(t *testing.T, db *DB, name string) *model.Client {
	t.Helper()
	c := &model.Client{Name: name, SecretHash: "hash-" + name}
	require.NoError(t, db.Clients().Create(context.Background(), c))
	return c
}

func createTestProgram(t *testing.T, db *DB, name, code, owner string) *model.Program {
	t.Helper()
	p := &model.Program{Name: name, Code: code, OwnerID: owner}
	require.NoError(t, db.Programs().Create(context.Background(), p))
	return p
}

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "puffing.db")

	db, err := New(path)
	require.NoError(t, err)
	createTestProgram(t, db, "kept", `print("hi");`, "")
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()

	programs, err := db.Programs().List(context.Background(), repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, programs, 1)
	assert.Equal(t, "kept", programs[0].Name)
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}

// =========================================================================
// PROGRAMS
// =========================================================================

func TestProgramCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	owner := createTestClient(t, db, "alice")

	created := createTestProgram(t, db, "hello", `print("hello")`, owner.ID)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	found, err := db.Programs().GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", found.Name)
	assert.Equal(t, `print("hello")`, found.Code)
	assert.Equal(t, owner.ID, found.OwnerID)
}

func TestProgramCreate_Unowned(t *testing.T) {
	db := newTestDB(t)
	created := createTestProgram(t, db, "anon", "let x = 1", "")

	found, err := db.Programs().GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Empty(t, found.OwnerID)
}

func TestProgramCreate_UnknownOwnerRejected(t *testing.T) {
	db := newTestDB(t)
	err := db.Programs().Create(context.Background(), &model.Program{Name: "x", OwnerID: "nobody"})
	assert.Error(t, err)
}

func TestProgramGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Programs().GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestProgramList_NewestFirstWithPagination(t *testing.T) {
	db := newTestDB(t)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		createTestProgram(t, db, name, "", "")
	}

	all, err := db.Programs().List(context.Background(), repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "e", all[0].Name)
	assert.Equal(t, "a", all[4].Name)

	page, err := db.Programs().List(context.Background(), repository.ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].Name)
	assert.Equal(t, "b", page[1].Name)

	past, err := db.Programs().List(context.Background(), repository.ListOptions{Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		in                    repository.ListOptions
		wantLimit, wantOffset int
	}{
		{repository.ListOptions{}, 20, 0},
		{repository.ListOptions{Limit: 5, Offset: 3}, 5, 3},
		{repository.ListOptions{Limit: 500}, 100, 0},
		{repository.ListOptions{Limit: -1, Offset: -4}, 20, 0},
	}
	for _, tt := range tests {
		limit, offset := clampPage(tt.in)
		assert.Equal(t, tt.wantLimit, limit, "limit for %+v", tt.in)
		assert.Equal(t, tt.wantOffset, offset, "offset for %+v", tt.in)
	}
}

func TestProgramUpdate(t *testing.T) {
	db := newTestDB(t)
	p := createTestProgram(t, db, "before", "let x = 1", "")
	createdAt := p.CreatedAt

	p.Name = "after"
	p.Code = "let x = 2"
	require.NoError(t, db.Programs().Update(context.Background(), p))

	found, err := db.Programs().GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", found.Name)
	assert.Equal(t, "let x = 2", found.Code)
	assert.True(t, found.CreatedAt.Equal(createdAt))
	assert.False(t, found.UpdatedAt.Before(createdAt))
}

func TestProgramUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)
	err := db.Programs().Update(context.Background(), &model.Program{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestProgramDelete_CascadesRuns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := createTestProgram(t, db, "doomed", `print(1);`, "")
	require.NoError(t, db.Runs().Create(ctx, &model.Run{ProgramID: p.ID, Success: true, Output: "1\n"}))

	require.NoError(t, db.Programs().Delete(ctx, p.ID))

	_, err := db.Programs().GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	runs, err := db.Runs().ListByProgram(ctx, p.ID, repository.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, runs)

	assert.ErrorIs(t, db.Programs().Delete(ctx, p.ID), apperror.ErrNotFound)
}

// =========================================================================
// RUNS
// =========================================================================

func TestRunCreateAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := createTestProgram(t, db, "counter", `print(1);`, "")
	other := createTestProgram(t, db, "other", `print(2)`, "")

	require.NoError(t, db.Runs().Create(ctx, &model.Run{
		ProgramID: p.ID, Success: true, Output: "1\n", ExecutionTime: 0.0012,
	}))
	require.NoError(t, db.Runs().Create(ctx, &model.Run{
		ProgramID: p.ID, ClientID: "c1", Error: "boom", ErrorType: "RuntimeError", ExecutionTime: 0.5,
	}))
	require.NoError(t, db.Runs().Create(ctx, &model.Run{ProgramID: other.ID, Success: true}))

	runs, err := db.Runs().ListByProgram(ctx, p.ID, repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, runs, 2)

	latest := runs[0]
	assert.False(t, latest.Success)
	assert.Equal(t, "RuntimeError", latest.ErrorType)
	assert.Equal(t, "c1", latest.ClientID)
	assert.InDelta(t, 0.5, latest.ExecutionTime, 1e-9)

	assert.True(t, runs[1].Success)
	assert.Equal(t, "1\n", runs[1].Output)
}

func TestRunCreate_UnknownProgramRejected(t *testing.T) {
	db := newTestDB(t)
	err := db.Runs().Create(context.Background(), &model.Run{ProgramID: "missing"})
	assert.Error(t, err)
}

// =========================================================================
// CLIENTS
// =========================================================================

func TestClientCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	c := createTestClient(t, db, "ci-bot")

	found, err := db.Clients().GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "ci-bot", found.Name)
	assert.Equal(t, "hash-ci-bot", found.SecretHash)
}

func TestClientCreate_DuplicateID(t *testing.T) {
	db := newTestDB(t)
	c := createTestClient(t, db, "first")

	err := db.Clients().Create(context.Background(), &model.Client{ID: c.ID, Name: "second", SecretHash: "h"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestClientGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Clients().GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
