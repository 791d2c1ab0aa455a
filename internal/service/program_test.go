package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/puffing-runner/internal/apperror"
	"github.com/sakif/puffing-runner/internal/repository"
)

const (
	alice = "client-alice"
	bob   = "client-bob"
)

func newTestProgramService(t *testing.T) (*ProgramService, *mockProgramRepo) {
	t.Helper()
	repo := newMockProgramRepo()
	return NewProgramService(repo, discardLogger()), repo
}

func TestProgramCreate(t *testing.T) {
	svc, _ := newTestProgramService(t)

	p, err := svc.Create(context.Background(), alice, "  greeter  ", `print("hi");`, "  says hi ")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "greeter", p.Name)
	assert.Equal(t, "says hi", p.Description)
	assert.Equal(t, alice, p.OwnerID)
}

func TestProgramCreate_Validation(t *testing.T) {
	svc, _ := newTestProgramService(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		owner     string
		progName  string
		code      string
		wantErr   error
		wantField string
	}{
		{"anonymous", "", "x", "", apperror.ErrUnauthorized, ""},
		{"empty name", alice, "", "", apperror.ErrValidation, "name"},
		{"blank name", alice, "   ", "", apperror.ErrValidation, "name"},
		{"long name", alice, strings.Repeat("n", MaxProgramNameLength+1), "", apperror.ErrValidation, "name"},
		{"long code", alice, "x", strings.Repeat("c", MaxCodeLength+1), apperror.ErrValidation, "code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.owner, tt.progName, tt.code, "")
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantField != "" {
				var appErr *apperror.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.wantField, appErr.Field)
			}
		})
	}
}

func TestProgramGetByID(t *testing.T) {
	svc, _ := newTestProgramService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, alice, "p", "print(1);", "")
	require.NoError(t, err)

	found, err := svc.GetByID(ctx, " "+created.ID+" ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = svc.GetByID(ctx, "")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestProgramList_ClampsPage(t *testing.T) {
	spy := &spyListRepo{mockProgramRepo: newMockProgramRepo()}
	svc := NewProgramService(spy, discardLogger())

	tests := []struct {
		limit, offset int
		want          repository.ListOptions
	}{
		{0, 0, repository.ListOptions{Limit: DefaultListLimit}},
		{7, 3, repository.ListOptions{Limit: 7, Offset: 3}},
		{1000, -5, repository.ListOptions{Limit: MaxListLimit}},
	}
	for _, tt := range tests {
		_, err := svc.List(context.Background(), tt.limit, tt.offset)
		require.NoError(t, err)
		assert.Equal(t, tt.want, spy.got)
	}
}

func TestProgramUpdate_Owner(t *testing.T) {
	svc, repo := newTestProgramService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, alice, "orig", "print(1);", "d")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, alice, p.ID, "", "print(2);", "new")
	require.NoError(t, err)
	assert.Equal(t, "orig", updated.Name, "empty name keeps the current one")
	assert.Equal(t, "print(2);", updated.Code)

	stored, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "print(2);", stored.Code)
	assert.Equal(t, "new", stored.Description)

	_, err = svc.Update(ctx, alice, p.ID, strings.Repeat("n", MaxProgramNameLength+1), "", "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestProgramUpdate_Ownership(t *testing.T) {
	svc, repo := newTestProgramService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, alice, "mine", "print(1);", "")
	require.NoError(t, err)

	_, err = svc.Update(ctx, bob, p.ID, "stolen", "", "")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = svc.Update(ctx, "", p.ID, "stolen", "", "")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = svc.Update(ctx, alice, "missing", "x", "", "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	stored, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", stored.Name)
}

func TestProgramDelete(t *testing.T) {
	svc, _ := newTestProgramService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, alice, "temp", "", "")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, bob, p.ID), apperror.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, alice, p.ID))
	assert.ErrorIs(t, svc.Delete(ctx, alice, p.ID), apperror.ErrNotFound)
}

func TestClampPage(t *testing.T) {
	assert.Equal(t, repository.ListOptions{Limit: 20}, ClampPage(0, 0))
	assert.Equal(t, repository.ListOptions{Limit: 100, Offset: 10}, ClampPage(101, 10))
}
