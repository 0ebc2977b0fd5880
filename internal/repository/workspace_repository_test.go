package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"aether-service/internal/domain"
)

func setupWorkspaceTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Workspace{}))
	return db
}

func newWorkspace(t *testing.T, name string, windows ...domain.Window) *domain.Workspace {
	ws := &domain.Workspace{Name: name}
	require.NoError(t, ws.SetState(domain.WindowsState{Windows: windows}))
	return ws
}

func TestWorkspaceRepository_CreateAssignsID(t *testing.T) {
	repo := NewWorkspaceRepository(setupWorkspaceTestDB(t))
	ctx := context.Background()

	ws := newWorkspace(t, "Desk", domain.Window{ID: "w1", Type: domain.WindowTypeNotes})
	require.NoError(t, repo.Create(ctx, ws))
	assert.Len(t, ws.ID, 36)

	found, err := repo.FindByID(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "Desk", found.Name)

	state, err := found.State()
	require.NoError(t, err)
	require.Len(t, state.Windows, 1)
	assert.Equal(t, "w1", state.Windows[0].ID)
}

func TestWorkspaceRepository_FindByIDMissing(t *testing.T) {
	repo := NewWorkspaceRepository(setupWorkspaceTestDB(t))

	_, err := repo.FindByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestWorkspaceRepository_ListNewestFirst(t *testing.T) {
	db := setupWorkspaceTestDB(t)
	repo := NewWorkspaceRepository(db)
	ctx := context.Background()

	older := newWorkspace(t, "older")
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newWorkspace(t, "newer")))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Name)
	assert.Equal(t, "older", list[1].Name)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestWorkspaceRepository_UpdatePartial(t *testing.T) {
	repo := NewWorkspaceRepository(setupWorkspaceTestDB(t))
	ctx := context.Background()

	ws := newWorkspace(t, "Desk")
	ws.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, ws))
	before := ws.UpdatedAt

	name := "Renamed"
	updated, err := repo.Update(ctx, ws.ID, WorkspaceUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.True(t, updated.UpdatedAt.After(before))

	state, err := updated.State()
	require.NoError(t, err)
	assert.Empty(t, state.Windows)
}

func TestWorkspaceRepository_UpdateMissing(t *testing.T) {
	repo := NewWorkspaceRepository(setupWorkspaceTestDB(t))
	name := "x"

	_, err := repo.Update(context.Background(), "missing", WorkspaceUpdate{Name: &name})
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestWorkspaceRepository_Delete(t *testing.T) {
	repo := NewWorkspaceRepository(setupWorkspaceTestDB(t))
	ctx := context.Background()

	ws := newWorkspace(t, "Desk")
	require.NoError(t, repo.Create(ctx, ws))

	deleted, err := repo.Delete(ctx, ws.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, ws.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestWorkspaceRepository_NoConnection(t *testing.T) {
	repo := NewWorkspaceRepository(nil)

	_, err := repo.List(context.Background())
	assert.ErrorIs(t, err, ErrDatabaseUnavailable)
}
