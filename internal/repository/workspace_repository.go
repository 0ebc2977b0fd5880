package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"aether-service/internal/database"
	"aether-service/internal/domain"
)

// ErrDatabaseUnavailable is returned while the database connection is still being established
var ErrDatabaseUnavailable = errors.New("database unavailable")

// WorkspaceRepository defines the interface for workspace data access
type WorkspaceRepository interface {
	List(ctx context.Context) ([]*domain.Workspace, error)
	FindByID(ctx context.Context, id string) (*domain.Workspace, error)
	Create(ctx context.Context, workspace *domain.Workspace) error
	Update(ctx context.Context, id string, fields WorkspaceUpdate) (*domain.Workspace, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// WorkspaceUpdate lists the columns a partial update may change. Nil fields are kept.
type WorkspaceUpdate struct {
	Name         *string
	WindowsState []byte
}

type workspaceRepositoryImpl struct {
	db *gorm.DB
}

// NewWorkspaceRepository creates a new WorkspaceRepository.
// A nil db defers to the connection published by database.SetDB.
func NewWorkspaceRepository(db *gorm.DB) WorkspaceRepository {
	return &workspaceRepositoryImpl{db: db}
}

func (r *workspaceRepositoryImpl) conn(ctx context.Context) (*gorm.DB, error) {
	db := r.db
	if db == nil {
		db = database.GetDB()
	}
	if db == nil {
		return nil, ErrDatabaseUnavailable
	}
	return db.WithContext(ctx), nil
}

// List returns every workspace, most recently created first
func (r *workspaceRepositoryImpl) List(ctx context.Context) ([]*domain.Workspace, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	var workspaces []*domain.Workspace
	if err := db.Order("created_at DESC").Find(&workspaces).Error; err != nil {
		return nil, err
	}
	return workspaces, nil
}

// FindByID finds a workspace by its ID
func (r *workspaceRepositoryImpl) FindByID(ctx context.Context, id string) (*domain.Workspace, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	var workspace domain.Workspace
	if err := db.Where("id = ?", id).First(&workspace).Error; err != nil {
		return nil, err
	}
	return &workspace, nil
}

// Create inserts a workspace; the id is assigned when empty
func (r *workspaceRepositoryImpl) Create(ctx context.Context, workspace *domain.Workspace) error {
	db, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return db.Create(workspace).Error
}

// Update applies the non-nil fields, refreshes updated_at and returns the stored row.
// gorm.ErrRecordNotFound is returned when no row has the id.
func (r *workspaceRepositoryImpl) Update(ctx context.Context, id string, fields WorkspaceUpdate) (*domain.Workspace, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if fields.Name != nil {
		updates["name"] = *fields.Name
	}
	if fields.WindowsState != nil {
		updates["windows_state"] = fields.WindowsState
	}

	result := db.Model(&domain.Workspace{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return r.FindByID(ctx, id)
}

// Delete removes a workspace and reports whether a row existed
func (r *workspaceRepositoryImpl) Delete(ctx context.Context, id string) (bool, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return false, err
	}

	result := db.Where("id = ?", id).Delete(&domain.Workspace{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Count returns the number of stored workspaces
func (r *workspaceRepositoryImpl) Count(ctx context.Context) (int64, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&domain.Workspace{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
