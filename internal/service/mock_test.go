package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"aether-service/internal/dispatch"
	"aether-service/internal/domain"
	"aether-service/internal/dto"
	"aether-service/internal/repository"
)

// MockWorkspaceRepository is a mock implementation of WorkspaceRepository
type MockWorkspaceRepository struct {
	ListFunc     func(ctx context.Context) ([]*domain.Workspace, error)
	FindByIDFunc func(ctx context.Context, id string) (*domain.Workspace, error)
	CreateFunc   func(ctx context.Context, workspace *domain.Workspace) error
	UpdateFunc   func(ctx context.Context, id string, fields repository.WorkspaceUpdate) (*domain.Workspace, error)
	DeleteFunc   func(ctx context.Context, id string) (bool, error)
	CountFunc    func(ctx context.Context) (int64, error)
}

func (m *MockWorkspaceRepository) List(ctx context.Context) ([]*domain.Workspace, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *MockWorkspaceRepository) FindByID(ctx context.Context, id string) (*domain.Workspace, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockWorkspaceRepository) Create(ctx context.Context, workspace *domain.Workspace) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, workspace)
	}
	return nil
}

func (m *MockWorkspaceRepository) Update(ctx context.Context, id string, fields repository.WorkspaceUpdate) (*domain.Workspace, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, fields)
	}
	return nil, nil
}

func (m *MockWorkspaceRepository) Delete(ctx context.Context, id string) (bool, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return false, nil
}

func (m *MockWorkspaceRepository) Count(ctx context.Context) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}

// MockArchiver is a testify mock of SnapshotArchiver
type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) Archive(ctx context.Context, workspace *dto.WorkspaceResponse) error {
	args := m.Called(ctx, workspace)
	return args.Error(0)
}

// inlineDispatcher runs tasks synchronously
type inlineDispatcher struct {
	errs []error
}

func (d *inlineDispatcher) Dispatch(name string, task dispatch.Task) error {
	d.errs = append(d.errs, task(context.Background()))
	return nil
}

// MockInterpreter is a mock implementation of CommandInterpreter
type MockInterpreter struct {
	InterpretFunc func(ctx context.Context, message string) (*dto.CommandResponse, error)
}

func (m *MockInterpreter) Interpret(ctx context.Context, message string) (*dto.CommandResponse, error) {
	return m.InterpretFunc(ctx, message)
}
