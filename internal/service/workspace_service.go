package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"aether-service/internal/dispatch"
	"aether-service/internal/domain"
	"aether-service/internal/dto"
	"aether-service/internal/metrics"
	"aether-service/internal/repository"
	"aether-service/internal/response"
)

// WorkspaceService defines the interface for workspace business logic
type WorkspaceService interface {
	ListWorkspaces(ctx context.Context) ([]*dto.WorkspaceResponse, error)
	GetWorkspace(ctx context.Context, id string) (*dto.WorkspaceResponse, error)
	CreateWorkspace(ctx context.Context, req *dto.CreateWorkspaceRequest) (*dto.WorkspaceResponse, error)
	UpdateWorkspace(ctx context.Context, id string, req *dto.UpdateWorkspaceRequest) (*dto.WorkspaceResponse, error)
	DeleteWorkspace(ctx context.Context, id string) error
}

// SnapshotArchiver stores a copy of a saved workspace outside the database
type SnapshotArchiver interface {
	Archive(ctx context.Context, workspace *dto.WorkspaceResponse) error
}

// TaskDispatcher runs best-effort work in the background
type TaskDispatcher interface {
	Dispatch(name string, task dispatch.Task) error
}

type workspaceServiceImpl struct {
	repo       repository.WorkspaceRepository
	archiver   SnapshotArchiver
	dispatcher TaskDispatcher
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewWorkspaceService creates a new WorkspaceService. archiver and dispatcher may be nil.
func NewWorkspaceService(
	repo repository.WorkspaceRepository,
	archiver SnapshotArchiver,
	dispatcher TaskDispatcher,
	m *metrics.Metrics,
	logger *zap.Logger,
) WorkspaceService {
	return &workspaceServiceImpl{
		repo:       repo,
		archiver:   archiver,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
	}
}

func (s *workspaceServiceImpl) ListWorkspaces(ctx context.Context) ([]*dto.WorkspaceResponse, error) {
	workspaces, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.storageError("Failed to fetch workspaces", err)
	}

	responses := make([]*dto.WorkspaceResponse, 0, len(workspaces))
	for _, ws := range workspaces {
		resp, err := dto.NewWorkspaceResponse(ws)
		if err != nil {
			s.logger.Warn("Skipping workspace with unreadable state",
				zap.String("workspace_id", ws.ID),
				zap.Error(err),
			)
			continue
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func (s *workspaceServiceImpl) GetWorkspace(ctx context.Context, id string) (*dto.WorkspaceResponse, error) {
	ws, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("Workspace not found", id)
		}
		return nil, s.storageError("Failed to fetch workspace", err)
	}
	return s.toResponse(ws)
}

func (s *workspaceServiceImpl) CreateWorkspace(ctx context.Context, req *dto.CreateWorkspaceRequest) (*dto.WorkspaceResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, response.NewValidationError("Invalid workspace data", "name is required")
	}
	if req.WindowsState == nil {
		return nil, response.NewValidationError("Invalid workspace data", "windowsState is required")
	}
	if err := req.WindowsState.Validate(); err != nil {
		return nil, response.NewValidationError("Invalid workspace data", err.Error())
	}

	ws := &domain.Workspace{Name: name}
	if err := ws.SetState(*req.WindowsState); err != nil {
		return nil, response.NewValidationError("Invalid workspace data", err.Error())
	}

	if err := s.repo.Create(ctx, ws); err != nil {
		return nil, s.storageError("Failed to create workspace", err)
	}

	s.metrics.IncrementWorkspaceCreated()
	s.logger.Info("Workspace created",
		zap.String("workspace_id", ws.ID),
		zap.Int("windows", len(req.WindowsState.Windows)),
	)

	resp, err := s.toResponse(ws)
	if err != nil {
		return nil, err
	}
	s.archive(resp)
	return resp, nil
}

func (s *workspaceServiceImpl) UpdateWorkspace(ctx context.Context, id string, req *dto.UpdateWorkspaceRequest) (*dto.WorkspaceResponse, error) {
	var fields repository.WorkspaceUpdate

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, response.NewValidationError("Invalid workspace data", "name must not be empty")
		}
		fields.Name = &name
	}
	if req.WindowsState != nil {
		if err := req.WindowsState.Validate(); err != nil {
			return nil, response.NewValidationError("Invalid workspace data", err.Error())
		}
		var encoded domain.Workspace
		if err := encoded.SetState(*req.WindowsState); err != nil {
			return nil, response.NewValidationError("Invalid workspace data", err.Error())
		}
		fields.WindowsState = encoded.WindowsState
	}

	ws, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("Workspace not found", id)
		}
		return nil, s.storageError("Failed to update workspace", err)
	}

	resp, err := s.toResponse(ws)
	if err != nil {
		return nil, err
	}
	if req.WindowsState != nil {
		s.archive(resp)
	}
	return resp, nil
}

func (s *workspaceServiceImpl) DeleteWorkspace(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return s.storageError("Failed to delete workspace", err)
	}
	if !deleted {
		return response.NewNotFoundError("Workspace not found", id)
	}
	s.logger.Info("Workspace deleted", zap.String("workspace_id", id))
	return nil
}

func (s *workspaceServiceImpl) toResponse(ws *domain.Workspace) (*dto.WorkspaceResponse, error) {
	resp, err := dto.NewWorkspaceResponse(ws)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Stored workspace state is unreadable", err.Error())
	}
	return resp, nil
}

func (s *workspaceServiceImpl) storageError(message string, err error) error {
	if errors.Is(err, repository.ErrDatabaseUnavailable) {
		return response.NewAppError(response.ErrCodeUnavailable, "Database unavailable", err.Error())
	}
	return response.NewAppError(response.ErrCodeInternal, message, err.Error())
}

// archive copies the snapshot in the background; failures are only logged
func (s *workspaceServiceImpl) archive(resp *dto.WorkspaceResponse) {
	if s.archiver == nil || s.dispatcher == nil {
		return
	}
	snapshot := *resp
	err := s.dispatcher.Dispatch("archive-snapshot", func(ctx context.Context) error {
		if err := s.archiver.Archive(ctx, &snapshot); err != nil {
			s.metrics.RecordSnapshotArchived("error")
			return err
		}
		s.metrics.RecordSnapshotArchived("success")
		return nil
	})
	if err != nil {
		s.logger.Warn("Snapshot archive not scheduled",
			zap.String("workspace_id", resp.ID),
			zap.Error(err),
		)
	}
}
