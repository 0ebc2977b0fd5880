package dto

import (
	"time"

	"aether-service/internal/domain"
)

// CreateWorkspaceRequest is the body of POST /api/workspaces
type CreateWorkspaceRequest struct {
	Name         string               `json:"name"`
	WindowsState *domain.WindowsState `json:"windowsState"`
}

// UpdateWorkspaceRequest is the partial body of PATCH /api/workspaces/:id.
// Nil fields are left unchanged.
type UpdateWorkspaceRequest struct {
	Name         *string              `json:"name,omitempty"`
	WindowsState *domain.WindowsState `json:"windowsState,omitempty"`
}

// IsEmpty reports whether the request changes nothing
func (r UpdateWorkspaceRequest) IsEmpty() bool {
	return r.Name == nil && r.WindowsState == nil
}

// WorkspaceResponse is the API representation of a saved workspace
type WorkspaceResponse struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	WindowsState domain.WindowsState `json:"windowsState"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// NewWorkspaceResponse converts a stored workspace into its API representation
func NewWorkspaceResponse(w *domain.Workspace) (*WorkspaceResponse, error) {
	state, err := w.State()
	if err != nil {
		return nil, err
	}
	if state.Windows == nil {
		state.Windows = []domain.Window{}
	}
	return &WorkspaceResponse{
		ID:           w.ID,
		Name:         w.Name,
		WindowsState: state,
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
	}, nil
}
