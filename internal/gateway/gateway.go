// Package gateway is the client side of workspace persistence.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"aether-service/internal/domain"
	"aether-service/internal/dto"
)

// ErrWorkspaceNotFound is returned by Get and Update for an unknown id
var ErrWorkspaceNotFound = errors.New("workspace not found")

// WorkspaceGateway stores and retrieves named window-layout snapshots
type WorkspaceGateway interface {
	List(ctx context.Context) ([]dto.WorkspaceResponse, error)
	Get(ctx context.Context, id string) (*dto.WorkspaceResponse, error)
	Create(ctx context.Context, name string, state domain.WindowsState) (*dto.WorkspaceResponse, error)
	Update(ctx context.Context, id string, patch dto.UpdateWorkspaceRequest) (*dto.WorkspaceResponse, error)
	// Delete reports false when no workspace had the id
	Delete(ctx context.Context, id string) (bool, error)
}

// APIError is a non-success response from the persistence service
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("persistence api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("persistence api: status %d", e.Status)
}
