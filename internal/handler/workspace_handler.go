package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aether-service/internal/dto"
	"aether-service/internal/response"
	"aether-service/internal/service"
)

type WorkspaceHandler struct {
	workspaceService service.WorkspaceService
	logger           *zap.Logger
}

func NewWorkspaceHandler(workspaceService service.WorkspaceService, logger *zap.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaceService: workspaceService,
		logger:           logger,
	}
}

// ListWorkspaces returns every saved workspace, newest first
// @Router /api/workspaces [get]
func (h *WorkspaceHandler) ListWorkspaces(c *gin.Context) {
	workspaces, err := h.workspaceService.ListWorkspaces(c.Request.Context())
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, workspaces)
}

// GetWorkspace returns one workspace or 404
// @Router /api/workspaces/{id} [get]
func (h *WorkspaceHandler) GetWorkspace(c *gin.Context) {
	workspace, err := h.workspaceService.GetWorkspace(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, workspace)
}

// CreateWorkspace saves a new named snapshot
// @Router /api/workspaces [post]
func (h *WorkspaceHandler) CreateWorkspace(c *gin.Context) {
	var req dto.CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid workspace data")
		return
	}

	workspace, err := h.workspaceService.CreateWorkspace(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusCreated, workspace)
}

// UpdateWorkspace applies a partial update and refreshes updatedAt
// @Router /api/workspaces/{id} [patch]
func (h *WorkspaceHandler) UpdateWorkspace(c *gin.Context) {
	var req dto.UpdateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid workspace data")
		return
	}

	workspace, err := h.workspaceService.UpdateWorkspace(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, workspace)
}

// DeleteWorkspace removes a workspace
// @Router /api/workspaces/{id} [delete]
func (h *WorkspaceHandler) DeleteWorkspace(c *gin.Context) {
	if err := h.workspaceService.DeleteWorkspace(c.Request.Context(), c.Param("id")); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
