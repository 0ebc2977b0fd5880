package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aether-service/internal/dto"
	"aether-service/internal/response"
	"aether-service/internal/service"
)

type CommandHandler struct {
	commandService service.CommandService
	logger         *zap.Logger
}

func NewCommandHandler(commandService service.CommandService, logger *zap.Logger) *CommandHandler {
	return &CommandHandler{
		commandService: commandService,
		logger:         logger,
	}
}

// ProcessCommand interprets a natural language command.
// Both outcomes are bare bodies: the interpreted action, or {"error": "..."}.
// @Router /api/ai/command [post]
func (h *CommandHandler) ProcessCommand(c *gin.Context) {
	var req dto.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.CommandErrorResponse{Error: "Message is required"})
		return
	}

	result, err := h.commandService.ProcessCommand(c.Request.Context(), req.Message)
	if err != nil {
		h.sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *CommandHandler) sendError(c *gin.Context, err error) {
	var appErr *response.AppError
	if !errors.As(err, &appErr) {
		h.logger.Error("Unhandled command error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.CommandErrorResponse{Error: "Failed to process command"})
		return
	}

	statusCode := mapErrorCodeToHTTPStatus(appErr.Code)
	if statusCode >= http.StatusInternalServerError {
		h.logger.Error("Command error",
			zap.String("code", appErr.Code),
			zap.String("details", appErr.Details),
		)
	}
	c.JSON(statusCode, dto.CommandErrorResponse{Error: appErr.Message})
}
