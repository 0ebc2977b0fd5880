package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"aether-service/internal/dto"
	"aether-service/internal/response"
)

// NotConfiguredMessage is returned when no interpreter upstream is set
const NotConfiguredMessage = "AI assistant is not configured. Set COMMAND_UPSTREAM_URL to enable intelligent commands."

// CommandInterpreter turns a natural language message into an action
type CommandInterpreter interface {
	Interpret(ctx context.Context, message string) (*dto.CommandResponse, error)
}

// CommandService defines the interface for command interpretation
type CommandService interface {
	ProcessCommand(ctx context.Context, message string) (*dto.CommandResponse, error)
}

type commandServiceImpl struct {
	interpreter CommandInterpreter
	logger      *zap.Logger
}

// NewCommandService creates a CommandService. A nil interpreter answers every
// command with a "not configured" message.
func NewCommandService(interpreter CommandInterpreter, logger *zap.Logger) CommandService {
	return &commandServiceImpl{interpreter: interpreter, logger: logger}
}

func (s *commandServiceImpl) ProcessCommand(ctx context.Context, message string) (*dto.CommandResponse, error) {
	if strings.TrimSpace(message) == "" {
		return nil, response.NewValidationError("Message is required", "")
	}

	if s.interpreter == nil {
		return &dto.CommandResponse{Action: dto.CommandMessage, Message: NotConfiguredMessage}, nil
	}

	result, err := s.interpreter.Interpret(ctx, message)
	if err != nil {
		s.logger.Error("Command interpretation failed", zap.Error(err))
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to process command", err.Error())
	}

	if result.Action == "" {
		result.Action = dto.CommandMessage
	}
	if result.Message == "" {
		result.Message = "Command processed."
	}
	return result, nil
}
