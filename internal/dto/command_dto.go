package dto

// Command actions understood by clients
const (
	CommandCreateWindow = "create_window"
	CommandRemoveWindow = "remove_window"
	CommandChangeTheme  = "change_theme"
	CommandListWindows  = "list_windows"
	CommandMessage      = "message"
	CommandUnknown      = "unknown"
)

// CommandRequest is the body of POST /api/ai/command
type CommandRequest struct {
	Message string `json:"message"`
}

// CommandResponse is the interpreted action for a natural language command
type CommandResponse struct {
	Action      string `json:"action"`
	WindowType  string `json:"windowType,omitempty"`
	WindowTitle string `json:"windowTitle,omitempty"`
	Content     string `json:"content,omitempty"`
	Theme       string `json:"theme,omitempty"`
	Message     string `json:"message"`
}

// CommandErrorResponse is the body of a failed POST /api/ai/command
type CommandErrorResponse struct {
	Error string `json:"error"`
}
