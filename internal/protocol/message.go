// Package protocol defines the relay wire messages.
//
// Every message is a UTF-8 JSON object tagged by "type" and carrying the
// sender's "userId". The relay never looks inside; only clients decode.
package protocol

import "aether-service/internal/domain"

// MessageType is the wire tag of a relay message
type MessageType string

const (
	TypeCursor       MessageType = "cursor"
	TypeWindowMove   MessageType = "window_move"
	TypeWindowAction MessageType = "window_action"
)

// WindowActionKind is the structural change carried by a window_action message
type WindowActionKind string

const (
	ActionAdd    WindowActionKind = "add"
	ActionRemove WindowActionKind = "remove"
)

// Visitor applies each concrete message kind. Adding a kind to the protocol
// adds a method here, so every consumer has to handle it to compile.
type Visitor interface {
	VisitCursor(m *Cursor)
	VisitWindowMove(m *WindowMove)
	VisitWindowAction(m *WindowAction)
}

// Message is the closed set of relay messages
type Message interface {
	Type() MessageType
	Sender() string
	Accept(v Visitor)
}

// Cursor announces a participant's pointer position
type Cursor struct {
	UserID   string      `json:"userId"`
	Username string      `json:"username"`
	Color    string      `json:"color"`
	Position domain.Vec3 `json:"position"`
}

func (m *Cursor) Type() MessageType { return TypeCursor }
func (m *Cursor) Sender() string    { return m.UserID }
func (m *Cursor) Accept(v Visitor)  { v.VisitCursor(m) }

// WindowMove overwrites the position of one window
type WindowMove struct {
	UserID   string      `json:"userId"`
	WindowID string      `json:"windowId"`
	Position domain.Vec3 `json:"position"`
}

func (m *WindowMove) Type() MessageType { return TypeWindowMove }
func (m *WindowMove) Sender() string    { return m.UserID }
func (m *WindowMove) Accept(v Visitor)  { v.VisitWindowMove(m) }

// WindowAction adds a full window or removes one by id.
// For ActionRemove only Window.ID is meaningful.
type WindowAction struct {
	UserID string           `json:"userId"`
	Action WindowActionKind `json:"action"`
	Window domain.Window    `json:"window"`
}

func (m *WindowAction) Type() MessageType { return TypeWindowAction }
func (m *WindowAction) Sender() string    { return m.UserID }
func (m *WindowAction) Accept(v Visitor)  { v.VisitWindowAction(m) }

// NewAddWindow builds the add message for a freshly created window
func NewAddWindow(userID string, w domain.Window) *WindowAction {
	return &WindowAction{UserID: userID, Action: ActionAdd, Window: w}
}

// NewRemoveWindow builds the remove message for a window id
func NewRemoveWindow(userID, windowID string) *WindowAction {
	return &WindowAction{UserID: userID, Action: ActionRemove, Window: domain.Window{ID: windowID}}
}
