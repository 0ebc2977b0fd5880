package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"aether-service/internal/domain"
)

var (
	// ErrMalformed marks payloads that are not a well-formed relay message
	ErrMalformed = errors.New("malformed relay message")
	// ErrUnknownType marks payloads with a type tag this client does not know
	ErrUnknownType = errors.New("unknown relay message type")
)

type envelope struct {
	Type MessageType `json:"type"`
}

type windowRef struct {
	ID string `json:"id"`
}

type cursorWire struct {
	UserID   string       `json:"userId"`
	Username string       `json:"username"`
	Color    string       `json:"color"`
	Position *domain.Vec3 `json:"position"`
}

type windowMoveWire struct {
	UserID   string       `json:"userId"`
	WindowID string       `json:"windowId"`
	Position *domain.Vec3 `json:"position"`
}

type windowActionWire struct {
	UserID string           `json:"userId"`
	Action WindowActionKind `json:"action"`
	Window *domain.Window   `json:"window"`
}

// Encode serializes a message into its tagged JSON envelope
func Encode(m Message) ([]byte, error) {
	switch msg := m.(type) {
	case *Cursor:
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			*Cursor
		}{TypeCursor, msg})
	case *WindowMove:
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			*WindowMove
		}{TypeWindowMove, msg})
	case *WindowAction:
		if msg.Action == ActionRemove {
			return json.Marshal(struct {
				Type   MessageType      `json:"type"`
				UserID string           `json:"userId"`
				Action WindowActionKind `json:"action"`
				Window windowRef        `json:"window"`
			}{TypeWindowAction, msg.UserID, msg.Action, windowRef{ID: msg.Window.ID}})
		}
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			*WindowAction
		}{TypeWindowAction, msg})
	case nil:
		return nil, fmt.Errorf("%w: nil message", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, m)
	}
}

// Decode parses one relay payload. Any error means the payload must be dropped.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeCursor:
		return decodeCursor(data)
	case TypeWindowMove:
		return decodeWindowMove(data)
	case TypeWindowAction:
		return decodeWindowAction(data)
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodeCursor(data []byte) (Message, error) {
	var w cursorWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: cursor: %v", ErrMalformed, err)
	}
	if w.UserID == "" {
		return nil, fmt.Errorf("%w: cursor without userId", ErrMalformed)
	}
	if w.Position == nil {
		return nil, fmt.Errorf("%w: cursor without position", ErrMalformed)
	}
	return &Cursor{
		UserID:   w.UserID,
		Username: w.Username,
		Color:    w.Color,
		Position: *w.Position,
	}, nil
}

func decodeWindowMove(data []byte) (Message, error) {
	var w windowMoveWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: window_move: %v", ErrMalformed, err)
	}
	if w.UserID == "" || w.WindowID == "" {
		return nil, fmt.Errorf("%w: window_move without userId or windowId", ErrMalformed)
	}
	if w.Position == nil {
		return nil, fmt.Errorf("%w: window_move without position", ErrMalformed)
	}
	return &WindowMove{UserID: w.UserID, WindowID: w.WindowID, Position: *w.Position}, nil
}

func decodeWindowAction(data []byte) (Message, error) {
	var w windowActionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: window_action: %v", ErrMalformed, err)
	}
	if w.UserID == "" {
		return nil, fmt.Errorf("%w: window_action without userId", ErrMalformed)
	}
	if w.Window == nil || w.Window.ID == "" {
		return nil, fmt.Errorf("%w: window_action without window id", ErrMalformed)
	}

	switch w.Action {
	case ActionAdd:
		if !w.Window.Type.IsValid() {
			return nil, fmt.Errorf("%w: window type %q", ErrMalformed, w.Window.Type)
		}
		return NewAddWindow(w.UserID, *w.Window), nil
	case ActionRemove:
		return NewRemoveWindow(w.UserID, w.Window.ID), nil
	default:
		return nil, fmt.Errorf("%w: window action %q", ErrMalformed, w.Action)
	}
}
