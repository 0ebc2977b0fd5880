package domain

import (
	"encoding/json"
	"fmt"
)

// WindowType is the kind of content a spatial window hosts
type WindowType string

const (
	WindowTypeTerminal WindowType = "terminal"
	WindowTypeNotes    WindowType = "notes"
	WindowTypeBrowser  WindowType = "browser"
	WindowTypeSettings WindowType = "settings"
)

// IsValid reports whether t is one of the known window types
func (t WindowType) IsValid() bool {
	switch t {
	case WindowTypeTerminal, WindowTypeNotes, WindowTypeBrowser, WindowTypeSettings:
		return true
	}
	return false
}

// Vec3 is a world-space 3-tuple (position, rotation or scale)
type Vec3 [3]float64

// UnmarshalJSON accepts exactly three numbers.
func (v *Vec3) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("vec3 needs 3 components, got %d", len(raw))
	}
	copy(v[:], raw)
	return nil
}

// Window is the shared spatial object synchronized between participants
type Window struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Content  string     `json:"content"`
	Position Vec3       `json:"position"`
	Rotation Vec3       `json:"rotation"`
	Scale    Vec3       `json:"scale"`
	Type     WindowType `json:"type"`
}

// UnmarshalJSON decodes a window; non-string content is dropped rather than rejected.
func (w *Window) UnmarshalJSON(data []byte) error {
	type alias Window
	aux := struct {
		*alias
		Content json.RawMessage `json:"content"`
	}{alias: (*alias)(w)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	w.Content = ""
	if len(aux.Content) > 0 && aux.Content[0] == '"' {
		if err := json.Unmarshal(aux.Content, &w.Content); err != nil {
			return err
		}
	}
	return nil
}

// WindowsState is the persisted snapshot of a participant's window list and focus
type WindowsState struct {
	Windows        []Window `json:"windows"`
	ActiveWindowID *string  `json:"activeWindowId"`
}

// Validate checks the snapshot for missing ids and unknown window types.
// Repeated ids are kept: a participant's list may hold them after concurrent remote adds.
func (s WindowsState) Validate() error {
	for _, w := range s.Windows {
		if w.ID == "" {
			return fmt.Errorf("window id is required")
		}
		if !w.Type.IsValid() {
			return fmt.Errorf("window %q has unknown type %q", w.ID, w.Type)
		}
	}
	return nil
}
