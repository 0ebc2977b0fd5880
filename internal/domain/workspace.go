package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Workspace is a named, persisted snapshot of a window layout
type Workspace struct {
	ID           string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name         string         `gorm:"type:text;not null" json:"name"`
	WindowsState datatypes.JSON `gorm:"not null" json:"windowsState"`
	CreatedAt    time.Time      `gorm:"not null;index:idx_workspaces_created_at" json:"createdAt"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updatedAt"`
}

// TableName specifies the table name for Workspace
func (Workspace) TableName() string {
	return "workspaces"
}

// BeforeCreate assigns the server-side id when the caller did not set one
func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// State decodes the stored windows snapshot
func (w *Workspace) State() (WindowsState, error) {
	var state WindowsState
	if len(w.WindowsState) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(w.WindowsState, &state); err != nil {
		return state, err
	}
	return state, nil
}

// SetState encodes a windows snapshot into the JSON column
func (w *Workspace) SetState(state WindowsState) error {
	if state.Windows == nil {
		state.Windows = []Window{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	w.WindowsState = datatypes.JSON(data)
	return nil
}
