package session

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"aether-service/internal/domain"
)

// Palette is the fixed set of cursor colors handed out to participants
var Palette = []string{
	"#ff6b6b",
	"#4ecdc4",
	"#ffe66d",
	"#a78bfa",
	"#f472b6",
	"#60a5fa",
	"#34d399",
	"#fb923c",
}

// Participant identifies the local user for the lifetime of the process
type Participant struct {
	UserID   string
	Username string
	Color    string
}

// NewParticipant generates a fresh user id and picks a palette color
func NewParticipant(username string) Participant {
	return Participant{
		UserID:   uuid.NewString(),
		Username: username,
		Color:    PickColor(rand.IntN(len(Palette))),
	}
}

// PickColor maps any integer onto the palette
func PickColor(n int) string {
	return Palette[(n%len(Palette)+len(Palette))%len(Palette)]
}

// RemoteCursor is the last known pointer of another participant
type RemoteCursor struct {
	ID         string
	Username   string
	Color      string
	Position   domain.Vec3
	LastUpdate time.Time
}
