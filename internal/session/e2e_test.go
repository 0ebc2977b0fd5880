package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"aether-service/internal/domain"
	"aether-service/internal/relay"
	"aether-service/internal/transport"
)

func startRelay(t *testing.T) (string, *relay.Hub) {
	t.Helper()
	hub := relay.NewHub(zap.NewNop(), nil)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		relay.NewPeer(conn, hub, zap.NewNop(), 0).Start()
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http"), hub
}

func joinRelay(t *testing.T, url string, p Participant) *Store {
	t.Helper()
	client := transport.New(url, transport.Options{BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond})
	store := New(Config{
		Self:        p,
		Broadcaster: client,
		Dispatcher:  inlineDispatcher{},
		CursorRate:  rate.Inf,
	})
	unsubscribe := client.OnMessage(store.HandleRemoteMessage)
	client.Connect()
	store.Start()

	t.Cleanup(func() {
		unsubscribe()
		client.Disconnect()
		store.Close(context.Background())
	})
	require.Eventually(t, func() bool { return client.State() == transport.StateOpen }, 2*time.Second, 5*time.Millisecond)
	return store
}

func TestTwoParticipantsShareWindows(t *testing.T) {
	url, hub := startRelay(t)
	a := joinRelay(t, url, Participant{UserID: "u1", Username: "alice", Color: PickColor(0)})
	b := joinRelay(t, url, Participant{UserID: "u2", Username: "bob", Color: PickColor(1)})
	require.Eventually(t, func() bool { return hub.PeerCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	w1 := domain.Window{
		ID:       "w1",
		Type:     domain.WindowTypeNotes,
		Title:    "N",
		Position: domain.Vec3{0, 0, 0},
		Rotation: domain.Vec3{0, 0, 0},
		Scale:    domain.Vec3{1, 1, 1},
	}
	require.NoError(t, a.InsertWindow(w1))

	require.Eventually(t, func() bool {
		_, ok := b.Window("w1")
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	got, _ := b.Window("w1")
	assert.Equal(t, w1, got)
	assert.Len(t, a.Windows(), 1)

	require.True(t, b.MoveWindow("w1", domain.Vec3{1, 0, 0}))
	require.Eventually(t, func() bool {
		w, ok := a.Window("w1")
		return ok && w.Position == domain.Vec3{1, 0, 0}
	}, 2*time.Second, 5*time.Millisecond)

	require.True(t, a.MoveCursor(domain.Vec3{0.5, 0.5, 0}))
	require.Eventually(t, func() bool { return len(b.RemoteCursors()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cursor := b.RemoteCursors()[0]
	assert.Equal(t, "u1", cursor.ID)
	assert.Equal(t, "alice", cursor.Username)
	assert.Empty(t, a.RemoteCursors())

	require.True(t, b.RemoveWindow("w1"))
	require.Eventually(t, func() bool { return len(a.Windows()) == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "", a.ActiveWindowID())
}
