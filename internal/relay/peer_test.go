package relay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRelayServer(t *testing.T, hub *Hub) *httptest.Server {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewPeer(conn, hub, zap.NewNop(), 0).Start()
	}))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForPeers(t *testing.T, hub *Hub, n int) {
	require.Eventually(t, func() bool { return hub.PeerCount() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestPeer_FanoutWithoutEcho(t *testing.T) {
	hub, _ := newTestHub()
	server := newRelayServer(t, hub)

	a := dial(t, server)
	b := dial(t, server)
	c := dial(t, server)
	waitForPeers(t, hub, 3)

	payload := `{"type":"window_move","userId":"u1","windowId":"w1","position":[1,0,0]}`
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(payload)))

	for _, conn := range []*websocket.Conn{b, c} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, got, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, payload, string(got))
	}

	a.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, _, err := a.ReadMessage()
	assert.Error(t, err, "sender must not receive its own payload")
}

func TestPeer_PreservesPerConnectionOrder(t *testing.T) {
	hub, _ := newTestHub()
	server := newRelayServer(t, hub)

	a := dial(t, server)
	b := dial(t, server)
	waitForPeers(t, hub, 2)

	for _, p := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(p)))
	}

	var got []string
	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 5; i++ {
		_, msg, err := b.ReadMessage()
		require.NoError(t, err)
		got = append(got, string(msg))
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, got)
}

func TestPeer_DisconnectUnregisters(t *testing.T) {
	hub, _ := newTestHub()
	server := newRelayServer(t, hub)

	a := dial(t, server)
	b := dial(t, server)
	waitForPeers(t, hub, 2)

	require.NoError(t, b.Close())
	waitForPeers(t, hub, 1)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("still alive")))
}

func TestPeer_EnqueueAfterShutdown(t *testing.T) {
	hub, _ := newTestHub()
	p := &Peer{notify: make(chan struct{}, 1), done: make(chan struct{}), hub: hub, logger: zap.NewNop()}

	require.NoError(t, p.Enqueue([]byte("a")))
	require.NoError(t, p.Enqueue([]byte("b")))
	assert.Equal(t, 2, p.Pending())
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, p.drain())

	p.shutdown()
	assert.ErrorIs(t, p.Enqueue([]byte("c")), ErrPeerClosed)
}

func TestPeer_RelaysLargeWindowContent(t *testing.T) {
	hub, _ := newTestHub()
	server := newRelayServer(t, hub)

	a := dial(t, server)
	b := dial(t, server)
	waitForPeers(t, hub, 2)

	payload := `{"type":"window_action","userId":"u1","action":"add","window":{"id":"w1","title":"Notes",` +
		`"content":"` + strings.Repeat("x", 70*1024) + `",` +
		`"position":[0,0,0],"rotation":[0,0,0],"scale":[1,1,1],"type":"notes"}}`
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(payload)))

	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err := b.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
	assert.Equal(t, 2, hub.PeerCount(), "sender must stay connected")
}
