package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aether-service/internal/domain"
	"aether-service/internal/protocol"
	"aether-service/internal/relay"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newRelay(t *testing.T) (*httptest.Server, *relay.Hub) {
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
	return server, hub
}

func fastOptions() Options {
	return Options{BaseDelay: 10 * time.Millisecond, MaxDelay: 80 * time.Millisecond}
}

type collector struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (c *collector) handle(m protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
}

func (c *collector) all() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Message(nil), c.msgs...)
}

func TestClient_SendWhileDisconnectedIsDropped(t *testing.T) {
	c := New("ws://127.0.0.1:1/ws", fastOptions())

	err := c.Send(&protocol.Cursor{UserID: "u1"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClient_ExchangesMessagesThroughRelay(t *testing.T) {
	server, hub := newRelay(t)

	a := New(wsURL(server), fastOptions())
	b := New(wsURL(server), fastOptions())
	defer a.Disconnect()
	defer b.Disconnect()

	first, second := &collector{}, &collector{}
	b.OnMessage(first.handle)
	b.OnMessage(second.handle)

	a.Connect()
	b.Connect()
	require.Eventually(t, func() bool {
		return a.State() == StateOpen && b.State() == StateOpen && hub.PeerCount() == 2
	}, waitFor, tick)

	move := &protocol.WindowMove{UserID: "u1", WindowID: "w1", Position: domain.Vec3{1, 0, 0}}
	require.NoError(t, a.Send(move))

	require.Eventually(t, func() bool {
		return len(first.all()) == 1 && len(second.all()) == 1
	}, waitFor, tick)
	assert.Equal(t, move, first.all()[0])
	assert.Equal(t, move, second.all()[0])
}

func TestClient_MalformedPayloadNeverReachesHandlers(t *testing.T) {
	server, hub := newRelay(t)

	c := New(wsURL(server), fastOptions())
	defer c.Disconnect()
	got := &collector{}
	c.OnMessage(got.handle)
	c.Connect()

	raw, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	require.NoError(t, err)
	defer raw.Close()

	require.Eventually(t, func() bool { return c.State() == StateOpen && hub.PeerCount() == 2 }, waitFor, tick)

	require.NoError(t, raw.WriteMessage(websocket.TextMessage, []byte(`{"type":"cursor"`)))
	require.NoError(t, raw.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport","userId":"u9"}`)))
	require.NoError(t, raw.WriteMessage(websocket.TextMessage, []byte(`{"type":"cursor","userId":"u9","position":[1,2,3]}`)))

	require.Eventually(t, func() bool { return len(got.all()) == 1 }, waitFor, tick)
	assert.Equal(t, "u9", got.all()[0].Sender())
	assert.Equal(t, StateOpen, c.State())
}

func TestClient_UnsubscribeStopsDelivery(t *testing.T) {
	server, hub := newRelay(t)

	a := New(wsURL(server), fastOptions())
	b := New(wsURL(server), fastOptions())
	defer a.Disconnect()
	defer b.Disconnect()

	kept, dropped := &collector{}, &collector{}
	b.OnMessage(kept.handle)
	unsubscribe := b.OnMessage(dropped.handle)
	unsubscribe()
	unsubscribe()

	a.Connect()
	b.Connect()
	require.Eventually(t, func() bool { return hub.PeerCount() == 2 && a.State() == StateOpen }, waitFor, tick)

	require.NoError(t, a.Send(&protocol.Cursor{UserID: "u1", Position: domain.Vec3{0, 0, 0}}))
	require.Eventually(t, func() bool { return len(kept.all()) == 1 }, waitFor, tick)
	assert.Empty(t, dropped.all())
}

func TestClient_ReconnectsAfterServerDrop(t *testing.T) {
	var connections int32
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if atomic.AddInt32(&connections, 1) == 1 {
			conn.Close()
			return
		}
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	defer server.Close()

	c := New(wsURL(server), fastOptions())
	defer c.Disconnect()
	c.Connect()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&connections) == 2 && c.State() == StateOpen
	}, waitFor, tick)
}

func TestClient_RetriesWhileRelayIsDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(server)
	server.Close()

	c := New(url, fastOptions())
	c.Connect()

	require.Eventually(t, func() bool { return c.State() == StateReconnecting }, waitFor, tick)

	c.Disconnect()
	assert.Equal(t, StateDisconnected, c.State())

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClient_DisconnectThenConnect(t *testing.T) {
	server, hub := newRelay(t)

	c := New(wsURL(server), fastOptions())
	c.Connect()
	require.Eventually(t, func() bool { return c.State() == StateOpen }, waitFor, tick)

	c.Disconnect()
	require.Eventually(t, func() bool { return hub.PeerCount() == 0 }, waitFor, tick)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 0, hub.PeerCount())

	c.Connect()
	defer c.Disconnect()
	require.Eventually(t, func() bool { return c.State() == StateOpen && hub.PeerCount() == 1 }, waitFor, tick)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "unknown", State(42).String())
}
