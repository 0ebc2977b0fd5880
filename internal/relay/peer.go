package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// DefaultMaxMessageSize bounds one inbound frame. Window content is an
	// opaque string of any size, so the bound only guards against runaway frames.
	DefaultMaxMessageSize = 16 << 20
)

// ErrPeerClosed is returned by Enqueue once the peer has gone away
var ErrPeerClosed = errors.New("relay peer closed")

// Peer is one websocket connection attached to a hub. Its outbox is unbounded:
// a slow reader accumulates queued payloads rather than being dropped.
type Peer struct {
	id     string
	conn   *websocket.Conn
	hub    *Hub
	logger *zap.Logger

	maxMessageSize int64

	mu     sync.Mutex
	outbox deque.Deque[[]byte]
	closed bool

	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewPeer wraps an upgraded connection. maxMessageSize <= 0 uses DefaultMaxMessageSize.
func NewPeer(conn *websocket.Conn, hub *Hub, logger *zap.Logger, maxMessageSize int64) *Peer {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	id := uuid.NewString()
	return &Peer{
		id:             id,
		conn:           conn,
		hub:            hub,
		logger:         logger.With(zap.String("peer_id", id)),
		maxMessageSize: maxMessageSize,
		notify:         make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
}

// ID returns the connection id used in logs
func (p *Peer) ID() string {
	return p.id
}

// Start registers the peer and runs its pumps until the connection ends
func (p *Peer) Start() {
	p.hub.Register(p)
	go p.writePump()
	go p.readPump()
}

// Enqueue appends a payload to the outbox without blocking
func (p *Peer) Enqueue(payload []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPeerClosed
	}
	p.outbox.PushBack(payload)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of queued payloads
func (p *Peer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.Len()
}

func (p *Peer) shutdown() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *Peer) drain() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	batch := make([][]byte, 0, p.outbox.Len())
	for p.outbox.Len() > 0 {
		batch = append(batch, p.outbox.PopFront())
	}
	return batch
}

func (p *Peer) readPump() {
	defer func() {
		p.hub.Unregister(p)
		p.shutdown()
		p.conn.Close()
	}()

	p.conn.SetReadLimit(p.maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				p.logger.Warn("Relay peer read error", zap.Error(err))
			} else {
				p.logger.Debug("Relay peer closed", zap.Error(err))
			}
			return
		}
		p.hub.Receive(p, payload)
	}
}

func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case <-p.notify:
			for _, payload := range p.drain() {
				p.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := p.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					p.logger.Debug("Relay peer write failed", zap.Error(err))
					p.shutdown()
					return
				}
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.shutdown()
				return
			}
		case <-p.done:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			p.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
