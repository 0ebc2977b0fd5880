// Package transport keeps one logical websocket connection to the relay alive.
//
// Lost connections are retried with exponential backoff until Disconnect is
// called. Inbound payloads are decoded once and fanned in to every registered
// handler; payloads that fail to decode are logged and dropped.
package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"aether-service/internal/protocol"
)

const writeWait = 10 * time.Second

// ErrNotConnected is returned by Send while the connection is not open
var ErrNotConnected = errors.New("transport not connected")

// Handler receives every decoded inbound message
type Handler func(msg protocol.Message)

// Options configures a Client. Zero values use the defaults.
type Options struct {
	Logger    *zap.Logger
	Dialer    *websocket.Dialer
	Header    http.Header
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Client is a reconnecting relay connection. It is safe for concurrent use.
type Client struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
	logger *zap.Logger

	mu            sync.Mutex
	state         State
	conn          *websocket.Conn
	wantConnected bool
	timer         *time.Timer
	cancelDial    context.CancelFunc
	backoff       *Backoff
	gen           uint64

	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   map[uint64]Handler
	nextID     uint64
}

// New creates a disconnected client for the relay at url
func New(url string, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}

	return &Client{
		url:      url,
		dialer:   opts.Dialer,
		header:   opts.Header,
		logger:   opts.Logger.With(zap.String("relay_url", url)),
		state:    StateDisconnected,
		backoff:  NewBackoff(opts.BaseDelay, opts.MaxDelay),
		handlers: make(map[uint64]Handler),
	}
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts connecting and keeps the connection alive until Disconnect.
// Calling it while connecting or open does nothing.
func (c *Client) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wantConnected = true
	if c.state == StateOpen || c.state == StateConnecting {
		return
	}
	c.stopTimerLocked()
	c.startDialLocked()
}

// Disconnect closes the connection, cancels any pending dial or reconnect
// and suppresses reconnects until the next Connect
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.wantConnected = false
	c.stopTimerLocked()
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	c.gen++
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		conn.Close()
		c.logger.Info("Disconnected from relay")
	}
}

// Send encodes and writes msg. Messages are dropped with ErrNotConnected
// unless the connection is open; nothing is queued.
func (c *Client) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()
	if !open || conn == nil {
		c.logger.Debug("Dropping outbound message, relay not open", zap.String("type", string(msg.Type())))
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// OnMessage registers h for every inbound message and returns its unsubscribe func
func (c *Client) OnMessage(h Handler) func() {
	c.handlersMu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = h
	c.handlersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.handlersMu.Lock()
			delete(c.handlers, id)
			c.handlersMu.Unlock()
		})
	}
}

func (c *Client) startDialLocked() {
	c.state = StateConnecting
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	go c.dial(ctx, gen)
}

func (c *Client) dial(ctx context.Context, gen uint64) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)

	c.mu.Lock()
	if gen != c.gen || !c.wantConnected {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}

	if err != nil {
		c.state = StateDisconnected
		delay := c.scheduleReconnectLocked()
		c.mu.Unlock()
		c.logger.Info("Relay dial failed", zap.Duration("retry_in", delay), zap.Error(err))
		return
	}

	c.conn = conn
	c.state = StateOpen
	c.backoff.Reset()
	c.mu.Unlock()

	c.logger.Info("Connected to relay")
	go c.readLoop(conn, gen)
}

func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, gen, err)
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn("Dropping malformed relay payload", zap.Error(err))
			continue
		}
		c.deliver(msg)
	}
}

func (c *Client) handleClose(conn *websocket.Conn, gen uint64, cause error) {
	conn.Close()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateDisconnected
	var delay time.Duration
	if c.wantConnected {
		delay = c.scheduleReconnectLocked()
	}
	c.mu.Unlock()

	c.logger.Info("Relay connection lost", zap.Duration("retry_in", delay), zap.Error(cause))
}

// scheduleReconnectLocked arms the single reconnect timer and returns its delay
func (c *Client) scheduleReconnectLocked() time.Duration {
	if c.timer != nil {
		return 0
	}
	delay := c.backoff.Next()
	c.state = StateReconnecting
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.timer != t {
			return
		}
		c.timer = nil
		if !c.wantConnected || c.state != StateReconnecting {
			return
		}
		c.startDialLocked()
	})
	c.timer = t
	return delay
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) deliver(msg protocol.Message) {
	c.handlersMu.RLock()
	handlers := make([]Handler, 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.handlersMu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}
