// Package relay fans every inbound payload out to all other connected peers.
//
// The relay never decodes payloads and never echoes a payload to the peer
// that sent it. Delivery is best effort: a peer that cannot accept a payload
// is logged and skipped.
package relay

import (
	"sync"

	"go.uber.org/zap"

	"aether-service/internal/metrics"
)

// Sink is anything that can accept an outbound payload
type Sink interface {
	Enqueue(payload []byte) error
}

// Publisher forwards locally received payloads to other relay instances
type Publisher interface {
	Publish(payload []byte)
}

// Hub is the set of active peers
type Hub struct {
	mu        sync.RWMutex
	peers     map[Sink]struct{}
	publisher Publisher

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewHub creates an empty hub. m may be nil.
func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		peers:   make(map[Sink]struct{}),
		logger:  logger,
		metrics: m,
	}
}

// SetPublisher enables cross-instance fan-out
func (h *Hub) SetPublisher(p Publisher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publisher = p
}

// Register adds a peer to the active set
func (h *Hub) Register(p Sink) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	count := len(h.peers)
	h.mu.Unlock()

	h.metrics.RelayPeerConnected()
	h.logger.Info("Relay peer registered", zap.Int("peers", count))
}

// Unregister removes a peer; unknown peers are ignored
func (h *Hub) Unregister(p Sink) {
	h.mu.Lock()
	_, ok := h.peers[p]
	delete(h.peers, p)
	count := len(h.peers)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.metrics.RelayPeerDisconnected()
	h.logger.Info("Relay peer unregistered", zap.Int("peers", count))
}

// PeerCount returns the number of active peers
func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Receive handles a payload read from a local peer: local fan-out, then cross-instance publish
func (h *Hub) Receive(from Sink, payload []byte) {
	h.metrics.RecordRelayMessage(metrics.SourceLocal)
	h.Broadcast(from, payload)

	h.mu.RLock()
	publisher := h.publisher
	h.mu.RUnlock()
	if publisher != nil {
		publisher.Publish(payload)
	}
}

// Deliver hands a payload from another instance to every local peer
func (h *Hub) Deliver(payload []byte) {
	h.metrics.RecordRelayMessage(metrics.SourceBridge)
	h.Broadcast(nil, payload)
}

// Broadcast enqueues payload on every active peer except from and returns the
// number of peers that accepted it. The peer set is snapshotted first, so
// peers joining or leaving during the call do not affect it.
func (h *Hub) Broadcast(from Sink, payload []byte) int {
	h.mu.RLock()
	targets := make([]Sink, 0, len(h.peers))
	for p := range h.peers {
		if p != from {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, p := range targets {
		if err := p.Enqueue(payload); err != nil {
			h.metrics.RecordFanoutFailure()
			h.logger.Warn("Failed to queue payload for peer", zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}
