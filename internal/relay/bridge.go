package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"aether-service/internal/metrics"
)

const (
	publishTimeout = 2 * time.Second
	// publishQueueSize bounds payloads waiting for redis; beyond it payloads skip the bridge
	publishQueueSize = 1024
)

// bridgeEnvelope wraps a payload with the id of the instance that received it
type bridgeEnvelope struct {
	Origin  string `json:"origin"`
	Payload []byte `json:"payload"`
}

// Bridge joins relay instances over a redis pub/sub channel, so peers
// connected to different instances still see each other's payloads.
type Bridge struct {
	client     *redis.Client
	channel    string
	instanceID string
	hub        *Hub
	logger     *zap.Logger
	metrics    *metrics.Metrics

	outbox chan []byte
}

// NewBridge creates a bridge for hub on channel
func NewBridge(client *redis.Client, channel string, hub *Hub, logger *zap.Logger, m *metrics.Metrics) *Bridge {
	return &Bridge{
		client:     client,
		channel:    channel,
		instanceID: uuid.NewString(),
		hub:        hub,
		logger:     logger,
		metrics:    m,
		outbox:     make(chan []byte, publishQueueSize),
	}
}

// InstanceID identifies this relay on the channel
func (b *Bridge) InstanceID() string {
	return b.instanceID
}

// Publish queues a locally received payload for the other instances without
// blocking the caller. Payloads leave in the order they were queued.
func (b *Bridge) Publish(payload []byte) {
	select {
	case b.outbox <- payload:
	default:
		b.metrics.RecordBridgeError("overflow")
		b.logger.Warn("Relay bridge queue full, payload stays local",
			zap.String("channel", b.channel),
			zap.Int("queued", len(b.outbox)),
		)
	}
}

func (b *Bridge) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-b.outbox:
			b.send(ctx, payload)
		}
	}
}

func (b *Bridge) send(ctx context.Context, payload []byte) {
	msg, err := json.Marshal(bridgeEnvelope{Origin: b.instanceID, Payload: payload})
	if err != nil {
		b.metrics.RecordBridgeError("encode")
		b.logger.Warn("Failed to encode bridge envelope", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := b.client.Publish(ctx, b.channel, msg).Err(); err != nil {
		b.metrics.RecordBridgeError("publish")
		b.logger.Warn("Failed to publish to relay bridge",
			zap.String("channel", b.channel),
			zap.Error(err),
		)
	}
}

// Run publishes queued payloads, subscribes to the channel and delivers
// foreign payloads until ctx is done
func (b *Bridge) Run(ctx context.Context) error {
	go b.publishLoop(ctx)

	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info("Relay bridge subscribed",
		zap.String("channel", b.channel),
		zap.String("instance_id", b.instanceID),
	)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(msg.Payload)
		}
	}
}

// handle delivers one channel message unless this instance published it
func (b *Bridge) handle(raw string) bool {
	var env bridgeEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		b.metrics.RecordBridgeError("decode")
		b.logger.Warn("Dropping malformed bridge envelope", zap.Error(err))
		return false
	}
	if env.Origin == b.instanceID {
		return false
	}
	b.hub.Deliver(env.Payload)
	return true
}
