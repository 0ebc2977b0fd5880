package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"aether-service/internal/relay"
)

// RelayHandler upgrades /ws requests and attaches them to the hub
type RelayHandler struct {
	hub            *relay.Hub
	logger         *zap.Logger
	maxMessageSize int64
	upgrader       websocket.Upgrader
}

func NewRelayHandler(hub *relay.Hub, maxMessageSize int64, logger *zap.Logger) *RelayHandler {
	return &RelayHandler{
		hub:            hub,
		logger:         logger,
		maxMessageSize: maxMessageSize,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *RelayHandler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", c.ClientIP()),
			zap.Error(err),
		)
		return
	}

	peer := relay.NewPeer(conn, h.hub, h.logger, h.maxMessageSize)
	h.logger.Debug("Relay peer connected",
		zap.String("peer_id", peer.ID()),
		zap.String("remote_addr", c.ClientIP()),
	)
	peer.Start()
}
