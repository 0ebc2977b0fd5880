package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"aether-service/internal/database"
	"aether-service/internal/relay"
)

type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
	hub   *relay.Hub
}

// NewHealthHandler creates a HealthHandler. A nil db falls back to the
// connection published by database.SetDB.
func NewHealthHandler(db *gorm.DB, redis *redis.Client, hub *relay.Hub) *HealthHandler {
	return &HealthHandler{
		db:    db,
		redis: redis,
		hub:   hub,
	}
}

func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"service": "aether-relay",
	}
	if h.hub != nil {
		body["peers"] = h.hub.PeerCount()
	}
	c.JSON(http.StatusOK, body)
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	db := h.db
	if db == nil {
		db = database.GetDB()
	}
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  "database not connected",
		})
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  "database error",
		})
		return
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  "database not reachable",
		})
		return
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  "redis not reachable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}
