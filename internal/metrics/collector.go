package metrics

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBStatsCollector samples the connection pool into the DB gauges
type DBStatsCollector struct {
	db      *gorm.DB
	metrics *Metrics
	logger  *zap.Logger
	ticker  *time.Ticker
	done    chan struct{}
}

// NewDBStatsCollector creates a collector sampling every interval
func NewDBStatsCollector(db *gorm.DB, metrics *Metrics, logger *zap.Logger, interval time.Duration) *DBStatsCollector {
	return &DBStatsCollector{
		db:      db,
		metrics: metrics,
		logger:  logger,
		ticker:  time.NewTicker(interval),
		done:    make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *DBStatsCollector) Start() {
	go func() {
		c.collect()
		for {
			select {
			case <-c.ticker.C:
				c.collect()
			case <-c.done:
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *DBStatsCollector) Stop() {
	c.ticker.Stop()
	close(c.done)
}

func (c *DBStatsCollector) collect() {
	sqlDB, err := c.db.DB()
	if err != nil {
		c.logger.Warn("Failed to read database pool stats", zap.Error(err))
		return
	}
	c.metrics.UpdateDBStats(sqlDB.Stats())
}
