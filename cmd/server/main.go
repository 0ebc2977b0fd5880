package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"aether-service/internal/client"
	"aether-service/internal/config"
	"aether-service/internal/database"
	"aether-service/internal/discovery"
	"aether-service/internal/dispatch"
	"aether-service/internal/job"
	"aether-service/internal/metrics"
	"aether-service/internal/relay"
	"aether-service/internal/repository"
	"aether-service/internal/router"
	"aether-service/internal/service"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Aether relay",
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Env),
		zap.String("database_driver", cfg.Database.Driver),
		zap.Bool("redis_enabled", cfg.Redis.URL != ""),
		zap.Bool("archive_enabled", cfg.S3.Enabled()),
	)

	// Initialize database; the server keeps running and retries in the background on failure
	dbConfig := database.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	var db *gorm.DB
	db, err = database.New(dbConfig)
	if err != nil {
		logger.Warn("Failed to connect to database on startup, will retry in background", zap.Error(err))
		db = nil
		database.NewAsync(dbConfig, 5*time.Second, logger)
	} else {
		logger.Info("Database connected successfully")
		if err := database.AutoMigrate(db); err != nil {
			logger.Warn("Failed to run database migrations", zap.Error(err))
		}
		database.SetDB(db)
	}

	// Initialize metrics
	m := metrics.New(logger)

	var collector *metrics.DBStatsCollector
	if db != nil {
		collector = metrics.NewDBStatsCollector(db, m, logger, 15*time.Second)
		collector.Start()
	}

	// Initialize Redis (optional)
	redisClient, err := database.InitRedis(cfg.Redis.URL, logger)
	if err != nil {
		logger.Warn("Redis unavailable, relay fan-out stays local to this instance", zap.Error(err))
		redisClient = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Relay hub and optional cross-instance bridge
	hub := relay.NewHub(logger, m)
	if redisClient != nil {
		bridge := relay.NewBridge(redisClient, cfg.Redis.Channel, hub, logger, m)
		hub.SetPublisher(bridge)
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Relay bridge stopped", zap.Error(err))
			}
		}()
		logger.Info("Relay bridge started",
			zap.String("channel", cfg.Redis.Channel),
			zap.String("instance_id", bridge.InstanceID()),
		)
	}

	// Background tasks (snapshot archiving)
	dispatcher := dispatch.New(dispatch.Config{Workers: 2, Logger: logger})

	var archiver service.SnapshotArchiver
	if cfg.S3.Enabled() {
		s3Archiver, err := client.NewS3Archiver(ctx, cfg.S3, logger)
		if err != nil {
			logger.Warn("Failed to initialize S3 archiver, snapshot archiving disabled", zap.Error(err))
		} else {
			archiver = s3Archiver
			logger.Info("S3 archiver initialized", zap.String("bucket", cfg.S3.Bucket))
		}
	}

	var interpreter service.CommandInterpreter
	if cfg.Command.UpstreamURL != "" {
		interpreter = client.NewCommandClient(cfg.Command.UpstreamURL, cfg.Command.Timeout, logger, m)
	}

	// Scheduled jobs
	statsJob := job.NewWorkspaceStatsJob(repository.NewWorkspaceRepository(db), m, logger)
	scheduler, err := job.Schedule(cfg.Jobs.StatsSchedule, statsJob)
	if err != nil {
		logger.Warn("Workspace stats job disabled", zap.Error(err))
	} else {
		scheduler.Start()
	}

	// Setup router with all dependencies
	r := router.Setup(router.Config{
		Env:            cfg.Server.Env,
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		Metrics:        m,
		Gatherer:       prometheus.DefaultGatherer,
		Hub:            hub,
		Archiver:       archiver,
		Dispatcher:     dispatcher,
		Interpreter:    interpreter,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxMessageSize: cfg.Relay.MaxMessageSize,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Aether relay started successfully", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// LAN advertisement (optional)
	var advertiser *discovery.Advertiser
	if cfg.Discovery.Enabled {
		advertiser, err = discovery.Advertise(cfg.Discovery.Instance, cfg.Server.Port, logger)
		if err != nil {
			logger.Warn("mDNS advertisement disabled", zap.Error(err))
		}
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if advertiser != nil {
		advertiser.Shutdown()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	cancel()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("Background tasks did not finish", zap.Error(err))
	}
	if collector != nil {
		collector.Stop()
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if current := database.GetDB(); current != nil {
		if err := database.Close(current); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}

	logger.Info("Server exited gracefully")
}

// initLogger initializes the zap logger with the specified level
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      zapLevel == zapcore.DebugLevel,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return config.Build()
}
