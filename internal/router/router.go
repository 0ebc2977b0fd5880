package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"aether-service/internal/handler"
	"aether-service/internal/metrics"
	"aether-service/internal/middleware"
	"aether-service/internal/relay"
	"aether-service/internal/repository"
	"aether-service/internal/service"
)

// Config holds router dependencies
type Config struct {
	Env            string
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Hub            *relay.Hub
	Archiver       service.SnapshotArchiver
	Dispatcher     service.TaskDispatcher
	Interpreter    service.CommandInterpreter
	AllowedOrigins string
	MaxMessageSize int64
}

// Setup builds the HTTP engine: operational endpoints, the relay websocket,
// workspace CRUD and the command endpoint
func Setup(cfg Config) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.AllowedOrigins == "" {
		cfg.AllowedOrigins = "*"
	}
	if cfg.Hub == nil {
		cfg.Hub = relay.NewHub(cfg.Logger, cfg.Metrics)
	}

	r := gin.New()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(cfg.Metrics))

	// Initialize repositories
	workspaceRepo := repository.NewWorkspaceRepository(cfg.DB)

	// Initialize services
	workspaceService := service.NewWorkspaceService(workspaceRepo, cfg.Archiver, cfg.Dispatcher, cfg.Metrics, cfg.Logger)
	commandService := service.NewCommandService(cfg.Interpreter, cfg.Logger)

	// Initialize handlers
	workspaceHandler := handler.NewWorkspaceHandler(workspaceService, cfg.Logger)
	commandHandler := handler.NewCommandHandler(commandService, cfg.Logger)
	healthHandler := handler.NewHealthHandler(cfg.DB, cfg.Redis, cfg.Hub)
	relayHandler := handler.NewRelayHandler(cfg.Hub, cfg.MaxMessageSize, cfg.Logger)

	// Operational endpoints
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	} else {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Real-time relay
	r.GET("/ws", relayHandler.ServeWS)

	api := r.Group("/api")
	{
		workspaces := api.Group("/workspaces")
		{
			workspaces.GET("", workspaceHandler.ListWorkspaces)
			workspaces.POST("", workspaceHandler.CreateWorkspace)
			workspaces.GET("/:id", workspaceHandler.GetWorkspace)
			workspaces.PATCH("/:id", workspaceHandler.UpdateWorkspace)
			workspaces.DELETE("/:id", workspaceHandler.DeleteWorkspace)
		}

		api.POST("/ai/command", commandHandler.ProcessCommand)
	}

	return r
}
