package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meverapp/media-gateway/internal/appconfig"
	"github.com/meverapp/media-gateway/internal/config"
	"github.com/meverapp/media-gateway/internal/forward"
	"github.com/meverapp/media-gateway/internal/gate"
	"github.com/meverapp/media-gateway/internal/handler"
	"github.com/meverapp/media-gateway/internal/healthcheck"
	"github.com/meverapp/media-gateway/internal/middleware"
	"github.com/meverapp/media-gateway/internal/ratelimit"
	"github.com/meverapp/media-gateway/internal/repository"
	"github.com/meverapp/media-gateway/internal/service"
	"github.com/meverapp/media-gateway/internal/storage"
)

type Server struct {
	router        *gin.Engine
	config        *config.Config
	logger        *zap.Logger
	redis         *storage.RedisClient
	postgres      *storage.Postgres
	limiter       *ratelimit.TieredLimiter
	engine        *forward.Engine
	configStore   *appconfig.Store
	authService   *service.AuthService
	usageService  *service.UsageService
	upstreamCheck *healthcheck.Checker
	httpServer    *http.Server
	stopWorkers   context.CancelFunc
}

func New(cfg *config.Config, logger *zap.Logger, redis *storage.RedisClient, postgres *storage.Postgres) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	var usageRepo *repository.UsageRepository
	if postgres != nil {
		usageRepo = repository.NewUsageRepository(postgres)
	}

	s := &Server{
		router:       router,
		config:       cfg,
		logger:       logger,
		redis:        redis,
		postgres:     postgres,
		limiter:      ratelimit.NewTiered(cfg.RateLimit),
		engine:       forward.New(cfg.Upstream, logger),
		configStore:  appconfig.NewStore(cfg.AppConfig.Path),
		authService:  service.NewAuthService(cfg.Auth),
		usageService: service.NewUsageService(usageRepo, redis, logger, 1000),
		upstreamCheck: healthcheck.NewChecker(healthcheck.Config{
			Target: cfg.Upstream.BaseURL,
		}, logger),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.UsageRecorder(s.usageService))
}

func (s *Server) setupRoutes() {
	downloadHandler := handler.NewDownloadHandler(s.engine)
	searchHandler := handler.NewSearchHandler(s.engine, s.configStore)
	appConfigHandler := handler.NewAppConfigHandler(s.configStore)
	adminHandler := handler.NewAdminHandler(s.authService, s.usageService)

	s.router.GET("/health", s.healthCheck)

	// Admission control covers everything under /api: gate first, then the
	// tiered limiter. Download endpoints additionally pay the burst and
	// sustained tiers.
	api := s.router.Group("/api")
	api.Use(middleware.AccessGate(gate.New(s.config.Access.AllowedApps, s.config.Access.ExposedEndpoints)))
	api.Use(middleware.RateLimit(s.limiter, handler.IsDownloadPath, s.config.RateLimit.SkipFailedRequests))

	for _, endpoint := range handler.DownloadEndpoints {
		api.GET("/"+endpoint, downloadHandler.Handle(endpoint))
	}

	api.GET("/meta", searchHandler.Meta)
	api.GET("/image-search", searchHandler.ImageSearch)

	api.GET("/app-config", appConfigHandler.Get)
	api.POST("/app-config", middleware.RequireAdmin(s.authService), appConfigHandler.Update)
	api.GET("/auth-check", middleware.RequireAdmin(s.authService), adminHandler.AuthCheck)

	admin := s.router.Group("/admin")
	{
		admin.POST("/login", adminHandler.Login)
		admin.GET("/usage/summary", middleware.RequireAdmin(s.authService), adminHandler.UsageSummary)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := true
	if s.redis != nil {
		if err := s.redis.Ping(c.Request.Context()); err != nil {
			redisHealthy = false
			s.logger.Warn("redis health check failed", zap.Error(err))
		}
	}

	dbHealthy := true
	if s.postgres != nil {
		if err := s.postgres.Ping(c.Request.Context()); err != nil {
			dbHealthy = false
			s.logger.Warn("database health check failed", zap.Error(err))
		}
	}

	upstream := s.upstreamCheck.GetStatus()

	status := "healthy"
	statusCode := http.StatusOK
	if !redisHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "media-gateway",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":                   redisHealthy,
			"database":                dbHealthy,
			"upstream_reachable":      upstream.IsHealthy,
			"upstream_key_configured": s.config.Upstream.APIKey != "",
		},
	})
}

func (s *Server) Run(addr string) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWorkers = cancel
	s.limiter.StartJanitors(ctx)
	s.usageService.Start(ctx)
	s.upstreamCheck.Start(ctx)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(s.config.Upstream),
		IdleTimeout:  15 * time.Second,
	}

	s.logger.Info("starting media gateway",
		zap.String("addr", addr),
		zap.String("environment", s.config.Server.Environment))

	return s.httpServer.ListenAndServe()
}

// writeTimeout must outlive a full forwarding cycle: every attempt's
// upstream timeout plus the backoff between attempts, with headroom to
// write the response.
func writeTimeout(cfg config.UpstreamConfig) time.Duration {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 2
	}

	perAttempt := time.Duration(cfg.TimeoutSeconds) * time.Second
	if perAttempt <= 0 {
		perAttempt = 30 * time.Second
	}

	backoff := time.Duration(cfg.BackoffSeconds) * time.Second
	if backoff < 0 {
		backoff = 0
	}

	return time.Duration(attempts)*perAttempt + time.Duration(attempts-1)*backoff + 3*time.Second
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.stopWorkers != nil {
		s.stopWorkers()
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
