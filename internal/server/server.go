package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexapi/nexapi/internal/analytics"
	"github.com/nexapi/nexapi/internal/config"
	"github.com/nexapi/nexapi/internal/crypto"
	"github.com/nexapi/nexapi/internal/handler"
	"github.com/nexapi/nexapi/internal/mailer"
	"github.com/nexapi/nexapi/internal/middleware"
	"github.com/nexapi/nexapi/internal/ratelimit"
	"github.com/nexapi/nexapi/internal/repository"
	"github.com/nexapi/nexapi/internal/service"
	"github.com/nexapi/nexapi/internal/stats"
	"github.com/nexapi/nexapi/internal/storage"
	"github.com/nexapi/nexapi/internal/tester"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router     *gin.Engine
	config     *config.Config
	logger     *logrus.Logger
	redis      *storage.RedisClient
	postgres   *storage.Postgres
	httpServer *http.Server

	auth      *handler.AuthHandler
	apis      *handler.APIHandler
	endpoints *handler.EndpointHandler
	keys      *handler.APIKeyHandler
	tests     *handler.TestHandler
	analytics *handler.AnalyticsHandler

	authService *service.AuthService
	limiter     *ratelimit.SlidingWindowLimiter
}

func New(cfg *config.Config, logger *logrus.Logger, postgres *storage.Postgres, redis *storage.RedisClient) (*Server, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	codec, err := crypto.NewCodec(cfg.Crypto.Secret)
	if err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepository(postgres)
	apiRepo := repository.NewAPIRepository(postgres)
	endpointRepo := repository.NewEndpointRepository(postgres)
	keyRepo := repository.NewAPIKeyRepository(postgres)
	logRepo := repository.NewLogRepository(postgres)

	var mail mailer.Mailer = mailer.NewNoop(logger)
	if cfg.Mail.SendGridKey != "" {
		mail = mailer.NewSendGrid(cfg.Mail.SendGridKey, cfg.Mail.FromName, cfg.Mail.FromAddress)
	}

	authService := service.NewAuthService(userRepo, mail, logger, cfg.Auth.JWTSecret, cfg.Auth.ExpiryHours)
	keyService := service.NewAPIKeyService(keyRepo, redis)
	apiService := service.NewAPIService(apiRepo, keyService, codec)
	endpointService := service.NewEndpointService(apiRepo, endpointRepo)

	aggregator := stats.NewAggregator(postgres, logger)
	builder := tester.NewBuilder(codec)
	dispatcher := tester.NewDispatcher(apiRepo, endpointRepo, keyService, builder, aggregator, cfg.Tester.Timeout(), logger)
	reader := analytics.NewReader(logRepo)

	limiter := ratelimit.NewSlidingWindowLimiter(redis, cfg.RateLimit.RequestsPerMinute, time.Minute)

	s := &Server{
		router:      gin.New(),
		config:      cfg,
		logger:      logger,
		redis:       redis,
		postgres:    postgres,
		auth:        handler.NewAuthHandler(authService),
		apis:        handler.NewAPIHandler(apiService),
		endpoints:   handler.NewEndpointHandler(endpointService),
		keys:        handler.NewAPIKeyHandler(keyService, apiRepo),
		tests:       handler.NewTestHandler(dispatcher),
		analytics:   handler.NewAnalyticsHandler(reader, apiRepo),
		authService: authService,
		limiter:     limiter,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.CORS())
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/signup", s.auth.Signup)
		auth.POST("/login", s.auth.Login)
		auth.POST("/logout", s.auth.Logout)
		auth.GET("/me", middleware.RequireAuth(s.authService), s.auth.Me)
	}

	apis := v1.Group("/apis")
	{
		apis.GET("", s.apis.ListPublic)
		apis.GET("/my", middleware.RequireAuth(s.authService), s.apis.ListMine)
		apis.POST("", middleware.RequireAuth(s.authService), s.apis.Create)
		apis.GET("/:apiId", middleware.OptionalAuth(s.authService), s.apis.Get)
		apis.PATCH("/:apiId", middleware.RequireAuth(s.authService), s.apis.Update)
		apis.DELETE("/:apiId", middleware.RequireAuth(s.authService), s.apis.Delete)

		apis.GET("/:apiId/endpoints", s.endpoints.List)
		apis.POST("/:apiId/endpoints", middleware.RequireAuth(s.authService), s.endpoints.Create)
		apis.GET("/:apiId/endpoints/:endpointId", s.endpoints.Get)
		apis.PATCH("/:apiId/endpoints/:endpointId", middleware.RequireAuth(s.authService), s.endpoints.Update)
		apis.DELETE("/:apiId/endpoints/:endpointId", middleware.RequireAuth(s.authService), s.endpoints.Delete)

		apis.POST("/:apiId/endpoints/:endpointId/test",
			middleware.OptionalAuth(s.authService),
			middleware.RateLimit(s.limiter),
			s.tests.Run)

		apis.POST("/:apiId/apikey", middleware.RequireAuth(s.authService), s.keys.Generate)
		apis.GET("/:apiId/apikey", middleware.RequireAuth(s.authService), s.keys.Get)
		apis.DELETE("/:apiId/apikey", middleware.RequireAuth(s.authService), s.keys.Delete)

		apis.GET("/:apiId/analytics/traffic", middleware.RequireAuth(s.authService), s.analytics.Traffic)
		apis.GET("/:apiId/analytics/users", middleware.RequireAuth(s.authService), s.analytics.Users)
		apis.GET("/:apiId/analytics/summary", middleware.RequireAuth(s.authService), s.analytics.Summary)
		apis.GET("/:apiId/endpoints/:endpointId/logs", middleware.RequireAuth(s.authService), s.analytics.EndpointLogs)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := true
	if err := s.redis.Ping(c.Request.Context()); err != nil {
		redisHealthy = false
		s.logger.WithError(err).Warn("redis health check failed")
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		s.logger.WithError(err).Warn("database health check failed")
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !redisHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "nexapi",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisHealthy,
			"database": dbHealthy,
		},
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.WithFields(logrus.Fields{
		"addr":        addr,
		"environment": s.config.Server.Environment,
	}).Info("starting server")

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
