package httpservice

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
	"github.com/yourorg/pdf-converter-service/pkg/middleware"
)

// Server wraps a Gin server with configuration and middleware.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	logger     logging.Logger
	port       int
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Logger       logging.Logger
	ServiceName  string
	// Security Configuration
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxBodySize    int64 // Maximum request body size in bytes, 0 disables the limit
	// Alerting, all optional
	SlowRequestThreshold time.Duration
	SlowRouteThresholds  map[string]time.Duration
	Telemetry            middleware.TelemetryClient
	Slack                middleware.SlackClient
}

// AllowedHTTPMethods are the only methods the service answers.
var AllowedHTTPMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions, http.MethodHead}

// NewServer creates a new HTTP server with the provided configuration and handlers.
func NewServer(cfg ServerConfig, handlers ...Handler) (*Server, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	router := NewRouter(cfg, handlers...)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{
		router:     router,
		httpServer: httpServer,
		logger:     cfg.Logger,
		port:       cfg.Port,
	}, nil
}

// NewRouter builds the gin engine with the full middleware chain. Tests use it
// directly with httptest.
func NewRouter(cfg ServerConfig, handlers ...Handler) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(RecoveryMiddleware(cfg.Logger))

	if cfg.MaxBodySize > 0 {
		router.Use(RequestSizeLimitMiddleware(cfg.MaxBodySize, cfg.Logger))
	}

	router.Use(middleware.TracingMiddleware(cfg.Logger, cfg.ServiceName))
	router.Use(middleware.RequestIDMiddleware(middleware.RequestIDHeader))
	router.Use(middleware.ContextLoggerMiddleware(cfg.Logger, cfg.ServiceName))
	router.Use(BodyLoggingMiddleware(cfg.Logger))
	router.Use(SecurityHeadersMiddleware())
	router.Use(HTTPMethodWhitelistMiddleware(AllowedHTTPMethods, cfg.Logger))

	corsCfg := CORSConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: cfg.AllowedMethods,
		AllowedHeaders: cfg.AllowedHeaders,
	}
	if len(corsCfg.AllowedOrigins) == 0 {
		corsCfg.AllowedOrigins = []string{"*"}
	}
	router.Use(CORSMiddleware(corsCfg))

	if cfg.RateLimitRPS > 0 {
		router.Use(RateLimitMiddleware(RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		}))
	}

	if cfg.Telemetry != nil || cfg.Slack != nil {
		router.Use(middleware.SlowRequestMiddleware(middleware.SlowRequestConfig{
			Threshold:       cfg.SlowRequestThreshold,
			RouteThresholds: cfg.SlowRouteThresholds,
			Telemetry:       cfg.Telemetry,
			Slack:           cfg.Slack,
		}, cfg.Logger))
	}

	router.Use(middleware.ErrorHandlerMiddleware(cfg.Logger))

	for _, handler := range handlers {
		handler.Register(router)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// Handler defines an interface for registering HTTP handlers.
type Handler interface {
	Register(router *gin.Engine)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", logging.NewField("port", s.port))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying Gin router.
func (s *Server) Router() *gin.Engine {
	return s.router
}
