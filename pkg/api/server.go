// Package api provides the control plane's HTTP and WebSocket surface.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/4sgupta828/oats/pkg/config"
	"github.com/4sgupta828/oats/pkg/services"
)

// Server is the control-plane HTTP server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        *config.ServerConfig
	svc        *services.InvestigationService
	metrics    *Metrics
}

// NewServer wires the router. The caller owns the service's lifecycle.
func NewServer(cfg *config.ServerConfig, svc *services.InvestigationService, metrics *Metrics) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		router:  router,
		cfg:     cfg,
		svc:     svc,
		metrics: metrics,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", s.metrics.Handler())

	s.router.POST("/investigate", s.handleInvestigate)
	s.router.GET("/investigations", s.handleListInvestigations)
	s.router.GET("/investigations/:id", s.handleGetInvestigation)
	s.router.GET("/investigations/:id/logs", s.handleInvestigationLogs)
	s.router.DELETE("/investigations/:id", s.handleDeleteInvestigation)

	s.router.GET("/ws", s.handleWebSocket)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("control plane listening", "addr", s.cfg.ListenAddr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// requestLogger is a minimal slog access logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
