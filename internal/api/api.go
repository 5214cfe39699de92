// Package api provides the HTTP API for the scan collector service.
package api

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/config"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/metrics"
)

const serviceName = "scan-collector"

// Listener is the report listener as seen by the API.
type Listener interface {
	Addr() net.Addr
	ActiveConnections() int
}

// ScanStatus reports whether the scanning engine is running.
type ScanStatus interface {
	IsRunning() bool
}

// Server represents the HTTP API server.
type Server struct {
	config   config.ServerConfig
	listener Listener
	scanner  ScanStatus
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger
	router   *gin.Engine
}

// New creates a new API server. scan may be nil when the engine is disabled.
func New(cfg config.ServerConfig, listener Listener, scan ScanStatus, m *metrics.Metrics, logger *zap.SugaredLogger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:   cfg,
		listener: listener,
		scanner:  scan,
		metrics:  m,
		logger:   logger,
		router:   gin.New(),
	}

	s.setupRoutes()
	return s
}

// Router returns the gin router.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	// Health endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/ready", s.readyHandler)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.statusHandler)
		v1.GET("/scan/status", s.scanStatusHandler)
	}

	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		c.Next()

		s.logger.Debugw("Request completed",
			"path", path,
			"status", c.Writer.Status(),
			"method", c.Request.Method,
		)
	}
}

// Health check handler
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
	})
}

// Readiness follows the report listener: not ready until it is bound.
func (s *Server) readyHandler(c *gin.Context) {
	if s.listener == nil || s.listener.Addr() == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not_ready",
			"service": serviceName,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"service": serviceName,
	})
}

func (s *Server) statusHandler(c *gin.Context) {
	resp := StatusResponse{Service: serviceName}
	if s.listener != nil {
		if addr := s.listener.Addr(); addr != nil {
			resp.Listening = true
			resp.Address = addr.String()
		}
		resp.ActiveConnections = s.listener.ActiveConnections()
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) scanStatusHandler(c *gin.Context) {
	if s.scanner == nil {
		c.JSON(http.StatusOK, ScanStatusResponse{Status: "disabled"})
		return
	}

	running := s.scanner.IsRunning()
	status := "idle"
	if running {
		status = "running"
	}

	c.JSON(http.StatusOK, ScanStatusResponse{
		Status:  status,
		Running: running,
	})
}
