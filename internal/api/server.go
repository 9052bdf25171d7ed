// Package api exposes the analysis and patient registry operations over
// HTTP, plus a websocket channel for live dashboard refresh.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/neurodetect-server/internal/domain"
	"github.com/neurodetect-server/internal/middleware"
	"github.com/neurodetect-server/internal/service"
)

// Server represents the HTTP server
type Server struct {
	cfg          domain.ServerConfig
	orchestrator *service.Orchestrator
	results      domain.ResultStore
	registry     domain.PatientRegistry
	reports      *reportCache
	hub          *Hub
	log          *logrus.Logger
	router       *gin.Engine
	server       *http.Server
}

// NewServer creates a new HTTP server instance and wires the dashboard hub
// to the orchestrator's success notifications.
func NewServer(cfg domain.ServerConfig, orchestrator *service.Orchestrator, results domain.ResultStore, registry domain.PatientRegistry, logLevel string, logger *logrus.Logger) *Server {
	// Set Gin mode based on environment
	if logLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	if cfg.RateLimit > 0 {
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}
	if cfg.MaxUploadMB > 0 {
		router.MaxMultipartMemory = cfg.MaxUploadMB << 20
	}

	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		results:      results,
		registry:     registry,
		reports:      newReportCache(),
		hub:          NewHub(logger),
		log:          logger,
		router:       router,
	}

	// Each successful submission invalidates the cached report and pushes
	// fresh summary stats to connected dashboards.
	orchestrator.Subscribe(func(record *domain.AnalysisRecord) {
		s.reports.invalidate()
		s.broadcastSummary(context.Background())
	})

	// Setup routes
	s.setupRoutes()

	return s
}

// Router exposes the gin engine, used by handler tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.POST("/analysis", s.handleSubmitAnalysis)
		api.GET("/results/latest", s.handleLatestResult)
		api.GET("/patients", s.handleListPatients)
		api.DELETE("/patients/:id", s.handleDeletePatient)
		api.GET("/patients/export", s.handleExportPatients)
		api.GET("/reports", s.handleReport)
		api.GET("/reports/export", s.handleExportAnalysis)
	}

	s.router.GET("/ws/dashboard", s.handleDashboardSocket)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}

// broadcastSummary recomputes the headline stats and pushes them to every
// connected dashboard.
func (s *Server) broadcastSummary(ctx context.Context) {
	records, err := s.registry.Query(ctx, "", domain.StatusFilterAll)
	if err != nil {
		s.log.WithError(err).Warn("Could not compute summary for dashboard broadcast")
		return
	}
	s.hub.Broadcast(dashboardUpdate{
		Type:    "summary",
		Summary: service.ComputeSummary(records),
	})
}
