// Package api hosts the planning server's HTTP surface: planning-run
// generation and lifecycle, scenario inspection and comparison, replan
// drafting and commit, and the productivity analytics endpoints. Handlers
// translate between JSON payloads and the planner engine; no scheduling
// logic lives here.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zainhoda/sij-manager-sub003/pkg/api/middleware"
	"github.com/zainhoda/sij-manager-sub003/pkg/logger"
	"github.com/zainhoda/sij-manager-sub003/pkg/planerr"
	"github.com/zainhoda/sij-manager-sub003/pkg/planner"
	"github.com/zainhoda/sij-manager-sub003/pkg/repository"
	"github.com/zainhoda/sij-manager-sub003/pkg/storage/artifact"
)

// Server encapsulates the HTTP API server and its dependencies.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	engine    *planner.Engine
	repo      repository.Repository
	validator *middleware.Validator
	authCfg   *middleware.AuthConfig
	artifacts artifact.Store
}

// Config holds API server configuration.
type Config struct {
	Port   string
	Engine *planner.Engine
	Repo   repository.Repository

	// Auth is optional; nil disables authentication entirely (trusted
	// network deployments and tests).
	Auth *middleware.AuthConfig

	// Artifacts is optional; nil disables the scenario export endpoint.
	Artifacts artifact.Store
}

// NewServer creates a new API server with all dependencies.
func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware stack (order matters)
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.TracingMiddleware("planner-api"))
	router.Use(requestLogger())
	router.Use(middleware.RateLimitMiddleware())
	router.Use(middleware.BodySizeLimitMiddleware(1 << 20)) // 1MB body limit

	s := &Server{
		router:    router,
		engine:    cfg.Engine,
		repo:      cfg.Repo,
		validator: middleware.NewValidator(middleware.DefaultValidatorConfig()),
		authCfg:   cfg.Auth,
		artifacts: cfg.Artifacts,
	}

	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	logger.Info("starting API server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying gin engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// registerRoutes sets up all API endpoints.
func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	read := gin.HandlerFunc(func(c *gin.Context) { c.Next() })
	write := read
	if s.authCfg != nil {
		read = middleware.OptionalAuth(*s.authCfg)
		write = middleware.AuthMiddleware(*s.authCfg)
	}

	api := s.router.Group("/api")
	{
		planning := api.Group("/planning")
		{
			planning.POST("/runs", write, s.createPlanningRun)
			planning.GET("/runs", read, s.listPlanningRuns)
			planning.GET("/runs/active", read, s.getActiveRun)
			planning.GET("/runs/:id", read, s.getPlanningRun)
			planning.POST("/runs/:id/accept/:scenarioId", write, s.acceptScenario)
			planning.POST("/runs/:id/archive", write, s.archiveRun)
			planning.GET("/scenarios/:id", read, s.getScenario)
			planning.POST("/scenarios/:id/export", write, s.exportScenario)
			planning.GET("/compare/:runId", read, s.compareScenarios)
		}

		schedules := api.Group("/schedules")
		{
			schedules.POST("/:id/replan", write, s.replanSchedule)
			schedules.POST("/:id/replan/commit", write, s.commitReplan)
		}

		analytics := api.Group("/analytics")
		{
			analytics.GET("/workers/:id/productivity", read, s.workerProductivity)
			analytics.GET("/assignments/:id/trend", read, s.assignmentTrend)
			analytics.GET("/capacity", read, s.capacityReport)
			analytics.POST("/recalculate-proficiencies", write, s.recalculateProficiencies)
		}
	}
}

// respondError maps an error from the engine/repository onto the status
// code its kind dictates, with the {error: "..."} body shape.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if errors.Is(err, repository.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	status := planerr.StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("internal error", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// requestLogger logs each HTTP request through the structured logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// healthCheck returns server health status with dependency checks.
func (s *Server) healthCheck(c *gin.Context) {
	deps := map[string]bool{
		"repository": s.repo != nil,
		"engine":     s.engine != nil,
	}

	healthy := true
	for _, ok := range deps {
		if !ok {
			healthy = false
			break
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":       status,
		"dependencies": deps,
		"timestamp":    time.Now().UTC(),
	})
}
