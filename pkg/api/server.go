// Package api serves the supervisor's status and health endpoints.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/warp-run/warp-coder/pkg/runner"
)

// Server exposes the supervisor over HTTP.
type Server struct {
	supervisor *runner.Supervisor
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates the API server over the supervisor.
func NewServer(supervisor *runner.Supervisor, port string) *Server {
	s := &Server{
		supervisor: supervisor,
		logger:     slog.Default().With("component", "api"),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	v1.GET("/health", s.Health)
	v1.GET("/status", s.Status)

	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Health reports liveness.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// Status reports the worker pool and the per-issue status table.
func (s *Server) Status(c *gin.Context) {
	steps := s.supervisor.Status()
	sort.Slice(steps, func(i, j int) bool { return steps[i].IssueID < steps[j].IssueID })
	c.JSON(http.StatusOK, gin.H{
		"inFlight": s.supervisor.InFlight(),
		"steps":    steps,
	})
}

// Start serves until Shutdown. Blocks; run it on its own goroutine.
func (s *Server) Start() error {
	s.logger.Info("API server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
