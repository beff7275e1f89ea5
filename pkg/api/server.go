// Package api exposes the review pipeline over HTTP: one review endpoint
// with JSON or NDJSON-streaming responses, plus health and metrics.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/critique/pkg/config"
	"github.com/codeready-toolchain/critique/pkg/orchestrator"
)

// Server holds the HTTP-facing dependencies.
type Server struct {
	cfg         *config.Config
	coordinator *orchestrator.Coordinator
	httpServer  *http.Server
}

// NewServer creates the API server around a coordinator.
func NewServer(cfg *config.Config, coordinator *orchestrator.Coordinator) *Server {
	return &Server{cfg: cfg, coordinator: coordinator}
}

// Router builds the gin engine with all routes and middleware registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), securityHeaders())

	router.GET("/health", s.healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.POST("/review", s.reviewHandler)

	return router
}

// Start runs the HTTP server on addr. Blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.Router()}
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"providers": s.cfg.Providers.Len(),
		"retrieval": s.cfg.RetrievalBaseURL != "",
	})
}
