package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"scentledger/internal/handlers"
	applog "scentledger/internal/log"
	"scentledger/internal/workspace"
)

// Config captures the runtime configuration for the HTTP server.
type Config struct {
	Addr      string
	Workspace *workspace.Workspace
	// Gatherer backs /metrics. The default prometheus registry is used when nil.
	Gatherer prometheus.Gatherer
}

// Server wraps an http.Server and exposes helpers for bootstrapping a
// production-ready web service.
type Server struct {
	config     Config
	httpServer *http.Server
}

// New builds a new Server using the provided configuration.
func New(cfg Config) (*Server, error) {
	applog.Debug(context.Background(), "initializing server", "addr", cfg.Addr, "workspace", cfg.Workspace != nil)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		applog.Debug(context.Background(), "metrics gatherer not provided, using default registry")
		gatherer = prometheus.DefaultGatherer
	}

	handlers.Configure(cfg.Workspace)

	applog.Debug(context.Background(), "handler dependencies configured")

	handler := withRequestID(withAccessLog(newRouter(gatherer)))

	applog.Debug(context.Background(), "http handler chain prepared")

	return &Server{
		config: cfg,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Start begins serving HTTP traffic using the underlying http.Server.
func (s *Server) Start() error {
	applog.Info(context.Background(), "server starting listener", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server with a timeout.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	applog.Debug(ctx, "server initiating graceful shutdown")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured HTTP handler, enabling integration tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
