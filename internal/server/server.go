// Package server exposes the document generation pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"git.home.luguber.info/inful/docgen/internal/config"
	derrors "git.home.luguber.info/inful/docgen/internal/errors"
	"git.home.luguber.info/inful/docgen/internal/generate"
	"git.home.luguber.info/inful/docgen/internal/lifecycle"
	"git.home.luguber.info/inful/docgen/internal/server/middleware"
)

// Server wires the API handlers, middleware chain and the underlying
// http.Server together.
type Server struct {
	cfg            *config.Config
	orch           *generate.Orchestrator
	artifacts      *lifecycle.Manager
	metricsHandler http.Handler
	logger         *slog.Logger
	errorAdapter   *derrors.HTTPErrorAdapter
	mchain         func(http.Handler) http.Handler
	httpServer     *http.Server
}

// New constructs the HTTP server wiring. metricsHandler may be nil when the
// metrics endpoint is disabled.
func New(cfg *config.Config, orch *generate.Orchestrator, artifacts *lifecycle.Manager, metricsHandler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	adapter := derrors.NewHTTPErrorAdapter(logger)
	return &Server{
		cfg:            cfg,
		orch:           orch,
		artifacts:      artifacts,
		metricsHandler: metricsHandler,
		logger:         logger,
		errorAdapter:   adapter,
		mchain:         middleware.Chain(logger, adapter),
	}
}

// Handler returns the full middleware-wrapped route tree.
func (s *Server) Handler() http.Handler {
	return s.mchain(s.routes())
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/templates", s.handleRegisterTemplate)
	mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	mux.HandleFunc("GET /api/templates/{id}", s.handleGetTemplate)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/generate/composite", s.handleGenerateComposite)
	mux.HandleFunc("GET /api/downloads/{id}", s.handleDownload)
	mux.HandleFunc("DELETE /api/downloads/{id}", s.handleEvict)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
	return mux
}

// Start binds the listen address up front so address conflicts surface as a
// startup error instead of a goroutine log line, then serves in the
// background.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("api port %s: %w", s.cfg.Server.Addr, err)
	}

	s.httpServer = &http.Server{
		Addr:    s.cfg.Server.Addr,
		Handler: s.Handler(),
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server error", "error", err)
		}
	}()
	s.logger.Info("HTTP server started", slog.String("addr", s.cfg.Server.Addr))
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
