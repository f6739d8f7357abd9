// Package server exposes the engine's operations over HTTP. Every
// operation endpoint answers with the same response envelope the CLI
// prints, so a caller sees identical results either way.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"recast/internal/auth"
	"recast/internal/engine"
	"recast/internal/logging"
)

// Server is the HTTP front end over a loaded engine.
type Server struct {
	engine *engine.Engine
	config *Config
	auth   *auth.Manager
	logger *logging.Logger

	router    *http.ServeMux
	server    *http.Server
	startedAt time.Time

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New creates an HTTP server over the engine. The auth manager decides
// per request whether callers may read, transform, or control the
// daemon.
func New(eng *engine.Engine, cfg *Config, authMgr *auth.Manager, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		engine:     eng,
		config:     cfg,
		auth:       authMgr,
		logger:     logger,
		router:     http.NewServeMux(),
		startedAt:  time.Now(),
		shutdownCh: make(chan struct{}),
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.applyMiddleware(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	// Liveness, no auth
	s.router.HandleFunc("/health", s.handleHealth)

	// Read-only queries
	s.router.HandleFunc("/symbol", s.handleSymbol)
	s.router.HandleFunc("/refs", s.handleRefs)
	s.router.HandleFunc("/status", s.handleStatus)
	s.router.HandleFunc("/history", s.handleHistory)

	// Transformations
	s.router.HandleFunc("/rename", s.handleRename)
	s.router.HandleFunc("/inline", s.handleInline)
	s.router.HandleFunc("/encapsulate", s.handleEncapsulate)
	s.router.HandleFunc("/signature", s.handleSignature)
	s.router.HandleFunc("/movetype", s.handleMoveType)
	s.router.HandleFunc("/stubs", s.handleStubs)
	s.router.HandleFunc("/directives", s.handleDirectives)
	s.router.HandleFunc("/format", s.handleFormat)

	// Index export
	s.router.HandleFunc("/export", s.handleExport)

	// Daemon control
	s.router.HandleFunc("/shutdown", s.handleShutdown)

	s.router.HandleFunc("/", s.handleRoot)
}

// applyMiddleware wraps the handler with middleware in the correct order
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last one wraps first)
	handler = ScopedAuthMiddleware(s.auth, s.logger)(handler)
	handler = RecoveryMiddleware(s.logger)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware()(handler)
	handler = CORSMiddleware()(handler)
	return handler
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", map[string]interface{}{
		"addr":        s.config.Addr(),
		"authEnabled": s.config.Auth.Enabled,
	})

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server", nil)

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ShutdownRequested closes when an admin caller posted /shutdown.
func (s *Server) ShutdownRequested() <-chan struct{} {
	return s.shutdownCh
}

// requestShutdown closes the shutdown channel exactly once.
func (s *Server) requestShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}
