package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/openfeeder/internal/app"
)

// Server wraps the HTTP server and its routes
type Server struct {
	app    *app.App
	router *http.ServeMux
	server *http.Server
}

func New(application *app.App) *Server {
	s := &Server{
		app:    application,
		router: http.NewServeMux(),
	}
	s.registerRoutes()

	addr := fmt.Sprintf("%s:%d", application.Config.Server.Host, application.Config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      withMiddleware(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	h := s.app.Handler

	s.router.HandleFunc("GET /.well-known/openfeeder.json", h.Discovery)
	s.router.HandleFunc("GET /openfeeder", h.Content)
	s.router.HandleFunc("POST /openfeeder/update", h.Update)
	s.router.HandleFunc("POST /crawl", h.Crawl)
	s.router.HandleFunc("GET /healthz", h.Health)
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	s.app.Logger.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
