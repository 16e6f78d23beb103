// Package api exposes the game over HTTP: the authenticated websocket used
// for play, REST endpoints for matchmaking, inventory and payments, and the
// localhost-only observability server.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Server is the public HTTP server.
//
// IMPORTANT: No listeners are opened until Start() is called. This enables
// testing by allowing the server to be constructed without side effects; use
// Router() with httptest for integration tests.
type Server struct {
	router      *chi.Mux
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates the API server from a router configuration. The rate
// limiter is created here so Stop() can shut down its cleanup goroutine.
func NewServer(cfg RouterConfig) *Server {
	s := &Server{}

	if cfg.RateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		cfg.RateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	s.rateLimiter = cfg.RateLimiter
	s.router = NewRouter(cfg)

	return s
}

// Start begins serving on the given port. Blocks until the listener fails
// or Shutdown is called.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🚢 WebSocket endpoint: ws://localhost%s/ws", addr)

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}
