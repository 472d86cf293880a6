package api

import (
	"context"
	"log"
	"net/http"

	"showdown-arena/internal/room"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// Server is the HTTP + WebSocket front door for one Room. It owns no
// simulation state itself; everything player-facing flows through the
// Room and RoomHub it wires together here.
type Server struct {
	rm          *room.Room
	hub         *RoomHub
	router      *chi.Mux
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer constructs an API server bound to rm with default production
// configuration.
//
// IMPORTANT: Background workers do NOT start until Start() is called. This
// enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
func NewServer(rm *room.Room) *Server {
	hub := NewRoomHub(rm)
	rateLimiter := NewIPRateLimiter(DefaultRateLimitConfig)

	s := &Server{
		rm:          rm,
		hub:         hub,
		rateLimiter: rateLimiter,
	}
	s.router = NewRouter(RouterConfig{
		Room:        rm,
		Hub:         hub,
		RateLimiter: rateLimiter,
	})
	return s
}

// Start begins the simulation driver and the HTTP listener. Call this
// exactly once; to stop, call Stop.
func (s *Server) Start(addr string) error {
	s.rm.Start(s.hub)

	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	log.Printf("arena server starting on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "api: listen")
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Stop performs graceful shutdown: the simulation driver first (so no new
// ticks run), then the HTTP listener, then the rate limiter's background
// cleanup goroutine.
func (s *Server) Stop(ctx context.Context) {
	s.rm.Stop()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("api: shutdown error: %v", err)
		}
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}
