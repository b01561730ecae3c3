package server

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Server wraps an *http.Server, starting it in the background and
// exposing a context-bounded graceful Shutdown.
type Server struct {
	srv *http.Server
}

// New creates a new server instance bound to host:port.
func New(handler http.Handler, host string, port int) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start starts the server in a background goroutine.
func (s *Server) Start() error {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
