package admin

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler returns a router serving a.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	a.Routes(r)
	return r
}

// Server runs the admin API on its own listener.
type Server struct {
	log  *slog.Logger
	srv  *http.Server
	ln   net.Listener
	done chan error

	served atomic.Bool
}

// Listen binds addr and returns a server ready to Serve. Use "127.0.0.1:0"
// for an ephemeral port.
func Listen(addr string, a *API) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		log: a.log,
		srv: &http.Server{
			Handler:      a.Handler(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		ln:   ln,
		done: make(chan error, 1),
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve starts serving in the background.
func (s *Server) Serve() {
	if !s.served.CompareAndSwap(false, true) {
		return
	}
	go func() {
		s.log.Info("admin API starting", slog.String("addr", s.Addr()))
		err := s.srv.Serve(s.ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			s.log.Error("admin API failed", slog.String("err", err.Error()))
		}
		s.done <- err
	}()
}

// Shutdown stops the server gracefully. A server that never served only
// closes its listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.served.Load() {
		return s.ln.Close()
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	select {
	case err := <-s.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
