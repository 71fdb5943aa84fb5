// Package server is the lobby's TCP front end: it accepts client and worker
// connections, decodes framed requests and routes them to the services.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/protocol"
	"github.com/mcoot/gamestore-lobby/internal/services/catalog"
	"github.com/mcoot/gamestore-lobby/internal/services/room"
	"github.com/mcoot/gamestore-lobby/internal/services/session"
)

// ErrServerClosed is returned by Serve after Shutdown
var ErrServerClosed = errors.New("server closed")

// Config holds configuration for the lobby server
type Config struct {
	// Addr is the TCP listen address
	Addr string
	// MaxFrameSize bounds a single request frame
	MaxFrameSize int
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:         ":7000",
		MaxFrameSize: protocol.DefaultMaxFrameSize,
	}
}

// Deps are the services requests are routed to
type Deps struct {
	Sessions *session.Manager
	Catalog  *catalog.Service
	Rooms    room.ControllerInterface
}

// Server accepts connections and runs one request loop per connection
type Server struct {
	cfg      Config
	sessions *session.Manager
	catalog  *catalog.Service
	rooms    room.ControllerInterface
	routes   map[routeKey]handlerFunc
	logger   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[*connection]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// New creates a server. Players whose session ends for any reason are
// removed from their room.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Server{
		cfg:      cfg,
		sessions: deps.Sessions,
		catalog:  deps.Catalog,
		rooms:    deps.Rooms,
		logger:   logger,
		conns:    make(map[*connection]struct{}),
	}
	s.routes = s.buildRoutes()

	s.sessions.OnSessionEnd(func(class model.ClientClass, username string) {
		if class == model.ClassPlayer {
			s.rooms.LeaveAny(context.Background(), username)
		}
	})
	return s
}

// ListenAndServe listens on the configured address and serves until Shutdown
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. It always returns a
// non-nil error; ErrServerClosed after a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("lobby server listening", slog.String("addr", ln.Addr().String()))

	for {
		nc, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		c := newConnection(s, nc)
		if !s.track(c) {
			_ = nc.Close()
			return ErrServerClosed
		}
		go func() {
			defer s.wg.Done()
			defer s.untrack(c)
			c.serve(context.Background())
		}()
	}
}

// Addr returns the listener address, or nil before Serve
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting, closes every live connection and waits for
// their handlers to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for c := range s.conns {
		_ = c.codec.Close()
	}
	s.mu.Unlock()

	s.logger.Info("shutting down lobby server")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("lobby server stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

// ConnectionCount returns the number of open connections
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) track(c *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}
