package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/protocol"
)

// connection is one client or worker socket
type connection struct {
	srv    *Server
	codec  *protocol.Codec
	logger *slog.Logger

	mu    sync.Mutex
	token string // session logged in on this connection
}

func newConnection(s *Server, nc net.Conn) *connection {
	return &connection{
		srv:    s,
		codec:  protocol.NewCodec(nc, s.cfg.MaxFrameSize),
		logger: s.logger.With(slog.String("remote", nc.RemoteAddr().String())),
	}
}

// serve runs the read-dispatch-respond loop until the peer disconnects or
// sends something that cannot be framed
func (c *connection) serve(ctx context.Context) {
	defer c.teardown(ctx)
	c.logger.Debug("client connected")

	for {
		var req protocol.Request
		if err := c.codec.Read(&req); err != nil {
			c.logClose(err)
			return
		}

		resp, err := c.srv.dispatch(ctx, c, &req)
		if err != nil {
			if isFatal(err) {
				c.logClose(err)
				return
			}
			msg, known := failureMessage(err)
			if !known {
				c.logger.Error("request failed",
					slog.String("action", string(req.Action)),
					slog.String("error", err.Error()),
				)
			}
			fail := protocol.Fail(msg)
			resp = &fail
		}
		if resp == nil {
			continue
		}
		if err := c.codec.Write(resp); err != nil {
			c.logClose(err)
			return
		}
	}
}

// teardown releases the connection's session, which also takes a player
// out of their room, then closes the socket
func (c *connection) teardown(ctx context.Context) {
	if token := c.session(); token != "" {
		c.srv.sessions.Release(ctx, token)
	}
	_ = c.codec.Close()
	c.logger.Debug("client disconnected")
}

func (c *connection) logClose(err error) {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return
	case errors.Is(err, protocol.ErrFraming), errors.Is(err, protocol.ErrMalformedPayload):
		c.logger.Warn("closing connection on protocol error", slog.String("error", err.Error()))
	default:
		c.logger.Debug("connection closed", slog.String("error", err.Error()))
	}
}

func (c *connection) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *connection) bind(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// unbind forgets token if it is the connection's current session
func (c *connection) unbind(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
	}
}

// authenticate resolves the request's session, falling back to the session
// logged in on this connection
func (c *connection) authenticate(req *protocol.Request, class model.ClientClass) (string, error) {
	token := req.SessionID
	if token == "" {
		token = c.session()
	}
	username, ok := c.srv.sessions.Verify(token, class)
	if !ok {
		return "", model.ErrNotLoggedIn
	}
	return username, nil
}
