package server

import (
	"context"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/protocol"
)

func (s *Server) register(class model.ClientClass) handlerFunc {
	return func(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
		var body credentialsRequest
		if err := req.Bind(&body); err != nil {
			return nil, err
		}
		if err := s.sessions.Register(ctx, class, body.Username, body.Password, body.DisplayName); err != nil {
			return nil, err
		}
		return respond("registered", nil)
	}
}

// login binds a new session to the connection. A session already held by
// this connection is released once the new credentials check out; a failed
// login leaves it in place.
func (s *Server) login(class model.ClientClass) handlerFunc {
	return func(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
		var body credentialsRequest
		if err := req.Bind(&body); err != nil {
			return nil, err
		}

		prev := c.session()
		sess, account, err := s.sessions.Login(ctx, class, body.Username, body.Password, c.codec)
		if err != nil {
			return nil, err
		}
		if prev != "" && prev != sess.Token {
			s.sessions.Release(ctx, prev)
		}
		c.bind(sess.Token)
		return respond("logged in", loginData{
			SessionID:   sess.Token,
			Username:    account.Username,
			DisplayName: account.DisplayName,
		})
	}
}

func (s *Server) logout(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	token := req.SessionID
	if token == "" {
		token = c.session()
	}
	if err := s.sessions.Logout(ctx, token); err != nil {
		return nil, err
	}
	c.unbind(token)
	return respond("logged out", nil)
}
