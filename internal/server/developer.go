package server

import (
	"context"
	"log/slog"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/protocol"
	"github.com/mcoot/gamestore-lobby/internal/services/catalog"
)

// uploadGame is two-phase: the metadata is validated and answered with the
// new game id, then the bundle arrives over the file transfer sub-protocol
// and a second response reports the outcome.
func (s *Server) uploadGame(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	username, err := c.authenticate(req, model.ClassDeveloper)
	if err != nil {
		return nil, err
	}
	var body uploadRequest
	if err := req.Bind(&body); err != nil {
		return nil, err
	}

	up, err := s.catalog.BeginUpload(username, body.GameInfo)
	if err != nil {
		return nil, err
	}
	g, err := s.receiveBundle(ctx, c, up)
	if err != nil {
		return nil, err
	}
	return respond("game published", gameIDData{GameID: g.ID})
}

func (s *Server) updateGame(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	username, err := c.authenticate(req, model.ClassDeveloper)
	if err != nil {
		return nil, err
	}
	var body updateRequest
	if err := req.Bind(&body); err != nil {
		return nil, err
	}

	up, err := s.catalog.BeginUpdate(username, body.GameID, body.Version, body.UpdateNotes)
	if err != nil {
		return nil, err
	}
	g, err := s.receiveBundle(ctx, c, up)
	if err != nil {
		return nil, err
	}
	return respond("game updated", gameIDData{GameID: g.ID, Version: g.Version})
}

func (s *Server) receiveBundle(ctx context.Context, c *connection, up *catalog.Upload) (*model.Game, error) {
	if err := c.codec.Write(protocol.OK("ready to receive file", gameIDData{GameID: up.GameID})); err != nil {
		s.catalog.Abort(up)
		return nil, err
	}
	received, err := protocol.ReceiveNext(c.codec, up.Dir, s.catalog.MaxBundleSize())
	if err != nil {
		s.catalog.Abort(up)
		c.logger.Warn("bundle transfer failed",
			slog.String("game_id", string(up.GameID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return s.catalog.Finish(ctx, up, received)
}

func (s *Server) unpublishGame(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	username, err := c.authenticate(req, model.ClassDeveloper)
	if err != nil {
		return nil, err
	}
	var body gameRequest
	if err := req.Bind(&body); err != nil {
		return nil, err
	}
	if err := s.catalog.Unpublish(ctx, username, body.GameID); err != nil {
		return nil, err
	}
	return respond("game unpublished", nil)
}

func (s *Server) listMyGames(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	username, err := c.authenticate(req, model.ClassDeveloper)
	if err != nil {
		return nil, err
	}
	return respond("ok", gamesData{Games: s.catalog.ListMine(username)})
}
