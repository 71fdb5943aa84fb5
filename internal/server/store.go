package server

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/protocol"
)

func (s *Server) listGames(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	return respond("ok", gamesData{Games: s.catalog.ListActive()})
}

func (s *Server) gameDetail(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	var body gameRequest
	if err := req.Bind(&body); err != nil {
		return nil, err
	}
	d, err := s.catalog.Detail(body.GameID)
	if err != nil {
		return nil, err
	}
	return respond("ok", d)
}

// downloadGame announces the bundle, waits for the client to be ready and
// then runs the sender side of the file transfer. The transfer's own status
// frames end the exchange, so no final response is sent.
func (s *Server) downloadGame(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	username, err := c.authenticate(req, model.ClassPlayer)
	if err != nil {
		return nil, err
	}
	var body gameRequest
	if err := req.Bind(&body); err != nil {
		return nil, err
	}

	d, err := s.catalog.PrepareDownload(body.GameID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = d.Close() }()

	announce := protocol.OK("ready to send file", downloadData{
		GameID:   d.Game.ID,
		GameName: d.Game.Name,
		Version:  d.Game.Version,
	})
	resp, delivered, err := c.offerFile(announce, d.Path)
	if !delivered {
		return resp, err
	}

	if err := s.catalog.RecordDownload(ctx, d.Game.ID); err != nil {
		c.logger.Error("failed to record download",
			slog.String("game_id", string(d.Game.ID)),
			slog.String("error", err.Error()),
		)
	}
	c.logger.Info("game downloaded",
		slog.String("game_id", string(d.Game.ID)),
		slog.String("username", username),
	)
	return nil, nil
}

func (s *Server) listPlugins(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	if _, err := c.authenticate(req, model.ClassPlayer); err != nil {
		return nil, err
	}
	return respond("ok", pluginsData{Plugins: s.catalog.Plugins()})
}

// downloadPlugin sends a plugin file with the same handshake as a game
// download
func (s *Server) downloadPlugin(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	username, err := c.authenticate(req, model.ClassPlayer)
	if err != nil {
		return nil, err
	}
	var body pluginRequest
	if err := req.Bind(&body); err != nil {
		return nil, err
	}

	p, path, err := s.catalog.PluginFile(body.PluginID)
	if err != nil {
		return nil, err
	}

	announce := protocol.OK("ready to send file", pluginDownloadData{
		PluginID: body.PluginID,
		Name:     p.Name,
		Version:  p.Version,
		Filename: p.Filename,
	})
	resp, delivered, err := c.offerFile(announce, path)
	if !delivered {
		return resp, err
	}
	c.logger.Info("plugin downloaded",
		slog.String("plugin_id", string(body.PluginID)),
		slog.String("username", username),
	)
	return nil, nil
}

// offerFile writes announce, waits for the client's READY and streams the
// file at path. delivered is false when the client declined or the transfer
// failed; resp and err are then what the handler should return.
func (c *connection) offerFile(announce protocol.Response, path string) (resp *protocol.Response, delivered bool, err error) {
	if err := c.codec.Write(announce); err != nil {
		return nil, false, err
	}

	var ack protocol.TransferStatus
	if err := c.codec.Read(&ack); err != nil {
		return nil, false, err
	}
	if ack.Status != protocol.StatusReady {
		return failed(msgClientNotReady), false, nil
	}

	if err := protocol.SendFile(c.codec, path); err != nil {
		if isFatal(err) {
			return nil, false, err
		}
		c.logger.Warn("file transfer failed",
			slog.String("file", filepath.Base(path)),
			slog.String("error", err.Error()),
		)
		return nil, false, nil
	}
	return nil, true, nil
}

func (s *Server) addReview(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	username, err := c.authenticate(req, model.ClassPlayer)
	if err != nil {
		return nil, err
	}
	var body reviewRequest
	if err := req.Bind(&body); err != nil {
		return nil, err
	}
	// An unparseable rating becomes 0 so the catalog rejects it in the
	// same order as an out-of-range one
	rating, err := parseRating(body.Rating)
	if err != nil {
		rating = 0
	}
	if err := s.catalog.AddReview(ctx, username, body.GameID, rating, body.Comment); err != nil {
		return nil, err
	}
	return respond("review added", nil)
}

func (s *Server) playerProfile(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	username, err := c.authenticate(req, model.ClassPlayer)
	if err != nil {
		return nil, err
	}
	p, err := s.catalog.Profile(username)
	if err != nil {
		return nil, err
	}
	return respond("ok", p)
}

func (s *Server) lobbyInfo(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	online := s.sessions.Online(model.ClassPlayer)
	if online == nil {
		online = []string{}
	}
	rooms := s.roomViews()
	return respond("ok", lobbyData{
		OnlinePlayers: online,
		OnlineCount:   len(online),
		Rooms:         rooms,
		RoomCount:     len(rooms),
		ActiveGames:   s.catalog.ActiveCount(),
	})
}
