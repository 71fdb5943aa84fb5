package server

import (
	"context"
	"log/slog"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/protocol"
)

func (s *Server) createRoom(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	username, err := c.authenticate(req, model.ClassPlayer)
	if err != nil {
		return nil, err
	}
	var body gameRequest
	if err := req.Bind(&body); err != nil {
		return nil, err
	}
	r, err := s.rooms.Create(ctx, body.GameID, username)
	if err != nil {
		return nil, err
	}
	return respond("room created", createRoomData{
		RoomID:      r.ID,
		Port:        r.Port,
		GameName:    r.GameName,
		GameVersion: r.GameVersion,
	})
}

func (s *Server) joinRoom(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	username, err := c.authenticate(req, model.ClassPlayer)
	if err != nil {
		return nil, err
	}
	var body roomRequest
	if err := req.Bind(&body); err != nil {
		return nil, err
	}
	r, err := s.rooms.Join(ctx, body.RoomID, username)
	if err != nil {
		return nil, err
	}
	return respond("joined room", viewRoom(r))
}

func (s *Server) leaveRoom(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	username, err := c.authenticate(req, model.ClassPlayer)
	if err != nil {
		return nil, err
	}
	var body roomRequest
	if err := req.Bind(&body); err != nil {
		return nil, err
	}
	res, err := s.rooms.Leave(ctx, body.RoomID, username)
	if err != nil {
		return nil, err
	}
	return respond("left room", leaveData{Destroyed: res.Destroyed, NewHost: res.NewHost})
}

func (s *Server) sendChat(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	username, err := c.authenticate(req, model.ClassPlayer)
	if err != nil {
		return nil, err
	}
	var body chatRequest
	if err := req.Bind(&body); err != nil {
		return nil, err
	}
	if _, err := s.rooms.SendChat(ctx, body.RoomID, username, body.Message); err != nil {
		return nil, err
	}
	return respond("message sent", nil)
}

func (s *Server) roomChat(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	username, err := c.authenticate(req, model.ClassPlayer)
	if err != nil {
		return nil, err
	}
	var body roomRequest
	if err := req.Bind(&body); err != nil {
		return nil, err
	}
	entries, err := s.rooms.Chat(ctx, body.RoomID, username)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.ChatEntry{}
	}
	return respond("ok", chatData{ChatHistory: entries})
}

func (s *Server) listRooms(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	return respond("ok", roomsData{Rooms: s.roomViews()})
}

// startGame launches the room's worker and records the game as played by
// every member
func (s *Server) startGame(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	username, err := c.authenticate(req, model.ClassPlayer)
	if err != nil {
		return nil, err
	}
	var body roomRequest
	if err := req.Bind(&body); err != nil {
		return nil, err
	}
	res, err := s.rooms.Start(ctx, body.RoomID, username)
	if err != nil {
		return nil, err
	}

	r := res.Room
	if err := s.catalog.MarkPlayed(ctx, r.Members, r.GameID); err != nil {
		c.logger.Error("failed to record played game",
			slog.String("room_id", string(r.ID)),
			slog.String("error", err.Error()),
		)
	}
	return respond("game started", startData{
		RoomID:           r.ID,
		GameID:           r.GameID,
		Port:             r.Port,
		GameName:         r.GameName,
		Players:          r.Members,
		ClientLaunchSpec: res.ClientCommand,
		ClientCommand:    res.ClientCommand,
	})
}

func (s *Server) endGame(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	username, err := c.authenticate(req, model.ClassPlayer)
	if err != nil {
		return nil, err
	}
	var body roomRequest
	if err := req.Bind(&body); err != nil {
		return nil, err
	}
	if err := s.rooms.ForceEnd(ctx, body.RoomID, username); err != nil {
		return nil, err
	}
	return respond("game ended", nil)
}

// reportResult is called by a worker over its own connection, without a
// session. The room's status and worker token stand in for authentication.
func (s *Server) reportResult(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	var body reportRequest
	if err := req.Bind(&body); err != nil {
		return nil, err
	}
	if err := s.rooms.ReportResult(ctx, body.RoomID, body.WorkerToken, body.Result); err != nil {
		return nil, err
	}
	return respond("result received", nil)
}

func (s *Server) roomViews() []roomView {
	rooms := s.rooms.List()
	out := make([]roomView, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, viewRoom(r))
	}
	return out
}
