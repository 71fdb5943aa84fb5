package server

import (
	"context"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/protocol"
)

// handlerFunc serves one request. A nil response sends nothing; handlers
// that stream a file write their own frames.
type handlerFunc func(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error)

type routeKey struct {
	class  model.ClientClass
	action protocol.Action
}

func (s *Server) buildRoutes() map[routeKey]handlerFunc {
	dev := func(a protocol.Action) routeKey { return routeKey{model.ClassDeveloper, a} }
	player := func(a protocol.Action) routeKey { return routeKey{model.ClassPlayer, a} }

	return map[routeKey]handlerFunc{
		// Developer
		dev(protocol.ActionRegister):      s.register(model.ClassDeveloper),
		dev(protocol.ActionLogin):         s.login(model.ClassDeveloper),
		dev(protocol.ActionLogout):        s.logout,
		dev(protocol.ActionUploadGame):    s.uploadGame,
		dev(protocol.ActionUpdateGame):    s.updateGame,
		dev(protocol.ActionUnpublishGame): s.unpublishGame,
		dev(protocol.ActionListMyGames):   s.listMyGames,

		// Player
		player(protocol.ActionRegister):         s.register(model.ClassPlayer),
		player(protocol.ActionLogin):            s.login(model.ClassPlayer),
		player(protocol.ActionLogout):           s.logout,
		player(protocol.ActionListGames):        s.listGames,
		player(protocol.ActionGetGameDetail):    s.gameDetail,
		player(protocol.ActionDownloadGame):     s.downloadGame,
		player(protocol.ActionCreateRoom):       s.createRoom,
		player(protocol.ActionJoinRoom):         s.joinRoom,
		player(protocol.ActionLeaveRoom):        s.leaveRoom,
		player(protocol.ActionSendChat):         s.sendChat,
		player(protocol.ActionGetRoomChat):      s.roomChat,
		player(protocol.ActionListRooms):        s.listRooms,
		player(protocol.ActionStartGame):        s.startGame,
		player(protocol.ActionEndGame):          s.endGame,
		player(protocol.ActionAddReview):        s.addReview,
		player(protocol.ActionGetPlayerProfile): s.playerProfile,
		player(protocol.ActionGetLobbyInfo):     s.lobbyInfo,
		player(protocol.ActionListPlugins):      s.listPlugins,
		player(protocol.ActionDownloadPlugin):   s.downloadPlugin,
	}
}

// dispatch routes a request by client class and action. Result reports
// come from workers, which have no class.
func (s *Server) dispatch(ctx context.Context, c *connection, req *protocol.Request) (*protocol.Response, error) {
	if req.Action == protocol.ActionReportGameResult {
		return s.reportResult(ctx, c, req)
	}
	if !req.ClientType.Valid() {
		return nil, model.ErrInvalidClientClass
	}
	h, ok := s.routes[routeKey{req.ClientType, req.Action}]
	if !ok {
		return failed(msgUnknownAction), nil
	}
	return h(ctx, c, req)
}

func respond(message string, data any) (*protocol.Response, error) {
	resp := protocol.OK(message, data)
	return &resp, nil
}

func failed(message string) *protocol.Response {
	resp := protocol.Fail(message)
	return &resp
}
