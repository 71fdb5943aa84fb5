package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcoot/gamestore-lobby/internal/model"
)

// Action is a request command name
type Action string

const (
	ActionRegister         Action = "REGISTER"
	ActionLogin            Action = "LOGIN"
	ActionLogout           Action = "LOGOUT"
	ActionUploadGame       Action = "UPLOAD_GAME"
	ActionUpdateGame       Action = "UPDATE_GAME"
	ActionUnpublishGame    Action = "UNPUBLISH_GAME"
	ActionListMyGames      Action = "LIST_MY_GAMES"
	ActionListGames        Action = "LIST_GAMES"
	ActionGetGameDetail    Action = "GET_GAME_DETAIL"
	ActionDownloadGame     Action = "DOWNLOAD_GAME"
	ActionCreateRoom       Action = "CREATE_ROOM"
	ActionJoinRoom         Action = "JOIN_ROOM"
	ActionLeaveRoom        Action = "LEAVE_ROOM"
	ActionSendChat         Action = "SEND_CHAT"
	ActionGetRoomChat      Action = "GET_ROOM_CHAT"
	ActionListRooms        Action = "LIST_ROOMS"
	ActionStartGame        Action = "START_GAME"
	ActionEndGame          Action = "END_GAME"
	ActionReportGameResult Action = "REPORT_GAME_RESULT"
	ActionAddReview        Action = "ADD_REVIEW"
	ActionGetPlayerProfile Action = "GET_PLAYER_PROFILE"
	ActionGetLobbyInfo     Action = "GET_LOBBY_INFO"
	ActionListPlugins      Action = "LIST_PLUGINS"
	ActionDownloadPlugin   Action = "DOWNLOAD_PLUGIN"
)

// ErrBadRequest is returned when a request body does not fit the action
var ErrBadRequest = errors.New("bad request")

// Request is a client to server message. The full body is kept so each
// handler can bind its own fields.
type Request struct {
	Action     Action            `json:"action"`
	ClientType model.ClientClass `json:"client_type,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the envelope and keeps the raw body
func (r *Request) UnmarshalJSON(data []byte) error {
	type envelope Request
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*r = Request(env)
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

// Bind decodes the request body into v
func (r *Request) Bind(v any) error {
	if len(r.raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// NewRequest builds a request whose body is the envelope merged with fields
func NewRequest(action Action, class model.ClientClass, sessionID string, fields map[string]any) map[string]any {
	msg := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		msg[k] = v
	}
	msg["action"] = action
	if class != "" {
		msg["client_type"] = class
	}
	if sessionID != "" {
		msg["session_id"] = sessionID
	}
	return msg
}

// Response is a server to client reply
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// OK builds a successful response
func OK(message string, data any) Response {
	return Response{Success: true, Message: message, Data: data}
}

// Fail builds a failed response
func Fail(message string) Response {
	return Response{Success: false, Message: message}
}

// PushForceLogout tells a connection its session was taken over by a newer login
const PushForceLogout = "FORCE_LOGOUT"

// Push is an unsolicited server message
type Push struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Reply is the client side view of any server frame: a response or a push
type Reply struct {
	Type    string          `json:"type,omitempty"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// IsPush reports whether the frame was an unsolicited push
func (r *Reply) IsPush() bool {
	return r.Type != ""
}

// DecodeData unmarshals the reply data into v
func (r *Reply) DecodeData(v any) error {
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}
