package server

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/services/catalog"
)

// Request bodies

type credentialsRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type uploadRequest struct {
	GameInfo catalog.GameInfo `json:"game_info"`
}

type updateRequest struct {
	GameID      model.GameID `json:"game_id"`
	Version     string       `json:"version"`
	UpdateNotes string       `json:"update_notes"`
}

type gameRequest struct {
	GameID model.GameID `json:"game_id"`
}

type pluginRequest struct {
	PluginID model.PluginID `json:"plugin_id"`
}

type roomRequest struct {
	RoomID model.RoomID `json:"room_id"`
}

type chatRequest struct {
	RoomID  model.RoomID `json:"room_id"`
	Message string       `json:"message"`
}

type reviewRequest struct {
	GameID  model.GameID    `json:"game_id"`
	Rating  json.RawMessage `json:"rating"`
	Comment string          `json:"comment"`
}

type reportRequest struct {
	RoomID      model.RoomID    `json:"room_id"`
	WorkerToken string          `json:"worker_token"`
	Result      json.RawMessage `json:"result"`
}

// Response data

type loginData struct {
	SessionID   string `json:"session_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

type gameIDData struct {
	GameID  model.GameID `json:"game_id"`
	Version string       `json:"version,omitempty"`
}

type gamesData struct {
	Games []catalog.Summary `json:"games"`
}

type downloadData struct {
	GameID   model.GameID `json:"game_id"`
	GameName string       `json:"game_name"`
	Version  string       `json:"version"`
}

type pluginsData struct {
	Plugins map[model.PluginID]model.Plugin `json:"plugins"`
}

type pluginDownloadData struct {
	PluginID model.PluginID `json:"plugin_id"`
	Name     string         `json:"name"`
	Version  string         `json:"version"`
	Filename string         `json:"filename"`
}

type createRoomData struct {
	RoomID      model.RoomID `json:"room_id"`
	Port        int          `json:"port"`
	GameName    string       `json:"game_name"`
	GameVersion string       `json:"game_version"`
}

// roomView is a room as listed to players
type roomView struct {
	*model.Room
	PlayerCount int `json:"player_count"`
}

func viewRoom(r *model.Room) roomView {
	return roomView{Room: r, PlayerCount: len(r.Members)}
}

type roomsData struct {
	Rooms []roomView `json:"rooms"`
}

type leaveData struct {
	Destroyed bool   `json:"destroyed"`
	NewHost   string `json:"new_host,omitempty"`
}

type chatData struct {
	ChatHistory []model.ChatEntry `json:"chat_history"`
}

type startData struct {
	RoomID           model.RoomID `json:"room_id"`
	GameID           model.GameID `json:"game_id"`
	Port             int          `json:"port"`
	GameName         string       `json:"game_name"`
	Players          []string     `json:"players"`
	ClientLaunchSpec []string     `json:"client_launch_spec"`
	// ClientCommand repeats ClientLaunchSpec under the name older clients read
	ClientCommand []string `json:"client_command"`
}

type lobbyData struct {
	OnlinePlayers []string   `json:"online_players"`
	OnlineCount   int        `json:"online_count"`
	Rooms         []roomView `json:"rooms"`
	RoomCount     int        `json:"room_count"`
	ActiveGames   int        `json:"active_games"`
}

// parseRating accepts an integer given as a JSON number or a numeric string
func parseRating(raw json.RawMessage) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, model.ErrInvalidRating
	}

	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = strings.TrimSpace(t)
	default:
		return 0, model.ErrInvalidRating
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, model.ErrInvalidRating
	}
	return n, nil
}
