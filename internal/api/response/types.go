package response

import (
	"encoding/json"
	"time"

	"github.com/mcoot/gamestore-lobby/internal/model"
)

// Health is the health check body
type Health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

// MatchResult is one finished match of a room
type MatchResult struct {
	Outcome    string          `json:"outcome"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	ReportedAt time.Time       `json:"reported_at"`
}

// Room represents a room in admin responses
type Room struct {
	ID          string        `json:"room_id"`
	GameID      string        `json:"game_id"`
	GameName    string        `json:"game_name"`
	GameVersion string        `json:"game_version"`
	Host        string        `json:"host"`
	Players     []string      `json:"players"`
	MinPlayers  int           `json:"min_players"`
	MaxPlayers  int           `json:"max_players"`
	Status      string        `json:"status"`
	Port        int           `json:"port"`
	WorkerPID   int           `json:"worker_pid,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Results     []MatchResult `json:"results"`
}

// RoomFromModel converts a model.Room; pid is 0 when no worker is running
func RoomFromModel(r *model.Room, pid int) Room {
	results := make([]MatchResult, 0, len(r.Results))
	for _, res := range r.Results {
		results = append(results, MatchResult{
			Outcome:    string(res.Outcome),
			Detail:     res.Detail,
			ReportedAt: res.ReportedAt,
		})
	}
	players := append([]string{}, r.Members...)
	return Room{
		ID:          string(r.ID),
		GameID:      string(r.GameID),
		GameName:    r.GameName,
		GameVersion: r.GameVersion,
		Host:        r.Host,
		Players:     players,
		MinPlayers:  r.MinPlayers,
		MaxPlayers:  r.MaxPlayers,
		Status:      string(r.Status),
		Port:        r.Port,
		WorkerPID:   pid,
		CreatedAt:   r.CreatedAt,
		Results:     results,
	}
}

// WorkerOutput is the captured output tail of a room's worker
type WorkerOutput struct {
	RoomID string `json:"room_id"`
	Output string `json:"output"`
}

// Lobby is an overview of the whole server
type Lobby struct {
	OnlinePlayers    []string `json:"online_players"`
	OnlineDevelopers []string `json:"online_developers"`
	Sessions         int      `json:"sessions"`
	RoomCount        int      `json:"room_count"`
	PlayingCount     int      `json:"playing_count"`
	ActiveGames      int      `json:"active_games"`
}

// Ports describes the worker port pool
type Ports struct {
	First     int `json:"first"`
	Last      int `json:"last"`
	Available int `json:"available"`
	Leased    int `json:"leased"`
}

// Plugin is a published client plugin
type Plugin struct {
	ID          string    `json:"plugin_id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Filename    string    `json:"filename"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PluginFromModel converts a stored plugin
func PluginFromModel(id model.PluginID, p model.Plugin) Plugin {
	return Plugin{
		ID:          string(id),
		Name:        p.Name,
		Version:     p.Version,
		Description: p.Description,
		Filename:    p.Filename,
		UpdatedAt:   p.UpdatedAt,
	}
}
