package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(w io.Writer, err error) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]any{
			"error": map[string]string{"message": err.Error()},
		})
		_, _ = fmt.Fprintln(w, string(data))
	} else {
		_, _ = fmt.Fprintf(w, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case LoginResult:
		o.printf("Logged in as %s (%s)\n", v.Username, v.DisplayName)
	case GamesResult:
		o.printGames(v.Games)
	case GameDetail:
		o.printGameDetail(v)
	case GameIDResult:
		o.printGameID(v)
	case DownloadResult:
		o.printf("Downloaded %s v%s (%s) to %s\n", v.GameName, v.Version, v.GameID, v.Path)
	case PluginsResult:
		o.printPlugins(v.Plugins)
	case PluginDownloadResult:
		o.printf("Downloaded plugin %s v%s (%s) to %s\n", v.Name, v.Version, v.PluginID, v.Path)
	case Room:
		o.printRoom(v)
	case RoomsResult:
		o.printRooms(v.Rooms)
	case StartResult:
		o.printStart(v)
	case LobbyInfo:
		o.printLobby(v)
	case Profile:
		o.printProfile(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

// LoginResult response type
type LoginResult struct {
	SessionID   string `json:"session_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// GameSummary is a game as listed by the store
type GameSummary struct {
	ID            string    `json:"game_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Developer     string    `json:"developer"`
	Version       string    `json:"version"`
	Category      string    `json:"game_type"`
	MinPlayers    int       `json:"min_players"`
	MaxPlayers    int       `json:"max_players"`
	Status        string    `json:"status"`
	AvgRating     float64   `json:"avg_rating"`
	ReviewCount   int       `json:"review_count"`
	DownloadCount int       `json:"download_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GamesResult response type
type GamesResult struct {
	Games []GameSummary `json:"games"`
}

// GameUpdate is one entry of a game's update history
type GameUpdate struct {
	Version string    `json:"version"`
	Notes   string    `json:"notes"`
	Date    time.Time `json:"date"`
}

// Review response type
type Review struct {
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// GameDetail response type
type GameDetail struct {
	GameSummary
	UpdateHistory []GameUpdate `json:"update_history"`
	Reviews       []Review     `json:"reviews"`
}

// GameIDResult is returned by uploads and updates
type GameIDResult struct {
	GameID  string `json:"game_id"`
	Version string `json:"version,omitempty"`
}

// DownloadResult describes a downloaded bundle
type DownloadResult struct {
	GameID   string `json:"game_id"`
	GameName string `json:"game_name"`
	Version  string `json:"version"`
	Path     string `json:"path"`
}

// Plugin is an installable client add-on
type Plugin struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Filename    string `json:"filename"`
}

// PluginsResult response type
type PluginsResult struct {
	Plugins map[string]Plugin `json:"plugins"`
}

// PluginDownloadResult describes a downloaded plugin
type PluginDownloadResult struct {
	PluginID string `json:"plugin_id"`
	Name     string `json:"name"`
	Version  string `json:"version"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// Room response type
type Room struct {
	ID          string   `json:"room_id"`
	GameID      string   `json:"game_id"`
	GameName    string   `json:"game_name"`
	GameVersion string   `json:"game_version"`
	Host        string   `json:"host"`
	Players     []string `json:"players"`
	MinPlayers  int      `json:"min_players"`
	MaxPlayers  int      `json:"max_players"`
	Status      string   `json:"status"`
	Port        int      `json:"port"`
}

// RoomsResult response type
type RoomsResult struct {
	Rooms []Room `json:"rooms"`
}

// StartResult is what players need to join a running match
type StartResult struct {
	RoomID        string   `json:"room_id"`
	GameID        string   `json:"game_id"`
	GameName      string   `json:"game_name"`
	Port          int      `json:"port"`
	Players       []string `json:"players"`
	ClientCommand []string `json:"client_command"`
}

// LobbyInfo response type
type LobbyInfo struct {
	OnlinePlayers []string `json:"online_players"`
	OnlineCount   int      `json:"online_count"`
	Rooms         []Room   `json:"rooms"`
	RoomCount     int      `json:"room_count"`
	ActiveGames   int      `json:"active_games"`
}

// PlayedGame response type
type PlayedGame struct {
	ID      string `json:"game_id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Profile response type
type Profile struct {
	Username    string       `json:"username"`
	DisplayName string       `json:"display_name"`
	CreatedAt   time.Time    `json:"created_at"`
	PlayedGames []PlayedGame `json:"played_games"`
}

func (o *Output) printGames(games []GameSummary) {
	if len(games) == 0 {
		o.printf("No games\n")
		return
	}
	for _, g := range games {
		rating := "no reviews"
		if g.ReviewCount > 0 {
			rating = fmt.Sprintf("%.1f/5 from %d", g.AvgRating, g.ReviewCount)
		}
		o.printf("%s  %s v%s by %s (%d-%d players, %s)\n",
			g.ID, g.Name, g.Version, g.Developer, g.MinPlayers, g.MaxPlayers, rating)
	}
}

func (o *Output) printPlugins(plugins map[string]Plugin) {
	if len(plugins) == 0 {
		o.printf("No plugins\n")
		return
	}
	ids := make([]string, 0, len(plugins))
	for id := range plugins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := plugins[id]
		o.printf("%s  %s v%s  %s\n", id, p.Name, p.Version, p.Description)
	}
}

func (o *Output) printGameDetail(d GameDetail) {
	o.printf("Game: %s (%s)\n", d.Name, d.ID)
	o.printf("Version: %s\n", d.Version)
	o.printf("Developer: %s\n", d.Developer)
	o.printf("Type: %s\n", d.Category)
	o.printf("Players: %d-%d\n", d.MinPlayers, d.MaxPlayers)
	o.printf("Downloads: %d\n", d.DownloadCount)
	o.printf("Description: %s\n", d.Description)

	if len(d.UpdateHistory) > 0 {
		o.printf("\nUpdates:\n")
		for _, u := range d.UpdateHistory {
			o.printf("  - v%s: %s\n", u.Version, u.Notes)
		}
	}

	if len(d.Reviews) > 0 {
		o.printf("\nReviews (avg %.1f):\n", d.AvgRating)
		for _, r := range d.Reviews {
			o.printf("  - %s %s: %s\n", strings.Repeat("*", r.Rating), r.Username, r.Comment)
		}
	}
}

func (o *Output) printGameID(r GameIDResult) {
	if r.Version != "" {
		o.printf("Game %s is now at version %s\n", r.GameID, r.Version)
		return
	}
	o.printf("Game published: %s\n", r.GameID)
}

func (o *Output) printRoom(r Room) {
	o.printf("Room: %s\n", r.ID)
	o.printf("Game: %s v%s (%s)\n", r.GameName, r.GameVersion, r.GameID)
	o.printf("Status: %s\n", r.Status)
	o.printf("Port: %d\n", r.Port)
	o.printf("Players (%d/%d):\n", len(r.Players), r.MaxPlayers)
	for _, p := range r.Players {
		hostStr := ""
		if p == r.Host {
			hostStr = " [host]"
		}
		o.printf("  - %s%s\n", p, hostStr)
	}
}

func (o *Output) printRooms(rooms []Room) {
	if len(rooms) == 0 {
		o.printf("No rooms\n")
		return
	}
	for _, r := range rooms {
		o.printf("%s  %s  %s  %d/%d players, host %s\n",
			r.ID, r.GameName, r.Status, len(r.Players), r.MaxPlayers, r.Host)
	}
}

func (o *Output) printStart(s StartResult) {
	o.printf("Match started in room %s on port %d\n", s.RoomID, s.Port)
	o.printf("Players: %s\n", strings.Join(s.Players, ", "))
	if len(s.ClientCommand) > 0 {
		o.printf("Client: %s\n", strings.Join(s.ClientCommand, " "))
	}
}

func (o *Output) printLobby(l LobbyInfo) {
	o.printf("Online players (%d): %s\n", l.OnlineCount, strings.Join(l.OnlinePlayers, ", "))
	o.printf("Active games: %d\n", l.ActiveGames)
	o.printf("Rooms (%d):\n", l.RoomCount)
	for _, r := range l.Rooms {
		o.printf("  - %s %s (%s, %d/%d)\n", r.ID, r.GameName, r.Status, len(r.Players), r.MaxPlayers)
	}
}

func (o *Output) printProfile(p Profile) {
	o.printf("Player: %s (%s)\n", p.DisplayName, p.Username)
	o.printf("Played games (%d):\n", len(p.PlayedGames))
	for _, g := range p.PlayedGames {
		o.printf("  - %s v%s (%s)\n", g.Name, g.Version, g.ID)
	}
}
