package model

import "time"

// GameID uniquely identifies a published game
type GameID string

// GameStatus is the publication state of a game
type GameStatus string

const (
	GameStatusActive      GameStatus = "active"
	GameStatusUnpublished GameStatus = "unpublished"
)

// GameCategory is the kind of client a game ships
type GameCategory string

const (
	CategoryCLI GameCategory = "CLI" // turn-based, terminal client
	CategoryGUI GameCategory = "GUI" // graphical client
)

// GameUpdate is one entry of a game's version history
type GameUpdate struct {
	Version string    `json:"version"`
	Notes   string    `json:"notes"`
	Date    time.Time `json:"date"`
}

// Game is a published game bundle
type Game struct {
	ID            GameID       `json:"game_id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Developer     string       `json:"developer"`
	Version       string       `json:"version"`
	Category      GameCategory `json:"game_type"`
	MinPlayers    int          `json:"min_players"`
	MaxPlayers    int          `json:"max_players"`
	Status        GameStatus   `json:"status"`
	StoragePath   string       `json:"storage_path"`
	DownloadCount int          `json:"download_count"`
	UpdateHistory []GameUpdate `json:"update_history,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	UnpublishedAt *time.Time   `json:"unpublished_at,omitempty"`
}

// IsActive reports whether the game can be downloaded and played
func (g *Game) IsActive() bool {
	return g.Status == GameStatusActive
}

// Review is a player's rating of a game
type Review struct {
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// AverageRating returns the mean rating rounded to one decimal place
func AverageRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	avg := float64(sum) / float64(len(reviews))
	return float64(int(avg*10+0.5)) / 10
}
