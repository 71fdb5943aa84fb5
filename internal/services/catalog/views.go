package catalog

import (
	"time"

	"github.com/mcoot/gamestore-lobby/internal/model"
)

// Summary is a game as shown in listings
type Summary struct {
	ID            model.GameID       `json:"game_id"`
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	Developer     string             `json:"developer"`
	Version       string             `json:"version"`
	Category      model.GameCategory `json:"game_type"`
	MinPlayers    int                `json:"min_players"`
	MaxPlayers    int                `json:"max_players"`
	Status        model.GameStatus   `json:"status"`
	AvgRating     float64            `json:"avg_rating"`
	ReviewCount   int                `json:"review_count"`
	DownloadCount int                `json:"download_count"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Detail is a game with its recent reviews
type Detail struct {
	Summary
	UpdateHistory []model.GameUpdate `json:"update_history"`
	Reviews       []model.Review     `json:"reviews"`
}

// PlayedGame is an entry of a player's profile
type PlayedGame struct {
	ID      model.GameID `json:"game_id"`
	Name    string       `json:"name"`
	Version string       `json:"version"`
}

// Profile is a player's public record
type Profile struct {
	Username    string       `json:"username"`
	DisplayName string       `json:"display_name"`
	CreatedAt   time.Time    `json:"created_at"`
	PlayedGames []PlayedGame `json:"played_games"`
}

func summarize(g *model.Game, reviews []model.Review) Summary {
	return Summary{
		ID:            g.ID,
		Name:          g.Name,
		Description:   g.Description,
		Developer:     g.Developer,
		Version:       g.Version,
		Category:      g.Category,
		MinPlayers:    g.MinPlayers,
		MaxPlayers:    g.MaxPlayers,
		Status:        g.Status,
		AvgRating:     model.AverageRating(reviews),
		ReviewCount:   len(reviews),
		DownloadCount: g.DownloadCount,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
	}
}
