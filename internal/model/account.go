package model

import "time"

// ClientClass distinguishes the two kinds of accounts
type ClientClass string

const (
	ClassDeveloper ClientClass = "developer"
	ClassPlayer    ClientClass = "player"
)

// Valid reports whether c is a known client class
func (c ClientClass) Valid() bool {
	return c == ClassDeveloper || c == ClassPlayer
}

// Account is a registered developer or player.
// Usernames are unique within a class, not across classes.
type Account struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password"`
	DisplayName  string    `json:"display_name"`
	CreatedAt    time.Time `json:"created_at"`
	SessionID    string    `json:"session_id,omitempty"` // empty when logged out

	// Player accounts only
	PlayedGames []GameID `json:"played_games,omitempty"`
}

// HasPlayed reports whether the account has started a match of the game
func (a *Account) HasPlayed(id GameID) bool {
	for _, g := range a.PlayedGames {
		if g == id {
			return true
		}
	}
	return false
}

// MarkPlayed records a played game, keeping the list free of duplicates
func (a *Account) MarkPlayed(id GameID) {
	if !a.HasPlayed(id) {
		a.PlayedGames = append(a.PlayedGames, id)
	}
}
