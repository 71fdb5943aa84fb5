package redis

import "fmt"

// Snapshot sections, one hash field each
const (
	sectionDevelopers = "developers"
	sectionPlayers    = "players"
	sectionGames      = "games"
	sectionReviews    = "reviews"
	sectionPlugins    = "plugins"
)

var sections = []string{sectionDevelopers, sectionPlayers, sectionGames, sectionReviews, sectionPlugins}

// snapshotKey returns the Redis key for the snapshot hash
func snapshotKey(prefix string) string {
	return fmt.Sprintf("%s:snapshot", prefix)
}

// corruptedKey returns the key an unreadable snapshot is renamed to
func corruptedKey(prefix string) string {
	return fmt.Sprintf("%s:snapshot:corrupted", prefix)
}
