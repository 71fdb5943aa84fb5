package model

import "time"

// PluginID identifies an optional client add-on
type PluginID string

// Plugin is an add-on file players can install next to their games
type Plugin struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Filename    string    `json:"filename"`
	UpdatedAt   time.Time `json:"updated_at"`
}
