package cli

import (
	"os"
	"time"
)

// Config holds CLI configuration
type Config struct {
	Server   string
	Class    string
	Username string
	Password string
	Output   string
	Timeout  time.Duration
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Server:   getEnvOrDefault("LOBBY_SERVER", "localhost:7000"),
		Class:    getEnvOrDefault("LOBBY_CLASS", "player"),
		Username: os.Getenv("LOBBY_USERNAME"),
		Password: os.Getenv("LOBBY_PASSWORD"),
		Output:   "text",
		Timeout:  30 * time.Second,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
