package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/gamestore-lobby/internal/middleware"
)

// Logging creates request logging middleware for the API. Health checks
// are logged at debug level since probes call them constantly.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger, middleware.QuietPaths("/api/v1/health"))
}
