package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/gamestore-lobby/internal/api/apierr"
	"github.com/mcoot/gamestore-lobby/internal/middleware"
)

// Recovery wraps the shared recovery middleware so admin callers get the
// JSON error envelope instead of a plain-text 500
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger.With(slog.String("surface", "admin")), func(w http.ResponseWriter, _ *http.Request, _ any) {
		w.Header().Set("Cache-Control", "no-store")
		apierr.WriteError(w, apierr.NewInternalError())
	})
}
