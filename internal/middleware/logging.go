package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// ResponseWriter wraps http.ResponseWriter to capture the status code and size
type ResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

// WriteHeader captures the status code
func (rw *ResponseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// Write captures the response size
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Flush lets streaming handlers flush through the wrapper
func (rw *ResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Status returns the captured status code
func (rw *ResponseWriter) Status() int {
	return rw.status
}

// Size returns the captured response size
func (rw *ResponseWriter) Size() int {
	return rw.size
}

// LevelFunc picks the log level for a finished request
type LevelFunc func(r *http.Request, status int) slog.Level

// QuietPaths logs the given paths at debug level and everything else at
// info, or warn for server errors
func QuietPaths(paths ...string) LevelFunc {
	quiet := make(map[string]bool, len(paths))
	for _, p := range paths {
		quiet[p] = true
	}
	return func(r *http.Request, status int) slog.Level {
		switch {
		case status >= http.StatusInternalServerError:
			return slog.LevelWarn
		case quiet[r.URL.Path]:
			return slog.LevelDebug
		default:
			return slog.LevelInfo
		}
	}
}

// Logging creates logging middleware that logs HTTP requests. A nil level
// logs every request at info.
func Logging(logger *slog.Logger, level LevelFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &ResponseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			lvl := slog.LevelInfo
			if level != nil {
				lvl = level(r, wrapped.status)
			}
			logger.Log(r.Context(), lvl, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.status),
				slog.Int("size", wrapped.size),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
