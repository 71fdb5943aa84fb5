package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/gamestore-lobby/internal/api/apierr"
	"github.com/mcoot/gamestore-lobby/internal/api/events"
	"github.com/mcoot/gamestore-lobby/internal/api/handler"
	"github.com/mcoot/gamestore-lobby/internal/api/middleware"
	"github.com/mcoot/gamestore-lobby/internal/services/room"
)

// RouterConfig holds configuration for the admin router
type RouterConfig struct {
	Logger *slog.Logger
	// AdminToken, when set, is required as a bearer token on every route
	// except the health check
	AdminToken  string
	Sessions    handler.Sessions
	Catalog     handler.Catalog
	Rooms       room.ControllerInterface
	Ports       handler.Ports
	Connections handler.Connections
	// Events, when set, is streamed on /api/v1/events
	Events *events.Hub
}

// NewRouter creates the admin router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierr.WriteError(w, apierr.NewNotFoundError())
	})

	adminHandler := handler.NewAdminHandler(cfg.Sessions, cfg.Catalog, cfg.Rooms, cfg.Ports, cfg.Connections, cfg.Events, cfg.Logger)

	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)
	authMiddleware := middleware.AdminToken(cfg.AdminToken)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", adminHandler.Health).Methods(http.MethodGet)

	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware)
	protected.HandleFunc("/lobby", adminHandler.Lobby).Methods(http.MethodGet)
	protected.HandleFunc("/ports", adminHandler.Ports).Methods(http.MethodGet)
	protected.HandleFunc("/events", adminHandler.Events).Methods(http.MethodGet)
	protected.HandleFunc("/rooms", adminHandler.ListRooms).Methods(http.MethodGet)
	protected.HandleFunc("/rooms/{id}", adminHandler.GetRoom).Methods(http.MethodGet)
	protected.HandleFunc("/rooms/{id}", adminHandler.EndRoom).Methods(http.MethodDelete)
	protected.HandleFunc("/rooms/{id}/output", adminHandler.WorkerOutput).Methods(http.MethodGet)
	protected.HandleFunc("/plugins", adminHandler.ListPlugins).Methods(http.MethodGet)
	protected.HandleFunc("/plugins/{id}", adminHandler.PublishPlugin).Methods(http.MethodPut)

	return r
}
