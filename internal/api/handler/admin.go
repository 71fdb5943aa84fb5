package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/mcoot/gamestore-lobby/internal/api/apierr"
	"github.com/mcoot/gamestore-lobby/internal/api/events"
	"github.com/mcoot/gamestore-lobby/internal/api/response"
	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/services/room"
)

// Sessions reports who is logged in
type Sessions interface {
	Online(class model.ClientClass) []string
	Count() int
}

// Catalog reports on published games and manages plugins
type Catalog interface {
	ActiveCount() int
	Plugins() map[model.PluginID]model.Plugin
	PublishPlugin(ctx context.Context, id model.PluginID, p model.Plugin, r io.Reader) (*model.Plugin, error)
}

// maxPluginSize bounds a plugin upload body
const maxPluginSize = 64 << 20

// Ports reports on the worker port pool
type Ports interface {
	Available() int
	Range() (first, last int)
}

// Connections reports the number of open lobby connections
type Connections interface {
	ConnectionCount() int
}

// AdminHandler serves the operator endpoints
type AdminHandler struct {
	sessions    Sessions
	catalog     Catalog
	rooms       room.ControllerInterface
	ports       Ports
	connections Connections
	events      *events.Hub
	logger      *slog.Logger
}

// NewAdminHandler creates a new admin handler. connections and hub may be nil.
func NewAdminHandler(sessions Sessions, catalog Catalog, rooms room.ControllerInterface, ports Ports, connections Connections, hub *events.Hub, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		sessions:    sessions,
		catalog:     catalog,
		rooms:       rooms,
		ports:       ports,
		connections: connections,
		events:      hub,
		logger:      logger,
	}
}

// Health handles GET /api/v1/health
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := response.Health{Status: "ok"}
	if h.connections != nil {
		body.Connections = h.connections.ConnectionCount()
	}
	response.JSON(w, http.StatusOK, body)
}

// Lobby handles GET /api/v1/lobby
func (h *AdminHandler) Lobby(w http.ResponseWriter, r *http.Request) {
	rooms := h.rooms.List()
	playing := 0
	for _, rm := range rooms {
		if rm.Status == model.RoomStatusPlaying {
			playing++
		}
	}
	response.JSON(w, http.StatusOK, response.Lobby{
		OnlinePlayers:    nonNil(h.sessions.Online(model.ClassPlayer)),
		OnlineDevelopers: nonNil(h.sessions.Online(model.ClassDeveloper)),
		Sessions:         h.sessions.Count(),
		RoomCount:        len(rooms),
		PlayingCount:     playing,
		ActiveGames:      h.catalog.ActiveCount(),
	})
}

// ListRooms handles GET /api/v1/rooms
func (h *AdminHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.rooms.List()
	out := make([]response.Room, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, response.RoomFromModel(rm, h.workerPID(rm.ID)))
	}
	response.JSON(w, http.StatusOK, out)
}

// GetRoom handles GET /api/v1/rooms/{id}
func (h *AdminHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id := model.RoomID(mux.Vars(r)["id"])

	rm, err := h.rooms.Get(id)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.RoomFromModel(rm, h.workerPID(id)))
}

// WorkerOutput handles GET /api/v1/rooms/{id}/output
func (h *AdminHandler) WorkerOutput(w http.ResponseWriter, r *http.Request) {
	id := model.RoomID(mux.Vars(r)["id"])

	if _, err := h.rooms.Get(id); err != nil {
		apierr.WriteError(w, err)
		return
	}
	handle, ok := h.rooms.Handle(id)
	if !ok {
		apierr.WriteError(w, model.ErrNotPlaying)
		return
	}
	response.JSON(w, http.StatusOK, response.WorkerOutput{RoomID: string(id), Output: handle.Output()})
}

// EndRoom handles DELETE /api/v1/rooms/{id}
func (h *AdminHandler) EndRoom(w http.ResponseWriter, r *http.Request) {
	id := model.RoomID(mux.Vars(r)["id"])

	if err := h.rooms.AdminForceEnd(r.Context(), id); err != nil {
		apierr.WriteError(w, err)
		return
	}
	h.logger.Info("room ended by admin", slog.String("room_id", string(id)))
	response.NoContent(w)
}

// Ports handles GET /api/v1/ports
func (h *AdminHandler) Ports(w http.ResponseWriter, r *http.Request) {
	first, last := h.ports.Range()
	available := h.ports.Available()
	response.JSON(w, http.StatusOK, response.Ports{
		First:     first,
		Last:      last,
		Available: available,
		Leased:    (last - first) - available,
	})
}

// ListPlugins handles GET /api/v1/plugins
func (h *AdminHandler) ListPlugins(w http.ResponseWriter, r *http.Request) {
	plugins := h.catalog.Plugins()
	out := make([]response.Plugin, 0, len(plugins))
	for id, p := range plugins {
		out = append(out, response.PluginFromModel(id, p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	response.JSON(w, http.StatusOK, out)
}

// PublishPlugin handles PUT /api/v1/plugins/{id}. The body is the plugin
// file; name, version, description and filename come from the query.
func (h *AdminHandler) PublishPlugin(w http.ResponseWriter, r *http.Request) {
	id := model.PluginID(mux.Vars(r)["id"])
	q := r.URL.Query()

	body := http.MaxBytesReader(w, r.Body, maxPluginSize)
	p, err := h.catalog.PublishPlugin(r.Context(), id, model.Plugin{
		Name:        q.Get("name"),
		Version:     q.Get("version"),
		Description: q.Get("description"),
		Filename:    q.Get("filename"),
	}, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierr.WriteError(w, apierr.NewInvalidRequestError("plugin file is too large"))
			return
		}
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PluginFromModel(id, *p))
}

// Events handles GET /api/v1/events
func (h *AdminHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		apierr.WriteError(w, apierr.NewNotFoundError())
		return
	}
	events.Serve(w, r, h.events)
}

func (h *AdminHandler) workerPID(id model.RoomID) int {
	if handle, ok := h.rooms.Handle(id); ok {
		return handle.PID()
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
