// Package events streams room lifecycle events to admin API subscribers
// as server-sent events.
package events

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/gamestore-lobby/internal/model"
)

// Event names
const (
	EventConnected     = "connected"
	EventMatchFinished = "match-finished"
)

// MatchFinished is the payload of a match-finished event
type MatchFinished struct {
	RoomID     model.RoomID       `json:"room_id"`
	GameID     model.GameID       `json:"game_id"`
	GameName   string             `json:"game_name"`
	Players    []string           `json:"players"`
	Outcome    model.MatchOutcome `json:"outcome"`
	Detail     json.RawMessage    `json:"detail,omitempty"`
	ReportedAt time.Time          `json:"reported_at"`
}

// MatchFinishedFrom builds the payload for a recorded match result
func MatchFinishedFrom(r *model.Room, result model.MatchResult) MatchFinished {
	return MatchFinished{
		RoomID:     r.ID,
		GameID:     r.GameID,
		GameName:   r.GameName,
		Players:    append([]string{}, r.Members...),
		Outcome:    result.Outcome,
		Detail:     result.Detail,
		ReportedAt: result.ReportedAt,
	}
}

// Hub fans events out to every subscribed stream
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a hub; call Run to start delivering
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("component", "events")),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns after Close.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("event subscriber registered", slog.Int("subscribers", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("event subscriber unregistered",
					slog.Duration("connection_duration", time.Since(client.connectedAt)),
					slog.Int("subscribers", len(h.clients)))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			dropped := 0
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					dropped++
				}
			}
			h.mu.RUnlock()
			if dropped > 0 {
				h.logger.Warn("event dropped for slow subscribers", slog.Int("dropped", dropped))
			}

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register adds a client. It reports false once the hub is closed.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish sends a named event with a JSON payload to every subscriber
func (h *Hub) Publish(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode event", slog.String("event", name), slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- formatMessage(name, string(data)):
	case <-h.done:
	default:
		h.logger.Warn("event dropped, hub buffer full", slog.String("event", name))
	}
}

// Close stops the hub and ends every stream
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// formatMessage renders one event in the text/event-stream format. Each
// line of data gets its own data field.
func formatMessage(name, data string) []byte {
	var b strings.Builder
	b.WriteString("event: " + name + "\n")
	data = strings.ReplaceAll(data, "\r\n", "\n")
	for _, line := range strings.Split(strings.TrimSuffix(data, "\n"), "\n") {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}
