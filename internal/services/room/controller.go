// Package room implements the room state machine: waiting, playing, and
// destroyed (removed from the table).
package room

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/gamestore-lobby/internal/dependencies/clock"
	"github.com/mcoot/gamestore-lobby/internal/dependencies/random"
	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/services/launcher"
)

// RoomIDLength is the length of generated room identifiers
const RoomIDLength = 8

// GameSource resolves games and their launch specifications
type GameSource interface {
	ActiveGame(id model.GameID) (*model.Game, error)
	LaunchSpec(id model.GameID) (launcher.Spec, error)
	ClientSpec(id model.GameID) ([]string, error)
}

// Launcher starts worker processes
type Launcher interface {
	Launch(ctx context.Context, req launcher.Request) (*launcher.Handle, error)
}

// PortPool leases worker ports
type PortPool interface {
	Allocate() (int, error)
	Release(port int)
}

// ResultFunc observes every finished match
type ResultFunc func(room *model.Room, result model.MatchResult)

// Config holds configuration for the room controller
type Config struct {
	// ExitGrace is how long a worker that exited without reporting is
	// given before the match is recorded as aborted
	ExitGrace time.Duration
	// TerminateGrace is passed to Handle.Terminate on forced ends
	TerminateGrace time.Duration
	// RequireWorkerToken rejects result reports that carry no token
	RequireWorkerToken bool
}

// DefaultConfig returns default room configuration
func DefaultConfig() Config {
	return Config{
		ExitGrace:      3 * time.Second,
		TerminateGrace: launcher.DefaultTerminateGrace,
	}
}

// StartResult is returned by a successful Start
type StartResult struct {
	Room          *model.Room
	WorkerToken   string
	ClientCommand []string
}

// LeaveResult describes the effect of a Leave
type LeaveResult struct {
	Destroyed bool
	NewHost   string
}

type entry struct {
	room       *model.Room
	handle     *launcher.Handle
	token      string
	abortTimer *time.Timer
}

// Controller owns the room table and every worker handle.
//
// Lock order: session lock, then this controller's lock, then the port
// pool. Handles are terminated and observers notified only after the lock
// is released.
type Controller struct {
	games    GameSource
	launcher Launcher
	ports    PortPool
	clock    clock.Clock
	random   random.Random
	cfg      Config
	logger   *slog.Logger

	mu       sync.Mutex
	rooms    map[model.RoomID]*entry
	memberOf map[string]model.RoomID
	onResult []ResultFunc
}

// NewController creates a new room Controller
func NewController(
	games GameSource,
	launcher Launcher,
	ports PortPool,
	clock clock.Clock,
	random random.Random,
	cfg Config,
	logger *slog.Logger,
) *Controller {
	defaults := DefaultConfig()
	if cfg.ExitGrace <= 0 {
		cfg.ExitGrace = defaults.ExitGrace
	}
	if cfg.TerminateGrace <= 0 {
		cfg.TerminateGrace = defaults.TerminateGrace
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Controller{
		games:    games,
		launcher: launcher,
		ports:    ports,
		clock:    clock,
		random:   random,
		cfg:      cfg,
		logger:   logger,
		rooms:    make(map[model.RoomID]*entry),
		memberOf: make(map[string]model.RoomID),
	}
}

// OnResult registers an observer for finished matches
func (c *Controller) OnResult(fn ResultFunc) {
	c.mu.Lock()
	c.onResult = append(c.onResult, fn)
	c.mu.Unlock()
}

// Create opens a waiting room for an active game with host as its only member
func (c *Controller) Create(ctx context.Context, gameID model.GameID, host string) (*model.Room, error) {
	game, err := c.games.ActiveGame(gameID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.memberOf[host]; busy {
		return nil, model.ErrInOtherRoom
	}

	port, err := c.ports.Allocate()
	if err != nil {
		return nil, err
	}

	var id model.RoomID
	for {
		id = model.RoomID(c.random.String(RoomIDLength, random.IDAlphabet))
		if _, exists := c.rooms[id]; !exists {
			break
		}
	}

	r := &model.Room{
		ID:          id,
		GameID:      game.ID,
		GameName:    game.Name,
		GameVersion: game.Version,
		Host:        host,
		Members:     []string{host},
		MinPlayers:  game.MinPlayers,
		MaxPlayers:  game.MaxPlayers,
		Status:      model.RoomStatusWaiting,
		Port:        port,
		CreatedAt:   c.clock.Now(),
	}
	c.rooms[id] = &entry{room: r}
	c.memberOf[host] = id

	c.logger.Info("room created",
		slog.String("room_id", string(id)),
		slog.String("game_id", string(game.ID)),
		slog.String("host", host),
		slog.Int("port", port),
	)
	return r.Clone(), nil
}

// Join adds username to a waiting room with free capacity
func (c *Controller) Join(ctx context.Context, roomID model.RoomID, username string) (*model.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.rooms[roomID]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	if current, busy := c.memberOf[username]; busy {
		if current == roomID {
			return nil, model.ErrAlreadyInRoom
		}
		return nil, model.ErrInOtherRoom
	}
	if e.room.Status != model.RoomStatusWaiting {
		return nil, model.ErrGameInProgress
	}
	if e.room.IsFull() {
		return nil, model.ErrRoomFull
	}

	e.room.Members = append(e.room.Members, username)
	c.memberOf[username] = roomID

	c.logger.Info("room joined",
		slog.String("room_id", string(roomID)),
		slog.String("username", username),
	)
	return e.room.Clone(), nil
}

// Leave removes username from a room. The last member leaving destroys the
// room and releases its port; a departing host is replaced by the next
// member in join order.
func (c *Controller) Leave(ctx context.Context, roomID model.RoomID, username string) (LeaveResult, error) {
	c.mu.Lock()
	e, ok := c.rooms[roomID]
	if !ok {
		c.mu.Unlock()
		return LeaveResult{}, model.ErrRoomNotFound
	}
	if !e.room.RemoveMember(username) {
		c.mu.Unlock()
		return LeaveResult{}, model.ErrNotInRoom
	}
	delete(c.memberOf, username)

	var res LeaveResult
	var orphan *launcher.Handle
	var finished *model.Room
	if len(e.room.Members) == 0 {
		orphan = c.destroyLocked(e)
		if orphan != nil {
			finished = c.recordLocked(e, model.OutcomeTerminated, nil)
		}
		res.Destroyed = true
	} else if e.room.Host == username {
		e.room.Host = e.room.Members[0]
		res.NewHost = e.room.Host
	}
	observers := c.onResult
	c.mu.Unlock()

	c.logger.Info("room left",
		slog.String("room_id", string(roomID)),
		slog.String("username", username),
		slog.Bool("destroyed", res.Destroyed),
	)

	if orphan != nil {
		orphan.Terminate(c.cfg.TerminateGrace)
		notify(observers, finished)
	}
	return res, nil
}

// LeaveAny removes username from whatever room it is in. It is a no-op for
// accounts in no room.
func (c *Controller) LeaveAny(ctx context.Context, username string) {
	roomID, ok := c.RoomOf(username)
	if !ok {
		return
	}
	if _, err := c.Leave(ctx, roomID, username); err != nil {
		c.logger.Debug("leave on disconnect",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
	}
}

// Start launches the room's worker. Only the host may start, only from
// waiting, and only with at least the game's minimum players. On launch
// failure the room stays waiting and keeps its port.
func (c *Controller) Start(ctx context.Context, roomID model.RoomID, requester string) (*StartResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.rooms[roomID]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	if e.room.Host != requester {
		return nil, model.ErrNotHost
	}
	if e.room.Status != model.RoomStatusWaiting {
		return nil, model.ErrGameInProgress
	}
	if len(e.room.Members) < e.room.MinPlayers {
		return nil, model.ErrInsufficientPlayers
	}

	spec, err := c.games.LaunchSpec(e.room.GameID)
	if err != nil {
		return nil, err
	}

	token := c.random.Token()
	h, err := c.launcher.Launch(ctx, launcher.Request{
		RoomID:      roomID,
		Spec:        spec,
		Port:        e.room.Port,
		WorkerToken: token,
		OnExit:      c.workerExited,
	})
	if err != nil {
		c.logger.Warn("worker launch failed",
			slog.String("room_id", string(roomID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	e.handle = h
	e.token = token
	e.room.Status = model.RoomStatusPlaying

	clientCommand, err := c.games.ClientSpec(e.room.GameID)
	if err != nil {
		c.logger.Warn("client launch spec unavailable",
			slog.String("game_id", string(e.room.GameID)),
			slog.String("error", err.Error()),
		)
		clientCommand = []string{}
	}

	c.logger.Info("match started",
		slog.String("room_id", string(roomID)),
		slog.Int("port", e.room.Port),
		slog.Any("players", e.room.Members),
	)
	return &StartResult{
		Room:          e.room.Clone(),
		WorkerToken:   token,
		ClientCommand: clientCommand,
	}, nil
}

// ReportResult records a worker's result. The room must be playing; its
// handle is resolved exactly once and the room returns to waiting with its
// port still leased.
func (c *Controller) ReportResult(ctx context.Context, roomID model.RoomID, token string, detail json.RawMessage) error {
	c.mu.Lock()
	e, ok := c.rooms[roomID]
	if !ok {
		c.mu.Unlock()
		return model.ErrRoomNotFound
	}
	if e.room.Status != model.RoomStatusPlaying || e.handle == nil {
		c.mu.Unlock()
		return model.ErrNotPlaying
	}
	switch {
	case token == "" && c.cfg.RequireWorkerToken:
		c.mu.Unlock()
		return model.ErrWorkerTokenMismatch
	case token == "":
		c.logger.Warn("result reported without worker token",
			slog.String("room_id", string(roomID)),
		)
	case token != e.token:
		c.mu.Unlock()
		c.logger.Warn("result reported with wrong worker token",
			slog.String("room_id", string(roomID)),
		)
		return model.ErrWorkerTokenMismatch
	}
	if !e.handle.Resolve(model.OutcomeReported) {
		c.mu.Unlock()
		return model.ErrNotPlaying
	}
	finished := c.recordLocked(e, model.OutcomeReported, detail)
	c.finishLocked(e)
	observers := c.onResult
	c.mu.Unlock()

	c.logger.Info("match result reported",
		slog.String("room_id", string(roomID)),
	)
	notify(observers, finished)
	return nil
}

// ForceEnd terminates the room's worker, releases its port and destroys the
// room regardless of its members. Only the host may do this.
func (c *Controller) ForceEnd(ctx context.Context, roomID model.RoomID, requester string) error {
	return c.forceEnd(roomID, func(r *model.Room) error {
		if r.Host != requester {
			return model.ErrNotHost
		}
		return nil
	})
}

// AdminForceEnd is ForceEnd without the host check
func (c *Controller) AdminForceEnd(ctx context.Context, roomID model.RoomID) error {
	return c.forceEnd(roomID, func(*model.Room) error { return nil })
}

func (c *Controller) forceEnd(roomID model.RoomID, authorize func(*model.Room) error) error {
	c.mu.Lock()
	e, ok := c.rooms[roomID]
	if !ok {
		c.mu.Unlock()
		return model.ErrRoomNotFound
	}
	if err := authorize(e.room); err != nil {
		c.mu.Unlock()
		return err
	}
	var finished *model.Room
	if e.handle != nil {
		finished = c.recordLocked(e, model.OutcomeTerminated, nil)
	}
	h := c.destroyLocked(e)
	observers := c.onResult
	c.mu.Unlock()

	c.logger.Info("room force ended", slog.String("room_id", string(roomID)))

	if h != nil {
		h.Terminate(c.cfg.TerminateGrace)
		notify(observers, finished)
	}
	return nil
}

// SendChat appends a message from a member to the room's chat history
func (c *Controller) SendChat(ctx context.Context, roomID model.RoomID, username, message string) (model.ChatEntry, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return model.ChatEntry{}, model.ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.rooms[roomID]
	if !ok {
		return model.ChatEntry{}, model.ErrRoomNotFound
	}
	if !e.room.IsMember(username) {
		return model.ChatEntry{}, model.ErrNotInRoom
	}

	entry := model.ChatEntry{
		Username: username,
		Message:  message,
		SentAt:   c.clock.Now(),
	}
	e.room.AppendChat(entry)
	return entry, nil
}

// Chat returns the room's chat history to a member
func (c *Controller) Chat(ctx context.Context, roomID model.RoomID, username string) ([]model.ChatEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.rooms[roomID]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	if !e.room.IsMember(username) {
		return nil, model.ErrNotInRoom
	}
	return append([]model.ChatEntry{}, e.room.Chat...), nil
}

// Get returns a copy of a room
func (c *Controller) Get(roomID model.RoomID) (*model.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.rooms[roomID]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return e.room.Clone(), nil
}

// List returns copies of all rooms, oldest first
func (c *Controller) List() []*model.Room {
	c.mu.Lock()
	out := make([]*model.Room, 0, len(c.rooms))
	for _, e := range c.rooms {
		out = append(out, e.room.Clone())
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RoomOf returns the room username belongs to
func (c *Controller) RoomOf(username string) (model.RoomID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.memberOf[username]
	return id, ok
}

// HasPlayingRoom reports whether any room of the game is running a match
func (c *Controller) HasPlayingRoom(gameID model.GameID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.rooms {
		if e.room.GameID == gameID && e.room.Status == model.RoomStatusPlaying {
			return true
		}
	}
	return false
}

// Handle returns the live worker handle of a room, if any
func (c *Controller) Handle(roomID model.RoomID) (*launcher.Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.rooms[roomID]
	if !ok || e.handle == nil {
		return nil, false
	}
	return e.handle, true
}

// CloseAll destroys every room and terminates every worker. It waits for
// the workers to exit or for ctx to end.
func (c *Controller) CloseAll(ctx context.Context) error {
	c.mu.Lock()
	var handles []*launcher.Handle
	for _, e := range c.rooms {
		if h := c.destroyLocked(e); h != nil {
			handles = append(handles, h)
		}
	}
	c.mu.Unlock()

	if len(handles) == 0 {
		return nil
	}
	c.logger.Info("terminating workers", slog.Int("count", len(handles)))

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Terminate(c.cfg.TerminateGrace)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("terminate workers: %w", ctx.Err())
	}
}

// workerExited runs on the supervisor goroutine when a worker process
// exits. A worker that has not reported within ExitGrace is aborted.
func (c *Controller) workerExited(h *launcher.Handle, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.rooms[h.RoomID]
	if !ok || e.handle != h {
		return
	}
	c.logger.Info("worker exited before reporting",
		slog.String("room_id", string(h.RoomID)),
		slog.Duration("grace", c.cfg.ExitGrace),
	)
	e.abortTimer = time.AfterFunc(c.cfg.ExitGrace, func() { c.abort(h) })
}

func (c *Controller) abort(h *launcher.Handle) {
	c.mu.Lock()
	e, ok := c.rooms[h.RoomID]
	if !ok || e.handle != h || !h.Resolve(model.OutcomeAborted) {
		c.mu.Unlock()
		return
	}
	finished := c.recordLocked(e, model.OutcomeAborted, nil)
	c.finishLocked(e)
	observers := c.onResult
	c.mu.Unlock()

	c.logger.Warn("match aborted, worker exited without a result",
		slog.String("room_id", string(h.RoomID)),
		slog.String("output", h.Output()),
	)
	notify(observers, finished)
}

// recordLocked appends a result to the room history and returns a copy of
// the room for observers.
func (c *Controller) recordLocked(e *entry, outcome model.MatchOutcome, detail json.RawMessage) *model.Room {
	e.room.Results = append(e.room.Results, model.MatchResult{
		Outcome:    outcome,
		Detail:     detail,
		ReportedAt: c.clock.Now(),
	})
	return e.room.Clone()
}

// finishLocked returns a playing room to waiting. The port stays leased.
func (c *Controller) finishLocked(e *entry) {
	if e.abortTimer != nil {
		e.abortTimer.Stop()
		e.abortTimer = nil
	}
	e.handle = nil
	e.token = ""
	e.room.Status = model.RoomStatusWaiting
}

// destroyLocked removes the room, frees its members and releases its port.
// A live handle is resolved as terminated and returned for the caller to
// stop once the lock is released.
func (c *Controller) destroyLocked(e *entry) *launcher.Handle {
	h := e.handle
	if h != nil {
		h.Resolve(model.OutcomeTerminated)
	}
	c.finishLocked(e)

	for _, m := range e.room.Members {
		if c.memberOf[m] == e.room.ID {
			delete(c.memberOf, m)
		}
	}
	delete(c.rooms, e.room.ID)
	c.ports.Release(e.room.Port)

	c.logger.Info("room destroyed",
		slog.String("room_id", string(e.room.ID)),
		slog.Int("port", e.room.Port),
	)
	return h
}

func notify(observers []ResultFunc, r *model.Room) {
	if r == nil {
		return
	}
	result := r.Results[len(r.Results)-1]
	for _, fn := range observers {
		fn(r, result)
	}
}

// Interface for dependency injection
type ControllerInterface interface {
	Create(ctx context.Context, gameID model.GameID, host string) (*model.Room, error)
	Join(ctx context.Context, roomID model.RoomID, username string) (*model.Room, error)
	Leave(ctx context.Context, roomID model.RoomID, username string) (LeaveResult, error)
	LeaveAny(ctx context.Context, username string)
	Start(ctx context.Context, roomID model.RoomID, requester string) (*StartResult, error)
	ReportResult(ctx context.Context, roomID model.RoomID, token string, detail json.RawMessage) error
	ForceEnd(ctx context.Context, roomID model.RoomID, requester string) error
	AdminForceEnd(ctx context.Context, roomID model.RoomID) error
	SendChat(ctx context.Context, roomID model.RoomID, username, message string) (model.ChatEntry, error)
	Chat(ctx context.Context, roomID model.RoomID, username string) ([]model.ChatEntry, error)
	Get(roomID model.RoomID) (*model.Room, error)
	List() []*model.Room
	RoomOf(username string) (model.RoomID, bool)
	HasPlayingRoom(gameID model.GameID) bool
	Handle(roomID model.RoomID) (*launcher.Handle, bool)
	CloseAll(ctx context.Context) error
}

var _ ControllerInterface = (*Controller)(nil)
