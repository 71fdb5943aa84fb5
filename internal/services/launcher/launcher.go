// Package launcher starts and supervises per-room worker processes.
package launcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/mcoot/gamestore-lobby/internal/model"
)

// Environment variables set on every worker
const (
	EnvRoomID       = "LOBBY_ROOM_ID"
	EnvPort         = "LOBBY_WORKER_PORT"
	EnvCallbackPort = "LOBBY_CALLBACK_PORT"
	EnvWorkerToken  = "LOBBY_WORKER_TOKEN"
)

// waitDelay bounds how long reaping waits for output pipes held open by
// orphaned grandchildren.
const waitDelay = time.Second

// Spec is a game's executable launch specification
type Spec struct {
	Command []string
	Dir     string
}

// Request describes one worker launch
type Request struct {
	RoomID      model.RoomID
	Spec        Spec
	Port        int
	WorkerToken string

	// OnExit is called once, from the supervisor goroutine, after the
	// process exits and has been reaped.
	OnExit func(h *Handle, err error)
}

// Config holds configuration for the launcher
type Config struct {
	// LobbyPort is the public port workers call back on
	LobbyPort int
	// CallbackFlag names the flag carrying LobbyPort
	CallbackFlag string
	// PassTokenFlag appends --worker-token to the command line. The token
	// is always available in the environment.
	PassTokenFlag bool
	// OutputLimit bounds the captured output per worker
	OutputLimit int
}

// DefaultConfig returns default launcher configuration
func DefaultConfig() Config {
	return Config{
		LobbyPort:    7000,
		CallbackFlag: "--lobby-port",
		OutputLimit:  DefaultOutputLimit,
	}
}

// Launcher starts worker processes without blocking on their exit
type Launcher struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a launcher
func New(cfg Config, logger *slog.Logger) *Launcher {
	if cfg.CallbackFlag == "" {
		cfg.CallbackFlag = DefaultConfig().CallbackFlag
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Launcher{cfg: cfg, logger: logger}
}

// Args returns the full command line for a launch request
func (l *Launcher) Args(req Request) []string {
	args := append([]string{}, req.Spec.Command...)
	args = append(args,
		"--port", strconv.Itoa(req.Port),
		l.cfg.CallbackFlag, strconv.Itoa(l.cfg.LobbyPort),
		"--room-id", string(req.RoomID),
	)
	if l.cfg.PassTokenFlag && req.WorkerToken != "" {
		args = append(args, "--worker-token", req.WorkerToken)
	}
	return args
}

// Launch starts the worker and returns immediately. A goroutine reaps the
// process and invokes req.OnExit.
func (l *Launcher) Launch(ctx context.Context, req Request) (*Handle, error) {
	if len(req.Spec.Command) == 0 || req.Spec.Command[0] == "" {
		return nil, model.ErrNoLaunchSpec
	}

	args := l.Args(req)
	logger := l.logger.With(
		slog.String("room_id", string(req.RoomID)),
		slog.Int("port", req.Port),
	)

	// Not bound to ctx: the worker outlives the request that started it
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = req.Spec.Dir
	cmd.Env = append(os.Environ(),
		EnvRoomID+"="+string(req.RoomID),
		EnvPort+"="+strconv.Itoa(req.Port),
		EnvCallbackPort+"="+strconv.Itoa(l.cfg.LobbyPort),
		EnvWorkerToken+"="+req.WorkerToken,
	)
	cmd.WaitDelay = waitDelay

	h := NewHandle(req.RoomID, req.Port)
	h.cmd = cmd
	h.output = newOutputBuffer(l.cfg.OutputLimit, logger)
	cmd.Stdout = h.output
	cmd.Stderr = h.output

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start worker %q: %w", model.ErrLaunchFailed, args[0], err)
	}
	h.StartedAt = time.Now().UTC()

	logger.Info("worker started",
		slog.Int("pid", cmd.Process.Pid),
		slog.Any("command", args),
	)

	go l.supervise(h, req.OnExit, logger)
	return h, nil
}

func (l *Launcher) supervise(h *Handle, onExit func(*Handle, error), logger *slog.Logger) {
	err := h.cmd.Wait()
	h.markExited(err)

	attrs := []any{slog.Int("pid", h.PID())}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.Info("worker exited", attrs...)

	if onExit != nil {
		onExit(h, err)
	}
}
