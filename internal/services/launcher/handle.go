package launcher

import (
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/mcoot/gamestore-lobby/internal/model"
)

// DefaultTerminateGrace is how long Terminate waits after SIGTERM before killing
const DefaultTerminateGrace = 5 * time.Second

// Handle is a supervised worker process. Its outcome is assigned exactly
// once: by the worker's result report, by the exit watchdog, or by Terminate,
// whichever comes first.
type Handle struct {
	RoomID    model.RoomID
	Port      int
	StartedAt time.Time

	cmd    *exec.Cmd
	output *outputBuffer

	once    sync.Once
	outcome model.MatchOutcome
	done    chan struct{}

	exited  chan struct{}
	exitErr error
}

// NewHandle returns a handle with no process attached. Terminate on such a
// handle only resolves it.
func NewHandle(roomID model.RoomID, port int) *Handle {
	return &Handle{
		RoomID:    roomID,
		Port:      port,
		StartedAt: time.Now().UTC(),
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
	}
}

// Resolve assigns the outcome. It returns false if the handle was already
// resolved.
func (h *Handle) Resolve(outcome model.MatchOutcome) bool {
	resolved := false
	h.once.Do(func() {
		h.outcome = outcome
		close(h.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the handle is resolved
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Outcome returns the resolved outcome, if any
func (h *Handle) Outcome() (model.MatchOutcome, bool) {
	select {
	case <-h.done:
		return h.outcome, true
	default:
		return "", false
	}
}

// Exited is closed once the process has exited and been reaped
func (h *Handle) Exited() <-chan struct{} {
	return h.exited
}

// ExitErr returns the wait error once the process has exited
func (h *Handle) ExitErr() error {
	select {
	case <-h.exited:
		return h.exitErr
	default:
		return nil
	}
}

// PID returns the process id, or 0 for a detached handle
func (h *Handle) PID() int {
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Output returns the tail of the worker's combined stdout and stderr
func (h *Handle) Output() string {
	if h.output == nil {
		return ""
	}
	return h.output.String()
}

// Terminate resolves the handle as terminated, then stops the process:
// SIGTERM first, a forced kill if it is still running after grace. It
// returns once the process has exited.
func (h *Handle) Terminate(grace time.Duration) {
	h.Resolve(model.OutcomeTerminated)

	if h.cmd == nil || h.cmd.Process == nil {
		return
	}
	if grace <= 0 {
		grace = DefaultTerminateGrace
	}

	select {
	case <-h.exited:
		return
	default:
	}

	_ = h.cmd.Process.Signal(syscall.SIGTERM)

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-h.exited:
		return
	case <-timer.C:
	}

	_ = h.cmd.Process.Kill()
	<-h.exited
}

func (h *Handle) markExited(err error) {
	h.exitErr = err
	close(h.exited)
}
