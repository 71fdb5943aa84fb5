package launcher

import (
	"bytes"
	"log/slog"
	"sync"
)

// DefaultOutputLimit bounds the captured output kept per worker
const DefaultOutputLimit = 64 << 10

// outputBuffer keeps the tail of a worker's combined output and logs each
// complete line at debug level.
type outputBuffer struct {
	mu      sync.Mutex
	limit   int
	buf     []byte
	partial []byte
	logger  *slog.Logger
}

func newOutputBuffer(limit int, logger *slog.Logger) *outputBuffer {
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	return &outputBuffer{limit: limit, logger: logger}
}

func (o *outputBuffer) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.buf = append(o.buf, p...)
	if over := len(o.buf) - o.limit; over > 0 {
		o.buf = append(o.buf[:0], o.buf[over:]...)
	}

	o.partial = append(o.partial, p...)
	for {
		i := bytes.IndexByte(o.partial, '\n')
		if i < 0 {
			break
		}
		o.logger.Debug("worker output", slog.String("line", string(bytes.TrimRight(o.partial[:i], "\r"))))
		o.partial = o.partial[i+1:]
	}
	if len(o.partial) > o.limit {
		o.partial = o.partial[len(o.partial)-o.limit:]
	}
	return len(p), nil
}

func (o *outputBuffer) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return string(o.buf)
}
