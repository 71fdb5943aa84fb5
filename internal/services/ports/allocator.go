// Package ports leases TCP ports from a fixed range to rooms.
package ports

import (
	"sync"

	"github.com/mcoot/gamestore-lobby/internal/model"
)

// Default port range; the upper bound is exclusive
const (
	DefaultFirst = 9000
	DefaultLast  = 9100
)

// Allocator hands out the lowest free port in [first, last)
type Allocator struct {
	first int
	last  int

	mu     sync.Mutex
	leased []bool
}

// New creates an allocator for ports in [first, last). An empty or inverted
// range yields an allocator that is always exhausted.
func New(first, last int) *Allocator {
	size := last - first
	if size < 0 {
		size = 0
	}
	return &Allocator{
		first:  first,
		last:   last,
		leased: make([]bool, size),
	}
}

// Allocate leases and returns the lowest free port
func (a *Allocator) Allocate() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, taken := range a.leased {
		if !taken {
			a.leased[i] = true
			return a.first + i, nil
		}
	}
	return 0, model.ErrPortsExhausted
}

// Release returns a port to the free pool. Releasing a free or
// out-of-range port is a no-op.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if i, ok := a.index(port); ok {
		a.leased[i] = false
	}
}

// Leased reports whether port is currently leased
func (a *Allocator) Leased(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	i, ok := a.index(port)
	return ok && a.leased[i]
}

// Available returns the number of free ports
func (a *Allocator) Available() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, taken := range a.leased {
		if !taken {
			n++
		}
	}
	return n
}

// Range returns the configured [first, last) bounds
func (a *Allocator) Range() (first, last int) {
	return a.first, a.last
}

func (a *Allocator) index(port int) (int, bool) {
	if port < a.first || port >= a.last {
		return 0, false
	}
	return port - a.first, true
}
