package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcoot/gamestore-lobby/internal/model"
)

// Repository holds the loaded snapshot in memory and writes it through the
// gateway synchronously on every change.
//
// The repository lock is a leaf: callbacks passed to View and Update must
// not call into other lobby components.
type Repository struct {
	gateway Gateway

	mu    sync.RWMutex
	state *model.Snapshot
}

// NewRepository loads the initial snapshot from the gateway
func NewRepository(ctx context.Context, gateway Gateway) (*Repository, error) {
	snap, err := gateway.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		snap = model.NewSnapshot()
	}
	snap.Normalize()

	return &Repository{
		gateway: gateway,
		state:   snap,
	}, nil
}

// View runs fn with read access to the current snapshot. fn must not retain
// or mutate anything it reads.
func (r *Repository) View(fn func(s *model.Snapshot)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(r.state)
}

// Update runs fn against a working copy of the snapshot and saves it. The
// in-memory state only changes when fn succeeds and the save succeeds.
func (r *Repository) Update(ctx context.Context, fn func(s *model.Snapshot) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	working, err := r.state.Clone()
	if err != nil {
		return fmt.Errorf("copy snapshot: %w", err)
	}
	if err := fn(working); err != nil {
		return err
	}
	if err := r.gateway.Save(ctx, working); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	r.state = working
	return nil
}
