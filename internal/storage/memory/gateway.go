package memory

import (
	"context"
	"sync"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/storage"
)

// Gateway is an in-memory implementation of the storage gateway
type Gateway struct {
	mu    sync.Mutex
	snap  *model.Snapshot
	saves int
}

// New creates an empty in-memory gateway
func New() *Gateway {
	return &Gateway{snap: model.NewSnapshot()}
}

// Ensure Gateway implements the interface
var _ storage.Gateway = (*Gateway)(nil)

// Load returns a copy of the last saved snapshot
func (g *Gateway) Load(ctx context.Context) (*model.Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap.Clone()
}

// Save stores a copy of the snapshot
func (g *Gateway) Save(ctx context.Context, snap *model.Snapshot) error {
	cp, err := snap.Clone()
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snap = cp
	g.saves++
	return nil
}

// Saves returns how many times Save has been called
func (g *Gateway) Saves() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saves
}
