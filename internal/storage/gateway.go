package storage

import (
	"context"

	"github.com/mcoot/gamestore-lobby/internal/model"
)

// Gateway is the durable record of accounts, games and reviews. The lobby
// only ever loads the whole snapshot at startup and saves the whole
// snapshot after a change; any storage engine can sit behind it.
//
// Implementations must not fail Load because stored data is unreadable:
// the unreadable store is quarantined and an empty snapshot returned.
type Gateway interface {
	Load(ctx context.Context) (*model.Snapshot, error)
	Save(ctx context.Context, snap *model.Snapshot) error
}
