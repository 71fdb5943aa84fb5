// Package file persists the lobby snapshot as a single JSON document.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/storage"
)

// QuarantineSuffix is appended to an unreadable database file
const QuarantineSuffix = ".corrupted"

// Gateway stores the snapshot in a JSON file
type Gateway struct {
	path   string
	logger *slog.Logger
}

// New creates a file gateway for path. The file is created on first save.
func New(path string, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Gateway{path: path, logger: logger}
}

// Ensure Gateway implements the interface
var _ storage.Gateway = (*Gateway)(nil)

// Load reads the snapshot. A missing file yields an empty snapshot; an
// undecodable file is moved aside and also yields an empty snapshot.
func (g *Gateway) Load(ctx context.Context) (*model.Snapshot, error) {
	data, err := os.ReadFile(g.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.NewSnapshot(), nil
		}
		return nil, err
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		quarantined := g.path + QuarantineSuffix
		if rerr := os.Rename(g.path, quarantined); rerr != nil {
			return nil, fmt.Errorf("quarantine %s: %w", g.path, rerr)
		}
		g.logger.Warn("database file unreadable, starting empty",
			slog.String("path", g.path),
			slog.String("quarantined", quarantined),
			slog.String("error", err.Error()),
		)
		return model.NewSnapshot(), nil
	}

	snap.Normalize()
	return &snap, nil
}

// Save writes the snapshot to a temporary file and renames it into place
func (g *Gateway) Save(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "    ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(g.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".database-*.json")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, g.path)
}
