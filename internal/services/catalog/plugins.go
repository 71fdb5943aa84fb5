package catalog

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcoot/gamestore-lobby/internal/model"
)

// pluginDir is the directory under the storage root holding plugin files
const pluginDir = "plugins"

// Plugins returns a copy of every published plugin keyed by id
func (s *Service) Plugins() map[model.PluginID]model.Plugin {
	out := make(map[model.PluginID]model.Plugin)
	s.repo.View(func(snap *model.Snapshot) {
		for id, p := range snap.Plugins {
			out[id] = *p
		}
	})
	return out
}

// PluginFile returns a plugin and the path of its file on disk
func (s *Service) PluginFile(id model.PluginID) (*model.Plugin, string, error) {
	var out *model.Plugin
	s.repo.View(func(snap *model.Snapshot) {
		if p, ok := snap.Plugins[id]; ok {
			cp := *p
			out = &cp
		}
	})
	if out == nil {
		return nil, "", model.ErrPluginNotFound
	}
	path := filepath.Join(s.cfg.StorageDir, pluginDir, out.Filename)
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return nil, "", model.ErrPluginMissing
	}
	return out, path, nil
}

// PublishPlugin stores a plugin file read from r and records its metadata,
// replacing any earlier release under the same id.
func (s *Service) PublishPlugin(ctx context.Context, id model.PluginID, p model.Plugin, r io.Reader) (*model.Plugin, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Version = strings.TrimSpace(p.Version)
	if strings.TrimSpace(string(id)) == "" || p.Name == "" || p.Version == "" || !plainFilename(p.Filename) {
		return nil, model.ErrInvalidPlugin
	}

	dir := filepath.Join(s.cfg.StorageDir, pluginDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrapPath("create", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".plugin-*")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, wrapPath("write", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}
	target := filepath.Join(dir, p.Filename)
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return nil, wrapPath("install", target, err)
	}

	p.UpdatedAt = s.clock.Now()
	var replaced string
	err = s.repo.Update(ctx, func(snap *model.Snapshot) error {
		if prev, ok := snap.Plugins[id]; ok && prev.Filename != p.Filename {
			replaced = prev.Filename
		}
		cp := p
		snap.Plugins[id] = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	if replaced != "" {
		stale := filepath.Join(dir, replaced)
		if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to remove replaced plugin file",
				slog.String("path", stale),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("plugin published",
		slog.String("plugin_id", string(id)),
		slog.String("version", p.Version),
	)
	return &p, nil
}

func plainFilename(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}
