package catalog

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcoot/gamestore-lobby/internal/dependencies/random"
	"github.com/mcoot/gamestore-lobby/internal/model"
)

// Defaults applied to fields a developer leaves out
const (
	DefaultDescription = "No description provided"
	DefaultVersion     = "1.0.0"
	DefaultPlayers     = 2
)

// GameInfo is the metadata a developer supplies when publishing
type GameInfo struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Version     string             `json:"version"`
	Category    model.GameCategory `json:"game_type"`
	MinPlayers  int                `json:"min_players"`
	MaxPlayers  int                `json:"max_players"`
}

func (i GameInfo) normalize() (GameInfo, error) {
	i.Name = strings.TrimSpace(i.Name)
	if i.Name == "" {
		return i, model.ErrGameNameRequired
	}
	i.Description = strings.TrimSpace(i.Description)
	if i.Description == "" {
		i.Description = DefaultDescription
	}
	i.Version = strings.TrimSpace(i.Version)
	if i.Version == "" {
		i.Version = DefaultVersion
	}
	switch strings.ToUpper(string(i.Category)) {
	case "", string(model.CategoryCLI):
		i.Category = model.CategoryCLI
	case string(model.CategoryGUI):
		i.Category = model.CategoryGUI
	default:
		i.Category = model.CategoryCLI
	}
	if i.MinPlayers == 0 {
		i.MinPlayers = DefaultPlayers
	}
	if i.MaxPlayers == 0 {
		i.MaxPlayers = DefaultPlayers
	}
	if i.MinPlayers < 1 || i.MaxPlayers < i.MinPlayers {
		return i, model.ErrInvalidPlayers
	}
	return i, nil
}

// Upload is an upload or update waiting for its bundle to arrive
type Upload struct {
	GameID model.GameID
	// Dir is where the transferred archive should be received
	Dir string

	developer string
	info      GameInfo
	update    bool
	version   string
	notes     string
}

// BeginUpload validates a new game and reserves its storage directory
func (s *Service) BeginUpload(developer string, info GameInfo) (*Upload, error) {
	info, err := info.normalize()
	if err != nil {
		return nil, err
	}

	var id model.GameID
	var taken bool
	s.repo.View(func(snap *model.Snapshot) {
		taken = s.nameTaken(snap, info.Name, "")
		for {
			id = model.GameID(s.random.String(GameIDLength, random.IDAlphabet))
			if _, exists := snap.Games[id]; !exists {
				break
			}
		}
	})
	if taken {
		return nil, model.ErrGameNameTaken
	}

	dir := s.storagePath(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrapPath("create", dir, err)
	}
	return &Upload{
		GameID:    id,
		Dir:       dir,
		developer: developer,
		info:      info,
	}, nil
}

// BeginUpdate validates a version bump and prepares a staging directory
func (s *Service) BeginUpdate(developer string, id model.GameID, version, notes string) (*Upload, error) {
	g, err := s.Game(id)
	if err != nil {
		return nil, err
	}
	if err := checkOwnedActive(g, developer); err != nil {
		return nil, err
	}
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, model.ErrVersionRequired
	}
	if version == g.Version {
		return nil, model.ErrSameVersion
	}

	if err := os.MkdirAll(g.StoragePath, 0o755); err != nil {
		return nil, wrapPath("create", g.StoragePath, err)
	}
	staging, err := os.MkdirTemp(g.StoragePath, ".update-*")
	if err != nil {
		return nil, err
	}
	return &Upload{
		GameID:    id,
		Dir:       staging,
		developer: developer,
		update:    true,
		version:   version,
		notes:     strings.TrimSpace(notes),
	}, nil
}

// Abort discards everything an unfinished upload wrote
func (s *Service) Abort(up *Upload) {
	if err := os.RemoveAll(up.Dir); err != nil {
		s.logger.Warn("failed to clean up upload",
			slog.String("dir", up.Dir),
			slog.String("error", err.Error()),
		)
	}
}

// Finish installs the received archive and records the game. Any failure
// removes the files the upload wrote.
func (s *Service) Finish(ctx context.Context, up *Upload, received string) (*model.Game, error) {
	if up.update {
		return s.finishUpdate(ctx, up, received)
	}
	return s.finishUpload(ctx, up, received)
}

func (s *Service) finishUpload(ctx context.Context, up *Upload, received string) (*model.Game, error) {
	if _, err := installBundle(received, filepath.Join(up.Dir, bundleDir)); err != nil {
		s.Abort(up)
		return nil, err
	}

	now := s.clock.Now()
	game := &model.Game{
		ID:          up.GameID,
		Name:        up.info.Name,
		Description: up.info.Description,
		Developer:   up.developer,
		Version:     up.info.Version,
		Category:    up.info.Category,
		MinPlayers:  up.info.MinPlayers,
		MaxPlayers:  up.info.MaxPlayers,
		Status:      model.GameStatusActive,
		StoragePath: up.Dir,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.repo.Update(ctx, func(snap *model.Snapshot) error {
		if s.nameTaken(snap, game.Name, "") {
			return model.ErrGameNameTaken
		}
		cp := *game
		snap.Games[game.ID] = &cp
		return nil
	})
	if err != nil {
		s.Abort(up)
		return nil, err
	}

	s.logger.Info("game published",
		slog.String("game_id", string(game.ID)),
		slog.String("name", game.Name),
		slog.String("developer", game.Developer),
	)
	return game, nil
}

func (s *Service) finishUpdate(ctx context.Context, up *Upload, received string) (*model.Game, error) {
	defer s.Abort(up)

	staged := filepath.Join(up.Dir, bundleDir)
	if _, err := installBundle(received, staged); err != nil {
		return nil, err
	}

	g, err := s.Game(up.GameID)
	if err != nil {
		return nil, err
	}
	// The live bundle is moved aside into the staging directory and only
	// discarded with it once the new version is recorded
	live := filepath.Join(g.StoragePath, bundleDir)
	previous := filepath.Join(up.Dir, "previous")
	hadPrevious := true
	if err := os.Rename(live, previous); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, wrapPath("set aside", live, err)
		}
		hadPrevious = false
	}
	restore := func() {
		_ = os.RemoveAll(live)
		if !hadPrevious {
			return
		}
		if err := os.Rename(previous, live); err != nil {
			s.logger.Error("failed to restore previous bundle",
				slog.String("game_id", string(up.GameID)),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := os.Rename(staged, live); err != nil {
		restore()
		return nil, wrapPath("install", live, err)
	}

	var updated model.Game
	err = s.repo.Update(ctx, func(snap *model.Snapshot) error {
		g, ok := snap.Games[up.GameID]
		if !ok {
			return model.ErrGameNotFound
		}
		if err := checkOwnedActive(g, up.developer); err != nil {
			return err
		}
		now := s.clock.Now()
		g.Version = up.version
		g.UpdatedAt = now
		g.UpdateHistory = append(g.UpdateHistory, model.GameUpdate{
			Version: up.version,
			Notes:   up.notes,
			Date:    now,
		})
		updated = *g
		return nil
	})
	if err != nil {
		restore()
		return nil, err
	}

	s.logger.Info("game updated",
		slog.String("game_id", string(up.GameID)),
		slog.String("version", up.version),
	)
	return &updated, nil
}

// Download is a packed bundle ready to send
type Download struct {
	Game *model.Game
	Path string

	dir string
}

// Close removes the packed archive
func (d *Download) Close() error {
	return os.RemoveAll(d.dir)
}

// PrepareDownload packs an active game's bundle into a temporary archive
// named after the game id.
func (s *Service) PrepareDownload(id model.GameID) (*Download, error) {
	g, err := s.ActiveGame(id)
	if err != nil {
		return nil, err
	}
	src := s.bundlePath(g)
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return nil, model.ErrBundleMissing
	}

	dir, err := os.MkdirTemp("", "gamestore-download-*")
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, string(id)+".zip")
	if err := packZip(src, path); err != nil {
		_ = os.RemoveAll(dir)
		return nil, wrapPath("pack", src, err)
	}
	return &Download{Game: g, Path: path, dir: dir}, nil
}

// RecordDownload counts a completed download
func (s *Service) RecordDownload(ctx context.Context, id model.GameID) error {
	return s.repo.Update(ctx, func(snap *model.Snapshot) error {
		g, ok := snap.Games[id]
		if !ok {
			return model.ErrGameNotFound
		}
		g.DownloadCount++
		return nil
	})
}
