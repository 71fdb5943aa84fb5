// Package catalog manages published game bundles, downloads and reviews.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mcoot/gamestore-lobby/internal/dependencies/clock"
	"github.com/mcoot/gamestore-lobby/internal/dependencies/random"
	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/services/launcher"
	"github.com/mcoot/gamestore-lobby/internal/storage"
)

const (
	// GameIDLength is the length of generated game identifiers
	GameIDLength = 8
	// RecentReviews is how many reviews a game detail includes
	RecentReviews = 10
	// MaxCommentLength bounds review comments, in characters
	MaxCommentLength = 500
)

// RoomQuery reports on live rooms
type RoomQuery interface {
	HasPlayingRoom(gameID model.GameID) bool
}

// Config holds configuration for the catalog
type Config struct {
	// StorageDir is the root directory for game bundles
	StorageDir string
	// MaxBundleSize bounds uploaded archives, in bytes
	MaxBundleSize int64
}

// DefaultConfig returns default catalog configuration
func DefaultConfig() Config {
	return Config{
		StorageDir:    "storage",
		MaxBundleSize: 512 << 20,
	}
}

// Service is the game catalog
type Service struct {
	repo   *storage.Repository
	rooms  RoomQuery
	clock  clock.Clock
	random random.Random
	cfg    Config
	logger *slog.Logger
}

// New creates a catalog service
func New(repo *storage.Repository, rooms RoomQuery, clock clock.Clock, random random.Random, cfg Config, logger *slog.Logger) *Service {
	defaults := DefaultConfig()
	if cfg.StorageDir == "" {
		cfg.StorageDir = defaults.StorageDir
	}
	if cfg.MaxBundleSize <= 0 {
		cfg.MaxBundleSize = defaults.MaxBundleSize
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Service{
		repo:   repo,
		rooms:  rooms,
		clock:  clock,
		random: random,
		cfg:    cfg,
		logger: logger,
	}
}

// SetRoomQuery wires the room table after construction
func (s *Service) SetRoomQuery(rooms RoomQuery) {
	s.rooms = rooms
}

// MaxBundleSize returns the upload size limit
func (s *Service) MaxBundleSize() int64 {
	return s.cfg.MaxBundleSize
}

// Game returns a copy of a game in any status
func (s *Service) Game(id model.GameID) (*model.Game, error) {
	var out *model.Game
	s.repo.View(func(snap *model.Snapshot) {
		if g, ok := snap.Games[id]; ok {
			cp := *g
			out = &cp
		}
	})
	if out == nil {
		return nil, model.ErrGameNotFound
	}
	return out, nil
}

// ActiveGame returns a copy of a game that is currently published
func (s *Service) ActiveGame(id model.GameID) (*model.Game, error) {
	g, err := s.Game(id)
	if err != nil {
		return nil, err
	}
	if !g.IsActive() {
		return nil, model.ErrGameNotActive
	}
	return g, nil
}

// ActiveCount returns the number of published games
func (s *Service) ActiveCount() int {
	n := 0
	s.repo.View(func(snap *model.Snapshot) {
		for _, g := range snap.Games {
			if g.IsActive() {
				n++
			}
		}
	})
	return n
}

// LaunchSpec returns the worker command for a game. The bundle directory
// is the working directory.
func (s *Service) LaunchSpec(id model.GameID) (launcher.Spec, error) {
	g, err := s.Game(id)
	if err != nil {
		return launcher.Spec{}, err
	}
	dir := s.bundlePath(g)
	m, err := s.manifest(dir)
	if err != nil {
		return launcher.Spec{}, err
	}
	if len(m.ServerCommand) == 0 {
		return launcher.Spec{}, model.ErrNoLaunchSpec
	}
	return launcher.Spec{Command: m.ServerCommand, Dir: dir}, nil
}

// ClientSpec returns the client command players run to join a match
func (s *Service) ClientSpec(id model.GameID) ([]string, error) {
	g, err := s.Game(id)
	if err != nil {
		return nil, err
	}
	m, err := s.manifest(s.bundlePath(g))
	if err != nil {
		return nil, err
	}
	return m.ClientCommand, nil
}

// ListMine returns every game owned by developer, in any status
func (s *Service) ListMine(developer string) []Summary {
	return s.list(func(g *model.Game) bool { return g.Developer == developer })
}

// ListActive returns every published game
func (s *Service) ListActive() []Summary {
	return s.list(func(g *model.Game) bool { return g.IsActive() })
}

// Detail returns a game with its most recent reviews
func (s *Service) Detail(id model.GameID) (*Detail, error) {
	var out *Detail
	s.repo.View(func(snap *model.Snapshot) {
		g, ok := snap.Games[id]
		if !ok {
			return
		}
		reviews := snap.Reviews[id]
		recent := reviews
		if len(recent) > RecentReviews {
			recent = recent[len(recent)-RecentReviews:]
		}
		out = &Detail{
			Summary:       summarize(g, reviews),
			UpdateHistory: append([]model.GameUpdate{}, g.UpdateHistory...),
			Reviews:       append([]model.Review{}, recent...),
		}
	})
	if out == nil {
		return nil, model.ErrGameNotFound
	}
	return out, nil
}

// Unpublish withdraws a game. Refused while any of its rooms is playing.
func (s *Service) Unpublish(ctx context.Context, developer string, id model.GameID) error {
	g, err := s.Game(id)
	if err != nil {
		return err
	}
	if err := checkOwnedActive(g, developer); err != nil {
		return err
	}
	if s.rooms != nil && s.rooms.HasPlayingRoom(id) {
		return model.ErrActiveRooms
	}

	err = s.repo.Update(ctx, func(snap *model.Snapshot) error {
		g, ok := snap.Games[id]
		if !ok {
			return model.ErrGameNotFound
		}
		if err := checkOwnedActive(g, developer); err != nil {
			return err
		}
		now := s.clock.Now()
		g.Status = model.GameStatusUnpublished
		g.UnpublishedAt = &now
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("game unpublished",
		slog.String("game_id", string(id)),
		slog.String("developer", developer),
	)
	return nil
}

func (s *Service) list(keep func(*model.Game) bool) []Summary {
	out := []Summary{}
	s.repo.View(func(snap *model.Snapshot) {
		for id, g := range snap.Games {
			if keep(g) {
				out = append(out, summarize(g, snap.Reviews[id]))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Service) manifest(dir string) (*Manifest, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		if _, statErr := os.Stat(dir); errors.Is(statErr, fs.ErrNotExist) {
			return nil, model.ErrBundleMissing
		}
		return nil, err
	}
	return m, nil
}

func (s *Service) storagePath(id model.GameID) string {
	return filepath.Join(s.cfg.StorageDir, string(id))
}

func (s *Service) bundlePath(g *model.Game) string {
	return filepath.Join(g.StoragePath, bundleDir)
}

func (s *Service) nameTaken(snap *model.Snapshot, name string, except model.GameID) bool {
	for id, g := range snap.Games {
		if id != except && g.IsActive() && strings.EqualFold(g.Name, name) {
			return true
		}
	}
	return false
}

func checkOwnedActive(g *model.Game, developer string) error {
	if g.Developer != developer {
		return model.ErrNotGameOwner
	}
	if !g.IsActive() {
		return model.ErrGameNotActive
	}
	return nil
}

func wrapPath(op, path string, err error) error {
	return fmt.Errorf("%s %s: %w", op, path, err)
}
