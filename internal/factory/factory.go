package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/gamestore-lobby/internal/api"
	"github.com/mcoot/gamestore-lobby/internal/api/events"
	"github.com/mcoot/gamestore-lobby/internal/config"
	"github.com/mcoot/gamestore-lobby/internal/dependencies/clock"
	"github.com/mcoot/gamestore-lobby/internal/dependencies/random"
	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/server"
	"github.com/mcoot/gamestore-lobby/internal/services/catalog"
	"github.com/mcoot/gamestore-lobby/internal/services/launcher"
	"github.com/mcoot/gamestore-lobby/internal/services/ports"
	"github.com/mcoot/gamestore-lobby/internal/services/room"
	"github.com/mcoot/gamestore-lobby/internal/services/session"
	"github.com/mcoot/gamestore-lobby/internal/storage"
	"github.com/mcoot/gamestore-lobby/internal/storage/file"
	"github.com/mcoot/gamestore-lobby/internal/storage/memory"
	redisstorage "github.com/mcoot/gamestore-lobby/internal/storage/redis"
	"github.com/mcoot/gamestore-lobby/internal/storage/sqlite"
)

// App contains all wired application components
type App struct {
	Settings config.Config

	// Storage
	Gateway    storage.Gateway
	Repository *storage.Repository

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Sessions *session.Manager
	Catalog  *catalog.Service
	Ports    *ports.Allocator
	Launcher room.Launcher
	Rooms    *room.Controller

	// Front ends
	Server *server.Server
	Admin  http.Handler
	Events *events.Hub

	logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Settings is the loaded server configuration. A zero value is
	// replaced by config.DefaultConfig().
	Settings config.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
}

// New creates a new application with all dependencies wired. The
// persisted snapshot is loaded before New returns.
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	settings := cfg.Settings
	if settings.ListenAddr == "" {
		settings = config.DefaultConfig()
	}

	gw, err := openGateway(settings.Storage, logger)
	if err != nil {
		return nil, err
	}

	lcfg := launcher.DefaultConfig()
	lcfg.LobbyPort = settings.LobbyPort()
	lcfg.PassTokenFlag = settings.Workers.PassTokenFlag
	if settings.Workers.CallbackFlag != "" {
		lcfg.CallbackFlag = settings.Workers.CallbackFlag
	}
	launch := launcher.New(lcfg, logger.With(slog.String("component", "launcher")))

	app, err := newWithDependencies(ctx, gw, clock.New(), random.New(), launch, settings, logger)
	if err != nil {
		_ = closeGateway(gw)
		return nil, err
	}
	return app, nil
}

// openGateway creates the persistence gateway selected by cfg.Type
func openGateway(cfg config.StorageConfig, logger *slog.Logger) (storage.Gateway, error) {
	logger = logger.With(slog.String("storage", cfg.Type))

	switch cfg.Type {
	case "", config.StorageTypeMemory:
		return memory.New(), nil
	case config.StorageTypeFile:
		return file.New(cfg.DataPath, logger), nil
	case config.StorageTypeRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("redis_url required when storage type is redis")
		}
		rcfg := redisstorage.DefaultConfig()
		rcfg.URL = cfg.RedisURL
		gw, err := redisstorage.New(rcfg, logger)
		if err != nil {
			return nil, err
		}
		return gw, nil
	case config.StorageTypeSQLite:
		gw, err := sqlite.Open(cfg.DataPath, logger)
		if err != nil {
			return nil, err
		}
		return gw, nil
	default:
		return nil, fmt.Errorf("invalid storage type %q: must be memory, file, redis or sqlite", cfg.Type)
	}
}

func closeGateway(gw storage.Gateway) error {
	if c, ok := gw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	ctx context.Context,
	gw storage.Gateway,
	clk clock.Clock,
	rnd random.Random,
	launch room.Launcher,
	settings config.Config,
	logger *slog.Logger,
) (*App, error) {
	repo, err := storage.NewRepository(ctx, gw)
	if err != nil {
		return nil, fmt.Errorf("load lobby database: %w", err)
	}

	sessions := session.New(repo, clk, rnd, session.Config{
		BcryptCost: settings.Session.BcryptCost,
	}, logger.With(slog.String("component", "sessions")))

	games := catalog.New(repo, nil, clk, rnd, catalog.Config{
		StorageDir:    settings.Storage.BundleDir,
		MaxBundleSize: settings.Storage.MaxBundleSize,
	}, logger.With(slog.String("component", "catalog")))

	pool := ports.New(settings.Ports.First, settings.Ports.Last)

	rooms := room.NewController(games, launch, pool, clk, rnd, room.Config{
		ExitGrace:          settings.Workers.ExitGrace,
		TerminateGrace:     settings.Workers.TerminateGrace,
		RequireWorkerToken: settings.Workers.RequireWorkerToken,
	}, logger.With(slog.String("component", "rooms")))
	games.SetRoomQuery(rooms)

	hub := events.NewHub(logger)
	go hub.Run()

	roomLogger := logger.With(slog.String("component", "rooms"))
	rooms.OnResult(func(r *model.Room, result model.MatchResult) {
		roomLogger.Info("match finished",
			slog.String("room_id", string(r.ID)),
			slog.String("game_id", string(r.GameID)),
			slog.String("outcome", string(result.Outcome)),
		)
		hub.Publish(events.EventMatchFinished, events.MatchFinishedFrom(r, result))
	})

	srv := server.New(server.Config{Addr: settings.ListenAddr}, server.Deps{
		Sessions: sessions,
		Catalog:  games,
		Rooms:    rooms,
	}, logger.With(slog.String("component", "server")))

	admin := api.NewRouter(api.RouterConfig{
		Logger:      logger.With(slog.String("component", "admin")),
		AdminToken:  settings.AdminToken,
		Sessions:    sessions,
		Catalog:     games,
		Rooms:       rooms,
		Ports:       pool,
		Connections: srv,
		Events:      hub,
	})

	return &App{
		Settings:   settings,
		Gateway:    gw,
		Repository: repo,
		Clock:      clk,
		Random:     rnd,
		Sessions:   sessions,
		Catalog:    games,
		Ports:      pool,
		Launcher:   launch,
		Rooms:      rooms,
		Server:     srv,
		Admin:      admin,
		Events:     hub,
		logger:     logger,
	}, nil
}

// Close stops every worker and releases the persistence gateway. The
// lobby server should be shut down first.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Rooms.CloseAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop workers: %w", err))
	}
	a.Events.Close()
	if err := closeGateway(a.Gateway); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}
