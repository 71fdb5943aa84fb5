package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/storage"
)

// Gateway is a Redis-backed snapshot gateway. Each snapshot section is a
// JSON-encoded field of a single hash, written in one transaction.
type Gateway struct {
	client *redis.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a new Redis gateway and verifies the connection
func New(cfg Config, logger *slog.Logger) (*Gateway, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient creates a Redis gateway with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, logger *slog.Logger) *Gateway {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultConfig().Prefix
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Gateway{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Close closes the Redis connection
func (g *Gateway) Close() error {
	return g.client.Close()
}

// Ensure Gateway implements the interface
var _ storage.Gateway = (*Gateway)(nil)

// Load reads every section of the snapshot hash. A missing hash yields an
// empty snapshot. If any section fails to decode the hash is renamed aside
// and an empty snapshot is returned.
func (g *Gateway) Load(ctx context.Context) (*model.Snapshot, error) {
	fields, err := g.client.HGetAll(ctx, snapshotKey(g.cfg.Prefix)).Result()
	if err != nil {
		return nil, err
	}

	snap := model.NewSnapshot()
	if len(fields) == 0 {
		return snap, nil
	}

	if err := decodeSections(fields, snap); err != nil {
		if qerr := g.quarantine(ctx); qerr != nil {
			return nil, fmt.Errorf("quarantine snapshot: %w", qerr)
		}
		g.logger.Warn("snapshot unreadable, starting empty",
			slog.String("key", snapshotKey(g.cfg.Prefix)),
			slog.String("quarantined", corruptedKey(g.cfg.Prefix)),
			slog.String("error", err.Error()),
		)
		return model.NewSnapshot(), nil
	}

	snap.Normalize()
	return snap, nil
}

// Save writes all sections in a single MULTI/EXEC transaction
func (g *Gateway) Save(ctx context.Context, snap *model.Snapshot) error {
	values := make(map[string]any, len(sections))
	for section, v := range map[string]any{
		sectionDevelopers: snap.Developers,
		sectionPlayers:    snap.Players,
		sectionGames:      snap.Games,
		sectionReviews:    snap.Reviews,
		sectionPlugins:    snap.Plugins,
	} {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", section, err)
		}
		values[section] = data
	}

	key := snapshotKey(g.cfg.Prefix)
	_, err := g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values)
		return nil
	})
	return err
}

func (g *Gateway) quarantine(ctx context.Context) error {
	return g.client.Rename(ctx, snapshotKey(g.cfg.Prefix), corruptedKey(g.cfg.Prefix)).Err()
}

func decodeSections(fields map[string]string, snap *model.Snapshot) error {
	targets := map[string]any{
		sectionDevelopers: &snap.Developers,
		sectionPlayers:    &snap.Players,
		sectionGames:      &snap.Games,
		sectionReviews:    &snap.Reviews,
		sectionPlugins:    &snap.Plugins,
	}
	for _, section := range sections {
		raw, ok := fields[section]
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(raw), targets[section]); err != nil {
			return fmt.Errorf("decode %s: %w", section, err)
		}
	}
	return nil
}
