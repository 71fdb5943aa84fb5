// Package sqlite persists the lobby snapshot in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/storage"
)

var schema = `CREATE TABLE IF NOT EXISTS snapshot (
  id integer PRIMARY KEY CHECK (id = 1),
  body text NOT NULL,
  saved_at timestamp NOT NULL
);

CREATE TABLE IF NOT EXISTS quarantine (
  id integer PRIMARY KEY AUTOINCREMENT,
  body text NOT NULL,
  reason text NOT NULL,
  quarantined_at timestamp NOT NULL
);`

type snapshotRow struct {
	ID      int       `db:"id"`
	Body    string    `db:"body"`
	SavedAt time.Time `db:"saved_at"`
}

// Gateway stores the snapshot as a single row
type Gateway struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open connects to the database at dsn and creates the schema
func Open(dsn string, logger *slog.Logger) (*Gateway, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	// Single writer; avoids "database is locked" on concurrent saves
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Gateway{db: db, logger: logger}, nil
}

// Close closes the database connection
func (g *Gateway) Close() error {
	return g.db.Close()
}

// Ensure Gateway implements the interface
var _ storage.Gateway = (*Gateway)(nil)

// Load reads the snapshot row. An undecodable body is moved to the
// quarantine table and an empty snapshot is returned.
func (g *Gateway) Load(ctx context.Context) (*model.Snapshot, error) {
	var row snapshotRow
	err := g.db.GetContext(ctx, &row, `SELECT id, body, saved_at FROM snapshot WHERE id = 1;`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.NewSnapshot(), nil
		}
		return nil, err
	}

	var snap model.Snapshot
	if err := json.Unmarshal([]byte(row.Body), &snap); err != nil {
		if qerr := g.quarantine(ctx, row.Body, err.Error()); qerr != nil {
			return nil, fmt.Errorf("quarantine snapshot: %w", qerr)
		}
		g.logger.Warn("snapshot unreadable, starting empty",
			slog.String("error", err.Error()),
		)
		return model.NewSnapshot(), nil
	}

	snap.Normalize()
	return &snap, nil
}

// Save upserts the snapshot row
func (g *Gateway) Save(ctx context.Context, snap *model.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = g.db.ExecContext(ctx,
		`INSERT INTO snapshot(id, body, saved_at) VALUES(1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body, saved_at = excluded.saved_at;`,
		string(body), time.Now().UTC(),
	)
	return err
}

// Quarantined returns how many unreadable snapshots have been set aside
func (g *Gateway) Quarantined(ctx context.Context) (int, error) {
	var n int
	err := g.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM quarantine;`)
	return n, err
}

func (g *Gateway) quarantine(ctx context.Context, body, reason string) error {
	txn, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := txn.ExecContext(ctx,
		`INSERT INTO quarantine(body, reason, quarantined_at) VALUES(?, ?, ?);`,
		body, reason, time.Now().UTC(),
	); err != nil {
		_ = txn.Rollback()
		return err
	}
	if _, err := txn.ExecContext(ctx, `DELETE FROM snapshot WHERE id = 1;`); err != nil {
		_ = txn.Rollback()
		return err
	}
	return txn.Commit()
}
