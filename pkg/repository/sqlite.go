package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/leopaint/pkg/model"
	"github.com/m-mizutani/leopaint/pkg/utils/logging"

	_ "modernc.org/sqlite"
)

const (
	historyStateKey = "leopaint_history"
	apiKeyStateKey  = "leopaint_api_key"
)

const getCurrentMigration = `PRAGMA user_version;`
const setCurrentMigration = `PRAGMA user_version = ?;`

const createAppStateTableQuery = `
CREATE TABLE IF NOT EXISTS app_state (
key TEXT NOT NULL PRIMARY KEY,
value TEXT NOT NULL,
expires_at INTEGER NOT NULL DEFAULT 0
);`

type migration struct {
	migrationName  string
	migrationQuery string
}

var migrations = []migration{
	{migrationName: "create app state table", migrationQuery: createAppStateTableQuery},
}

// sqliteRepo implements Repository on a local SQLite database
type sqliteRepo struct {
	db *sql.DB
}

// DefaultDBPath returns the default database location under the user's
// config directory.
func DefaultDBPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve user config dir")
	}
	return filepath.Join(configDir, "leopaint", "leopaint.db"), nil
}

// NewSQLite opens (creating if necessary) a SQLite-backed repository at the
// given path and applies pending migrations.
func NewSQLite(ctx context.Context, path string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("path", path))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", path))
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to migrate database", goerr.V("path", path))
	}

	return &sqliteRepo{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	var current int
	if err := db.QueryRowContext(ctx, getCurrentMigration).Scan(&current); err != nil {
		return goerr.Wrap(err, "failed to read schema version")
	}

	for num := current + 1; num <= len(migrations); num++ {
		if err := execMigration(ctx, db, num); err != nil {
			return goerr.Wrap(err, "migration failed",
				goerr.V("migration", migrations[num-1].migrationName))
		}
	}

	return nil
}

func execMigration(ctx context.Context, db *sql.DB, num int) error {
	logging.From(ctx).Debug("running migration", "name", migrations[num-1].migrationName)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, migrations[num-1].migrationQuery); err != nil {
		return err
	}

	// PRAGMA does not accept bind parameters
	setQuery := strings.Replace(setCurrentMigration, "?", strconv.Itoa(num), 1)
	if _, err := tx.ExecContext(ctx, setQuery); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *sqliteRepo) putState(ctx context.Context, key, value string, expiresAt int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO app_state (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt)
	if err != nil {
		return goerr.Wrap(err, "failed to write state", goerr.V("key", key))
	}
	return nil
}

func (r *sqliteRepo) getState(ctx context.Context, key string) (string, int64, error) {
	var value string
	var expiresAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM app_state WHERE key = ?`, key).
		Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, goerr.Wrap(err, "failed to read state", goerr.V("key", key))
	}
	return value, expiresAt, nil
}

func (r *sqliteRepo) SaveHistory(ctx context.Context, items []*model.HistoryItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return goerr.Wrap(err, "failed to serialize history")
	}
	return r.putState(ctx, historyStateKey, string(data), 0)
}

func (r *sqliteRepo) LoadHistory(ctx context.Context) ([]*model.HistoryItem, error) {
	value, _, err := r.getState(ctx, historyStateKey)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return nil, nil
	}

	var items []*model.HistoryItem
	if err := json.Unmarshal([]byte(value), &items); err != nil {
		return nil, goerr.Wrap(model.ErrPersistedStateCorrupt, err.Error())
	}
	return items, nil
}

func (r *sqliteRepo) SaveAPIKey(ctx context.Context, key string, expiresAt time.Time) error {
	return r.putState(ctx, apiKeyStateKey, key, expiresAt.UnixMilli())
}

func (r *sqliteRepo) GetAPIKey(ctx context.Context) (string, error) {
	value, expiresAt, err := r.getState(ctx, apiKeyStateKey)
	if err != nil {
		return "", err
	}
	if expiresAt > 0 && expiresAt <= time.Now().UnixMilli() {
		return "", nil
	}
	return value, nil
}

func (r *sqliteRepo) DeleteAPIKey(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM app_state WHERE key = ?`, apiKeyStateKey); err != nil {
		return goerr.Wrap(err, "failed to delete credential")
	}
	return nil
}

func (r *sqliteRepo) Close() error {
	return r.db.Close()
}
