// Package cache persists rate snapshots in a single-table SQLite file keyed by
// base currency code, each row carrying its own absolute expiry.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dalfonso89/currency-converter/internal/models"

	_ "modernc.org/sqlite"
)

const (
	createTableQuery = `CREATE TABLE IF NOT EXISTS cache (
	code TEXT,
	expiry INTEGER,
	data TEXT
)`
	createIndexQuery  = `CREATE INDEX IF NOT EXISTS cache_code_idx ON cache (code)`
	purgeQuery        = `DELETE FROM cache WHERE expiry < ?`
	lookupQuery       = `SELECT data FROM cache WHERE code = ? ORDER BY expiry DESC LIMIT 1`
	deleteByCodeQuery = `DELETE FROM cache WHERE code = ?`
	insertQuery       = `INSERT INTO cache (code, expiry, data) VALUES (?, ?, ?)`
)

// Store is the persistent snapshot cache. All statements are serialised by
// a mutex; the store is safe for concurrent use within one process.
type Store struct {
	database *sql.DB
	mutex    sync.Mutex
	now      func() time.Time
}

// Open creates the containing directory and the database file if needed,
// then makes sure the cache table exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if directory := filepath.Dir(path); directory != "." {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return nil, models.NewStorageInitError("cannot create cache directory "+directory, err)
		}
	}

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, models.NewStorageInitError("cannot open cache "+path, err)
	}
	// SQLite allows a single writer
	database.SetMaxOpenConns(1)

	store := NewWithDB(database)
	if err := store.Initialize(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return store, nil
}

// NewWithDB wraps an already opened database. Initialize must be called
// before use unless the schema is known to exist.
func NewWithDB(database *sql.DB) *Store {
	return &Store{database: database, now: time.Now}
}

// Initialize creates the cache table and its index. It is idempotent.
func (store *Store) Initialize(ctx context.Context) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if _, err := store.database.ExecContext(ctx, createTableQuery); err != nil {
		return models.NewStorageInitError("cannot create cache table", err)
	}
	if _, err := store.database.ExecContext(ctx, createIndexQuery); err != nil {
		return models.NewStorageInitError("cannot create cache index", err)
	}
	return nil
}

// PurgeExpired deletes every row whose expiry is before now and returns how
// many rows went.
func (store *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	result, err := store.database.ExecContext(ctx, purgeQuery, now.Unix())
	if err != nil {
		return 0, models.NewStorageError("cannot clear out old data from cache", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, models.NewStorageError("cannot count purged cache rows", err)
	}
	return deleted, nil
}

// Lookup returns the snapshot stored for code. The boolean is false when no
// row exists. Expiry is not checked here: call PurgeExpired first.
func (store *Store) Lookup(ctx context.Context, code string) (*models.RateSnapshot, bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	var payload string
	err := store.database.QueryRowContext(ctx, lookupQuery, code).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, models.NewStorageError("cannot read cache row for "+code, err)
	}

	var snapshot models.RateSnapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return nil, false, models.NewDeserializeError("corrupt cache row for "+code, err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, false, models.NewDeserializeError("corrupt cache row for "+code, err)
	}
	if snapshot.BaseCode != code {
		return nil, false, models.NewDeserializeError("cache row for "+code+" holds rates for "+snapshot.BaseCode, nil)
	}
	return &snapshot, true, nil
}

// Insert stores snapshot under its base code with the snapshot's next update
// time as expiry. Older rows for the same code are replaced in the same
// transaction.
func (store *Store) Insert(ctx context.Context, snapshot *models.RateSnapshot) error {
	if snapshot == nil {
		return models.NewSerializeError("cannot cache an empty snapshot", nil)
	}
	if !snapshot.ExpiresAt().After(store.now()) {
		return models.NewStorageError("refusing to cache snapshot for "+snapshot.BaseCode+" that is already expired", nil)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return models.NewSerializeError("cannot serialize snapshot for "+snapshot.BaseCode, err)
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	transaction, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return models.NewStorageError("cannot start cache transaction", err)
	}
	if _, err := transaction.ExecContext(ctx, deleteByCodeQuery, snapshot.BaseCode); err != nil {
		transaction.Rollback()
		return models.NewStorageError("cannot replace cache row for "+snapshot.BaseCode, err)
	}
	if _, err := transaction.ExecContext(ctx, insertQuery, snapshot.BaseCode, snapshot.TimeNextUpdateUnix, string(payload)); err != nil {
		transaction.Rollback()
		return models.NewStorageError("cannot write cache row for "+snapshot.BaseCode, err)
	}
	if err := transaction.Commit(); err != nil {
		return models.NewStorageError("cannot commit cache row for "+snapshot.BaseCode, err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (store *Store) Ping(ctx context.Context) error {
	if err := store.database.PingContext(ctx); err != nil {
		return models.NewStorageError("cache unreachable", err)
	}
	return nil
}

// Close releases the database handle.
func (store *Store) Close() error {
	return store.database.Close()
}
