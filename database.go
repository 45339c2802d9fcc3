package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SnapshotStore persists query results across runs. It is independent from
// the in-process TTL caches and never consulted by them.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Latest(ctx context.Context, key string, maxAge time.Duration) (*Snapshot, error)
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
	Close() error
}

// NewSnapshot wraps a query result with a fresh id and timestamp
func NewSnapshot(query, key string, games []GameSummary) Snapshot {
	return Snapshot{
		ID:        uuid.NewString(),
		Query:     query,
		Key:       key,
		FetchedAt: time.Now().UTC(),
		Games:     games,
	}
}

// defaultDBPath places the database next to the executable
func defaultDBPath() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("error getting executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exePath), "steamtop.db"), nil
}

// createSchema creates the snapshot table and its indexes
func createSchema(db *sql.DB) error {
	createSnapshotsTable := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,                 -- uuid of the run that produced it
		query TEXT NOT NULL,                 -- most-played, offers, search
		cache_key TEXT NOT NULL UNIQUE,      -- query name plus parameters
		fetched_at TIMESTAMP NOT NULL,
		game_count INTEGER DEFAULT 0,
		games TEXT NOT NULL                  -- JSON encoded []GameSummary
	)`
	if _, err := db.Exec(createSnapshotsTable); err != nil {
		return fmt.Errorf("failed to create snapshots table: %w", err)
	}

	createIndexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_snapshots_key ON snapshots(cache_key)",
		"CREATE INDEX IF NOT EXISTS idx_snapshots_fetched ON snapshots(fetched_at)",
	}
	for _, indexSQL := range createIndexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create snapshots index: %w", err)
		}
	}
	return nil
}

// SQLiteStore keeps snapshots in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path; an empty path
// uses the executable's directory
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		var err error
		path, err = defaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	slog.Debug("Initializing database", "path", path)

	db, err := sql.Open("sqlite", path) // Use "sqlite" driver name
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Debug("Database initialized successfully")
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStore wraps an already opened database and creates the schema
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if err := createSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Save stores a snapshot, replacing the previous one for the same key
func (s *SQLiteStore) Save(ctx context.Context, snapshot Snapshot) error {
	slog.Debug("Saving snapshot", "key", snapshot.Key, "games", len(snapshot.Games))

	games, err := json.Marshal(snapshot.Games)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot games: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, query, cache_key, fetched_at, game_count, games)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			id = excluded.id,
			query = excluded.query,
			fetched_at = excluded.fetched_at,
			game_count = excluded.game_count,
			games = excluded.games`,
		snapshot.ID, snapshot.Query, snapshot.Key, snapshot.FetchedAt.UTC(), len(snapshot.Games), string(games))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// Latest returns the snapshot for key if it is younger than maxAge, nil otherwise
func (s *SQLiteStore) Latest(ctx context.Context, key string, maxAge time.Duration) (*Snapshot, error) {
	slog.Debug("Getting stored snapshot", "key", key, "maxAge", maxAge)

	var snapshot Snapshot
	var games string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, query, cache_key, fetched_at, games
		FROM snapshots
		WHERE cache_key = ? AND fetched_at > ?`,
		key, time.Now().UTC().Add(-maxAge),
	).Scan(&snapshot.ID, &snapshot.Query, &snapshot.Key, &snapshot.FetchedAt, &games)

	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("No stored snapshot found", "key", key)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}

	if err := json.Unmarshal([]byte(games), &snapshot.Games); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot games: %w", err)
	}

	slog.Debug("Found stored snapshot", "key", key, "fetchedAt", snapshot.FetchedAt, "games", len(snapshot.Games))
	return &snapshot, nil
}

// Cleanup removes snapshots older than the given age
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE fetched_at < ?", time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup snapshots: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		slog.Debug("Cleaned up old snapshots", "count", rowsAffected)
	}
	return rowsAffected, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
