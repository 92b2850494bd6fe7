package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tkbcal/internal/model"
	"tkbcal/internal/store/migrations"
)

// SnapshotKey is the kv key holding the imported timetable rows.
const SnapshotKey = "scheduleData"

var ErrNotFound = errors.New("store: key not found")

// Store is a small key-value store on top of sqlite.
type Store struct {
	conn *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and runs
// migrations. Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	conn.SetMaxOpenConns(1)

	if err := migrations.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{conn: conn}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// Get returns the raw value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return []byte(value), nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return s.Put(ctx, SnapshotKey, data)
}

// LoadSnapshot returns ErrNotFound when nothing has been imported yet.
func (s *Store) LoadSnapshot(ctx context.Context) (model.Snapshot, error) {
	var snap model.Snapshot
	data, err := s.Get(ctx, SnapshotKey)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *Store) ClearSnapshot(ctx context.Context) error {
	return s.Delete(ctx, SnapshotKey)
}
