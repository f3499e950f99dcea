package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps every namespace in a single SQLite table
type SQLiteStore struct {
	db     *sql.DB
	path   string
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (namespace, key)
	);

	CREATE INDEX IF NOT EXISTS idx_kv_namespace ON kv(namespace);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get implements Store
func (s *SQLiteStore) Get(ctx context.Context, namespace, key string, out interface{}) (bool, error) {
	if err := validateName("namespace", namespace); err != nil {
		return false, err
	}
	if err := validateName("key", key); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s/%s: %w", namespace, key, err)
	}

	if err := json.Unmarshal([]byte(value), out); err != nil {
		return false, fmt.Errorf("failed to decode %s/%s: %w", namespace, key, err)
	}

	return true, nil
}

// Put implements Store
func (s *SQLiteStore) Put(ctx context.Context, namespace, key string, value interface{}) error {
	if err := validateName("namespace", namespace); err != nil {
		return err
	}
	if err := validateName("key", key); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", namespace, key, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, namespace, key, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", namespace, key, err)
	}

	return nil
}

// Delete implements Store
func (s *SQLiteStore) Delete(ctx context.Context, namespace, key string) error {
	if err := validateName("namespace", namespace); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE namespace = ? AND key = ?`, namespace, key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Clear implements Store
func (s *SQLiteStore) Clear(ctx context.Context, namespace string) error {
	if err := validateName("namespace", namespace); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("failed to clear namespace %s: %w", namespace, err)
	}
	return nil
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}
