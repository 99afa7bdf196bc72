// Package storage persists extension state in a SQLite database. Values are
// encoded with msgpack and grouped by scope.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

// Store keeps values of type T under (scope, key).
type Store[T any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open opens or creates the database at dbPath.
func Open[T any](dbPath string) (*Store[T], error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA auto_vacuum=INCREMENTAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS state (
			scope TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			PRIMARY KEY (scope, key)
		);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return &Store[T]{db: db, dbPath: dbPath}, nil
}

// Path returns the database file.
func (s *Store[T]) Path() string { return s.dbPath }

// Get returns the value stored under key. ok is false when there is none.
func (s *Store[T]) Get(scope, key string) (value T, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err = s.db.QueryRow("SELECT value FROM state WHERE scope = ? AND key = ?", scope, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return value, false, nil
	}
	if err != nil {
		return value, false, fmt.Errorf("failed to query state: %w", err)
	}
	if err := msgpack.Unmarshal(data, &value); err != nil {
		return value, false, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store[T]) Set(scope, key string, value T) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO state (scope, key, value) VALUES (?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value
	`, scope, key, data)
	if err != nil {
		return fmt.Errorf("failed to save value: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store[T]) Delete(scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM state WHERE scope = ? AND key = ?", scope, key); err != nil {
		return fmt.Errorf("failed to delete value: %w", err)
	}
	return nil
}

// Keys returns the keys of scope in lexical order.
func (s *Store[T]) Keys(scope string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT key FROM state WHERE scope = ? ORDER BY key", scope)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Clear removes every key of scope.
func (s *Store[T]) Clear(scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM state WHERE scope = ?", scope); err != nil {
		return err
	}
	_, err := s.db.Exec("PRAGMA incremental_vacuum")
	return err
}

// Close checkpoints the WAL and closes the database.
func (s *Store[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.db.Exec("PRAGMA optimize")
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")

	return s.db.Close()
}
