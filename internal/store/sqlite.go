package store

import (
	"database/sql"
	"fmt"
	"sync"
)

// Current schema version
const SchemaVersion = "1"

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// SQLite is a SQLite-backed store.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite creates a new SQLite store at the given path or DSN.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, err
	}
	// Every connection to :memory: is its own database.
	db.SetMaxOpenConns(1)

	// Create tables if not exists
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS blueprints (
			name TEXT PRIMARY KEY,
			params TEXT NOT NULL,
			defined INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLite{db: db}

	version, err := s.getMetadataUnlocked("schema_version")
	if err != nil {
		db.Close()
		return nil, err
	}

	if version == "" {
		if err := s.setMetadataUnlocked("schema_version", SchemaVersion); err != nil {
			db.Close()
			return nil, err
		}
	} else if version != SchemaVersion {
		db.Close()
		return nil, fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}

	return s, nil
}

// Get retrieves a blueprint by name.
func (s *SQLite) Get(name string) (*Blueprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var params string
	var defined bool
	err := s.db.QueryRow("SELECT params, defined FROM blueprints WHERE name = ?", name).Scan(&params, &defined)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &Blueprint{Name: name, Params: decodeParams(params), Defined: defined}, nil
}

// Put stores a blueprint.
func (s *SQLite) Put(bp *Blueprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO blueprints (name, params, defined) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET params = excluded.params, defined = excluded.defined
	`, bp.Name, encodeParams(bp.Params), bp.Defined)
	return err
}

// Delete removes a blueprint by name.
func (s *SQLite) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM blueprints WHERE name = ?", name)
	return err
}

// List returns every blueprint ordered by name.
func (s *SQLite) List() ([]*Blueprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT name, params, defined FROM blueprints ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Blueprint
	for rows.Next() {
		var name, params string
		var defined bool
		if err := rows.Scan(&name, &params, &defined); err != nil {
			return nil, err
		}
		out = append(out, &Blueprint{Name: name, Params: decodeParams(params), Defined: defined})
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetMetadata retrieves a metadata value by key.
func (s *SQLite) GetMetadata(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getMetadataUnlocked(key)
}

// getMetadataUnlocked retrieves metadata without locking (caller must hold lock).
func (s *SQLite) getMetadataUnlocked(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata stores a metadata value by key.
func (s *SQLite) SetMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setMetadataUnlocked(key, value)
}

// setMetadataUnlocked stores metadata without locking (caller must hold lock).
func (s *SQLite) setMetadataUnlocked(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
