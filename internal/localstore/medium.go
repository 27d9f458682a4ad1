package localstore

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Medium is a persistent string key-value store.
type Medium interface {
	Read(key string) (string, bool, error)
	Write(key, value string) error
	Delete(key string) error
}

// SQLiteMedium implements Medium on a single kv table in a SQLite file.
type SQLiteMedium struct {
	db *sqlx.DB
}

// NewSQLiteMedium opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteMedium(dbPath string) (*SQLiteMedium, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	m := &SQLiteMedium{db: db}
	if err := m.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return m, nil
}

// Close closes the underlying database connection.
func (m *SQLiteMedium) Close() error {
	return m.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (m *SQLiteMedium) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := m.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = m.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, mig := range migrations {
		if mig.version <= currentVersion {
			continue
		}
		if _, err := m.db.Exec(mig.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", mig.version, err)
		}
	}

	return nil
}

// Read returns the value stored under key.
func (m *SQLiteMedium) Read(key string) (string, bool, error) {
	var value string
	err := m.db.Get(&value, "SELECT value FROM kv WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading key %s: %w", key, err)
	}
	return value, true, nil
}

// Write replaces the value stored under key.
func (m *SQLiteMedium) Write(key, value string) error {
	_, err := m.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing key %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (m *SQLiteMedium) Delete(key string) error {
	if _, err := m.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting key %s: %w", key, err)
	}
	return nil
}

// MemoryMedium is a process-local Medium, used in tests.
type MemoryMedium struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{values: make(map[string]string)}
}

func (m *MemoryMedium) Read(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryMedium) Write(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryMedium) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
