package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/nhle/chronicle/internal/model"
)

var (
	// ErrNotFound is returned when no row matches both the id and the user.
	ErrNotFound = errors.New("remote: record not found")

	// ErrNoUser is returned when an operation is attempted without a user id.
	ErrNoUser = errors.New("remote: user id is required")
)

// Collection names one user-scoped table on the backend.
type Collection string

const (
	Tasks        Collection = "tasks"
	Goals        Collection = "goals"
	Routines     Collection = "routines"
	Achievements Collection = "achievements"
	Resources    Collection = "resources"
)

// Collections lists every backend collection.
func Collections() []Collection {
	return []Collection{Tasks, Goals, Routines, Achievements, Resources}
}

// Backend is the hosted relational service: one table per collection, every
// row scoped by user id, plus a change channel per collection and user.
type Backend struct {
	db       *sqlx.DB
	driver   string
	notifier notifier

	schemaMu sync.Mutex
	migrated bool
}

// Open prepares a backend for cfg without touching the network. The schema
// is applied on the first successful Ping or table operation.
func Open(cfg model.RemoteConfig) (*Backend, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("remote backend is not configured")
	}

	switch cfg.Driver {
	case "sqlite":
		db, err := sqlx.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite backend: %w", err)
		}
		// A single connection keeps ":memory:" databases shared and serialises writers.
		db.SetMaxOpenConns(1)
		return &Backend{db: db, driver: cfg.Driver, notifier: newHub()}, nil

	case "postgres":
		db, err := sqlx.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres backend: %w", err)
		}
		return &Backend{db: db, driver: cfg.Driver, notifier: newPGNotifier(cfg.DSN)}, nil

	default:
		return nil, fmt.Errorf("unsupported remote driver %q", cfg.Driver)
	}
}

// Driver returns the configured database driver name.
func (b *Backend) Driver() string {
	return b.driver
}

// Close stops change notifications and closes the database.
func (b *Backend) Close() error {
	nerr := b.notifier.close()
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("closing backend: %w", err)
	}
	if nerr != nil {
		return fmt.Errorf("closing notifier: %w", nerr)
	}
	return nil
}

// Ping checks that the backend is reachable and its schema is current.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging backend: %w", err)
	}
	return b.ensureSchema(ctx)
}

func (b *Backend) ensureSchema(ctx context.Context) error {
	b.schemaMu.Lock()
	defer b.schemaMu.Unlock()

	if b.migrated {
		return nil
	}
	if err := b.runMigrations(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	b.migrated = true
	return nil
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (b *Backend) runMigrations(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)")
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	currentVersion := 0
	err = b.db.GetContext(ctx, &currentVersion,
		"SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, mig := range migrations {
		if mig.version <= currentVersion {
			continue
		}
		if _, err := b.db.ExecContext(ctx, mig.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", mig.version, err)
		}
		_, err := b.db.ExecContext(ctx,
			b.db.Rebind("INSERT INTO schema_version (version) VALUES (?)"), mig.version)
		if err != nil {
			return fmt.Errorf("recording migration v%d: %w", mig.version, err)
		}
	}

	return nil
}
