package testutil

import (
	"context"
	"testing"

	"github.com/nhle/chronicle/internal/localstore"
	"github.com/nhle/chronicle/internal/model"
	"github.com/nhle/chronicle/internal/remote"
)

// NewLocalStore creates a local store over an in-memory SQLite medium with
// all migrations applied. It closes the medium when the test completes.
func NewLocalStore(t *testing.T) *localstore.Store {
	t.Helper()

	m, err := localstore.NewSQLiteMedium(":memory:")
	if err != nil {
		t.Fatalf("creating test medium: %v", err)
	}

	t.Cleanup(func() {
		if err := m.Close(); err != nil {
			t.Errorf("closing test medium: %v", err)
		}
	})

	return localstore.New(m)
}

// NewBackend creates an in-memory SQLite remote backend with its schema
// applied. It closes the backend when the test completes.
func NewBackend(t *testing.T) *remote.Backend {
	t.Helper()

	b, err := remote.Open(model.RemoteConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("creating test backend: %v", err)
	}

	t.Cleanup(func() {
		if err := b.Close(); err != nil {
			t.Errorf("closing test backend: %v", err)
		}
	})

	if err := b.Ping(context.Background()); err != nil {
		t.Fatalf("initialising test backend: %v", err)
	}

	return b
}
