// Package migration copies locally stored entities to the remote backend
// once a user signs in.
package migration

import (
	"context"
	"fmt"
	"log"

	"github.com/nhle/chronicle/internal/localstore"
	"github.com/nhle/chronicle/internal/model"
	"github.com/nhle/chronicle/internal/remote"
)

// Inserter is the write half of a remote table.
type Inserter[T any] interface {
	Insert(ctx context.Context, userID string, record T) (T, error)
}

// Targets are the remote destinations, one per entity collection.
type Targets struct {
	Tasks        Inserter[model.Task]
	Goals        Inserter[model.Goal]
	Routines     Inserter[model.Routine]
	Achievements Inserter[model.Achievement]
	Resources    Inserter[model.Resource]
}

// TargetsFor returns the tables of b as migration targets.
func TargetsFor(b *remote.Backend) Targets {
	return Targets{
		Tasks:        remote.NewTable[model.Task](b, remote.Tasks),
		Goals:        remote.NewTable[model.Goal](b, remote.Goals),
		Routines:     remote.NewTable[model.Routine](b, remote.Routines),
		Achievements: remote.NewTable[model.Achievement](b, remote.Achievements),
		Resources:    remote.NewTable[model.Resource](b, remote.Resources),
	}
}

// TypeStatus is the outcome for one collection. Each error reads
// "title: message".
type TypeStatus struct {
	Total    int      `json:"total"`
	Migrated int      `json:"migrated"`
	Errors   []string `json:"errors"`
}

// Status maps each collection to its outcome.
type Status map[remote.Collection]*TypeStatus

// Failed returns the total number of items that were not migrated.
func (s Status) Failed() int {
	n := 0
	for _, ts := range s {
		n += len(ts.Errors)
	}
	return n
}

// Migrator moves the five entity collections from the local store to the
// backend. It never clears local data on its own and does not mark what it
// has copied: running it twice inserts everything twice.
type Migrator struct {
	store   *localstore.Store
	targets Targets
}

func New(store *localstore.Store, targets Targets) *Migrator {
	return &Migrator{store: store, targets: targets}
}

var entityNamespaces = []localstore.Namespace{
	localstore.Tasks,
	localstore.Goals,
	localstore.Routines,
	localstore.Achievements,
	localstore.Resources,
}

// HasLocalData reports whether any of the five collections holds items.
func (m *Migrator) HasLocalData() bool {
	return m.LocalCount() > 0
}

// LocalCount returns the number of items across the five collections.
func (m *Migrator) LocalCount() int {
	n := 0
	for _, ns := range entityNamespaces {
		n += m.store.Len(ns)
	}
	return n
}

// ClearLocalData removes the five collections from the local store.
func (m *Migrator) ClearLocalData() {
	for _, ns := range entityNamespaces {
		m.store.Remove(ns)
	}
}

// Migrate inserts every local item for userID, one at a time and in stored
// order. A failed item is recorded and skipped. The only error returned is
// a missing user or the context ending, with the status gathered so far.
func (m *Migrator) Migrate(ctx context.Context, userID string) (Status, error) {
	status := make(Status)
	if userID == "" {
		return status, fmt.Errorf("migrating local data: %w", remote.ErrNoUser)
	}

	steps := []func() error{
		func() error {
			return migrateType(ctx, m.store, localstore.Tasks, remote.Tasks, m.targets.Tasks, userID, status)
		},
		func() error {
			return migrateType(ctx, m.store, localstore.Goals, remote.Goals, m.targets.Goals, userID, status)
		},
		func() error {
			return migrateType(ctx, m.store, localstore.Routines, remote.Routines, m.targets.Routines, userID, status)
		},
		func() error {
			return migrateType(ctx, m.store, localstore.Achievements, remote.Achievements, m.targets.Achievements, userID, status)
		},
		func() error {
			return migrateType(ctx, m.store, localstore.Resources, remote.Resources, m.targets.Resources, userID, status)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return status, err
		}
	}
	return status, nil
}

func migrateType[T model.Entity](
	ctx context.Context,
	store *localstore.Store,
	ns localstore.Namespace,
	c remote.Collection,
	target Inserter[T],
	userID string,
	status Status,
) error {
	items := localstore.Get[T](store, ns)
	ts := &TypeStatus{Total: len(items), Errors: make([]string, 0)}
	status[c] = ts

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("migrating %s: %w", c, err)
		}
		// Local ids are dropped, so every run inserts fresh rows.
		fresh, err := model.ApplyPatch(item, model.Patch{"id": ""})
		if err == nil {
			_, err = target.Insert(ctx, userID, fresh)
		}
		if err != nil {
			log.Printf("migration: %s %q: %v", c, item.GetTitle(), err)
			ts.Errors = append(ts.Errors, fmt.Sprintf("%s: %v", item.GetTitle(), err))
			continue
		}
		ts.Migrated++
	}
	return nil
}
