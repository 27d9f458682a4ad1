package collection

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/chronicle/internal/localstore"
	"github.com/nhle/chronicle/internal/model"
)

// Local is a collection persisted in one local store namespace. It is ready
// as soon as it is constructed and every write is applied in memory first.
type Local[T model.Entity] struct {
	store *localstore.Store
	ns    localstore.Namespace
	now   func() time.Time

	writeMu sync.Mutex
	mu      sync.RWMutex
	items   []T

	persisting atomic.Bool
	watchers   watchList
	stopStore  func()
}

// NewLocal loads ns from store synchronously. The collection reloads when
// another writer replaces the namespace, for example an import.
func NewLocal[T model.Entity](store *localstore.Store, ns localstore.Namespace) *Local[T] {
	l := &Local[T]{
		store: store,
		ns:    ns,
		now:   time.Now,
		items: localstore.Get[T](store, ns),
	}
	l.stopStore = store.Watch(ns, l.onStoreChange)
	return l
}

// Close stops following the store.
func (l *Local[T]) Close() {
	l.stopStore()
}

func (l *Local[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

func (l *Local[T]) IsLoading() bool { return false }

func (l *Local[T]) Err() error { return nil }

func (l *Local[T]) Watch(fn func()) func() {
	return l.watchers.add(fn)
}

// Add keeps a caller-supplied id so an optimistic record and the stored one
// share identity; otherwise a new UUID is assigned.
func (l *Local[T]) Add(_ context.Context, item T) (T, error) {
	var zero T
	if err := validate(item); err != nil {
		return zero, err
	}

	id := item.GetID()
	if id == "" {
		id = uuid.New().String()
	}
	now := l.now().UTC()
	stored, err := model.Stamp(item, id, now, now)
	if err != nil {
		return zero, fmt.Errorf("stamping %s item: %w", l.ns, err)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	items := l.Items()
	if indexOf(items, id) >= 0 {
		return zero, fmt.Errorf("adding %s item %s: id already exists", l.ns, id)
	}
	l.commit(append([]T{stored}, items...))
	return stored, nil
}

func (l *Local[T]) Update(_ context.Context, id string, patch model.Patch) (T, error) {
	var zero T

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	items := l.Items()
	i := indexOf(items, id)
	if i < 0 {
		return zero, fmt.Errorf("updating %s item %s: %w", l.ns, id, ErrNotFound)
	}
	updated, err := model.ApplyPatch(items[i], patch.Sanitized(l.now().UTC()))
	if err != nil {
		return zero, fmt.Errorf("updating %s item %s: %w", l.ns, id, err)
	}
	if err := validate(updated); err != nil {
		return zero, err
	}
	items[i] = updated
	l.commit(items)
	return updated, nil
}

func (l *Local[T]) Delete(_ context.Context, id string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	items := l.Items()
	i := indexOf(items, id)
	if i < 0 {
		return fmt.Errorf("deleting %s item %s: %w", l.ns, id, ErrNotFound)
	}
	l.commit(slices.Delete(items, i, i+1))
	return nil
}

func (l *Local[T]) commit(items []T) {
	l.mu.Lock()
	l.items = items
	l.mu.Unlock()

	l.persisting.Store(true)
	localstore.Set(l.store, l.ns, items)
	l.persisting.Store(false)

	l.watchers.notify()
}

func (l *Local[T]) onStoreChange() {
	if l.persisting.Load() {
		return
	}
	items := localstore.Get[T](l.store, l.ns)
	l.mu.Lock()
	l.items = items
	l.mu.Unlock()
	l.watchers.notify()
}
