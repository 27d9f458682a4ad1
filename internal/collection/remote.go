package collection

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/nhle/chronicle/internal/model"
	"github.com/nhle/chronicle/internal/remote"
)

// fetchTimeout bounds a refetch triggered by a change notification.
const fetchTimeout = 30 * time.Second

// Remote is a collection held on the backend for one signed-in user. Without
// a user it is ready and empty; with one it loads on Bind and refetches
// whenever the backend reports a change.
type Remote[T model.Entity] struct {
	table *remote.Table[T]

	mu          sync.RWMutex
	userID      string
	generation  int
	items       []T
	loading     bool
	err         error
	unsubscribe func()

	watchers watchList
}

// NewRemote returns an unbound remote collection.
func NewRemote[T model.Entity](table *remote.Table[T]) *Remote[T] {
	return &Remote[T]{table: table, items: make([]T, 0)}
}

// Bind points the collection at userID, replacing any previous user, and
// performs the initial fetch. An empty userID leaves it ready and empty.
func (r *Remote[T]) Bind(ctx context.Context, userID string) {
	r.mu.Lock()
	if r.userID == userID && (userID == "" || r.unsubscribe != nil) {
		r.mu.Unlock()
		return
	}
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	r.userID = userID
	r.generation++
	r.items = make([]T, 0)
	r.err = nil
	r.loading = userID != ""
	if userID != "" {
		r.unsubscribe = r.table.Subscribe(userID, r.onChange)
	}
	r.mu.Unlock()
	r.watchers.notify()

	if userID != "" {
		r.Refresh(ctx)
	}
}

// UserID returns the user the collection is bound to.
func (r *Remote[T]) UserID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userID
}

// Refresh refetches the full collection. A failure is kept in Err and the
// previous items stay visible.
func (r *Remote[T]) Refresh(ctx context.Context) {
	r.mu.RLock()
	userID, gen := r.userID, r.generation
	r.mu.RUnlock()
	if userID == "" {
		return
	}

	items, err := r.table.FetchAll(ctx, userID)

	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		return
	}
	r.loading = false
	if err != nil {
		r.err = err
	} else {
		r.items = items
		r.err = nil
	}
	r.mu.Unlock()

	if err != nil {
		log.Printf("collection: fetching %s: %v", r.table.Collection(), err)
	}
	r.watchers.notify()
}

func (r *Remote[T]) onChange() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	r.Refresh(ctx)
}

// Close drops the change subscription.
func (r *Remote[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

func (r *Remote[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.items)
}

func (r *Remote[T]) IsLoading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

func (r *Remote[T]) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

func (r *Remote[T]) Watch(fn func()) func() {
	return r.watchers.add(fn)
}

// Add inserts item and splices the canonical record into the collection.
// The backend keeps the item's id when it has one.
func (r *Remote[T]) Add(ctx context.Context, item T) (T, error) {
	var zero T
	if err := validate(item); err != nil {
		return zero, err
	}

	userID, gen := r.session()
	stored, err := r.table.Insert(ctx, userID, item)
	if err != nil {
		return zero, fmt.Errorf("adding to %s: %w", r.table.Collection(), err)
	}

	r.splice(gen, func(items []T) []T {
		if i := indexOf(items, stored.GetID()); i >= 0 {
			items[i] = stored
			return items
		}
		return append([]T{stored}, items...)
	})
	return stored, nil
}

func (r *Remote[T]) Update(ctx context.Context, id string, patch model.Patch) (T, error) {
	var zero T

	userID, gen := r.session()
	updated, err := r.table.Update(ctx, id, userID, patch)
	if err != nil {
		return zero, fmt.Errorf("updating %s item %s: %w", r.table.Collection(), id, err)
	}

	r.splice(gen, func(items []T) []T {
		if i := indexOf(items, id); i >= 0 {
			items[i] = updated
		}
		return items
	})
	return updated, nil
}

func (r *Remote[T]) Delete(ctx context.Context, id string) error {
	userID, gen := r.session()
	if err := r.table.Remove(ctx, id, userID); err != nil {
		return fmt.Errorf("deleting %s item %s: %w", r.table.Collection(), id, err)
	}

	r.splice(gen, func(items []T) []T {
		if i := indexOf(items, id); i >= 0 {
			return slices.Delete(items, i, i+1)
		}
		return items
	})
	return nil
}

func (r *Remote[T]) session() (string, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userID, r.generation
}

// splice applies fn to the current items unless the user changed meanwhile.
func (r *Remote[T]) splice(gen int, fn func([]T) []T) {
	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		return
	}
	r.items = fn(slices.Clone(r.items))
	r.mu.Unlock()
	r.watchers.notify()
}
