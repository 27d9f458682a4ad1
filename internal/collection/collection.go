// Package collection holds the uniform read/write surface over one entity
// collection, backed either by the local store or by the remote backend.
package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nhle/chronicle/internal/model"
)

// ErrNotFound is returned when no item in the collection has the given id.
var ErrNotFound = errors.New("collection: item not found")

// Collection is the surface every consumer depends on. Items is ordered and
// safe to retain; Err reports the last read failure; writes return theirs.
type Collection[T model.Entity] interface {
	Items() []T
	IsLoading() bool
	Err() error
	Add(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, id string, patch model.Patch) (T, error)
	Delete(ctx context.Context, id string) error
	Watch(fn func()) func()
}

type validator interface {
	Validate() error
}

func validate[T any](item T) error {
	if v, ok := any(item).(validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validating: %w", err)
		}
	}
	return nil
}

// Find returns the item with id from c.
func Find[T model.Entity](c Collection[T], id string) (T, bool) {
	for _, item := range c.Items() {
		if item.GetID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func indexOf[T model.Entity](items []T, id string) int {
	for i, item := range items {
		if item.GetID() == id {
			return i
		}
	}
	return -1
}

// watchList is a set of change callbacks.
type watchList struct {
	mu   sync.Mutex
	fns  map[int]func()
	next int
}

func (w *watchList) add(fn func()) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fns == nil {
		w.fns = make(map[int]func())
	}
	id := w.next
	w.next++
	w.fns[id] = fn

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.fns, id)
	}
}

func (w *watchList) notify() {
	w.mu.Lock()
	fns := make([]func(), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
