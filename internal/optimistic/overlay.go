package optimistic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/chronicle/internal/collection"
	"github.com/nhle/chronicle/internal/model"
)

// Overlay pairs a collection with an engine: reads return the reconciled
// view and writes go through the collection optimistically.
type Overlay[T model.Entity] struct {
	source collection.Collection[T]
	engine *Engine[T]
	now    func() time.Time
}

func NewOverlay[T model.Entity](source collection.Collection[T], engine *Engine[T]) *Overlay[T] {
	return &Overlay[T]{source: source, engine: engine, now: time.Now}
}

// Engine returns the engine holding the overlay's pending updates.
func (o *Overlay[T]) Engine() *Engine[T] {
	return o.engine
}

// Source returns the authoritative collection.
func (o *Overlay[T]) Source() collection.Collection[T] {
	return o.source
}

// Items returns the authoritative items with pending updates applied.
func (o *Overlay[T]) Items() []T {
	return o.engine.Reconcile(o.source.Items())
}

func (o *Overlay[T]) IsPending(id string) bool {
	return o.engine.IsPending(id)
}

// Watch follows both the collection and the pending set.
func (o *Overlay[T]) Watch(fn func()) func() {
	stopSource := o.source.Watch(fn)
	stopEngine := o.engine.Watch(fn)
	return func() {
		stopSource()
		stopEngine()
	}
}

// Add shows item immediately under a temporary id if it has none, then
// adds it to the collection.
func (o *Overlay[T]) Add(ctx context.Context, item T, opts Options[T]) (T, bool) {
	if item.GetID() == "" {
		now := o.now().UTC()
		stamped, err := model.Stamp(item, uuid.New().String(), now, now)
		if err != nil {
			return o.reject(fmt.Errorf("preparing optimistic add: %w", err), item, opts)
		}
		item = stamped
	}
	return Add(ctx, o.engine, item, func(ctx context.Context) (T, error) {
		return o.source.Add(ctx, item)
	}, opts)
}

// Update shows the patched record immediately, then updates the collection.
func (o *Overlay[T]) Update(ctx context.Context, id string, patch model.Patch, opts Options[T]) (T, bool) {
	current, ok := o.find(id)
	if !ok {
		var zero T
		return o.reject(fmt.Errorf("updating %s: %w", id, collection.ErrNotFound), zero, opts)
	}
	preview, err := model.ApplyPatch(current, patch.Sanitized(o.now().UTC()))
	if err != nil {
		return o.reject(fmt.Errorf("previewing update of %s: %w", id, err), current, opts)
	}
	return Update(ctx, o.engine, preview, func(ctx context.Context) (T, error) {
		return o.source.Update(ctx, id, patch)
	}, opts)
}

// Delete hides the record immediately, then deletes it from the collection.
func (o *Overlay[T]) Delete(ctx context.Context, id string, opts Options[T]) bool {
	current, ok := o.find(id)
	if !ok {
		var zero T
		_, applied := o.reject(fmt.Errorf("deleting %s: %w", id, collection.ErrNotFound), zero, opts)
		return applied
	}
	_, applied := Delete(ctx, o.engine, current, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.source.Delete(ctx, id)
	}, opts)
	return applied
}

func (o *Overlay[T]) find(id string) (T, bool) {
	for _, item := range o.Items() {
		if item.GetID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (o *Overlay[T]) reject(err error, item T, opts Options[T]) (T, bool) {
	if opts.OnError != nil {
		opts.OnError(err, item)
	}
	var zero T
	return zero, false
}
