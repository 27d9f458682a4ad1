// Package optimistic shows mutations before their storage operation
// settles and rolls them back when it fails or takes too long.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/nhle/chronicle/internal/model"
)

// ErrTimeout is reported to OnError when an operation outlives its timeout.
// The operation itself keeps running; its result is discarded.
var ErrTimeout = errors.New("optimistic: operation timed out")

// DefaultTimeout bounds how long a mutation may stay pending.
const DefaultTimeout = 10 * time.Second

// Options tune a single optimistic call.
type Options[T model.Entity] struct {
	// Timeout overrides the engine timeout when positive.
	Timeout   time.Duration
	OnSuccess func(item T)
	OnError   func(err error, item T)
}

type entry[T model.Entity] struct {
	update  PendingUpdate[T]
	cleared chan struct{}
}

// Engine tracks pending updates for one entity type. Each pending update is
// removed exactly once, by whichever of success, failure, timeout,
// cancellation or ClearPending comes first, and only that path runs a
// callback.
type Engine[T model.Entity] struct {
	timeout time.Duration
	now     func() time.Time

	mu         sync.Mutex
	pending    map[string]*entry[T]
	lastIssued time.Time

	watchMu  sync.Mutex
	watchers map[int]func()
	nextID   int
}

// NewEngine returns an engine whose calls time out after timeout, or
// DefaultTimeout when timeout is not positive.
func NewEngine[T model.Entity](timeout time.Duration) *Engine[T] {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine[T]{
		timeout:  timeout,
		now:      time.Now,
		pending:  make(map[string]*entry[T]),
		watchers: make(map[int]func()),
	}
}

// Add shows item as added while op runs.
func Add[T model.Entity, R any](ctx context.Context, e *Engine[T], item T, op func(context.Context) (R, error), opts Options[T]) (R, bool) {
	return run(ctx, e, KindAdd, item, op, opts)
}

// Update shows item in place of the record with the same id while op runs.
func Update[T model.Entity, R any](ctx context.Context, e *Engine[T], item T, op func(context.Context) (R, error), opts Options[T]) (R, bool) {
	return run(ctx, e, KindUpdate, item, op, opts)
}

// Delete hides item while op runs.
func Delete[T model.Entity, R any](ctx context.Context, e *Engine[T], item T, op func(context.Context) (R, error), opts Options[T]) (R, bool) {
	return run(ctx, e, KindDelete, item, op, opts)
}

type result[R any] struct {
	value R
	err   error
}

// run registers the pending update, then waits for the first of: op
// settling, the timeout, ctx ending, or ClearPending. It blocks until then
// and reports whether op's result was applied.
func run[T model.Entity, R any](ctx context.Context, e *Engine[T], kind Kind, item T, op func(context.Context) (R, error), opts Options[T]) (R, bool) {
	var zero R

	ent := e.register(kind, item)
	key := ent.update.ID

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	done := make(chan result[R], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result[R]{err: fmt.Errorf("optimistic: operation panicked: %v", r)}
			}
		}()
		v, err := op(ctx)
		done <- result[R]{value: v, err: err}
	}()

	fail := func(err error) {
		if opts.OnError != nil {
			opts.OnError(err, item)
		}
	}

	select {
	case res := <-done:
		if !e.remove(key) {
			return zero, false
		}
		if res.err != nil {
			fail(res.err)
			return zero, false
		}
		if opts.OnSuccess != nil {
			opts.OnSuccess(item)
		}
		return res.value, true

	case <-timer.C:
		if e.remove(key) {
			fail(fmt.Errorf("%w after %s", ErrTimeout, timeout))
		}
		return zero, false

	case <-ctx.Done():
		if e.remove(key) {
			fail(ctx.Err())
		}
		return zero, false

	case <-ent.cleared:
		return zero, false
	}
}

func (e *Engine[T]) register(kind Kind, item T) *entry[T] {
	e.mu.Lock()
	issued := e.now()
	if !issued.After(e.lastIssued) {
		issued = e.lastIssued.Add(time.Nanosecond)
	}
	e.lastIssued = issued

	ent := &entry[T]{
		update: PendingUpdate[T]{
			ID:       item.GetID() + "-" + strconv.FormatInt(issued.UnixNano(), 10),
			Kind:     kind,
			Payload:  item,
			IssuedAt: issued,
		},
		cleared: make(chan struct{}),
	}
	e.pending[ent.update.ID] = ent
	e.mu.Unlock()

	e.notify()
	return ent
}

// remove reports whether this call removed key.
func (e *Engine[T]) remove(key string) bool {
	e.mu.Lock()
	_, ok := e.pending[key]
	delete(e.pending, key)
	e.mu.Unlock()

	if ok {
		e.notify()
	}
	return ok
}

// IsPending reports whether any pending update targets itemID.
func (e *Engine[T]) IsPending(itemID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ent := range e.pending {
		if ent.update.EntityID() == itemID {
			return true
		}
	}
	return false
}

// Pending returns the pending updates in issue order.
func (e *Engine[T]) Pending() []PendingUpdate[T] {
	e.mu.Lock()
	out := make([]PendingUpdate[T], 0, len(e.pending))
	for _, ent := range e.pending {
		out = append(out, ent.update)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.Before(out[j].IssuedAt)
	})
	return out
}

// Reconcile overlays the current pending updates onto authoritative.
func (e *Engine[T]) Reconcile(authoritative []T) []T {
	return Reconcile(authoritative, e.Pending())
}

// ClearPending drops every pending update without running callbacks. Calls
// still waiting return as not applied. Use it when the owner shuts down.
func (e *Engine[T]) ClearPending() {
	e.mu.Lock()
	cleared := len(e.pending) > 0
	for key, ent := range e.pending {
		close(ent.cleared)
		delete(e.pending, key)
	}
	e.mu.Unlock()

	if cleared {
		e.notify()
	}
}

// Watch registers fn to run whenever the pending set changes.
func (e *Engine[T]) Watch(fn func()) func() {
	e.watchMu.Lock()
	defer e.watchMu.Unlock()

	id := e.nextID
	e.nextID++
	e.watchers[id] = fn

	return func() {
		e.watchMu.Lock()
		defer e.watchMu.Unlock()
		delete(e.watchers, id)
	}
}

func (e *Engine[T]) notify() {
	e.watchMu.Lock()
	fns := make([]func(), 0, len(e.watchers))
	for _, fn := range e.watchers {
		fns = append(fns, fn)
	}
	e.watchMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
