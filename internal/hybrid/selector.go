package hybrid

import (
	"context"

	"github.com/nhle/chronicle/internal/collection"
	"github.com/nhle/chronicle/internal/model"
)

// Selector exposes the collection contract and delegates each call to the
// local or remote collection chosen by mode at that moment. It never moves
// data between them.
type Selector[T model.Entity] struct {
	local  collection.Collection[T]
	remote collection.Collection[T]
	mode   func() StorageMode
}

// NewSelector builds a selector. remote may be nil when no backend is
// configured, in which case every call goes to local.
func NewSelector[T model.Entity](local, remote collection.Collection[T], mode func() StorageMode) *Selector[T] {
	return &Selector[T]{local: local, remote: remote, mode: mode}
}

// Mode returns the storage the next call will use.
func (s *Selector[T]) Mode() StorageMode {
	if s.remote == nil {
		return Local
	}
	return s.mode()
}

func (s *Selector[T]) current() collection.Collection[T] {
	if s.Mode() == Remote {
		return s.remote
	}
	return s.local
}

func (s *Selector[T]) Items() []T      { return s.current().Items() }
func (s *Selector[T]) IsLoading() bool { return s.current().IsLoading() }
func (s *Selector[T]) Err() error      { return s.current().Err() }

func (s *Selector[T]) Add(ctx context.Context, item T) (T, error) {
	return s.current().Add(ctx, item)
}

func (s *Selector[T]) Update(ctx context.Context, id string, patch model.Patch) (T, error) {
	return s.current().Update(ctx, id, patch)
}

func (s *Selector[T]) Delete(ctx context.Context, id string) error {
	return s.current().Delete(ctx, id)
}

// Watch follows both underlying collections, since the active one can
// change between notifications.
func (s *Selector[T]) Watch(fn func()) func() {
	stopLocal := s.local.Watch(fn)
	if s.remote == nil {
		return stopLocal
	}
	stopRemote := s.remote.Watch(fn)
	return func() {
		stopLocal()
		stopRemote()
	}
}
