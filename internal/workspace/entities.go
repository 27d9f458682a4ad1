package workspace

import (
	"context"

	"github.com/nhle/chronicle/internal/collection"
	"github.com/nhle/chronicle/internal/hybrid"
	"github.com/nhle/chronicle/internal/localstore"
	"github.com/nhle/chronicle/internal/model"
	"github.com/nhle/chronicle/internal/remote"
)

// entities holds both backings of one collection and the selector between
// them.
type entities[T model.Entity] struct {
	local    *collection.Local[T]
	remote   *collection.Remote[T]
	selector *hybrid.Selector[T]
}

func newEntities[T model.Entity](
	store *localstore.Store,
	ns localstore.Namespace,
	backend *remote.Backend,
	c remote.Collection,
	mode func() hybrid.StorageMode,
) *entities[T] {
	e := &entities[T]{local: collection.NewLocal[T](store, ns)}

	var rc collection.Collection[T]
	if backend != nil {
		e.remote = collection.NewRemote(remote.NewTable[T](backend, c))
		rc = e.remote
	}
	e.selector = hybrid.NewSelector[T](e.local, rc, mode)
	return e
}

func (e *entities[T]) bind(ctx context.Context, userID string) {
	if e.remote != nil {
		e.remote.Bind(ctx, userID)
	}
}

func (e *entities[T]) refresh(ctx context.Context) {
	if e.remote != nil {
		e.remote.Refresh(ctx)
	}
}

func (e *entities[T]) close() {
	e.local.Close()
	if e.remote != nil {
		e.remote.Close()
	}
}
