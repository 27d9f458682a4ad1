package optimistic

import (
	"slices"
	"time"

	"github.com/nhle/chronicle/internal/model"
)

// Kind is the mutation a pending update stands for.
type Kind string

const (
	KindAdd    Kind = "add"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// PendingUpdate is an in-flight mutation. It lives only in memory until its
// operation settles, fails, times out or is cleared.
type PendingUpdate[T model.Entity] struct {
	ID       string
	Kind     Kind
	Payload  T
	IssuedAt time.Time
}

// EntityID returns the id of the record the update targets.
func (p PendingUpdate[T]) EntityID() string {
	return p.Payload.GetID()
}

// Reconcile overlays pending onto authoritative and returns the presented
// list. Updates apply in issue order, so of two updates to the same id the
// later-issued one wins. An add is skipped when its id is already present,
// an update replaces the matching item with its payload and a delete
// removes it. Neither input is modified.
func Reconcile[T model.Entity](authoritative []T, pending []PendingUpdate[T]) []T {
	ordered := slices.Clone(pending)
	slices.SortStableFunc(ordered, func(a, b PendingUpdate[T]) int {
		if c := a.IssuedAt.Compare(b.IssuedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	out := slices.Clone(authoritative)
	if out == nil {
		out = make([]T, 0)
	}
	for _, p := range ordered {
		id := p.EntityID()
		i := slices.IndexFunc(out, func(item T) bool { return item.GetID() == id })
		switch p.Kind {
		case KindAdd:
			if i < 0 {
				out = append([]T{p.Payload}, out...)
			}
		case KindUpdate:
			if i >= 0 {
				out[i] = p.Payload
			}
		case KindDelete:
			if i >= 0 {
				out = slices.Delete(out, i, i+1)
			}
		}
	}
	return out
}
