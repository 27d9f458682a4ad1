package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/chronicle/internal/dashboard"
	"github.com/nhle/chronicle/internal/model"
)

type Routines struct {
	Collection[model.Routine]
}

func NewRoutines(c Collection[model.Routine]) *Routines {
	return &Routines{Collection: c}
}

// Today returns the active routines scheduled on the weekday of now.
func (r *Routines) Today(now time.Time) []model.Routine {
	return dashboard.ActiveToday(r.Items(), now)
}

// Active returns every active routine.
func (r *Routines) Active() []model.Routine {
	return filter(r.Items(), func(routine model.Routine) bool { return routine.IsActive })
}

// ToggleActive pauses or resumes routine id.
func (r *Routines) ToggleActive(ctx context.Context, id string) (model.Routine, error) {
	routine, ok := Find[model.Routine](r, id)
	if !ok {
		return model.Routine{}, fmt.Errorf("toggling routine %s: %w", id, ErrNotFound)
	}
	return r.Update(ctx, id, model.Patch{"isActive": !routine.IsActive})
}
