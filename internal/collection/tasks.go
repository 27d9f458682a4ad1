package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/chronicle/internal/dashboard"
	"github.com/nhle/chronicle/internal/model"
)

// Tasks adds task queries and the completion toggle to a collection.
type Tasks struct {
	Collection[model.Task]
}

func NewTasks(c Collection[model.Task]) *Tasks {
	return &Tasks{Collection: c}
}

// Active returns the tasks not yet completed.
func (t *Tasks) Active() []model.Task {
	return filter(t.Items(), func(task model.Task) bool { return !task.Completed })
}

// Completed returns the completed tasks.
func (t *Tasks) Completed() []model.Task {
	return filter(t.Items(), func(task model.Task) bool { return task.Completed })
}

// Overdue returns open tasks whose due date is before today.
func (t *Tasks) Overdue(now time.Time) []model.Task {
	return dashboard.Overdue(t.Items(), now)
}

// DueToday returns open tasks due on the calendar day of now.
func (t *Tasks) DueToday(now time.Time) []model.Task {
	return dashboard.DueToday(t.Items(), now)
}

// Toggle flips the completion flag of task id.
func (t *Tasks) Toggle(ctx context.Context, id string) (model.Task, error) {
	task, ok := Find[model.Task](t, id)
	if !ok {
		return model.Task{}, fmt.Errorf("toggling task %s: %w", id, ErrNotFound)
	}
	return t.Update(ctx, id, model.Patch{"completed": !task.Completed})
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
