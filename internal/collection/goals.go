package collection

import (
	"context"
	"fmt"
	"math"

	"github.com/nhle/chronicle/internal/model"
)

// Goals keeps goal progress clamped to [0,100] and status derived from it
// on every write.
type Goals struct {
	Collection[model.Goal]
}

func NewGoals(c Collection[model.Goal]) *Goals {
	return &Goals{Collection: c}
}

func (g *Goals) Add(ctx context.Context, goal model.Goal) (model.Goal, error) {
	return g.Collection.Add(ctx, goal.Normalized())
}

// Update normalizes progress and status in patch before applying it. A
// status without a progress value moves progress to match: completed is
// 100, not-started is 0, and in-progress keeps the current value within
// 1-99.
func (g *Goals) Update(ctx context.Context, id string, patch model.Patch) (model.Goal, error) {
	current, ok := Find[model.Goal](g, id)
	if !ok {
		return model.Goal{}, fmt.Errorf("updating goal %s: %w", id, ErrNotFound)
	}

	progress, hasProgress := intValue(patch["progress"])
	if !hasProgress {
		status, hasStatus := patch["status"]
		if !hasStatus {
			return g.Collection.Update(ctx, id, patch)
		}
		switch model.GoalStatus(fmt.Sprint(status)) {
		case model.GoalCompleted:
			progress = 100
		case model.GoalNotStarted:
			progress = 0
		case model.GoalInProgress:
			progress = min(max(current.Progress, 1), 99)
		default:
			return model.Goal{}, fmt.Errorf("updating goal %s: %w: %v", id, model.ErrInvalidGoalStatus, status)
		}
	}

	normalized := make(model.Patch, len(patch)+2)
	for k, v := range patch {
		normalized[k] = v
	}
	progress = model.ClampProgress(progress)
	normalized["progress"] = progress
	normalized["status"] = model.StatusForProgress(progress)
	return g.Collection.Update(ctx, id, normalized)
}

// UpdateProgress sets the progress of goal id, clamped to [0,100].
func (g *Goals) UpdateProgress(ctx context.Context, id string, progress int) (model.Goal, error) {
	return g.Update(ctx, id, model.Patch{"progress": progress})
}

// ByStatus returns the goals with the given status.
func (g *Goals) ByStatus(status model.GoalStatus) []model.Goal {
	return filter(g.Items(), func(goal model.Goal) bool { return goal.Status == status })
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(math.Round(float64(n))), true
	case float64:
		return int(math.Round(n)), true
	default:
		return 0, false
	}
}
