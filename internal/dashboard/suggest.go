package dashboard

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/nhle/chronicle/internal/model"
)

const (
	// MaxSuggestions caps the output of Suggest.
	MaxSuggestions = 3

	staleAfter      = 7 * 24 * time.Hour
	suggestionTTL   = 24 * time.Hour
	suggestionIDTag = "sug-"
)

// Suggest ranks actionable suggestions for now: overdue tasks (high,
// oldest due first), behind-schedule goals and routines still due today
// (medium), then goals untouched for a week (low). At most MaxSuggestions
// are returned, so any overdue task guarantees a high-priority entry.
func Suggest(tasks []model.Task, goals []model.Goal, routines []model.Routine, now time.Time) []model.SmartSuggestion {
	var out []model.SmartSuggestion
	add := func(s model.SmartSuggestion) bool {
		s.ID = suggestionIDTag + s.Key()
		s.ExpiresAt = now.Add(suggestionTTL)
		s.CreatedAt = now
		s.UpdatedAt = now
		out = append(out, s)
		return len(out) < MaxSuggestions
	}

	overdue := Overdue(tasks, now)
	slices.SortStableFunc(overdue, func(a, b model.Task) int {
		if c := cmp.Compare(a.DueDate, b.DueDate); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	for _, t := range overdue {
		more := add(model.SmartSuggestion{
			Type:          model.SuggestionCatchUp,
			Title:         "Finish overdue: " + t.Title,
			Description:   fmt.Sprintf("Due %s and still open.", t.DueDate),
			Reasoning:     "Overdue tasks block everything planned after them.",
			Priority:      model.PriorityHigh,
			EstimatedTime: 30,
			Points:        taskPoints,
			ActionData:    action(t.ID, model.EntityTask, "complete"),
		})
		if !more {
			return out
		}
	}

	for _, g := range BehindSchedule(goals, now) {
		share, _ := ElapsedShare(g, now)
		more := add(model.SmartSuggestion{
			Type:          model.SuggestionCatchUp,
			Title:         "Catch up on " + g.Title,
			Description:   fmt.Sprintf("%d%% done with %.0f%% of the time used.", g.Progress, share*100),
			Reasoning:     "Progress is trailing the schedule toward the target date.",
			Priority:      model.PriorityMedium,
			EstimatedTime: 45,
			Points:        goalPoints / 2,
			ActionData:    action(g.ID, model.EntityGoal, "progress"),
		})
		if !more {
			return out
		}
	}

	for _, r := range ActiveToday(routines, now) {
		at, err := r.TimeOn(now)
		if err != nil || at.Before(now) {
			continue
		}
		more := add(model.SmartSuggestion{
			Type:          model.SuggestionNextAction,
			Title:         "Up next: " + r.Title,
			Description:   "Scheduled for " + r.Time + " today.",
			Reasoning:     "Keeping routines on time builds the streak.",
			Priority:      model.PriorityMedium,
			EstimatedTime: 15,
			Points:        5,
			ActionData:    action(r.ID, model.EntityRoutine, "start"),
		})
		if !more {
			return out
		}
	}

	for _, g := range goals {
		if g.Status == model.GoalCompleted || g.UpdatedAt.IsZero() || now.Sub(g.UpdatedAt) < staleAfter {
			continue
		}
		more := add(model.SmartSuggestion{
			Type:          model.SuggestionMotivation,
			Title:         "Revisit " + g.Title,
			Description:   fmt.Sprintf("No update in %d days.", int(now.Sub(g.UpdatedAt).Hours()/24)),
			Reasoning:     "A small step keeps a stalled goal alive.",
			Priority:      model.PriorityLow,
			EstimatedTime: 20,
			Points:        15,
			ActionData:    action(g.ID, model.EntityGoal, "review"),
		})
		if !more {
			return out
		}
	}

	if out == nil {
		out = make([]model.SmartSuggestion, 0)
	}
	return out
}

// Fresh returns the candidates whose key is not already held by an
// unexpired suggestion in previous.
func Fresh(previous, candidates []model.SmartSuggestion, now time.Time) []model.SmartSuggestion {
	seen := make(map[string]bool, len(previous))
	for _, s := range previous {
		if s.ExpiresAt.IsZero() || s.ExpiresAt.After(now) {
			seen[s.Key()] = true
		}
	}
	out := make([]model.SmartSuggestion, 0, len(candidates))
	for _, s := range candidates {
		if !seen[s.Key()] {
			out = append(out, s)
		}
	}
	return out
}

func action(id string, typ model.EntityType, verb string) map[string]any {
	return map[string]any{"entityId": id, "entityType": string(typ), "action": verb}
}
