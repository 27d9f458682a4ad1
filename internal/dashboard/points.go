package dashboard

import (
	"time"

	"github.com/nhle/chronicle/internal/model"
)

const (
	taskPoints = 10
	goalPoints = 50
)

// Points holds the completion score overall and for the current day.
type Points struct {
	Total int
	Today int
}

// ComputePoints scores completed tasks and goals. Today counts only items
// whose updatedAt falls on now's calendar day, so Today <= Total.
func ComputePoints(tasks []model.Task, goals []model.Goal, now time.Time) Points {
	var p Points
	for _, t := range tasks {
		if !t.Completed {
			continue
		}
		p.Total += taskPoints
		if model.SameDay(now, t.UpdatedAt) {
			p.Today += taskPoints
		}
	}
	for _, g := range goals {
		if g.Status != model.GoalCompleted {
			continue
		}
		p.Total += goalPoints
		if model.SameDay(now, g.UpdatedAt) {
			p.Today += goalPoints
		}
	}
	return p
}

// Streak counts consecutive calendar days with at least one completed task,
// ending today, or yesterday when nothing has been completed yet today.
func Streak(tasks []model.Task, now time.Time) int {
	days := make(map[string]bool)
	for _, t := range tasks {
		if t.Completed && !t.UpdatedAt.IsZero() {
			days[model.DateOf(t.UpdatedAt.In(now.Location()))] = true
		}
	}

	day := model.StartOfDay(now)
	if !days[model.DateOf(day)] {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for days[model.DateOf(day)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}
