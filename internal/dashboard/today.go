// Package dashboard derives the "today" view and its suggestions from
// entity collections. Every function is pure.
package dashboard

import (
	"time"

	"github.com/nhle/chronicle/internal/model"
)

// behindTolerance is how many percentage points progress may trail the
// elapsed share of a goal's schedule before the goal counts as behind.
const behindTolerance = 10.0

// Overdue returns open tasks due on a calendar day before now's.
func Overdue(tasks []model.Task, now time.Time) []model.Task {
	today := model.StartOfDay(now)
	out := make([]model.Task, 0)
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		due, ok := model.ParseDate(t.DueDate, now.Location())
		if ok && due.Before(today) {
			out = append(out, t)
		}
	}
	return out
}

// DueToday returns open tasks due on now's calendar day. The result never
// shares an item with Overdue for the same now.
func DueToday(tasks []model.Task, now time.Time) []model.Task {
	today := model.StartOfDay(now)
	out := make([]model.Task, 0)
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		due, ok := model.ParseDate(t.DueDate, now.Location())
		if ok && due.Equal(today) {
			out = append(out, t)
		}
	}
	return out
}

// ActiveToday returns active routines scheduled on now's weekday.
func ActiveToday(routines []model.Routine, now time.Time) []model.Routine {
	out := make([]model.Routine, 0)
	for _, r := range routines {
		if r.IsActive && r.RunsOn(now.Weekday()) {
			out = append(out, r)
		}
	}
	return out
}

// InProgress returns the goals with status in-progress.
func InProgress(goals []model.Goal) []model.Goal {
	out := make([]model.Goal, 0)
	for _, g := range goals {
		if g.Status == model.GoalInProgress {
			out = append(out, g)
		}
	}
	return out
}

// ElapsedShare returns the fraction in [0,1] of the span from the goal's
// creation to its target date that has passed at now. ok is false when the
// goal has no usable schedule.
func ElapsedShare(g model.Goal, now time.Time) (share float64, ok bool) {
	target, ok := model.ParseDate(g.TargetDate, now.Location())
	if !ok || g.CreatedAt.IsZero() {
		return 0, false
	}
	total := target.Sub(g.CreatedAt)
	if total <= 0 {
		return 1, true
	}
	share = float64(now.Sub(g.CreatedAt)) / float64(total)
	return min(max(share, 0), 1), true
}

// IsBehindSchedule reports whether g's progress trails its elapsed schedule
// by more than the tolerance. Completed goals are never behind.
func IsBehindSchedule(g model.Goal, now time.Time) bool {
	if g.Status == model.GoalCompleted || g.Progress >= 100 {
		return false
	}
	share, ok := ElapsedShare(g, now)
	if !ok {
		return false
	}
	return share*100-float64(g.Progress) > behindTolerance
}

// BehindSchedule returns the goals for which IsBehindSchedule holds.
func BehindSchedule(goals []model.Goal, now time.Time) []model.Goal {
	out := make([]model.Goal, 0)
	for _, g := range goals {
		if IsBehindSchedule(g, now) {
			out = append(out, g)
		}
	}
	return out
}

// Summary is the full today view.
type Summary struct {
	Overdue     []model.Task
	DueToday    []model.Task
	Routines    []model.Routine
	InProgress  []model.Goal
	Behind      []model.Goal
	Suggestions []model.SmartSuggestion
	Points      Points
	Streak      int
}

// Summarize computes every derived view for now.
func Summarize(tasks []model.Task, goals []model.Goal, routines []model.Routine, now time.Time) Summary {
	return Summary{
		Overdue:     Overdue(tasks, now),
		DueToday:    DueToday(tasks, now),
		Routines:    ActiveToday(routines, now),
		InProgress:  InProgress(goals),
		Behind:      BehindSchedule(goals, now),
		Suggestions: Suggest(tasks, goals, routines, now),
		Points:      ComputePoints(tasks, goals, now),
		Streak:      Streak(tasks, now),
	}
}
