// Package reminder turns goals, tasks and routines into reminders and
// manages their acknowledge, snooze and dismiss lifecycle.
package reminder

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/chronicle/internal/dashboard"
	"github.com/nhle/chronicle/internal/model"
)

// Input is everything Generate reads.
type Input struct {
	Goals       []model.Goal
	Tasks       []model.Task
	Routines    []model.Routine
	Existing    []model.Reminder
	Preferences model.ReminderPreferences
}

type dedupeKey struct {
	entityID string
	typ      model.ReminderType
}

// Generate returns the reminders due at now that are not already present in
// in.Existing for the same entity and type. Pending, snoozed and dismissed
// reminders all hold their key; only an acknowledged one makes room for a
// new reminder.
func Generate(in Input, now time.Time) []model.Reminder {
	out := make([]model.Reminder, 0)
	prefs := in.Preferences
	if !prefs.Enabled {
		return out
	}

	active := make(map[dedupeKey]bool)
	for _, r := range in.Existing {
		if r.Active() || r.Status == model.ReminderDismissed {
			active[dedupeKey{r.EntityID, r.Type}] = true
		}
	}
	emit := func(r model.Reminder) {
		key := dedupeKey{r.EntityID, r.Type}
		if active[key] {
			return
		}
		active[key] = true
		r.ID = uuid.New().String()
		r.Status = model.ReminderPending
		r.CreatedAt = now
		r.UpdatedAt = now
		if r.ScheduledFor.IsZero() {
			r.ScheduledFor = now
		}
		out = append(out, r)
	}

	today := model.StartOfDay(now)
	for _, g := range in.Goals {
		if g.Status == model.GoalCompleted {
			continue
		}
		if target, ok := model.ParseDate(g.TargetDate, now.Location()); ok {
			days := int(math.Round(target.Sub(today).Hours() / 24))
			if days >= 0 && days <= prefs.GoalDeadlineDays {
				emit(model.Reminder{
					Type:       model.ReminderGoalDeadline,
					Title:      "Deadline approaching: " + g.Title,
					Message:    deadlineMessage(days, g.Progress),
					Priority:   deadlinePriority(days),
					EntityID:   g.ID,
					EntityType: model.EntityGoal,
					ActionSuggestions: []string{
						"Update progress",
						"Break the remaining work into tasks",
					},
				})
			}
		}

		if prefs.BehindScheduleAlerts && dashboard.IsBehindSchedule(g, now) {
			share, _ := dashboard.ElapsedShare(g, now)
			priority := model.PriorityMedium
			if share*100-float64(g.Progress) > 30 {
				priority = model.PriorityHigh
			}
			emit(model.Reminder{
				Type:       model.ReminderBehindSchedule,
				Title:      "Behind schedule: " + g.Title,
				Message:    fmt.Sprintf("%d%% done with %.0f%% of the time used.", g.Progress, share*100),
				Priority:   priority,
				EntityID:   g.ID,
				EntityType: model.EntityGoal,
				ActionSuggestions: []string{
					"Schedule a focused session today",
					"Adjust the target date",
				},
			})
		}
	}

	lead := time.Duration(prefs.RoutineLeadMinutes) * time.Minute
	for _, r := range dashboard.ActiveToday(in.Routines, now) {
		at, err := r.TimeOn(now)
		if err != nil {
			continue
		}
		until := at.Sub(now)
		if until < 0 || until > lead {
			continue
		}
		emit(model.Reminder{
			Type:         model.ReminderRoutineSchedule,
			Title:        "Coming up: " + r.Title,
			Message:      fmt.Sprintf("Starts at %s, in %d minutes.", r.Time, int(until.Minutes())),
			Priority:     model.PriorityMedium,
			ScheduledFor: at,
			EntityID:     r.ID,
			EntityType:   model.EntityRoutine,
		})
	}

	if prefs.StreakReminders && now.Hour() >= prefs.StreakReminderHour && len(in.Tasks) > 0 && !completedOn(in.Tasks, now) {
		streak := dashboard.Streak(in.Tasks, now)
		priority := model.PriorityMedium
		if streak >= 3 {
			priority = model.PriorityHigh
		}
		emit(model.Reminder{
			Type:     model.ReminderStreakMaintenance,
			Title:    "Keep your streak going",
			Message:  fmt.Sprintf("Complete one task today to extend your %d-day streak.", streak),
			Priority: priority,
			// One per calendar day.
			EntityID: model.DateOf(now),
			ActionSuggestions: []string{
				"Pick the smallest open task",
			},
		})
	}

	return out
}

func completedOn(tasks []model.Task, day time.Time) bool {
	for _, t := range tasks {
		if t.Completed && model.SameDay(day, t.UpdatedAt) {
			return true
		}
	}
	return false
}

func deadlinePriority(days int) model.Priority {
	switch {
	case days == 0:
		return model.PriorityUrgent
	case days == 1:
		return model.PriorityHigh
	default:
		return model.PriorityMedium
	}
}

func deadlineMessage(days, progress int) string {
	switch days {
	case 0:
		return fmt.Sprintf("Due today at %d%% progress.", progress)
	case 1:
		return fmt.Sprintf("Due tomorrow at %d%% progress.", progress)
	default:
		return fmt.Sprintf("Due in %d days at %d%% progress.", days, progress)
	}
}
