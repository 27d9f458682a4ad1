package model

import "time"

// Priority is shared by reminders and suggestions.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities; higher is more important.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

type ReminderType string

const (
	ReminderGoalDeadline      ReminderType = "goal-deadline"
	ReminderRoutineSchedule   ReminderType = "routine-schedule"
	ReminderBehindSchedule    ReminderType = "behind-schedule"
	ReminderStreakMaintenance ReminderType = "streak-maintenance"
)

type ReminderStatus string

const (
	ReminderPending      ReminderStatus = "pending"
	ReminderAcknowledged ReminderStatus = "acknowledged"
	ReminderSnoozed      ReminderStatus = "snoozed"
	ReminderDismissed    ReminderStatus = "dismissed"
)

// Reminder is a generated nudge about a goal, routine, or streak.
// EntityID and EntityType are a lookup reference only.
type Reminder struct {
	ID                string         `json:"id"`
	Type              ReminderType   `json:"type"`
	Title             string         `json:"title"`
	Message           string         `json:"message"`
	Priority          Priority       `json:"priority"`
	Status            ReminderStatus `json:"status"`
	ScheduledFor      time.Time      `json:"scheduledFor"`
	SnoozedUntil      *time.Time     `json:"snoozedUntil,omitempty"`
	EntityID          string         `json:"entityId,omitempty"`
	EntityType        EntityType     `json:"entityType,omitempty"`
	ActionSuggestions []string       `json:"actionSuggestions,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// Active reports whether the reminder still awaits the user.
func (r Reminder) Active() bool {
	return r.Status == ReminderPending || r.Status == ReminderSnoozed
}

// ReminderPreferences tunes reminder generation.
type ReminderPreferences struct {
	ID                   string    `json:"id"`
	Enabled              bool      `json:"enabled"`
	GoalDeadlineDays     int       `json:"goalDeadlineDays"`
	RoutineLeadMinutes   int       `json:"routineLeadMinutes"`
	BehindScheduleAlerts bool      `json:"behindScheduleAlerts"`
	StreakReminders      bool      `json:"streakReminders"`
	StreakReminderHour   int       `json:"streakReminderHour"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// DefaultReminderPreferences returns the preferences used when none are stored.
func DefaultReminderPreferences() ReminderPreferences {
	return ReminderPreferences{
		ID:                   "default",
		Enabled:              true,
		GoalDeadlineDays:     3,
		RoutineLeadMinutes:   15,
		BehindScheduleAlerts: true,
		StreakReminders:      true,
		StreakReminderHour:   18,
	}
}
