package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nhle/chronicle/internal/localstore"
	"github.com/nhle/chronicle/internal/model"
)

// Wednesday afternoon.
var now = time.Date(2026, 6, 10, 17, 50, 0, 0, time.UTC)

func byType(rs []model.Reminder) map[model.ReminderType][]model.Reminder {
	out := make(map[model.ReminderType][]model.Reminder)
	for _, r := range rs {
		out[r.Type] = append(out[r.Type], r)
	}
	return out
}

func TestGenerate(t *testing.T) {
	prefs := model.DefaultReminderPreferences()
	prefs.StreakReminderHour = 17

	in := Input{
		Goals: []model.Goal{
			{ID: "soon", Title: "Ship", Progress: 90, Status: model.GoalInProgress,
				TargetDate: "2026-06-11", CreatedAt: now.AddDate(0, 0, -30)},
			{ID: "far", Title: "Novel", Progress: 50, Status: model.GoalInProgress,
				TargetDate: "2026-12-31", CreatedAt: now.AddDate(0, 0, -1)},
			{ID: "late", Title: "Taxes", Progress: 10, Status: model.GoalInProgress,
				TargetDate: "2026-07-10", CreatedAt: now.AddDate(0, 0, -60)},
			{ID: "done", Title: "Done", Progress: 100, Status: model.GoalCompleted, TargetDate: "2026-06-10"},
		},
		Routines: []model.Routine{
			{ID: "gym", Title: "Gym", Time: "18:00", DaysOfWeek: []int{3}, IsActive: true},
			{ID: "later", Title: "Read", Time: "21:00", DaysOfWeek: []int{3}, IsActive: true},
		},
		Tasks: []model.Task{
			{ID: "t", Title: "old", Completed: true, UpdatedAt: now.AddDate(0, 0, -1)},
		},
		Preferences: prefs,
	}

	got := byType(Generate(in, now))

	deadline := got[model.ReminderGoalDeadline]
	if len(deadline) != 1 || deadline[0].EntityID != "soon" || deadline[0].Priority != model.PriorityHigh {
		t.Errorf("goal-deadline reminders = %+v", deadline)
	}
	behind := got[model.ReminderBehindSchedule]
	if len(behind) != 1 || behind[0].EntityID != "late" {
		t.Errorf("behind-schedule reminders = %+v", behind)
	}
	routine := got[model.ReminderRoutineSchedule]
	if len(routine) != 1 || routine[0].EntityID != "gym" {
		t.Errorf("routine-schedule reminders = %+v", routine)
	}
	streak := got[model.ReminderStreakMaintenance]
	if len(streak) != 1 || streak[0].EntityID != "2026-06-10" {
		t.Errorf("streak reminders = %+v", streak)
	}

	for _, rs := range got {
		for _, r := range rs {
			if r.ID == "" || r.Status != model.ReminderPending {
				t.Errorf("reminder not initialised: %+v", r)
			}
		}
	}
}

func TestGenerateSkipsActiveDuplicates(t *testing.T) {
	in := Input{
		Goals: []model.Goal{{ID: "g", Title: "Ship", TargetDate: "2026-06-10"}},
		Existing: []model.Reminder{
			{ID: "r1", Type: model.ReminderGoalDeadline, EntityID: "g", Status: model.ReminderSnoozed},
		},
		Preferences: model.DefaultReminderPreferences(),
	}
	if got := Generate(in, now); len(got) != 0 {
		t.Fatalf("expected no duplicate, got %+v", got)
	}

	in.Existing[0].Status = model.ReminderDismissed
	if got := Generate(in, now); len(got) != 0 {
		t.Fatalf("dismissed reminder should hold its key, got %+v", got)
	}

	in.Existing[0].Status = model.ReminderAcknowledged
	got := Generate(in, now)
	if len(got) != 1 || got[0].Priority != model.PriorityUrgent {
		t.Fatalf("expected a fresh urgent reminder, got %+v", got)
	}
}

func TestDismissHoldsUntilRetention(t *testing.T) {
	store := localstore.New(localstore.NewMemoryMedium())
	localstore.Set(store, localstore.Goals, []model.Goal{
		{ID: "g", Title: "Ship", TargetDate: "2026-06-12", Status: model.GoalNotStarted},
	})

	svc := NewService(store)
	current := now
	svc.SetClock(func() time.Time { return current })
	ctx := context.Background()

	created, err := svc.Refresh(ctx)
	if err != nil || len(created) != 1 {
		t.Fatalf("first refresh = %+v, %v", created, err)
	}
	if err := svc.Dismiss(created[0].ID); err != nil {
		t.Fatalf("dismissing: %v", err)
	}

	current = current.Add(5 * time.Minute)
	again, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("refreshing after dismiss: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("dismissed reminder came back: %+v", again)
	}
	if due := svc.Due(current); len(due) != 0 {
		t.Fatalf("nothing should be due after dismiss, got %+v", due)
	}

	current = current.Add(retention + time.Hour)
	localstore.Set(store, localstore.Goals, []model.Goal{
		{ID: "g", Title: "Ship", TargetDate: model.DateOf(current.AddDate(0, 0, 1)), Status: model.GoalNotStarted},
	})
	later, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("refreshing after retention: %v", err)
	}
	if len(later) != 1 || later[0].ID == created[0].ID {
		t.Fatalf("expected a new reminder once the dismissal aged out, got %+v", later)
	}
}

func TestGenerateDisabled(t *testing.T) {
	prefs := model.DefaultReminderPreferences()
	prefs.Enabled = false
	in := Input{
		Goals:       []model.Goal{{ID: "g", Title: "Ship", TargetDate: "2026-06-10"}},
		Preferences: prefs,
	}
	if got := Generate(in, now); len(got) != 0 {
		t.Fatalf("disabled preferences produced %d reminders", len(got))
	}
}

func TestServiceLifecycle(t *testing.T) {
	store := localstore.New(localstore.NewMemoryMedium())
	localstore.Set(store, localstore.Goals, []model.Goal{
		{ID: "g", Title: "Ship", TargetDate: "2026-06-12", Status: model.GoalNotStarted},
	})

	svc := NewService(store)
	current := now
	svc.now = func() time.Time { return current }
	ctx := context.Background()

	created, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("refreshing: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(created))
	}
	id := created[0].ID

	if again, _ := svc.Refresh(ctx); len(again) != 0 {
		t.Fatalf("second refresh duplicated reminders: %+v", again)
	}
	if due := svc.Due(current); len(due) != 1 {
		t.Fatalf("expected 1 due reminder, got %d", len(due))
	}

	if err := svc.Snooze(id, current.Add(time.Hour)); err != nil {
		t.Fatalf("snoozing: %v", err)
	}
	if due := svc.Due(current); len(due) != 0 {
		t.Fatalf("snoozed reminder is still due")
	}

	current = current.Add(2 * time.Hour)
	if _, err := svc.Refresh(ctx); err != nil {
		t.Fatalf("refreshing after snooze: %v", err)
	}
	due := svc.Due(current)
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("snooze should have expired, due = %+v", due)
	}

	if err := svc.Acknowledge(id); err != nil {
		t.Fatalf("acknowledging: %v", err)
	}
	if err := svc.Dismiss("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// The goal is still due soon, so an acknowledged reminder is replaced.
	fresh, _ := svc.Refresh(ctx)
	if len(fresh) != 1 || fresh[0].ID == id {
		t.Fatalf("expected a new reminder after acknowledgement, got %+v", fresh)
	}

	current = current.AddDate(0, 2, 0)
	if _, err := svc.Refresh(ctx); err != nil {
		t.Fatalf("refreshing later: %v", err)
	}
	for _, r := range svc.All() {
		if r.ID == id {
			t.Fatalf("acknowledged reminder kept past retention")
		}
	}
}

func TestPreferences(t *testing.T) {
	store := localstore.New(localstore.NewMemoryMedium())
	svc := NewService(store)

	if got := svc.Preferences(); got.GoalDeadlineDays != 3 {
		t.Fatalf("defaults not returned: %+v", got)
	}
	prefs := svc.Preferences()
	prefs.GoalDeadlineDays = 7
	svc.SavePreferences(prefs)
	if got := svc.Preferences(); got.GoalDeadlineDays != 7 || got.UpdatedAt.IsZero() {
		t.Fatalf("saved preferences = %+v", got)
	}
}
