package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/chronicle/internal/auth"
	"github.com/nhle/chronicle/internal/dashboard"
	"github.com/nhle/chronicle/internal/hybrid"
	"github.com/nhle/chronicle/internal/localstore"
	"github.com/nhle/chronicle/internal/model"
	"github.com/nhle/chronicle/internal/optimistic"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

var wednesday = time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)

func testConfig(withRemote bool) *model.AppConfig {
	cfg := &model.AppConfig{
		Remote:      model.RemoteConfig{HealthIntervalSec: 30},
		Optimistic:  model.OptimisticConfig{TimeoutMS: 1000},
		Reminders:   model.IntervalConfig{IntervalSec: 300},
		Suggestions: model.IntervalConfig{IntervalSec: 600},
	}
	if withRemote {
		cfg.Remote.Driver = "sqlite"
		cfg.Remote.DSN = ":memory:"
	}
	return cfg
}

func open(t *testing.T, withRemote bool, provider auth.Provider) *Workspace {
	t.Helper()
	w, err := Open(context.Background(), Options{
		Config: testConfig(withRemote),
		Auth:   provider,
		Medium: localstore.NewMemoryMedium(),
		Clock:  &fixedClock{wednesday},
	})
	if err != nil {
		t.Fatalf("opening workspace: %v", err)
	}
	t.Cleanup(func() {
		if err := w.Close(); err != nil {
			t.Errorf("closing workspace: %v", err)
		}
	})
	return w
}

func TestLocalOnlyWorkspace(t *testing.T) {
	w := open(t, false, nil)
	ctx := context.Background()

	if w.Mode() != hybrid.Local || w.Migrator != nil || w.NeedsMigration() {
		t.Fatalf("workspace without a backend must be local only")
	}

	task, ok := w.TaskView.Add(ctx, model.Task{Title: "overdue", DueDate: "2026-06-01"}, optimistic.Options[model.Task]{})
	if !ok {
		t.Fatalf("adding through the optimistic view failed")
	}
	if n := w.Store.Len(localstore.Tasks); n != 1 {
		t.Fatalf("stored tasks = %d", n)
	}

	today := w.Today()
	if len(today.Overdue) != 1 || today.Overdue[0].ID != task.ID {
		t.Fatalf("today view = %+v", today)
	}

	if err := w.Scheduler.RunNow(ctx, JobSuggestions); err != nil {
		t.Fatalf("running suggestions job: %v", err)
	}
	sugs := w.Suggestions()
	if len(sugs) != 1 || sugs[0].Priority != model.PriorityHigh {
		t.Fatalf("suggestions = %+v", sugs)
	}
	if err := w.RefreshSuggestions(ctx); err != nil {
		t.Fatalf("refreshing suggestions: %v", err)
	}
	if n := len(w.Suggestions()); n != 1 {
		t.Fatalf("refresh duplicated suggestions: %d", n)
	}
	if !w.DismissSuggestion(sugs[0].ID) || len(w.Suggestions()) != 0 {
		t.Fatalf("dismissing suggestion failed")
	}
	if err := w.Scheduler.RunNow(ctx, JobSuggestions); err != nil {
		t.Fatalf("running suggestions job after dismiss: %v", err)
	}
	if got := w.Suggestions(); len(got) != 0 {
		t.Fatalf("dismissed suggestion came back: %+v", got)
	}
	if w.DismissSuggestion(sugs[0].ID) {
		t.Fatalf("dismissing twice should report false")
	}
}

func TestSuggestionsAreCapped(t *testing.T) {
	w := open(t, false, nil)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		if _, ok := w.TaskView.Add(ctx, model.Task{Title: title, DueDate: "2026-06-01"}, optimistic.Options[model.Task]{}); !ok {
			t.Fatalf("adding %s failed", title)
		}
	}
	if err := w.RefreshSuggestions(ctx); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	for _, title := range []string{"d", "e"} {
		if _, ok := w.TaskView.Add(ctx, model.Task{Title: title, DueDate: "2026-05-20"}, optimistic.Options[model.Task]{}); !ok {
			t.Fatalf("adding %s failed", title)
		}
	}
	if err := w.RefreshSuggestions(ctx); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	if n := w.Store.Len(localstore.SmartSuggestions); n <= dashboard.MaxSuggestions {
		t.Fatalf("expected more than %d stored suggestions, got %d", dashboard.MaxSuggestions, n)
	}
	if got := w.Suggestions(); len(got) != dashboard.MaxSuggestions {
		t.Fatalf("Suggestions returned %d, want %d", len(got), dashboard.MaxSuggestions)
	}
	if got := w.Today().Suggestions; len(got) != dashboard.MaxSuggestions {
		t.Fatalf("today panel shows %d suggestions", len(got))
	}
}

func TestWorkspaceFollowsSignIn(t *testing.T) {
	provider := auth.NewStatic(nil)
	w := open(t, true, provider)
	ctx := context.Background()

	changes := 0
	stop := w.Watch(func() { changes++ })
	defer stop()

	if w.Mode() != hybrid.Local {
		t.Fatalf("signed out workspace should be local")
	}
	if _, err := w.Goals.Add(ctx, model.Goal{Title: "offline goal", Progress: 20}); err != nil {
		t.Fatalf("adding local goal: %v", err)
	}

	provider.Set(&auth.User{ID: "alice"})
	if w.Mode() != hybrid.Remote {
		t.Fatalf("signed in workspace should be remote")
	}
	if len(w.Goals.Items()) != 0 {
		t.Fatalf("remote goals should start empty")
	}
	if !w.NeedsMigration() {
		t.Fatalf("local data should need migrating")
	}

	status, err := w.MigrateLocalData(ctx, true)
	if err != nil {
		t.Fatalf("migrating: %v", err)
	}
	if status.Failed() != 0 {
		t.Fatalf("migration failures: %+v", status)
	}
	goals := w.Goals.Items()
	if len(goals) != 1 || goals[0].Title != "offline goal" || goals[0].Status != model.GoalInProgress {
		t.Fatalf("remote goals after migration = %+v", goals)
	}
	if w.NeedsMigration() || w.Store.Len(localstore.Goals) != 0 {
		t.Fatalf("local data should be cleared")
	}

	provider.Set(nil)
	if w.Mode() != hybrid.Local || len(w.Goals.Items()) != 0 {
		t.Fatalf("signing out should switch back to the empty local store")
	}
	if changes == 0 {
		t.Fatalf("workspace watchers never notified")
	}
}

func TestRemindersJobUsesLocalStore(t *testing.T) {
	w := open(t, false, nil)
	ctx := context.Background()

	if _, err := w.Goals.Add(ctx, model.Goal{Title: "ship", TargetDate: "2026-06-10"}); err != nil {
		t.Fatalf("adding goal: %v", err)
	}
	ran := w.Scheduler.RunDue(ctx, wednesday)
	if len(ran) == 0 {
		t.Fatalf("no jobs were due at start")
	}
	if len(w.Reminders.All()) == 0 {
		t.Fatalf("reminders job generated nothing")
	}
}
