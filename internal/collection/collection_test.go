package collection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nhle/chronicle/internal/localstore"
	"github.com/nhle/chronicle/internal/model"
	"github.com/nhle/chronicle/internal/remote"
	"github.com/nhle/chronicle/internal/testutil"
)

func TestLocalWrites(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewLocalStore(t)
	tasks := NewLocal[model.Task](store, localstore.Tasks)
	defer tasks.Close()

	first, err := tasks.Add(ctx, model.Task{Title: "first"})
	if err != nil {
		t.Fatalf("adding: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() || !first.CreatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("added task not stamped: %+v", first)
	}
	second, err := tasks.Add(ctx, model.Task{ID: "chosen", Title: "second"})
	if err != nil || second.ID != "chosen" {
		t.Fatalf("Add with id = (%+v, %v)", second, err)
	}
	if _, err := tasks.Add(ctx, model.Task{ID: "chosen", Title: "dup"}); err == nil {
		t.Fatalf("duplicate id accepted")
	}
	if _, err := tasks.Add(ctx, model.Task{Title: "  "}); err == nil {
		t.Fatalf("blank title accepted")
	}

	items := tasks.Items()
	if len(items) != 2 || items[0].ID != "chosen" || items[1].ID != first.ID {
		t.Fatalf("items not newest first: %+v", items)
	}

	updated, err := tasks.Update(ctx, first.ID, model.Patch{
		"completed": true,
		"id":        "hijack",
		"createdAt": time.Unix(0, 0),
	})
	if err != nil {
		t.Fatalf("updating: %v", err)
	}
	if updated.ID != first.ID || !updated.CreatedAt.Equal(first.CreatedAt) || !updated.Completed {
		t.Fatalf("update changed identity or missed a field: %+v", updated)
	}

	if _, err := tasks.Update(ctx, "missing", model.Patch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := tasks.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := tasks.Delete(ctx, "chosen"); err != nil {
		t.Fatalf("deleting: %v", err)
	}

	stored := localstore.Get[model.Task](store, localstore.Tasks)
	if len(stored) != 1 || stored[0].ID != first.ID || !stored[0].Completed {
		t.Fatalf("persisted tasks = %+v", stored)
	}

	reopened := NewLocal[model.Task](store, localstore.Tasks)
	defer reopened.Close()
	if got := reopened.Items(); len(got) != 1 || got[0].ID != first.ID {
		t.Fatalf("reopened collection = %+v", got)
	}
}

func TestLocalFollowsStoreReplacement(t *testing.T) {
	store := localstore.New(localstore.NewMemoryMedium())
	goals := NewLocal[model.Goal](store, localstore.Goals)
	defer goals.Close()

	calls := 0
	stop := goals.Watch(func() { calls++ })
	defer stop()

	if _, err := goals.Add(context.Background(), model.Goal{Title: "own write"}); err != nil {
		t.Fatalf("adding: %v", err)
	}
	if calls != 1 {
		t.Fatalf("own write notified %d times", calls)
	}

	if !store.ImportAll([]byte(`{"goals":[{"id":"g1","title":"imported","status":"not-started"}]}`)) {
		t.Fatalf("import rejected")
	}
	items := goals.Items()
	if len(items) != 1 || items[0].ID != "g1" {
		t.Fatalf("collection did not reload after import: %+v", items)
	}
	if calls != 2 {
		t.Fatalf("watchers notified %d times, want 2", calls)
	}
}

func TestGoalsKeepProgressAndStatusConsistent(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		start     int
		patch     model.Patch
		progress  int
		status    model.GoalStatus
		wantError error
	}{
		{"progress above range", 10, model.Patch{"progress": 150}, 100, model.GoalCompleted, nil},
		{"negative progress", 10, model.Patch{"progress": -5}, 0, model.GoalNotStarted, nil},
		{"fractional progress", 0, model.Patch{"progress": 42.6}, 43, model.GoalInProgress, nil},
		{"status completed", 30, model.Patch{"status": "completed"}, 100, model.GoalCompleted, nil},
		{"status not started", 30, model.Patch{"status": model.GoalNotStarted}, 0, model.GoalNotStarted, nil},
		{"status in progress from zero", 0, model.Patch{"status": "in-progress"}, 1, model.GoalInProgress, nil},
		{"status in progress from done", 100, model.Patch{"status": "in-progress"}, 99, model.GoalInProgress, nil},
		{"progress wins over status", 30, model.Patch{"progress": 100, "status": "not-started"}, 100, model.GoalCompleted, nil},
		{"title only", 30, model.Patch{"title": "renamed"}, 30, model.GoalInProgress, nil},
		{"bad status", 30, model.Patch{"status": "paused"}, 0, "", model.ErrInvalidGoalStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := localstore.New(localstore.NewMemoryMedium())
			goals := NewGoals(NewLocal[model.Goal](store, localstore.Goals))

			added, err := goals.Add(ctx, model.Goal{Title: "Ship", Progress: tt.start, Status: model.GoalNotStarted})
			if err != nil {
				t.Fatalf("adding: %v", err)
			}
			if added.Status != model.StatusForProgress(tt.start) {
				t.Fatalf("Add did not normalize status: %+v", added)
			}

			got, err := goals.Update(ctx, added.ID, tt.patch)
			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Fatalf("expected %v, got %v", tt.wantError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("updating: %v", err)
			}
			if got.Progress != tt.progress || got.Status != tt.status {
				t.Fatalf("got progress %d status %s, want %d %s", got.Progress, got.Status, tt.progress, tt.status)
			}
		})
	}
}

func TestTasksQueries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	tasks := NewTasks(NewLocal[model.Task](localstore.New(localstore.NewMemoryMedium()), localstore.Tasks))

	late, _ := tasks.Add(ctx, model.Task{Title: "late", DueDate: "2026-06-01"})
	today, _ := tasks.Add(ctx, model.Task{Title: "today", DueDate: "2026-06-10"})
	if _, err := tasks.Add(ctx, model.Task{Title: "someday"}); err != nil {
		t.Fatalf("adding: %v", err)
	}

	if got := tasks.Overdue(now); len(got) != 1 || got[0].ID != late.ID {
		t.Fatalf("Overdue = %+v", got)
	}
	if got := tasks.DueToday(now); len(got) != 1 || got[0].ID != today.ID {
		t.Fatalf("DueToday = %+v", got)
	}

	toggled, err := tasks.Toggle(ctx, late.ID)
	if err != nil || !toggled.Completed {
		t.Fatalf("Toggle = (%+v, %v)", toggled, err)
	}
	if len(tasks.Active()) != 2 || len(tasks.Completed()) != 1 {
		t.Fatalf("active %d completed %d", len(tasks.Active()), len(tasks.Completed()))
	}
	if len(tasks.Overdue(now)) != 0 {
		t.Fatalf("completed task still overdue")
	}
	if toggled, _ = tasks.Toggle(ctx, late.ID); toggled.Completed {
		t.Fatalf("second toggle did not reopen the task")
	}
	if _, err := tasks.Toggle(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRoutinesAndResources(t *testing.T) {
	ctx := context.Background()
	store := localstore.New(localstore.NewMemoryMedium())
	wednesday := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)

	routines := NewRoutines(NewLocal[model.Routine](store, localstore.Routines))
	gym, _ := routines.Add(ctx, model.Routine{Title: "gym", Time: "18:00", DaysOfWeek: []int{3}, IsActive: true})
	if _, err := routines.Add(ctx, model.Routine{Title: "sunday", Time: "10:00", DaysOfWeek: []int{0}, IsActive: true}); err != nil {
		t.Fatalf("adding routine: %v", err)
	}
	if got := routines.Today(wednesday); len(got) != 1 || got[0].ID != gym.ID {
		t.Fatalf("Today = %+v", got)
	}
	if _, err := routines.ToggleActive(ctx, gym.ID); err != nil {
		t.Fatalf("toggling: %v", err)
	}
	if len(routines.Today(wednesday)) != 0 || len(routines.Active()) != 1 {
		t.Fatalf("paused routine still active")
	}

	resources := NewResources(NewLocal[model.Resource](store, localstore.Resources))
	for _, r := range []model.Resource{
		{Title: "Go tour", Type: model.ResourceLink, Category: "Reading", Tags: []string{"golang"}},
		{Title: "Groceries", Type: model.ResourceNote, Category: "home", Content: "milk, eggs"},
	} {
		if _, err := resources.Add(ctx, r); err != nil {
			t.Fatalf("adding resource: %v", err)
		}
	}
	if _, err := resources.Add(ctx, model.Resource{Title: "bad", Type: "video"}); !errors.Is(err, model.ErrInvalidResourceType) {
		t.Fatalf("expected ErrInvalidResourceType, got %v", err)
	}
	if got := resources.ByCategory("reading"); len(got) != 1 {
		t.Fatalf("ByCategory = %+v", got)
	}
	if got := resources.ByType(model.ResourceNote); len(got) != 1 || got[0].Title != "Groceries" {
		t.Fatalf("ByType = %+v", got)
	}
	if got := resources.Search("GOLANG"); len(got) != 1 || got[0].Title != "Go tour" {
		t.Fatalf("Search by tag = %+v", got)
	}
	if got := resources.Search("eggs"); len(got) != 1 {
		t.Fatalf("Search by content = %+v", got)
	}
	if got := resources.Search(" "); len(got) != 2 {
		t.Fatalf("blank search should return everything, got %d", len(got))
	}
}

func TestRemoteFollowsUserAndChanges(t *testing.T) {
	ctx := context.Background()
	backend := testutil.NewBackend(t)

	mine := NewRemote(remote.NewTable[model.Task](backend, remote.Tasks))
	other := NewRemote(remote.NewTable[model.Task](backend, remote.Tasks))
	defer mine.Close()
	defer other.Close()

	if mine.IsLoading() || len(mine.Items()) != 0 {
		t.Fatalf("unbound collection should be ready and empty")
	}
	if _, err := mine.Add(ctx, model.Task{Title: "nobody"}); !errors.Is(err, remote.ErrNoUser) {
		t.Fatalf("expected ErrNoUser, got %v", err)
	}

	mine.Bind(ctx, "alice")
	other.Bind(ctx, "alice")
	if mine.IsLoading() || mine.Err() != nil {
		t.Fatalf("bound collection: loading=%v err=%v", mine.IsLoading(), mine.Err())
	}

	added, err := mine.Add(ctx, model.Task{ID: "client-1", Title: "remote task"})
	if err != nil {
		t.Fatalf("adding: %v", err)
	}
	if added.ID != "client-1" {
		t.Fatalf("client id not kept, got %q", added.ID)
	}
	if got := other.Items(); len(got) != 1 || got[0].ID != added.ID {
		t.Fatalf("second view did not refetch on change: %+v", got)
	}

	if _, err := mine.Update(ctx, added.ID, model.Patch{"completed": true}); err != nil {
		t.Fatalf("updating: %v", err)
	}
	if got := other.Items(); len(got) != 1 || !got[0].Completed {
		t.Fatalf("second view missed the update: %+v", got)
	}

	other.Bind(ctx, "bob")
	if len(other.Items()) != 0 || other.UserID() != "bob" {
		t.Fatalf("rebinding should show only bob's items")
	}
	if err := other.Delete(ctx, added.ID); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("bob deleted alice's task: %v", err)
	}

	if err := mine.Delete(ctx, added.ID); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	if len(mine.Items()) != 0 {
		t.Fatalf("deleted task still listed")
	}

	mine.Bind(ctx, "")
	if len(mine.Items()) != 0 || mine.IsLoading() {
		t.Fatalf("signed out collection should be empty and ready")
	}
}
