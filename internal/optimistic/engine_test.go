package optimistic

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nhle/chronicle/internal/collection"
	"github.com/nhle/chronicle/internal/localstore"
	"github.com/nhle/chronicle/internal/model"
	"github.com/nhle/chronicle/internal/remote"
	"github.com/nhle/chronicle/internal/testutil"
)

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestReconcileIsPure(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	auth := []model.Task{{ID: "a", Title: "a"}, {ID: "b", Title: "b"}, {ID: "c", Title: "c"}}
	pending := []PendingUpdate[model.Task]{
		{ID: "d-3", Kind: KindAdd, Payload: model.Task{ID: "d", Title: "d"}, IssuedAt: base.Add(3)},
		{ID: "b-1", Kind: KindUpdate, Payload: model.Task{ID: "b", Title: "b2"}, IssuedAt: base.Add(1)},
		{ID: "c-2", Kind: KindDelete, Payload: model.Task{ID: "c"}, IssuedAt: base.Add(2)},
		{ID: "a-4", Kind: KindAdd, Payload: model.Task{ID: "a", Title: "dup"}, IssuedAt: base.Add(4)},
	}
	authCopy := append([]model.Task(nil), auth...)
	pendingCopy := append([]PendingUpdate[model.Task](nil), pending...)

	first := Reconcile(auth, pending)
	second := Reconcile(auth, pending)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("reconcile is not deterministic: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(auth, authCopy) || !reflect.DeepEqual(pending, pendingCopy) {
		t.Fatalf("reconcile modified its inputs")
	}

	want := []model.Task{{ID: "d", Title: "d"}, {ID: "a", Title: "a"}, {ID: "b", Title: "b2"}}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("Reconcile = %+v, want %+v", first, want)
	}
}

func TestReconcileLastIssuedUpdateWins(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	auth := []model.Goal{{ID: "g", Progress: 0}}
	pending := []PendingUpdate[model.Goal]{
		{ID: "g-2", Kind: KindUpdate, Payload: model.Goal{ID: "g", Progress: 70}, IssuedAt: base.Add(2 * time.Second)},
		{ID: "g-1", Kind: KindUpdate, Payload: model.Goal{ID: "g", Progress: 30}, IssuedAt: base.Add(time.Second)},
	}
	got := Reconcile(auth, pending)
	if got[0].Progress != 70 {
		t.Fatalf("expected later-issued update to win, got progress %d", got[0].Progress)
	}
}

func TestOptimisticAddThenSuccess(t *testing.T) {
	e := NewEngine[model.Task](0)
	item := model.Task{ID: "temp-1", Title: "Buy milk"}
	release := make(chan struct{})

	var succeeded int
	type outcome struct {
		id string
		ok bool
	}
	done := make(chan outcome, 1)
	go func() {
		got, ok := Add(context.Background(), e, item, func(context.Context) (model.Task, error) {
			<-release
			return model.Task{ID: "server-1", Title: "Buy milk"}, nil
		}, Options[model.Task]{OnSuccess: func(model.Task) { succeeded++ }})
		done <- outcome{got.ID, ok}
	}()

	waitFor(t, "pending add", func() bool { return e.IsPending("temp-1") })
	view := e.Reconcile(nil)
	if len(view) != 1 || view[0].Title != "Buy milk" || view[0].ID != "temp-1" {
		t.Fatalf("reconciled view before settle = %+v", view)
	}

	close(release)
	res := <-done
	if !res.ok || res.id != "server-1" {
		t.Fatalf("Add returned (%q, %v)", res.id, res.ok)
	}
	if e.IsPending("temp-1") || len(e.Pending()) != 0 {
		t.Fatalf("pending update still present after success")
	}
	if succeeded != 1 {
		t.Fatalf("OnSuccess called %d times", succeeded)
	}
}

func TestOptimisticDeleteThenFailure(t *testing.T) {
	e := NewEngine[model.Goal](0)
	goal := model.Goal{ID: "g1", Title: "Learn Go"}
	auth := []model.Goal{goal}

	var gotErr error
	var gotItem model.Goal
	calls := 0
	_, ok := Delete(context.Background(), e, goal, func(context.Context) (struct{}, error) {
		if e.IsPending("g1") && len(e.Reconcile(auth)) != 0 {
			t.Errorf("goal still visible while delete pending")
		}
		return struct{}{}, errors.New("network error")
	}, Options[model.Goal]{OnError: func(err error, item model.Goal) {
		calls++
		gotErr, gotItem = err, item
	}})

	if ok {
		t.Fatalf("failed delete reported as applied")
	}
	if calls != 1 || gotErr == nil || gotErr.Error() != "network error" || gotItem.ID != "g1" {
		t.Fatalf("OnError called %d times with (%v, %+v)", calls, gotErr, gotItem)
	}
	if view := e.Reconcile(auth); len(view) != 1 || view[0].ID != "g1" {
		t.Fatalf("goal should reappear after rollback, view = %+v", view)
	}
}

func TestOptimisticUpdateTimesOut(t *testing.T) {
	e := NewEngine[model.Task](0)
	never := make(chan struct{})
	t.Cleanup(func() { close(never) })

	var mu sync.Mutex
	var errs []error
	start := time.Now()
	_, ok := Update(context.Background(), e, model.Task{ID: "t1", Title: "x"}, func(context.Context) (model.Task, error) {
		<-never
		return model.Task{}, nil
	}, Options[model.Task]{
		Timeout: 50 * time.Millisecond,
		OnError: func(err error, _ model.Task) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
	})

	if ok {
		t.Fatalf("timed out update reported as applied")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout took %s", elapsed)
	}
	time.Sleep(10 * time.Millisecond)
	if len(e.Pending()) != 0 {
		t.Fatalf("pending updates remain after timeout")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 || !errors.Is(errs[0], ErrTimeout) {
		t.Fatalf("expected one timeout error, got %v", errs)
	}
}

func TestExactlyOnceRemoval(t *testing.T) {
	outcomes := []string{"success", "failure", "timeout"}
	for _, outcome := range outcomes {
		t.Run(outcome, func(t *testing.T) {
			e := NewEngine[model.Task](30 * time.Millisecond)

			removals := 0
			stop := e.Watch(func() {
				if len(e.Pending()) == 0 {
					removals++
				}
			})
			defer stop()

			var callbacks int
			opts := Options[model.Task]{
				OnSuccess: func(model.Task) { callbacks++ },
				OnError:   func(error, model.Task) { callbacks++ },
			}
			_, _ = Update(context.Background(), e, model.Task{ID: "t"}, func(context.Context) (int, error) {
				switch outcome {
				case "failure":
					return 0, errors.New("boom")
				case "timeout":
					time.Sleep(80 * time.Millisecond)
				}
				return 1, nil
			}, opts)

			// Let a late result arrive after a timeout.
			time.Sleep(100 * time.Millisecond)
			if removals != 1 {
				t.Fatalf("pending entry removed %d times", removals)
			}
			if callbacks != 1 {
				t.Fatalf("%d callbacks ran", callbacks)
			}
			if e.IsPending("t") {
				t.Fatalf("entry still pending after settlement")
			}
		})
	}
}

func TestClearPendingSkipsCallbacks(t *testing.T) {
	e := NewEngine[model.Task](0)
	block := make(chan struct{})
	defer close(block)

	callbacks := 0
	done := make(chan bool, 1)
	go func() {
		_, ok := Add(context.Background(), e, model.Task{ID: "x"}, func(context.Context) (int, error) {
			<-block
			return 1, nil
		}, Options[model.Task]{
			Timeout:   time.Second,
			OnSuccess: func(model.Task) { callbacks++ },
			OnError:   func(error, model.Task) { callbacks++ },
		})
		done <- ok
	}()

	waitFor(t, "pending add", func() bool { return e.IsPending("x") })
	e.ClearPending()

	if ok := <-done; ok {
		t.Fatalf("cleared add reported as applied")
	}
	time.Sleep(40 * time.Millisecond)
	if callbacks != 0 {
		t.Fatalf("%d callbacks ran after ClearPending", callbacks)
	}
}

func TestContextCancellationRollsBack(t *testing.T) {
	e := NewEngine[model.Task](0)
	ctx, cancel := context.WithCancel(context.Background())

	var gotErr error
	go func() {
		for !e.IsPending("c") {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	_, ok := Add(ctx, e, model.Task{ID: "c"}, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		time.Sleep(5 * time.Millisecond)
		return 0, ctx.Err()
	}, Options[model.Task]{OnError: func(err error, _ model.Task) { gotErr = err }})

	if ok || !errors.Is(gotErr, context.Canceled) {
		t.Fatalf("expected cancellation rollback, got ok=%v err=%v", ok, gotErr)
	}
}

func TestPendingKeysAreUnique(t *testing.T) {
	e := NewEngine[model.Task](0)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		ent := e.register(KindUpdate, model.Task{ID: "same"})
		if seen[ent.update.ID] {
			t.Fatalf("duplicate pending key %s", ent.update.ID)
		}
		seen[ent.update.ID] = true
	}
	want := fmt.Sprintf("same-%d", fixed.UnixNano())
	if !seen[want] {
		t.Fatalf("expected key %s among %v", want, seen)
	}
}

func TestOverlayAgainstLocalCollection(t *testing.T) {
	store := localstore.New(localstore.NewMemoryMedium())
	tasks := collection.NewLocal[model.Task](store, localstore.Tasks)
	overlay := NewOverlay[model.Task](tasks, NewEngine[model.Task](0))
	ctx := context.Background()

	added, ok := overlay.Add(ctx, model.Task{Title: "Buy milk"}, Options[model.Task]{})
	if !ok || added.ID == "" {
		t.Fatalf("Add = (%+v, %v)", added, ok)
	}
	if _, ok := overlay.Update(ctx, added.ID, model.Patch{"completed": true}, Options[model.Task]{}); !ok {
		t.Fatalf("Update failed")
	}
	items := overlay.Items()
	if len(items) != 1 || !items[0].Completed {
		t.Fatalf("items after update = %+v", items)
	}

	var missingErr error
	overlay.Delete(ctx, "missing", Options[model.Task]{OnError: func(err error, _ model.Task) { missingErr = err }})
	if !errors.Is(missingErr, collection.ErrNotFound) {
		t.Fatalf("deleting a missing id: %v", missingErr)
	}

	if !overlay.Delete(ctx, added.ID, Options[model.Task]{}) {
		t.Fatalf("Delete failed")
	}
	if n := store.Len(localstore.Tasks); n != 0 {
		t.Fatalf("stored tasks = %d after delete", n)
	}
}

func TestOverlayAddAgainstRemoteShowsOneCopy(t *testing.T) {
	ctx := context.Background()
	tasks := collection.NewRemote(remote.NewTable[model.Task](testutil.NewBackend(t), remote.Tasks))
	defer tasks.Close()
	tasks.Bind(ctx, "alice")
	overlay := NewOverlay[model.Task](tasks, NewEngine[model.Task](0))

	var mu sync.Mutex
	most := 0
	stop := overlay.Watch(func() {
		n := 0
		for _, task := range overlay.Items() {
			if task.Title == "Buy milk" {
				n++
			}
		}
		mu.Lock()
		most = max(most, n)
		mu.Unlock()
	})
	defer stop()

	added, ok := overlay.Add(ctx, model.Task{Title: "Buy milk"}, Options[model.Task]{})
	if !ok {
		t.Fatalf("Add failed")
	}

	mu.Lock()
	defer mu.Unlock()
	if most != 1 {
		t.Fatalf("watcher saw %d copies of the task during add", most)
	}
	items := overlay.Items()
	if len(items) != 1 || items[0].ID != added.ID {
		t.Fatalf("items after add = %+v, want the optimistic id %s", items, added.ID)
	}
}
