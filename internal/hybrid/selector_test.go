package hybrid

import (
	"context"
	"testing"

	"github.com/nhle/chronicle/internal/collection"
	"github.com/nhle/chronicle/internal/localstore"
	"github.com/nhle/chronicle/internal/model"
	"github.com/nhle/chronicle/internal/remote"
	"github.com/nhle/chronicle/internal/testutil"
)

func TestResolveMode(t *testing.T) {
	tests := []struct {
		configured, reachable, authed bool
		want                          StorageMode
	}{
		{false, false, false, Local},
		{true, false, false, Local},
		{true, true, false, Local},
		{true, false, true, Local},
		{false, true, true, Local},
		{true, true, true, Remote},
	}
	for _, tt := range tests {
		if got := ResolveMode(tt.configured, tt.reachable, tt.authed); got != tt.want {
			t.Errorf("ResolveMode(%v, %v, %v) = %s, want %s",
				tt.configured, tt.reachable, tt.authed, got, tt.want)
		}
	}
}

func TestSelectorSwitchesOnSignIn(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewLocalStore(t)
	backend := testutil.NewBackend(t)

	local := collection.NewLocal[model.Task](store, localstore.Tasks)
	table := remote.NewTable[model.Task](backend, remote.Tasks)
	rem := collection.NewRemote(table)

	var avail Availability
	avail.Set(true)
	userID := ""
	sel := NewSelector[model.Task](local, rem, func() StorageMode {
		return ResolveMode(true, avail.Reachable(), userID != "")
	})

	if sel.Mode() != Local {
		t.Fatalf("signed out selector should be local")
	}
	if _, err := sel.Add(ctx, model.Task{Title: "offline"}); err != nil {
		t.Fatalf("adding while signed out: %v", err)
	}
	if n := store.Len(localstore.Tasks); n != 1 {
		t.Fatalf("local tasks = %d, want 1", n)
	}

	userID = "alice"
	rem.Bind(ctx, userID)
	if sel.Mode() != Remote {
		t.Fatalf("signed in selector should be remote")
	}
	if len(sel.Items()) != 0 {
		t.Fatalf("remote collection should not contain the local task")
	}
	if _, err := sel.Add(ctx, model.Task{Title: "online"}); err != nil {
		t.Fatalf("adding while signed in: %v", err)
	}

	if n := store.Len(localstore.Tasks); n != 1 {
		t.Fatalf("local tasks after sign-in = %d, want 1", n)
	}
	stored, err := table.FetchAll(ctx, "alice")
	if err != nil {
		t.Fatalf("fetching remote: %v", err)
	}
	if len(stored) != 1 || stored[0].Title != "online" {
		t.Fatalf("remote tasks = %+v", stored)
	}

	avail.Set(false)
	if sel.Mode() != Local {
		t.Fatalf("unreachable backend should fall back to local")
	}
	items := sel.Items()
	if len(items) != 1 || items[0].Title != "offline" {
		t.Fatalf("local items = %+v", items)
	}
}

func TestSelectorWithoutRemoteIsLocal(t *testing.T) {
	local := collection.NewLocal[model.Goal](localstore.New(localstore.NewMemoryMedium()), localstore.Goals)
	sel := NewSelector[model.Goal](local, nil, func() StorageMode { return Remote })
	if sel.Mode() != Local {
		t.Fatalf("selector without remote must be local")
	}

	calls := 0
	stop := sel.Watch(func() { calls++ })
	defer stop()
	if _, err := sel.Add(context.Background(), model.Goal{Title: "g"}); err != nil {
		t.Fatalf("adding: %v", err)
	}
	if calls == 0 {
		t.Fatalf("watch not notified")
	}
}
