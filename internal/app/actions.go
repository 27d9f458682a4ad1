package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/chronicle/internal/model"
	"github.com/nhle/chronicle/internal/optimistic"
)

// snoozeFor is how far the snooze key pushes a reminder back.
const snoozeFor = time.Hour

// opDoneMsg is sent when a write settles, confirmed or rolled back.
type opDoneMsg struct {
	what string
	err  error
}

// optimisticCmd runs an optimistic write off the update loop. The preview
// shows up immediately through the workspace watcher; the message reports
// the outcome.
func (m *Model) optimisticCmd(what string, run func(ctx context.Context, onError func(error)) bool) tea.Cmd {
	m.inFlight++
	m.status = ""
	return func() tea.Msg {
		var opErr error
		ok := run(context.Background(), func(err error) { opErr = err })
		if !ok && opErr == nil {
			opErr = fmt.Errorf("not applied")
		}
		return opDoneMsg{what: what, err: opErr}
	}
}

func (m *Model) addTask(t model.Task) tea.Cmd {
	view := m.ws.TaskView
	return m.optimisticCmd("task added", func(ctx context.Context, onError func(error)) bool {
		_, ok := view.Add(ctx, t, optimistic.Options[model.Task]{
			OnError: func(err error, _ model.Task) { onError(err) },
		})
		return ok
	})
}

// addGoal normalizes g first so the preview already has a valid progress
// and status.
func (m *Model) addGoal(g model.Goal) tea.Cmd {
	view := m.ws.GoalView
	g = g.Normalized()
	return m.optimisticCmd("goal added", func(ctx context.Context, onError func(error)) bool {
		_, ok := view.Add(ctx, g, optimistic.Options[model.Goal]{
			OnError: func(err error, _ model.Goal) { onError(err) },
		})
		return ok
	})
}

func (m *Model) addRoutine(r model.Routine) tea.Cmd {
	view := m.ws.RoutineView
	return m.optimisticCmd("routine added", func(ctx context.Context, onError func(error)) bool {
		_, ok := view.Add(ctx, r, optimistic.Options[model.Routine]{
			OnError: func(err error, _ model.Routine) { onError(err) },
		})
		return ok
	})
}

// addResource writes straight through the collection; resources have no
// dashboard panel to preview in.
func (m *Model) addResource(r model.Resource) tea.Cmd {
	resources := m.ws.Resources
	m.inFlight++
	return func() tea.Msg {
		if _, err := resources.Add(context.Background(), r); err != nil {
			return opDoneMsg{what: "note", err: err}
		}
		return opDoneMsg{what: "note saved"}
	}
}

func (m *Model) toggleTask(t model.Task) tea.Cmd {
	view := m.ws.TaskView
	what := "task completed"
	if t.Completed {
		what = "task reopened"
	}
	return m.optimisticCmd(what, func(ctx context.Context, onError func(error)) bool {
		_, ok := view.Update(ctx, t.ID, model.Patch{"completed": !t.Completed}, optimistic.Options[model.Task]{
			OnError: func(err error, _ model.Task) { onError(err) },
		})
		return ok
	})
}

func (m *Model) deleteTask(t model.Task) tea.Cmd {
	view := m.ws.TaskView
	return m.optimisticCmd("task deleted", func(ctx context.Context, onError func(error)) bool {
		return view.Delete(ctx, t.ID, optimistic.Options[model.Task]{
			OnError: func(err error, _ model.Task) { onError(err) },
		})
	})
}

// setGoalProgress sends progress together with its derived status so the
// preview already satisfies the goal invariant.
func (m *Model) setGoalProgress(g model.Goal, progress int) tea.Cmd {
	view := m.ws.GoalView
	next := g.WithProgress(progress)
	if next.Progress == g.Progress {
		return nil
	}
	return m.optimisticCmd(fmt.Sprintf("%s at %d%%", g.Title, next.Progress), func(ctx context.Context, onError func(error)) bool {
		_, ok := view.Update(ctx, g.ID, model.Patch{"progress": next.Progress, "status": next.Status}, optimistic.Options[model.Goal]{
			OnError: func(err error, _ model.Goal) { onError(err) },
		})
		return ok
	})
}

func (m *Model) deleteGoal(g model.Goal) tea.Cmd {
	view := m.ws.GoalView
	return m.optimisticCmd("goal deleted", func(ctx context.Context, onError func(error)) bool {
		return view.Delete(ctx, g.ID, optimistic.Options[model.Goal]{
			OnError: func(err error, _ model.Goal) { onError(err) },
		})
	})
}

// reminderAction applies a local reminder transition.
func (m *Model) reminderAction(what string, apply func() error) tea.Cmd {
	m.inFlight++
	err := apply()
	return func() tea.Msg { return opDoneMsg{what: "reminder " + what, err: err} }
}

func (m *Model) migrateLocalData(clearLocal bool) tea.Cmd {
	ws := m.ws
	m.inFlight++
	return func() tea.Msg {
		status, err := ws.MigrateLocalData(context.Background(), clearLocal)
		if err != nil {
			return opDoneMsg{what: "migration", err: err}
		}
		migrated := 0
		for _, ts := range status {
			migrated += ts.Migrated
		}
		if failed := status.Failed(); failed > 0 {
			return opDoneMsg{what: "migration", err: fmt.Errorf("%d of %d item(s) failed", failed, migrated+failed)}
		}
		return opDoneMsg{what: fmt.Sprintf("migrated %d item(s)", migrated)}
	}
}
