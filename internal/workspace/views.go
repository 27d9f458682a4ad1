package workspace

import (
	"context"
	"fmt"
	"log"
	"slices"

	"github.com/nhle/chronicle/internal/dashboard"
	"github.com/nhle/chronicle/internal/hybrid"
	"github.com/nhle/chronicle/internal/localstore"
	"github.com/nhle/chronicle/internal/migration"
	"github.com/nhle/chronicle/internal/model"
)

// Today computes the dashboard from the optimistic views, so pending edits
// are reflected immediately. Suggestions come from the persisted set.
func (w *Workspace) Today() dashboard.Summary {
	now := w.Now()
	s := dashboard.Summarize(w.TaskView.Items(), w.GoalView.Items(), w.RoutineView.Items(), now)
	s.Suggestions = w.Suggestions()
	return s
}

// Suggestions returns up to dashboard.MaxSuggestions stored suggestions
// that are neither expired nor dismissed, most urgent first.
func (w *Workspace) Suggestions() []model.SmartSuggestion {
	now := w.Now()
	var out []model.SmartSuggestion
	for _, s := range localstore.Get[model.SmartSuggestion](w.Store, localstore.SmartSuggestions) {
		if !s.Dismissed && (s.ExpiresAt.IsZero() || s.ExpiresAt.After(now)) {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b model.SmartSuggestion) int {
		return b.Priority.Rank() - a.Priority.Rank()
	})
	if len(out) > dashboard.MaxSuggestions {
		out = out[:dashboard.MaxSuggestions]
	}
	return out
}

// RefreshSuggestions derives suggestions from the current collections and
// stores the ones not already held, dropping expired entries.
func (w *Workspace) RefreshSuggestions(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("refreshing suggestions: %w", err)
	}
	now := w.Now()

	previous := localstore.Get[model.SmartSuggestion](w.Store, localstore.SmartSuggestions)
	fresh := dashboard.Fresh(previous, dashboard.Suggest(w.Tasks.Items(), w.Goals.Items(), w.Routines.Items(), now), now)

	kept := make([]model.SmartSuggestion, 0, len(previous))
	for _, s := range previous {
		if s.ExpiresAt.IsZero() || s.ExpiresAt.After(now) {
			kept = append(kept, s)
		}
	}
	if len(fresh) == 0 && len(kept) == len(previous) {
		return nil
	}
	localstore.Set(w.Store, localstore.SmartSuggestions, append(fresh, kept...))
	return nil
}

// DismissSuggestion hides suggestion id. The entry stays stored until it
// expires so a refresh does not offer the same suggestion again.
func (w *Workspace) DismissSuggestion(id string) bool {
	stored := localstore.Get[model.SmartSuggestion](w.Store, localstore.SmartSuggestions)
	i := slices.IndexFunc(stored, func(s model.SmartSuggestion) bool { return s.ID == id })
	if i < 0 || stored[i].Dismissed {
		return false
	}
	stored[i].Dismissed = true
	stored[i].UpdatedAt = w.Now().UTC()
	localstore.Set(w.Store, localstore.SmartSuggestions, stored)
	return true
}

// NeedsMigration reports whether the user is signed in against a reachable
// backend while data is still held only on this device.
func (w *Workspace) NeedsMigration() bool {
	return w.Migrator != nil && w.Mode() == hybrid.Remote && w.Migrator.HasLocalData()
}

// MigrateLocalData copies local data to the signed-in user's backend. When
// clearLocal is set and every item was copied, the local copies are removed.
func (w *Workspace) MigrateLocalData(ctx context.Context, clearLocal bool) (migration.Status, error) {
	if w.Migrator == nil {
		return nil, fmt.Errorf("migrating local data: remote backend is not configured")
	}
	status, err := w.Migrator.Migrate(ctx, w.auth.Current().UserID())
	if err != nil {
		return status, err
	}
	if failed := status.Failed(); failed > 0 {
		log.Printf("workspace: %d item(s) failed to migrate; keeping local data", failed)
		return status, nil
	}
	if clearLocal {
		w.Migrator.ClearLocalData()
	}
	w.tasks.refresh(ctx)
	w.goals.refresh(ctx)
	w.routines.refresh(ctx)
	w.achievements.refresh(ctx)
	w.resources.refresh(ctx)
	return status, nil
}
