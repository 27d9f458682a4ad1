// Package workspace assembles the stores, collections, optimistic engines
// and background jobs of one running Chronicle instance.
package workspace

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nhle/chronicle/internal/auth"
	"github.com/nhle/chronicle/internal/collection"
	"github.com/nhle/chronicle/internal/hybrid"
	"github.com/nhle/chronicle/internal/localstore"
	"github.com/nhle/chronicle/internal/migration"
	"github.com/nhle/chronicle/internal/model"
	"github.com/nhle/chronicle/internal/optimistic"
	"github.com/nhle/chronicle/internal/reminder"
	"github.com/nhle/chronicle/internal/remote"
	"github.com/nhle/chronicle/internal/scheduler"
)

// Job names registered on the scheduler.
const (
	JobBackendHealth = "backend-health"
	JobReminders     = "reminders"
	JobSuggestions   = "suggestions"
)

// bindTimeout bounds the fetch that follows a sign-in.
const bindTimeout = 30 * time.Second

// Options configures Open.
type Options struct {
	Config *model.AppConfig
	Auth   auth.Provider

	// Medium overrides the SQLite file named by Config.Local.Path.
	Medium localstore.Medium

	// Clock overrides the wall clock for the scheduler and derived views.
	Clock scheduler.Clock
}

// Workspace is the composition root. Consumers read and write through the
// typed collections and the optimistic views; everything else is wiring.
type Workspace struct {
	cfg    *model.AppConfig
	auth   auth.Provider
	clock  scheduler.Clock
	closer func() error

	Store   *localstore.Store
	Backend *remote.Backend

	availability hybrid.Availability

	tasks        *entities[model.Task]
	goals        *entities[model.Goal]
	routines     *entities[model.Routine]
	achievements *entities[model.Achievement]
	resources    *entities[model.Resource]

	Tasks        *collection.Tasks
	Goals        *collection.Goals
	Routines     *collection.Routines
	Achievements *collection.Achievements
	Resources    *collection.Resources

	// Optimistic views over the typed collections.
	TaskView    *optimistic.Overlay[model.Task]
	GoalView    *optimistic.Overlay[model.Goal]
	RoutineView *optimistic.Overlay[model.Routine]

	Reminders *reminder.Service
	Migrator  *migration.Migrator
	Scheduler *scheduler.Scheduler

	mu       sync.Mutex
	mode     hybrid.StorageMode
	watchers map[int]func()
	nextW    int
	stops    []func()
}

// Open builds a workspace. The backend, when configured, is probed once so
// the first mode is accurate; an unreachable backend is not an error.
func Open(ctx context.Context, opts Options) (*Workspace, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("opening workspace: missing config")
	}
	provider := opts.Auth
	if provider == nil {
		provider = auth.NewStatic(nil)
	}

	w := &Workspace{
		cfg:      cfg,
		auth:     provider,
		clock:    opts.Clock,
		closer:   func() error { return nil },
		watchers: make(map[int]func()),
	}
	if w.clock == nil {
		w.clock = scheduler.SystemClock
	}

	medium := opts.Medium
	if medium == nil {
		m, err := openMedium(cfg.Local.Path)
		if err != nil {
			// The local store degrades to a no-op rather than failing startup.
			log.Printf("workspace: local store unavailable: %v", err)
		} else {
			medium = m
			w.closer = m.Close
		}
	}
	w.Store = localstore.New(medium)

	if cfg.Remote.Configured() {
		b, err := remote.Open(cfg.Remote)
		if err != nil {
			w.closer()
			return nil, fmt.Errorf("opening workspace: %w", err)
		}
		w.Backend = b
		w.checkBackend(ctx)
	}

	w.tasks = newEntities[model.Task](w.Store, localstore.Tasks, w.Backend, remote.Tasks, w.Mode)
	w.goals = newEntities[model.Goal](w.Store, localstore.Goals, w.Backend, remote.Goals, w.Mode)
	w.routines = newEntities[model.Routine](w.Store, localstore.Routines, w.Backend, remote.Routines, w.Mode)
	w.achievements = newEntities[model.Achievement](w.Store, localstore.Achievements, w.Backend, remote.Achievements, w.Mode)
	w.resources = newEntities[model.Resource](w.Store, localstore.Resources, w.Backend, remote.Resources, w.Mode)

	w.Tasks = collection.NewTasks(w.tasks.selector)
	w.Goals = collection.NewGoals(w.goals.selector)
	w.Routines = collection.NewRoutines(w.routines.selector)
	w.Achievements = collection.NewAchievements(w.achievements.selector)
	w.Resources = collection.NewResources(w.resources.selector)

	timeout := cfg.Optimistic.Timeout()
	w.TaskView = optimistic.NewOverlay[model.Task](w.Tasks, optimistic.NewEngine[model.Task](timeout))
	w.GoalView = optimistic.NewOverlay[model.Goal](w.Goals, optimistic.NewEngine[model.Goal](timeout))
	w.RoutineView = optimistic.NewOverlay[model.Routine](w.Routines, optimistic.NewEngine[model.Routine](timeout))

	w.Reminders = reminder.NewService(w.Store)
	w.Reminders.SetClock(w.clock.Now)
	if w.Backend != nil {
		w.Migrator = migration.New(w.Store, migration.TargetsFor(w.Backend))
	}

	w.Scheduler = scheduler.New(w.clock)
	if w.Backend != nil {
		w.Scheduler.Register(JobBackendHealth, time.Duration(cfg.Remote.HealthIntervalSec)*time.Second, w.CheckBackend)
	}
	w.Scheduler.Register(JobReminders, cfg.Reminders.Interval(), func(ctx context.Context) error {
		_, err := w.Reminders.Refresh(ctx)
		return err
	})
	w.Scheduler.Register(JobSuggestions, cfg.Suggestions.Interval(), w.RefreshSuggestions)

	for _, watch := range []func(func()) func(){
		w.TaskView.Watch,
		w.GoalView.Watch,
		w.RoutineView.Watch,
		w.Achievements.Watch,
		w.Resources.Watch,
	} {
		w.stops = append(w.stops, watch(w.notify))
	}
	w.stops = append(w.stops,
		w.Store.Watch(localstore.Reminders, w.notify),
		w.Store.Watch(localstore.SmartSuggestions, w.notify),
		provider.Subscribe(w.onAuth),
	)

	w.mode = w.Mode()
	w.bindAll(ctx, provider.Current().UserID())
	return w, nil
}

func openMedium(path string) (*localstore.SQLiteMedium, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	return localstore.NewSQLiteMedium(path)
}

// Close stops background work and releases the stores.
func (w *Workspace) Close() error {
	w.Scheduler.Stop()

	w.mu.Lock()
	stops := w.stops
	w.stops = nil
	w.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
	for _, e := range []interface{ close() }{w.tasks, w.goals, w.routines, w.achievements, w.resources} {
		e.close()
	}

	var firstErr error
	if w.Backend != nil {
		if err := w.Backend.Close(); err != nil {
			firstErr = err
		}
	}
	if err := w.closer(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing local store: %w", err)
	}
	return firstErr
}

// Mode reports which backing the collections currently use.
func (w *Workspace) Mode() hybrid.StorageMode {
	return hybrid.ResolveMode(w.Backend != nil, w.availability.Reachable(), w.auth.Current().User != nil)
}

// Auth returns the authentication provider.
func (w *Workspace) Auth() auth.Provider {
	return w.auth
}

// Now returns the workspace clock's time.
func (w *Workspace) Now() time.Time {
	return w.clock.Now()
}

// Watch registers fn to run after any collection, reminder, suggestion or
// mode change. The returned func unregisters it.
func (w *Workspace) Watch(fn func()) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextW
	w.nextW++
	w.watchers[id] = fn
	return func() {
		w.mu.Lock()
		delete(w.watchers, id)
		w.mu.Unlock()
	}
}

func (w *Workspace) notify() {
	w.mu.Lock()
	fns := make([]func(), 0, len(w.watchers))
	for _, fn := range w.watchers {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// CheckBackend probes the backend and records whether it is reachable.
func (w *Workspace) CheckBackend(ctx context.Context) error {
	if w.Backend == nil {
		return nil
	}
	err := w.checkBackend(ctx)
	w.modeMaybeChanged(ctx)
	return err
}

func (w *Workspace) checkBackend(ctx context.Context) error {
	err := w.Backend.Ping(ctx)
	w.availability.Set(err == nil)
	if err != nil {
		log.Printf("workspace: backend unreachable: %v", err)
	}
	return err
}

func (w *Workspace) onAuth(sig auth.Signal) {
	if sig.Loading {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), bindTimeout)
	defer cancel()
	w.bindAll(ctx, sig.UserID())
	w.modeMaybeChanged(ctx)
}

func (w *Workspace) bindAll(ctx context.Context, userID string) {
	w.tasks.bind(ctx, userID)
	w.goals.bind(ctx, userID)
	w.routines.bind(ctx, userID)
	w.achievements.bind(ctx, userID)
	w.resources.bind(ctx, userID)
}

// modeMaybeChanged drops optimistic state that belongs to the previous
// backing and refetches when the backend comes back.
func (w *Workspace) modeMaybeChanged(ctx context.Context) {
	mode := w.Mode()
	w.mu.Lock()
	prev := w.mode
	w.mode = mode
	w.mu.Unlock()
	if mode == prev {
		return
	}

	log.Printf("workspace: storage mode %s -> %s", prev, mode)
	w.TaskView.Engine().ClearPending()
	w.GoalView.Engine().ClearPending()
	w.RoutineView.Engine().ClearPending()

	if mode == hybrid.Remote {
		w.tasks.refresh(ctx)
		w.goals.refresh(ctx)
		w.routines.refresh(ctx)
		w.achievements.refresh(ctx)
		w.resources.refresh(ctx)
	}
	w.notify()
}
