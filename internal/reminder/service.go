package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/nhle/chronicle/internal/localstore"
	"github.com/nhle/chronicle/internal/model"
)

// ErrNotFound is returned when no reminder has the given id.
var ErrNotFound = errors.New("reminder: not found")

// retention is how long acknowledged and dismissed reminders are kept.
const retention = 30 * 24 * time.Hour

// Service keeps reminders and their preferences in the local store. It
// reads goals, tasks and routines straight from the local store rather
// than through the storage selector.
type Service struct {
	store *localstore.Store
	now   func() time.Time
	mu    sync.Mutex
}

func NewService(store *localstore.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// SetClock replaces the time source used for generation and retention.
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Preferences returns the stored preferences, or the defaults.
func (s *Service) Preferences() model.ReminderPreferences {
	prefs := localstore.Get[model.ReminderPreferences](s.store, localstore.ReminderPreferences)
	if len(prefs) == 0 {
		return model.DefaultReminderPreferences()
	}
	return prefs[0]
}

// SavePreferences replaces the stored preferences.
func (s *Service) SavePreferences(p model.ReminderPreferences) {
	now := s.now().UTC()
	if p.ID == "" {
		p.ID = "default"
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	localstore.Set(s.store, localstore.ReminderPreferences, []model.ReminderPreferences{p})
}

// All returns every stored reminder, newest first.
func (s *Service) All() []model.Reminder {
	return localstore.Get[model.Reminder](s.store, localstore.Reminders)
}

// Due returns pending reminders scheduled at or before now, most urgent
// first.
func (s *Service) Due(now time.Time) []model.Reminder {
	var out []model.Reminder
	for _, r := range s.All() {
		if r.Status == model.ReminderPending && !r.ScheduledFor.After(now) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Reminder) int {
		return b.Priority.Rank() - a.Priority.Rank()
	})
	return out
}

// Refresh wakes expired snoozes, drops old settled reminders and stores
// newly generated ones. It returns the reminders it created.
func (s *Service) Refresh(ctx context.Context) ([]model.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("refreshing reminders: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing := s.All()
	kept := make([]model.Reminder, 0, len(existing))
	for _, r := range existing {
		switch {
		case r.Status == model.ReminderSnoozed && r.SnoozedUntil != nil && !r.SnoozedUntil.After(now):
			r.Status = model.ReminderPending
			r.ScheduledFor = *r.SnoozedUntil
			r.SnoozedUntil = nil
			r.UpdatedAt = now.UTC()
		case !r.Active() && now.Sub(r.UpdatedAt) > retention:
			continue
		}
		kept = append(kept, r)
	}

	created := Generate(Input{
		Goals:       localstore.Get[model.Goal](s.store, localstore.Goals),
		Tasks:       localstore.Get[model.Task](s.store, localstore.Tasks),
		Routines:    localstore.Get[model.Routine](s.store, localstore.Routines),
		Existing:    kept,
		Preferences: s.Preferences(),
	}, now)
	if len(created) > 0 {
		log.Printf("reminder: generated %d reminder(s)", len(created))
	}

	localstore.Set(s.store, localstore.Reminders, append(slices.Clone(created), kept...))
	return created, nil
}

// Acknowledge marks reminder id as seen.
func (s *Service) Acknowledge(id string) error {
	return s.transition(id, func(r *model.Reminder) {
		r.Status = model.ReminderAcknowledged
		r.SnoozedUntil = nil
	})
}

// Snooze hides reminder id until the given time.
func (s *Service) Snooze(id string, until time.Time) error {
	return s.transition(id, func(r *model.Reminder) {
		r.Status = model.ReminderSnoozed
		r.SnoozedUntil = &until
	})
}

// Dismiss closes reminder id. No new reminder is generated for the same
// entity and type until the dismissed one ages out of retention.
func (s *Service) Dismiss(id string) error {
	return s.transition(id, func(r *model.Reminder) {
		r.Status = model.ReminderDismissed
		r.SnoozedUntil = nil
	})
}

func (s *Service) transition(id string, apply func(*model.Reminder)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders := s.All()
	i := slices.IndexFunc(reminders, func(r model.Reminder) bool { return r.ID == id })
	if i < 0 {
		return fmt.Errorf("updating reminder %s: %w", id, ErrNotFound)
	}
	apply(&reminders[i])
	reminders[i].UpdatedAt = s.now().UTC()
	localstore.Set(s.store, localstore.Reminders, reminders)
	return nil
}
