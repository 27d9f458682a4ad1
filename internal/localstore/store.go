package localstore

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Namespace names one collection held in the local store.
type Namespace string

const (
	Achievements        Namespace = "achievements"
	Resources           Namespace = "resources"
	Goals               Namespace = "goals"
	Tasks               Namespace = "tasks"
	Routines            Namespace = "routines"
	Reminders           Namespace = "reminders"
	ReminderPreferences Namespace = "reminderPreferences"
	SmartSuggestions    Namespace = "smartSuggestions"
)

// SnapshotVersion is written into every export.
const SnapshotVersion = "1.0"

const keyPrefix = "chronicle_"

// Namespaces lists every namespace in snapshot order.
func Namespaces() []Namespace {
	return []Namespace{
		Achievements, Resources, Goals, Tasks, Routines,
		Reminders, ReminderPreferences, SmartSuggestions,
	}
}

func (ns Namespace) key() string {
	return keyPrefix + string(ns)
}

// Store persists ordered collections of records, one JSON array per
// namespace. A Store with a nil Medium is valid: every operation is a no-op
// and reads return empty collections. Failures are logged, never returned.
type Store struct {
	medium Medium
	now    func() time.Time

	mu        sync.Mutex
	watchers  map[Namespace]map[int]func()
	nextWatch int
}

// New creates a Store over medium, which may be nil.
func New(medium Medium) *Store {
	return &Store{
		medium:   medium,
		now:      time.Now,
		watchers: make(map[Namespace]map[int]func()),
	}
}

// Available reports whether a persistent medium backs the store.
func (s *Store) Available() bool {
	return s != nil && s.medium != nil
}

// Get returns the collection stored under ns. An absent or corrupt value
// yields an empty collection.
func Get[T any](s *Store, ns Namespace) []T {
	out := make([]T, 0)
	raw, ok := s.read(ns)
	if !ok {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Printf("localstore: discarding unreadable %s: %v", ns, err)
		return make([]T, 0)
	}
	return out
}

// Set replaces the collection stored under ns.
func Set[T any](s *Store, ns Namespace, items []T) {
	if !s.Available() {
		return
	}
	if items == nil {
		items = make([]T, 0)
	}
	raw, err := json.Marshal(items)
	if err != nil {
		log.Printf("localstore: encoding %s: %v", ns, err)
		return
	}
	if s.write(ns, string(raw)) {
		s.notify(ns)
	}
}

// Remove deletes the collection stored under ns.
func (s *Store) Remove(ns Namespace) {
	if !s.Available() {
		return
	}
	if err := s.medium.Delete(ns.key()); err != nil {
		log.Printf("localstore: removing %s: %v", ns, err)
		return
	}
	s.notify(ns)
}

// Clear removes every known namespace.
func (s *Store) Clear() {
	for _, ns := range Namespaces() {
		s.Remove(ns)
	}
}

// Len reports how many records are stored under ns without decoding them
// into a concrete type.
func (s *Store) Len(ns Namespace) int {
	return len(Get[json.RawMessage](s, ns))
}

// Watch registers fn to run after ns is written, removed, or imported.
// The returned function unregisters it.
func (s *Store) Watch(ns Namespace, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextWatch
	s.nextWatch++
	if s.watchers[ns] == nil {
		s.watchers[ns] = make(map[int]func())
	}
	s.watchers[ns][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers[ns], id)
	}
}

func (s *Store) notify(ns Namespace) {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.watchers[ns]))
	for _, fn := range s.watchers[ns] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (s *Store) read(ns Namespace) (string, bool) {
	if !s.Available() {
		return "", false
	}
	raw, ok, err := s.medium.Read(ns.key())
	if err != nil {
		log.Printf("localstore: reading %s: %v", ns, err)
		return "", false
	}
	return raw, ok
}

func (s *Store) write(ns Namespace, raw string) bool {
	if err := s.medium.Write(ns.key(), raw); err != nil {
		log.Printf("localstore: writing %s: %v", ns, err)
		return false
	}
	return true
}
