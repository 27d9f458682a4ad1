package localstore

import (
	"bytes"
	"encoding/json"
	"log"
	"time"
)

// Snapshot is the export document: one array per namespace plus metadata.
type Snapshot struct {
	Achievements        json.RawMessage `json:"achievements"`
	Resources           json.RawMessage `json:"resources"`
	Goals               json.RawMessage `json:"goals"`
	Tasks               json.RawMessage `json:"tasks"`
	Routines            json.RawMessage `json:"routines"`
	Reminders           json.RawMessage `json:"reminders"`
	ReminderPreferences json.RawMessage `json:"reminderPreferences"`
	SmartSuggestions    json.RawMessage `json:"smartSuggestions"`
	Version             string          `json:"version"`
	ExportedAt          time.Time       `json:"exportedAt"`
}

func (snap *Snapshot) field(ns Namespace) *json.RawMessage {
	switch ns {
	case Achievements:
		return &snap.Achievements
	case Resources:
		return &snap.Resources
	case Goals:
		return &snap.Goals
	case Tasks:
		return &snap.Tasks
	case Routines:
		return &snap.Routines
	case Reminders:
		return &snap.Reminders
	case ReminderPreferences:
		return &snap.ReminderPreferences
	case SmartSuggestions:
		return &snap.SmartSuggestions
	default:
		return nil
	}
}

// ExportAll serialises every namespace into a single JSON document.
func (s *Store) ExportAll() []byte {
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.now().UTC(),
	}
	for _, ns := range Namespaces() {
		items, err := json.Marshal(Get[json.RawMessage](s, ns))
		if err != nil {
			items = []byte("[]")
		}
		*snap.field(ns) = items
	}

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Printf("localstore: encoding snapshot: %v", err)
		return nil
	}
	return out
}

// ImportAll applies an exported document. The document must be a JSON
// object and every namespace field it carries must be an array; otherwise
// nothing is written and false is returned. Absent fields leave their
// namespace untouched.
func (s *Store) ImportAll(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil || doc == nil {
		return false
	}

	pending := make(map[Namespace]json.RawMessage)
	for _, ns := range Namespaces() {
		raw, ok := doc[string(ns)]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil || items == nil {
			log.Printf("localstore: rejecting import, %s is not an array", ns)
			return false
		}
		compact := new(bytes.Buffer)
		if err := json.Compact(compact, raw); err != nil {
			return false
		}
		pending[ns] = compact.Bytes()
	}

	if !s.Available() {
		return true
	}
	for _, ns := range Namespaces() {
		raw, ok := pending[ns]
		if !ok {
			continue
		}
		if s.write(ns, string(raw)) {
			s.notify(ns)
		}
	}
	return true
}
