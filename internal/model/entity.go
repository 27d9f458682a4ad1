package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityType names one of the persisted entity collections.
type EntityType string

const (
	EntityTask        EntityType = "task"
	EntityGoal        EntityType = "goal"
	EntityRoutine     EntityType = "routine"
	EntityAchievement EntityType = "achievement"
	EntityResource    EntityType = "resource"
)

// Entity is the common interface of every record held in a collection.
// Ids are client-generated UUIDs and unique within their collection.
type Entity interface {
	GetID() string
	GetTitle() string
}

func (t Task) GetID() string           { return t.ID }
func (t Task) GetTitle() string        { return t.Title }
func (g Goal) GetID() string           { return g.ID }
func (g Goal) GetTitle() string        { return g.Title }
func (r Routine) GetID() string        { return r.ID }
func (r Routine) GetTitle() string     { return r.Title }
func (a Achievement) GetID() string    { return a.ID }
func (a Achievement) GetTitle() string { return a.Title }
func (r Resource) GetID() string       { return r.ID }
func (r Resource) GetTitle() string    { return r.Title }
func (r Reminder) GetID() string       { return r.ID }
func (r Reminder) GetTitle() string    { return r.Title }

// Patch is a partial record keyed by JSON field name. Applying a patch is a
// shallow merge: every key present replaces the field wholesale.
type Patch map[string]any

// Sanitized returns a copy of p that can no longer change the identity or
// creation time of a record, with updatedAt refreshed to now.
func (p Patch) Sanitized(now time.Time) Patch {
	out := make(Patch, len(p)+1)
	for k, v := range p {
		if k == "id" || k == "createdAt" {
			continue
		}
		out[k] = v
	}
	out["updatedAt"] = now
	return out
}

// ApplyPatch shallow-merges patch onto item and returns the result.
func ApplyPatch[T any](item T, patch Patch) (T, error) {
	var zero T

	raw, err := json.Marshal(item)
	if err != nil {
		return zero, fmt.Errorf("marshaling record: %w", err)
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return zero, fmt.Errorf("decoding record fields: %w", err)
	}

	for k, v := range patch {
		b, err := json.Marshal(v)
		if err != nil {
			return zero, fmt.Errorf("marshaling patch field %q: %w", k, err)
		}
		fields[k] = b
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return zero, fmt.Errorf("marshaling merged record: %w", err)
	}

	var out T
	if err := json.Unmarshal(merged, &out); err != nil {
		return zero, fmt.Errorf("decoding merged record: %w", err)
	}
	return out, nil
}

// Stamp sets the identity and timestamps of a record.
func Stamp[T any](item T, id string, createdAt, updatedAt time.Time) (T, error) {
	return ApplyPatch(item, Patch{
		"id":        id,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
	})
}

// PatchOf converts a full record into a Patch carrying every field.
func PatchOf[T any](item T) (Patch, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("marshaling record: %w", err)
	}
	var p Patch
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return p, nil
}
