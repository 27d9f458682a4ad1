package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/chronicle/internal/model"
)

// Table is the typed view of one backend collection. Every operation is
// scoped by user id; a row owned by another user is never visible.
type Table[T any] struct {
	backend    *Backend
	collection Collection
	now        func() time.Time
}

// NewTable returns the table for collection c holding records of type T.
func NewTable[T any](b *Backend, c Collection) *Table[T] {
	return &Table[T]{backend: b, collection: c, now: time.Now}
}

// Collection returns the collection this table reads and writes.
func (t *Table[T]) Collection() Collection {
	return t.collection
}

// FetchAll returns every record owned by userID, newest first.
func (t *Table[T]) FetchAll(ctx context.Context, userID string) ([]T, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	if err := t.backend.ensureSchema(ctx); err != nil {
		return nil, err
	}

	db := t.backend.db
	var rows []string
	query := db.Rebind(fmt.Sprintf(
		"SELECT data FROM %s WHERE user_id = ? ORDER BY created_at DESC, id", t.collection))
	if err := db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", t.collection, err)
	}

	items := make([]T, 0, len(rows))
	for _, raw := range rows {
		var item T
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("decoding %s row: %w", t.collection, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Insert stores record for userID and returns the canonical record. A
// client-generated id is kept so optimistic previews match the stored row;
// an empty id gets a fresh one. Timestamps are always assigned here.
func (t *Table[T]) Insert(ctx context.Context, userID string, record T) (T, error) {
	var zero T
	if userID == "" {
		return zero, ErrNoUser
	}
	if err := t.backend.ensureSchema(ctx); err != nil {
		return zero, err
	}

	id := uuid.New().String()
	if e, ok := any(record).(model.Entity); ok && e.GetID() != "" {
		id = e.GetID()
	}
	now := t.now().UTC()
	stored, err := model.Stamp(record, id, now, now)
	if err != nil {
		return zero, fmt.Errorf("stamping %s record: %w", t.collection, err)
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return zero, fmt.Errorf("encoding %s record: %w", t.collection, err)
	}
	if _, err := recordID(raw); err != nil {
		return zero, err
	}

	db := t.backend.db
	_, err = db.ExecContext(ctx, db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (id, user_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`, t.collection)),
		id, userID, string(raw), now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return zero, fmt.Errorf("inserting into %s: %w", t.collection, err)
	}

	t.publish(ctx, userID)
	return stored, nil
}

// Update shallow-merges patch into the record matching both id and userID
// and returns the canonical result. The id and creation time never change.
func (t *Table[T]) Update(ctx context.Context, id, userID string, patch model.Patch) (T, error) {
	var zero T
	if userID == "" {
		return zero, ErrNoUser
	}
	if err := t.backend.ensureSchema(ctx); err != nil {
		return zero, err
	}

	db := t.backend.db
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return zero, fmt.Errorf("beginning %s update: %w", t.collection, err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.GetContext(ctx, &raw, tx.Rebind(fmt.Sprintf(
		"SELECT data FROM %s WHERE id = ? AND user_id = ?", t.collection)), id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, fmt.Errorf("updating %s %s: %w", t.collection, id, ErrNotFound)
	}
	if err != nil {
		return zero, fmt.Errorf("loading %s %s: %w", t.collection, id, err)
	}

	var current T
	if err := json.Unmarshal([]byte(raw), &current); err != nil {
		return zero, fmt.Errorf("decoding %s %s: %w", t.collection, id, err)
	}

	now := t.now().UTC()
	updated, err := model.ApplyPatch(current, patch.Sanitized(now))
	if err != nil {
		return zero, fmt.Errorf("patching %s %s: %w", t.collection, id, err)
	}
	out, err := json.Marshal(updated)
	if err != nil {
		return zero, fmt.Errorf("encoding %s %s: %w", t.collection, id, err)
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(fmt.Sprintf(
		"UPDATE %s SET data = ?, updated_at = ? WHERE id = ? AND user_id = ?", t.collection)),
		string(out), now.UnixNano(), id, userID,
	)
	if err != nil {
		return zero, fmt.Errorf("updating %s %s: %w", t.collection, id, err)
	}
	if err := checkRowsAffected(result); err != nil {
		return zero, fmt.Errorf("updating %s %s: %w", t.collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return zero, fmt.Errorf("committing %s update: %w", t.collection, err)
	}

	t.publish(ctx, userID)
	return updated, nil
}

// Remove deletes the record matching both id and userID.
func (t *Table[T]) Remove(ctx context.Context, id, userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	if err := t.backend.ensureSchema(ctx); err != nil {
		return err
	}

	db := t.backend.db
	result, err := db.ExecContext(ctx, db.Rebind(fmt.Sprintf(
		"DELETE FROM %s WHERE id = ? AND user_id = ?", t.collection)), id, userID)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", t.collection, id, err)
	}
	if err := checkRowsAffected(result); err != nil {
		return fmt.Errorf("deleting %s %s: %w", t.collection, id, err)
	}

	t.publish(ctx, userID)
	return nil
}

// Subscribe calls onChange whenever a record owned by userID changes. The
// returned function stops the subscription and is safe to call twice.
func (t *Table[T]) Subscribe(userID string, onChange func()) func() {
	return t.backend.notifier.subscribe(t.collection, userID, onChange)
}

// publish is best effort: the write has already committed.
func (t *Table[T]) publish(ctx context.Context, userID string) {
	if err := t.backend.notifier.publish(ctx, t.backend.db, t.collection, userID); err != nil {
		log.Printf("remote: %v", err)
	}
}

func checkRowsAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func recordID(raw []byte) (string, error) {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", fmt.Errorf("reading record id: %w", err)
	}
	if head.ID == "" {
		return "", errors.New("remote: record type has no id field")
	}
	return head.ID, nil
}
