package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FieldUpdatedAt is always part of a record's pending update fields.
const FieldUpdatedAt = "updated_at"

// Record holds the fields shared by every persisted entity. Soft-deleted
// records keep their row and stay resolvable by ID; they are only excluded
// from active views.
type Record struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	Deleted   bool
}

// IsNew reports whether the record has never been persisted.
func (r Record) IsNew() bool { return r.ID == uuid.Nil }

// NotWatchedError is returned when change-tracking is queried for a field
// that was never registered in the watch list. This is a programming error
// in the caller, not a data condition.
type NotWatchedError struct {
	Field string
}

func (e *NotWatchedError) Error() string {
	return fmt.Sprintf("field %q is not watched for changes", e.Field)
}

// ChangeTracker records which fields of an entity were mutated since the
// last save, and keeps old-value snapshots for an explicit watch list.
//
// The pending list always contains updated_at, may contain duplicates, and
// is reset to the base set after a successful save.
type ChangeTracker struct {
	old     map[string]any
	pending []string
}

// NewChangeTracker creates a tracker watching the given fields. Old values
// start as nil until Snapshot is called.
func NewChangeTracker(watch ...string) *ChangeTracker {
	t := &ChangeTracker{old: make(map[string]any, len(watch))}
	for _, f := range watch {
		t.old[f] = nil
	}
	t.pending = []string{FieldUpdatedAt}
	return t
}

// Snapshot captures the current value of every watched field as its old value.
// current must return the live value for a field name.
func (t *ChangeTracker) Snapshot(current func(field string) any) {
	for f := range t.old {
		t.old[f] = current(f)
	}
}

// Touch marks a field dirty when the new value differs from the current one.
func (t *ChangeTracker) Touch(field string, oldVal, newVal any) {
	if oldVal != newVal {
		t.pending = append(t.pending, field)
	}
}

// PendingFields returns the fields mutated since the last save, always
// including updated_at. Duplicates are possible; persistence must tolerate them.
func (t *ChangeTracker) PendingFields() []string {
	out := make([]string, len(t.pending))
	copy(out, t.pending)
	return out
}

// HasChanged reports whether a watched field differs from its snapshot.
func (t *ChangeTracker) HasChanged(field string, current any) (bool, error) {
	old, ok := t.old[field]
	if !ok {
		return false, &NotWatchedError{Field: field}
	}
	return old != current, nil
}

// OldValue returns the snapshot taken at load/save time for a watched field.
func (t *ChangeTracker) OldValue(field string) (any, error) {
	old, ok := t.old[field]
	if !ok {
		return nil, &NotWatchedError{Field: field}
	}
	return old, nil
}

// Reset clears the pending list back to the base set and re-snapshots all
// watched fields. Call after a successful save.
func (t *ChangeTracker) Reset(current func(field string) any) {
	t.pending = append(t.pending[:0], FieldUpdatedAt)
	t.Snapshot(current)
}
