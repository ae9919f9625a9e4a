package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/andrewabdallah/taskmanager/internal/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no task matches the lookup.
var ErrNotFound = errors.New("task not found")

// rowsBatchSize bounds the number of rows per bulk-update statement.
const rowsBatchSize = 500

// TaskFilter narrows task listings. Nil fields are ignored.
type TaskFilter struct {
	MinPriority *int
	MaxPriority *int
	DueBefore   *time.Time // inclusive
	DueAfter    *time.Time // inclusive
	Status      *domain.Status
}

// Empty reports whether the filter has no conditions.
func (f TaskFilter) Empty() bool {
	return f.MinPriority == nil && f.MaxPriority == nil &&
		f.DueBefore == nil && f.DueAfter == nil && f.Status == nil
}

// Matches evaluates the filter against a task in memory.
func (f TaskFilter) Matches(t *domain.Task) bool {
	if f.MinPriority != nil && t.Priority < *f.MinPriority {
		return false
	}
	if f.MaxPriority != nil && t.Priority > *f.MaxPriority {
		return false
	}
	if f.DueBefore != nil && t.DueDate.After(*f.DueBefore) {
		return false
	}
	if f.DueAfter != nil && t.DueDate.Before(*f.DueAfter) {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	return true
}

// OrderableFields maps client ordering names to their sort columns.
var OrderableFields = map[string]string{
	"created_at": "created_at",
	"due_date":   "due_date",
	"priority":   "priority",
}

// DefaultOrdering is applied when the caller specifies none.
var DefaultOrdering = []string{"-created_at"}

// SanitizeOrdering keeps only whitelisted ordering terms (optionally
// '-'-prefixed for descending) and falls back to the default ordering.
func SanitizeOrdering(ordering []string) []string {
	var out []string
	for _, o := range ordering {
		name := strings.TrimPrefix(o, "-")
		if _, ok := OrderableFields[name]; ok {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return DefaultOrdering
	}
	return out
}

// TaskRepo is the soft-delete data-access layer for tasks.
//
// Read operations default to the active view (deleted=false); the unfiltered
// view is reserved for recovery and administrative use. Save without an
// explicit field list persists only the task's pending dirty fields.
type TaskRepo interface {
	Create(ctx context.Context, t *domain.Task) error
	// GetByID resolves an active task by id.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	// GetAnyByID resolves a task by id including soft-deleted ones.
	GetAnyByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	// List returns the owner's active tasks, filtered and ordered.
	List(ctx context.Context, ownerID int64, f TaskFilter, ordering []string) ([]*domain.Task, error)
	// ListAll returns the owner's tasks including soft-deleted ones.
	ListAll(ctx context.Context, ownerID int64) ([]*domain.Task, error)
	// Save persists t. New tasks are inserted in full. For existing tasks,
	// an explicit field list persists exactly those fields (plus updated_at);
	// with none, the task's pending dirty fields are persisted. Change
	// tracking is reset on success.
	Save(ctx context.Context, t *domain.Task, fields ...string) error
	// Delete soft-deletes t, persisting only the deleted flag and timestamp.
	// With permanent, the row is removed irreversibly.
	Delete(ctx context.Context, t *domain.Task, permanent bool) error
	// DeleteMatching applies Delete's policy to a whole filtered set in one
	// statement. Returns the number of affected rows.
	DeleteMatching(ctx context.Context, ownerID int64, f TaskFilter, permanent bool) (int64, error)
	// Recover clears the soft-delete flag on t.
	Recover(ctx context.Context, t *domain.Task) error
	// RecoverMatching clears the flag on a whole filtered set.
	RecoverMatching(ctx context.Context, ownerID int64, f TaskFilter) (int64, error)
	// BulkUpdate persists the given fields on every task, stamping each
	// task's update timestamp first and batching the writes.
	BulkUpdate(ctx context.Context, tasks []*domain.Task, fields []string) error
	// BulkUpdateWithoutTimestamp is BulkUpdate without the stamping; callers
	// are responsible for timestamp correctness.
	BulkUpdateWithoutTimestamp(ctx context.Context, tasks []*domain.Task, fields []string) error
}

// fieldColumns maps change-tracked field names to task table columns.
var fieldColumns = map[string]string{
	domain.FieldTitle:       "title",
	domain.FieldDescription: "description",
	domain.FieldStatus:      "status",
	domain.FieldPriority:    "priority",
	domain.FieldDueDate:     "due_date",
	domain.FieldDeleted:     "deleted",
	domain.FieldUpdatedAt:   "updated_at",
}

// normalizeFields de-duplicates a field list, keeps only known columns,
// and, when withTimestamp is set, guarantees updated_at is present.
func normalizeFields(fields []string, withTimestamp bool) []string {
	seen := make(map[string]struct{}, len(fields)+1)
	var out []string
	if withTimestamp {
		// Do not append in place, the caller may reuse its slice.
		stamped := make([]string, 0, len(fields)+1)
		stamped = append(stamped, fields...)
		fields = append(stamped, domain.FieldUpdatedAt)
	}
	for _, f := range fields {
		if _, ok := fieldColumns[f]; !ok {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func fieldValue(t *domain.Task, field string) any {
	switch field {
	case domain.FieldTitle:
		return t.Title
	case domain.FieldDescription:
		return t.Description
	case domain.FieldStatus:
		return string(t.Status)
	case domain.FieldPriority:
		return t.Priority
	case domain.FieldDueDate:
		return t.DueDate
	case domain.FieldDeleted:
		return t.Deleted
	case domain.FieldUpdatedAt:
		return t.UpdatedAt
	}
	return nil
}
