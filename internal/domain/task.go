package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the task lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists all valid task statuses.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

const (
	MinPriority     = 1 // highest
	MaxPriority     = 5 // lowest
	DefaultPriority = 3

	MaxTitleLength = 200
)

// Task field names, used by change tracking and partial updates.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldDueDate     = "due_date"
	FieldDeleted     = "deleted"
)

// TaskWatchedFields are snapshot-tracked so callers can ask HasChanged/OldValue.
var TaskWatchedFields = []string{FieldStatus, FieldDueDate}

// Task is a user-owned task record. Mutations must go through the Set*
// methods so the change tracker sees them; the owner and ID never change
// after creation.
type Task struct {
	Record
	Title       string
	Description string
	OwnerID     int64
	OwnerName   string // denormalized username, populated on load
	Status      Status
	Priority    int
	DueDate     time.Time // date precision, UTC midnight

	tracker *ChangeTracker
}

// NewTask builds an unsaved task owned by the given user, with defaults applied.
func NewTask(ownerID int64, ownerName, title, description string, status Status, priority int, due time.Time) *Task {
	if status == "" {
		status = StatusPending
	}
	if priority == 0 {
		priority = DefaultPriority
	}
	t := &Task{
		Title:       title,
		Description: description,
		OwnerID:     ownerID,
		OwnerName:   ownerName,
		Status:      status,
		Priority:    priority,
		DueDate:     DateOf(due),
	}
	t.StartTracking()
	return t
}

// DateOf truncates a timestamp to its date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartTracking re-initializes change tracking, snapshotting the watched
// fields. Call after loading a task from storage.
func (t *Task) StartTracking() {
	t.tracker = NewChangeTracker(TaskWatchedFields...)
	t.tracker.Snapshot(t.fieldValue)
}

func (t *Task) track() *ChangeTracker {
	if t.tracker == nil {
		t.StartTracking()
	}
	return t.tracker
}

func (t *Task) fieldValue(field string) any {
	switch field {
	case FieldTitle:
		return t.Title
	case FieldDescription:
		return t.Description
	case FieldStatus:
		return t.Status
	case FieldPriority:
		return t.Priority
	case FieldDueDate:
		return t.DueDate
	case FieldDeleted:
		return t.Deleted
	case FieldUpdatedAt:
		return t.UpdatedAt
	default:
		return nil
	}
}

func (t *Task) SetTitle(v string) {
	t.track().Touch(FieldTitle, t.Title, v)
	t.Title = v
}

func (t *Task) SetDescription(v string) {
	t.track().Touch(FieldDescription, t.Description, v)
	t.Description = v
}

func (t *Task) SetStatus(v Status) {
	t.track().Touch(FieldStatus, t.Status, v)
	t.Status = v
}

func (t *Task) SetPriority(v int) {
	t.track().Touch(FieldPriority, t.Priority, v)
	t.Priority = v
}

func (t *Task) SetDueDate(v time.Time) {
	v = DateOf(v)
	t.track().Touch(FieldDueDate, t.DueDate, v)
	t.DueDate = v
}

// MarkDeleted flags the task as soft-deleted without persisting it.
func (t *Task) MarkDeleted() {
	t.track().Touch(FieldDeleted, t.Deleted, true)
	t.Deleted = true
}

// MarkRecovered clears the soft-delete flag without persisting it.
func (t *Task) MarkRecovered() {
	t.track().Touch(FieldDeleted, t.Deleted, false)
	t.Deleted = false
}

// PendingFields returns the fields mutated since the last save (always
// including updated_at).
func (t *Task) PendingFields() []string { return t.track().PendingFields() }

// HasChanged reports whether a watched field differs from its last snapshot.
// Returns NotWatchedError for fields outside the watch list.
func (t *Task) HasChanged(field string) (bool, error) {
	return t.track().HasChanged(field, t.fieldValue(field))
}

// OldValue returns the snapshot value of a watched field.
// Returns NotWatchedError for fields outside the watch list.
func (t *Task) OldValue(field string) (any, error) {
	return t.track().OldValue(field)
}

// ResetChanges re-snapshots watched fields and clears the pending list.
// Storage implementations call this after a successful save.
func (t *Task) ResetChanges() { t.track().Reset(t.fieldValue) }

// NewID allocates a task identifier.
func NewID() uuid.UUID { return uuid.New() }
