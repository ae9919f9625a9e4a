package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/andrewabdallah/taskmanager/internal/domain"
	"github.com/google/uuid"
)

// MemoryTaskRepo is an in-process TaskRepo used by tests and for running
// the API without Postgres. It honors the same soft-delete and
// partial-field-save contracts as the Postgres implementation.
type MemoryTaskRepo struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.Task
}

// NewMemoryTaskRepo returns an empty in-memory task repo.
func NewMemoryTaskRepo() *MemoryTaskRepo {
	return &MemoryTaskRepo{tasks: make(map[uuid.UUID]*domain.Task)}
}

func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	c.StartTracking()
	return &c
}

func (r *MemoryTaskRepo) Create(_ context.Context, t *domain.Task) error {
	if t.ID == uuid.Nil {
		t.ID = domain.NewID()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	r.mu.Lock()
	r.tasks[t.ID] = cloneTask(t)
	r.mu.Unlock()
	t.ResetChanges()
	return nil
}

func (r *MemoryTaskRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok || t.Deleted {
		return nil, ErrNotFound
	}
	return cloneTask(t), nil
}

func (r *MemoryTaskRepo) GetAnyByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTask(t), nil
}

func (r *MemoryTaskRepo) List(_ context.Context, ownerID int64, f TaskFilter, ordering []string) ([]*domain.Task, error) {
	r.mu.RLock()
	var list []*domain.Task
	for _, t := range r.tasks {
		if t.OwnerID == ownerID && !t.Deleted && f.Matches(t) {
			list = append(list, cloneTask(t))
		}
	}
	r.mu.RUnlock()
	sortTasks(list, ordering)
	return list, nil
}

func (r *MemoryTaskRepo) ListAll(_ context.Context, ownerID int64) ([]*domain.Task, error) {
	r.mu.RLock()
	var list []*domain.Task
	for _, t := range r.tasks {
		if t.OwnerID == ownerID {
			list = append(list, cloneTask(t))
		}
	}
	r.mu.RUnlock()
	sortTasks(list, nil)
	return list, nil
}

func (r *MemoryTaskRepo) Save(ctx context.Context, t *domain.Task, fields ...string) error {
	if t.IsNew() {
		return r.Create(ctx, t)
	}
	target := fields
	if len(target) == 0 {
		target = t.PendingFields()
	}
	target = normalizeFields(target, true)
	t.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	stored, ok := r.tasks[t.ID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	applyFields(stored, t, target)
	r.mu.Unlock()
	t.ResetChanges()
	return nil
}

func (r *MemoryTaskRepo) Delete(_ context.Context, t *domain.Task, permanent bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tasks[t.ID]
	if !ok {
		return ErrNotFound
	}
	if permanent {
		delete(r.tasks, t.ID)
		return nil
	}
	t.MarkDeleted()
	t.UpdatedAt = time.Now().UTC()
	applyFields(stored, t, []string{domain.FieldDeleted, domain.FieldUpdatedAt})
	t.ResetChanges()
	return nil
}

func (r *MemoryTaskRepo) DeleteMatching(_ context.Context, ownerID int64, f TaskFilter, permanent bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for id, t := range r.tasks {
		if t.OwnerID != ownerID || !f.Matches(t) {
			continue
		}
		if permanent {
			delete(r.tasks, id)
			n++
		} else if !t.Deleted {
			t.Deleted = true
			t.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *MemoryTaskRepo) Recover(_ context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tasks[t.ID]
	if !ok {
		return ErrNotFound
	}
	t.MarkRecovered()
	t.UpdatedAt = time.Now().UTC()
	applyFields(stored, t, []string{domain.FieldDeleted, domain.FieldUpdatedAt})
	t.ResetChanges()
	return nil
}

func (r *MemoryTaskRepo) RecoverMatching(_ context.Context, ownerID int64, f TaskFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for _, t := range r.tasks {
		if t.OwnerID == ownerID && t.Deleted && f.Matches(t) {
			t.Deleted = false
			t.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *MemoryTaskRepo) BulkUpdate(_ context.Context, tasks []*domain.Task, fields []string) error {
	now := time.Now().UTC()
	for _, t := range tasks {
		t.UpdatedAt = now
	}
	return r.bulkApply(tasks, normalizeFields(fields, true))
}

func (r *MemoryTaskRepo) BulkUpdateWithoutTimestamp(_ context.Context, tasks []*domain.Task, fields []string) error {
	return r.bulkApply(tasks, normalizeFields(fields, false))
}

func (r *MemoryTaskRepo) bulkApply(tasks []*domain.Task, fields []string) error {
	r.mu.Lock()
	for _, t := range tasks {
		if stored, ok := r.tasks[t.ID]; ok {
			applyFields(stored, t, fields)
		}
	}
	r.mu.Unlock()
	for _, t := range tasks {
		t.ResetChanges()
	}
	return nil
}

// applyFields copies only the listed fields from src onto dst, mirroring a
// partial UPDATE statement.
func applyFields(dst, src *domain.Task, fields []string) {
	for _, f := range fields {
		switch f {
		case domain.FieldTitle:
			dst.Title = src.Title
		case domain.FieldDescription:
			dst.Description = src.Description
		case domain.FieldStatus:
			dst.Status = src.Status
		case domain.FieldPriority:
			dst.Priority = src.Priority
		case domain.FieldDueDate:
			dst.DueDate = src.DueDate
		case domain.FieldDeleted:
			dst.Deleted = src.Deleted
		case domain.FieldUpdatedAt:
			dst.UpdatedAt = src.UpdatedAt
		}
	}
}

func sortTasks(list []*domain.Task, ordering []string) {
	terms := SanitizeOrdering(ordering)
	sort.SliceStable(list, func(i, j int) bool {
		for _, o := range terms {
			desc := strings.HasPrefix(o, "-")
			c := compareField(list[i], list[j], strings.TrimPrefix(o, "-"))
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareField(a, b *domain.Task, field string) int {
	switch field {
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "due_date":
		return a.DueDate.Compare(b.DueDate)
	case "priority":
		switch {
		case a.Priority < b.Priority:
			return -1
		case a.Priority > b.Priority:
			return 1
		}
	}
	return 0
}
