package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/andrewabdallah/taskmanager/internal/auth"
	"github.com/andrewabdallah/taskmanager/internal/cache"
	"github.com/andrewabdallah/taskmanager/internal/domain"
	"github.com/andrewabdallah/taskmanager/internal/repo"
)

// recentComputation names the read-through cache wrap for the recent view.
const recentComputation = "recent_tasks"

// RecentTasksCount bounds the recent-tasks view.
const RecentTasksCount = 10

// ListRequest carries everything a cached listing depends on.
type ListRequest struct {
	Filter repo.TaskFilter
	// Filtered is true when the caller supplied at least one recognized
	// filter parameter; it suppresses default-filter injection.
	Filtered bool
	Ordering []string
	// Path and Query identify the request for cache keying.
	Path  string
	Query url.Values
}

// CreateTaskInput are the client-settable fields of a new task. The owner
// always comes from the authenticated principal.
type CreateTaskInput struct {
	Title       string
	Description string
	Status      string
	Priority    *int
	DueDate     *time.Time
}

// UpdateTaskInput are the mutable fields of a task; nil leaves a field
// unchanged on partial updates.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *int
	DueDate     *time.Time
}

// TaskService mediates between the HTTP layer and the store, cache, and
// authorization rules for tasks, scoped to the authenticated principal.
type TaskService struct {
	repo repo.TaskRepo
	epc  *cache.EndpointCache // nil disables response caching
	sf   singleflight.Group

	recent cache.ComputeFunc[[]*domain.Task]

	defaultFilter *repo.TaskFilter
	preprocess    func([]*domain.Task) []*domain.Task
}

// NewTaskService creates a TaskService. epc nil disables response caching;
// rt nil leaves the recent view uncached.
func NewTaskService(r repo.TaskRepo, epc *cache.EndpointCache, rt *cache.ReadThrough) *TaskService {
	s := &TaskService{repo: r, epc: epc}
	fetchRecent := func(ctx context.Context, args cache.Args) ([]*domain.Task, error) {
		ownerID, _ := args["user_id"].(int64)
		tasks, err := s.repo.List(ctx, ownerID, repo.TaskFilter{}, []string{"-created_at"})
		if err != nil {
			return nil, err
		}
		if len(tasks) > RecentTasksCount {
			tasks = tasks[:RecentTasksCount]
		}
		return tasks, nil
	}
	if rt != nil {
		s.recent = cache.Through(rt, recentComputation, []string{"user_id"}, 0, fetchRecent)
	} else {
		s.recent = fetchRecent
	}
	return s
}

// SetDefaultFilter configures a fallback filter applied only when a listing
// request carries none of the recognized filter parameters.
func (s *TaskService) SetDefaultFilter(f repo.TaskFilter) { s.defaultFilter = &f }

// SetPreprocess configures a hook run on listing results before they are
// cached (e.g. enrichment).
func (s *TaskService) SetPreprocess(fn func([]*domain.Task) []*domain.Task) { s.preprocess = fn }

// List returns the principal's active tasks for the request, serving and
// populating the per-user response cache.
func (s *TaskService) List(ctx context.Context, p auth.Principal, req ListRequest) ([]*domain.Task, error) {
	if s.epc == nil {
		return s.listFromRepo(ctx, p, req)
	}
	key := s.epc.RequestKey(ctx, p.CacheID(), req.Path, req.Query)
	v, err, _ := s.sf.Do(key, func() (any, error) {
		var cached []*domain.Task
		if s.epc.Get(ctx, key, &cached) {
			return cached, nil
		}
		tasks, err := s.listFromRepo(ctx, p, req)
		if err != nil {
			return nil, err
		}
		s.epc.Set(ctx, key, tasks)
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Task), nil
}

func (s *TaskService) listFromRepo(ctx context.Context, p auth.Principal, req ListRequest) ([]*domain.Task, error) {
	f := req.Filter
	if !req.Filtered && s.defaultFilter != nil {
		f = *s.defaultFilter
	}
	tasks, err := s.repo.List(ctx, p.ID, f, req.Ordering)
	if err != nil {
		return nil, err
	}
	if s.preprocess != nil {
		tasks = s.preprocess(tasks)
	}
	return tasks, nil
}

// Get retrieves a single active task through the per-user response cache.
// Non-owners without staff rights get ErrNotFound.
func (s *TaskService) Get(ctx context.Context, p auth.Principal, id uuid.UUID, path string, query url.Values) (*domain.Task, error) {
	if s.epc == nil {
		return s.getFromRepo(ctx, p, id)
	}
	key := s.epc.RequestKey(ctx, p.CacheID(), path, query)
	var cached domain.Task
	if s.epc.Get(ctx, key, &cached) {
		return &cached, nil
	}
	t, err := s.getFromRepo(ctx, p, id)
	if err != nil {
		return nil, err
	}
	s.epc.Set(ctx, key, t)
	return t, nil
}

func (s *TaskService) getFromRepo(ctx context.Context, p auth.Principal, id uuid.UUID) (*domain.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := authorize(p, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Create validates input, forces the owner to the principal, persists the
// task, and invalidates the principal's cache scope.
func (s *TaskService) Create(ctx context.Context, p auth.Principal, in CreateTaskInput) (*domain.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	var verr ValidationError
	validateTitle(&verr, in.Title)
	status := domain.StatusPending
	if in.Status != "" {
		status = domain.Status(in.Status)
		validateStatus(&verr, status)
	}
	priority := domain.DefaultPriority
	if in.Priority != nil {
		priority = *in.Priority
		validatePriority(&verr, priority)
	}
	if in.DueDate == nil {
		verr.add("due_date", "due date is required")
	} else {
		validateDueDate(&verr, *in.DueDate)
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	t := domain.NewTask(p.ID, p.Username, in.Title, in.Description, status, priority, *in.DueDate)
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(ctx, t.OwnerID, p)
	return t, nil
}

// Update applies a partial (or, with full, complete) update to an owned
// task. Only the mutated fields are persisted, via change tracking. The id
// and owner are immutable.
func (s *TaskService) Update(ctx context.Context, p auth.Principal, id uuid.UUID, in UpdateTaskInput, full bool) (*domain.Task, error) {
	t, err := s.getFromRepo(ctx, p, id)
	if err != nil {
		return nil, err
	}

	var verr ValidationError
	if full {
		if in.Title == nil {
			verr.add("title", "title is required")
		}
		if in.DueDate == nil {
			verr.add("due_date", "due date is required")
		}
	}
	if in.Title != nil {
		validateTitle(&verr, strings.TrimSpace(*in.Title))
	}
	if in.Status != nil {
		validateStatus(&verr, domain.Status(*in.Status))
	}
	if in.Priority != nil {
		validatePriority(&verr, *in.Priority)
	}
	if in.DueDate != nil {
		validateDueDate(&verr, *in.DueDate)
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	if in.Title != nil {
		t.SetTitle(strings.TrimSpace(*in.Title))
	}
	if in.Description != nil {
		t.SetDescription(strings.TrimSpace(*in.Description))
	}
	if in.Status != nil {
		t.SetStatus(domain.Status(*in.Status))
	}
	if in.Priority != nil {
		t.SetPriority(*in.Priority)
	}
	if in.DueDate != nil {
		t.SetDueDate(*in.DueDate)
	}

	if err := s.repo.Save(ctx, t); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.invalidate(ctx, t.OwnerID, p)
	return t, nil
}

// Delete soft-deletes a task; with permanent (staff only) the row is
// removed irreversibly.
func (s *TaskService) Delete(ctx context.Context, p auth.Principal, id uuid.UUID, permanent bool) error {
	var t *domain.Task
	var err error
	if permanent {
		if !p.Staff {
			return ErrForbidden
		}
		t, err = s.repo.GetAnyByID(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
	} else {
		t, err = s.getFromRepo(ctx, p, id)
	}
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, t, permanent); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.invalidate(ctx, t.OwnerID, p)
	return nil
}

// Recover clears the soft-delete flag on a task the principal owns (or may
// administer) and invalidates the cache scope.
func (s *TaskService) Recover(ctx context.Context, p auth.Principal, id uuid.UUID) (*domain.Task, error) {
	t, err := s.repo.GetAnyByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := authorize(p, t); err != nil {
		return nil, err
	}
	if t.Deleted {
		if err := s.repo.Recover(ctx, t); err != nil {
			return nil, err
		}
		s.invalidate(ctx, t.OwnerID, p)
	}
	return t, nil
}

// Recent returns the principal's most recent tasks through the
// read-through cache keyed on the user id.
func (s *TaskService) Recent(ctx context.Context, p auth.Principal) ([]*domain.Task, error) {
	return s.recent(ctx, cache.Args{"user_id": p.ID})
}

// invalidate drops every cached response for the task owner's scope, plus
// the acting principal's when a staff member touched someone else's task,
// and the owner's recent view.
func (s *TaskService) invalidate(ctx context.Context, ownerID int64, p auth.Principal) {
	if s.epc == nil {
		return
	}
	owner := auth.Principal{ID: ownerID}
	_ = s.epc.Invalidate(ctx, owner.CacheID())
	if p.ID != ownerID {
		_ = s.epc.Invalidate(ctx, p.CacheID())
	}
	s.epc.DeleteKeys(ctx, cache.Key(recentComputation, fmt.Sprint(ownerID)))
}

func authorize(p auth.Principal, t *domain.Task) error {
	if p.Staff || t.OwnerID == p.ID {
		return nil
	}
	return ErrNotFound
}

func validateTitle(verr *ValidationError, title string) {
	if title == "" {
		verr.add("title", "title is required")
	} else if len(title) > domain.MaxTitleLength {
		verr.add("title", fmt.Sprintf("title must be at most %d characters", domain.MaxTitleLength))
	}
}

func validateStatus(verr *ValidationError, s domain.Status) {
	if !s.Valid() {
		verr.add("status", "status must be one of pending, in_progress, completed")
	}
}

func validatePriority(verr *ValidationError, p int) {
	if p < domain.MinPriority || p > domain.MaxPriority {
		verr.add("priority", fmt.Sprintf("priority must be between %d and %d",
			domain.MinPriority, domain.MaxPriority))
	}
}

func validateDueDate(verr *ValidationError, due time.Time) {
	if domain.DateOf(due).Before(domain.DateOf(time.Now())) {
		verr.add("due_date", "due date cannot be in the past")
	}
}
