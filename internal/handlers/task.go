package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/andrewabdallah/taskmanager/internal/auth"
	"github.com/andrewabdallah/taskmanager/internal/domain"
	"github.com/andrewabdallah/taskmanager/internal/dto"
	"github.com/andrewabdallah/taskmanager/internal/repo"
	"github.com/andrewabdallah/taskmanager/internal/service"
)

// csvFilenamePrefix names exported files: tasks_<YYYY-MM-DD_HH_MM_SS>.csv.
const csvFilenamePrefix = "tasks"

// maxCSVRows bounds tabular exports.
const maxCSVRows = 1000

// filterParams are the recognized query filter parameters; their presence
// suppresses default-filter injection.
var filterParams = []string{"min_priority", "max_priority", "due_before", "due_after", "status"}

// TaskHandler exposes the task CRUD endpoints.
type TaskHandler struct {
	svc *service.TaskService
}

// NewTaskHandler returns a new TaskHandler.
func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// List godoc
// @Summary      List tasks
// @Description  Lists the caller's active tasks with filtering, ordering, pagination, and CSV export.
// @Tags         tasks
// @Produce      json,text/csv
// @Security     CookieAuth
// @Param        min_priority  query  int     false  "Priority >= value"
// @Param        max_priority  query  int     false  "Priority <= value"
// @Param        due_before    query  string  false  "Due date <= YYYY-MM-DD"
// @Param        due_after     query  string  false  "Due date >= YYYY-MM-DD"
// @Param        status        query  string  false  "pending | in_progress | completed"
// @Param        ordering      query  string  false  "Comma-separated: created_at, due_date, priority; '-' prefix for descending"
// @Param        page          query  int     false  "Page number (default 1)"
// @Param        size          query  int     false  "Page size (default 10, max 1000)"
// @Param        format        query  string  false  "csv for file export"
// @Success      200  {object}  dto.ListTasksResponse
// @Failure      400  {object}  map[string]string
// @Router       /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	p := auth.PrincipalFromContext(c)
	req, err := parseListRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tasks, err := h.svc.List(c.Request.Context(), p, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if c.Query("format") == "csv" {
		writeCSV(c, truncateForCSV(tasks))
		return
	}

	page, size, err := parsePaging(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, ok := paginate(tasksToResponses(tasks), page, size)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid page"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Recent godoc
// @Summary      Recently created tasks
// @Description  Cached view of the caller's most recent tasks.
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Success      200  {object}  dto.ListTasksResponse
// @Router       /tasks/recent [get]
func (h *TaskHandler) Recent(c *gin.Context) {
	p := auth.PrincipalFromContext(c)
	tasks, err := h.svc.Recent(c.Request.Context(), p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, paginateDisabled(tasksToResponses(tasks)))
}

// GetByID godoc
// @Summary      Get a task by ID
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  dto.TaskResponse
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	p := auth.PrincipalFromContext(c)
	t, err := h.svc.Get(c.Request.Context(), p, id, c.Request.URL.Path, c.Request.URL.Query())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(t))
}

// Create godoc
// @Summary      Create a task
// @Description  The owner is always the authenticated caller; it is never read from the body.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        body  body      dto.CreateTaskRequest  true  "Task body"
// @Success      201   {object}  dto.TaskResponse
// @Failure      400   {object}  map[string]any
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p := auth.PrincipalFromContext(c)
	t, err := h.svc.Create(c.Request.Context(), p, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate.Ptr(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, taskToResponse(t))
}

// Update godoc
// @Summary      Update a task
// @Description  PATCH applies a partial update; PUT requires title and due_date. ID and owner are immutable.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        id    path      string  true  "Task ID"
// @Param        body  body      dto.UpdateTaskRequest  true  "Fields to update"
// @Success      200   {object}  dto.TaskResponse
// @Failure      400   {object}  map[string]any
// @Failure      404   {object}  map[string]string
// @Router       /tasks/{id} [patch]
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var duePtr *time.Time
	if req.DueDate != nil {
		duePtr = req.DueDate.Ptr()
	}
	p := auth.PrincipalFromContext(c)
	full := c.Request.Method == http.MethodPut
	t, err := h.svc.Update(c.Request.Context(), p, id, service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     duePtr,
	}, full)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(t))
}

// Delete godoc
// @Summary      Delete a task
// @Description  Soft-deletes by default; permanent=true (staff only) removes the row irreversibly.
// @Tags         tasks
// @Security     CookieAuth
// @Param        id         path   string  true   "Task ID"
// @Param        permanent  query  bool    false  "Irreversible removal (staff only)"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	p := auth.PrincipalFromContext(c)
	permanent := c.Query("permanent") == "true"
	if err := h.svc.Delete(c.Request.Context(), p, id, permanent); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Recover godoc
// @Summary      Recover a soft-deleted task
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  dto.TaskResponse
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id}/recover [post]
func (h *TaskHandler) Recover(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	p := auth.PrincipalFromContext(c)
	t, err := h.svc.Recover(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(t))
}

func respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Fields})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func parseListRequest(c *gin.Context) (service.ListRequest, error) {
	query := c.Request.URL.Query()
	req := service.ListRequest{
		Path:  c.Request.URL.Path,
		Query: query,
	}

	var f repo.TaskFilter
	if v := c.Query("min_priority"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, errors.New("min_priority must be an integer")
		}
		f.MinPriority = &n
	}
	if v := c.Query("max_priority"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, errors.New("max_priority must be an integer")
		}
		f.MaxPriority = &n
	}
	if v := c.Query("due_before"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return req, errors.New("due_before must be YYYY-MM-DD")
		}
		f.DueBefore = &t
	}
	if v := c.Query("due_after"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return req, errors.New("due_after must be YYYY-MM-DD")
		}
		f.DueAfter = &t
	}
	if v := c.Query("status"); v != "" {
		st := domain.Status(v)
		if !st.Valid() {
			return req, errors.New("status must be one of pending, in_progress, completed")
		}
		f.Status = &st
	}
	req.Filter = f
	for _, name := range filterParams {
		if query.Has(name) {
			req.Filtered = true
			break
		}
	}
	if v := c.Query("ordering"); v != "" {
		req.Ordering = strings.Split(v, ",")
	}
	return req, nil
}

func taskToResponse(t *domain.Task) dto.TaskResponse {
	return dto.TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Owner:       t.OwnerName,
		Status:      string(t.Status),
		Priority:    t.Priority,
		DueDate:     t.DueDate.Format("2006-01-02"),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func tasksToResponses(tasks []*domain.Task) []dto.TaskResponse {
	out := make([]dto.TaskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = taskToResponse(t)
	}
	return out
}
