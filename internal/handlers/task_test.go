package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andrewabdallah/taskmanager/internal/auth"
	"github.com/andrewabdallah/taskmanager/internal/cache"
	"github.com/andrewabdallah/taskmanager/internal/dto"
	"github.com/andrewabdallah/taskmanager/internal/repo"
	"github.com/andrewabdallah/taskmanager/internal/service"
)

var testUser = auth.Principal{ID: 1, Username: "alice"}

func newTestRouter(p auth.Principal) (*gin.Engine, *service.TaskService) {
	gin.SetMode(gin.TestMode)
	r := repo.NewMemoryTaskRepo()
	store := cache.NewMemoryStore()
	epc := cache.NewEndpointCache(store, "tasks", "", time.Minute)
	rt := cache.NewReadThrough(store, time.Minute)
	svc := service.NewTaskService(r, epc, rt)
	h := NewTaskHandler(svc)

	engine := gin.New()
	api := engine.Group("/api/v1", auth.WithPrincipal(p))
	api.POST("/tasks", h.Create)
	api.GET("/tasks", h.List)
	api.GET("/tasks/recent", h.Recent)
	api.GET("/tasks/:id", h.GetByID)
	api.PUT("/tasks/:id", h.Update)
	api.PATCH("/tasks/:id", h.Update)
	api.DELETE("/tasks/:id", h.Delete)
	api.POST("/tasks/:id/recover", h.Recover)
	return engine, svc
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createVia(t *testing.T, r *gin.Engine, title string, priority int) dto.TaskResponse {
	t.Helper()
	due := time.Now().Add(48 * time.Hour).Format("2006-01-02")
	w := doJSON(r, http.MethodPost, "/api/v1/tasks", gin.H{
		"title":    title,
		"priority": priority,
		"due_date": due,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create %q: status %d, body %s", title, w.Code, w.Body.String())
	}
	var resp dto.TaskResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return resp
}

func listVia(t *testing.T, r *gin.Engine, path string) dto.ListTasksResponse {
	t.Helper()
	w := doJSON(r, http.MethodGet, path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list %s: status %d, body %s", path, w.Code, w.Body.String())
	}
	var resp dto.ListTasksResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	return resp
}

func TestListEmptyEnvelope(t *testing.T) {
	r, _ := newTestRouter(testUser)
	resp := listVia(t, r, "/api/v1/tasks")
	if resp.Paging.TotalElements != 0 || resp.Paging.Page != 1 || resp.Paging.TotalPages != 1 {
		t.Fatalf("unexpected paging for empty list: %+v", resp.Paging)
	}
	if resp.Items == nil || len(resp.Items) != 0 {
		t.Fatalf("items must be an empty array, got %v", resp.Items)
	}
}

func TestCreateAndFilter(t *testing.T) {
	r, _ := newTestRouter(testUser)
	createVia(t, r, "urgent", 1)
	createVia(t, r, "normal", 3)
	createVia(t, r, "someday", 5)

	resp := listVia(t, r, "/api/v1/tasks?min_priority=3")
	if resp.Paging.TotalElements != 2 {
		t.Fatalf("expected 2 tasks with priority >= 3, got %d", resp.Paging.TotalElements)
	}
	for _, item := range resp.Items {
		if item.Priority < 3 {
			t.Fatalf("filter leaked priority %d", item.Priority)
		}
	}

	resp = listVia(t, r, "/api/v1/tasks?min_priority=3&max_priority=3")
	if resp.Paging.TotalElements != 1 || resp.Items[0].Title != "normal" {
		t.Fatalf("expected only the priority-3 task, got %+v", resp.Items)
	}
}

func TestListBadFilterValue(t *testing.T) {
	r, _ := newTestRouter(testUser)
	w := doJSON(r, http.MethodGet, "/api/v1/tasks?min_priority=abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for junk filter, got %d", w.Code)
	}
	w = doJSON(r, http.MethodGet, "/api/v1/tasks?due_before=01/02/2026", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for junk date, got %d", w.Code)
	}
}

func TestListOrderingParam(t *testing.T) {
	r, _ := newTestRouter(testUser)
	createVia(t, r, "low", 5)
	createVia(t, r, "high", 1)

	resp := listVia(t, r, "/api/v1/tasks?ordering=priority")
	if resp.Items[0].Priority != 1 {
		t.Fatalf("expected ascending priority, got %d first", resp.Items[0].Priority)
	}
	resp = listVia(t, r, "/api/v1/tasks?ordering=-priority")
	if resp.Items[0].Priority != 5 {
		t.Fatalf("expected descending priority, got %d first", resp.Items[0].Priority)
	}
}

func TestPagination(t *testing.T) {
	r, _ := newTestRouter(testUser)
	for i := 0; i < 25; i++ {
		createVia(t, r, fmt.Sprintf("task %02d", i), 3)
	}

	resp := listVia(t, r, "/api/v1/tasks")
	if resp.Paging.Size != 10 || len(resp.Items) != 10 {
		t.Fatalf("default page size should be 10, got %d items", len(resp.Items))
	}
	if resp.Paging.TotalElements != 25 || resp.Paging.TotalPages != 3 {
		t.Fatalf("unexpected paging %+v", resp.Paging)
	}

	resp = listVia(t, r, "/api/v1/tasks?page=3")
	if len(resp.Items) != 5 {
		t.Fatalf("last page should have 5 items, got %d", len(resp.Items))
	}

	resp = listVia(t, r, "/api/v1/tasks?size=20")
	if len(resp.Items) != 20 || resp.Paging.TotalPages != 2 {
		t.Fatalf("size=20 should give 20 items over 2 pages, got %d/%d", len(resp.Items), resp.Paging.TotalPages)
	}

	resp = listVia(t, r, "/api/v1/tasks?size=2000")
	if resp.Paging.Size != maxPageSize {
		t.Fatalf("oversized request should be capped at %d, got %d", maxPageSize, resp.Paging.Size)
	}
	if len(resp.Items) != 25 || resp.Paging.TotalPages != 1 {
		t.Fatalf("capped page should still hold all 25 items, got %d/%d", len(resp.Items), resp.Paging.TotalPages)
	}

	w := doJSON(r, http.MethodGet, "/api/v1/tasks?page=9", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("out-of-range page should 404, got %d", w.Code)
	}
}

func TestValidationErrorShape(t *testing.T) {
	r, _ := newTestRouter(testUser)
	w := doJSON(r, http.MethodPost, "/api/v1/tasks", gin.H{"priority": 9})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var body struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, field := range []string{"title", "priority", "due_date"} {
		if _, ok := body.Errors[field]; !ok {
			t.Fatalf("expected error on %q, got %v", field, body.Errors)
		}
	}
}

func TestGetUpdateDeleteRoundTrip(t *testing.T) {
	r, _ := newTestRouter(testUser)
	created := createVia(t, r, "report", 2)

	w := doJSON(r, http.MethodGet, "/api/v1/tasks/"+created.ID.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}

	w = doJSON(r, http.MethodPatch, "/api/v1/tasks/"+created.ID.String(), gin.H{"status": "completed"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch: status %d, body %s", w.Code, w.Body.String())
	}
	var updated dto.TaskResponse
	_ = json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Status != "completed" || updated.Title != "report" {
		t.Fatalf("patch result wrong: %+v", updated)
	}

	w = doJSON(r, http.MethodDelete, "/api/v1/tasks/"+created.ID.String(), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", w.Code)
	}

	w = doJSON(r, http.MethodGet, "/api/v1/tasks/"+created.ID.String(), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("deleted task should 404, got %d", w.Code)
	}

	resp := listVia(t, r, "/api/v1/tasks")
	if resp.Paging.TotalElements != 0 {
		t.Fatalf("deleted task should be out of the list, got %d", resp.Paging.TotalElements)
	}
}

func TestRecoverEndpoint(t *testing.T) {
	r, _ := newTestRouter(testUser)
	created := createVia(t, r, "report", 2)

	doJSON(r, http.MethodDelete, "/api/v1/tasks/"+created.ID.String(), nil)

	w := doJSON(r, http.MethodPost, "/api/v1/tasks/"+created.ID.String()+"/recover", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("recover: status %d, body %s", w.Code, w.Body.String())
	}
	w = doJSON(r, http.MethodGet, "/api/v1/tasks/"+created.ID.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("recovered task should be retrievable, got %d", w.Code)
	}
}

func TestPutRequiresTitleAndDueDate(t *testing.T) {
	r, _ := newTestRouter(testUser)
	created := createVia(t, r, "report", 2)

	w := doJSON(r, http.MethodPut, "/api/v1/tasks/"+created.ID.String(), gin.H{"status": "completed"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("PUT without title/due_date should 400, got %d", w.Code)
	}
}

func TestPermanentDeleteForbiddenForNonStaff(t *testing.T) {
	r, _ := newTestRouter(testUser)
	created := createVia(t, r, "report", 2)

	w := doJSON(r, http.MethodDelete, "/api/v1/tasks/"+created.ID.String()+"?permanent=true", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("permanent delete by non-staff should 403, got %d", w.Code)
	}
}

func TestInvalidIDIs400(t *testing.T) {
	r, _ := newTestRouter(testUser)
	w := doJSON(r, http.MethodGet, "/api/v1/tasks/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", w.Code)
	}
}

func TestCSVExport(t *testing.T) {
	r, _ := newTestRouter(testUser)
	createVia(t, r, "first", 1)
	createVia(t, r, "second", 2)

	w := doJSON(r, http.MethodGet, "/api/v1/tasks?format=csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("csv export: status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv content type, got %q", ct)
	}
	cd := w.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "attachment") || !strings.Contains(cd, "tasks_") || !strings.Contains(cd, ".csv") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if !strings.Contains(cd, time.Now().UTC().Format("2006-01-02")) {
		t.Fatalf("filename should carry the current date, got %q", cd)
	}

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,title,") {
		t.Fatalf("unexpected header %q", lines[0])
	}
}

func TestCSVExportHonorsFilters(t *testing.T) {
	r, _ := newTestRouter(testUser)
	createVia(t, r, "urgent", 1)
	createVia(t, r, "someday", 5)

	w := doJSON(r, http.MethodGet, "/api/v1/tasks?format=csv&max_priority=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("csv export: status %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "urgent") || strings.Contains(body, "someday") {
		t.Fatalf("csv should honor filters, got %q", body)
	}
}

func TestRecentEndpoint(t *testing.T) {
	r, _ := newTestRouter(testUser)
	for i := 0; i < 12; i++ {
		createVia(t, r, fmt.Sprintf("task %02d", i), 3)
	}

	var resp dto.ListTasksResponse
	w := doJSON(r, http.MethodGet, "/api/v1/tasks/recent", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("recent: status %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != service.RecentTasksCount {
		t.Fatalf("recent view should be capped at %d, got %d", service.RecentTasksCount, len(resp.Items))
	}
	if resp.Paging.Page != 1 || resp.Paging.TotalPages != 1 {
		t.Fatalf("recent view uses the single-page envelope, got %+v", resp.Paging)
	}
}
