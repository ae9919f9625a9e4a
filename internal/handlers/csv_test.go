package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andrewabdallah/taskmanager/internal/domain"
)

func TestCSVExportRowLimit(t *testing.T) {
	due := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	tasks := make([]*domain.Task, maxCSVRows+250)
	for i := range tasks {
		tasks[i] = domain.NewTask(1, "alice", fmt.Sprintf("task %d", i), "", domain.StatusPending, 3, due)
	}

	got := truncateForCSV(tasks)
	if len(got) != maxCSVRows {
		t.Fatalf("expected %d rows after truncation, got %d", maxCSVRows, len(got))
	}
	if got[0] != tasks[0] || got[maxCSVRows-1] != tasks[maxCSVRows-1] {
		t.Fatalf("truncation must keep the leading rows")
	}

	few := truncateForCSV(tasks[:3])
	if len(few) != 3 {
		t.Fatalf("small exports must pass through untouched, got %d rows", len(few))
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/tasks?format=csv", nil)
	writeCSV(c, got)

	body := strings.TrimRight(w.Body.String(), "\n")
	if lines := strings.Count(body, "\n") + 1; lines != maxCSVRows+1 {
		t.Fatalf("expected %d lines including header, got %d", maxCSVRows+1, lines)
	}
	cd := w.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, "attachment; filename='tasks_") || !strings.HasSuffix(cd, ".csv'") {
		t.Fatalf("unexpected Content-Disposition %q", cd)
	}
}
