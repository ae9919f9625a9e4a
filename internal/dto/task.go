package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DueDate parses due_date from JSON as either a date ("2006-01-02") or an
// RFC3339 timestamp. Either form is normalized to midnight UTC of that day.
type DueDate struct{ t *time.Time }

func (d *DueDate) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		d.t = nil
		return nil
	}
	s := strings.TrimSpace(*raw)
	layouts := []string{
		"2006-01-02",
		time.RFC3339,
		time.RFC3339Nano,
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		day := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		d.t = &day
		return nil
	}
	return fmt.Errorf("due_date: use date (YYYY-MM-DD) or RFC3339 datetime")
}

// Ptr returns the parsed date, or nil when absent.
func (d DueDate) Ptr() *time.Time { return d.t }

// CreateTaskRequest is the JSON body for POST /tasks. Value constraints are
// enforced by the service so validation failures come back per field; the
// owner is never accepted from the client.
type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    *int    `json:"priority"`
	DueDate     DueDate `json:"due_date"`
}

// UpdateTaskRequest is the JSON body for PATCH/PUT /tasks/{id}.
// Nil means "leave unchanged" on PATCH; PUT requires title and due_date.
type UpdateTaskRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Status      *string  `json:"status"`
	Priority    *int     `json:"priority"`
	DueDate     *DueDate `json:"due_date"`
}

// TaskResponse is the JSON shape of a task.
type TaskResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Owner       string    `json:"owner"`
	Status      string    `json:"status"`
	Priority    int       `json:"priority"`
	DueDate     string    `json:"due_date"` // YYYY-MM-DD
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Paging describes the page window of a list response.
type Paging struct {
	Page          int `json:"page"`
	Size          int `json:"size"`
	TotalPages    int `json:"total_pages"`
	TotalElements int `json:"total_elements"`
}

// ListTasksResponse is the envelope for every task listing. The shape is
// stable whether or not pagination is active.
type ListTasksResponse struct {
	Paging Paging         `json:"paging"`
	Items  []TaskResponse `json:"items"`
}
