package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andrewabdallah/taskmanager/internal/domain"
	"github.com/andrewabdallah/taskmanager/pkg/logger"
)

var csvHeader = []string{"id", "title", "description", "owner", "status", "priority", "due_date", "created_at", "updated_at"}

func csvFilename(now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", csvFilenamePrefix, now.Format("2006-01-02_15_04_05"))
}

// truncateForCSV bounds an export at maxCSVRows rows.
func truncateForCSV(tasks []*domain.Task) []*domain.Task {
	if len(tasks) > maxCSVRows {
		return tasks[:maxCSVRows]
	}
	return tasks
}

func writeCSV(c *gin.Context, tasks []*domain.Task) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(csvHeader)
	for _, t := range tasks {
		_ = w.Write([]string{
			t.ID.String(),
			t.Title,
			t.Description,
			t.OwnerName,
			string(t.Status),
			strconv.Itoa(t.Priority),
			t.DueDate.Format("2006-01-02"),
			t.CreatedAt.Format(time.RFC3339),
			t.UpdatedAt.Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		logger.Error(c.Request.Context(), "csv export failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename='%s'", csvFilename(time.Now().UTC())))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}
