package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andrewabdallah/taskmanager/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `t.id, t.title, t.description, t.owner_id, u.username, t.status, t.priority,
		t.due_date, t.created_at, t.updated_at, t.deleted`

// PGTaskRepo implements TaskRepo with Postgres.
type PGTaskRepo struct {
	db *pgxpool.Pool
}

// NewPGTaskRepo returns a new PGTaskRepo.
func NewPGTaskRepo(db *pgxpool.Pool) *PGTaskRepo {
	return &PGTaskRepo{db: db}
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	var status string
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.OwnerID, &t.OwnerName, &status,
		&t.Priority, &t.DueDate, &t.CreatedAt, &t.UpdatedAt, &t.Deleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.Status = domain.Status(status)
	t.StartTracking()
	return &t, nil
}

func (r *PGTaskRepo) Create(ctx context.Context, t *domain.Task) error {
	if t.ID == uuid.Nil {
		t.ID = domain.NewID()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := r.db.Exec(ctx, `
		INSERT INTO task (id, title, description, owner_id, status, priority, due_date, created_at, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.Title, t.Description, t.OwnerID, string(t.Status), t.Priority, t.DueDate,
		t.CreatedAt, t.UpdatedAt, t.Deleted,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	t.ResetChanges()
	return nil
}

func (r *PGTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM task t JOIN users u ON u.id = t.owner_id
		WHERE t.id = $1 AND t.deleted = FALSE`
	return scanTask(r.db.QueryRow(ctx, query, id))
}

func (r *PGTaskRepo) GetAnyByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM task t JOIN users u ON u.id = t.owner_id
		WHERE t.id = $1`
	return scanTask(r.db.QueryRow(ctx, query, id))
}

func (r *PGTaskRepo) List(ctx context.Context, ownerID int64, f TaskFilter, ordering []string) ([]*domain.Task, error) {
	where := []string{"t.owner_id = $1", "t.deleted = FALSE"}
	args := []any{ownerID}
	where, args = appendFilter(where, args, f)

	query := `
		SELECT ` + taskColumns + `
		FROM task t JOIN users u ON u.id = t.owner_id
		WHERE ` + strings.Join(where, " AND ") + `
		` + orderClause(ordering)
	return r.queryTasks(ctx, query, args)
}

func (r *PGTaskRepo) ListAll(ctx context.Context, ownerID int64) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM task t JOIN users u ON u.id = t.owner_id
		WHERE t.owner_id = $1
		` + orderClause(nil)
	return r.queryTasks(ctx, query, []any{ownerID})
}

func (r *PGTaskRepo) queryTasks(ctx context.Context, query string, args []any) ([]*domain.Task, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *PGTaskRepo) Save(ctx context.Context, t *domain.Task, fields ...string) error {
	if t.IsNew() {
		return r.Create(ctx, t)
	}
	target := fields
	if len(target) == 0 {
		target = t.PendingFields()
	}
	target = normalizeFields(target, true)
	t.UpdatedAt = time.Now().UTC()

	set := make([]string, 0, len(target))
	args := []any{t.ID}
	for _, f := range target {
		args = append(args, fieldValue(t, f))
		set = append(set, fmt.Sprintf("%s = $%d", fieldColumns[f], len(args)))
	}
	tag, err := r.db.Exec(ctx, `UPDATE task SET `+strings.Join(set, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	t.ResetChanges()
	return nil
}

func (r *PGTaskRepo) Delete(ctx context.Context, t *domain.Task, permanent bool) error {
	if permanent {
		tag, err := r.db.Exec(ctx, `DELETE FROM task WHERE id = $1`, t.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	}
	t.MarkDeleted()
	return r.Save(ctx, t, domain.FieldDeleted)
}

func (r *PGTaskRepo) DeleteMatching(ctx context.Context, ownerID int64, f TaskFilter, permanent bool) (int64, error) {
	where := []string{"owner_id = $1"}
	args := []any{ownerID}
	where, args = appendBareFilter(where, args, f)

	if permanent {
		tag, err := r.db.Exec(ctx, `DELETE FROM task WHERE `+strings.Join(where, " AND "), args...)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}
	where = append(where, "deleted = FALSE")
	args = append(args, time.Now().UTC())
	query := fmt.Sprintf(`UPDATE task SET deleted = TRUE, updated_at = $%d WHERE %s`,
		len(args), strings.Join(where, " AND "))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PGTaskRepo) Recover(ctx context.Context, t *domain.Task) error {
	t.MarkRecovered()
	return r.Save(ctx, t, domain.FieldDeleted)
}

func (r *PGTaskRepo) RecoverMatching(ctx context.Context, ownerID int64, f TaskFilter) (int64, error) {
	where := []string{"owner_id = $1", "deleted = TRUE"}
	args := []any{ownerID}
	where, args = appendBareFilter(where, args, f)
	args = append(args, time.Now().UTC())
	query := fmt.Sprintf(`UPDATE task SET deleted = FALSE, updated_at = $%d WHERE %s`,
		len(args), strings.Join(where, " AND "))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PGTaskRepo) BulkUpdate(ctx context.Context, tasks []*domain.Task, fields []string) error {
	now := time.Now().UTC()
	for _, t := range tasks {
		t.UpdatedAt = now
	}
	return r.bulkUpdate(ctx, tasks, normalizeFields(fields, true))
}

func (r *PGTaskRepo) BulkUpdateWithoutTimestamp(ctx context.Context, tasks []*domain.Task, fields []string) error {
	return r.bulkUpdate(ctx, tasks, normalizeFields(fields, false))
}

// bulkUpdate writes the given fields for every task, batched so a single
// statement never covers more than rowsBatchSize rows.
func (r *PGTaskRepo) bulkUpdate(ctx context.Context, tasks []*domain.Task, fields []string) error {
	if len(tasks) == 0 || len(fields) == 0 {
		return nil
	}
	set := make([]string, 0, len(fields))
	for i, f := range fields {
		set = append(set, fmt.Sprintf("%s = $%d", fieldColumns[f], i+2))
	}
	query := `UPDATE task SET ` + strings.Join(set, ", ") + ` WHERE id = $1`

	for start := 0; start < len(tasks); start += rowsBatchSize {
		end := start + rowsBatchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		batch := &pgx.Batch{}
		for _, t := range tasks[start:end] {
			args := make([]any, 0, len(fields)+1)
			args = append(args, t.ID)
			for _, f := range fields {
				args = append(args, fieldValue(t, f))
			}
			batch.Queue(query, args...)
		}
		br := r.db.SendBatch(ctx, batch)
		var execErr error
		for range tasks[start:end] {
			if _, err := br.Exec(); err != nil && execErr == nil {
				execErr = err
			}
		}
		if err := br.Close(); err != nil && execErr == nil {
			execErr = err
		}
		if execErr != nil {
			return fmt.Errorf("bulk update tasks: %w", execErr)
		}
	}
	for _, t := range tasks {
		t.ResetChanges()
	}
	return nil
}

// appendFilter adds filter conditions against the aliased task table.
func appendFilter(where []string, args []any, f TaskFilter) ([]string, []any) {
	return appendPrefixedFilter(where, args, f, "t.")
}

// appendBareFilter adds filter conditions without a table alias.
func appendBareFilter(where []string, args []any, f TaskFilter) ([]string, []any) {
	return appendPrefixedFilter(where, args, f, "")
}

func appendPrefixedFilter(where []string, args []any, f TaskFilter, alias string) ([]string, []any) {
	if f.MinPriority != nil {
		args = append(args, *f.MinPriority)
		where = append(where, fmt.Sprintf("%spriority >= $%d", alias, len(args)))
	}
	if f.MaxPriority != nil {
		args = append(args, *f.MaxPriority)
		where = append(where, fmt.Sprintf("%spriority <= $%d", alias, len(args)))
	}
	if f.DueBefore != nil {
		args = append(args, *f.DueBefore)
		where = append(where, fmt.Sprintf("%sdue_date <= $%d", alias, len(args)))
	}
	if f.DueAfter != nil {
		args = append(args, *f.DueAfter)
		where = append(where, fmt.Sprintf("%sdue_date >= $%d", alias, len(args)))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("%sstatus = $%d", alias, len(args)))
	}
	return where, args
}

func orderClause(ordering []string) string {
	terms := make([]string, 0, len(ordering)+1)
	for _, o := range SanitizeOrdering(ordering) {
		name := strings.TrimPrefix(o, "-")
		col := "t." + OrderableFields[name]
		if strings.HasPrefix(o, "-") {
			col += " DESC"
		}
		terms = append(terms, col)
	}
	return "ORDER BY " + strings.Join(terms, ", ")
}
