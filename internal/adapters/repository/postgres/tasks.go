package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/infrastructure/database"
	"github.com/taskmaster/taskboard/internal/ports"
)

const taskColumns = `id, title, description, status, priority, project_id, assignee_id, due_date,
	created_by, subtasks, labels, estimated_hours, actual_hours, created_at, updated_at`

type taskRow struct {
	ID             string         `db:"id"`
	Title          string         `db:"title"`
	Description    string         `db:"description"`
	Status         string         `db:"status"`
	Priority       string         `db:"priority"`
	ProjectID      string         `db:"project_id"`
	AssigneeID     *string        `db:"assignee_id"`
	DueDate        *time.Time     `db:"due_date"`
	CreatedBy      string         `db:"created_by"`
	Subtasks       subtaskList    `db:"subtasks"`
	Labels         pq.StringArray `db:"labels"`
	EstimatedHours *float64       `db:"estimated_hours"`
	ActualHours    *float64       `db:"actual_hours"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r taskRow) toEntity() *entities.Task {
	labels := []string(r.Labels)
	if labels == nil {
		labels = []string{}
	}
	subtasks := []entities.Subtask(r.Subtasks)
	if subtasks == nil {
		subtasks = []entities.Subtask{}
	}
	return &entities.Task{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Status:         entities.TaskStatus(r.Status),
		Priority:       entities.Priority(r.Priority),
		ProjectID:      r.ProjectID,
		AssigneeID:     r.AssigneeID,
		DueDate:        utcPtr(r.DueDate),
		CreatedBy:      r.CreatedBy,
		Subtasks:       subtasks,
		Labels:         labels,
		EstimatedHours: r.EstimatedHours,
		ActualHours:    r.ActualHours,
		CreatedAt:      utc(r.CreatedAt),
		UpdatedAt:      utc(r.UpdatedAt),
	}
}

func labelArray(labels []string) pq.StringArray {
	if labels == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(labels)
}

// TaskRepository implements ports.TaskRepository
type TaskRepository struct {
	db *database.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *database.DB) ports.TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *entities.Task) error {
	query := `INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.DB.ExecContext(ctx, query,
		task.ID, task.Title, task.Description, task.Status, task.Priority, task.ProjectID,
		task.AssigneeID, task.DueDate, task.CreatedBy, subtaskList(task.Subtasks), labelArray(task.Labels),
		task.EstimatedHours, task.ActualHours, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*entities.Task, error) {
	var row taskRow
	if err := r.db.DB.GetContext(ctx, &row, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return row.toEntity(), nil
}

func (r *TaskRepository) Update(ctx context.Context, task *entities.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5, assignee_id = $6,
			due_date = $7, subtasks = $8, labels = $9, estimated_hours = $10,
			actual_hours = $11, updated_at = $12
		WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query,
		task.ID, task.Title, task.Description, task.Status, task.Priority, task.AssigneeID,
		task.DueDate, subtaskList(task.Subtasks), labelArray(task.Labels), task.EstimatedHours,
		task.ActualHours, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return expectRow(result, entities.ErrTaskNotFound)
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status entities.TaskStatus, updatedAt time.Time) error {
	result, err := r.db.DB.ExecContext(ctx, `UPDATE tasks SET status = $2, updated_at = $3 WHERE id = $1`, id, status, updatedAt)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return expectRow(result, entities.ErrTaskNotFound)
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return expectRow(result, entities.ErrTaskNotFound)
}

// where builds the filter clause shared by the page and the count query
func where(filter ports.TaskFilter) (string, []interface{}) {
	conds := []string{"project_id = ANY($1)"}
	args := []interface{}{pq.Array(filter.ProjectIDs)}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if filter.Status != nil {
		add("status = ?", string(*filter.Status))
	}
	if filter.Priority != nil {
		add("priority = ?", string(*filter.Priority))
	}
	if filter.AssigneeID != nil {
		add("assignee_id = ?", *filter.AssigneeID)
	}
	if filter.Search != "" {
		add(`(title ILIKE ? ESCAPE '\' OR description ILIKE ? ESCAPE '\')`, likePattern(filter.Search))
	}
	return strings.Join(conds, " AND "), args
}

func (r *TaskRepository) List(ctx context.Context, filter ports.TaskFilter) ([]*entities.Task, int64, error) {
	if len(filter.ProjectIDs) == 0 {
		return []*entities.Task{}, 0, nil
	}

	cond, args := where(filter)

	var total int64
	if err := r.db.DB.GetContext(ctx, &total, `SELECT COUNT(*) FROM tasks WHERE `+cond, args...); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		taskColumns, cond, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	var rows []taskRow
	if err := r.db.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]*entities.Task, len(rows))
	for i, row := range rows {
		tasks[i] = row.toEntity()
	}
	return tasks, total, nil
}

func (r *TaskRepository) CountByStatus(ctx context.Context, projectIDs []string) (map[string]entities.TaskCounts, error) {
	counts := make(map[string]entities.TaskCounts)
	if len(projectIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT project_id, status, COUNT(*) AS count
		FROM tasks
		WHERE project_id = ANY($1)
		GROUP BY project_id, status`

	var rows []struct {
		ProjectID string `db:"project_id"`
		Status    string `db:"status"`
		Count     int64  `db:"count"`
	}
	if err := r.db.DB.SelectContext(ctx, &rows, query, pq.Array(projectIDs)); err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}

	for _, row := range rows {
		c := counts[row.ProjectID]
		c.Add(entities.TaskStatus(row.Status), row.Count)
		counts[row.ProjectID] = c
	}
	return counts, nil
}

// Statistics groups the project's tasks by status, priority and assignee in
// one GROUPING SETS query; the empty set carries the total.
func (r *TaskRepository) Statistics(ctx context.Context, projectID string) (*entities.TaskStatistics, error) {
	query := `
		SELECT GROUPING(status) AS g_status, GROUPING(priority) AS g_priority,
			GROUPING(assignee_id) AS g_assignee, status, priority, assignee_id, COUNT(*) AS count
		FROM tasks
		WHERE project_id = $1
		GROUP BY GROUPING SETS ((status), (priority), (assignee_id), ())`

	var rows []struct {
		GStatus    int     `db:"g_status"`
		GPriority  int     `db:"g_priority"`
		GAssignee  int     `db:"g_assignee"`
		Status     *string `db:"status"`
		Priority   *string `db:"priority"`
		AssigneeID *string `db:"assignee_id"`
		Count      int64   `db:"count"`
	}
	if err := r.db.DB.SelectContext(ctx, &rows, query, projectID); err != nil {
		return nil, fmt.Errorf("task statistics: %w", err)
	}

	stats := &entities.TaskStatistics{
		ByStatus:   []entities.GroupCount{},
		ByPriority: []entities.GroupCount{},
		ByAssignee: []entities.GroupCount{},
	}
	for _, row := range rows {
		switch {
		case row.GStatus == 0 && row.Status != nil:
			stats.ByStatus = append(stats.ByStatus, entities.GroupCount{Key: *row.Status, Count: row.Count})
			if entities.TaskStatus(*row.Status) == entities.TaskStatusDone {
				stats.Completed = row.Count
			}
		case row.GPriority == 0 && row.Priority != nil:
			stats.ByPriority = append(stats.ByPriority, entities.GroupCount{Key: *row.Priority, Count: row.Count})
		case row.GAssignee == 0:
			if row.AssigneeID != nil {
				stats.ByAssignee = append(stats.ByAssignee, entities.GroupCount{Key: *row.AssigneeID, Count: row.Count})
			}
		default:
			stats.Total = row.Count
		}
	}

	entities.SortGroupCounts(stats.ByStatus)
	entities.SortGroupCounts(stats.ByPriority)
	entities.SortGroupCounts(stats.ByAssignee)
	return stats, nil
}
