// Package postgres stores users, projects and tasks in PostgreSQL through
// sqlx. Subtasks live in a JSONB column of their task and labels in a text
// array, so a task is always read and written as one row.
package postgres

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/infrastructure/database"
	"github.com/taskmaster/taskboard/internal/ports"
)

const uniqueViolation = "23505"

// NewRepositories creates the repositories backed by db
func NewRepositories(db *database.DB) *ports.Repositories {
	return &ports.Repositories{
		Users:    NewUserRepository(db),
		Projects: NewProjectRepository(db),
		Tasks:    NewTaskRepository(db),
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// likePattern turns a literal search term into a contains-pattern for
// ILIKE ... ESCAPE '\'.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// subtaskList is the JSONB encoding of a task's subtasks
type subtaskList []entities.Subtask

func (l subtaskList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]entities.Subtask(l))
	if err != nil {
		return nil, fmt.Errorf("encode subtasks: %w", err)
	}
	return string(b), nil
}

func (l *subtaskList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = subtaskList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("decode subtasks: unsupported type %T", src)
	}

	var out []entities.Subtask
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decode subtasks: %w", err)
	}
	for i := range out {
		out[i].CreatedAt = out[i].CreatedAt.UTC()
		out[i].DueDate = utcPtr(out[i].DueDate)
		out[i].UpdatedAt = utcPtr(out[i].UpdatedAt)
	}
	if out == nil {
		out = []entities.Subtask{}
	}
	*l = out
	return nil
}
