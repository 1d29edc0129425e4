package ports

import (
	"context"
	"time"

	"github.com/taskmaster/taskboard/internal/domain/entities"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// Create stores a new user. It returns entities.ErrEmailTaken when the
	// email is already registered.
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	// GetByIDs returns the users that exist among ids, in no particular order.
	GetByIDs(ctx context.Context, ids []string) ([]*entities.User, error)
}

// ProjectRepository defines the interface for project data operations
type ProjectRepository interface {
	Create(ctx context.Context, project *entities.Project) error
	GetByID(ctx context.Context, id string) (*entities.Project, error)
	// GetOwned is the owner-scoped lookup: it returns entities.ErrProjectNotFound
	// unless the project exists and belongs to ownerID.
	GetOwned(ctx context.Context, id, ownerID string) (*entities.Project, error)
	Update(ctx context.Context, project *entities.Project) error
	// Delete removes every task of the project and then the project itself.
	// Calling it again after a partial failure finishes the cleanup.
	Delete(ctx context.Context, id string) error
	// ListByOwner returns the owner's projects, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*entities.Project, error)
}

// TaskRepository defines the interface for task data operations
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task) error
	GetByID(ctx context.Context, id string) (*entities.Task, error)
	// Update replaces every mutable field of the task, including its
	// embedded subtasks. ProjectID and CreatedBy are never changed.
	Update(ctx context.Context, task *entities.Task) error
	UpdateStatus(ctx context.Context, id string, status entities.TaskStatus, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	// List returns one page of matching tasks, newest first, and the total
	// number of matches.
	List(ctx context.Context, filter TaskFilter) ([]*entities.Task, int64, error)
	// CountByStatus groups the tasks of the given projects by (project, status)
	// in a single query. Projects without tasks are absent from the result.
	CountByStatus(ctx context.Context, projectIDs []string) (map[string]entities.TaskCounts, error)
	// Statistics computes status, priority and assignee breakdowns of one
	// project in a single aggregation.
	Statistics(ctx context.Context, projectID string) (*entities.TaskStatistics, error)
}

// CacheRepository defines the interface for short-lived shared state.
// Entries expire on their own; nothing stored here is durable.
type CacheRepository interface {
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	// Increment adds one to the counter at key and returns the new value.
	// The window starts with the first increment; the counter disappears
	// when it ends.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Repositories bundles the persistence ports of one storage backend
type Repositories struct {
	Users    UserRepository
	Projects ProjectRepository
	Tasks    TaskRepository
}

// TaskFilter restricts a task listing. ProjectIDs is required: an empty
// slice matches nothing.
type TaskFilter struct {
	ProjectIDs []string
	Status     *entities.TaskStatus
	Priority   *entities.Priority
	AssigneeID *string
	// Search is a literal, already sanitized term matched case-insensitively
	// against title and description.
	Search string
	Limit  int
	Offset int
}
