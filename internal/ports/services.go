package ports

import (
	"context"
	"time"

	"github.com/taskmaster/taskboard/internal/domain/entities"
)

// AuthService interface for authentication operations
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	// Authenticate verifies a bearer token and loads its user. Every failure
	// is entities.ErrUnauthenticated wrapped with the reason.
	Authenticate(ctx context.Context, token string) (*entities.User, *Claims, error)
	Logout(ctx context.Context, token string) error
	GetProfile(ctx context.Context, userID string) (*entities.User, error)
}

// ProjectService interface for project management operations
type ProjectService interface {
	ListProjects(ctx context.Context, ownerID string) ([]*ProjectView, error)
	GetProject(ctx context.Context, ownerID, id string) (*ProjectView, error)
	CreateProject(ctx context.Context, ownerID string, req CreateProjectRequest) (*entities.Project, error)
	UpdateProject(ctx context.Context, ownerID, id string, req UpdateProjectRequest) (*entities.Project, error)
	DeleteProject(ctx context.Context, ownerID, id string) error
	GetStatistics(ctx context.Context, ownerID, id string) (*entities.TaskStatistics, error)
}

// TaskService interface for task and subtask operations
type TaskService interface {
	ListTasks(ctx context.Context, ownerID string, query ListTasksQuery) (*TaskListResponse, error)
	ListProjectTasks(ctx context.Context, ownerID, projectID string, query ListTasksQuery) (*TaskListResponse, error)
	GetTask(ctx context.Context, ownerID, id string) (*TaskView, error)
	CreateTask(ctx context.Context, ownerID string, req CreateTaskRequest) (*TaskView, error)
	UpdateTask(ctx context.Context, ownerID, id string, req UpdateTaskRequest) (*TaskView, error)
	UpdateTaskStatus(ctx context.Context, ownerID, id string, req UpdateTaskStatusRequest) (*StatusUpdateResponse, error)
	DeleteTask(ctx context.Context, ownerID, id string) error
	AddSubtask(ctx context.Context, ownerID, taskID string, req AddSubtaskRequest) (*entities.Subtask, error)
	UpdateSubtask(ctx context.Context, ownerID, taskID, subtaskID string, req UpdateSubtaskRequest) (*entities.Subtask, error)
	DeleteSubtask(ctx context.Context, ownerID, taskID, subtaskID string) error
}

// Request/Response Types

// Auth related types
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,strongpassword"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// Claims is the verified content of a bearer token
type Claims struct {
	UserID    string    `json:"id"`
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"exp"`
}

// Project related types
type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=3,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// ProjectView is a project with its per-status task counts
type ProjectView struct {
	*entities.Project
	TaskCounts entities.TaskCounts `json:"taskCounts"`
	TotalTasks int64               `json:"totalTasks"`
}

// Task related types
type CreateTaskRequest struct {
	ProjectID      string              `json:"projectId" validate:"required,objectid"`
	Title          string              `json:"title" validate:"required,min=1,max=200"`
	Description    string              `json:"description" validate:"max=10000"`
	Status         entities.TaskStatus `json:"status" validate:"omitempty,taskstatus"`
	Priority       entities.Priority   `json:"priority" validate:"omitempty,taskpriority"`
	AssigneeID     Optional[string]    `json:"assigneeId" validate:"omitempty,objectid"`
	DueDate        Optional[time.Time] `json:"dueDate"`
	EstimatedHours Optional[float64]   `json:"estimatedHours" validate:"omitempty,min=0,max=1000"`
	Labels         []string            `json:"labels" validate:"omitempty,dive,max=20"`
}

// UpdateTaskRequest carries a partial task update. projectId is not a
// field: strict decoding rejects it.
type UpdateTaskRequest struct {
	Title          *string              `json:"title" validate:"omitempty,min=1,max=200"`
	Description    *string              `json:"description" validate:"omitempty,max=10000"`
	Status         *entities.TaskStatus `json:"status" validate:"omitempty,taskstatus"`
	Priority       *entities.Priority   `json:"priority" validate:"omitempty,taskpriority"`
	AssigneeID     Optional[string]     `json:"assigneeId" validate:"omitempty,objectid"`
	DueDate        Optional[time.Time]  `json:"dueDate"`
	EstimatedHours Optional[float64]    `json:"estimatedHours" validate:"omitempty,min=0,max=1000"`
	ActualHours    Optional[float64]    `json:"actualHours" validate:"omitempty,min=0"`
	Labels         *[]string            `json:"labels" validate:"omitempty,dive,max=20"`
}

type UpdateTaskStatusRequest struct {
	Status entities.TaskStatus `json:"status" validate:"required,taskstatus"`
}

type AddSubtaskRequest struct {
	Title       string              `json:"title" validate:"required,min=1,max=200"`
	Description string              `json:"description" validate:"max=500"`
	AssigneeID  Optional[string]    `json:"assigneeId" validate:"omitempty,objectid"`
	DueDate     Optional[time.Time] `json:"dueDate"`
	Completed   bool                `json:"completed"`
}

type UpdateSubtaskRequest struct {
	Completed   *bool               `json:"completed"`
	Title       *string             `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string             `json:"description" validate:"omitempty,max=500"`
	AssigneeID  Optional[string]    `json:"assigneeId" validate:"omitempty,objectid"`
	DueDate     Optional[time.Time] `json:"dueDate"`
}

// ListTasksQuery holds the raw listing parameters. Page and Limit stay
// strings so that non-numeric values can fall back to the defaults.
type ListTasksQuery struct {
	Status   string `query:"status" validate:"omitempty,oneof=all todo in-progress done"`
	Priority string `query:"priority" validate:"omitempty,oneof=all low medium high"`
	Assignee string `query:"assignee" validate:"omitempty,objectid|eq=all"`
	Search   string `query:"search"`
	Page     string `query:"page"`
	Limit    string `query:"limit"`
}

// TaskView is a task with its populated references
type TaskView struct {
	*entities.Task
	Assignee             *entities.UserSummary    `json:"assignee"`
	Creator              *entities.UserSummary    `json:"creator"`
	Project              *entities.ProjectSummary `json:"project"`
	CompletionPercentage int                      `json:"completionPercentage"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

type TaskListResponse struct {
	Tasks      []*TaskView `json:"tasks"`
	Pagination Pagination  `json:"pagination"`
}

type StatusUpdateResponse struct {
	ID        string              `json:"id"`
	Status    entities.TaskStatus `json:"status"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
