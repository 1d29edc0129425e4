package entities

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Common errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrProjectNotFound    = errors.New("project not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrSubtaskNotFound    = errors.New("subtask not found")
	ErrAssigneeNotFound   = errors.New("assignee not found")
	ErrEmailTaken         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidPriority    = errors.New("invalid priority")
)

// Enums and types
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusDone       TaskStatus = "done"
)

// TaskStatuses lists every status in board column order.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusDone}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// User represents a registered account
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// UserSummary is the public projection of a user embedded in other resources
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Project represents a project owned by exactly one user
type Project struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	OwnerID     string    `json:"ownerId" db:"owner_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// ProjectSummary is the projection of a project embedded in task responses
type ProjectSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TaskCounts holds the number of tasks per board column
type TaskCounts struct {
	Todo       int64 `json:"todo"`
	InProgress int64 `json:"in-progress"`
	Done       int64 `json:"done"`
}

// Task represents a unit of work inside a project
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         TaskStatus `json:"status"`
	Priority       Priority   `json:"priority"`
	ProjectID      string     `json:"projectId"`
	AssigneeID     *string    `json:"assigneeId"`
	DueDate        *time.Time `json:"dueDate"`
	CreatedBy      string     `json:"createdBy"`
	Subtasks       []Subtask  `json:"subtasks"`
	Labels         []string   `json:"labels"`
	EstimatedHours *float64   `json:"estimatedHours"`
	ActualHours    *float64   `json:"actualHours"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Subtask is embedded in its parent task and has no independent existence
type Subtask struct {
	ID          string     `json:"id" bson:"id"`
	Title       string     `json:"title" bson:"title"`
	Description string     `json:"description" bson:"description"`
	AssigneeID  *string    `json:"assigneeId" bson:"assigneeId"`
	DueDate     *time.Time `json:"dueDate" bson:"dueDate"`
	Completed   bool       `json:"completed" bson:"completed"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
	CreatedBy   string     `json:"createdBy" bson:"createdBy"`
}

// GroupCount is one bucket of a grouped count
type GroupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// TaskStatistics summarizes the tasks of one project
type TaskStatistics struct {
	Total      int64        `json:"total"`
	Completed  int64        `json:"completed"`
	ByStatus   []GroupCount `json:"byStatus"`
	ByPriority []GroupCount `json:"byPriority"`
	ByAssignee []GroupCount `json:"byAssignee"`
}

// NewID returns a fresh 24-hex-character identifier
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// IsValidID reports whether s has the shape of an identifier issued by NewID
func IsValidID(s string) bool {
	return primitive.IsValidObjectID(s)
}

// NormalizeEmail lower-cases and trims an email address for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Business logic methods for User
func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Business logic methods for Project
func (p *Project) IsOwnedBy(userID string) bool {
	return p.OwnerID != "" && p.OwnerID == userID
}

func (p *Project) Summary() *ProjectSummary {
	return &ProjectSummary{ID: p.ID, Name: p.Name}
}

// Add records n tasks in the given status. Unknown statuses are ignored.
func (c *TaskCounts) Add(status TaskStatus, n int64) {
	switch status {
	case TaskStatusTodo:
		c.Todo += n
	case TaskStatusInProgress:
		c.InProgress += n
	case TaskStatusDone:
		c.Done += n
	}
}

func (c TaskCounts) Total() int64 {
	return c.Todo + c.InProgress + c.Done
}

// SortGroupCounts orders buckets by count descending, then key ascending
func SortGroupCounts(gs []GroupCount) {
	sort.Slice(gs, func(i, j int) bool {
		if gs[i].Count != gs[j].Count {
			return gs[i].Count > gs[j].Count
		}
		return gs[i].Key < gs[j].Key
	})
}

// Business logic methods for Task
func (t *Task) IsDone() bool {
	return t.Status == TaskStatusDone
}

// CompletionPercentage derives progress from subtasks, or from the status
// when the task has none.
func (t *Task) CompletionPercentage() int {
	if len(t.Subtasks) == 0 {
		if t.IsDone() {
			return 100
		}
		return 0
	}

	completed := 0
	for _, st := range t.Subtasks {
		if st.Completed {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(t.Subtasks)) * 100))
}

// FindSubtask returns the index of the subtask with the given id, or -1
func (t *Task) FindSubtask(id string) int {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *Task) RemoveSubtask(id string) error {
	idx := t.FindSubtask(id)
	if idx < 0 {
		return ErrSubtaskNotFound
	}
	t.Subtasks = append(t.Subtasks[:idx], t.Subtasks[idx+1:]...)
	return nil
}

// Utility methods
func (ts TaskStatus) IsValid() bool {
	switch ts {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}
