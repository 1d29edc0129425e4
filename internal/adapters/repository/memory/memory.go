// Package memory keeps every record in process memory. It backs tests and
// single-instance demo deployments.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/ports"
)

// Store holds the data shared by the repositories of one backend, so that
// a project cascade can remove tasks under the same lock.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*entities.User
	emails   map[string]string
	projects map[string]*entities.Project
	tasks    map[string]*entities.Task
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		users:    make(map[string]*entities.User),
		emails:   make(map[string]string),
		projects: make(map[string]*entities.Project),
		tasks:    make(map[string]*entities.Task),
	}
}

// NewRepositories returns the repositories backed by a fresh store
func NewRepositories() *ports.Repositories {
	s := NewStore()
	return &ports.Repositories{
		Users:    &UserRepository{s: s},
		Projects: &ProjectRepository{s: s},
		Tasks:    &TaskRepository{s: s},
	}
}

// UserRepository implements ports.UserRepository
type UserRepository struct{ s *Store }

func (r *UserRepository) Create(_ context.Context, user *entities.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.emails[user.Email]; taken {
		return entities.ErrEmailTaken
	}
	u := *user
	r.s.users[u.ID] = &u
	r.s.emails[u.Email] = u.ID
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*entities.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, entities.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.emails[email]
	if !ok {
		return nil, entities.ErrUserNotFound
	}
	cp := *r.s.users[id]
	return &cp, nil
}

func (r *UserRepository) GetByIDs(_ context.Context, ids []string) ([]*entities.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]*entities.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			cp := *u
			users = append(users, &cp)
		}
	}
	return users, nil
}

// ProjectRepository implements ports.ProjectRepository
type ProjectRepository struct{ s *Store }

func (r *ProjectRepository) Create(_ context.Context, project *entities.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p := *project
	r.s.projects[p.ID] = &p
	return nil
}

func (r *ProjectRepository) GetByID(_ context.Context, id string) (*entities.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.projects[id]
	if !ok {
		return nil, entities.ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *ProjectRepository) GetOwned(ctx context.Context, id, ownerID string) (*entities.Project, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsOwnedBy(ownerID) {
		return nil, entities.ErrProjectNotFound
	}
	return p, nil
}

func (r *ProjectRepository) Update(_ context.Context, project *entities.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.projects[project.ID]; !ok {
		return entities.ErrProjectNotFound
	}
	p := *project
	r.s.projects[p.ID] = &p
	return nil
}

func (r *ProjectRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for taskID, t := range r.s.tasks {
		if t.ProjectID == id {
			delete(r.s.tasks, taskID)
		}
	}
	delete(r.s.projects, id)
	return nil
}

func (r *ProjectRepository) ListByOwner(_ context.Context, ownerID string) ([]*entities.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	projects := make([]*entities.Project, 0)
	for _, p := range r.s.projects {
		if p.OwnerID == ownerID {
			cp := *p
			projects = append(projects, &cp)
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		return newer(projects[i].CreatedAt, projects[j].CreatedAt, projects[i].ID, projects[j].ID)
	})
	return projects, nil
}

// TaskRepository implements ports.TaskRepository
type TaskRepository struct{ s *Store }

func (r *TaskRepository) Create(_ context.Context, task *entities.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (r *TaskRepository) GetByID(_ context.Context, id string) (*entities.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return nil, entities.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (r *TaskRepository) Update(_ context.Context, task *entities.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.tasks[task.ID]
	if !ok {
		return entities.ErrTaskNotFound
	}
	t := cloneTask(task)
	t.ProjectID = existing.ProjectID
	t.CreatedBy = existing.CreatedBy
	t.CreatedAt = existing.CreatedAt
	r.s.tasks[t.ID] = t
	return nil
}

func (r *TaskRepository) UpdateStatus(_ context.Context, id string, status entities.TaskStatus, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return entities.ErrTaskNotFound
	}
	t.Status = status
	t.UpdatedAt = updatedAt
	return nil
}

func (r *TaskRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tasks[id]; !ok {
		return entities.ErrTaskNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

func (r *TaskRepository) List(_ context.Context, filter ports.TaskFilter) ([]*entities.Task, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	inProjects := make(map[string]bool, len(filter.ProjectIDs))
	for _, id := range filter.ProjectIDs {
		inProjects[id] = true
	}
	search := strings.ToLower(filter.Search)

	matches := make([]*entities.Task, 0)
	for _, t := range r.s.tasks {
		if !inProjects[t.ProjectID] {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		if filter.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		matches = append(matches, t)
	}

	sort.Slice(matches, func(i, j int) bool {
		return newer(matches[i].CreatedAt, matches[j].CreatedAt, matches[i].ID, matches[j].ID)
	})

	total := int64(len(matches))
	start := filter.Offset
	if start < 0 {
		start = 0
	}
	if start > len(matches) {
		start = len(matches)
	}
	end := len(matches)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	page := make([]*entities.Task, 0, end-start)
	for _, t := range matches[start:end] {
		page = append(page, cloneTask(t))
	}
	return page, total, nil
}

func (r *TaskRepository) CountByStatus(_ context.Context, projectIDs []string) (map[string]entities.TaskCounts, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	wanted := make(map[string]bool, len(projectIDs))
	for _, id := range projectIDs {
		wanted[id] = true
	}

	counts := make(map[string]entities.TaskCounts)
	for _, t := range r.s.tasks {
		if !wanted[t.ProjectID] {
			continue
		}
		c := counts[t.ProjectID]
		c.Add(t.Status, 1)
		counts[t.ProjectID] = c
	}
	return counts, nil
}

func (r *TaskRepository) Statistics(_ context.Context, projectID string) (*entities.TaskStatistics, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byStatus := make(map[string]int64)
	byPriority := make(map[string]int64)
	byAssignee := make(map[string]int64)
	stats := &entities.TaskStatistics{}

	for _, t := range r.s.tasks {
		if t.ProjectID != projectID {
			continue
		}
		stats.Total++
		if t.IsDone() {
			stats.Completed++
		}
		byStatus[string(t.Status)]++
		byPriority[string(t.Priority)]++
		if t.AssigneeID != nil {
			byAssignee[*t.AssigneeID]++
		}
	}

	stats.ByStatus = groupCounts(byStatus)
	stats.ByPriority = groupCounts(byPriority)
	stats.ByAssignee = groupCounts(byAssignee)
	return stats, nil
}

func groupCounts(m map[string]int64) []entities.GroupCount {
	out := make([]entities.GroupCount, 0, len(m))
	for k, n := range m {
		out = append(out, entities.GroupCount{Key: k, Count: n})
	}
	entities.SortGroupCounts(out)
	return out
}

// newer orders by creation time descending, breaking ties by id descending
// (ids are time-ordered as well).
func newer(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return idA > idB
}

func cloneTask(t *entities.Task) *entities.Task {
	cp := *t
	if t.Subtasks != nil {
		cp.Subtasks = append([]entities.Subtask(nil), t.Subtasks...)
	}
	if t.Labels != nil {
		cp.Labels = append([]string(nil), t.Labels...)
	}
	return &cp
}
