package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/infrastructure/logger"
	"github.com/taskmaster/taskboard/internal/ports"
)

// TaskService handles task and subtask operations. Every operation goes
// through the ownership guard before touching a repository.
type TaskService struct {
	taskRepo    ports.TaskRepository
	projectRepo ports.ProjectRepository
	userRepo    ports.UserRepository
	guard       *OwnershipGuard
	logger      *logger.Logger
	now         func() time.Time
}

var _ ports.TaskService = (*TaskService)(nil)

// NewTaskService creates a new task service
func NewTaskService(taskRepo ports.TaskRepository, projectRepo ports.ProjectRepository, userRepo ports.UserRepository, guard *OwnershipGuard, logger *logger.Logger) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
		userRepo:    userRepo,
		guard:       guard,
		logger:      logger.WithComponent("tasks"),
		now:         time.Now,
	}
}

// ListTasks lists matching tasks across every project the requester owns
func (s *TaskService) ListTasks(ctx context.Context, ownerID string, query ports.ListTasksQuery) (*ports.TaskListResponse, error) {
	page, limit := Page(query.Page, query.Limit, DefaultTaskPageSize)

	projects, err := s.projectRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if len(projects) == 0 {
		return &ports.TaskListResponse{Tasks: []*ports.TaskView{}, Pagination: pagination(page, limit, 0)}, nil
	}

	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	return s.list(ctx, projects, taskFilter(ids, query, page, limit), page, limit)
}

// ListProjectTasks lists matching tasks of one owned project
func (s *TaskService) ListProjectTasks(ctx context.Context, ownerID, projectID string, query ports.ListTasksQuery) (*ports.TaskListResponse, error) {
	page, limit := Page(query.Page, query.Limit, DefaultProjectTaskPageSize)

	project, err := s.guard.RequireProject(ctx, ownerID, projectID, "list tasks")
	if err != nil {
		return nil, err
	}
	return s.list(ctx, []*entities.Project{project}, taskFilter([]string{project.ID}, query, page, limit), page, limit)
}

func (s *TaskService) list(ctx context.Context, projects []*entities.Project, filter ports.TaskFilter, page, limit int) (*ports.TaskListResponse, error) {
	tasks, total, err := s.taskRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	views, err := s.populate(ctx, tasks, projects)
	if err != nil {
		return nil, err
	}
	return &ports.TaskListResponse{Tasks: views, Pagination: pagination(page, limit, total)}, nil
}

// GetTask retrieves one task
func (s *TaskService) GetTask(ctx context.Context, ownerID, id string) (*ports.TaskView, error) {
	task, project, err := s.guard.RequireTask(ctx, ownerID, id, "read")
	if err != nil {
		return nil, err
	}
	return s.populateOne(ctx, task, project)
}

// CreateTask creates a task inside an owned project
func (s *TaskService) CreateTask(ctx context.Context, ownerID string, req ports.CreateTaskRequest) (*ports.TaskView, error) {
	project, err := s.guard.RequireProject(ctx, ownerID, req.ProjectID, "create task")
	if err != nil {
		return nil, err
	}

	assigneeID := req.AssigneeID.Ptr()
	if err := s.checkAssignee(ctx, assigneeID); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = entities.TaskStatusTodo
	}
	priority := req.Priority
	if priority == "" {
		priority = entities.PriorityMedium
	}
	labels := req.Labels
	if labels == nil {
		labels = []string{}
	}

	now := timestamp(s.now())
	task := &entities.Task{
		ID:             entities.NewID(),
		Title:          req.Title,
		Description:    req.Description,
		Status:         status,
		Priority:       priority,
		ProjectID:      project.ID,
		AssigneeID:     assigneeID,
		DueDate:        req.DueDate.Ptr(),
		CreatedBy:      ownerID,
		Subtasks:       []entities.Subtask{},
		Labels:         labels,
		EstimatedHours: req.EstimatedHours.Ptr(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Infow("Task created successfully", "task_id", task.ID, "project_id", project.ID)
	return s.populateOne(ctx, task, project)
}

// UpdateTask applies the fields present in req. The project of a task never
// changes.
func (s *TaskService) UpdateTask(ctx context.Context, ownerID, id string, req ports.UpdateTaskRequest) (*ports.TaskView, error) {
	task, project, err := s.guard.RequireTask(ctx, ownerID, id, "update")
	if err != nil {
		return nil, err
	}

	if req.AssigneeID.IsSet() {
		if err := s.checkAssignee(ctx, req.AssigneeID.Ptr()); err != nil {
			return nil, err
		}
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.Labels != nil {
		task.Labels = append([]string{}, (*req.Labels)...)
	}
	req.AssigneeID.Apply(&task.AssigneeID)
	req.DueDate.Apply(&task.DueDate)
	req.EstimatedHours.Apply(&task.EstimatedHours)
	req.ActualHours.Apply(&task.ActualHours)
	task.UpdatedAt = timestamp(s.now())

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.logger.Infow("Task updated successfully", "task_id", task.ID)
	return s.populateOne(ctx, task, project)
}

// UpdateTaskStatus moves a task to another column. Any transition is allowed.
func (s *TaskService) UpdateTaskStatus(ctx context.Context, ownerID, id string, req ports.UpdateTaskStatusRequest) (*ports.StatusUpdateResponse, error) {
	task, _, err := s.guard.RequireTask(ctx, ownerID, id, "update status")
	if err != nil {
		return nil, err
	}

	updatedAt := timestamp(s.now())
	if err := s.taskRepo.UpdateStatus(ctx, task.ID, req.Status, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	s.logger.Infow("Task status updated", "task_id", task.ID, "from", task.Status, "to", req.Status)
	return &ports.StatusUpdateResponse{ID: task.ID, Status: req.Status, UpdatedAt: updatedAt}, nil
}

// DeleteTask removes a task with its subtasks
func (s *TaskService) DeleteTask(ctx context.Context, ownerID, id string) error {
	task, _, err := s.guard.RequireTask(ctx, ownerID, id, "delete")
	if err != nil {
		return err
	}

	if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.logger.Infow("Task deleted successfully", "task_id", task.ID)
	return nil
}

// AddSubtask appends a subtask to a task
func (s *TaskService) AddSubtask(ctx context.Context, ownerID, taskID string, req ports.AddSubtaskRequest) (*entities.Subtask, error) {
	task, _, err := s.guard.RequireTask(ctx, ownerID, taskID, "add subtask")
	if err != nil {
		return nil, err
	}

	assigneeID := req.AssigneeID.Ptr()
	if err := s.checkAssignee(ctx, assigneeID); err != nil {
		return nil, err
	}

	now := timestamp(s.now())
	subtask := entities.Subtask{
		ID:          entities.NewID(),
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  assigneeID,
		DueDate:     req.DueDate.Ptr(),
		Completed:   req.Completed,
		CreatedAt:   now,
		CreatedBy:   ownerID,
	}
	task.Subtasks = append(task.Subtasks, subtask)
	task.UpdatedAt = now

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to add subtask: %w", err)
	}
	return &subtask, nil
}

// UpdateSubtask applies the fields present in req to one subtask
func (s *TaskService) UpdateSubtask(ctx context.Context, ownerID, taskID, subtaskID string, req ports.UpdateSubtaskRequest) (*entities.Subtask, error) {
	task, _, err := s.guard.RequireTask(ctx, ownerID, taskID, "update subtask")
	if err != nil {
		return nil, err
	}

	idx := task.FindSubtask(subtaskID)
	if idx < 0 {
		return nil, entities.ErrSubtaskNotFound
	}

	if req.AssigneeID.IsSet() {
		if err := s.checkAssignee(ctx, req.AssigneeID.Ptr()); err != nil {
			return nil, err
		}
	}

	st := &task.Subtasks[idx]
	if req.Completed != nil {
		st.Completed = *req.Completed
	}
	if req.Title != nil {
		st.Title = *req.Title
	}
	if req.Description != nil {
		st.Description = *req.Description
	}
	req.AssigneeID.Apply(&st.AssigneeID)
	req.DueDate.Apply(&st.DueDate)

	now := timestamp(s.now())
	st.UpdatedAt = &now
	task.UpdatedAt = now

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update subtask: %w", err)
	}

	updated := *st
	return &updated, nil
}

// DeleteSubtask removes one subtask
func (s *TaskService) DeleteSubtask(ctx context.Context, ownerID, taskID, subtaskID string) error {
	task, _, err := s.guard.RequireTask(ctx, ownerID, taskID, "delete subtask")
	if err != nil {
		return err
	}

	if err := task.RemoveSubtask(subtaskID); err != nil {
		return err
	}
	task.UpdatedAt = timestamp(s.now())

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return fmt.Errorf("failed to delete subtask: %w", err)
	}
	return nil
}

func (s *TaskService) checkAssignee(ctx context.Context, assigneeID *string) error {
	if assigneeID == nil {
		return nil
	}
	if _, err := s.userRepo.GetByID(ctx, *assigneeID); err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			return entities.ErrAssigneeNotFound
		}
		return fmt.Errorf("failed to check assignee: %w", err)
	}
	return nil
}

func (s *TaskService) populateOne(ctx context.Context, task *entities.Task, project *entities.Project) (*ports.TaskView, error) {
	views, err := s.populate(ctx, []*entities.Task{task}, []*entities.Project{project})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// populate attaches assignee, creator and project summaries, loading every
// referenced user in one lookup
func (s *TaskService) populate(ctx context.Context, tasks []*entities.Task, projects []*entities.Project) ([]*ports.TaskView, error) {
	projectByID := make(map[string]*entities.Project, len(projects))
	for _, p := range projects {
		projectByID[p.ID] = p
	}

	seen := make(map[string]bool)
	var userIDs []string
	for _, t := range tasks {
		for _, id := range []*string{t.AssigneeID, &t.CreatedBy} {
			if id != nil && *id != "" && !seen[*id] {
				seen[*id] = true
				userIDs = append(userIDs, *id)
			}
		}
	}

	userByID := make(map[string]*entities.User, len(userIDs))
	if len(userIDs) > 0 {
		users, err := s.userRepo.GetByIDs(ctx, userIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load users: %w", err)
		}
		for _, u := range users {
			userByID[u.ID] = u
		}
	}

	views := make([]*ports.TaskView, len(tasks))
	for i, t := range tasks {
		if t.Subtasks == nil {
			t.Subtasks = []entities.Subtask{}
		}
		if t.Labels == nil {
			t.Labels = []string{}
		}
		v := &ports.TaskView{Task: t, CompletionPercentage: t.CompletionPercentage()}
		if t.AssigneeID != nil {
			if u, ok := userByID[*t.AssigneeID]; ok {
				v.Assignee = u.Summary()
			}
		}
		if u, ok := userByID[t.CreatedBy]; ok {
			v.Creator = u.Summary()
		}
		if p, ok := projectByID[t.ProjectID]; ok {
			v.Project = p.Summary()
		}
		views[i] = v
	}
	return views, nil
}
