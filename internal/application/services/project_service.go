package services

import (
	"context"
	"fmt"
	"time"

	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/infrastructure/logger"
	"github.com/taskmaster/taskboard/internal/ports"
)

// ProjectService handles project-related operations
type ProjectService struct {
	projectRepo ports.ProjectRepository
	taskRepo    ports.TaskRepository
	guard       *OwnershipGuard
	logger      *logger.Logger
	now         func() time.Time
}

var _ ports.ProjectService = (*ProjectService)(nil)

// NewProjectService creates a new project service
func NewProjectService(projectRepo ports.ProjectRepository, taskRepo ports.TaskRepository, guard *OwnershipGuard, logger *logger.Logger) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		taskRepo:    taskRepo,
		guard:       guard,
		logger:      logger.WithComponent("projects"),
		now:         time.Now,
	}
}

// ListProjects returns the owner's projects with their task counts, all
// counted in one grouped query
func (s *ProjectService) ListProjects(ctx context.Context, ownerID string) ([]*ports.ProjectView, error) {
	projects, err := s.projectRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if len(projects) == 0 {
		return []*ports.ProjectView{}, nil
	}

	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}

	counts, err := s.taskRepo.CountByStatus(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	views := make([]*ports.ProjectView, len(projects))
	for i, p := range projects {
		views[i] = projectView(p, counts[p.ID])
	}
	return views, nil
}

// GetProject retrieves one owned project with its task counts
func (s *ProjectService) GetProject(ctx context.Context, ownerID, id string) (*ports.ProjectView, error) {
	project, err := s.requireProject(ctx, ownerID, id, "read")
	if err != nil {
		return nil, err
	}

	counts, err := s.taskRepo.CountByStatus(ctx, []string{project.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	return projectView(project, counts[project.ID]), nil
}

// CreateProject creates a new project owned by ownerID
func (s *ProjectService) CreateProject(ctx context.Context, ownerID string, req ports.CreateProjectRequest) (*entities.Project, error) {
	now := timestamp(s.now())
	project := &entities.Project{
		ID:          entities.NewID(),
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.Infow("Project created successfully", "project_id", project.ID, "owner_id", ownerID)
	return project, nil
}

// UpdateProject applies the fields present in req
func (s *ProjectService) UpdateProject(ctx context.Context, ownerID, id string, req ports.UpdateProjectRequest) (*entities.Project, error) {
	project, err := s.requireProject(ctx, ownerID, id, "update")
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	project.UpdatedAt = timestamp(s.now())

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	s.logger.Infow("Project updated successfully", "project_id", project.ID)
	return project, nil
}

// DeleteProject removes the project and all of its tasks
func (s *ProjectService) DeleteProject(ctx context.Context, ownerID, id string) error {
	project, err := s.requireProject(ctx, ownerID, id, "delete")
	if err != nil {
		return err
	}

	if err := s.projectRepo.Delete(ctx, project.ID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	s.logger.Infow("Project deleted successfully", "project_id", project.ID)
	return nil
}

// GetStatistics summarizes the tasks of an owned project
func (s *ProjectService) GetStatistics(ctx context.Context, ownerID, id string) (*entities.TaskStatistics, error) {
	project, err := s.requireProject(ctx, ownerID, id, "statistics")
	if err != nil {
		return nil, err
	}

	stats, err := s.taskRepo.Statistics(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute statistics: %w", err)
	}
	return stats, nil
}

func (s *ProjectService) requireProject(ctx context.Context, ownerID, id, action string) (*entities.Project, error) {
	if !entities.IsValidID(id) {
		return nil, entities.ErrInvalidID
	}
	return s.guard.RequireProject(ctx, ownerID, id, action)
}

func projectView(p *entities.Project, counts entities.TaskCounts) *ports.ProjectView {
	return &ports.ProjectView{Project: p, TaskCounts: counts, TotalTasks: counts.Total()}
}

// timestamp normalizes a clock reading to the precision every backend keeps
func timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
