package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskmaster/taskboard/internal/application/security"
	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/ports"
)

// OwnershipGuard resolves a resource on behalf of a requester. A resource
// owned by someone else is reported exactly like a missing one, and the
// attempt is audited.
type OwnershipGuard struct {
	projects ports.ProjectRepository
	tasks    ports.TaskRepository
	auditor  *security.Auditor
}

// NewOwnershipGuard creates a guard over the given repositories
func NewOwnershipGuard(projects ports.ProjectRepository, tasks ports.TaskRepository, auditor *security.Auditor) *OwnershipGuard {
	return &OwnershipGuard{projects: projects, tasks: tasks, auditor: auditor}
}

// RequireProject returns the project when requesterID owns it
func (g *OwnershipGuard) RequireProject(ctx context.Context, requesterID, projectID, action string) (*entities.Project, error) {
	if !entities.IsValidID(projectID) {
		return nil, entities.ErrProjectNotFound
	}

	project, err := g.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, entities.ErrProjectNotFound) {
			return nil, entities.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	if !project.IsOwnedBy(requesterID) {
		g.auditor.LogAuthorizationFailure(ctx, requesterID, "project:"+projectID, action)
		return nil, entities.ErrProjectNotFound
	}
	return project, nil
}

// RequireTask returns the task and its project when requesterID owns the
// project. A task whose project is gone counts as missing.
func (g *OwnershipGuard) RequireTask(ctx context.Context, requesterID, taskID, action string) (*entities.Task, *entities.Project, error) {
	if !entities.IsValidID(taskID) {
		return nil, nil, entities.ErrTaskNotFound
	}

	task, err := g.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, entities.ErrTaskNotFound) {
			return nil, nil, entities.ErrTaskNotFound
		}
		return nil, nil, fmt.Errorf("failed to get task: %w", err)
	}

	project, err := g.projects.GetByID(ctx, task.ProjectID)
	if err != nil {
		if errors.Is(err, entities.ErrProjectNotFound) {
			return nil, nil, entities.ErrTaskNotFound
		}
		return nil, nil, fmt.Errorf("failed to get project: %w", err)
	}

	if !project.IsOwnedBy(requesterID) {
		g.auditor.LogAuthorizationFailure(ctx, requesterID, "task:"+taskID, action)
		return nil, nil, entities.ErrTaskNotFound
	}
	return task, project, nil
}
