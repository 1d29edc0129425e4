package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/infrastructure/database"
	"github.com/taskmaster/taskboard/internal/ports"
)

const projectColumns = `id, name, description, owner_id, created_at, updated_at`

// ProjectRepository implements ports.ProjectRepository
type ProjectRepository struct {
	db *database.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *database.DB) ports.ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *entities.Project) error {
	query := `INSERT INTO projects (` + projectColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.DB.ExecContext(ctx, query,
		project.ID, project.Name, project.Description, project.OwnerID, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*entities.Project, error) {
	return r.getOne(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
}

func (r *ProjectRepository) GetOwned(ctx context.Context, id, ownerID string) (*entities.Project, error) {
	return r.getOne(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 AND owner_id = $2`, id, ownerID)
}

func (r *ProjectRepository) Update(ctx context.Context, project *entities.Project) error {
	query := `UPDATE projects SET name = $2, description = $3, updated_at = $4 WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, project.ID, project.Name, project.Description, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return expectRow(result, entities.ErrProjectNotFound)
}

// Delete removes the project's tasks and the project in one transaction
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = $1`, id); err != nil {
			return fmt.Errorf("delete project tasks: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		return expectRow(result, entities.ErrProjectNotFound)
	})
}

func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`

	projects := []*entities.Project{}
	if err := r.db.DB.SelectContext(ctx, &projects, query, ownerID); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	for _, p := range projects {
		normalizeProject(p)
	}
	return projects, nil
}

func (r *ProjectRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entities.Project, error) {
	var project entities.Project
	if err := r.db.DB.GetContext(ctx, &project, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	normalizeProject(&project)
	return &project, nil
}

func normalizeProject(p *entities.Project) {
	p.CreatedAt = utc(p.CreatedAt)
	p.UpdatedAt = utc(p.UpdatedAt)
}

func expectRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
