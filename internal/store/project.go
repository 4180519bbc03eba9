package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/adb-analytics/apiserver/types"
	"github.com/google/uuid"
)

// ProjectRepository handles persistence for projects.
type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// ListByOwner returns the owner's projects in creation order.
func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]types.Project, error) {
	const query = `
		SELECT id, owner_id, project_name, country, budget, start_date, end_date, description, created_at, updated_at
		FROM projects
		WHERE owner_id = $1
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]types.Project, 0)
	for rows.Next() {
		var project types.Project
		if err := rows.Scan(
			&project.ID,
			&project.OwnerID,
			&project.ProjectName,
			&project.Country,
			&project.Budget,
			&project.StartDate,
			&project.EndDate,
			&project.Description,
			&project.CreatedAt,
			&project.UpdatedAt,
		); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project types.Project) (types.Project, error) {
	now := time.Now().UTC()
	project.ID = uuid.NewString()
	project.CreatedAt = now
	project.UpdatedAt = now

	const query = `
		INSERT INTO projects (id, owner_id, project_name, country, budget, start_date, end_date, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		project.ID,
		project.OwnerID,
		project.ProjectName,
		project.Country,
		project.Budget,
		project.StartDate,
		project.EndDate,
		project.Description,
		project.CreatedAt,
		project.UpdatedAt,
	); err != nil {
		return types.Project{}, err
	}
	return project, nil
}
