package services

import (
	"context"
	"fmt"

	"github.com/adb-analytics/apiserver/internal/analytics"
	"github.com/adb-analytics/apiserver/internal/validation"
	"github.com/adb-analytics/apiserver/types"
)

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]types.Project, error)
	Create(ctx context.Context, project types.Project) (types.Project, error)
}

// ProjectSummary is the aggregate view plus chart series for one owner.
type ProjectSummary struct {
	Summary   analytics.Summary `json:"summary"`
	Budget    []analytics.Point `json:"budget"`
	Countries []analytics.Point `json:"countries"`
	Timeline  []analytics.Span  `json:"timeline"`
}

// ProjectService encapsulates project use-cases.
type ProjectService struct {
	repo ProjectRepository
}

func NewProjectService(repo ProjectRepository) *ProjectService {
	return &ProjectService{repo: repo}
}

// Create validates in and stores it as a project owned by ownerID.
func (s *ProjectService) Create(ctx context.Context, ownerID string, in validation.ProjectInput) (types.Project, error) {
	draft, err := validation.ValidateProject(in)
	if err != nil {
		return types.Project{}, err
	}
	project, err := s.repo.Create(ctx, draft.ToProject(ownerID))
	if err != nil {
		return types.Project{}, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

func (s *ProjectService) ListByOwner(ctx context.Context, ownerID string) ([]types.Project, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *ProjectService) Summary(ctx context.Context, ownerID string) (ProjectSummary, error) {
	projects, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return ProjectSummary{}, err
	}
	charts := analytics.BuildCharts(projects)
	return ProjectSummary{
		Summary:   analytics.Summarize(projects),
		Budget:    charts.Budget,
		Countries: charts.Countries,
		Timeline:  charts.Timeline,
	}, nil
}
