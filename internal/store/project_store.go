package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/sitebook/internal/model"
)

const projectColumns = "id, client_id, name, description, progress, status, deadline, estimate, hourly_rate, created_at"

// GetProjects retrieves projects matching the filter, newest first by default.
func (s *SQLStore) GetProjects(ctx context.Context, filter ProjectFilter) ([]model.Project, error) {
	var conditions []string
	var args []interface{}

	if filter.ClientID != nil {
		conditions = append(conditions, "client_id = ?")
		args = append(args, *filter.ClientID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}

	query := "SELECT " + projectColumns + " FROM projects" + whereClause(conditions)
	if filter.SortBy == "" {
		filter.SortDesc = true
	}
	query += orderClause(filter.SortBy, filter.SortDesc, "created_at", "created_at", "name", "progress")

	var projects []model.Project
	if err := s.db.SelectContext(ctx, &projects, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	return projects, nil
}

// CreateProject inserts a new project and returns the stored row.
func (s *SQLStore) CreateProject(ctx context.Context, project model.Project) (*model.Project, error) {
	if strings.TrimSpace(project.Name) == "" {
		return nil, fmt.Errorf("project name must not be empty")
	}
	if project.ClientID == "" {
		return nil, fmt.Errorf("project must belong to a client")
	}
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	if project.Status == "" {
		project.Status = model.ProjectStatusPlanning
	}
	project.Progress = model.ClampProgress(project.Progress)
	project.CreatedAt = time.Now().UTC()

	var created model.Project
	err := s.db.GetContext(ctx, &created, s.db.Rebind(`
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+projectColumns),
		project.ID, project.ClientID, project.Name, project.Description,
		project.Progress, project.Status, project.Deadline, project.Estimate,
		project.HourlyRate, project.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return &created, nil
}
