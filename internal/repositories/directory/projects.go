package directory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// UpsertProject creates or refreshes a project row. The entity_id back
// reference is never touched here; only the integrity repairs write it.
func (r *Repository) UpsertProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.UpsertProject")
	defer span.End()

	now := time.Now()
	if project.Status == "" {
		project.Status = models.StatusActive
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(projectsTable)
	sb.Cols("id", "domain_id", "name", "description", "status", "created_at", "updated_at")
	sb.Values(project.ID, project.DomainID, project.Name, project.Description, project.Status, now, now)

	query, args := sb.Build()
	query += " ON CONFLICT (id, domain_id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at"

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to upsert project")
		return nil, fmt.Errorf("failed to upsert project: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        project.ID,
		"domain_id": project.DomainID,
		"name":      project.Name,
	}).Info("upserted project")

	return r.GetProject(ctx, project.DomainID, project.ID)
}

// GetProject gets a project by ID, or nil when it does not exist
func (r *Repository) GetProject(ctx context.Context, domainID, id string) (*models.Project, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.GetProject")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "domain_id", "name", "description", "status", "entity_id", "created_at", "updated_at")
	sb.From(projectsTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("domain_id", domainID),
	)

	query, args := sb.Build()

	var project models.Project
	err := r.db.GetContext(ctx, &project, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get project")
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

// ListProjects lists every project in a domain
func (r *Repository) ListProjects(ctx context.Context, domainID string) ([]models.Project, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.ListProjects")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "domain_id", "name", "description", "status", "entity_id", "created_at", "updated_at")
	sb.From(projectsTable)
	sb.Where(sb.Equal("domain_id", domainID))
	sb.OrderBy("name ASC")

	query, args := sb.Build()

	var projects []models.Project
	err := r.db.SelectContext(ctx, &projects, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list projects")
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	return projects, nil
}

// SetProjectEntityID points a project at its mirror entity in the graph
func (r *Repository) SetProjectEntityID(ctx context.Context, domainID, id, entityID string) error {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.SetProjectEntityID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(projectsTable)
	sb.Set(
		sb.Assign("entity_id", entityID),
		sb.Assign("updated_at", time.Now()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("domain_id", domainID),
	)

	query, args := sb.Build()

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to set project entity id")
		return fmt.Errorf("failed to set project entity id: %w", err)
	}

	return nil
}
