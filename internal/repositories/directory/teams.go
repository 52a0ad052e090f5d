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

// UpsertTeam creates or refreshes a team row
func (r *Repository) UpsertTeam(ctx context.Context, team *models.Team) (*models.Team, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.UpsertTeam")
	defer span.End()

	now := time.Now()
	if team.Status == "" {
		team.Status = models.StatusActive
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(teamsTable)
	sb.Cols("id", "domain_id", "name", "description", "status", "created_at", "updated_at")
	sb.Values(team.ID, team.DomainID, team.Name, team.Description, team.Status, now, now)

	query, args := sb.Build()
	query += " ON CONFLICT (id, domain_id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at"

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to upsert team")
		return nil, fmt.Errorf("failed to upsert team: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        team.ID,
		"domain_id": team.DomainID,
		"name":      team.Name,
	}).Info("upserted team")

	return r.GetTeam(ctx, team.DomainID, team.ID)
}

// GetTeam gets a team by ID, or nil when it does not exist
func (r *Repository) GetTeam(ctx context.Context, domainID, id string) (*models.Team, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.GetTeam")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "domain_id", "name", "description", "status", "entity_id", "created_at", "updated_at")
	sb.From(teamsTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("domain_id", domainID),
	)

	query, args := sb.Build()

	var team models.Team
	err := r.db.GetContext(ctx, &team, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get team")
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return &team, nil
}

// ListTeams lists every team in a domain
func (r *Repository) ListTeams(ctx context.Context, domainID string) ([]models.Team, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.ListTeams")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "domain_id", "name", "description", "status", "entity_id", "created_at", "updated_at")
	sb.From(teamsTable)
	sb.Where(sb.Equal("domain_id", domainID))
	sb.OrderBy("name ASC")

	query, args := sb.Build()

	var teams []models.Team
	err := r.db.SelectContext(ctx, &teams, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list teams")
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	return teams, nil
}

// SetTeamEntityID points a team at its mirror entity in the graph
func (r *Repository) SetTeamEntityID(ctx context.Context, domainID, id, entityID string) error {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.SetTeamEntityID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(teamsTable)
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
		r.logger.WithContext(ctx).WithError(err).Error("failed to set team entity id")
		return fmt.Errorf("failed to set team entity id: %w", err)
	}

	return nil
}
