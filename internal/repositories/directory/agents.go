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

// UpsertAgent creates or refreshes an agent row
func (r *Repository) UpsertAgent(ctx context.Context, agent *models.Agent) (*models.Agent, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.UpsertAgent")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(agentsTable)
	sb.Cols("id", "domain_id", "user_id", "client_id", "name", "created_at")
	sb.Values(agent.ID, agent.DomainID, agent.UserID, agent.ClientID, agent.Name, time.Now())

	query, args := sb.Build()
	query += " ON CONFLICT (id, domain_id) DO UPDATE SET user_id = EXCLUDED.user_id, client_id = EXCLUDED.client_id, name = EXCLUDED.name"

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to upsert agent")
		return nil, fmt.Errorf("failed to upsert agent: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        agent.ID,
		"domain_id": agent.DomainID,
		"user_id":   agent.UserID,
	}).Info("upserted agent")

	return r.GetAgent(ctx, agent.DomainID, agent.ID)
}

// GetAgent gets an agent by ID, or nil when it does not exist
func (r *Repository) GetAgent(ctx context.Context, domainID, id string) (*models.Agent, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.GetAgent")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "domain_id", "user_id", "client_id", "name", "created_at")
	sb.From(agentsTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("domain_id", domainID),
	)

	query, args := sb.Build()

	var agent models.Agent
	err := r.db.GetContext(ctx, &agent, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get agent")
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	return &agent, nil
}

// ListAgents lists every agent in a domain
func (r *Repository) ListAgents(ctx context.Context, domainID string) ([]models.Agent, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.ListAgents")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "domain_id", "user_id", "client_id", "name", "created_at")
	sb.From(agentsTable)
	sb.Where(sb.Equal("domain_id", domainID))
	sb.OrderBy("name ASC")

	query, args := sb.Build()

	var agents []models.Agent
	err := r.db.SelectContext(ctx, &agents, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list agents")
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	return agents, nil
}
