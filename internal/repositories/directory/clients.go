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

// UpsertClient creates or refreshes a client row
func (r *Repository) UpsertClient(ctx context.Context, client *models.Client) (*models.Client, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.UpsertClient")
	defer span.End()

	now := time.Now()
	if client.Status == "" {
		client.Status = models.StatusActive
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(clientsTable)
	sb.Cols("id", "domain_id", "name", "description", "status", "created_at", "updated_at")
	sb.Values(client.ID, client.DomainID, client.Name, client.Description, client.Status, now, now)

	query, args := sb.Build()
	query += " ON CONFLICT (id, domain_id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at"

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to upsert client")
		return nil, fmt.Errorf("failed to upsert client: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        client.ID,
		"domain_id": client.DomainID,
		"name":      client.Name,
	}).Info("upserted client")

	return r.GetClient(ctx, client.DomainID, client.ID)
}

// GetClient gets a client by ID, or nil when it does not exist
func (r *Repository) GetClient(ctx context.Context, domainID, id string) (*models.Client, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.GetClient")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "domain_id", "name", "description", "status", "entity_id", "created_at", "updated_at")
	sb.From(clientsTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("domain_id", domainID),
	)

	query, args := sb.Build()

	var client models.Client
	err := r.db.GetContext(ctx, &client, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get client")
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return &client, nil
}

// ListClients lists every client in a domain
func (r *Repository) ListClients(ctx context.Context, domainID string) ([]models.Client, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.ListClients")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "domain_id", "name", "description", "status", "entity_id", "created_at", "updated_at")
	sb.From(clientsTable)
	sb.Where(sb.Equal("domain_id", domainID))
	sb.OrderBy("name ASC")

	query, args := sb.Build()

	var clients []models.Client
	err := r.db.SelectContext(ctx, &clients, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list clients")
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	return clients, nil
}

// SetClientEntityID points a client at its mirror entity in the graph
func (r *Repository) SetClientEntityID(ctx context.Context, domainID, id, entityID string) error {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.SetClientEntityID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(clientsTable)
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
		r.logger.WithContext(ctx).WithError(err).Error("failed to set client entity id")
		return fmt.Errorf("failed to set client entity id: %w", err)
	}

	return nil
}
