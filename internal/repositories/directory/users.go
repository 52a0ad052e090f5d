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

// UpsertUser creates or refreshes a user row
func (r *Repository) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.UpsertUser")
	defer span.End()

	now := time.Now()
	if user.Status == "" {
		user.Status = models.StatusActive
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(usersTable)
	sb.Cols("id", "domain_id", "name", "status", "is_admin", "is_domain_admin", "created_at", "updated_at")
	sb.Values(user.ID, user.DomainID, user.Name, user.Status, user.IsAdmin, user.IsDomainAdmin, now, now)

	query, args := sb.Build()
	query += " ON CONFLICT (id, domain_id) DO UPDATE SET name = EXCLUDED.name, status = EXCLUDED.status, is_admin = EXCLUDED.is_admin, is_domain_admin = EXCLUDED.is_domain_admin, updated_at = EXCLUDED.updated_at"

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to upsert user")
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        user.ID,
		"domain_id": user.DomainID,
		"name":      user.Name,
	}).Info("upserted user")

	return r.GetUser(ctx, user.DomainID, user.ID)
}

// GetUser gets a user by ID, or nil when it does not exist
func (r *Repository) GetUser(ctx context.Context, domainID, id string) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.GetUser")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "domain_id", "name", "status", "is_admin", "is_domain_admin", "entity_id", "created_at", "updated_at")
	sb.From(usersTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("domain_id", domainID),
	)

	query, args := sb.Build()

	var user models.User
	err := r.db.GetContext(ctx, &user, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get user")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// ListUsers lists every user in a domain
func (r *Repository) ListUsers(ctx context.Context, domainID string) ([]models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.ListUsers")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "domain_id", "name", "status", "is_admin", "is_domain_admin", "entity_id", "created_at", "updated_at")
	sb.From(usersTable)
	sb.Where(sb.Equal("domain_id", domainID))
	sb.OrderBy("name ASC")

	query, args := sb.Build()

	var users []models.User
	err := r.db.SelectContext(ctx, &users, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list users")
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

// SetUserEntityID points a user at its mirror entity in the graph
func (r *Repository) SetUserEntityID(ctx context.Context, domainID, id, entityID string) error {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.SetUserEntityID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(usersTable)
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
		r.logger.WithContext(ctx).WithError(err).Error("failed to set user entity id")
		return fmt.Errorf("failed to set user entity id: %w", err)
	}

	return nil
}
