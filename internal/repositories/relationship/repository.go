package relationship

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ClampPaging clamps page/pageSize to the bounds the listing queries use.
func ClampPaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// RelationshipRepository defines the interface for relationship data access
type RelationshipRepository interface {
	Create(ctx context.Context, relationship *models.Relationship) (*models.Relationship, error)
	GetByID(ctx context.Context, domainID, id string) (*models.Relationship, error)
	ListByEntity(ctx context.Context, domainID, entityID, relationshipType string, page, pageSize int) ([]*models.Relationship, int, error)
	ListTouching(ctx context.Context, domainID string, entityIDs []string) ([]*models.Relationship, error)
	ListBetween(ctx context.Context, domainID string, entityIDs []string) ([]*models.Relationship, error)
	ExistsEdge(ctx context.Context, domainID, fromEntityID, toEntityID, relationshipType string) (bool, error)
	Update(ctx context.Context, relationship *models.Relationship) (*models.Relationship, error)
	Delete(ctx context.Context, domainID, id string) error
	DeleteByEntity(ctx context.Context, domainID, entityID string) (int, error)
	DeleteByDomain(ctx context.Context, domainID string) (int, error)
}

// Repository implements RelationshipRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new relationship repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new relationship
func (r *Repository) Create(ctx context.Context, relationship *models.Relationship) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "RelationshipRepository.Create")
	defer span.End()

	if relationship.ID == "" {
		relationship.ID = uuid.New().String()
	}

	now := Now()
	relationship.CreatedAt = now
	relationship.UpdatedAt = now

	row := FromRelationship(relationship)
	ib := relationshipStruct.InsertInto(relationshipsTable, row)
	sql, args := ib.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":                relationship.ID,
		"domain_id":         relationship.DomainID,
		"from_entity_id":    relationship.FromEntityID,
		"to_entity_id":      relationship.ToEntityID,
		"relationship_type": relationship.RelationshipType,
	}).Debug("Creating relationship")

	_, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create relationship")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create relationship")
	}

	return relationship, nil
}

// GetByID retrieves a relationship by ID within a domain
func (r *Repository) GetByID(ctx context.Context, domainID, id string) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "RelationshipRepository.GetByID")
	defer span.End()

	sb := relationshipStruct.SelectFrom(relationshipsTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("domain_id", domainID),
	)

	sql, args := sb.Build()

	var row RelationshipRow
	err := r.db.GetContext(ctx, &row, sql, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "relationship not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get relationship")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get relationship")
	}

	return ToRelationship(&row), nil
}

// ListByEntity retrieves a page of relationships where the entity is either
// endpoint, optionally narrowed to one relationship type
func (r *Repository) ListByEntity(ctx context.Context, domainID, entityID, relationshipType string, page, pageSize int) ([]*models.Relationship, int, error) {
	ctx, span := tracing.StartSpan(ctx, "RelationshipRepository.ListByEntity")
	defer span.End()

	page, pageSize = ClampPaging(page, pageSize)

	conds := func(sb *database.SelectBuilder) []string {
		cs := []string{
			sb.Equal("domain_id", domainID),
			sb.Or(
				sb.Equal("from_entity_id", entityID),
				sb.Equal("to_entity_id", entityID),
			),
		}
		if relationshipType != "" {
			cs = append(cs, sb.Equal("relationship_type", relationshipType))
		}
		return cs
	}

	sb := relationshipStruct.SelectFrom(relationshipsTable)
	sb.Where(conds(sb)...)
	sb.OrderBy("created_at").Desc()
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	sql, args := sb.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"domain_id": domainID,
		"entity_id": entityID,
		"page":      page,
		"page_size": pageSize,
	}).Debug("Listing relationships by entity")

	var rows []RelationshipRow
	err := r.db.SelectContext(ctx, &rows, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list relationships")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relationships")
	}

	cb := database.NewSelectBuilder()
	cb.Select("COUNT(*)")
	cb.From(relationshipsTable)
	cb.Where(conds(cb)...)

	countSQL, countArgs := cb.Build()

	var total int
	err = r.db.GetContext(ctx, &total, countSQL, countArgs...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count relationships")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relationships")
	}

	return ToRelationships(rows), total, nil
}

// ListTouching retrieves every relationship with at least one endpoint in
// the given entity set. The graph walk expands frontiers with this.
func (r *Repository) ListTouching(ctx context.Context, domainID string, entityIDs []string) ([]*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "RelationshipRepository.ListTouching")
	defer span.End()

	if len(entityIDs) == 0 {
		return []*models.Relationship{}, nil
	}

	sb := relationshipStruct.SelectFrom(relationshipsTable)
	sb.Where(
		sb.Equal("domain_id", domainID),
		sb.Or(
			sb.In("from_entity_id", sqlbuilder.Flatten(entityIDs)...),
			sb.In("to_entity_id", sqlbuilder.Flatten(entityIDs)...),
		),
	)

	sql, args := sb.Build()

	var rows []RelationshipRow
	err := r.db.SelectContext(ctx, &rows, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list touching relationships")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relationships")
	}

	return ToRelationships(rows), nil
}

// ListBetween retrieves every relationship with both endpoints in the given
// entity set
func (r *Repository) ListBetween(ctx context.Context, domainID string, entityIDs []string) ([]*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "RelationshipRepository.ListBetween")
	defer span.End()

	if len(entityIDs) == 0 {
		return []*models.Relationship{}, nil
	}

	sb := relationshipStruct.SelectFrom(relationshipsTable)
	sb.Where(
		sb.Equal("domain_id", domainID),
		sb.In("from_entity_id", sqlbuilder.Flatten(entityIDs)...),
		sb.In("to_entity_id", sqlbuilder.Flatten(entityIDs)...),
	)

	sql, args := sb.Build()

	var rows []RelationshipRow
	err := r.db.SelectContext(ctx, &rows, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list relationships between entities")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relationships")
	}

	return ToRelationships(rows), nil
}

// ExistsEdge reports whether at least one relationship of the given type
// runs from one entity to another
func (r *Repository) ExistsEdge(ctx context.Context, domainID, fromEntityID, toEntityID, relationshipType string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "RelationshipRepository.ExistsEdge")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(relationshipsTable)
	sb.Where(
		sb.Equal("domain_id", domainID),
		sb.Equal("from_entity_id", fromEntityID),
		sb.Equal("to_entity_id", toEntityID),
		sb.Equal("relationship_type", relationshipType),
	)

	sql, args := sb.Build()

	var count int
	err := r.db.GetContext(ctx, &count, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check edge existence")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check relationship")
	}

	return count > 0, nil
}

// Update updates an existing relationship
func (r *Repository) Update(ctx context.Context, relationship *models.Relationship) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "RelationshipRepository.Update")
	defer span.End()

	relationship.UpdatedAt = Now()

	ub := relationshipStruct.Update(relationshipsTable, FromRelationship(relationship))
	ub.Where(
		ub.Equal("id", relationship.ID),
		ub.Equal("domain_id", relationship.DomainID),
	)

	sql, args := ub.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        relationship.ID,
		"domain_id": relationship.DomainID,
	}).Debug("Updating relationship")

	result, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update relationship")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update relationship")
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "relationship not found")
	}

	return relationship, nil
}

// Delete deletes a relationship
func (r *Repository) Delete(ctx context.Context, domainID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "RelationshipRepository.Delete")
	defer span.End()

	db := relationshipStruct.DeleteFrom(relationshipsTable)
	db.Where(
		db.Equal("id", id),
		db.Equal("domain_id", domainID),
	)

	sql, args := db.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"domain_id": domainID,
	}).Debug("Deleting relationship")

	result, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete relationship")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete relationship")
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "relationship not found")
	}

	return nil
}

// DeleteByEntity removes every relationship touching an entity and reports
// how many were removed. It joins any transaction already open on the
// context so the entity delete cascade commits atomically; only when it
// opened the transaction itself does it commit.
func (r *Repository) DeleteByEntity(ctx context.Context, domainID, entityID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "RelationshipRepository.DeleteByEntity")
	defer span.End()

	db := relationshipStruct.DeleteFrom(relationshipsTable)
	db.Where(
		db.Equal("domain_id", domainID),
		db.Or(
			db.Equal("from_entity_id", entityID),
			db.Equal("to_entity_id", entityID),
		),
	)

	sql, args := db.Build()

	owner := !database.InTx(ctx)
	ctxTx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	if owner {
		defer tx.Rollback(ctx)
	}

	r.logger.WithContext(ctxTx).WithFields(map[string]any{
		"domain_id": domainID,
		"entity_id": entityID,
	}).Debug("Deleting relationships by entity")

	result, err := tx.ExecContext(ctxTx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctxTx).WithError(err).Error("Failed to delete relationships by entity")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete relationships")
	}

	rowsAffected, _ := result.RowsAffected()

	if owner {
		if err := tx.Commit(ctxTx); err != nil {
			return 0, err
		}
	}

	return int(rowsAffected), nil
}

// DeleteByDomain removes every relationship in a domain and returns the
// number of rows removed
func (r *Repository) DeleteByDomain(ctx context.Context, domainID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "RelationshipRepository.DeleteByDomain")
	defer span.End()

	db := relationshipStruct.DeleteFrom(relationshipsTable)
	db.Where(db.Equal("domain_id", domainID))

	sql, args := db.Build()

	result, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete relationships by domain")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete relationships")
	}

	rowsAffected, _ := result.RowsAffected()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"domain_id": domainID,
		"count":     rowsAffected,
	}).Info("Deleted relationships for domain")

	return int(rowsAffected), nil
}
