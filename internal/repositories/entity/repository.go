package entity

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/scope"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ListFilter narrows an entity listing. DomainID is required; everything
// else is optional. When Principal is set the listing is reduced to the
// scopes that principal can read.
type ListFilter struct {
	DomainID      string
	Principal     *models.Principal
	EntityType    string
	NameContains  string
	ScopeType     string
	ScopeID       string
	WorkSessionID string
	Page          int
	PageSize      int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NormalizePaging clamps the filter's paging fields to sane bounds.
func NormalizePaging(filter ListFilter) ListFilter {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	return filter
}

// EntityRepository defines the interface for entity data access
type EntityRepository interface {
	DB() database.DB
	Create(ctx context.Context, entity *models.Entity) (*models.Entity, error)
	GetByID(ctx context.Context, domainID, id string) (*models.Entity, error)
	FindByID(ctx context.Context, id string) (*models.Entity, error)
	GetByIDs(ctx context.Context, domainID string, ids []string) ([]*models.Entity, error)
	List(ctx context.Context, filter ListFilter) ([]*models.Entity, int, error)
	ListByType(ctx context.Context, domainID, entityType string) ([]*models.Entity, error)
	SearchByName(ctx context.Context, domainID string, principal *models.Principal, nameContains string, limit int) ([]*models.Entity, error)
	FindFirstByTypeAndName(ctx context.Context, domainID, entityType, name string) (*models.Entity, error)
	ExistsByIDs(ctx context.Context, domainID string, ids []string) (map[string]bool, error)
	Update(ctx context.Context, entity *models.Entity) (*models.Entity, error)
	UpdateScope(ctx context.Context, domainID, id, scopeType, scopeID string) error
	Delete(ctx context.Context, domainID, id string) error
	DeleteByDomain(ctx context.Context, domainID string) (int, error)
}

// Repository implements EntityRepository
type Repository struct {
	db     database.DB
	scopes *scope.Service
	logger ectologger.Logger
}

// NewRepository creates a new entity repository
func NewRepository(db database.DB, scopes *scope.Service, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		scopes: scopes,
		logger: logger,
	}
}

// DB exposes the underlying database so callers can own a transaction
// spanning multiple repositories.
func (r *Repository) DB() database.DB {
	return r.db
}

// Create creates a new entity
func (r *Repository) Create(ctx context.Context, entity *models.Entity) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.Create")
	defer span.End()

	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}

	now := Now()
	entity.CreatedAt = now
	entity.UpdatedAt = now

	row := FromEntity(entity)
	ib := entityStruct.InsertInto(entitiesTable, row)
	sql, args := ib.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":          entity.ID,
		"domain_id":   entity.DomainID,
		"entity_type": entity.EntityType,
		"name":        entity.Name,
	}).Debug("Creating entity")

	_, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create entity")
	}

	return entity, nil
}

// GetByID retrieves an entity by ID within a domain
func (r *Repository) GetByID(ctx context.Context, domainID, id string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.GetByID")
	defer span.End()

	sb := entityStruct.SelectFrom(entitiesTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("domain_id", domainID),
	)

	sql, args := sb.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"domain_id": domainID,
	}).Debug("Getting entity by ID")

	var row EntityRow
	err := r.db.GetContext(ctx, &row, sql, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "entity not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity")
	}

	return ToEntity(&row), nil
}

// FindByID looks an entity up by ID alone, across domains, returning nil when
// none exists. The integrity sweeps use this to spot records whose mirror
// entity landed in the wrong domain.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.FindByID")
	defer span.End()

	sb := entityStruct.SelectFrom(entitiesTable)
	sb.Where(sb.Equal("id", id))
	sb.Limit(1)

	sql, args := sb.Build()

	var row EntityRow
	err := r.db.GetContext(ctx, &row, sql, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find entity by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find entity")
	}

	return ToEntity(&row), nil
}

// GetByIDs retrieves the entities whose IDs appear in ids. Missing IDs are
// not an error; they are simply absent from the result.
func (r *Repository) GetByIDs(ctx context.Context, domainID string, ids []string) ([]*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return []*models.Entity{}, nil
	}

	sb := entityStruct.SelectFrom(entitiesTable)
	sb.Where(
		sb.Equal("domain_id", domainID),
		sb.In("id", sqlbuilder.Flatten(ids)...),
	)

	sql, args := sb.Build()

	var rows []EntityRow
	err := r.db.SelectContext(ctx, &rows, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get entities by IDs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entities")
	}

	return ToEntities(rows), nil
}

func (r *Repository) listConds(sb *database.SelectBuilder, filter ListFilter) []string {
	conds := []string{sb.Equal("domain_id", filter.DomainID)}

	if filter.EntityType != "" {
		conds = append(conds, sb.Equal("entity_type", filter.EntityType))
	}
	if filter.NameContains != "" {
		conds = append(conds, sb.ILike("name", "%"+filter.NameContains+"%"))
	}
	if filter.ScopeType != "" {
		conds = append(conds, sb.Equal("scope_type", filter.ScopeType))
	}
	if filter.ScopeID != "" {
		conds = append(conds, sb.Equal("scope_id", filter.ScopeID))
	}
	if filter.WorkSessionID != "" {
		conds = append(conds, sb.Equal("work_session_id", filter.WorkSessionID))
	}
	if filter.Principal != nil {
		if expr := r.scopes.Filter(sb, filter.Principal); expr != "" {
			conds = append(conds, expr)
		}
	}

	return conds
}

// List retrieves a page of entities matching the filter, plus the total
// count of matches for pagination
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]*models.Entity, int, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.List")
	defer span.End()

	filter = NormalizePaging(filter)

	sb := entityStruct.SelectFrom(entitiesTable)
	sb.Where(r.listConds(sb, filter)...)
	sb.OrderBy("created_at").Desc()
	sb.Limit(filter.PageSize)
	sb.Offset((filter.Page - 1) * filter.PageSize)

	sql, args := sb.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"domain_id":   filter.DomainID,
		"entity_type": filter.EntityType,
		"page":        filter.Page,
		"page_size":   filter.PageSize,
	}).Debug("Listing entities")

	var rows []EntityRow
	err := r.db.SelectContext(ctx, &rows, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list entities")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list entities")
	}

	cb := database.NewSelectBuilder()
	cb.Select("COUNT(*)")
	cb.From(entitiesTable)
	cb.Where(r.listConds(cb, filter)...)

	countSQL, countArgs := cb.Build()

	var total int
	err = r.db.GetContext(ctx, &total, countSQL, countArgs...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count entities")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list entities")
	}

	return ToEntities(rows), total, nil
}

// ListByType retrieves every entity of a type within a domain. Used by the
// integrity sweeps, which need the full set rather than a page.
func (r *Repository) ListByType(ctx context.Context, domainID, entityType string) ([]*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.ListByType")
	defer span.End()

	sb := entityStruct.SelectFrom(entitiesTable)
	sb.Where(
		sb.Equal("domain_id", domainID),
		sb.Equal("entity_type", entityType),
	)
	sb.OrderBy("created_at")

	sql, args := sb.Build()

	var rows []EntityRow
	err := r.db.SelectContext(ctx, &rows, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list entities by type")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list entities")
	}

	return ToEntities(rows), nil
}

// SearchByName retrieves up to limit entities whose name contains the given
// fragment, case-insensitively, oldest first so repeat queries are stable
func (r *Repository) SearchByName(ctx context.Context, domainID string, principal *models.Principal, nameContains string, limit int) ([]*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.SearchByName")
	defer span.End()

	if limit < 1 {
		limit = defaultPageSize
	}

	sb := entityStruct.SelectFrom(entitiesTable)
	conds := []string{
		sb.Equal("domain_id", domainID),
		sb.ILike("name", "%"+nameContains+"%"),
	}
	if principal != nil {
		if expr := r.scopes.Filter(sb, principal); expr != "" {
			conds = append(conds, expr)
		}
	}
	sb.Where(conds...)
	sb.OrderBy("created_at")
	sb.Limit(limit)

	sql, args := sb.Build()

	var rows []EntityRow
	err := r.db.SelectContext(ctx, &rows, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to search entities by name")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search entities")
	}

	return ToEntities(rows), nil
}

// FindFirstByTypeAndName retrieves the oldest entity with the given type and
// exact name, or nil when none exists. Absence is expected here, not an error.
func (r *Repository) FindFirstByTypeAndName(ctx context.Context, domainID, entityType, name string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.FindFirstByTypeAndName")
	defer span.End()

	sb := entityStruct.SelectFrom(entitiesTable)
	sb.Where(
		sb.Equal("domain_id", domainID),
		sb.Equal("entity_type", entityType),
		sb.Equal("name", name),
	)
	sb.OrderBy("created_at")
	sb.Limit(1)

	sql, args := sb.Build()

	var row EntityRow
	err := r.db.GetContext(ctx, &row, sql, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find entity by type and name")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find entity")
	}

	return ToEntity(&row), nil
}

// ExistsByIDs reports which of the given entity IDs exist within the domain
func (r *Repository) ExistsByIDs(ctx context.Context, domainID string, ids []string) (map[string]bool, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.ExistsByIDs")
	defer span.End()

	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	sb := database.NewSelectBuilder()
	sb.Select("id")
	sb.From(entitiesTable)
	sb.Where(
		sb.Equal("domain_id", domainID),
		sb.In("id", sqlbuilder.Flatten(ids)...),
	)

	sql, args := sb.Build()

	var existing []string
	err := r.db.SelectContext(ctx, &existing, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check entity existence")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check entities")
	}

	for _, id := range existing {
		found[id] = true
	}

	return found, nil
}

// Update updates an existing entity
func (r *Repository) Update(ctx context.Context, entity *models.Entity) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.Update")
	defer span.End()

	entity.UpdatedAt = Now()

	ub := entityStruct.Update(entitiesTable, FromEntity(entity))
	ub.Where(
		ub.Equal("id", entity.ID),
		ub.Equal("domain_id", entity.DomainID),
	)

	sql, args := ub.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        entity.ID,
		"domain_id": entity.DomainID,
	}).Debug("Updating entity")

	result, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update entity")
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "entity not found")
	}

	return entity, nil
}

// UpdateScope rewrites just the scope columns of an entity. The repair path
// uses this directly, so it accepts scope tags outside the writable set,
// such as the project tag stamped onto milestones.
func (r *Repository) UpdateScope(ctx context.Context, domainID, id, scopeType, scopeID string) error {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.UpdateScope")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(entitiesTable)
	ub.Set(
		ub.Assign("scope_type", scopeType),
		ub.Assign("scope_id", scopeID),
		ub.Assign("updated_at", Now()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("domain_id", domainID),
	)

	sql, args := ub.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":         id,
		"domain_id":  domainID,
		"scope_type": scopeType,
		"scope_id":   scopeID,
	}).Debug("Updating entity scope")

	result, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update entity scope")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update entity scope")
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "entity not found")
	}

	return nil
}

// Delete deletes an entity. It joins any transaction already open on the
// context; only when it opened the transaction itself does it commit.
func (r *Repository) Delete(ctx context.Context, domainID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.Delete")
	defer span.End()

	db := entityStruct.DeleteFrom(entitiesTable)
	db.Where(
		db.Equal("id", id),
		db.Equal("domain_id", domainID),
	)

	sql, args := db.Build()

	owner := !database.InTx(ctx)
	ctxTx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	if owner {
		defer tx.Rollback(ctx)
	}

	r.logger.WithContext(ctxTx).WithFields(map[string]any{
		"id":        id,
		"domain_id": domainID,
	}).Debug("Deleting entity")

	result, err := tx.ExecContext(ctxTx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctxTx).WithError(err).Error("Failed to delete entity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete entity")
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "entity not found")
	}

	if owner {
		return tx.Commit(ctxTx)
	}
	return nil
}

// DeleteByDomain removes every entity in a domain and returns the number of
// rows removed
func (r *Repository) DeleteByDomain(ctx context.Context, domainID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.DeleteByDomain")
	defer span.End()

	db := entityStruct.DeleteFrom(entitiesTable)
	db.Where(db.Equal("domain_id", domainID))

	sql, args := db.Build()

	result, err := r.db.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete entities by domain")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete entities")
	}

	rowsAffected, _ := result.RowsAffected()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"domain_id": domainID,
		"count":     rowsAffected,
	}).Info("Deleted entities for domain")

	return int(rowsAffected), nil
}
