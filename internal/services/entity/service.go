// Package entity implements the entity write/read paths: request
// validation, scope resolution and enforcement, persistence, cascade
// deletes, lifecycle events, and the optional graph projection.
package entity

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/relationship"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/scope"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var validate = validator.New()

// Service coordinates entity operations. Writes consult the scope service
// before touching storage; events and the graph projection run after the
// write and never fail it.
type Service struct {
	logger        ectologger.Logger
	entities      entity.EntityRepository
	relationships relationship.RelationshipRepository
	scopes        *scope.Service
	events        *events.Emitter
	graph         *graph.EntityService // nil when the projection is disabled
}

// NewService creates a new entity service
func NewService(
	logger ectologger.Logger,
	entities entity.EntityRepository,
	relationships relationship.RelationshipRepository,
	scopes *scope.Service,
	emitter *events.Emitter,
	graphEntities *graph.EntityService,
) *Service {
	return &Service{
		logger:        logger,
		entities:      entities,
		relationships: relationships,
		scopes:        scopes,
		events:        emitter,
		graph:         graphEntities,
	}
}

// Create validates the request, resolves the target scope, and persists a
// new entity. When the request carries no scope the principal's default
// scope is applied.
func (s *Service) Create(ctx context.Context, domainID string, principal *models.Principal, req models.CreateEntityRequest) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Service.Create")
	defer span.End()

	if err := validate.Struct(req); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	scopeType := req.ScopeType
	scopeID := req.ScopeID
	if scopeType == "" {
		if scopeID != "" {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, "scope_id requires a scope_type")
		}
		def := s.scopes.DefaultScope(principal, req.ActiveTeamID)
		scopeType = def.ScopeType
		scopeID = def.ScopeID
	} else {
		if ok, reason := s.scopes.ValidateParams(scopeType, scopeID); !ok {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, reason)
		}
	}

	if principal != nil && !s.scopes.CanWrite(principal, scopeType, scopeID) {
		return nil, httperror.NewHTTPError(http.StatusForbidden, fmt.Sprintf("cannot write to scope %s:%s", scopeType, scopeID))
	}

	confidence := 1.0
	if req.Confidence != nil {
		confidence = *req.Confidence
	}

	ent := &models.Entity{
		DomainID:      domainID,
		EntityType:    req.EntityType,
		Name:          req.Name,
		Properties:    req.Properties,
		ScopeType:     scopeType,
		ScopeID:       scopeID,
		Confidence:    confidence,
		Source:        req.Source,
		WorkSessionID: req.WorkSessionID,
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"domain_id":   domainID,
		"entity_type": req.EntityType,
		"scope_type":  string(scopeType),
		"scope_id":    scopeID,
	}).Info("creating entity")

	created, err := s.entities.Create(ctx, ent)
	if err != nil {
		return nil, err
	}

	metrics.EntityWritesTotal.WithLabelValues(domainID, "create").Inc()
	_ = s.events.EmitEntityEvent(ctx, events.EventTypeEntityCreated, created)
	s.project(ctx, created)

	return created, nil
}

// Get returns an entity by id. Principals that cannot access the entity's
// scope get a 403, not an empty result.
func (s *Service) Get(ctx context.Context, domainID string, principal *models.Principal, id string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Service.Get")
	defer span.End()

	ent, err := s.entities.GetByID(ctx, domainID, id)
	if err != nil {
		return nil, err
	}

	if principal != nil && !s.scopes.CanAccessEntity(principal, ent) {
		return nil, httperror.NewHTTPError(http.StatusForbidden, "cannot access entity scope")
	}

	return ent, nil
}

// List returns a page of entities the filter's principal can read.
func (s *Service) List(ctx context.Context, filter entity.ListFilter) (*models.EntityListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Service.List")
	defer span.End()

	filter = entity.NormalizePaging(filter)

	items, total, err := s.entities.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &models.EntityListResponse{
		Items:      ectolinq.Map(items, func(e *models.Entity) models.Entity { return *e }),
		TotalCount: total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	}, nil
}

// Update applies a partial update. Scope changes are re-validated against
// the closed scope set and the principal must be able to write both the
// current and the new scope.
func (s *Service) Update(ctx context.Context, domainID string, principal *models.Principal, id string, req models.UpdateEntityRequest) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Service.Update")
	defer span.End()

	if err := validate.Struct(req); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	current, err := s.entities.GetByID(ctx, domainID, id)
	if err != nil {
		return nil, err
	}

	if principal != nil && !s.scopes.CanWriteEntity(principal, current) {
		return nil, httperror.NewHTTPError(http.StatusForbidden, "cannot modify entity in this scope")
	}

	if req.ScopeType != nil || req.ScopeID != nil {
		newType := current.ScopeType
		newID := current.ScopeID
		if req.ScopeType != nil {
			newType = *req.ScopeType
		}
		if req.ScopeID != nil {
			newID = *req.ScopeID
		}

		if ok, reason := s.scopes.ValidateParams(newType, newID); !ok {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, reason)
		}
		if principal != nil && !s.scopes.CanWrite(principal, newType, newID) {
			return nil, httperror.NewHTTPError(http.StatusForbidden, fmt.Sprintf("cannot move entity to scope %s:%s", newType, newID))
		}

		current.ScopeType = newType
		current.ScopeID = newID
	}

	if req.EntityType != nil {
		current.EntityType = *req.EntityType
	}
	if req.Name != nil {
		current.Name = *req.Name
	}
	if req.Properties != nil {
		current.Properties = req.Properties
	}
	if req.Confidence != nil {
		current.Confidence = *req.Confidence
	}
	if req.Source != nil {
		current.Source = *req.Source
	}

	updated, err := s.entities.Update(ctx, current)
	if err != nil {
		return nil, err
	}

	metrics.EntityWritesTotal.WithLabelValues(domainID, "update").Inc()
	_ = s.events.EmitEntityEvent(ctx, events.EventTypeEntityUpdated, updated)
	s.project(ctx, updated)

	return updated, nil
}

// Delete removes an entity and every relationship it participates in. Both
// happen in one transaction so a half-deleted entity can never be observed.
func (s *Service) Delete(ctx context.Context, domainID string, principal *models.Principal, id string) (*models.DeleteEntityResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Service.Delete")
	defer span.End()

	current, err := s.entities.GetByID(ctx, domainID, id)
	if err != nil {
		return nil, err
	}

	if principal != nil && !s.scopes.CanWriteEntity(principal, current) {
		return nil, httperror.NewHTTPError(http.StatusForbidden, "cannot delete entity in this scope")
	}

	ctxTx, tx, err := s.entities.DB().GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	// Rollback gets the pre-transaction context: with the transaction marker
	// absent it really rolls back when a step below fails, and degrades to a
	// no-op once Commit has run.
	defer tx.Rollback(ctx)

	removed, err := s.relationships.DeleteByEntity(ctxTx, domainID, id)
	if err != nil {
		return nil, err
	}

	if err := s.entities.Delete(ctxTx, domainID, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctxTx); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"domain_id":             domainID,
		"entity_id":             id,
		"relationships_removed": removed,
	}).Info("deleted entity")

	metrics.EntityWritesTotal.WithLabelValues(domainID, "delete").Inc()
	_ = s.events.EmitEntityEvent(ctx, events.EventTypeEntityDeleted, current)
	if s.graph != nil {
		if err := s.graph.Delete(ctx, domainID, id, current.EntityType); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to remove entity from graph projection")
		}
	}

	return &models.DeleteEntityResponse{
		ID:                   id,
		RelationshipsRemoved: removed,
	}, nil
}

// project mirrors an entity into the graph database, best-effort.
func (s *Service) project(ctx context.Context, ent *models.Entity) {
	if s.graph == nil {
		return
	}

	if err := s.graph.CreateOrUpdate(ctx, ent); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to project entity to graph")
	}
}
