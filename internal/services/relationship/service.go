// Package relationship implements the relationship write/read paths. Edges
// carry no scope of their own; creation is gated on access to both endpoint
// entities and everything else rides the domain partition.
package relationship

import (
	"context"
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

// Service coordinates relationship operations
type Service struct {
	logger        ectologger.Logger
	relationships relationship.RelationshipRepository
	entities      entity.EntityRepository
	scopes        *scope.Service
	events        *events.Emitter
	graph         *graph.RelationshipService // nil when the projection is disabled
}

// NewService creates a new relationship service
func NewService(
	logger ectologger.Logger,
	relationships relationship.RelationshipRepository,
	entities entity.EntityRepository,
	scopes *scope.Service,
	emitter *events.Emitter,
	graphRelationships *graph.RelationshipService,
) *Service {
	return &Service{
		logger:        logger,
		relationships: relationships,
		entities:      entities,
		scopes:        scopes,
		events:        emitter,
		graph:         graphRelationships,
	}
}

// Create persists a new edge. Both endpoints must exist in the domain and
// be accessible to the caller; a dangling reference is a 404 before any
// write happens.
func (s *Service) Create(ctx context.Context, domainID string, principal *models.Principal, req models.CreateRelationshipRequest) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Service.Create")
	defer span.End()

	if err := validate.Struct(req); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	from, to, err := s.loadEndpoints(ctx, domainID, req.FromEntityID, req.ToEntityID)
	if err != nil {
		return nil, err
	}

	if principal != nil {
		if !s.scopes.CanAccessEntity(principal, from) {
			return nil, httperror.NewHTTPError(http.StatusForbidden, fmt.Sprintf("cannot access entity %s", from.ID))
		}
		if !s.scopes.CanAccessEntity(principal, to) {
			return nil, httperror.NewHTTPError(http.StatusForbidden, fmt.Sprintf("cannot access entity %s", to.ID))
		}
	}

	confidence := 1.0
	if req.Confidence != nil {
		confidence = *req.Confidence
	}

	rel := &models.Relationship{
		DomainID:         domainID,
		FromEntityID:     req.FromEntityID,
		ToEntityID:       req.ToEntityID,
		RelationshipType: req.RelationshipType,
		Properties:       req.Properties,
		Confidence:       confidence,
		ValidFrom:        req.ValidFrom,
		ValidTo:          req.ValidTo,
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"domain_id": domainID,
		"from":      req.FromEntityID,
		"to":        req.ToEntityID,
		"rel_type":  req.RelationshipType,
	}).Info("creating relationship")

	created, err := s.relationships.Create(ctx, rel)
	if err != nil {
		return nil, err
	}

	metrics.RelationshipWritesTotal.WithLabelValues(domainID, "create").Inc()
	_ = s.events.EmitRelationshipEvent(ctx, events.EventTypeRelationshipCreated, created)
	s.project(ctx, created, from.EntityType, to.EntityType)

	return created, nil
}

// Get returns a relationship by id, 404 when absent.
func (s *Service) Get(ctx context.Context, domainID string, id string) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Service.Get")
	defer span.End()

	return s.relationships.GetByID(ctx, domainID, id)
}

// List returns a page of relationships touching the given entity,
// optionally narrowed by type.
func (s *Service) List(ctx context.Context, domainID, entityID, relationshipType string, page, pageSize int) (*models.RelationshipListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Service.List")
	defer span.End()

	if entityID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "entity_id is required")
	}

	page, pageSize = relationship.ClampPaging(page, pageSize)

	items, total, err := s.relationships.ListByEntity(ctx, domainID, entityID, relationshipType, page, pageSize)
	if err != nil {
		return nil, err
	}

	return &models.RelationshipListResponse{
		Items:      ectolinq.Map(items, func(r *models.Relationship) models.Relationship { return *r }),
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// Update applies a partial update to an edge. Endpoints are immutable;
// redirecting an edge means deleting it and creating a new one.
func (s *Service) Update(ctx context.Context, domainID string, id string, req models.UpdateRelationshipRequest) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Service.Update")
	defer span.End()

	if err := validate.Struct(req); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	current, err := s.relationships.GetByID(ctx, domainID, id)
	if err != nil {
		return nil, err
	}

	if req.RelationshipType != nil {
		current.RelationshipType = *req.RelationshipType
	}
	if req.Properties != nil {
		current.Properties = req.Properties
	}
	if req.Confidence != nil {
		current.Confidence = *req.Confidence
	}
	if req.ValidFrom != nil {
		current.ValidFrom = req.ValidFrom
	}
	if req.ValidTo != nil {
		current.ValidTo = req.ValidTo
	}

	updated, err := s.relationships.Update(ctx, current)
	if err != nil {
		return nil, err
	}

	metrics.RelationshipWritesTotal.WithLabelValues(domainID, "update").Inc()

	if s.graph != nil {
		from, to, err := s.loadEndpoints(ctx, domainID, updated.FromEntityID, updated.ToEntityID)
		if err == nil {
			s.project(ctx, updated, from.EntityType, to.EntityType)
		}
	}

	return updated, nil
}

// Delete removes one edge.
func (s *Service) Delete(ctx context.Context, domainID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "relationship.Service.Delete")
	defer span.End()

	current, err := s.relationships.GetByID(ctx, domainID, id)
	if err != nil {
		return err
	}

	if err := s.relationships.Delete(ctx, domainID, id); err != nil {
		return err
	}

	metrics.RelationshipWritesTotal.WithLabelValues(domainID, "delete").Inc()
	_ = s.events.EmitRelationshipEvent(ctx, events.EventTypeRelationshipDeleted, current)
	if s.graph != nil {
		if err := s.graph.Delete(ctx, domainID, id, current.RelationshipType); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to remove relationship from graph projection")
		}
	}

	return nil
}

// loadEndpoints fetches both endpoint entities, returning a 404 naming
// whichever endpoint is missing.
func (s *Service) loadEndpoints(ctx context.Context, domainID, fromID, toID string) (*models.Entity, *models.Entity, error) {
	endpoints, err := s.entities.GetByIDs(ctx, domainID, []string{fromID, toID})
	if err != nil {
		return nil, nil, err
	}

	found := make(map[string]*models.Entity, len(endpoints))
	for _, e := range endpoints {
		found[e.ID] = e
	}

	from, ok := found[fromID]
	if !ok {
		return nil, nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("from entity %s not found", fromID))
	}
	to, ok := found[toID]
	if !ok {
		return nil, nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("to entity %s not found", toID))
	}

	return from, to, nil
}

// project mirrors an edge into the graph database, best-effort.
func (s *Service) project(ctx context.Context, rel *models.Relationship, fromType, toType string) {
	if s.graph == nil {
		return
	}

	if err := s.graph.CreateOrUpdate(ctx, rel, fromType, toType); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to project relationship to graph")
	}
}
