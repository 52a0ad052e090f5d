package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// EntityService handles entity projections in the graph database
type EntityService struct {
	client *Client
	logger ectologger.Logger
}

// NewEntityService creates a new entity service
func NewEntityService(client *Client, logger ectologger.Logger) *EntityService {
	return &EntityService{
		client: client,
		logger: logger,
	}
}

// CreateOrUpdate creates or updates an entity node. The node label is the
// entity type, so Cypher users can match on :Person, :Project and so on.
func (s *EntityService) CreateOrUpdate(ctx context.Context, entity *models.Entity) error {
	ctx, span := tracing.StartSpan(ctx, "graph.EntityService.CreateOrUpdate")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id":   entity.ID,
		"entity_type": entity.EntityType,
		"domain_id":   entity.DomainID,
	})

	props := map[string]any{
		"id":          entity.ID,
		"domain_id":   entity.DomainID,
		"entity_type": entity.EntityType,
		"name":        entity.Name,
		"scope_type":  string(entity.ScopeType),
		"scope_id":    entity.ScopeID,
		"confidence":  entity.Confidence,
		"created_at":  entity.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		"updated_at":  entity.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	for k, v := range entity.Properties {
		props[k] = v
	}

	cypher := fmt.Sprintf(`
		MERGE (e:%s {id: $id, domain_id: $domain_id})
		SET e = $props
		RETURN e
	`, sanitizeLabel(entity.EntityType))

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"id":        entity.ID,
			"domain_id": entity.DomainID,
			"props":     props,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		metrics.GraphProjectionsTotal.WithLabelValues("entity_upsert", "error").Inc()
		log.WithError(err).Error("Failed to create/update entity in graph")
		return fmt.Errorf("failed to create/update entity in graph: %w", err)
	}

	metrics.GraphProjectionsTotal.WithLabelValues("entity_upsert", "ok").Inc()
	log.Debug("Created/updated entity in graph")
	return nil
}

// Delete removes an entity node and every edge touching it, mirroring the
// relational cascade
func (s *EntityService) Delete(ctx context.Context, domainID, entityID, entityType string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.EntityService.Delete")
	defer span.End()

	cypher := fmt.Sprintf(`
		MATCH (e:%s {id: $id, domain_id: $domain_id})
		DETACH DELETE e
	`, sanitizeLabel(entityType))

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"id":        entityID,
			"domain_id": domainID,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		metrics.GraphProjectionsTotal.WithLabelValues("entity_delete", "error").Inc()
		s.logger.WithContext(ctx).WithError(err).Error("Failed to delete entity in graph")
		return fmt.Errorf("failed to delete entity in graph: %w", err)
	}

	metrics.GraphProjectionsTotal.WithLabelValues("entity_delete", "ok").Inc()
	return nil
}

// DeleteDomain removes every node in a domain, edges included
func (s *EntityService) DeleteDomain(ctx context.Context, domainID string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.EntityService.DeleteDomain")
	defer span.End()

	cypher := `
		MATCH (e {domain_id: $domain_id})
		DETACH DELETE e
	`

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"domain_id": domainID,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		metrics.GraphProjectionsTotal.WithLabelValues("domain_delete", "error").Inc()
		s.logger.WithContext(ctx).WithError(err).Error("Failed to delete domain in graph")
		return fmt.Errorf("failed to delete domain in graph: %w", err)
	}

	metrics.GraphProjectionsTotal.WithLabelValues("domain_delete", "ok").Inc()
	return nil
}

// sanitizeLabel ensures the label is safe for Cypher
func sanitizeLabel(label string) string {
	// Only allow alphanumeric and underscore
	result := ""
	for _, c := range label {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			result += string(c)
		}
	}
	if result == "" {
		return "Entity"
	}
	return result
}
