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

// RelationshipService handles relationship projections in the graph database
type RelationshipService struct {
	client *Client
	logger ectologger.Logger
}

// NewRelationshipService creates a new relationship service
func NewRelationshipService(client *Client, logger ectologger.Logger) *RelationshipService {
	return &RelationshipService{
		client: client,
		logger: logger,
	}
}

// CreateOrUpdate creates or updates an edge between two projected entities.
// The endpoint entity types pick the node labels to match against.
func (s *RelationshipService) CreateOrUpdate(ctx context.Context, rel *models.Relationship, fromEntityType, toEntityType string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.RelationshipService.CreateOrUpdate")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"rel_id":    rel.ID,
		"from":      rel.FromEntityID,
		"to":        rel.ToEntityID,
		"rel_type":  rel.RelationshipType,
		"domain_id": rel.DomainID,
	})

	props := map[string]any{
		"id":         rel.ID,
		"domain_id":  rel.DomainID,
		"confidence": rel.Confidence,
	}
	for k, v := range rel.Properties {
		props[k] = v
	}

	cypher := fmt.Sprintf(`
		MATCH (from:%s {id: $from_id, domain_id: $domain_id})
		MATCH (to:%s {id: $to_id, domain_id: $domain_id})
		MERGE (from)-[r:%s {id: $rel_id, domain_id: $domain_id}]->(to)
		SET r += $props
		RETURN r
	`, sanitizeLabel(fromEntityType), sanitizeLabel(toEntityType), sanitizeLabel(rel.RelationshipType))

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"from_id":   rel.FromEntityID,
			"to_id":     rel.ToEntityID,
			"rel_id":    rel.ID,
			"domain_id": rel.DomainID,
			"props":     props,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		metrics.GraphProjectionsTotal.WithLabelValues("relationship_upsert", "error").Inc()
		log.WithError(err).Error("Failed to create/update relationship in graph")
		return fmt.Errorf("failed to create/update relationship in graph: %w", err)
	}

	metrics.GraphProjectionsTotal.WithLabelValues("relationship_upsert", "ok").Inc()
	log.Debug("Created/updated relationship in graph")
	return nil
}

// Delete removes an edge by id
func (s *RelationshipService) Delete(ctx context.Context, domainID, relationshipID, relationshipType string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.RelationshipService.Delete")
	defer span.End()

	cypher := fmt.Sprintf(`
		MATCH ()-[r:%s {id: $id, domain_id: $domain_id}]->()
		DELETE r
	`, sanitizeLabel(relationshipType))

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"id":        relationshipID,
			"domain_id": domainID,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		metrics.GraphProjectionsTotal.WithLabelValues("relationship_delete", "error").Inc()
		s.logger.WithContext(ctx).WithError(err).Error("Failed to delete relationship in graph")
		return fmt.Errorf("failed to delete relationship in graph: %w", err)
	}

	metrics.GraphProjectionsTotal.WithLabelValues("relationship_delete", "ok").Inc()
	return nil
}
