// Package events handles event emission for entity and relationship
// lifecycle changes
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Event types emitted on the graph events topic.
const (
	EventTypeEntityCreated       = "entity.created"
	EventTypeEntityUpdated       = "entity.updated"
	EventTypeEntityDeleted       = "entity.deleted"
	EventTypeRelationshipCreated = "relationship.created"
	EventTypeRelationshipDeleted = "relationship.deleted"
)

// Emitter publishes lifecycle events. With no producer configured every
// emit is a no-op, so callers never need to know whether events are on.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitEntityEvent emits an entity lifecycle event
func (e *Emitter) EmitEntityEvent(ctx context.Context, eventType string, entity *models.Entity) error {
	if e.producer == nil {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitEntityEvent")
	defer span.End()

	event := &kafka.EntityEvent{
		EventType:  eventType,
		DomainID:   entity.DomainID,
		EntityID:   entity.ID,
		EntityType: entity.EntityType,
	}

	if err := e.producer.PublishEntityEvent(ctx, event); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(eventType, "error").Inc()
		e.logger.WithContext(ctx).WithError(err).WithField("event_type", eventType).Error("Failed to emit entity event")
		return err
	}

	metrics.EventsPublishedTotal.WithLabelValues(eventType, "ok").Inc()
	return nil
}

// EmitRelationshipEvent emits a relationship lifecycle event
func (e *Emitter) EmitRelationshipEvent(ctx context.Context, eventType string, relationship *models.Relationship) error {
	if e.producer == nil {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRelationshipEvent")
	defer span.End()

	event := &kafka.RelationshipEvent{
		EventType:        eventType,
		DomainID:         relationship.DomainID,
		RelationshipID:   relationship.ID,
		RelationshipType: relationship.RelationshipType,
		FromEntityID:     relationship.FromEntityID,
		ToEntityID:       relationship.ToEntityID,
	}

	if err := e.producer.PublishRelationshipEvent(ctx, event); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(eventType, "error").Inc()
		e.logger.WithContext(ctx).WithError(err).WithField("event_type", eventType).Error("Failed to emit relationship event")
		return err
	}

	metrics.EventsPublishedTotal.WithLabelValues(eventType, "ok").Inc()
	return nil
}
