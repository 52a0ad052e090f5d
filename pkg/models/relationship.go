package models

import (
	"time"
)

// Known relationship type tags; the set is open like entity types.
const (
	RelationshipTypeBelongsTo  = "BELONGS_TO"
	RelationshipTypeCreatedBy  = "CREATED_BY"
	RelationshipTypeExecutedBy = "EXECUTED_BY"
	RelationshipTypeWorksOn    = "WORKS_ON"
)

// Relationship is a directed, typed edge between two entities. No
// uniqueness is imposed on (from, to, type); parallel edges are legal.
type Relationship struct {
	ID               string         `json:"id"`
	DomainID         string         `json:"domain_id"`
	FromEntityID     string         `json:"from_entity_id"`
	ToEntityID       string         `json:"to_entity_id"`
	RelationshipType string         `json:"relationship_type"`
	Properties       map[string]any `json:"properties,omitempty"`
	Confidence       float64        `json:"confidence"`
	ValidFrom        *time.Time     `json:"valid_from,omitempty"`
	ValidTo          *time.Time     `json:"valid_to,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// CreateRelationshipRequest is the request for creating a relationship.
// Both endpoints must reference existing entities.
type CreateRelationshipRequest struct {
	FromEntityID     string         `json:"from_entity_id" validate:"required"`
	ToEntityID       string         `json:"to_entity_id" validate:"required"`
	RelationshipType string         `json:"relationship_type" validate:"required"`
	Properties       map[string]any `json:"properties,omitempty"`
	Confidence       *float64       `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	ValidFrom        *time.Time     `json:"valid_from,omitempty"`
	ValidTo          *time.Time     `json:"valid_to,omitempty"`
}

// UpdateRelationshipRequest is a partial update; nil fields are left untouched.
type UpdateRelationshipRequest struct {
	RelationshipType *string        `json:"relationship_type,omitempty"`
	Properties       map[string]any `json:"properties,omitempty"`
	Confidence       *float64       `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	ValidFrom        *time.Time     `json:"valid_from,omitempty"`
	ValidTo          *time.Time     `json:"valid_to,omitempty"`
}

// RelationshipListResponse is the response for listing relationships
type RelationshipListResponse struct {
	Items      []Relationship `json:"items"`
	TotalCount int            `json:"total_count"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
}
