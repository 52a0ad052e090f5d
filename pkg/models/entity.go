package models

import (
	"time"
)

// Known entity type tags. The set is open: callers may file entities under
// any tag, these are only the ones other subsystems key behavior off of.
const (
	EntityTypePerson    = "Person"
	EntityTypeProject   = "Project"
	EntityTypeTeam      = "Team"
	EntityTypeClient    = "Client"
	EntityTypeMilestone = "Milestone"
)

// Entity is a typed node in the knowledge graph.
type Entity struct {
	ID            string         `json:"id"`
	DomainID      string         `json:"domain_id"`
	EntityType    string         `json:"entity_type"`
	Name          string         `json:"name"`
	Properties    map[string]any `json:"properties,omitempty"`
	ScopeType     ScopeType      `json:"scope_type,omitempty"`
	ScopeID       string         `json:"scope_id,omitempty"`
	Confidence    float64        `json:"confidence"`
	Source        string         `json:"source,omitempty"`
	WorkSessionID *string        `json:"work_session_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// EffectiveScope resolves the scope an entity is actually gated by. Rows
// with no scope type, and rows carrying a tag outside the named set (legacy
// data, repair-stamped project scopes), read as domain-scoped under their
// owning domain.
func (e *Entity) EffectiveScope() Scope {
	if e.ScopeType == "" || !e.ScopeType.IsValid() {
		return Scope{ScopeType: ScopeTypeDomain, ScopeID: e.DomainID}
	}
	return Scope{ScopeType: e.ScopeType, ScopeID: e.ScopeID}
}

// CreateEntityRequest is the request for creating an entity. When no scope
// is supplied the default scope for the calling principal is applied.
type CreateEntityRequest struct {
	EntityType    string         `json:"entity_type" validate:"required"`
	Name          string         `json:"name" validate:"required"`
	Properties    map[string]any `json:"properties,omitempty"`
	ScopeType     ScopeType      `json:"scope_type,omitempty"`
	ScopeID       string         `json:"scope_id,omitempty"`
	Confidence    *float64       `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Source        string         `json:"source,omitempty"`
	WorkSessionID *string        `json:"work_session_id,omitempty"`
	ActiveTeamID  string         `json:"active_team_id,omitempty"`
}

// UpdateEntityRequest is a partial update; nil fields are left untouched.
type UpdateEntityRequest struct {
	EntityType *string        `json:"entity_type,omitempty"`
	Name       *string        `json:"name,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	ScopeType  *ScopeType     `json:"scope_type,omitempty"`
	ScopeID    *string        `json:"scope_id,omitempty"`
	Confidence *float64       `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Source     *string        `json:"source,omitempty"`
}

// EntityListResponse is the response for listing entities
type EntityListResponse struct {
	Items      []Entity `json:"items"`
	TotalCount int      `json:"total_count"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
}

// DeleteEntityResponse reports the cascade: deleting an entity removes every
// relationship it participates in.
type DeleteEntityResponse struct {
	ID                   string `json:"id"`
	RelationshipsRemoved int    `json:"relationships_removed"`
}
