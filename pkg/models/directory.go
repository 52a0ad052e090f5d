package models

import (
	"time"
)

// Directory record statuses.
const (
	StatusActive    = "active"
	StatusArchived  = "archived"
	StatusSuspended = "suspended"
)

// Work session statuses.
const (
	WorkSessionStatusActive    = "active"
	WorkSessionStatusCompleted = "completed"
)

// Project is a directory record mirrored into the graph as a strong-linked
// entity: an Entity with the project's id and type Project must exist, and
// EntityID must point back at the project's own id.
type Project struct {
	ID          string    `json:"id" db:"id"`
	DomainID    string    `json:"domain_id" db:"domain_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Status      string    `json:"status" db:"status"`
	EntityID    string    `json:"entity_id,omitempty" db:"entity_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Team is a directory record, strong-linked like Project.
type Team struct {
	ID          string    `json:"id" db:"id"`
	DomainID    string    `json:"domain_id" db:"domain_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Status      string    `json:"status" db:"status"`
	EntityID    string    `json:"entity_id,omitempty" db:"entity_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// User is the stored directory row behind a Principal. Mirrored into the
// graph as a Person entity.
type User struct {
	ID            string    `json:"id" db:"id"`
	DomainID      string    `json:"domain_id" db:"domain_id"`
	Name          string    `json:"name" db:"name"`
	Status        string    `json:"status" db:"status"`
	IsAdmin       bool      `json:"is_admin" db:"is_admin"`
	IsDomainAdmin bool      `json:"is_domain_admin" db:"is_domain_admin"`
	EntityID      string    `json:"entity_id,omitempty" db:"entity_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Client is a directory record for an execution target, strong-linked like
// Project.
type Client struct {
	ID          string    `json:"id" db:"id"`
	DomainID    string    `json:"domain_id" db:"domain_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Status      string    `json:"status" db:"status"`
	EntityID    string    `json:"entity_id,omitempty" db:"entity_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TeamMembershipRecord is the stored membership row.
type TeamMembershipRecord struct {
	ID        string    `json:"id" db:"id"`
	TeamID    string    `json:"team_id" db:"team_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Role      string    `json:"role" db:"role"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WorkSession groups entities created during one bounded period of work. It
// donates its project/team/domain context to the entities it produced, with
// precedence project > team > domain.
type WorkSession struct {
	ID        string     `json:"id" db:"id"`
	DomainID  string     `json:"domain_id" db:"domain_id"`
	ProjectID *string    `json:"project_id,omitempty" db:"project_id"`
	TeamID    *string    `json:"team_id,omitempty" db:"team_id"`
	Status    string     `json:"status" db:"status"`
	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

// ExpectedScope computes the scope a session-produced entity should carry,
// by precedence project > team > domain.
func (ws *WorkSession) ExpectedScope() Scope {
	if ws.ProjectID != nil && *ws.ProjectID != "" {
		return Scope{ScopeType: ScopeTypeProject, ScopeID: *ws.ProjectID}
	}
	if ws.TeamID != nil && *ws.TeamID != "" {
		return Scope{ScopeType: ScopeTypeTeam, ScopeID: *ws.TeamID}
	}
	return Scope{ScopeType: ScopeTypeDomain, ScopeID: ws.DomainID}
}

// Agent is an automation identity acting on behalf of a user, optionally
// bound to a client it executes against.
type Agent struct {
	ID        string    `json:"id" db:"id"`
	DomainID  string    `json:"domain_id" db:"domain_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	ClientID  *string   `json:"client_id,omitempty" db:"client_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UpsertProjectRequest creates or refreshes a directory project row. IDs
// come from the originating system, not from this service.
type UpsertProjectRequest struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

type UpsertTeamRequest struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

type UpsertUserRequest struct {
	ID            string `json:"id" validate:"required"`
	Name          string `json:"name" validate:"required"`
	Status        string `json:"status,omitempty"`
	IsAdmin       bool   `json:"is_admin,omitempty"`
	IsDomainAdmin bool   `json:"is_domain_admin,omitempty"`
}

type UpsertClientRequest struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

type UpsertWorkSessionRequest struct {
	ID        string  `json:"id" validate:"required"`
	ProjectID *string `json:"project_id,omitempty"`
	TeamID    *string `json:"team_id,omitempty"`
	Status    string  `json:"status,omitempty"`
}

type UpsertAgentRequest struct {
	ID       string  `json:"id" validate:"required"`
	UserID   string  `json:"user_id" validate:"required"`
	ClientID *string `json:"client_id,omitempty"`
	Name     string  `json:"name" validate:"required"`
}

type AddTeamMemberRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=owner admin member viewer"`
}
