package scope

import (
	"fmt"

	"github.com/Gobusters/ectolinq"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Service answers which scopes a principal may read and write, how to
// default new writes, and builds the row-visibility predicate for list
// queries. Every method is pure: no state, no side effects, no errors for
// valid input.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// writableRoles are the membership roles that carry write capability on a
// team scope.
var writableRoles = []string{models.RoleOwner, models.RoleAdmin, models.RoleMember}

// AccessibleScopes lists every scope the principal can read, with the level
// of access held. The system scope is always present.
func (s *Service) AccessibleScopes(p *models.Principal) []models.ScopeAccess {
	scopes := []models.ScopeAccess{
		{
			ScopeType:   models.ScopeTypeSystem,
			Name:        "System",
			AccessLevel: models.AccessLevelMember,
		},
	}

	if p == nil {
		return scopes
	}

	if p.DomainID != "" {
		level := models.AccessLevelMember
		if p.IsAdmin || p.IsDomainAdmin {
			level = models.AccessLevelAdmin
		}
		scopes = append(scopes, models.ScopeAccess{
			ScopeType:   models.ScopeTypeDomain,
			ScopeID:     p.DomainID,
			Name:        "Domain",
			AccessLevel: level,
		})
	}

	for _, m := range p.Memberships {
		name := m.TeamName
		if name == "" {
			name = m.TeamID
		}
		scopes = append(scopes, models.ScopeAccess{
			ScopeType:   models.ScopeTypeTeam,
			ScopeID:     m.TeamID,
			Name:        name,
			AccessLevel: m.Role,
		})
	}

	scopes = append(scopes, models.ScopeAccess{
		ScopeType:   models.ScopeTypeUser,
		ScopeID:     p.ID,
		Name:        "Personal",
		AccessLevel: models.AccessLevelOwner,
	})

	return scopes
}

// CanAccess reports whether the principal may read the scope. Unknown scope
// types fall back to a domain comparison, so callers resolving an entity
// should pass its effective scope.
func (s *Service) CanAccess(p *models.Principal, scopeType models.ScopeType, scopeID string) bool {
	if p == nil {
		return scopeType == models.ScopeTypeSystem
	}
	if p.IsAdmin {
		return true
	}

	switch scopeType {
	case models.ScopeTypeSystem:
		return true
	case models.ScopeTypeDomain:
		return p.DomainID == scopeID
	case models.ScopeTypeTeam:
		_, ok := p.MembershipFor(scopeID)
		return ok
	case models.ScopeTypeUser:
		return scopeID == p.ID
	default:
		return p.DomainID == scopeID
	}
}

// CanWrite reports whether the principal may write into the scope. Write
// access is strictly narrower than read access: domain writes require
// domain-admin, team writes require a non-viewer role, the system scope is
// reserved for the integrity repair path.
func (s *Service) CanWrite(p *models.Principal, scopeType models.ScopeType, scopeID string) bool {
	if p == nil {
		return false
	}

	switch scopeType {
	case models.ScopeTypeSystem:
		return false
	case models.ScopeTypeDomain:
		if p.IsAdmin {
			return true
		}
		return p.IsDomainAdmin && p.DomainID == scopeID
	case models.ScopeTypeTeam:
		if p.IsAdmin {
			return true
		}
		m, ok := p.MembershipFor(scopeID)
		return ok && ectolinq.Contains(writableRoles, m.Role)
	case models.ScopeTypeUser:
		if p.IsAdmin {
			return true
		}
		return scopeID == p.ID
	default:
		if p.IsAdmin {
			return true
		}
		return p.IsDomainAdmin && p.DomainID == scopeID
	}
}

// CanAccessEntity resolves the entity's effective scope before checking, so
// legacy unscoped rows and repair-stamped tags gate like domain rows.
func (s *Service) CanAccessEntity(p *models.Principal, e *models.Entity) bool {
	sc := e.EffectiveScope()
	return s.CanAccess(p, sc.ScopeType, sc.ScopeID)
}

// CanWriteEntity resolves the entity's effective scope before checking.
func (s *Service) CanWriteEntity(p *models.Principal, e *models.Entity) bool {
	sc := e.EffectiveScope()
	return s.CanWrite(p, sc.ScopeType, sc.ScopeID)
}

// Filter builds the row-visibility disjunction for the principal against
// the entities table: system rows, rows of the principal's domain that are
// not member-gated (including legacy NULL scope types), team rows for the
// principal's teams, and the principal's own user rows. System admins see
// everything; the returned expression is empty and the caller must add
// nothing.
func (s *Service) Filter(sb *database.SelectBuilder, p *models.Principal) string {
	if p != nil && p.IsAdmin {
		return ""
	}

	conds := []string{
		sb.Equal("scope_type", string(models.ScopeTypeSystem)),
	}

	if p == nil {
		return sb.Or(conds...)
	}

	if p.DomainID != "" {
		conds = append(conds, sb.And(
			sb.Equal("domain_id", p.DomainID),
			sb.Or(
				sb.IsNull("scope_type"),
				sb.NotIn("scope_type",
					string(models.ScopeTypeSystem),
					string(models.ScopeTypeTeam),
					string(models.ScopeTypeUser),
				),
			),
		))
	}

	teamIDs := ectolinq.Map(p.Memberships, func(m models.TeamMembership) string {
		return m.TeamID
	})
	if len(teamIDs) > 0 {
		conds = append(conds, sb.And(
			sb.Equal("scope_type", string(models.ScopeTypeTeam)),
			sb.In("scope_id", sqlbuilder.Flatten(teamIDs)...),
		))
	}

	conds = append(conds, sb.And(
		sb.Equal("scope_type", string(models.ScopeTypeUser)),
		sb.Equal("scope_id", p.ID),
	))

	return sb.Or(conds...)
}

// DefaultScope resolves the scope a new write lands in when the caller
// supplies none: the active team hint when the principal really belongs to
// it, the sole team when exactly one membership exists, the domain, and the
// personal scope as last resort.
func (s *Service) DefaultScope(p *models.Principal, activeTeamID string) models.Scope {
	if p == nil {
		return models.Scope{}
	}

	if activeTeamID != "" {
		if _, ok := p.MembershipFor(activeTeamID); ok {
			return models.Scope{ScopeType: models.ScopeTypeTeam, ScopeID: activeTeamID}
		}
	}

	if len(p.Memberships) == 1 {
		return models.Scope{ScopeType: models.ScopeTypeTeam, ScopeID: p.Memberships[0].TeamID}
	}

	if p.DomainID != "" {
		return models.Scope{ScopeType: models.ScopeTypeDomain, ScopeID: p.DomainID}
	}

	return models.Scope{ScopeType: models.ScopeTypeUser, ScopeID: p.ID}
}

// ValidateParams checks a scope tuple: the system scope carries no id,
// every other named scope requires one, anything else is rejected.
func (s *Service) ValidateParams(scopeType models.ScopeType, scopeID string) (bool, string) {
	if !scopeType.IsValid() {
		return false, fmt.Sprintf("unrecognized scope_type %q", scopeType)
	}

	if scopeType == models.ScopeTypeSystem {
		if scopeID != "" {
			return false, "system scope must not carry a scope_id"
		}
		return true, ""
	}

	if scopeID == "" {
		return false, fmt.Sprintf("scope_type %q requires a scope_id", scopeType)
	}

	return true, ""
}
