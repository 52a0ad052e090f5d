package models

// Team membership roles, strongest first. Every role except viewer carries
// write capability on the team scope.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// Principal is the read-only identity the scope engine decides against:
// a user plus their active team memberships and admin flags.
type Principal struct {
	ID            string           `json:"id"`
	DomainID      string           `json:"domain_id"`
	Name          string           `json:"name,omitempty"`
	IsAdmin       bool             `json:"is_admin"`
	IsDomainAdmin bool             `json:"is_domain_admin"`
	Memberships   []TeamMembership `json:"memberships,omitempty"`
}

// TeamMembership is one active team link on a principal.
type TeamMembership struct {
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name,omitempty"`
	Role     string `json:"role"`
}

// MembershipFor returns the principal's membership in the given team.
func (p *Principal) MembershipFor(teamID string) (TeamMembership, bool) {
	for _, m := range p.Memberships {
		if m.TeamID == teamID {
			return m, true
		}
	}
	return TeamMembership{}, false
}

// TeamIDs returns the ids of every team the principal belongs to.
func (p *Principal) TeamIDs() []string {
	ids := make([]string, 0, len(p.Memberships))
	for _, m := range p.Memberships {
		ids = append(ids, m.TeamID)
	}
	return ids
}
