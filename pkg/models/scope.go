package models

// ScopeType is the kind of authorization boundary an entity is filed under.
// The set is closed; writes carrying any other value are rejected. An unset
// scope type is legal and is read as domain-scoped.
type ScopeType string

const (
	ScopeTypeSystem ScopeType = "system"
	ScopeTypeDomain ScopeType = "domain"
	ScopeTypeTeam   ScopeType = "team"
	ScopeTypeUser   ScopeType = "user"

	// ScopeTypeProject is stamped only by the integrity repair path when a
	// milestone inherits a project-backed work session. It is outside the
	// writable set for ordinary callers; the access engine reads it like any
	// unknown scope type, as domain-scoped.
	ScopeTypeProject ScopeType = "project"
)

// IsValid reports whether the scope type is one of the named scope kinds
// ordinary writes may carry.
func (s ScopeType) IsValid() bool {
	switch s {
	case ScopeTypeSystem, ScopeTypeDomain, ScopeTypeTeam, ScopeTypeUser:
		return true
	default:
		return false
	}
}

func (s ScopeType) String() string {
	return string(s)
}

// Scope is a computed authorization unit, not a stored row.
type Scope struct {
	ScopeType ScopeType `json:"scope_type"`
	ScopeID   string    `json:"scope_id,omitempty"`
}

// ScopeAccess is one scope a principal can reach, with the level of access
// they hold on it.
type ScopeAccess struct {
	ScopeType   ScopeType `json:"scope_type"`
	ScopeID     string    `json:"scope_id,omitempty"`
	Name        string    `json:"name"`
	AccessLevel string    `json:"access_level"`
}

const (
	AccessLevelAdmin  = "admin"
	AccessLevelMember = "member"
	AccessLevelOwner  = "owner"
)

// ValidateScopeRequest asks whether a scope tuple is well formed.
type ValidateScopeRequest struct {
	ScopeType ScopeType `json:"scope_type" validate:"required"`
	ScopeID   string    `json:"scope_id,omitempty"`
}

// ValidateScopeResponse carries the verdict and a caller-facing reason when
// the tuple is rejected.
type ValidateScopeResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}
