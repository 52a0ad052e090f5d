package scope

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

func testPrincipal() *models.Principal {
	return &models.Principal{
		ID:       "user-1",
		DomainID: "domain-1",
		Memberships: []models.TeamMembership{
			{TeamID: "team-1", TeamName: "Platform", Role: models.RoleMember},
			{TeamID: "team-2", TeamName: "Research", Role: models.RoleViewer},
		},
	}
}

func TestAccessibleScopes(t *testing.T) {
	svc := NewService()

	t.Run("includes system, domain, teams and personal scope", func(t *testing.T) {
		p := testPrincipal()
		scopes := svc.AccessibleScopes(p)

		require.Len(t, scopes, 5)
		assert.Equal(t, models.ScopeTypeSystem, scopes[0].ScopeType)
		assert.Equal(t, models.ScopeTypeDomain, scopes[1].ScopeType)
		assert.Equal(t, "domain-1", scopes[1].ScopeID)
		assert.Equal(t, models.AccessLevelMember, scopes[1].AccessLevel)
		assert.Equal(t, "team-1", scopes[2].ScopeID)
		assert.Equal(t, models.RoleMember, scopes[2].AccessLevel)
		assert.Equal(t, "Research", scopes[3].Name)
		assert.Equal(t, models.ScopeTypeUser, scopes[4].ScopeType)
		assert.Equal(t, "user-1", scopes[4].ScopeID)
		assert.Equal(t, models.AccessLevelOwner, scopes[4].AccessLevel)
	})

	t.Run("domain admins get admin level on the domain scope", func(t *testing.T) {
		p := testPrincipal()
		p.IsDomainAdmin = true
		scopes := svc.AccessibleScopes(p)
		assert.Equal(t, models.AccessLevelAdmin, scopes[1].AccessLevel)
	})

	t.Run("nil principal only sees the system scope", func(t *testing.T) {
		scopes := svc.AccessibleScopes(nil)
		require.Len(t, scopes, 1)
		assert.Equal(t, models.ScopeTypeSystem, scopes[0].ScopeType)
	})
}

func TestCanAccess(t *testing.T) {
	svc := NewService()
	p := testPrincipal()

	tests := []struct {
		name      string
		principal *models.Principal
		scopeType models.ScopeType
		scopeID   string
		want      bool
	}{
		{"system is readable by everyone", p, models.ScopeTypeSystem, "", true},
		{"own domain", p, models.ScopeTypeDomain, "domain-1", true},
		{"foreign domain", p, models.ScopeTypeDomain, "domain-2", false},
		{"member team", p, models.ScopeTypeTeam, "team-1", true},
		{"viewer team still readable", p, models.ScopeTypeTeam, "team-2", true},
		{"foreign team", p, models.ScopeTypeTeam, "team-9", false},
		{"own user scope", p, models.ScopeTypeUser, "user-1", true},
		{"foreign user scope", p, models.ScopeTypeUser, "user-2", false},
		{"unknown type falls back to domain compare", p, models.ScopeType("project"), "domain-1", true},
		{"unknown type with non-domain id", p, models.ScopeType("project"), "proj-1", false},
		{"nil principal reads system", nil, models.ScopeTypeSystem, "", true},
		{"nil principal reads nothing else", nil, models.ScopeTypeDomain, "domain-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.CanAccess(tt.principal, tt.scopeType, tt.scopeID))
		})
	}

	t.Run("system admin reads everything", func(t *testing.T) {
		admin := testPrincipal()
		admin.IsAdmin = true
		assert.True(t, svc.CanAccess(admin, models.ScopeTypeDomain, "domain-9"))
		assert.True(t, svc.CanAccess(admin, models.ScopeTypeUser, "user-9"))
	})
}

func TestCanWrite(t *testing.T) {
	svc := NewService()

	t.Run("domain writes require domain admin", func(t *testing.T) {
		p := testPrincipal()
		assert.False(t, svc.CanWrite(p, models.ScopeTypeDomain, "domain-1"))
		p.IsDomainAdmin = true
		assert.True(t, svc.CanWrite(p, models.ScopeTypeDomain, "domain-1"))
		assert.False(t, svc.CanWrite(p, models.ScopeTypeDomain, "domain-2"))
	})

	t.Run("team writes require a non-viewer role", func(t *testing.T) {
		p := testPrincipal()
		assert.True(t, svc.CanWrite(p, models.ScopeTypeTeam, "team-1"))
		assert.False(t, svc.CanWrite(p, models.ScopeTypeTeam, "team-2"))
		assert.False(t, svc.CanWrite(p, models.ScopeTypeTeam, "team-9"))
	})

	t.Run("user writes require exact principal match", func(t *testing.T) {
		p := testPrincipal()
		assert.True(t, svc.CanWrite(p, models.ScopeTypeUser, "user-1"))
		assert.False(t, svc.CanWrite(p, models.ScopeTypeUser, "user-2"))
	})

	t.Run("system scope is never writable, even for admins", func(t *testing.T) {
		admin := testPrincipal()
		admin.IsAdmin = true
		assert.False(t, svc.CanWrite(admin, models.ScopeTypeSystem, ""))
	})

	t.Run("unset scope falls back to domain admin check", func(t *testing.T) {
		p := testPrincipal()
		assert.False(t, svc.CanWrite(p, models.ScopeType(""), "domain-1"))
		p.IsDomainAdmin = true
		assert.True(t, svc.CanWrite(p, models.ScopeType(""), "domain-1"))
	})
}

// Write access must never exceed read access, for any principal/scope pair.
func TestWriteNeverExceedsRead(t *testing.T) {
	svc := NewService()
	rng := rand.New(rand.NewSource(42))

	scopeTypes := []models.ScopeType{
		models.ScopeTypeSystem,
		models.ScopeTypeDomain,
		models.ScopeTypeTeam,
		models.ScopeTypeUser,
		models.ScopeType(""),
		models.ScopeType("project"),
	}
	roles := []string{models.RoleOwner, models.RoleAdmin, models.RoleMember, models.RoleViewer}
	ids := []string{"domain-1", "domain-2", "team-1", "team-2", "user-1", "user-2", ""}

	for i := 0; i < 500; i++ {
		p := &models.Principal{
			ID:            fmt.Sprintf("user-%d", rng.Intn(3)),
			DomainID:      fmt.Sprintf("domain-%d", rng.Intn(3)),
			IsAdmin:       rng.Intn(10) == 0,
			IsDomainAdmin: rng.Intn(4) == 0,
		}
		for m := 0; m < rng.Intn(3); m++ {
			p.Memberships = append(p.Memberships, models.TeamMembership{
				TeamID: fmt.Sprintf("team-%d", rng.Intn(3)),
				Role:   roles[rng.Intn(len(roles))],
			})
		}

		scopeType := scopeTypes[rng.Intn(len(scopeTypes))]
		scopeID := ids[rng.Intn(len(ids))]

		if !svc.CanAccess(p, scopeType, scopeID) {
			assert.False(t, svc.CanWrite(p, scopeType, scopeID),
				"write without read for principal %+v on (%s, %s)", p, scopeType, scopeID)
		}
	}
}

func TestDefaultScope(t *testing.T) {
	svc := NewService()

	t.Run("active team hint wins when the principal is a member", func(t *testing.T) {
		p := testPrincipal()
		sc := svc.DefaultScope(p, "team-2")
		assert.Equal(t, models.Scope{ScopeType: models.ScopeTypeTeam, ScopeID: "team-2"}, sc)
	})

	t.Run("hint for a foreign team is ignored", func(t *testing.T) {
		p := testPrincipal()
		sc := svc.DefaultScope(p, "team-9")
		assert.Equal(t, models.ScopeTypeDomain, sc.ScopeType)
	})

	t.Run("sole team wins without a hint", func(t *testing.T) {
		p := testPrincipal()
		p.Memberships = p.Memberships[:1]
		sc := svc.DefaultScope(p, "")
		assert.Equal(t, models.Scope{ScopeType: models.ScopeTypeTeam, ScopeID: "team-1"}, sc)
	})

	t.Run("multiple teams default to the domain, never a guessed team", func(t *testing.T) {
		p := testPrincipal()
		sc := svc.DefaultScope(p, "")
		assert.Equal(t, models.Scope{ScopeType: models.ScopeTypeDomain, ScopeID: "domain-1"}, sc)
	})

	t.Run("personal scope is the last resort", func(t *testing.T) {
		p := &models.Principal{ID: "user-7"}
		sc := svc.DefaultScope(p, "")
		assert.Equal(t, models.Scope{ScopeType: models.ScopeTypeUser, ScopeID: "user-7"}, sc)
	})
}

func TestValidateParams(t *testing.T) {
	svc := NewService()

	tests := []struct {
		name      string
		scopeType models.ScopeType
		scopeID   string
		want      bool
	}{
		{"system without id", models.ScopeTypeSystem, "", true},
		{"system with id", models.ScopeTypeSystem, "x", false},
		{"domain with id", models.ScopeTypeDomain, "domain-1", true},
		{"domain without id", models.ScopeTypeDomain, "", false},
		{"team with id", models.ScopeTypeTeam, "team-1", true},
		{"team without id", models.ScopeTypeTeam, "", false},
		{"user with id", models.ScopeTypeUser, "user-1", true},
		{"user without id", models.ScopeTypeUser, "", false},
		{"unrecognized type", models.ScopeType("galaxy"), "x", false},
		{"empty type", models.ScopeType(""), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := svc.ValidateParams(tt.scopeType, tt.scopeID)
			assert.Equal(t, tt.want, ok)
			if !tt.want {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	svc := NewService()

	t.Run("system admins bypass filtering", func(t *testing.T) {
		p := testPrincipal()
		p.IsAdmin = true
		sb := database.NewSelectBuilder()
		sb.Select("*").From("entities")
		assert.Empty(t, svc.Filter(sb, p))
	})

	t.Run("predicate carries all four scope conditions", func(t *testing.T) {
		p := testPrincipal()
		sb := database.NewSelectBuilder()
		sb.Select("*").From("entities")
		expr := svc.Filter(sb, p)
		require.NotEmpty(t, expr)
		sb.Where(expr)

		sql, args := sb.Build()
		assert.Contains(t, sql, "scope_type")
		assert.Contains(t, sql, "domain_id")
		assert.Contains(t, args, "domain-1")
		assert.Contains(t, args, "team-1")
		assert.Contains(t, args, "team-2")
		assert.Contains(t, args, "user-1")
	})

	t.Run("principal without teams omits the team condition", func(t *testing.T) {
		p := testPrincipal()
		p.Memberships = nil
		sb := database.NewSelectBuilder()
		sb.Select("*").From("entities")
		expr := svc.Filter(sb, p)
		sb.Where(expr)

		_, args := sb.Build()
		assert.NotContains(t, args, "team-1")
		assert.Contains(t, args, "user-1")
	})
}
