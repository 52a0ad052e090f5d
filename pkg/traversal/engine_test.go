package traversal

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/relationship"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/scope"
)

type fakeEntityRepo struct {
	entity.EntityRepository
	entities map[string]*models.Entity
}

func (f *fakeEntityRepo) GetByID(ctx context.Context, domainID, id string) (*models.Entity, error) {
	ent, ok := f.entities[id]
	if !ok || ent.DomainID != domainID {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "entity not found")
	}
	return ent, nil
}

func (f *fakeEntityRepo) GetByIDs(ctx context.Context, domainID string, ids []string) ([]*models.Entity, error) {
	found := []*models.Entity{}
	for _, id := range ids {
		if ent, ok := f.entities[id]; ok && ent.DomainID == domainID {
			found = append(found, ent)
		}
	}
	return found, nil
}

func (f *fakeEntityRepo) SearchByName(ctx context.Context, domainID string, principal *models.Principal, nameContains string, limit int) ([]*models.Entity, error) {
	svc := scope.NewService()
	found := []*models.Entity{}
	for _, ent := range f.entities {
		if ent.DomainID != domainID {
			continue
		}
		if !strings.Contains(strings.ToLower(ent.Name), strings.ToLower(nameContains)) {
			continue
		}
		if principal != nil && !svc.CanAccessEntity(principal, ent) {
			continue
		}
		found = append(found, ent)
		if len(found) >= limit {
			break
		}
	}
	return found, nil
}

type fakeRelationshipRepo struct {
	relationship.RelationshipRepository
	rels []*models.Relationship
}

func (f *fakeRelationshipRepo) ListTouching(ctx context.Context, domainID string, entityIDs []string) ([]*models.Relationship, error) {
	set := map[string]bool{}
	for _, id := range entityIDs {
		set[id] = true
	}
	found := []*models.Relationship{}
	for _, rel := range f.rels {
		if rel.DomainID == domainID && (set[rel.FromEntityID] || set[rel.ToEntityID]) {
			found = append(found, rel)
		}
	}
	return found, nil
}

func (f *fakeRelationshipRepo) ListBetween(ctx context.Context, domainID string, entityIDs []string) ([]*models.Relationship, error) {
	set := map[string]bool{}
	for _, id := range entityIDs {
		set[id] = true
	}
	found := []*models.Relationship{}
	for _, rel := range f.rels {
		if rel.DomainID == domainID && set[rel.FromEntityID] && set[rel.ToEntityID] {
			found = append(found, rel)
		}
	}
	return found, nil
}

func testEntity(id, name, entityType string) *models.Entity {
	return &models.Entity{
		ID:         id,
		DomainID:   "domain-1",
		EntityType: entityType,
		Name:       name,
		ScopeType:  models.ScopeTypeDomain,
		ScopeID:    "domain-1",
	}
}

func testEdge(id, from, to, relType string) *models.Relationship {
	return &models.Relationship{
		ID:               id,
		DomainID:         "domain-1",
		FromEntityID:     from,
		ToEntityID:       to,
		RelationshipType: relType,
	}
}

func testEngine(entities map[string]*models.Entity, rels []*models.Relationship) *Engine {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewEngine(
		logger,
		&fakeEntityRepo{entities: entities},
		&fakeRelationshipRepo{rels: rels},
		scope.NewService(),
		DefaultConfig(),
	)
}

func memberPrincipal() *models.Principal {
	return &models.Principal{
		ID:       "user-1",
		DomainID: "domain-1",
		Memberships: []models.TeamMembership{
			{TeamID: "team-1", Role: models.RoleMember},
		},
	}
}

func TestNeighborsCyclicGraph(t *testing.T) {
	// a -> b -> c -> d -> a
	entities := map[string]*models.Entity{
		"a": testEntity("a", "Alpha", "Project"),
		"b": testEntity("b", "Beta", "Project"),
		"c": testEntity("c", "Gamma", "Project"),
		"d": testEntity("d", "Delta", "Project"),
	}
	rels := []*models.Relationship{
		testEdge("r1", "a", "b", "BELONGS_TO"),
		testEdge("r2", "b", "c", "BELONGS_TO"),
		testEdge("r3", "c", "d", "BELONGS_TO"),
		testEdge("r4", "d", "a", "BELONGS_TO"),
	}
	e := testEngine(entities, rels)

	result, err := e.Neighbors(context.Background(), memberPrincipal(), "domain-1", "a", 10)
	require.NoError(t, err)

	assert.Len(t, result.Entities, 4)
	assert.Len(t, result.Relationships, 4)

	seenEntities := map[string]int{}
	for _, ent := range result.Entities {
		seenEntities[ent.ID]++
	}
	for id, count := range seenEntities {
		assert.Equal(t, 1, count, "entity %s emitted more than once", id)
	}

	seenRels := map[string]int{}
	for _, rel := range result.Relationships {
		seenRels[rel.ID]++
	}
	for id, count := range seenRels {
		assert.Equal(t, 1, count, "relationship %s emitted more than once", id)
	}
}

func TestNeighborsHopBudget(t *testing.T) {
	// a -> b -> c
	entities := map[string]*models.Entity{
		"a": testEntity("a", "Alpha", "Project"),
		"b": testEntity("b", "Beta", "Milestone"),
		"c": testEntity("c", "Gamma", "Person"),
	}
	rels := []*models.Relationship{
		testEdge("r1", "a", "b", "BELONGS_TO"),
		testEdge("r2", "b", "c", "CREATED_BY"),
	}
	e := testEngine(entities, rels)

	t.Run("one hop stops at direct neighbors", func(t *testing.T) {
		result, err := e.Neighbors(context.Background(), memberPrincipal(), "domain-1", "a", 1)
		require.NoError(t, err)
		require.Len(t, result.Entities, 2)
		assert.Equal(t, "a", result.Entities[0].ID)
		assert.Equal(t, "b", result.Entities[1].ID)
		require.Len(t, result.Relationships, 1)
		assert.Equal(t, "r1", result.Relationships[0].ID)
	})

	t.Run("zero hops returns only the start", func(t *testing.T) {
		result, err := e.Neighbors(context.Background(), memberPrincipal(), "domain-1", "a", 0)
		require.NoError(t, err)
		require.Len(t, result.Entities, 1)
		assert.Equal(t, "a", result.Entities[0].ID)
		assert.Empty(t, result.Relationships)
	})
}

func TestNeighborsOpaqueWall(t *testing.T) {
	// a -> b -> c, where b belongs to a team the principal is not in. The
	// walk must not pass through b, so c stays unreachable even though c
	// itself would be accessible.
	hidden := testEntity("b", "Beta", "Milestone")
	hidden.ScopeType = models.ScopeTypeTeam
	hidden.ScopeID = "team-9"

	entities := map[string]*models.Entity{
		"a": testEntity("a", "Alpha", "Project"),
		"b": hidden,
		"c": testEntity("c", "Gamma", "Person"),
	}
	rels := []*models.Relationship{
		testEdge("r1", "a", "b", "BELONGS_TO"),
		testEdge("r2", "b", "c", "CREATED_BY"),
	}
	e := testEngine(entities, rels)

	result, err := e.Neighbors(context.Background(), memberPrincipal(), "domain-1", "a", 5)
	require.NoError(t, err)

	require.Len(t, result.Entities, 1)
	assert.Equal(t, "a", result.Entities[0].ID)
	assert.Empty(t, result.Relationships, "edges touching an invisible entity must not leak")
}

func TestNeighborsStartNotAccessible(t *testing.T) {
	hidden := testEntity("a", "Alpha", "Project")
	hidden.ScopeType = models.ScopeTypeUser
	hidden.ScopeID = "user-9"

	e := testEngine(map[string]*models.Entity{"a": hidden}, nil)

	_, err := e.Neighbors(context.Background(), memberPrincipal(), "domain-1", "a", 2)
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestNeighborsWithoutPrincipalSkipsNothing(t *testing.T) {
	hidden := testEntity("b", "Beta", "Milestone")
	hidden.ScopeType = models.ScopeTypeUser
	hidden.ScopeID = "user-9"

	entities := map[string]*models.Entity{
		"a": testEntity("a", "Alpha", "Project"),
		"b": hidden,
	}
	rels := []*models.Relationship{testEdge("r1", "a", "b", "BELONGS_TO")}
	e := testEngine(entities, rels)

	result, err := e.Neighbors(context.Background(), nil, "domain-1", "a", 2)
	require.NoError(t, err)
	assert.Len(t, result.Entities, 2)
	assert.Len(t, result.Relationships, 1)
}

func TestSubgraph(t *testing.T) {
	hidden := testEntity("c", "Gamma", "Person")
	hidden.ScopeType = models.ScopeTypeTeam
	hidden.ScopeID = "team-9"

	entities := map[string]*models.Entity{
		"a": testEntity("a", "Alpha", "Project"),
		"b": testEntity("b", "Beta", "Milestone"),
		"c": hidden,
	}
	rels := []*models.Relationship{
		testEdge("r1", "a", "b", "BELONGS_TO"),
		testEdge("r2", "b", "c", "CREATED_BY"),
	}
	e := testEngine(entities, rels)

	t.Run("missing and inaccessible ids are dropped silently", func(t *testing.T) {
		result, err := e.Subgraph(context.Background(), memberPrincipal(), "domain-1", []string{"a", "b", "c", "nope"}, true)
		require.NoError(t, err)

		require.Len(t, result.Entities, 2)
		assert.Equal(t, "a", result.Entities[0].ID)
		assert.Equal(t, "b", result.Entities[1].ID)

		require.Len(t, result.Relationships, 1)
		assert.Equal(t, "r1", result.Relationships[0].ID)
	})

	t.Run("relationships omitted unless requested", func(t *testing.T) {
		result, err := e.Subgraph(context.Background(), memberPrincipal(), "domain-1", []string{"a", "b"}, false)
		require.NoError(t, err)
		assert.Len(t, result.Entities, 2)
		assert.Empty(t, result.Relationships)
	})
}

func TestContextForQuery(t *testing.T) {
	entities := map[string]*models.Entity{
		"a": testEntity("a", "Apollo Launch", "Project"),
		"b": testEntity("b", "Apollo Review", "Milestone"),
		"c": testEntity("c", "Unrelated", "Person"),
	}
	entities["a"].Properties = map[string]any{"status": "active", "lead": "sam"}
	rels := []*models.Relationship{
		testEdge("r1", "b", "a", "BELONGS_TO"),
		testEdge("r2", "c", "a", "WORKS_ON"),
	}
	e := testEngine(entities, rels)

	t.Run("matches keywords and collects edges between matches", func(t *testing.T) {
		result, err := e.ContextForQuery(context.Background(), memberPrincipal(), "domain-1", "tell me about apollo", 10, 0)
		require.NoError(t, err)

		assert.Equal(t, 2, result.EntityCount)
		assert.Equal(t, 1, result.RelationshipCount)
		require.Len(t, result.Relationships, 1)
		assert.Equal(t, "r1", result.Relationships[0].ID)

		assert.Contains(t, result.ContextText, "Apollo Launch (Project): lead=sam, status=active")
		assert.Contains(t, result.ContextText, "Apollo Review (Milestone)")
		assert.Contains(t, result.ContextText, "--[BELONGS_TO]-->")
		assert.NotContains(t, result.ContextText, "Unrelated")
	})

	t.Run("entity cap truncates matches", func(t *testing.T) {
		result, err := e.ContextForQuery(context.Background(), memberPrincipal(), "domain-1", "apollo", 1, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, result.EntityCount)
		assert.Zero(t, result.RelationshipCount)
	})

	t.Run("no matches renders the empty banner", func(t *testing.T) {
		result, err := e.ContextForQuery(context.Background(), memberPrincipal(), "domain-1", "zzzz", 10, 0)
		require.NoError(t, err)
		assert.Zero(t, result.EntityCount)
		assert.Equal(t, "No relevant context found.", result.ContextText)
	})
}

func TestExtractKeywords(t *testing.T) {
	e := testEngine(nil, nil)

	t.Run("drops short words and punctuation", func(t *testing.T) {
		keywords := e.extractKeywords("Who is the lead on Apollo, and why?")
		assert.Equal(t, []string{"lead", "Apollo"}, keywords)
	})

	t.Run("caps at five keywords", func(t *testing.T) {
		keywords := e.extractKeywords("alpha bravo charlie delta echo foxtrot golf")
		assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta", "echo"}, keywords)
	})
}
