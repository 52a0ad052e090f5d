package integrity

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories/directory"
	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/relationship"
	"github.com/Ramsey-B/fern/pkg/expressions"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeDirectory struct {
	directory.DirectoryRepository
	domains  []string
	projects []models.Project
	teams    []models.Team
	users    []models.User
	clients  []models.Client
	sessions []models.WorkSession
	agents   []models.Agent
}

func (f *fakeDirectory) ListDomainIDs(ctx context.Context) ([]string, error) {
	return f.domains, nil
}

func (f *fakeDirectory) ListProjects(ctx context.Context, domainID string) ([]models.Project, error) {
	out := []models.Project{}
	for _, p := range f.projects {
		if p.DomainID == domainID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeDirectory) ListTeams(ctx context.Context, domainID string) ([]models.Team, error) {
	out := []models.Team{}
	for _, t := range f.teams {
		if t.DomainID == domainID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeDirectory) ListUsers(ctx context.Context, domainID string) ([]models.User, error) {
	out := []models.User{}
	for _, u := range f.users {
		if u.DomainID == domainID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeDirectory) ListClients(ctx context.Context, domainID string) ([]models.Client, error) {
	out := []models.Client{}
	for _, c := range f.clients {
		if c.DomainID == domainID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeDirectory) SetProjectEntityID(ctx context.Context, domainID, id, entityID string) error {
	for i := range f.projects {
		if f.projects[i].ID == id && f.projects[i].DomainID == domainID {
			f.projects[i].EntityID = entityID
			return nil
		}
	}
	return fmt.Errorf("project %s not found", id)
}

func (f *fakeDirectory) SetTeamEntityID(ctx context.Context, domainID, id, entityID string) error {
	for i := range f.teams {
		if f.teams[i].ID == id && f.teams[i].DomainID == domainID {
			f.teams[i].EntityID = entityID
			return nil
		}
	}
	return fmt.Errorf("team %s not found", id)
}

func (f *fakeDirectory) SetUserEntityID(ctx context.Context, domainID, id, entityID string) error {
	for i := range f.users {
		if f.users[i].ID == id && f.users[i].DomainID == domainID {
			f.users[i].EntityID = entityID
			return nil
		}
	}
	return fmt.Errorf("user %s not found", id)
}

func (f *fakeDirectory) SetClientEntityID(ctx context.Context, domainID, id, entityID string) error {
	for i := range f.clients {
		if f.clients[i].ID == id && f.clients[i].DomainID == domainID {
			f.clients[i].EntityID = entityID
			return nil
		}
	}
	return fmt.Errorf("client %s not found", id)
}

func (f *fakeDirectory) GetWorkSession(ctx context.Context, domainID, id string) (*models.WorkSession, error) {
	for i := range f.sessions {
		if f.sessions[i].ID == id && f.sessions[i].DomainID == domainID {
			session := f.sessions[i]
			return &session, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) GetAgent(ctx context.Context, domainID, id string) (*models.Agent, error) {
	for i := range f.agents {
		if f.agents[i].ID == id && f.agents[i].DomainID == domainID {
			agent := f.agents[i]
			return &agent, nil
		}
	}
	return nil, nil
}

type fakeEntities struct {
	entity.EntityRepository
	all     []*models.Entity
	created []*models.Entity
	updated []*models.Entity
	scoped  int
}

func (f *fakeEntities) find(id string) *models.Entity {
	for _, e := range f.all {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (f *fakeEntities) FindByID(ctx context.Context, id string) (*models.Entity, error) {
	return f.find(id), nil
}

func (f *fakeEntities) GetByID(ctx context.Context, domainID, id string) (*models.Entity, error) {
	if e := f.find(id); e != nil && e.DomainID == domainID {
		return e, nil
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, "entity not found")
}

func (f *fakeEntities) ListByType(ctx context.Context, domainID, entityType string) ([]*models.Entity, error) {
	out := []*models.Entity{}
	for _, e := range f.all {
		if e.DomainID == domainID && e.EntityType == entityType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntities) ExistsByIDs(ctx context.Context, domainID string, ids []string) (map[string]bool, error) {
	found := map[string]bool{}
	for _, id := range ids {
		if e := f.find(id); e != nil && e.DomainID == domainID {
			found[id] = true
		}
	}
	return found, nil
}

func (f *fakeEntities) Create(ctx context.Context, e *models.Entity) (*models.Entity, error) {
	f.all = append(f.all, e)
	f.created = append(f.created, e)
	return e, nil
}

func (f *fakeEntities) Update(ctx context.Context, e *models.Entity) (*models.Entity, error) {
	existing := f.find(e.ID)
	if existing == nil || existing.DomainID != e.DomainID {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "entity not found")
	}
	*existing = *e
	f.updated = append(f.updated, e)
	return e, nil
}

func (f *fakeEntities) UpdateScope(ctx context.Context, domainID, id, scopeType, scopeID string) error {
	e := f.find(id)
	if e == nil || e.DomainID != domainID {
		return httperror.NewHTTPError(http.StatusNotFound, "entity not found")
	}
	e.ScopeType = models.ScopeType(scopeType)
	e.ScopeID = scopeID
	f.scoped++
	return nil
}

type fakeRelationships struct {
	relationship.RelationshipRepository
	edges   []*models.Relationship
	created []*models.Relationship
}

func (f *fakeRelationships) ExistsEdge(ctx context.Context, domainID, fromEntityID, toEntityID, relationshipType string) (bool, error) {
	for _, r := range f.edges {
		if r.DomainID == domainID && r.FromEntityID == fromEntityID && r.ToEntityID == toEntityID && r.RelationshipType == relationshipType {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRelationships) Create(ctx context.Context, r *models.Relationship) (*models.Relationship, error) {
	if r.ID == "" {
		r.ID = fmt.Sprintf("rel-%d", len(f.edges)+1)
	}
	f.edges = append(f.edges, r)
	f.created = append(f.created, r)
	return r, nil
}

func testEnforcer(dir *fakeDirectory, ents *fakeEntities, rels *fakeRelationships) *Enforcer {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewEnforcer(logger, dir, ents, rels, expressions.NewEvaluator(), DefaultConfig())
}

func strptr(s string) *string {
	return &s
}

func mirrorEntity(id, domainID, entityType string) *models.Entity {
	return &models.Entity{
		ID:         id,
		DomainID:   domainID,
		EntityType: entityType,
		Name:       id,
		ScopeType:  models.ScopeTypeDomain,
		ScopeID:    domainID,
		Confidence: 1,
	}
}

func TestCheckReportsMissingProjectEntity(t *testing.T) {
	dir := &fakeDirectory{
		projects: []models.Project{{ID: "proj-1", DomainID: "dom-1", Name: "Apollo", Status: models.StatusActive}},
	}
	enforcer := testEnforcer(dir, &fakeEntities{}, &fakeRelationships{})

	report, err := enforcer.Check(context.Background(), models.CheckIntegrityRequest{DomainID: "dom-1"})
	require.NoError(t, err)

	require.Len(t, report.Projects, 1)
	assert.Equal(t, models.IssueMissingEntity, report.Projects[0].Type)
	assert.Equal(t, "proj-1", report.Projects[0].RecordID)
	assert.Equal(t, 1, report.Summary[models.IssueMissingEntity])
	assert.Equal(t, 1, report.TotalIssues())
}

func TestCheckSkipsInactiveRecords(t *testing.T) {
	dir := &fakeDirectory{
		projects: []models.Project{{ID: "proj-1", DomainID: "dom-1", Name: "Old", Status: models.StatusArchived}},
		users:    []models.User{{ID: "user-1", DomainID: "dom-1", Name: "Sam", Status: models.StatusSuspended}},
	}
	enforcer := testEnforcer(dir, &fakeEntities{}, &fakeRelationships{})

	report, err := enforcer.Check(context.Background(), models.CheckIntegrityRequest{DomainID: "dom-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, report.TotalIssues())
}

func TestCheckRejectsUnknownFixType(t *testing.T) {
	enforcer := testEnforcer(&fakeDirectory{}, &fakeEntities{}, &fakeRelationships{})

	_, err := enforcer.Check(context.Background(), models.CheckIntegrityRequest{DomainID: "dom-1", Types: []string{"bogus"}})
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestFixCreatesMirrorEntityAndBackref(t *testing.T) {
	dir := &fakeDirectory{
		projects: []models.Project{{ID: "proj-1", DomainID: "dom-1", Name: "Apollo", Description: "moon shot", Status: models.StatusActive}},
	}
	ents := &fakeEntities{}
	enforcer := testEnforcer(dir, ents, &fakeRelationships{})

	result, err := enforcer.Fix(context.Background(), models.FixIntegrityRequest{DomainID: "dom-1", Types: []string{models.FixTypeProjectEntities}})
	require.NoError(t, err)
	require.Len(t, result.Fixed, 1)
	assert.Empty(t, result.Errors)
	assert.Equal(t, models.IssueMissingEntity, result.Fixed[0].Type)

	require.Len(t, ents.created, 1)
	mirror := ents.created[0]
	assert.Equal(t, "proj-1", mirror.ID)
	assert.Equal(t, "dom-1", mirror.DomainID)
	assert.Equal(t, models.EntityTypeProject, mirror.EntityType)
	assert.Equal(t, "Apollo", mirror.Name)
	assert.Equal(t, models.ScopeTypeDomain, mirror.ScopeType)
	assert.Equal(t, "dom-1", mirror.ScopeID)
	assert.Equal(t, "project:proj-1", mirror.Source)
	assert.Equal(t, true, mirror.Properties["auto_generated"])
	assert.Equal(t, "moon shot", mirror.Properties["description"])
	assert.Equal(t, "proj-1", dir.projects[0].EntityID)

	// A second pass finds nothing left to repair.
	result, err = enforcer.Fix(context.Background(), models.FixIntegrityRequest{DomainID: "dom-1", Types: []string{models.FixTypeProjectEntities}})
	require.NoError(t, err)
	assert.Empty(t, result.Fixed)
	assert.Empty(t, result.Errors)
}

func TestFixRewritesWrongEntityType(t *testing.T) {
	dir := &fakeDirectory{
		users: []models.User{{ID: "user-1", DomainID: "dom-1", Name: "Sam", Status: models.StatusActive, EntityID: "user-1"}},
	}
	ents := &fakeEntities{all: []*models.Entity{mirrorEntity("user-1", "dom-1", "Robot")}}
	enforcer := testEnforcer(dir, ents, &fakeRelationships{})

	result, err := enforcer.Fix(context.Background(), models.FixIntegrityRequest{DomainID: "dom-1", Types: []string{models.FixTypeUserEntities}})
	require.NoError(t, err)
	require.Len(t, result.Fixed, 1)
	assert.Equal(t, models.IssueWrongEntityType, result.Fixed[0].Type)
	assert.Equal(t, "Robot", result.Fixed[0].OldValue)
	assert.Equal(t, models.EntityTypePerson, result.Fixed[0].NewValue)
	assert.Equal(t, models.EntityTypePerson, ents.find("user-1").EntityType)
}

func TestFixRepairsWeakLink(t *testing.T) {
	dir := &fakeDirectory{
		clients: []models.Client{{ID: "client-1", DomainID: "dom-1", Name: "Edge box", Status: models.StatusActive}},
	}
	ents := &fakeEntities{all: []*models.Entity{mirrorEntity("client-1", "dom-1", models.EntityTypeClient)}}
	enforcer := testEnforcer(dir, ents, &fakeRelationships{})

	result, err := enforcer.Fix(context.Background(), models.FixIntegrityRequest{DomainID: "dom-1", Types: []string{models.FixTypeClientEntities}})
	require.NoError(t, err)
	require.Len(t, result.Fixed, 1)
	assert.Equal(t, models.IssueWeakLink, result.Fixed[0].Type)
	assert.Equal(t, "client-1", dir.clients[0].EntityID)
	assert.Empty(t, ents.created)
}

func TestDomainMismatchIsNeverAutoRepaired(t *testing.T) {
	dir := &fakeDirectory{
		projects: []models.Project{{ID: "proj-1", DomainID: "dom-1", Name: "Apollo", Status: models.StatusActive, EntityID: "proj-1"}},
	}
	ents := &fakeEntities{all: []*models.Entity{mirrorEntity("proj-1", "dom-2", models.EntityTypeProject)}}
	enforcer := testEnforcer(dir, ents, &fakeRelationships{})

	report, err := enforcer.Check(context.Background(), models.CheckIntegrityRequest{DomainID: "dom-1", Types: []string{models.FixTypeProjectEntities}})
	require.NoError(t, err)
	require.Len(t, report.Projects, 1)
	assert.Equal(t, models.IssueDomainMismatch, report.Projects[0].Type)
	assert.Equal(t, "dom-2", report.Projects[0].Actual)

	result, err := enforcer.Fix(context.Background(), models.FixIntegrityRequest{DomainID: "dom-1", Types: []string{models.FixTypeProjectEntities}})
	require.NoError(t, err)
	assert.Empty(t, result.Fixed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.IssueDomainMismatch, result.Errors[0].Type)
	assert.Empty(t, ents.created)
	assert.Empty(t, ents.updated)
}

func TestFixContinuesPastItemErrors(t *testing.T) {
	dir := &fakeDirectory{
		projects: []models.Project{
			{ID: "proj-1", DomainID: "dom-1", Name: "Stuck", Status: models.StatusActive, EntityID: "proj-1"},
			{ID: "proj-2", DomainID: "dom-1", Name: "Fixable", Status: models.StatusActive},
		},
	}
	ents := &fakeEntities{all: []*models.Entity{mirrorEntity("proj-1", "dom-2", models.EntityTypeProject)}}
	enforcer := testEnforcer(dir, ents, &fakeRelationships{})

	result, err := enforcer.Fix(context.Background(), models.FixIntegrityRequest{DomainID: "dom-1", Types: []string{models.FixTypeProjectEntities}})
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "proj-1", result.Errors[0].RecordID)
	require.Len(t, result.Fixed, 1)
	assert.Equal(t, "proj-2", result.Fixed[0].RecordID)
}

func TestFixMilestoneScope(t *testing.T) {
	dir := &fakeDirectory{
		sessions: []models.WorkSession{{ID: "ws-1", DomainID: "dom-1", ProjectID: strptr("proj-1"), Status: models.WorkSessionStatusCompleted}},
	}
	milestone := mirrorEntity("m-1", "dom-1", models.EntityTypeMilestone)
	milestone.ScopeType = models.ScopeTypeTeam
	milestone.ScopeID = "team-9"
	milestone.WorkSessionID = strptr("ws-1")
	ents := &fakeEntities{all: []*models.Entity{milestone}}
	enforcer := testEnforcer(dir, ents, &fakeRelationships{})

	result, err := enforcer.Fix(context.Background(), models.FixIntegrityRequest{DomainID: "dom-1", Types: []string{models.FixTypeMilestoneScopes}})
	require.NoError(t, err)
	require.Len(t, result.Fixed, 1)
	assert.Equal(t, models.IssueScopeMismatch, result.Fixed[0].Type)
	assert.Equal(t, "team:team-9", result.Fixed[0].OldValue)
	assert.Equal(t, "project:proj-1", result.Fixed[0].NewValue)
	assert.Equal(t, models.ScopeTypeProject, milestone.ScopeType)
	assert.Equal(t, "proj-1", milestone.ScopeID)
}

func TestFixMilestoneScopeMissingSession(t *testing.T) {
	milestone := mirrorEntity("m-1", "dom-1", models.EntityTypeMilestone)
	milestone.WorkSessionID = strptr("ws-gone")
	ents := &fakeEntities{all: []*models.Entity{milestone}}
	enforcer := testEnforcer(&fakeDirectory{}, ents, &fakeRelationships{})

	result, err := enforcer.Fix(context.Background(), models.FixIntegrityRequest{DomainID: "dom-1", Types: []string{models.FixTypeMilestoneScopes}})
	require.NoError(t, err)
	assert.Empty(t, result.Fixed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.IssueScopeMismatch, result.Errors[0].Type)
	assert.Equal(t, "m-1", result.Errors[0].RecordID)
	assert.Equal(t, 0, ents.scoped)
}

func TestFixMilestoneRelationships(t *testing.T) {
	dir := &fakeDirectory{
		sessions: []models.WorkSession{{ID: "ws-1", DomainID: "dom-1", ProjectID: strptr("proj-1"), Status: models.WorkSessionStatusCompleted}},
		agents:   []models.Agent{{ID: "agent-1", DomainID: "dom-1", UserID: "user-1", ClientID: strptr("client-1"), Name: "builder"}},
	}
	milestone := mirrorEntity("m-1", "dom-1", models.EntityTypeMilestone)
	milestone.WorkSessionID = strptr("ws-1")
	// Exercises the fallback property path.
	milestone.Properties = map[string]any{"created_by_agent_id": "agent-1"}
	ents := &fakeEntities{all: []*models.Entity{
		milestone,
		mirrorEntity("proj-1", "dom-1", models.EntityTypeProject),
		mirrorEntity("user-1", "dom-1", models.EntityTypePerson),
		mirrorEntity("client-1", "dom-1", models.EntityTypeClient),
	}}
	rels := &fakeRelationships{}
	enforcer := testEnforcer(dir, ents, rels)

	result, err := enforcer.Fix(context.Background(), models.FixIntegrityRequest{DomainID: "dom-1", Types: []string{models.FixTypeMilestoneRelationships}})
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Fixed, 3)
	require.Len(t, rels.created, 3)

	byType := map[string]*models.Relationship{}
	for _, r := range rels.created {
		byType[r.RelationshipType] = r
	}

	require.Contains(t, byType, models.RelationshipTypeBelongsTo)
	assert.Equal(t, "proj-1", byType[models.RelationshipTypeBelongsTo].ToEntityID)
	require.Contains(t, byType, models.RelationshipTypeCreatedBy)
	assert.Equal(t, "user-1", byType[models.RelationshipTypeCreatedBy].ToEntityID)
	require.Contains(t, byType, models.RelationshipTypeExecutedBy)
	assert.Equal(t, "client-1", byType[models.RelationshipTypeExecutedBy].ToEntityID)
	assert.Equal(t, "agent-1", byType[models.RelationshipTypeExecutedBy].Properties["agent_id"])

	for _, r := range rels.created {
		assert.Equal(t, "m-1", r.FromEntityID)
		assert.Equal(t, true, r.Properties["auto_generated"])
	}

	// Re-running creates nothing new.
	result, err = enforcer.Fix(context.Background(), models.FixIntegrityRequest{DomainID: "dom-1", Types: []string{models.FixTypeMilestoneRelationships}})
	require.NoError(t, err)
	assert.Empty(t, result.Fixed)
	assert.Len(t, rels.created, 3)
}

func TestFixMilestoneRelationshipsUnknownAgent(t *testing.T) {
	dir := &fakeDirectory{
		sessions: []models.WorkSession{{ID: "ws-1", DomainID: "dom-1", Status: models.WorkSessionStatusCompleted}},
	}
	milestone := mirrorEntity("m-1", "dom-1", models.EntityTypeMilestone)
	milestone.WorkSessionID = strptr("ws-1")
	milestone.Properties = map[string]any{"agent_id": "agent-gone"}
	ents := &fakeEntities{all: []*models.Entity{milestone}}
	enforcer := testEnforcer(dir, ents, &fakeRelationships{})

	result, err := enforcer.Fix(context.Background(), models.FixIntegrityRequest{DomainID: "dom-1", Types: []string{models.FixTypeMilestoneRelationships}})
	require.NoError(t, err)
	assert.Empty(t, result.Fixed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.IssueMissingCreatedBy, result.Errors[0].Type)
	assert.Contains(t, result.Errors[0].Error, "agent-gone")
}

func TestFixDryRunWritesNothing(t *testing.T) {
	dir := &fakeDirectory{
		projects: []models.Project{{ID: "proj-1", DomainID: "dom-1", Name: "Apollo", Status: models.StatusActive}},
		sessions: []models.WorkSession{{ID: "ws-1", DomainID: "dom-1", TeamID: strptr("team-1"), Status: models.WorkSessionStatusActive}},
	}
	milestone := mirrorEntity("m-1", "dom-1", models.EntityTypeMilestone)
	milestone.ScopeType = models.ScopeTypeDomain
	milestone.ScopeID = "dom-1"
	milestone.WorkSessionID = strptr("ws-1")
	ents := &fakeEntities{all: []*models.Entity{
		milestone,
		mirrorEntity("team-1", "dom-1", models.EntityTypeTeam),
	}}
	rels := &fakeRelationships{}
	enforcer := testEnforcer(dir, ents, rels)

	result, err := enforcer.Fix(context.Background(), models.FixIntegrityRequest{DomainID: "dom-1", DryRun: true})
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	// Would repair the missing project mirror, the milestone scope and the
	// missing BELONGS_TO edge, but touches nothing.
	assert.Len(t, result.Fixed, 3)
	assert.Empty(t, ents.created)
	assert.Empty(t, ents.updated)
	assert.Equal(t, 0, ents.scoped)
	assert.Empty(t, rels.created)
	assert.Empty(t, dir.projects[0].EntityID)
}

func TestFixSweepsAllDomainsWhenUnscoped(t *testing.T) {
	dir := &fakeDirectory{
		domains: []string{"dom-1", "dom-2"},
		projects: []models.Project{
			{ID: "proj-1", DomainID: "dom-1", Name: "One", Status: models.StatusActive},
			{ID: "proj-2", DomainID: "dom-2", Name: "Two", Status: models.StatusActive},
		},
	}
	ents := &fakeEntities{}
	enforcer := testEnforcer(dir, ents, &fakeRelationships{})

	result, err := enforcer.Fix(context.Background(), models.FixIntegrityRequest{Types: []string{models.FixTypeProjectEntities}})
	require.NoError(t, err)
	require.Len(t, result.Fixed, 2)
	assert.Equal(t, "dom-1", ents.created[0].DomainID)
	assert.Equal(t, "dom-2", ents.created[1].DomainID)
}

func TestNormalizeTypesOrdersParentsFirst(t *testing.T) {
	ordered, err := normalizeTypes([]string{models.FixTypeMilestoneScopes, models.FixTypeProjectEntities})
	require.NoError(t, err)
	assert.Equal(t, []string{models.FixTypeProjectEntities, models.FixTypeMilestoneScopes}, ordered)

	ordered, err = normalizeTypes(nil)
	require.NoError(t, err)
	assert.Equal(t, models.AllFixTypes, ordered)
}
