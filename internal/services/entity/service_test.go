package entity

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/relationship"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/scope"
)

type fakeTx struct {
	database.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) IsOpen() bool { return !t.committed && !t.rolledBack }

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	database.DB
	tx *fakeTx
}

func (f *fakeDB) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	if f.tx == nil {
		f.tx = &fakeTx{}
	}
	return ctx, f.tx, nil
}

type fakeEntityRepo struct {
	entity.EntityRepository
	db         *fakeDB
	existing   []*models.Entity
	created    []*models.Entity
	updated    []*models.Entity
	deleted    []string
	listed     []*models.Entity
	total      int
	lastFilter entity.ListFilter
}

func (f *fakeEntityRepo) DB() database.DB {
	if f.db == nil {
		f.db = &fakeDB{}
	}
	return f.db
}

func (f *fakeEntityRepo) find(domainID, id string) *models.Entity {
	for _, e := range f.existing {
		if e.ID == id && e.DomainID == domainID {
			return e
		}
	}
	return nil
}

func (f *fakeEntityRepo) Create(ctx context.Context, e *models.Entity) (*models.Entity, error) {
	if e.ID == "" {
		e.ID = fmt.Sprintf("ent-%d", len(f.created)+1)
	}
	f.created = append(f.created, e)
	f.existing = append(f.existing, e)
	return e, nil
}

func (f *fakeEntityRepo) GetByID(ctx context.Context, domainID, id string) (*models.Entity, error) {
	if e := f.find(domainID, id); e != nil {
		copied := *e
		return &copied, nil
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, "entity not found")
}

func (f *fakeEntityRepo) List(ctx context.Context, filter entity.ListFilter) ([]*models.Entity, int, error) {
	f.lastFilter = filter
	return f.listed, f.total, nil
}

func (f *fakeEntityRepo) Update(ctx context.Context, e *models.Entity) (*models.Entity, error) {
	f.updated = append(f.updated, e)
	if existing := f.find(e.DomainID, e.ID); existing != nil {
		*existing = *e
	}
	return e, nil
}

func (f *fakeEntityRepo) Delete(ctx context.Context, domainID, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeRelationshipRepo struct {
	relationship.RelationshipRepository
	removedByEntity map[string]int
	deletedFor      []string
}

func (f *fakeRelationshipRepo) DeleteByEntity(ctx context.Context, domainID, entityID string) (int, error) {
	f.deletedFor = append(f.deletedFor, entityID)
	return f.removedByEntity[entityID], nil
}

func testService(ents *fakeEntityRepo, rels *fakeRelationshipRepo) *Service {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewService(logger, ents, rels, scope.NewService(), events.NewEmitter(nil, logger), nil)
}

func memberPrincipal() *models.Principal {
	return &models.Principal{
		ID:       "user-1",
		DomainID: "dom-1",
		Memberships: []models.TeamMembership{
			{TeamID: "team-1", Role: models.RoleMember},
		},
	}
}

func TestCreateAppliesDefaultScope(t *testing.T) {
	ents := &fakeEntityRepo{}
	svc := testService(ents, &fakeRelationshipRepo{})

	created, err := svc.Create(context.Background(), "dom-1", memberPrincipal(), models.CreateEntityRequest{
		EntityType: "Document",
		Name:       "roadmap",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ScopeTypeTeam, created.ScopeType)
	assert.Equal(t, "team-1", created.ScopeID)
	assert.Equal(t, 1.0, created.Confidence)
	require.Len(t, ents.created, 1)
}

func TestCreateRejectsUnknownScopeType(t *testing.T) {
	svc := testService(&fakeEntityRepo{}, &fakeRelationshipRepo{})

	_, err := svc.Create(context.Background(), "dom-1", memberPrincipal(), models.CreateEntityRequest{
		EntityType: "Document",
		Name:       "roadmap",
		ScopeType:  "galaxy",
		ScopeID:    "g-1",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestCreateRejectsScopeIDWithoutType(t *testing.T) {
	svc := testService(&fakeEntityRepo{}, &fakeRelationshipRepo{})

	_, err := svc.Create(context.Background(), "dom-1", memberPrincipal(), models.CreateEntityRequest{
		EntityType: "Document",
		Name:       "roadmap",
		ScopeID:    "team-1",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestCreateForbidsForeignUserScope(t *testing.T) {
	ents := &fakeEntityRepo{}
	svc := testService(ents, &fakeRelationshipRepo{})

	_, err := svc.Create(context.Background(), "dom-1", memberPrincipal(), models.CreateEntityRequest{
		EntityType: "Note",
		Name:       "private",
		ScopeType:  models.ScopeTypeUser,
		ScopeID:    "user-2",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	assert.Empty(t, ents.created)
}

func TestCreateForbidsSystemScope(t *testing.T) {
	svc := testService(&fakeEntityRepo{}, &fakeRelationshipRepo{})

	p := memberPrincipal()
	p.IsAdmin = true

	_, err := svc.Create(context.Background(), "dom-1", p, models.CreateEntityRequest{
		EntityType: "Policy",
		Name:       "global",
		ScopeType:  models.ScopeTypeSystem,
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestCreateRejectsMissingName(t *testing.T) {
	svc := testService(&fakeEntityRepo{}, &fakeRelationshipRepo{})

	_, err := svc.Create(context.Background(), "dom-1", memberPrincipal(), models.CreateEntityRequest{
		EntityType: "Document",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestGetForbidsInaccessibleScope(t *testing.T) {
	ents := &fakeEntityRepo{existing: []*models.Entity{
		{ID: "ent-1", DomainID: "dom-1", EntityType: "Note", ScopeType: models.ScopeTypeTeam, ScopeID: "team-9"},
	}}
	svc := testService(ents, &fakeRelationshipRepo{})

	_, err := svc.Get(context.Background(), "dom-1", memberPrincipal(), "ent-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestGetReturnsAccessibleEntity(t *testing.T) {
	ents := &fakeEntityRepo{existing: []*models.Entity{
		{ID: "ent-1", DomainID: "dom-1", EntityType: "Note", ScopeType: models.ScopeTypeDomain, ScopeID: "dom-1"},
	}}
	svc := testService(ents, &fakeRelationshipRepo{})

	got, err := svc.Get(context.Background(), "dom-1", memberPrincipal(), "ent-1")
	require.NoError(t, err)
	assert.Equal(t, "ent-1", got.ID)
}

func TestUpdateAppliesPartialPatch(t *testing.T) {
	ents := &fakeEntityRepo{existing: []*models.Entity{
		{ID: "ent-1", DomainID: "dom-1", EntityType: "Note", Name: "old", ScopeType: models.ScopeTypeTeam, ScopeID: "team-1", Confidence: 0.5},
	}}
	svc := testService(ents, &fakeRelationshipRepo{})

	name := "new"
	updated, err := svc.Update(context.Background(), "dom-1", memberPrincipal(), "ent-1", models.UpdateEntityRequest{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, "new", updated.Name)
	assert.Equal(t, "Note", updated.EntityType)
	assert.Equal(t, models.ScopeTypeTeam, updated.ScopeType)
	assert.Equal(t, 0.5, updated.Confidence)
}

func TestUpdateForbidsScopeMoveOutsideWritableSet(t *testing.T) {
	ents := &fakeEntityRepo{existing: []*models.Entity{
		{ID: "ent-1", DomainID: "dom-1", EntityType: "Note", ScopeType: models.ScopeTypeTeam, ScopeID: "team-1"},
	}}
	svc := testService(ents, &fakeRelationshipRepo{})

	targetType := models.ScopeTypeUser
	targetID := "user-2"
	_, err := svc.Update(context.Background(), "dom-1", memberPrincipal(), "ent-1", models.UpdateEntityRequest{
		ScopeType: &targetType,
		ScopeID:   &targetID,
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	assert.Empty(t, ents.updated)
}

func TestUpdateForbidsEntityOutsideWritableScope(t *testing.T) {
	ents := &fakeEntityRepo{existing: []*models.Entity{
		{ID: "ent-1", DomainID: "dom-1", EntityType: "Note", ScopeType: models.ScopeTypeUser, ScopeID: "user-2"},
	}}
	svc := testService(ents, &fakeRelationshipRepo{})

	name := "hijack"
	_, err := svc.Update(context.Background(), "dom-1", memberPrincipal(), "ent-1", models.UpdateEntityRequest{Name: &name})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestDeleteCascadesRelationships(t *testing.T) {
	ents := &fakeEntityRepo{existing: []*models.Entity{
		{ID: "ent-1", DomainID: "dom-1", EntityType: "Note", ScopeType: models.ScopeTypeTeam, ScopeID: "team-1"},
	}}
	rels := &fakeRelationshipRepo{removedByEntity: map[string]int{"ent-1": 3}}
	svc := testService(ents, rels)

	resp, err := svc.Delete(context.Background(), "dom-1", memberPrincipal(), "ent-1")
	require.NoError(t, err)

	assert.Equal(t, "ent-1", resp.ID)
	assert.Equal(t, 3, resp.RelationshipsRemoved)
	assert.Equal(t, []string{"ent-1"}, ents.deleted)
	assert.Equal(t, []string{"ent-1"}, rels.deletedFor)
	require.NotNil(t, ents.db)
	assert.True(t, ents.db.tx.committed)
}

func TestDeleteMissingEntityIs404(t *testing.T) {
	svc := testService(&fakeEntityRepo{}, &fakeRelationshipRepo{})

	_, err := svc.Delete(context.Background(), "dom-1", memberPrincipal(), "nope")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestListNormalizesPagingAndMapsItems(t *testing.T) {
	ents := &fakeEntityRepo{
		listed: []*models.Entity{
			{ID: "ent-1", DomainID: "dom-1"},
			{ID: "ent-2", DomainID: "dom-1"},
		},
		total: 7,
	}
	svc := testService(ents, &fakeRelationshipRepo{})

	resp, err := svc.List(context.Background(), entity.ListFilter{DomainID: "dom-1"})
	require.NoError(t, err)

	assert.Equal(t, 7, resp.TotalCount)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.PageSize)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "ent-1", resp.Items[0].ID)
	assert.Equal(t, 1, ents.lastFilter.Page)
	assert.Equal(t, 20, ents.lastFilter.PageSize)
}
