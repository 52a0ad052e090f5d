package relationship

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/relationship"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/scope"
)

type fakeEntityRepo struct {
	entity.EntityRepository
	existing []*models.Entity
}

func (f *fakeEntityRepo) GetByIDs(ctx context.Context, domainID string, ids []string) ([]*models.Entity, error) {
	out := []*models.Entity{}
	for _, e := range f.existing {
		if e.DomainID != domainID {
			continue
		}
		for _, id := range ids {
			if e.ID == id {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

type fakeRelationshipRepo struct {
	relationship.RelationshipRepository
	existing []*models.Relationship
	created  []*models.Relationship
	updated  []*models.Relationship
	deleted  []string
	listed   []*models.Relationship
	total    int
}

func (f *fakeRelationshipRepo) Create(ctx context.Context, rel *models.Relationship) (*models.Relationship, error) {
	if rel.ID == "" {
		rel.ID = fmt.Sprintf("rel-%d", len(f.created)+1)
	}
	f.created = append(f.created, rel)
	f.existing = append(f.existing, rel)
	return rel, nil
}

func (f *fakeRelationshipRepo) GetByID(ctx context.Context, domainID, id string) (*models.Relationship, error) {
	for _, r := range f.existing {
		if r.ID == id && r.DomainID == domainID {
			copied := *r
			return &copied, nil
		}
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, "relationship not found")
}

func (f *fakeRelationshipRepo) ListByEntity(ctx context.Context, domainID, entityID, relationshipType string, page, pageSize int) ([]*models.Relationship, int, error) {
	return f.listed, f.total, nil
}

func (f *fakeRelationshipRepo) Update(ctx context.Context, rel *models.Relationship) (*models.Relationship, error) {
	f.updated = append(f.updated, rel)
	return rel, nil
}

func (f *fakeRelationshipRepo) Delete(ctx context.Context, domainID, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func testService(rels *fakeRelationshipRepo, ents *fakeEntityRepo) *Service {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewService(logger, rels, ents, scope.NewService(), events.NewEmitter(nil, logger), nil)
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

func domainEntity(id string) *models.Entity {
	return &models.Entity{ID: id, DomainID: "dom-1", EntityType: "Note", ScopeType: models.ScopeTypeDomain, ScopeID: "dom-1"}
}

func TestCreateRelationship(t *testing.T) {
	ents := &fakeEntityRepo{existing: []*models.Entity{domainEntity("ent-1"), domainEntity("ent-2")}}
	rels := &fakeRelationshipRepo{}
	svc := testService(rels, ents)

	created, err := svc.Create(context.Background(), "dom-1", memberPrincipal(), models.CreateRelationshipRequest{
		FromEntityID:     "ent-1",
		ToEntityID:       "ent-2",
		RelationshipType: models.RelationshipTypeWorksOn,
	})
	require.NoError(t, err)

	assert.Equal(t, "ent-1", created.FromEntityID)
	assert.Equal(t, "ent-2", created.ToEntityID)
	assert.Equal(t, 1.0, created.Confidence)
	require.Len(t, rels.created, 1)
}

func TestCreateRejectsDanglingFromEndpoint(t *testing.T) {
	ents := &fakeEntityRepo{existing: []*models.Entity{domainEntity("ent-2")}}
	rels := &fakeRelationshipRepo{}
	svc := testService(rels, ents)

	_, err := svc.Create(context.Background(), "dom-1", memberPrincipal(), models.CreateRelationshipRequest{
		FromEntityID:     "ghost",
		ToEntityID:       "ent-2",
		RelationshipType: "KNOWS",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	assert.Contains(t, err.Error(), "ghost")
	assert.Empty(t, rels.created)
}

func TestCreateRejectsDanglingToEndpoint(t *testing.T) {
	ents := &fakeEntityRepo{existing: []*models.Entity{domainEntity("ent-1")}}
	svc := testService(&fakeRelationshipRepo{}, ents)

	_, err := svc.Create(context.Background(), "dom-1", memberPrincipal(), models.CreateRelationshipRequest{
		FromEntityID:     "ent-1",
		ToEntityID:       "ghost",
		RelationshipType: "KNOWS",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestCreateForbidsInaccessibleEndpoint(t *testing.T) {
	hidden := &models.Entity{ID: "ent-2", DomainID: "dom-1", EntityType: "Note", ScopeType: models.ScopeTypeTeam, ScopeID: "team-9"}
	ents := &fakeEntityRepo{existing: []*models.Entity{domainEntity("ent-1"), hidden}}
	rels := &fakeRelationshipRepo{}
	svc := testService(rels, ents)

	_, err := svc.Create(context.Background(), "dom-1", memberPrincipal(), models.CreateRelationshipRequest{
		FromEntityID:     "ent-1",
		ToEntityID:       "ent-2",
		RelationshipType: "KNOWS",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	assert.Empty(t, rels.created)
}

func TestCreateRejectsMissingType(t *testing.T) {
	svc := testService(&fakeRelationshipRepo{}, &fakeEntityRepo{})

	_, err := svc.Create(context.Background(), "dom-1", memberPrincipal(), models.CreateRelationshipRequest{
		FromEntityID: "ent-1",
		ToEntityID:   "ent-2",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestListRequiresEntityID(t *testing.T) {
	svc := testService(&fakeRelationshipRepo{}, &fakeEntityRepo{})

	_, err := svc.List(context.Background(), "dom-1", "", "", 1, 20)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestListNormalizesPaging(t *testing.T) {
	rels := &fakeRelationshipRepo{
		listed: []*models.Relationship{{ID: "rel-1", DomainID: "dom-1"}},
		total:  1,
	}
	svc := testService(rels, &fakeEntityRepo{})

	resp, err := svc.List(context.Background(), "dom-1", "ent-1", "", 0, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.PageSize)
	require.Len(t, resp.Items, 1)
}

func TestUpdateAppliesPartialPatch(t *testing.T) {
	rels := &fakeRelationshipRepo{existing: []*models.Relationship{
		{ID: "rel-1", DomainID: "dom-1", FromEntityID: "ent-1", ToEntityID: "ent-2", RelationshipType: "KNOWS", Confidence: 0.4},
	}}
	svc := testService(rels, &fakeEntityRepo{})

	confidence := 0.9
	updated, err := svc.Update(context.Background(), "dom-1", "rel-1", models.UpdateRelationshipRequest{Confidence: &confidence})
	require.NoError(t, err)

	assert.Equal(t, 0.9, updated.Confidence)
	assert.Equal(t, "KNOWS", updated.RelationshipType)
	assert.Equal(t, "ent-1", updated.FromEntityID)
}

func TestUpdateMissingIs404(t *testing.T) {
	svc := testService(&fakeRelationshipRepo{}, &fakeEntityRepo{})

	_, err := svc.Update(context.Background(), "dom-1", "nope", models.UpdateRelationshipRequest{})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestDeleteRemovesEdge(t *testing.T) {
	rels := &fakeRelationshipRepo{existing: []*models.Relationship{
		{ID: "rel-1", DomainID: "dom-1", RelationshipType: "KNOWS"},
	}}
	svc := testService(rels, &fakeEntityRepo{})

	err := svc.Delete(context.Background(), "dom-1", "rel-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"rel-1"}, rels.deleted)
}

func TestDeleteMissingIs404(t *testing.T) {
	svc := testService(&fakeRelationshipRepo{}, &fakeEntityRepo{})

	err := svc.Delete(context.Background(), "dom-1", "nope")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}
