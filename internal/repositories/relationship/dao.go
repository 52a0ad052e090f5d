package relationship

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	relationshipsTable = "relationships"
)

// RelationshipRow represents the database row for a relationship
type RelationshipRow struct {
	ID               sql.NullString                 `db:"id"`
	DomainID         sql.NullString                 `db:"domain_id"`
	FromEntityID     sql.NullString                 `db:"from_entity_id"`
	ToEntityID       sql.NullString                 `db:"to_entity_id"`
	RelationshipType sql.NullString                 `db:"relationship_type"`
	Properties       database.JSONB[map[string]any] `db:"properties"`
	Confidence       sql.NullFloat64                `db:"confidence"`
	ValidFrom        sql.NullTime                   `db:"valid_from"`
	ValidTo          sql.NullTime                   `db:"valid_to"`
	CreatedAt        sql.NullTime                   `db:"created_at"`
	UpdatedAt        sql.NullTime                   `db:"updated_at"`
}

var relationshipStruct = database.NewStruct(new(RelationshipRow))

// FromRelationship converts a domain model to a database row
func FromRelationship(rel *models.Relationship) *RelationshipRow {
	row := &RelationshipRow{
		ID:               sql.NullString{String: rel.ID, Valid: rel.ID != ""},
		DomainID:         sql.NullString{String: rel.DomainID, Valid: rel.DomainID != ""},
		FromEntityID:     sql.NullString{String: rel.FromEntityID, Valid: rel.FromEntityID != ""},
		ToEntityID:       sql.NullString{String: rel.ToEntityID, Valid: rel.ToEntityID != ""},
		RelationshipType: sql.NullString{String: rel.RelationshipType, Valid: rel.RelationshipType != ""},
		Properties:       database.JSONB[map[string]any]{Data: rel.Properties},
		Confidence:       sql.NullFloat64{Float64: rel.Confidence, Valid: true},
		CreatedAt:        sql.NullTime{Time: rel.CreatedAt, Valid: !rel.CreatedAt.IsZero()},
		UpdatedAt:        sql.NullTime{Time: rel.UpdatedAt, Valid: !rel.UpdatedAt.IsZero()},
	}
	if rel.ValidFrom != nil {
		row.ValidFrom = sql.NullTime{Time: *rel.ValidFrom, Valid: true}
	}
	if rel.ValidTo != nil {
		row.ValidTo = sql.NullTime{Time: *rel.ValidTo, Valid: true}
	}
	return row
}

// ToRelationship converts a database row to a domain model
func ToRelationship(row *RelationshipRow) *models.Relationship {
	rel := &models.Relationship{
		ID:               row.ID.String,
		DomainID:         row.DomainID.String,
		FromEntityID:     row.FromEntityID.String,
		ToEntityID:       row.ToEntityID.String,
		RelationshipType: row.RelationshipType.String,
		Properties:       row.Properties.Data,
		Confidence:       row.Confidence.Float64,
		CreatedAt:        row.CreatedAt.Time,
		UpdatedAt:        row.UpdatedAt.Time,
	}
	if row.ValidFrom.Valid {
		t := row.ValidFrom.Time
		rel.ValidFrom = &t
	}
	if row.ValidTo.Valid {
		t := row.ValidTo.Time
		rel.ValidTo = &t
	}
	return rel
}

// ToRelationships converts a slice of database rows to domain models
func ToRelationships(rows []RelationshipRow) []*models.Relationship {
	relationships := make([]*models.Relationship, len(rows))
	for i, row := range rows {
		relationships[i] = ToRelationship(&row)
	}
	return relationships
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
