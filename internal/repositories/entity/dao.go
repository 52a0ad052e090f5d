package entity

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	entitiesTable = "entities"
)

// EntityRow represents the database row for an entity
type EntityRow struct {
	ID            sql.NullString                 `db:"id"`
	DomainID      sql.NullString                 `db:"domain_id"`
	EntityType    sql.NullString                 `db:"entity_type"`
	Name          sql.NullString                 `db:"name"`
	Properties    database.JSONB[map[string]any] `db:"properties"`
	ScopeType     sql.NullString                 `db:"scope_type"`
	ScopeID       sql.NullString                 `db:"scope_id"`
	Confidence    sql.NullFloat64                `db:"confidence"`
	Source        sql.NullString                 `db:"source"`
	WorkSessionID sql.NullString                 `db:"work_session_id"`
	CreatedAt     sql.NullTime                   `db:"created_at"`
	UpdatedAt     sql.NullTime                   `db:"updated_at"`
}

var entityStruct = database.NewStruct(new(EntityRow))

// FromEntity converts a domain model to a database row
func FromEntity(e *models.Entity) *EntityRow {
	row := &EntityRow{
		ID:         sql.NullString{String: e.ID, Valid: e.ID != ""},
		DomainID:   sql.NullString{String: e.DomainID, Valid: e.DomainID != ""},
		EntityType: sql.NullString{String: e.EntityType, Valid: e.EntityType != ""},
		Name:       sql.NullString{String: e.Name, Valid: e.Name != ""},
		Properties: database.JSONB[map[string]any]{Data: e.Properties},
		ScopeType:  sql.NullString{String: string(e.ScopeType), Valid: e.ScopeType != ""},
		ScopeID:    sql.NullString{String: e.ScopeID, Valid: e.ScopeID != ""},
		Confidence: sql.NullFloat64{Float64: e.Confidence, Valid: true},
		Source:     sql.NullString{String: e.Source, Valid: e.Source != ""},
		CreatedAt:  sql.NullTime{Time: e.CreatedAt, Valid: !e.CreatedAt.IsZero()},
		UpdatedAt:  sql.NullTime{Time: e.UpdatedAt, Valid: !e.UpdatedAt.IsZero()},
	}
	if e.WorkSessionID != nil {
		row.WorkSessionID = sql.NullString{String: *e.WorkSessionID, Valid: *e.WorkSessionID != ""}
	}
	return row
}

// ToEntity converts a database row to a domain model
func ToEntity(row *EntityRow) *models.Entity {
	e := &models.Entity{
		ID:         row.ID.String,
		DomainID:   row.DomainID.String,
		EntityType: row.EntityType.String,
		Name:       row.Name.String,
		Properties: row.Properties.Data,
		ScopeType:  models.ScopeType(row.ScopeType.String),
		ScopeID:    row.ScopeID.String,
		Confidence: row.Confidence.Float64,
		Source:     row.Source.String,
		CreatedAt:  row.CreatedAt.Time,
		UpdatedAt:  row.UpdatedAt.Time,
	}
	if row.WorkSessionID.Valid {
		id := row.WorkSessionID.String
		e.WorkSessionID = &id
	}
	return e
}

// ToEntities converts a slice of database rows to domain models
func ToEntities(rows []EntityRow) []*models.Entity {
	entities := make([]*models.Entity, len(rows))
	for i, row := range rows {
		entities[i] = ToEntity(&row)
	}
	return entities
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
