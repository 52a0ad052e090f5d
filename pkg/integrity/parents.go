package integrity

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// parentKind identifies one directory table swept by the parent checks and
// the entity type its mirrors must carry.
type parentKind struct {
	fixType    string
	bridgeKind string
	entityType string
}

var (
	kindProject = parentKind{models.FixTypeProjectEntities, models.BridgeKindProject, models.EntityTypeProject}
	kindTeam    = parentKind{models.FixTypeTeamEntities, models.BridgeKindTeam, models.EntityTypeTeam}
	kindUser    = parentKind{models.FixTypeUserEntities, models.BridgeKindUser, models.EntityTypePerson}
	kindClient  = parentKind{models.FixTypeClientEntities, models.BridgeKindClient, models.EntityTypeClient}
)

// parentRecord is the kind-neutral view of one directory row
type parentRecord struct {
	ID          string
	DomainID    string
	Name        string
	Description string
	Status      string
	EntityID    string
}

func (e *Enforcer) listParents(ctx context.Context, domainID string, kind parentKind) ([]parentRecord, error) {
	switch kind.fixType {
	case models.FixTypeProjectEntities:
		projects, err := e.directory.ListProjects(ctx, domainID)
		if err != nil {
			return nil, err
		}
		return ectolinq.Map(projects, func(p models.Project) parentRecord {
			return parentRecord{ID: p.ID, DomainID: p.DomainID, Name: p.Name, Description: p.Description, Status: p.Status, EntityID: p.EntityID}
		}), nil
	case models.FixTypeTeamEntities:
		teams, err := e.directory.ListTeams(ctx, domainID)
		if err != nil {
			return nil, err
		}
		return ectolinq.Map(teams, func(t models.Team) parentRecord {
			return parentRecord{ID: t.ID, DomainID: t.DomainID, Name: t.Name, Description: t.Description, Status: t.Status, EntityID: t.EntityID}
		}), nil
	case models.FixTypeUserEntities:
		users, err := e.directory.ListUsers(ctx, domainID)
		if err != nil {
			return nil, err
		}
		return ectolinq.Map(users, func(u models.User) parentRecord {
			return parentRecord{ID: u.ID, DomainID: u.DomainID, Name: u.Name, Status: u.Status, EntityID: u.EntityID}
		}), nil
	default:
		clients, err := e.directory.ListClients(ctx, domainID)
		if err != nil {
			return nil, err
		}
		return ectolinq.Map(clients, func(c models.Client) parentRecord {
			return parentRecord{ID: c.ID, DomainID: c.DomainID, Name: c.Name, Description: c.Description, Status: c.Status, EntityID: c.EntityID}
		}), nil
	}
}

// checkParents sweeps one directory table for drift. Archived and suspended
// records are left alone; only active records are enforced.
func (e *Enforcer) checkParents(ctx context.Context, domainID string, kind parentKind) ([]models.Issue, error) {
	ctx, span := tracing.StartSpan(ctx, "integrity.Enforcer.checkParents")
	defer span.End()

	records, err := e.listParents(ctx, domainID, kind)
	if err != nil {
		return nil, err
	}

	issues := []models.Issue{}
	for _, record := range records {
		if record.Status != models.StatusActive {
			continue
		}

		found, err := e.detectParentIssues(ctx, kind, record)
		if err != nil {
			return nil, err
		}
		issues = append(issues, found...)
	}

	return issues, nil
}

func (e *Enforcer) fixParents(ctx context.Context, domainID string, kind parentKind, dryRun bool, result *models.RepairResult) error {
	ctx, span := tracing.StartSpan(ctx, "integrity.Enforcer.fixParents")
	defer span.End()

	records, err := e.listParents(ctx, domainID, kind)
	if err != nil {
		return err
	}

	for _, record := range records {
		if record.Status != models.StatusActive {
			continue
		}

		issues, err := e.detectParentIssues(ctx, kind, record)
		if err != nil {
			return err
		}

		for _, issue := range issues {
			e.repairParentIssue(ctx, kind, record, issue, dryRun, result)
		}
	}

	return nil
}

// detectParentIssues probes one directory record for drift from its graph
// mirror. The mirror is looked up by id alone so a record whose entity
// landed in another domain is caught rather than reported missing.
func (e *Enforcer) detectParentIssues(ctx context.Context, kind parentKind, record parentRecord) ([]models.Issue, error) {
	issues := []models.Issue{}

	mirror, err := e.entities.FindByID(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	switch {
	case mirror == nil:
		issues = append(issues, models.Issue{
			Type:     models.IssueMissingEntity,
			RecordID: record.ID,
			DomainID: record.DomainID,
			Expected: kind.entityType,
			Detail:   fmt.Sprintf("no entity mirrors %s %q", kind.bridgeKind, record.Name),
		})
	case mirror.DomainID != record.DomainID:
		issues = append(issues, models.Issue{
			Type:     models.IssueDomainMismatch,
			RecordID: record.ID,
			EntityID: mirror.ID,
			DomainID: record.DomainID,
			Expected: record.DomainID,
			Actual:   mirror.DomainID,
			Detail:   "mirror entity lives in another domain",
		})
	default:
		if mirror.EntityType != kind.entityType {
			issues = append(issues, models.Issue{
				Type:     models.IssueWrongEntityType,
				RecordID: record.ID,
				EntityID: mirror.ID,
				DomainID: record.DomainID,
				Expected: kind.entityType,
				Actual:   mirror.EntityType,
			})
		}
		if record.EntityID != record.ID {
			issues = append(issues, models.Issue{
				Type:     models.IssueWeakLink,
				RecordID: record.ID,
				EntityID: mirror.ID,
				DomainID: record.DomainID,
				Expected: record.ID,
				Actual:   record.EntityID,
			})
		}
	}

	return issues, nil
}

// repairParentIssue applies one parent repair, folding failures into the
// result so the rest of the batch keeps going
func (e *Enforcer) repairParentIssue(ctx context.Context, kind parentKind, record parentRecord, issue models.Issue, dryRun bool, result *models.RepairResult) {
	switch issue.Type {
	case models.IssueMissingEntity:
		if !dryRun {
			if err := e.createMirrorEntity(ctx, kind, record); err != nil {
				result.Errors = append(result.Errors, models.RepairError{Type: issue.Type, RecordID: record.ID, Error: err.Error()})
				return
			}
			if err := e.setParentEntityID(ctx, kind, record.DomainID, record.ID, record.ID); err != nil {
				result.Errors = append(result.Errors, models.RepairError{Type: issue.Type, RecordID: record.ID, Error: err.Error()})
				return
			}
		}
		result.Fixed = append(result.Fixed, models.RepairAction{
			Type:     issue.Type,
			RecordID: record.ID,
			EntityID: record.ID,
			NewValue: kind.entityType,
		})

	case models.IssueWrongEntityType:
		if !dryRun {
			mirror, err := e.entities.GetByID(ctx, record.DomainID, record.ID)
			if err != nil {
				result.Errors = append(result.Errors, models.RepairError{Type: issue.Type, RecordID: record.ID, Error: err.Error()})
				return
			}
			mirror.EntityType = kind.entityType
			if _, err = e.entities.Update(ctx, mirror); err != nil {
				result.Errors = append(result.Errors, models.RepairError{Type: issue.Type, RecordID: record.ID, Error: err.Error()})
				return
			}
		}
		result.Fixed = append(result.Fixed, models.RepairAction{
			Type:     issue.Type,
			RecordID: record.ID,
			EntityID: record.ID,
			OldValue: issue.Actual,
			NewValue: kind.entityType,
		})

	case models.IssueWeakLink:
		if !dryRun {
			if err := e.setParentEntityID(ctx, kind, record.DomainID, record.ID, record.ID); err != nil {
				result.Errors = append(result.Errors, models.RepairError{Type: issue.Type, RecordID: record.ID, Error: err.Error()})
				return
			}
		}
		result.Fixed = append(result.Fixed, models.RepairAction{
			Type:     issue.Type,
			RecordID: record.ID,
			EntityID: record.ID,
			OldValue: issue.Actual,
			NewValue: record.ID,
		})

	case models.IssueDomainMismatch:
		// Moving an entity between tenants is never safe to automate.
		result.Errors = append(result.Errors, models.RepairError{
			Type:     issue.Type,
			RecordID: record.ID,
			Error:    fmt.Sprintf("mirror entity is in domain %s, expected %s; requires manual correction", issue.Actual, issue.Expected),
		})
	}
}

// createMirrorEntity writes the strong-linked entity for a directory record.
// The mirror shares the record's id, is domain scoped, and carries a bridge
// source so its provenance survives later edits.
func (e *Enforcer) createMirrorEntity(ctx context.Context, kind parentKind, record parentRecord) error {
	properties := map[string]any{
		"name":           record.Name,
		"status":         record.Status,
		"auto_generated": true,
	}
	if record.Description != "" {
		properties["description"] = record.Description
	}

	_, err := e.entities.Create(ctx, &models.Entity{
		ID:         record.ID,
		DomainID:   record.DomainID,
		EntityType: kind.entityType,
		Name:       record.Name,
		Properties: properties,
		ScopeType:  models.ScopeTypeDomain,
		ScopeID:    record.DomainID,
		Confidence: 1,
		Source:     models.Bridge(kind.bridgeKind, record.ID),
	})
	return err
}

func (e *Enforcer) setParentEntityID(ctx context.Context, kind parentKind, domainID, id, entityID string) error {
	switch kind.fixType {
	case models.FixTypeProjectEntities:
		return e.directory.SetProjectEntityID(ctx, domainID, id, entityID)
	case models.FixTypeTeamEntities:
		return e.directory.SetTeamEntityID(ctx, domainID, id, entityID)
	case models.FixTypeUserEntities:
		return e.directory.SetUserEntityID(ctx, domainID, id, entityID)
	default:
		return e.directory.SetClientEntityID(ctx, domainID, id, entityID)
	}
}
