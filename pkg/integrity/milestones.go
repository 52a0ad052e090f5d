package integrity

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// checkMilestoneScopes sweeps milestones for scope drift against the work
// session each one was produced under. Milestones without a session are not
// session-scoped and are skipped.
func (e *Enforcer) checkMilestoneScopes(ctx context.Context, domainID string) ([]models.Issue, error) {
	ctx, span := tracing.StartSpan(ctx, "integrity.Enforcer.checkMilestoneScopes")
	defer span.End()

	milestones, err := e.entities.ListByType(ctx, domainID, models.EntityTypeMilestone)
	if err != nil {
		return nil, err
	}

	issues := []models.Issue{}
	for _, milestone := range milestones {
		if milestone.WorkSessionID == nil || *milestone.WorkSessionID == "" {
			continue
		}

		session, err := e.directory.GetWorkSession(ctx, domainID, *milestone.WorkSessionID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			issues = append(issues, models.Issue{
				Type:     models.IssueScopeMismatch,
				RecordID: milestone.ID,
				DomainID: domainID,
				Detail:   fmt.Sprintf("work session %s not found", *milestone.WorkSessionID),
			})
			continue
		}

		expected := session.ExpectedScope()
		if milestone.ScopeType != expected.ScopeType || milestone.ScopeID != expected.ScopeID {
			issues = append(issues, models.Issue{
				Type:     models.IssueScopeMismatch,
				RecordID: milestone.ID,
				DomainID: domainID,
				Expected: scopeString(expected),
				Actual:   scopeString(models.Scope{ScopeType: milestone.ScopeType, ScopeID: milestone.ScopeID}),
			})
		}
	}

	return issues, nil
}

func (e *Enforcer) fixMilestoneScopes(ctx context.Context, domainID string, dryRun bool, result *models.RepairResult) error {
	ctx, span := tracing.StartSpan(ctx, "integrity.Enforcer.fixMilestoneScopes")
	defer span.End()

	milestones, err := e.entities.ListByType(ctx, domainID, models.EntityTypeMilestone)
	if err != nil {
		return err
	}

	for _, milestone := range milestones {
		if milestone.WorkSessionID == nil || *milestone.WorkSessionID == "" {
			continue
		}

		session, err := e.directory.GetWorkSession(ctx, domainID, *milestone.WorkSessionID)
		if err != nil {
			return err
		}
		if session == nil {
			result.Errors = append(result.Errors, models.RepairError{
				Type:     models.IssueScopeMismatch,
				RecordID: milestone.ID,
				Error:    fmt.Sprintf("work session %s not found", *milestone.WorkSessionID),
			})
			continue
		}

		expected := session.ExpectedScope()
		if milestone.ScopeType == expected.ScopeType && milestone.ScopeID == expected.ScopeID {
			continue
		}

		actual := scopeString(models.Scope{ScopeType: milestone.ScopeType, ScopeID: milestone.ScopeID})
		if !dryRun {
			if err := e.entities.UpdateScope(ctx, domainID, milestone.ID, string(expected.ScopeType), expected.ScopeID); err != nil {
				result.Errors = append(result.Errors, models.RepairError{Type: models.IssueScopeMismatch, RecordID: milestone.ID, Error: err.Error()})
				continue
			}
		}
		result.Fixed = append(result.Fixed, models.RepairAction{
			Type:     models.IssueScopeMismatch,
			RecordID: milestone.ID,
			EntityID: milestone.ID,
			OldValue: actual,
			NewValue: scopeString(expected),
		})
	}

	return nil
}

// checkMilestoneRelationships sweeps milestones for the edges their work
// session implies: BELONGS_TO the session's project or team, CREATED_BY the
// person behind the originating agent, and EXECUTED_BY the agent's client.
func (e *Enforcer) checkMilestoneRelationships(ctx context.Context, domainID string) ([]models.Issue, error) {
	ctx, span := tracing.StartSpan(ctx, "integrity.Enforcer.checkMilestoneRelationships")
	defer span.End()

	milestones, err := e.entities.ListByType(ctx, domainID, models.EntityTypeMilestone)
	if err != nil {
		return nil, err
	}

	issues := []models.Issue{}
	for _, milestone := range milestones {
		if milestone.WorkSessionID == nil || *milestone.WorkSessionID == "" {
			continue
		}

		session, err := e.directory.GetWorkSession(ctx, domainID, *milestone.WorkSessionID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			// The scope sweep reports dangling sessions; without one there
			// is nothing to anchor edges against.
			continue
		}

		found, err := e.detectMilestoneEdgeIssues(ctx, milestone, session)
		if err != nil {
			return nil, err
		}
		issues = append(issues, found...)
	}

	return issues, nil
}

func (e *Enforcer) detectMilestoneEdgeIssues(ctx context.Context, milestone *models.Entity, session *models.WorkSession) ([]models.Issue, error) {
	issues := []models.Issue{}
	domainID := milestone.DomainID

	if anchorID := sessionAnchor(session); anchorID != "" {
		issue, err := e.missingEdgeIssue(ctx, domainID, milestone.ID, anchorID, models.IssueMissingBelongsTo)
		if err != nil {
			return nil, err
		}
		if issue != nil {
			issues = append(issues, *issue)
		}
	}

	agentID := e.extractAgentID(milestone.Properties)
	if agentID == "" {
		return issues, nil
	}

	agent, err := e.directory.GetAgent(ctx, domainID, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		// Check cannot resolve who created the milestone; the fix pass
		// surfaces this per item.
		return issues, nil
	}

	issue, err := e.missingEdgeIssue(ctx, domainID, milestone.ID, agent.UserID, models.IssueMissingCreatedBy)
	if err != nil {
		return nil, err
	}
	if issue != nil {
		issues = append(issues, *issue)
	}

	if agent.ClientID != nil && *agent.ClientID != "" {
		issue, err := e.missingEdgeIssue(ctx, domainID, milestone.ID, *agent.ClientID, models.IssueMissingExecutedBy)
		if err != nil {
			return nil, err
		}
		if issue != nil {
			issues = append(issues, *issue)
		}
	}

	return issues, nil
}

func (e *Enforcer) fixMilestoneRelationships(ctx context.Context, domainID string, dryRun bool, result *models.RepairResult) error {
	ctx, span := tracing.StartSpan(ctx, "integrity.Enforcer.fixMilestoneRelationships")
	defer span.End()

	milestones, err := e.entities.ListByType(ctx, domainID, models.EntityTypeMilestone)
	if err != nil {
		return err
	}

	for _, milestone := range milestones {
		if milestone.WorkSessionID == nil || *milestone.WorkSessionID == "" {
			continue
		}

		session, err := e.directory.GetWorkSession(ctx, domainID, *milestone.WorkSessionID)
		if err != nil {
			return err
		}
		if session == nil {
			continue
		}

		if err := e.repairMilestoneEdges(ctx, milestone, session, dryRun, result); err != nil {
			return err
		}
	}

	return nil
}

func (e *Enforcer) repairMilestoneEdges(ctx context.Context, milestone *models.Entity, session *models.WorkSession, dryRun bool, result *models.RepairResult) error {
	domainID := milestone.DomainID

	if anchorID := sessionAnchor(session); anchorID != "" {
		e.ensureEdge(ctx, milestone, anchorID, models.IssueMissingBelongsTo, nil, dryRun, result)
	}

	agentID := e.extractAgentID(milestone.Properties)
	if agentID == "" {
		return nil
	}

	agent, err := e.directory.GetAgent(ctx, domainID, agentID)
	if err != nil {
		return err
	}
	if agent == nil {
		result.Errors = append(result.Errors, models.RepairError{
			Type:     models.IssueMissingCreatedBy,
			RecordID: milestone.ID,
			Error:    fmt.Sprintf("agent %s not found", agentID),
		})
		return nil
	}

	e.ensureEdge(ctx, milestone, agent.UserID, models.IssueMissingCreatedBy, nil, dryRun, result)

	if agent.ClientID != nil && *agent.ClientID != "" {
		e.ensureEdge(ctx, milestone, *agent.ClientID, models.IssueMissingExecutedBy, map[string]any{"agent_id": agent.ID}, dryRun, result)
	}

	return nil
}

// ensureEdge creates the implied edge when it is absent. The target entity
// must already exist; parent repairs run earlier in the same pass precisely
// so that it does.
func (e *Enforcer) ensureEdge(ctx context.Context, milestone *models.Entity, toID, issueType string, extraProps map[string]any, dryRun bool, result *models.RepairResult) {
	domainID := milestone.DomainID
	relType := edgeTypeForIssue(issueType)

	exists, err := e.relationships.ExistsEdge(ctx, domainID, milestone.ID, toID, relType)
	if err != nil {
		result.Errors = append(result.Errors, models.RepairError{Type: issueType, RecordID: milestone.ID, Error: err.Error()})
		return
	}
	if exists {
		return
	}

	targets, err := e.entities.ExistsByIDs(ctx, domainID, []string{toID})
	if err != nil {
		result.Errors = append(result.Errors, models.RepairError{Type: issueType, RecordID: milestone.ID, Error: err.Error()})
		return
	}
	if !targets[toID] {
		result.Errors = append(result.Errors, models.RepairError{
			Type:     issueType,
			RecordID: milestone.ID,
			Error:    fmt.Sprintf("target entity %s not found", toID),
		})
		return
	}

	action := models.RepairAction{
		Type:     issueType,
		RecordID: milestone.ID,
		EntityID: toID,
		NewValue: relType,
	}

	if !dryRun {
		properties := map[string]any{"auto_generated": true}
		for k, v := range extraProps {
			properties[k] = v
		}

		created, err := e.relationships.Create(ctx, &models.Relationship{
			DomainID:         domainID,
			FromEntityID:     milestone.ID,
			ToEntityID:       toID,
			RelationshipType: relType,
			Properties:       properties,
			Confidence:       1,
		})
		if err != nil {
			result.Errors = append(result.Errors, models.RepairError{Type: issueType, RecordID: milestone.ID, Error: err.Error()})
			return
		}
		action.RelationshipID = created.ID
	}

	result.Fixed = append(result.Fixed, action)
}

func (e *Enforcer) missingEdgeIssue(ctx context.Context, domainID, fromID, toID, issueType string) (*models.Issue, error) {
	relType := edgeTypeForIssue(issueType)

	exists, err := e.relationships.ExistsEdge(ctx, domainID, fromID, toID, relType)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	return &models.Issue{
		Type:     issueType,
		RecordID: fromID,
		EntityID: toID,
		DomainID: domainID,
		Expected: relType,
		Detail:   fmt.Sprintf("no %s edge to %s", relType, toID),
	}, nil
}

// extractAgentID pulls the originating agent id out of a property bag by
// trying each configured path in order
func (e *Enforcer) extractAgentID(properties map[string]any) string {
	if len(properties) == 0 {
		return ""
	}

	for _, path := range e.config.AgentIDPaths {
		value, err := e.evaluator.EvaluateString(path, properties)
		if err != nil {
			continue
		}
		if value != "" {
			return value
		}
	}

	return ""
}

// sessionAnchor picks the entity a session's milestones should BELONG_TO,
// by the same precedence scopes use: project first, then team.
func sessionAnchor(session *models.WorkSession) string {
	if session.ProjectID != nil && *session.ProjectID != "" {
		return *session.ProjectID
	}
	if session.TeamID != nil && *session.TeamID != "" {
		return *session.TeamID
	}
	return ""
}

func edgeTypeForIssue(issueType string) string {
	switch issueType {
	case models.IssueMissingBelongsTo:
		return models.RelationshipTypeBelongsTo
	case models.IssueMissingCreatedBy:
		return models.RelationshipTypeCreatedBy
	default:
		return models.RelationshipTypeExecutedBy
	}
}
