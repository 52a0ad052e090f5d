package models

// Issue types reported by the integrity checker.
const (
	IssueMissingEntity     = "missing_entity"
	IssueWrongEntityType   = "wrong_entity_type"
	IssueWeakLink          = "weak_link"
	IssueDomainMismatch    = "domain_mismatch"
	IssueScopeMismatch     = "scope_mismatch"
	IssueMissingBelongsTo  = "missing_belongs_to"
	IssueMissingCreatedBy  = "missing_created_by"
	IssueMissingExecutedBy = "missing_executed_by"
)

// Fix categories accepted by check/fix. Parent categories always run before
// milestone categories.
const (
	FixTypeProjectEntities        = "project_entities"
	FixTypeTeamEntities           = "team_entities"
	FixTypeUserEntities           = "user_entities"
	FixTypeClientEntities         = "client_entities"
	FixTypeMilestoneScopes        = "milestone_scopes"
	FixTypeMilestoneRelationships = "milestone_relationships"
)

// AllFixTypes lists every category in execution order.
var AllFixTypes = []string{
	FixTypeProjectEntities,
	FixTypeTeamEntities,
	FixTypeUserEntities,
	FixTypeClientEntities,
	FixTypeMilestoneScopes,
	FixTypeMilestoneRelationships,
}

// Issue is one detected inconsistency.
type Issue struct {
	Type     string `json:"type"`
	RecordID string `json:"record_id"`
	EntityID string `json:"entity_id,omitempty"`
	DomainID string `json:"domain_id,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// IntegrityReport is the stable shape check renders: one list per category
// plus per-issue-type counts.
type IntegrityReport struct {
	Projects   []Issue        `json:"projects"`
	Teams      []Issue        `json:"teams"`
	Users      []Issue        `json:"users"`
	Clients    []Issue        `json:"clients"`
	Milestones []Issue        `json:"milestones"`
	Summary    map[string]int `json:"summary"`
}

// NewIntegrityReport returns an empty report with allocated lists so the
// rendered JSON always carries every category.
func NewIntegrityReport() *IntegrityReport {
	return &IntegrityReport{
		Projects:   []Issue{},
		Teams:      []Issue{},
		Users:      []Issue{},
		Clients:    []Issue{},
		Milestones: []Issue{},
		Summary:    map[string]int{},
	}
}

// TotalIssues sums the summary counts.
func (r *IntegrityReport) TotalIssues() int {
	total := 0
	for _, n := range r.Summary {
		total += n
	}
	return total
}

// RepairAction is one applied (or, under dry run, would-be) repair.
type RepairAction struct {
	Type           string `json:"type"`
	RecordID       string `json:"record_id,omitempty"`
	EntityID       string `json:"entity_id,omitempty"`
	RelationshipID string `json:"relationship_id,omitempty"`
	OldValue       string `json:"old_value,omitempty"`
	NewValue       string `json:"new_value,omitempty"`
}

// RepairError is one item that failed during a fix pass. Item failures never
// abort the remaining batch.
type RepairError struct {
	Type     string `json:"type"`
	RecordID string `json:"record_id,omitempty"`
	Error    string `json:"error"`
}

// RepairResult is the outcome of one fix pass.
type RepairResult struct {
	Fixed  []RepairAction `json:"fixed"`
	Errors []RepairError  `json:"errors"`
	DryRun bool           `json:"dry_run"`
}

// CheckIntegrityRequest scopes a check run. Empty Types means every
// category; empty DomainID means all domains.
type CheckIntegrityRequest struct {
	Types    []string `json:"types,omitempty"`
	DomainID string   `json:"domain_id,omitempty"`
}

// FixIntegrityRequest scopes a fix run.
type FixIntegrityRequest struct {
	Types    []string `json:"types,omitempty"`
	DomainID string   `json:"domain_id,omitempty"`
	DryRun   bool     `json:"dry_run"`
}
