// Package integrity reconciles the directory tables with their graph
// mirrors. Every active project, team, user and client must be mirrored by a
// strong-linked entity, and every milestone must carry the scope and
// relationships its work session implies. Check reports drift; Fix repairs
// it, one record at a time, so a bad record never blocks the rest.
package integrity

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/directory"
	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/relationship"
	"github.com/Ramsey-B/fern/pkg/expressions"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// EnforcerConfig holds the tunables for integrity passes
type EnforcerConfig struct {
	// AgentIDPaths are JMESPath expressions tried in order against milestone
	// properties to locate the originating agent id.
	AgentIDPaths []string
}

// DefaultConfig returns the default enforcer configuration
func DefaultConfig() EnforcerConfig {
	return EnforcerConfig{
		AgentIDPaths: []string{"agent_id || created_by_agent_id"},
	}
}

// Enforcer runs the integrity sweeps over the directory and the graph
type Enforcer struct {
	logger        ectologger.Logger
	directory     directory.DirectoryRepository
	entities      entity.EntityRepository
	relationships relationship.RelationshipRepository
	evaluator     *expressions.Evaluator
	config        EnforcerConfig
}

// NewEnforcer creates a new integrity enforcer
func NewEnforcer(
	logger ectologger.Logger,
	directoryRepo directory.DirectoryRepository,
	entityRepo entity.EntityRepository,
	relationshipRepo relationship.RelationshipRepository,
	evaluator *expressions.Evaluator,
	config EnforcerConfig,
) *Enforcer {
	return &Enforcer{
		logger:        logger,
		directory:     directoryRepo,
		entities:      entityRepo,
		relationships: relationshipRepo,
		evaluator:     evaluator,
		config:        config,
	}
}

// Check scans for integrity drift without touching anything. Empty Types
// means every category; empty DomainID means every known domain.
func (e *Enforcer) Check(ctx context.Context, req models.CheckIntegrityRequest) (*models.IntegrityReport, error) {
	ctx, span := tracing.StartSpan(ctx, "integrity.Enforcer.Check")
	defer span.End()

	types, err := normalizeTypes(req.Types)
	if err != nil {
		return nil, err
	}

	domains, err := e.resolveDomains(ctx, req.DomainID)
	if err != nil {
		return nil, err
	}

	report := models.NewIntegrityReport()

	for _, domainID := range domains {
		for _, fixType := range types {
			switch fixType {
			case models.FixTypeProjectEntities:
				issues, err := e.checkParents(ctx, domainID, kindProject)
				if err != nil {
					return nil, err
				}
				report.Projects = appendIssues(report.Projects, report.Summary, issues)
			case models.FixTypeTeamEntities:
				issues, err := e.checkParents(ctx, domainID, kindTeam)
				if err != nil {
					return nil, err
				}
				report.Teams = appendIssues(report.Teams, report.Summary, issues)
			case models.FixTypeUserEntities:
				issues, err := e.checkParents(ctx, domainID, kindUser)
				if err != nil {
					return nil, err
				}
				report.Users = appendIssues(report.Users, report.Summary, issues)
			case models.FixTypeClientEntities:
				issues, err := e.checkParents(ctx, domainID, kindClient)
				if err != nil {
					return nil, err
				}
				report.Clients = appendIssues(report.Clients, report.Summary, issues)
			case models.FixTypeMilestoneScopes:
				issues, err := e.checkMilestoneScopes(ctx, domainID)
				if err != nil {
					return nil, err
				}
				report.Milestones = appendIssues(report.Milestones, report.Summary, issues)
			case models.FixTypeMilestoneRelationships:
				issues, err := e.checkMilestoneRelationships(ctx, domainID)
				if err != nil {
					return nil, err
				}
				report.Milestones = appendIssues(report.Milestones, report.Summary, issues)
			}
		}
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"domains": len(domains),
		"issues":  report.TotalIssues(),
	}).Info("integrity check complete")

	return report, nil
}

// Fix repairs integrity drift. Each repair is applied and committed on its
// own; a failing item lands in the result's error list and the pass moves
// on. With DryRun set every lookup and comparison still runs but nothing is
// written, and Fixed lists the repairs that would have been applied.
func (e *Enforcer) Fix(ctx context.Context, req models.FixIntegrityRequest) (*models.RepairResult, error) {
	ctx, span := tracing.StartSpan(ctx, "integrity.Enforcer.Fix")
	defer span.End()

	types, err := normalizeTypes(req.Types)
	if err != nil {
		return nil, err
	}

	domains, err := e.resolveDomains(ctx, req.DomainID)
	if err != nil {
		return nil, err
	}

	result := &models.RepairResult{
		Fixed:  []models.RepairAction{},
		Errors: []models.RepairError{},
		DryRun: req.DryRun,
	}

	for _, domainID := range domains {
		for _, fixType := range types {
			switch fixType {
			case models.FixTypeProjectEntities:
				err = e.fixParents(ctx, domainID, kindProject, req.DryRun, result)
			case models.FixTypeTeamEntities:
				err = e.fixParents(ctx, domainID, kindTeam, req.DryRun, result)
			case models.FixTypeUserEntities:
				err = e.fixParents(ctx, domainID, kindUser, req.DryRun, result)
			case models.FixTypeClientEntities:
				err = e.fixParents(ctx, domainID, kindClient, req.DryRun, result)
			case models.FixTypeMilestoneScopes:
				err = e.fixMilestoneScopes(ctx, domainID, req.DryRun, result)
			case models.FixTypeMilestoneRelationships:
				err = e.fixMilestoneRelationships(ctx, domainID, req.DryRun, result)
			}
			if err != nil {
				return nil, err
			}
		}
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"domains": len(domains),
		"fixed":   len(result.Fixed),
		"errors":  len(result.Errors),
		"dry_run": req.DryRun,
	}).Info("integrity fix complete")

	return result, nil
}

// normalizeTypes validates the requested categories and returns them in
// execution order. Parent categories always run before milestone categories
// so the entities milestone edges anchor against exist by the time the
// milestone sweeps reach them.
func normalizeTypes(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return models.AllFixTypes, nil
	}

	for _, t := range requested {
		if !ectolinq.Contains(models.AllFixTypes, t) {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown fix type: %s", t))
		}
	}

	return ectolinq.Filter(models.AllFixTypes, func(t string) bool {
		return ectolinq.Contains(requested, t)
	}), nil
}

// resolveDomains expands an empty domain filter to every known domain
func (e *Enforcer) resolveDomains(ctx context.Context, domainID string) ([]string, error) {
	if domainID != "" {
		return []string{domainID}, nil
	}
	return e.directory.ListDomainIDs(ctx)
}

func appendIssues(list []models.Issue, summary map[string]int, issues []models.Issue) []models.Issue {
	for _, issue := range issues {
		summary[issue.Type]++
	}
	return append(list, issues...)
}

func scopeString(s models.Scope) string {
	return string(s.ScopeType) + ":" + s.ScopeID
}
