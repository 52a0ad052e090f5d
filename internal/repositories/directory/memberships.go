package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// AddTeamMember adds a user to a team, or refreshes the role when the
// membership already exists. Re-adding a removed member reactivates it.
func (r *Repository) AddTeamMember(ctx context.Context, domainID, teamID, userID, role string) error {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.AddTeamMember")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(teamMembershipsTable)
	sb.Cols("id", "domain_id", "team_id", "user_id", "role", "status", "created_at")
	sb.Values(uuid.New().String(), domainID, teamID, userID, role, models.StatusActive, time.Now())

	query, args := sb.Build()
	query += " ON CONFLICT (domain_id, team_id, user_id) DO UPDATE SET role = EXCLUDED.role, status = EXCLUDED.status"

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to add team member")
		return fmt.Errorf("failed to add team member: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"domain_id": domainID,
		"team_id":   teamID,
		"user_id":   userID,
		"role":      role,
	}).Info("added team member")

	return nil
}

// RemoveTeamMember archives a membership rather than deleting it, so a
// rejoin keeps history
func (r *Repository) RemoveTeamMember(ctx context.Context, domainID, teamID, userID string) error {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.RemoveTeamMember")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(teamMembershipsTable)
	sb.Set(sb.Assign("status", models.StatusArchived))
	sb.Where(
		sb.Equal("domain_id", domainID),
		sb.Equal("team_id", teamID),
		sb.Equal("user_id", userID),
	)

	query, args := sb.Build()

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to remove team member")
		return fmt.Errorf("failed to remove team member: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"domain_id": domainID,
		"team_id":   teamID,
		"user_id":   userID,
	}).Info("removed team member")

	return nil
}

// ListTeamMembers lists the active memberships of a team
func (r *Repository) ListTeamMembers(ctx context.Context, domainID, teamID string) ([]models.TeamMembershipRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.ListTeamMembers")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "team_id", "user_id", "role", "status", "created_at")
	sb.From(teamMembershipsTable)
	sb.Where(
		sb.Equal("domain_id", domainID),
		sb.Equal("team_id", teamID),
		sb.Equal("status", models.StatusActive),
	)
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()

	var members []models.TeamMembershipRecord
	err := r.db.SelectContext(ctx, &members, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list team members")
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}

	return members, nil
}
