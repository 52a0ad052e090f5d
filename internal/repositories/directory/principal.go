package directory

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type membershipRow struct {
	TeamID   string `db:"team_id"`
	TeamName string `db:"team_name"`
	Role     string `db:"role"`
}

// GetPrincipal assembles the identity the scope engine decides against: the
// user row plus their active memberships in active teams. Returns nil when
// the user does not exist in the domain.
func (r *Repository) GetPrincipal(ctx context.Context, domainID, userID string) (*models.Principal, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.GetPrincipal")
	defer span.End()

	user, err := r.GetUser(ctx, domainID, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("tm.team_id", "t.name AS team_name", "tm.role")
	sb.From(teamMembershipsTable + " tm")
	sb.Join(teamsTable+" t", "t.id = tm.team_id", "t.domain_id = tm.domain_id")
	sb.Where(
		sb.Equal("tm.domain_id", domainID),
		sb.Equal("tm.user_id", userID),
		sb.Equal("tm.status", models.StatusActive),
		sb.Equal("t.status", models.StatusActive),
	)
	sb.OrderBy("t.name ASC")

	query, args := sb.Build()

	var rows []membershipRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to load principal memberships")
		return nil, fmt.Errorf("failed to load principal memberships: %w", err)
	}

	memberships := make([]models.TeamMembership, len(rows))
	for i, row := range rows {
		memberships[i] = models.TeamMembership{
			TeamID:   row.TeamID,
			TeamName: row.TeamName,
			Role:     row.Role,
		}
	}

	return &models.Principal{
		ID:            user.ID,
		DomainID:      user.DomainID,
		Name:          user.Name,
		IsAdmin:       user.IsAdmin,
		IsDomainAdmin: user.IsDomainAdmin,
		Memberships:   memberships,
	}, nil
}
