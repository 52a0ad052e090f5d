package directory

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ListDomainIDs returns every domain id that appears in any directory
// table. The integrity sweeps use this when no domain filter is given.
func (r *Repository) ListDomainIDs(ctx context.Context) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.ListDomainIDs")
	defer span.End()

	query := `
		SELECT DISTINCT domain_id FROM (
			SELECT domain_id FROM projects
			UNION SELECT domain_id FROM teams
			UNION SELECT domain_id FROM users
			UNION SELECT domain_id FROM clients
		) AS domains
		ORDER BY domain_id
	`

	var ids []string
	err := r.db.SelectContext(ctx, &ids, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list domain ids")
		return nil, fmt.Errorf("failed to list domain ids: %w", err)
	}

	return ids, nil
}

// PurgeDomain removes every directory row belonging to a domain and returns
// the removed row count per table
func (r *Repository) PurgeDomain(ctx context.Context, domainID string) (map[string]int, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.PurgeDomain")
	defer span.End()

	counts := map[string]int{}
	tables := []string{
		teamMembershipsTable,
		workSessionsTable,
		agentsTable,
		projectsTable,
		teamsTable,
		usersTable,
		clientsTable,
	}

	for _, table := range tables {
		db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
		db.DeleteFrom(table)
		db.Where(db.Equal("domain_id", domainID))

		query, args := db.Build()

		result, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("table", table).Error("failed to purge domain table")
			return counts, fmt.Errorf("failed to purge %s: %w", table, err)
		}

		rowsAffected, _ := result.RowsAffected()
		counts[table] = int(rowsAffected)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"domain_id": domainID,
		"counts":    counts,
	}).Info("purged domain directory rows")

	return counts, nil
}
