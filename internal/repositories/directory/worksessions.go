package directory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// UpsertWorkSession creates or refreshes a work session. The first upsert
// that carries a completed status freezes ended_at; later upserts never
// move it.
func (r *Repository) UpsertWorkSession(ctx context.Context, session *models.WorkSession) (*models.WorkSession, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.UpsertWorkSession")
	defer span.End()

	now := time.Now()
	if session.Status == "" {
		session.Status = models.WorkSessionStatusActive
	}

	var endedAt *time.Time
	if session.Status == models.WorkSessionStatusCompleted {
		endedAt = &now
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(workSessionsTable)
	sb.Cols("id", "domain_id", "project_id", "team_id", "status", "started_at", "ended_at")
	sb.Values(session.ID, session.DomainID, session.ProjectID, session.TeamID, session.Status, now, endedAt)

	query, args := sb.Build()
	query += " ON CONFLICT (id, domain_id) DO UPDATE SET project_id = EXCLUDED.project_id, team_id = EXCLUDED.team_id, status = EXCLUDED.status, ended_at = COALESCE(work_sessions.ended_at, EXCLUDED.ended_at)"

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to upsert work session")
		return nil, fmt.Errorf("failed to upsert work session: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        session.ID,
		"domain_id": session.DomainID,
		"status":    session.Status,
	}).Info("upserted work session")

	return r.GetWorkSession(ctx, session.DomainID, session.ID)
}

// GetWorkSession gets a work session by ID, or nil when it does not exist
func (r *Repository) GetWorkSession(ctx context.Context, domainID, id string) (*models.WorkSession, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.GetWorkSession")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "domain_id", "project_id", "team_id", "status", "started_at", "ended_at")
	sb.From(workSessionsTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("domain_id", domainID),
	)

	query, args := sb.Build()

	var session models.WorkSession
	err := r.db.GetContext(ctx, &session, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get work session")
		return nil, fmt.Errorf("failed to get work session: %w", err)
	}

	return &session, nil
}

// ListWorkSessions lists all work sessions in a domain, newest first
func (r *Repository) ListWorkSessions(ctx context.Context, domainID string) ([]models.WorkSession, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.ListWorkSessions")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "domain_id", "project_id", "team_id", "status", "started_at", "ended_at")
	sb.From(workSessionsTable)
	sb.Where(sb.Equal("domain_id", domainID))
	sb.OrderBy("started_at DESC")

	query, args := sb.Build()

	var sessions []models.WorkSession
	err := r.db.SelectContext(ctx, &sessions, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list work sessions")
		return nil, fmt.Errorf("failed to list work sessions: %w", err)
	}

	return sessions, nil
}
