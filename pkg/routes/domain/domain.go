package domain

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	directoryrepo "github.com/Ramsey-B/fern/internal/repositories/directory"
	entityrepo "github.com/Ramsey-B/fern/internal/repositories/entity"
	relationshiprepo "github.com/Ramsey-B/fern/internal/repositories/relationship"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/routes/identity"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/labstack/echo/v4"
)

// Register registers domain admin routes
func Register(g *echo.Group) {
	g.DELETE("/:id/data", deleteDomainData)
}

// deleteDomainData wipes every graph and directory row for a domain and
// returns per-table counts. System admins only.
func deleteDomainData(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "domain_handler.DeleteData")
	defer span.End()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}
	if !principal.IsAdmin {
		return httperror.NewHTTPError(http.StatusForbidden, "domain wipe requires system admin")
	}

	domainID := c.Param("id")
	if domainID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "domain id is required")
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{"domain_id": domainID}).Info("Deleting all data for domain")
	}

	ctx, relationships, err := ectoinject.GetContext[relationshiprepo.RelationshipRepository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get relationship repository")
	}

	ctx, entities, err := ectoinject.GetContext[entityrepo.EntityRepository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity repository")
	}

	ctx, dir, err := ectoinject.GetContext[directoryrepo.DirectoryRepository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get directory repository")
	}

	// Relationships before entities so no edge ever outlives its endpoints.
	relCount, err := relationships.DeleteByDomain(ctx, domainID)
	if err != nil {
		return err
	}

	entCount, err := entities.DeleteByDomain(ctx, domainID)
	if err != nil {
		return err
	}

	counts, err := dir.PurgeDomain(ctx, domainID)
	if err != nil {
		return err
	}
	counts["relationships"] = relCount
	counts["entities"] = entCount

	// The graph projection is optional; when it is registered, clear it too.
	if _, graphSvc, err := ectoinject.GetContext[*graph.EntityService](ctx); err == nil && graphSvc != nil {
		if err := graphSvc.DeleteDomain(ctx, domainID); err != nil && logger != nil {
			logger.WithContext(ctx).WithError(err).Warn("Failed to clear domain from graph projection")
		}
	}

	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"domain_id": domainID,
			"deleted":   counts,
		}).Info("Domain data deleted")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":   "domain data deleted",
		"domain_id": domainID,
		"deleted":   counts,
	})
}
