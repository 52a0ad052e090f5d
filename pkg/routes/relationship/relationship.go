package relationship

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	relationshipservice "github.com/Ramsey-B/fern/internal/services/relationship"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/routes/identity"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/labstack/echo/v4"
)

// Register registers relationship routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.GET("/:id", Get)
	g.PUT("/:id", Update)
	g.DELETE("/:id", Delete)
}

// List returns relationships touching an entity
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "relationship_handler.List")
	defer span.End()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	ctx, svc, err := ectoinject.GetContext[*relationshipservice.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get relationship service")
	}

	result, err := svc.List(ctx, principal.DomainID, c.QueryParam("entity_id"), c.QueryParam("relationship_type"), page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Create creates a relationship between two existing entities
func Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "relationship_handler.Create")
	defer span.End()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}

	var req models.CreateRelationshipRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, svc, err := ectoinject.GetContext[*relationshipservice.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get relationship service")
	}

	result, err := svc.Create(ctx, principal.DomainID, principal, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

// Get returns a single relationship by ID
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "relationship_handler.Get")
	defer span.End()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}
	id := c.Param("id")

	ctx, svc, err := ectoinject.GetContext[*relationshipservice.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get relationship service")
	}

	result, err := svc.Get(ctx, principal.DomainID, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Update applies a partial update to a relationship. Endpoints are immutable.
func Update(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "relationship_handler.Update")
	defer span.End()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}
	id := c.Param("id")

	var req models.UpdateRelationshipRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, svc, err := ectoinject.GetContext[*relationshipservice.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get relationship service")
	}

	result, err := svc.Update(ctx, principal.DomainID, id, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Delete removes a relationship
func Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "relationship_handler.Delete")
	defer span.End()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}
	id := c.Param("id")

	ctx, svc, err := ectoinject.GetContext[*relationshipservice.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get relationship service")
	}

	if err := svc.Delete(ctx, principal.DomainID, id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
