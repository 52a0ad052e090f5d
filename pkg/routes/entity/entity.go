package entity

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	entityrepo "github.com/Ramsey-B/fern/internal/repositories/entity"
	entityservice "github.com/Ramsey-B/fern/internal/services/entity"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/routes/identity"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/labstack/echo/v4"
)

// Register registers entity routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.GET("/:id", Get)
	g.PUT("/:id", Update)
	g.DELETE("/:id", Delete)
}

// List returns entities visible to the caller, filtered and paginated
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "entity_handler.List")
	defer span.End()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	filter := entityrepo.ListFilter{
		DomainID:      principal.DomainID,
		Principal:     principal,
		EntityType:    c.QueryParam("entity_type"),
		NameContains:  c.QueryParam("name"),
		ScopeType:     c.QueryParam("scope_type"),
		ScopeID:       c.QueryParam("scope_id"),
		WorkSessionID: c.QueryParam("work_session_id"),
		Page:          page,
		PageSize:      pageSize,
	}

	ctx, svc, err := ectoinject.GetContext[*entityservice.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity service")
	}

	result, err := svc.List(ctx, filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Create creates a new entity
func Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "entity_handler.Create")
	defer span.End()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}

	var req models.CreateEntityRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, svc, err := ectoinject.GetContext[*entityservice.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity service")
	}

	result, err := svc.Create(ctx, principal.DomainID, principal, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

// Get returns a single entity by ID
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "entity_handler.Get")
	defer span.End()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}
	id := c.Param("id")

	ctx, svc, err := ectoinject.GetContext[*entityservice.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity service")
	}

	result, err := svc.Get(ctx, principal.DomainID, principal, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Update applies a partial update to an entity
func Update(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "entity_handler.Update")
	defer span.End()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}
	id := c.Param("id")

	var req models.UpdateEntityRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, svc, err := ectoinject.GetContext[*entityservice.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity service")
	}

	result, err := svc.Update(ctx, principal.DomainID, principal, id, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Delete removes an entity and all relationships attached to it
func Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "entity_handler.Delete")
	defer span.End()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}
	id := c.Param("id")

	ctx, svc, err := ectoinject.GetContext[*entityservice.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity service")
	}

	result, err := svc.Delete(ctx, principal.DomainID, principal, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
