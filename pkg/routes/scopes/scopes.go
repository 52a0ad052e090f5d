package scopes

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/routes/identity"
	"github.com/Ramsey-B/fern/pkg/scope"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// Register registers scope routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.GET("/default", Default)
	g.POST("/validate", Validate)
}

// List returns every scope the caller can read, with their access level
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "scopes_handler.List")
	defer span.End()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}

	ctx, svc, err := ectoinject.GetContext[*scope.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get scope service")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"scopes": svc.AccessibleScopes(principal),
	})
}

// Default resolves the scope a write lands in when the caller names none
func Default(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "scopes_handler.Default")
	defer span.End()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}

	ctx, svc, err := ectoinject.GetContext[*scope.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get scope service")
	}

	def := svc.DefaultScope(principal, c.QueryParam("active_team_id"))
	return c.JSON(http.StatusOK, def)
}

// Validate checks a scope tuple for shape problems without touching data
func Validate(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "scopes_handler.Validate")
	defer span.End()

	ctx, _, err := identity.Principal(ctx)
	if err != nil {
		return err
	}

	var req models.ValidateScopeRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*scope.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get scope service")
	}

	valid, reason := svc.ValidateParams(req.ScopeType, req.ScopeID)
	return c.JSON(http.StatusOK, models.ValidateScopeResponse{
		Valid:  valid,
		Reason: reason,
	})
}
