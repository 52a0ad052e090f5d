// Package directory exposes the thin admin endpoints that sync directory
// records from the originating systems. They authenticate by domain header
// alone so a domain can be bootstrapped before any user record exists.
package directory

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	directoryrepo "github.com/Ramsey-B/fern/internal/repositories/directory"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/routes/identity"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// Register registers directory admin routes
func Register(g *echo.Group) {
	g.POST("/projects", UpsertProject)
	g.GET("/projects", ListProjects)
	g.POST("/teams", UpsertTeam)
	g.GET("/teams", ListTeams)
	g.POST("/teams/:id/members", AddTeamMember)
	g.GET("/teams/:id/members", ListTeamMembers)
	g.DELETE("/teams/:id/members/:user_id", RemoveTeamMember)
	g.POST("/users", UpsertUser)
	g.GET("/users", ListUsers)
	g.POST("/clients", UpsertClient)
	g.GET("/clients", ListClients)
	g.POST("/work-sessions", UpsertWorkSession)
	g.GET("/work-sessions", ListWorkSessions)
	g.POST("/agents", UpsertAgent)
	g.GET("/agents", ListAgents)
}

func getRepo(ctx context.Context) (context.Context, directoryrepo.DirectoryRepository, error) {
	ctx, repo, err := ectoinject.GetContext[directoryrepo.DirectoryRepository](ctx)
	if err != nil {
		return ctx, nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get directory repository")
	}
	return ctx, repo, nil
}

// UpsertProject creates or refreshes a project record
func UpsertProject(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "directory_handler.UpsertProject")
	defer span.End()

	domainID, err := identity.Domain(ctx)
	if err != nil {
		return err
	}

	var req models.UpsertProjectRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := getRepo(ctx)
	if err != nil {
		return err
	}

	result, err := repo.UpsertProject(ctx, &models.Project{
		ID:          req.ID,
		DomainID:    domainID,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ListProjects lists a domain's project records
func ListProjects(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "directory_handler.ListProjects")
	defer span.End()

	domainID, err := identity.Domain(ctx)
	if err != nil {
		return err
	}

	ctx, repo, err := getRepo(ctx)
	if err != nil {
		return err
	}

	items, err := repo.ListProjects(ctx, domainID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// UpsertTeam creates or refreshes a team record
func UpsertTeam(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "directory_handler.UpsertTeam")
	defer span.End()

	domainID, err := identity.Domain(ctx)
	if err != nil {
		return err
	}

	var req models.UpsertTeamRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := getRepo(ctx)
	if err != nil {
		return err
	}

	result, err := repo.UpsertTeam(ctx, &models.Team{
		ID:          req.ID,
		DomainID:    domainID,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ListTeams lists a domain's team records
func ListTeams(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "directory_handler.ListTeams")
	defer span.End()

	domainID, err := identity.Domain(ctx)
	if err != nil {
		return err
	}

	ctx, repo, err := getRepo(ctx)
	if err != nil {
		return err
	}

	items, err := repo.ListTeams(ctx, domainID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// AddTeamMember adds a user to a team with a role
func AddTeamMember(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "directory_handler.AddTeamMember")
	defer span.End()

	domainID, err := identity.Domain(ctx)
	if err != nil {
		return err
	}
	teamID := c.Param("id")

	var req models.AddTeamMemberRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := getRepo(ctx)
	if err != nil {
		return err
	}

	team, err := repo.GetTeam(ctx, domainID, teamID)
	if err != nil {
		return err
	}
	if team == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "team not found")
	}

	if err := repo.AddTeamMember(ctx, domainID, teamID, req.UserID, req.Role); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"team_id": teamID,
		"user_id": req.UserID,
		"role":    req.Role,
	})
}

// ListTeamMembers lists the active memberships of a team
func ListTeamMembers(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "directory_handler.ListTeamMembers")
	defer span.End()

	domainID, err := identity.Domain(ctx)
	if err != nil {
		return err
	}
	teamID := c.Param("id")

	ctx, repo, err := getRepo(ctx)
	if err != nil {
		return err
	}

	items, err := repo.ListTeamMembers(ctx, domainID, teamID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// RemoveTeamMember removes a user from a team
func RemoveTeamMember(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "directory_handler.RemoveTeamMember")
	defer span.End()

	domainID, err := identity.Domain(ctx)
	if err != nil {
		return err
	}

	ctx, repo, err := getRepo(ctx)
	if err != nil {
		return err
	}

	if err := repo.RemoveTeamMember(ctx, domainID, c.Param("id"), c.Param("user_id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// UpsertUser creates or refreshes a user record
func UpsertUser(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "directory_handler.UpsertUser")
	defer span.End()

	domainID, err := identity.Domain(ctx)
	if err != nil {
		return err
	}

	var req models.UpsertUserRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := getRepo(ctx)
	if err != nil {
		return err
	}

	result, err := repo.UpsertUser(ctx, &models.User{
		ID:            req.ID,
		DomainID:      domainID,
		Name:          req.Name,
		Status:        req.Status,
		IsAdmin:       req.IsAdmin,
		IsDomainAdmin: req.IsDomainAdmin,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ListUsers lists a domain's user records
func ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "directory_handler.ListUsers")
	defer span.End()

	domainID, err := identity.Domain(ctx)
	if err != nil {
		return err
	}

	ctx, repo, err := getRepo(ctx)
	if err != nil {
		return err
	}

	items, err := repo.ListUsers(ctx, domainID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// UpsertClient creates or refreshes a client record
func UpsertClient(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "directory_handler.UpsertClient")
	defer span.End()

	domainID, err := identity.Domain(ctx)
	if err != nil {
		return err
	}

	var req models.UpsertClientRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := getRepo(ctx)
	if err != nil {
		return err
	}

	result, err := repo.UpsertClient(ctx, &models.Client{
		ID:          req.ID,
		DomainID:    domainID,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ListClients lists a domain's client records
func ListClients(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "directory_handler.ListClients")
	defer span.End()

	domainID, err := identity.Domain(ctx)
	if err != nil {
		return err
	}

	ctx, repo, err := getRepo(ctx)
	if err != nil {
		return err
	}

	items, err := repo.ListClients(ctx, domainID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// UpsertWorkSession creates or refreshes a work session record
func UpsertWorkSession(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "directory_handler.UpsertWorkSession")
	defer span.End()

	domainID, err := identity.Domain(ctx)
	if err != nil {
		return err
	}

	var req models.UpsertWorkSessionRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := getRepo(ctx)
	if err != nil {
		return err
	}

	result, err := repo.UpsertWorkSession(ctx, &models.WorkSession{
		ID:        req.ID,
		DomainID:  domainID,
		ProjectID: req.ProjectID,
		TeamID:    req.TeamID,
		Status:    req.Status,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ListWorkSessions lists a domain's work sessions
func ListWorkSessions(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "directory_handler.ListWorkSessions")
	defer span.End()

	domainID, err := identity.Domain(ctx)
	if err != nil {
		return err
	}

	ctx, repo, err := getRepo(ctx)
	if err != nil {
		return err
	}

	items, err := repo.ListWorkSessions(ctx, domainID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// UpsertAgent creates or refreshes an agent record
func UpsertAgent(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "directory_handler.UpsertAgent")
	defer span.End()

	domainID, err := identity.Domain(ctx)
	if err != nil {
		return err
	}

	var req models.UpsertAgentRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := getRepo(ctx)
	if err != nil {
		return err
	}

	result, err := repo.UpsertAgent(ctx, &models.Agent{
		ID:       req.ID,
		DomainID: domainID,
		UserID:   req.UserID,
		ClientID: req.ClientID,
		Name:     req.Name,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ListAgents lists a domain's agent records
func ListAgents(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "directory_handler.ListAgents")
	defer span.End()

	domainID, err := identity.Domain(ctx)
	if err != nil {
		return err
	}

	ctx, repo, err := getRepo(ctx)
	if err != nil {
		return err
	}

	items, err := repo.ListAgents(ctx, domainID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}
